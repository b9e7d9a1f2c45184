// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package journal

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"

	"github.com/bureau-foundation/timekeeper/lib/codec"
	"github.com/bureau-foundation/timekeeper/lib/timer"
)

// zstdMagic is the little-endian zstd frame magic number 0xFD2FB528.
var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// Reader decodes events from a journal in append order.
type Reader struct {
	decoder      *codec.Decoder
	decompressor *zstd.Decoder
	file         *os.File
	compression  Compression
}

// NewReader returns a Reader over r. Compression is detected from the
// first bytes of the stream.
func NewReader(r io.Reader) (*Reader, error) {
	buffered := bufio.NewReader(r)
	reader := &Reader{compression: None}

	header, err := buffered.Peek(len(zstdMagic))
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("reading journal header: %w", err)
	}

	var source io.Reader = buffered
	if bytes.Equal(header, zstdMagic) {
		decompressor, err := zstd.NewReader(buffered)
		if err != nil {
			return nil, fmt.Errorf("creating zstd decoder: %w", err)
		}
		reader.decompressor = decompressor
		reader.compression = Zstd
		source = decompressor
	}
	reader.decoder = codec.NewDecoder(source)
	return reader, nil
}

// Open opens the journal at path.
func Open(path string) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	reader, err := NewReader(file)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("opening journal %s: %w", path, err)
	}
	reader.file = file
	return reader, nil
}

// Compression reports the framing detected when the reader was
// created.
func (r *Reader) Compression() Compression { return r.compression }

// Next returns the next event. It returns io.EOF after the last
// event; a journal that ends mid-item returns io.ErrUnexpectedEOF.
func (r *Reader) Next() (timer.TimeEvent, error) {
	var event timer.TimeEvent
	if err := r.decoder.Decode(&event); err != nil {
		if errors.Is(err, io.EOF) {
			return timer.TimeEvent{}, io.EOF
		}
		return timer.TimeEvent{}, fmt.Errorf("decoding journal event: %w", err)
	}
	return event, nil
}

// Close releases the decompressor and any file opened by Open.
func (r *Reader) Close() error {
	if r.decompressor != nil {
		r.decompressor.Close()
	}
	if r.file != nil {
		return r.file.Close()
	}
	return nil
}

// ReadAll returns every event in the journal at path.
func ReadAll(path string) ([]timer.TimeEvent, error) {
	reader, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	var events []timer.TimeEvent
	for {
		event, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return events, nil
		}
		if err != nil {
			return nil, fmt.Errorf("%s: event %d: %w", path, len(events), err)
		}
		events = append(events, event)
	}
}

// ReadSequence returns the journal at path as a bare CBOR sequence,
// decompressing it if needed. Used for diagnostic dumps.
func ReadSequence(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if !bytes.HasPrefix(data, zstdMagic) {
		return data, nil
	}
	decompressor, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("creating zstd decoder: %w", err)
	}
	defer decompressor.Close()
	sequence, err := decompressor.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decompress %s: %w", path, err)
	}
	return sequence, nil
}
