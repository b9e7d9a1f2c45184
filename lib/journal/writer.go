// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package journal

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/timekeeper/lib/codec"
	"github.com/bureau-foundation/timekeeper/lib/timer"
)

// Compression selects the journal's on-disk framing.
type Compression string

const (
	// None writes the raw CBOR sequence.
	None Compression = "none"
	// Zstd wraps the CBOR sequence in a zstd stream.
	Zstd Compression = "zstd"
)

// ParseCompression accepts "none", "zstd", or the empty string (none).
func ParseCompression(value string) (Compression, error) {
	switch Compression(value) {
	case "", None:
		return None, nil
	case Zstd:
		return Zstd, nil
	}
	return "", fmt.Errorf("unknown journal compression %q (want none or zstd)", value)
}

// ErrClosed is returned by Append after Close or Discard.
var ErrClosed = errors.New("journal closed")

// Writer appends events to a journal. Safe for concurrent use: live
// timers append from their own goroutines.
type Writer struct {
	mu         sync.Mutex
	output     io.Writer
	compressor *zstd.Encoder
	hasher     *blake3.Hasher
	count      int
	closed     bool

	// Set only for journals created with Create.
	file          *os.File
	path          string
	temporaryPath string
}

// NewWriter returns a Writer that encodes events to w. Close flushes
// any compression frame but does not close w.
func NewWriter(w io.Writer, compression Compression) (*Writer, error) {
	writer := &Writer{
		output: w,
		hasher: newDigestHasher(),
	}
	switch compression {
	case "", None:
	case Zstd:
		compressor, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, fmt.Errorf("creating zstd encoder: %w", err)
		}
		writer.compressor = compressor
		writer.output = compressor
	default:
		return nil, fmt.Errorf("unknown journal compression %q", compression)
	}
	return writer, nil
}

// Create starts a journal that will appear at path when Close
// succeeds. Events are written to path+".tmp" in the meantime. The
// parent directory must already exist.
func Create(path string, compression Compression) (*Writer, error) {
	temporaryPath := path + ".tmp"
	file, err := os.OpenFile(temporaryPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("creating temporary journal file: %w", err)
	}
	writer, err := NewWriter(file, compression)
	if err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return nil, err
	}
	writer.file = file
	writer.path = path
	writer.temporaryPath = temporaryPath
	return writer, nil
}

// Append encodes event and folds it into the running digest.
func (w *Writer) Append(event timer.TimeEvent) error {
	data, err := codec.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding event %s: %w", event.EventID, err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	if _, err := w.output.Write(data); err != nil {
		return fmt.Errorf("writing event %s: %w", event.EventID, err)
	}
	w.hasher.Write(data)
	w.count++
	return nil
}

// Count returns the number of events appended so far.
func (w *Writer) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

// Digest returns the digest of the events appended so far.
func (w *Writer) Digest() Digest {
	w.mu.Lock()
	defer w.mu.Unlock()
	return sumDigest(w.hasher)
}

// Path returns the final path of a journal started with Create, or
// the empty string.
func (w *Writer) Path() string { return w.path }

// Close flushes the journal. For a journal started with Create, the
// temporary file is synced, closed and renamed into place, then the
// parent directory is synced so the rename survives power loss. On
// any failure the temporary file is removed. Closing twice is a
// no-op.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true

	if w.compressor != nil {
		if err := w.compressor.Close(); err != nil {
			w.removeTemporary()
			return fmt.Errorf("flushing zstd stream: %w", err)
		}
	}
	if w.file == nil {
		return nil
	}

	if err := w.file.Sync(); err != nil {
		w.removeTemporary()
		return fmt.Errorf("syncing temporary journal file: %w", err)
	}
	if err := w.file.Close(); err != nil {
		os.Remove(w.temporaryPath)
		return fmt.Errorf("closing temporary journal file: %w", err)
	}
	if err := os.Rename(w.temporaryPath, w.path); err != nil {
		os.Remove(w.temporaryPath)
		return fmt.Errorf("renaming journal into place: %w", err)
	}

	parentDirectory, err := os.Open(filepath.Dir(w.path))
	if err == nil {
		parentDirectory.Sync()
		parentDirectory.Close()
	}
	return nil
}

// Discard abandons the journal. For a journal started with Create,
// the temporary file is removed and nothing appears at the final
// path. Discard after Close is a no-op.
func (w *Writer) Discard() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.closed = true
	if w.compressor != nil {
		w.compressor.Close()
	}
	if w.file != nil {
		w.removeTemporary()
	}
}

// removeTemporary must be called with w.mu held.
func (w *Writer) removeTemporary() {
	if w.file != nil {
		w.file.Close()
		os.Remove(w.temporaryPath)
	}
}
