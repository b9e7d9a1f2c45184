// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package journal

import (
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/timekeeper/lib/codec"
	"github.com/bureau-foundation/timekeeper/lib/timer"
)

// digestSize is the BLAKE3 output length used for digests.
const digestSize = 32

// Digest is a BLAKE3 fingerprint of an event stream.
type Digest [digestSize]byte

// String returns the lowercase hex encoding of the digest.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// IsZero reports whether d is the zero value. No event stream hashes
// to the zero digest in practice.
func (d Digest) IsZero() bool {
	return d == Digest{}
}

// digestDomainKey is the BLAKE3 key for journal digests: the ASCII
// domain name, zero-padded to 32 bytes. Changing it invalidates every
// recorded digest.
var digestDomainKey = [32]byte{
	't', 'i', 'm', 'e', 'k', 'e', 'e', 'p', 'e', 'r', '.', 'j', 'o', 'u', 'r', 'n',
	'a', 'l', '.', 'd', 'i', 'g', 'e', 's', 't', 0, 0, 0, 0, 0, 0, 0,
}

func newDigestHasher() *blake3.Hasher {
	hasher, err := blake3.NewKeyed(digestDomainKey[:])
	if err != nil {
		panic("journal: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	return hasher
}

func sumDigest(hasher *blake3.Hasher) Digest {
	var digest Digest
	copy(digest[:], hasher.Sum(nil))
	return digest
}

// DigestEvents returns the digest a Writer would report after
// appending events in order. The empty stream has a well-defined
// digest (the keyed hash of no input).
func DigestEvents(events []timer.TimeEvent) (Digest, error) {
	hasher := newDigestHasher()
	for i, event := range events {
		data, err := codec.Marshal(event)
		if err != nil {
			return Digest{}, fmt.Errorf("encoding event %d (%s): %w", i, event.Name, err)
		}
		hasher.Write(data)
	}
	return sumDigest(hasher), nil
}

// ParseDigest parses the hex form produced by Digest.String.
func ParseDigest(text string) (Digest, error) {
	raw, err := hex.DecodeString(text)
	if err != nil {
		return Digest{}, fmt.Errorf("parsing digest: %w", err)
	}
	if len(raw) != digestSize {
		return Digest{}, fmt.Errorf("parsing digest: got %d bytes, want %d", len(raw), digestSize)
	}
	var digest Digest
	copy(digest[:], raw)
	return digest, nil
}
