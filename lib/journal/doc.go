// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package journal records fired time events to disk and fingerprints
// the recorded stream.
//
// A journal is a CBOR sequence (RFC 8742) of [timer.TimeEvent] items
// encoded with lib/codec's deterministic mode, optionally wrapped in a
// zstd frame. Readers detect compression from the zstd magic number,
// so the file name carries no meaning.
//
// [Create] writes to a temporary file next to the destination and
// renames it into place on [Writer.Close], after an fsync. A reader
// never observes a partially written journal.
//
// Every writer maintains a running [Digest]: a BLAKE3 hash, keyed
// with a fixed domain key, over the canonical encoding of each event
// in append order. Compression does not affect the digest. Two
// backtests of the same configuration produce the same digest; any
// difference in event names, IDs, timestamps or order changes it.
//
// A journal is write-once history. Nothing reads a journal back into
// a clock.
package journal
