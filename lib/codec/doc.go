// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides timekeeper's standard CBOR encoding
// configuration.
//
// Fired events are journaled as a CBOR sequence (RFC 8742): one
// encoded item per event, concatenated with no framing. The encoder
// uses Core Deterministic Encoding (RFC 8949 §4.2), so the same event
// stream always produces identical bytes. The journal digest depends
// on that property: two backtests over the same configuration must
// hash to the same value.
//
// For buffer-oriented operations:
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// For stream-oriented operations (journal files):
//
//	encoder := codec.NewEncoder(file)
//	decoder := codec.NewDecoder(file)
//
// Types that are only ever serialized as CBOR use `cbor` struct tags.
package codec
