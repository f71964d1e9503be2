// Copyright 2013 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package bloom implements the per-file bloom filter named as an external
// collaborator in the spec (§1, §4.6). The encoding is unchanged from
// classic LevelDB's bloom filter, taken from leveldb-go's
// leveldb/bloom/bloom.go; the same Murmur-style hash is reused by
// internal/guard for the guard-candidate predicate, mirroring how
// PebblesDB's C++ source reuses MurmurHash3_x86_32 for both.
package bloom

import "github.com/ehds/guardedkv/internal/base"

// FilterPolicy implements base.FilterPolicy with bitsPerKey bits of
// filter data per added key.
type FilterPolicy int

// NewPolicy returns a FilterPolicy with the given bits-per-key.
func NewPolicy(bitsPerKey int) base.FilterPolicy {
	return FilterPolicy(bitsPerKey)
}

func (p FilterPolicy) Name() string { return "guardedkv.BuiltinBloomFilter" }

func (p FilterPolicy) NewFilter(keys [][]byte) []byte {
	return NewFilter(nil, keys, int(p))
}

func (p FilterPolicy) MayContain(filter, key []byte) bool {
	return Filter(filter).MayContain(key)
}

// Filter is an encoded set of []byte keys.
type Filter []byte

// MayContain returns whether the filter may contain the given key. False
// positives are possible; false negatives are not.
func (f Filter) MayContain(key []byte) bool {
	if len(f) < 2 {
		return false
	}
	k := f[len(f)-1]
	if k > 30 {
		// Reserved for potential future short-filter encodings; treat as a
		// match to stay on the safe (no-false-negative) side.
		return true
	}
	nBits := uint32(8 * (len(f) - 1))
	h := hash(key)
	delta := h>>17 | h<<15
	for j := uint8(0); j < k; j++ {
		bitPos := h % nBits
		if f[bitPos/8]&(1<<(bitPos%8)) == 0 {
			return false
		}
		h += delta
	}
	return true
}

// NewFilter returns a new Bloom filter encoding keys with bitsPerKey bits
// per key. The returned Filter may reuse buf if it is large enough.
func NewFilter(buf []byte, keys [][]byte, bitsPerKey int) Filter {
	if bitsPerKey < 0 {
		bitsPerKey = 0
	}
	// 0.69 is approximately ln(2), the bits-per-key to hash-count ratio
	// that minimizes the false-positive rate.
	k := uint32(float64(bitsPerKey) * 0.69)
	if k < 1 {
		k = 1
	}
	if k > 30 {
		k = 30
	}

	nBits := len(keys) * bitsPerKey
	if nBits < 64 {
		nBits = 64
	}
	nBytes := (nBits + 7) / 8
	nBits = nBytes * 8

	if nBytes+1 <= cap(buf) {
		buf = buf[:nBytes+1]
		for i := range buf {
			buf[i] = 0
		}
	} else {
		buf = make([]byte, nBytes+1)
	}

	for _, key := range keys {
		h := hash(key)
		delta := h>>17 | h<<15
		for j := uint32(0); j < k; j++ {
			bitPos := h % uint32(nBits)
			buf[bitPos/8] |= 1 << (bitPos % 8)
			h += delta
		}
	}
	buf[nBytes] = uint8(k)
	return Filter(buf)
}

// Hash is the Murmur-style 32-bit hash shared by the bloom filter and the
// guard-candidate predicate.
func Hash(b []byte) uint32 { return hash(b) }

func hash(b []byte) uint32 {
	const (
		seed = 0xbc9f1d34
		m    = 0xc6a4a793
	)
	h := uint32(seed) ^ uint32(len(b)*m)
	for ; len(b) >= 4; b = b[4:] {
		h += uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
		h *= m
		h ^= h >> 16
	}
	switch len(b) {
	case 3:
		h += uint32(b[2]) << 16
		fallthrough
	case 2:
		h += uint32(b[1]) << 8
		fallthrough
	case 1:
		h += uint32(b[0])
		h *= m
		h ^= h >> 24
	}
	return h
}
