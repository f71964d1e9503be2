// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package sstable implements the on-disk table format named as an
// external collaborator in the spec (§1, §4.6): flush and compaction
// write tables, and reads seek into them through the tablecache. The
// layout is classic LevelDB's - a sequence of compressed data blocks,
// each with restart points for prefix-shared keys, an index block
// mapping the last key of each data block to its BlockHandle, an
// optional filter block, and a fixed-size footer with a magic number -
// generalized here to optionally Snappy-compress blocks and to check
// block integrity with an xxhash64 checksum instead of LevelDB's CRC32C,
// grounded on the codec choices named in the spec's domain stack.
package sstable

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"
)

// Compression identifies the per-block compression codec.
type Compression uint8

const (
	NoCompression     Compression = 0
	SnappyCompression Compression = 1
)

const (
	blockTrailerLen = 1 + 8 // 1-byte compression type + 8-byte xxhash64 checksum
	footerLen       = 8 + 8 + 8 // footer is footerLen+2*MaxVarintLen64 bytes: four handle uvarints, zero padding, 8-byte magic
	magicNumber     = 0xdb4775ab4775dbab
)

// BlockHandle locates a block within the table file.
type BlockHandle struct {
	Offset, Length uint64
}

func (h BlockHandle) encode(dst []byte) int {
	n := binary.PutUvarint(dst, h.Offset)
	n += binary.PutUvarint(dst[n:], h.Length)
	return n
}

func decodeBlockHandle(src []byte) (BlockHandle, int) {
	offset, n := binary.Uvarint(src)
	length, m := binary.Uvarint(src[n:])
	return BlockHandle{Offset: offset, Length: length}, n + m
}

// restartInterval is the number of keys between restart points within
// a data block, matching classic LevelDB's default.
const restartInterval = 16

// blockWriter accumulates key/value pairs for one block, sharing key
// prefixes with the preceding key except at restart points (spec
// §4.6's block format, unchanged from classic LevelDB).
type blockWriter struct {
	buf       []byte
	restarts  []uint32
	nEntries  int
	prevKey   []byte
}

func (w *blockWriter) add(key, value []byte) {
	var shared int
	if w.nEntries%restartInterval == 0 {
		w.restarts = append(w.restarts, uint32(len(w.buf)))
	} else {
		shared = sharedPrefixLen(w.prevKey, key)
	}
	unshared := len(key) - shared

	var tmp [binary.MaxVarintLen32 * 3]byte
	n := binary.PutUvarint(tmp[:], uint64(shared))
	n += binary.PutUvarint(tmp[n:], uint64(unshared))
	n += binary.PutUvarint(tmp[n:], uint64(len(value)))
	w.buf = append(w.buf, tmp[:n]...)
	w.buf = append(w.buf, key[shared:]...)
	w.buf = append(w.buf, value...)

	w.prevKey = append(w.prevKey[:0], key...)
	w.nEntries++
}

func (w *blockWriter) finish() []byte {
	for _, r := range w.restarts {
		w.buf = appendUint32(w.buf, r)
	}
	w.buf = appendUint32(w.buf, uint32(len(w.restarts)))
	return w.buf
}

func (w *blockWriter) empty() bool { return w.nEntries == 0 }

func (w *blockWriter) reset() {
	w.buf = w.buf[:0]
	w.restarts = w.restarts[:0]
	w.nEntries = 0
	w.prevKey = w.prevKey[:0]
}

func sharedPrefixLen(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return i
}

func appendUint32(dst []byte, v uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return append(dst, b[:]...)
}

// ErrCorrupt is returned for any table that fails a checksum or layout
// invariant.
var ErrCorrupt = errors.New("sstable: corrupt table")
