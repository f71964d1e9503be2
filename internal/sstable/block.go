// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package sstable

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
	"github.com/golang/snappy"
)

// compressBlock appends compression type and checksum trailer bytes to
// a copy of raw, compressing it first if compression is requested.
func compressBlock(raw []byte, compression Compression) []byte {
	var payload []byte
	switch compression {
	case SnappyCompression:
		payload = snappy.Encode(nil, raw)
	default:
		payload = raw
	}
	out := make([]byte, len(payload)+blockTrailerLen)
	copy(out, payload)
	out[len(payload)] = byte(compression)
	checksum := xxhash.Sum64(out[:len(payload)+1])
	binary.LittleEndian.PutUint64(out[len(payload)+1:], checksum)
	return out
}

// decompressBlock validates a block's trailer checksum and returns its
// decompressed payload.
func decompressBlock(b []byte) ([]byte, error) {
	if len(b) < blockTrailerLen {
		return nil, ErrCorrupt
	}
	payloadLen := len(b) - blockTrailerLen
	compression := Compression(b[payloadLen])
	wantChecksum := binary.LittleEndian.Uint64(b[payloadLen+1:])
	gotChecksum := xxhash.Sum64(b[:payloadLen+1])
	if gotChecksum != wantChecksum {
		return nil, ErrCorrupt
	}
	payload := b[:payloadLen]
	switch compression {
	case SnappyCompression:
		return snappy.Decode(nil, payload)
	default:
		return payload, nil
	}
}

// blockIter iterates over the key/value pairs of a single decompressed
// data or index block.
type blockIter struct {
	data     []byte
	restarts []uint32
	offset   int
	key      []byte
	value    []byte
}

func newBlockIter(block []byte) (*blockIter, error) {
	if len(block) < 4 {
		return nil, ErrCorrupt
	}
	numRestarts := binary.LittleEndian.Uint32(block[len(block)-4:])
	restartsStart := len(block) - 4 - int(numRestarts)*4
	if restartsStart < 0 {
		return nil, ErrCorrupt
	}
	restarts := make([]uint32, numRestarts)
	for i := range restarts {
		restarts[i] = binary.LittleEndian.Uint32(block[restartsStart+i*4:])
	}
	return &blockIter{data: block[:restartsStart], restarts: restarts}, nil
}

// Next decodes the entry at the current offset and advances past it,
// sharing its key prefix with the previously decoded key when the
// entry is not itself a restart point.
func (i *blockIter) Next() bool {
	if i.offset >= len(i.data) {
		return false
	}
	shared, n := binary.Uvarint(i.data[i.offset:])
	unshared, m := binary.Uvarint(i.data[i.offset+n:])
	valueLen, o := binary.Uvarint(i.data[i.offset+n+m:])
	start := i.offset + n + m + o
	key := make([]byte, int(shared)+int(unshared))
	copy(key, i.key[:shared])
	copy(key[shared:], i.data[start:start+int(unshared)])
	i.key = key
	i.value = i.data[start+int(unshared) : start+int(unshared)+int(valueLen)]
	i.offset = start + int(unshared) + int(valueLen)
	return true
}

// SeekToRestart positions the iterator to replay from restart point idx.
func (i *blockIter) SeekToRestart(idx int) {
	i.offset = int(i.restarts[idx])
	i.key = nil
}

func (i *blockIter) NumRestarts() int { return len(i.restarts) }

func (i *blockIter) Key() []byte   { return i.key }
func (i *blockIter) Value() []byte { return i.value }
