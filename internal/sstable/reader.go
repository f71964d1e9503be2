// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package sstable

import (
	"encoding/binary"

	"github.com/ehds/guardedkv/internal/base"
	"github.com/ehds/guardedkv/vfs"
)

// Reader opens a table file for point lookups and iteration. One
// Reader is cached per table by internal/tablecache (spec §4.6).
type Reader struct {
	file         vfs.File
	size         int64
	filterPolicy base.FilterPolicy
	ucmp         base.Compare

	indexHandle  BlockHandle
	filterHandle BlockHandle
	haveFilter   bool

	filterBlock []byte
}

// NewReader opens a Reader over file, whose size must be size bytes.
func NewReader(file vfs.File, size int64, ucmp base.Compare, filterPolicy base.FilterPolicy) (*Reader, error) {
	r := &Reader{file: file, size: size, ucmp: ucmp, filterPolicy: filterPolicy}
	if err := r.readFooter(); err != nil {
		return nil, err
	}
	if r.haveFilter && filterPolicy != nil {
		block, err := r.readBlock(r.filterHandle)
		if err != nil {
			return nil, err
		}
		r.filterBlock = block
	}
	return r, nil
}

func (r *Reader) readFooter() error {
	if r.size < int64(footerBufLen) {
		return ErrCorrupt
	}
	buf := make([]byte, footerBufLen)
	if _, err := r.file.ReadAt(buf, r.size-int64(footerBufLen)); err != nil {
		return err
	}
	if binary.LittleEndian.Uint64(buf[len(buf)-8:]) != magicNumber {
		return ErrCorrupt
	}
	n := 0
	filterOffset, m := binary.Uvarint(buf[n:])
	n += m
	filterLength, m := binary.Uvarint(buf[n:])
	n += m
	indexOffset, m := binary.Uvarint(buf[n:])
	n += m
	indexLength, _ := binary.Uvarint(buf[n:])

	r.indexHandle = BlockHandle{Offset: indexOffset, Length: indexLength}
	if filterLength != 0 {
		r.haveFilter = true
		r.filterHandle = BlockHandle{Offset: filterOffset, Length: filterLength}
	}
	return nil
}

// footerBufLen is the fixed size Writer.Close pads the footer to.
const footerBufLen = footerLen + 2*binary.MaxVarintLen64

func (r *Reader) readBlock(h BlockHandle) ([]byte, error) {
	raw := make([]byte, h.Length)
	if _, err := r.file.ReadAt(raw, int64(h.Offset)); err != nil {
		return nil, err
	}
	return decompressBlock(raw)
}

// MayContain reports whether key might be present in the table,
// consulting the filter block if one was written.
func (r *Reader) MayContain(key []byte) bool {
	if !r.haveFilter || r.filterPolicy == nil {
		return true
	}
	return r.filterPolicy.MayContain(r.filterBlock, key)
}

// Get looks up ikey.UserKey, returning the first internal key >= ikey
// sharing the same user key.
func (r *Reader) Get(ikey base.InternalKey) (base.InternalKey, []byte, bool, error) {
	it, err := r.SeekGE(ikey)
	if err != nil || it == nil {
		return base.InternalKey{}, nil, false, err
	}
	defer it.Close()
	if !it.Next() {
		return base.InternalKey{}, nil, false, nil
	}
	if r.ucmp(it.Key().UserKey, ikey.UserKey) != 0 {
		return base.InternalKey{}, nil, false, nil
	}
	return it.Key(), it.Value(), true, nil
}

// SeekGE returns an Iterator positioned so that its first Next() call
// yields the first entry >= key, or nil if the filter conclusively
// rules the key out.
func (r *Reader) SeekGE(key base.InternalKey) (*Iterator, error) {
	if !r.MayContain(key.UserKey) {
		return nil, nil
	}
	indexBlock, err := r.readBlock(r.indexHandle)
	if err != nil {
		return nil, err
	}
	idxIter, err := newBlockIter(indexBlock)
	if err != nil {
		return nil, err
	}
	target := key.EncodeTo(nil)
	var dataHandle BlockHandle
	found := false
	for idxIter.Next() {
		if base.InternalCompareEncoded(r.ucmp, idxIter.Key(), target) >= 0 {
			h, _ := decodeBlockHandle(idxIter.Value())
			dataHandle = h
			found = true
			break
		}
	}
	if !found {
		return &Iterator{exhausted: true}, nil
	}
	dataBlock, err := r.readBlock(dataHandle)
	if err != nil {
		return nil, err
	}
	dataIter, err := newBlockIter(dataBlock)
	if err != nil {
		return nil, err
	}
	it := &Iterator{reader: r, iter: dataIter, target: target, seeking: true}
	return it, nil
}

// NewIterator returns an Iterator over the whole table in key order,
// used by flush/compaction's merging iterator (spec §4.7) and by full
// table scans.
func (r *Reader) NewIterator() (*Iterator, error) {
	indexBlock, err := r.readBlock(r.indexHandle)
	if err != nil {
		return nil, err
	}
	idxIter, err := newBlockIter(indexBlock)
	if err != nil {
		return nil, err
	}
	return &Iterator{reader: r, idxIter: idxIter, fullScan: true}, nil
}

// Close releases the reader's underlying file handle.
func (r *Reader) Close() error { return r.file.Close() }

// Iterator iterates over a table's entries, either restricted to a
// single data block (as produced by SeekGE) or across the whole table
// (as produced by NewIterator).
type Iterator struct {
	reader    *Reader
	idxIter   *blockIter
	iter      *blockIter
	target    []byte
	seeking   bool
	fullScan  bool
	exhausted bool
}

// Next advances to the next entry, returning false when the iterator
// is exhausted.
func (it *Iterator) Next() bool {
	if it.exhausted {
		return false
	}
	if it.seeking {
		it.seeking = false
		for it.iter.Next() {
			if base.InternalCompareEncoded(it.reader.ucmp, it.iter.Key(), it.target) >= 0 {
				return true
			}
		}
		return it.advanceBlock()
	}
	if it.iter != nil && it.iter.Next() {
		return true
	}
	return it.advanceBlock()
}

func (it *Iterator) advanceBlock() bool {
	if !it.fullScan || it.idxIter == nil {
		it.exhausted = true
		return false
	}
	if !it.idxIter.Next() {
		it.exhausted = true
		return false
	}
	h, _ := decodeBlockHandle(it.idxIter.Value())
	block, err := it.reader.readBlock(h)
	if err != nil {
		it.exhausted = true
		return false
	}
	bi, err := newBlockIter(block)
	if err != nil {
		it.exhausted = true
		return false
	}
	it.iter = bi
	return it.Next()
}

// Key returns the current entry's internal key. Valid only if Next
// most recently returned true.
func (it *Iterator) Key() base.InternalKey { return base.DecodeInternalKey(it.iter.Key()) }

// Value returns the current entry's value.
func (it *Iterator) Value() []byte { return it.iter.Value() }

// Close is a no-op; Iterator does not itself own the table file.
func (it *Iterator) Close() error { return nil }
