// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package sstable

import (
	"encoding/binary"
	"io"

	"github.com/ehds/guardedkv/internal/base"
)

// WriterOptions configures a new table's layout.
type WriterOptions struct {
	Compression  Compression
	FilterPolicy base.FilterPolicy
	BlockSize    int
}

// DefaultWriterOptions matches the spec's defaults (§6): Snappy
// compression and a 4KiB target block size.
func DefaultWriterOptions() WriterOptions {
	return WriterOptions{Compression: SnappyCompression, BlockSize: 4096}
}

// Writer builds one sstable, writing data blocks as keys accumulate and
// an index block plus optional filter block at Close.
type Writer struct {
	w    io.Writer
	opts WriterOptions

	offset int64
	dataBlock blockWriter
	indexBlock blockWriter

	filterKeys [][]byte

	smallest, largest base.InternalKey
	smallestSeqNum, largestSeqNum base.SeqNum
	haveKey bool
	count   int

	err error
}

// NewWriter returns a Writer that writes to w.
func NewWriter(w io.Writer, opts WriterOptions) *Writer {
	if opts.BlockSize == 0 {
		opts.BlockSize = 4096
	}
	return &Writer{w: w, opts: opts}
}

// Size reports the number of bytes written so far, including any data
// still buffered in the current block. Callers use this to decide when
// to close the table and start a new one (spec §4.3's output
// splitting).
func (w *Writer) Size() int64 {
	return w.offset + int64(len(w.dataBlock.buf))
}

// Add appends (key, value) to the table. Keys must be added in
// increasing InternalCompare order, the same invariant flush and
// compaction output already maintain (spec §4.3, §4.4).
func (w *Writer) Add(key base.InternalKey, value []byte) error {
	if w.err != nil {
		return w.err
	}
	if !w.haveKey {
		w.smallest = key.Clone()
		w.smallestSeqNum = key.SeqNum()
		w.largestSeqNum = key.SeqNum()
		w.haveKey = true
	}
	w.largest = key.Clone()
	if key.SeqNum() > w.largestSeqNum {
		w.largestSeqNum = key.SeqNum()
	}
	if key.SeqNum() < w.smallestSeqNum {
		w.smallestSeqNum = key.SeqNum()
	}
	w.count++

	if w.opts.FilterPolicy != nil {
		w.filterKeys = append(w.filterKeys, append([]byte(nil), key.UserKey...))
	}

	encoded := key.EncodeTo(nil)
	w.dataBlock.add(encoded, value)
	if len(w.dataBlock.buf) >= w.opts.BlockSize {
		return w.flushDataBlock(encoded)
	}
	return w.err
}

func (w *Writer) flushDataBlock(lastKey []byte) error {
	if w.dataBlock.empty() {
		return nil
	}
	raw := w.dataBlock.finish()
	handle, err := w.writeBlock(raw)
	if err != nil {
		return err
	}
	var buf [2 * binary.MaxVarintLen64]byte
	n := handle.encode(buf[:])
	w.indexBlock.add(lastKey, buf[:n])
	w.dataBlock.reset()
	return nil
}

func (w *Writer) writeBlock(raw []byte) (BlockHandle, error) {
	compressed := compressBlock(raw, w.opts.Compression)
	handle := BlockHandle{Offset: uint64(w.offset), Length: uint64(len(compressed))}
	if _, err := w.w.Write(compressed); err != nil {
		w.err = err
		return BlockHandle{}, err
	}
	w.offset += int64(len(compressed))
	return handle, nil
}

// Close flushes any pending data block, writes the index (and, if
// configured, filter) block, and writes the footer.
func (w *Writer) Close() (*TableMetadata, error) {
	if w.err != nil {
		return nil, w.err
	}
	if !w.dataBlock.empty() {
		if err := w.flushDataBlock(w.dataBlock.prevKey); err != nil {
			return nil, err
		}
	}

	var filterHandle BlockHandle
	haveFilter := w.opts.FilterPolicy != nil && len(w.filterKeys) > 0
	if haveFilter {
		filterData := w.opts.FilterPolicy.NewFilter(w.filterKeys)
		h, err := w.writeBlock(filterData)
		if err != nil {
			return nil, err
		}
		filterHandle = h
	}

	indexRaw := w.indexBlock.finish()
	indexHandle, err := w.writeBlock(indexRaw)
	if err != nil {
		return nil, err
	}

	var footer [footerLen + 2*binary.MaxVarintLen64]byte
	n := 0
	if haveFilter {
		n += binary.PutUvarint(footer[n:], filterHandle.Offset)
		n += binary.PutUvarint(footer[n:], filterHandle.Length)
	} else {
		n += binary.PutUvarint(footer[n:], 0)
		n += binary.PutUvarint(footer[n:], 0)
	}
	n += binary.PutUvarint(footer[n:], indexHandle.Offset)
	n += binary.PutUvarint(footer[n:], indexHandle.Length)
	// Pad to a fixed size so Reader can always seek footerLen-ish bytes
	// from the end; the magic number anchors the true end regardless.
	for n < len(footer)-8 {
		footer[n] = 0
		n++
	}
	binary.LittleEndian.PutUint64(footer[len(footer)-8:], magicNumber)
	if _, err := w.w.Write(footer[:]); err != nil {
		return nil, err
	}
	w.offset += int64(len(footer))

	return &TableMetadata{
		Size:           uint64(w.offset),
		Smallest:       w.smallest,
		Largest:        w.largest,
		SmallestSeqNum: w.smallestSeqNum,
		LargestSeqNum:  w.largestSeqNum,
	}, nil
}

// TableMetadata mirrors the bounds manifest.TableMetadata needs; it is
// declared here so that sstable does not import manifest.
type TableMetadata struct {
	Size                           uint64
	Smallest, Largest              base.InternalKey
	SmallestSeqNum, LargestSeqNum  base.SeqNum
}
