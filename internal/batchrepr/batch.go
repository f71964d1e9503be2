// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package batchrepr implements the write-batch wire format named in the
// spec's write pipeline (§4.1): an 8-byte little-endian sequence-number
// header (filled in at commit time, once the leader has assigned the
// batch its starting sequence number), a 4-byte little-endian count of
// contained records, and then one record per mutation: a one-byte kind,
// a varint-length-prefixed key and, for Set records, a
// varint-length-prefixed value. This is the shape leveldb-go's
// leveldb/batch.go documents in its package comment but never actually
// implements (Set and Delete both panic("unimplemented") there); the
// layout itself is unchanged from classic LevelDB's WriteBatch.
package batchrepr

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"

	"github.com/ehds/guardedkv/internal/base"
)

// headerLen is the size of the sequence-number + count header that
// prefixes every batch's representation.
const headerLen = 8 + 4

// Batch accumulates Set and Delete records in the on-disk wire format,
// ready to be appended to the WAL verbatim and replayed into a memtable.
type Batch struct {
	data  []byte
	count uint32
}

// New returns an empty Batch with its header reserved.
func New() *Batch {
	b := &Batch{data: make([]byte, headerLen)}
	return b
}

// Reset clears b for reuse, matching the teacher's Batch.Reset, so
// write-pipeline callers can pool Batches across commits.
func (b *Batch) Reset() {
	if cap(b.data) >= headerLen {
		b.data = b.data[:headerLen]
		for i := range b.data {
			b.data[i] = 0
		}
	} else {
		b.data = make([]byte, headerLen)
	}
	b.count = 0
}

// Set appends a Set record for (key, value).
func (b *Batch) Set(key, value []byte) {
	b.data = append(b.data, byte(base.InternalKeyKindSet))
	b.data = appendVarintBytes(b.data, key)
	b.data = appendVarintBytes(b.data, value)
	b.count++
}

// Delete appends a Delete record for key.
func (b *Batch) Delete(key []byte) {
	b.data = append(b.data, byte(base.InternalKeyKindDelete))
	b.data = appendVarintBytes(b.data, key)
	b.count++
}

// Count returns the number of records appended so far.
func (b *Batch) Count() uint32 { return b.count }

// Empty reports whether the batch has no records.
func (b *Batch) Empty() bool { return b.count == 0 }

// Len returns the size in bytes of the batch's wire representation,
// including its header.
func (b *Batch) Len() int { return len(b.data) }

// SetSeqNum overwrites the batch's header with seqNum, the sequence
// number of the first record in the batch. Every record in the batch is
// assigned seqNum+i for its index i among the batch's records, mirroring
// classic LevelDB's WriteBatchInternal::SetSequence.
func (b *Batch) SetSeqNum(seqNum base.SeqNum) {
	binary.LittleEndian.PutUint64(b.data[:8], uint64(seqNum))
	binary.LittleEndian.PutUint32(b.data[8:headerLen], b.count)
}

// SeqNum returns the sequence number most recently set by SetSeqNum.
func (b *Batch) SeqNum() base.SeqNum {
	return base.SeqNum(binary.LittleEndian.Uint64(b.data[:8]))
}

// Data returns the batch's encoded representation, suitable for
// appending directly to the WAL.
func (b *Batch) Data() []byte { return b.data }

// AppendFrom appends src's records onto b, used by the write pipeline to
// coalesce several queued batches into the single batch actually
// written to the WAL (spec §4.1). b's own header is left untouched;
// callers call SetSeqNum once the merged batch's starting sequence
// number is known.
func (b *Batch) AppendFrom(src *Batch) {
	if src.count == 0 {
		return
	}
	b.data = append(b.data, src.data[headerLen:]...)
	b.count += src.count
}

// SetData replaces the batch's encoded representation wholesale, used
// when replaying a record read back out of the WAL.
func (b *Batch) SetData(data []byte) error {
	if len(data) < headerLen {
		return errors.Wrapf(base.ErrCorruption, "batchrepr: batch too small: %d bytes", len(data))
	}
	b.data = data
	b.count = binary.LittleEndian.Uint32(data[8:headerLen])
	return nil
}

func appendVarintBytes(dst []byte, b []byte) []byte {
	var buf [binary.MaxVarintLen32]byte
	n := binary.PutUvarint(buf[:], uint64(len(b)))
	dst = append(dst, buf[:n]...)
	return append(dst, b...)
}

// Record is one decoded entry from a Batch.
type Record struct {
	Kind  base.InternalKeyKind
	Key   []byte
	Value []byte
}

// Reader iterates over the records encoded in a batch's Data(), in
// order. It is the replay-time counterpart to Batch's Set/Delete.
type Reader struct {
	data []byte
	err  error
}

// NewReader returns a Reader over data, which must be a batch's full
// wire representation including its header.
func NewReader(data []byte) (*Reader, error) {
	if len(data) < headerLen {
		return nil, errors.Wrapf(base.ErrCorruption, "batchrepr: batch too small: %d bytes", len(data))
	}
	return &Reader{data: data[headerLen:]}, nil
}

// Next returns the next record, or io.EOF-shaped (ok=false, err=nil)
// when the reader is exhausted.
func (r *Reader) Next() (rec Record, ok bool, err error) {
	if r.err != nil {
		return Record{}, false, r.err
	}
	if len(r.data) == 0 {
		return Record{}, false, nil
	}
	kind := base.InternalKeyKind(r.data[0])
	r.data = r.data[1:]
	key, err := r.readVarintBytes()
	if err != nil {
		r.err = err
		return Record{}, false, err
	}
	rec = Record{Kind: kind, Key: key}
	if kind == base.InternalKeyKindSet {
		value, err := r.readVarintBytes()
		if err != nil {
			r.err = err
			return Record{}, false, err
		}
		rec.Value = value
	}
	return rec, true, nil
}

func (r *Reader) readVarintBytes() ([]byte, error) {
	length, n := binary.Uvarint(r.data)
	if n <= 0 {
		return nil, errors.Wrapf(base.ErrCorruption, "batchrepr: invalid varint length")
	}
	r.data = r.data[n:]
	if uint64(len(r.data)) < length {
		return nil, errors.Wrapf(base.ErrCorruption, "batchrepr: record length %d exceeds remaining %d bytes", length, len(r.data))
	}
	b := r.data[:length]
	r.data = r.data[length:]
	return b, nil
}

// SeqNum extracts the sequence-number header from a batch's encoded
// representation without fully parsing it.
func SeqNum(data []byte) base.SeqNum {
	return base.SeqNum(binary.LittleEndian.Uint64(data[:8]))
}

// Count extracts the record-count header from a batch's encoded
// representation without fully parsing it.
func Count(data []byte) uint32 {
	return binary.LittleEndian.Uint32(data[8:headerLen])
}
