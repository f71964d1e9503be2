// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package guardedkv

import (
	"sort"

	"github.com/ehds/guardedkv/internal/base"
	"github.com/ehds/guardedkv/internal/manifest"
)

// iterSource is a single sorted (by InternalCompare) stream of internal
// keys: the live memtable, the immutable memtable, a single L0 file, or
// the concatenation of a level ≥ 1's non-overlapping files (spec §4.7).
// *memtable.Iterator already satisfies this directly.
type iterSource interface {
	SeekGE(key base.InternalKey) bool
	SeekLE(key base.InternalKey) bool
	Last() bool
	Valid() bool
	Key() base.InternalKey
	Value() []byte
}

type tableEntry struct {
	key   base.InternalKey
	value []byte
}

// tableSource is an iterSource over entries read once from one or more
// on-disk tables and held in memory for the iterator's lifetime. This
// trades the memory of materializing the level against the complexity
// of a true seekable on-disk reverse iterator, which Iterator's
// sstable.Reader does not provide (spec §9 notes this kind of
// trade-off is expected at the margins of the core design).
type tableSource struct {
	ucmp    base.Compare
	entries []tableEntry
	pos     int
}

// searchGE returns the index of the first entry >= key.
func (s *tableSource) searchGE(key base.InternalKey) int {
	return sort.Search(len(s.entries), func(i int) bool {
		return base.InternalCompare(s.ucmp, s.entries[i].key, key) >= 0
	})
}

// searchGT returns the index of the first entry > key.
func (s *tableSource) searchGT(key base.InternalKey) int {
	return sort.Search(len(s.entries), func(i int) bool {
		return base.InternalCompare(s.ucmp, s.entries[i].key, key) > 0
	})
}

func (s *tableSource) SeekGE(key base.InternalKey) bool {
	s.pos = s.searchGE(key)
	return s.Valid()
}

func (s *tableSource) SeekLE(key base.InternalKey) bool {
	s.pos = s.searchGT(key) - 1
	return s.Valid()
}

func (s *tableSource) Last() bool {
	s.pos = len(s.entries) - 1
	return s.Valid()
}

func (s *tableSource) Valid() bool { return s.pos >= 0 && s.pos < len(s.entries) }

func (s *tableSource) Key() base.InternalKey { return s.entries[s.pos].key }

func (s *tableSource) Value() []byte { return s.entries[s.pos].value }

// loadTableEntries reads fileNum's entries in full into memory.
func loadTableEntries(d *DB, fileNum base.FileNum) ([]tableEntry, error) {
	it, h, err := d.tableCache.NewIterator(fileNum)
	if err != nil {
		return nil, err
	}
	defer h.Close()
	defer it.Close()

	var entries []tableEntry
	for it.Next() {
		entries = append(entries, tableEntry{key: it.Key().Clone(), value: append([]byte(nil), it.Value()...)})
	}
	return entries, nil
}

// Iterator is a snapshot-consistent, bidirectional iterator over a DB's
// key/value pairs in user-key order (spec §4.7, §6). It must be closed
// after use; it is not safe for concurrent use by multiple goroutines.
type Iterator struct {
	d       *DB
	ver     *manifest.Version
	seqNum  base.SeqNum
	sources []iterSource

	valid bool
	key   []byte
	value []byte
	err   error
}

// NewIterator returns an iterator observing the database as of
// opts.Snapshot, or as of the most recently committed write if opts is
// nil or has no Snapshot set. The iterator pins the Version it was
// opened against; Close releases that pin.
func (d *DB) NewIterator(opts *ReadOptions) (*Iterator, error) {
	d.mu.Lock()
	seqNum := d.versions.LastSequence()
	if opts != nil && opts.Snapshot != nil {
		seqNum = opts.Snapshot.seqNum
	}
	ver := d.versions.Current()
	ver.Ref()
	mem, imm := d.mem, d.imm
	d.mu.Unlock()

	it := &Iterator{d: d, ver: ver, seqNum: seqNum}
	it.sources = append(it.sources, mem.Iterator())
	if imm != nil {
		it.sources = append(it.sources, imm.Iterator())
	}

	for _, f := range ver.Files[0] {
		entries, err := loadTableEntries(d, f.FileNum)
		if err != nil {
			it.Close()
			return nil, err
		}
		it.sources = append(it.sources, &tableSource{ucmp: d.ucmp, entries: entries, pos: -1})
	}
	for level := 1; level < manifest.NumLevels; level++ {
		if len(ver.Files[level]) == 0 {
			continue
		}
		var entries []tableEntry
		for _, f := range ver.Files[level] {
			fe, err := loadTableEntries(d, f.FileNum)
			if err != nil {
				it.Close()
				return nil, err
			}
			entries = append(entries, fe...)
		}
		it.sources = append(it.sources, &tableSource{ucmp: d.ucmp, entries: entries, pos: -1})
	}
	return it, nil
}

// resolveNewest reports the newest version of userKey visible at
// it.seqNum across all sources, by seeking each to userKey's floor and
// taking the smallest resulting internal key (the InternalCompare
// comparator orders a user key's versions from newest to oldest).
func (it *Iterator) resolveNewest(userKey []byte) (kind base.InternalKeyKind, value []byte, ok bool) {
	seek := base.InternalKey{UserKey: userKey, Trailer: base.MakeTrailer(it.seqNum, base.InternalKeyKindMax)}
	best := -1
	for i, s := range it.sources {
		if !s.SeekGE(seek) {
			continue
		}
		if it.d.ucmp(s.Key().UserKey, userKey) != 0 {
			continue
		}
		if best == -1 || base.InternalCompare(it.d.ucmp, s.Key(), it.sources[best].Key()) < 0 {
			best = i
		}
	}
	if best == -1 {
		return 0, nil, false
	}
	return it.sources[best].Key().Kind(), it.sources[best].Value(), true
}

// advance resolves the first visible, non-tombstone entry whose user
// key is strictly greater than floor (nil meaning "from the start"),
// skipping over shadowed or deleted user keys along the way.
func (it *Iterator) advance(floor []byte) bool {
	cur := floor
	atStart := cur == nil
	for {
		var best []byte
		for _, s := range it.sources {
			var found bool
			if atStart {
				found = s.SeekGE(base.InternalKey{})
			} else {
				// The zero trailer sorts after every real entry sharing
				// cur's user key (sequence 0 is never assigned to a live
				// write), so this lands on the first entry of the next
				// greater user key.
				found = s.SeekGE(base.InternalKey{UserKey: cur})
			}
			if !found {
				continue
			}
			uk := s.Key().UserKey
			if best == nil || it.d.ucmp(uk, best) < 0 {
				best = uk
			}
		}
		atStart = false
		if best == nil {
			it.valid = false
			return false
		}
		if kind, val, ok := it.resolveNewest(best); ok && kind != base.InternalKeyKindDelete {
			it.key, it.value, it.valid = best, val, true
			return true
		}
		cur = best
	}
}

// retreat is advance's mirror image: it resolves the first visible,
// non-tombstone entry whose user key is strictly less than ceil (nil
// meaning "from the end").
func (it *Iterator) retreat(ceil []byte) bool {
	cur := ceil
	atEnd := cur == nil
	for {
		var best []byte
		for _, s := range it.sources {
			var found bool
			if atEnd {
				found = s.Last()
			} else {
				floor := base.InternalKey{UserKey: cur, Trailer: base.MakeTrailer(base.SeqNumMax, base.InternalKeyKindMax)}
				found = s.SeekLE(floor)
			}
			if !found {
				continue
			}
			uk := s.Key().UserKey
			if best == nil || it.d.ucmp(uk, best) > 0 {
				best = uk
			}
		}
		atEnd = false
		if best == nil {
			it.valid = false
			return false
		}
		if kind, val, ok := it.resolveNewest(best); ok && kind != base.InternalKeyKindDelete {
			it.key, it.value, it.valid = best, val, true
			return true
		}
		cur = best
	}
}

// First positions the iterator at the first key.
func (it *Iterator) First() bool { return it.advance(nil) }

// Last positions the iterator at the last key.
func (it *Iterator) Last() bool { return it.retreat(nil) }

// SeekGE positions the iterator at the first key >= key.
func (it *Iterator) SeekGE(key []byte) bool {
	// advance(floor) searches strictly past floor, so back up one byte
	// of "user key space" by searching from one below key: resolve key
	// itself directly first, then fall back to strictly-greater.
	if kind, val, ok := it.resolveNewest(key); ok && kind != base.InternalKeyKindDelete {
		it.key, it.value, it.valid = append([]byte(nil), key...), val, true
		return true
	}
	return it.advance(key)
}

// SeekLE positions the iterator at the last key <= key.
func (it *Iterator) SeekLE(key []byte) bool {
	if kind, val, ok := it.resolveNewest(key); ok && kind != base.InternalKeyKindDelete {
		it.key, it.value, it.valid = append([]byte(nil), key...), val, true
		return true
	}
	return it.retreat(key)
}

// Next moves to the next key (spec §4.7). Switching from reverse
// traversal costs an internal reseek, same as the teacher's own
// iterator.
func (it *Iterator) Next() bool {
	if !it.valid {
		return false
	}
	return it.advance(it.key)
}

// Prev moves to the previous key.
func (it *Iterator) Prev() bool {
	if !it.valid {
		return false
	}
	return it.retreat(it.key)
}

// Valid reports whether the iterator is positioned at an entry.
func (it *Iterator) Valid() bool { return it.valid }

// Key returns the current entry's user key.
func (it *Iterator) Key() []byte { return it.key }

// Value returns the current entry's value.
func (it *Iterator) Value() []byte { return it.value }

// Close releases the iterator's pin on its Version. It is an error to
// use the iterator after Close.
func (it *Iterator) Close() error {
	if it.ver != nil {
		it.d.mu.Lock()
		it.ver.Unref()
		it.d.mu.Unlock()
		it.ver = nil
	}
	return it.err
}
