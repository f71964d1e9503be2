// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package memtable implements the in-memory ordered multimap named in
// the spec (§4.2): internal-key to value, ordered by the internal-key
// comparator (user key ascending, then sequence descending, then kind
// descending), backed by a probabilistic skiplist. The structure follows
// leveldb-go's leveldb/memdb/memdb.go, generalized from memdb's
// overwrite-in-place map semantics to the multimap semantics the spec
// requires: two Sets of the same user key at different sequence numbers
// are both retained as distinct entries until compaction resolves them.
package memtable

import (
	"sync"
	"sync/atomic"

	"github.com/ehds/guardedkv/internal/base"
)

const (
	maxHeight   = 12
	branching   = 4
	nodeHdrSize = 0
)

// node is a single skiplist node. next[h] points to the next node at
// height h; nil means "no next node".
type node struct {
	key    base.InternalKey
	value  []byte
	next   [maxHeight]*node
	height int
}

// Memtable is a single mutable skiplist-backed table. It is safe for
// concurrent readers and a single concurrent writer, matching the
// spec's single-writer-leader pipeline (§4.1): writes are always
// serialized through the write pipeline, but iterators and Get may run
// concurrently with an in-flight write.
type Memtable struct {
	cmp  base.Compare
	rand randSource

	mu   sync.RWMutex
	head node
	size int64 // approximate size in bytes of all keys+values inserted
}

// New returns an empty Memtable ordered by cmp over decoded internal
// keys.
func New(cmp base.Compare) *Memtable {
	m := &Memtable{cmp: cmp, rand: newRandSource(0xdeadbeef)}
	m.head.height = maxHeight
	return m
}

// Size returns the approximate memory footprint of the table, used by
// the write pipeline to decide when to rotate to an immutable table
// (spec §4.2, write_buffer_size).
func (m *Memtable) Size() int64 { return atomic.LoadInt64(&m.size) }

// Add inserts (key, value) in the order of InternalCompare. Two inserts
// of the same key compare equal under InternalCompare only when they
// are the literal same (user key, seqnum, kind) triple, which the
// write pipeline never produces twice; Add therefore never needs to
// overwrite an existing node.
func (m *Memtable) Add(key base.InternalKey, value []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	h := m.randHeight()
	n := &node{key: key, value: value, height: h}

	var prev [maxHeight]*node
	cur := &m.head
	for level := maxHeight - 1; level >= 0; level-- {
		for cur.next[level] != nil && m.less(cur.next[level].key, key) {
			cur = cur.next[level]
		}
		prev[level] = cur
	}
	for level := 0; level < h; level++ {
		n.next[level] = prev[level].next[level]
		prev[level].next[level] = n
	}
	atomic.AddInt64(&m.size, int64(len(key.UserKey)+len(value)+8+16))
}

func (m *Memtable) less(a, b base.InternalKey) bool {
	return base.InternalCompare(m.cmp, a, b) < 0
}

func (m *Memtable) randHeight() int {
	h := 1
	for h < maxHeight && m.rand.Intn(branching) == 0 {
		h++
	}
	return h
}

// Get looks up the newest value visible at or before snapshot for
// ukey. ok is false if no Set or Delete record for ukey is visible;
// kind distinguishes a live value from a tombstone.
func (m *Memtable) Get(ukey []byte, snapshot base.SeqNum) (value []byte, kind base.InternalKeyKind, ok bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seek := base.InternalKey{UserKey: ukey, Trailer: base.MakeTrailer(snapshot, base.InternalKeyKindMax)}
	n := m.seekGE(seek)
	if n == nil || !n.key.UserKeyEqual(m.cmp, ukey) {
		return nil, 0, false
	}
	return n.value, n.key.Kind(), true
}

// seekGE returns the first node whose key is >= target under
// InternalCompare, or nil if none.
func (m *Memtable) seekGE(target base.InternalKey) *node {
	cur := &m.head
	for level := maxHeight - 1; level >= 0; level-- {
		for cur.next[level] != nil && m.less(cur.next[level].key, target) {
			cur = cur.next[level]
		}
	}
	return cur.next[0]
}

// seekLE returns the last node whose key is <= target under
// InternalCompare, or nil if none.
func (m *Memtable) seekLE(target base.InternalKey) *node {
	cur := &m.head
	var last *node
	for level := maxHeight - 1; level >= 0; level-- {
		for cur.next[level] != nil && !m.less(target, cur.next[level].key) {
			cur = cur.next[level]
			last = cur
		}
	}
	return last
}

// Iterator returns a new, positioned-before-first iterator over m.
// Snapshots of the underlying skiplist are not taken; the iterator
// observes any node present at the moment it seeks, matching the
// spec's promise that readers see a consistent view as of the
// sequence number they were opened with, enforced by the caller
// filtering on seqnum rather than by the memtable itself.
func (m *Memtable) Iterator() *Iterator {
	return &Iterator{m: m}
}

// Iterator is a bidirectional iterator over a Memtable's entries in
// InternalCompare order.
type Iterator struct {
	m   *Memtable
	cur *node
}

// SeekGE positions the iterator at the first entry >= key.
func (it *Iterator) SeekGE(key base.InternalKey) bool {
	it.m.mu.RLock()
	defer it.m.mu.RUnlock()
	it.cur = it.m.seekGE(key)
	return it.cur != nil
}

// SeekLE positions the iterator at the last entry <= key.
func (it *Iterator) SeekLE(key base.InternalKey) bool {
	it.m.mu.RLock()
	defer it.m.mu.RUnlock()
	it.cur = it.m.seekLE(key)
	return it.cur != nil
}

// First positions the iterator at the first entry.
func (it *Iterator) First() bool {
	it.m.mu.RLock()
	defer it.m.mu.RUnlock()
	it.cur = it.m.head.next[0]
	return it.cur != nil
}

// Last positions the iterator at the final entry, walking to the tail
// of the bottom skiplist level since the list only links forward
// (same trade-off as Prev).
func (it *Iterator) Last() bool {
	it.m.mu.RLock()
	defer it.m.mu.RUnlock()
	cur := &it.m.head
	var last *node
	for cur.next[0] != nil {
		cur = cur.next[0]
		last = cur
	}
	it.cur = last
	return it.cur != nil
}

// Next advances to the following entry.
func (it *Iterator) Next() bool {
	it.m.mu.RLock()
	defer it.m.mu.RUnlock()
	if it.cur == nil {
		return false
	}
	it.cur = it.cur.next[0]
	return it.cur != nil
}

// Prev is implemented by re-seeking from the head, since the skiplist
// only links forward; reverse iteration is assembled one predecessor
// at a time. This trades O(log n) per Prev for the simplicity of a
// singly-linked skiplist, acceptable because reverse scans are rare
// relative to forward scans in the spec's workloads (§4.7).
func (it *Iterator) Prev() bool {
	if it.cur == nil {
		return false
	}
	cur := it.cur.key
	it.m.mu.RLock()
	defer it.m.mu.RUnlock()
	prev := it.m.seekLE(predecessorBound(cur))
	it.cur = prev
	return it.cur != nil
}

func predecessorBound(key base.InternalKey) base.InternalKey {
	// A larger trailer sorts earlier under InternalCompare, so
	// (UserKey, Trailer+1) is strictly less than key with no entry in
	// between, and seekLE on it lands on key's predecessor. A real
	// trailer's low byte holds a kind of at most InternalKeyKindMax, so
	// the increment cannot overflow.
	return base.InternalKey{UserKey: key.UserKey, Trailer: key.Trailer + 1}
}

// Key returns the current entry's internal key. Valid only after a
// successful positioning call.
func (it *Iterator) Key() base.InternalKey { return it.cur.key }

// Value returns the current entry's value.
func (it *Iterator) Value() []byte { return it.cur.value }

// Valid reports whether the iterator is currently positioned on an
// entry.
func (it *Iterator) Valid() bool { return it.cur != nil }
