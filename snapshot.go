// Copyright 2012 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package guardedkv

import "github.com/ehds/guardedkv/internal/base"

// Snapshot pins a sequence number so Gets and iterators opened against it
// see a consistent view of the database as of the moment it was taken
// (spec §3 "Snapshot", §4.6). It is released by ReleaseSnapshot.
type Snapshot struct {
	seqNum base.SeqNum
	db     *DB
	prev, next *Snapshot
}

// SeqNum returns the sequence number the snapshot pins.
func (s *Snapshot) SeqNum() base.SeqNum { return s.seqNum }

// snapshotList is a doubly-linked list of live snapshots ordered by
// nothing in particular; oldestSeqNum scans it to find the compaction
// drop threshold named in spec §4.3's merging rule.
type snapshotList struct {
	dummy Snapshot
}

func (l *snapshotList) init() {
	l.dummy.prev = &l.dummy
	l.dummy.next = &l.dummy
}

func (l *snapshotList) pushBack(s *Snapshot) {
	s.prev = l.dummy.prev
	s.next = &l.dummy
	s.prev.next = s
	s.next.prev = s
}

func (l *snapshotList) remove(s *Snapshot) {
	s.prev.next = s.next
	s.next.prev = s.prev
	s.prev, s.next = nil, nil
}

func (l *snapshotList) empty() bool { return l.dummy.next == &l.dummy }

// oldestSeqNum returns the smallest sequence number pinned by any live
// snapshot, or ok=false if there are none.
func (l *snapshotList) oldestSeqNum() (seqNum base.SeqNum, ok bool) {
	if l.empty() {
		return 0, false
	}
	seqNum = base.SeqNumMax
	for s := l.dummy.next; s != &l.dummy; s = s.next {
		if s.seqNum < seqNum {
			seqNum = s.seqNum
		}
	}
	return seqNum, true
}

// GetSnapshot returns a handle pinning the database's current sequence
// number. The caller must call ReleaseSnapshot when done with it.
func (d *DB) GetSnapshot() *Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := &Snapshot{seqNum: d.versions.LastSequence(), db: d}
	d.snapshots.pushBack(s)
	return s
}

// ReleaseSnapshot releases a Snapshot obtained from GetSnapshot. It is
// valid to call ReleaseSnapshot at most once per Snapshot.
func (d *DB) ReleaseSnapshot(s *Snapshot) {
	if s == nil || s.db == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.snapshots.remove(s)
	s.db = nil
}

// dropThreshold returns the sequence number below which a shadowed entry
// may be dropped during compaction (spec §4.3): the oldest live
// snapshot's sequence, or the current last sequence if there are none.
func (d *DB) dropThreshold() base.SeqNum {
	d.mu.Lock()
	defer d.mu.Unlock()
	if seqNum, ok := d.snapshots.oldestSeqNum(); ok {
		return seqNum
	}
	return d.versions.LastSequence()
}
