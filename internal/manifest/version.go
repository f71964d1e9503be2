// Copyright 2012 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package manifest implements the Version/VersionEdit/VersionSet
// protocol described in spec §4.5 and §4.4, plus the guard bookkeeping
// the spec layers on top of it. It is grounded on leveldb-go's
// leveldb/version.go, leveldb/version_edit.go and leveldb/version_set.go
// (the latter two left as TODO stubs in that snapshot) and generalized
// from plain leveled compaction to guard-partitioned compaction.
package manifest

import (
	"fmt"
	"sort"

	"github.com/ehds/guardedkv/internal/base"
	"github.com/ehds/guardedkv/internal/guard"
)

// TableMetadata holds the metadata for one on-disk sstable. Named
// TableMetadata, rather than the teacher's fileMetadata, to avoid
// colliding with os.File-flavored names used elsewhere in the tree.
type TableMetadata struct {
	FileNum           base.FileNum
	Size              uint64
	Smallest, Largest base.InternalKey
	// SmallestSeqNum and LargestSeqNum bound the sequence numbers of any
	// key in the table. They are recorded in the MANIFEST; the
	// compaction's base-level tombstone test uses only the user-key
	// bounds above, not these.
	SmallestSeqNum, LargestSeqNum base.SeqNum
}

func (m *TableMetadata) String() string {
	return fmt.Sprintf("%s:[%s-%s]", m.FileNum, m.Smallest, m.Largest)
}

// TotalSize returns the sum of Size across f.
func TotalSize(f []*TableMetadata) (size uint64) {
	for _, x := range f {
		size += x.Size
	}
	return size
}

// NumLevels is the number of levels in the LSM tree (levels 0 through
// 6, each with its own guard set), matching spec §4.4.
const NumLevels = base.NumLevels

// l0CompactionTrigger is the number of level-0 tables that triggers a
// flush-driven compaction, unchanged from classic LevelDB's default.
const l0CompactionTrigger = 4

// Version is an immutable snapshot of the table metadata making up the
// tree, plus per-level guard sets (spec §4.4). Readers and compactions
// always operate against one Version at a time; LogAndApply installs a
// new Version atomically.
type Version struct {
	Files [NumLevels][]*TableMetadata
	// Guards holds, for each level, the committed guard boundaries
	// partitioning that level. Guards nest: VersionSet.applyEdit commits
	// a guard committed at level L at every level > L as well.
	Guards [NumLevels]*guard.Set

	refs int32

	prev, next *Version

	compactionScore float64
	compactionLevel int
}

// Ref/Unref implement the refcounting scheme the spec's obsolete-file GC
// relies on (§4.5): a Version stays alive, and the tables it names stay
// un-deleted, as long as any iterator or in-flight compaction holds a
// reference.
func (v *Version) Ref() { v.refs++ }

func (v *Version) Unref() {
	v.refs--
	if v.refs < 0 {
		panic("manifest: negative version refcount")
	}
}

// Refs reports the current reference count, used only by tests and by
// the obsolete-file sweep's liveness check.
func (v *Version) Refs() int32 { return v.refs }

// UpdateCompactionScore recomputes which level most needs compaction.
// Level 0 is scored by file count (to bound read amplification from an
// unbounded number of overlapping tables); levels >= 1 are scored by
// total byte size against an exponentially growing budget, same as
// classic LevelDB.
func (v *Version) UpdateCompactionScore() {
	v.compactionScore = float64(len(v.Files[0])) / l0CompactionTrigger
	v.compactionLevel = 0

	maxBytes := float64(10 * 1024 * 1024)
	for level := 1; level < NumLevels-1; level++ {
		score := float64(TotalSize(v.Files[level])) / maxBytes
		if score > v.compactionScore {
			v.compactionScore = score
			v.compactionLevel = level
		}
		maxBytes *= 10
	}
}

// CompactionScore and CompactionLevel expose the results of the most
// recent UpdateCompactionScore call.
func (v *Version) CompactionScore() float64 { return v.compactionScore }
func (v *Version) CompactionLevel() int     { return v.compactionLevel }

// Overlaps returns every table at level whose user-key range intersects
// [ukey0, ukey1]; a nil ukey0 or ukey1 leaves that end unbounded. At
// level 0, whose tables may overlap each other, the search range is
// expanded to the union of matches found so far and retried until it
// stabilizes, exactly as classic LevelDB's does; at level >= 1 a single
// linear scan suffices since ranges never overlap within a level.
func (v *Version) Overlaps(level int, ucmp base.Compare, ukey0, ukey1 []byte) (ret []*TableMetadata) {
	unboundedHi := ukey1 == nil
restart:
	for _, meta := range v.Files[level] {
		m0, m1 := meta.Smallest.UserKey, meta.Largest.UserKey
		if ucmp(m1, ukey0) < 0 || (!unboundedHi && ucmp(m0, ukey1) > 0) {
			continue
		}
		ret = append(ret, meta)
		if level != 0 {
			continue
		}
		expanded := false
		if ucmp(m0, ukey0) < 0 {
			ukey0 = m0
			expanded = true
		}
		if !unboundedHi && ucmp(m1, ukey1) > 0 {
			ukey1 = m1
			expanded = true
		}
		if expanded {
			ret = ret[:0]
			goto restart
		}
	}
	return ret
}

// OverlapsGuardPartition is like Overlaps, but restricted to the tables
// in a single guard partition of level (spec §4.4): compaction at level
// >= 1 operates one guard partition at a time, so picking a compaction's
// input set only ever needs the tables bounding that partition, never
// the whole level.
func (v *Version) OverlapsGuardPartition(level int, ucmp base.Compare, partition int) (ret []*TableMetadata) {
	if v.Guards[level] == nil {
		return v.Files[level]
	}
	lo, hi := v.Guards[level].Boundaries(partition)
	for _, meta := range v.Files[level] {
		if lo != nil && ucmp(meta.Largest.UserKey, lo) < 0 {
			continue
		}
		if hi != nil && ucmp(meta.Smallest.UserKey, hi) >= 0 {
			continue
		}
		ret = append(ret, meta)
	}
	return ret
}

// CheckOrdering validates the invariants a Version must satisfy: level-0
// tables are ordered by increasing FileNum (and thus increasing
// sequence numbers), and level >= 1 tables are ordered by, and do not
// overlap in, internal key range.
func (v *Version) CheckOrdering(icmp func(a, b base.InternalKey) int) error {
	for level, ff := range v.Files {
		if level == 0 {
			var prev base.FileNum
			for i, f := range ff {
				if i != 0 && prev >= f.FileNum {
					return fmt.Errorf("manifest: level 0 files are not in increasing fileNum order: %s, %s", prev, f.FileNum)
				}
				prev = f.FileNum
			}
			continue
		}
		var prevLargest base.InternalKey
		for i, f := range ff {
			if i != 0 && icmp(prevLargest, f.Smallest) >= 0 {
				return fmt.Errorf("manifest: level %d files are not in increasing key order: %s, %s", level, prevLargest, f.Smallest)
			}
			if icmp(f.Smallest, f.Largest) > 0 {
				return fmt.Errorf("manifest: level %d file has inconsistent bounds: %s, %s", level, f.Smallest, f.Largest)
			}
			prevLargest = f.Largest
		}
	}
	return nil
}

// TableFinder opens an iterator-producing handle onto one on-disk
// table, letting Version.Get stay agnostic of the sstable/tablecache
// implementation below it (the same separation of concerns as the
// teacher's tableIkeyFinder).
type TableFinder interface {
	Find(fileNum base.FileNum, key base.InternalKey) (TableIterator, error)
}

// TableIterator is the minimal iterator interface Version.Get needs
// from a table: positioned by the cache at or after the lookup key.
type TableIterator interface {
	Next() bool
	Key() base.InternalKey
	Value() []byte
	Close() error
}

// Get looks up ikey.UserKey in v's on-disk tables, searching level 0
// newest-file-first (equivalent to descending sequence number) and then
// each level >= 1 by one binary search over all of that level's tables
// (sorted by smallest key), probing at most one table per level. The
// level's guard partitions are not consulted.
func (v *Version) Get(ikey base.InternalKey, ucmp base.Compare, finder TableFinder) ([]byte, base.InternalKeyKind, bool, error) {
	ukey := ikey.UserKey
	for i := len(v.Files[0]) - 1; i >= 0; i-- {
		f := v.Files[0][i]
		if ucmp(ukey, f.Smallest.UserKey) < 0 {
			continue
		}
		if base.InternalCompare(ucmp, ikey, f.Largest) > 0 {
			continue
		}
		value, kind, ok, err := tableGet(finder, f.FileNum, ikey, ucmp, ukey)
		if ok || err != nil {
			return value, kind, ok, err
		}
	}

	for level := 1; level < len(v.Files); level++ {
		files := v.Files[level]
		n := len(files)
		if n == 0 {
			continue
		}
		index := sort.Search(n, func(i int) bool {
			return base.InternalCompare(ucmp, files[i].Largest, ikey) >= 0
		})
		if index == n {
			continue
		}
		f := files[index]
		if ucmp(ukey, f.Smallest.UserKey) < 0 {
			continue
		}
		value, kind, ok, err := tableGet(finder, f.FileNum, ikey, ucmp, ukey)
		if ok || err != nil {
			return value, kind, ok, err
		}
	}
	return nil, 0, false, nil
}

func tableGet(finder TableFinder, fileNum base.FileNum, ikey base.InternalKey, ucmp base.Compare, ukey []byte) (value []byte, kind base.InternalKeyKind, ok bool, err error) {
	it, err := finder.Find(fileNum, ikey)
	if err != nil {
		return nil, 0, false, fmt.Errorf("manifest: could not open table %s: %w", fileNum, err)
	}
	if it == nil {
		// The table's filter conclusively ruled the key out.
		return nil, 0, false, nil
	}
	defer it.Close()
	if !it.Next() {
		return nil, 0, false, nil
	}
	found := it.Key()
	if !found.Valid() {
		return nil, 0, false, fmt.Errorf("manifest: corrupt table %s: invalid internal key", fileNum)
	}
	if ucmp(ukey, found.UserKey) != 0 {
		return nil, 0, false, nil
	}
	return it.Value(), found.Kind(), true, nil
}

type byFileNum []*TableMetadata

func (b byFileNum) Len() int           { return len(b) }
func (b byFileNum) Less(i, j int) bool { return b[i].FileNum < b[j].FileNum }
func (b byFileNum) Swap(i, j int)      { b[i], b[j] = b[j], b[i] }

// SortBySmallest orders f by ascending Smallest key, used after a
// compaction produces new level >= 1 outputs.
func SortBySmallest(f []*TableMetadata, icmp func(a, b base.InternalKey) int) {
	sort.Slice(f, func(i, j int) bool { return icmp(f[i].Smallest, f[j].Smallest) < 0 })
}

// SortByFileNum orders f by ascending FileNum, the order level-0 tables
// must be kept in.
func SortByFileNum(f []*TableMetadata) { sort.Sort(byFileNum(f)) }
