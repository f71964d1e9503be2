// Copyright 2013 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package guard implements the guard-candidate predicate at the heart of
// the spec's guarded compaction scheme (§4.4). A key is a guard
// *candidate* at level lvl when the low bits(lvl) bits of its hash are
// all set; bits(lvl) shrinks with depth so that deeper levels admit more
// guards and finer partitions, matching PebblesDB's original
// ComputeGuardKeys logic. The hash is the same Murmur-style hash
// internal/bloom uses for filter blocks, reused here per the original's
// own reuse of MurmurHash3_x86_32.
package guard

import "github.com/ehds/guardedkv/internal/bloom"

// Config holds the two tunables named in the spec: TopBits is bits(0),
// the number of low bits examined at the shallowest level (level 0), and
// Decrement is how many fewer bits are examined at each deeper level.
type Config struct {
	TopBits   int
	Decrement int
}

// DefaultConfig matches the values the spec calls out as defaults.
var DefaultConfig = Config{TopBits: 10, Decrement: 2}

// Bits returns bits(level), clamped to [1, 31] so the predicate never
// degenerates to "always true" (bits==0) or requires more bits than a
// uint32 hash has to offer.
func (c Config) Bits(level int) int {
	b := c.TopBits - level*c.Decrement
	if b < 1 {
		b = 1
	}
	if b > 31 {
		b = 31
	}
	return b
}

// IsCandidate reports whether key is a guard candidate at level, i.e.
// whether the low Bits(level) bits of its hash are all 1. Because
// Bits is non-increasing in level, a key that is a candidate at level
// lvl is automatically a candidate at every level > lvl too: guards
// nest hierarchically, exactly as the spec requires.
func (c Config) IsCandidate(key []byte, level int) bool {
	bits := c.Bits(level)
	mask := uint32(1)<<uint(bits) - 1
	return bloom.Hash(key)&mask == mask
}

// Set is the committed/candidate bookkeeping for one level's guards,
// described in spec §4.4: a flush or compaction that writes a candidate
// key into one of its output tables commits that key as a guard (and
// thus as a boundary for future splits) in the same edit that adds the
// table. The Set itself stores only committed guards.
type Set struct {
	cfg       Config
	level     int
	committed [][]byte // sorted ascending by the set's user-key comparator
	cmp       func(a, b []byte) int
}

// NewSet returns an empty guard Set for level using cmp as the
// user-key comparator.
func NewSet(cfg Config, level int, cmp func(a, b []byte) int) *Set {
	return &Set{cfg: cfg, level: level, cmp: cmp}
}

// IsCandidate reports whether key is a guard candidate at this set's
// level.
func (s *Set) IsCandidate(key []byte) bool {
	return s.cfg.IsCandidate(key, s.level)
}

// Committed returns the sorted slice of committed guard keys. Callers
// must not mutate the returned slice.
func (s *Set) Committed() [][]byte { return s.committed }

// Add commits key as a guard boundary if it is not already present,
// keeping Committed sorted.
func (s *Set) Add(key []byte) {
	i, found := s.search(key)
	if found {
		return
	}
	s.committed = append(s.committed, nil)
	copy(s.committed[i+1:], s.committed[i:])
	s.committed[i] = append([]byte(nil), key...)
}

func (s *Set) search(key []byte) (idx int, found bool) {
	lo, hi := 0, len(s.committed)
	for lo < hi {
		mid := (lo + hi) / 2
		c := s.cmp(s.committed[mid], key)
		switch {
		case c == 0:
			return mid, true
		case c < 0:
			lo = mid + 1
		default:
			hi = mid
		}
	}
	return lo, false
}

// Partition returns the index of the guard partition containing key:
// partition 0 covers keys < Committed()[0], partition i (for 0 < i <
// len(Committed())) covers [Committed()[i-1], Committed()[i]), and the
// last partition covers keys >= the last guard.
func (s *Set) Partition(key []byte) int {
	idx, found := s.search(key)
	if found {
		return idx + 1
	}
	return idx
}

// Boundaries returns the inclusive/exclusive [lo, hi) user-key bounds
// of partition p; a nil lo or hi means unbounded in that direction.
func (s *Set) Boundaries(p int) (lo, hi []byte) {
	if p > 0 {
		lo = s.committed[p-1]
	}
	if p < len(s.committed) {
		hi = s.committed[p]
	}
	return lo, hi
}

// NumPartitions returns the number of guard partitions, always
// len(Committed())+1.
func (s *Set) NumPartitions() int { return len(s.committed) + 1 }

// Clone returns a deep copy of s, used when a VersionEdit is applied on
// top of a cloned Version so the new Version's guard state never
// aliases the Version it was cloned from.
func (s *Set) Clone() *Set {
	c := &Set{cfg: s.cfg, level: s.level, cmp: s.cmp}
	if s.committed != nil {
		c.committed = make([][]byte, len(s.committed))
		for i, k := range s.committed {
			c.committed[i] = append([]byte(nil), k...)
		}
	}
	return c
}
