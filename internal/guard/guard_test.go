// Copyright 2013 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package guard

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConfigBitsClamped(t *testing.T) {
	cfg := Config{TopBits: 10, Decrement: 2}
	require.Equal(t, 10, cfg.Bits(0))
	require.Equal(t, 8, cfg.Bits(1))
	require.Equal(t, 6, cfg.Bits(2))
	// Deep enough that top_bits - level*decrement goes negative; clamps to 1.
	require.Equal(t, 1, cfg.Bits(100))
}

func TestIsCandidateNestsWithLevel(t *testing.T) {
	cfg := DefaultConfig
	found := false
	for i := 0; i < 100000 && !found; i++ {
		key := []byte(fmt.Sprintf("key-%d", i))
		if cfg.IsCandidate(key, 0) {
			found = true
			// bits(l) <= bits(0) for every deeper l, so a level-0
			// candidate must also be a candidate at every level > 0.
			for l := 1; l <= 6; l++ {
				require.True(t, cfg.IsCandidate(key, l), "level %d", l)
			}
		}
	}
	require.True(t, found, "expected at least one guard candidate in 100000 keys")
}

func TestSetAddAndPartition(t *testing.T) {
	s := NewSet(DefaultConfig, 1, bytes.Compare)
	require.Equal(t, 1, s.NumPartitions())

	s.Add([]byte("m"))
	s.Add([]byte("g"))
	s.Add([]byte("t"))
	require.Equal(t, [][]byte{[]byte("g"), []byte("m"), []byte("t")}, s.Committed())
	require.Equal(t, 4, s.NumPartitions())

	require.Equal(t, 0, s.Partition([]byte("a")))
	require.Equal(t, 1, s.Partition([]byte("g")))
	require.Equal(t, 1, s.Partition([]byte("h")))
	require.Equal(t, 2, s.Partition([]byte("m")))
	require.Equal(t, 3, s.Partition([]byte("u")))

	// Re-adding an existing guard is a no-op.
	s.Add([]byte("m"))
	require.Equal(t, 3, len(s.Committed()))
}

func TestSetBoundaries(t *testing.T) {
	s := NewSet(DefaultConfig, 1, bytes.Compare)
	s.Add([]byte("g"))
	s.Add([]byte("m"))

	lo, hi := s.Boundaries(0)
	require.Nil(t, lo)
	require.Equal(t, []byte("g"), hi)

	lo, hi = s.Boundaries(1)
	require.Equal(t, []byte("g"), lo)
	require.Equal(t, []byte("m"), hi)

	lo, hi = s.Boundaries(2)
	require.Equal(t, []byte("m"), lo)
	require.Nil(t, hi)
}

func TestSetClone(t *testing.T) {
	s := NewSet(DefaultConfig, 1, bytes.Compare)
	s.Add([]byte("g"))

	c := s.Clone()
	c.Add([]byte("m"))

	require.Equal(t, 1, len(s.Committed()))
	require.Equal(t, 2, len(c.Committed()))
}
