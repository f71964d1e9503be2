// Copyright 2012 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package manifest

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ehds/guardedkv/internal/base"
	"github.com/ehds/guardedkv/internal/guard"
)

func tableMeta(num base.FileNum, smallest, largest string) *TableMetadata {
	return &TableMetadata{
		FileNum:  num,
		Size:     100,
		Smallest: base.InternalKey{UserKey: []byte(smallest), Trailer: base.MakeTrailer(1, base.InternalKeyKindSet)},
		Largest:  base.InternalKey{UserKey: []byte(largest), Trailer: base.MakeTrailer(1, base.InternalKeyKindSet)},
	}
}

func TestVersionRefcounting(t *testing.T) {
	v := &Version{}
	require.Equal(t, int32(0), v.Refs())
	v.Ref()
	v.Ref()
	require.Equal(t, int32(2), v.Refs())
	v.Unref()
	require.Equal(t, int32(1), v.Refs())
}

func TestVersionOverlapsLevelGE1(t *testing.T) {
	v := &Version{}
	v.Files[1] = []*TableMetadata{
		tableMeta(1, "a", "c"),
		tableMeta(2, "d", "f"),
		tableMeta(3, "g", "i"),
	}

	got := v.Overlaps(1, bytes.Compare, []byte("b"), []byte("e"))
	require.Len(t, got, 2)
	require.Equal(t, base.FileNum(1), got[0].FileNum)
	require.Equal(t, base.FileNum(2), got[1].FileNum)
}

func TestVersionCompactionScorePrefersL0FileCount(t *testing.T) {
	v := &Version{}
	for i := base.FileNum(0); i < l0CompactionTrigger*2; i++ {
		v.Files[0] = append(v.Files[0], tableMeta(i, "a", "z"))
	}
	v.UpdateCompactionScore()
	require.Equal(t, 0, v.CompactionLevel())
	require.Greater(t, v.CompactionScore(), 1.0)
}

func TestOverlapsGuardPartition(t *testing.T) {
	v := &Version{}
	v.Guards[1] = guard.NewSet(guard.DefaultConfig, 1, bytes.Compare)
	v.Guards[1].Add([]byte("m"))

	v.Files[1] = []*TableMetadata{
		tableMeta(1, "a", "c"),
		tableMeta(2, "n", "p"),
	}

	sentinel := v.OverlapsGuardPartition(1, bytes.Compare, 0)
	require.Len(t, sentinel, 1)
	require.Equal(t, base.FileNum(1), sentinel[0].FileNum)

	guarded := v.OverlapsGuardPartition(1, bytes.Compare, 1)
	require.Len(t, guarded, 1)
	require.Equal(t, base.FileNum(2), guarded[0].FileNum)
}
