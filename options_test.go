// Copyright 2011 The LevelDB-Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package guardedkv

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ehds/guardedkv/internal/base"
	"github.com/ehds/guardedkv/internal/guard"
	"github.com/ehds/guardedkv/vfs"
)

func TestEnsureDefaultsOnNil(t *testing.T) {
	o := (*Options)(nil).EnsureDefaults()
	require.Equal(t, base.DefaultComparer, o.Comparer)
	require.Equal(t, vfs.Default, o.FS)
	require.Equal(t, defaultWriteBufferSize, o.WriteBufferSize)
	require.Equal(t, defaultMaxOpenFiles, o.MaxOpenFiles)
	require.Equal(t, defaultBlockSize, o.BlockSize)
	require.Equal(t, defaultBlockRestartInterval, o.BlockRestartInterval)
	require.Equal(t, guard.DefaultConfig, o.GuardConfig)
	require.Equal(t, defaultL0SlowdownWritesThresh, o.L0SlowdownWritesThreshold)
	require.Equal(t, defaultL0StopWritesThreshold, o.L0StopWritesThreshold)
}

func TestEnsureDefaultsPreservesExplicitFields(t *testing.T) {
	o := &Options{WriteBufferSize: 1024, MaxOpenFiles: 7}
	out := o.EnsureDefaults()
	require.Equal(t, 1024, out.WriteBufferSize)
	require.Equal(t, 7, out.MaxOpenFiles)
	// Untouched fields still get filled in.
	require.Equal(t, defaultBlockSize, out.BlockSize)
}

func TestEnsureDefaultsDoesNotMutateReceiver(t *testing.T) {
	o := &Options{}
	_ = o.EnsureDefaults()
	require.Nil(t, o.Comparer)
	require.Equal(t, 0, o.WriteBufferSize)
}

func TestTableCacheSizeHasFloor(t *testing.T) {
	o := &Options{MaxOpenFiles: 20}
	require.Equal(t, minTableCacheSize, o.tableCacheSize())

	o = &Options{MaxOpenFiles: 1000}
	require.Equal(t, 1000-numNonTableCacheFiles, o.tableCacheSize())
}

func TestWriteOptionsGetSyncNilSafe(t *testing.T) {
	var o *WriteOptions
	require.False(t, o.GetSync())

	o = &WriteOptions{Sync: true}
	require.True(t, o.GetSync())
}
