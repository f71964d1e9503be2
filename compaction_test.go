// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package guardedkv

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ehds/guardedkv/vfs"
)

// TestCompactionMovesDataToNextLevel drives enough flushes through a
// small write buffer to accumulate l0CompactionTrigger worth of level-0
// tables, then waits for the background compaction to push them down
// to level 1, verifying both that the move happened and that all
// values remain readable afterward.
func TestCompactionMovesDataToNextLevel(t *testing.T) {
	opts := &Options{FS: vfs.NewMem(), CreateIfMissing: true, WriteBufferSize: 2048}
	d := openTestDB(t, opts)

	const n = 2000
	for i := 0; i < n; i++ {
		key := fmt.Sprintf("key-%05d", i)
		require.NoError(t, d.Put([]byte(key), []byte("some-moderately-long-value-to-fill-memtables"), nil))
	}

	require.Eventually(t, func() bool {
		v, ok := d.GetProperty("num-files-at-level1")
		return ok && v != "0"
	}, 10*time.Second, 20*time.Millisecond, "expected a compaction to populate level 1")

	for i := 0; i < n; i += 53 {
		key := fmt.Sprintf("key-%05d", i)
		v, err := d.Get([]byte(key), nil)
		require.NoError(t, err)
		require.Equal(t, "some-moderately-long-value-to-fill-memtables", string(v))
	}
}

// TestCompactionDropsShadowedEntries writes many overwrites of the
// same small set of keys, forcing the compaction's drop rule to elide
// every version but the newest once a level-0 to level-1 compaction
// runs, then checks that each key reads back its last write.
func TestCompactionDropsShadowedEntries(t *testing.T) {
	opts := &Options{FS: vfs.NewMem(), CreateIfMissing: true, WriteBufferSize: 2048}
	d := openTestDB(t, opts)

	const rounds = 200
	keys := []string{"alpha", "bravo", "charlie", "delta"}
	for r := 0; r < rounds; r++ {
		for _, k := range keys {
			require.NoError(t, d.Put([]byte(k), []byte(fmt.Sprintf("round-%03d", r)), nil))
		}
	}

	require.Eventually(t, func() bool {
		v, ok := d.GetProperty("num-files-at-level1")
		return ok && v != "0"
	}, 10*time.Second, 20*time.Millisecond)

	for _, k := range keys {
		v, err := d.Get([]byte(k), nil)
		require.NoError(t, err)
		require.Equal(t, fmt.Sprintf("round-%03d", rounds-1), string(v))
	}
}

// TestCompactionRespectsDeleteTombstones deletes a key after many
// overwrites and checks that once compaction has run, the key reads
// back as not found rather than resurrecting an older value.
func TestCompactionRespectsDeleteTombstones(t *testing.T) {
	opts := &Options{FS: vfs.NewMem(), CreateIfMissing: true, WriteBufferSize: 2048}
	d := openTestDB(t, opts)

	const n = 1500
	for i := 0; i < n; i++ {
		key := fmt.Sprintf("key-%05d", i)
		require.NoError(t, d.Put([]byte(key), []byte("value"), nil))
	}
	require.NoError(t, d.Delete([]byte("key-00042"), nil))
	for i := n; i < n+500; i++ {
		key := fmt.Sprintf("key-%05d", i)
		require.NoError(t, d.Put([]byte(key), []byte("value"), nil))
	}

	require.Eventually(t, func() bool {
		v, ok := d.GetProperty("num-files-at-level1")
		return ok && v != "0"
	}, 10*time.Second, 20*time.Millisecond)

	_, err := d.Get([]byte("key-00042"), nil)
	require.Error(t, err)
}
