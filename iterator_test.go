// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package guardedkv

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIteratorForwardAndBackward(t *testing.T) {
	d := openTestDB(t, nil)
	for _, k := range []string{"c", "a", "e", "b", "d"} {
		require.NoError(t, d.Put([]byte(k), []byte("v-"+k), nil))
	}

	it, err := d.NewIterator(nil)
	require.NoError(t, err)
	defer it.Close()

	var forward []string
	for valid := it.First(); valid; valid = it.Next() {
		forward = append(forward, string(it.Key()))
	}
	require.Equal(t, []string{"a", "b", "c", "d", "e"}, forward)

	var backward []string
	for valid := it.Last(); valid; valid = it.Prev() {
		backward = append(backward, string(it.Key()))
	}
	require.Equal(t, []string{"e", "d", "c", "b", "a"}, backward)
}

func TestIteratorSkipsDeletedKeys(t *testing.T) {
	d := openTestDB(t, nil)
	require.NoError(t, d.Put([]byte("a"), []byte("1"), nil))
	require.NoError(t, d.Put([]byte("b"), []byte("2"), nil))
	require.NoError(t, d.Put([]byte("c"), []byte("3"), nil))
	require.NoError(t, d.Delete([]byte("b"), nil))

	it, err := d.NewIterator(nil)
	require.NoError(t, err)
	defer it.Close()

	var got []string
	for valid := it.First(); valid; valid = it.Next() {
		got = append(got, string(it.Key()))
	}
	require.Equal(t, []string{"a", "c"}, got)
}

func TestIteratorSeekGEAndSeekLE(t *testing.T) {
	d := openTestDB(t, nil)
	for _, k := range []string{"a", "c", "e", "g"} {
		require.NoError(t, d.Put([]byte(k), []byte("v"), nil))
	}

	it, err := d.NewIterator(nil)
	require.NoError(t, err)
	defer it.Close()

	require.True(t, it.SeekGE([]byte("d")))
	require.Equal(t, "e", string(it.Key()))

	require.True(t, it.SeekLE([]byte("d")))
	require.Equal(t, "c", string(it.Key()))

	require.True(t, it.SeekGE([]byte("c")))
	require.Equal(t, "c", string(it.Key()))

	require.False(t, it.SeekGE([]byte("z")))
}

func TestIteratorObservesSnapshotNotLaterWrites(t *testing.T) {
	d := openTestDB(t, nil)
	require.NoError(t, d.Put([]byte("a"), []byte("1"), nil))

	snap := d.GetSnapshot()
	defer d.ReleaseSnapshot(snap)

	require.NoError(t, d.Put([]byte("b"), []byte("2"), nil))

	it, err := d.NewIterator(&ReadOptions{Snapshot: snap})
	require.NoError(t, err)
	defer it.Close()

	var got []string
	for valid := it.First(); valid; valid = it.Next() {
		got = append(got, string(it.Key()))
	}
	require.Equal(t, []string{"a"}, got)
}
