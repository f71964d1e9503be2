// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package guardedkv

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetPropertyUnknownKey(t *testing.T) {
	d := openTestDB(t, nil)
	_, ok := d.GetProperty("not-a-real-property")
	require.False(t, ok)
}

func TestGetPropertyNumFilesAtLevel(t *testing.T) {
	d := openTestDB(t, nil)
	require.NoError(t, d.Put([]byte("a"), []byte("1"), nil))

	v, ok := d.GetProperty("num-files-at-level0")
	require.True(t, ok)
	require.Equal(t, "0", v)
}

func TestGetPropertyApproximateMemoryUsage(t *testing.T) {
	d := openTestDB(t, nil)
	require.NoError(t, d.Put([]byte("a"), []byte("1"), nil))

	v, ok := d.GetProperty("approximate-memory-usage")
	require.True(t, ok)
	require.NotEqual(t, "0", v)
}

func TestGetPropertySstablesAndStatsOnEmptyDB(t *testing.T) {
	d := openTestDB(t, nil)

	v, ok := d.GetProperty("sstables")
	require.True(t, ok)
	require.Equal(t, "", v)

	v, ok = d.GetProperty("stats")
	require.True(t, ok)
	require.Contains(t, v, "level")
}

func TestGetPropertyGuardAndSentinelDetails(t *testing.T) {
	d := openTestDB(t, nil)

	n, ok := d.GetProperty("num-guards-at-level1")
	require.True(t, ok)
	require.Equal(t, "0", n)

	details, ok := d.GetProperty("sentinel-details-at-level1")
	require.True(t, ok)
	require.Contains(t, details, "level 1")
}
