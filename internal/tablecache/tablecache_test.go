// Copyright 2013 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package tablecache

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ehds/guardedkv/internal/base"
	"github.com/ehds/guardedkv/internal/sstable"
	"github.com/ehds/guardedkv/vfs"
)

func buildTestTable(t *testing.T, fs vfs.FS, name string, keys []string) {
	f, err := fs.Create(name)
	require.NoError(t, err)

	w := sstable.NewWriter(f, sstable.DefaultWriterOptions())
	for i, k := range keys {
		key := base.InternalKey{UserKey: []byte(k), Trailer: base.MakeTrailer(base.SeqNum(i+1), base.InternalKeyKindSet)}
		require.NoError(t, w.Add(key, []byte("v-"+k)))
	}
	_, err = w.Close()
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func newTestCache(t *testing.T, fs vfs.FS, size int) *Cache {
	opener := func(fileNum base.FileNum) (vfs.File, int64, error) {
		name := fmt.Sprintf("/table-%d.sst", fileNum)
		f, err := fs.Open(name)
		if err != nil {
			return nil, 0, err
		}
		fi, err := f.Stat()
		if err != nil {
			return nil, 0, err
		}
		return f, fi.Size(), nil
	}
	return New(opener, bytes.Compare, nil, size)
}

func TestCacheNewIteratorReadsAllEntries(t *testing.T) {
	fs := vfs.NewMem()
	buildTestTable(t, fs, "/table-1.sst", []string{"a", "b", "c"})

	c := newTestCache(t, fs, 10)
	defer c.Close()

	it, h, err := c.NewIterator(1)
	require.NoError(t, err)
	defer h.Close()

	var got []string
	for it.Next() {
		got = append(got, string(it.Key().UserKey))
	}
	require.Equal(t, []string{"a", "b", "c"}, got)
}

func TestCacheOpenSeeksToKey(t *testing.T) {
	fs := vfs.NewMem()
	buildTestTable(t, fs, "/table-1.sst", []string{"a", "c", "e"})

	c := newTestCache(t, fs, 10)
	defer c.Close()

	it, h, err := c.Open(1, base.InternalKey{UserKey: []byte("b")})
	require.NoError(t, err)
	defer h.Close()
	require.True(t, it.Next())
	require.Equal(t, "c", string(it.Key().UserKey))
}

func TestCacheEvictsBeyondCapacity(t *testing.T) {
	fs := vfs.NewMem()
	buildTestTable(t, fs, "/table-1.sst", []string{"a"})
	buildTestTable(t, fs, "/table-2.sst", []string{"b"})
	buildTestTable(t, fs, "/table-3.sst", []string{"c"})

	c := newTestCache(t, fs, 2)
	defer c.Close()

	for _, fileNum := range []base.FileNum{1, 2, 3} {
		_, h, err := c.NewIterator(fileNum)
		require.NoError(t, err)
		require.NoError(t, h.Close())
	}
	require.LessOrEqual(t, len(c.nodes), 2)
}

func TestCacheEvictRemovesEntry(t *testing.T) {
	fs := vfs.NewMem()
	buildTestTable(t, fs, "/table-1.sst", []string{"a"})

	c := newTestCache(t, fs, 10)
	defer c.Close()

	_, h, err := c.NewIterator(1)
	require.NoError(t, err)
	require.NoError(t, h.Close())
	require.Contains(t, c.nodes, base.FileNum(1))

	c.Evict(1)
	require.NotContains(t, c.nodes, base.FileNum(1))
}
