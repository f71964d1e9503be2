// Copyright 2012 The LevelDB-Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package guardedkv

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ehds/guardedkv/internal/base"
	"github.com/ehds/guardedkv/vfs"
)

func openTestDB(t *testing.T, opts *Options) *DB {
	if opts == nil {
		opts = &Options{}
	}
	if opts.FS == nil {
		opts.FS = vfs.NewMem()
	}
	opts.CreateIfMissing = true
	d, err := Open("/db", opts)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, d.Close()) })
	return d
}

func TestPutGetDelete(t *testing.T) {
	d := openTestDB(t, nil)

	require.NoError(t, d.Put([]byte("foo"), []byte("bar"), nil))
	v, err := d.Get([]byte("foo"), nil)
	require.NoError(t, err)
	require.Equal(t, []byte("bar"), v)

	require.NoError(t, d.Delete([]byte("foo"), nil))
	_, err = d.Get([]byte("foo"), nil)
	require.ErrorIs(t, err, base.ErrNotFound)
}

func TestGetMissingKey(t *testing.T) {
	d := openTestDB(t, nil)
	_, err := d.Get([]byte("nope"), nil)
	require.ErrorIs(t, err, base.ErrNotFound)
}

func TestOverwriteVisibleImmediately(t *testing.T) {
	d := openTestDB(t, nil)
	require.NoError(t, d.Put([]byte("k"), []byte("v1"), nil))
	require.NoError(t, d.Put([]byte("k"), []byte("v2"), nil))
	v, err := d.Get([]byte("k"), nil)
	require.NoError(t, err)
	require.Equal(t, []byte("v2"), v)
}

func TestWriteBatch(t *testing.T) {
	d := openTestDB(t, nil)

	b := NewWriteBatch()
	b.Set([]byte("a"), []byte("1"))
	b.Set([]byte("b"), []byte("2"))
	b.Delete([]byte("a"))
	require.NoError(t, d.Write(b, nil))

	_, err := d.Get([]byte("a"), nil)
	require.ErrorIs(t, err, base.ErrNotFound)
	v, err := d.Get([]byte("b"), nil)
	require.NoError(t, err)
	require.Equal(t, []byte("2"), v)
}

func TestSnapshotIsolation(t *testing.T) {
	d := openTestDB(t, nil)
	require.NoError(t, d.Put([]byte("k"), []byte("v1"), nil))

	snap := d.GetSnapshot()
	defer d.ReleaseSnapshot(snap)

	require.NoError(t, d.Put([]byte("k"), []byte("v2"), nil))

	v, err := d.Get([]byte("k"), &ReadOptions{Snapshot: snap})
	require.NoError(t, err)
	require.Equal(t, []byte("v1"), v)

	v, err = d.Get([]byte("k"), nil)
	require.NoError(t, err)
	require.Equal(t, []byte("v2"), v)
}

func TestCloseThenOperationsFail(t *testing.T) {
	opts := &Options{FS: vfs.NewMem(), CreateIfMissing: true}
	d, err := Open("/db2", opts)
	require.NoError(t, err)
	require.NoError(t, d.Put([]byte("a"), []byte("1"), nil))
	require.NoError(t, d.Close())

	err = d.Put([]byte("b"), []byte("2"), nil)
	require.Error(t, err)
}

func TestReopenRecoversData(t *testing.T) {
	fs := vfs.NewMem()
	opts := &Options{FS: fs, CreateIfMissing: true}
	d, err := Open("/db3", opts)
	require.NoError(t, err)
	require.NoError(t, d.Put([]byte("x"), []byte("y"), nil))
	require.NoError(t, d.Close())

	d2, err := Open("/db3", opts)
	require.NoError(t, err)
	defer d2.Close()

	v, err := d2.Get([]byte("x"), nil)
	require.NoError(t, err)
	require.Equal(t, []byte("y"), v)
}
