// Copyright 2012 The LevelDB-Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vfs

import (
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemFSCreateWriteReadRoundTrip(t *testing.T) {
	fs := NewMem()

	f, err := fs.Create("/foo")
	require.NoError(t, err)
	_, err = f.Write([]byte("hello world"))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	r, err := fs.Open("/foo")
	require.NoError(t, err)
	defer r.Close()

	got := make([]byte, 11)
	n, err := r.Read(got)
	require.NoError(t, err)
	require.Equal(t, 11, n)
	require.Equal(t, "hello world", string(got))
}

func TestMemFSReadAtIsIndependentOfSequentialOffset(t *testing.T) {
	fs := NewMem()
	f, err := fs.Create("/foo")
	require.NoError(t, err)
	_, err = f.Write([]byte("0123456789"))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	r, err := fs.Open("/foo")
	require.NoError(t, err)
	defer r.Close()

	buf := make([]byte, 4)
	_, err = r.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "0123", string(buf))

	n, err := r.ReadAt(buf, 5)
	require.NoError(t, err)
	require.Equal(t, 4, n)
	require.Equal(t, "5678", string(buf))
}

func TestMemFSOpenMissingReturnsNotExist(t *testing.T) {
	fs := NewMem()
	_, err := fs.Open("/missing")
	require.Error(t, err)
	var perr *os.PathError
	require.ErrorAs(t, err, &perr)
	require.True(t, os.IsNotExist(perr.Err))
}

func TestMemFSRemove(t *testing.T) {
	fs := NewMem()
	_, err := fs.Create("/foo")
	require.NoError(t, err)
	require.NoError(t, fs.Remove("/foo"))

	_, err = fs.Open("/foo")
	require.Error(t, err)
}

func TestMemFSRename(t *testing.T) {
	fs := NewMem()
	f, err := fs.Create("/a")
	require.NoError(t, err)
	_, err = f.Write([]byte("data"))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	require.NoError(t, fs.Rename("/a", "/b"))
	_, err = fs.Open("/a")
	require.Error(t, err)

	r, err := fs.Open("/b")
	require.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, "data", string(data))
}

func TestMemFSList(t *testing.T) {
	fs := NewMem()
	for _, name := range []string{"/dir/a", "/dir/b", "/other/c"} {
		_, err := fs.Create(name)
		require.NoError(t, err)
	}
	names, err := fs.List("/dir")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"a", "b"}, names)
}

func TestMemFSLockIsUncontended(t *testing.T) {
	fs := NewMem()
	l1, err := fs.Lock("/LOCK")
	require.NoError(t, err)
	l2, err := fs.Lock("/LOCK")
	require.NoError(t, err)
	require.NoError(t, l1.Close())
	require.NoError(t, l2.Close())
}

func TestMemFSWriteAfterCloseFails(t *testing.T) {
	fs := NewMem()
	f, err := fs.Create("/foo")
	require.NoError(t, err)
	require.NoError(t, f.Close())
	_, err = f.Write([]byte("x"))
	require.Error(t, err)
}

func TestMemFSStatReportsSize(t *testing.T) {
	fs := NewMem()
	f, err := fs.Create("/foo")
	require.NoError(t, err)
	_, err = f.Write([]byte("12345"))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	fi, err := fs.Stat("/foo")
	require.NoError(t, err)
	require.Equal(t, int64(5), fi.Size())
}
