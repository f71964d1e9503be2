// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package sstable

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ehds/guardedkv/internal/base"
	"github.com/ehds/guardedkv/vfs"
)

func buildTable(t *testing.T, opts WriterOptions, keys []string) []byte {
	var buf bytes.Buffer
	w := NewWriter(&buf, opts)
	for i, k := range keys {
		key := base.InternalKey{
			UserKey: []byte(k),
			Trailer: base.MakeTrailer(base.SeqNum(i+1), base.InternalKeyKindSet),
		}
		require.NoError(t, w.Add(key, []byte("value-"+k)))
	}
	meta, err := w.Close()
	require.NoError(t, err)
	require.Equal(t, keys[0], string(meta.Smallest.UserKey))
	require.Equal(t, keys[len(keys)-1], string(meta.Largest.UserKey))
	return buf.Bytes()
}

func openReader(t *testing.T, data []byte) *Reader {
	fs := vfs.NewMem()
	f, err := fs.Create("table.sst")
	require.NoError(t, err)
	_, err = f.Write(data)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	f, err = fs.Open("table.sst")
	require.NoError(t, err)
	r, err := NewReader(f, int64(len(data)), bytes.Compare, nil)
	require.NoError(t, err)
	return r
}

func TestWriterReaderRoundTripNoCompression(t *testing.T) {
	keys := []string{"a", "b", "c", "d", "e"}
	data := buildTable(t, WriterOptions{Compression: NoCompression, BlockSize: 4096}, keys)

	r := openReader(t, data)
	defer r.Close()

	it, err := r.NewIterator()
	require.NoError(t, err)
	var got []string
	for it.Next() {
		got = append(got, string(it.Key().UserKey))
	}
	require.Equal(t, keys, got)
}

func TestWriterReaderRoundTripSnappyAndMultiBlock(t *testing.T) {
	var keys []string
	for i := 0; i < 500; i++ {
		keys = append(keys, string(rune('a'))+paddedIndex(i))
	}
	data := buildTable(t, WriterOptions{Compression: SnappyCompression, BlockSize: 256}, keys)

	r := openReader(t, data)
	defer r.Close()

	it, err := r.NewIterator()
	require.NoError(t, err)
	n := 0
	for it.Next() {
		require.Equal(t, keys[n], string(it.Key().UserKey))
		require.Equal(t, "value-"+keys[n], string(it.Value()))
		n++
	}
	require.Equal(t, len(keys), n)
}

func TestReaderGet(t *testing.T) {
	keys := []string{"apple", "banana", "cherry"}
	data := buildTable(t, DefaultWriterOptions(), keys)

	r := openReader(t, data)
	defer r.Close()

	key, value, ok, err := r.Get(base.InternalKey{UserKey: []byte("banana"), Trailer: base.MakeTrailer(base.SeqNumMax, base.InternalKeyKindMax)})
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "banana", string(key.UserKey))
	require.Equal(t, "value-banana", string(value))

	_, _, ok, err = r.Get(base.InternalKey{UserKey: []byte("zzz")})
	require.NoError(t, err)
	require.False(t, ok)
}

func paddedIndex(i int) string {
	digits := "0123456789"
	return string([]byte{digits[i/100%10], digits[i/10%10], digits[i%10]})
}
