// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package batchrepr

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ehds/guardedkv/internal/base"
)

func TestBatchSetDeleteRoundTrip(t *testing.T) {
	b := New()
	b.Set([]byte("apricot"), []byte("fruit"))
	b.Delete([]byte("banana"))
	b.Set([]byte("cherry"), []byte(""))
	b.SetSeqNum(42)

	require.Equal(t, uint32(3), b.Count())
	require.Equal(t, base.SeqNum(42), b.SeqNum())
	require.False(t, b.Empty())

	r, err := NewReader(b.Data())
	require.NoError(t, err)

	rec, ok, err := r.Next()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, base.InternalKeyKindSet, rec.Kind)
	require.Equal(t, []byte("apricot"), rec.Key)
	require.Equal(t, []byte("fruit"), rec.Value)

	rec, ok, err = r.Next()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, base.InternalKeyKindDelete, rec.Kind)
	require.Equal(t, []byte("banana"), rec.Key)

	rec, ok, err = r.Next()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("cherry"), rec.Key)
	require.Equal(t, []byte(""), rec.Value)

	_, ok, err = r.Next()
	require.NoError(t, err)
	require.False(t, ok)
}

func TestBatchReset(t *testing.T) {
	b := New()
	b.Set([]byte("k"), []byte("v"))
	require.Equal(t, uint32(1), b.Count())
	b.Reset()
	require.True(t, b.Empty())
	require.Equal(t, 0, len(b.Data())-headerLen)
}

func TestBatchAppendFrom(t *testing.T) {
	a := New()
	a.Set([]byte("a"), []byte("1"))
	b := New()
	b.Set([]byte("b"), []byte("2"))
	b.Delete([]byte("c"))

	a.AppendFrom(b)
	require.Equal(t, uint32(3), a.Count())
	a.SetSeqNum(7)

	r, err := NewReader(a.Data())
	require.NoError(t, err)
	var keys [][]byte
	for {
		rec, ok, err := r.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		keys = append(keys, rec.Key)
	}
	require.Equal(t, [][]byte{[]byte("a"), []byte("b"), []byte("c")}, keys)
}

func TestReaderRejectsShortData(t *testing.T) {
	_, err := NewReader([]byte{1, 2, 3})
	require.Error(t, err)
}

func TestSeqNumHelper(t *testing.T) {
	b := New()
	b.Set([]byte("k"), []byte("v"))
	b.SetSeqNum(99)
	require.Equal(t, base.SeqNum(99), SeqNum(b.Data()))
}
