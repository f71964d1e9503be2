// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package memtable

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ehds/guardedkv/internal/base"
)

func key(userKey string, seq base.SeqNum, kind base.InternalKeyKind) base.InternalKey {
	return base.InternalKey{UserKey: []byte(userKey), Trailer: base.MakeTrailer(seq, kind)}
}

func TestAddAndGetNewestVisible(t *testing.T) {
	m := New(bytes.Compare)
	m.Add(key("a", 1, base.InternalKeyKindSet), []byte("v1"))
	m.Add(key("a", 3, base.InternalKeyKindSet), []byte("v3"))
	m.Add(key("a", 2, base.InternalKeyKindSet), []byte("v2"))

	v, kind, ok := m.Get([]byte("a"), base.SeqNumMax)
	require.True(t, ok)
	require.Equal(t, base.InternalKeyKindSet, kind)
	require.Equal(t, []byte("v3"), v)

	// A read as of sequence 2 must not observe the sequence-3 write.
	v, _, ok = m.Get([]byte("a"), 2)
	require.True(t, ok)
	require.Equal(t, []byte("v2"), v)

	_, _, ok = m.Get([]byte("missing"), base.SeqNumMax)
	require.False(t, ok)
}

func TestGetObservesDeleteTombstone(t *testing.T) {
	m := New(bytes.Compare)
	m.Add(key("a", 1, base.InternalKeyKindSet), []byte("v1"))
	m.Add(key("a", 2, base.InternalKeyKindDelete), nil)

	_, kind, ok := m.Get([]byte("a"), base.SeqNumMax)
	require.True(t, ok)
	require.Equal(t, base.InternalKeyKindDelete, kind)
}

func TestIteratorForwardOrder(t *testing.T) {
	m := New(bytes.Compare)
	for i, k := range []string{"c", "a", "e", "b", "d"} {
		m.Add(key(k, base.SeqNum(i+1), base.InternalKeyKindSet), []byte(k))
	}

	it := m.Iterator()
	require.True(t, it.First())
	var got []string
	for it.Valid() {
		got = append(got, string(it.Key().UserKey))
		if !it.Next() {
			break
		}
	}
	require.Equal(t, []string{"a", "b", "c", "d", "e"}, got)
}

func TestIteratorLastAndPrev(t *testing.T) {
	m := New(bytes.Compare)
	for i, k := range []string{"a", "b", "c"} {
		m.Add(key(k, base.SeqNum(i+1), base.InternalKeyKindSet), []byte(k))
	}

	it := m.Iterator()
	require.True(t, it.Last())
	require.Equal(t, "c", string(it.Key().UserKey))
	require.True(t, it.Prev())
	require.Equal(t, "b", string(it.Key().UserKey))
	require.True(t, it.Prev())
	require.Equal(t, "a", string(it.Key().UserKey))
	require.False(t, it.Prev())
}

func TestIteratorSeekGEAndSeekLE(t *testing.T) {
	m := New(bytes.Compare)
	for i, k := range []string{"a", "c", "e"} {
		m.Add(key(k, base.SeqNum(i+1), base.InternalKeyKindSet), []byte(k))
	}

	it := m.Iterator()
	require.True(t, it.SeekGE(base.InternalKey{UserKey: []byte("b")}))
	require.Equal(t, "c", string(it.Key().UserKey))

	require.True(t, it.SeekLE(base.InternalKey{UserKey: []byte("d"), Trailer: base.MakeTrailer(base.SeqNumMax, base.InternalKeyKindMax)}))
	require.Equal(t, "c", string(it.Key().UserKey))

	require.False(t, it.SeekGE(base.InternalKey{UserKey: []byte("z")}))
}

func TestSizeGrowsOnAdd(t *testing.T) {
	m := New(bytes.Compare)
	require.Equal(t, int64(0), m.Size())
	m.Add(key("a", 1, base.InternalKeyKindSet), []byte("value"))
	require.Greater(t, m.Size(), int64(0))
}
