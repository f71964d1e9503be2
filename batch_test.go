// Copyright 2011 The LevelDB-Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package guardedkv

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteBatchCountAndEmpty(t *testing.T) {
	b := NewWriteBatch()
	require.True(t, b.Empty())
	require.Equal(t, 0, b.Count())

	b.Set([]byte("a"), []byte("1"))
	b.Delete([]byte("b"))
	require.False(t, b.Empty())
	require.Equal(t, 2, b.Count())
}

func TestWriteBatchReset(t *testing.T) {
	b := NewWriteBatch()
	b.Set([]byte("a"), []byte("1"))
	require.Equal(t, 1, b.Count())

	b.Reset()
	require.True(t, b.Empty())
	require.Equal(t, 0, b.Count())
}

func TestWriteBatchAppliedThroughWrite(t *testing.T) {
	d := openTestDB(t, nil)

	b := NewWriteBatch()
	b.Set([]byte("x"), []byte("10"))
	b.Set([]byte("y"), []byte("20"))
	require.NoError(t, d.Write(b, nil))

	v, err := d.Get([]byte("x"), nil)
	require.NoError(t, err)
	require.Equal(t, "10", string(v))

	v, err = d.Get([]byte("y"), nil)
	require.NoError(t, err)
	require.Equal(t, "20", string(v))
}
