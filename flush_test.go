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

func TestFlushMovesDataToL0(t *testing.T) {
	opts := &Options{FS: vfs.NewMem(), CreateIfMissing: true, WriteBufferSize: 4096}
	d := openTestDB(t, opts)

	for i := 0; i < 500; i++ {
		key := fmt.Sprintf("key-%04d", i)
		require.NoError(t, d.Put([]byte(key), []byte("value-that-is-reasonably-long-to-fill-the-buffer"), nil))
	}

	require.Eventually(t, func() bool {
		n, ok := d.GetProperty("num-files-at-level0")
		return ok && n != "0"
	}, 5*time.Second, 10*time.Millisecond)

	for i := 0; i < 500; i += 37 {
		key := fmt.Sprintf("key-%04d", i)
		v, err := d.Get([]byte(key), nil)
		require.NoError(t, err)
		require.Equal(t, "value-that-is-reasonably-long-to-fill-the-buffer", string(v))
	}
}
