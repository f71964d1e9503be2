// Copyright 2011 The LevelDB-Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package guardedkv

import "github.com/ehds/guardedkv/internal/batchrepr"

// WriteBatch accumulates a group of Set/Delete mutations to be applied
// atomically by Write, matching the spec's Write(batch, sync?) operation
// (§4.1, §6). It is the public counterpart to internal/batchrepr.Batch,
// whose wire format this wraps directly rather than duplicating.
type WriteBatch struct {
	repr *batchrepr.Batch
}

// NewWriteBatch returns an empty WriteBatch.
func NewWriteBatch() *WriteBatch {
	return &WriteBatch{repr: batchrepr.New()}
}

// Set records a Set mutation for (key, value). It is safe to modify the
// contents of key and value after Set returns.
func (b *WriteBatch) Set(key, value []byte) {
	b.repr.Set(key, value)
}

// Delete records a Delete mutation for key.
func (b *WriteBatch) Delete(key []byte) {
	b.repr.Delete(key)
}

// Reset clears b for reuse.
func (b *WriteBatch) Reset() {
	b.repr.Reset()
}

// Count returns the number of mutations recorded so far.
func (b *WriteBatch) Count() int { return int(b.repr.Count()) }

// Empty reports whether the batch has no mutations.
func (b *WriteBatch) Empty() bool { return b.repr.Empty() }
