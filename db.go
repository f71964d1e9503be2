// Copyright 2012 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package guardedkv implements a persistent, ordered key/value storage
// engine built on a guarded log-structured merge tree: levels beyond L0
// are partitioned by dynamically chosen guard keys rather than compacted
// across their full key range, bounding write amplification while
// keeping reads fast under continuous background compaction. It
// completes what the teacher's historical leveldb-go snapshot left as a
// "BUG: This package is incomplete" stub (leveldb.go's own words),
// generalized from plain leveled compaction to the guarded scheme and
// filled in wherever that snapshot panicked, left a TODO, or simply
// never defined a field its own code referenced.
package guardedkv

import (
	"io"
	"sync"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"

	"github.com/ehds/guardedkv/internal/base"
	"github.com/ehds/guardedkv/internal/manifest"
	"github.com/ehds/guardedkv/internal/memtable"
	"github.com/ehds/guardedkv/internal/record"
	"github.com/ehds/guardedkv/internal/tablecache"
	"github.com/ehds/guardedkv/vfs"
)

// DB is a guarded-LSM key/value store. It is safe to call Get, Write,
// Put, Delete, and NewIterator from concurrent goroutines.
type DB struct {
	dirname string
	opts    *Options
	fs      vfs.FS
	ucmp    base.Compare
	logger  base.Logger

	tableCache *tablecache.Cache
	versions   *manifest.VersionSet

	mu     sync.Mutex
	closed bool
	bgErr  error // sticky error set on WAL append/sync failure (spec §4.1, §7)

	fileLock io.Closer

	logNumber     base.FileNum
	prevLogNumber base.FileNum
	logFile       vfs.File
	log           *record.Writer

	// mem is mutable and accepts new writes. imm, if non-nil, is
	// immutable and awaits flush to L0. mem's sequence numbers are
	// always newer than imm's, whose sequence numbers are always newer
	// than anything already on disk.
	mem, imm *memtable.Memtable

	pendingOutputs map[base.FileNum]bool
	snapshots      snapshotList

	compactionCond sync.Cond
	flushing       bool
	compacting     bool

	// bg tracks the lifetime of background flush/compaction goroutines
	// so Close can wait for them to finish before tearing down the
	// versions and table cache they touch.
	bg errgroup.Group

	writeQueue writerQueue
}

func (d *DB) icmp(a, b base.InternalKey) int { return base.InternalCompare(d.ucmp, a, b) }

// Get returns the value for key, or ErrNotFound if it is absent (spec
// §4.6). With opts.Snapshot set, the read observes the database as of
// that snapshot's sequence number; otherwise it observes the most
// recently committed write.
func (d *DB) Get(key []byte, opts *ReadOptions) ([]byte, error) {
	d.mu.Lock()
	seqNum := d.versions.LastSequence()
	if opts != nil && opts.Snapshot != nil {
		seqNum = opts.Snapshot.seqNum
	}
	current := d.versions.Current()
	current.Ref()
	mem, imm := d.mem, d.imm
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		current.Unref()
		d.mu.Unlock()
	}()

	if value, kind, ok := mem.Get(key, seqNum); ok {
		if kind == base.InternalKeyKindDelete {
			return nil, base.ErrNotFound
		}
		return value, nil
	}
	if imm != nil {
		if value, kind, ok := imm.Get(key, seqNum); ok {
			if kind == base.InternalKeyKindDelete {
				return nil, base.ErrNotFound
			}
			return value, nil
		}
	}

	ikey := base.InternalKey{UserKey: key, Trailer: base.MakeTrailer(seqNum, base.InternalKeyKindMax)}
	value, kind, ok, err := current.Get(ikey, d.ucmp, d.tableCache)
	if err != nil {
		return nil, errors.Wrapf(err, "guardedkv: get %q", key)
	}
	if !ok || kind == base.InternalKeyKindDelete {
		return nil, base.ErrNotFound
	}
	return value, nil
}

// Put sets the value for key, overwriting any previous value (spec §6).
func (d *DB) Put(key, value []byte, opts *WriteOptions) error {
	b := NewWriteBatch()
	b.Set(key, value)
	return d.Write(b, opts)
}

// Delete removes the value for key (spec §6). Deleting an absent key is
// not an error.
func (d *DB) Delete(key []byte, opts *WriteOptions) error {
	b := NewWriteBatch()
	b.Delete(key)
	return d.Write(b, opts)
}

// Close shuts the database down, joining any in-flight background flush
// or compaction before closing the table cache, WAL, and MANIFEST. It is
// not safe to call Close until all outstanding iterators are closed.
func (d *DB) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.compactionCond.Broadcast()
	d.mu.Unlock()

	err := d.bg.Wait()
	err = firstError(err, d.tableCache.Close())

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.log != nil {
		err = firstError(err, d.log.Close())
	}
	if d.logFile != nil {
		err = firstError(err, d.logFile.Close())
	}
	err = firstError(err, d.versions.Close())
	if d.fileLock != nil {
		err = firstError(err, d.fileLock.Close())
		d.fileLock = nil
	}
	return err
}

// firstError returns the first non-nil error of err0 and err1, or nil if
// both are nil, matching the teacher's helper of the same name.
func firstError(err0, err1 error) error {
	if err0 != nil {
		return err0
	}
	return err1
}
