// Copyright 2011 The LevelDB-Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package guardedkv

import (
	"github.com/ehds/guardedkv/internal/base"
	"github.com/ehds/guardedkv/internal/bloom"
	"github.com/ehds/guardedkv/internal/guard"
	"github.com/ehds/guardedkv/internal/sstable"
	"github.com/ehds/guardedkv/vfs"
)

// Options holds the configuration recognized by Open (spec §6). The
// teacher's db.Options defines only a bare Comparer field and a set of
// Get* accessors whose backing fields were never filled in in the
// retrieved snapshot (GetFileSystem, GetMaxOpenFiles, GetErrorIfDBExists,
// GetWriteBufferSize are called from leveldb.go but declared nowhere);
// Options supplies all of them as real fields, defaulted by
// EnsureDefaults the way pebble's Options.EnsureDefaults does.
type Options struct {
	// Comparer defines the total order over user keys. Persisted by name
	// in the MANIFEST and checked on every reopen.
	Comparer *base.Comparer

	// FilterPolicy builds and probes per-table bloom filters. Nil
	// disables filters entirely.
	FilterPolicy base.FilterPolicy

	// Logger receives informational and error messages. EnsureDefaults
	// installs vfs.NopLogger, which discards them; the engine creates no
	// LOG file itself, and vfs.NewDefaultLogger writes to a file the
	// caller opens.
	Logger base.Logger

	// FS is the environment abstraction files are created through.
	FS vfs.FS

	// CreateIfMissing creates dirname if it does not already hold a DB.
	CreateIfMissing bool
	// ErrorIfExists fails Open if dirname already holds a DB.
	ErrorIfExists bool
	// ParanoidChecks treats checksum failures as fatal rather than
	// logging and skipping them during recovery.
	ParanoidChecks bool

	// WriteBufferSize is the memtable rotation threshold, in bytes.
	WriteBufferSize int
	// MaxOpenFiles bounds the TableCache's capacity.
	MaxOpenFiles int

	// BlockSize is the target uncompressed size of a table data block.
	BlockSize int
	// BlockRestartInterval is defaulted to 16 by EnsureDefaults but is not
	// passed to the table writer, which places a restart point every 16
	// keys whatever this field holds.
	BlockRestartInterval int
	// Compression selects the table block compressor. Its zero value is
	// sstable.NoCompression, which EnsureDefaults replaces with
	// SnappyCompression, so NoCompression cannot be selected here.
	Compression sstable.Compression

	// BytesPerKeyFilter sizes the default bloom filter when FilterPolicy
	// is left nil but filters are still wanted; 0 disables the default.
	BytesPerKeyFilter int

	// GuardConfig tunes the guard-candidate predicate (spec §4.4).
	GuardConfig guard.Config

	// L0SlowdownWritesThreshold and L0StopWritesThreshold are level-0
	// file counts checked when a write needs a fresh memtable: at the stop
	// count the write waits for compaction, and at the slowdown count it
	// sleeps in 1ms steps until level 0 shrinks below it.
	L0SlowdownWritesThreshold int
	L0StopWritesThreshold     int
}

// numNonTableCacheFiles approximates how many of MaxOpenFiles are
// consumed by the WAL, MANIFEST, and LOCK files rather than table reads.
const numNonTableCacheFiles = 10

// minTableCacheSize is the floor on the TableCache's capacity regardless
// of MaxOpenFiles, matching the teacher's constant of the same name.
const minTableCacheSize = 64

const (
	defaultWriteBufferSize         = 4 << 20
	defaultMaxOpenFiles            = 1000
	defaultBlockSize               = 4096
	defaultBlockRestartInterval    = 16
	defaultL0SlowdownWritesThresh  = 8
	defaultL0StopWritesThreshold   = 12
)

// EnsureDefaults returns a copy of o (or a fresh Options, if o is nil)
// with every zero field set to its default, mirroring pebble's
// Options.EnsureDefaults. It never mutates the receiver.
func (o *Options) EnsureDefaults() *Options {
	var out Options
	if o != nil {
		out = *o
	}
	if out.Comparer == nil {
		out.Comparer = base.DefaultComparer
	}
	if out.Logger == nil {
		out.Logger = vfs.NopLogger
	}
	if out.FS == nil {
		out.FS = vfs.Default
	}
	if out.WriteBufferSize == 0 {
		out.WriteBufferSize = defaultWriteBufferSize
	}
	if out.MaxOpenFiles == 0 {
		out.MaxOpenFiles = defaultMaxOpenFiles
	}
	if out.BlockSize == 0 {
		out.BlockSize = defaultBlockSize
	}
	if out.BlockRestartInterval == 0 {
		out.BlockRestartInterval = defaultBlockRestartInterval
	}
	if out.Compression == 0 && out.BlockSize != 0 {
		out.Compression = sstable.SnappyCompression
	}
	if out.GuardConfig == (guard.Config{}) {
		out.GuardConfig = guard.DefaultConfig
	}
	if out.L0SlowdownWritesThreshold == 0 {
		out.L0SlowdownWritesThreshold = defaultL0SlowdownWritesThresh
	}
	if out.L0StopWritesThreshold == 0 {
		out.L0StopWritesThreshold = defaultL0StopWritesThreshold
	}
	if out.FilterPolicy == nil && out.BytesPerKeyFilter > 0 {
		out.FilterPolicy = bloom.NewPolicy(out.BytesPerKeyFilter)
	}
	return &out
}

func (o *Options) tableCacheSize() int {
	size := o.MaxOpenFiles - numNonTableCacheFiles
	if size < minTableCacheSize {
		size = minTableCacheSize
	}
	return size
}

func (o *Options) writerOptions() sstable.WriterOptions {
	return sstable.WriterOptions{
		Compression:  o.Compression,
		FilterPolicy: o.FilterPolicy,
		BlockSize:    o.BlockSize,
	}
}

// WriteOptions configures a single Put/Delete/Write call (spec §6).
type WriteOptions struct {
	// Sync requires the write to be fsync'd to the WAL before returning.
	Sync bool
}

// GetSync is the nil-safe accessor the teacher's db.WriteOptions
// exposes under the same name.
func (o *WriteOptions) GetSync() bool { return o != nil && o.Sync }

// ReadOptions configures a single Get or NewIterator call (spec §6).
type ReadOptions struct {
	// Snapshot pins the read to a sequence number captured earlier by
	// GetSnapshot. Nil means "read as of now".
	Snapshot *Snapshot
}
