// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package guardedkv

import (
	"github.com/ehds/guardedkv/internal/base"
	"github.com/ehds/guardedkv/internal/guard"
	"github.com/ehds/guardedkv/internal/manifest"
	"github.com/ehds/guardedkv/internal/memtable"
	"github.com/ehds/guardedkv/internal/sstable"
	"github.com/ehds/guardedkv/vfs"
)

// maybeScheduleFlush starts a background goroutine to flush d.imm to L0
// if one isn't already running (spec §4.2). d.mu must be held.
func (d *DB) maybeScheduleFlush() {
	if d.flushing || d.imm == nil || d.closed {
		return
	}
	d.flushing = true
	d.bg.Go(func() error {
		d.mu.Lock()
		defer d.mu.Unlock()
		for d.imm != nil && !d.closed {
			if err := d.flushMemtableLocked(); err != nil {
				d.logger.Errorf("guardedkv: flush failed: %v", err)
				d.bgErr = err
				break
			}
		}
		d.flushing = false
		d.compactionCond.Broadcast()
		return nil
	})
}

// flushMemtableLocked flushes d.imm to one or more new L0 tables and
// installs the resulting edit. d.mu is held on entry; it is released
// around the table-building I/O and reacquired before returning.
func (d *DB) flushMemtableLocked() error {
	imm := d.imm
	ver := d.versions.Current()
	ver.Ref()
	logNumber := d.logNumber
	d.mu.Unlock()

	ve, buildErr := d.buildFlushEdit(imm, ver)

	d.mu.Lock()
	ver.Unref()
	if buildErr != nil {
		return buildErr
	}

	ve.LogNumber = uint64(logNumber)
	err := d.versions.LogAndApply(ve)
	for _, nf := range ve.NewFiles {
		delete(d.pendingOutputs, nf.Meta.FileNum)
	}
	if err != nil {
		return err
	}

	d.imm = nil
	d.compactionCond.Broadcast()
	d.deleteObsoleteFiles()
	d.maybeScheduleCompaction()
	return nil
}

// buildFlushEdit iterates imm in sorted order and, using ver's committed
// L0 guards, splits the stream into one output table per guard
// partition plus a sentinel output (spec §4.2). d.mu must not be held;
// NextFileNum and pendingOutputs registration take it briefly
// internally.
func (d *DB) buildFlushEdit(imm *memtable.Memtable, ver *manifest.Version) (*manifest.VersionEdit, error) {
	ve := &manifest.VersionEdit{}
	guards := ver.Guards[0]

	it := imm.Iterator()
	if !it.First() {
		return ve, nil
	}

	type flushOutput struct {
		w         *sstable.Writer
		file      vfs.File
		fileNum   base.FileNum
		partition int
		newGuards [][]byte
	}
	var cur *flushOutput

	closeCur := func() error {
		if cur == nil {
			return nil
		}
		meta, err := cur.w.Close()
		if err != nil {
			cur.file.Close()
			return err
		}
		if err := cur.file.Sync(); err != nil {
			return err
		}
		stat, err := cur.file.Stat()
		if err != nil {
			return err
		}
		if err := cur.file.Close(); err != nil {
			return err
		}
		ve.NewFiles = append(ve.NewFiles, manifest.NewFileEntry{
			Level: 0,
			Meta: manifest.TableMetadata{
				FileNum:        cur.fileNum,
				Size:           uint64(stat.Size()),
				Smallest:       meta.Smallest,
				Largest:        meta.Largest,
				SmallestSeqNum: meta.SmallestSeqNum,
				LargestSeqNum:  meta.LargestSeqNum,
			},
		})
		for _, g := range cur.newGuards {
			ve.CommittedGuards = append(ve.CommittedGuards, manifest.CommittedGuardEntry{Level: 0, Key: g})
		}
		cur = nil
		return nil
	}

	for it.Valid() {
		key := it.Key()
		partition := guards.Partition(key.UserKey)
		if cur == nil || cur.partition != partition {
			if err := closeCur(); err != nil {
				return nil, err
			}
			fileNum := d.versions.NextFileNum()
			filename := dbFilename(d.dirname, fileTypeTable, fileNum)
			file, err := d.fs.Create(filename)
			if err != nil {
				return nil, err
			}
			d.mu.Lock()
			d.pendingOutputs[fileNum] = true
			d.mu.Unlock()
			cur = &flushOutput{
				w:         sstable.NewWriter(file, d.opts.writerOptions()),
				file:      file,
				fileNum:   fileNum,
				partition: partition,
			}
		}
		if err := cur.w.Add(key, it.Value()); err != nil {
			return nil, err
		}
		if guards.IsCandidate(key.UserKey) && !committedAt(guards, d.ucmp, key.UserKey) {
			cur.newGuards = append(cur.newGuards, append([]byte(nil), key.UserKey...))
		}
		it.Next()
	}
	if err := closeCur(); err != nil {
		return nil, err
	}
	return ve, nil
}

// committedAt reports whether ukey is already a committed guard in set.
func committedAt(set *guard.Set, ucmp base.Compare, ukey []byte) bool {
	for _, g := range set.Committed() {
		if ucmp(g, ukey) == 0 {
			return true
		}
	}
	return false
}
