// Copyright 2012 The LevelDB-Go and Pebble Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can
// be found in the LICENSE file.

package guardedkv

import (
	"github.com/ehds/guardedkv/internal/base"
	"github.com/ehds/guardedkv/internal/manifest"
	"github.com/ehds/guardedkv/internal/sstable"
	"github.com/ehds/guardedkv/vfs"
)

// Range is a half-open user-key range [Start, Limit) used by
// GetApproximateSizes (spec §6).
type Range struct {
	Start, Limit []byte
}

// GetApproximateSizes estimates, for each range, the on-disk bytes
// occupied by tables overlapping it: a file wholly inside the range
// counts in full, a file only partially overlapping counts in full as
// well, matching the teacher corpus's own coarse (file-granularity,
// not block-granularity) estimate rather than pebble's finer
// block-level accounting, which needs per-block key bounds this
// engine's sstable format does not expose in its index entries.
func (d *DB) GetApproximateSizes(ranges []Range) []uint64 {
	d.mu.Lock()
	ver := d.versions.Current()
	ver.Ref()
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		ver.Unref()
		d.mu.Unlock()
	}()

	sizes := make([]uint64, len(ranges))
	for i, r := range ranges {
		var total uint64
		for level := 0; level < manifest.NumLevels; level++ {
			for _, f := range ver.Files[level] {
				if r.Start != nil && d.ucmp(f.Largest.UserKey, r.Start) < 0 {
					continue
				}
				if r.Limit != nil && d.ucmp(f.Smallest.UserKey, r.Limit) >= 0 {
					continue
				}
				total += f.Size
			}
		}
		sizes[i] = total
	}
	return sizes
}

// CompactRange forces every table overlapping [begin, end] (both ends
// inclusive, and at level 0 widened to every table transitively
// overlapping those) at every level to be compacted into the next
// level, ignoring the usual
// score-based trigger (spec §6). A nil begin or end means "from the
// first/to the last key". Idempotent: once no table in the range
// remains below the bottom level, it is a no-op.
func (d *DB) CompactRange(begin, end []byte) error {
	for level := 0; level < manifest.NumLevels-1; level++ {
		for {
			d.mu.Lock()
			if d.closed {
				d.mu.Unlock()
				return base.ErrClosed
			}
			ver := d.versions.Current()
			ver.Ref()
			inputs := ver.Overlaps(level, d.ucmp, begin, end)
			if len(inputs) == 0 {
				ver.Unref()
				d.mu.Unlock()
				break
			}
			outputLevel := level + 1
			lo, hi := tableRangeBounds(inputs, d.ucmp)
			nextInputs := expandToGuardBounds(ver, d.ucmp, outputLevel, lo, hi)
			c := &compaction{
				ver:         ver,
				level:       level,
				outputLevel: outputLevel,
				partition:   -1,
				inputs:      inputs,
				nextInputs:  nextInputs,
				guards:      ver.Guards[outputLevel],
			}
			d.mu.Unlock()

			ve, err := d.runCompaction(c)

			d.mu.Lock()
			ver.Unref()
			if err != nil {
				d.mu.Unlock()
				return err
			}
			if err := d.versions.LogAndApply(ve); err != nil {
				d.mu.Unlock()
				return err
			}
			for _, nf := range ve.NewFiles {
				delete(d.pendingOutputs, nf.Meta.FileNum)
			}
			for de := range ve.DeletedFiles {
				d.tableCache.Evict(de.FileNum)
			}
			d.compactionCond.Broadcast()
			d.deleteObsoleteFiles()
			d.mu.Unlock()
		}
	}
	return nil
}

// DestroyDB removes every file belonging to the database at dirname
// (spec §6). It does not lock the directory first, so the caller must
// ensure no DB handle is open on it.
func DestroyDB(dirname string, opts *Options) error {
	opts = opts.EnsureDefaults()
	fs := opts.FS

	list, err := fs.List(dirname)
	if err != nil {
		return nil
	}
	for _, name := range list {
		ft, fileNum, ok := parseDBFilename(name)
		if !ok {
			continue
		}
		if err := fs.Remove(dbFilename(dirname, ft, fileNum)); err != nil {
			return err
		}
	}
	return nil
}

// RepairDB attempts to bring dirname back into an openable state after
// MANIFEST corruption, by discarding the MANIFEST and CURRENT files and
// rebuilding a fresh Version from whatever table files remain on disk,
// treating each as an L0 file of unknown guard status (spec §6's
// disaster-recovery path; the source's own RepairDB is documented as
// "scans tables, rebuilds a version" without guard awareness, so guard
// partitions simply start uncommitted again and are rediscovered by
// subsequent compactions).
func RepairDB(dirname string, opts *Options) error {
	opts = opts.EnsureDefaults()
	fs := opts.FS

	list, err := fs.List(dirname)
	if err != nil {
		return err
	}

	vs := manifest.New(dirname, fs, opts.Comparer.Compare, opts.GuardConfig, opts.Logger)
	if err := vs.Create(opts.Comparer.Name); err != nil {
		return err
	}

	ve := &manifest.VersionEdit{}
	for _, name := range list {
		ft, fileNum, ok := parseDBFilename(name)
		if !ok || ft != fileTypeTable {
			continue
		}
		vs.MarkFileNumUsed(fileNum)
		meta, err := repairTableMetadata(fs, dbFilename(dirname, fileTypeTable, fileNum), opts)
		if err != nil {
			opts.Logger.Errorf("guardedkv: repair: skipping unreadable table %s: %v", name, err)
			continue
		}
		meta.FileNum = fileNum
		ve.NewFiles = append(ve.NewFiles, manifest.NewFileEntry{Level: 0, Meta: meta})
	}
	if err := vs.LogAndApply(ve); err != nil {
		return err
	}
	return vs.Close()
}

// repairTableMetadata derives a TableMetadata for an orphaned table by
// opening and scanning it directly (RepairDB cannot trust any bounds
// that might have been recorded in a corrupt MANIFEST).
func repairTableMetadata(fs vfs.FS, filename string, opts *Options) (manifest.TableMetadata, error) {
	f, err := fs.OpenForReading(filename)
	if err != nil {
		return manifest.TableMetadata{}, err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return manifest.TableMetadata{}, err
	}
	r, err := sstable.NewReader(f, stat.Size(), opts.Comparer.Compare, opts.FilterPolicy)
	if err != nil {
		return manifest.TableMetadata{}, err
	}

	it, err := r.NewIterator()
	if err != nil {
		return manifest.TableMetadata{}, err
	}
	defer it.Close()

	var meta manifest.TableMetadata
	meta.Size = uint64(stat.Size())
	haveKey := false
	for it.Next() {
		key := it.Key()
		if !haveKey {
			meta.Smallest = key.Clone()
			meta.SmallestSeqNum = key.SeqNum()
			meta.LargestSeqNum = key.SeqNum()
			haveKey = true
		}
		meta.Largest = key.Clone()
		if key.SeqNum() > meta.LargestSeqNum {
			meta.LargestSeqNum = key.SeqNum()
		}
		if key.SeqNum() < meta.SmallestSeqNum {
			meta.SmallestSeqNum = key.SeqNum()
		}
	}
	return meta, nil
}
