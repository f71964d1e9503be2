// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package guardedkv

import (
	"github.com/ehds/guardedkv/internal/base"
	"github.com/ehds/guardedkv/internal/guard"
	"github.com/ehds/guardedkv/internal/manifest"
	"github.com/ehds/guardedkv/internal/sstable"
	"github.com/ehds/guardedkv/internal/tablecache"
	"github.com/ehds/guardedkv/vfs"
)

// targetFileSize bounds a compaction output file before it is closed
// and a new one opened for the same guard partition (spec §4.3's
// "output splitting").
const targetFileSize = 2 << 20

// compaction describes one guard-partition's worth of work: the level
// ℓ files occupying the chosen partition (or, for level 0, every
// current L0 file, since L0 has no real partitioning for compaction
// purposes), plus the overlapping ℓ+1 files widened to ℓ+1's guard
// boundaries (spec §4.3).
type compaction struct {
	ver *manifest.Version

	level       int
	outputLevel int
	partition   int // -1 for a level-0 compaction, which ignores partitions

	inputs     []*manifest.TableMetadata
	nextInputs []*manifest.TableMetadata

	guards *guard.Set // ver.Guards[outputLevel], used to split output files
}

// maybeScheduleCompaction starts a background compaction goroutine if
// the current Version's highest-scoring level warrants one and none is
// already running (spec §4.3). d.mu must be held.
func (d *DB) maybeScheduleCompaction() {
	if d.compacting || d.closed {
		return
	}
	if d.versions.Current().CompactionScore() < 1.0 {
		return
	}
	d.compacting = true
	d.bg.Go(func() error {
		d.mu.Lock()
		defer d.mu.Unlock()
		for !d.closed && d.versions.Current().CompactionScore() >= 1.0 {
			if err := d.compactLocked(); err != nil {
				d.logger.Errorf("guardedkv: compaction failed: %v", err)
				d.bgErr = err
				break
			}
		}
		d.compacting = false
		d.compactionCond.Broadcast()
		return nil
	})
}

// compactLocked runs a single compaction round. d.mu is held on entry
// and on return; it is released around the compaction's table I/O.
func (d *DB) compactLocked() error {
	ver := d.versions.Current()
	ver.Ref()
	c := d.pickCompaction(ver)
	if c == nil {
		ver.Unref()
		return nil
	}
	d.mu.Unlock()
	ve, err := d.runCompaction(c)
	d.mu.Lock()
	ver.Unref()
	if err != nil {
		return err
	}

	if err := d.versions.LogAndApply(ve); err != nil {
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
	return nil
}

// pickCompaction selects the guard partition most in need of
// compaction within ver's highest-scoring level (spec §4.3: "within
// that level, pick the guard partition with the most files").
func (d *DB) pickCompaction(ver *manifest.Version) *compaction {
	level := ver.CompactionLevel()
	outputLevel := level + 1
	if outputLevel >= manifest.NumLevels {
		outputLevel = level
	}

	var inputs []*manifest.TableMetadata
	partition := -1
	if level == 0 {
		inputs = append(inputs, ver.Files[0]...)
	} else {
		guards := ver.Guards[level]
		bestCount := 0
		for p := 0; p < guards.NumPartitions(); p++ {
			files := ver.OverlapsGuardPartition(level, d.ucmp, p)
			if len(files) > bestCount {
				bestCount = len(files)
				partition = p
			}
		}
		if partition < 0 {
			return nil
		}
		inputs = ver.OverlapsGuardPartition(level, d.ucmp, partition)
	}
	if len(inputs) == 0 {
		return nil
	}

	lo, hi := tableRangeBounds(inputs, d.ucmp)
	nextInputs := expandToGuardBounds(ver, d.ucmp, outputLevel, lo, hi)

	return &compaction{
		ver:         ver,
		level:       level,
		outputLevel: outputLevel,
		partition:   partition,
		inputs:      inputs,
		nextInputs:  nextInputs,
		guards:      ver.Guards[outputLevel],
	}
}

func tableRangeBounds(files []*manifest.TableMetadata, ucmp base.Compare) (lo, hi []byte) {
	for _, f := range files {
		if lo == nil || ucmp(f.Smallest.UserKey, lo) < 0 {
			lo = f.Smallest.UserKey
		}
		if hi == nil || ucmp(f.Largest.UserKey, hi) > 0 {
			hi = f.Largest.UserKey
		}
	}
	return lo, hi
}

// expandToGuardBounds grows [lo, hi] to the nearest guard boundaries of
// level on both sides before collecting its overlapping files, so a
// compaction never leaves a sliver of a guard partition behind (spec
// §4.3's "key-range expansion"). A boundary left unbounded by the
// guard set (the outermost sentinel partitions) is left at its
// original, file-derived bound instead.
func expandToGuardBounds(ver *manifest.Version, ucmp base.Compare, level int, lo, hi []byte) []*manifest.TableMetadata {
	guards := ver.Guards[level]
	if guards != nil && guards.NumPartitions() > 1 {
		p0 := guards.Partition(lo)
		p1 := guards.Partition(hi)
		if loBound, _ := guards.Boundaries(p0); loBound != nil {
			lo = loBound
		}
		if _, hiBound := guards.Boundaries(p1); hiBound != nil {
			hi = hiBound
		}
	}
	return ver.Overlaps(level, ucmp, lo, hi)
}

type compactionInput struct {
	it    *sstable.Iterator
	h     *tablecache.Handle
	valid bool
}

// runCompaction merges c's inputs in internal-key order, applies the
// drop rule of spec §4.3, and writes the surviving entries to one or
// more new outputLevel tables split by c.guards and targetFileSize.
// d.mu must not be held.
func (d *DB) runCompaction(c *compaction) (*manifest.VersionEdit, error) {
	var in []*compactionInput
	closeAll := func() {
		for _, ci := range in {
			ci.it.Close()
			ci.h.Close()
		}
	}
	open := func(files []*manifest.TableMetadata) error {
		for _, f := range files {
			it, h, err := d.tableCache.NewIterator(f.FileNum)
			if err != nil {
				return err
			}
			ci := &compactionInput{it: it, h: h}
			ci.valid = it.Next()
			in = append(in, ci)
		}
		return nil
	}
	if err := open(c.inputs); err != nil {
		closeAll()
		return nil, err
	}
	if err := open(c.nextInputs); err != nil {
		closeAll()
		return nil, err
	}
	defer closeAll()

	ve := &manifest.VersionEdit{}
	for _, f := range c.inputs {
		ve.DeletedFiles = addDeleted(ve.DeletedFiles, c.level, f.FileNum)
	}
	for _, f := range c.nextInputs {
		ve.DeletedFiles = addDeleted(ve.DeletedFiles, c.outputLevel, f.FileNum)
	}

	dropSeq := d.dropThreshold()
	baseLevelHasKey := func(ukey []byte) bool {
		for lvl := c.outputLevel + 1; lvl < manifest.NumLevels; lvl++ {
			for _, f := range c.ver.Files[lvl] {
				if d.ucmp(ukey, f.Smallest.UserKey) >= 0 && d.ucmp(ukey, f.Largest.UserKey) <= 0 {
					return true
				}
			}
		}
		return false
	}

	out := newCompactionOutputs(d, c.outputLevel, c.guards)

	var lastUserKey []byte
	haveLastUserKey := false
	newerAlreadyEmitted := false

	for {
		idx := -1
		for i, ci := range in {
			if !ci.valid {
				continue
			}
			if idx == -1 || base.InternalCompare(d.ucmp, ci.it.Key(), in[idx].it.Key()) < 0 {
				idx = i
			}
		}
		if idx == -1 {
			break
		}
		key := in[idx].it.Key()
		value := in[idx].it.Value()
		in[idx].valid = in[idx].it.Next()

		if haveLastUserKey && d.ucmp(lastUserKey, key.UserKey) == 0 {
			// already have a newer entry for this user key in this stream
		} else {
			newerAlreadyEmitted = false
			lastUserKey = append(lastUserKey[:0], key.UserKey...)
			haveLastUserKey = true
		}

		drop := false
		if newerAlreadyEmitted && key.SeqNum() < dropSeq {
			if key.Kind() == base.InternalKeyKindDelete {
				drop = !baseLevelHasKey(key.UserKey)
			} else {
				drop = true
			}
		}
		newerAlreadyEmitted = true

		if drop {
			continue
		}
		if err := out.add(key, value); err != nil {
			return nil, err
		}
	}

	newFiles, newGuards, err := out.finish()
	if err != nil {
		return nil, err
	}
	ve.NewFiles = append(ve.NewFiles, newFiles...)
	ve.CommittedGuards = append(ve.CommittedGuards, newGuards...)
	return ve, nil
}

func addDeleted(m map[manifest.DeletedFileEntry]bool, level int, fileNum base.FileNum) map[manifest.DeletedFileEntry]bool {
	if m == nil {
		m = make(map[manifest.DeletedFileEntry]bool)
	}
	m[manifest.DeletedFileEntry{Level: level, FileNum: fileNum}] = true
	return m
}

// compactionOutputs builds the sequence of output tables a flush or
// compaction writes, splitting on guard-partition crossings and on
// targetFileSize, and tracking any newly-discovered guard candidates
// that a partition's output should promote to committed (spec §4.3,
// §4.4).
type compactionOutputs struct {
	d      *DB
	level  int
	guards *guard.Set

	w         *sstable.Writer
	file      vfs.File
	fileNum   base.FileNum
	partition int
	newGuards [][]byte

	files     []manifest.NewFileEntry
	committed []manifest.CommittedGuardEntry
}

func newCompactionOutputs(d *DB, level int, guards *guard.Set) *compactionOutputs {
	return &compactionOutputs{d: d, level: level, guards: guards, partition: -1}
}

func (o *compactionOutputs) add(key base.InternalKey, value []byte) error {
	partition := 0
	if o.guards != nil {
		partition = o.guards.Partition(key.UserKey)
	}
	if o.w == nil || o.partition != partition || o.w.Size() >= targetFileSize {
		if err := o.closeCurrent(); err != nil {
			return err
		}
		fileNum := o.d.versions.NextFileNum()
		filename := dbFilename(o.d.dirname, fileTypeTable, fileNum)
		file, err := o.d.fs.Create(filename)
		if err != nil {
			return err
		}
		o.d.mu.Lock()
		o.d.pendingOutputs[fileNum] = true
		o.d.mu.Unlock()
		o.w = sstable.NewWriter(file, o.d.opts.writerOptions())
		o.file = file
		o.fileNum = fileNum
		o.partition = partition
		o.newGuards = nil
	}
	if o.guards != nil && o.guards.IsCandidate(key.UserKey) && !committedAt(o.guards, o.d.ucmp, key.UserKey) {
		o.newGuards = append(o.newGuards, append([]byte(nil), key.UserKey...))
	}
	return o.w.Add(key, value)
}

func (o *compactionOutputs) closeCurrent() error {
	if o.w == nil {
		return nil
	}
	meta, err := o.w.Close()
	if err != nil {
		o.file.Close()
		return err
	}
	if err := o.file.Sync(); err != nil {
		return err
	}
	stat, err := o.file.Stat()
	if err != nil {
		return err
	}
	if err := o.file.Close(); err != nil {
		return err
	}
	o.files = append(o.files, manifest.NewFileEntry{
		Level: o.level,
		Meta: manifest.TableMetadata{
			FileNum:        o.fileNum,
			Size:           uint64(stat.Size()),
			Smallest:       meta.Smallest,
			Largest:        meta.Largest,
			SmallestSeqNum: meta.SmallestSeqNum,
			LargestSeqNum:  meta.LargestSeqNum,
		},
	})
	for _, g := range o.newGuards {
		o.committed = append(o.committed, manifest.CommittedGuardEntry{Level: o.level, Key: g})
	}
	o.w = nil
	return nil
}

func (o *compactionOutputs) finish() ([]manifest.NewFileEntry, []manifest.CommittedGuardEntry, error) {
	if err := o.closeCurrent(); err != nil {
		return nil, nil, err
	}
	return o.files, o.committed, nil
}
