// Copyright 2012 The LevelDB-Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package guardedkv

import (
	"io"
	"os"
	"sort"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/ehds/guardedkv/internal/base"
	"github.com/ehds/guardedkv/internal/batchrepr"
	"github.com/ehds/guardedkv/internal/manifest"
	"github.com/ehds/guardedkv/internal/memtable"
	"github.com/ehds/guardedkv/internal/record"
	"github.com/ehds/guardedkv/internal/sstable"
	"github.com/ehds/guardedkv/internal/tablecache"
	"github.com/ehds/guardedkv/vfs"
)

// Open opens a guardedkv database whose files live in dirname, creating
// one first if opts.CreateIfMissing and none exists (spec §6's Open).
func Open(dirname string, opts *Options) (*DB, error) {
	opts = opts.EnsureDefaults()
	fs := opts.FS

	d := &DB{
		dirname:        dirname,
		opts:           opts,
		fs:             fs,
		ucmp:           opts.Comparer.Compare,
		logger:         opts.Logger,
		pendingOutputs: make(map[base.FileNum]bool),
	}
	d.snapshots.init()
	d.compactionCond = sync.Cond{L: &d.mu}
	d.writeQueue.init(&d.mu)

	d.versions = manifest.New(dirname, fs, d.ucmp, opts.GuardConfig, d.logger)
	d.tableCache = tablecache.New(d.openTableForRead, d.ucmp, opts.FilterPolicy, opts.tableCacheSize())
	d.mem = memtable.New(d.ucmp)

	if err := fs.MkdirAll(dirname, 0755); err != nil {
		return nil, err
	}
	fileLock, err := fs.Lock(dbFilename(dirname, fileTypeLock, 0))
	if err != nil {
		return nil, errors.Wrapf(err, "guardedkv: locking %q", dirname)
	}
	defer func() {
		if fileLock != nil {
			fileLock.Close()
		}
	}()

	if _, err := fs.Stat(dbFilename(dirname, fileTypeCurrent, 0)); os.IsNotExist(err) {
		if !opts.CreateIfMissing {
			return nil, base.ErrDBDoesNotExist
		}
		if err := createDB(dirname, fs, opts, d.versions); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, errors.Wrapf(err, "guardedkv: database %q", dirname)
	} else if opts.ErrorIfExists {
		return nil, base.ErrDBAlreadyExists
	}

	if err := d.versions.Load(opts.Comparer.Name); err != nil {
		return nil, errors.Wrapf(err, "guardedkv: loading manifest for %q", dirname)
	}

	var ve manifest.VersionEdit
	ls, err := fs.List(dirname)
	if err != nil {
		return nil, err
	}
	type logFileAndName struct {
		num  base.FileNum
		name string
	}
	var logFiles []logFileAndName
	for _, filename := range ls {
		ft, fn, ok := parseDBFilename(filename)
		if ok && ft == fileTypeLog && (fn >= base.FileNum(d.versions.LogNumber()) || uint64(fn) == d.versions.PrevLogNumber()) {
			logFiles = append(logFiles, logFileAndName{fn, filename})
		}
	}
	sort.Slice(logFiles, func(i, j int) bool { return logFiles[i].num < logFiles[j].num })
	for _, lf := range logFiles {
		maxSeqNum, err := d.replayLogFile(&ve, vfs.Clean(dirname, lf.name))
		if err != nil {
			return nil, err
		}
		d.versions.MarkFileNumUsed(lf.num)
		if d.versions.LastSequence() < maxSeqNum {
			d.versions.SetLastSequence(maxSeqNum)
		}
	}

	ve.LogNumber = uint64(d.versions.NextFileNum())
	d.logNumber = base.FileNum(ve.LogNumber)
	logFile, err := fs.Create(dbFilename(dirname, fileTypeLog, d.logNumber))
	if err != nil {
		return nil, err
	}
	defer func() {
		if logFile != nil {
			logFile.Close()
		}
	}()
	d.log = record.NewWriter(logFile)

	if err := d.versions.LogAndApply(&ve); err != nil {
		return nil, err
	}

	d.mu.Lock()
	d.deleteObsoleteFiles()
	d.maybeScheduleCompaction()
	d.mu.Unlock()

	d.logFile, logFile = logFile, nil
	d.fileLock, fileLock = fileLock, nil
	return d, nil
}

func createDB(dirname string, fs vfs.FS, opts *Options, vs *manifest.VersionSet) (retErr error) {
	if err := vs.Create(opts.Comparer.Name); err != nil {
		return errors.Wrapf(err, "guardedkv: creating database %q", dirname)
	}
	return nil
}

// replayLogFile replays the records in the named WAL file into a fresh
// Memtable and, if it ends up non-empty, flushes that memtable straight
// to a single L0 table. d.mu must not be held.
func (d *DB) replayLogFile(ve *manifest.VersionEdit, filename string) (maxSeqNum base.SeqNum, err error) {
	file, err := d.fs.Open(filename)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	var mem *memtable.Memtable
	rr := record.NewReader(file)
	for {
		rec, err := rr.ReadRecord()
		if err == io.EOF {
			break
		}
		if err != nil {
			if d.opts.ParanoidChecks {
				return 0, errors.Wrapf(err, "guardedkv: corrupt log file %q", filename)
			}
			d.logger.Errorf("guardedkv: truncating corrupt log file %q: %v", filename, err)
			break
		}
		br, err := batchrepr.NewReader(rec)
		if err != nil {
			if d.opts.ParanoidChecks {
				return 0, err
			}
			d.logger.Errorf("guardedkv: truncating corrupt log file %q: %v", filename, err)
			break
		}
		seqNum := batchrepr.SeqNum(rec)
		count := batchrepr.Count(rec)
		if maxSeqNum < seqNum+base.SeqNum(count) {
			maxSeqNum = seqNum + base.SeqNum(count)
		}
		if mem == nil {
			mem = memtable.New(d.ucmp)
		}
		for i := base.SeqNum(0); ; i++ {
			rrec, ok, err := br.Next()
			if err != nil {
				if d.opts.ParanoidChecks {
					return 0, err
				}
				break
			}
			if !ok {
				break
			}
			ikey := base.InternalKey{UserKey: rrec.Key, Trailer: base.MakeTrailer(seqNum+i, rrec.Kind)}
			mem.Add(ikey, rrec.Value)
		}
	}

	if mem != nil && mem.Size() > 0 {
		meta, err := d.writeLevel0Table(mem)
		if err != nil {
			return 0, err
		}
		ve.NewFiles = append(ve.NewFiles, manifest.NewFileEntry{Level: 0, Meta: *meta})
		delete(d.pendingOutputs, meta.FileNum)
	}
	return maxSeqNum, nil
}

// writeLevel0Table writes the contents of mem to a single new L0 table,
// mirroring the teacher's writeLevel0Table but backed by
// internal/sstable instead of a no-op stand-in. Used during recovery,
// where durability -- not guard-optimal partitioning -- is what matters;
// the background flush path (flush.go) performs the guard-partitioned
// split spec §4.2 describes for steady-state operation.
func (d *DB) writeLevel0Table(mem *memtable.Memtable) (meta *manifest.TableMetadata, err error) {
	fileNum := d.versions.NextFileNum()
	filename := dbFilename(d.dirname, fileTypeTable, fileNum)

	d.mu.Lock()
	d.pendingOutputs[fileNum] = true
	d.mu.Unlock()
	defer func() {
		if err != nil {
			d.mu.Lock()
			delete(d.pendingOutputs, fileNum)
			d.mu.Unlock()
		}
	}()

	file, err := d.fs.Create(filename)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			file.Close()
			d.fs.Remove(filename)
		}
	}()

	w := sstable.NewWriter(file, d.opts.writerOptions())
	it := mem.Iterator()
	if !it.First() {
		w.Close()
		file.Close()
		d.fs.Remove(filename)
		return nil, errors.New("guardedkv: replayed log produced an empty memtable")
	}
	for it.Valid() {
		if err := w.Add(it.Key(), it.Value()); err != nil {
			return nil, err
		}
		it.Next()
	}
	wmeta, err := w.Close()
	if err != nil {
		return nil, err
	}
	if err := file.Sync(); err != nil {
		return nil, err
	}
	stat, err := file.Stat()
	if err != nil {
		return nil, err
	}
	if err := file.Close(); err != nil {
		return nil, err
	}

	return &manifest.TableMetadata{
		FileNum:        fileNum,
		Size:           uint64(stat.Size()),
		Smallest:       wmeta.Smallest,
		Largest:        wmeta.Largest,
		SmallestSeqNum: wmeta.SmallestSeqNum,
		LargestSeqNum:  wmeta.LargestSeqNum,
	}, nil
}

// openTableForRead opens the table file numbered fileNum for reading,
// the Opener internal/tablecache.Cache uses to load sstable.Readers.
func (d *DB) openTableForRead(fileNum base.FileNum) (vfs.File, int64, error) {
	name := dbFilename(d.dirname, fileTypeTable, fileNum)
	f, err := d.fs.OpenForReading(name)
	if err != nil {
		return nil, 0, err
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, err
	}
	return f, stat.Size(), nil
}
