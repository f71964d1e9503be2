// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package guardedkv

import (
	"sync"
	"time"

	"github.com/ehds/guardedkv/internal/base"
	"github.com/ehds/guardedkv/internal/batchrepr"
	"github.com/ehds/guardedkv/internal/memtable"
	"github.com/ehds/guardedkv/internal/record"
)

// writeRequest is one caller's pending WriteBatch, queued behind the
// current leader until its turn to be folded into a commit.
type writeRequest struct {
	batch *batchrepr.Batch
	sync  bool
	done  chan error
}

// writerQueue is the FIFO leader/follower queue the spec's write
// pipeline requires (§4.1): every Write enqueues itself; whoever finds
// the queue empty becomes leader and commits every request queued by
// the time it looks, itself included, as a single coalesced batch.
// Followers block on their own done channel until the leader commits
// their batch.
type writerQueue struct {
	mu      *sync.Mutex
	pending []*writeRequest
}

func (q *writerQueue) init(mu *sync.Mutex) {
	q.mu = mu
}

// Write applies the mutations in b atomically, in isolation from every
// other Write, Put, or Delete (spec §4.1, §6). b may be reused once
// Write returns.
func (d *DB) Write(b *WriteBatch, opts *WriteOptions) error {
	if b == nil || b.repr.Empty() {
		return nil
	}

	req := &writeRequest{batch: b.repr, sync: opts.GetSync(), done: make(chan error, 1)}

	d.mu.Lock()
	q := &d.writeQueue
	wasEmpty := len(q.pending) == 0
	q.pending = append(q.pending, req)
	if !wasEmpty {
		d.mu.Unlock()
		return <-req.done
	}

	// This goroutine is the leader: it owns d.mu until the queue it can
	// see is drained, committing every batch queued up to and including
	// its own in each pass.
	for len(q.pending) > 0 {
		batch := q.pending
		q.pending = nil
		err := d.commitLocked(batch)
		for _, r := range batch {
			r.done <- err
		}
	}
	d.mu.Unlock()
	return <-req.done
}

// commitLocked writes the coalesced contents of batch to the WAL and
// applies them to the mutable memtable. d.mu must be held on entry and
// is still held on return; makeRoomForWrite may drop and reacquire it
// internally while waiting on d.compactionCond.
func (d *DB) commitLocked(batch []*writeRequest) error {
	if d.closed {
		return base.ErrClosed
	}
	if d.bgErr != nil {
		return d.bgErr
	}

	merged := batchrepr.New()
	wantSync := false
	for _, r := range batch {
		merged.AppendFrom(r.batch)
		wantSync = wantSync || r.sync
	}
	if merged.Empty() {
		return nil
	}

	if err := d.makeRoomForWrite(false); err != nil {
		return err
	}
	if d.closed {
		return base.ErrClosed
	}

	seqNum := d.versions.LastSequence() + 1
	merged.SetSeqNum(seqNum)

	w, err := d.log.Next()
	if err != nil {
		d.bgErr = err
		return err
	}
	if _, err := w.Write(merged.Data()); err != nil {
		d.bgErr = err
		return err
	}
	if err := d.log.Flush(); err != nil {
		d.bgErr = err
		return err
	}
	if wantSync {
		if err := d.logFile.Sync(); err != nil {
			d.bgErr = err
			return err
		}
	}

	d.versions.SetLastSequence(seqNum + base.SeqNum(merged.Count()) - 1)
	if err := applyBatchRecords(d.mem, merged.Data()); err != nil {
		d.bgErr = err
		return err
	}
	return nil
}

// applyBatchRecords decodes data (a batch's full wire representation,
// header included) and inserts each record into mem under the sequence
// number its position implies. Write-time commit uses it; WAL replay in
// replayLogFile decodes records with its own loop of the same shape
// (spec §4.1, §4.5).
func applyBatchRecords(mem *memtable.Memtable, data []byte) error {
	seqNum := batchrepr.SeqNum(data)
	br, err := batchrepr.NewReader(data)
	if err != nil {
		return err
	}
	for i := base.SeqNum(0); ; i++ {
		rec, ok, err := br.Next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		ikey := base.InternalKey{UserKey: rec.Key, Trailer: base.MakeTrailer(seqNum+i, rec.Kind)}
		mem.Add(ikey, rec.Value)
	}
}

// makeRoomForWrite ensures d.mem has room for at least one more write,
// rotating it to d.imm and scheduling a flush if it has grown past
// WriteBufferSize, and throttling or blocking new writes when level 0
// has accumulated too many files for compaction to keep up (spec §4.2,
// §4.4's backpressure). d.mu must be held throughout; it may be
// released and reacquired by d.compactionCond.Wait or around the fixed
// slowdown delay, mirroring the teacher's own unlock-around-stall
// pattern in its makeRoomForWrite.
func (d *DB) makeRoomForWrite(force bool) error {
	for {
		switch {
		case d.bgErr != nil:
			return d.bgErr
		case d.closed:
			return base.ErrClosed
		case !force && d.mem.Size() < int64(d.opts.WriteBufferSize):
			return nil
		case len(d.versions.Current().Files[0]) >= d.opts.L0StopWritesThreshold:
			d.logger.Infof("guardedkv: level 0 has %d files, waiting for compaction", len(d.versions.Current().Files[0]))
			d.compactionCond.Wait()
		case d.imm != nil:
			d.compactionCond.Wait()
		case len(d.versions.Current().Files[0]) >= d.opts.L0SlowdownWritesThreshold:
			d.mu.Unlock()
			time.Sleep(time.Millisecond)
			d.mu.Lock()
		default:
			logNumber := d.versions.NextFileNum()
			logFile, err := d.fs.Create(dbFilename(d.dirname, fileTypeLog, logNumber))
			if err != nil {
				return err
			}
			if d.logFile != nil {
				d.logFile.Close()
			}
			prevLogNumber := d.logNumber
			d.logFile = logFile
			d.log = record.NewWriter(logFile)
			d.logNumber = logNumber
			d.prevLogNumber = prevLogNumber

			d.imm = d.mem
			d.mem = memtable.New(d.ucmp)
			force = false
			d.maybeScheduleFlush()
		}
	}
}
