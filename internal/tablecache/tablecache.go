// Copyright 2013 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package tablecache caches open sstable.Reader handles, named as the
// component Version.Get and compaction merging iterators go through to
// avoid reopening a table file on every lookup (spec §4.6). It is
// grounded on leveldb-go's leveldb/table_cache.go, simplified from that
// file's async channel-per-node loading (a relic of an early
// leveldb-go design) to synchronous loads under the cache's own lock,
// since the spec does not require overlapping loads of the same table
// to be deduplicated across goroutines for correctness, only cheaply.
package tablecache

import (
	"fmt"
	"sync"

	"github.com/ehds/guardedkv/internal/base"
	"github.com/ehds/guardedkv/internal/manifest"
	"github.com/ehds/guardedkv/internal/sstable"
	"github.com/ehds/guardedkv/vfs"
)

// Opener opens the underlying file for a table's file number, so Cache
// stays agnostic of filename conventions (owned by the top-level
// package's filenames.go).
type Opener func(fileNum base.FileNum) (vfs.File, int64, error)

// Cache is an LRU cache of open sstable.Reader handles, bounded to
// size entries.
type Cache struct {
	opener       Opener
	ucmp         base.Compare
	filterPolicy base.FilterPolicy
	size         int

	mu    sync.Mutex
	nodes map[base.FileNum]*node
	dummy node // sentinel head/tail of the LRU list
}

type node struct {
	fileNum  base.FileNum
	reader   *sstable.Reader
	err      error
	refCount int
	next, prev *node
}

// New returns a Cache that opens tables via opener and holds at most
// size open Readers at once.
func New(opener Opener, ucmp base.Compare, filterPolicy base.FilterPolicy, size int) *Cache {
	c := &Cache{opener: opener, ucmp: ucmp, filterPolicy: filterPolicy, size: size, nodes: make(map[base.FileNum]*node)}
	c.dummy.next = &c.dummy
	c.dummy.prev = &c.dummy
	return c
}

// Open returns an Iterator positioned for a lookup of key in the table
// numbered fileNum. The caller must Close the returned Handle (not the
// Iterator) when done to release the cache's reference.
func (c *Cache) Open(fileNum base.FileNum, key base.InternalKey) (*sstable.Iterator, *Handle, error) {
	n := c.findNode(fileNum)
	if n.err != nil {
		c.release(n)
		return nil, nil, fmt.Errorf("tablecache: opening table %s: %w", fileNum, n.err)
	}
	it, err := n.reader.SeekGE(key)
	if err != nil {
		c.release(n)
		return nil, nil, err
	}
	if it == nil {
		c.release(n)
		return nil, nil, nil
	}
	return it, &Handle{c: c, n: n}, nil
}

// NewIterator returns a full-table Iterator over fileNum.
func (c *Cache) NewIterator(fileNum base.FileNum) (*sstable.Iterator, *Handle, error) {
	n := c.findNode(fileNum)
	if n.err != nil {
		c.release(n)
		return nil, nil, fmt.Errorf("tablecache: opening table %s: %w", fileNum, n.err)
	}
	it, err := n.reader.NewIterator()
	if err != nil {
		c.release(n)
		return nil, nil, err
	}
	return it, &Handle{c: c, n: n}, nil
}

// Find implements manifest.TableFinder, bundling the sstable.Iterator
// and its Handle behind a single Close so Version.Get can stay
// agnostic of the cache's own reference counting.
func (c *Cache) Find(fileNum base.FileNum, key base.InternalKey) (manifest.TableIterator, error) {
	it, h, err := c.Open(fileNum, key)
	if err != nil || it == nil {
		if h != nil {
			h.Close()
		}
		return nil, err
	}
	return &combinedIter{it: it, h: h}, nil
}

type combinedIter struct {
	it *sstable.Iterator
	h  *Handle
}

func (c *combinedIter) Next() bool             { return c.it.Next() }
func (c *combinedIter) Key() base.InternalKey  { return c.it.Key() }
func (c *combinedIter) Value() []byte          { return c.it.Value() }
func (c *combinedIter) Close() error {
	c.it.Close()
	return c.h.Close()
}

// Handle pins one table's cache node until Close is called, mirroring
// the teacher's tableCacheIter refcount-on-close pattern.
type Handle struct {
	c      *Cache
	n      *node
	closed bool
}

// Close releases the handle's reference on its cache node.
func (h *Handle) Close() error {
	if h.closed {
		return nil
	}
	h.closed = true
	h.c.release(h.n)
	return nil
}

func (c *Cache) findNode(fileNum base.FileNum) *node {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := c.nodes[fileNum]
	if n == nil {
		n = &node{fileNum: fileNum}
		c.nodes[fileNum] = n
		if len(c.nodes) > c.size {
			c.evictLocked(c.dummy.prev)
		}
		f, size, err := c.opener(fileNum)
		if err != nil {
			n.err = err
		} else {
			n.reader, n.err = sstable.NewReader(f, size, c.ucmp, c.filterPolicy)
		}
	} else {
		n.next.prev = n.prev
		n.prev.next = n.next
	}
	n.next = c.dummy.next
	n.prev = &c.dummy
	n.next.prev = n
	n.prev.next = n
	n.refCount++
	return n
}

// release decrements n's refcount, closing its reader once both the
// LRU has evicted it and no caller holds a Handle on it.
func (c *Cache) release(n *node) {
	c.mu.Lock()
	n.refCount--
	dead := n.refCount <= 0 && c.nodes[n.fileNum] != n
	c.mu.Unlock()
	if dead && n.reader != nil {
		n.reader.Close()
	}
}

// evictLocked removes n from the cache's map and LRU list. c.mu must be
// held.
func (c *Cache) evictLocked(n *node) {
	delete(c.nodes, n.fileNum)
	n.next.prev = n.prev
	n.prev.next = n.next
	if n.refCount <= 0 && n.reader != nil {
		go n.reader.Close()
	}
}

// Evict drops fileNum from the cache, called once a compaction's
// inputs have been fully consumed and their table files marked
// obsolete (spec §4.5).
func (c *Cache) Evict(fileNum base.FileNum) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n := c.nodes[fileNum]; n != nil {
		c.evictLocked(n)
	}
}

// Close closes every reader the cache currently holds.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for n := c.dummy.next; n != &c.dummy; n = n.next {
		if n.reader != nil {
			n.reader.Close()
		}
	}
	c.nodes = nil
	c.dummy.next = nil
	c.dummy.prev = nil
	return nil
}
