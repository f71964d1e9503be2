// Copyright 2012 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package vfs is the environment abstraction named in the spec: file I/O,
// file locks, and directory listing. It is an external collaborator; this
// package supplies only the thin default (disk-backed) implementation and
// an in-memory one used by tests, grounded on leveldb-go's
// leveldb/db.FileSystem and leveldb/memfs.
package vfs

import (
	"io"
	"os"
	"path/filepath"
)

// File is a readable, writable, syncable sequence of bytes.
type File interface {
	io.Closer
	io.Reader
	io.ReaderAt
	io.Writer
	Stat() (os.FileInfo, error)
	Sync() error
}

// FS is a namespace of Files, plus the handful of whole-directory
// operations the engine needs: atomic rename (for CURRENT), advisory
// locking (for LOCK), and listing (for recovery and obsolete-file scans).
type FS interface {
	Create(name string) (File, error)
	Open(name string) (File, error)
	OpenForReading(name string) (File, error)
	Remove(name string) error
	Rename(oldname, newname string) error
	MkdirAll(dir string, perm os.FileMode) error
	Lock(name string) (io.Closer, error)
	List(dir string) ([]string, error)
	Stat(name string) (os.FileInfo, error)
}

// Default is the FS implementation backed by the operating system.
var Default FS = diskFS{}

type diskFS struct{}

func (diskFS) Create(name string) (File, error) {
	return os.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
}

func (diskFS) Open(name string) (File, error) {
	return os.OpenFile(name, os.O_RDWR, 0644)
}

func (diskFS) OpenForReading(name string) (File, error) {
	return os.Open(name)
}

func (diskFS) Remove(name string) error { return os.Remove(name) }

func (diskFS) Rename(oldname, newname string) error { return os.Rename(oldname, newname) }

func (diskFS) MkdirAll(dir string, perm os.FileMode) error { return os.MkdirAll(dir, perm) }

func (diskFS) Stat(name string) (os.FileInfo, error) { return os.Stat(name) }

func (diskFS) List(dir string) ([]string, error) {
	f, err := os.Open(dir)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return f.Readdirnames(-1)
}

func (diskFS) Lock(name string) (io.Closer, error) {
	return lockFile(name)
}

// Clean joins and cleans a directory and a basename, matching how the
// engine builds its file paths.
func Clean(dir, name string) string { return filepath.Join(dir, name) }
