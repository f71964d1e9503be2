// Copyright 2012 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package vfs

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
)

// NewMem returns a memory-backed FS. It is useful for tests and for
// running the engine with no persistent storage at all.
func NewMem() FS {
	return &memFS{files: make(map[string]*memFile)}
}

type memFS struct {
	mu    sync.Mutex
	files map[string]*memFile
}

type memFile struct {
	mu      sync.Mutex
	name    string
	data    []byte
	modTime time.Time
	closed  bool
	// rOff is the sequential read offset used by Read; ReadAt is
	// independent of it, matching os.File semantics.
	rOff int64
}

func (fs *memFS) Create(name string) (File, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	f := &memFile{name: name, modTime: nowFunc()}
	fs.files[name] = f
	return f, nil
}

func (fs *memFS) Open(name string) (File, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	f, ok := fs.files[name]
	if !ok {
		return nil, &os.PathError{Op: "open", Path: name, Err: os.ErrNotExist}
	}
	return &memFile{name: f.name, data: f.data, modTime: f.modTime}, nil
}

func (fs *memFS) OpenForReading(name string) (File, error) { return fs.Open(name) }

func (fs *memFS) Remove(name string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if _, ok := fs.files[name]; !ok {
		return &os.PathError{Op: "remove", Path: name, Err: os.ErrNotExist}
	}
	delete(fs.files, name)
	return nil
}

func (fs *memFS) Rename(oldname, newname string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	f, ok := fs.files[oldname]
	if !ok {
		return &os.PathError{Op: "rename", Path: oldname, Err: os.ErrNotExist}
	}
	delete(fs.files, oldname)
	fs.files[newname] = f
	return nil
}

func (fs *memFS) MkdirAll(dir string, perm os.FileMode) error { return nil }

func (fs *memFS) Lock(name string) (io.Closer, error) {
	// A memFS is private to one process' address space, so there is no one
	// else to exclude.
	return nopCloser{}, nil
}

func (fs *memFS) List(dir string) ([]string, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	prefix := dir
	if len(prefix) > 0 && prefix[len(prefix)-1] != '/' {
		prefix += "/"
	}
	var names []string
	for name := range fs.files {
		if len(name) > len(prefix) && name[:len(prefix)] == prefix {
			names = append(names, name[len(prefix):])
		}
	}
	return names, nil
}

func (fs *memFS) Stat(name string) (os.FileInfo, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	f, ok := fs.files[name]
	if !ok {
		return nil, &os.PathError{Op: "stat", Path: name, Err: os.ErrNotExist}
	}
	return f, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func (f *memFile) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *memFile) Read(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rOff >= int64(len(f.data)) {
		return 0, io.EOF
	}
	n := copy(p, f.data[f.rOff:])
	f.rOff += int64(n)
	return n, nil
}

func (f *memFile) ReadAt(p []byte, off int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if off >= int64(len(f.data)) {
		return 0, io.EOF
	}
	n := copy(p, f.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (f *memFile) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return 0, errors.New("guardedkv/vfs: write to closed file")
	}
	f.data = append(f.data, p...)
	f.modTime = nowFunc()
	return len(p), nil
}

func (f *memFile) Sync() error { return nil }

func (f *memFile) Stat() (os.FileInfo, error) { return f, nil }

// memFile implements os.FileInfo directly so Stat can return itself.
func (f *memFile) Name() string       { return f.name }
func (f *memFile) Size() int64        { return int64(len(f.data)) }
func (f *memFile) Mode() os.FileMode  { return 0644 }
func (f *memFile) ModTime() time.Time { return f.modTime }
func (f *memFile) IsDir() bool        { return false }
func (f *memFile) Sys() interface{}   { return nil }

var nowFunc = time.Now
