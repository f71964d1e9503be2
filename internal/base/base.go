// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package base holds the types shared by every layer of the engine: the
// internal key format, the comparer/filter-policy plug-in seams, the
// sequence-number and file-number spaces, and the logger interface. It is
// the lowest package in the dependency graph, mirroring pebble's
// internal/base.
package base

import "fmt"

// NumLevels is the number of levels in the LSM, level 0 through
// NumLevels-1.
const NumLevels = 7

// FileNum is the identifier for an on-disk file: a WAL segment, a table,
// or a MANIFEST. File numbers are allocated from a single counter shared
// across all three namespaces and never reused.
type FileNum uint64

func (fn FileNum) String() string { return fmt.Sprintf("%06d", uint64(fn)) }

// Logger is the info_log plug-in seam (external collaborator per the
// spec). NewDefaultLogger and NopLogger in the vfs package provide the two
// implementations the engine ships.
type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Fatalf(format string, args ...interface{})
}
