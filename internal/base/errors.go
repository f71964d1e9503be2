// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package base

import "github.com/cockroachdb/errors"

// ErrNotFound means that a Get did not find the requested key. Callers are
// free to ignore it.
var ErrNotFound = errors.New("guardedkv: not found")

// ErrClosed is returned by any operation performed on a closed DB.
var ErrClosed = errors.New("guardedkv: closed")

// ErrCorruption indicates an on-disk structure (log, manifest, or table)
// failed a consistency or checksum check.
var ErrCorruption = errors.New("guardedkv: corruption")

// ErrInvalidArgument indicates a malformed request, such as an empty batch
// or an out-of-range option.
var ErrInvalidArgument = errors.New("guardedkv: invalid argument")

// ErrDBDoesNotExist is returned by Open when create_if_missing is false and
// the directory does not contain a database.
var ErrDBDoesNotExist = errors.New("guardedkv: database does not exist")

// ErrDBAlreadyExists is returned by Open when error_if_exists is true and
// the directory already contains a database.
var ErrDBAlreadyExists = errors.New("guardedkv: database already exists")
