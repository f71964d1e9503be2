// Copyright 2012 The LevelDB-Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package guardedkv

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ehds/guardedkv/internal/base"
	"github.com/ehds/guardedkv/internal/manifest"
	"github.com/ehds/guardedkv/vfs"
)

// fileType identifies the kind of file named by a file number, mirroring
// the teacher's leveldb/filenames.go constants. fileTypeManifest and
// fileTypeCurrent are handled by internal/manifest rather than here, but
// are still recognized by parseDBFilename so deleteObsoleteFiles and
// recovery's directory scan see the whole DB directory.
type fileType int

const (
	fileTypeLog fileType = iota
	fileTypeLock
	fileTypeTable
	fileTypeManifest
	fileTypeCurrent
	fileTypeTemp
)

// dbFilename returns the path of the file of type ft numbered fileNum
// within dirname. Table files are written with the ".sst" extension;
// parseDBFilename also recognizes the classic ".ldb" extension on read,
// per spec §6's "both extensions recognized on open".
func dbFilename(dirname string, ft fileType, fileNum base.FileNum) string {
	switch ft {
	case fileTypeLog:
		return vfs.Clean(dirname, fmt.Sprintf("%06d.log", uint64(fileNum)))
	case fileTypeLock:
		return vfs.Clean(dirname, "LOCK")
	case fileTypeTable:
		return vfs.Clean(dirname, fmt.Sprintf("%06d.sst", uint64(fileNum)))
	case fileTypeManifest:
		return manifest.ManifestFilename(dirname, uint64(fileNum))
	case fileTypeCurrent:
		return manifest.CurrentFilename(dirname)
	case fileTypeTemp:
		return vfs.Clean(dirname, fmt.Sprintf("%06d.dbtmp", uint64(fileNum)))
	}
	panic("guardedkv: unknown file type")
}

// parseDBFilename parses name (a basename, not a full path) into its
// fileType and file number, reporting ok=false for anything that does
// not match a recognized pattern.
func parseDBFilename(name string) (ft fileType, fileNum base.FileNum, ok bool) {
	switch {
	case name == "CURRENT":
		return fileTypeCurrent, 0, true
	case name == "LOCK":
		return fileTypeLock, 0, true
	case strings.HasPrefix(name, "MANIFEST-"):
		n, err := strconv.ParseUint(strings.TrimPrefix(name, "MANIFEST-"), 10, 64)
		if err != nil {
			return 0, 0, false
		}
		return fileTypeManifest, base.FileNum(n), true
	case strings.HasSuffix(name, ".log"):
		n, err := strconv.ParseUint(strings.TrimSuffix(name, ".log"), 10, 64)
		if err != nil {
			return 0, 0, false
		}
		return fileTypeLog, base.FileNum(n), true
	case strings.HasSuffix(name, ".sst") || strings.HasSuffix(name, ".ldb"):
		stem := strings.TrimSuffix(strings.TrimSuffix(name, ".sst"), ".ldb")
		n, err := strconv.ParseUint(stem, 10, 64)
		if err != nil {
			return 0, 0, false
		}
		return fileTypeTable, base.FileNum(n), true
	}
	return 0, 0, false
}
