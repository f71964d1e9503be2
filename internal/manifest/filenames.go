// Copyright 2012 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package manifest

import (
	"fmt"
	"os"

	"github.com/ehds/guardedkv/vfs"
)

// ManifestFilename returns the path of the MANIFEST file numbered
// fileNum within dirname.
func ManifestFilename(dirname string, fileNum uint64) string {
	return fmt.Sprintf("%s%cMANIFEST-%06d", trimTrailingSep(dirname), os.PathSeparator, fileNum)
}

// CurrentFilename returns the path of the CURRENT file within dirname.
func CurrentFilename(dirname string) string {
	return fmt.Sprintf("%s%cCURRENT", trimTrailingSep(dirname), os.PathSeparator)
}

func trimTrailingSep(dirname string) string {
	for len(dirname) > 0 && dirname[len(dirname)-1] == os.PathSeparator {
		dirname = dirname[:len(dirname)-1]
	}
	return dirname
}

// SetCurrentFile atomically rewrites the CURRENT file to point at the
// MANIFEST numbered fileNum, via a write-then-rename so a crash never
// observes a half-written CURRENT file (spec §4.5).
func SetCurrentFile(dirname string, fs vfs.FS, fileNum uint64) error {
	newName := CurrentFilename(dirname)
	tmpName := fmt.Sprintf("%s.%06d.dbtmp", newName, fileNum)
	_ = fs.Remove(tmpName)
	f, err := fs.Create(tmpName)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(f, "MANIFEST-%06d\n", fileNum); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return fs.Rename(tmpName, newName)
}
