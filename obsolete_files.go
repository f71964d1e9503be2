// Copyright 2012 The LevelDB-Go and Pebble Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package guardedkv

// deleteObsoleteFiles scans the database directory for WAL, table, and
// MANIFEST files no longer referenced by any live Version, pending
// output, or the current log/MANIFEST, and removes them (spec §4.8).
// d.mu must be held on entry and is still held on return; the
// directory listing and removals run with it released, following the
// teacher's own unlock-then-lock ordering around this I/O.
func (d *DB) deleteObsoleteFiles() {
	live := d.versions.LiveFileNums(d.pendingOutputs)
	logNumber := d.logNumber
	manifestFileNum := d.versions.ManifestFileNum()

	d.mu.Unlock()
	defer d.mu.Lock()

	list, err := d.fs.List(d.dirname)
	if err != nil {
		return
	}
	for _, name := range list {
		ft, fileNum, ok := parseDBFilename(name)
		if !ok {
			continue
		}
		keep := true
		switch ft {
		case fileTypeLog:
			keep = fileNum >= logNumber
		case fileTypeManifest:
			keep = fileNum >= manifestFileNum
		case fileTypeTable:
			keep = live[fileNum]
		default:
			continue
		}
		if keep {
			continue
		}
		if ft == fileTypeTable {
			d.tableCache.Evict(fileNum)
		}
		d.fs.Remove(dbFilename(d.dirname, ft, fileNum))
	}
}
