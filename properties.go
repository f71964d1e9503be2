// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package guardedkv

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ehds/guardedkv/internal/manifest"
)

// GetProperty returns the value of an internal, human-readable
// diagnostic property (spec §6). ok is false if name is not
// recognized. The returned strings are not part of any stable format
// and exist for operational debugging only.
func (d *DB) GetProperty(name string) (value string, ok bool) {
	d.mu.Lock()
	ver := d.versions.Current()
	ver.Ref()
	mem, imm := d.mem, d.imm
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		ver.Unref()
		d.mu.Unlock()
	}()

	switch {
	case name == "sstables":
		return sstablesProperty(ver), true
	case name == "stats":
		return statsProperty(ver), true
	case name == "approximate-memory-usage":
		size := mem.Size()
		if imm != nil {
			size += imm.Size()
		}
		return strconv.FormatInt(size, 10), true
	}

	for level := 0; level < manifest.NumLevels; level++ {
		suffix := strconv.Itoa(level)
		switch {
		case name == "num-files-at-level"+suffix:
			return strconv.Itoa(len(ver.Files[level])), true
		case name == "num-guards-at-level"+suffix:
			return strconv.Itoa(numGuards(ver, level)), true
		case name == "num-guard-files-at-level"+suffix:
			n, _ := partitionFileCounts(ver, level)
			return strconv.Itoa(n), true
		case name == "num-sentinel-files-at-level"+suffix:
			_, n := partitionFileCounts(ver, level)
			return strconv.Itoa(n), true
		case name == "guard-details-at-level"+suffix:
			return guardDetails(ver, level), true
		case name == "sentinel-details-at-level"+suffix:
			return sentinelDetails(ver, level), true
		}
	}
	return "", false
}

func numGuards(ver *manifest.Version, level int) int {
	g := ver.Guards[level]
	if g == nil {
		return 0
	}
	return len(g.Committed())
}

// partitionFileCounts splits level's files by guard partition: guard
// files belong to partition > 0 (bounded below by a committed guard),
// sentinel files belong to partition 0, the unbounded range below the
// smallest guard (spec's "Sentinel partition" definition).
func partitionFileCounts(ver *manifest.Version, level int) (guardFiles, sentinelFiles int) {
	g := ver.Guards[level]
	for _, f := range ver.Files[level] {
		if g == nil || g.Partition(f.Smallest.UserKey) == 0 {
			sentinelFiles++
		} else {
			guardFiles++
		}
	}
	return guardFiles, sentinelFiles
}

func guardDetails(ver *manifest.Version, level int) string {
	g := ver.Guards[level]
	if g == nil || len(g.Committed()) == 0 {
		return fmt.Sprintf("level %d: no committed guards\n", level)
	}
	counts := make([]int, g.NumPartitions())
	for _, f := range ver.Files[level] {
		counts[g.Partition(f.Smallest.UserKey)]++
	}
	var sb strings.Builder
	for p, key := range g.Committed() {
		fmt.Fprintf(&sb, "guard %d: key=%q files=%d\n", p, key, counts[p+1])
	}
	return sb.String()
}

func sentinelDetails(ver *manifest.Version, level int) string {
	g := ver.Guards[level]
	var hi []byte
	if g != nil {
		_, hi = g.Boundaries(0)
	}
	count := 0
	for _, f := range ver.Files[level] {
		if g == nil || g.Partition(f.Smallest.UserKey) == 0 {
			count++
		}
	}
	return fmt.Sprintf("level %d: sentinel range (-inf, %q) files=%d\n", level, hi, count)
}

func sstablesProperty(ver *manifest.Version) string {
	var sb strings.Builder
	for level := 0; level < manifest.NumLevels; level++ {
		if len(ver.Files[level]) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "--- level %d ---\n", level)
		for _, f := range ver.Files[level] {
			fmt.Fprintf(&sb, "  %s\n", f)
		}
	}
	return sb.String()
}

func statsProperty(ver *manifest.Version) string {
	var sb strings.Builder
	sb.WriteString("level   files    size\n")
	for level := 0; level < manifest.NumLevels; level++ {
		files := ver.Files[level]
		if len(files) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "%5d  %6d  %8d\n", level, len(files), manifest.TotalSize(files))
	}
	return sb.String()
}
