// Copyright 2013 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package guard

import (
	"bytes"
	"fmt"
	"strconv"
	"testing"

	"github.com/cockroachdb/datadriven"
)

// TestSetDataDriven walks a committed guard Set through add/partition/
// boundaries commands, the same style the pack's own compaction and
// version-edit tests drive their state machines with.
func TestSetDataDriven(t *testing.T) {
	var s *Set
	datadriven.RunTest(t, "testdata/set", func(t *testing.T, d *datadriven.TestData) string {
		switch d.Cmd {
		case "define":
			var level int
			d.ScanArgs(t, "level", &level)
			s = NewSet(DefaultConfig, level, bytes.Compare)
			return "ok"

		case "add":
			var key string
			d.ScanArgs(t, "key", &key)
			s.Add([]byte(key))
			return "ok"

		case "committed":
			var out string
			for i, k := range s.Committed() {
				if i > 0 {
					out += ", "
				}
				out += string(k)
			}
			return out

		case "partition":
			var key string
			d.ScanArgs(t, "key", &key)
			return strconv.Itoa(s.Partition([]byte(key)))

		case "boundaries":
			var p int
			d.ScanArgs(t, "p", &p)
			lo, hi := s.Boundaries(p)
			return fmt.Sprintf("lo=%s hi=%s", keyOrNil(lo), keyOrNil(hi))

		case "num-partitions":
			return strconv.Itoa(s.NumPartitions())

		default:
			return fmt.Sprintf("unknown command: %s", d.Cmd)
		}
	})
}

func keyOrNil(k []byte) string {
	if k == nil {
		return "<nil>"
	}
	return string(k)
}
