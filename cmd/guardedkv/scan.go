// Copyright 2018 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var scanCmd = &cobra.Command{
	Use:   "scan <dir> [start]",
	Short: "print every key/value pair from start (or the beginning) onward",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openDB(args[0])
		if err != nil {
			return err
		}
		defer d.Close()

		it, err := d.NewIterator(nil)
		if err != nil {
			return err
		}
		defer it.Close()

		var valid bool
		if len(args) == 2 {
			valid = it.SeekGE([]byte(args[1]))
		} else {
			valid = it.First()
		}
		for ; valid; valid = it.Next() {
			fmt.Printf("%q: %q\n", it.Key(), it.Value())
		}
		return nil
	},
}
