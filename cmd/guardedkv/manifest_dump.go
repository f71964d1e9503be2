// Copyright 2018 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var manifestDumpCmd = &cobra.Command{
	Use:   "manifest-dump <dir>",
	Short: "print the current Version's tables and guard partitions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openDB(args[0])
		if err != nil {
			return err
		}
		defer d.Close()

		if v, ok := d.GetProperty("sstables"); ok {
			fmt.Print(v)
		}
		for level := 0; level < 7; level++ {
			suffix := strconv.Itoa(level)
			n, _ := d.GetProperty("num-files-at-level" + suffix)
			if n == "0" || n == "" {
				continue
			}
			if v, ok := d.GetProperty("guard-details-at-level" + suffix); ok {
				fmt.Print(v)
			}
			if v, ok := d.GetProperty("sentinel-details-at-level" + suffix); ok {
				fmt.Print(v)
			}
		}
		return nil
	},
}
