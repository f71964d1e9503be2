// Copyright 2018 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var putCmd = &cobra.Command{
	Use:   "put <dir> <key> <value>",
	Short: "write a key/value pair",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openDB(args[0])
		if err != nil {
			return err
		}
		defer d.Close()
		return d.Put([]byte(args[1]), []byte(args[2]), nil)
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <dir> <key>",
	Short: "delete a key",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openDB(args[0])
		if err != nil {
			return err
		}
		defer d.Close()
		return d.Delete([]byte(args[1]), nil)
	},
}

var getCmd = &cobra.Command{
	Use:   "get <dir> <key>",
	Short: "read a key",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openDB(args[0])
		if err != nil {
			return err
		}
		defer d.Close()
		value, err := d.Get([]byte(args[1]), nil)
		if err != nil {
			return err
		}
		fmt.Printf("%s\n", value)
		return nil
	},
}
