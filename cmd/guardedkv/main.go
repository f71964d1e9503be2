// Copyright 2018 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Command guardedkv is a small introspection and load tool for a
// guardedkv database, in the spirit of the pebble and ldbdump tools it
// is grounded on.
package main

import (
	"log"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "guardedkv [command] (flags)",
	Short: "guardedkv database tool",
	Long:  ``,
}

func main() {
	log.SetFlags(0)

	cobra.EnableCommandSorting = false
	rootCmd.AddCommand(
		putCmd,
		getCmd,
		deleteCmd,
		scanCmd,
		manifestDumpCmd,
	)

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
