// Copyright 2018 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package main

import "github.com/ehds/guardedkv"

func openDB(dirname string) (*guardedkv.DB, error) {
	return guardedkv.Open(dirname, &guardedkv.Options{CreateIfMissing: true})
}
