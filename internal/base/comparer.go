// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package base

import "bytes"

// Compare returns -1, 0, or +1 depending on whether a is less than, equal
// to, or greater than b. Both a and b must be valid keys.
type Compare func(a, b []byte) int

// Comparer defines a total ordering over the space of []byte user keys,
// plus the two helpers used when building sstable index blocks. A DB's
// Comparer is fixed for the lifetime of the database; the encoded name is
// persisted in the MANIFEST (VersionEdit.ComparerName) and checked on
// every reopen.
type Comparer struct {
	// Name identifies the comparer on disk. Changing the semantics of
	// Compare without changing Name is an easy way to corrupt a database.
	Name string
	// Compare implements the total order.
	Compare Compare
	// FindShortestSeparator appends to dst a key k such that
	// Compare(a, k) <= 0 and Compare(k, b) < 0, given Compare(a, b) < 0.
	// It may simply append a unchanged.
	FindShortestSeparator func(dst, a, b []byte) []byte
	// FindShortSuccessor appends to dst a short key k such that
	// Compare(a, k) <= 0. It may simply append a unchanged.
	FindShortSuccessor func(dst, a []byte) []byte
}

// DefaultComparer is the default Comparer: byte-wise lexicographic order,
// matching the spec's default ordering.
var DefaultComparer = &Comparer{
	Name:    "guardedkv.BytewiseComparer",
	Compare: bytes.Compare,

	FindShortestSeparator: func(dst, a, b []byte) []byte {
		n := len(a)
		if n > len(b) {
			n = len(b)
		}
		i := 0
		for ; i < n && a[i] == b[i]; i++ {
		}
		if i >= n {
			// a is a prefix of b, or vice versa; a itself is already short.
			return append(dst, a...)
		}
		if a[i] < 0xff && a[i]+1 < b[i] {
			dst = append(dst, a[:i+1]...)
			dst[len(dst)-1]++
			return dst
		}
		return append(dst, a...)
	},

	FindShortSuccessor: func(dst, a []byte) []byte {
		for i := 0; i < len(a); i++ {
			if a[i] != 0xff {
				dst = append(dst, a[:i+1]...)
				dst[len(dst)-1]++
				return dst
			}
		}
		return append(dst, a...)
	},
}

// FilterPolicy builds and probes per-table filters (bloom filters by
// default). Both the policy and its output encoding are external
// collaborators per the spec; this interface is the narrow seam the core
// consumes them through.
type FilterPolicy interface {
	Name() string
	MayContain(filter, key []byte) bool
	NewFilter(keys [][]byte) []byte
}
