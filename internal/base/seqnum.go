// Copyright 2012 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package base

// SeqNum is a sequence number defining precedence among entries for the
// same user key. A higher sequence number takes precedence over a lower
// one. Sequence numbers are 56 bits wide; the low byte of a packed trailer
// is reserved for the InternalKeyKind.
type SeqNum uint64

const (
	// SeqNumZero is never assigned to a live write. It is used as the
	// sentinel "no sequence number yet" value.
	SeqNumZero SeqNum = 0
	// SeqNumStart mirrors pebble's first sequence number for keys written
	// through the public API. Nothing in this engine reads it: the write
	// pipeline assigns LastSequence()+1, so the first write to a new
	// database gets sequence number 1.
	SeqNumStart SeqNum = 10
	// SeqNumMax is the largest representable sequence number (2^56 - 1).
	SeqNumMax SeqNum = 1<<56 - 1
)
