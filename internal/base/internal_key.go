// Copyright 2012 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package base

import (
	"encoding/binary"
	"fmt"
)

// InternalKeyKind enumerates the type of entry stored alongside a user key.
// Only the two kinds named by the spec exist; InternalKeyKindMax is an
// alias for the largest of them, used to build search keys that sort
// before any real entry for a user key at a given sequence number,
// mirroring leveldb-go's internalKeyKindMax.
type InternalKeyKind uint8

const (
	// InternalKeyKindDelete tombstones a user key.
	InternalKeyKindDelete InternalKeyKind = 0
	// InternalKeyKindSet records a value for a user key.
	InternalKeyKindSet InternalKeyKind = 1
	// InternalKeyKindMax equals the largest valid kind (InternalKeyKindSet),
	// not some sentinel above it: since trailers order by (user key asc,
	// seqnum desc, kind desc), pairing a target seqnum with the largest
	// kind produces a lookup key that sorts before every real entry
	// sharing that user key and sequence number. This is leveldb's
	// kValueTypeForSeek trick; raising it past the largest real kind
	// would invert that ordering.
	InternalKeyKindMax InternalKeyKind = 1
)

func (k InternalKeyKind) String() string {
	switch k {
	case InternalKeyKindDelete:
		return "DEL"
	case InternalKeyKindSet:
		return "SET"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(k))
	}
}

// trailerLen is the number of bytes appended to a user key to form an
// encoded InternalKey: a 56-bit sequence number and an 8-bit kind, packed
// little-endian as a single uint64, exactly as classic LevelDB does.
const trailerLen = 8

// InternalKeyTrailer packs a sequence number and kind into the 8-byte
// trailer format used on the wire and in every InternalKey.
type InternalKeyTrailer uint64

// MakeTrailer packs seqNum and kind into a trailer.
func MakeTrailer(seqNum SeqNum, kind InternalKeyKind) InternalKeyTrailer {
	return InternalKeyTrailer(uint64(seqNum)<<8 | uint64(kind))
}

// SeqNum returns the sequence number encoded in the trailer.
func (t InternalKeyTrailer) SeqNum() SeqNum { return SeqNum(uint64(t) >> 8) }

// Kind returns the InternalKeyKind encoded in the trailer.
func (t InternalKeyTrailer) Kind() InternalKeyKind { return InternalKeyKind(uint64(t) & 0xff) }

// InternalKey is the unit of ordering for every on-disk and in-memory
// structure in the engine: a user key paired with a sequence number and a
// kind. InternalKeys compare by user key ascending, then by sequence
// number descending, then by kind descending, so that for a fixed user
// key the newest entry always sorts first.
type InternalKey struct {
	UserKey []byte
	Trailer InternalKeyTrailer
}

// MakeInternalKey returns an InternalKey for the given user key, sequence
// number and kind.
func MakeInternalKey(userKey []byte, seqNum SeqNum, kind InternalKeyKind) InternalKey {
	return InternalKey{UserKey: userKey, Trailer: MakeTrailer(seqNum, kind)}
}

// SeqNum returns the key's sequence number.
func (k InternalKey) SeqNum() SeqNum { return k.Trailer.SeqNum() }

// Kind returns the key's kind.
func (k InternalKey) Kind() InternalKeyKind { return k.Trailer.Kind() }

// Encode writes the wire representation of k (user key followed by the
// 8-byte trailer) into buf, which must have length at least k.Size().
func (k InternalKey) Encode(buf []byte) {
	n := copy(buf, k.UserKey)
	binary.LittleEndian.PutUint64(buf[n:], uint64(k.Trailer))
}

// EncodeTo appends the wire representation of k to dst and returns the
// extended slice.
func (k InternalKey) EncodeTo(dst []byte) []byte {
	dst = append(dst, k.UserKey...)
	var trailer [trailerLen]byte
	binary.LittleEndian.PutUint64(trailer[:], uint64(k.Trailer))
	return append(dst, trailer[:]...)
}

// Size returns the length of the encoded key.
func (k InternalKey) Size() int { return len(k.UserKey) + trailerLen }

// Clone returns a deep copy of k.
func (k InternalKey) Clone() InternalKey {
	if len(k.UserKey) == 0 {
		return InternalKey{Trailer: k.Trailer}
	}
	u := make([]byte, len(k.UserKey))
	copy(u, k.UserKey)
	return InternalKey{UserKey: u, Trailer: k.Trailer}
}

// Valid reports whether the trailer's kind is one this engine understands.
func (k InternalKey) Valid() bool {
	return k.Kind() == InternalKeyKindSet || k.Kind() == InternalKeyKindDelete
}

func (k InternalKey) String() string {
	return fmt.Sprintf("%s#%d,%s", k.UserKey, k.SeqNum(), k.Kind())
}

// DecodeInternalKey decodes the trailing 8-byte trailer of an encoded
// internal key and returns the InternalKey view over buf. The returned
// UserKey aliases buf.
func DecodeInternalKey(buf []byte) InternalKey {
	if len(buf) < trailerLen {
		return InternalKey{}
	}
	n := len(buf) - trailerLen
	return InternalKey{
		UserKey: buf[:n:n],
		Trailer: InternalKeyTrailer(binary.LittleEndian.Uint64(buf[n:])),
	}
}

// InternalCompare orders two encoded internal keys: by user key ascending
// (per ucmp), then by sequence number descending, then by kind descending.
func InternalCompare(ucmp Compare, a, b InternalKey) int {
	if c := ucmp(a.UserKey, b.UserKey); c != 0 {
		return c
	}
	if a.Trailer > b.Trailer {
		return -1
	}
	if a.Trailer < b.Trailer {
		return 1
	}
	return 0
}

// InternalCompareEncoded is InternalCompare specialized for the raw wire
// encoding (user key bytes followed by an 8-byte little-endian trailer),
// used by the memtable skiplist so it never has to allocate InternalKey
// values on the comparison hot path.
func InternalCompareEncoded(ucmp Compare, a, b []byte) int {
	return InternalCompare(ucmp, DecodeInternalKey(a), DecodeInternalKey(b))
}

// UserKeyEqual returns whether k's user key is equal to ukey.
func (k InternalKey) UserKeyEqual(ucmp Compare, ukey []byte) bool {
	return ucmp(k.UserKey, ukey) == 0
}
