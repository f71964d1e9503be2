// Copyright 2012 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package manifest

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ehds/guardedkv/internal/base"
)

func TestVersionEditEncodeDecodeRoundTrip(t *testing.T) {
	edit := VersionEdit{
		ComparatorName: "guardedkv.BytewiseComparator",
		LogNumber:      3,
		PrevLogNumber:  2,
		NextFileNumber: 7,
		LastSequence:   42,
		CompactPointers: []CompactPointerEntry{
			{Level: 1, Key: base.InternalKey{UserKey: []byte("m"), Trailer: base.MakeTrailer(10, base.InternalKeyKindSet)}},
		},
		DeletedFiles: map[DeletedFileEntry]bool{
			{Level: 0, FileNum: 5}: true,
		},
		NewFiles: []NewFileEntry{
			{
				Level: 1,
				Meta: TableMetadata{
					FileNum:        6,
					Size:           1024,
					Smallest:       base.InternalKey{UserKey: []byte("a"), Trailer: base.MakeTrailer(1, base.InternalKeyKindSet)},
					Largest:        base.InternalKey{UserKey: []byte("z"), Trailer: base.MakeTrailer(2, base.InternalKeyKindSet)},
					SmallestSeqNum: 1,
					LargestSeqNum:  2,
				},
			},
		},
		CommittedGuards: []CommittedGuardEntry{
			{Level: 1, Key: []byte("g")},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, edit.Encode(&buf))

	var decoded VersionEdit
	require.NoError(t, decoded.Decode(&buf))

	require.Equal(t, edit.ComparatorName, decoded.ComparatorName)
	require.Equal(t, edit.LogNumber, decoded.LogNumber)
	require.Equal(t, edit.PrevLogNumber, decoded.PrevLogNumber)
	require.Equal(t, edit.NextFileNumber, decoded.NextFileNumber)
	require.Equal(t, edit.LastSequence, decoded.LastSequence)
	require.Equal(t, edit.DeletedFiles, decoded.DeletedFiles)
	require.Equal(t, len(edit.NewFiles), len(decoded.NewFiles))
	require.Equal(t, edit.NewFiles[0].Meta.FileNum, decoded.NewFiles[0].Meta.FileNum)
	require.Equal(t, edit.NewFiles[0].Meta.Size, decoded.NewFiles[0].Meta.Size)
	require.Equal(t, string(edit.NewFiles[0].Meta.Smallest.UserKey), string(decoded.NewFiles[0].Meta.Smallest.UserKey))
	require.Equal(t, len(edit.CommittedGuards), len(decoded.CommittedGuards))
	require.Equal(t, edit.CommittedGuards[0].Level, decoded.CommittedGuards[0].Level)
	require.Equal(t, edit.CommittedGuards[0].Key, decoded.CommittedGuards[0].Key)
}

func TestVersionEditEncodeDecodeEmpty(t *testing.T) {
	edit := VersionEdit{}
	var buf bytes.Buffer
	require.NoError(t, edit.Encode(&buf))

	var decoded VersionEdit
	require.NoError(t, decoded.Decode(&buf))
	require.Equal(t, "", decoded.ComparatorName)
	require.Equal(t, 0, len(decoded.NewFiles))
}
