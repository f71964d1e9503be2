// Copyright 2012 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package manifest

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"

	"github.com/cockroachdb/errors"

	"github.com/ehds/guardedkv/internal/base"
)

// ErrCorruptManifest is returned when a MANIFEST record fails to decode.
var ErrCorruptManifest = errors.New("manifest: corrupt manifest")

type byteReader interface {
	io.ByteReader
	io.Reader
}

// Tags for the VersionEdit disk format. Tags 1-9 reproduce classic
// LevelDB's tag numbering exactly (tag 8 was retired upstream and stays
// retired here); tagCommittedGuard is the one addition the spec's guard
// scheme requires, recording a guard boundary promoted from candidate to
// committed by a compaction (§4.4).
const (
	tagComparator     = 1
	tagLogNumber      = 2
	tagNextFileNumber = 3
	tagLastSequence   = 4
	tagCompactPointer = 5
	tagDeletedFile    = 6
	tagNewFile        = 7
	tagPrevLogNumber  = 9
	tagCommittedGuard = 10
)

// CompactPointerEntry records the last key compacted out of a level
// (classic LevelDB's round-robin compaction pointer). It is encoded and
// decoded with the edit, but the compaction picker does not read it.
type CompactPointerEntry struct {
	Level int
	Key   base.InternalKey
}

// DeletedFileEntry names a table removed by a VersionEdit.
type DeletedFileEntry struct {
	Level   int
	FileNum base.FileNum
}

// NewFileEntry names a table added by a VersionEdit.
type NewFileEntry struct {
	Level int
	Meta  TableMetadata
}

// CommittedGuardEntry records one guard boundary promoted to committed
// status at Level by the edit.
type CommittedGuardEntry struct {
	Level int
	Key   []byte
}

// VersionEdit is a set of changes a compaction, flush or recovery step
// applies to the current Version to produce the next one. Every applied
// edit is also appended to the MANIFEST, so replaying the MANIFEST from
// its base Version reconstructs the same sequence of Versions.
type VersionEdit struct {
	ComparatorName  string
	LogNumber       uint64
	PrevLogNumber   uint64
	NextFileNumber  base.FileNum
	LastSequence    base.SeqNum
	CompactPointers []CompactPointerEntry
	DeletedFiles    map[DeletedFileEntry]bool
	NewFiles        []NewFileEntry
	CommittedGuards []CommittedGuardEntry
}

// Decode parses a VersionEdit from its tagged encoding.
func (v *VersionEdit) Decode(r io.Reader) error {
	br, ok := r.(byteReader)
	if !ok {
		br = bufio.NewReader(r)
	}
	d := versionEditDecoder{br}
	for {
		tag, err := binary.ReadUvarint(br)
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		switch tag {
		case tagComparator:
			s, err := d.readBytes()
			if err != nil {
				return err
			}
			v.ComparatorName = string(s)

		case tagLogNumber:
			n, err := d.readUvarint()
			if err != nil {
				return err
			}
			v.LogNumber = n

		case tagPrevLogNumber:
			n, err := d.readUvarint()
			if err != nil {
				return err
			}
			v.PrevLogNumber = n

		case tagNextFileNumber:
			n, err := d.readUvarint()
			if err != nil {
				return err
			}
			v.NextFileNumber = base.FileNum(n)

		case tagLastSequence:
			n, err := d.readUvarint()
			if err != nil {
				return err
			}
			v.LastSequence = base.SeqNum(n)

		case tagCompactPointer:
			level, err := d.readLevel()
			if err != nil {
				return err
			}
			key, err := d.readInternalKey()
			if err != nil {
				return err
			}
			v.CompactPointers = append(v.CompactPointers, CompactPointerEntry{level, key})

		case tagDeletedFile:
			level, err := d.readLevel()
			if err != nil {
				return err
			}
			fileNum, err := d.readUvarint()
			if err != nil {
				return err
			}
			if v.DeletedFiles == nil {
				v.DeletedFiles = make(map[DeletedFileEntry]bool)
			}
			v.DeletedFiles[DeletedFileEntry{level, base.FileNum(fileNum)}] = true

		case tagNewFile:
			level, err := d.readLevel()
			if err != nil {
				return err
			}
			fileNum, err := d.readUvarint()
			if err != nil {
				return err
			}
			size, err := d.readUvarint()
			if err != nil {
				return err
			}
			smallest, err := d.readInternalKey()
			if err != nil {
				return err
			}
			largest, err := d.readInternalKey()
			if err != nil {
				return err
			}
			smallestSeq, err := d.readUvarint()
			if err != nil {
				return err
			}
			largestSeq, err := d.readUvarint()
			if err != nil {
				return err
			}
			v.NewFiles = append(v.NewFiles, NewFileEntry{
				Level: level,
				Meta: TableMetadata{
					FileNum:        base.FileNum(fileNum),
					Size:           size,
					Smallest:       smallest,
					Largest:        largest,
					SmallestSeqNum: base.SeqNum(smallestSeq),
					LargestSeqNum:  base.SeqNum(largestSeq),
				},
			})

		case tagCommittedGuard:
			level, err := d.readLevel()
			if err != nil {
				return err
			}
			key, err := d.readBytes()
			if err != nil {
				return err
			}
			v.CommittedGuards = append(v.CommittedGuards, CommittedGuardEntry{level, key})

		default:
			return ErrCorruptManifest
		}
	}
	return nil
}

// Encode writes v's tagged encoding to w.
func (v *VersionEdit) Encode(w io.Writer) error {
	e := versionEditEncoder{new(bytes.Buffer)}
	if v.ComparatorName != "" {
		e.writeUvarint(tagComparator)
		e.writeString(v.ComparatorName)
	}
	if v.LogNumber != 0 {
		e.writeUvarint(tagLogNumber)
		e.writeUvarint(v.LogNumber)
	}
	if v.PrevLogNumber != 0 {
		e.writeUvarint(tagPrevLogNumber)
		e.writeUvarint(v.PrevLogNumber)
	}
	if v.NextFileNumber != 0 {
		e.writeUvarint(tagNextFileNumber)
		e.writeUvarint(uint64(v.NextFileNumber))
	}
	if v.LastSequence != 0 {
		e.writeUvarint(tagLastSequence)
		e.writeUvarint(uint64(v.LastSequence))
	}
	for _, x := range v.CompactPointers {
		e.writeUvarint(tagCompactPointer)
		e.writeUvarint(uint64(x.Level))
		e.writeInternalKey(x.Key)
	}
	for x := range v.DeletedFiles {
		e.writeUvarint(tagDeletedFile)
		e.writeUvarint(uint64(x.Level))
		e.writeUvarint(uint64(x.FileNum))
	}
	for _, x := range v.NewFiles {
		e.writeUvarint(tagNewFile)
		e.writeUvarint(uint64(x.Level))
		e.writeUvarint(uint64(x.Meta.FileNum))
		e.writeUvarint(x.Meta.Size)
		e.writeInternalKey(x.Meta.Smallest)
		e.writeInternalKey(x.Meta.Largest)
		e.writeUvarint(uint64(x.Meta.SmallestSeqNum))
		e.writeUvarint(uint64(x.Meta.LargestSeqNum))
	}
	for _, x := range v.CommittedGuards {
		e.writeUvarint(tagCommittedGuard)
		e.writeUvarint(uint64(x.Level))
		e.writeBytes(x.Key)
	}
	_, err := w.Write(e.Bytes())
	return err
}

type versionEditDecoder struct {
	byteReader
}

func (d versionEditDecoder) readBytes() ([]byte, error) {
	n, err := d.readUvarint()
	if err != nil {
		return nil, err
	}
	s := make([]byte, n)
	if _, err := io.ReadFull(d, s); err != nil {
		if err == io.ErrUnexpectedEOF {
			return nil, ErrCorruptManifest
		}
		return nil, err
	}
	return s, nil
}

func (d versionEditDecoder) readInternalKey() (base.InternalKey, error) {
	b, err := d.readBytes()
	if err != nil {
		return base.InternalKey{}, err
	}
	return base.DecodeInternalKey(b), nil
}

func (d versionEditDecoder) readLevel() (int, error) {
	u, err := d.readUvarint()
	if err != nil {
		return 0, err
	}
	if u >= NumLevels {
		return 0, ErrCorruptManifest
	}
	return int(u), nil
}

func (d versionEditDecoder) readUvarint() (uint64, error) {
	u, err := binary.ReadUvarint(d)
	if err != nil {
		if err == io.EOF {
			return 0, ErrCorruptManifest
		}
		return 0, err
	}
	return u, nil
}

type versionEditEncoder struct {
	*bytes.Buffer
}

func (e versionEditEncoder) writeBytes(p []byte) {
	e.writeUvarint(uint64(len(p)))
	e.Write(p)
}

func (e versionEditEncoder) writeInternalKey(k base.InternalKey) {
	e.writeBytes(k.EncodeTo(nil))
}

func (e versionEditEncoder) writeString(s string) {
	e.writeUvarint(uint64(len(s)))
	e.WriteString(s)
}

func (e versionEditEncoder) writeUvarint(u uint64) {
	var buf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(buf[:], u)
	e.Write(buf[:n])
}
