// Copyright 2012 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package manifest

import (
	"io"
	"os"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/ehds/guardedkv/internal/base"
	"github.com/ehds/guardedkv/internal/guard"
	"github.com/ehds/guardedkv/internal/record"
	"github.com/ehds/guardedkv/vfs"
)

// VersionSet owns the chain of Versions the tree has gone through and
// the MANIFEST log recording them, completing what leveldb-go's
// versionSet left as a bare TODO struct with a half-written load
// method. LogAndApply is the only way to install a new Version; it
// serializes the new edit to the MANIFEST before making the Version
// visible, so recovery can always reconstruct the exact sequence of
// edits a running DB applied (spec §4.5).
type VersionSet struct {
	dirname string
	fs      vfs.FS
	ucmp    base.Compare
	guardCfg guard.Config
	logger  base.Logger

	mu sync.Mutex

	dummyVersion Version // sentinel head/tail of the versions list
	current      *Version

	nextFileNum    base.FileNum
	manifestFileNum base.FileNum
	logNumber      uint64
	prevLogNumber  uint64
	lastSequence   base.SeqNum
	comparatorName string

	manifestFile   vfs.File
	manifestWriter *record.Writer
}

// manifestRotationSize is the MANIFEST size, in bytes, past which
// LogAndApply rotates to a fresh MANIFEST rather than keep appending
// to an ever-growing one (spec §4.5 step 3).
const manifestRotationSize = 4 << 20

// New returns a VersionSet with an empty initial Version, ready for
// Create to write out a fresh MANIFEST.
func New(dirname string, fs vfs.FS, ucmp base.Compare, guardCfg guard.Config, logger base.Logger) *VersionSet {
	vs := &VersionSet{
		dirname:  dirname,
		fs:       fs,
		ucmp:     ucmp,
		guardCfg: guardCfg,
		logger:   logger,
	}
	vs.dummyVersion.prev = &vs.dummyVersion
	vs.dummyVersion.next = &vs.dummyVersion
	empty := vs.newVersion()
	vs.append(empty)
	vs.current = empty
	vs.current.Ref()
	vs.nextFileNum = 1
	return vs
}

func (vs *VersionSet) newVersion() *Version {
	v := &Version{}
	for level := 0; level < NumLevels; level++ {
		v.Guards[level] = guard.NewSet(vs.guardCfg, level, vs.ucmp)
	}
	return v
}

func (vs *VersionSet) append(v *Version) {
	v.prev = vs.dummyVersion.prev
	v.next = &vs.dummyVersion
	v.prev.next = v
	v.next.prev = v
}

// Current returns the currently-installed Version. Callers that keep it
// past the current critical section must Ref it first.
func (vs *VersionSet) Current() *Version {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	return vs.current
}

// NextFileNum allocates and returns the next unused file number.
func (vs *VersionSet) NextFileNum() base.FileNum {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	n := vs.nextFileNum
	vs.nextFileNum++
	return n
}

// MarkFileNumUsed advances the file-number counter past fileNum if it
// isn't already, used when replaying a MANIFEST whose NewFiles tags
// reference file numbers out of band from NextFileNumber edits.
func (vs *VersionSet) MarkFileNumUsed(fileNum base.FileNum) {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	if fileNum >= vs.nextFileNum {
		vs.nextFileNum = fileNum + 1
	}
}

// LastSequence returns the last sequence number assigned so far.
func (vs *VersionSet) LastSequence() base.SeqNum {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	return vs.lastSequence
}

// SetLastSequence records seqNum as the last sequence number assigned,
// called by the write pipeline's leader immediately after it stamps a
// committed batch (spec §4.1).
func (vs *VersionSet) SetLastSequence(seqNum base.SeqNum) {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	if seqNum > vs.lastSequence {
		vs.lastSequence = seqNum
	}
}

// LogNumber and PrevLogNumber return the WAL file numbers recorded by
// the most recent applied edit, used by recovery to find which WAL
// files still need replaying.
func (vs *VersionSet) LogNumber() uint64     { return vs.logNumber }
func (vs *VersionSet) PrevLogNumber() uint64 { return vs.prevLogNumber }

// ManifestFileNum returns the file number of the current MANIFEST,
// used by obsolete-file collection to spare it from deletion.
func (vs *VersionSet) ManifestFileNum() base.FileNum { return vs.manifestFileNum }

// Create initializes a brand-new MANIFEST describing an empty Version,
// for opening a database that does not yet exist on disk.
func (vs *VersionSet) Create(comparatorName string) error {
	vs.comparatorName = comparatorName
	vs.manifestFileNum = vs.NextFileNum()
	manifestName := ManifestFilename(vs.dirname, uint64(vs.manifestFileNum))
	f, err := vs.fs.Create(manifestName)
	if err != nil {
		return errors.Wrapf(err, "manifest: creating %q", manifestName)
	}
	vs.manifestFile = f
	vs.manifestWriter = record.NewWriter(f)

	ve := &VersionEdit{
		ComparatorName: comparatorName,
		NextFileNumber: vs.nextFileNum,
		LastSequence:   vs.lastSequence,
	}
	if err := vs.writeEdit(ve); err != nil {
		return err
	}
	return SetCurrentFile(vs.dirname, vs.fs, uint64(vs.manifestFileNum))
}

// Load reads the CURRENT file to find the active MANIFEST, then replays
// every VersionEdit in it to reconstruct the current Version, mirroring
// (and completing) the teacher's versionSet.load.
func (vs *VersionSet) Load(comparatorName string) error {
	vs.comparatorName = comparatorName
	current, err := vs.fs.Open(CurrentFilename(vs.dirname))
	if err != nil {
		return errors.Wrapf(err, "manifest: could not open CURRENT file for %q", vs.dirname)
	}
	defer current.Close()
	stat, err := current.Stat()
	if err != nil {
		return err
	}
	n := stat.Size()
	if n == 0 {
		return errors.Newf("manifest: CURRENT file for %q is empty", vs.dirname)
	}
	if n > 4096 {
		return errors.Newf("manifest: CURRENT file for %q is too large", vs.dirname)
	}
	b := make([]byte, n)
	if _, err := current.ReadAt(b, 0); err != nil {
		return err
	}
	if b[n-1] != '\n' {
		return errors.Newf("manifest: CURRENT file for %q is malformed", vs.dirname)
	}
	manifestName := vs.dirname + string(os.PathSeparator) + string(b[:n-1])

	manifest, err := vs.fs.Open(manifestName)
	if err != nil {
		return errors.Wrapf(err, "manifest: could not open manifest file %q", manifestName)
	}
	defer manifest.Close()

	v := vs.newVersion()
	rr := record.NewReader(manifest)
	for {
		rec, err := rr.ReadRecord()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		var ve VersionEdit
		if err := ve.Decode(bytesReader(rec)); err != nil {
			return err
		}
		if ve.ComparatorName != "" && ve.ComparatorName != comparatorName {
			return errors.Newf("manifest: comparer name from file %q != comparer name %q", ve.ComparatorName, comparatorName)
		}
		vs.applyEdit(v, &ve)
	}
	v.UpdateCompactionScore()
	if err := v.CheckOrdering(func(a, b base.InternalKey) int { return base.InternalCompare(vs.ucmp, a, b) }); err != nil {
		return err
	}

	vs.append(v)
	vs.current = v
	vs.current.Ref()

	// vfs.FS has no append mode, so the handle Load just read the
	// MANIFEST through cannot be reused to keep writing to it. Rotate
	// to a fresh MANIFEST seeded with a full snapshot of the just-
	// loaded Version, both to obtain a writable handle for future
	// LogAndApply calls and to avoid the replayed edit history growing
	// without bound across repeated reopens (spec §4.5 step 3).
	return vs.rotateManifest()
}

// applyEdit mutates v in place to reflect ve; used both by Load
// (replaying the whole history into one fresh Version) and by
// LogAndApply (applying a single edit on top of a cloned current
// Version).
func (vs *VersionSet) applyEdit(v *Version, ve *VersionEdit) {
	if ve.LogNumber != 0 {
		vs.logNumber = ve.LogNumber
	}
	if ve.PrevLogNumber != 0 {
		vs.prevLogNumber = ve.PrevLogNumber
	}
	if ve.NextFileNumber != 0 {
		vs.nextFileNum = ve.NextFileNumber
	}
	if ve.LastSequence > vs.lastSequence {
		vs.lastSequence = ve.LastSequence
	}

	for de := range ve.DeletedFiles {
		files := v.Files[de.Level]
		for i, f := range files {
			if f.FileNum == de.FileNum {
				v.Files[de.Level] = append(files[:i], files[i+1:]...)
				break
			}
		}
	}
	for _, nf := range ve.NewFiles {
		meta := nf.Meta
		v.Files[nf.Level] = append(v.Files[nf.Level], &meta)
		if nf.Meta.FileNum >= vs.nextFileNum {
			vs.nextFileNum = nf.Meta.FileNum + 1
		}
	}
	for level := range v.Files {
		if level == 0 {
			SortByFileNum(v.Files[0])
			continue
		}
		SortBySmallest(v.Files[level], func(a, b base.InternalKey) int { return base.InternalCompare(vs.ucmp, a, b) })
	}
	for _, cg := range ve.CommittedGuards {
		// A guard at one level is a guard at every deeper level too.
		for level := cg.Level; level < NumLevels; level++ {
			if v.Guards[level] == nil {
				v.Guards[level] = guard.NewSet(vs.guardCfg, level, vs.ucmp)
			}
			v.Guards[level].Add(cg.Key)
		}
	}
}

// LogAndApply clones the current Version, applies ve to the clone,
// appends ve to the MANIFEST, and only then installs the clone as
// current. If the MANIFEST append fails, the current Version is left
// untouched, preserving the spec's "atomic edit" invariant (§4.5).
func (vs *VersionSet) LogAndApply(ve *VersionEdit) error {
	vs.mu.Lock()
	defer vs.mu.Unlock()

	if ve.LastSequence == 0 {
		ve.LastSequence = vs.lastSequence
	}
	if ve.NextFileNumber == 0 {
		ve.NextFileNumber = vs.nextFileNum
	}

	next := vs.cloneCurrent()
	vs.applyEdit(next, ve)
	next.UpdateCompactionScore()

	if err := vs.writeEdit(ve); err != nil {
		return err
	}

	prevCurrent := vs.current
	vs.append(next)
	vs.current = next
	vs.current.Ref()
	prevCurrent.Unref()

	if vs.manifestNeedsRotation() {
		if err := vs.rotateManifest(); err != nil {
			// The just-appended edit is already durable in the old
			// MANIFEST, so a failed rotation only means it keeps
			// growing past the ideal size, not that anything is lost.
			vs.logger.Errorf("manifest: rotation failed: %v", err)
		}
	}
	return nil
}

// manifestNeedsRotation reports whether the current MANIFEST has
// grown past manifestRotationSize and should be rotated.
func (vs *VersionSet) manifestNeedsRotation() bool {
	if vs.manifestFile == nil {
		return false
	}
	stat, err := vs.manifestFile.Stat()
	if err != nil {
		return false
	}
	return stat.Size() > manifestRotationSize
}

// rotateManifest replaces the current MANIFEST (if any) with a fresh
// one containing a single edit that snapshots vs.current in full,
// then repoints CURRENT at it (spec §4.5 step 3: "rotate to a fresh
// MANIFEST and rewrite CURRENT if it has grown large"). It doubles as
// how Load obtains a MANIFEST open for appending, since vfs.FS has no
// append mode to resume writing into the file Load only read from.
// The old MANIFEST, if any, is left on disk for deleteObsoleteFiles to
// remove once CURRENT no longer names it.
func (vs *VersionSet) rotateManifest() error {
	newNum := vs.nextFileNum
	vs.nextFileNum++
	manifestName := ManifestFilename(vs.dirname, uint64(newNum))
	f, err := vs.fs.Create(manifestName)
	if err != nil {
		return errors.Wrapf(err, "manifest: creating %q", manifestName)
	}

	w := record.NewWriter(f)
	rw, err := w.Next()
	if err != nil {
		f.Close()
		return err
	}
	if err := vs.snapshotEdit().Encode(rw); err != nil {
		f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	if err := SetCurrentFile(vs.dirname, vs.fs, uint64(newNum)); err != nil {
		f.Close()
		return err
	}

	oldFile := vs.manifestFile
	vs.manifestFile = f
	vs.manifestWriter = w
	vs.manifestFileNum = newNum
	if oldFile != nil {
		return oldFile.Close()
	}
	return nil
}

// snapshotEdit builds the single VersionEdit that fully describes
// vs.current, used to seed a freshly rotated MANIFEST without
// replaying the edit history that preceded it.
func (vs *VersionSet) snapshotEdit() *VersionEdit {
	ve := &VersionEdit{
		ComparatorName: vs.comparatorName,
		LogNumber:      vs.logNumber,
		PrevLogNumber:  vs.prevLogNumber,
		NextFileNumber: vs.nextFileNum,
		LastSequence:   vs.lastSequence,
	}
	for level, files := range vs.current.Files {
		for _, f := range files {
			ve.NewFiles = append(ve.NewFiles, NewFileEntry{Level: level, Meta: *f})
		}
		if g := vs.current.Guards[level]; g != nil {
			for _, key := range g.Committed() {
				ve.CommittedGuards = append(ve.CommittedGuards, CommittedGuardEntry{Level: level, Key: key})
			}
		}
	}
	return ve
}

func (vs *VersionSet) cloneCurrent() *Version {
	v := vs.newVersion()
	for level := range vs.current.Files {
		v.Files[level] = append([]*TableMetadata(nil), vs.current.Files[level]...)
	}
	for level := range vs.current.Guards {
		if vs.current.Guards[level] != nil {
			v.Guards[level] = vs.current.Guards[level].Clone()
		}
	}
	return v
}

func (vs *VersionSet) writeEdit(ve *VersionEdit) error {
	w, err := vs.manifestWriter.Next()
	if err != nil {
		return err
	}
	if err := ve.Encode(w); err != nil {
		return err
	}
	if err := vs.manifestWriter.Flush(); err != nil {
		return err
	}
	return vs.manifestFile.Sync()
}

// Close flushes and closes the MANIFEST writer.
func (vs *VersionSet) Close() error {
	if vs.manifestFile == nil {
		return nil
	}
	if err := vs.manifestWriter.Close(); err != nil {
		return err
	}
	return vs.manifestFile.Close()
}

// LiveFileNums returns every table file number mentioned by any live
// Version (one with a nonzero reference count) plus pendingOutputs, the basis for the spec's obsolete-file
// sweep (§4.5): anything present on disk but absent from this set can be
// safely removed.
func (vs *VersionSet) LiveFileNums(pendingOutputs map[base.FileNum]bool) map[base.FileNum]bool {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	live := make(map[base.FileNum]bool)
	for fn := range pendingOutputs {
		live[fn] = true
	}
	for v := vs.dummyVersion.next; v != &vs.dummyVersion; v = v.next {
		if v.refs == 0 {
			continue
		}
		for _, files := range v.Files {
			for _, f := range files {
				live[f.FileNum] = true
			}
		}
	}
	return live
}

func bytesReader(b []byte) io.Reader { return &byteSliceReader{b: b} }

type byteSliceReader struct {
	b []byte
	i int
}

func (r *byteSliceReader) Read(p []byte) (int, error) {
	if r.i >= len(r.b) {
		return 0, io.EOF
	}
	n := copy(p, r.b[r.i:])
	r.i += n
	return n, nil
}

func (r *byteSliceReader) ReadByte() (byte, error) {
	if r.i >= len(r.b) {
		return 0, io.EOF
	}
	c := r.b[r.i]
	r.i++
	return c, nil
}

