// Copyright 2011 The LevelDB-Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package record

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeRecords(t *testing.T, records []string) []byte {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	for _, s := range records {
		rw, err := w.Next()
		require.NoError(t, err)
		_, err = io.WriteString(rw, s)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestWriteReadSmallRecords(t *testing.T) {
	records := []string{"a", "bb", "", "dddd", "eeeee"}
	data := writeRecords(t, records)

	r := NewReader(bytes.NewReader(data))
	for _, want := range records {
		got, err := r.ReadRecord()
		require.NoError(t, err)
		require.Equal(t, want, string(got))
	}
	_, err := r.ReadRecord()
	require.Equal(t, io.EOF, err)
}

func TestWriteReadRecordSpanningMultipleBlocks(t *testing.T) {
	big := strings.Repeat("x", 3*32*1024+17)
	data := writeRecords(t, []string{"small", big, "tail"})

	r := NewReader(bytes.NewReader(data))
	got, err := r.ReadRecord()
	require.NoError(t, err)
	require.Equal(t, "small", string(got))

	got, err = r.ReadRecord()
	require.NoError(t, err)
	require.Equal(t, big, string(got))

	got, err = r.ReadRecord()
	require.NoError(t, err)
	require.Equal(t, "tail", string(got))
}

func TestReaderDetectsCorruption(t *testing.T) {
	data := writeRecords(t, []string{"hello world"})
	corrupt := append([]byte(nil), data...)
	corrupt[10] ^= 0xff

	r := NewReader(bytes.NewReader(corrupt))
	_, err := r.ReadRecord()
	require.Error(t, err)
}

// TestWriteReadWithFlushAfterEveryRecord mimics the WAL/MANIFEST
// callers, which call Flush after every single record rather than
// only at Close. Frequent mid-block Flush calls must not desynchronize
// the writer's block-boundary accounting from the reader's fixed-size
// block framing once the stream grows past one block.
func TestWriteReadWithFlushAfterEveryRecord(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	var records []string
	for i := 0; i < 2000; i++ {
		records = append(records, strings.Repeat("r", 50))
	}
	for _, s := range records {
		rw, err := w.Next()
		require.NoError(t, err)
		_, err = io.WriteString(rw, s)
		require.NoError(t, err)
		require.NoError(t, w.Flush())
	}
	require.NoError(t, w.Close())

	r := NewReader(bytes.NewReader(buf.Bytes()))
	for _, want := range records {
		got, err := r.ReadRecord()
		require.NoError(t, err)
		require.Equal(t, want, string(got))
	}
	_, err := r.ReadRecord()
	require.Equal(t, io.EOF, err)
}
