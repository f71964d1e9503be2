// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package vfs

import (
	"fmt"
	"log"
	"os"

	"github.com/ehds/guardedkv/internal/base"
)

// NewDefaultLogger returns a base.Logger that writes timestamped lines to
// w, matching the "LOG" informational text log named in the spec's
// on-disk layout.
func NewDefaultLogger(w *os.File) base.Logger {
	return &defaultLogger{l: log.New(w, "", log.LstdFlags|log.Lmicroseconds)}
}

type defaultLogger struct {
	l *log.Logger
}

func (l *defaultLogger) Infof(format string, args ...interface{}) {
	l.l.Output(2, fmt.Sprintf(format, args...))
}

func (l *defaultLogger) Errorf(format string, args ...interface{}) {
	l.l.Output(2, "ERROR: "+fmt.Sprintf(format, args...))
}

func (l *defaultLogger) Fatalf(format string, args ...interface{}) {
	l.l.Output(2, "FATAL: "+fmt.Sprintf(format, args...))
	os.Exit(1)
}

// NopLogger discards everything. Useful in tests and for in-memory DBs
// that should never touch persistent storage.
var NopLogger base.Logger = nopLogger{}

type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}
func (nopLogger) Fatalf(string, ...interface{}) { os.Exit(1) }
