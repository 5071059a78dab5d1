// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"os"
	"path/filepath"

	"github.com/btcsuite/btclog"
	"github.com/jrick/logrotate/rotator"

	"github.com/nodewallet/txdb/txdb"
)

// logWriter implements io.Writer and outputs to both standard output and
// the write-end pipe of an initialized log rotator, the same shape every
// btcd-family daemon in this lineage uses for its log file.
type logWriter struct{}

func (logWriter) Write(p []byte) (n int, err error) {
	os.Stdout.Write(p)
	if logRotator != nil {
		logRotator.Write(p)
	}
	return len(p), nil
}

var (
	backendLog = btclog.NewBackend(logWriter{})

	log     = backendLog.Logger("TOOL")
	txdbLog = backendLog.Logger("TXDB")

	logRotator *rotator.Rotator
)

func init() {
	txdb.UseLogger(txdbLog)
}

// initLogRotator initializes the logging rotator to write logs to logFile
// and create roll files in the same directory. It must be called before the
// package-global log rotator variables are used.
func initLogRotator(logFile string) error {
	logDir, _ := filepath.Split(logFile)
	if logDir != "" {
		if err := os.MkdirAll(logDir, 0700); err != nil {
			return err
		}
	}
	r, err := rotator.New(logFile, 10*1024, false, 3)
	if err != nil {
		return err
	}
	logRotator = r
	return nil
}

// setLogLevel sets the logging level for the named subsystem. Unknown
// subsystem names are ignored.
func setLogLevel(subsystemID string, levelName string) {
	level, ok := btclog.LevelFromString(levelName)
	if !ok {
		return
	}
	switch subsystemID {
	case "TOOL":
		log.SetLevel(level)
	case "TXDB":
		txdbLog.SetLevel(level)
	}
}
