//
// Copyright (C) 2022 IBM Corporation.
//
// Authors:
// Frederico Araujo <frederico.araujo@ibm.com>
// Teryl Taylor <terylt@ibm.com>
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package snapshot persists the scan cursors and counters for every
// tracked logfile between invocations, as pretty-printed JSON.
package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/clfcheck/check-logfiles/internal/logfile"
	"github.com/clfcheck/check-logfiles/internal/logid"
	"github.com/clfcheck/check-logfiles/internal/scanner"
)

const timeLayout = "2006-01-02 15:04:05.000000"

// Snapshot maps a logfile's canonical path to its tracked state.
type Snapshot map[string]*logfile.LogFile

// BuildName derives the default snapshot filename from a config file's
// base name: "myconfig.yaml" becomes "myconfig.json" in dir.
func BuildName(configPath, dir string) string {
	stem := strings.TrimSuffix(filepath.Base(configPath), filepath.Ext(configPath))
	if stem == "" {
		stem = "clf_snapshot"
	}
	return filepath.Join(dir, stem+".json")
}

// Load reads a snapshot file. A missing file is not an error: it yields
// an empty snapshot, matching the behavior of a plugin's very first run.
func Load(fs afero.Fs, path string) (Snapshot, error) {
	f, err := fs.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Snapshot{}, nil
		}
		return nil, fmt.Errorf("opening snapshot %q: %w", path, err)
	}
	defer f.Close()

	var wire wireSnapshot
	if err := json.NewDecoder(f).Decode(&wire); err != nil {
		return nil, fmt.Errorf("decoding snapshot %q: %w", path, err)
	}
	return wire.toSnapshot(), nil
}

// Save prunes RunData entries older than retention, drops any LogFile
// left with no surviving RunData, and writes the result as pretty JSON.
func Save(fs afero.Fs, path string, snap Snapshot, retention time.Duration) error {
	now := time.Now()
	pruned := Snapshot{}
	for canonPath, lf := range snap {
		survivors := map[string]*scanner.RunData{}
		for tag, rd := range lf.RunData {
			if now.Sub(rd.LastRun) < retention {
				survivors[tag] = rd
			}
		}
		if len(survivors) == 0 {
			continue
		}
		pruned[canonPath] = &logfile.LogFile{ID: lf.ID, RunData: survivors}
	}

	wire := fromSnapshot(pruned)
	body, err := json.MarshalIndent(wire, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling snapshot: %w", err)
	}

	f, err := fs.Create(path)
	if err != nil {
		return fmt.Errorf("creating snapshot %q: %w", path, err)
	}
	defer f.Close()

	if _, err := f.Write(body); err != nil {
		return fmt.Errorf("writing snapshot %q: %w", path, err)
	}
	return nil
}

// LogFileFor returns the LogFile tracked at canonPath, creating and
// inserting a fresh one (with def assigned) if this is the first time
// this path has been seen. def is always (re-)assigned from the current
// configuration: a LogFile's Definition is never read back from the
// snapshot.
func LogFileFor(snap Snapshot, id *logid.LogFileID, def *logfile.Definition) *logfile.LogFile {
	lf, ok := snap[id.CanonPath]
	if !ok {
		lf = &logfile.LogFile{ID: id, RunData: map[string]*scanner.RunData{}}
		snap[id.CanonPath] = lf
	}
	lf.Definition = def
	return lf
}

// --- wire format ---

type wireSnapshot struct {
	Snapshot map[string]*wireLogFile `json:"snapshot"`
}

type wireLogFile struct {
	ID      *logid.LogFileID        `json:"id"`
	RunData map[string]*wireRunData `json:"run_data"`
}

type wireRunData struct {
	PID           int    `json:"pid"`
	StartOffset   int64  `json:"start_offset"`
	StartLine     int64  `json:"start_line"`
	LastOffset    int64  `json:"last_offset"`
	LastLine      int64  `json:"last_line"`
	LastRun       string `json:"last_run"`
	LastRunSecs   int64  `json:"last_run_secs"`
	CriticalCount int64  `json:"critical_count"`
	WarningCount  int64  `json:"warning_count"`
	OkCount       int64  `json:"ok_count"`
	ExecCount     int64  `json:"exec_count"`
	LastError     string `json:"last_error"`
}

func fromSnapshot(snap Snapshot) wireSnapshot {
	out := wireSnapshot{Snapshot: map[string]*wireLogFile{}}
	for path, lf := range snap {
		wlf := &wireLogFile{ID: lf.ID, RunData: map[string]*wireRunData{}}
		for tag, rd := range lf.RunData {
			wlf.RunData[tag] = fromRunData(rd)
		}
		out.Snapshot[path] = wlf
	}
	return out
}

func fromRunData(rd *scanner.RunData) *wireRunData {
	errStr := "None"
	if rd.LastError != nil {
		errStr = rd.LastError.Error()
	}
	return &wireRunData{
		PID:           rd.PID,
		StartOffset:   rd.StartOffset,
		StartLine:     rd.StartLine,
		LastOffset:    rd.LastOffset,
		LastLine:      rd.LastLine,
		LastRun:       rd.LastRun.Format(timeLayout),
		LastRunSecs:   rd.LastRun.Unix(),
		CriticalCount: rd.Counters.CriticalCount,
		WarningCount:  rd.Counters.WarningCount,
		OkCount:       rd.Counters.OkCount,
		ExecCount:     rd.Counters.ExecCount,
		LastError:     errStr,
	}
}

func (w wireSnapshot) toSnapshot() Snapshot {
	snap := Snapshot{}
	for path, wlf := range w.Snapshot {
		lf := &logfile.LogFile{ID: wlf.ID, RunData: map[string]*scanner.RunData{}}
		for tag, wrd := range wlf.RunData {
			lf.RunData[tag] = wrd.toRunData()
		}
		snap[path] = lf
	}
	return snap
}

func (w *wireRunData) toRunData() *scanner.RunData {
	lastRun, _ := time.Parse(timeLayout, w.LastRun)
	// last_error is intentionally not round-tripped: a prior run's error
	// is string-rendered for human inspection but not reconstructed as a
	// live error value.
	return &scanner.RunData{
		PID:         w.PID,
		StartOffset: w.StartOffset,
		StartLine:   w.StartLine,
		LastOffset:  w.LastOffset,
		LastLine:    w.LastLine,
		LastRun:     lastRun,
		Counters: scanner.Counters{
			CriticalCount: w.CriticalCount,
			WarningCount:  w.WarningCount,
			OkCount:       w.OkCount,
			ExecCount:     w.ExecCount,
		},
	}
}
