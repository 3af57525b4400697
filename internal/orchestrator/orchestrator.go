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

// Package orchestrator drives a full pass over every configured logfile
// definition: identifying each file, detecting rotation against the
// snapshot's stored signature, draining an archived predecessor before
// resuming on the current file, and running every tag's scan, all
// without letting one file's access error abort the whole batch.
package orchestrator

import (
	"fmt"

	"github.com/spf13/afero"

	"github.com/clfcheck/check-logfiles/internal/callback"
	"github.com/clfcheck/check-logfiles/internal/logfile"
	"github.com/clfcheck/check-logfiles/internal/logid"
	"github.com/clfcheck/check-logfiles/internal/logx"
	"github.com/clfcheck/check-logfiles/internal/nagios"
	"github.com/clfcheck/check-logfiles/internal/scanner"
	"github.com/clfcheck/check-logfiles/internal/snapshot"
	"github.com/clfcheck/check-logfiles/internal/streamio"
	"github.com/clfcheck/check-logfiles/internal/vars"
)

// Outcome aggregates the Nagios-relevant results of a full run: per-PID
// critical/warning counts (summed across every tag and file touched this
// run), the missing/undecidable-rotation contributions folded in by
// policy, and a human-readable detail line per tag plus one per error.
type Outcome struct {
	Critical int64
	Warning  int64
	Unknown  int64
	Details  []string
	Errors   []string
}

func (o *Outcome) addMissingContribution(policy logfile.MissingPolicy, detail string) {
	switch policy {
	case logfile.MissingWarning:
		o.Warning++
	case logfile.MissingCritical:
		o.Critical++
	case logfile.MissingUnknown:
		o.Unknown++
	}
	o.Errors = append(o.Errors, detail)
}

// Run drives one full pass over entries, mutating snap in place with the
// updated per-tag cursors and counters. noCallback switches every tag
// into RunBypass mode (the --no-callback CLI flag): matches are still
// found and reported but never dispatched, and no RunData is touched.
func Run(fs afero.Fs, pid int, entries []*logfile.Definition, global vars.Global, snap snapshot.Snapshot, noCallback bool) *Outcome {
	out := &Outcome{}

	for _, def := range entries {
		runOne(fs, def, global, snap, noCallback, out)
	}

	critical, warning, staleErrors := snapshot.Summarize(snap, pid)
	out.Critical += critical
	out.Warning += warning
	out.Unknown += staleErrors
	return out
}

func runOne(fs afero.Fs, def *logfile.Definition, global vars.Global, snap snapshot.Snapshot, noCallback bool, out *Outcome) {
	id, err := logid.Identify(def.Path, def.HashWindow)
	if err != nil {
		logx.Warnf("unable to identify logfile %q: %v", def.Path, err)
		out.addMissingContribution(def.LogFileMissing, nagios.ErrorLine(def.Path, err))
		return
	}

	lf := snapshot.LogFileFor(snap, id, def)
	previous := lf.ID
	lf.ID = id

	rotated := false
	if previous != nil && previous.CanonPath == id.CanonPath {
		r, hrErr := logid.HasRotated(previous.Signature, id.Signature)
		if hrErr != nil {
			logx.Warnf("undecidable rotation state for %q: %v", def.Path, hrErr)
			out.Unknown++
			out.Errors = append(out.Errors, nagios.ErrorLine(def.Path, hrErr))
			return
		}
		rotated = r
	}

	continuation := false
	if rotated {
		continuation = drainArchive(fs, def, lf, global, noCallback, out)
		for _, tag := range def.Tags {
			lf.ResetTag(tag.Name)
		}
	}

	for _, tag := range def.Tags {
		if !tag.Process {
			continue
		}
		scanTag(fs, def, lf, tag, global, noCallback, continuation, out)
	}
}

// drainArchive scans the archived predecessor of a rotated file (if one
// exists and is readable) using each tag's pre-reset cursors, so anything
// written between the last run and the rotation is still counted. Errors
// opening the archive are silent: an absent archive simply means nothing
// to drain, matching the upstream behavior of only draining when the
// archive path exists and is readable. It reports whether the archive was
// found and scanned, i.e. whether the current file's scan is a second leg.
func drainArchive(fs afero.Fs, def *logfile.Definition, lf *logfile.LogFile, global vars.Global, noCallback bool, out *Outcome) bool {
	archivePath := def.ArchiveDesc.ArchivePath(def.Path)
	if _, err := fs.Stat(archivePath); err != nil {
		return false
	}

	archiveID, err := logid.Identify(archivePath, def.HashWindow)
	if err != nil {
		return false
	}

	for _, tag := range def.Tags {
		if !tag.Process {
			continue
		}
		rd := lf.RunDataForTag(tag.Name)

		reader, err := streamio.Open(fs, archivePath, archiveID.Compression)
		if err != nil {
			continue
		}

		if noCallback {
			matches, _ := scanner.RunBypass(reader, tag, def.Exclude)
			for _, m := range matches {
				out.Details = append(out.Details, fmt.Sprintf("%s:%s:%s:%d", archivePath, tag.Name, m.Tier, m.LineNumber))
			}
			reader.Close()
			continue
		}

		var handle *callback.Handle
		if tag.Callback != nil {
			handle = callback.NewHandle(*tag.Callback)
		}

		if err := scanner.RunArchiveLeg(reader, archivePath, tag, rd, global, handle, def.Exclude); err != nil {
			logx.Warnf("error draining archive %q for tag %q: %v", archivePath, tag.Name, err)
		}
		if handle != nil {
			handle.Close()
		}
		reader.Close()
	}
	return true
}

func scanTag(fs afero.Fs, def *logfile.Definition, lf *logfile.LogFile, tag *scanner.Tag, global vars.Global, noCallback bool, continuation bool, out *Outcome) {
	reader, err := streamio.Open(fs, lf.ID.CanonPath, lf.ID.Compression)
	if err != nil {
		// Already counted via the snapshot's stale-RunData UNKNOWN path
		// (snapshot.Summarize); logfilemissing applies only to the
		// identify/access-error path in runOne, not here, so don't also
		// add a missing-policy contribution for the same failure.
		rd := lf.RunDataForTag(tag.Name)
		rd.LastError = err
		return
	}
	defer reader.Close()

	if noCallback {
		matches, err := scanner.RunBypass(reader, tag, def.Exclude)
		if err != nil {
			out.Errors = append(out.Errors, nagios.ErrorLine(def.Path, err))
		}
		for _, m := range matches {
			out.Details = append(out.Details, fmt.Sprintf("%s:%s:%s:%d", def.Path, tag.Name, m.Tier, m.LineNumber))
		}
		return
	}

	rd := lf.RunDataForTag(tag.Name)

	var handle *callback.Handle
	if tag.Callback != nil {
		handle = callback.NewHandle(*tag.Callback)
	}
	defer func() {
		if handle != nil {
			handle.Close()
		}
	}()

	var runErr error
	if continuation {
		runErr = scanner.RunContinuation(reader, def.Path, tag, rd, global, handle, def.Exclude)
	} else {
		runErr = scanner.Run(reader, def.Path, tag, rd, global, handle, def.Exclude)
	}
	if runErr != nil {
		logx.Warnf("error scanning %q for tag %q: %v", def.Path, tag.Name, runErr)
		out.Errors = append(out.Errors, nagios.ErrorLine(def.Path, runErr))
	}

	out.Details = append(out.Details, nagios.DetailLine(def.Path, tag.Name, rd.Counters.CriticalCount, rd.Counters.WarningCount))
}
