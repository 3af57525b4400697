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

// Package logfile defines a logfile's configuration-derived attributes
// and the mutable, persisted state that tracks it across runs.
package logfile

import (
	"path/filepath"
	"regexp"

	"github.com/clfcheck/check-logfiles/internal/logid"
	"github.com/clfcheck/check-logfiles/internal/scanner"
)

// Format names how a logfile's lines should be interpreted before pattern
// matching. JSON format is reserved for future structured extraction;
// both formats currently feed the same line text to the pattern tiers.
type Format int

const (
	Plain Format = iota
	JSON
)

// MissingPolicy controls what exit contribution a missing/inaccessible
// logfile makes to the overall run.
type MissingPolicy int

const (
	MissingOK MissingPolicy = iota
	MissingWarning
	MissingCritical
	MissingUnknown
)

// ParseMissingPolicy converts a configured logfilemissing value.
func ParseMissingPolicy(s string) MissingPolicy {
	switch s {
	case "WARNING":
		return MissingWarning
	case "CRITICAL":
		return MissingCritical
	case "UNKNOWN":
		return MissingUnknown
	default:
		return MissingOK
	}
}

// Archive describes where rotated copies of a logfile are expected to
// land, so the orchestrator can drain an archived copy before resuming on
// the new file. Pattern is accepted but not used to compute the archive
// path; it is reserved for future glob-based archive discovery.
type Archive struct {
	Directory string
	Extension string
	Pattern   string
}

// ArchivePath computes the rotated copy's expected path for the given
// declared path: dir defaults to path's own directory, the appended
// suffix defaults to ".1", or "."+Extension when Extension is set. A nil
// Archive yields the plain "<path>.1" default.
func (a *Archive) ArchivePath(path string) string {
	dir := filepath.Dir(path)
	ext := "1"
	if a != nil {
		if a.Directory != "" {
			dir = a.Directory
		}
		if a.Extension != "" {
			ext = a.Extension
		}
	}
	return filepath.Join(dir, filepath.Base(path)+"."+ext)
}

// Definition is the configuration-derived, never-persisted description of
// a logfile: how to find it, how to read it, and its tags.
type Definition struct {
	Path           string
	Format         Format
	Exclude        *regexp.Regexp
	ArchiveDesc    *Archive
	LogFileMissing MissingPolicy
	HashWindow     int64
	Tags           []*scanner.Tag
}

// LogFile is one tracked logfile: its identity, its (unpersisted)
// definition, and the per-tag run state carried across invocations.
type LogFile struct {
	ID         *logid.LogFileID
	Definition *Definition
	RunData    map[string]*scanner.RunData
}

// RunDataForTag returns the RunData for tagName, creating a zero-value
// entry if this is the first time this tag has scanned this file.
func (lf *LogFile) RunDataForTag(tagName string) *scanner.RunData {
	if lf.RunData == nil {
		lf.RunData = map[string]*scanner.RunData{}
	}
	rd, ok := lf.RunData[tagName]
	if !ok {
		rd = &scanner.RunData{}
		lf.RunData[tagName] = rd
	}
	return rd
}

// ResetTag zeroes a tag's cursor but preserves its counters, used to start
// scanning a newly rotated file after its predecessor has been fully
// drained by RunArchiveLeg: the counters carry the archive leg's raw
// matches forward so RunContinuation finalizes against the combined total.
func (lf *LogFile) ResetTag(tagName string) {
	rd := lf.RunDataForTag(tagName)
	*rd = scanner.RunData{Counters: rd.Counters}
	rd.StartOffset, rd.StartLine, rd.LastOffset, rd.LastLine = 0, 0, 0, 0
}
