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

// Package scanner implements the incremental line-by-line scan of a
// single (logfile, tag) pair: advancing from the last recorded cursor,
// classifying each new line, dispatching matches to a callback, and
// persisting the new cursor and counters back into RunData.
package scanner

import (
	"errors"
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/clfcheck/check-logfiles/internal/callback"
	"github.com/clfcheck/check-logfiles/internal/streamio"
	"github.com/clfcheck/check-logfiles/internal/vars"
)

// Run performs one incremental scan of reader for tag, advancing rd's
// cursor and counters in place. logfilePath and global feed the CLF_
// runtime variables exposed to the callback. handle may be nil: with
// tag.Options.RunCallback set, a nil handle dispatches nowhere but each
// qualifying match still counts toward ExecCount.
func Run(reader streamio.LineReader, logfilePath string, tag *Tag, rd *RunData, global vars.Global, handle *callback.Handle, excludeRE *regexp.Regexp) error {
	return run(reader, logfilePath, tag, rd, global, handle, excludeRE, true, true)
}

// RunArchiveLeg scans reader as the first leg of a single logical run over
// a rotated file's archived tail (see the orchestrator's rotation
// handling): it resets the cursor and counters at the start exactly like
// Run, but withholds the end-of-run threshold finalization, since the
// counts it accumulates are not yet complete — the second leg, scanned by
// RunContinuation over the new file, still has to add to them.
func RunArchiveLeg(reader streamio.LineReader, logfilePath string, tag *Tag, rd *RunData, global vars.Global, handle *callback.Handle, excludeRE *regexp.Regexp) error {
	return run(reader, logfilePath, tag, rd, global, handle, excludeRE, true, false)
}

// RunContinuation scans reader as the second leg of a single logical run
// that already processed a rotated file's archived tail as its first leg
// (see the orchestrator's rotation handling). Unlike Run, it does not
// reinitialize the cursor or reset counters at the start: rd's offsets
// and counters carry over exactly as the first leg left them, so matches
// in both legs accumulate into the same counters regardless of
// savethresholds, and only this second leg applies the end-of-run
// threshold finalization.
func RunContinuation(reader streamio.LineReader, logfilePath string, tag *Tag, rd *RunData, global vars.Global, handle *callback.Handle, excludeRE *regexp.Regexp) error {
	return run(reader, logfilePath, tag, rd, global, handle, excludeRE, false, true)
}

func run(reader streamio.LineReader, logfilePath string, tag *Tag, rd *RunData, global vars.Global, handle *callback.Handle, excludeRE *regexp.Regexp, resetAtStart, finalizeAtEnd bool) error {
	rd.PID = os.Getpid()

	if resetAtStart {
		if tag.Options.Rewind {
			rd.StartOffset = 0
			rd.StartLine = 0
		} else {
			rd.StartOffset = rd.LastOffset
			rd.StartLine = rd.LastLine
		}
	}

	bytesCount := rd.StartOffset
	currentLine := rd.StartLine

	if err := reader.SetOffset(rd.StartOffset); err != nil {
		return err
	}

	if resetAtStart {
		rd.Counters.ExecCount = 0
		if !tag.Options.SaveThresholds {
			rd.Counters.CriticalCount = 0
			rd.Counters.WarningCount = 0
		}
	}

	var runErr error

loop:
	for {
		raw, err := reader.ReadLine()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			runErr = err
			break
		}
		if len(raw) == 0 {
			break
		}

		matchBytes := raw
		if tag.Options.Truncate > 0 && len(matchBytes) > tag.Options.Truncate {
			matchBytes = matchBytes[:tag.Options.Truncate]
		}
		text := purgeLine(string(matchBytes))

		currentLine++
		bytesCount += int64(len(raw))

		if tag.Options.FastForward && rd.StartOffset == 0 {
			continue
		}

		if tag.Options.StopAt > 0 && currentLine == tag.Options.StopAt {
			currentLine--
			bytesCount -= int64(len(raw))
			break
		}

		if excludeRE != nil && excludeRE.MatchString(text) {
			continue
		}

		m, matched := tag.Patterns.Classify(text)
		if !matched {
			continue
		}

		rd.Counters.increment(m.Tier)

		if !thresholdReached(rd, m.Tier, tag.Options) {
			continue
		}

		if !tag.Options.RunCallback {
			continue
		}

		if rd.Counters.ExecCount >= tag.Options.RunLimit {
			continue
		}

		pm := vars.NewPerMatch(logfilePath, tag.Name, currentLine, text, m, rd.Counters.CriticalCount, rd.Counters.WarningCount, rd.Counters.OkCount)
		merged := vars.Merge(global, pm)

		// A tag with runcallback set but no configured callback dispatches
		// nowhere: that's a no-op, not a failure, and still counts as a
		// completed callback run.
		if handle != nil {
			if _, err := handle.Dispatch(global, merged); err != nil {
				currentLine--
				bytesCount -= int64(len(raw))
				rd.Counters.decrement(m.Tier)
				runErr = err
				break loop
			}
		}
		rd.Counters.ExecCount++
	}

	rd.LastOffset = bytesCount
	rd.LastLine = currentLine
	rd.LastRun = time.Now()
	rd.LastError = runErr

	if finalizeAtEnd {
		applyThresholdFinalization(&rd.Counters, tag.Options)
	}

	return runErr
}

// purgeLine strips exactly one trailing newline, and one trailing
// carriage return immediately preceding it, from a raw line.
func purgeLine(s string) string {
	s = strings.TrimSuffix(s, "\n")
	s = strings.TrimSuffix(s, "\r")
	return s
}

// BypassMatch is one match found while scanning in --no-callback mode: no
// RunData is touched, matches are simply reported.
type BypassMatch struct {
	LineNumber int64
	Tier       string
	Regex      string
	Vars       map[string]string
	Text       string
}

// RunBypass scans reader for tag's patterns without touching any RunData
// or invoking any callback, returning every match found. This implements
// the --no-callback CLI flag.
func RunBypass(reader streamio.LineReader, tag *Tag, excludeRE *regexp.Regexp) ([]BypassMatch, error) {
	var matches []BypassMatch
	var lineNumber int64

	for {
		raw, err := reader.ReadLine()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return matches, err
		}
		if len(raw) == 0 {
			break
		}
		lineNumber++
		text := purgeLine(string(raw))

		if excludeRE != nil && excludeRE.MatchString(text) {
			continue
		}

		m, matched := tag.Patterns.Classify(text)
		if !matched {
			continue
		}

		pm := vars.NewPerMatch("", tag.Name, lineNumber, text, m, 0, 0, 0)
		delete(pm, "CLF_CG_0")

		matches = append(matches, BypassMatch{
			LineNumber: lineNumber,
			Tier:       m.Tier.String(),
			Regex:      m.Regex.String(),
			Vars:       pm.Strings(),
			Text:       text,
		})
	}
	return matches, nil
}
