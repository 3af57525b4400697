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

package scanner

import (
	"regexp"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"github.com/clfcheck/check-logfiles/internal/callback"
	"github.com/clfcheck/check-logfiles/internal/logid"
	"github.com/clfcheck/check-logfiles/internal/pattern"
	"github.com/clfcheck/check-logfiles/internal/streamio"
	"github.com/clfcheck/check-logfiles/internal/vars"
)

func mustPattern(t *testing.T, regexes ...string) *pattern.Pattern {
	t.Helper()
	p, err := pattern.NewPattern(regexes, nil)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func openReader(t *testing.T, content string) streamio.LineReader {
	t.Helper()
	fs := afero.NewMemMapFs()
	afero.WriteFile(fs, "/app.log", []byte(content), 0o600)
	r, err := streamio.Open(fs, "/app.log", logid.Uncompressed)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestRunCountsCriticalMatches(t *testing.T) {
	lines := strings.Repeat("ok line\n", 10) + strings.Repeat("CRITICAL boom\n", 5)
	r := openReader(t, lines)
	defer r.Close()

	tag := &Tag{
		Name:    "t1",
		Options: SearchOptions{RunLimit: 100},
		Patterns: &pattern.Set{
			Critical: mustPattern(t, "CRITICAL"),
		},
	}
	rd := &RunData{}

	if err := Run(r, "/app.log", tag, rd, vars.Global{}, nil, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rd.Counters.CriticalCount != 5 {
		t.Errorf("CriticalCount = %d, want 5", rd.Counters.CriticalCount)
	}
	if rd.LastLine != 15 {
		t.Errorf("LastLine = %d, want 15", rd.LastLine)
	}
}

func TestRunIncrementalFromLastOffset(t *testing.T) {
	r := openReader(t, "line one\nline two\nline three\n")
	defer r.Close()

	tag := &Tag{Name: "t1", Options: SearchOptions{RunLimit: 100}, Patterns: &pattern.Set{Critical: mustPattern(t, "two")}}
	rd := &RunData{LastOffset: int64(len("line one\n")), LastLine: 1}

	if err := Run(r, "/app.log", tag, rd, vars.Global{}, nil, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rd.Counters.CriticalCount != 1 {
		t.Errorf("CriticalCount = %d, want 1 (resuming from offset should skip line one)", rd.Counters.CriticalCount)
	}
	if rd.LastLine != 3 {
		t.Errorf("LastLine = %d, want 3", rd.LastLine)
	}
}

func TestRunRewindResetsCursor(t *testing.T) {
	r := openReader(t, "alpha\nbeta CRITICAL\n")
	defer r.Close()

	tag := &Tag{Name: "t1", Options: SearchOptions{RunLimit: 100, Rewind: true}, Patterns: &pattern.Set{Critical: mustPattern(t, "CRITICAL")}}
	rd := &RunData{LastOffset: 1000, LastLine: 50}

	if err := Run(r, "/app.log", tag, rd, vars.Global{}, nil, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rd.StartOffset != 0 || rd.StartLine != 0 {
		t.Errorf("expected rewind to zero the start cursor, got offset=%d line=%d", rd.StartOffset, rd.StartLine)
	}
	if rd.Counters.CriticalCount != 1 {
		t.Errorf("CriticalCount = %d, want 1", rd.Counters.CriticalCount)
	}
}

func TestRunTruncateDoesNotAffectByteOffset(t *testing.T) {
	line := "X" + strings.Repeat("a", 100) + "\n"
	r := openReader(t, line)
	defer r.Close()

	tag := &Tag{Name: "t1", Options: SearchOptions{RunLimit: 100, Truncate: 5}, Patterns: &pattern.Set{Critical: mustPattern(t, "^X")}}
	rd := &RunData{}

	if err := Run(r, "/app.log", tag, rd, vars.Global{}, nil, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rd.LastOffset != int64(len(line)) {
		t.Errorf("LastOffset = %d, want %d (truncate must not shrink the byte count)", rd.LastOffset, len(line))
	}
	if rd.Counters.CriticalCount != 1 {
		t.Errorf("CriticalCount = %d, want 1", rd.Counters.CriticalCount)
	}
}

func TestRunFastForwardSkipsFirstRunMatches(t *testing.T) {
	r := openReader(t, "CRITICAL one\nCRITICAL two\n")
	defer r.Close()

	tag := &Tag{Name: "t1", Options: SearchOptions{RunLimit: 100, FastForward: true}, Patterns: &pattern.Set{Critical: mustPattern(t, "CRITICAL")}}
	rd := &RunData{}

	if err := Run(r, "/app.log", tag, rd, vars.Global{}, nil, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rd.Counters.CriticalCount != 0 {
		t.Errorf("CriticalCount = %d, want 0 (fastforward should skip matches on first run)", rd.Counters.CriticalCount)
	}
	if rd.LastLine != 2 {
		t.Errorf("LastLine = %d, want 2 (cursor should still advance)", rd.LastLine)
	}
}

func TestRunStopAtHaltsBeforeLine(t *testing.T) {
	r := openReader(t, "one\ntwo\nthree\nfour\n")
	defer r.Close()

	tag := &Tag{Name: "t1", Options: SearchOptions{RunLimit: 100, StopAt: 3}, Patterns: &pattern.Set{Critical: mustPattern(t, "three")}}
	rd := &RunData{}

	if err := Run(r, "/app.log", tag, rd, vars.Global{}, nil, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rd.LastLine != 2 {
		t.Errorf("LastLine = %d, want 2 (stopat=3 should halt before processing line 3)", rd.LastLine)
	}
	if rd.Counters.CriticalCount != 0 {
		t.Errorf("CriticalCount = %d, want 0", rd.Counters.CriticalCount)
	}
}

func TestRunOkTierAlwaysResetsCriticalAndWarning(t *testing.T) {
	r := openReader(t, "CRITICAL a\nCRITICAL b\nALLCLEAR\n")
	defer r.Close()

	tag := &Tag{
		Name:    "t1",
		Options: SearchOptions{RunLimit: 100, RunIfOk: false},
		Patterns: &pattern.Set{
			Critical: mustPattern(t, "CRITICAL"),
			Ok:       mustPattern(t, "ALLCLEAR"),
		},
	}
	rd := &RunData{}

	if err := Run(r, "/app.log", tag, rd, vars.Global{}, nil, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rd.Counters.CriticalCount != 0 {
		t.Errorf("CriticalCount = %d, want 0 after ok match reset", rd.Counters.CriticalCount)
	}
	if rd.Counters.OkCount != 1 {
		t.Errorf("OkCount = %d, want 1", rd.Counters.OkCount)
	}
}

func TestRunThresholdFinalizationFloorsWithoutSaveThresholds(t *testing.T) {
	r := openReader(t, strings.Repeat("CRITICAL\n", 3))
	defer r.Close()

	tag := &Tag{Name: "t1", Options: SearchOptions{RunLimit: 100, CriticalThreshold: 10}, Patterns: &pattern.Set{Critical: mustPattern(t, "CRITICAL")}}
	rd := &RunData{}

	if err := Run(r, "/app.log", tag, rd, vars.Global{}, nil, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rd.Counters.CriticalCount != 0 {
		t.Errorf("CriticalCount = %d, want 0 (floored below threshold)", rd.Counters.CriticalCount)
	}
}

func TestRunThresholdFinalizationSaveThresholdsLeavesSubThresholdAsIs(t *testing.T) {
	r := openReader(t, strings.Repeat("CRITICAL\n", 3))
	defer r.Close()

	tag := &Tag{Name: "t1", Options: SearchOptions{RunLimit: 100, CriticalThreshold: 10, SaveThresholds: true}, Patterns: &pattern.Set{Critical: mustPattern(t, "CRITICAL")}}
	rd := &RunData{}

	if err := Run(r, "/app.log", tag, rd, vars.Global{}, nil, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rd.Counters.CriticalCount != 3 {
		t.Errorf("CriticalCount = %d, want 3 (savethresholds must not floor a sub-threshold count)", rd.Counters.CriticalCount)
	}
}

func TestRunThresholdFinalizationSubtractsAboveThreshold(t *testing.T) {
	r := openReader(t, strings.Repeat("CRITICAL\n", 100))
	defer r.Close()

	tag := &Tag{Name: "t1", Options: SearchOptions{RunLimit: 100, CriticalThreshold: 80, RunCallback: true}, Patterns: &pattern.Set{Critical: mustPattern(t, "CRITICAL")}}
	rd := &RunData{}
	handle := callback.NewHandle(callback.Config{Kind: callback.Script, Script: "/bin/true"})

	if err := Run(r, "/app.log", tag, rd, vars.Global{}, handle, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rd.Counters.CriticalCount != 20 {
		t.Errorf("CriticalCount = %d, want 20 (100 matches, threshold 80)", rd.Counters.CriticalCount)
	}
	if rd.Counters.ExecCount > 20 {
		t.Errorf("ExecCount = %d, want at most 20", rd.Counters.ExecCount)
	}
}

func TestRunCallbackFailureRollsBackCursorAndCounter(t *testing.T) {
	r := openReader(t, "CRITICAL one\nCRITICAL two\n")
	defer r.Close()

	tag := &Tag{Name: "t1", Options: SearchOptions{RunLimit: 100, RunCallback: true}, Patterns: &pattern.Set{Critical: mustPattern(t, "CRITICAL")}}
	rd := &RunData{}
	// a nonexistent script path makes every dispatch fail.
	handle := callback.NewHandle(callback.Config{Kind: callback.Script, Script: "/definitely/does/not/exist"})

	err := Run(r, "/app.log", tag, rd, vars.Global{}, handle, nil)
	if err == nil {
		t.Fatal("expected callback dispatch error to propagate")
	}
	if rd.Counters.CriticalCount != 0 {
		t.Errorf("CriticalCount = %d, want 0 (rollback should undo the increment)", rd.Counters.CriticalCount)
	}
	if rd.LastLine != 0 {
		t.Errorf("LastLine = %d, want 0 (rollback should undo the cursor advance)", rd.LastLine)
	}
}

func TestRunCallbackWithoutHandleIsANoOp(t *testing.T) {
	r := openReader(t, "CRITICAL one\nCRITICAL two\n")
	defer r.Close()

	// A tag can set runcallback in its options without declaring a
	// callback block; the orchestrator then builds no handle for it.
	tag := &Tag{Name: "t1", Options: SearchOptions{RunLimit: 100, RunCallback: true}, Patterns: &pattern.Set{Critical: mustPattern(t, "CRITICAL")}}
	rd := &RunData{}

	if err := Run(r, "/app.log", tag, rd, vars.Global{}, nil, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rd.Counters.CriticalCount != 2 {
		t.Errorf("CriticalCount = %d, want 2", rd.Counters.CriticalCount)
	}
	if rd.Counters.ExecCount != 2 {
		t.Errorf("ExecCount = %d, want 2 (a nil handle still counts as a completed callback run)", rd.Counters.ExecCount)
	}
}

func TestRunArchiveLegThenContinuationFinalizesOnce(t *testing.T) {
	archive := openReader(t, strings.Repeat("CRITICAL\n", 6))
	defer archive.Close()
	fresh := openReader(t, strings.Repeat("CRITICAL\n", 6))
	defer fresh.Close()

	tag := &Tag{Name: "t1", Options: SearchOptions{RunLimit: 100, CriticalThreshold: 10}, Patterns: &pattern.Set{Critical: mustPattern(t, "CRITICAL")}}
	rd := &RunData{}

	if err := RunArchiveLeg(archive, "/app.log.1", tag, rd, vars.Global{}, nil, nil); err != nil {
		t.Fatalf("RunArchiveLeg: %v", err)
	}
	if rd.Counters.CriticalCount != 6 {
		t.Fatalf("after archive leg, CriticalCount = %d, want 6 (raw, not yet finalized)", rd.Counters.CriticalCount)
	}

	rd.StartOffset, rd.StartLine, rd.LastOffset, rd.LastLine = 0, 0, 0, 0

	if err := RunContinuation(fresh, "/app.log", tag, rd, vars.Global{}, nil, nil); err != nil {
		t.Fatalf("RunContinuation: %v", err)
	}
	if rd.Counters.CriticalCount != 2 {
		t.Errorf("CriticalCount = %d, want 2 (12 raw matches across both legs, reduced once by the threshold of 10)", rd.Counters.CriticalCount)
	}
}

func TestRunBypassTouchesNoState(t *testing.T) {
	r := openReader(t, "CRITICAL one\nfine\nCRITICAL two\n")
	defer r.Close()

	tag := &Tag{Name: "t1", Patterns: &pattern.Set{Critical: mustPattern(t, "CRITICAL")}}

	matches, err := RunBypass(r, tag, nil)
	if err != nil {
		t.Fatalf("RunBypass: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("got %d matches, want 2", len(matches))
	}
	if matches[0].LineNumber != 1 || matches[1].LineNumber != 3 {
		t.Errorf("unexpected line numbers: %+v", matches)
	}
}

func TestRunExcludeSkipsLine(t *testing.T) {
	r := openReader(t, "CRITICAL but excluded\nCRITICAL counted\n")
	defer r.Close()

	exclude := regexp.MustCompile("excluded")
	tag := &Tag{Name: "t1", Options: SearchOptions{RunLimit: 100}, Patterns: &pattern.Set{Critical: mustPattern(t, "CRITICAL")}}
	rd := &RunData{}

	if err := Run(r, "/app.log", tag, rd, vars.Global{}, nil, exclude); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rd.Counters.CriticalCount != 1 {
		t.Errorf("CriticalCount = %d, want 1", rd.Counters.CriticalCount)
	}
}
