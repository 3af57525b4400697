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

package prepost

import (
	"errors"
	"testing"
	"time"

	"github.com/clfcheck/check-logfiles/internal/clfconfig"
	"github.com/clfcheck/check-logfiles/internal/nagios"
	"github.com/clfcheck/check-logfiles/internal/vars"
)

func TestRunPrescriptsReturnsPidsOnSuccess(t *testing.T) {
	scripts := []clfconfig.Prescript{
		{Command: []string{"/bin/true"}, TimeoutMS: 1000},
		{Command: []string{"/bin/true"}, TimeoutMS: 1000},
	}

	pids, err := RunPrescripts(vars.Global{}, scripts)
	if err != nil {
		t.Fatalf("RunPrescripts: %v", err)
	}
	if len(pids) != 2 {
		t.Fatalf("pids = %v, want 2 entries", pids)
	}
	for _, pid := range pids {
		if pid <= 0 {
			t.Errorf("pid = %d, want positive", pid)
		}
	}
}

func TestRunPrescriptsExitOnErrorAbortsWithUnknown(t *testing.T) {
	scripts := []clfconfig.Prescript{
		{Command: []string{"/bin/false"}, TimeoutMS: 1000, ExitOnError: true},
		{Command: []string{"/bin/true"}, TimeoutMS: 1000},
	}

	pids, err := RunPrescripts(vars.Global{}, scripts)
	if err == nil {
		t.Fatal("expected error from exit_on_error prescript")
	}
	var fatal *FatalError
	if !errors.As(err, &fatal) {
		t.Fatalf("error = %v, want *FatalError", err)
	}
	if fatal.Code != nagios.UNKNOWN {
		t.Errorf("Code = %v, want UNKNOWN", fatal.Code)
	}
	if len(pids) != 1 {
		t.Errorf("pids = %v, want the one spawned pid before the abort, no further scripts run", pids)
	}
}

func TestRunPrescriptsWithoutExitOnErrorContinues(t *testing.T) {
	scripts := []clfconfig.Prescript{
		{Command: []string{"/bin/false"}, TimeoutMS: 1000},
		{Command: []string{"/bin/true"}, TimeoutMS: 1000},
	}

	pids, err := RunPrescripts(vars.Global{}, scripts)
	if err != nil {
		t.Fatalf("RunPrescripts: %v", err)
	}
	if len(pids) != 2 {
		t.Errorf("pids = %v, want both scripts to have run", pids)
	}
}

func TestRunPrescriptsSpawnFailureIsCritical(t *testing.T) {
	scripts := []clfconfig.Prescript{
		{Command: []string{"/no/such/executable-ever"}, TimeoutMS: 1000},
	}

	_, err := RunPrescripts(vars.Global{}, scripts)
	if err == nil {
		t.Fatal("expected error for an unspawnable command")
	}
	var fatal *FatalError
	if !errors.As(err, &fatal) {
		t.Fatalf("error = %v, want *FatalError", err)
	}
	if fatal.Code != nagios.CRITICAL {
		t.Errorf("Code = %v, want CRITICAL", fatal.Code)
	}
}

func TestRunPrescriptsTimeoutKillsAndHonorsExitOnError(t *testing.T) {
	start := time.Now()
	scripts := []clfconfig.Prescript{
		{Command: []string{"/bin/sleep", "5"}, TimeoutMS: 50, ExitOnError: true},
	}

	_, err := RunPrescripts(vars.Global{}, scripts)
	if time.Since(start) > 4*time.Second {
		t.Fatalf("prescript was not killed at its timeout, took %s", time.Since(start))
	}
	var fatal *FatalError
	if !errors.As(err, &fatal) {
		t.Fatalf("error = %v, want *FatalError from the timeout", err)
	}
	if fatal.Code != nagios.UNKNOWN {
		t.Errorf("Code = %v, want UNKNOWN", fatal.Code)
	}
}

func TestRunPostscriptAppendsPrescriptPidsAsArgs(t *testing.T) {
	script := &clfconfig.Postscript{Command: []string{"/bin/echo"}, TimeoutMS: 1000}
	// RunPostscript only logs failures; this just exercises that it
	// doesn't block or panic with trailing pid arguments appended.
	RunPostscript(vars.Global{}, script, []int{111, 222})
}

func TestRunPostscriptNilIsNoop(t *testing.T) {
	RunPostscript(vars.Global{}, nil, []int{1})
}
