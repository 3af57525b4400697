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

// Package prepost runs the external commands a configuration schedules
// before and after a scan: a list of prescripts with a timeout and an
// exit-on-error policy each, and a single postscript that receives the
// prescripts' pids as trailing arguments.
package prepost

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/clfcheck/check-logfiles/internal/clfconfig"
	"github.com/clfcheck/check-logfiles/internal/logx"
	"github.com/clfcheck/check-logfiles/internal/nagios"
	"github.com/clfcheck/check-logfiles/internal/vars"
)

// FatalError is returned when a prescript's failure must abort the whole
// run rather than simply being logged: a spawn failure is always
// CRITICAL; a non-zero exit or timeout is UNKNOWN, but only when the
// script's ExitOnError is set.
type FatalError struct {
	Code    nagios.Code
	Command []string
	Err     error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("command %v: %v", e.Command, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

// RunPrescripts runs every configured prescript in order, returning the
// pid of each one that was successfully spawned. A spawn failure always
// aborts the remaining prescripts and returns a CRITICAL FatalError; a
// script that exits non-zero (or times out) only aborts when its own
// ExitOnError is set, in which case it returns an UNKNOWN FatalError.
func RunPrescripts(global vars.Global, scripts []clfconfig.Prescript) ([]int, error) {
	pids := make([]int, 0, len(scripts))
	for _, s := range scripts {
		pid, err := runOne(global, s)
		if pid != 0 {
			pids = append(pids, pid)
		}
		if err != nil {
			return pids, err
		}
	}
	return pids, nil
}

// RunPostscript runs the single configured postscript, if any, appending
// every prescript pid as a trailing positional argument. Unlike a
// prescript, a postscript failure is only logged: the snapshot counters
// have already been persisted by the time it runs, so there is nothing
// left for an UNKNOWN exit to protect.
func RunPostscript(global vars.Global, script *clfconfig.Postscript, prescriptPids []int) {
	if script == nil {
		return
	}

	args := make([]string, len(script.Command))
	copy(args, script.Command)
	for _, pid := range prescriptPids {
		args = append(args, fmt.Sprintf("%d", pid))
	}

	timeout := time.Duration(script.TimeoutMS) * time.Millisecond
	if timeout <= 0 {
		timeout = 3 * time.Second
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Env = envFor(global, nil)

	if err := cmd.Run(); err != nil {
		logx.Warnf("postscript %v failed: %v", args, err)
		return
	}
	logx.Debugf("postscript %v completed successfully", args)
}

func runOne(global vars.Global, s clfconfig.Prescript) (int, error) {
	timeout := time.Duration(s.TimeoutMS) * time.Millisecond
	if timeout <= 0 {
		timeout = 3 * time.Second
	}

	cmd := exec.Command(s.Command[0], s.Command[1:]...)
	cmd.Env = envFor(global, nil)

	if err := cmd.Start(); err != nil {
		return 0, &FatalError{Code: nagios.CRITICAL, Command: s.Command, Err: err}
	}
	pid := cmd.Process.Pid
	logx.Infof("prescript %v started, pid=%d", s.Command, pid)

	if s.Async {
		go cmd.Wait() // reap without blocking on completion
		return pid, nil
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		if err != nil && s.ExitOnError {
			return pid, &FatalError{Code: nagios.UNKNOWN, Command: s.Command, Err: err}
		}
		logx.Infof("prescript %v, pid=%d, completed", s.Command, pid)
		return pid, nil
	case <-time.After(timeout):
		_ = cmd.Process.Kill()
		<-done
		if s.ExitOnError {
			return pid, &FatalError{Code: nagios.UNKNOWN, Command: s.Command, Err: fmt.Errorf("timed out after %s", timeout)}
		}
		logx.Warnf("prescript %v, pid=%d, timed out after %s, killed", s.Command, pid, timeout)
		return pid, nil
	}
}

// envFor builds a child process environment from the current process's
// own environment layered under global and per-match variables.
func envFor(global, extra map[string]string) []string {
	env := os.Environ()
	for k, v := range global {
		env = append(env, k+"="+v)
	}
	for k, v := range extra {
		env = append(env, k+"="+v)
	}
	return env
}
