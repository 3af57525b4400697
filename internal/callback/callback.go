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

// Package callback implements the three callback channel variants a tag
// can dispatch a match to: a spawned script, a TCP socket, or a Unix
// domain socket.
package callback

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"os/exec"
	"time"

	"github.com/clfcheck/check-logfiles/internal/vars"
)

// maxFrameBytes is the largest JSON payload a wire frame can carry; the
// serialized body is truncated to this size before being length-prefixed.
const maxFrameBytes = 65535

// Kind names which transport a Callback uses.
type Kind int

const (
	Script Kind = iota
	TCP
	Unix
)

// Config describes where a callback dispatches to.
type Config struct {
	Kind    Kind
	Script  string        // path to the script, for Kind == Script
	Address string        // host:port or socket path, for Kind == TCP/Unix
	Args    []string
	Timeout time.Duration
	// EnvPath, if set, overrides PATH in the spawned script's environment.
	EnvPath string
}

// Handle is a live callback destination, opened lazily on first dispatch
// and reused for every subsequent match within the same tag's run.
type Handle struct {
	cfg  Config
	conn net.Conn // non-nil once a TCP/Unix socket has been opened
}

// NewHandle returns a fresh, unopened handle for cfg. A handle is
// per-tag-per-run: it is never shared or copied across tags.
func NewHandle(cfg Config) *Handle {
	return &Handle{cfg: cfg}
}

// ScriptResult describes a spawned, unwaited-for script process.
type ScriptResult struct {
	PID       int
	Path      string
	StartTime time.Time
}

// Dispatch sends one match to the callback's destination. For Script, it
// spawns a new process every call (not waited on) and returns its PID and
// start time. For TCP/Unix, it lazily opens the socket on the first call
// for this handle, then writes a length-prefixed JSON frame: the first
// frame on a handle carries args+global+vars, every frame after carries
// vars only.
func (h *Handle) Dispatch(global map[string]string, runtimeVars map[string]vars.Value) (*ScriptResult, error) {
	switch h.cfg.Kind {
	case Script:
		return h.dispatchScript(global, runtimeVars)
	case TCP, Unix:
		return nil, h.dispatchSocket(global, runtimeVars)
	default:
		return nil, fmt.Errorf("callback: unknown kind %v", h.cfg.Kind)
	}
}

func (h *Handle) dispatchScript(global map[string]string, runtimeVars map[string]vars.Value) (*ScriptResult, error) {
	cmd := exec.Command(h.cfg.Script, h.cfg.Args...)

	env := os.Environ()
	for k, v := range global {
		env = append(env, k+"="+v)
	}
	for k, v := range runtimeVars {
		env = append(env, k+"="+v.String())
	}
	if h.cfg.EnvPath != "" {
		env = append(env, "PATH="+h.cfg.EnvPath)
	}
	cmd.Env = env

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("spawning callback script %q: %w", h.cfg.Script, err)
	}
	go cmd.Wait() // reap without blocking the scan loop on completion

	return &ScriptResult{PID: cmd.Process.Pid, Path: h.cfg.Script, StartTime: start}, nil
}

func (h *Handle) dispatchSocket(global map[string]string, runtimeVars map[string]vars.Value) error {
	firstTime := h.conn == nil
	if h.conn == nil {
		network := "tcp"
		if h.cfg.Kind == Unix {
			network = "unix"
		}
		conn, err := net.DialTimeout(network, h.cfg.Address, h.cfg.Timeout)
		if err != nil {
			return fmt.Errorf("connecting callback socket %q: %w", h.cfg.Address, err)
		}
		h.conn = conn
	}
	if h.cfg.Timeout > 0 {
		if err := h.conn.SetWriteDeadline(time.Now().Add(h.cfg.Timeout)); err != nil {
			return fmt.Errorf("setting write timeout on callback socket %q: %w", h.cfg.Address, err)
		}
	}

	payload := frame(h.cfg.Args, global, runtimeVars, firstTime)
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling callback payload: %w", err)
	}
	if len(body) > maxFrameBytes {
		body = body[:maxFrameBytes]
	}

	var sizeBuf [2]byte
	binary.BigEndian.PutUint16(sizeBuf[:], uint16(len(body)))

	if _, err := h.conn.Write(sizeBuf[:]); err != nil {
		return fmt.Errorf("writing frame size to callback socket %q: %w", h.cfg.Address, err)
	}
	if _, err := h.conn.Write(body); err != nil {
		return fmt.Errorf("writing frame body to callback socket %q: %w", h.cfg.Address, err)
	}
	return nil
}

// frame builds the JSON-able payload for a TCP/Unix dispatch: args and
// global vars are included only on a handle's first transmission.
func frame(args []string, global map[string]string, runtimeVars map[string]vars.Value, firstTime bool) map[string]interface{} {
	payload := map[string]interface{}{"vars": runtimeVars}
	if firstTime {
		if args == nil {
			args = []string{}
		}
		payload["args"] = args
		payload["global"] = global
	}
	return payload
}

// Close releases any open socket held by the handle. Script dispatches
// have nothing to close.
func (h *Handle) Close() error {
	if h.conn != nil {
		return h.conn.Close()
	}
	return nil
}
