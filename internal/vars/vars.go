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

// Package vars builds the CLF_-prefixed runtime variable maps passed to
// callback scripts and sockets: a global set assembled once per run, and a
// per-match set assembled fresh for every matched line.
package vars

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strconv"

	"github.com/clfcheck/check-logfiles/internal/pattern"
)

const prefix = "CLF_"

// Global holds the process/config-derived variables shared across every
// tag and file in a run: USER, HOSTNAME, PLATFORM, CONFIG_FILE, plus
// whatever the config's own `vars` map and --extra-var flags add.
type Global map[string]string

// NewGlobal assembles the global variable set for a run.
func NewGlobal(configFile string, configVars, extraVars map[string]string) Global {
	g := Global{}
	if u, err := os.Hostname(); err == nil {
		g[prefix+"HOSTNAME"] = u
	}
	if user := os.Getenv("USER"); user != "" {
		g[prefix+"USER"] = user
	}
	g[prefix+"PLATFORM"] = platform()
	g[prefix+"CONFIG_FILE"] = configFile

	for k, v := range configVars {
		g[prefix+k] = v
	}
	for k, v := range extraVars {
		g[prefix+k] = v
	}
	return g
}

// Value is a runtime variable's value as sent to a TCP/Unix callback: an
// untagged union of string or integer, mirroring the wire format the
// original implementation's VarType enum produces (#[serde(untagged)]
// Str/Int) so counters and line numbers marshal as JSON numbers instead of
// numeric strings. A spawned script's environment has no notion of type,
// so it always sees String().
type Value struct {
	s     string
	n     int64
	isInt bool
}

// StringValue wraps a string runtime variable.
func StringValue(s string) Value { return Value{s: s} }

// IntValue wraps an integer runtime variable.
func IntValue(n int64) Value { return Value{n: n, isInt: true} }

// String renders the value the way a process environment variable would.
func (v Value) String() string {
	if v.isInt {
		return strconv.FormatInt(v.n, 10)
	}
	return v.s
}

// MarshalJSON encodes an integer value as a JSON number and a string value
// as a JSON string.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.isInt {
		return json.Marshal(v.n)
	}
	return json.Marshal(v.s)
}

// PerMatch holds the variables derived from a single matched line: which
// file and tag it came from, the matched pattern, its captures, and the
// counters as they stand right after this match was scored.
type PerMatch map[string]Value

// NewPerMatch builds the per-match variable set for one matched line.
func NewPerMatch(logfile, tag string, lineNumber int64, line string, m *pattern.Match, criticalCount, warningCount, okCount int64) PerMatch {
	pm := PerMatch{
		prefix + "LOGFILE":         StringValue(logfile),
		prefix + "TAG":             StringValue(tag),
		prefix + "LINE_NUMBER":     IntValue(lineNumber),
		prefix + "LINE":            StringValue(line),
		prefix + "MATCHED_RE":      StringValue(m.Regex.String()),
		prefix + "MATCHED_RE_TYPE": StringValue(m.Tier.String()),
		prefix + "CRITICAL_COUNT":  IntValue(criticalCount),
		prefix + "WARNING_COUNT":   IntValue(warningCount),
		prefix + "OK_COUNT":        IntValue(okCount),
	}
	insertCaptures(pm, m.Regex, line)
	return pm
}

// insertCaptures adds NB_CG (capture group count), CG_0..CG_N (positional
// captures), and CG_<name> (named captures) to a per-match variable set.
func insertCaptures(pm PerMatch, re *regexp.Regexp, line string) {
	submatches := re.FindStringSubmatch(line)
	if submatches == nil {
		pm[prefix+"NB_CG"] = IntValue(0)
		return
	}
	pm[prefix+"NB_CG"] = IntValue(int64(len(submatches) - 1))
	names := re.SubexpNames()
	for i, v := range submatches {
		pm[fmt.Sprintf("%sCG_%d", prefix, i)] = StringValue(v)
		if i < len(names) && names[i] != "" {
			pm[prefix+"CG_"+names[i]] = StringValue(v)
		}
	}
}

// Strings renders every value as a string, for display contexts like the
// --no-callback bypass report that have no use for the wire's
// string/integer distinction.
func (pm PerMatch) Strings() map[string]string {
	out := make(map[string]string, len(pm))
	for k, v := range pm {
		out[k] = v.String()
	}
	return out
}

// Merge layers per-match variables over the global set (wrapped as string
// Values), with per-match keys winning on collision — the same
// override-on-conflict behavior callback dispatch relies on for script
// environments.
func Merge(global Global, perMatch PerMatch) map[string]Value {
	merged := make(map[string]Value, len(global)+len(perMatch))
	for k, v := range global {
		merged[k] = StringValue(v)
	}
	for k, v := range perMatch {
		merged[k] = v
	}
	return merged
}
