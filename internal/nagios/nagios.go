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

// Package nagios formats scan results into Nagios-compatible plugin
// output and exit codes.
package nagios

import "fmt"

// Code is a Nagios plugin exit status.
type Code int

const (
	OK Code = iota
	WARNING
	CRITICAL
	UNKNOWN
)

func (c Code) String() string {
	switch c {
	case OK:
		return "OK"
	case WARNING:
		return "WARNING"
	case CRITICAL:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// Result is the aggregate outcome of a run: how many critical, warning,
// and unknown conditions were observed across every (logfile, tag) pair
// and every inaccessible file.
type Result struct {
	Critical int64
	Warning  int64
	Unknown  int64
}

// Code picks the exit status from the counts, in strict precedence order:
// any critical count forces CRITICAL regardless of warning/unknown,
// any remaining warning count forces WARNING, any remaining unknown
// count forces UNKNOWN, and only all-zero is OK.
func (r Result) Code() Code {
	switch {
	case r.Critical > 0:
		return CRITICAL
	case r.Warning > 0:
		return WARNING
	case r.Unknown > 0:
		return UNKNOWN
	default:
		return OK
	}
}

// String renders the summary line Nagios displays as the check output.
func (r Result) String() string {
	return fmt.Sprintf("%s - (errors:%d, warnings:%d, unknowns:%d)", r.Code(), r.Critical, r.Warning, r.Unknown)
}

// DetailLine formats a single (path, tag) result line.
func DetailLine(path, tag string, critical, warning int64) string {
	return fmt.Sprintf("%s:%s - critical:%d, warning:%d", path, tag, critical, warning)
}

// ErrorLine formats a per-file access-error line.
func ErrorLine(path string, err error) string {
	return fmt.Sprintf("%s - %v", path, err)
}
