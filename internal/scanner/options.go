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

import "math"

// SearchOptions are the per-tag flags controlling how a scan behaves,
// parsed from a tag's comma-joined `options` configuration string.
type SearchOptions struct {
	Rewind            bool
	FastForward       bool
	StopAt            int64
	Truncate          int
	CriticalThreshold int64
	WarningThreshold  int64
	SaveThresholds    bool
	RunCallback       bool
	RunIfOk           bool
	RunLimit          int64

	// Sticky, KeepOutput, and Protocol are accepted and stored but are
	// documented no-ops in the scan loop.
	Sticky     uint16
	KeepOutput bool
	Protocol   string
}

// DefaultSearchOptions returns the zero-value options with RunLimit set to
// its "unlimited" sentinel, matching the upstream default of defaulting
// run_limit to the maximum representable value before parsing overrides.
func DefaultSearchOptions() SearchOptions {
	return SearchOptions{RunLimit: math.MaxInt64}
}
