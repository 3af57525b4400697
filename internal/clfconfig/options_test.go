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

package clfconfig

import (
	"errors"
	"testing"
)

func TestParseSearchOptionsAllFields(t *testing.T) {
	opts, err := ParseSearchOptions("runcallback, keepoutput, rewind, criticalthreshold=10, warningthreshold=15, protocol, savethresholds, sticky=5, runlimit=10, truncate=80, stopat=100, runifok, fastforward")
	if err != nil {
		t.Fatalf("ParseSearchOptions: %v", err)
	}

	if !opts.RunCallback || !opts.KeepOutput || !opts.Rewind || !opts.SaveThresholds || !opts.RunIfOk || !opts.FastForward {
		t.Errorf("boolean options = %+v", opts)
	}
	if opts.CriticalThreshold != 10 || opts.WarningThreshold != 15 {
		t.Errorf("thresholds = %+v", opts)
	}
	if opts.Sticky != 5 {
		t.Errorf("sticky = %d, want 5", opts.Sticky)
	}
	if opts.RunLimit != 10 {
		t.Errorf("runlimit = %d, want 10", opts.RunLimit)
	}
	if opts.Truncate != 80 {
		t.Errorf("truncate = %d, want 80", opts.Truncate)
	}
	if opts.StopAt != 100 {
		t.Errorf("stopat = %d, want 100", opts.StopAt)
	}
}

func TestParseSearchOptionsEmptyString(t *testing.T) {
	opts, err := ParseSearchOptions("")
	if err != nil {
		t.Fatalf("ParseSearchOptions: %v", err)
	}
	if opts.RunCallback {
		t.Errorf("expected all-false defaults, got %+v", opts)
	}
}

func TestParseSearchOptionsUnsupportedOption(t *testing.T) {
	_, err := ParseSearchOptions("notarealoption")
	if err == nil {
		t.Fatal("expected error for unsupported option")
	}
	var target *UnsupportedSearchOptionError
	if !errors.As(err, &target) {
		t.Errorf("error = %v, want *UnsupportedSearchOptionError", err)
	}
}
