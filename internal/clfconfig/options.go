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
	"fmt"
	"strconv"
	"strings"

	"github.com/clfcheck/check-logfiles/internal/scanner"
)

var validSearchOptions = map[string]bool{
	"runcallback":       true,
	"keepoutput":        true,
	"rewind":            true,
	"criticalthreshold": true,
	"warningthreshold":  true,
	"protocol":          true,
	"savethresholds":    true,
	"sticky":            true,
	"fastforward":       true,
	"runlimit":          true,
	"truncate":          true,
	"stopat":            true,
	"runifok":           true,
}

// UnsupportedSearchOptionError reports a token in a tag's comma-joined
// options string that isn't one of the recognized option names.
type UnsupportedSearchOptionError struct {
	Option string
}

func (e *UnsupportedSearchOptionError) Error() string {
	return fmt.Sprintf("search option %q is not supported", e.Option)
}

// ParseSearchOptions parses a tag's comma-joined options string (e.g.
// "runcallback, criticalthreshold=10, savethresholds") into SearchOptions.
func ParseSearchOptions(s string) (scanner.SearchOptions, error) {
	opts := scanner.DefaultSearchOptions()
	if strings.TrimSpace(s) == "" {
		return opts, nil
	}

	tokens := strings.Split(s, ",")
	for _, raw := range tokens {
		tok := strings.TrimSpace(raw)
		if tok == "" {
			continue
		}

		key, value, hasValue := strings.Cut(tok, "=")
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		if !validSearchOptions[key] {
			return opts, &UnsupportedSearchOptionError{Option: tok}
		}

		switch key {
		case "runcallback":
			opts.RunCallback = true
		case "keepoutput":
			opts.KeepOutput = true
		case "rewind":
			opts.Rewind = true
		case "protocol":
			opts.Protocol = tok
		case "savethresholds":
			opts.SaveThresholds = true
		case "fastforward":
			opts.FastForward = true
		case "runifok":
			opts.RunIfOk = true
		case "criticalthreshold":
			n, err := parseInt64(key, value, hasValue)
			if err != nil {
				return opts, err
			}
			opts.CriticalThreshold = n
		case "warningthreshold":
			n, err := parseInt64(key, value, hasValue)
			if err != nil {
				return opts, err
			}
			opts.WarningThreshold = n
		case "sticky":
			n, err := parseInt64(key, value, hasValue)
			if err != nil {
				return opts, err
			}
			opts.Sticky = uint16(n)
		case "runlimit":
			n, err := parseInt64(key, value, hasValue)
			if err != nil {
				return opts, err
			}
			opts.RunLimit = n
		case "truncate":
			n, err := parseInt64(key, value, hasValue)
			if err != nil {
				return opts, err
			}
			opts.Truncate = int(n)
		case "stopat":
			n, err := parseInt64(key, value, hasValue)
			if err != nil {
				return opts, err
			}
			opts.StopAt = n
		}
	}

	return opts, nil
}

func parseInt64(key, value string, hasValue bool) (int64, error) {
	if !hasValue {
		return 0, fmt.Errorf("search option %q requires a value", key)
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("search option %q: %w", key, err)
	}
	return n, nil
}
