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

// Package pattern implements the three-tier ordered-regex classification
// that decides whether a log line is critical, a warning, ok, or of no
// interest at all.
package pattern

import (
	"fmt"
	"regexp"
	"strings"
)

// Tier is one of the three match severities, in the fixed evaluation
// order critical, then warning, then ok.
type Tier int

const (
	Critical Tier = iota
	Warning
	Ok
)

func (t Tier) String() string {
	switch t {
	case Critical:
		return "critical"
	case Warning:
		return "warning"
	case Ok:
		return "ok"
	default:
		return "unknown"
	}
}

// UnsupportedPatternTypeError is returned when a tier name outside
// critical/warning/ok is configured.
type UnsupportedPatternTypeError struct {
	Name string
}

func (e *UnsupportedPatternTypeError) Error() string {
	return fmt.Sprintf("unsupported pattern type: %q", e.Name)
}

// ParseTier converts a configured tier name into a Tier.
func ParseTier(name string) (Tier, error) {
	switch strings.ToLower(name) {
	case "critical":
		return Critical, nil
	case "warning":
		return Warning, nil
	case "ok":
		return Ok, nil
	default:
		return 0, &UnsupportedPatternTypeError{Name: name}
	}
}

// Pattern is one tier's ordered list of match regexes plus its own
// exception set: a line that matches any exception is never matched by
// this tier's regex list, regardless of order.
type Pattern struct {
	Regexes    []*regexp.Regexp
	Exceptions *regexp.Regexp
}

// NewPattern compiles an ordered list of regex match patterns and an
// unordered set of exception patterns into a Pattern.
func NewPattern(regexes, exceptions []string) (*Pattern, error) {
	p := &Pattern{}
	for _, expr := range regexes {
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("compiling regex %q: %w", expr, err)
		}
		p.Regexes = append(p.Regexes, re)
	}
	if len(exceptions) > 0 {
		joined := make([]string, len(exceptions))
		for i, expr := range exceptions {
			joined[i] = "(?:" + expr + ")"
		}
		re, err := regexp.Compile(strings.Join(joined, "|"))
		if err != nil {
			return nil, fmt.Errorf("compiling exception set: %w", err)
		}
		p.Exceptions = re
	}
	return p, nil
}

// isException reports whether line matches this tier's exception set.
func (p *Pattern) isException(line string) bool {
	return p.Exceptions != nil && p.Exceptions.MatchString(line)
}

// match returns the first regex in declared order that matches line, or
// nil if the tier's exception set matched first or no regex matches.
func (p *Pattern) match(line string) *regexp.Regexp {
	if p.isException(line) {
		return nil
	}
	for _, re := range p.Regexes {
		if re.MatchString(line) {
			return re
		}
	}
	return nil
}

// Set bundles the three tiers configured for a tag. Any tier may be nil if
// not configured.
type Set struct {
	Critical *Pattern
	Warning  *Pattern
	Ok       *Pattern
}

// Match is the outcome of classifying a single line: which tier matched,
// and the specific regex within that tier that matched.
type Match struct {
	Tier  Tier
	Regex *regexp.Regexp
}

// Classify runs the fixed critical -> warning -> ok evaluation order: the
// first tier whose exception set doesn't exempt the line and whose regex
// list has a match wins. A tier exempted by its own exception set never
// falls through to a lower tier from that exemption; it simply doesn't
// match, and the next tier is tried independently.
func (s *Set) Classify(line string) (*Match, bool) {
	for _, tp := range []struct {
		tier Tier
		pat  *Pattern
	}{
		{Critical, s.Critical},
		{Warning, s.Warning},
		{Ok, s.Ok},
	} {
		if tp.pat == nil {
			continue
		}
		if re := tp.pat.match(line); re != nil {
			return &Match{Tier: tp.tier, Regex: re}, true
		}
	}
	return nil, false
}
