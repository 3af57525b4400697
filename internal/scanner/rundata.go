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
	"time"

	"github.com/clfcheck/check-logfiles/internal/pattern"
)

// Counters tracks how many lines of each tier have matched during a run,
// plus how many times the callback has actually fired.
type Counters struct {
	CriticalCount int64
	WarningCount  int64
	OkCount       int64
	ExecCount     int64
}

func (c *Counters) increment(tier pattern.Tier) {
	switch tier {
	case pattern.Critical:
		c.CriticalCount++
	case pattern.Warning:
		c.WarningCount++
	case pattern.Ok:
		c.OkCount++
	}
}

func (c *Counters) decrement(tier pattern.Tier) {
	switch tier {
	case pattern.Critical:
		if c.CriticalCount > 0 {
			c.CriticalCount--
		}
	case pattern.Warning:
		if c.WarningCount > 0 {
			c.WarningCount--
		}
	case pattern.Ok:
		if c.OkCount > 0 {
			c.OkCount--
		}
	}
}

// RunData is the persisted cursor and counter state for one (logfile, tag)
// pair, carried forward across invocations via the snapshot store.
type RunData struct {
	PID         int
	StartOffset int64
	StartLine   int64
	LastOffset  int64
	LastLine    int64
	LastRun     time.Time
	Counters    Counters
	LastError   error
}

// thresholdReached decides whether a just-matched tier's count has crossed
// its configured threshold, and is where an ok-tier match unconditionally
// resets the critical and warning counters as a side effect — independent
// of whether runifok ultimately lets the callback fire.
func thresholdReached(rd *RunData, tier pattern.Tier, opts SearchOptions) bool {
	switch tier {
	case pattern.Critical:
		return rd.Counters.CriticalCount > opts.CriticalThreshold
	case pattern.Warning:
		return rd.Counters.WarningCount > opts.WarningThreshold
	case pattern.Ok:
		rd.Counters.CriticalCount = 0
		rd.Counters.WarningCount = 0
		return opts.RunIfOk
	default:
		return true
	}
}

// applyThresholdFinalization subtracts the configured thresholds from the
// end-of-run counts. Without savethresholds, a count below its threshold
// is floored to zero; with savethresholds, a below-threshold count is
// reported as-is (not floored) — the two branches are not symmetric.
func applyThresholdFinalization(c *Counters, opts SearchOptions) {
	c.CriticalCount = subtractThreshold(c.CriticalCount, opts.CriticalThreshold, opts.SaveThresholds)
	c.WarningCount = subtractThreshold(c.WarningCount, opts.WarningThreshold, opts.SaveThresholds)
}

func subtractThreshold(count, threshold int64, saveThresholds bool) int64 {
	if saveThresholds {
		if count >= threshold {
			return count - threshold
		}
		return count
	}
	if count < threshold {
		return 0
	}
	return count - threshold
}
