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

package snapshot

// Summarize totals the critical/warning counts for the current process's
// own run (RunData.PID == pid, so a previous invocation's matches sharing
// this snapshot file aren't re-counted), and the number of RunData entries
// carrying a recorded error. LastError is never restored when a snapshot
// is loaded from disk, so only entries produced by this run can have it
// set, making an explicit PID filter on this count unnecessary.
func Summarize(snap Snapshot, pid int) (critical, warning, staleErrors int64) {
	for _, lf := range snap {
		for _, rd := range lf.RunData {
			if rd.PID == pid {
				critical += rd.Counters.CriticalCount
				warning += rd.Counters.WarningCount
			}
			if rd.LastError != nil {
				staleErrors++
			}
		}
	}
	return critical, warning, staleErrors
}
