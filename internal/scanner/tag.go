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
	"github.com/clfcheck/check-logfiles/internal/callback"
	"github.com/clfcheck/check-logfiles/internal/pattern"
)

// Tag is one named search within a logfile definition: a set of patterns
// to classify lines against, the options controlling how the scan
// behaves, and where matches get dispatched.
type Tag struct {
	Name     string
	Process  bool
	Options  SearchOptions
	Callback *callback.Config
	Patterns *pattern.Set
}
