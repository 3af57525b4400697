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
	"testing"

	"github.com/spf13/afero"

	"github.com/clfcheck/check-logfiles/internal/callback"
	"github.com/clfcheck/check-logfiles/internal/logfile"
)

const sampleYAML = `
global:
  script_path: /usr/bin
  snapshot_retention: 3600
  vars:
    team: sre
searches:
  - logfile:
      path: /var/log/app.log
      format: plain
      exclude: "^DEBUG"
      logfilemissing: CRITICAL
    tags:
      - name: errors
        options: "runcallback, criticalthreshold=2"
        callback:
          script: /opt/scripts/notify.sh
          args: ["arg1"]
        patterns:
          critical:
            regexes:
              - "ERROR"
            exceptions:
              - "ERROR: benign"
          ok:
            regexes:
              - "recovered"
`

func TestLoadParsesGlobalAndSearches(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/etc/clf.yaml", []byte(sampleYAML), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(fs, "/etc/clf.yaml", map[string]string{"extra": "v"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Global.Vars["team"] != "sre" {
		t.Errorf("global var team = %q, want sre", cfg.Global.Vars["team"])
	}
	if cfg.Global.Vars["extra"] != "v" {
		t.Errorf("extra var not layered in: %v", cfg.Global.Vars)
	}
	if cfg.Global.Vars["CONFIG_FILE"] != "/etc/clf.yaml" {
		t.Errorf("CONFIG_FILE = %q", cfg.Global.Vars["CONFIG_FILE"])
	}

	if len(cfg.Entries) != 1 {
		t.Fatalf("len(Entries) = %d, want 1", len(cfg.Entries))
	}
	def := cfg.Entries[0]
	if def.Path != "/var/log/app.log" {
		t.Errorf("Path = %q", def.Path)
	}
	if def.LogFileMissing != logfile.MissingCritical {
		t.Errorf("LogFileMissing = %v, want MissingCritical", def.LogFileMissing)
	}
	if def.Exclude == nil || !def.Exclude.MatchString("DEBUG foo") {
		t.Errorf("exclude regex not compiled/matching")
	}

	if len(def.Tags) != 1 {
		t.Fatalf("len(Tags) = %d, want 1", len(def.Tags))
	}
	tag := def.Tags[0]
	if !tag.Options.RunCallback || tag.Options.CriticalThreshold != 2 {
		t.Errorf("tag options = %+v", tag.Options)
	}
	if tag.Patterns.Critical == nil || tag.Patterns.Ok == nil {
		t.Fatalf("patterns not built: %+v", tag.Patterns)
	}
	if tag.Callback == nil || tag.Callback.Kind != callback.Script || tag.Callback.Script != "/opt/scripts/notify.sh" {
		t.Errorf("callback = %+v", tag.Callback)
	}
}

func TestLoadExpandsLogfileList(t *testing.T) {
	yaml := `
searches:
  - logfile:
      list: ["/var/log/a.log", "/var/log/b.log"]
    tags:
      - name: t1
        patterns:
          ok:
            regexes: ["x"]
`
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/etc/clf.yaml", []byte(yaml), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(fs, "/etc/clf.yaml", nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Entries) != 2 {
		t.Fatalf("len(Entries) = %d, want 2", len(cfg.Entries))
	}
	if cfg.Entries[0].Path != "/var/log/a.log" || cfg.Entries[1].Path != "/var/log/b.log" {
		t.Errorf("entries = %+v", cfg.Entries)
	}
}

func TestLoadRejectsUnknownSearchOption(t *testing.T) {
	yaml := `
searches:
  - logfile:
      path: /var/log/a.log
    tags:
      - name: t1
        options: "bogusoption"
        patterns:
          ok:
            regexes: ["x"]
`
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/etc/clf.yaml", []byte(yaml), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, err := Load(fs, "/etc/clf.yaml", nil); err == nil {
		t.Fatal("expected error for unsupported search option, got nil")
	}
}

func TestLoadRejectsMalformedRegex(t *testing.T) {
	yaml := `
searches:
  - logfile:
      path: /var/log/a.log
    tags:
      - name: t1
        patterns:
          critical:
            regexes: ["(unterminated"]
`
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/etc/clf.yaml", []byte(yaml), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, err := Load(fs, "/etc/clf.yaml", nil); err == nil {
		t.Fatal("expected error for malformed regex, got nil")
	}
}
