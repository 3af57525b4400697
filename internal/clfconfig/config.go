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

// Package clfconfig loads and validates the YAML configuration file that
// describes global options and the list of logfile searches to run.
package clfconfig

import (
	"bytes"
	"fmt"
	"os"
	"os/user"
	"regexp"
	"runtime"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/afero"
	"github.com/spf13/cast"
	"github.com/spf13/viper"

	"github.com/clfcheck/check-logfiles/internal/callback"
	"github.com/clfcheck/check-logfiles/internal/logfile"
	"github.com/clfcheck/check-logfiles/internal/pattern"
	"github.com/clfcheck/check-logfiles/internal/scanner"
)

const defaultRetention = 24 * time.Hour

// defaultHashWindow is the signature-hash sample size used when a logfile
// definition doesn't declare its own.
const defaultHashWindow = 10240

// defaultScriptTimeoutMS is applied to a prescript/postscript entry that
// doesn't declare its own timeout.
const defaultScriptTimeoutMS = 3000

// Prescript is one external command run before scanning begins.
type Prescript struct {
	Command     []string
	TimeoutMS   int64
	Async       bool
	ExitOnError bool
}

// Postscript is the single external command run once scanning ends.
type Postscript struct {
	Command   []string
	TimeoutMS int64
}

// Global holds the options that apply across every search.
type Global struct {
	ScriptPath        string
	OutputDir         string
	SnapshotFile      string
	SnapshotRetention time.Duration
	Vars              map[string]string
	Prescript         []Prescript
	Postscript        *Postscript
}

// Config is the fully parsed, regex-compiled configuration tree.
type Config struct {
	Global  Global
	Entries []*logfile.Definition
}

// rawGlobal, rawSearch, rawTag, rawCallback, rawArchive, and rawPattern
// mirror the YAML shape before regex compilation and tier construction,
// decoded via mapstructure from viper's settings map.
type rawGlobal struct {
	ScriptPath        string            `mapstructure:"script_path"`
	OutputDir         string            `mapstructure:"output_dir"`
	SnapshotFile      string            `mapstructure:"snapshot_file"`
	SnapshotRetention int64             `mapstructure:"snapshot_retention"`
	Vars              map[string]string `mapstructure:"vars"`
	Prescript         []rawScript       `mapstructure:"prescript"`
	Postscript        *rawScript        `mapstructure:"postscript"`
}

type rawScript struct {
	Command     []string `mapstructure:"command"`
	Timeout     int64    `mapstructure:"timeout_ms"`
	Async       bool     `mapstructure:"async"`
	ExitOnError bool     `mapstructure:"exit_on_error"`
}

type rawConfig struct {
	Global   rawGlobal   `mapstructure:"global"`
	Searches []rawSearch `mapstructure:"searches"`
}

type rawSearch struct {
	Logfile rawLogfile `mapstructure:"logfile"`
	Tags    []rawTag   `mapstructure:"tags"`
}

type rawLogfile struct {
	Path           string      `mapstructure:"path"`
	List           []string    `mapstructure:"list"`
	Format         string      `mapstructure:"format"`
	Exclude        string      `mapstructure:"exclude"`
	Archive        *rawArchive `mapstructure:"archive"`
	LogfileMissing string      `mapstructure:"logfilemissing"`
	HashWindow     int64       `mapstructure:"hash_window"`
}

type rawArchive struct {
	Dir       string `mapstructure:"dir"`
	Extension string `mapstructure:"extension"`
	Pattern   string `mapstructure:"pattern"`
}

type rawTag struct {
	Name     string       `mapstructure:"name"`
	Process  *bool        `mapstructure:"process"`
	Options  string       `mapstructure:"options"`
	Callback *rawCallback `mapstructure:"callback"`
	Patterns rawPatternSet `mapstructure:"patterns"`
}

type rawCallback struct {
	Script  string   `mapstructure:"script"`
	TCP     string   `mapstructure:"tcp"`
	Unix    string   `mapstructure:"unix"`
	Args    []string `mapstructure:"args"`
	Timeout int64    `mapstructure:"timeout"`
}

type rawPatternSet struct {
	Critical *rawPattern `mapstructure:"critical"`
	Warning  *rawPattern `mapstructure:"warning"`
	Ok       *rawPattern `mapstructure:"ok"`
}

type rawPattern struct {
	Regexes    []string `mapstructure:"regexes"`
	Exceptions []string `mapstructure:"exceptions"`
}

// Load reads and validates the YAML configuration at path. extraVars are
// CLI-supplied key:value pairs layered on top of the configured global
// vars (CLI wins on collision).
func Load(fs afero.Fs, path string, extraVars map[string]string) (*Config, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("reading configuration file %q: %w", path, err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("parsing configuration file %q: %w", path, err)
	}

	var raw rawConfig
	if err := v.Unmarshal(&raw, func(dc *mapstructure.DecoderConfig) {
		dc.ErrorUnused = false
		dc.WeaklyTypedInput = true
	}); err != nil {
		return nil, fmt.Errorf("decoding configuration file %q: %w", path, err)
	}

	cfg := &Config{Global: buildGlobal(raw.Global, path, extraVars)}
	for _, s := range raw.Searches {
		paths := s.Logfile.List
		if len(paths) == 0 {
			paths = []string{s.Logfile.Path}
		}
		for _, p := range paths {
			def, err := buildDefinition(s, p)
			if err != nil {
				return nil, err
			}
			cfg.Entries = append(cfg.Entries, def)
		}
	}

	if cfg.Global.ScriptPath != "" {
		for _, def := range cfg.Entries {
			for _, tag := range def.Tags {
				if tag.Callback != nil && tag.Callback.Kind == callback.Script {
					tag.Callback.EnvPath = cfg.Global.ScriptPath
				}
			}
		}
	}

	return cfg, nil
}

func buildGlobal(raw rawGlobal, configPath string, extraVars map[string]string) Global {
	g := Global{
		ScriptPath:        raw.ScriptPath,
		OutputDir:         raw.OutputDir,
		SnapshotFile:      raw.SnapshotFile,
		SnapshotRetention: defaultRetention,
		Vars:              map[string]string{},
	}
	if raw.SnapshotRetention > 0 {
		g.SnapshotRetention = time.Duration(raw.SnapshotRetention) * time.Second
	}
	if g.OutputDir == "" {
		g.OutputDir = os.TempDir()
	}

	for k, val := range raw.Vars {
		g.Vars[k] = val
	}
	if u, err := user.Current(); err == nil {
		g.Vars["USER"] = u.Username
	}
	if host, err := os.Hostname(); err == nil {
		g.Vars["HOSTNAME"] = host
	}
	g.Vars["PLATFORM"] = runtime.GOOS + "/" + runtime.GOARCH
	g.Vars["CONFIG_FILE"] = configPath
	for k, val := range extraVars {
		g.Vars[k] = val
	}

	for _, p := range raw.Prescript {
		g.Prescript = append(g.Prescript, Prescript{
			Command:     p.Command,
			TimeoutMS:   scriptTimeout(p.Timeout),
			Async:       p.Async,
			ExitOnError: p.ExitOnError,
		})
	}
	if raw.Postscript != nil {
		g.Postscript = &Postscript{
			Command:   raw.Postscript.Command,
			TimeoutMS: scriptTimeout(raw.Postscript.Timeout),
		}
	}

	return g
}

func scriptTimeout(configured int64) int64 {
	if configured > 0 {
		return configured
	}
	return defaultScriptTimeoutMS
}

func buildDefinition(s rawSearch, path string) (*logfile.Definition, error) {
	def := &logfile.Definition{
		Path:           path,
		HashWindow:     defaultHashWindow,
		LogFileMissing: logfile.ParseMissingPolicy(s.Logfile.LogfileMissing),
	}
	if s.Logfile.HashWindow > 0 {
		def.HashWindow = s.Logfile.HashWindow
	}
	if s.Logfile.Format == "json" {
		def.Format = logfile.JSON
	}
	if s.Logfile.Exclude != "" {
		re, err := regexp.Compile(s.Logfile.Exclude)
		if err != nil {
			return nil, fmt.Errorf("compiling exclude regex for %q: %w", path, err)
		}
		def.Exclude = re
	}
	if s.Logfile.Archive != nil {
		def.ArchiveDesc = &logfile.Archive{
			Directory: s.Logfile.Archive.Dir,
			Extension: s.Logfile.Archive.Extension,
			Pattern:   s.Logfile.Archive.Pattern,
		}
	}

	for _, t := range s.Tags {
		tag, err := buildTag(t)
		if err != nil {
			return nil, fmt.Errorf("tag %q for logfile %q: %w", t.Name, path, err)
		}
		def.Tags = append(def.Tags, tag)
	}
	return def, nil
}

func buildTag(t rawTag) (*scanner.Tag, error) {
	opts, err := ParseSearchOptions(t.Options)
	if err != nil {
		return nil, err
	}

	tag := &scanner.Tag{
		Name:    t.Name,
		Process: true,
		Options: opts,
	}
	if t.Process != nil {
		tag.Process = *t.Process
	}

	set := &pattern.Set{}
	for _, pair := range []struct {
		raw  *rawPattern
		dest **pattern.Pattern
	}{
		{t.Patterns.Critical, &set.Critical},
		{t.Patterns.Warning, &set.Warning},
		{t.Patterns.Ok, &set.Ok},
	} {
		if pair.raw == nil {
			continue
		}
		p, err := pattern.NewPattern(pair.raw.Regexes, pair.raw.Exceptions)
		if err != nil {
			return nil, err
		}
		*pair.dest = p
	}
	tag.Patterns = set

	if t.Callback != nil {
		cb := &callback.Config{
			Args:    t.Callback.Args,
			Timeout: time.Duration(cast.ToInt64(t.Callback.Timeout)) * time.Second,
		}
		switch {
		case t.Callback.Script != "":
			cb.Kind = callback.Script
			cb.Script = t.Callback.Script
		case t.Callback.TCP != "":
			cb.Kind = callback.TCP
			cb.Address = t.Callback.TCP
		case t.Callback.Unix != "":
			cb.Kind = callback.Unix
			cb.Address = t.Callback.Unix
		default:
			return nil, fmt.Errorf("callback for tag %q names none of script/tcp/unix", t.Name)
		}
		tag.Callback = cb
	}

	return tag, nil
}
