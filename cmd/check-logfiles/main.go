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

// check-logfiles is a Nagios-compatible plugin that scans one or more
// logfiles for lines matching configured patterns, dispatching matches
// to callback scripts or sockets and reporting the aggregate result as a
// Nagios exit code.
package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/pflag"

	"github.com/clfcheck/check-logfiles/internal/clfconfig"
	"github.com/clfcheck/check-logfiles/internal/logx"
	"github.com/clfcheck/check-logfiles/internal/nagios"
	"github.com/clfcheck/check-logfiles/internal/orchestrator"
	"github.com/clfcheck/check-logfiles/internal/prepost"
	"github.com/clfcheck/check-logfiles/internal/snapshot"
	"github.com/clfcheck/check-logfiles/internal/vars"
)

type cliOptions struct {
	configFile     string
	clfLog         string
	loggerLevel    string
	loggerSizeMB   int64
	deleteSnapshot bool
	resetLog       bool
	snapshotFile   string
	syntaxCheck    bool
	showOptions    bool
	noCallback     bool
	nagiosVersion  int
	extraVars      []string
}

func main() {
	opts := parseFlags(os.Args[1:])
	os.Exit(int(run(afero.NewOsFs(), opts)))
}

func parseFlags(args []string) cliOptions {
	fs := pflag.NewFlagSet("check-logfiles", pflag.ExitOnError)

	var o cliOptions
	fs.StringVar(&o.configFile, "config", "", "path to the YAML configuration file (required)")
	fs.StringVar(&o.clfLog, "clflog", "", "internal log file path (default: stderr)")
	fs.StringVar(&o.loggerLevel, "logger-level", "info", "logging verbosity: Off, Error, Warn, Info, Debug, Trace")
	fs.Int64Var(&o.loggerSizeMB, "logger-size-mb", 0, "rotate the internal log if it exceeds this size on start")
	fs.BoolVar(&o.deleteSnapshot, "delete-snapshot", false, "delete the snapshot file before scanning")
	fs.BoolVar(&o.resetLog, "reset-log", false, "truncate the internal log file before writing")
	fs.StringVar(&o.snapshotFile, "snapshot", "", "override the snapshot file path")
	fs.BoolVar(&o.syntaxCheck, "syntax-check", false, "validate the configuration file and exit")
	fs.BoolVar(&o.showOptions, "show-options", false, "print the parsed configuration and exit")
	fs.BoolVar(&o.noCallback, "no-callback", false, "scan and report matches without dispatching any callback")
	fs.IntVar(&o.nagiosVersion, "nagios-version", 3, "Nagios plugin API version: 2 or 3")
	fs.StringArrayVar(&o.extraVars, "extra-var", nil, "extra key:value variable, repeatable")

	if err := fs.Parse(args); err != nil {
		os.Exit(int(nagios.UNKNOWN))
	}
	if o.configFile == "" {
		fmt.Fprintln(os.Stderr, "check-logfiles: --config is required")
		os.Exit(int(nagios.UNKNOWN))
	}
	if o.nagiosVersion != 2 && o.nagiosVersion != 3 {
		fmt.Fprintln(os.Stderr, "check-logfiles: --nagios-version must be 2 or 3")
		os.Exit(int(nagios.UNKNOWN))
	}
	return o
}

// run performs one invocation end-to-end and returns the Nagios exit
// code, matching the plugin's exit-code contract exactly: config-syntax
// errors exit CRITICAL, everything else aggregates into the Nagios
// precedence (critical > warning > unknown > ok).
func run(fs afero.Fs, o cliOptions) nagios.Code {
	logx.SetLevel(logx.Level(strings.ToLower(o.loggerLevel)))
	if o.clfLog != "" {
		if err := setupLogFile(o); err != nil {
			fmt.Fprintf(os.Stderr, "check-logfiles: %v\n", err)
			return nagios.CRITICAL
		}
	}

	extraVars, err := parseExtraVars(o.extraVars)
	if err != nil {
		fmt.Fprintf(os.Stderr, "check-logfiles: %v\n", err)
		return nagios.CRITICAL
	}

	cfg, err := clfconfig.Load(fs, o.configFile, extraVars)
	if err != nil {
		fmt.Fprintf(os.Stderr, "check-logfiles: configuration error: %v\n", err)
		return nagios.CRITICAL
	}

	if o.syntaxCheck {
		fmt.Println("configuration OK")
		return nagios.OK
	}
	if o.showOptions {
		printOptions(cfg)
		return nagios.OK
	}

	snapPath := o.snapshotFile
	if snapPath == "" {
		snapPath = cfg.Global.SnapshotFile
	}
	if snapPath == "" {
		snapPath = snapshot.BuildName(o.configFile, cfg.Global.OutputDir)
	} else if isDir(fs, snapPath) {
		snapPath = snapshot.BuildName(o.configFile, snapPath)
	}

	if o.deleteSnapshot {
		if err := fs.Remove(snapPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			logx.Warnf("unable to delete snapshot %q: %v", snapPath, err)
		} else {
			logx.Infof("deleted snapshot file %q", snapPath)
		}
	}

	snap, err := snapshot.Load(fs, snapPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "check-logfiles: unable to load snapshot: %v\n", err)
		return nagios.CRITICAL
	}

	global := vars.NewGlobal(o.configFile, cfg.Global.Vars, nil)

	pids, err := prepost.RunPrescripts(global, cfg.Global.Prescript)
	var fatal *prepost.FatalError
	if err != nil && errors.As(err, &fatal) {
		fmt.Fprintf(os.Stderr, "check-logfiles: %v\n", err)
		return fatal.Code
	}

	out := orchestrator.Run(fs, os.Getpid(), cfg.Entries, global, snap, o.noCallback)

	if !o.noCallback {
		if err := snapshot.Save(fs, snapPath, snap, cfg.Global.SnapshotRetention); err != nil {
			logx.Warnf("unable to save snapshot %q: %v", snapPath, err)
		}
	}

	prepost.RunPostscript(global, cfg.Global.Postscript, pids)

	result := nagios.Result{Critical: out.Critical, Warning: out.Warning, Unknown: out.Unknown}
	fmt.Println(result.String())
	for _, line := range out.Details {
		fmt.Println(line)
	}
	for _, line := range out.Errors {
		fmt.Println(line)
	}

	return result.Code()
}

func setupLogFile(o cliOptions) error {
	if o.resetLog {
		if err := os.Truncate(o.clfLog, 0); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("truncating log file %q: %w", o.clfLog, err)
		}
	}
	w, err := logx.NewSizeRotatingWriter(o.clfLog, o.loggerSizeMB*1024*1024)
	if err != nil {
		return fmt.Errorf("opening log file %q: %w", o.clfLog, err)
	}
	logx.SetOutput(w)
	return nil
}

func parseExtraVars(pairs []string) (map[string]string, error) {
	out := map[string]string{}
	for _, p := range pairs {
		key, value, ok := strings.Cut(p, ":")
		if !ok {
			return nil, fmt.Errorf("--extra-var %q must be in key:value form", p)
		}
		out[key] = value
	}
	return out, nil
}

func isDir(fs afero.Fs, path string) bool {
	fi, err := fs.Stat(path)
	return err == nil && fi.IsDir()
}

func printOptions(cfg *clfconfig.Config) {
	fmt.Printf("script_path: %s\n", cfg.Global.ScriptPath)
	fmt.Printf("output_dir: %s\n", cfg.Global.OutputDir)
	fmt.Printf("snapshot_file: %s\n", cfg.Global.SnapshotFile)
	fmt.Printf("snapshot_retention: %s\n", cfg.Global.SnapshotRetention)
	for k, v := range cfg.Global.Vars {
		fmt.Printf("var: %s=%s\n", k, v)
	}
	for _, def := range cfg.Entries {
		fmt.Printf("logfile: %s\n", def.Path)
		for _, tag := range def.Tags {
			fmt.Printf("  tag: %s (process=%t, runlimit=%s)\n", tag.Name, tag.Process, strconv.FormatInt(tag.Options.RunLimit, 10))
		}
	}
}
