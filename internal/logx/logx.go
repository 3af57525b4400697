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

// Package logx provides the package-level leveled logger used throughout
// this plugin, reproducing the Trace/Debug/Info/Warn/Error calling
// convention its underlying architecture was built around, on top of
// logrus instead of a project-external logger package.
package logx

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

var base = logrus.New()

func init() {
	base.SetOutput(os.Stderr)
	base.SetLevel(logrus.InfoLevel)
	base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
}

// Level names the logging verbosity, matching the CLI's --logger-level
// values.
type Level string

const (
	LevelOff   Level = "off"
	LevelTrace Level = "trace"
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// SetLevel configures the minimum level that will be emitted. LevelOff
// suppresses everything: this package never logs at logrus's PanicLevel,
// so setting the logger to it is an effective mute.
func SetLevel(l Level) {
	switch l {
	case LevelOff:
		base.SetLevel(logrus.PanicLevel)
	case LevelTrace:
		base.SetLevel(logrus.TraceLevel)
	case LevelDebug:
		base.SetLevel(logrus.DebugLevel)
	case LevelWarn:
		base.SetLevel(logrus.WarnLevel)
	case LevelError:
		base.SetLevel(logrus.ErrorLevel)
	default:
		base.SetLevel(logrus.InfoLevel)
	}
}

// SetOutput redirects log output, used by the CLI to honor --clflog and
// --logger-size-mb by wiring in a size-based rotating writer.
func SetOutput(w io.Writer) {
	base.SetOutput(w)
}

// Trace logs at trace level, the most verbose: line-by-line scan detail.
func Trace(args ...interface{}) { base.Trace(args...) }

// Tracef is Trace with format arguments.
func Tracef(format string, args ...interface{}) { base.Tracef(format, args...) }

// Debug logs at debug level.
func Debug(args ...interface{}) { base.Debug(args...) }

// Debugf is Debug with format arguments.
func Debugf(format string, args ...interface{}) { base.Debugf(format, args...) }

// Info logs at info level: normal operational messages.
func Info(args ...interface{}) { base.Info(args...) }

// Infof is Info with format arguments.
func Infof(format string, args ...interface{}) { base.Infof(format, args...) }

// Warn logs at warn level.
func Warn(args ...interface{}) { base.Warn(args...) }

// Warnf is Warn with format arguments.
func Warnf(format string, args ...interface{}) { base.Warnf(format, args...) }

// Error logs at error level.
func Error(args ...interface{}) { base.Error(args...) }

// Errorf is Error with format arguments.
func Errorf(format string, args ...interface{}) { base.Errorf(format, args...) }
