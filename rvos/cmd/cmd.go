// Copyright 2026 The rvos Authors.
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

// Package cmd holds implementations of the rvos commands.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/subcommands"
	"rvos.dev/rvos/pkg/apps"
	"rvos.dev/rvos/pkg/loader"
	"rvos.dev/rvos/pkg/log"
	"rvos.dev/rvos/rvos/config"
)

// ErrorLogger is where error messages should be written to. These messages
// are consumed by the user, so they should be terse.
var ErrorLogger io.Writer

// Errorf logs error to the log file (--log), to stderr and to the debug log.
// It returns subcommands.ExitFailure for convenience with
// subcommand.Execute() methods:
//
//	return Errorf("Danger! Danger!")
func Errorf(format string, args ...any) subcommands.ExitStatus {
	writeError(format, args...)
	return subcommands.ExitFailure
}

// Fatalf logs the same message as Errorf and exits with status 128.
func Fatalf(format string, args ...any) {
	writeError(format, args...)
	os.Exit(128)
}

func writeError(format string, args ...any) {
	log.Warningf("FATAL ERROR: "+format, args...)
	fmt.Fprintf(os.Stderr, format+"\n", args...)

	if ErrorLogger != nil {
		// Format error message as json for the error log.
		b, err := json.Marshal(struct {
			Msg  string    `json:"msg"`
			Time time.Time `json:"time"`
		}{
			Msg:  fmt.Sprintf(format, args...),
			Time: time.Now(),
		})
		if err == nil {
			ErrorLogger.Write(b)
			ErrorLogger.Write([]byte("\n"))
		}
	}
}

// registry returns the bundled programs plus those in conf.AppsDir.
func registry(ctx context.Context, conf *config.Config) (*loader.Registry, error) {
	reg, err := apps.Registry()
	if err != nil {
		return nil, err
	}
	if conf.AppsDir != "" {
		if err := reg.LoadDir(ctx, conf.AppsDir); err != nil {
			return nil, fmt.Errorf("loading programs from %q: %w", conf.AppsDir, err)
		}
	}
	return reg, nil
}

// printf writes to w, ignoring errors.
func printf(w io.Writer, format string, v ...any) {
	fmt.Fprintf(w, format, v...)
}
