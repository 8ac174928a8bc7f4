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

// Package cli is the main entrypoint for rvos.
package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/google/subcommands"
	"rvos.dev/rvos/pkg/log"
	"rvos.dev/rvos/rvos/cmd"
	"rvos.dev/rvos/rvos/config"
)

// version is set by the linker.
var version = "unknown"

// versionFlagName is the name of a flag that triggers printing the version.
const versionFlagName = "version"

// Main is the main entrypoint.
func Main() {
	// Register all commands.
	forEachCmd(subcommands.Register)

	// Register with the main command line.
	config.RegisterFlags(flag.CommandLine)
	showVersion := flag.Bool(versionFlagName, false, "show version and exit.")

	// All subcommands must be registered before flag parsing.
	flag.Parse()

	if *showVersion {
		fmt.Fprintf(os.Stdout, "rvos version %s\n", version)
		os.Exit(0)
	}

	// Create a new Config from the flags.
	conf, err := config.NewFromFlags(flag.CommandLine)
	if err != nil {
		cmd.Fatalf("%v", err)
	}

	var logOut io.Writer = os.Stderr
	if conf.LogFilename != "" {
		f, err := log.OpenFile(conf.LogFilename)
		if err != nil {
			cmd.Fatalf("error opening log file %q: %v", conf.LogFilename, err)
		}
		logOut = f
		cmd.ErrorLogger = f
	}
	if err := log.SetTarget(logOut, conf.LogFormat); err != nil {
		cmd.Fatalf("%v", err)
	}
	log.SetLevel(conf.LogLevel())

	const delimString = `**************** rvos ****************`
	log.Infof(delimString)
	log.Infof("Version %s, %s, %s, PID %d", version, runtime.Version(), runtime.GOARCH, os.Getpid())
	log.Infof("Args: %v", os.Args)
	conf.Log()
	log.Infof(delimString)

	// Call the subcommand and pass in the configuration.
	var exitCode int
	subcmdCode := subcommands.Execute(context.Background(), conf, &exitCode)
	if subcmdCode == subcommands.ExitSuccess {
		log.Infof("Exiting with status: %d", exitCode)
		os.Exit(exitCode)
	}
	// Return an error that is unlikely to be used by the application.
	log.Warningf("Failure to execute command, err: %v", subcmdCode)
	os.Exit(128)
}

// forEachCmd invokes the passed callback for each command supported by rvos.
func forEachCmd(cb func(cmd subcommands.Command, group string)) {
	// Help and flags commands are generated automatically.
	cb(subcommands.HelpCommand(), "")
	cb(subcommands.FlagsCommand(), "")
	cb(subcommands.CommandsCommand(), "")

	cb(new(cmd.Run), "")
	cb(new(cmd.Apps), "")

	const debugGroup = "debug"
	cb(new(cmd.Inspect), debugGroup)
}
