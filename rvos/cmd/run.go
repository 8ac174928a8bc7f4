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

package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/containerd/console"
	"github.com/google/subcommands"
	"golang.org/x/sys/unix"
	"rvos.dev/rvos/pkg/kernel"
	"rvos.dev/rvos/pkg/log"
	"rvos.dev/rvos/pkg/machine"
	"rvos.dev/rvos/pkg/metric"
	"rvos.dev/rvos/pkg/syscalls"
	"rvos.dev/rvos/rvos/config"
)

// Run implements subcommands.Command for the "run" command.
type Run struct {
	listApps bool
}

// Name implements subcommands.Command.Name.
func (*Run) Name() string {
	return "run"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Run) Synopsis() string {
	return "boot the kernel and run the init program"
}

// Usage implements subcommands.Command.Usage.
func (*Run) Usage() string {
	return `run [flags] - boot the kernel on a new machine and run the init program
until it exits. The machine console is connected to stdin and stdout.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (r *Run) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&r.listApps, "list-apps", true, "print the available programs at boot.")
}

// Execute implements subcommands.Command.Execute.
func (r *Run) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() != 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	conf := args[0].(*config.Config)
	exitCode := args[1].(*int)

	crlf := false
	if conf.RawTerminal {
		if c, err := console.ConsoleFromFile(os.Stdin); err == nil {
			if err := c.SetRaw(); err != nil {
				return Errorf("setting terminal to raw mode: %v", err)
			}
			defer c.Reset()
			crlf = true
			log.Debugf("Terminal in raw mode")
		}
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, unix.SIGTERM)
	defer stop()
	code, err := r.run(ctx, conf, os.Stdin, os.Stdout, crlf)
	if err != nil {
		return Errorf("%v", err)
	}
	*exitCode = code
	return subcommands.ExitSuccess
}

// run boots a machine with the given console, runs init to completion and
// returns the host exit status for init's exit code. A kernel panic is
// returned as a *kernel.PanicError.
func (r *Run) run(ctx context.Context, conf *config.Config, in io.Reader, out io.Writer, crlf bool) (int, error) {
	reg, err := registry(ctx, conf)
	if err != nil {
		return 0, err
	}

	m, err := machine.New(machine.Config{
		MemoryEnd: conf.MemoryEnd,
		Input:     in,
		Output:    out,
		CRLF:      crlf,
	})
	if err != nil {
		return 0, fmt.Errorf("creating machine: %w", err)
	}
	defer m.Close()

	kcfg := conf.KernelConfig()
	kcfg.Apps = reg
	kcfg.Syscalls = syscalls.Table
	k, err := kernel.New(m, kcfg)
	if err != nil {
		return 0, fmt.Errorf("booting kernel: %w", err)
	}
	if r.listApps {
		k.ListApps()
	}
	if err := k.AddInitProc(); err != nil {
		return 0, err
	}

	runErr := k.Run(ctx)

	if conf.MetricsFile != "" {
		if err := writeMetrics(conf.MetricsFile); err != nil {
			log.Warningf("Writing metrics: %v", err)
		}
	}

	var perr *kernel.PanicError
	switch {
	case errors.As(runErr, &perr):
		log.Warningf("Kernel panic stack:\n%s", perr.Stack)
		return 0, perr
	case runErr != nil:
		return 0, fmt.Errorf("running kernel: %w", runErr)
	}
	code, exited := k.ExitCode()
	if !exited {
		return 0, fmt.Errorf("init process %q did not exit", conf.InitProc)
	}
	log.Infof("Init exited with code %d", code)
	// The host sees the low byte, as with exit(2).
	return int(uint8(code)), nil
}

// writeMetrics writes the kernel counters to path.
func writeMetrics(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	return errors.Join(metric.WriteText(f), f.Close())
}
