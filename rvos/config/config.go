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

// Package config provides basic infrastructure to set configuration settings
// for rvos. Each setting is a field of Config with a flag tag, and may also
// be set in a TOML file named by --config.
package config

import (
	"fmt"

	"rvos.dev/rvos/pkg/kernel"
	"rvos.dev/rvos/pkg/log"
	"rvos.dev/rvos/pkg/mm"
	"rvos.dev/rvos/pkg/riscv"
)

// Config holds configuration that is not part of the program images.
//
// Follow these steps to add a new flag:
//  1. Create a new field in Config.
//  2. Add a field tag with the flag name, and a toml tag with the key used
//     in configuration files.
//  3. Register a new flag in flags.go, with name and description.
//  4. Add any validation to validate().
type Config struct {
	// ConfigFile is the TOML file the other settings are read from.
	// Flags set on the command line take precedence over it.
	ConfigFile string `flag:"config" toml:"-"`

	// MemoryEnd is the first physical address past RAM.
	MemoryEnd uint64 `flag:"memory-end" toml:"memory_end"`

	// ClockFreq is the machine timer frequency in Hz.
	ClockFreq uint64 `flag:"clock-freq" toml:"clock_freq"`

	// TicksPerSec is the number of time slices per second.
	TicksPerSec uint64 `flag:"ticks-per-sec" toml:"ticks_per_sec"`

	// UserStackSize and KernelStackSize are per task stack sizes in bytes.
	UserStackSize   uint64 `flag:"user-stack-size" toml:"user_stack_size"`
	KernelStackSize uint64 `flag:"kernel-stack-size" toml:"kernel_stack_size"`

	// AppsDir is a directory of additional ELF programs. They are added to
	// the bundled ones, replacing any with the same name.
	AppsDir string `flag:"apps-dir" toml:"apps_dir"`

	// InitProc names the first program.
	InitProc string `flag:"init-proc" toml:"init_proc"`

	// Debug enables debug logging.
	Debug bool `flag:"debug" toml:"debug"`

	// LogFilename is the file internal logs are written to. Empty means
	// stderr.
	LogFilename string `flag:"log" toml:"log"`

	// LogFormat is the log format, "text" or "json".
	LogFormat string `flag:"log-format" toml:"log_format"`

	// MetricsFile receives the kernel counters in Prometheus text format
	// when the machine stops.
	MetricsFile string `flag:"metrics-file" toml:"metrics_file"`

	// RawTerminal puts a terminal stdin in raw mode while the machine runs.
	RawTerminal bool `flag:"raw-terminal" toml:"raw_terminal"`
}

// Layout returns the kernel image layout for c.
func (c *Config) Layout() mm.Layout {
	return mm.DefaultLayout(c.MemoryEnd, c.UserStackSize, c.KernelStackSize)
}

func (c *Config) validate() error {
	l := c.Layout()
	if err := l.Validate(); err != nil {
		return fmt.Errorf("invalid memory configuration: %w", err)
	}
	if c.MemoryEnd <= mm.KernelBase {
		return fmt.Errorf("memory end %#x is below the kernel base %#x", c.MemoryEnd, uint64(mm.KernelBase))
	}
	if c.ClockFreq < 1000 {
		return fmt.Errorf("clock frequency %d Hz is below 1 kHz", c.ClockFreq)
	}
	if c.TicksPerSec == 0 || c.TicksPerSec > c.ClockFreq {
		return fmt.Errorf("ticks per second %d must be in [1, %d]", c.TicksPerSec, c.ClockFreq)
	}
	if c.InitProc == "" {
		return fmt.Errorf("init-proc must not be empty")
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format %q, must be 'text' or 'json'", c.LogFormat)
	}
	return nil
}

// LogLevel returns the level to log at: Debug with --debug, else Info.
func (c *Config) LogLevel() log.Level {
	if c.Debug {
		return log.Debug
	}
	return log.Info
}

// Log logs important aspects of the configuration to the given log function.
func (c *Config) Log() {
	log.Infof("Config:")
	log.Infof("\t\tMemory end: %#x (%d pages)", c.MemoryEnd, (c.MemoryEnd-mm.KernelBase)/riscv.PageSize)
	log.Infof("\t\tTimer: %d Hz, %d ticks per second", c.ClockFreq, c.TicksPerSec)
	log.Infof("\t\tStacks: user %#x, kernel %#x", c.UserStackSize, c.KernelStackSize)
	log.Infof("\t\tInit: %q, apps dir: %q", c.InitProc, c.AppsDir)
}

// KernelConfig returns the kernel settings of c. Apps and Syscalls are
// left for the caller.
func (c *Config) KernelConfig() kernel.Config {
	return kernel.Config{
		Layout:      c.Layout(),
		ClockFreq:   c.ClockFreq,
		TicksPerSec: c.TicksPerSec,
		InitProc:    c.InitProc,
	}
}
