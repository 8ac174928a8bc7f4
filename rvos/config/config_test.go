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

package config

import (
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"rvos.dev/rvos/pkg/kernel"
	"rvos.dev/rvos/pkg/log"
	"rvos.dev/rvos/pkg/mm"
)

func newFlagSet(t *testing.T, args ...string) *flag.FlagSet {
	t.Helper()
	testFlags := flag.NewFlagSet("test", flag.ContinueOnError)
	RegisterFlags(testFlags)
	if err := testFlags.Parse(args); err != nil {
		t.Fatalf("Parse(%v) failed: %v", args, err)
	}
	return testFlags
}

func TestDefault(t *testing.T) {
	c, err := NewFromFlags(newFlagSet(t))
	if err != nil {
		t.Fatal(err)
	}
	// All defaults doesn't require setting flags.
	if flags := c.ToFlags(); len(flags) > 0 {
		t.Errorf("default flags not set correctly for: %s", flags)
	}
	want := kernel.Config{
		Layout:      mm.DefaultLayout(mm.DefaultMemoryEnd, mm.DefaultUserStackSize, mm.DefaultKernelStackSize),
		ClockFreq:   kernel.DefaultClockFreq,
		TicksPerSec: kernel.DefaultTicksPerSec,
		InitProc:    kernel.DefaultInitProc,
	}
	if diff := cmp.Diff(want, c.KernelConfig()); diff != "" {
		t.Errorf("KernelConfig mismatch (-want +got):\n%s", diff)
	}
}

func TestLogLevel(t *testing.T) {
	for _, tc := range []struct {
		args []string
		want log.Level
	}{
		{nil, log.Info},
		{[]string{"--debug"}, log.Debug},
		{[]string{"--debug=false"}, log.Info},
	} {
		c, err := NewFromFlags(newFlagSet(t, tc.args...))
		if err != nil {
			t.Fatalf("NewFromFlags(%v) failed: %v", tc.args, err)
		}
		if got := c.LogLevel(); got != tc.want {
			t.Errorf("LogLevel() with %v = %v, want %v", tc.args, got, tc.want)
		}
	}
}

func TestFromFlags(t *testing.T) {
	c, err := NewFromFlags(newFlagSet(t, "--debug", "--ticks-per-sec=50", "--init-proc=user_shell", "--raw-terminal=false"))
	if err != nil {
		t.Fatal(err)
	}
	if want := true; c.Debug != want {
		t.Errorf("Debug=%v, want: %v", c.Debug, want)
	}
	if want := uint64(50); c.TicksPerSec != want {
		t.Errorf("TicksPerSec=%v, want: %v", c.TicksPerSec, want)
	}
	if want := "user_shell"; c.InitProc != want {
		t.Errorf("InitProc=%v, want: %v", c.InitProc, want)
	}
	if c.RawTerminal {
		t.Errorf("RawTerminal=true, want false")
	}
}

func TestToFlagsFromFlags(t *testing.T) {
	args := []string{"--debug=true", "--log-format=json", "--memory-end=2156920832", "--metrics-file=/tmp/m"}
	c, err := NewFromFlags(newFlagSet(t, args...))
	if err != nil {
		t.Fatal(err)
	}
	got := c.ToFlags()
	c2, err := NewFromFlags(newFlagSet(t, got...))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(c, c2); diff != "" {
		t.Errorf("round trip through %v mismatch (-want +got):\n%s", got, diff)
	}
	for _, want := range args {
		found := false
		for _, f := range got {
			found = found || f == want
		}
		if !found {
			t.Errorf("ToFlags() = %v, missing %q", got, want)
		}
	}
}

func TestConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rvos.toml")
	contents := strings.Join([]string{
		`clock_freq = 1000000`,
		`ticks_per_sec = 10`,
		`init_proc = "forktest"`,
		`debug = true`,
	}, "\n")
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatal(err)
	}

	c, err := NewFromFlags(newFlagSet(t, "--config="+path, "--ticks-per-sec=20"))
	if err != nil {
		t.Fatal(err)
	}
	if want := uint64(1000000); c.ClockFreq != want {
		t.Errorf("ClockFreq=%v, want: %v", c.ClockFreq, want)
	}
	if want := uint64(20); c.TicksPerSec != want {
		t.Errorf("TicksPerSec=%v, want %v from the command line", c.TicksPerSec, want)
	}
	if want := "forktest"; c.InitProc != want {
		t.Errorf("InitProc=%v, want: %v", c.InitProc, want)
	}
	if !c.Debug {
		t.Errorf("Debug=false, want true from the file")
	}
}

func TestConfigFileErrors(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.toml")
	if err := os.WriteFile(bad, []byte("clock_freq = \"fast\"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	for _, path := range []string{bad, filepath.Join(dir, "missing.toml")} {
		if _, err := NewFromFlags(newFlagSet(t, "--config="+path)); err == nil {
			t.Errorf("NewFromFlags with %s succeeded", path)
		}
	}
}

func TestValidation(t *testing.T) {
	for _, args := range [][]string{
		{"--clock-freq=10"},
		{"--ticks-per-sec=0"},
		{"--init-proc="},
		{"--log-format=xml"},
		{"--memory-end=2147483648"},
		{"--user-stack-size=100"},
	} {
		t.Run(strings.Join(args, " "), func(t *testing.T) {
			if _, err := NewFromFlags(newFlagSet(t, args...)); err == nil {
				t.Errorf("NewFromFlags(%v) succeeded", args)
			}
		})
	}
}
