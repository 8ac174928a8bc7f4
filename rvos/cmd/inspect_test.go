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
	"testing"

	"gopkg.in/yaml.v3"
	"rvos.dev/rvos/pkg/apps"
	"rvos.dev/rvos/pkg/kernel"
	"rvos.dev/rvos/pkg/mm"
	"rvos.dev/rvos/rvos/config"
)

func defaultConfig() *config.Config {
	return &config.Config{
		MemoryEnd:       mm.DefaultMemoryEnd,
		ClockFreq:       kernel.DefaultClockFreq,
		TicksPerSec:     kernel.DefaultTicksPerSec,
		UserStackSize:   mm.DefaultUserStackSize,
		KernelStackSize: mm.DefaultKernelStackSize,
		InitProc:        kernel.DefaultInitProc,
		LogFormat:       "text",
	}
}

func TestInspect(t *testing.T) {
	ins, err := inspect(context.Background(), defaultConfig(), apps.HelloWorld)
	if err != nil {
		t.Fatalf("inspect failed: %v", err)
	}
	if ins.Program.Entry != apps.BaseAddress {
		t.Errorf("entry = %#x, want %#x", ins.Program.Entry, apps.BaseAddress)
	}
	// Text, data, user stack and trap context.
	if got := len(ins.Program.Areas); got != 4 {
		t.Errorf("program has %d areas, want 4: %+v", got, ins.Program.Areas)
	}
	if got := len(ins.KernelSpace); got != 5 {
		t.Errorf("kernel space has %d areas, want 5", got)
	}

	b, err := yaml.Marshal(ins)
	if err != nil {
		t.Fatalf("yaml.Marshal failed: %v", err)
	}
	var back Inspection
	if err := yaml.Unmarshal(b, &back); err != nil {
		t.Fatalf("yaml.Unmarshal failed: %v", err)
	}
	if back.Program.UserSP != ins.Program.UserSP || back.Layout != ins.Layout {
		t.Errorf("YAML round trip changed the inspection:\n%s", b)
	}
}

func TestInspectUnknownProgram(t *testing.T) {
	if _, err := inspect(context.Background(), defaultConfig(), "no_such_app"); err == nil {
		t.Errorf("inspect succeeded")
	}
}
