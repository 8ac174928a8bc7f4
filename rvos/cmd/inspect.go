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
	"flag"
	"os"

	"github.com/google/subcommands"
	"gopkg.in/yaml.v3"
	"rvos.dev/rvos/pkg/kernel"
	"rvos.dev/rvos/pkg/machine"
	"rvos.dev/rvos/pkg/mm"
	"rvos.dev/rvos/pkg/syscalls"
	"rvos.dev/rvos/rvos/config"
)

// Inspect implements subcommands.Command for the "inspect" command.
type Inspect struct{}

// Name implements subcommands.Command.Name.
func (*Inspect) Name() string {
	return "inspect"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Inspect) Synopsis() string {
	return "describe the address spaces built for a program"
}

// Usage implements subcommands.Command.Usage.
func (*Inspect) Usage() string {
	return `inspect [program] - boot the kernel without running it and print, as YAML,
the kernel layout, the kernel address space and the address space built for
program (default: the init program).
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (*Inspect) SetFlags(*flag.FlagSet) {}

// Inspection is the output of the inspect command.
type Inspection struct {
	Layout      mm.Layout     `yaml:"layout"`
	KernelSpace []mm.AreaInfo `yaml:"kernel_space"`
	Program     ProgramInfo   `yaml:"program"`
	Frames      FrameInfo     `yaml:"frames"`
}

// ProgramInfo describes a program's address space.
type ProgramInfo struct {
	Name   string        `yaml:"name"`
	Entry  uint64        `yaml:"entry"`
	UserSP uint64        `yaml:"user_sp"`
	Token  uint64        `yaml:"token"`
	Areas  []mm.AreaInfo `yaml:"areas"`
}

// FrameInfo counts physical frames.
type FrameInfo struct {
	Allocated uint64 `yaml:"allocated"`
	Free      uint64 `yaml:"free"`
}

// Execute implements subcommands.Command.Execute.
func (*Inspect) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() > 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	conf := args[0].(*config.Config)
	name := conf.InitProc
	if f.NArg() == 1 {
		name = f.Arg(0)
	}

	ins, err := inspect(ctx, conf, name)
	if err != nil {
		return Errorf("%v", err)
	}
	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	if err := enc.Encode(ins); err != nil {
		return Errorf("encoding: %v", err)
	}
	if err := enc.Close(); err != nil {
		return Errorf("encoding: %v", err)
	}
	return subcommands.ExitSuccess
}

func inspect(ctx context.Context, conf *config.Config, name string) (*Inspection, error) {
	reg, err := registry(ctx, conf)
	if err != nil {
		return nil, err
	}
	img, err := reg.Load(name)
	if err != nil {
		return nil, err
	}

	m, err := machine.New(machine.Config{MemoryEnd: conf.MemoryEnd})
	if err != nil {
		return nil, err
	}
	defer m.Close()
	kcfg := conf.KernelConfig()
	kcfg.Apps = reg
	kcfg.Syscalls = syscalls.Table
	k, err := kernel.New(m, kcfg)
	if err != nil {
		return nil, err
	}

	layout := k.Layout()
	alloc := k.FrameAllocator()
	ms, sp, entry := mm.FromELF(alloc, &layout, img)
	defer ms.Release()
	return &Inspection{
		Layout:      layout,
		KernelSpace: k.KernelSpaceAreas(),
		Program: ProgramInfo{
			Name:   name,
			Entry:  entry,
			UserSP: sp,
			Token:  ms.Token(),
			Areas:  ms.Areas(),
		},
		Frames: FrameInfo{
			Allocated: alloc.Allocated(),
			Free:      alloc.Free(),
		},
	}, nil
}
