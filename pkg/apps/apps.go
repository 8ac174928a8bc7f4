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

// Package apps holds the user programs bundled with the kernel. Each one is
// assembled with rvasm and linked at BaseAddress.
package apps

import (
	"fmt"
	"slices"

	"rvos.dev/rvos/pkg/loader"
	"rvos.dev/rvos/pkg/rvasm"
)

// BaseAddress is where every bundled program's text starts.
const BaseAddress = 0x10000

// Program names.
const (
	InitProc   = "initproc"
	UserShell  = "user_shell"
	HelloWorld = "hello_world"
	Yield      = "yield"
	ForkTest   = "forktest"
	StoreFault = "store_fault"
	Illegal    = "illegal"
	Spin       = "spin"
	Exit42     = "exit42"
)

// programs maps each name to the function emitting its main code.
var programs = map[string]func(p *rvasm.Program){
	InitProc:   initProc,
	UserShell:  userShell,
	HelloWorld: helloWorld,
	Yield:      yieldTest,
	ForkTest:   forkTest,
	StoreFault: storeFault,
	Illegal:    illegal,
	Spin:       spin,
	Exit42:     exit42,
}

// Names returns the bundled program names in order.
func Names() []string {
	names := make([]string, 0, len(programs))
	for name := range programs {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Build assembles the program called name into an ELF image.
func Build(name string) ([]byte, error) {
	emit, ok := programs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", loader.ErrNotFound, name)
	}
	p := rvasm.New()
	emit(p)
	emitLib(p)
	b, err := rvasm.Build(p, BaseAddress)
	if err != nil {
		return nil, fmt.Errorf("assembling %s: %w", name, err)
	}
	return b, nil
}

// AddAll adds every bundled program to r.
func AddAll(r *loader.Registry) error {
	for _, name := range Names() {
		b, err := Build(name)
		if err != nil {
			return err
		}
		if err := r.Add(name, b); err != nil {
			return err
		}
	}
	return nil
}

// Registry returns a registry holding every bundled program.
func Registry() (*loader.Registry, error) {
	r := loader.NewRegistry()
	if err := AddAll(r); err != nil {
		return nil, err
	}
	return r, nil
}
