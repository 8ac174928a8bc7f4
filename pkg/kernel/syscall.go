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

package kernel

import (
	"errors"
	"fmt"
	"slices"

	"rvos.dev/rvos/pkg/task"
)

// SyscallArgument is an argument supplied to a syscall implementation. The
// methods used to access the arguments are named after the ***C type name***
// and they convert to the closest Go type available.
type SyscallArgument struct {
	// Prefer to use accessor methods instead of 'Value' directly.
	Value uint64
}

// SyscallArguments represents the set of arguments passed to a syscall.
type SyscallArguments [3]SyscallArgument

// Pointer returns the user address of a pointer argument.
func (a SyscallArgument) Pointer() uint64 {
	return a.Value
}

// Int returns the int32 representation of a 32-bit signed integer argument.
func (a SyscallArgument) Int() int32 {
	return int32(a.Value)
}

// Int64 returns the int64 representation of a 64-bit signed integer argument.
func (a SyscallArgument) Int64() int64 {
	return int64(a.Value)
}

// SizeT returns the uint representation of a size_t argument.
func (a SyscallArgument) SizeT() uint {
	return uint(a.Value)
}

// SyscallFn is a syscall implementation. A non-nil error makes the call
// return a negative value to the task.
type SyscallFn func(t *Task, args SyscallArguments) (int64, error)

// Syscall describes one system call.
type Syscall struct {
	// Name is the syscall name.
	Name string

	// Fn is the implementation.
	Fn SyscallFn
}

// SyscallTable maps syscall ids to their implementations.
type SyscallTable struct {
	// Table is the set of syscalls.
	Table map[uint64]Syscall
}

// Lookup returns the syscall with the given id, or nil.
func (s *SyscallTable) Lookup(id uint64) *Syscall {
	sc, ok := s.Table[id]
	if !ok {
		return nil
	}
	return &sc
}

// Validate checks that every entry has an implementation and a known name.
func (s *SyscallTable) Validate() error {
	for id, sc := range s.Table {
		if sc.Fn == nil {
			return fmt.Errorf("syscall %d (%s) has no implementation", id, sc.Name)
		}
		if !slices.Contains(syscallNames, sc.Name) {
			return fmt.Errorf("syscall %d has unknown name %q", id, sc.Name)
		}
	}
	return nil
}

// Results of failed syscalls.
const (
	resultError        = -1
	resultChildRunning = -2
)

// syscall runs syscall id for the current task and returns the value for
// its a0.
func (k *Kernel) syscall(id uint64, args [3]uint64) int64 {
	t := &Task{k: k, TCB: k.processor.Current()}
	sc := k.syscalls.Lookup(id)
	if sc == nil {
		unknownSyscalls.Increment()
		k.faults.Warningf("Task %d: unsupported syscall id %d", t.Pid(), id)
		return resultError
	}
	syscallCount.Increment(sc.Name)

	var sargs SyscallArguments
	for i, v := range args {
		sargs[i].Value = v
	}
	ret, err := sc.Fn(t, sargs)
	switch {
	case err == nil:
		return ret
	case errors.Is(err, task.ErrChildRunning):
		return resultChildRunning
	default:
		k.faults.Debugf("Task %d: %s: %v", t.Pid(), sc.Name, err)
		return resultError
	}
}
