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

package syscalls

import (
	"rvos.dev/rvos/pkg/kernel"
)

// Exit implements exit(2). It does not return.
func Exit(t *kernel.Task, args kernel.SyscallArguments) (int64, error) {
	t.Exit(args[0].Int())
	return 0, nil
}

// Yield implements sched_yield(2).
func Yield(t *kernel.Task, args kernel.SyscallArguments) (int64, error) {
	t.Yield()
	return 0, nil
}

// GetTime returns the machine time in milliseconds.
func GetTime(t *kernel.Task, args kernel.SyscallArguments) (int64, error) {
	return int64(t.TimeMS()), nil
}

// Getpid implements getpid(2).
func Getpid(t *kernel.Task, args kernel.SyscallArguments) (int64, error) {
	return int64(t.Pid()), nil
}

// Fork implements fork(2).
func Fork(t *kernel.Task, args kernel.SyscallArguments) (int64, error) {
	return int64(t.Fork()), nil
}

// Exec replaces the calling program with the app named by the string at
// args[0].
func Exec(t *kernel.Task, args kernel.SyscallArguments) (int64, error) {
	name, err := t.CopyInString(args[0].Pointer())
	if err != nil {
		return 0, err
	}
	if err := t.Exec(name); err != nil {
		return 0, err
	}
	return 0, nil
}

// Waitpid implements waitpid(2) without options. It returns
// task.ErrChildRunning while the matching children are all alive.
func Waitpid(t *kernel.Task, args kernel.SyscallArguments) (int64, error) {
	pid, err := t.Wait(int(args[0].Int64()), args[1].Pointer())
	if err != nil {
		return 0, err
	}
	return int64(pid), nil
}
