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

// Package syscalls is the interface from user programs to the kernel: the
// system call table and its implementations.
package syscalls

import (
	"errors"

	"rvos.dev/rvos/pkg/kernel"
)

// Syscall ids.
const (
	SysRead    = 63
	SysWrite   = 64
	SysExit    = 93
	SysYield   = 124
	SysGetTime = 169
	SysGetpid  = 172
	SysFork    = 220
	SysExec    = 221
	SysWaitpid = 260
)

// Console file descriptors.
const (
	Stdin  = 0
	Stdout = 1
)

// ErrBadFD is returned for a file descriptor other than the console's.
var ErrBadFD = errors.New("bad file descriptor")

// Table is the system call table.
var Table = &kernel.SyscallTable{
	Table: map[uint64]kernel.Syscall{
		SysRead:    {Name: "read", Fn: Read},
		SysWrite:   {Name: "write", Fn: Write},
		SysExit:    {Name: "exit", Fn: Exit},
		SysYield:   {Name: "yield", Fn: Yield},
		SysGetTime: {Name: "get_time", Fn: GetTime},
		SysGetpid:  {Name: "getpid", Fn: Getpid},
		SysFork:    {Name: "fork", Fn: Fork},
		SysExec:    {Name: "exec", Fn: Exec},
		SysWaitpid: {Name: "waitpid", Fn: Waitpid},
	},
}
