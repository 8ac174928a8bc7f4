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

// Package trap defines the user/kernel trap boundary: the trap context saved
// for every task and the trampoline code that switches address spaces on
// the way in and out of the kernel.
package trap

import (
	"fmt"

	"rvos.dev/rvos/pkg/riscv"
)

// Context is the register state saved when a task traps into the kernel.
//
// It lives in the task's trap context page, at riscv.TrapContext in the
// task's address space. The trampoline addresses fields by offset, so the
// field order is part of the trampoline's ABI.
type Context struct {
	// X holds the integer registers. X[2] is the user sp.
	X [riscv.NumRegs]uint64

	Sstatus uint64
	Sepc    uint64

	// KernelSatp is the kernel address space token, loaded by the
	// trampoline before it enters the kernel.
	KernelSatp uint64

	// KernelSp is the top of the task's kernel stack.
	KernelSp uint64

	// TrapHandler is the kernel address the trampoline jumps to.
	TrapHandler uint64
}

// Offsets of the Context fields, in bytes.
const (
	sstatusOffset     = riscv.NumRegs * 8
	sepcOffset        = sstatusOffset + 8
	kernelSatpOffset  = sepcOffset + 8
	kernelSpOffset    = kernelSatpOffset + 8
	trapHandlerOffset = kernelSpOffset + 8

	// ContextSize is the size of a Context in bytes.
	ContextSize = trapHandlerOffset + 8
)

// AppInitContext returns the context a new program starts from: user mode
// at entry with sp set, and nothing else live.
func AppInitContext(entry, sp, kernelSatp, kernelSp, trapHandler uint64) Context {
	c := Context{
		// SPP clear: sret drops to user mode.
		Sstatus:     0,
		Sepc:        entry,
		KernelSatp:  kernelSatp,
		KernelSp:    kernelSp,
		TrapHandler: trapHandler,
	}
	c.SetSP(sp)
	return c
}

// SetSP sets the user stack pointer.
func (c *Context) SetSP(sp uint64) {
	c.X[riscv.SP] = sp
}

// SyscallArgs returns the syscall number and its arguments.
func (c *Context) SyscallArgs() (id uint64, args [3]uint64) {
	return c.X[riscv.A7], [3]uint64{c.X[riscv.A0], c.X[riscv.A1], c.X[riscv.A2]}
}

// String implements fmt.Stringer.
func (c *Context) String() string {
	return fmt.Sprintf("sepc=%#x sp=%#x a0=%#x a7=%d sstatus=%#x", c.Sepc, c.X[riscv.SP], c.X[riscv.A0], c.X[riscv.A7], c.Sstatus)
}
