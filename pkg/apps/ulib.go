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

package apps

import (
	"rvos.dev/rvos/pkg/riscv"
	"rvos.dev/rvos/pkg/rvasm"
)

// Syscall ids, as user programs see them.
const (
	sysRead    = 63
	sysWrite   = 64
	sysExit    = 93
	sysYield   = 124
	sysGetpid  = 172
	sysFork    = 220
	sysExec    = 221
	sysWaitpid = 260
)

// Results of waitpid other than a pid.
const (
	waitNoChild = -1
	waitRunning = -2
)

// syscall emits the system call id. Arguments are in a0..a2 and the result
// lands in a0.
func syscall(p *rvasm.Program, id int64) {
	p.Li(riscv.A7, id)
	p.Ecall()
}

// exit emits exit(code).
func exit(p *rvasm.Program, code int64) {
	p.Li(riscv.A0, code)
	syscall(p, sysExit)
}

// puts emits a call printing the string defined at label.
func puts(p *rvasm.Program, label string) {
	p.La(riscv.A0, label)
	p.Call("puts")
}

// printReg emits a call printing register r in decimal.
func printReg(p *rvasm.Program, r int) {
	p.Mv(riscv.A0, r)
	p.Call("putint")
}

// emitLib emits the library routines every program may call. They
// clobber a0..a2, a7 and t0..t5 and preserve s registers.
func emitLib(p *rvasm.Program) {
	// strlen(a0 = s) returns the length of the NUL terminated s.
	p.Label("strlen")
	p.Mv(riscv.T0, riscv.A0)
	p.Label("strlen_loop")
	p.Lbu(riscv.T1, riscv.T0, 0)
	p.Beqz(riscv.T1, "strlen_done")
	p.Addi(riscv.T0, riscv.T0, 1)
	p.J("strlen_loop")
	p.Label("strlen_done")
	p.Sub(riscv.A0, riscv.T0, riscv.A0)
	p.Ret()

	// puts(a0 = s) writes s to stdout.
	p.Label("puts")
	p.Addi(riscv.SP, riscv.SP, -16)
	p.Sd(riscv.RA, riscv.SP, 0)
	p.Sd(riscv.A0, riscv.SP, 8)
	p.Call("strlen")
	p.Mv(riscv.A2, riscv.A0)
	p.Ld(riscv.A1, riscv.SP, 8)
	p.Li(riscv.A0, 1)
	syscall(p, sysWrite)
	p.Ld(riscv.RA, riscv.SP, 0)
	p.Addi(riscv.SP, riscv.SP, 16)
	p.Ret()

	// putc(a0 = c) writes one byte to stdout.
	p.Label("putc")
	p.Addi(riscv.SP, riscv.SP, -16)
	p.Sb(riscv.A0, riscv.SP, 0)
	p.Li(riscv.A0, 1)
	p.Mv(riscv.A1, riscv.SP)
	p.Li(riscv.A2, 1)
	syscall(p, sysWrite)
	p.Addi(riscv.SP, riscv.SP, 16)
	p.Ret()

	// putint(a0 = v) writes v in decimal to stdout. Digits are built
	// backwards in a stack buffer.
	p.Label("putint")
	p.Addi(riscv.SP, riscv.SP, -48)
	p.Addi(riscv.T0, riscv.SP, 32)
	p.Mv(riscv.T1, riscv.T0)
	p.Mv(riscv.T2, riscv.A0)
	p.Li(riscv.T3, 0)
	p.Bge(riscv.T2, riscv.Zero, "putint_digits")
	p.Li(riscv.T3, 1)
	p.Neg(riscv.T2, riscv.T2)
	p.Label("putint_digits")
	p.Li(riscv.T4, 10)
	p.Label("putint_loop")
	p.Remu(riscv.T5, riscv.T2, riscv.T4)
	p.Addi(riscv.T5, riscv.T5, '0')
	p.Addi(riscv.T1, riscv.T1, -1)
	p.Sb(riscv.T5, riscv.T1, 0)
	p.Divu(riscv.T2, riscv.T2, riscv.T4)
	p.Bnez(riscv.T2, "putint_loop")
	p.Beqz(riscv.T3, "putint_write")
	p.Li(riscv.T5, '-')
	p.Addi(riscv.T1, riscv.T1, -1)
	p.Sb(riscv.T5, riscv.T1, 0)
	p.Label("putint_write")
	p.Li(riscv.A0, 1)
	p.Mv(riscv.A1, riscv.T1)
	p.Sub(riscv.A2, riscv.T0, riscv.T1)
	syscall(p, sysWrite)
	p.Addi(riscv.SP, riscv.SP, 48)
	p.Ret()

	p.Asciz("newline", "\n")
}
