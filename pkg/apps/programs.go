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

// spinIterations bounds spin's busy loop. It spans many time slices at the
// default timer settings.
const spinIterations = 200000

func helloWorld(p *rvasm.Program) {
	p.Label("_start")
	puts(p, "msg")
	exit(p, 0)
	p.Asciz("msg", "Hello, world!\n")
}

func exit42(p *rvasm.Program) {
	p.Label("_start")
	exit(p, 42)
}

func storeFault(p *rvasm.Program) {
	p.Label("_start")
	puts(p, "msg")
	p.Sd(riscv.Zero, riscv.Zero, 0)
	exit(p, 0)
	p.Asciz("msg", "Into Test store_fault, we will insert an invalid store operation...\nKernel should kill this application!\n")
}

func illegal(p *rvasm.Program) {
	p.Label("_start")
	puts(p, "msg")
	// sret is privileged.
	p.Sret()
	exit(p, 0)
	p.Asciz("msg", "Try to execute privileged instruction in U Mode\nKernel should kill this application!\n")
}

func spin(p *rvasm.Program) {
	p.Label("_start")
	p.Li(riscv.T0, spinIterations)
	p.Label("loop")
	p.Addi(riscv.T0, riscv.T0, -1)
	p.Bnez(riscv.T0, "loop")
	puts(p, "msg")
	exit(p, 0)
	p.Asciz("msg", "spin done\n")
}

// yieldTest prints its pid, then yields three times.
func yieldTest(p *rvasm.Program) {
	const rounds = 3
	pid, i := riscv.S0, riscv.S1

	p.Label("_start")
	syscall(p, sysGetpid)
	p.Mv(pid, riscv.A0)
	puts(p, "hello")
	printReg(p, pid)
	puts(p, "newline")
	p.Li(i, 0)
	p.Label("loop")
	syscall(p, sysYield)
	puts(p, "back")
	printReg(p, pid)
	puts(p, "round")
	printReg(p, i)
	puts(p, "newline")
	p.Addi(i, i, 1)
	p.Li(riscv.T0, rounds)
	p.Blt(i, riscv.T0, "loop")
	puts(p, "pass")
	exit(p, 0)

	p.Asciz("hello", "Hello, I am process ")
	p.Asciz("back", "Back in process ")
	p.Asciz("round", ", round ")
	p.Asciz("pass", "yield pass.\n")
}

// waitLoop emits a loop reaping children of any pid. For each reaped child
// it runs reaped with the pid in s3 and the exit code in s4; when no child
// is left it jumps to done.
func waitLoop(p *rvasm.Program, prefix string, reaped func(), done string) {
	loop, yield := prefix+"_wait", prefix+"_yield"
	p.Label(loop)
	p.Li(riscv.A0, -1)
	p.La(riscv.A1, "exit_code")
	syscall(p, sysWaitpid)
	p.Li(riscv.T0, waitNoChild)
	p.Beq(riscv.A0, riscv.T0, done)
	p.Li(riscv.T0, waitRunning)
	p.Beq(riscv.A0, riscv.T0, yield)
	p.Mv(riscv.S3, riscv.A0)
	p.La(riscv.T1, "exit_code")
	p.Lw(riscv.S4, riscv.T1, 0)
	reaped()
	p.J(loop)
	p.Label(yield)
	syscall(p, sysYield)
	p.J(loop)
}

// forkTest forks children that exit with their index and checks the codes
// it reaps.
func forkTest(p *rvasm.Program) {
	const children = 4
	i, count, sum := riscv.S0, riscv.S1, riscv.S2

	p.Label("_start")
	p.Li(i, 0)
	p.Label("fork")
	syscall(p, sysFork)
	p.Beqz(riscv.A0, "child")
	p.Addi(i, i, 1)
	p.Li(riscv.T0, children)
	p.Blt(i, riscv.T0, "fork")

	p.Li(count, 0)
	p.Li(sum, 0)
	waitLoop(p, "forktest", func() {
		p.Addi(count, count, 1)
		p.Add(sum, sum, riscv.S4)
	}, "check")
	p.Label("check")
	p.Li(riscv.T0, children)
	p.Bne(count, riscv.T0, "fail")
	p.Li(riscv.T0, children*(children-1)/2)
	p.Bne(sum, riscv.T0, "fail")
	puts(p, "pass")
	exit(p, 0)
	p.Label("fail")
	puts(p, "failed")
	exit(p, 1)

	p.Label("child")
	puts(p, "child_msg")
	printReg(p, i)
	puts(p, "newline")
	p.Mv(riscv.A0, i)
	syscall(p, sysExit)

	p.Asciz("child_msg", "I am child ")
	p.Asciz("pass", "forktest pass.\n")
	p.Asciz("failed", "forktest failed!\n")
	p.Space("exit_code", 8)
}

// initProc starts the shell and reaps every orphan. It exits once it has
// no children left.
func initProc(p *rvasm.Program) {
	p.Label("_start")
	syscall(p, sysFork)
	p.Bnez(riscv.A0, "parent")
	p.La(riscv.A0, "shell")
	syscall(p, sysExec)
	puts(p, "exec_failed")
	exit(p, -1)

	p.Label("parent")
	waitLoop(p, "initproc", func() {
		puts(p, "released")
		printReg(p, riscv.S3)
		puts(p, "exit_code_is")
		printReg(p, riscv.S4)
		puts(p, "newline")
	}, "done")
	p.Label("done")
	exit(p, 0)

	p.Asciz("shell", UserShell)
	p.Asciz("exec_failed", "[initproc] Failed to start the shell!\n")
	p.Asciz("released", "[initproc] Released a zombie process, pid=")
	p.Asciz("exit_code_is", ", exit_code=")
	p.Space("exit_code", 8)
}

// userShell reads command lines from the console and runs each as a
// program in a child process. It exits at end of input.
func userShell(p *rvasm.Program) {
	const (
		lineMax   = 255
		backspace = 8
		del       = 127
	)
	n, c, child := riscv.S0, riscv.S1, riscv.S2

	p.Label("_start")
	puts(p, "banner")
	p.Label("prompt")
	puts(p, "prompt_str")
	p.Li(n, 0)

	p.Label("read")
	p.Li(riscv.A0, 0)
	p.La(riscv.A1, "ch")
	p.Li(riscv.A2, 1)
	syscall(p, sysRead)
	p.Beqz(riscv.A0, "eof")
	p.La(riscv.T0, "ch")
	p.Lbu(c, riscv.T0, 0)
	p.Li(riscv.T0, '\n')
	p.Beq(c, riscv.T0, "line_end")
	p.Li(riscv.T0, '\r')
	p.Beq(c, riscv.T0, "line_end")
	p.Li(riscv.T0, del)
	p.Beq(c, riscv.T0, "backspace")
	p.Li(riscv.T0, backspace)
	p.Beq(c, riscv.T0, "backspace")
	p.Li(riscv.T0, lineMax)
	p.Bgeu(n, riscv.T0, "read")
	p.La(riscv.T1, "line")
	p.Add(riscv.T1, riscv.T1, n)
	p.Sb(c, riscv.T1, 0)
	p.Addi(n, n, 1)
	p.Mv(riscv.A0, c)
	p.Call("putc")
	p.J("read")

	p.Label("backspace")
	p.Beqz(n, "read")
	p.Addi(n, n, -1)
	puts(p, "erase")
	p.J("read")

	p.Label("line_end")
	puts(p, "newline")
	p.Beqz(n, "prompt")
	p.La(riscv.T1, "line")
	p.Add(riscv.T1, riscv.T1, n)
	p.Sb(riscv.Zero, riscv.T1, 0)
	syscall(p, sysFork)
	p.Bnez(riscv.A0, "wait")
	p.La(riscv.A0, "line")
	syscall(p, sysExec)
	puts(p, "exec_failed")
	exit(p, -4)

	p.Label("wait")
	p.Mv(child, riscv.A0)
	p.Label("wait_loop")
	p.Mv(riscv.A0, child)
	p.La(riscv.A1, "exit_code")
	syscall(p, sysWaitpid)
	p.Li(riscv.T0, waitRunning)
	p.Bne(riscv.A0, riscv.T0, "reaped")
	syscall(p, sysYield)
	p.J("wait_loop")
	p.Label("reaped")
	puts(p, "process")
	printReg(p, child)
	puts(p, "exited")
	p.La(riscv.T1, "exit_code")
	p.Lw(riscv.A0, riscv.T1, 0)
	p.Call("putint")
	puts(p, "newline")
	p.J("prompt")

	p.Label("eof")
	exit(p, 0)

	p.Asciz("banner", "rvos user shell\n")
	p.Asciz("prompt_str", ">> ")
	p.Asciz("erase", "\b \b")
	p.Asciz("exec_failed", "Error when executing!\n")
	p.Asciz("process", "Shell: Process ")
	p.Asciz("exited", " exited with code ")
	p.Space("ch", 8)
	p.Space("exit_code", 8)
	p.Space("line", lineMax+1)
}
