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

package kernel_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"runtime"
	"strings"
	"testing"
	"time"

	"rvos.dev/rvos/pkg/apps"
	"rvos.dev/rvos/pkg/kernel"
	"rvos.dev/rvos/pkg/loader"
	"rvos.dev/rvos/pkg/machine"
	"rvos.dev/rvos/pkg/metric"
	"rvos.dev/rvos/pkg/mm"
	"rvos.dev/rvos/pkg/riscv"
	"rvos.dev/rvos/pkg/rvasm"
	"rvos.dev/rvos/pkg/syscalls"
)

type testKernel struct {
	k   *kernel.Kernel
	m   *machine.Machine
	out *bytes.Buffer
}

func newConfig(t *testing.T) kernel.Config {
	t.Helper()
	reg, err := apps.Registry()
	if err != nil {
		t.Fatalf("apps.Registry failed: %v", err)
	}
	return kernel.Config{
		Layout:      mm.DefaultLayout(mm.DefaultMemoryEnd, mm.DefaultUserStackSize, mm.DefaultKernelStackSize),
		ClockFreq:   kernel.DefaultClockFreq,
		TicksPerSec: kernel.DefaultTicksPerSec,
		Apps:        reg,
		InitProc:    apps.InitProc,
		Syscalls:    syscalls.Table,
	}
}

func newMachine(t *testing.T, input string) (*machine.Machine, *bytes.Buffer) {
	t.Helper()
	var in io.Reader
	if input != "" {
		in = strings.NewReader(input)
	}
	out := new(bytes.Buffer)
	m, err := machine.New(machine.Config{MemoryEnd: mm.DefaultMemoryEnd, Input: in, Output: out})
	if err != nil {
		t.Fatalf("machine.New failed: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m, out
}

// boot starts a kernel whose init process is the program initProc.
func boot(t *testing.T, initProc, input string, opts ...func(*kernel.Config)) *testKernel {
	t.Helper()
	cfg := newConfig(t)
	cfg.InitProc = initProc
	for _, opt := range opts {
		opt(&cfg)
	}
	m, out := newMachine(t, input)
	k, err := kernel.New(m, cfg)
	if err != nil {
		t.Fatalf("kernel.New failed: %v", err)
	}
	if err := k.AddInitProc(); err != nil {
		t.Fatalf("AddInitProc failed: %v", err)
	}
	return &testKernel{k: k, m: m, out: out}
}

// run runs tk to completion and checks init's exit code.
func (tk *testKernel) run(t *testing.T, wantCode int32) string {
	t.Helper()
	if err := tk.k.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v\noutput:\n%s", err, tk.out)
	}
	code, exited := tk.k.ExitCode()
	if !exited {
		t.Fatalf("init did not exit\noutput:\n%s", tk.out)
	}
	if code != wantCode {
		t.Errorf("init exit code = %d, want %d\noutput:\n%s", code, wantCode, tk.out)
	}
	halted, failure := tk.m.Halted()
	if !halted || failure != (wantCode != 0) {
		t.Errorf("Halted() = %t, %t, want true, %t", halted, failure, wantCode != 0)
	}
	return tk.out.String()
}

// withProgram adds the program emitted by emit, linked at base, to the
// kernel's registry under name.
func withProgram(t *testing.T, name string, base uint64, emit func(*rvasm.Program)) func(*kernel.Config) {
	t.Helper()
	p := rvasm.New()
	emit(p)
	b, err := rvasm.Build(p, base)
	if err != nil {
		t.Fatalf("assembling %s: %v", name, err)
	}
	return func(cfg *kernel.Config) {
		if err := cfg.Apps.Add(name, b); err != nil {
			t.Fatalf("adding %s: %v", name, err)
		}
	}
}

func ecall(p *rvasm.Program, id int64) {
	p.Li(riscv.A7, id)
	p.Ecall()
}

func checkContains(t *testing.T, out string, want ...string) {
	t.Helper()
	for _, w := range want {
		if !strings.Contains(out, w) {
			t.Errorf("output does not contain %q\noutput:\n%s", w, out)
		}
	}
}

// counter returns the value of an exported kernel counter.
func counter(t *testing.T, name string, labels ...string) uint64 {
	t.Helper()
	for _, mf := range metric.Gather() {
		if mf.GetName() != name {
			continue
		}
	metrics:
		for _, m := range mf.GetMetric() {
			for i, lp := range m.GetLabel() {
				if i >= len(labels) || lp.GetValue() != labels[i] {
					continue metrics
				}
			}
			return uint64(m.GetCounter().GetValue())
		}
	}
	t.Fatalf("no counter %s%v", name, labels)
	return 0
}

func TestHelloWorld(t *testing.T) {
	tk := boot(t, apps.HelloWorld, "")
	if got := tk.run(t, 0); got != "Hello, world!\n" {
		t.Errorf("output = %q", got)
	}
}

func TestInitExitCode(t *testing.T) {
	tk := boot(t, apps.Exit42, "")
	tk.run(t, 42)
}

func TestYield(t *testing.T) {
	tk := boot(t, apps.Yield, "")
	want := "Hello, I am process 0\n" +
		"Back in process 0, round 0\n" +
		"Back in process 0, round 1\n" +
		"Back in process 0, round 2\n" +
		"yield pass.\n"
	if got := tk.run(t, 0); got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestForkWaitReleasesChildren(t *testing.T) {
	tk := boot(t, apps.ForkTest, "")
	before := tk.k.FrameAllocator().Allocated()
	out := tk.run(t, 0)
	checkContains(t, out, "I am child 0\n", "I am child 3\n", "forktest pass.\n")
	if after := tk.k.FrameAllocator().Allocated(); after != before {
		t.Errorf("%d frames allocated after reaping every child, want %d", after, before)
	}
}

func TestPreemption(t *testing.T) {
	before := counter(t, "rvos_kernel_traps", "timer")
	tk := boot(t, apps.Spin, "", func(cfg *kernel.Config) {
		// One time slice is 1000 timer ticks.
		cfg.ClockFreq = 100_000
	})
	checkContains(t, tk.run(t, 0), "spin done\n")
	if got := counter(t, "rvos_kernel_traps", "timer") - before; got < 100 {
		t.Errorf("spin was preempted %d times, want at least 100", got)
	}
}

func TestShell(t *testing.T) {
	tk := boot(t, apps.InitProc, "hello_world\nstore_fault\nillegal\nno_such_app\nexit42\n")
	out := tk.run(t, 0)
	checkContains(t, out,
		"rvos user shell\n",
		"Hello, world!\n",
		"Shell: Process 2 exited with code 0\n",
		"[kernel] StorePageFault in application, bad addr = 0x0,",
		"Shell: Process 2 exited with code -2\n",
		"[kernel] IllegalInstruction in application, kernel killed it.\n",
		"Shell: Process 2 exited with code -3\n",
		"Error when executing!\n",
		"Shell: Process 2 exited with code -4\n",
		"Shell: Process 2 exited with code 42\n",
		"[initproc] Released a zombie process, pid=1, exit_code=0\n",
	)
}

func TestShellBackspace(t *testing.T) {
	tk := boot(t, apps.InitProc, "hellx\x7fo_world\n")
	checkContains(t, tk.run(t, 0), "\b \b", "Hello, world!\n", "exited with code 0\n")
}

func TestUnknownSyscall(t *testing.T) {
	before := counter(t, "rvos_kernel_unknown_syscalls")
	table := &kernel.SyscallTable{Table: map[uint64]kernel.Syscall{}}
	for id, sc := range syscalls.Table.Table {
		if id != syscalls.SysGetpid {
			table.Table[id] = sc
		}
	}
	tk := boot(t, apps.Yield, "", func(cfg *kernel.Config) { cfg.Syscalls = table })
	checkContains(t, tk.run(t, 0), "Hello, I am process -1\n", "yield pass.\n")
	if got := counter(t, "rvos_kernel_unknown_syscalls") - before; got != 1 {
		t.Errorf("%d unknown syscalls counted, want 1", got)
	}
}

func TestKernelPanic(t *testing.T) {
	table := &kernel.SyscallTable{Table: map[uint64]kernel.Syscall{}}
	for id, sc := range syscalls.Table.Table {
		table.Table[id] = sc
	}
	table.Table[syscalls.SysGetpid] = kernel.Syscall{
		Name: "getpid",
		Fn: func(*kernel.Task, kernel.SyscallArguments) (int64, error) {
			panic("boom")
		},
	}
	tk := boot(t, apps.Yield, "", func(cfg *kernel.Config) { cfg.Syscalls = table })

	err := tk.k.Run(context.Background())
	var perr *kernel.PanicError
	if !errors.As(err, &perr) || perr.Value != "boom" {
		t.Fatalf("Run = %v, want a panic error for boom", err)
	}
	checkContains(t, tk.out.String(), "[kernel] Panicked: boom\n")
	if halted, failure := tk.m.Halted(); !halted || !failure {
		t.Errorf("Halted() = %t, %t, want true, true", halted, failure)
	}
}

func TestRunWithoutTasks(t *testing.T) {
	m, _ := newMachine(t, "")
	k, err := kernel.New(m, newConfig(t))
	if err != nil {
		t.Fatalf("kernel.New failed: %v", err)
	}
	if err := k.Run(context.Background()); err != nil {
		t.Errorf("Run = %v, want nil", err)
	}
	if _, exited := k.ExitCode(); exited {
		t.Errorf("init exited without being created")
	}
}

func TestRunCanceled(t *testing.T) {
	tk := boot(t, apps.HelloWorld, "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := tk.k.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Run = %v, want %v", err, context.Canceled)
	}
}

func TestAddInitProc(t *testing.T) {
	m, _ := newMachine(t, "")
	cfg := newConfig(t)
	cfg.InitProc = "no_such_app"
	k, err := kernel.New(m, cfg)
	if err != nil {
		t.Fatalf("kernel.New failed: %v", err)
	}
	if err := k.AddInitProc(); !errors.Is(err, loader.ErrNotFound) {
		t.Errorf("AddInitProc = %v, want %v", err, loader.ErrNotFound)
	}

	tk := boot(t, apps.HelloWorld, "")
	if err := tk.k.AddInitProc(); err == nil {
		t.Errorf("second AddInitProc succeeded")
	}
}

func TestNewErrors(t *testing.T) {
	for _, tc := range []struct {
		name   string
		modify func(*kernel.Config)
	}{
		{"no syscalls", func(cfg *kernel.Config) { cfg.Syscalls = nil }},
		{"memory mismatch", func(cfg *kernel.Config) { cfg.Layout.MemoryEnd += 0x100000 }},
		{"no clock", func(cfg *kernel.Config) { cfg.ClockFreq = 0 }},
		{"no ticks", func(cfg *kernel.Config) { cfg.TicksPerSec = 0 }},
		{"unnamed syscall", func(cfg *kernel.Config) {
			cfg.Syscalls = &kernel.SyscallTable{Table: map[uint64]kernel.Syscall{1: {Fn: syscalls.Getpid}}}
		}},
		{"bad layout", func(cfg *kernel.Config) { cfg.Layout.Stext++ }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			m, _ := newMachine(t, "")
			cfg := newConfig(t)
			tc.modify(&cfg)
			if _, err := kernel.New(m, cfg); err == nil {
				t.Errorf("New succeeded")
			}
		})
	}
}

func TestListApps(t *testing.T) {
	tk := boot(t, apps.Exit42, "")
	tk.k.ListApps()
	tk.run(t, 42)
	checkContains(t, tk.out.String(), "/**** APPS ****\n", "forktest\n", "user_shell\n", "**************/\n")
}

func TestKernelSpaceAreas(t *testing.T) {
	tk := boot(t, apps.HelloWorld, "")
	areas := tk.k.KernelSpaceAreas()
	// Four sections, physical memory and init's kernel stack.
	if len(areas) != 6 {
		t.Errorf("kernel space has %d areas, want 6: %+v", len(areas), areas)
	}
}

// TestFirstTaskEntry runs a program whose single R+X segment starts at
// 0x1000 and checks where it starts: the program exits with the distance of
// its first pc from 0x1000 or'ed with the distance of its sp from the user
// stack top. The stack top lies above the segment's page, a guard page and
// the two page stack.
func TestFirstTaskEntry(t *testing.T) {
	const (
		base     = 0x1000
		stackTop = base + riscv.PageSize + riscv.PageSize + mm.DefaultUserStackSize
	)
	tk := boot(t, "entry", "", withProgram(t, "entry", base, func(p *rvasm.Program) {
		p.Label("_start")
		p.Auipc(riscv.T0, 0)
		p.Li(riscv.T1, base)
		p.Sub(riscv.T0, riscv.T0, riscv.T1)
		p.Li(riscv.T2, stackTop)
		p.Sub(riscv.T2, riscv.SP, riscv.T2)
		p.Or(riscv.A0, riscv.T0, riscv.T2)
		ecall(p, syscalls.SysExit)
	}))
	tk.run(t, 0)
}

// TestRunEndsParkedTasks checks that task control flows still parked when
// Run returns do not outlive it.
func TestRunEndsParkedTasks(t *testing.T) {
	// Init forks a child that yields forever, yields once so the child
	// runs, then exits.
	parkChild := func(p *rvasm.Program) {
		p.Label("_start")
		ecall(p, syscalls.SysFork)
		p.Beqz(riscv.A0, "child")
		ecall(p, syscalls.SysYield)
		p.Li(riscv.A0, 0)
		ecall(p, syscalls.SysExit)
		p.Label("child")
		ecall(p, syscalls.SysYield)
		p.J("child")
	}

	before := runtime.NumGoroutine()
	const runs = 5
	for i := 0; i < runs; i++ {
		tk := boot(t, "park_child", "", withProgram(t, "park_child", apps.BaseAddress, parkChild))
		tk.run(t, 0)
		if err := tk.k.Run(context.Background()); !errors.Is(err, kernel.ErrStopped) {
			t.Errorf("second Run = %v, want %v", err, kernel.ErrStopped)
		}
	}

	// Ended control flows exit asynchronously.
	deadline := time.Now().Add(5 * time.Second)
	for runtime.NumGoroutine() > before && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if after := runtime.NumGoroutine(); after > before {
		t.Errorf("%d goroutines after %d runs, want at most %d", after, runs, before)
	}
}
