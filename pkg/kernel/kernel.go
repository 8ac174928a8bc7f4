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

// Package kernel is the supervisor: it boots the machine, owns the kernel
// address space and the scheduler, and handles every trap from user mode.
//
// Kernel code runs in Go on the host. The hart only executes user programs
// and the trampoline; it hands control back whenever it reaches the trap
// handler's address.
package kernel

import (
	"errors"
	"fmt"
	"time"

	"rvos.dev/rvos/pkg/loader"
	"rvos.dev/rvos/pkg/log"
	"rvos.dev/rvos/pkg/machine"
	"rvos.dev/rvos/pkg/mm"
	"rvos.dev/rvos/pkg/riscv"
	"rvos.dev/rvos/pkg/sbi"
	"rvos.dev/rvos/pkg/sync"
	"rvos.dev/rvos/pkg/task"
	"rvos.dev/rvos/pkg/trap"
)

// Default timer configuration.
const (
	DefaultClockFreq   = 12_500_000
	DefaultTicksPerSec = 100
	DefaultInitProc    = "initproc"
)

// Config configures a Kernel.
type Config struct {
	// Layout is the kernel image layout. Its MemoryEnd must match the
	// machine's RAM.
	Layout mm.Layout

	// ClockFreq is the timer frequency in Hz. TicksPerSec time slices
	// make up one second.
	ClockFreq   uint64
	TicksPerSec uint64

	// Apps holds the programs exec and the init process load from.
	Apps *loader.Registry

	// InitProc names the first program.
	InitProc string

	// Syscalls is the system call table.
	Syscalls *SyscallTable
}

// Kernel is the supervisor of one machine.
type Kernel struct {
	m      *machine.Machine
	hart   *machine.Hart
	fw     sbi.Firmware
	layout *mm.Layout

	clockFreq   uint64
	ticksPerSec uint64

	alloc       *mm.FrameAllocator
	kernelSpace *sync.UPSafeCell[*mm.MemorySet]
	trampoline  *trap.Trampoline
	res         *task.Resources
	manager     *task.Manager
	processor   *task.Processor

	// idleCx is the processor's idle context, kept here so a panicking task
	// can reach it without borrowing the processor.
	idleCx *task.Context

	apps     *loader.Registry
	initName string
	syscalls *SyscallTable

	initProc *task.TCB

	// exitCode is init's exit code once it has exited.
	exitCode int32
	exited   bool

	// panicErr is set by a panicking task before it hands the hart back to
	// the idle loop.
	panicErr *PanicError

	faults log.Logger
}

// New boots a kernel on m: frame allocator, kernel address space, trap
// entry and timer. It does not create any task.
func New(m *machine.Machine, cfg Config) (*Kernel, error) {
	layout := cfg.Layout
	if err := layout.Validate(); err != nil {
		return nil, fmt.Errorf("invalid layout: %w", err)
	}
	if layout.MemoryEnd != m.Mem.End() {
		return nil, fmt.Errorf("layout ends memory at %#x, machine at %#x", layout.MemoryEnd, m.Mem.End())
	}
	if cfg.ClockFreq < msecPerSec || cfg.TicksPerSec == 0 || cfg.ClockFreq < cfg.TicksPerSec {
		return nil, fmt.Errorf("clock frequency %d with %d ticks per second", cfg.ClockFreq, cfg.TicksPerSec)
	}
	if cfg.Syscalls == nil {
		return nil, errors.New("no system call table")
	}
	if err := cfg.Syscalls.Validate(); err != nil {
		return nil, err
	}
	if cfg.Apps == nil {
		cfg.Apps = loader.NewRegistry()
	}
	if cfg.InitProc == "" {
		cfg.InitProc = DefaultInitProc
	}
	tr, err := trap.NewTrampoline()
	if err != nil {
		return nil, err
	}

	k := &Kernel{
		m:           m,
		hart:        m.Hart,
		fw:          m,
		layout:      &layout,
		clockFreq:   cfg.ClockFreq,
		ticksPerSec: cfg.TicksPerSec,
		trampoline:  tr,
		manager:     task.NewManager(),
		processor:   task.NewProcessor(),
		apps:        cfg.Apps,
		initName:    cfg.InitProc,
		syscalls:    cfg.Syscalls,
		faults:      log.BasicRateLimitedLogger(100 * time.Millisecond),
	}
	k.idleCx = k.processor.IdleTaskCx()
	k.boot()
	return k, nil
}

// boot sets up memory management, trap entry and the timer.
func (k *Kernel) boot() {
	l := k.layout
	log.Infof("[kernel] Hello, world!")
	log.Debugf(".text [%#x, %#x)", l.Stext, l.Etext)
	log.Debugf(".rodata [%#x, %#x)", l.Srodata, l.Erodata)
	log.Debugf(".data [%#x, %#x)", l.Sdata, l.Edata)
	log.Debugf(".bss [%#x, %#x)", l.SbssWithStack, l.Ebss)

	start, end := l.FramePool()
	k.alloc = mm.NewFrameAllocator(k.m.Mem, start, end)
	k.trampoline.Install(k.m.Mem.Page(riscv.NewPhysAddr(l.Strampoline).Floor()))

	ks := mm.NewKernelSpace(k.alloc, l)
	ks.Activate(k.hart.MMU(), riscv.NewVirtAddr(l.Stext))
	ks.RemapTest()
	k.kernelSpace = sync.NewUPSafeCell("kernel space", ks)

	k.res = &task.Resources{
		Alloc:       k.alloc,
		Layout:      l,
		KernelSpace: k.kernelSpace,
		Pids:        task.NewPidAllocator(),
		TrapHandler: l.TrapHandler,
		Entry:       k.runTask,
	}

	k.hart.SetEntryPoints(l.TrapHandler, l.TrapFromKernel)
	k.setKernelTrapEntry()
	k.hart.SetCSR(riscv.CSRSie, k.hart.CSR(riscv.CSRSie)|riscv.SieSTIE)
	k.setNextTrigger()
}

// ListApps prints the available programs on the console.
func (k *Kernel) ListApps() {
	sbi.Printf(k.fw, "/**** APPS ****\n")
	for _, name := range k.apps.Names() {
		sbi.Printf(k.fw, "%s\n", name)
	}
	sbi.Printf(k.fw, "**************/\n")
}

// AddInitProc creates the init process and queues it.
func (k *Kernel) AddInitProc() error {
	if k.initProc != nil {
		return errors.New("init process already created")
	}
	img, err := k.apps.Load(k.initName)
	if err != nil {
		return fmt.Errorf("loading init process: %w", err)
	}
	k.initProc = task.New(k.res, img)
	if pid := k.initProc.Pid(); pid != task.InitPid {
		panic(fmt.Sprintf("init process has pid %d", pid))
	}
	tasksCreated.Increment()
	k.manager.Add(k.initProc)
	return nil
}

// ExitCode returns init's exit code, and whether init has exited.
func (k *Kernel) ExitCode() (int32, bool) {
	return k.exitCode, k.exited
}

// FrameAllocator returns the physical frame allocator.
func (k *Kernel) FrameAllocator() *mm.FrameAllocator {
	return k.alloc
}

// KernelSpaceAreas describes the kernel address space.
func (k *Kernel) KernelSpaceAreas() []mm.AreaInfo {
	ks := k.kernelSpace.Borrow()
	defer k.kernelSpace.Release()
	return (*ks).Areas()
}

// Layout returns the kernel image layout.
func (k *Kernel) Layout() mm.Layout {
	return *k.layout
}

// Apps returns the program registry.
func (k *Kernel) Apps() *loader.Registry {
	return k.apps
}
