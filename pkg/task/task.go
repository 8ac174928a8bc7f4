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

// Package task implements process control blocks, the ready queue and the
// processor record that switches between tasks.
package task

import (
	"errors"
	"fmt"

	"rvos.dev/rvos/pkg/ilist"
	"rvos.dev/rvos/pkg/loader"
	"rvos.dev/rvos/pkg/log"
	"rvos.dev/rvos/pkg/mm"
	"rvos.dev/rvos/pkg/riscv"
	"rvos.dev/rvos/pkg/sync"
	"rvos.dev/rvos/pkg/trap"
)

// Status is a task's scheduling state.
type Status int

// Task states. Exited is terminal: the task waits to be reaped by its
// parent.
const (
	Ready Status = iota
	Running
	Exited
)

// String implements fmt.Stringer.
func (s Status) String() string {
	switch s {
	case Ready:
		return "ready"
	case Running:
		return "running"
	case Exited:
		return "exited"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Errors returned by Wait.
var (
	ErrNoChild      = errors.New("no such child")
	ErrChildRunning = errors.New("child has not exited")
)

// Resources are the kernel objects tasks are built from.
type Resources struct {
	Alloc       *mm.FrameAllocator
	Layout      *mm.Layout
	KernelSpace *sync.UPSafeCell[*mm.MemorySet]
	Pids        *PidAllocator

	// TrapHandler is the kernel address the trampoline enters on a trap.
	TrapHandler uint64

	// Entry starts every task's kernel control flow: return to user mode,
	// handle the next trap, repeat.
	Entry func()
}

func (res *Resources) kernelToken() uint64 {
	ks := res.KernelSpace.Borrow()
	defer res.KernelSpace.Release()
	return (*ks).Token()
}

// TCB is a task control block.
type TCB struct {
	// Entry links the task into the ready queue. queued is set while it
	// does; both are owned by Manager.
	ilist.Entry[*TCB]
	queued bool

	// Immutable after creation.
	pid         *PidHandle
	kernelStack *KernelStack
	res         *Resources

	inner *sync.UPSafeCell[Inner]
}

// Inner is the mutable part of a TCB.
type Inner struct {
	// TrapCxPPN is the frame holding the trap context and TrapCx is a view
	// of it.
	TrapCxPPN riscv.PhysPageNum
	TrapCx    *trap.Context

	// BaseSize is the initial user stack top, which bounds the program's
	// memory image.
	BaseSize uint64

	TaskCx    *Context
	Status    Status
	MemorySet *mm.MemorySet

	// Parent is nil for the init process. Children holds live and exited
	// but unreaped children.
	Parent   *TCB
	Children []*TCB

	ExitCode int32
}

// UserToken returns the task's address space token.
func (in *Inner) UserToken() uint64 {
	return in.MemorySet.Token()
}

// trapCxOf returns the trap context frame of ms.
func trapCxOf(res *Resources, ms *mm.MemorySet) (riscv.PhysPageNum, *trap.Context) {
	pte, ok := ms.Translate(riscv.NewVirtAddr(riscv.TrapContext).Floor())
	if !ok {
		panic("address space has no trap context")
	}
	return pte.PPN(), trap.FromPage(res.Alloc.Page(pte.PPN()))
}

// New creates a ready task running img, with a fresh pid and kernel stack.
func New(res *Resources, img *loader.Image) *TCB {
	ms, userSP, entry := mm.FromELF(res.Alloc, res.Layout, img)
	ppn, cx := trapCxOf(res, ms)
	pid := res.Pids.Alloc()
	kstack := NewKernelStack(res, pid)
	t := &TCB{
		pid:         pid,
		kernelStack: kstack,
		res:         res,
		inner: sync.NewUPSafeCell("task", Inner{
			TrapCxPPN: ppn,
			TrapCx:    cx,
			BaseSize:  userSP,
			TaskCx:    GotoTrapReturn(kstack.Top(), res.Entry),
			Status:    Ready,
			MemorySet: ms,
		}),
	}
	*cx = trap.AppInitContext(entry, userSP, res.kernelToken(), kstack.Top(), res.TrapHandler)
	log.Debugf("Created task %d: entry %#x, user sp %#x, kernel stack [%#x, %#x)", pid.Pid(), entry, userSP, kstack.Bottom(), kstack.Top())
	return t
}

// Pid returns the task's process id.
func (t *TCB) Pid() int {
	return t.pid.Pid()
}

// KernelStack returns the task's kernel stack.
func (t *TCB) KernelStack() *KernelStack {
	return t.kernelStack
}

// Inner returns the cell guarding the task's mutable state.
func (t *TCB) Inner() *sync.UPSafeCell[Inner] {
	return t.inner
}

// Status returns the task's state.
func (t *TCB) Status() Status {
	in := t.inner.Borrow()
	defer t.inner.Release()
	return in.Status
}

// Fork creates a ready child holding a copy of t's address space. The
// child resumes from the same trap context, with its own kernel stack.
func (t *TCB) Fork() *TCB {
	res := t.res
	parent := t.inner.Borrow()
	defer t.inner.Release()

	ms := mm.FromExistedUser(parent.MemorySet)
	ppn, cx := trapCxOf(res, ms)
	pid := res.Pids.Alloc()
	kstack := NewKernelStack(res, pid)
	child := &TCB{
		pid:         pid,
		kernelStack: kstack,
		res:         res,
		inner: sync.NewUPSafeCell("task", Inner{
			TrapCxPPN: ppn,
			TrapCx:    cx,
			BaseSize:  parent.BaseSize,
			TaskCx:    GotoTrapReturn(kstack.Top(), res.Entry),
			Status:    Ready,
			MemorySet: ms,
			Parent:    t,
		}),
	}
	parent.Children = append(parent.Children, child)
	// The trap context was copied with the rest of the address space.
	cx.KernelSp = kstack.Top()
	log.Debugf("Task %d forked child %d", t.Pid(), pid.Pid())
	return child
}

// Exec replaces t's program with img. The task continues at img's entry
// the next time it returns to user mode.
func (t *TCB) Exec(img *loader.Image) {
	res := t.res
	ms, userSP, entry := mm.FromELF(res.Alloc, res.Layout, img)
	ppn, cx := trapCxOf(res, ms)
	*cx = trap.AppInitContext(entry, userSP, res.kernelToken(), t.kernelStack.Top(), res.TrapHandler)

	in := t.inner.Borrow()
	old := in.MemorySet
	in.MemorySet = ms
	in.TrapCxPPN = ppn
	in.TrapCx = cx
	in.BaseSize = userSP
	t.inner.Release()

	old.Release()
	log.Debugf("Task %d exec: entry %#x", t.Pid(), entry)
}

// Exit marks t exited with code and hands its children to init. The
// program's memory is freed now; the page table, kernel stack and pid
// stay until the parent reaps t.
//
// Precondition: t is not init.
func (t *TCB) Exit(code int32, initProc *TCB) {
	if t == initProc {
		panic("init process exiting")
	}
	in := t.inner.Borrow()
	in.Status = Exited
	in.ExitCode = code
	children := in.Children
	in.Children = nil
	in.MemorySet.RecycleDataPages()
	t.inner.Release()

	if len(children) == 0 {
		return
	}
	ii := initProc.inner.Borrow()
	defer initProc.inner.Release()
	for _, c := range children {
		c.inner.With(func(cin *Inner) { cin.Parent = initProc })
		ii.Children = append(ii.Children, c)
	}
	log.Debugf("Task %d exited, %d children moved to init", t.Pid(), len(children))
}

// Wait reaps an exited child of t. pid -1 matches any child. It returns
// ErrNoChild if no child matches and ErrChildRunning if none of the
// matching children has exited.
func (t *TCB) Wait(pid int) (int, int32, error) {
	in := t.inner.Borrow()
	found := false
	idx := -1
	for i, c := range in.Children {
		if pid != -1 && c.Pid() != pid {
			continue
		}
		found = true
		if c.Status() == Exited {
			idx = i
			break
		}
	}
	if !found {
		t.inner.Release()
		return 0, 0, ErrNoChild
	}
	if idx < 0 {
		t.inner.Release()
		return 0, 0, ErrChildRunning
	}
	child := in.Children[idx]
	in.Children = append(in.Children[:idx], in.Children[idx+1:]...)
	t.inner.Release()

	cin := child.inner.Borrow()
	code := cin.ExitCode
	child.inner.Release()
	childPid := child.Pid()
	child.Release()
	return childPid, code, nil
}

// Release frees everything an exited task still holds: its page table,
// kernel stack and pid.
//
// Precondition: t has exited and its control flow has ended.
func (t *TCB) Release() {
	in := t.inner.Borrow()
	if in.Status != Exited {
		t.inner.Release()
		panic(fmt.Sprintf("releasing task %d in state %v", t.Pid(), in.Status))
	}
	ms := in.MemorySet
	in.MemorySet = nil
	in.TrapCx = nil
	t.inner.Release()

	ms.Release()
	t.kernelStack.Release()
	log.Debugf("Reaped task %d", t.Pid())
	t.pid.Release()
}
