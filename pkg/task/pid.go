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

package task

import (
	"fmt"
	"slices"

	"rvos.dev/rvos/pkg/mm"
	"rvos.dev/rvos/pkg/riscv"
	"rvos.dev/rvos/pkg/sync"
)

// InitPid is the pid of the first process.
const InitPid = 0

type recycleAllocator struct {
	current  int
	recycled []int
}

func (r *recycleAllocator) alloc() int {
	if n := len(r.recycled); n != 0 {
		pid := r.recycled[n-1]
		r.recycled = r.recycled[:n-1]
		return pid
	}
	pid := r.current
	r.current++
	return pid
}

func (r *recycleAllocator) dealloc(pid int) {
	if pid >= r.current || pid < 0 || slices.Contains(r.recycled, pid) {
		panic(fmt.Sprintf("pid %d has not been allocated", pid))
	}
	r.recycled = append(r.recycled, pid)
}

// PidAllocator hands out process ids, smallest never-used first, reusing
// released ids.
type PidAllocator struct {
	inner *sync.UPSafeCell[recycleAllocator]
}

// NewPidAllocator returns an allocator whose first pid is InitPid.
func NewPidAllocator() *PidAllocator {
	return &PidAllocator{inner: sync.NewUPSafeCell("pid allocator", recycleAllocator{})}
}

// Alloc allocates a pid.
func (a *PidAllocator) Alloc() *PidHandle {
	r := a.inner.Borrow()
	defer a.inner.Release()
	return &PidHandle{pid: r.alloc(), alloc: a}
}

// InUse returns the number of allocated pids.
func (a *PidAllocator) InUse() int {
	r := a.inner.Borrow()
	defer a.inner.Release()
	return r.current - len(r.recycled)
}

// PidHandle owns an allocated pid until Release.
type PidHandle struct {
	pid   int
	alloc *PidAllocator
}

// Pid returns the process id.
func (h *PidHandle) Pid() int {
	return h.pid
}

// Release returns the pid to the allocator.
func (h *PidHandle) Release() {
	r := h.alloc.inner.Borrow()
	defer h.alloc.inner.Release()
	r.dealloc(h.pid)
}

// KernelStack is a task's kernel stack, mapped in the kernel address space
// at a position fixed by its pid.
type KernelStack struct {
	pid    int
	bottom uint64
	top    uint64
	space  *sync.UPSafeCell[*mm.MemorySet]
}

// NewKernelStack maps the kernel stack of pid.
func NewKernelStack(res *Resources, pid *PidHandle) *KernelStack {
	bottom, top := res.Layout.KernelStackPosition(pid.Pid())
	res.KernelSpace.With(func(ks **mm.MemorySet) {
		(*ks).InsertFramedArea(riscv.NewVirtAddr(bottom), riscv.NewVirtAddr(top), mm.PermRead|mm.PermWrite)
	})
	return &KernelStack{
		pid:    pid.Pid(),
		bottom: bottom,
		top:    top,
		space:  res.KernelSpace,
	}
}

// Top returns the initial kernel stack pointer.
func (k *KernelStack) Top() uint64 {
	return k.top
}

// Bottom returns the lowest address of the stack.
func (k *KernelStack) Bottom() uint64 {
	return k.bottom
}

// Release unmaps the stack and frees its frames.
func (k *KernelStack) Release() {
	k.space.With(func(ks **mm.MemorySet) {
		(*ks).RemoveAreaWithStartVPN(riscv.NewVirtAddr(k.bottom).Floor())
	})
}
