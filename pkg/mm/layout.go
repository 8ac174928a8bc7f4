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

package mm

import (
	"fmt"

	"rvos.dev/rvos/pkg/riscv"
)

// Default memory configuration.
const (
	DefaultMemoryEnd       = 0x80800000
	DefaultUserStackSize   = 2 * riscv.PageSize
	DefaultKernelStackSize = 2 * riscv.PageSize

	// KernelBase is where the kernel image is loaded.
	KernelBase = 0x80200000
)

// Layout describes the kernel image and the memory configuration. All
// section bounds are page aligned physical addresses, identity mapped in
// the kernel address space.
type Layout struct {
	Stext         uint64 `yaml:"stext"`
	Etext         uint64 `yaml:"etext"`
	Srodata       uint64 `yaml:"srodata"`
	Erodata       uint64 `yaml:"erodata"`
	Sdata         uint64 `yaml:"sdata"`
	Edata         uint64 `yaml:"edata"`
	SbssWithStack uint64 `yaml:"sbss_with_stack"`
	Ebss          uint64 `yaml:"ebss"`
	Ekernel       uint64 `yaml:"ekernel"`

	// Strampoline is the page of .text holding the trampoline code. It is
	// mapped at riscv.Trampoline in every address space.
	Strampoline uint64 `yaml:"strampoline"`

	// TrapHandler and TrapFromKernel are the .text addresses of the trap
	// entry points the hardware, or the trampoline, jumps to.
	TrapHandler    uint64 `yaml:"trap_handler"`
	TrapFromKernel uint64 `yaml:"trap_from_kernel"`

	MemoryEnd       uint64 `yaml:"memory_end"`
	UserStackSize   uint64 `yaml:"user_stack_size"`
	KernelStackSize uint64 `yaml:"kernel_stack_size"`
}

// DefaultLayout returns the standard kernel image layout with the given
// memory configuration.
func DefaultLayout(memoryEnd, userStackSize, kernelStackSize uint64) Layout {
	return Layout{
		Stext:           KernelBase,
		TrapHandler:     KernelBase + 0x1000,
		TrapFromKernel:  KernelBase + 0x2000,
		Strampoline:     KernelBase + 0x9000,
		Etext:           KernelBase + 0xa000,
		Srodata:         KernelBase + 0xa000,
		Erodata:         KernelBase + 0xc000,
		Sdata:           KernelBase + 0xc000,
		Edata:           KernelBase + 0xe000,
		SbssWithStack:   KernelBase + 0xe000,
		Ebss:            KernelBase + 0x20000,
		Ekernel:         KernelBase + 0x20000,
		MemoryEnd:       memoryEnd,
		UserStackSize:   userStackSize,
		KernelStackSize: kernelStackSize,
	}
}

// Validate checks that the layout is well formed.
func (l *Layout) Validate() error {
	bounds := []uint64{l.Stext, l.Etext, l.Srodata, l.Erodata, l.Sdata, l.Edata, l.SbssWithStack, l.Ebss, l.Ekernel, l.MemoryEnd}
	for i, b := range bounds {
		if b%riscv.PageSize != 0 {
			return fmt.Errorf("section bound %#x is not page aligned", b)
		}
		if i > 0 && b < bounds[i-1] {
			return fmt.Errorf("section bounds are not ordered at %#x", b)
		}
	}
	if l.MemoryEnd == l.Ekernel {
		return fmt.Errorf("no memory past the kernel image at %#x", l.Ekernel)
	}
	if l.Strampoline < l.Stext || l.Strampoline+riscv.PageSize > l.Etext || l.Strampoline%riscv.PageSize != 0 {
		return fmt.Errorf("trampoline page %#x is not a page of .text", l.Strampoline)
	}
	for _, entry := range []uint64{l.TrapHandler, l.TrapFromKernel} {
		if entry < l.Stext || entry >= l.Etext || entry%4 != 0 {
			return fmt.Errorf("trap entry %#x is not in .text", entry)
		}
		if entry >= l.Strampoline && entry < l.Strampoline+riscv.PageSize {
			return fmt.Errorf("trap entry %#x is inside the trampoline", entry)
		}
	}
	for _, size := range []uint64{l.UserStackSize, l.KernelStackSize} {
		if size == 0 || size%riscv.PageSize != 0 {
			return fmt.Errorf("stack size %#x is not a positive multiple of the page size", size)
		}
	}
	return nil
}

// FramePool returns the physical pages available to the frame allocator.
func (l *Layout) FramePool() (start, end riscv.PhysPageNum) {
	return riscv.NewPhysAddr(l.Ekernel).Ceil(), riscv.NewPhysAddr(l.MemoryEnd).Floor()
}

// KernelStackPosition returns the bounds of pid's kernel stack in the
// kernel address space. Stacks sit below the trampoline, each followed by
// an unmapped guard page.
func (l *Layout) KernelStackPosition(pid int) (bottom, top uint64) {
	top = riscv.Trampoline - uint64(pid)*(l.KernelStackSize+riscv.PageSize)
	bottom = top - l.KernelStackSize
	return bottom, top
}
