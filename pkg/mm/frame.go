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

// Package mm implements kernel memory management: the physical frame
// allocator, Sv39 page tables and address spaces.
package mm

import (
	"errors"
	"fmt"

	"rvos.dev/rvos/pkg/log"
	"rvos.dev/rvos/pkg/riscv"
	"rvos.dev/rvos/pkg/sync"
)

// ErrNoFrame is returned when every physical frame is in use.
var ErrNoFrame = errors.New("out of physical frames")

// Physical gives the kernel access to physical pages.
type Physical interface {
	// Page returns the bytes of physical page ppn.
	Page(ppn riscv.PhysPageNum) []byte
}

// stackFrameAllocator hands out pages from [current, end), reusing freed
// pages first.
type stackFrameAllocator struct {
	current  riscv.PhysPageNum
	end      riscv.PhysPageNum
	start    riscv.PhysPageNum
	recycled []riscv.PhysPageNum
}

func (s *stackFrameAllocator) alloc() (riscv.PhysPageNum, bool) {
	if n := len(s.recycled); n != 0 {
		ppn := s.recycled[n-1]
		s.recycled = s.recycled[:n-1]
		return ppn, true
	}
	if s.current == s.end {
		return 0, false
	}
	ppn := s.current
	s.current++
	return ppn, true
}

func (s *stackFrameAllocator) dealloc(ppn riscv.PhysPageNum) {
	if ppn >= s.current || ppn < s.start {
		panic(fmt.Sprintf("frame ppn %#x has not been allocated", uint64(ppn)))
	}
	for _, r := range s.recycled {
		if r == ppn {
			panic(fmt.Sprintf("frame ppn %#x has not been allocated", uint64(ppn)))
		}
	}
	s.recycled = append(s.recycled, ppn)
}

// FrameAllocator owns the physical frames in [start, end).
type FrameAllocator struct {
	mem   Physical
	inner *sync.UPSafeCell[stackFrameAllocator]
}

// NewFrameAllocator returns an allocator for [start, end) of mem.
func NewFrameAllocator(mem Physical, start, end riscv.PhysPageNum) *FrameAllocator {
	if start > end {
		panic(fmt.Sprintf("frame pool start %v > end %v", start, end))
	}
	log.Infof("Frame allocator: %d frames in [%v, %v)", uint64(end-start), start.Addr(), end.Addr())
	return &FrameAllocator{
		mem: mem,
		inner: sync.NewUPSafeCell("frame allocator", stackFrameAllocator{
			current: start,
			end:     end,
			start:   start,
		}),
	}
}

// Alloc takes a frame and zeroes it.
func (a *FrameAllocator) Alloc() (*FrameTracker, error) {
	s := a.inner.Borrow()
	ppn, ok := s.alloc()
	a.inner.Release()
	if !ok {
		return nil, ErrNoFrame
	}
	clear(a.mem.Page(ppn))
	return &FrameTracker{PPN: ppn, alloc: a}, nil
}

// MustAlloc is Alloc for callers that cannot continue without a frame.
func (a *FrameAllocator) MustAlloc() *FrameTracker {
	f, err := a.Alloc()
	if err != nil {
		panic(err.Error())
	}
	return f
}

func (a *FrameAllocator) dealloc(ppn riscv.PhysPageNum) {
	s := a.inner.Borrow()
	defer a.inner.Release()
	s.dealloc(ppn)
}

// Page returns the bytes of physical page ppn.
func (a *FrameAllocator) Page(ppn riscv.PhysPageNum) []byte {
	return a.mem.Page(ppn)
}

// Allocated returns the number of frames currently in use.
func (a *FrameAllocator) Allocated() uint64 {
	s := a.inner.Borrow()
	defer a.inner.Release()
	return uint64(s.current-s.start) - uint64(len(s.recycled))
}

// Free returns the number of frames available.
func (a *FrameAllocator) Free() uint64 {
	s := a.inner.Borrow()
	defer a.inner.Release()
	return uint64(s.end-s.current) + uint64(len(s.recycled))
}

// FrameTracker is the single owner of an allocated frame. The frame goes
// back to the allocator on Release.
type FrameTracker struct {
	PPN   riscv.PhysPageNum
	alloc *FrameAllocator
}

// Bytes returns the frame's contents.
func (f *FrameTracker) Bytes() []byte {
	return f.alloc.mem.Page(f.PPN)
}

// Release returns the frame. Releasing twice panics.
func (f *FrameTracker) Release() {
	f.alloc.dealloc(f.PPN)
}
