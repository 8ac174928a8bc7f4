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

// PageTable is a three-level Sv39 page table.
type PageTable struct {
	root  riscv.PhysPageNum
	alloc *FrameAllocator

	// frames holds every node the table owns, the root first. A table
	// built by FromToken owns nothing.
	frames []*FrameTracker
}

// NewPageTable returns an empty page table with a freshly allocated root.
func NewPageTable(alloc *FrameAllocator) *PageTable {
	root := alloc.MustAlloc()
	return &PageTable{
		root:   root.PPN,
		alloc:  alloc,
		frames: []*FrameTracker{root},
	}
}

// FromToken returns a view of the page table selected by satp. The view
// must only be used to look up translations.
func FromToken(alloc *FrameAllocator, satp uint64) *PageTable {
	return &PageTable{
		root:  riscv.SatpRoot(satp),
		alloc: alloc,
	}
}

func (pt *PageTable) node(ppn riscv.PhysPageNum) *PTEs {
	return ptesOf(pt.alloc.Page(ppn))
}

// findPTECreate returns the leaf entry for vpn, allocating intermediate
// nodes as needed.
func (pt *PageTable) findPTECreate(vpn riscv.VirtPageNum) *PTE {
	idxs := vpn.Indexes()
	ppn := pt.root
	for i, idx := range idxs {
		pte := &pt.node(ppn)[idx]
		if i == len(idxs)-1 {
			return pte
		}
		if !pte.Valid() {
			f := pt.alloc.MustAlloc()
			*pte = NewPTE(f.PPN, PTEValid)
			pt.frames = append(pt.frames, f)
		}
		ppn = pte.PPN()
	}
	panic("unreachable")
}

// findPTE returns the leaf entry for vpn, or nil if an intermediate node is
// missing. The returned entry may be invalid.
func (pt *PageTable) findPTE(vpn riscv.VirtPageNum) *PTE {
	idxs := vpn.Indexes()
	ppn := pt.root
	for i, idx := range idxs {
		pte := &pt.node(ppn)[idx]
		if i == len(idxs)-1 {
			return pte
		}
		if !pte.Valid() {
			return nil
		}
		ppn = pte.PPN()
	}
	panic("unreachable")
}

// Map installs vpn -> ppn with flags | V.
//
// Precondition: vpn must not be mapped. Violations panic.
func (pt *PageTable) Map(vpn riscv.VirtPageNum, ppn riscv.PhysPageNum, flags PTEFlags) {
	pte := pt.findPTECreate(vpn)
	if pte.Valid() {
		panic(fmt.Sprintf("%v is mapped before mapping", vpn))
	}
	*pte = NewPTE(ppn, flags|PTEValid)
}

// Unmap removes the mapping for vpn.
//
// Precondition: vpn must be mapped. Violations panic.
func (pt *PageTable) Unmap(vpn riscv.VirtPageNum) {
	pte := pt.findPTE(vpn)
	if pte == nil || !pte.Valid() {
		panic(fmt.Sprintf("%v is invalid before unmapping", vpn))
	}
	*pte = 0
}

// Translate returns the leaf entry for vpn if it is valid.
func (pt *PageTable) Translate(vpn riscv.VirtPageNum) (PTE, bool) {
	pte := pt.findPTE(vpn)
	if pte == nil || !pte.Valid() {
		return 0, false
	}
	return *pte, true
}

// TranslateVA translates a virtual address.
func (pt *PageTable) TranslateVA(va riscv.VirtAddr) (riscv.PhysAddr, bool) {
	pte, ok := pt.Translate(va.Floor())
	if !ok {
		return 0, false
	}
	return riscv.PhysAddr(uint64(pte.PPN().Addr()) | va.PageOffset()), true
}

// Token returns the satp value that selects this table.
func (pt *PageTable) Token() uint64 {
	return riscv.MakeSatp(pt.root)
}

// Root returns the root node's page.
func (pt *PageTable) Root() riscv.PhysPageNum {
	return pt.root
}

// Nodes returns the number of node frames the table owns.
func (pt *PageTable) Nodes() int {
	return len(pt.frames)
}

// Release returns every node frame. The table must not be used afterwards.
func (pt *PageTable) Release() {
	for _, f := range pt.frames {
		f.Release()
	}
	pt.frames = nil
}
