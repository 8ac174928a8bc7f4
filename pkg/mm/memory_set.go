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

	"github.com/google/btree"
	"rvos.dev/rvos/pkg/loader"
	"rvos.dev/rvos/pkg/log"
	"rvos.dev/rvos/pkg/riscv"
)

// MMU is the hardware state an address space is activated on.
type MMU interface {
	// SetSatp writes satp.
	SetSatp(satp uint64)

	// SfenceVMA flushes the TLB.
	SfenceVMA()
}

// areaDegree is the degree of the area B-tree.
const areaDegree = 8

func areaLess(a, b *MapArea) bool {
	return a.vpns.Start < b.vpns.Start
}

// MemorySet is an address space: a page table plus the areas mapped in it.
//
// Areas never overlap. The trampoline is mapped at the highest page of
// every address space without an area of its own.
type MemorySet struct {
	alloc     *FrameAllocator
	layout    *Layout
	pageTable *PageTable
	areas     *btree.BTreeG[*MapArea]
}

// NewBare returns an address space with nothing mapped.
func NewBare(alloc *FrameAllocator, layout *Layout) *MemorySet {
	return &MemorySet{
		alloc:     alloc,
		layout:    layout,
		pageTable: NewPageTable(alloc),
		areas:     btree.NewG[*MapArea](areaDegree, areaLess),
	}
}

// Token returns the satp value selecting this address space.
func (ms *MemorySet) Token() uint64 {
	return ms.pageTable.Token()
}

// PageTable returns the address space's page table.
func (ms *MemorySet) PageTable() *PageTable {
	return ms.pageTable
}

// overlapping returns an existing area sharing a page with r, if any.
func (ms *MemorySet) overlapping(r riscv.VPNRange) *MapArea {
	var found *MapArea
	pivot := &MapArea{vpns: riscv.VPNRange{Start: r.Start}}
	ms.areas.DescendLessOrEqual(pivot, func(a *MapArea) bool {
		if a.vpns.Overlaps(r) {
			found = a
		}
		return false
	})
	if found != nil {
		return found
	}
	ms.areas.AscendGreaterOrEqual(pivot, func(a *MapArea) bool {
		if a.vpns.Overlaps(r) {
			found = a
		}
		return false
	})
	return found
}

// push maps area and records it, copying data to its start if non-nil.
func (ms *MemorySet) push(area *MapArea, off uint64, data []byte) {
	if o := ms.overlapping(area.vpns); o != nil {
		panic(fmt.Sprintf("area %v overlaps existing area %v", area.vpns, o.vpns))
	}
	area.Map(ms.pageTable)
	if data != nil {
		area.copyData(off, data)
	}
	ms.areas.ReplaceOrInsert(area)
}

// InsertFramedArea maps [start, end) with fresh frames.
func (ms *MemorySet) InsertFramedArea(start, end riscv.VirtAddr, perm MapPermission) {
	ms.push(NewMapArea(start, end, Framed, perm), 0, nil)
}

// RemoveAreaWithStartVPN unmaps the area starting at vpn, if there is one.
func (ms *MemorySet) RemoveAreaWithStartVPN(vpn riscv.VirtPageNum) {
	area, ok := ms.areas.Get(&MapArea{vpns: riscv.VPNRange{Start: vpn}})
	if !ok {
		return
	}
	area.Unmap(ms.pageTable)
	ms.areas.Delete(area)
}

// mapTrampoline maps the trampoline code page at the top of the space.
func (ms *MemorySet) mapTrampoline() {
	ms.pageTable.Map(
		riscv.NewVirtAddr(riscv.Trampoline).Floor(),
		riscv.NewPhysAddr(ms.layout.Strampoline).Floor(),
		PTERead|PTEExecute,
	)
}

// NewKernelSpace builds the kernel address space: the trampoline, each
// kernel section identity mapped with its own permission, and the rest of
// physical memory identity mapped read-write.
func NewKernelSpace(alloc *FrameAllocator, layout *Layout) *MemorySet {
	ms := NewBare(alloc, layout)
	ms.mapTrampoline()

	sections := []struct {
		name       string
		start, end uint64
		perm       MapPermission
	}{
		{".text", layout.Stext, layout.Etext, PermRead | PermExecute},
		{".rodata", layout.Srodata, layout.Erodata, PermRead},
		{".data", layout.Sdata, layout.Edata, PermRead | PermWrite},
		{".bss", layout.SbssWithStack, layout.Ebss, PermRead | PermWrite},
		{"physical memory", layout.Ekernel, layout.MemoryEnd, PermRead | PermWrite},
	}
	for _, s := range sections {
		log.Infof("Mapping %s [%#x, %#x)", s.name, s.start, s.end)
		ms.push(NewMapArea(riscv.NewVirtAddr(s.start), riscv.NewVirtAddr(s.end), Identical, s.perm), 0, nil)
	}
	return ms
}

// FromELF builds a user address space for img. It returns the space, the
// initial user stack pointer and the entry point.
//
// Above the highest segment there is one unmapped guard page and then the
// user stack. The trap context page sits just below the trampoline.
func FromELF(alloc *FrameAllocator, layout *Layout, img *loader.Image) (*MemorySet, uint64, uint64) {
	ms := NewBare(alloc, layout)
	ms.mapTrampoline()

	var maxEnd riscv.VirtPageNum
	for _, seg := range img.Segments {
		if seg.MemSize == 0 {
			continue
		}
		perm := PermUser
		if seg.Read {
			perm |= PermRead
		}
		if seg.Write {
			perm |= PermWrite
		}
		if seg.Exec {
			perm |= PermExecute
		}
		start := riscv.NewVirtAddr(seg.VAddr)
		area := NewMapArea(start, riscv.NewVirtAddr(seg.End()), Framed, perm)
		if end := area.vpns.End; end > maxEnd {
			maxEnd = end
		}
		ms.push(area, start.PageOffset(), seg.Data)
	}

	stackBottom := uint64(maxEnd.Addr()) + riscv.PageSize
	stackTop := stackBottom + layout.UserStackSize
	ms.push(NewMapArea(riscv.NewVirtAddr(stackBottom), riscv.NewVirtAddr(stackTop), Framed, PermRead|PermWrite|PermUser), 0, nil)
	ms.push(NewMapArea(riscv.NewVirtAddr(riscv.TrapContext), riscv.NewVirtAddr(riscv.Trampoline), Framed, PermRead|PermWrite), 0, nil)
	return ms, stackTop, img.Entry
}

// FromExistedUser returns a copy of user: the same areas, each backed by
// new frames holding the same bytes.
func FromExistedUser(user *MemorySet) *MemorySet {
	ms := NewBare(user.alloc, user.layout)
	ms.mapTrampoline()
	user.areas.Ascend(func(a *MapArea) bool {
		n := a.cloneShape()
		ms.push(n, 0, nil)
		a.vpns.ForEach(func(vpn riscv.VirtPageNum) {
			src, _ := user.pageTable.Translate(vpn)
			dst, _ := ms.pageTable.Translate(vpn)
			copy(ms.alloc.Page(dst.PPN()), user.alloc.Page(src.PPN()))
		})
		return true
	})
	return ms
}

// Activate switches mmu to this address space and flushes the TLB. pc is
// the address the hart continues at, which must be identity mapped.
func (ms *MemorySet) Activate(mmu MMU, pc riscv.VirtAddr) {
	if pa, ok := ms.pageTable.TranslateVA(pc); !ok || uint64(pa) != uint64(pc) {
		panic(fmt.Sprintf("%v is not identity mapped in the new address space", pc))
	}
	mmu.SetSatp(ms.Token())
	mmu.SfenceVMA()
}

// Translate looks up vpn.
func (ms *MemorySet) Translate(vpn riscv.VirtPageNum) (PTE, bool) {
	return ms.pageTable.Translate(vpn)
}

// RecycleDataPages releases the frames of every area. The page table is
// kept until Release, so the space must not be run again.
func (ms *MemorySet) RecycleDataPages() {
	ms.areas.Ascend(func(a *MapArea) bool {
		a.releaseFrames()
		return true
	})
	ms.areas.Clear(false)
}

// Release returns every frame the address space owns.
func (ms *MemorySet) Release() {
	ms.RecycleDataPages()
	ms.pageTable.Release()
}

// AreaInfo describes one area.
type AreaInfo struct {
	Start uint64 `yaml:"start"`
	End   uint64 `yaml:"end"`
	Pages uint64 `yaml:"pages"`
	Type  string `yaml:"type"`
	Perm  string `yaml:"perm"`
}

// Areas describes every area in address order.
func (ms *MemorySet) Areas() []AreaInfo {
	var infos []AreaInfo
	ms.areas.Ascend(func(a *MapArea) bool {
		infos = append(infos, AreaInfo{
			Start: uint64(a.vpns.Start.Addr()),
			End:   uint64(a.vpns.End.Addr()),
			Pages: a.vpns.Len(),
			Type:  a.typ.String(),
			Perm:  a.perm.String(),
		})
		return true
	})
	return infos
}

// RemapTest checks that the kernel sections were mapped with the right
// permissions.
func (ms *MemorySet) RemapTest() {
	l := ms.layout
	mid := func(start, end uint64) riscv.VirtPageNum {
		return riscv.NewVirtAddr((start + end) / 2).Floor()
	}
	check := func(what string, vpn riscv.VirtPageNum, ok func(PTE) bool) {
		pte, mapped := ms.pageTable.Translate(vpn)
		if !mapped || !ok(pte) {
			panic(fmt.Sprintf("remap test: %s at %v (%v)", what, vpn, pte))
		}
	}
	check(".text is writable", mid(l.Stext, l.Etext), func(p PTE) bool { return !p.Writable() })
	check(".rodata is writable", mid(l.Srodata, l.Erodata), func(p PTE) bool { return !p.Writable() })
	check(".data is executable", mid(l.Sdata, l.Edata), func(p PTE) bool { return !p.Executable() })
	log.Infof("Remap test passed")
}
