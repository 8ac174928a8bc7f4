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

// MapType says how an area's pages are backed.
type MapType int

const (
	// Identical maps every virtual page to the physical page with the
	// same number.
	Identical MapType = iota

	// Framed backs every virtual page with a frame the area owns.
	Framed
)

// String implements fmt.Stringer.
func (t MapType) String() string {
	switch t {
	case Identical:
		return "identical"
	case Framed:
		return "framed"
	default:
		return fmt.Sprintf("MapType(%d)", int(t))
	}
}

// MapPermission is the subset of PTE flags an area may set.
type MapPermission uint8

// Permissions. The values match the PTE bits.
const (
	PermRead    = MapPermission(PTERead)
	PermWrite   = MapPermission(PTEWrite)
	PermExecute = MapPermission(PTEExecute)
	PermUser    = MapPermission(PTEUser)
)

// String implements fmt.Stringer.
func (p MapPermission) String() string {
	b := []byte("----")
	for i, f := range []struct {
		perm MapPermission
		c    byte
	}{{PermRead, 'R'}, {PermWrite, 'W'}, {PermExecute, 'X'}, {PermUser, 'U'}} {
		if p&f.perm != 0 {
			b[i] = f.c
		}
	}
	return string(b)
}

// MapArea is a contiguous range of virtual pages with one backing type
// and one permission.
type MapArea struct {
	vpns riscv.VPNRange
	typ  MapType
	perm MapPermission

	// frames holds the frames of a Framed area, by page.
	frames map[riscv.VirtPageNum]*FrameTracker
}

// NewMapArea returns an unmapped area covering [start, end), widened to
// page boundaries.
func NewMapArea(start, end riscv.VirtAddr, typ MapType, perm MapPermission) *MapArea {
	return &MapArea{
		vpns:   riscv.NewVPNRange(start.Floor(), end.Ceil()),
		typ:    typ,
		perm:   perm,
		frames: make(map[riscv.VirtPageNum]*FrameTracker),
	}
}

// cloneShape returns an unmapped area with the same range, type and
// permission as a.
func (a *MapArea) cloneShape() *MapArea {
	return &MapArea{
		vpns:   a.vpns,
		typ:    a.typ,
		perm:   a.perm,
		frames: make(map[riscv.VirtPageNum]*FrameTracker),
	}
}

// VPNRange returns the pages the area covers.
func (a *MapArea) VPNRange() riscv.VPNRange {
	return a.vpns
}

// Type returns the backing type.
func (a *MapArea) Type() MapType {
	return a.typ
}

// Perm returns the permission.
func (a *MapArea) Perm() MapPermission {
	return a.perm
}

func (a *MapArea) mapOne(pt *PageTable, vpn riscv.VirtPageNum) {
	var ppn riscv.PhysPageNum
	switch a.typ {
	case Identical:
		ppn = riscv.PhysPageNum(vpn)
	case Framed:
		f := pt.alloc.MustAlloc()
		ppn = f.PPN
		a.frames[vpn] = f
	}
	pt.Map(vpn, ppn, PTEFlags(a.perm))
}

func (a *MapArea) unmapOne(pt *PageTable, vpn riscv.VirtPageNum) {
	if a.typ == Framed {
		if f, ok := a.frames[vpn]; ok {
			f.Release()
			delete(a.frames, vpn)
		}
	}
	pt.Unmap(vpn)
}

// Map installs every page of the area in pt.
func (a *MapArea) Map(pt *PageTable) {
	a.vpns.ForEach(func(vpn riscv.VirtPageNum) { a.mapOne(pt, vpn) })
}

// Unmap removes every page of the area from pt, releasing owned frames.
func (a *MapArea) Unmap(pt *PageTable) {
	a.vpns.ForEach(func(vpn riscv.VirtPageNum) { a.unmapOne(pt, vpn) })
}

// releaseFrames returns owned frames without touching any page table.
func (a *MapArea) releaseFrames() {
	for vpn, f := range a.frames {
		f.Release()
		delete(a.frames, vpn)
	}
}

// copyData copies data into a mapped Framed area, starting off bytes into
// its first page.
func (a *MapArea) copyData(off uint64, data []byte) {
	if a.typ != Framed {
		panic(fmt.Sprintf("copying data into %v area %v", a.typ, a.vpns))
	}
	for vpn := a.vpns.Start; len(data) != 0; vpn++ {
		f, ok := a.frames[vpn]
		if !ok {
			panic(fmt.Sprintf("data overruns area %v", a.vpns))
		}
		n := copy(f.Bytes()[off:], data)
		data = data[n:]
		off = 0
	}
}
