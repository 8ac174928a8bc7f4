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

// Package riscv describes the RV64 Sv39 architecture: address and page
// number types, control and status register encodings, and trap causes.
//
// Nothing in this package touches memory; it is safe to use from any layer.
package riscv

const (
	// PageShift is the binary log of the page size.
	PageShift = 12

	// PageSize is the system page size.
	PageSize = 1 << PageShift

	// PageMask is the page offset mask.
	PageMask = PageSize - 1

	// PAWidth is the width of a physical address under Sv39.
	PAWidth = 56

	// VAWidth is the width of a virtual address under Sv39.
	VAWidth = 39

	// PPNWidth is the width of a physical page number.
	PPNWidth = PAWidth - PageShift

	// VPNWidth is the width of a virtual page number.
	VPNWidth = VAWidth - PageShift

	// Levels is the number of page table levels.
	Levels = 3

	// EntriesPerTable is the number of entries in one page table node.
	EntriesPerTable = 512

	// IndexBits is the width of one page table index.
	IndexBits = 9
)

const (
	// Trampoline is the virtual address of the trampoline page. It is the
	// highest page of every address space.
	Trampoline uint64 = ^uint64(0) - PageSize + 1

	// TrapContext is the virtual address of a task's trap context page, one
	// page below the trampoline.
	TrapContext uint64 = Trampoline - PageSize
)

// SatpModeSv39 is the satp MODE field value selecting Sv39 translation.
const SatpModeSv39 = 8

// SatpModeShift is the bit position of the satp MODE field.
const SatpModeShift = 60

// MakeSatp packs a root page number into an Sv39 satp token.
func MakeSatp(root PhysPageNum) uint64 {
	return uint64(SatpModeSv39)<<SatpModeShift | uint64(root)
}

// SatpRoot extracts the root page number from a satp token.
func SatpRoot(satp uint64) PhysPageNum {
	return NewPhysPageNum(satp)
}

// SatpMode extracts the MODE field from a satp token.
func SatpMode(satp uint64) uint64 {
	return satp >> SatpModeShift
}
