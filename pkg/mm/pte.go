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

// PTEFlags are the low eight bits of a page table entry.
type PTEFlags uint8

// Page table entry flags.
const (
	PTEValid PTEFlags = 1 << iota
	PTERead
	PTEWrite
	PTEExecute
	PTEUser
	PTEGlobal
	PTEAccessed
	PTEDirty
)

// String implements fmt.Stringer. Flags print as "VRWXUGAD" with "-" for
// each clear bit.
func (f PTEFlags) String() string {
	const names = "VRWXUGAD"
	b := []byte("--------")
	for i := range names {
		if f&(1<<i) != 0 {
			b[i] = names[i]
		}
	}
	return string(b)
}

const (
	ptePPNShift = 10
	ptePPNMask  = 1<<riscv.PPNWidth - 1
)

// PTE is an Sv39 page table entry: a physical page number in bits 10..53
// and flags in bits 0..7.
type PTE uint64

// PTEs is one page table node.
type PTEs [riscv.EntriesPerTable]PTE

// NewPTE returns an entry pointing at ppn.
func NewPTE(ppn riscv.PhysPageNum, flags PTEFlags) PTE {
	return PTE(uint64(ppn)<<ptePPNShift | uint64(flags))
}

// PPN returns the page the entry points at. It is meaningless unless the
// entry is valid.
func (p PTE) PPN() riscv.PhysPageNum {
	return riscv.PhysPageNum((uint64(p) >> ptePPNShift) & ptePPNMask)
}

// Flags returns the entry's flags.
func (p PTE) Flags() PTEFlags {
	return PTEFlags(p)
}

// Valid returns true iff the entry is valid.
func (p PTE) Valid() bool {
	return p.Flags()&PTEValid != 0
}

// Readable returns true iff the entry permits reads.
func (p PTE) Readable() bool {
	return p.Flags()&PTERead != 0
}

// Writable returns true iff the entry permits writes.
func (p PTE) Writable() bool {
	return p.Flags()&PTEWrite != 0
}

// Executable returns true iff the entry permits execution.
func (p PTE) Executable() bool {
	return p.Flags()&PTEExecute != 0
}

// User returns true iff the entry is accessible from user mode.
func (p PTE) User() bool {
	return p.Flags()&PTEUser != 0
}

// IsLeaf returns true iff the entry maps a page rather than pointing at the
// next level.
func (p PTE) IsLeaf() bool {
	return p.Flags()&(PTERead|PTEWrite|PTEExecute) != 0
}

// String implements fmt.Stringer.
func (p PTE) String() string {
	return fmt.Sprintf("%v %v", p.PPN(), p.Flags())
}
