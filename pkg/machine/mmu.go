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

package machine

import (
	"rvos.dev/rvos/pkg/riscv"
)

// Access is the kind of memory access being translated.
type Access int

// Access kinds.
const (
	Fetch Access = iota
	Load
	Store
)

// PTE bits, as the hardware page walker interprets them.
const (
	pteV uint64 = 1 << 0
	pteR uint64 = 1 << 1
	pteW uint64 = 1 << 2
	pteX uint64 = 1 << 3
	pteU uint64 = 1 << 4
	pteA uint64 = 1 << 6
	pteD uint64 = 1 << 7

	ptePPNShift = 10
	ptePPNMask  = 1<<riscv.PPNWidth - 1
)

func (a Access) pageFault() riscv.Cause {
	switch a {
	case Fetch:
		return riscv.InstructionPageFault
	case Load:
		return riscv.LoadPageFault
	default:
		return riscv.StorePageFault
	}
}

func (a Access) accessFault() riscv.Cause {
	switch a {
	case Fetch:
		return riscv.InstructionFault
	case Load:
		return riscv.LoadFault
	default:
		return riscv.StoreFault
	}
}

// tlbEntry caches one 4 KiB translation.
type tlbEntry struct {
	ppn   uint64
	flags uint64
	// pteAddr is the physical address of the leaf PTE, for A/D updates.
	pteAddr uint64
}

// MMU translates virtual addresses under the current satp.
//
// Translations are cached in a TLB that is only flushed by SfenceVMA;
// writing satp alone does not flush it.
type MMU struct {
	mem  *Memory
	satp uint64
	tlb  map[uint64]tlbEntry
}

func newMMU(mem *Memory) *MMU {
	return &MMU{mem: mem, tlb: make(map[uint64]tlbEntry)}
}

// SetSatp writes the satp register.
func (m *MMU) SetSatp(satp uint64) {
	m.satp = satp
}

// Satp returns the satp register.
func (m *MMU) Satp() uint64 {
	return m.satp
}

// SfenceVMA flushes every cached translation.
func (m *MMU) SfenceVMA() {
	clear(m.tlb)
}

// TLBLen returns the number of cached translations.
func (m *MMU) TLBLen() int {
	return len(m.tlb)
}

// Translate translates va for an access of kind acc at privilege priv.
// sum is the sstatus.SUM bit. On failure it returns the exception to raise.
func (m *MMU) Translate(va uint64, acc Access, priv riscv.Privilege, sum bool) (uint64, riscv.Cause, bool) {
	if riscv.SatpMode(m.satp) != riscv.SatpModeSv39 {
		return va, 0, true
	}

	// Bits 63..39 must all equal bit 38.
	if hi := int64(va) >> (riscv.VAWidth - 1); hi != 0 && hi != -1 {
		return 0, acc.pageFault(), false
	}

	vpn := (va >> riscv.PageShift) & (1<<riscv.VPNWidth - 1)
	e, ok := m.tlb[vpn]
	if !ok || (acc == Store && e.flags&pteD == 0) || e.flags&pteA == 0 {
		var cause riscv.Cause
		e, cause, ok = m.walk(vpn, acc)
		if !ok {
			return 0, cause, false
		}
	}

	if !permitted(e.flags, acc, priv, sum) {
		return 0, acc.pageFault(), false
	}

	// Set A, and D on stores, in the in-memory PTE.
	set := pteA
	if acc == Store {
		set |= pteD
	}
	if e.flags&set != set {
		pte, ok := m.mem.load(e.pteAddr, 8)
		if !ok {
			return 0, acc.accessFault(), false
		}
		pte |= set
		m.mem.store(e.pteAddr, 8, pte)
		e.flags |= set
	}
	m.tlb[vpn] = e

	return e.ppn<<riscv.PageShift | va&riscv.PageMask, 0, true
}

// walk performs a Sv39 page walk for vpn.
func (m *MMU) walk(vpn uint64, acc Access) (tlbEntry, riscv.Cause, bool) {
	table := uint64(riscv.SatpRoot(m.satp)) << riscv.PageShift
	for level := riscv.Levels - 1; level >= 0; level-- {
		idx := (vpn >> (uint(level) * riscv.IndexBits)) & (riscv.EntriesPerTable - 1)
		pteAddr := table + idx*8
		pte, ok := m.mem.load(pteAddr, 8)
		if !ok {
			return tlbEntry{}, acc.accessFault(), false
		}
		if pte&pteV == 0 || (pte&pteR == 0 && pte&pteW != 0) {
			return tlbEntry{}, acc.pageFault(), false
		}
		ppn := (pte >> ptePPNShift) & ptePPNMask
		if pte&(pteR|pteX) == 0 {
			table = ppn << riscv.PageShift
			continue
		}

		// Leaf. A superpage must be aligned to its size.
		span := uint64(1)<<(uint(level)*riscv.IndexBits) - 1
		if ppn&span != 0 {
			return tlbEntry{}, acc.pageFault(), false
		}
		return tlbEntry{
			ppn:     ppn | vpn&span,
			flags:   pte & 0xff,
			pteAddr: pteAddr,
		}, 0, true
	}
	return tlbEntry{}, acc.pageFault(), false
}

func permitted(flags uint64, acc Access, priv riscv.Privilege, sum bool) bool {
	switch acc {
	case Fetch:
		if flags&pteX == 0 {
			return false
		}
	case Load:
		if flags&pteR == 0 {
			return false
		}
	case Store:
		if flags&pteW == 0 {
			return false
		}
	}
	if priv == riscv.User {
		return flags&pteU != 0
	}
	if flags&pteU != 0 {
		// Supervisor may touch user pages only with SUM, and may never
		// execute them.
		return sum && acc != Fetch
	}
	return true
}
