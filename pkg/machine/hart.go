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
	"fmt"

	"rvos.dev/rvos/pkg/riscv"
)

// maxDecoded bounds the decoded-instruction cache.
const maxDecoded = 1 << 16

// StopReason says why Run returned.
type StopReason int

const (
	// StopEntry means the hart reached a host entry point in supervisor
	// mode. Control belongs to the host kernel from here.
	StopEntry StopReason = iota

	// StopSupervisorTrap means a trap was taken while in supervisor mode.
	// The trap CSRs describe it.
	StopSupervisorTrap
)

// String implements fmt.Stringer.
func (r StopReason) String() string {
	switch r {
	case StopEntry:
		return "entry"
	case StopSupervisorTrap:
		return "supervisor trap"
	default:
		return fmt.Sprintf("StopReason(%d)", int(r))
	}
}

// Stop describes why Run returned.
type Stop struct {
	Reason StopReason
	PC     uint64
}

// exception is a synchronous trap raised while executing an instruction.
type exception struct {
	cause riscv.Cause
	tval  uint64
}

// Hart is a single RV64IM hart with supervisor and user modes.
//
// Machine mode is not modelled; the firmware it would run is provided by
// Machine in Go.
type Hart struct {
	// X holds the integer registers. X[0] is forced to zero on every
	// instruction.
	X [riscv.NumRegs]uint64

	// PC is the program counter.
	PC uint64

	// Priv is the current privilege mode.
	Priv riscv.Privilege

	sstatus  uint64
	sie      uint64
	sip      uint64
	stvec    uint64
	sscratch uint64
	sepc     uint64
	scause   uint64
	stval    uint64

	mem   *Memory
	mmu   *MMU
	clint *CLINT

	// decoded caches decoded instructions by physical address. It is only
	// dropped by FenceI.
	decoded map[uint64]inst

	entries map[uint64]struct{}
	instret uint64
}

func newHart(mem *Memory, clint *CLINT) *Hart {
	return &Hart{
		Priv:    riscv.Supervisor,
		mem:     mem,
		mmu:     newMMU(mem),
		clint:   clint,
		decoded: make(map[uint64]inst),
		entries: make(map[uint64]struct{}),
	}
}

// MMU returns the hart's MMU.
func (h *Hart) MMU() *MMU {
	return h.mmu
}

// SetEntryPoints registers supervisor addresses at which Run hands control
// back to the host.
func (h *Hart) SetEntryPoints(pcs ...uint64) {
	for _, pc := range pcs {
		h.entries[pc] = struct{}{}
	}
}

// FenceI drops every decoded instruction.
func (h *Hart) FenceI() {
	clear(h.decoded)
}

// Instret returns the number of instructions retired.
func (h *Hart) Instret() uint64 {
	return h.instret
}

// CSR reads a CSR on behalf of supervisor code running on the host.
func (h *Hart) CSR(num uint16) uint64 {
	v, ok := h.readCSR(num)
	if !ok {
		panic(fmt.Sprintf("unknown CSR %#x", num))
	}
	return v
}

// SetCSR writes a CSR on behalf of supervisor code running on the host.
func (h *Hart) SetCSR(num uint16, v uint64) {
	if !h.writeCSR(num, v) {
		panic(fmt.Sprintf("unknown CSR %#x", num))
	}
}

func (h *Hart) readCSR(num uint16) (uint64, bool) {
	switch num {
	case riscv.CSRSstatus:
		return h.sstatus, true
	case riscv.CSRSie:
		return h.sie, true
	case riscv.CSRSip:
		v := h.sip
		if h.clint.pending() {
			v |= riscv.SieSTIE
		}
		return v, true
	case riscv.CSRStvec:
		return h.stvec, true
	case riscv.CSRSscratch:
		return h.sscratch, true
	case riscv.CSRSepc:
		return h.sepc, true
	case riscv.CSRScause:
		return h.scause, true
	case riscv.CSRStval:
		return h.stval, true
	case riscv.CSRSatp:
		return h.mmu.Satp(), true
	case riscv.CSRCycle, riscv.CSRInstret:
		return h.instret, true
	case riscv.CSRTime:
		return h.clint.Time(), true
	}
	return 0, false
}

const (
	sstatusMask = riscv.SstatusSIE | riscv.SstatusSPIE | riscv.SstatusSPP | riscv.SstatusSUM
	sieMask     = riscv.SieSSIE | riscv.SieSTIE | riscv.SieSEIE
)

func (h *Hart) writeCSR(num uint16, v uint64) bool {
	switch num {
	case riscv.CSRSstatus:
		h.sstatus = v & sstatusMask
	case riscv.CSRSie:
		h.sie = v & sieMask
	case riscv.CSRSip:
		// Only the software interrupt bit is writable.
		h.sip = v & riscv.SieSSIE
	case riscv.CSRStvec:
		// Direct mode only.
		h.stvec = v &^ 3
	case riscv.CSRSscratch:
		h.sscratch = v
	case riscv.CSRSepc:
		h.sepc = v &^ 3
	case riscv.CSRScause:
		h.scause = v
	case riscv.CSRStval:
		h.stval = v
	case riscv.CSRSatp:
		// Unsupported modes leave satp unchanged.
		if m := riscv.SatpMode(v); m == 0 || m == riscv.SatpModeSv39 {
			h.mmu.SetSatp(v)
		}
	case riscv.CSRCycle, riscv.CSRTime, riscv.CSRInstret:
		return false
	default:
		return false
	}
	return true
}

// csrAccessible checks the privilege and read-only fields of a CSR number.
func (h *Hart) csrAccessible(num uint16, write bool) bool {
	if uint16(h.Priv) < (num>>8)&3 {
		return false
	}
	if write && num>>10 == 3 {
		return false
	}
	return true
}

// trap takes a trap. It reports a Stop if the trap was taken from
// supervisor mode.
func (h *Hart) trap(cause riscv.Cause, tval uint64) (Stop, bool) {
	from := h.Priv
	h.sepc = h.PC
	h.scause = uint64(cause)
	h.stval = tval
	if from == riscv.Supervisor {
		h.sstatus |= riscv.SstatusSPP
	} else {
		h.sstatus &^= riscv.SstatusSPP
	}
	if h.sstatus&riscv.SstatusSIE != 0 {
		h.sstatus |= riscv.SstatusSPIE
	} else {
		h.sstatus &^= riscv.SstatusSPIE
	}
	h.sstatus &^= riscv.SstatusSIE
	h.Priv = riscv.Supervisor
	h.PC = h.stvec
	if from == riscv.Supervisor {
		return Stop{Reason: StopSupervisorTrap, PC: h.sepc}, true
	}
	return Stop{}, false
}

// sret returns from a supervisor trap.
func (h *Hart) sret() {
	h.PC = h.sepc
	if h.sstatus&riscv.SstatusSPP != 0 {
		h.Priv = riscv.Supervisor
	} else {
		h.Priv = riscv.User
	}
	if h.sstatus&riscv.SstatusSPIE != 0 {
		h.sstatus |= riscv.SstatusSIE
	} else {
		h.sstatus &^= riscv.SstatusSIE
	}
	h.sstatus |= riscv.SstatusSPIE
	h.sstatus &^= riscv.SstatusSPP
}

// pendingInterrupt returns the interrupt to take before the next
// instruction, if any.
func (h *Hart) pendingInterrupt() (riscv.Cause, bool) {
	if h.Priv == riscv.Supervisor && h.sstatus&riscv.SstatusSIE == 0 {
		return 0, false
	}
	if h.sie&riscv.SieSTIE != 0 && h.clint.pending() {
		return riscv.SupervisorTimer, true
	}
	if h.sie&riscv.SieSSIE != 0 && h.sip&riscv.SieSSIE != 0 {
		return riscv.SupervisorSoft, true
	}
	return 0, false
}

// Run executes instructions until the hart reaches an entry point in
// supervisor mode or takes a trap from supervisor mode.
func (h *Hart) Run() Stop {
	for {
		if h.Priv == riscv.Supervisor {
			if _, ok := h.entries[h.PC]; ok {
				return Stop{Reason: StopEntry, PC: h.PC}
			}
		}
		if cause, ok := h.pendingInterrupt(); ok {
			if stop, ok := h.trap(cause, 0); ok {
				return stop
			}
			continue
		}
		if e := h.step(); e != nil {
			if stop, ok := h.trap(e.cause, e.tval); ok {
				return stop
			}
		} else {
			h.instret++
		}
		h.clint.tick()
	}
}

func (h *Hart) sum() bool {
	return h.sstatus&riscv.SstatusSUM != 0
}

func (h *Hart) fetch() (inst, *exception) {
	if h.PC&3 != 0 {
		return inst{}, &exception{riscv.InstructionMisaligned, h.PC}
	}
	pa, cause, ok := h.mmu.Translate(h.PC, Fetch, h.Priv, h.sum())
	if !ok {
		return inst{}, &exception{cause, h.PC}
	}
	if in, ok := h.decoded[pa]; ok {
		return in, nil
	}
	w, ok := h.mem.load(pa, 4)
	if !ok {
		return inst{}, &exception{riscv.InstructionFault, h.PC}
	}
	in := decode(uint32(w))
	if len(h.decoded) >= maxDecoded {
		clear(h.decoded)
	}
	h.decoded[pa] = in
	return in, nil
}

// load reads n bytes at va. Accesses that cross a page are split.
func (h *Hart) load(va, n uint64) (uint64, *exception) {
	if va&riscv.PageMask+n > riscv.PageSize {
		var v uint64
		for i := uint64(0); i < n; i++ {
			b, e := h.load(va+i, 1)
			if e != nil {
				return 0, e
			}
			v |= b << (8 * i)
		}
		return v, nil
	}
	pa, cause, ok := h.mmu.Translate(va, Load, h.Priv, h.sum())
	if !ok {
		return 0, &exception{cause, va}
	}
	v, ok := h.mem.load(pa, n)
	if !ok {
		return 0, &exception{riscv.LoadFault, va}
	}
	return v, nil
}

// store writes n bytes at va. Accesses that cross a page are split.
func (h *Hart) store(va, n, v uint64) *exception {
	if va&riscv.PageMask+n > riscv.PageSize {
		// Translate every byte first so a fault leaves memory untouched.
		for i := uint64(0); i < n; i++ {
			if _, cause, ok := h.mmu.Translate(va+i, Store, h.Priv, h.sum()); !ok {
				return &exception{cause, va + i}
			}
		}
		for i := uint64(0); i < n; i++ {
			if e := h.store(va+i, 1, v>>(8*i)); e != nil {
				return e
			}
		}
		return nil
	}
	pa, cause, ok := h.mmu.Translate(va, Store, h.Priv, h.sum())
	if !ok {
		return &exception{cause, va}
	}
	if !h.mem.store(pa, n, v) {
		return &exception{riscv.StoreFault, va}
	}
	return nil
}
