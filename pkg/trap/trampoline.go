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

package trap

import (
	"fmt"

	"rvos.dev/rvos/pkg/riscv"
	"rvos.dev/rvos/pkg/rvasm"
)

// Trampoline symbols.
const (
	AllTrapsSymbol = "__alltraps"
	RestoreSymbol  = "__restore"
)

// Trampoline is the assembled trampoline page. It is linked at
// riscv.Trampoline and mapped there in every address space, so it keeps
// running across the satp switch.
type Trampoline struct {
	// Code is the machine code, at most one page.
	Code []byte

	// AllTraps is the trap entry. stvec points here while a task runs.
	AllTraps uint64

	// Restore returns to user mode. It takes the trap context address in
	// a0 and the user address space token in a1.
	Restore uint64
}

// assemble emits the trampoline. sp points at the trap context for the
// whole of __alltraps and __restore; sscratch holds the trap context
// address while the task runs.
func assemble(p *rvasm.Program) {
	p.Label(AllTrapsSymbol)
	p.Csrrw(riscv.SP, riscv.CSRSscratch, riscv.SP)
	// General purpose registers except sp (saved below) and x0.
	p.Sd(riscv.RA, riscv.SP, 1*8)
	for r := riscv.GP; r < riscv.NumRegs; r++ {
		p.Sd(r, riscv.SP, int64(r)*8)
	}
	// t0-t2 are saved and free to use.
	p.Csrr(riscv.T0, riscv.CSRSstatus)
	p.Csrr(riscv.T1, riscv.CSRSepc)
	p.Sd(riscv.T0, riscv.SP, sstatusOffset)
	p.Sd(riscv.T1, riscv.SP, sepcOffset)
	p.Csrr(riscv.T2, riscv.CSRSscratch)
	p.Sd(riscv.T2, riscv.SP, riscv.SP*8)
	p.Ld(riscv.T0, riscv.SP, kernelSatpOffset)
	p.Ld(riscv.T1, riscv.SP, trapHandlerOffset)
	p.Ld(riscv.SP, riscv.SP, kernelSpOffset)
	p.Csrw(riscv.CSRSatp, riscv.T0)
	p.SfenceVMA()
	p.Jr(riscv.T1)

	p.Label(RestoreSymbol)
	p.Csrw(riscv.CSRSatp, riscv.A1)
	p.SfenceVMA()
	p.Csrw(riscv.CSRSscratch, riscv.A0)
	p.Mv(riscv.SP, riscv.A0)
	p.Ld(riscv.T0, riscv.SP, sstatusOffset)
	p.Ld(riscv.T1, riscv.SP, sepcOffset)
	p.Csrw(riscv.CSRSstatus, riscv.T0)
	p.Csrw(riscv.CSRSepc, riscv.T1)
	p.Ld(riscv.RA, riscv.SP, 1*8)
	for r := riscv.GP; r < riscv.NumRegs; r++ {
		p.Ld(r, riscv.SP, int64(r)*8)
	}
	p.Ld(riscv.SP, riscv.SP, riscv.SP*8)
	p.Sret()
}

// NewTrampoline assembles the trampoline.
func NewTrampoline() (*Trampoline, error) {
	p := rvasm.New()
	assemble(p)
	img, err := p.Link(riscv.Trampoline)
	if err != nil {
		return nil, fmt.Errorf("assembling trampoline: %w", err)
	}
	if len(img.Text) > riscv.PageSize {
		return nil, fmt.Errorf("trampoline is %d bytes, more than a page", len(img.Text))
	}
	return &Trampoline{
		Code:     img.Text,
		AllTraps: img.Symbols[AllTrapsSymbol],
		Restore:  img.Symbols[RestoreSymbol],
	}, nil
}

// Install copies the trampoline into page, the physical page mapped at
// riscv.Trampoline. The rest of page is zeroed.
func (t *Trampoline) Install(page []byte) {
	if len(page) != riscv.PageSize {
		panic(fmt.Sprintf("trampoline page of %d bytes", len(page)))
	}
	clear(page[copy(page, t.Code):])
}
