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

// Package rvasm is a small RV64IM assembler.
//
// A Program is built by calling one method per instruction. Labels may be
// referenced before they are defined; Link resolves them once the layout is
// known. Text is placed at the link base and data on the next page.
package rvasm

import (
	"errors"
	"fmt"
	"math/bits"

	"rvos.dev/rvos/pkg/riscv"
)

type section int

const (
	sectionText section = iota
	sectionData
)

type symbol struct {
	sec section
	off uint64
}

type fixupKind int

const (
	fixBranch fixupKind = iota
	fixJAL
	fixPCRel
)

type fixup struct {
	kind   fixupKind
	at     int
	label  string
	funct3 uint32
	rd     int
	rs1    int
	rs2    int
}

// Program is an assembly program under construction.
type Program struct {
	text    []uint32
	data    []byte
	symbols map[string]symbol
	fixups  []fixup
	errs    []error
}

// New returns an empty program.
func New() *Program {
	return &Program{symbols: make(map[string]symbol)}
}

func (p *Program) errorf(format string, v ...any) {
	p.errs = append(p.errs, fmt.Errorf(format, v...))
}

func (p *Program) define(name string, s symbol) {
	if _, ok := p.symbols[name]; ok {
		p.errorf("label %q redefined", name)
		return
	}
	p.symbols[name] = s
}

func (p *Program) emit(w uint32) {
	p.text = append(p.text, w)
}

// Label defines name at the current text position.
func (p *Program) Label(name string) {
	p.define(name, symbol{sectionText, uint64(len(p.text)) * 4})
}

// Word emits a raw instruction word.
func (p *Program) Word(w uint32) {
	p.emit(w)
}

// Len returns the number of instructions emitted so far.
func (p *Program) Len() int {
	return len(p.text)
}

// Asciz defines name in the data section as s followed by a NUL byte.
func (p *Program) Asciz(name, s string) {
	p.Bytes(name, append([]byte(s), 0))
}

// Bytes defines name in the data section holding b.
func (p *Program) Bytes(name string, b []byte) {
	p.define(name, symbol{sectionData, uint64(len(p.data))})
	p.data = append(p.data, b...)
}

// Space defines name as n zero bytes in the data section, aligned to 8.
func (p *Program) Space(name string, n int) {
	for len(p.data)%8 != 0 {
		p.data = append(p.data, 0)
	}
	p.Bytes(name, make([]byte, n))
}

// Dwords defines name as a sequence of 64-bit words, aligned to 8.
func (p *Program) Dwords(name string, vs ...uint64) {
	p.Space(name, 8*len(vs))
	off := p.symbols[name].off
	for i, v := range vs {
		for b := 0; b < 8; b++ {
			p.data[off+uint64(8*i+b)] = byte(v >> (8 * b))
		}
	}
}

func (p *Program) checkReg(regs ...int) {
	for _, r := range regs {
		if r < 0 || r >= riscv.NumRegs {
			p.errorf("instruction %d: bad register x%d", len(p.text), r)
		}
	}
}

func (p *Program) iType(opcode, funct3 uint32, rd, rs1 int, imm int64) {
	p.checkReg(rd, rs1)
	if !fitsSigned(imm, 12) {
		p.errorf("instruction %d: immediate %d does not fit in 12 bits", len(p.text), imm)
	}
	p.emit(IType(opcode, funct3, rd, rs1, imm))
}

func (p *Program) sType(funct3 uint32, rs2, rs1 int, imm int64) {
	p.checkReg(rs1, rs2)
	if !fitsSigned(imm, 12) {
		p.errorf("instruction %d: offset %d does not fit in 12 bits", len(p.text), imm)
	}
	p.emit(SType(opStore, funct3, rs1, rs2, imm))
}

func (p *Program) rType(opcode, funct3, funct7 uint32, rd, rs1, rs2 int) {
	p.checkReg(rd, rs1, rs2)
	p.emit(RType(opcode, funct3, funct7, rd, rs1, rs2))
}

func (p *Program) shift(opcode, funct3, hi uint32, rd, rs1 int, sh, max int64) {
	if sh < 0 || sh > max {
		p.errorf("instruction %d: shift amount %d out of range", len(p.text), sh)
	}
	p.checkReg(rd, rs1)
	p.emit(IType(opcode, funct3, rd, rs1, int64(hi)<<6|sh))
}

func (p *Program) branch(funct3 uint32, rs1, rs2 int, label string) {
	p.checkReg(rs1, rs2)
	p.fixups = append(p.fixups, fixup{kind: fixBranch, at: len(p.text), label: label, funct3: funct3, rs1: rs1, rs2: rs2})
	p.emit(0)
}

// Lui emits lui rd, imm20.
func (p *Program) Lui(rd int, imm20 int64) { p.checkReg(rd); p.emit(UType(opLUI, rd, imm20)) }

// Auipc emits auipc rd, imm20.
func (p *Program) Auipc(rd int, imm20 int64) { p.checkReg(rd); p.emit(UType(opAUIPC, rd, imm20)) }

// Jal emits jal rd, label.
func (p *Program) Jal(rd int, label string) {
	p.checkReg(rd)
	p.fixups = append(p.fixups, fixup{kind: fixJAL, at: len(p.text), label: label, rd: rd})
	p.emit(0)
}

// Jalr emits jalr rd, imm(rs1).
func (p *Program) Jalr(rd, rs1 int, imm int64) { p.iType(opJALR, 0, rd, rs1, imm) }

// Branches.
func (p *Program) Beq(rs1, rs2 int, label string)  { p.branch(0, rs1, rs2, label) }
func (p *Program) Bne(rs1, rs2 int, label string)  { p.branch(1, rs1, rs2, label) }
func (p *Program) Blt(rs1, rs2 int, label string)  { p.branch(4, rs1, rs2, label) }
func (p *Program) Bge(rs1, rs2 int, label string)  { p.branch(5, rs1, rs2, label) }
func (p *Program) Bltu(rs1, rs2 int, label string) { p.branch(6, rs1, rs2, label) }
func (p *Program) Bgeu(rs1, rs2 int, label string) { p.branch(7, rs1, rs2, label) }
func (p *Program) Beqz(rs int, label string)       { p.Beq(rs, riscv.Zero, label) }
func (p *Program) Bnez(rs int, label string)       { p.Bne(rs, riscv.Zero, label) }
func (p *Program) Bltz(rs int, label string)       { p.Blt(rs, riscv.Zero, label) }

// Loads: rd = mem[rs1+imm].
func (p *Program) Lb(rd, rs1 int, imm int64)  { p.iType(opLoad, 0, rd, rs1, imm) }
func (p *Program) Lh(rd, rs1 int, imm int64)  { p.iType(opLoad, 1, rd, rs1, imm) }
func (p *Program) Lw(rd, rs1 int, imm int64)  { p.iType(opLoad, 2, rd, rs1, imm) }
func (p *Program) Ld(rd, rs1 int, imm int64)  { p.iType(opLoad, 3, rd, rs1, imm) }
func (p *Program) Lbu(rd, rs1 int, imm int64) { p.iType(opLoad, 4, rd, rs1, imm) }
func (p *Program) Lhu(rd, rs1 int, imm int64) { p.iType(opLoad, 5, rd, rs1, imm) }
func (p *Program) Lwu(rd, rs1 int, imm int64) { p.iType(opLoad, 6, rd, rs1, imm) }

// Stores: mem[rs1+imm] = rs2.
func (p *Program) Sb(rs2, rs1 int, imm int64) { p.sType(0, rs2, rs1, imm) }
func (p *Program) Sh(rs2, rs1 int, imm int64) { p.sType(1, rs2, rs1, imm) }
func (p *Program) Sw(rs2, rs1 int, imm int64) { p.sType(2, rs2, rs1, imm) }
func (p *Program) Sd(rs2, rs1 int, imm int64) { p.sType(3, rs2, rs1, imm) }

// Register-immediate arithmetic.
func (p *Program) Addi(rd, rs1 int, imm int64)  { p.iType(opImm, 0, rd, rs1, imm) }
func (p *Program) Slti(rd, rs1 int, imm int64)  { p.iType(opImm, 2, rd, rs1, imm) }
func (p *Program) Sltiu(rd, rs1 int, imm int64) { p.iType(opImm, 3, rd, rs1, imm) }
func (p *Program) Xori(rd, rs1 int, imm int64)  { p.iType(opImm, 4, rd, rs1, imm) }
func (p *Program) Ori(rd, rs1 int, imm int64)   { p.iType(opImm, 6, rd, rs1, imm) }
func (p *Program) Andi(rd, rs1 int, imm int64)  { p.iType(opImm, 7, rd, rs1, imm) }
func (p *Program) Addiw(rd, rs1 int, imm int64) { p.iType(opImm32, 0, rd, rs1, imm) }
func (p *Program) Slli(rd, rs1 int, sh int64)   { p.shift(opImm, 1, 0x00, rd, rs1, sh, 63) }
func (p *Program) Srli(rd, rs1 int, sh int64)   { p.shift(opImm, 5, 0x00, rd, rs1, sh, 63) }
func (p *Program) Srai(rd, rs1 int, sh int64)   { p.shift(opImm, 5, 0x10, rd, rs1, sh, 63) }

// Register-register arithmetic.
func (p *Program) Add(rd, rs1, rs2 int)   { p.rType(opOp, 0, 0x00, rd, rs1, rs2) }
func (p *Program) Sub(rd, rs1, rs2 int)   { p.rType(opOp, 0, 0x20, rd, rs1, rs2) }
func (p *Program) Sll(rd, rs1, rs2 int)   { p.rType(opOp, 1, 0x00, rd, rs1, rs2) }
func (p *Program) Slt(rd, rs1, rs2 int)   { p.rType(opOp, 2, 0x00, rd, rs1, rs2) }
func (p *Program) Sltu(rd, rs1, rs2 int)  { p.rType(opOp, 3, 0x00, rd, rs1, rs2) }
func (p *Program) Xor(rd, rs1, rs2 int)   { p.rType(opOp, 4, 0x00, rd, rs1, rs2) }
func (p *Program) Srl(rd, rs1, rs2 int)   { p.rType(opOp, 5, 0x00, rd, rs1, rs2) }
func (p *Program) Sra(rd, rs1, rs2 int)   { p.rType(opOp, 5, 0x20, rd, rs1, rs2) }
func (p *Program) Or(rd, rs1, rs2 int)    { p.rType(opOp, 6, 0x00, rd, rs1, rs2) }
func (p *Program) And(rd, rs1, rs2 int)   { p.rType(opOp, 7, 0x00, rd, rs1, rs2) }
func (p *Program) Addw(rd, rs1, rs2 int)  { p.rType(opOp32, 0, 0x00, rd, rs1, rs2) }
func (p *Program) Subw(rd, rs1, rs2 int)  { p.rType(opOp32, 0, 0x20, rd, rs1, rs2) }
func (p *Program) Mul(rd, rs1, rs2 int)   { p.rType(opOp, 0, 0x01, rd, rs1, rs2) }
func (p *Program) Mulh(rd, rs1, rs2 int)  { p.rType(opOp, 1, 0x01, rd, rs1, rs2) }
func (p *Program) Mulhu(rd, rs1, rs2 int) { p.rType(opOp, 3, 0x01, rd, rs1, rs2) }
func (p *Program) Div(rd, rs1, rs2 int)   { p.rType(opOp, 4, 0x01, rd, rs1, rs2) }
func (p *Program) Divu(rd, rs1, rs2 int)  { p.rType(opOp, 5, 0x01, rd, rs1, rs2) }
func (p *Program) Rem(rd, rs1, rs2 int)   { p.rType(opOp, 6, 0x01, rd, rs1, rs2) }
func (p *Program) Remu(rd, rs1, rs2 int)  { p.rType(opOp, 7, 0x01, rd, rs1, rs2) }
func (p *Program) Mulw(rd, rs1, rs2 int)  { p.rType(opOp32, 0, 0x01, rd, rs1, rs2) }
func (p *Program) Divw(rd, rs1, rs2 int)  { p.rType(opOp32, 4, 0x01, rd, rs1, rs2) }
func (p *Program) Remw(rd, rs1, rs2 int)  { p.rType(opOp32, 6, 0x01, rd, rs1, rs2) }

// System instructions.
func (p *Program) Fence()     { p.emit(0x0ff0000f) }
func (p *Program) FenceI()    { p.emit(0x0000100f) }
func (p *Program) Ecall()     { p.emit(0x00000073) }
func (p *Program) Ebreak()    { p.emit(0x00100073) }
func (p *Program) Sret()      { p.emit(0x10200073) }
func (p *Program) Wfi()       { p.emit(0x10500073) }
func (p *Program) SfenceVMA() { p.emit(RType(opSystem, 0, 0x09, 0, 0, 0)) }

// CSR instructions.
func (p *Program) Csrrw(rd int, csr uint16, rs1 int) {
	p.checkReg(rd, rs1)
	p.emit(IType(opSystem, 1, rd, rs1, int64(csr)))
}

func (p *Program) Csrrs(rd int, csr uint16, rs1 int) {
	p.checkReg(rd, rs1)
	p.emit(IType(opSystem, 2, rd, rs1, int64(csr)))
}

func (p *Program) Csrrc(rd int, csr uint16, rs1 int) {
	p.checkReg(rd, rs1)
	p.emit(IType(opSystem, 3, rd, rs1, int64(csr)))
}

// Csrr reads csr into rd.
func (p *Program) Csrr(rd int, csr uint16) { p.Csrrs(rd, csr, riscv.Zero) }

// Csrw writes rs to csr.
func (p *Program) Csrw(csr uint16, rs int) { p.Csrrw(riscv.Zero, csr, rs) }

// Pseudo-instructions.
func (p *Program) Nop()                { p.Addi(riscv.Zero, riscv.Zero, 0) }
func (p *Program) Mv(rd, rs int)       { p.Addi(rd, rs, 0) }
func (p *Program) Not(rd, rs int)      { p.Xori(rd, rs, -1) }
func (p *Program) Neg(rd, rs int)      { p.Sub(rd, riscv.Zero, rs) }
func (p *Program) J(label string)      { p.Jal(riscv.Zero, label) }
func (p *Program) Call(label string)   { p.Jal(riscv.RA, label) }
func (p *Program) Jr(rs int)           { p.Jalr(riscv.Zero, rs, 0) }
func (p *Program) Ret()                { p.Jr(riscv.RA) }
func (p *Program) Seqz(rd, rs int)     { p.Sltiu(rd, rs, 1) }
func (p *Program) Snez(rd, rs int)     { p.Sltu(rd, riscv.Zero, rs) }

// La loads the address of label into rd.
func (p *Program) La(rd int, label string) {
	p.checkReg(rd)
	p.fixups = append(p.fixups, fixup{kind: fixPCRel, at: len(p.text), label: label, rd: rd})
	p.emit(0)
	p.emit(0)
}

// Li loads an arbitrary 64-bit constant into rd.
func (p *Program) Li(rd int, v int64) {
	if v == int64(int32(v)) {
		hi := (v + 0x800) >> 12
		lo := v - hi<<12
		if hi == 0 {
			p.Addi(rd, riscv.Zero, lo)
			return
		}
		p.Lui(rd, hi)
		if lo != 0 {
			p.Addiw(rd, rd, lo)
		}
		return
	}

	lo := int64(uint64(v)<<52) >> 52
	hi := (v - lo) >> 12
	sh := int64(12)
	tz := bits.TrailingZeros64(uint64(hi))
	hi >>= tz
	sh += int64(tz)
	p.Li(rd, hi)
	p.Slli(rd, rd, sh)
	if lo != 0 {
		p.Addi(rd, rd, lo)
	}
}

// Image is a linked program.
type Image struct {
	TextAddr uint64
	Text     []byte
	DataAddr uint64
	Data     []byte
	Entry    uint64
	Symbols  map[string]uint64
}

// Link lays the program out with text at base and resolves every label.
// The entry point is the label "_start" if defined, else base.
func (p *Program) Link(base uint64) (*Image, error) {
	if len(p.errs) != 0 {
		return nil, errors.Join(p.errs...)
	}
	img := &Image{
		TextAddr: base,
		DataAddr: alignUp(base+uint64(len(p.text))*4, riscv.PageSize),
		Data:     append([]byte(nil), p.data...),
		Entry:    base,
		Symbols:  make(map[string]uint64, len(p.symbols)),
	}
	for name, s := range p.symbols {
		if s.sec == sectionText {
			img.Symbols[name] = img.TextAddr + s.off
		} else {
			img.Symbols[name] = img.DataAddr + s.off
		}
	}
	if start, ok := img.Symbols["_start"]; ok {
		img.Entry = start
	}

	text := append([]uint32(nil), p.text...)
	var errs []error
	for _, f := range p.fixups {
		target, ok := img.Symbols[f.label]
		if !ok {
			errs = append(errs, fmt.Errorf("undefined label %q", f.label))
			continue
		}
		pc := base + uint64(f.at)*4
		off := int64(target - pc)
		switch f.kind {
		case fixBranch:
			if !fitsSigned(off, 13) {
				errs = append(errs, fmt.Errorf("branch to %q out of range", f.label))
				continue
			}
			text[f.at] = BType(f.funct3, f.rs1, f.rs2, off)
		case fixJAL:
			if !fitsSigned(off, 21) {
				errs = append(errs, fmt.Errorf("jump to %q out of range", f.label))
				continue
			}
			text[f.at] = JType(f.rd, off)
		case fixPCRel:
			if !fitsSigned(off, 32) {
				errs = append(errs, fmt.Errorf("address of %q out of range", f.label))
				continue
			}
			hi := (off + 0x800) >> 12
			lo := off - hi<<12
			text[f.at] = UType(opAUIPC, f.rd, hi)
			text[f.at+1] = IType(opImm, 0, f.rd, f.rd, lo)
		}
	}
	if len(errs) != 0 {
		return nil, errors.Join(errs...)
	}

	img.Text = make([]byte, 4*len(text))
	for i, w := range text {
		img.Text[4*i] = byte(w)
		img.Text[4*i+1] = byte(w >> 8)
		img.Text[4*i+2] = byte(w >> 16)
		img.Text[4*i+3] = byte(w >> 24)
	}
	return img, nil
}

func alignUp(v, align uint64) uint64 {
	return (v + align - 1) &^ (align - 1)
}
