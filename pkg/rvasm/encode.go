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

package rvasm

// Opcodes.
const (
	opLoad    = 0x03
	opMiscMem = 0x0f
	opImm     = 0x13
	opAUIPC   = 0x17
	opImm32   = 0x1b
	opStore   = 0x23
	opOp      = 0x33
	opLUI     = 0x37
	opOp32    = 0x3b
	opBranch  = 0x63
	opJALR    = 0x67
	opJAL     = 0x6f
	opSystem  = 0x73
)

// RType encodes an R-type instruction.
func RType(opcode, funct3, funct7 uint32, rd, rs1, rs2 int) uint32 {
	return funct7<<25 | uint32(rs2)<<20 | uint32(rs1)<<15 | funct3<<12 | uint32(rd)<<7 | opcode
}

// IType encodes an I-type instruction. imm is truncated to 12 bits.
func IType(opcode, funct3 uint32, rd, rs1 int, imm int64) uint32 {
	return uint32(imm&0xfff)<<20 | uint32(rs1)<<15 | funct3<<12 | uint32(rd)<<7 | opcode
}

// SType encodes an S-type instruction.
func SType(opcode, funct3 uint32, rs1, rs2 int, imm int64) uint32 {
	i := uint32(imm & 0xfff)
	return (i>>5)<<25 | uint32(rs2)<<20 | uint32(rs1)<<15 | funct3<<12 | (i&0x1f)<<7 | opcode
}

// BType encodes a branch with a byte offset.
func BType(funct3 uint32, rs1, rs2 int, off int64) uint32 {
	i := uint32(off & 0x1fff)
	return (i>>12&1)<<31 | (i>>5&0x3f)<<25 | uint32(rs2)<<20 | uint32(rs1)<<15 |
		funct3<<12 | (i>>1&0xf)<<8 | (i>>11&1)<<7 | opBranch
}

// UType encodes LUI or AUIPC. imm holds the upper 20 bits.
func UType(opcode uint32, rd int, imm int64) uint32 {
	return uint32(imm&0xfffff)<<12 | uint32(rd)<<7 | opcode
}

// JType encodes JAL with a byte offset.
func JType(rd int, off int64) uint32 {
	i := uint32(off & 0x1fffff)
	return (i>>20&1)<<31 | (i>>1&0x3ff)<<21 | (i>>11&1)<<20 | (i>>12&0xff)<<12 | uint32(rd)<<7 | opJAL
}

// fitsSigned returns true iff v fits in an n-bit two's complement field.
func fitsSigned(v int64, n uint) bool {
	lim := int64(1) << (n - 1)
	return -lim <= v && v < lim
}
