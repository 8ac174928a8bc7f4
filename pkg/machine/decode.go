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

// op identifies a decoded instruction.
type op uint8

const (
	opIllegal op = iota
	opLUI
	opAUIPC
	opJAL
	opJALR
	opBEQ
	opBNE
	opBLT
	opBGE
	opBLTU
	opBGEU
	opLB
	opLH
	opLW
	opLD
	opLBU
	opLHU
	opLWU
	opSB
	opSH
	opSW
	opSD
	opADDI
	opSLTI
	opSLTIU
	opXORI
	opORI
	opANDI
	opSLLI
	opSRLI
	opSRAI
	opADDIW
	opSLLIW
	opSRLIW
	opSRAIW
	opADD
	opSUB
	opSLL
	opSLT
	opSLTU
	opXOR
	opSRL
	opSRA
	opOR
	opAND
	opADDW
	opSUBW
	opSLLW
	opSRLW
	opSRAW
	opMUL
	opMULH
	opMULHSU
	opMULHU
	opDIV
	opDIVU
	opREM
	opREMU
	opMULW
	opDIVW
	opDIVUW
	opREMW
	opREMUW
	opFENCE
	opFENCEI
	opECALL
	opEBREAK
	opSRET
	opWFI
	opSFENCEVMA
	opCSRRW
	opCSRRS
	opCSRRC
	opCSRRWI
	opCSRRSI
	opCSRRCI
)

// inst is a decoded instruction.
type inst struct {
	op  op
	rd  uint8
	rs1 uint8
	rs2 uint8
	imm int64
	csr uint16
	raw uint32
}

func bitsOf(w uint32, hi, lo uint) uint32 {
	return (w >> lo) & (1<<(hi-lo+1) - 1)
}

// sext sign-extends the low n bits of v.
func sext(v uint64, n uint) int64 {
	shift := 64 - n
	return int64(v<<shift) >> shift
}

func immI(w uint32) int64 { return int64(int32(w) >> 20) }

func immS(w uint32) int64 {
	return sext(uint64(bitsOf(w, 31, 25)<<5|bitsOf(w, 11, 7)), 12)
}

func immB(w uint32) int64 {
	v := bitsOf(w, 31, 31)<<12 | bitsOf(w, 7, 7)<<11 | bitsOf(w, 30, 25)<<5 | bitsOf(w, 11, 8)<<1
	return sext(uint64(v), 13)
}

func immU(w uint32) int64 { return int64(int32(w & 0xfffff000)) }

func immJ(w uint32) int64 {
	v := bitsOf(w, 31, 31)<<20 | bitsOf(w, 19, 12)<<12 | bitsOf(w, 20, 20)<<11 | bitsOf(w, 30, 21)<<1
	return sext(uint64(v), 21)
}

// decode decodes one 32-bit instruction. Anything outside RV64IM, Zicsr,
// Zifencei and the supervisor instructions decodes as opIllegal.
func decode(w uint32) inst {
	in := inst{
		rd:  uint8(bitsOf(w, 11, 7)),
		rs1: uint8(bitsOf(w, 19, 15)),
		rs2: uint8(bitsOf(w, 24, 20)),
		raw: w,
	}
	funct3 := bitsOf(w, 14, 12)
	funct7 := bitsOf(w, 31, 25)

	// Compressed encodings have low bits other than 0b11.
	if w&0b11 != 0b11 {
		return in
	}

	switch w & 0x7f {
	case 0x37:
		in.op, in.imm = opLUI, immU(w)
	case 0x17:
		in.op, in.imm = opAUIPC, immU(w)
	case 0x6f:
		in.op, in.imm = opJAL, immJ(w)
	case 0x67:
		if funct3 == 0 {
			in.op, in.imm = opJALR, immI(w)
		}
	case 0x63:
		in.imm = immB(w)
		switch funct3 {
		case 0:
			in.op = opBEQ
		case 1:
			in.op = opBNE
		case 4:
			in.op = opBLT
		case 5:
			in.op = opBGE
		case 6:
			in.op = opBLTU
		case 7:
			in.op = opBGEU
		}
	case 0x03:
		in.imm = immI(w)
		switch funct3 {
		case 0:
			in.op = opLB
		case 1:
			in.op = opLH
		case 2:
			in.op = opLW
		case 3:
			in.op = opLD
		case 4:
			in.op = opLBU
		case 5:
			in.op = opLHU
		case 6:
			in.op = opLWU
		}
	case 0x23:
		in.imm = immS(w)
		switch funct3 {
		case 0:
			in.op = opSB
		case 1:
			in.op = opSH
		case 2:
			in.op = opSW
		case 3:
			in.op = opSD
		}
	case 0x13:
		in.imm = immI(w)
		switch funct3 {
		case 0:
			in.op = opADDI
		case 2:
			in.op = opSLTI
		case 3:
			in.op = opSLTIU
		case 4:
			in.op = opXORI
		case 6:
			in.op = opORI
		case 7:
			in.op = opANDI
		case 1:
			if bitsOf(w, 31, 26) == 0 {
				in.op, in.imm = opSLLI, int64(bitsOf(w, 25, 20))
			}
		case 5:
			switch bitsOf(w, 31, 26) {
			case 0x00:
				in.op, in.imm = opSRLI, int64(bitsOf(w, 25, 20))
			case 0x10:
				in.op, in.imm = opSRAI, int64(bitsOf(w, 25, 20))
			}
		}
	case 0x1b:
		in.imm = immI(w)
		switch {
		case funct3 == 0:
			in.op = opADDIW
		case funct3 == 1 && funct7 == 0:
			in.op, in.imm = opSLLIW, int64(in.rs2)
		case funct3 == 5 && funct7 == 0:
			in.op, in.imm = opSRLIW, int64(in.rs2)
		case funct3 == 5 && funct7 == 0x20:
			in.op, in.imm = opSRAIW, int64(in.rs2)
		}
	case 0x33:
		in.op = decodeOp(funct3, funct7)
	case 0x3b:
		in.op = decodeOp32(funct3, funct7)
	case 0x0f:
		switch funct3 {
		case 0:
			in.op = opFENCE
		case 1:
			in.op = opFENCEI
		}
	case 0x73:
		decodeSystem(w, funct3, funct7, &in)
	}
	return in
}

var opTable = map[[2]uint32]op{
	{0, 0x00}: opADD,
	{0, 0x20}: opSUB,
	{1, 0x00}: opSLL,
	{2, 0x00}: opSLT,
	{3, 0x00}: opSLTU,
	{4, 0x00}: opXOR,
	{5, 0x00}: opSRL,
	{5, 0x20}: opSRA,
	{6, 0x00}: opOR,
	{7, 0x00}: opAND,
	{0, 0x01}: opMUL,
	{1, 0x01}: opMULH,
	{2, 0x01}: opMULHSU,
	{3, 0x01}: opMULHU,
	{4, 0x01}: opDIV,
	{5, 0x01}: opDIVU,
	{6, 0x01}: opREM,
	{7, 0x01}: opREMU,
}

var op32Table = map[[2]uint32]op{
	{0, 0x00}: opADDW,
	{0, 0x20}: opSUBW,
	{1, 0x00}: opSLLW,
	{5, 0x00}: opSRLW,
	{5, 0x20}: opSRAW,
	{0, 0x01}: opMULW,
	{4, 0x01}: opDIVW,
	{5, 0x01}: opDIVUW,
	{6, 0x01}: opREMW,
	{7, 0x01}: opREMUW,
}

func decodeOp(funct3, funct7 uint32) op {
	return opTable[[2]uint32{funct3, funct7}]
}

func decodeOp32(funct3, funct7 uint32) op {
	return op32Table[[2]uint32{funct3, funct7}]
}

func decodeSystem(w, funct3, funct7 uint32, in *inst) {
	in.csr = uint16(bitsOf(w, 31, 20))
	switch funct3 {
	case 0:
		if in.rd != 0 {
			return
		}
		switch {
		case w == 0x00000073:
			in.op = opECALL
		case w == 0x00100073:
			in.op = opEBREAK
		case w == 0x10200073:
			in.op = opSRET
		case w == 0x10500073:
			in.op = opWFI
		case funct7 == 0x09:
			in.op = opSFENCEVMA
		}
	case 1:
		in.op = opCSRRW
	case 2:
		in.op = opCSRRS
	case 3:
		in.op = opCSRRC
	case 5:
		in.op = opCSRRWI
	case 6:
		in.op = opCSRRSI
	case 7:
		in.op = opCSRRCI
	}
}
