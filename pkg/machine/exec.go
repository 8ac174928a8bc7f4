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
	"math"
	"math/bits"

	"rvos.dev/rvos/pkg/riscv"
)

// step executes one instruction.
func (h *Hart) step() *exception {
	in, e := h.fetch()
	if e != nil {
		return e
	}

	x := &h.X
	rs1, rs2 := x[in.rs1], x[in.rs2]
	next := h.PC + 4
	var rd uint64
	writeRd := true

	illegal := func() *exception {
		return &exception{riscv.IllegalInstruction, uint64(in.raw)}
	}

	switch in.op {
	case opLUI:
		rd = uint64(in.imm)
	case opAUIPC:
		rd = h.PC + uint64(in.imm)
	case opJAL:
		rd = next
		next = h.PC + uint64(in.imm)
	case opJALR:
		rd = next
		next = (rs1 + uint64(in.imm)) &^ 1

	case opBEQ, opBNE, opBLT, opBGE, opBLTU, opBGEU:
		writeRd = false
		var taken bool
		switch in.op {
		case opBEQ:
			taken = rs1 == rs2
		case opBNE:
			taken = rs1 != rs2
		case opBLT:
			taken = int64(rs1) < int64(rs2)
		case opBGE:
			taken = int64(rs1) >= int64(rs2)
		case opBLTU:
			taken = rs1 < rs2
		case opBGEU:
			taken = rs1 >= rs2
		}
		if taken {
			next = h.PC + uint64(in.imm)
		}

	case opLB, opLH, opLW, opLD, opLBU, opLHU, opLWU:
		v, e := h.load(rs1+uint64(in.imm), accessSize(in.op))
		if e != nil {
			return e
		}
		switch in.op {
		case opLB:
			v = uint64(int64(int8(v)))
		case opLH:
			v = uint64(int64(int16(v)))
		case opLW:
			v = uint64(int64(int32(v)))
		}
		rd = v

	case opSB, opSH, opSW, opSD:
		writeRd = false
		if e := h.store(rs1+uint64(in.imm), accessSize(in.op), rs2); e != nil {
			return e
		}

	case opADDI:
		rd = rs1 + uint64(in.imm)
	case opSLTI:
		rd = b2u(int64(rs1) < in.imm)
	case opSLTIU:
		rd = b2u(rs1 < uint64(in.imm))
	case opXORI:
		rd = rs1 ^ uint64(in.imm)
	case opORI:
		rd = rs1 | uint64(in.imm)
	case opANDI:
		rd = rs1 & uint64(in.imm)
	case opSLLI:
		rd = rs1 << uint(in.imm)
	case opSRLI:
		rd = rs1 >> uint(in.imm)
	case opSRAI:
		rd = uint64(int64(rs1) >> uint(in.imm))
	case opADDIW:
		rd = w32(uint32(rs1 + uint64(in.imm)))
	case opSLLIW:
		rd = w32(uint32(rs1) << uint(in.imm))
	case opSRLIW:
		rd = w32(uint32(rs1) >> uint(in.imm))
	case opSRAIW:
		rd = uint64(int64(int32(rs1) >> uint(in.imm)))

	case opADD:
		rd = rs1 + rs2
	case opSUB:
		rd = rs1 - rs2
	case opSLL:
		rd = rs1 << (rs2 & 63)
	case opSLT:
		rd = b2u(int64(rs1) < int64(rs2))
	case opSLTU:
		rd = b2u(rs1 < rs2)
	case opXOR:
		rd = rs1 ^ rs2
	case opSRL:
		rd = rs1 >> (rs2 & 63)
	case opSRA:
		rd = uint64(int64(rs1) >> (rs2 & 63))
	case opOR:
		rd = rs1 | rs2
	case opAND:
		rd = rs1 & rs2
	case opADDW:
		rd = w32(uint32(rs1 + rs2))
	case opSUBW:
		rd = w32(uint32(rs1 - rs2))
	case opSLLW:
		rd = w32(uint32(rs1) << (rs2 & 31))
	case opSRLW:
		rd = w32(uint32(rs1) >> (rs2 & 31))
	case opSRAW:
		rd = uint64(int64(int32(rs1) >> (rs2 & 31)))

	case opMUL:
		rd = rs1 * rs2
	case opMULH:
		rd = mulh(int64(rs1), int64(rs2))
	case opMULHSU:
		rd = mulhsu(int64(rs1), rs2)
	case opMULHU:
		rd, _ = bits.Mul64(rs1, rs2)
	case opDIV:
		rd = uint64(div(int64(rs1), int64(rs2)))
	case opDIVU:
		rd = divu(rs1, rs2)
	case opREM:
		rd = uint64(rem(int64(rs1), int64(rs2)))
	case opREMU:
		rd = remu(rs1, rs2)
	case opMULW:
		rd = w32(uint32(rs1) * uint32(rs2))
	case opDIVW:
		rd = uint64(int64(int32(div32(int32(rs1), int32(rs2)))))
	case opDIVUW:
		rd = w32(uint32(divu(uint64(uint32(rs1)), uint64(uint32(rs2)))))
	case opREMW:
		rd = uint64(int64(rem32(int32(rs1), int32(rs2))))
	case opREMUW:
		rd = w32(uint32(remu(uint64(uint32(rs1)), uint64(uint32(rs2)))))

	case opFENCE:
		writeRd = false
	case opFENCEI:
		writeRd = false
		h.FenceI()

	case opECALL:
		if h.Priv == riscv.User {
			return &exception{riscv.UserEnvCall, 0}
		}
		return &exception{riscv.SupervisorEnvCall, 0}
	case opEBREAK:
		return &exception{riscv.Breakpoint, h.PC}

	case opSRET:
		if h.Priv != riscv.Supervisor {
			return illegal()
		}
		h.sret()
		return nil
	case opWFI:
		if h.Priv != riscv.Supervisor {
			return illegal()
		}
		writeRd = false
	case opSFENCEVMA:
		if h.Priv != riscv.Supervisor {
			return illegal()
		}
		writeRd = false
		h.mmu.SfenceVMA()

	case opCSRRW, opCSRRS, opCSRRC, opCSRRWI, opCSRRSI, opCSRRCI:
		src := rs1
		if in.op >= opCSRRWI {
			src = uint64(in.rs1)
		}
		// CSRRS/CSRRC with a zero source do not write.
		write := in.op == opCSRRW || in.op == opCSRRWI || in.rs1 != 0
		if !h.csrAccessible(in.csr, write) {
			return illegal()
		}
		old, ok := h.readCSR(in.csr)
		if !ok {
			return illegal()
		}
		if write {
			v := src
			switch in.op {
			case opCSRRS, opCSRRSI:
				v = old | src
			case opCSRRC, opCSRRCI:
				v = old &^ src
			}
			if !h.writeCSR(in.csr, v) {
				return illegal()
			}
		}
		rd = old

	default:
		return illegal()
	}

	if writeRd && in.rd != 0 {
		x[in.rd] = rd
	}
	x[0] = 0
	h.PC = next
	return nil
}

func accessSize(o op) uint64 {
	switch o {
	case opLB, opLBU, opSB:
		return 1
	case opLH, opLHU, opSH:
		return 2
	case opLW, opLWU, opSW:
		return 4
	default:
		return 8
	}
}

func b2u(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

// w32 sign-extends a 32-bit result.
func w32(v uint32) uint64 {
	return uint64(int64(int32(v)))
}

func mulh(a, b int64) uint64 {
	hi, _ := bits.Mul64(uint64(a), uint64(b))
	if a < 0 {
		hi -= uint64(b)
	}
	if b < 0 {
		hi -= uint64(a)
	}
	return hi
}

func mulhsu(a int64, b uint64) uint64 {
	hi, _ := bits.Mul64(uint64(a), b)
	if a < 0 {
		hi -= b
	}
	return hi
}

func div(a, b int64) int64 {
	switch {
	case b == 0:
		return -1
	case a == math.MinInt64 && b == -1:
		return a
	}
	return a / b
}

func rem(a, b int64) int64 {
	switch {
	case b == 0:
		return a
	case a == math.MinInt64 && b == -1:
		return 0
	}
	return a % b
}

func div32(a, b int32) int32 {
	switch {
	case b == 0:
		return -1
	case a == math.MinInt32 && b == -1:
		return a
	}
	return a / b
}

func rem32(a, b int32) int32 {
	switch {
	case b == 0:
		return a
	case a == math.MinInt32 && b == -1:
		return 0
	}
	return a % b
}

func divu(a, b uint64) uint64 {
	if b == 0 {
		return math.MaxUint64
	}
	return a / b
}

func remu(a, b uint64) uint64 {
	if b == 0 {
		return a
	}
	return a % b
}
