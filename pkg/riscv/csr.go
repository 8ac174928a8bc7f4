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

package riscv

import (
	"fmt"
)

// Privilege is a hart privilege mode.
type Privilege uint8

// Privilege modes. Machine mode belongs to the firmware and is never
// entered by the kernel.
const (
	User       Privilege = 0
	Supervisor Privilege = 1
)

// String implements fmt.Stringer.
func (p Privilege) String() string {
	switch p {
	case User:
		return "U"
	case Supervisor:
		return "S"
	default:
		return fmt.Sprintf("Privilege(%d)", uint8(p))
	}
}

// sstatus bits.
const (
	SstatusSIE  uint64 = 1 << 1
	SstatusSPIE uint64 = 1 << 5
	SstatusSPP  uint64 = 1 << 8
	SstatusSUM  uint64 = 1 << 18
)

// sie/sip bits.
const (
	SieSSIE uint64 = 1 << 1
	SieSTIE uint64 = 1 << 5
	SieSEIE uint64 = 1 << 9
)

// InterruptBit is set in scause for interrupts.
const InterruptBit uint64 = 1 << 63

// Exception codes.
const (
	InstructionMisaligned Cause = 0
	InstructionFault      Cause = 1
	IllegalInstruction    Cause = 2
	Breakpoint            Cause = 3
	LoadMisaligned        Cause = 4
	LoadFault             Cause = 5
	StoreMisaligned       Cause = 6
	StoreFault            Cause = 7
	UserEnvCall           Cause = 8
	SupervisorEnvCall     Cause = 9
	InstructionPageFault  Cause = 12
	LoadPageFault         Cause = 13
	StorePageFault        Cause = 15
)

// Interrupt causes.
const (
	SupervisorSoft     Cause = Cause(InterruptBit | 1)
	SupervisorTimer    Cause = Cause(InterruptBit | 5)
	SupervisorExternal Cause = Cause(InterruptBit | 9)
)

// Cause is a decoded scause value.
type Cause uint64

// IsInterrupt returns true iff c is an asynchronous interrupt.
func (c Cause) IsInterrupt() bool {
	return uint64(c)&InterruptBit != 0
}

// Code returns the exception or interrupt code without the interrupt bit.
func (c Cause) Code() uint64 {
	return uint64(c) &^ InterruptBit
}

var causeNames = map[Cause]string{
	InstructionMisaligned: "InstructionMisaligned",
	InstructionFault:      "InstructionFault",
	IllegalInstruction:    "IllegalInstruction",
	Breakpoint:            "Breakpoint",
	LoadMisaligned:        "LoadMisaligned",
	LoadFault:             "LoadFault",
	StoreMisaligned:       "StoreMisaligned",
	StoreFault:            "StoreFault",
	UserEnvCall:           "UserEnvCall",
	SupervisorEnvCall:     "SupervisorEnvCall",
	InstructionPageFault:  "InstructionPageFault",
	LoadPageFault:         "LoadPageFault",
	StorePageFault:        "StorePageFault",
	SupervisorSoft:        "SupervisorSoft",
	SupervisorTimer:       "SupervisorTimer",
	SupervisorExternal:    "SupervisorExternal",
}

// String implements fmt.Stringer.
func (c Cause) String() string {
	if name, ok := causeNames[c]; ok {
		return name
	}
	if c.IsInterrupt() {
		return fmt.Sprintf("Interrupt(%d)", c.Code())
	}
	return fmt.Sprintf("Exception(%d)", c.Code())
}

// Integer register numbers, by ABI name.
const (
	Zero = iota
	RA
	SP
	GP
	TP
	T0
	T1
	T2
	S0
	S1
	A0
	A1
	A2
	A3
	A4
	A5
	A6
	A7
	S2
	S3
	S4
	S5
	S6
	S7
	S8
	S9
	S10
	S11
	T3
	T4
	T5
	T6
)

// NumRegs is the number of integer registers.
const NumRegs = 32

// CSR numbers.
const (
	CSRSstatus  uint16 = 0x100
	CSRSie      uint16 = 0x104
	CSRStvec    uint16 = 0x105
	CSRSscratch uint16 = 0x140
	CSRSepc     uint16 = 0x141
	CSRScause   uint16 = 0x142
	CSRStval    uint16 = 0x143
	CSRSip      uint16 = 0x144
	CSRSatp     uint16 = 0x180
	CSRCycle    uint16 = 0xc00
	CSRTime     uint16 = 0xc01
	CSRInstret  uint16 = 0xc02
)
