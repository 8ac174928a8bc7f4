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

package kernel

import (
	"fmt"

	"rvos.dev/rvos/pkg/log"
	"rvos.dev/rvos/pkg/machine"
	"rvos.dev/rvos/pkg/riscv"
	"rvos.dev/rvos/pkg/sbi"
	"rvos.dev/rvos/pkg/task"
)

// Exit codes of tasks killed for a fault.
const (
	ExitMemoryFault        = -2
	ExitIllegalInstruction = -3
	ExitFetchFault         = -4
)

// setKernelTrapEntry points stvec at the trap-from-kernel entry, where it
// stays while kernel code runs.
func (k *Kernel) setKernelTrapEntry() {
	k.hart.SetCSR(riscv.CSRStvec, k.layout.TrapFromKernel)
}

// setUserTrapEntry points stvec at the trampoline, where a trap from user
// mode lands.
func (k *Kernel) setUserTrapEntry() {
	k.hart.SetCSR(riscv.CSRStvec, k.trampoline.AllTraps)
}

// runTask is every task's kernel control flow. It alternates between
// returning to user mode and handling the trap that brings the task back.
// A panic ends the control flow and hands the hart back to the idle loop.
func (k *Kernel) runTask() {
	defer func() {
		if r := recover(); r != nil {
			k.panicked(r)
			// Switch without borrowing the processor: the panic may have
			// left it borrowed.
			task.SwitchAndExit(k.idleCx)
		}
	}()
	for {
		k.trapHandler(k.trapReturn())
	}
}

// trapReturn returns to the current task in user mode and runs it until
// its next trap. The restore half of the trampoline switches to the task's
// address space and executes sret.
func (k *Kernel) trapReturn() machine.Stop {
	k.setUserTrapEntry()
	userSatp := k.processor.CurrentUserToken()
	h := k.hart
	// The task's code may have been replaced by exec or loaded into reused
	// frames.
	h.FenceI()
	h.X[riscv.A0] = riscv.TrapContext
	h.X[riscv.A1] = userSatp
	h.Priv = riscv.Supervisor
	h.PC = k.trampoline.Restore
	return h.Run()
}

// trapHandler handles a trap from user mode. The trampoline has saved the
// task's registers in its trap context and switched to the kernel address
// space.
func (k *Kernel) trapHandler(stop machine.Stop) {
	if stop.Reason == machine.StopSupervisorTrap || stop.PC != k.layout.TrapHandler {
		k.trapFromKernel(stop)
	}
	k.setKernelTrapEntry()
	h := k.hart
	cause := riscv.Cause(h.CSR(riscv.CSRScause))
	stval := h.CSR(riscv.CSRStval)

	switch cause {
	case riscv.UserEnvCall:
		trapsByCause.Increment("ecall")
		cx := k.processor.CurrentTrapCx()
		// Return past the ecall.
		cx.Sepc += 4
		id, args := cx.SyscallArgs()
		result := k.syscall(id, args)
		// exec replaces the trap context.
		cx = k.processor.CurrentTrapCx()
		cx.X[riscv.A0] = uint64(result)

	case riscv.StoreFault, riscv.StorePageFault, riscv.LoadFault, riscv.LoadPageFault:
		trapsByCause.Increment("fault")
		k.killCurrent(cause, stval, ExitMemoryFault)

	case riscv.InstructionFault, riscv.InstructionPageFault, riscv.InstructionMisaligned:
		trapsByCause.Increment("fault")
		k.killCurrent(cause, stval, ExitFetchFault)

	case riscv.IllegalInstruction:
		trapsByCause.Increment("illegal")
		k.killCurrent(cause, stval, ExitIllegalInstruction)

	case riscv.SupervisorTimer:
		trapsByCause.Increment("timer")
		k.setNextTrigger()
		k.suspendCurrentAndRunNext()

	default:
		panic(fmt.Sprintf("Unsupported trap %v, stval = %#x!", cause, stval))
	}
}

// killCurrent reports a fault in the current task and exits it.
func (k *Kernel) killCurrent(cause riscv.Cause, stval uint64, code int32) {
	t := k.processor.Current()
	sepc := k.processor.CurrentTrapCx().Sepc
	userFaults.Increment()
	if cause == riscv.IllegalInstruction {
		sbi.Printf(k.fw, "[kernel] IllegalInstruction in application, kernel killed it.\n")
	} else {
		sbi.Printf(k.fw, "[kernel] %v in application, bad addr = %#x, bad instruction = %#x, kernel killed it.\n", cause, stval, sepc)
	}
	k.faults.Warningf("Task %d: %v at %#x, stval %#x, exit code %d", t.Pid(), cause, sepc, stval, code)
	k.exitCurrentAndRunNext(code)
}

// trapFromKernel handles a trap taken while the hart was in supervisor
// mode. The kernel never expects one.
func (k *Kernel) trapFromKernel(stop machine.Stop) {
	h := k.hart
	if stop.Reason == machine.StopEntry {
		panic(fmt.Sprintf("hart entered the kernel at unexpected address %#x", stop.PC))
	}
	cause := riscv.Cause(h.CSR(riscv.CSRScause))
	log.Warningf("Trap from kernel: %v at %#x, stval %#x", cause, stop.PC, h.CSR(riscv.CSRStval))
	panic(fmt.Sprintf("a trap %v from kernel at %#x!", cause, stop.PC))
}
