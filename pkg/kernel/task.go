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

	"rvos.dev/rvos/pkg/mm"
	"rvos.dev/rvos/pkg/riscv"
	"rvos.dev/rvos/pkg/sbi"
	"rvos.dev/rvos/pkg/task"
)

// Task is the current task as seen by a syscall implementation.
type Task struct {
	k *Kernel
	*task.TCB
}

// Kernel returns the kernel running t.
func (t *Task) Kernel() *Kernel {
	return t.k
}

// Firmware returns the platform firmware.
func (t *Task) Firmware() sbi.Firmware {
	return t.k.fw
}

// pageTable returns t's page table.
func (t *Task) pageTable() *mm.PageTable {
	in := t.Inner().Borrow()
	defer t.Inner().Release()
	return in.MemorySet.PageTable()
}

// CopyIn reads n bytes of t's memory at ptr.
func (t *Task) CopyIn(ptr, n uint64) ([]byte, error) {
	return mm.CopyIn(t.pageTable(), ptr, n)
}

// CopyOut writes data to t's memory at ptr.
func (t *Task) CopyOut(ptr uint64, data []byte) error {
	return mm.CopyOut(t.pageTable(), ptr, data)
}

// CopyInString reads the NUL terminated string at ptr.
func (t *Task) CopyInString(ptr uint64) (string, error) {
	return mm.TranslatedStr(t.pageTable(), ptr)
}

// CopyOutUint32 stores v at ptr.
func (t *Task) CopyOutUint32(ptr uint64, v uint32) error {
	return mm.WriteUserUint32(t.pageTable(), ptr, v)
}

// CheckWritable returns an error unless t may write [ptr, ptr+n).
func (t *Task) CheckWritable(ptr, n uint64) error {
	_, err := mm.TranslatedByteBuffer(t.pageTable(), ptr, n, true)
	return err
}

// Yield gives the hart to the next ready task. It returns once t is
// scheduled again.
func (t *Task) Yield() {
	t.k.suspendCurrentAndRunNext()
}

// Exit ends t with code. It does not return.
func (t *Task) Exit(code int32) {
	t.k.exitCurrentAndRunNext(code)
	panic("unreachable")
}

// Fork creates a ready child of t that returns 0 from the fork call. It
// returns the child's pid.
func (t *Task) Fork() int {
	child := t.TCB.Fork()
	child.Inner().With(func(in *task.Inner) {
		in.TrapCx.X[riscv.A0] = 0
	})
	tasksCreated.Increment()
	t.k.manager.Add(child)
	return child.Pid()
}

// Exec replaces t's program with the app called name.
func (t *Task) Exec(name string) error {
	img, err := t.k.apps.Load(name)
	if err != nil {
		return err
	}
	t.TCB.Exec(img)
	return nil
}

// Wait reaps an exited child; pid -1 matches any child. When codePtr is
// non-zero the child's exit code is stored there. The pointer is checked
// before anything is reaped.
func (t *Task) Wait(pid int, codePtr uint64) (int, error) {
	if codePtr != 0 {
		if err := t.CheckWritable(codePtr, 4); err != nil {
			return 0, err
		}
	}
	childPid, code, err := t.TCB.Wait(pid)
	if err != nil {
		return 0, err
	}
	if codePtr != 0 {
		if err := t.CopyOutUint32(codePtr, uint32(code)); err != nil {
			// Checked above, and only t can change its address space.
			panic(fmt.Sprintf("storing exit code: %v", err))
		}
	}
	return childPid, nil
}

// TimeMS returns the machine time in milliseconds.
func (t *Task) TimeMS() uint64 {
	return t.k.TimeMS()
}
