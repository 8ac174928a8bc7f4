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
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"rvos.dev/rvos/pkg/log"
	"rvos.dev/rvos/pkg/sbi"
	"rvos.dev/rvos/pkg/task"
)

// ErrStopped is returned by Run when a previous Run already returned.
var ErrStopped = errors.New("kernel has stopped")

// PanicError is returned by Run when kernel code panicked.
type PanicError struct {
	// Value is what was passed to panic.
	Value any

	// Stack is the panicking goroutine's stack.
	Stack []byte
}

// Error implements error.Error.
func (e *PanicError) Error() string {
	return fmt.Sprintf("kernel panic: %v", e.Value)
}

// panicked reports a kernel panic and powers the machine off.
func (k *Kernel) panicked(r any) {
	k.panicErr = &PanicError{Value: r, Stack: debug.Stack()}
	sbi.Printf(k.fw, "[kernel] Panicked: %v\n", r)
	log.Warningf("Kernel panic: %v\n%s", r, k.panicErr.Stack)
	k.fw.Shutdown(true)
}

// Run is the idle control flow: it takes ready tasks in FIFO order and
// switches to each until it gives the hart back. Run returns when the
// machine is shut down, when no task is ready, when ctx is done, or with a
// *PanicError when kernel code panicked. Task control flows still parked
// when Run returns are ended, so a kernel runs at most once.
//
// Run must be called from the goroutine that created k.
func (k *Kernel) Run(ctx context.Context) error {
	if k.processor.Stopped() {
		return ErrStopped
	}
	defer k.processor.Stop()
	for {
		if k.panicErr != nil {
			return k.panicErr
		}
		if halted, _ := k.m.Halted(); halted {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		t, ok := k.manager.Fetch()
		if !ok {
			log.Infof("No ready tasks, idle loop returning")
			return nil
		}
		in := t.Inner().Borrow()
		in.Status = task.Running
		next := in.TaskCx
		t.Inner().Release()

		k.processor.SetCurrent(t)
		contextSwitches.Increment()
		task.Switch(k.idleCx, next)
	}
}

// suspendCurrentAndRunNext puts the current task at the back of the ready
// queue and switches to the idle control flow. It returns when the task
// is scheduled again.
func (k *Kernel) suspendCurrentAndRunNext() {
	t := k.processor.TakeCurrent()
	in := t.Inner().Borrow()
	cx := in.TaskCx
	in.Status = task.Ready
	t.Inner().Release()

	k.manager.Add(t)
	k.processor.Schedule(cx)
}

// exitCurrentAndRunNext exits the current task and switches to the idle
// control flow. It does not return.
//
// When init exits the machine is shut down with its exit code.
func (k *Kernel) exitCurrentAndRunNext(code int32) {
	t := k.processor.TakeCurrent()
	if t == k.initProc {
		t.Inner().With(func(in *task.Inner) {
			in.Status = task.Exited
			in.ExitCode = code
		})
		k.exitCode, k.exited = code, true
		log.Infof("Init process exited with code %d", code)
		k.fw.Shutdown(code != 0)
	} else {
		t.Exit(code, k.initProc)
		log.Debugf("Task %d exited with code %d", t.Pid(), code)
	}
	k.processor.ScheduleExit()
}
