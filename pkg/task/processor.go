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

package task

import (
	"rvos.dev/rvos/pkg/sync"
	"rvos.dev/rvos/pkg/trap"
)

type processorInner struct {
	current    *TCB
	idleTaskCx *Context
}

// Processor is the hart's scheduling record: the task it runs and the idle
// control flow it returns to between tasks.
type Processor struct {
	inner *sync.UPSafeCell[processorInner]

	// done is closed by Stop. Task control flows parked in Schedule end
	// when it closes.
	done     chan struct{}
	stopOnce sync.Once
}

// NewProcessor returns a processor running nothing. The caller's control
// flow becomes the idle control flow.
func NewProcessor() *Processor {
	return &Processor{
		inner: sync.NewUPSafeCell("processor", processorInner{idleTaskCx: ZeroInit()}),
		done:  make(chan struct{}),
	}
}

// Stop ends every task control flow parked in Schedule. Tasks that never
// ran have no control flow to end. Stop is idempotent.
func (p *Processor) Stop() {
	p.stopOnce.Do(func() { close(p.done) })
}

// Stopped returns true iff Stop has been called.
func (p *Processor) Stopped() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// TakeCurrent clears and returns the current task.
func (p *Processor) TakeCurrent() *TCB {
	in := p.inner.Borrow()
	defer p.inner.Release()
	t := in.current
	in.current = nil
	return t
}

// Current returns the current task, or nil when idle.
func (p *Processor) Current() *TCB {
	in := p.inner.Borrow()
	defer p.inner.Release()
	return in.current
}

// SetCurrent makes t the current task.
func (p *Processor) SetCurrent(t *TCB) {
	in := p.inner.Borrow()
	defer p.inner.Release()
	in.current = t
}

// IdleTaskCx returns the idle control flow's context.
func (p *Processor) IdleTaskCx() *Context {
	in := p.inner.Borrow()
	defer p.inner.Release()
	return in.idleTaskCx
}

// CurrentUserToken returns the current task's address space token.
//
// Precondition: a task is current.
func (p *Processor) CurrentUserToken() uint64 {
	t := p.Current()
	in := t.Inner().Borrow()
	defer t.Inner().Release()
	return in.UserToken()
}

// CurrentTrapCx returns the current task's trap context.
//
// Precondition: a task is current.
func (p *Processor) CurrentTrapCx() *trap.Context {
	t := p.Current()
	in := t.Inner().Borrow()
	defer t.Inner().Release()
	return in.TrapCx
}

// Schedule suspends the calling task control flow in switched and returns
// to the idle control flow. It returns once the task is scheduled again,
// and ends the calling control flow instead if the processor is stopped
// first.
func (p *Processor) Schedule(switched *Context) {
	SwitchOrStop(switched, p.IdleTaskCx(), p.done)
}

// ScheduleExit returns to the idle control flow and ends the calling one.
// It does not return.
func (p *Processor) ScheduleExit() {
	SwitchAndExit(p.IdleTaskCx())
}
