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

// Package machine models a single-hart RV64 board: RAM, a hart with an Sv39
// MMU, the CLINT timer and a console. Machine itself plays the part of the
// machine-mode firmware and implements sbi.Firmware.
package machine

import (
	"errors"
	"io"
	"sync/atomic"

	"rvos.dev/rvos/pkg/log"
	"rvos.dev/rvos/pkg/sbi"
)

// Config configures a Machine.
type Config struct {
	// MemoryEnd is the first physical address past RAM.
	MemoryEnd uint64

	// Input feeds the console. It may be nil.
	Input io.Reader

	// Output receives console output. It may be nil.
	Output io.Writer

	// CRLF translates "\n" to "\r\n" on output, for raw terminals.
	CRLF bool
}

// Machine is a modelled board.
type Machine struct {
	Mem  *Memory
	Hart *Hart

	clint   *CLINT
	console *Console

	halted  atomic.Bool
	failure atomic.Bool
}

var _ sbi.Firmware = (*Machine)(nil)

// New powers on a machine. The hart starts in supervisor mode with
// translation off.
func New(cfg Config) (*Machine, error) {
	mem, err := NewMemory(cfg.MemoryEnd)
	if err != nil {
		return nil, err
	}
	clint := newCLINT()
	return &Machine{
		Mem:     mem,
		Hart:    newHart(mem, clint),
		clint:   clint,
		console: newConsole(cfg.Input, cfg.Output, cfg.CRLF),
	}, nil
}

// Close releases RAM and stops the console.
func (m *Machine) Close() error {
	return errors.Join(m.console.close(), m.Mem.Close())
}

// CLINT returns the timer.
func (m *Machine) CLINT() *CLINT {
	return m.clint
}

// ConsolePutchar implements sbi.Firmware.ConsolePutchar.
func (m *Machine) ConsolePutchar(c byte) {
	m.console.putchar(c)
}

// ConsoleGetchar implements sbi.Firmware.ConsoleGetchar.
func (m *Machine) ConsoleGetchar() int {
	return m.console.getchar()
}

// SetTimer implements sbi.Firmware.SetTimer. As on real firmware, arming
// the timer clears a pending timer interrupt.
func (m *Machine) SetTimer(deadline uint64) {
	m.clint.SetTimecmp(deadline)
}

// Time implements sbi.Firmware.Time.
func (m *Machine) Time() uint64 {
	return m.clint.Time()
}

// Shutdown implements sbi.Firmware.Shutdown.
func (m *Machine) Shutdown(failure bool) {
	if m.halted.Swap(true) {
		return
	}
	m.failure.Store(failure)
	m.console.Flush()
	log.Infof("Machine shut down (failure=%t) after %d instructions", failure, m.Hart.Instret())
}

// Halted returns whether Shutdown was called, and with which status.
func (m *Machine) Halted() (halted, failure bool) {
	return m.halted.Load(), m.failure.Load()
}
