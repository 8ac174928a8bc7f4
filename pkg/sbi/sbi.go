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

// Package sbi defines the supervisor binary interface the kernel uses to
// reach platform firmware.
//
// Only the legacy extension's services are used. Each Firmware method names
// the legacy call id it stands for.
package sbi

import (
	"fmt"
)

// Firmware is the platform firmware as seen by the kernel.
type Firmware interface {
	// ConsolePutchar writes one byte to the console. Legacy call 1.
	ConsolePutchar(c byte)

	// ConsoleGetchar returns the next console byte, 0 when no input is
	// pending, or -1 once the input is closed. Legacy call 2.
	ConsoleGetchar() int

	// SetTimer arms the supervisor timer to fire when Time reaches
	// deadline. Legacy call 0.
	SetTimer(deadline uint64)

	// Time returns the current value of the machine timer, as read from
	// the time CSR.
	Time() uint64

	// Shutdown powers the machine off. failure selects the exit status
	// reported to the host. Legacy call 8.
	Shutdown(failure bool)
}

// Console adapts a Firmware console to io.Writer.
type Console struct {
	Firmware Firmware
}

// Write implements io.Writer.Write.
func (c Console) Write(b []byte) (int, error) {
	for _, ch := range b {
		c.Firmware.ConsolePutchar(ch)
	}
	return len(b), nil
}

// Printf formats to the firmware console.
func Printf(fw Firmware, format string, v ...any) {
	fmt.Fprintf(Console{Firmware: fw}, format, v...)
}
