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

package syscalls

import (
	"time"

	"rvos.dev/rvos/pkg/kernel"
	"rvos.dev/rvos/pkg/sbi"
)

// inputPoll is how long read waits for console input before yielding.
const inputPoll = time.Millisecond

// Write implements write(2) on the console.
func Write(t *kernel.Task, args kernel.SyscallArguments) (int64, error) {
	fd := args[0].Int()
	addr := args[1].Pointer()
	size := args[2].SizeT()
	if fd != Stdout {
		return 0, ErrBadFD
	}
	buf, err := t.CopyIn(addr, uint64(size))
	if err != nil {
		return 0, err
	}
	n, err := sbi.Console{Firmware: t.Firmware()}.Write(buf)
	return int64(n), err
}

// Read implements read(2) on the console. It reads at most one byte,
// yielding until one is available, and returns 0 at end of input.
func Read(t *kernel.Task, args kernel.SyscallArguments) (int64, error) {
	fd := args[0].Int()
	addr := args[1].Pointer()
	size := args[2].SizeT()
	if fd != Stdin {
		return 0, ErrBadFD
	}
	if size == 0 {
		return 0, nil
	}
	if err := t.CheckWritable(addr, 1); err != nil {
		return 0, err
	}
	fw := t.Firmware()
	for {
		c := fw.ConsoleGetchar()
		if c < 0 {
			return 0, nil
		}
		if c > 0 {
			return 1, t.CopyOut(addr, []byte{byte(c)})
		}
		time.Sleep(inputPoll)
		t.Yield()
	}
}
