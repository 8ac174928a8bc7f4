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

package mm

import (
	"encoding/binary"
	"errors"
	"fmt"

	"rvos.dev/rvos/pkg/loader"
	"rvos.dev/rvos/pkg/riscv"
)

// ErrBadAddress is returned when a user pointer does not refer to memory
// the task may access.
var ErrBadAddress = errors.New("bad user address")

// maxUserString bounds strings read from user memory, terminator included.
const maxUserString = riscv.PageSize

// TranslatedByteBuffer returns the kernel views of the user buffer
// [ptr, ptr+n) in the address space of pt, one slice per page touched.
// write requires every page to be writable.
func TranslatedByteBuffer(pt *PageTable, ptr, n uint64, write bool) ([][]byte, error) {
	end := ptr + n
	if end < ptr || end > loader.UserTop {
		return nil, fmt.Errorf("%w: [%#x, %#x)", ErrBadAddress, ptr, end)
	}
	var bufs [][]byte
	for start := ptr; start < end; {
		va := riscv.NewVirtAddr(start)
		vpn := va.Floor()
		pte, ok := pt.Translate(vpn)
		if !ok || !pte.User() || !pte.Readable() || (write && !pte.Writable()) {
			return nil, fmt.Errorf("%w: %v", ErrBadAddress, va)
		}
		stop := min(end, uint64((vpn + 1).Addr()))
		off := va.PageOffset()
		bufs = append(bufs, pt.alloc.Page(pte.PPN())[off:off+(stop-start)])
		start = stop
	}
	return bufs, nil
}

// CopyIn reads n bytes of user memory at ptr.
func CopyIn(pt *PageTable, ptr, n uint64) ([]byte, error) {
	bufs, err := TranslatedByteBuffer(pt, ptr, n, false)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, n)
	for _, b := range bufs {
		out = append(out, b...)
	}
	return out, nil
}

// CopyOut writes data to user memory at ptr. Nothing is written unless the
// whole range is writable.
func CopyOut(pt *PageTable, ptr uint64, data []byte) error {
	bufs, err := TranslatedByteBuffer(pt, ptr, uint64(len(data)), true)
	if err != nil {
		return err
	}
	for _, b := range bufs {
		data = data[copy(b, data):]
	}
	return nil
}

// TranslatedStr reads the NUL terminated string at ptr.
func TranslatedStr(pt *PageTable, ptr uint64) (string, error) {
	var s []byte
	for va := ptr; len(s) < maxUserString; va++ {
		b, err := CopyIn(pt, va, 1)
		if err != nil {
			return "", err
		}
		if b[0] == 0 {
			return string(s), nil
		}
		s = append(s, b[0])
	}
	return "", fmt.Errorf("%w: string at %#x is not terminated within %d bytes", ErrBadAddress, ptr, maxUserString)
}

// WriteUserUint32 stores v at ptr.
func WriteUserUint32(pt *PageTable, ptr uint64, v uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return CopyOut(pt, ptr, b[:])
}
