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
	"errors"
	"testing"

	"rvos.dev/rvos/pkg/riscv"
)

func TestTranslatedByteBuffer(t *testing.T) {
	a, l := newTestAllocator(t)
	ms, sp, _ := FromELF(a, l, testELF(t))
	pt := ms.PageTable()

	// A buffer straddling two stack pages comes back in two pieces.
	ptr := sp - riscv.PageSize - 2
	bufs, err := TranslatedByteBuffer(pt, ptr, 4, true)
	if err != nil {
		t.Fatalf("TranslatedByteBuffer failed: %v", err)
	}
	if len(bufs) != 2 || len(bufs[0]) != 2 || len(bufs[1]) != 2 {
		t.Fatalf("got pieces %v, want two of two bytes", bufs)
	}
	copy(bufs[0], "ab")
	copy(bufs[1], "cd")
	got, err := CopyIn(pt, ptr, 4)
	if err != nil || string(got) != "abcd" {
		t.Errorf("CopyIn = %q, %v; want \"abcd\"", got, err)
	}

	for _, tc := range []struct {
		name  string
		ptr   uint64
		n     uint64
		write bool
	}{
		{"guard page", dataVA + riscv.PageSize, 1, false},
		{"unmapped", 0, 8, false},
		{"kernel only page", uint64(riscv.NewVirtAddr(riscv.TrapContext)), 8, false},
		{"write to text", textVA, 4, true},
		{"write running into guard page", dataVA + riscv.PageSize - 2, 4, true},
		{"wraps", ^uint64(0) - 1, 4, false},
		{"above user space", riscv.Trampoline, 1, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := TranslatedByteBuffer(pt, tc.ptr, tc.n, tc.write); !errors.Is(err, ErrBadAddress) {
				t.Errorf("got error %v, want ErrBadAddress", err)
			}
		})
	}

	if _, err := TranslatedByteBuffer(pt, textVA, 4, false); err != nil {
		t.Errorf("reading text failed: %v", err)
	}
	if bufs, err := TranslatedByteBuffer(pt, dataVA, 0, true); err != nil || len(bufs) != 0 {
		t.Errorf("empty buffer = %v, %v", bufs, err)
	}
}

func TestCopyOutIsAllOrNothing(t *testing.T) {
	a, l := newTestAllocator(t)
	ms, _, _ := FromELF(a, l, testELF(t))
	pt := ms.PageTable()

	ptr := uint64(dataVA + riscv.PageSize - 2)
	if err := CopyOut(pt, ptr, []byte("wxyz")); !errors.Is(err, ErrBadAddress) {
		t.Fatalf("CopyOut = %v, want ErrBadAddress", err)
	}
	got, _ := CopyIn(pt, ptr, 2)
	if string(got) != "\x00\x00" {
		t.Errorf("partial write %q went through", got)
	}
}

func TestTranslatedStr(t *testing.T) {
	a, l := newTestAllocator(t)
	ms, sp, _ := FromELF(a, l, testELF(t))
	pt := ms.PageTable()

	if s, err := TranslatedStr(pt, dataVA); err != nil || s != "hi" {
		t.Errorf("TranslatedStr = %q, %v; want \"hi\"", s, err)
	}

	// A string running off the end of the stack faults.
	if err := CopyOut(pt, sp-3, []byte("abc")); err != nil {
		t.Fatalf("CopyOut failed: %v", err)
	}
	if _, err := TranslatedStr(pt, sp-3); !errors.Is(err, ErrBadAddress) {
		t.Errorf("unterminated string: got %v, want ErrBadAddress", err)
	}

	// So does one that never ends within a page.
	long := make([]byte, maxUserString)
	for i := range long {
		long[i] = 'x'
	}
	if err := CopyOut(pt, sp-l.UserStackSize, long); err != nil {
		t.Fatalf("CopyOut failed: %v", err)
	}
	if _, err := TranslatedStr(pt, sp-l.UserStackSize); !errors.Is(err, ErrBadAddress) {
		t.Errorf("overlong string: got %v, want ErrBadAddress", err)
	}
}

func TestWriteUserUint32(t *testing.T) {
	a, l := newTestAllocator(t)
	ms, sp, _ := FromELF(a, l, testELF(t))
	pt := ms.PageTable()

	if err := WriteUserUint32(pt, sp-4, 0xfffffffe); err != nil {
		t.Fatalf("WriteUserUint32 failed: %v", err)
	}
	got, _ := CopyIn(pt, sp-4, 4)
	if want := []byte{0xfe, 0xff, 0xff, 0xff}; string(got) != string(want) {
		t.Errorf("stored % x, want % x", got, want)
	}
	if err := WriteUserUint32(pt, textVA, 1); !errors.Is(err, ErrBadAddress) {
		t.Errorf("write to text: got %v, want ErrBadAddress", err)
	}
}
