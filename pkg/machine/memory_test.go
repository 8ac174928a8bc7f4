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

package machine

import (
	"bytes"
	"strings"
	"testing"

	"rvos.dev/rvos/pkg/riscv"
)

func TestNewMemoryRejectsBadEnd(t *testing.T) {
	for _, end := range []uint64{0, RAMBase, RAMBase + 100} {
		if m, err := NewMemory(end); err == nil {
			m.Close()
			t.Errorf("NewMemory(%#x) succeeded", end)
		}
	}
}

func TestMemoryBounds(t *testing.T) {
	m, err := NewMemory(RAMBase + 4*riscv.PageSize)
	if err != nil {
		t.Fatalf("NewMemory failed: %v", err)
	}
	defer m.Close()

	for _, tc := range []struct {
		pa, n uint64
		want  bool
	}{
		{RAMBase, 8, true},
		{RAMBase - 1, 1, false},
		{RAMBase + 4*riscv.PageSize - 8, 8, true},
		{RAMBase + 4*riscv.PageSize - 4, 8, false},
		{RAMBase + 4*riscv.PageSize, 0, true},
		{^uint64(0) - 2, 8, false},
	} {
		if got := m.Contains(tc.pa, tc.n); got != tc.want {
			t.Errorf("Contains(%#x, %d) = %t, want %t", tc.pa, tc.n, got, tc.want)
		}
	}

	page := m.Page(riscv.NewPhysAddr(RAMBase + riscv.PageSize).Floor())
	page[0] = 0xab
	if v, _ := m.load(RAMBase+riscv.PageSize, 1); v != 0xab {
		t.Errorf("Page does not alias RAM: %#x", v)
	}

	defer func() {
		if recover() == nil {
			t.Errorf("Page outside RAM did not panic")
		}
	}()
	m.Page(riscv.NewPhysAddr(RAMBase + 4*riscv.PageSize).Floor())
}

func TestConsole(t *testing.T) {
	var out bytes.Buffer
	m := newTestMachine(t, Config{Input: strings.NewReader("ab"), Output: &out, CRLF: true})
	for _, c := range []byte("ok\n") {
		m.ConsolePutchar(c)
	}
	if got := out.String(); got != "ok\r\n" {
		t.Errorf("output = %q, want %q", got, "ok\r\n")
	}

	var got []int
	for len(got) < 3 {
		switch c := m.ConsoleGetchar(); c {
		case 0:
			// Not read yet.
		default:
			got = append(got, c)
		}
	}
	if got[0] != 'a' || got[1] != 'b' || got[2] != -1 {
		t.Errorf("input = %v, want [97 98 -1]", got)
	}
	if c := m.ConsoleGetchar(); c != -1 {
		t.Errorf("getchar after EOF = %d, want -1", c)
	}
}

func TestShutdown(t *testing.T) {
	m := newTestMachine(t, Config{})
	if halted, _ := m.Halted(); halted {
		t.Fatalf("new machine is halted")
	}
	m.Shutdown(true)
	m.Shutdown(false)
	if halted, failure := m.Halted(); !halted || !failure {
		t.Errorf("Halted() = %t, %t, want true, true", halted, failure)
	}
}
