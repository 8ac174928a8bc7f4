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

package rvasm

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"io"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"rvos.dev/rvos/pkg/riscv"
)

func words(t *testing.T, p *Program) []uint32 {
	t.Helper()
	img, err := p.Link(0x1000)
	if err != nil {
		t.Fatalf("Link failed: %v", err)
	}
	ws := make([]uint32, len(img.Text)/4)
	for i := range ws {
		ws[i] = binary.LittleEndian.Uint32(img.Text[4*i:])
	}
	return ws
}

func TestEncodings(t *testing.T) {
	for _, tc := range []struct {
		name string
		emit func(p *Program)
		want uint32
	}{
		{"addi a0, zero, 42", func(p *Program) { p.Addi(riscv.A0, riscv.Zero, 42) }, 0x02a00513},
		{"ld t0, 8(sp)", func(p *Program) { p.Ld(riscv.T0, riscv.SP, 8) }, 0x00813283},
		{"sd ra, 8(sp)", func(p *Program) { p.Sd(riscv.RA, riscv.SP, 8) }, 0x00113423},
		{"lui a0, 0x12345", func(p *Program) { p.Lui(riscv.A0, 0x12345) }, 0x12345537},
		{"csrrw sp, sscratch, sp", func(p *Program) { p.Csrrw(riscv.SP, riscv.CSRSscratch, riscv.SP) }, 0x14011173},
		{"sfence.vma", func(p *Program) { p.SfenceVMA() }, 0x12000073},
		{"sret", func(p *Program) { p.Sret() }, 0x10200073},
		{"ecall", func(p *Program) { p.Ecall() }, 0x00000073},
		{"ret", func(p *Program) { p.Ret() }, 0x00008067},
		{"slli a0, a0, 32", func(p *Program) { p.Slli(riscv.A0, riscv.A0, 32) }, 0x02051513},
		{"srai a0, a0, 3", func(p *Program) { p.Srai(riscv.A0, riscv.A0, 3) }, 0x40355513},
		{"mul a0, a1, a2", func(p *Program) { p.Mul(riscv.A0, riscv.A1, riscv.A2) }, 0x02c58533},
	} {
		t.Run(tc.name, func(t *testing.T) {
			p := New()
			tc.emit(p)
			if got := words(t, p); len(got) != 1 || got[0] != tc.want {
				t.Errorf("got %#x, want %#08x", got, tc.want)
			}
		})
	}
}

func TestLabels(t *testing.T) {
	p := New()
	p.Label("_start")
	p.J("end")
	p.Nop()
	p.Label("end")
	p.Bne(riscv.A0, riscv.A1, "_start")
	p.Ecall()

	got := words(t, p)
	want := []uint32{
		0x0080006f, // j +8
		0x00000013, // nop
		0xfeb51ce3, // bne a0, a1, -8
		0x00000073, // ecall
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("text mismatch (-want +got):\n%s", diff)
	}
}

func TestLi(t *testing.T) {
	p := New()
	p.Li(riscv.A0, 0x12345678)
	got := words(t, p)
	want := []uint32{0x12345537, 0x6785051b}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Li mismatch (-want +got):\n%s", diff)
	}
}

func TestLinkErrors(t *testing.T) {
	for _, tc := range []struct {
		name string
		emit func(p *Program)
		want string
	}{
		{"undefined", func(p *Program) { p.J("nowhere") }, `undefined label "nowhere"`},
		{"redefined", func(p *Program) { p.Label("a"); p.Label("a") }, `label "a" redefined`},
		{"immediate", func(p *Program) { p.Addi(riscv.A0, riscv.A0, 4096) }, "does not fit"},
		{"register", func(p *Program) { p.Add(riscv.A0, 32, riscv.A1) }, "bad register"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			p := New()
			tc.emit(p)
			_, err := p.Link(0)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Errorf("Link error = %v, want %q", err, tc.want)
			}
		})
	}
}

func TestDataLayout(t *testing.T) {
	p := New()
	p.Label("_start")
	p.La(riscv.A0, "msg")
	p.Ecall()
	p.Asciz("msg", "hi")
	p.Dwords("table", 1, 2)

	img, err := p.Link(0x10000)
	if err != nil {
		t.Fatalf("Link failed: %v", err)
	}
	if img.DataAddr != 0x11000 {
		t.Errorf("DataAddr = %#x, want 0x11000", img.DataAddr)
	}
	if got := img.Symbols["msg"]; got != 0x11000 {
		t.Errorf("msg = %#x", got)
	}
	if got := img.Symbols["table"]; got != 0x11008 {
		t.Errorf("table = %#x, want 8-byte aligned 0x11008", got)
	}
	// auipc a0, 1; addi a0, a0, 0
	ws := []uint32{binary.LittleEndian.Uint32(img.Text), binary.LittleEndian.Uint32(img.Text[4:])}
	if diff := cmp.Diff([]uint32{0x00001517, 0x00050513}, ws); diff != "" {
		t.Errorf("La mismatch (-want +got):\n%s", diff)
	}
}

func TestELF(t *testing.T) {
	p := New()
	p.Label("_start")
	p.La(riscv.A0, "msg")
	p.Ecall()
	p.Asciz("msg", "hello")

	b, err := Build(p, 0x10000)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	f, err := elf.NewFile(bytes.NewReader(b))
	if err != nil {
		t.Fatalf("elf.NewFile failed: %v", err)
	}
	if f.Machine != elf.EM_RISCV || f.Class != elf.ELFCLASS64 || f.Entry != 0x10000 {
		t.Errorf("header = %+v", f.FileHeader)
	}
	if len(f.Progs) != 2 {
		t.Fatalf("got %d program headers, want 2", len(f.Progs))
	}
	data := f.Progs[1]
	if data.Vaddr != 0x11000 || data.Flags != elf.PF_R|elf.PF_W {
		t.Errorf("data segment = %+v", data.ProgHeader)
	}
	contents, err := io.ReadAll(data.Open())
	if err != nil {
		t.Fatalf("reading data segment: %v", err)
	}
	if string(contents) != "hello\x00" {
		t.Errorf("data = %q", contents)
	}
}
