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

package loader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"rvos.dev/rvos/pkg/riscv"
	"rvos.dev/rvos/pkg/rvasm"
)

func testImage(t *testing.T) []byte {
	t.Helper()
	p := rvasm.New()
	p.Label("_start")
	p.La(riscv.A0, "msg")
	p.Ecall()
	p.Asciz("msg", "hi")
	b, err := rvasm.Build(p, 0x10000)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return b
}

func TestParse(t *testing.T) {
	img, err := Parse(testImage(t))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	want := &Image{
		Entry: 0x10000,
		Segments: []Segment{
			{VAddr: 0x10000, MemSize: 12, Read: true, Exec: true},
			{VAddr: 0x11000, MemSize: 3, Data: []byte("hi\x00"), Read: true, Write: true},
		},
	}
	// Text bytes are covered by the assembler's tests.
	if len(img.Segments) > 0 && len(img.Segments[0].Data) == 12 {
		img.Segments[0].Data = nil
	}
	if diff := cmp.Diff(want, img); diff != "" {
		t.Fatalf("Parse mismatch (-want +got):\n%s", diff)
	}
	if got := img.Segments[1].Pages(); got != riscv.NewVPNRange(0x11, 0x12) {
		t.Errorf("data pages = %v", got)
	}
}

func TestParseRejects(t *testing.T) {
	good := testImage(t)

	wrongMachine := append([]byte(nil), good...)
	wrongMachine[18] = 62 // EM_X86_64

	for _, tc := range []struct {
		name string
		b    []byte
	}{
		{"empty", nil},
		{"garbage", []byte("not an elf file at all, just some text padding it out")},
		{"wrong machine", wrongMachine},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Parse(tc.b); !errors.Is(err, ErrBadImage) {
				t.Errorf("Parse error = %v, want ErrBadImage", err)
			}
		})
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	if err := r.Add("hello", testImage(t)); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := r.Add("broken", []byte("nope")); !errors.Is(err, ErrBadImage) {
		t.Errorf("Add of a bad image = %v, want ErrBadImage", err)
	}
	if _, err := r.Load("hello"); err != nil {
		t.Errorf("Load(hello) failed: %v", err)
	}
	if _, err := r.Load("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load(missing) = %v, want ErrNotFound", err)
	}
	if diff := cmp.Diff([]string{"hello"}, r.Names()); diff != "" {
		t.Errorf("Names mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	img := testImage(t)
	for _, name := range []string{"b.elf", "a", "c.bin"} {
		if err := os.WriteFile(filepath.Join(dir, name), img, 0644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "subdir"), 0755); err != nil {
		t.Fatal(err)
	}

	r := NewRegistry()
	if err := r.LoadDir(context.Background(), dir); err != nil {
		t.Fatalf("LoadDir failed: %v", err)
	}
	if diff := cmp.Diff([]string{"a", "b", "c"}, r.Names()); diff != "" {
		t.Errorf("Names mismatch (-want +got):\n%s", diff)
	}

	if err := os.WriteFile(filepath.Join(dir, "bad"), []byte("junk"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := NewRegistry().LoadDir(context.Background(), dir); !errors.Is(err, ErrBadImage) {
		t.Errorf("LoadDir with a bad file = %v, want ErrBadImage", err)
	}
	if err := NewRegistry().LoadDir(context.Background(), filepath.Join(dir, "missing")); err == nil {
		t.Errorf("LoadDir of a missing dir succeeded")
	}
}
