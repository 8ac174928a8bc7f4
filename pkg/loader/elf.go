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

// Package loader parses user program images and keeps the registry of
// programs the kernel can run.
package loader

import (
	"bytes"
	"debug/elf"
	"errors"
	"fmt"
	"io"

	"rvos.dev/rvos/pkg/riscv"
)

// ErrBadImage is returned for images the kernel cannot load.
var ErrBadImage = errors.New("bad program image")

// UserTop bounds the addresses a program may load at: the lower,
// non-negative half of the Sv39 address space.
const UserTop = 1 << (riscv.VAWidth - 1)

// Segment is one loadable region of an image.
type Segment struct {
	// VAddr is the virtual address of the first byte.
	VAddr uint64

	// MemSize is the size of the region in memory. Bytes past len(Data)
	// are zero.
	MemSize uint64

	// Data is the file contents of the region.
	Data []byte

	Read  bool
	Write bool
	Exec  bool
}

// End returns the first address past the segment.
func (s *Segment) End() uint64 {
	return s.VAddr + s.MemSize
}

// Pages returns the virtual pages the segment occupies.
func (s *Segment) Pages() riscv.VPNRange {
	return riscv.NewVPNRange(riscv.NewVirtAddr(s.VAddr).Floor(), riscv.NewVirtAddr(s.End()).Ceil())
}

// Image is a parsed program.
type Image struct {
	Entry    uint64
	Segments []Segment
}

// Parse parses a little-endian RV64 ELF executable.
func Parse(b []byte) (*Image, error) {
	f, err := elf.NewFile(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadImage, err)
	}
	defer f.Close()

	if f.Class != elf.ELFCLASS64 || f.Data != elf.ELFDATA2LSB || f.Machine != elf.EM_RISCV {
		return nil, fmt.Errorf("%w: not a little-endian RV64 executable (%v %v %v)", ErrBadImage, f.Class, f.Data, f.Machine)
	}
	if f.Type != elf.ET_EXEC {
		return nil, fmt.Errorf("%w: unsupported type %v", ErrBadImage, f.Type)
	}

	img := &Image{Entry: f.Entry}
	for _, p := range f.Progs {
		if p.Type != elf.PT_LOAD {
			continue
		}
		if p.Filesz > p.Memsz {
			return nil, fmt.Errorf("%w: segment at %#x has filesz %#x > memsz %#x", ErrBadImage, p.Vaddr, p.Filesz, p.Memsz)
		}
		if p.Vaddr+p.Memsz < p.Vaddr || p.Vaddr+p.Memsz > UserTop {
			return nil, fmt.Errorf("%w: segment [%#x, %#x) is outside user space", ErrBadImage, p.Vaddr, p.Vaddr+p.Memsz)
		}
		data := make([]byte, p.Filesz)
		if _, err := io.ReadFull(p.Open(), data); err != nil {
			return nil, fmt.Errorf("%w: reading segment at %#x: %v", ErrBadImage, p.Vaddr, err)
		}
		img.Segments = append(img.Segments, Segment{
			VAddr:   p.Vaddr,
			MemSize: p.Memsz,
			Data:    data,
			Read:    p.Flags&elf.PF_R != 0,
			Write:   p.Flags&elf.PF_W != 0,
			Exec:    p.Flags&elf.PF_X != 0,
		})
	}
	if len(img.Segments) == 0 {
		return nil, fmt.Errorf("%w: no loadable segments", ErrBadImage)
	}
	for i := range img.Segments {
		for j := i + 1; j < len(img.Segments); j++ {
			a, b := img.Segments[i].Pages(), img.Segments[j].Pages()
			if a.Overlaps(b) {
				return nil, fmt.Errorf("%w: segments %v and %v share a page", ErrBadImage, a, b)
			}
		}
	}
	return img, nil
}
