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

	"rvos.dev/rvos/pkg/riscv"
)

const (
	ehdrSize = 64
	phdrSize = 56
)

// ELF encodes the image as a static little-endian RV64 executable with one
// R+X PT_LOAD segment for text and, if there is data, one R+W segment.
func (img *Image) ELF() ([]byte, error) {
	type segment struct {
		addr  uint64
		data  []byte
		flags elf.ProgFlag
	}
	segs := []segment{{img.TextAddr, img.Text, elf.PF_R | elf.PF_X}}
	if len(img.Data) != 0 {
		segs = append(segs, segment{img.DataAddr, img.Data, elf.PF_R | elf.PF_W})
	}

	hdr := elf.Header64{
		Type:      uint16(elf.ET_EXEC),
		Machine:   uint16(elf.EM_RISCV),
		Version:   uint32(elf.EV_CURRENT),
		Entry:     img.Entry,
		Phoff:     ehdrSize,
		Ehsize:    ehdrSize,
		Phentsize: phdrSize,
		Phnum:     uint16(len(segs)),
	}
	copy(hdr.Ident[:], elf.ELFMAG)
	hdr.Ident[elf.EI_CLASS] = byte(elf.ELFCLASS64)
	hdr.Ident[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	hdr.Ident[elf.EI_VERSION] = byte(elf.EV_CURRENT)

	// Segment contents start page aligned so that file offsets and
	// addresses agree modulo the page size.
	off := alignUp(ehdrSize+phdrSize*uint64(len(segs)), riscv.PageSize)
	progs := make([]elf.Prog64, len(segs))
	for i, s := range segs {
		progs[i] = elf.Prog64{
			Type:   uint32(elf.PT_LOAD),
			Flags:  uint32(s.flags),
			Off:    off,
			Vaddr:  s.addr,
			Paddr:  s.addr,
			Filesz: uint64(len(s.data)),
			Memsz:  uint64(len(s.data)),
			Align:  riscv.PageSize,
		}
		off = alignUp(off+uint64(len(s.data)), riscv.PageSize)
	}

	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, &hdr); err != nil {
		return nil, err
	}
	for i := range progs {
		if err := binary.Write(&buf, binary.LittleEndian, &progs[i]); err != nil {
			return nil, err
		}
	}
	for i, s := range segs {
		buf.Write(make([]byte, progs[i].Off-uint64(buf.Len())))
		buf.Write(s.data)
	}
	return buf.Bytes(), nil
}

// Build links p at base and encodes it as an ELF executable.
func Build(p *Program, base uint64) ([]byte, error) {
	img, err := p.Link(base)
	if err != nil {
		return nil, err
	}
	return img.ELF()
}
