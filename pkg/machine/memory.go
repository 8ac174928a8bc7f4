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
	"encoding/binary"
	"fmt"

	"golang.org/x/sys/unix"
	"rvos.dev/rvos/pkg/riscv"
)

// RAMBase is the physical address of the first byte of RAM.
const RAMBase uint64 = 0x80000000

// Memory is the machine's RAM: a contiguous physical range starting at
// RAMBase, backed by an anonymous host mapping.
type Memory struct {
	end  uint64
	data []byte
}

// NewMemory maps RAM covering [RAMBase, end).
func NewMemory(end uint64) (*Memory, error) {
	if end <= RAMBase || (end-RAMBase)%riscv.PageSize != 0 {
		return nil, fmt.Errorf("invalid memory end %#x", end)
	}
	// Use mmap instead of make([]byte) so that RAM is page aligned on the
	// host as well, which lets page table pages be viewed in place.
	data, err := unix.Mmap(-1,
		0,
		int(end-RAMBase),
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("failed to mmap RAM: %w", err)
	}
	return &Memory{end: end, data: data}, nil
}

// Close unmaps RAM. The Memory must not be used afterwards.
func (m *Memory) Close() error {
	if m.data == nil {
		return nil
	}
	err := unix.Munmap(m.data)
	m.data = nil
	return err
}

// End returns the first physical address past RAM.
func (m *Memory) End() uint64 {
	return m.end
}

// Contains returns true iff [pa, pa+n) lies entirely in RAM.
func (m *Memory) Contains(pa, n uint64) bool {
	return pa >= RAMBase && pa <= m.end && n <= m.end-pa
}

// Slice returns the bytes of [pa, pa+n), or false if the range is not RAM.
func (m *Memory) Slice(pa, n uint64) ([]byte, bool) {
	if !m.Contains(pa, n) {
		return nil, false
	}
	off := pa - RAMBase
	return m.data[off : off+n : off+n], true
}

// Page returns the bytes of physical page ppn.
//
// Precondition: ppn must be a RAM page. Violations panic.
func (m *Memory) Page(ppn riscv.PhysPageNum) []byte {
	b, ok := m.Slice(uint64(ppn.Addr()), riscv.PageSize)
	if !ok {
		panic(fmt.Sprintf("%v is outside RAM [%#x, %#x)", ppn, RAMBase, m.end))
	}
	return b
}

// load reads an n-byte little-endian value.
func (m *Memory) load(pa uint64, n uint64) (uint64, bool) {
	b, ok := m.Slice(pa, n)
	if !ok {
		return 0, false
	}
	switch n {
	case 1:
		return uint64(b[0]), true
	case 2:
		return uint64(binary.LittleEndian.Uint16(b)), true
	case 4:
		return uint64(binary.LittleEndian.Uint32(b)), true
	case 8:
		return binary.LittleEndian.Uint64(b), true
	}
	panic(fmt.Sprintf("bad access size %d", n))
}

// store writes an n-byte little-endian value.
func (m *Memory) store(pa uint64, n uint64, v uint64) bool {
	b, ok := m.Slice(pa, n)
	if !ok {
		return false
	}
	switch n {
	case 1:
		b[0] = byte(v)
	case 2:
		binary.LittleEndian.PutUint16(b, uint16(v))
	case 4:
		binary.LittleEndian.PutUint32(b, uint32(v))
	case 8:
		binary.LittleEndian.PutUint64(b, v)
	default:
		panic(fmt.Sprintf("bad access size %d", n))
	}
	return true
}
