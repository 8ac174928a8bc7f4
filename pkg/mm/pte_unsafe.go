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
	"unsafe"

	"rvos.dev/rvos/pkg/riscv"
)

// ptesOf views a physical page as a page table node.
//
// Precondition: page must be a full, 8-byte aligned page. Physical memory
// is host page aligned, so every page qualifies.
func ptesOf(page []byte) *PTEs {
	if len(page) != riscv.PageSize {
		panic("page table node is not a full page")
	}
	return (*PTEs)(unsafe.Pointer(&page[0]))
}
