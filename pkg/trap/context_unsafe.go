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

package trap

import (
	"fmt"
	"unsafe"
)

// The trampoline hard codes these offsets.
var _ [ContextSize]struct{} = [unsafe.Sizeof(Context{})]struct{}{}
var _ [trapHandlerOffset]struct{} = [unsafe.Offsetof(Context{}.TrapHandler)]struct{}{}

// FromPage returns the context stored at the start of a trap context page.
// The context aliases page, which must stay mapped while it is in use.
func FromPage(page []byte) *Context {
	if len(page) < ContextSize {
		panic(fmt.Sprintf("trap context page of %d bytes", len(page)))
	}
	return (*Context)(unsafe.Pointer(&page[0]))
}
