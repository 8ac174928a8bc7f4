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
	"math"
)

// CLINT is the core-local interruptor's timer. mtime advances by one for
// every instruction the hart executes.
type CLINT struct {
	mtime    uint64
	mtimecmp uint64
}

func newCLINT() *CLINT {
	return &CLINT{mtimecmp: math.MaxUint64}
}

func (c *CLINT) tick() {
	c.mtime++
}

// Time returns mtime.
func (c *CLINT) Time() uint64 {
	return c.mtime
}

// Advance moves mtime forward by n ticks.
func (c *CLINT) Advance(n uint64) {
	c.mtime += n
}

// SetTimecmp sets mtimecmp. The timer interrupt is pending while
// mtime >= mtimecmp.
func (c *CLINT) SetTimecmp(v uint64) {
	c.mtimecmp = v
}

func (c *CLINT) pending() bool {
	return c.mtime >= c.mtimecmp
}
