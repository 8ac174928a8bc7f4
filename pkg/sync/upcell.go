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

package sync

import (
	"fmt"
	"sync/atomic"
)

// UPSafeCell grants exclusive access to a value on a uniprocessor.
//
// It is not a lock: a second Borrow while the value is already borrowed is a
// kernel bug, and panics instead of blocking. Callers must Release before
// switching away from the current control flow, since a switch does not
// return through the frame that borrowed.
type UPSafeCell[T any] struct {
	name     string
	borrowed atomic.Bool
	value    T
}

// NewUPSafeCell returns a cell holding v. name is used in panic messages.
func NewUPSafeCell[T any](name string, v T) *UPSafeCell[T] {
	return &UPSafeCell[T]{name: name, value: v}
}

// Borrow marks the cell borrowed and returns the value.
func (c *UPSafeCell[T]) Borrow() *T {
	if !c.borrowed.CompareAndSwap(false, true) {
		panic(fmt.Sprintf("%s: already borrowed", c.name))
	}
	return &c.value
}

// Release ends the current borrow.
func (c *UPSafeCell[T]) Release() {
	if !c.borrowed.CompareAndSwap(true, false) {
		panic(fmt.Sprintf("%s: released while not borrowed", c.name))
	}
}

// With runs fn with the value borrowed. The borrow ends when fn returns,
// including when fn panics.
func (c *UPSafeCell[T]) With(fn func(*T)) {
	v := c.Borrow()
	defer c.Release()
	fn(v)
}

// Borrowed returns true iff the cell is currently borrowed.
func (c *UPSafeCell[T]) Borrowed() bool {
	return c.borrowed.Load()
}
