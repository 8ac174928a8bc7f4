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

package task

import (
	"rvos.dev/rvos/pkg/ilist"
	"rvos.dev/rvos/pkg/sync"
)

// Manager is the ready queue. Tasks run in the order they were added.
type Manager struct {
	ready *sync.UPSafeCell[ilist.List[*TCB]]
}

// NewManager returns an empty ready queue.
func NewManager() *Manager {
	return &Manager{ready: sync.NewUPSafeCell("ready queue", ilist.List[*TCB]{})}
}

// Add appends t to the queue.
//
// Precondition: t is not already queued. Violations panic.
func (m *Manager) Add(t *TCB) {
	m.ready.With(func(l *ilist.List[*TCB]) {
		if t.queued {
			panic("task is already in the ready queue")
		}
		t.queued = true
		l.PushBack(t)
	})
}

// Fetch removes the task at the head of the queue. It returns false if
// the queue is empty.
func (m *Manager) Fetch() (*TCB, bool) {
	l := m.ready.Borrow()
	defer m.ready.Release()
	t, ok := l.PopFront()
	if ok {
		t.queued = false
	}
	return t, ok
}

// Len returns the number of ready tasks.
func (m *Manager) Len() int {
	l := m.ready.Borrow()
	defer m.ready.Release()
	return l.Len()
}
