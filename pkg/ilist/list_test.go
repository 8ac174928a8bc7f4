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

package ilist

import (
	"testing"
)

type testEntry struct {
	Entry[*testEntry]
	value int
}

func values(l *List[*testEntry]) []int {
	var vs []int
	for e := l.Front(); e != nil; e = e.Next() {
		vs = append(vs, e.value)
	}
	return vs
}

func verifyEquality(t *testing.T, l *List[*testEntry], want []int) {
	t.Helper()
	got := values(l)
	if len(got) != len(want) {
		t.Fatalf("list = %v, want %v", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("list = %v, want %v", got, want)
		}
	}
	if l.Len() != len(want) {
		t.Errorf("Len = %d, want %d", l.Len(), len(want))
	}
}

func TestPushBackPopFront(t *testing.T) {
	var l List[*testEntry]
	if !l.Empty() {
		t.Fatalf("zero list is not empty")
	}
	es := []*testEntry{{value: 1}, {value: 2}, {value: 3}}
	for _, e := range es {
		l.PushBack(e)
	}
	verifyEquality(t, &l, []int{1, 2, 3})

	for _, want := range []int{1, 2, 3} {
		e, ok := l.PopFront()
		if !ok || e.value != want {
			t.Fatalf("PopFront = %v, %t; want %d", e, ok, want)
		}
	}
	if _, ok := l.PopFront(); ok || !l.Empty() {
		t.Errorf("list not empty after popping everything")
	}
}

func TestPushFrontRemove(t *testing.T) {
	var l List[*testEntry]
	es := []*testEntry{{value: 1}, {value: 2}, {value: 3}, {value: 4}}
	for _, e := range es {
		l.PushFront(e)
	}
	verifyEquality(t, &l, []int{4, 3, 2, 1})

	l.Remove(es[1])
	verifyEquality(t, &l, []int{4, 3, 1})
	l.Remove(es[3])
	verifyEquality(t, &l, []int{3, 1})
	l.Remove(es[0])
	verifyEquality(t, &l, []int{3})
	if l.Front() != es[2] || l.Back() != es[2] {
		t.Errorf("single element list has wrong ends")
	}

	l.PushBack(es[1])
	verifyEquality(t, &l, []int{3, 2})
	l.Reset()
	verifyEquality(t, &l, nil)
}
