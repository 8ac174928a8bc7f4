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
	"runtime"
)

// resume hands the hart to next.
func resume(next *Context) {
	if entry := next.entry; entry != nil {
		next.entry = nil
		go entry()
		return
	}
	next.wake <- struct{}{}
}

// Switch suspends the calling control flow in cur and resumes next. It
// returns when another control flow switches back to cur.
//
// Precondition: the caller runs the control flow saved in cur, and holds no
// borrowed cell.
func Switch(cur, next *Context) {
	SwitchOrStop(cur, next, nil)
}

// SwitchOrStop is Switch for a control flow that must not outlive done. If
// done is closed while cur is parked, the calling control flow ends instead
// of returning. A nil done never closes.
func SwitchOrStop(cur, next *Context, done <-chan struct{}) {
	if cur == next {
		return
	}
	resume(next)
	select {
	case <-cur.wake:
	case <-done:
		runtime.Goexit()
	}
}

// SwitchAndExit resumes next and ends the calling control flow.
func SwitchAndExit(next *Context) {
	resume(next)
	runtime.Goexit()
}
