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

// Context is a saved kernel control flow: what a switch suspends and later
// resumes.
//
// Each task's kernel control flow runs on its own goroutine, standing in
// for its kernel stack. At most one of those goroutines is runnable at a
// time; the rest are parked in Switch on their context's wake channel.
type Context struct {
	// wake resumes the goroutine parked on this context.
	wake chan struct{}

	// entry starts the control flow the first time the context is
	// switched to. It is nil once started.
	entry func()

	// sp is the top of the kernel stack the control flow runs on.
	sp uint64
}

// ZeroInit returns the context of an already running control flow, such
// as the idle loop.
func ZeroInit() *Context {
	return &Context{wake: make(chan struct{}, 1)}
}

// GotoTrapReturn returns a context that, when first switched to, runs entry
// on the kernel stack topped at kstackTop. entry is the task's way back to
// user mode and never returns while the task is alive.
func GotoTrapReturn(kstackTop uint64, entry func()) *Context {
	if entry == nil {
		panic("task context without an entry")
	}
	return &Context{
		wake:  make(chan struct{}, 1),
		entry: entry,
		sp:    kstackTop,
	}
}

// SP returns the kernel stack top the context runs on.
func (c *Context) SP() uint64 {
	return c.sp
}

// Started returns true iff the context's control flow has run.
func (c *Context) Started() bool {
	return c.entry == nil
}
