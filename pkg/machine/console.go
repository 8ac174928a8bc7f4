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
	"bufio"
	"io"

	"rvos.dev/rvos/pkg/sync"
)

const consoleBuffer = 4096

// Console is the firmware UART. Output is line buffered; input is read by
// a background goroutine so that ConsoleGetchar never blocks.
type Console struct {
	out  *bufio.Writer
	crlf bool

	in        chan byte
	done      chan struct{}
	closeOnce sync.Once
}

func newConsole(in io.Reader, out io.Writer, crlf bool) *Console {
	if out == nil {
		out = io.Discard
	}
	c := &Console{
		out:  bufio.NewWriter(out),
		crlf: crlf,
		in:   make(chan byte, consoleBuffer),
		done: make(chan struct{}),
	}
	if in == nil {
		close(c.in)
		return c
	}
	go c.pump(in)
	return c
}

func (c *Console) pump(in io.Reader) {
	defer close(c.in)
	buf := make([]byte, 256)
	for {
		n, err := in.Read(buf)
		for _, b := range buf[:n] {
			select {
			case c.in <- b:
			case <-c.done:
				return
			}
		}
		if err != nil {
			return
		}
	}
}

func (c *Console) putchar(b byte) {
	if c.crlf && b == '\n' {
		c.out.WriteByte('\r')
	}
	c.out.WriteByte(b)
	if b == '\n' {
		c.out.Flush()
	}
}

// getchar returns the next input byte, 0 if none is pending and -1 once
// the input is exhausted.
func (c *Console) getchar() int {
	// Whoever is waiting for input should see any prompt first.
	c.out.Flush()
	select {
	case b, ok := <-c.in:
		if !ok {
			return -1
		}
		return int(b)
	default:
		return 0
	}
}

// Flush writes out buffered output.
func (c *Console) Flush() error {
	return c.out.Flush()
}

func (c *Console) close() error {
	c.closeOnce.Do(func() { close(c.done) })
	return c.out.Flush()
}
