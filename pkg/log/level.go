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

package log

import (
	"fmt"
	"strings"
)

// String implements fmt.Stringer.
func (l Level) String() string {
	switch l {
	case Warning:
		return "warning"
	case Info:
		return "info"
	case Debug:
		return "debug"
	default:
		return fmt.Sprintf("Level(%d)", uint32(l))
	}
}

// Set implements flag.Value. It accepts both names and integers.
func (l *Level) Set(s string) error {
	switch strings.ToLower(s) {
	case "0", "warning":
		*l = Warning
	case "1", "info":
		*l = Info
	case "2", "debug":
		*l = Debug
	default:
		return fmt.Errorf("unknown level %q", s)
	}
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (l Level) MarshalText() ([]byte, error) {
	switch l {
	case Warning, Info, Debug:
		return []byte(l.String()), nil
	default:
		return nil, fmt.Errorf("unknown level %v", uint32(l))
	}
}

// UnmarshalText implements encoding.TextUnmarshaler, which is what the
// config file decoder uses.
func (l *Level) UnmarshalText(b []byte) error {
	return l.Set(string(b))
}
