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
	"testing"
)

func TestLevelText(t *testing.T) {
	for _, lv := range []Level{Warning, Info, Debug} {
		bs, err := lv.MarshalText()
		if err != nil {
			t.Errorf("error marshaling %v: %v", lv, err)
		}
		var lv2 Level
		if err := lv2.UnmarshalText(bs); err != nil {
			t.Errorf("error unmarshaling %s: %v", bs, err)
		}
		if lv != lv2 {
			t.Errorf("marshal/unmarshal level got %v wanted %v", lv2, lv)
		}
	}
}

func TestLevelSet(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want Level
	}{
		{"0", Warning},
		{"1", Info},
		{"2", Debug},
		{"DEBUG", Debug},
		{"warning", Warning},
	} {
		var lv Level
		if err := lv.Set(tc.in); err != nil {
			t.Errorf("Set(%q) failed: %v", tc.in, err)
		}
		if lv != tc.want {
			t.Errorf("Set(%q) = %v, want %v", tc.in, lv, tc.want)
		}
	}
	var lv Level
	if err := lv.Set("trace"); err == nil {
		t.Errorf("Set(trace) succeeded")
	}
	if _, err := Level(7).MarshalText(); err == nil {
		t.Errorf("MarshalText of an unknown level succeeded")
	}
}
