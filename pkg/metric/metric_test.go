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

package metric

import (
	"bytes"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/common/expfmt"
)

var (
	testCounter = MustCreateNewUint64Metric("/test/counter", "A counter without fields.")
	testByCause = MustCreateNewUint64Metric("/test/by_cause", "A counter broken down by cause and mode.",
		NewField("cause", []string{"ecall", "fault", "timer"}),
		NewField("mode", []string{"user", "supervisor"}),
	)
)

func TestRegistration(t *testing.T) {
	for _, tc := range []struct {
		name   string
		fields []Field
		want   error
	}{
		{"/test/counter", nil, ErrNameInUse},
		{"test/no_slash", nil, ErrInvalidName},
		{"/test/Upper", nil, ErrInvalidName},
		{"/test//empty", nil, ErrInvalidName},
		{"/test/empty_field", []Field{NewField("f", nil)}, ErrFieldHasNoAllowedValues},
	} {
		if _, err := NewUint64Metric(tc.name, "", tc.fields...); !errors.Is(err, tc.want) {
			t.Errorf("NewUint64Metric(%q) = %v, want %v", tc.name, err, tc.want)
		}
	}

	many := make([]string, 300)
	for i := range many {
		many[i] = string(rune('a'+i%26)) + string(rune('a'+i/26))
	}
	if _, err := NewUint64Metric("/test/too_many", "", NewField("a", many), NewField("b", many)); !errors.Is(err, ErrTooManyFieldCombinations) {
		t.Errorf("too many combinations: got %v", err)
	}
}

func TestFieldMapper(t *testing.T) {
	m := testByCause.fieldMapper
	seen := make(map[int]bool)
	for _, cause := range []string{"ecall", "fault", "timer"} {
		for _, mode := range []string{"user", "supervisor"} {
			key := m.lookup(cause, mode)
			if seen[key] {
				t.Errorf("key %d reused for %s/%s", key, cause, mode)
			}
			seen[key] = true
			if diff := cmp.Diff([]string{cause, mode}, m.keyToMultiField(key)); diff != "" {
				t.Errorf("keyToMultiField(%d) mismatch (-want +got):\n%s", key, diff)
			}
		}
	}
	if len(seen) != m.numKeys() {
		t.Errorf("%d keys, want %d", len(seen), m.numKeys())
	}
}

func TestIncrement(t *testing.T) {
	before := testCounter.Value()
	testCounter.Increment()
	testCounter.IncrementBy(4)
	if got := testCounter.Value(); got != before+5 {
		t.Errorf("Value = %d, want %d", got, before+5)
	}

	testByCause.Increment("timer", "user")
	testByCause.IncrementBy(2, "timer", "user")
	if got := testByCause.Value("timer", "user"); got < 3 {
		t.Errorf("Value(timer, user) = %d, want at least 3", got)
	}

	defer func() {
		if recover() == nil {
			t.Errorf("a disallowed field value did not panic")
		}
	}()
	testByCause.Increment("reboot", "user")
}

func TestWriteText(t *testing.T) {
	testByCause.Increment("ecall", "supervisor")
	var buf bytes.Buffer
	if err := WriteText(&buf); err != nil {
		t.Fatalf("WriteText failed: %v", err)
	}

	var p expfmt.TextParser
	mfs, err := p.TextToMetricFamilies(&buf)
	if err != nil {
		t.Fatalf("exported text does not parse: %v", err)
	}
	mf, ok := mfs["rvos_test_by_cause"]
	if !ok {
		t.Fatalf("rvos_test_by_cause missing from %v", mfs)
	}
	if got := mf.GetHelp(); got != "A counter broken down by cause and mode." {
		t.Errorf("help = %q", got)
	}
	if got := len(mf.GetMetric()); got != 6 {
		t.Errorf("%d samples, want 6", got)
	}
	found := false
	for _, m := range mf.GetMetric() {
		labels := make(map[string]string)
		for _, l := range m.GetLabel() {
			labels[l.GetName()] = l.GetValue()
		}
		if labels["cause"] == "ecall" && labels["mode"] == "supervisor" {
			found = true
			if got, want := m.GetCounter().GetValue(), float64(testByCause.Value("ecall", "supervisor")); got != want {
				t.Errorf("exported %v, want %v", got, want)
			}
		}
	}
	if !found {
		t.Errorf("no sample for cause=ecall mode=supervisor")
	}
	if _, ok := mfs["rvos_test_counter"]; !ok {
		t.Errorf("rvos_test_counter missing")
	}
}
