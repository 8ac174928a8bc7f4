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
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewBasicLogger(&buf, "text")
	if err != nil {
		t.Fatalf("NewBasicLogger failed: %v", err)
	}
	l.Debugf("hidden %d", 1)
	l.Infof("shown %d", 2)
	if strings.Contains(buf.String(), "hidden") {
		t.Errorf("debug message emitted at info level: %q", buf.String())
	}
	if !strings.Contains(buf.String(), "shown 2") {
		t.Errorf("info message missing: %q", buf.String())
	}

	l.SetLevel(Debug)
	l.Debugf("now visible")
	if !strings.Contains(buf.String(), "now visible") {
		t.Errorf("debug message missing after SetLevel(Debug): %q", buf.String())
	}

	buf.Reset()
	l.SetLevel(Warning)
	l.Infof("quiet")
	l.Warningf("loud")
	if got := buf.String(); strings.Contains(got, "quiet") || !strings.Contains(got, "loud") {
		t.Errorf("warning level output = %q", got)
	}
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewBasicLogger(&buf, "json")
	if err != nil {
		t.Fatalf("NewBasicLogger failed: %v", err)
	}
	l.WithField("pid", 3).Warningf("task exited with %d", -2)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output %q is not json: %v", buf.String(), err)
	}
	if entry["msg"] != "task exited with -2" {
		t.Errorf("msg = %v", entry["msg"])
	}
	if entry["level"] != "warning" {
		t.Errorf("level = %v", entry["level"])
	}
	if entry["pid"] != float64(3) {
		t.Errorf("pid = %v", entry["pid"])
	}
}

func TestBadFormat(t *testing.T) {
	if _, err := NewBasicLogger(&bytes.Buffer{}, "xml"); err == nil {
		t.Errorf("NewBasicLogger accepted format xml")
	}
}

func TestSetTargetKeepsLevel(t *testing.T) {
	old := Log()
	defer log.Store(old)

	SetLevel(Debug)
	var buf bytes.Buffer
	if err := SetTarget(&buf, "text"); err != nil {
		t.Fatalf("SetTarget failed: %v", err)
	}
	if !IsLogging(Debug) {
		t.Errorf("SetTarget reset the level")
	}
	Debugf("boot %s", "ok")
	if !strings.Contains(buf.String(), "boot ok") {
		t.Errorf("global Debugf output = %q", buf.String())
	}
}

func TestRateLimitedLogger(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewBasicLogger(&buf, "text")
	if err != nil {
		t.Fatalf("NewBasicLogger failed: %v", err)
	}
	rl := RateLimitedLogger(l, time.Hour, 2)
	for i := 0; i < 10; i++ {
		rl.Warningf("fault %d", i)
	}
	if got := strings.Count(buf.String(), "fault"); got != 2 {
		t.Errorf("rate limited logger emitted %d messages, want 2", got)
	}
}

func TestRateLimitedDebugDoesNotSpendTokens(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewBasicLogger(&buf, "text")
	if err != nil {
		t.Fatalf("NewBasicLogger failed: %v", err)
	}
	rl := RateLimitedLogger(l, time.Hour, 1)
	rl.Debugf("filtered")
	rl.Warningf("kept")
	if !strings.Contains(buf.String(), "kept") {
		t.Errorf("a filtered debug message consumed the only token: %q", buf.String())
	}
}
