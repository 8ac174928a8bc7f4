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

package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"rvos.dev/rvos/pkg/apps"
)

func TestRun(t *testing.T) {
	exit42, err := apps.Build(apps.Exit42)
	if err != nil {
		t.Fatalf("apps.Build failed: %v", err)
	}

	for _, tc := range []struct {
		name     string
		initProc string
		// files are written to a fresh apps dir when not nil.
		files    map[string][]byte
		listApps bool
		wantCode int
		wantOut  string
		wantErr  string
	}{
		{
			name:     "hello",
			initProc: apps.HelloWorld,
			wantOut:  "Hello, world!\n",
		},
		{
			name:     "list apps",
			initProc: apps.HelloWorld,
			listApps: true,
			wantOut:  "/**** APPS ****\n",
		},
		{
			name:     "exit code",
			initProc: apps.Exit42,
			wantCode: 42,
		},
		{
			name:     "negative exit code",
			initProc: apps.Illegal,
			wantCode: 253,
			wantOut:  "IllegalInstruction in application",
		},
		{
			name:     "store fault",
			initProc: apps.StoreFault,
			wantCode: 254,
		},
		{
			name:     "program from apps dir",
			initProc: "mine",
			files:    map[string][]byte{"mine.elf": exit42},
			wantCode: 42,
		},
		{
			name:     "unknown init",
			initProc: "no_such_app",
			wantErr:  "no such program",
		},
		{
			name:     "bad image in apps dir",
			initProc: apps.HelloWorld,
			files:    map[string][]byte{"junk": []byte("not an elf")},
			wantErr:  "junk",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			conf := defaultConfig()
			conf.InitProc = tc.initProc
			if tc.files != nil {
				conf.AppsDir = t.TempDir()
				for name, b := range tc.files {
					if err := os.WriteFile(filepath.Join(conf.AppsDir, name), b, 0o644); err != nil {
						t.Fatalf("WriteFile failed: %v", err)
					}
				}
			}
			var out bytes.Buffer
			r := &Run{listApps: tc.listApps}
			code, err := r.run(context.Background(), conf, nil, &out, false)
			if tc.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
					t.Fatalf("run = %d, %v, want an error containing %q", code, err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("run failed: %v\noutput:\n%s", err, out.String())
			}
			if code != tc.wantCode {
				t.Errorf("exit status = %d, want %d\noutput:\n%s", code, tc.wantCode, out.String())
			}
			if !strings.Contains(out.String(), tc.wantOut) {
				t.Errorf("output does not contain %q\noutput:\n%s", tc.wantOut, out.String())
			}
		})
	}
}

func TestRunWritesMetrics(t *testing.T) {
	conf := defaultConfig()
	conf.InitProc = apps.HelloWorld
	conf.MetricsFile = filepath.Join(t.TempDir(), "metrics.txt")
	if _, err := new(Run).run(context.Background(), conf, nil, new(bytes.Buffer), false); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	b, err := os.ReadFile(conf.MetricsFile)
	if err != nil {
		t.Fatalf("reading metrics: %v", err)
	}
	for _, want := range []string{
		"# TYPE rvos_kernel_syscalls counter",
		`rvos_kernel_syscalls{name="write"}`,
		"rvos_kernel_context_switches",
	} {
		if !strings.Contains(string(b), want) {
			t.Errorf("metrics file does not contain %q:\n%s", want, b)
		}
	}
}

func TestRunCanceled(t *testing.T) {
	conf := defaultConfig()
	conf.InitProc = apps.HelloWorld
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := new(Run).run(ctx, conf, nil, new(bytes.Buffer), false)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("run = %v, want %v", err, context.Canceled)
	}
}
