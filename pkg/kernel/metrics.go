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

package kernel

import (
	"rvos.dev/rvos/pkg/metric"
)

// Kernel counters. They are exported by the metric package.
var (
	trapsByCause = metric.MustCreateNewUint64Metric("/kernel/traps", "Traps from user mode, by cause.",
		metric.NewField("cause", []string{"ecall", "fault", "illegal", "timer"}))
	syscallCount = metric.MustCreateNewUint64Metric("/kernel/syscalls", "System calls dispatched, by name.",
		metric.NewField("name", syscallNames))
	unknownSyscalls = metric.MustCreateNewUint64Metric("/kernel/unknown_syscalls", "System calls with an unknown id.")
	contextSwitches = metric.MustCreateNewUint64Metric("/kernel/context_switches", "Switches from the idle control flow to a task.")
	tasksCreated    = metric.MustCreateNewUint64Metric("/kernel/tasks_created", "Tasks created by init admission or fork.")
	userFaults      = metric.MustCreateNewUint64Metric("/kernel/user_faults", "Tasks killed for a fault.")
)

// syscallNames are the names a SyscallTable may use.
var syscallNames = []string{"read", "write", "exit", "yield", "get_time", "getpid", "fork", "exec", "waitpid"}
