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
	"rvos.dev/rvos/pkg/log"
)

// msecPerSec converts seconds to milliseconds.
const msecPerSec = 1000

// TimeMS returns the machine time in milliseconds.
func (k *Kernel) TimeMS() uint64 {
	return k.fw.Time() / (k.clockFreq / msecPerSec)
}

// timeSlice returns the timer ticks in one time slice.
func (k *Kernel) timeSlice() uint64 {
	return k.clockFreq / k.ticksPerSec
}

// setNextTrigger arms the timer to interrupt one time slice from now.
func (k *Kernel) setNextTrigger() {
	deadline := k.fw.Time() + k.timeSlice()
	k.fw.SetTimer(deadline)
	log.Debugf("Timer armed for %d", deadline)
}
