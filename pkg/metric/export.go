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
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/golang/protobuf/proto"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

// ExporterPrefix is prepended to every exported metric name.
const ExporterPrefix = "rvos_"

// exportName converts a metric name such as "/kernel/traps" to its
// exported form, "rvos_kernel_traps".
func exportName(name string) string {
	return ExporterPrefix + strings.ReplaceAll(strings.TrimPrefix(name, "/"), "/", "_")
}

// toProto returns the metric's current values as a counter family.
func (m *Uint64Metric) toProto() *dto.MetricFamily {
	mf := &dto.MetricFamily{
		Name: proto.String(exportName(m.name)),
		Help: proto.String(m.description),
		Type: dto.MetricType_COUNTER.Enum(),
	}
	for _, s := range m.samples() {
		names := make([]string, 0, len(s.labels))
		for name := range s.labels {
			names = append(names, name)
		}
		sort.Strings(names)
		pm := &dto.Metric{Counter: &dto.Counter{Value: proto.Float64(float64(s.value))}}
		for _, name := range names {
			pm.Label = append(pm.Label, &dto.LabelPair{
				Name:  proto.String(name),
				Value: proto.String(s.labels[name]),
			})
		}
		mf.Metric = append(mf.Metric, pm)
	}
	return mf
}

// Gather returns a snapshot of every registered metric, sorted by name.
func Gather() []*dto.MetricFamily {
	var mfs []*dto.MetricFamily
	for _, m := range registered() {
		mfs = append(mfs, m.toProto())
	}
	return mfs
}

// WriteText writes a snapshot of every registered metric to w in the
// Prometheus text exposition format.
func WriteText(w io.Writer) error {
	for _, mf := range Gather() {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("writing metric %s: %w", mf.GetName(), err)
		}
	}
	return nil
}
