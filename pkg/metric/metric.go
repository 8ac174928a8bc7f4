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

// Package metric provides primitives for collecting metrics.
package metric

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"

	"rvos.dev/rvos/pkg/sync"
)

var (
	// ErrNameInUse indicates that another metric is already defined for
	// the given name.
	ErrNameInUse = errors.New("metric name already in use")

	// ErrInvalidName indicates that a metric name is not of the form
	// "/a/b_c".
	ErrInvalidName = errors.New("metric name is not a slash separated path of lower case words")

	// ErrFieldHasNoAllowedValues indicates that the field needs to define
	// some allowed values to be a valid and useful field.
	ErrFieldHasNoAllowedValues = errors.New("metric field does not define any allowed values")

	// ErrTooManyFieldCombinations indicates that instantiating a metric
	// with the given fields would result in an unreasonable number of
	// combinations.
	ErrTooManyFieldCombinations = errors.New("metric has too many combinations of allowed field values")
)

// maxFieldCombinations bounds the number of counters one metric may hold.
const maxFieldCombinations = 1 << 16

// Uint64Metric encapsulates a uint64 that represents some kind of metric to be
// monitored. It may be broken down by fields, each with a fixed set of
// allowed values.
type Uint64Metric struct {
	name        string
	description string

	// fields is the map of field-value combination index keys to counters.
	fields []atomic.Uint64

	// fieldMapper is used to generate index keys for the fields array (above)
	// based on field value combinations, and vice-versa.
	fieldMapper fieldMapper
}

// allMetrics are the registered metrics, by name.
var allMetrics = struct {
	mu            sync.Mutex
	uint64Metrics map[string]*Uint64Metric
}{uint64Metrics: make(map[string]*Uint64Metric)}

// Field contains the field name and allowed values for the metric which is
// used in registration of the metric.
type Field struct {
	// name is the metric field name.
	name string

	// allowedValues is the list of allowed values for the field.
	allowedValues []string
}

// NewField defines a new Field that can be used to break down a metric.
func NewField(name string, allowedValues []string) Field {
	return Field{
		name:          name,
		allowedValues: allowedValues,
	}
}

// fieldMapper provides multi-dimensional fields to a single unique integer key
type fieldMapper struct {
	// fields is a list of Field objects, which importantly include individual
	// Field names which are used to perform the keyToMultiField function; and
	// allowedValues for each field type which are used to perform the lookup
	// function.
	fields []Field

	// numFieldCombinations is the number of unique keys for all possible field
	// combinations.
	numFieldCombinations int
}

// newFieldMapper returns a new fieldMapper for the given set of fields.
func newFieldMapper(fields ...Field) (fieldMapper, error) {
	numFieldCombinations := 1
	for _, f := range fields {
		// Disallow fields with no possible values. We could also ignore them
		// instead, but passing in a no-allowed-values field is probably a mistake.
		if len(f.allowedValues) == 0 {
			return fieldMapper{}, ErrFieldHasNoAllowedValues
		}
		numFieldCombinations *= len(f.allowedValues)
		if numFieldCombinations > maxFieldCombinations {
			return fieldMapper{}, ErrTooManyFieldCombinations
		}
	}
	return fieldMapper{
		fields:               fields,
		numFieldCombinations: numFieldCombinations,
	}, nil
}

// lookup looks up a key within the fieldMapper.
// This *must* be called with the correct number of fields, or it will panic.
func (m fieldMapper) lookup(fields ...string) int {
	if len(fields) != len(m.fields) {
		panic("invalid field lookup depth")
	}
	idx := 0
	remainingCombinationBucket := m.numFieldCombinations

IdxLookup:
	for i, val := range fields {
		for valIdx, allowedVal := range m.fields[i].allowedValues {
			if val == allowedVal {
				remainingCombinationBucket /= len(m.fields[i].allowedValues)
				idx += remainingCombinationBucket * valIdx
				continue IdxLookup
			}
		}
		panic(fmt.Sprintf("disallowed value %q for field %q", val, m.fields[i].name))
	}
	return idx
}

// numKeys returns the total number of key-to-field-combinations mappings
// defined by the fieldMapper.
func (m fieldMapper) numKeys() int {
	return m.numFieldCombinations
}

// keyToMultiField is the reverse of lookup: given a key, it returns the
// field values, in field order.
func (m fieldMapper) keyToMultiField(key int) []string {
	depth := len(m.fields)
	if depth == 0 {
		return nil
	}
	fieldValues := make([]string, depth)
	remainingCombinationBucket := m.numFieldCombinations
	for i := 0; i < depth; i++ {
		remainingCombinationBucket /= len(m.fields[i].allowedValues)
		fieldValues[i] = m.fields[i].allowedValues[key/remainingCombinationBucket]
		key = key % remainingCombinationBucket
	}
	return fieldValues
}

func validName(name string) bool {
	if !strings.HasPrefix(name, "/") || strings.HasSuffix(name, "/") {
		return false
	}
	for _, part := range strings.Split(name[1:], "/") {
		if part == "" {
			return false
		}
		for _, c := range part {
			if (c < 'a' || c > 'z') && (c < '0' || c > '9') && c != '_' {
				return false
			}
		}
	}
	return true
}

// NewUint64Metric creates and registers a new cumulative metric with the given
// name.
//
// Metrics must be statically defined (i.e., at init).
func NewUint64Metric(name, description string, fields ...Field) (*Uint64Metric, error) {
	if !validName(name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	f, err := newFieldMapper(fields...)
	if err != nil {
		return nil, err
	}
	allMetrics.mu.Lock()
	defer allMetrics.mu.Unlock()
	if _, ok := allMetrics.uint64Metrics[name]; ok {
		return nil, fmt.Errorf("%w: %q", ErrNameInUse, name)
	}
	m := &Uint64Metric{
		name:        name,
		description: description,
		fields:      make([]atomic.Uint64, f.numKeys()),
		fieldMapper: f,
	}
	allMetrics.uint64Metrics[name] = m
	return m, nil
}

// MustCreateNewUint64Metric calls NewUint64Metric and panics if it returns
// an error.
func MustCreateNewUint64Metric(name, description string, fields ...Field) *Uint64Metric {
	m, err := NewUint64Metric(name, description, fields...)
	if err != nil {
		panic(fmt.Sprintf("Unable to create metric %q: %s", name, err))
	}
	return m
}

// Value returns the current value of the metric for the given set of fields.
// This must be called with the correct number of field values or it will panic.
func (m *Uint64Metric) Value(fieldValues ...string) uint64 {
	return m.fields[m.fieldMapper.lookup(fieldValues...)].Load()
}

// Increment increments the metric field by 1.
// This must be called with the correct number of field values or it will panic.
func (m *Uint64Metric) Increment(fieldValues ...string) {
	m.IncrementBy(1, fieldValues...)
}

// IncrementBy increments the metric by v.
// This must be called with the correct number of field values or it will panic.
func (m *Uint64Metric) IncrementBy(v uint64, fieldValues ...string) {
	m.fields[m.fieldMapper.lookup(fieldValues...)].Add(v)
}

// Name returns the metric's name.
func (m *Uint64Metric) Name() string {
	return m.name
}

// sample is the value of one field combination.
type sample struct {
	labels map[string]string
	value  uint64
}

// samples returns the metric's current values, one per field combination,
// in key order.
func (m *Uint64Metric) samples() []sample {
	out := make([]sample, 0, len(m.fields))
	for key := range m.fields {
		var labels map[string]string
		if values := m.fieldMapper.keyToMultiField(key); len(values) != 0 {
			labels = make(map[string]string, len(values))
			for i, v := range values {
				labels[m.fieldMapper.fields[i].name] = v
			}
		}
		out = append(out, sample{labels: labels, value: m.fields[key].Load()})
	}
	return out
}

// registered returns every registered metric, sorted by name.
func registered() []*Uint64Metric {
	allMetrics.mu.Lock()
	defer allMetrics.mu.Unlock()
	ms := make([]*Uint64Metric, 0, len(allMetrics.uint64Metrics))
	for _, m := range allMetrics.uint64Metrics {
		ms = append(ms, m)
	}
	sort.Slice(ms, func(i, j int) bool { return ms[i].name < ms[j].name })
	return ms
}
