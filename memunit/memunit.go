// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package memunit describes the memory metrics recorded by the
// benchmark harness and converts raw values into display units.
package memunit

import "fmt"

// A Metric identifies one memory statistic in a harness log.
// Its value is the field name used in the log records.
type Metric string

const (
	RSS          Metric = "rss"
	HeapUsed     Metric = "heapUsed"
	HeapTotal    Metric = "heapTotal"
	External     Metric = "external"
	ArrayBuffers Metric = "arrayBuffers"
)

// Metrics returns the metrics the harness is known to record, in
// log-field order.
func Metrics() []Metric {
	return []Metric{RSS, HeapUsed, HeapTotal, External, ArrayBuffers}
}

// ParseMetric validates s as a known metric field name.
func ParseMetric(s string) (Metric, error) {
	for _, m := range Metrics() {
		if s == string(m) {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown metric %q", s)
}

func (m Metric) String() string {
	return string(m)
}

// Name returns the human-readable name of m, such as "Heap Used" for
// heapUsed. Unknown metrics name themselves.
func (m Metric) Name() string {
	switch m {
	case RSS:
		return "RSS"
	case HeapUsed:
		return "Heap Used"
	case HeapTotal:
		return "Heap Total"
	case External:
		return "External"
	case ArrayBuffers:
		return "Array Buffers"
	}
	return string(m)
}

// A Class specifies how a metric's raw values are scaled for display.
type Class int

const (
	// ByteSized indicates raw values are byte counts, displayed in
	// binary megabytes.
	ByteSized Class = iota
	// Plain indicates raw values carry no byte unit and pass
	// through unscaled.
	Plain
)

func (c Class) String() string {
	switch c {
	case ByteSized:
		return "ByteSized"
	case Plain:
		return "Plain"
	}
	return fmt.Sprintf("Class(%d)", int(c))
}

// ClassOf returns the display class of m. Every metric the harness
// records today is a byte count; anything else passes through.
func ClassOf(m Metric) Class {
	switch m {
	case RSS, HeapUsed, HeapTotal, External, ArrayBuffers:
		return ByteSized
	}
	return Plain
}

// BytesPerMB is the divisor applied to byte-sized metrics. The display
// unit is labeled "MB" throughout, matching the harness convention,
// though the factor is the binary megabyte.
const BytesPerMB = 1 << 20

// ToDisplay converts a raw log value of m into its display unit:
// megabytes for byte-sized metrics, the value unchanged otherwise.
func ToDisplay(v float64, m Metric) float64 {
	if ClassOf(m) == ByteSized {
		return v / BytesPerMB
	}
	return v
}

// Unit returns the display unit label of m: "MB" for byte-sized
// metrics, "" otherwise.
func (m Metric) Unit() string {
	if ClassOf(m) == ByteSized {
		return "MB"
	}
	return ""
}
