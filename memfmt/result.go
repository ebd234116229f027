// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package memfmt reads the JSON memory logs written by the benchmark
// harness.
//
// A log is a single JSON document of the form
//
//	{"config": {...},
//	 "stats": [
//	   {"timestamp": ..., "iteration": 0, "rss": 108318720, "heapUsed": ..., ...},
//	   {"timestamp": ..., "iteration": 1, "rss": 111071232, ...},
//	   ...
//	 ]}
//
// Readers in this package surface one Result per usable stats record.
// A record is usable if it carries an iteration; which memory fields it
// must carry depends on the metric the caller is extracting, so that
// filtering is left to the caller.
package memfmt

import "github.com/renatocron/duckdb-memory-leak-test/memunit"

// A Result is a single usable stats record read from a memory log.
type Result struct {
	// File is the path of the log this record was read from
	// ("-" for standard input).
	File string

	// Label is the display label of the series this record
	// belongs to, inferred from the file name or overridden by
	// the caller.
	Label string

	// Iter is the harness iteration at which the snapshot was
	// taken. Fractional iteration values in the log are truncated.
	Iter int

	// Mem holds the known memory fields of the record.
	Mem MemStats
}

// MemStats holds the known byte-valued fields of one snapshot record.
// A nil field was absent from (or null in) the record.
type MemStats struct {
	RSS          *float64
	HeapUsed     *float64
	HeapTotal    *float64
	External     *float64
	ArrayBuffers *float64
}

// Value returns the raw value of metric m and whether the record
// supplied it.
func (s *MemStats) Value(m memunit.Metric) (float64, bool) {
	var p *float64
	switch m {
	case memunit.RSS:
		p = s.RSS
	case memunit.HeapUsed:
		p = s.HeapUsed
	case memunit.HeapTotal:
		p = s.HeapTotal
	case memunit.External:
		p = s.External
	case memunit.ArrayBuffers:
		p = s.ArrayBuffers
	}
	if p == nil {
		return 0, false
	}
	return *p, true
}
