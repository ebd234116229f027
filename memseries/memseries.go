// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package memseries turns per-engine memory logs into comparable
// series and transforms them for reporting.
//
// The input is one series per database engine, built from the records
// of a harness log (see package memfmt). Engines abort their runs at
// different iterations, so the series are first aligned to the largest
// iteration they all reached, then reduced to a bounded number of
// points by bucket averaging, and finally exported as a chart, JSON,
// CSV, or HTML report.
package memseries

import (
	"fmt"
	"os"
	"strings"

	"github.com/renatocron/duckdb-memory-leak-test/memfmt"
	"github.com/renatocron/duckdb-memory-leak-test/memunit"
)

// A Series is one engine's measurements of a single memory metric
// over harness iterations. Iters and Values are parallel slices;
// Iters[i] is the iteration at which Values[i] was sampled. The
// points keep the order of the log and need not be sorted or
// contiguous.
type Series struct {
	// Label identifies the engine, e.g. "DuckDB".
	Label string

	Iters  []int
	Values []float64

	srcs []string // files this series was read from
}

// MaxIter returns the largest iteration in s, or -1 if s has no
// points.
func (s *Series) MaxIter() int {
	max := -1
	for _, it := range s.Iters {
		if it > max {
			max = it
		}
	}
	return max
}

// Clip discards the points of s whose iteration lies outside
// [lo, hi], in place.
func (s *Series) Clip(lo, hi int) {
	iters, vals := s.Iters[:0], s.Values[:0]
	for i, it := range s.Iters {
		if lo <= it && it <= hi {
			iters = append(iters, it)
			vals = append(vals, s.Values[i])
		}
	}
	s.Iters, s.Values = iters, vals
}

// A Builder collects log records into one Series per label.
type Builder struct {
	metric memunit.Metric

	series []*Series
	byLab  map[string]*Series

	warn func(format string, args ...interface{})
}

type BuilderOptions struct {
	// Metric is the log field extracted into series values.
	Metric memunit.Metric

	// Warn is called with diagnostics about inputs that yield no
	// usable points.
	Warn func(format string, args ...interface{})
}

func DefaultBuilderOptions() *BuilderOptions {
	return &BuilderOptions{
		Metric: memunit.RSS,
		Warn: func(format string, args ...interface{}) {
			fmt.Fprintf(os.Stderr, format, args...)
		},
	}
}

// NewBuilder creates a new Builder that extracts bo.Metric from each
// record. Byte-sized metrics are converted to megabytes as they are
// added.
func NewBuilder(bo *BuilderOptions) (*Builder, error) {
	if _, err := memunit.ParseMetric(string(bo.Metric)); err != nil {
		return nil, err
	}
	warn := bo.Warn
	if warn == nil {
		warn = DefaultBuilderOptions().Warn
	}
	return &Builder{
		metric: bo.Metric,
		byLab:  make(map[string]*Series),
		warn:   warn,
	}, nil
}

// Metric returns the metric the builder extracts.
func (b *Builder) Metric() memunit.Metric { return b.metric }

// Add adds one record to the builder. Records that do not carry the
// builder's metric still register their label, so the series can be
// reported as empty later.
func (b *Builder) Add(res *memfmt.Result) {
	s := b.get(res.Label, res.File)
	v, ok := res.Mem.Value(b.metric)
	if !ok {
		return
	}
	s.Iters = append(s.Iters, res.Iter)
	s.Values = append(s.Values, memunit.ToDisplay(v, b.metric))
}

// AddFiles reads all the records from files into the builder.
func (b *Builder) AddFiles(files *memfmt.Files) error {
	for files.Scan() {
		b.Add(files.Result())
	}
	if err := files.Err(); err != nil {
		return err
	}
	// Register inputs whose logs parsed but produced no records at
	// all, so Series can report them.
	for _, in := range files.Inputs() {
		b.get(in.Label, in.Path)
	}
	return nil
}

func (b *Builder) get(label, src string) *Series {
	s := b.byLab[label]
	if s == nil {
		s = &Series{Label: label}
		b.byLab[label] = s
		b.series = append(b.series, s)
	}
	if len(s.srcs) == 0 || s.srcs[len(s.srcs)-1] != src {
		s.srcs = append(s.srcs, src)
	}
	return s
}

// Series returns the collected series in first-seen order. Series
// with no points are dropped with a warning; a log can parse cleanly
// and still never supply the selected metric.
func (b *Builder) Series() []*Series {
	var out []*Series
	for _, s := range b.series {
		if len(s.Iters) == 0 {
			b.warn("Warning: no iterations for %s, skipping.\n", strings.Join(s.srcs, ", "))
			continue
		}
		out = append(out, s)
	}
	return out
}
