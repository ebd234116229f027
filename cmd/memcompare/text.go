// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"unicode/utf8"

	"github.com/renatocron/duckdb-memory-leak-test/memseries"
)

// formatStats writes a fixed-width table of per-series statistics and
// growth checks to w.
func formatStats(w io.Writer, series []*memseries.Series, confidence, alpha float64) {
	rows := [][]string{{"name", "points", "min", "median", "mean", "p95", "max", "trend"}}
	for _, s := range series {
		sum := memseries.Summarize(s, confidence)
		leak := memseries.CheckLeak(s, alpha)
		rows = append(rows, []string{
			sum.Label,
			fmt.Sprint(sum.N),
			stat(sum.Min),
			stat(sum.Median),
			meanCell(sum),
			stat(sum.P95),
			stat(sum.Max),
			trendCell(leak),
		})
	}

	var max []int
	for _, row := range rows {
		for len(max) < len(row) {
			max = append(max, 0)
		}
		for i, s := range row {
			if n := utf8.RuneCountInString(s); max[i] < n {
				max[i] = n
			}
		}
	}

	var buf bytes.Buffer
	for _, row := range rows {
		for i, s := range row {
			switch i {
			case 0:
				fmt.Fprintf(&buf, "%-*s", max[i], s)
			case len(row) - 1:
				fmt.Fprintf(&buf, "  %s\n", s)
			default:
				fmt.Fprintf(&buf, "  %-*s", max[i], s)
			}
		}
	}
	w.Write(buf.Bytes())
}

func stat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return fmt.Sprintf("%.1f", v)
}

// meanCell renders the mean with its confidence interval as a
// percentage spread, like "130.4 ± 0.4%". Without a usable interval
// the mean stands alone.
func meanCell(sum memseries.Summary) string {
	if math.IsNaN(sum.Mean) {
		return ""
	}
	spread := (sum.Hi - sum.Mean) / sum.Mean * 100
	if math.IsNaN(spread) || math.IsInf(spread, 0) {
		return fmt.Sprintf("%.1f", sum.Mean)
	}
	return fmt.Sprintf("%.1f ± %.1f%%", sum.Mean, spread)
}

func trendCell(leak memseries.LeakCheck) string {
	if len(leak.Warnings) > 0 {
		return "inconclusive"
	}
	if leak.Significant {
		return fmt.Sprintf("growing (p=%.3f)", leak.P)
	}
	return fmt.Sprintf("stable (p=%.3f)", leak.P)
}
