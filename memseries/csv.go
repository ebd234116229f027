// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memseries

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/renatocron/duckdb-memory-leak-test/memunit"
)

// WriteCSV writes series as a CSV table with one row per iteration
// and one value column per series. The first column is the iteration;
// a cell is empty where that series has no point at that iteration.
// If a series has several points at one iteration the last one wins.
func WriteCSV(w io.Writer, metric memunit.Metric, series []*Series) error {
	hdr := []string{"iteration"}
	for _, s := range series {
		if unit := metric.Unit(); unit != "" {
			hdr = append(hdr, fmt.Sprintf("%s (%s)", s.Label, unit))
		} else {
			hdr = append(hdr, s.Label)
		}
	}
	tab := [][]string{hdr}

	byIter := make([]map[int]float64, len(series))
	var iters []int
	seen := make(map[int]bool)
	for i, s := range series {
		byIter[i] = make(map[int]float64, len(s.Iters))
		for j, it := range s.Iters {
			byIter[i][it] = s.Values[j]
			if !seen[it] {
				seen[it] = true
				iters = append(iters, it)
			}
		}
	}
	sort.Ints(iters)

	for _, it := range iters {
		row := []string{strconv.Itoa(it)}
		for i := range series {
			if v, ok := byIter[i][it]; ok {
				row = append(row, strof(v))
			} else {
				row = append(row, "")
			}
		}
		tab = append(tab, row)
	}

	return csv.NewWriter(w).WriteAll(tab)
}

func strof(x float64) string {
	return fmt.Sprintf("%f", x)
}
