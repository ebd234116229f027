// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package viewer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/aclements/go-gg/ggstat"
	"github.com/aclements/go-gg/table"

	"github.com/renatocron/duckdb-memory-leak-test/memunit"
)

// trend serves usage trends across archived runs as a JSON document
// accepted by "new google.visualization.DataTable". Each row holds
// the point count, mean, min and max of one engine's values in one
// run. The metric query parameter selects which runs participate; it
// defaults to rss.
func (a *App) trend(w http.ResponseWriter, r *http.Request) {
	metric := r.URL.Query().Get("metric")
	if metric == "" {
		metric = string(memunit.RSS)
	}
	if _, err := memunit.ParseMetric(metric); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	t, err := a.trendTable(r.Context(), metric)
	if err != nil {
		log.Printf("trend: %v", err)
		http.Error(w, err.Error(), 500)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if t == nil {
		io.WriteString(w, `{"cols":[],"rows":[]}`)
		return
	}

	data := ggstat.Agg("run", "label")(
		ggstat.AggCount("points"),
		ggstat.AggMean("value"),
		ggstat.AggMin("value"),
		ggstat.AggMax("value"),
	).F(t)
	columns := []column{
		{Name: "run"},
		{Name: "label"},
		{Name: "points"},
		{Name: "mean value"},
		{Name: "min value", Role: "interval"},
		{Name: "max value", Role: "interval"},
	}
	if err := writeTableJSON(w, data.Table(data.Tables()[0]), columns); err != nil {
		log.Printf("trend: %v", err)
	}
}

// trendTable flattens every archived run recorded for metric into a
// (run, label, value) table with one row per point. It returns nil
// if no run matches.
func (a *App) trendTable(ctx context.Context, metric string) (*table.Table, error) {
	list, err := a.DB.ListRuns(ctx)
	if err != nil {
		return nil, err
	}
	var (
		runs   []int
		labels []string
		values []float64
	)
	for _, run := range list {
		if run.Metric != metric {
			continue
		}
		_, red, err := a.DB.LoadRun(ctx, run.ID)
		if err != nil {
			return nil, err
		}
		for _, s := range red.Series {
			for _, p := range s.Points {
				runs = append(runs, int(run.ID))
				labels = append(labels, s.Label)
				values = append(values, p.Value)
			}
		}
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return table.NewBuilder(nil).Add("run", runs).Add("label", labels).Add("value", values).Done(), nil
}

// column represents a column in a google.visualization.DataTable
type column struct {
	Name string `json:"id"`
	Role string `json:"role,omitempty"`
	// These fields are filled in by writeTableJSON if unspecified.
	Type  string `json:"type"`
	Label string `json:"label"`
}

// writeTableJSON writes a Table to w as the JSON form of a
// google.visualization.DataTable.
func writeTableJSON(w io.Writer, t *table.Table, columns []column) error {
	var out bytes.Buffer
	fmt.Fprint(&out, `{"cols":[`)
	var slices []table.Slice
	for i, c := range columns {
		if i > 0 {
			fmt.Fprint(&out, ",\n")
		}
		col := t.Column(c.Name)
		slices = append(slices, col)
		if c.Type == "" {
			switch col.(type) {
			case []string:
				c.Type = "string"
			case []int, []float64:
				c.Type = "number"
			}
		}
		if c.Label == "" {
			c.Label = c.Name
		}
		data, err := json.Marshal(c)
		if err != nil {
			panic(err)
		}
		out.Write(data)
	}
	fmt.Fprint(&out, `],"rows":[`)
	for i := 0; i < t.Len(); i++ {
		if i > 0 {
			fmt.Fprint(&out, ",\n")
		}
		fmt.Fprint(&out, `{"c":[`)
		for j := range columns {
			if j > 0 {
				fmt.Fprint(&out, ",")
			}
			fmt.Fprint(&out, `{"v":`)
			var value []byte
			var err error
			switch column := slices[j].(type) {
			case []string:
				value, err = json.Marshal(column[i])
			case []int:
				value, err = json.Marshal(column[i])
			case []float64:
				value, err = json.Marshal(column[i])
			}
			if err != nil {
				panic(err)
			}
			out.Write(value)
			fmt.Fprint(&out, "}")
		}
		fmt.Fprint(&out, "]}")
	}
	fmt.Fprint(&out, "]}")
	_, err := w.Write(out.Bytes())
	return err
}
