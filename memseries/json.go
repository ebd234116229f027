// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memseries

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/renatocron/duckdb-memory-leak-test/memunit"
)

// A Reduced is the compact export form of a set of series, suitable
// for feeding a web plotting library:
//
//	{"metric":"rss","unit":"MB","series":[
//	  {"label":"DuckDB","points":[{"iteration":0,"value":103.2},...]},
//	  {"label":"Postgres","points":[...]}]}
type Reduced struct {
	Metric string          `json:"metric"`
	Unit   string          `json:"unit"`
	Series []ReducedSeries `json:"series"`
}

// A ReducedSeries is one engine's series in a Reduced export.
type ReducedSeries struct {
	Label  string         `json:"label"`
	Points []ReducedPoint `json:"points"`
}

// A ReducedPoint is a single point of a ReducedSeries.
type ReducedPoint struct {
	Iter  int     `json:"iteration"`
	Value float64 `json:"value"`
}

// Reduce converts series to the compact export form for metric.
// Series with no points are kept, with an empty points array, so a
// consumer still sees every engine that was compared.
func Reduce(metric memunit.Metric, series []*Series) *Reduced {
	r := &Reduced{
		Metric: string(metric),
		Unit:   metric.Unit(),
		Series: make([]ReducedSeries, 0, len(series)),
	}
	for _, s := range series {
		rs := ReducedSeries{
			Label:  s.Label,
			Points: make([]ReducedPoint, 0, len(s.Iters)),
		}
		for i, it := range s.Iters {
			rs.Points = append(rs.Points, ReducedPoint{it, s.Values[i]})
		}
		r.Series = append(r.Series, rs)
	}
	return r
}

// Expand converts r back into plain series.
func (r *Reduced) Expand() []*Series {
	out := make([]*Series, 0, len(r.Series))
	for _, rs := range r.Series {
		s := &Series{Label: rs.Label}
		for _, p := range rs.Points {
			s.Iters = append(s.Iters, p.Iter)
			s.Values = append(s.Values, p.Value)
		}
		out = append(out, s)
	}
	return out
}

// WriteJSON writes r to w in minified form, with no trailing newline.
func (r *Reduced) WriteJSON(w io.Writer) error {
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// ReadJSON reads a Reduced export from r.
func ReadJSON(r io.Reader) (*Reduced, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	red := new(Reduced)
	if err := json.Unmarshal(data, red); err != nil {
		return nil, fmt.Errorf("parsing reduced JSON: %w", err)
	}
	return red, nil
}
