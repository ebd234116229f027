// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memseries

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/google/safehtml/template"

	"github.com/renatocron/duckdb-memory-leak-test/memunit"
)

// A Report collects everything the HTML export shows about one
// comparison: the series themselves plus derived statistics.
type Report struct {
	Metric memunit.Metric

	// Bound is the common max iteration the series were aligned
	// to, or -1 if they were not aligned.
	Bound int

	Series    []*Series
	Summaries []Summary
	Leaks     []LeakCheck
}

// BuildReport summarizes series into a Report. confidence sets the
// interval around each mean and alpha the significance level of the
// leak check.
func BuildReport(metric memunit.Metric, bound int, series []*Series, confidence, alpha float64) *Report {
	r := &Report{Metric: metric, Bound: bound, Series: series}
	for _, s := range series {
		r.Summaries = append(r.Summaries, Summarize(s, confidence))
		r.Leaks = append(r.Leaks, CheckLeak(s, alpha))
	}
	return r
}

var reportTemplate = template.Must(template.New("report").Parse(template.MakeTrustedTemplate(`<!doctype html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
.memreport { border-collapse: collapse; }
.memreport th:nth-child(1) { text-align: left; }
.memreport td:nth-child(1n+2) { text-align: right; padding: 0em 1em; }
.memreport th { border-top: 1px solid #666; border-bottom: 1px solid #ccc; }
.memreport td.leak { font-weight: bold; color: #c00; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<p>Metric: {{.Metric}}{{if .Unit}} ({{.Unit}}){{end}}</p>
{{if .Bound}}<p>Aligned to common max iteration: {{.Bound}}</p>{{end}}
<table class='memreport'>
<tr><th>engine<th>points<th>min<th>median<th>mean<th>p95<th>max
{{range .Rows -}}
<tr><td>{{.Label}}<td>{{.N}}<td>{{.Min}}<td>{{.Median}}<td>{{.Mean}}<td>{{.P95}}<td>{{.Max}}
{{end -}}
</table>
{{if .Leaks}}
<h2>Leak check</h2>
<table class='memreport'>
<tr><th>engine<th>head mean<th>tail mean<th>p-value<th>verdict
{{range .Leaks -}}
<tr><td>{{.Label}}<td>{{.Head}}<td>{{.Tail}}<td>{{.P}}<td class='{{.Class}}'>{{.Verdict}}
{{end -}}
</table>
{{end}}
<pre id="series-data" hidden>{{.DataJSON}}</pre>
</body>
</html>
`)))

type reportPage struct {
	Title    string
	Metric   string
	Unit     string
	Bound    string
	Rows     []reportRow
	Leaks    []leakRow
	DataJSON string
}

type reportRow struct {
	Label                       string
	N                           int
	Min, Median, Mean, P95, Max string
}

type leakRow struct {
	Label, Head, Tail, P, Verdict, Class string
}

// WriteHTML writes r to w as a self-contained HTML page. The reduced
// series ride along in a hidden element so a client-side plotting
// script can pick them up with JSON.parse.
func (r *Report) WriteHTML(w io.Writer) error {
	page := reportPage{
		Title:  fmt.Sprintf("%s vs Iteration (aligned to common max iteration)", r.Metric.Name()),
		Metric: string(r.Metric),
		Unit:   r.Metric.Unit(),
	}
	if r.Bound >= 0 {
		page.Bound = strconv.Itoa(r.Bound)
	}
	var data bytes.Buffer
	if err := Reduce(r.Metric, r.Series).WriteJSON(&data); err != nil {
		return err
	}
	page.DataJSON = data.String()
	for _, sum := range r.Summaries {
		page.Rows = append(page.Rows, reportRow{
			Label:  sum.Label,
			N:      sum.N,
			Min:    fmtStat(sum.Min),
			Median: fmtStat(sum.Median),
			Mean:   fmtStat(sum.Mean),
			P95:    fmtStat(sum.P95),
			Max:    fmtStat(sum.Max),
		})
	}
	for _, lc := range r.Leaks {
		row := leakRow{
			Label:   lc.Label,
			Head:    fmtStat(lc.HeadMean),
			Tail:    fmtStat(lc.TailMean),
			P:       fmt.Sprintf("%.3f", lc.P),
			Verdict: "stable",
		}
		switch {
		case lc.Significant:
			row.Verdict, row.Class = "growing", "leak"
		case len(lc.Warnings) > 0:
			row.Verdict = "inconclusive"
		}
		page.Leaks = append(page.Leaks, row)
	}
	return reportTemplate.Execute(w, page)
}

func fmtStat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return fmt.Sprintf("%.1f", v)
}
