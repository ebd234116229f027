// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package viewer implements the archive viewing server. Combine an
// App with an archive database and call RegisterOnMux to connect it
// with an HTTP server.
package viewer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/google/safehtml/template"

	"github.com/renatocron/duckdb-memory-leak-test/archive"
	"github.com/renatocron/duckdb-memory-leak-test/memfmt"
	"github.com/renatocron/duckdb-memory-leak-test/memseries"
	"github.com/renatocron/duckdb-memory-leak-test/memunit"
)

const defaultTargetPoints = 300

// App manages the viewer server logic. Construct an App instance
// with an archive DB and call RegisterOnMux to connect it with an
// HTTP server.
type App struct {
	// DB is the run archive to serve.
	DB *archive.DB

	// Metric and TargetPoints configure the reduction applied to
	// raw harness logs posted to /upload. The zero values mean
	// rss and 300.
	Metric       memunit.Metric
	TargetPoints int
}

func (a *App) metric() memunit.Metric {
	if a.Metric == "" {
		return memunit.RSS
	}
	return a.Metric
}

func (a *App) targetPoints() int {
	if a.TargetPoints == 0 {
		return defaultTargetPoints
	}
	return a.TargetPoints
}

// RegisterOnMux registers the app's URLs on mux.
func (a *App) RegisterOnMux(mux *http.ServeMux) {
	mux.HandleFunc("/", a.index)
	mux.HandleFunc("/data.json", a.data)
	mux.HandleFunc("/plot.png", a.plot)
	mux.HandleFunc("/trend.json", a.trend)
	mux.HandleFunc("/upload", a.upload)
}

var indexTemplate = template.Must(template.New("index").Parse(template.MakeTrustedTemplate(`<!doctype html>
<html>
<head>
<meta charset="utf-8">
<title>Memory comparison archive</title>
<style>
.runs { border-collapse: collapse; }
.runs th:nth-child(1) { text-align: left; }
.runs td { padding: 0em 1em; }
.runs th { border-top: 1px solid #666; border-bottom: 1px solid #ccc; }
</style>
</head>
<body>
<h1>Memory comparison archive</h1>
{{if .Runs}}
<table class='runs'>
<tr><th>run<th>metric<th>bound<th>target<th>uploaded<th><th>
{{range .Runs -}}
<tr><td>{{.ID}}<td>{{.Metric}}<td>{{.Bound}}<td>{{.TargetPoints}}<td>{{.Uploaded}}<td><a href="{{.PlotURL}}">plot</a><td><a href="{{.DataURL}}">data</a>
{{end -}}
</table>
{{else}}
<p>No runs archived yet. POST harness logs or reduced JSON files to /upload.</p>
{{end}}
{{if .Latest}}
<h2>Latest run</h2>
<p>Run {{.Latest.ID}} ({{.Latest.Metric}}):</p>
<ul>
{{range .Latest.Series -}}
<li>{{.Label}}: {{.Points}} points</li>
{{end -}}
</ul>
{{end}}
</body>
</html>
`)))

type indexPage struct {
	Runs   []indexRun
	Latest *latestRun
}

type indexRun struct {
	ID           int64
	Metric       string
	Bound        int
	TargetPoints int
	Uploaded     string
	PlotURL      string
	DataURL      string
}

type latestRun struct {
	ID     int64
	Metric string
	Series []latestSeries
}

type latestSeries struct {
	Label  string
	Points int
}

// index serves the run listing and a summary of the most recent run
// on "/".
func (a *App) index(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	runs, err := a.DB.ListRuns(r.Context())
	if err != nil {
		log.Printf("listing runs: %v", err)
		http.Error(w, err.Error(), 500)
		return
	}
	var page indexPage
	for _, run := range runs {
		page.Runs = append(page.Runs, indexRun{
			ID:           run.ID,
			Metric:       run.Metric,
			Bound:        run.Bound,
			TargetPoints: run.TargetPoints,
			Uploaded:     run.Uploaded,
			PlotURL:      fmt.Sprintf("/plot.png?run=%d", run.ID),
			DataURL:      fmt.Sprintf("/data.json?run=%d", run.ID),
		})
	}
	if len(runs) > 0 {
		run, red, err := a.DB.LoadRun(r.Context(), runs[len(runs)-1].ID)
		if err != nil {
			log.Printf("loading latest run: %v", err)
			http.Error(w, err.Error(), 500)
			return
		}
		latest := &latestRun{ID: run.ID, Metric: run.Metric}
		for _, s := range red.Series {
			latest.Series = append(latest.Series, latestSeries{Label: s.Label, Points: len(s.Points)})
		}
		page.Latest = latest
	}
	if err := indexTemplate.Execute(w, page); err != nil {
		log.Printf("rendering index: %v", err)
	}
}

// loadRun resolves the "run" query parameter of r, defaulting to the
// most recent run. It writes the error response itself and returns
// false if the run does not exist or the parameter is malformed.
func (a *App) loadRun(w http.ResponseWriter, r *http.Request) (*archive.Run, *memseries.Reduced, bool) {
	var id int64
	if param := r.URL.Query().Get("run"); param == "" {
		runs, err := a.DB.ListRuns(r.Context())
		if err != nil {
			log.Printf("listing runs: %v", err)
			http.Error(w, err.Error(), 500)
			return nil, nil, false
		}
		if len(runs) == 0 {
			http.NotFound(w, r)
			return nil, nil, false
		}
		id = runs[len(runs)-1].ID
	} else {
		var err error
		id, err = strconv.ParseInt(param, 10, 64)
		if err != nil {
			http.Error(w, "bad run parameter", http.StatusBadRequest)
			return nil, nil, false
		}
	}
	run, red, err := a.DB.LoadRun(r.Context(), id)
	if errors.Is(err, archive.ErrNoRun) {
		http.NotFound(w, r)
		return nil, nil, false
	}
	if err != nil {
		log.Printf("loading run %d: %v", id, err)
		http.Error(w, err.Error(), 500)
		return nil, nil, false
	}
	return run, red, true
}

// data serves one archived run as reduced JSON.
func (a *App) data(w http.ResponseWriter, r *http.Request) {
	_, red, ok := a.loadRun(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := red.WriteJSON(w); err != nil {
		log.Printf("writing run data: %v", err)
	}
}

// plot renders one archived run as a PNG chart.
func (a *App) plot(w http.ResponseWriter, r *http.Request) {
	run, red, ok := a.loadRun(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "image/png")
	if err := memseries.WriteChart(w, memunit.Metric(run.Metric), red.Expand(), memseries.ChartOptions{}); err != nil {
		log.Printf("rendering run %d: %v", run.ID, err)
	}
}

// upload is the handler for the /upload endpoint. It accepts files in
// a multipart/form-data POST request and archives each as a new run.
// A file may be either a raw harness log, which is reduced with the
// app's metric and target, or an already-reduced JSON export.
func (a *App) upload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "/upload must be called as a POST request", http.StatusMethodNotAllowed)
		return
	}

	// We use r.MultipartReader instead of r.ParseForm to avoid
	// storing more than one part's data in memory.
	mr, err := r.MultipartReader()
	if err != nil {
		log.Printf("upload: %v", err)
		http.Error(w, err.Error(), 500)
		return
	}

	status, err := a.processUpload(r, mr)
	if err != nil {
		log.Printf("upload: %v", err)
		http.Error(w, err.Error(), 500)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(status); err != nil {
		log.Printf("upload: %v", err)
	}
}

// uploadStatus is the response to an /upload POST served as JSON.
type uploadStatus struct {
	// RunIDs is the list of run IDs assigned to the uploaded
	// files.
	RunIDs []int64 `json:"runids"`
}

// processUpload archives each file from a multipart.Reader.
func (a *App) processUpload(r *http.Request, mr *multipart.Reader) (*uploadStatus, error) {
	status := &uploadStatus{RunIDs: []int64{}}
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		if name := p.FormName(); name != "file" {
			return nil, fmt.Errorf("unexpected field %q", name)
		}
		data, err := io.ReadAll(p)
		if err != nil {
			return nil, err
		}

		run, err := a.insertUpload(r.Context(), p.FileName(), data)
		if err != nil {
			return nil, err
		}
		status.RunIDs = append(status.RunIDs, run.ID)
	}
	return status, nil
}

// insertUpload archives one uploaded file. A reduced export names its
// metric and carries prebuilt series; its alignment bound is
// recomputed from the points and its target taken as the longest
// series, since the export does not record its settings. Anything
// else is treated as a raw harness log and put through the standard
// reduction, with the series label inferred from the uploaded file
// name.
func (a *App) insertUpload(ctx context.Context, name string, data []byte) (*archive.Run, error) {
	if red, err := memseries.ReadJSON(bytes.NewReader(data)); err == nil && red.Metric != "" {
		if _, err := memunit.ParseMetric(red.Metric); err != nil {
			return nil, fmt.Errorf("%s: %v", name, err)
		}
		series := red.Expand()
		bound := memseries.CommonBound(series)
		target := 0
		for _, s := range series {
			if len(s.Iters) > target {
				target = len(s.Iters)
			}
		}
		return a.DB.InsertRun(ctx, red, bound, target)
	}

	b, err := memseries.NewBuilder(&memseries.BuilderOptions{
		Metric: a.metric(),
		Warn:   log.Printf,
	})
	if err != nil {
		return nil, err
	}
	rd := memfmt.NewReader(bytes.NewReader(data), name)
	for rd.Scan() {
		b.Add(rd.Result())
	}
	if err := rd.Err(); err != nil {
		return nil, err
	}
	series := b.Series()
	if len(series) == 0 {
		return nil, fmt.Errorf("%s: no usable records", name)
	}
	bound := memseries.Align(series)
	down := memseries.DownsampleAll(series, a.targetPoints())
	return a.DB.InsertRun(ctx, memseries.Reduce(b.Metric(), down), bound, a.targetPoints())
}
