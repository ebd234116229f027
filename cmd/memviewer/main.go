// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Memviewer runs an HTTP server over an archive of memory
// comparison runs.
//
// Usage:
//
//	memviewer [-addr address] [-dsn file.db] [-metric name] [-target-points n]
//
// The server lists archived runs on /, serves each run's reduced JSON
// on /data.json and its chart on /plot.png, and summarizes how a
// metric evolves across runs on /trend.json. It accepts new runs
// uploaded as multipart POSTs to /upload: either raw harness logs,
// which are reduced server-side with -metric and -target-points, or
// the reduced JSON files memcompare writes with -output-json.
//
// By default the archive lives in memory and is lost on exit; give
// -dsn a file name to keep it.
package main

import (
	"flag"
	"log"
	"net/http"

	"github.com/renatocron/duckdb-memory-leak-test/archive"
	_ "github.com/renatocron/duckdb-memory-leak-test/archive/sqlite3"
	"github.com/renatocron/duckdb-memory-leak-test/memunit"
	"github.com/renatocron/duckdb-memory-leak-test/viewer"
)

var (
	addr   = flag.String("addr", ":8080", "serve HTTP on `address`")
	dsn    = flag.String("dsn", ":memory:", "sqlite data source `name` for the archive")
	metric = flag.String("metric", "rss", "reduce uploaded raw logs to `metric`")
	target = flag.Int("target-points", 300, "downsample uploaded raw logs to at most `n` points")
)

func main() {
	flag.Parse()

	m, err := memunit.ParseMetric(*metric)
	if err != nil {
		log.Fatal(err)
	}
	if *target < 1 {
		log.Fatalf("-target-points must be positive, got %d", *target)
	}

	db, err := archive.OpenSQL("sqlite3", *dsn)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	app := &viewer.App{DB: db, Metric: m, TargetPoints: *target}
	app.RegisterOnMux(http.DefaultServeMux)

	log.Printf("Listening on %s", *addr)
	log.Fatal(http.ListenAndServe(*addr, nil))
}
