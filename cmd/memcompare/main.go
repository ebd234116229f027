// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Memcompare aligns, downsamples, and compares the memory usage logs
// captured by the database benchmark harness.
//
// Usage:
//
//	memcompare [options] file.json [more.json ...]
//
// Each input file holds one engine's log: a JSON object whose "stats"
// array records memory statistics per benchmark iteration. The series
// label is inferred from the file name (memory-log-duckdb.json becomes
// DuckDB); an explicit label can be given as label=path, and "-" reads
// standard input.
//
// Unless -no-align is given, memcompare first trims every series to
// the smallest per-series maximum iteration, so engines that ran for
// different lengths stay comparable. Each series is then averaged
// down to at most -target-points points.
//
// With -output-plot, -output-json, -output-csv, or -output-html,
// memcompare writes the requested exports and reports each file
// written. With none of them it prints a per-series summary:
//
//	$ memcompare memory-log-duckdb.json memory-log-sqlite.json
//	Aligned to common max iteration: 4166
//	Metric: rss (MB)
//	DuckDB: 300 points, min=101.2 MB, max=164.0 MB
//	SQLite: 300 points, min=98.0 MB, max=99.1 MB
//
// The -stats option adds per-series summary statistics and a Welch
// t-test comparing each series' first quarter against its last,
// flagging runs whose memory keeps growing:
//
//	name    points  min    median  mean          p95    max    trend
//	DuckDB  4167    101.2  131.0   130.4 ± 0.4%  158.7  164.0  growing (p=0.000)
//	SQLite  4167    98.0   98.5    98.5 ± 0.1%   99.0   99.1   stable (p=0.671)
//
// The -archive option inserts the reduced run into a SQLite database
// that memviewer can serve.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/aclements/go-moremath/stats"

	"github.com/renatocron/duckdb-memory-leak-test/archive"
	_ "github.com/renatocron/duckdb-memory-leak-test/archive/sqlite3"
	"github.com/renatocron/duckdb-memory-leak-test/memfmt"
	"github.com/renatocron/duckdb-memory-leak-test/memseries"
	"github.com/renatocron/duckdb-memory-leak-test/memunit"
)

var exit = os.Exit // replaced during testing

// errUsage signals a command line the flag package has already
// complained about.
var errUsage = errors.New("usage error")

func main() {
	switch err := memcompare(os.Stdout, os.Stderr, os.Args[1:]); {
	case errors.Is(err, errUsage):
		exit(2)
	case err != nil:
		fmt.Fprintln(os.Stderr, err)
		exit(1)
	}
}

// memcompare runs the comparison with the given command line, writing
// regular output to w and warnings to wErr.
func memcompare(w, wErr io.Writer, args []string) error {
	flags := flag.NewFlagSet("memcompare", flag.ContinueOnError)
	flags.SetOutput(wErr)
	flags.Usage = func() {
		fmt.Fprintf(wErr, "usage: memcompare [options] file.json [more.json ...]\n")
		fmt.Fprintf(wErr, "options:\n")
		flags.PrintDefaults()
	}
	flagMetric := flags.String("metric", "rss", "compare memory `metric`: rss, heapUsed, heapTotal, external, or arrayBuffers")
	flagTarget := flags.Int("target-points", 300, "downsample each series to at most `n` points")
	flagPlot := flags.String("output-plot", "", "write a PNG chart to `file`")
	flagJSON := flags.String("output-json", "", "write reduced series JSON to `file`")
	flagCSV := flags.String("output-csv", "", "write the downsampled series as CSV to `file`")
	flagHTML := flags.String("output-html", "", "write an HTML report to `file`")
	flagNoAlign := flags.Bool("no-align", false, "keep each series' full iteration range")
	flagStats := flags.Bool("stats", false, "print summary statistics and a growth check per series")
	flagConfidence := flags.Float64("confidence", 0.95, "confidence `level` for mean intervals")
	flagAlpha := flags.Float64("alpha", 0.05, "consider growth significant if p < `α`")
	flagLabels := flags.String("labels", "", "read label inference rules from YAML `file`")
	flagArchive := flags.String("archive", "", "insert the reduced run into the SQLite database at `dsn`")
	if err := flags.Parse(args); err != nil {
		return errUsage
	}
	metric, err := memunit.ParseMetric(*flagMetric)
	if err != nil || *flagTarget < 1 || flags.NArg() < 1 {
		flags.Usage()
		return errUsage
	}

	files := &memfmt.Files{Paths: flags.Args(), AllowStdin: true, AllowLabels: true}
	if *flagLabels != "" {
		rules, err := memfmt.LoadRules(*flagLabels)
		if err != nil {
			return err
		}
		files.Rules = rules
	}

	b, err := memseries.NewBuilder(&memseries.BuilderOptions{
		Metric: metric,
		Warn: func(format string, args ...interface{}) {
			fmt.Fprintf(wErr, format, args...)
		},
	})
	if err != nil {
		return err
	}
	if err := b.AddFiles(files); err != nil {
		return err
	}
	series := b.Series()
	if len(series) == 0 {
		return errors.New("No valid inputs.")
	}

	bound := -1
	if !*flagNoAlign {
		bound = memseries.Align(series)
		if bound >= 0 {
			fmt.Fprintf(w, "Aligned to common max iteration: %d\n", bound)
		} else {
			fmt.Fprintf(wErr, "Warning: could not determine common max iteration.\n")
		}
	}

	down := memseries.DownsampleAll(series, *flagTarget)

	wrote := false
	if *flagPlot != "" {
		err := writeOutput(*flagPlot, func(f io.Writer) error {
			return memseries.WriteChart(f, metric, down, memseries.ChartOptions{})
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "Wrote plot: %s\n", *flagPlot)
		wrote = true
	}
	if *flagJSON != "" {
		if err := writeOutput(*flagJSON, memseries.Reduce(metric, down).WriteJSON); err != nil {
			return err
		}
		fmt.Fprintf(w, "Wrote reduced JSON: %s\n", *flagJSON)
		wrote = true
	}
	if *flagCSV != "" {
		err := writeOutput(*flagCSV, func(f io.Writer) error {
			return memseries.WriteCSV(f, metric, down)
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "Wrote CSV: %s\n", *flagCSV)
		wrote = true
	}
	if *flagHTML != "" {
		// The report runs its statistics on the full-resolution
		// series; downsampling would average away the very trend
		// the growth check looks for.
		report := memseries.BuildReport(metric, bound, series, *flagConfidence, *flagAlpha)
		if err := writeOutput(*flagHTML, report.WriteHTML); err != nil {
			return err
		}
		fmt.Fprintf(w, "Wrote HTML report: %s\n", *flagHTML)
		wrote = true
	}

	if !wrote {
		fmt.Fprintf(w, "Metric: %s (%s)\n", metric, metric.Unit())
		for _, s := range down {
			if len(s.Values) == 0 {
				fmt.Fprintf(w, "%s: no data after downsampling\n", s.Label)
				continue
			}
			min, max := stats.Bounds(s.Values)
			fmt.Fprintf(w, "%s: %d points, min=%.1f %s, max=%.1f %s\n",
				s.Label, len(s.Values), min, metric.Unit(), max, metric.Unit())
		}
	}

	if *flagStats {
		formatStats(w, series, *flagConfidence, *flagAlpha)
	}

	if *flagArchive != "" {
		db, err := archive.OpenSQL("sqlite3", *flagArchive)
		if err != nil {
			return err
		}
		defer db.Close()
		run, err := db.InsertRun(context.Background(), memseries.Reduce(metric, down), bound, *flagTarget)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "Archived run %d in %s\n", run.ID, *flagArchive)
	}
	return nil
}

// writeOutput writes one export to path through fn.
func writeOutput(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
