// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/renatocron/duckdb-memory-leak-test/archive"
	"github.com/renatocron/duckdb-memory-leak-test/internal/diff"
)

func TestConsole(t *testing.T) {
	golden(t, "console", "memory-log-duckdb.json", "memory-log-sqlite.json")
	golden(t, "noalign", "-no-align", "memory-log-duckdb.json", "memory-log-sqlite.json")
	golden(t, "downsample", "-target-points", "2", "memory-log-duckdb.json")
	golden(t, "labeled", "-no-align", "Ducky=memory-log-duckdb.json")
	golden(t, "rules", "-no-align", "-labels", "rules.yaml", "memory-log-duckdb.json")
}

func TestSkipped(t *testing.T) {
	// The postgres log parses but has no usable records; it is
	// dropped with a warning and the rest proceeds without it.
	golden(t, "skipped", "memory-log-duckdb.json", "memory-log-postgres.json")
}

func TestStats(t *testing.T) {
	golden(t, "stats", "-stats", "memory-log-duckdb.json", "memory-log-sqlite.json")
}

func TestNoValidInputs(t *testing.T) {
	var got, gotErr bytes.Buffer
	err := memcompare(&got, &gotErr, []string{"testdata/memory-log-postgres.json"})
	if err == nil || err.Error() != "No valid inputs." {
		t.Fatalf("err = %v, want No valid inputs.", err)
	}
	if got.Len() != 0 {
		t.Errorf("unexpected stdout:\n%s", got.String())
	}
	want := "Warning: no iterations for testdata/memory-log-postgres.json, skipping.\n"
	if gotErr.String() != want {
		t.Errorf("stderr = %q, want %q", gotErr.String(), want)
	}
}

func TestUsageErrors(t *testing.T) {
	for _, args := range [][]string{
		{},
		{"-metric", "uptime", "testdata/memory-log-duckdb.json"},
		{"-target-points", "0", "testdata/memory-log-duckdb.json"},
		{"-bogus"},
	} {
		var got, gotErr bytes.Buffer
		if err := memcompare(&got, &gotErr, args); err != errUsage {
			t.Errorf("memcompare(%q) = %v, want usage error", args, err)
		}
		if !strings.Contains(gotErr.String(), "usage: memcompare") {
			t.Errorf("memcompare(%q) did not print usage:\n%s", args, gotErr.String())
		}
	}
}

func TestOutputs(t *testing.T) {
	dir := t.TempDir()
	plotPath := filepath.Join(dir, "mem.png")
	jsonPath := filepath.Join(dir, "mem.json")
	csvPath := filepath.Join(dir, "mem.csv")
	htmlPath := filepath.Join(dir, "mem.html")

	var got, gotErr bytes.Buffer
	err := memcompare(&got, &gotErr, []string{
		"-output-plot", plotPath,
		"-output-json", jsonPath,
		"-output-csv", csvPath,
		"-output-html", htmlPath,
		"testdata/memory-log-duckdb.json", "testdata/memory-log-sqlite.json",
	})
	if err != nil {
		t.Fatalf("memcompare: %v", err)
	}
	stdout := got.String()
	for _, want := range []string{
		"Aligned to common max iteration: 2\n",
		"Wrote plot: " + plotPath + "\n",
		"Wrote reduced JSON: " + jsonPath + "\n",
		"Wrote CSV: " + csvPath + "\n",
		"Wrote HTML report: " + htmlPath + "\n",
	} {
		if !strings.Contains(stdout, want) {
			t.Errorf("stdout missing %q:\n%s", want, stdout)
		}
	}
	if strings.Contains(stdout, "Metric:") {
		t.Errorf("console summary printed alongside exports:\n%s", stdout)
	}

	plot, err := os.ReadFile(plotPath)
	if err != nil {
		t.Fatalf("reading plot: %v", err)
	}
	if !bytes.HasPrefix(plot, []byte("\x89PNG\r\n\x1a\n")) {
		t.Errorf("plot is not a PNG")
	}

	data, err := os.ReadFile(jsonPath)
	if err != nil {
		t.Fatalf("reading JSON: %v", err)
	}
	wantJSON := `{"metric":"rss","unit":"MB","series":[` +
		`{"label":"DuckDB","points":[{"iteration":0,"value":100},{"iteration":1,"value":110},{"iteration":2,"value":120}]},` +
		`{"label":"SQLite","points":[{"iteration":0,"value":90},{"iteration":1,"value":95},{"iteration":2,"value":100}]}]}`
	if string(data) != wantJSON {
		t.Errorf("JSON export:\ngot  %s\nwant %s", data, wantJSON)
	}

	csv, err := os.ReadFile(csvPath)
	if err != nil {
		t.Fatalf("reading CSV: %v", err)
	}
	wantCSV := "iteration,DuckDB (MB),SQLite (MB)\n" +
		"0,100.000000,90.000000\n" +
		"1,110.000000,95.000000\n" +
		"2,120.000000,100.000000\n"
	if string(csv) != wantCSV {
		t.Errorf("CSV export:\ngot  %q\nwant %q", csv, wantCSV)
	}

	html, err := os.ReadFile(htmlPath)
	if err != nil {
		t.Fatalf("reading HTML: %v", err)
	}
	for _, want := range []string{"Aligned to common max iteration: 2", "<td>DuckDB", "<td>SQLite"} {
		if !strings.Contains(string(html), want) {
			t.Errorf("HTML report missing %q", want)
		}
	}
}

func TestStatsGrowing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory-log-duckdb.json")
	var log bytes.Buffer
	log.WriteString(`{"config": {}, "stats": [`)
	for i := 0; i < 16; i++ {
		if i > 0 {
			log.WriteString(",")
		}
		fmt.Fprintf(&log, `{"iteration": %d, "rss": %d}`, i, (100+i)*1048576)
	}
	log.WriteString("]}")
	if err := os.WriteFile(path, log.Bytes(), 0666); err != nil {
		t.Fatal(err)
	}

	var got, gotErr bytes.Buffer
	if err := memcompare(&got, &gotErr, []string{"-stats", path}); err != nil {
		t.Fatalf("memcompare: %v", err)
	}
	if !strings.Contains(got.String(), "growing (p=0.000)") {
		t.Errorf("stats did not flag growth:\n%s", got.String())
	}
}

func TestArchive(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "runs.db")
	var got, gotErr bytes.Buffer
	err := memcompare(&got, &gotErr, []string{
		"-archive", dsn,
		"testdata/memory-log-duckdb.json", "testdata/memory-log-sqlite.json",
	})
	if err != nil {
		t.Fatalf("memcompare: %v", err)
	}
	if !strings.Contains(got.String(), "Archived run ") {
		t.Errorf("missing archive confirmation:\n%s", got.String())
	}

	db, err := archive.OpenSQL("sqlite3", dsn)
	if err != nil {
		t.Fatalf("reopening archive: %v", err)
	}
	defer db.Close()
	runs, err := db.ListRuns(context.Background())
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("found %d archived runs, want 1", len(runs))
	}
	run := runs[0]
	if run.Metric != "rss" || run.Bound != 2 || run.TargetPoints != 300 {
		t.Errorf("run = %+v, want metric rss, bound 2, target 300", run)
	}
}

// golden runs memcompare with args from within testdata and compares
// its output streams against name.stdout and name.stderr. A missing
// golden file stands for empty output.
func golden(t *testing.T, name string, args ...string) {
	t.Helper()
	if err := os.Chdir("testdata"); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir("..")

	var got, gotErr bytes.Buffer
	t.Logf("memcompare %s", strings.Join(args, " "))
	if err := memcompare(&got, &gotErr, args); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	compare(t, name, "stdout", got.Bytes())
	compare(t, name, "stderr", gotErr.Bytes())
}

func compare(t *testing.T, name, sub string, got []byte) {
	t.Helper()
	wantPath := name + "." + sub
	want, err := os.ReadFile(wantPath)
	if err != nil {
		if os.IsNotExist(err) {
			// Treat a missing file as empty.
			want = nil
		} else {
			t.Fatal(err)
		}
	}
	if d := diff.Diff(string(want), string(got)); d != "" {
		t.Errorf("%s differs:\n%s", wantPath, d)
		// Write a "got" file for reference.
		gotPath := name + ".got-" + sub
		if err := os.WriteFile(gotPath, got, 0666); err != nil {
			t.Fatalf("error writing %s: %s", gotPath, err)
		}
	}
}
