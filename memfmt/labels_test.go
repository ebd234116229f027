// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memfmt

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestInferLabel(t *testing.T) {
	test := func(path, want string) {
		t.Helper()
		if got := InferLabel(path, nil); got != want {
			t.Errorf("InferLabel(%q) got %q, want %q", path, got, want)
		}
	}

	test("memory-log-duckdb.json", "DuckDB")
	test("logs/memory_stats_sqlite.json", "SQLite")
	test("postgres.json", "Postgres")
	// "postgre" spelling matches too.
	test("postgredb-run.json", "Postgres")
	test("POSTGRESQL.JSON", "Postgres")
	test("MEMORY-LOG-DUCKDB.JSON", "DuckDB")
	// Only the base name is matched.
	test("duckdb/other.json", "other.json")
	// No match falls back to the base name, original case.
	test("logs/MySystem.json", "MySystem.json")

	// First matching rule wins.
	rules := []LabelRule{
		{Match: "log", Label: "AnyLog"},
		{Match: "duckdb", Label: "DuckDB"},
	}
	if got := InferLabel("memory-log-duckdb.json", rules); got != "AnyLog" {
		t.Errorf("got %q, want %q", got, "AnyLog")
	}
}

func TestLoadRules(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		t.Helper()
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0666); err != nil {
			t.Fatal(err)
		}
		return path
	}

	path := write("rules.yaml", `
- match: mariadb
  label: MariaDB
- match: duckdb
  label: Duck
`)
	rules, err := LoadRules(path)
	if err != nil {
		t.Fatalf("LoadRules: %v", err)
	}
	want := []LabelRule{
		{Match: "mariadb", Label: "MariaDB"},
		{Match: "duckdb", Label: "Duck"},
	}
	if !reflect.DeepEqual(rules, want) {
		t.Errorf("got %+v, want %+v", rules, want)
	}
	if got := InferLabel("memory-log-duckdb.json", rules); got != "Duck" {
		t.Errorf("InferLabel with loaded rules got %q, want %q", got, "Duck")
	}

	// Error cases.
	if _, err := LoadRules(filepath.Join(dir, "nosuch.yaml")); !os.IsNotExist(err) {
		t.Errorf("missing file: got %v, want not-exist error", err)
	}
	if _, err := LoadRules(write("bad.yaml", "{[")); err == nil {
		t.Errorf("bad YAML: got nil error")
	}
	if _, err := LoadRules(write("nomatch.yaml", "- label: X\n")); err == nil || !strings.Contains(err.Error(), "empty match") {
		t.Errorf("empty match: got %v, want empty match error", err)
	}
	if _, err := LoadRules(write("nolabel.yaml", "- match: x\n")); err == nil || !strings.Contains(err.Error(), "empty label") {
		t.Errorf("empty label: got %v, want empty label error", err)
	}
}
