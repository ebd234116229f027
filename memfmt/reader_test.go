// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memfmt

import (
	"fmt"
	"strings"
	"testing"

	"github.com/renatocron/duckdb-memory-leak-test/memunit"
)

func TestReader(t *testing.T) {
	// check scans input and compares each record, formatted as
	// "iter value" for the rss field ("none" when absent), against
	// want. A final want entry of the form "err message" asserts
	// the error that stopped the scan.
	check := func(input string, want ...string) {
		t.Helper()
		r := NewReader(strings.NewReader(input), "test.json")
		for r.Scan() {
			res := r.Result()
			if len(want) == 0 {
				t.Errorf("got record, want end of stream")
				return
			}
			v := "none"
			if x, ok := res.Mem.Value(memunit.RSS); ok {
				v = fmt.Sprint(x)
			}
			got := fmt.Sprintf("%d %s", res.Iter, v)
			if got != want[0] {
				t.Errorf("got %q, want %q", got, want[0])
			}
			want = want[1:]
		}

		err := r.Err()
		wantErr := ""
		if len(want) == 1 && strings.HasPrefix(want[0], "err ") {
			wantErr = want[0][len("err "):]
			want = want[1:]
		}
		if err == nil && wantErr != "" {
			t.Errorf("got success, want error %s", wantErr)
		} else if err != nil && wantErr == "" {
			t.Errorf("got error %s", err)
		} else if err != nil && err.Error() != wantErr {
			t.Errorf("got error %s, want error %s", err, wantErr)
		}

		if len(want) != 0 {
			t.Errorf("got end of stream, want %v", want)
		}
	}

	// Plain log.
	check(`{"config":{},"stats":[{"iteration":0,"rss":100},{"iteration":1,"rss":200}]}`,
		"0 100", "1 200",
	)
	// Records missing or nulling the iteration are skipped.
	check(`{"stats":[{"rss":1},{"iteration":null,"rss":2},{"iteration":3,"rss":4}]}`,
		"3 4",
	)
	// Missing metric fields are surfaced, not skipped.
	check(`{"stats":[{"iteration":0},{"iteration":1,"heapUsed":5},{"iteration":2,"rss":null}]}`,
		"0 none", "1 none", "2 none",
	)
	// Fractional iterations truncate.
	check(`{"stats":[{"iteration":2.9,"rss":7}]}`,
		"2 7",
	)
	// A missing stats key is a log with zero points.
	check(`{"config":{}}`)
	check(`{}`)

	// Malformed documents are fatal.
	check(`{"stats": [`,
		"err test.json: unexpected end of JSON input",
	)
	check(`[1,2]`,
		"err test.json: json: cannot unmarshal array into Go value of type memfmt.document",
	)
	check(`{"stats":[]} trailing`,
		"err test.json: invalid character 't' after top-level value",
	)
	check(`{"stats":[{"iteration":"zero"}]}`,
		"err test.json: json: cannot unmarshal string into Go struct field snapshot.stats.iteration of type float64",
	)
}

func TestReaderLabel(t *testing.T) {
	r := NewReader(strings.NewReader(`{"stats":[{"iteration":0,"rss":1}]}`), "logs/memory-log-duckdb.json")
	if !r.Scan() {
		t.Fatalf("Scan got false, want true (err %v)", r.Err())
	}
	res := r.Result()
	if res.Label != "DuckDB" {
		t.Errorf("Label got %q, want %q", res.Label, "DuckDB")
	}
	if res.File != "logs/memory-log-duckdb.json" {
		t.Errorf("File got %q, want %q", res.File, "logs/memory-log-duckdb.json")
	}

	r.Reset(strings.NewReader(`{"stats":[{"iteration":0,"rss":1}]}`), "x.json", "Custom")
	if !r.Scan() {
		t.Fatalf("Scan got false, want true (err %v)", r.Err())
	}
	if got := r.Result().Label; got != "Custom" {
		t.Errorf("Label got %q, want %q", got, "Custom")
	}
}

func TestMemStatsValue(t *testing.T) {
	v := 42.5
	s := MemStats{HeapTotal: &v}
	test := func(m memunit.Metric, want float64, wantOK bool) {
		t.Helper()
		got, ok := s.Value(m)
		if got != want || ok != wantOK {
			t.Errorf("Value(%s) got %v, %v, want %v, %v", m, got, ok, want, wantOK)
		}
	}
	test(memunit.HeapTotal, 42.5, true)
	test(memunit.RSS, 0, false)
	test(memunit.Metric("bogus"), 0, false)
}
