// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package archivetest provides an in-memory archive database for
// tests.
package archivetest

import (
	"context"
	"testing"

	"github.com/renatocron/duckdb-memory-leak-test/archive"
	_ "github.com/renatocron/duckdb-memory-leak-test/archive/sqlite3"
)

// NewDB makes a connection to a fresh in-memory testing database.
// cleanup must be called when done with the testing database, instead
// of calling db.Close().
func NewDB(t *testing.T) (*archive.DB, func()) {
	d, err := archive.OpenSQL("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	cleanup := func() { d.Close() }
	// Make sure the database really is empty.
	runs, err := d.CountRuns(context.Background())
	if err != nil {
		cleanup()
		t.Fatal(err)
	}
	if runs != 0 {
		cleanup()
		t.Fatalf("found %d row(s) in Runs, want 0", runs)
	}
	return d, cleanup
}
