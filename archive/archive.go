// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package archive stores reduced memory comparisons in a SQL database
// so the viewer can serve them later. It's safe for concurrent use by
// multiple goroutines.
package archive

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/renatocron/duckdb-memory-leak-test/memseries"
)

// DB is a high-level interface to the archive database.
type DB struct {
	sql *sql.DB // underlying database connection
	// prepared statements
	insertRun    *sql.Stmt
	insertSeries *sql.Stmt
	insertPoint  *sql.Stmt
}

// OpenSQL creates a DB backed by a SQL database. The parameters are
// the same as the parameters for sql.Open. Only mysql and sqlite3 are
// explicitly supported; other database engines will receive MySQL
// query syntax which may or may not be compatible.
func OpenSQL(driverName, dataSourceName string) (*DB, error) {
	db, err := sql.Open(driverName, dataSourceName)
	if err != nil {
		return nil, err
	}
	if hook := openHooks[driverName]; hook != nil {
		if err := hook(db); err != nil {
			return nil, err
		}
	}
	d := &DB{sql: db}
	if err := d.createTables(driverName); err != nil {
		return nil, err
	}
	if err := d.prepareStatements(); err != nil {
		return nil, err
	}
	return d, nil
}

var openHooks = make(map[string]func(*sql.DB) error)

// RegisterOpenHook registers a hook to be called after opening a connection to driverName.
// This is used by the sqlite3 package to register a ConnectHook.
// It must be called from an init function.
func RegisterOpenHook(driverName string, hook func(*sql.DB) error) {
	openHooks[driverName] = hook
}

// createTmpl is the template used to prepare the CREATE statements
// for the database. It is evaluated with . as a map containing one
// entry whose key is the driver name.
var createTmpl = template.Must(template.New("create").Parse(`
CREATE TABLE IF NOT EXISTS Runs (
	RunID {{if .sqlite3}}INTEGER PRIMARY KEY AUTOINCREMENT{{else}}SERIAL PRIMARY KEY AUTO_INCREMENT{{end}},
	Metric VARCHAR(255),
	Unit VARCHAR(16),
	Bound BIGINT,
	TargetPoints BIGINT,
	Uploaded VARCHAR(64)
);
CREATE TABLE IF NOT EXISTS Series (
	RunID BIGINT UNSIGNED,
	Ord BIGINT UNSIGNED,
	Label VARCHAR(255),
	PRIMARY KEY (RunID, Ord),
	FOREIGN KEY (RunID) REFERENCES Runs(RunID) ON UPDATE CASCADE ON DELETE CASCADE
);
CREATE TABLE IF NOT EXISTS Points (
	RunID BIGINT UNSIGNED,
	Ord BIGINT UNSIGNED,
	Seq BIGINT UNSIGNED,
	Iteration BIGINT,
	Value DOUBLE,
	PRIMARY KEY (RunID, Ord, Seq),
	FOREIGN KEY (RunID, Ord) REFERENCES Series(RunID, Ord) ON UPDATE CASCADE ON DELETE CASCADE
);
`))

// createTables creates any missing tables on the connection in
// db.sql. driverName is the same driver name passed to sql.Open and
// is used to select the correct syntax.
func (db *DB) createTables(driverName string) error {
	var buf bytes.Buffer
	if err := createTmpl.Execute(&buf, map[string]bool{driverName: true}); err != nil {
		return err
	}
	for _, q := range strings.Split(buf.String(), ";") {
		if strings.TrimSpace(q) == "" {
			continue
		}
		if _, err := db.sql.Exec(q); err != nil {
			return fmt.Errorf("create table: %v", err)
		}
	}
	return nil
}

// prepareStatements calls db.sql.Prepare on reusable SQL statements.
func (db *DB) prepareStatements() error {
	var err error
	db.insertRun, err = db.sql.Prepare("INSERT INTO Runs(Metric, Unit, Bound, TargetPoints, Uploaded) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return err
	}
	db.insertSeries, err = db.sql.Prepare("INSERT INTO Series(RunID, Ord, Label) VALUES (?, ?, ?)")
	if err != nil {
		return err
	}
	db.insertPoint, err = db.sql.Prepare("INSERT INTO Points(RunID, Ord, Seq, Iteration, Value) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return err
	}
	return nil
}

// A Run describes one archived comparison.
type Run struct {
	// ID is the numeric key of the run.
	ID int64

	// Metric and Unit are taken from the reduced export.
	Metric string
	Unit   string

	// Bound is the common max iteration the series were aligned
	// to, or -1 if they were not aligned.
	Bound int

	// TargetPoints is the downsampling target the run was reduced
	// with.
	TargetPoints int

	// Uploaded is the RFC 3339 time the run was archived.
	Uploaded string
}

// ErrNoRun is returned by LoadRun when the requested run does not
// exist.
var ErrNoRun = errors.New("no such run")

// InsertRun archives one reduced comparison and returns its assigned
// run. The series keep their order, so a later load sees them exactly
// as the export did.
func (db *DB) InsertRun(ctx context.Context, red *memseries.Reduced, bound, targetPoints int) (_ *Run, err error) {
	tx, err := db.sql.Begin()
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	run := &Run{
		Metric:       red.Metric,
		Unit:         red.Unit,
		Bound:        bound,
		TargetPoints: targetPoints,
		Uploaded:     time.Now().UTC().Format(time.RFC3339),
	}
	res, err := tx.StmtContext(ctx, db.insertRun).ExecContext(ctx,
		run.Metric, run.Unit, run.Bound, run.TargetPoints, run.Uploaded)
	if err != nil {
		return nil, err
	}
	run.ID, err = res.LastInsertId()
	if err != nil {
		return nil, err
	}

	for ord, s := range red.Series {
		if _, err := tx.StmtContext(ctx, db.insertSeries).ExecContext(ctx, run.ID, ord, s.Label); err != nil {
			return nil, err
		}
		for seq, p := range s.Points {
			if _, err := tx.StmtContext(ctx, db.insertPoint).ExecContext(ctx, run.ID, ord, seq, p.Iter, p.Value); err != nil {
				return nil, err
			}
		}
	}
	return run, nil
}

// ListRuns returns all archived runs, oldest first.
func (db *DB) ListRuns(ctx context.Context) ([]*Run, error) {
	rows, err := db.sql.QueryContext(ctx,
		"SELECT RunID, Metric, Unit, Bound, TargetPoints, Uploaded FROM Runs ORDER BY RunID ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r := new(Run)
		if err := rows.Scan(&r.ID, &r.Metric, &r.Unit, &r.Bound, &r.TargetPoints, &r.Uploaded); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// LoadRun returns the run with the given ID along with its reduced
// series, or ErrNoRun if there is no such run.
func (db *DB) LoadRun(ctx context.Context, id int64) (*Run, *memseries.Reduced, error) {
	run := &Run{ID: id}
	err := db.sql.QueryRowContext(ctx,
		"SELECT Metric, Unit, Bound, TargetPoints, Uploaded FROM Runs WHERE RunID = ?", id).
		Scan(&run.Metric, &run.Unit, &run.Bound, &run.TargetPoints, &run.Uploaded)
	if err == sql.ErrNoRows {
		return nil, nil, ErrNoRun
	}
	if err != nil {
		return nil, nil, err
	}

	red := &memseries.Reduced{Metric: run.Metric, Unit: run.Unit, Series: []memseries.ReducedSeries{}}
	srows, err := db.sql.QueryContext(ctx,
		"SELECT Label FROM Series WHERE RunID = ? ORDER BY Ord ASC", id)
	if err != nil {
		return nil, nil, err
	}
	defer srows.Close()
	for srows.Next() {
		var label string
		if err := srows.Scan(&label); err != nil {
			return nil, nil, err
		}
		red.Series = append(red.Series, memseries.ReducedSeries{Label: label, Points: []memseries.ReducedPoint{}})
	}
	if err := srows.Err(); err != nil {
		return nil, nil, err
	}

	prows, err := db.sql.QueryContext(ctx,
		"SELECT Ord, Iteration, Value FROM Points WHERE RunID = ? ORDER BY Ord ASC, Seq ASC", id)
	if err != nil {
		return nil, nil, err
	}
	defer prows.Close()
	for prows.Next() {
		var ord int
		var p memseries.ReducedPoint
		if err := prows.Scan(&ord, &p.Iter, &p.Value); err != nil {
			return nil, nil, err
		}
		if ord < 0 || ord >= len(red.Series) {
			return nil, nil, fmt.Errorf("run %d: point for series %d of %d", id, ord, len(red.Series))
		}
		red.Series[ord].Points = append(red.Series[ord].Points, p)
	}
	return run, red, prows.Err()
}

// CountRuns returns the number of archived runs.
func (db *DB) CountRuns(ctx context.Context) (int, error) {
	var count int
	err := db.sql.QueryRowContext(ctx, "SELECT COUNT(*) FROM Runs").Scan(&count)
	return count, err
}

// Close closes the database connections, releasing any open resources.
func (db *DB) Close() error {
	if err := db.insertRun.Close(); err != nil {
		return err
	}
	if err := db.insertSeries.Close(); err != nil {
		return err
	}
	if err := db.insertPoint.Close(); err != nil {
		return err
	}
	return db.sql.Close()
}
