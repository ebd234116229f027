// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memfmt

import (
	"encoding/json"
	"fmt"
	"io"
)

// A Reader reads one harness memory log.
//
// Its API is modeled on bufio.Scanner. The Reader retains ownership of
// the Result it returns; a caller should copy anything it needs to
// retain across calls to Scan.
//
// To construct a new Reader, either call NewReader, or call Reset on a
// zeroed Reader.
type Reader struct {
	ior      io.Reader
	fileName string

	err     error // I/O or decode error, fatal for this input
	decoded bool
	recs    []snapshot
	pos     int

	result Result
}

// A snapshot is the wire form of one stats record. Pointer fields
// distinguish absent and null from zero. Fields beyond these are
// ignored.
type snapshot struct {
	Iteration    *float64 `json:"iteration"`
	RSS          *float64 `json:"rss"`
	HeapUsed     *float64 `json:"heapUsed"`
	HeapTotal    *float64 `json:"heapTotal"`
	External     *float64 `json:"external"`
	ArrayBuffers *float64 `json:"arrayBuffers"`
}

// A document is the top-level shape of a log file. A missing stats key
// decodes as an empty record list, which readers treat as a log with
// zero usable points, not as an error.
type document struct {
	Stats []snapshot `json:"stats"`
}

// NewReader constructs a reader to parse the memory log from r.
// fileName is used in error messages and as the Result's File; the
// series label is inferred from it with the default rules. Use Reset
// to supply a different label.
func NewReader(r io.Reader, fileName string) *Reader {
	reader := new(Reader)
	reader.Reset(r, fileName, InferLabel(fileName, nil))
	return reader
}

// Reset resets the reader to begin reading from a new input.
// label becomes the Label of every Result read from this input.
func (r *Reader) Reset(ior io.Reader, fileName, label string) {
	if fileName == "" {
		fileName = "<unknown>"
	}
	r.ior = ior
	r.fileName = fileName
	r.err = nil
	r.decoded = false
	r.recs = nil
	r.pos = -1
	r.result = Result{File: fileName, Label: label}
}

// decode reads and parses the entire document. The whole input is
// consumed up front: a log is one JSON value and trailing garbage is a
// malformed file, which the record-at-a-time json.Decoder would let
// pass.
func (r *Reader) decode() error {
	data, err := io.ReadAll(r.ior)
	if err != nil {
		return fmt.Errorf("%s: %w", r.fileName, err)
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%s: %w", r.fileName, err)
	}
	r.recs = doc.Stats
	return nil
}

// Scan advances the reader to the next usable record and reports
// whether one was read. The caller should use the Result method to get
// the record. If Scan reaches the end of the input, or if the input is
// malformed, it returns false; the caller should then use the Err
// method to distinguish the two.
//
// Records without an iteration field are skipped: they cannot be
// placed on any series. Records missing some or all memory fields are
// surfaced as they are; per-metric filtering belongs to the caller.
func (r *Reader) Scan() bool {
	if r.err != nil {
		return false
	}
	if !r.decoded {
		r.decoded = true
		if err := r.decode(); err != nil {
			r.err = err
			return false
		}
	}

	for r.pos+1 < len(r.recs) {
		r.pos++
		s := &r.recs[r.pos]
		if s.Iteration == nil {
			continue
		}
		r.result.Iter = int(*s.Iteration)
		r.result.Mem = MemStats{
			RSS:          s.RSS,
			HeapUsed:     s.HeapUsed,
			HeapTotal:    s.HeapTotal,
			External:     s.External,
			ArrayBuffers: s.ArrayBuffers,
		}
		return true
	}
	return false
}

// Result returns the record that was just read by Scan. The caller
// should not retain the Result, as it will be overwritten by the next
// call to Scan.
func (r *Reader) Result() *Result {
	return &r.result
}

// Err returns the error that stopped Scan, if any. A malformed log is
// an error; reading every record to completion is not.
func (r *Reader) Err() error {
	return r.err
}
