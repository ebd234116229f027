// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memfmt

import (
	"fmt"
	"os"
	"strings"
)

// A Files reads memory log records from a sequence of input files.
//
// Each file's records carry the label inferred from its name (see
// InferLabel). Two distinct inputs can infer the same label, which
// would make their series indistinguishable downstream, so inferred
// duplicates are disambiguated by appending "#N". If AllowLabels is
// set, entries in Paths may be of the form label=path, and that label
// is used verbatim, without disambiguation.
type Files struct {
	// Paths is the list of file names to read in.
	//
	// If AllowLabels is set, these strings may be of the form
	// label=path, and the label part overrides the inferred
	// series label.
	Paths []string

	// AllowStdin indicates that the path "-" should be treated as
	// stdin and if the file list is empty, it should be treated
	// as consisting of stdin.
	//
	// This is generally the desired behavior when the file list
	// comes from command-line flags.
	AllowStdin bool

	// AllowLabels indicates that custom labels are allowed in
	// Paths.
	AllowLabels bool

	// Rules is the label inference rule list. Nil means
	// DefaultRules.
	Rules []LabelRule

	// inputs is the sequence of remaining inputs, or nil if this
	// Files has not started yet. Note that this distinguishes nil
	// from length 0.
	inputs []input

	// read is the sequence of inputs consumed by Scan so far.
	read []Input

	reader  Reader
	file    *os.File
	isStdin bool
	err     error
}

type input struct {
	path      string
	label     string
	isStdin   bool
	isLabeled bool
}

// An Input describes one input file after label inference.
type Input struct {
	// Path is the file's path, or "-" for standard input.
	Path string

	// Label is the series label carried by the file's records.
	Label string
}

// init does first-use initialization of f.
func (f *Files) init() {
	// Set f.inputs to a non-nil slice to indicate initialization
	// has happened.
	f.inputs = []input{}

	// Parse the paths and infer labels. Doing this first
	// simplifies iteration and disambiguation.
	labelCount := make(map[string]int)
	if f.AllowStdin && len(f.Paths) == 0 {
		label := InferLabel("-", f.Rules)
		labelCount[label]++
		f.inputs = append(f.inputs, input{"-", label, true, false})
	}
	for _, path := range f.Paths {
		label := ""
		isLabeled := false
		if i := strings.Index(path, "="); f.AllowLabels && i >= 0 {
			label, path = path[:i], path[i+1:]
			isLabeled = true
		} else {
			label = InferLabel(path, f.Rules)
			labelCount[label]++
		}

		isStdin := f.AllowStdin && path == "-"
		f.inputs = append(f.inputs, input{path, label, isStdin, isLabeled})
	}

	// If two inputs inferred the same label, disambiguate.
	// Otherwise the downstream series merge records from
	// different files, which is generally not what users are
	// expecting. For overridden labels, we do exactly what the
	// user says.
	labelI := make(map[string]int)
	for i := range f.inputs {
		inp := &f.inputs[i]
		if inp.isLabeled || labelCount[inp.label] == 1 {
			continue
		}
		// Disambiguate.
		base := inp.label
		inp.label = fmt.Sprintf("%s#%d", base, labelI[base])
		labelI[base]++
	}
}

// Scan advances the reader to the next record in the sequence of files
// and reports whether a record was read. The caller should use the
// Result method to get the record. If Scan reaches the end of the file
// sequence, or if an error occurs, it returns false. In this case, the
// caller should use the Err method to check for errors.
func (f *Files) Scan() bool {
	if f.err != nil {
		return false
	}

	if f.inputs == nil {
		f.init()
	}

	for {
		if f.file == nil {
			// Open the next file.
			if len(f.inputs) == 0 {
				// We're out of inputs.
				return false
			}
			inp := f.inputs[0]
			f.inputs = f.inputs[1:]
			f.read = append(f.read, Input{inp.path, inp.label})

			if inp.isStdin {
				f.isStdin, f.file = true, os.Stdin
			} else {
				file, err := os.Open(inp.path)
				if err != nil {
					f.err = err
					return false
				}
				f.isStdin, f.file = false, file
			}

			f.reader.Reset(f.file, inp.path, inp.label)
		}

		// Try to get the next record.
		if f.reader.Scan() {
			return true
		}
		err := f.reader.Err()
		if err != nil {
			f.err = err
			break
		}
		// Just the end of this log. Close it and open the next.
		if !f.isStdin {
			f.file.Close()
		}
		f.file = nil
	}
	// A malformed file aborts the whole sequence.
	return false
}

// Result returns the record that was just read by Scan.
// See Reader.Result.
func (f *Files) Result() *Result {
	return f.reader.Result()
}

// Err returns the error that stopped Scan, if any.
// If Scan stopped because it read each file to completion,
// or if Scan has not yet returned false, Err returns nil.
func (f *Files) Err() error {
	return f.err
}

// Inputs returns the inputs consumed by Scan so far, in order. Once
// Scan has returned false with a nil Err, this covers every input,
// including logs that parsed cleanly but yielded no records.
func (f *Files) Inputs() []Input {
	return f.read
}
