// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memfmt

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// A LabelRule maps a file-name substring to a series label.
type LabelRule struct {
	Match string `yaml:"match"`
	Label string `yaml:"label"`
}

// DefaultRules is the built-in label rule list, covering the database
// engines the harness compares. Matching is ordered and best-effort;
// use a rules file or label=path arguments when it guesses wrong.
var DefaultRules = []LabelRule{
	{Match: "duckdb", Label: "DuckDB"},
	{Match: "sqlite", Label: "SQLite"},
	{Match: "postgres", Label: "Postgres"},
	{Match: "postgre", Label: "Postgres"},
}

// InferLabel derives a series label from path: the label of the first
// rule whose Match is a case-insensitive substring of the base name,
// or the base name itself when no rule matches. A nil rules slice
// means DefaultRules.
func InferLabel(path string, rules []LabelRule) string {
	if rules == nil {
		rules = DefaultRules
	}
	base := filepath.Base(path)
	lower := strings.ToLower(base)
	for _, rule := range rules {
		if strings.Contains(lower, strings.ToLower(rule.Match)) {
			return rule.Label
		}
	}
	return base
}

// LoadRules reads a label rule file: a YAML sequence of {match, label}
// pairs. The returned rules replace DefaultRules entirely, so a file
// that wants the built-in engines must restate them.
func LoadRules(path string) ([]LabelRule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rules []LabelRule
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	for i, rule := range rules {
		if rule.Match == "" {
			return nil, fmt.Errorf("%s: rule %d: empty match", path, i)
		}
		if rule.Label == "" {
			return nil, fmt.Errorf("%s: rule %d: empty label", path, i)
		}
	}
	return rules, nil
}
