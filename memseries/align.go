// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memseries

// CommonBound returns the largest iteration reached by every series,
// that is, the minimum of the per-series maximum iterations. It
// returns -1 if series is empty or any series has no points; in that
// case no common bound exists.
func CommonBound(series []*Series) int {
	if len(series) == 0 {
		return -1
	}
	bound := series[0].MaxIter()
	for _, s := range series[1:] {
		if m := s.MaxIter(); m < bound {
			bound = m
		}
	}
	return bound
}

// Align trims every series, in place, to the iteration range
// [0, CommonBound(series)] and returns the bound. Points past the
// bound come from iterations some engine never reached and would skew
// a comparison. If the bound is negative no trimming happens and the
// series are left as read.
func Align(series []*Series) int {
	bound := CommonBound(series)
	if bound < 0 {
		return bound
	}
	for _, s := range series {
		s.Clip(0, bound)
	}
	return bound
}
