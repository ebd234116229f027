// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memseries

import (
	"math"
	"sort"

	"github.com/aclements/go-moremath/stats"
)

// A Summary holds descriptive statistics over one series' values.
// All statistics are in the metric's display unit, megabytes for the
// byte-sized metrics.
type Summary struct {
	Label string
	N     int

	Min, Max float64
	Mean     float64

	// Lo and Hi bound the confidence interval of the mean. They
	// are NaN when the series is too small to estimate spread.
	Lo, Hi float64

	Median float64
	P95    float64
}

// Summarize computes summary statistics of s's values, with a
// confidence*100% interval around the mean. An empty series yields
// NaN statistics.
func Summarize(s *Series, confidence float64) Summary {
	sum := Summary{Label: s.Label, N: len(s.Values)}
	if sum.N == 0 {
		nan := math.NaN()
		sum.Min, sum.Max = nan, nan
		sum.Mean, sum.Lo, sum.Hi = nan, nan, nan
		sum.Median, sum.P95 = nan, nan
		return sum
	}

	// Sort a copy for fast order statistics.
	xs := append([]float64(nil), s.Values...)
	sort.Float64s(xs)
	sample := stats.Sample{Xs: xs, Sorted: true}

	sum.Min, sum.Max = stats.Bounds(xs)
	sum.Mean, sum.Lo, sum.Hi = sample.MeanCI(confidence)
	sum.Median = sample.Percentile(0.5)
	sum.P95 = sample.Percentile(0.95)
	return sum
}

// A LeakCheck is the result of comparing the head of a series against
// its tail. A run whose memory plateaus shows head and tail samples
// from the same distribution; sustained growth separates them.
type LeakCheck struct {
	Label string

	// HeadMean and TailMean are the mean values over the first and
	// last quarter of the series' points.
	HeadMean, TailMean float64

	// N1 and N2 are the head and tail sample sizes.
	N1, N2 int

	// P is the p-value of Welch's t-test between head and tail,
	// or 1 if the test could not run.
	P float64

	// Significant is set when the means differ at level alpha and
	// the tail is the higher one.
	Significant bool

	// Warnings reports why the test was inconclusive, if it was.
	Warnings []error
}

// CheckLeak compares the first and the last quarter of s's values
// using Welch's t-test at significance level alpha. If the test
// cannot run, on constant data or with too few points, it reports no
// leak along with the reason in Warnings.
func CheckLeak(s *Series, alpha float64) LeakCheck {
	lc := LeakCheck{Label: s.Label, P: 1}
	q := len(s.Values) / 4
	if q < 1 {
		lc.HeadMean, lc.TailMean = math.NaN(), math.NaN()
		lc.Warnings = append(lc.Warnings, stats.ErrSampleSize)
		return lc
	}

	head := s.Values[:q]
	tail := s.Values[len(s.Values)-q:]
	lc.HeadMean = stats.Mean(head)
	lc.TailMean = stats.Mean(tail)
	lc.N1, lc.N2 = len(head), len(tail)

	res, err := stats.TwoSampleWelchTTest(
		stats.Sample{Xs: head}, stats.Sample{Xs: tail},
		stats.LocationDiffers)
	if err != nil {
		// Report as if there's no significant difference, along
		// with the error.
		lc.Warnings = append(lc.Warnings, err)
		return lc
	}
	lc.P = res.P
	lc.Significant = lc.P < alpha && lc.TailMean > lc.HeadMean
	return lc
}
