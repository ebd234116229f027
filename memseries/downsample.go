// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memseries

import (
	"fmt"
	"math"
)

// Downsample reduces s to at most target points by splitting the
// iteration range [min, max] into target equal-width buckets and
// averaging the values that fall into each. Empty buckets produce no
// point. Each remaining point sits at the rounded center of its
// bucket, except that the first point is pinned to the series'
// minimum iteration and the last to its maximum, so the plotted range
// is exact.
//
// A series that already has at most target points is returned as is.
// If every point shares one iteration the result is that single
// iteration with the mean of all values. Downsample does not modify
// s; when it reduces, it returns a new Series.
//
// target must be at least 1.
func Downsample(s *Series, target int) *Series {
	if len(s.Iters) <= target {
		return s
	}
	if target < 1 {
		panic(fmt.Sprintf("bad target %d", target))
	}

	minIt, maxIt := s.Iters[0], s.Iters[0]
	for _, it := range s.Iters[1:] {
		if it < minIt {
			minIt = it
		}
		if it > maxIt {
			maxIt = it
		}
	}
	if maxIt == minIt {
		sum := 0.0
		for _, v := range s.Values {
			sum += v
		}
		return &Series{
			Label:  s.Label,
			Iters:  []int{s.Iters[0]},
			Values: []float64{sum / float64(len(s.Values))},
		}
	}

	span := maxIt - minIt
	sums := make([]float64, target)
	counts := make([]int, target)
	for i, it := range s.Iters {
		var idx int
		if it == maxIt {
			// The maximum always lands in the last bucket.
			idx = target - 1
		} else {
			idx = int(float64((it-minIt)*target) / float64(span))
			if idx < 0 {
				idx = 0
			}
			if idx > target-1 {
				idx = target - 1
			}
		}
		sums[idx] += s.Values[i]
		counts[idx]++
	}

	out := &Series{Label: s.Label}
	for b := 0; b < target; b++ {
		if counts[b] == 0 {
			continue
		}
		left := float64(minIt) + float64(b*span)/float64(target)
		right := float64(minIt) + float64((b+1)*span)/float64(target)
		out.Iters = append(out.Iters, int(math.RoundToEven((left+right)/2)))
		out.Values = append(out.Values, sums[b]/float64(counts[b]))
	}
	out.Iters[0] = minIt
	out.Iters[len(out.Iters)-1] = maxIt
	return out
}

// DownsampleAll applies Downsample to each series and returns the
// results in the same order.
func DownsampleAll(series []*Series, target int) []*Series {
	out := make([]*Series, len(series))
	for i, s := range series {
		out[i] = Downsample(s, target)
	}
	return out
}
