// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memseries

import (
	"fmt"
	"image/color"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/renatocron/duckdb-memory-leak-test/memunit"
)

// ChartOptions configures the rendered chart. The zero value gives a
// 10in x 6in canvas at 150 DPI.
type ChartOptions struct {
	Width, Height vg.Length
	DPI           int
}

// WriteChart renders series as one line per engine and writes the
// chart to w as a PNG. Series with no points get no line but keep
// their place in the color cycle, so an engine keeps its color across
// charts that include or exclude it.
func WriteChart(w io.Writer, metric memunit.Metric, series []*Series, opts ChartOptions) error {
	if opts.Width == 0 {
		opts.Width = 10 * vg.Inch
	}
	if opts.Height == 0 {
		opts.Height = 6 * vg.Inch
	}
	if opts.DPI == 0 {
		opts.DPI = 150
	}

	pl := plot.New()
	name := metric.Name()
	pl.Title.Text = fmt.Sprintf("%s vs Iteration (aligned to common max iteration)", name)
	pl.X.Label.Text = "Iteration"
	if unit := metric.Unit(); unit != "" {
		pl.Y.Label.Text = fmt.Sprintf("%s (%s)", name, unit)
	} else {
		pl.Y.Label.Text = name
	}

	grid := plotter.NewGrid()
	gs := draw.LineStyle{
		Color:  color.NRGBA{0, 0, 0, 0x99},
		Width:  vg.Points(0.5),
		Dashes: []vg.Length{vg.Points(4), vg.Points(2)},
	}
	grid.Vertical, grid.Horizontal = gs, gs
	pl.Add(grid)

	for i, s := range series {
		if len(s.Iters) == 0 {
			continue
		}
		xys := make(plotter.XYs, len(s.Iters))
		for j, it := range s.Iters {
			xys[j].X = float64(it)
			xys[j].Y = s.Values[j]
		}
		line, err := plotter.NewLine(xys)
		if err != nil {
			return err
		}
		line.Color = palette[i%len(palette)]
		line.Width = vg.Points(1.5)
		pl.Add(line)
		pl.Legend.Add(s.Label, line)
	}
	pl.Legend.Top = true

	can := vgimg.PngCanvas{Canvas: vgimg.NewWith(
		vgimg.UseWH(opts.Width, opts.Height),
		vgimg.UseDPI(opts.DPI),
		vgimg.UseBackgroundColor(color.White))}
	pl.Draw(draw.New(can))
	_, err := can.WriteTo(w)
	return err
}

// palette holds the line colors, cycled by series position.
var palette = []color.Color{
	color.NRGBA{0x1F, 0x77, 0xB4, 0xFF}, // blue
	color.NRGBA{0xFF, 0x7F, 0x0E, 0xFF}, // orange
	color.NRGBA{0x2C, 0xA0, 0x2C, 0xFF}, // green
	color.NRGBA{0xD6, 0x27, 0x28, 0xFF}, // red
	color.NRGBA{0x94, 0x67, 0xBD, 0xFF}, // purple
}
