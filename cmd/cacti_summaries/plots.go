// Copyright 2026 The cacti Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"maps"
	"os"
	"slices"

	grob "github.com/MetalBlueberry/go-plotly/generated/v2.34.0/graph_objects"
	ptypes "github.com/MetalBlueberry/go-plotly/pkg/types"
	"github.com/aigraph/cacti/pkg/summary"
	"github.com/gomlx/gomlx/pkg/support/xslices"
	"github.com/gomlx/gomlx/ui/plots"
	"github.com/pkg/errors"
)

// PlotlySrc is the Plotly.js version matching the go-plotly generated figures.
const PlotlySrc = "https://cdn.plot.ly/plotly-2.34.0.min.js"

// plotLine is a single line in a plot.
type plotLine struct {
	name          string
	steps, values []float64
}

// createPlotLines returns one line per summary directory and metric of the given type, with
// points sorted by step.
func createPlotLines(metricType string, names []string, points [][]plots.Point, filter *metricsFilter) []*plotLine {
	var lines []*plotLine
	for modelIdx, modelPoints := range points {
		byMetric := make(map[string]*plotLine)
		for _, point := range modelPoints {
			if point.MetricType != metricType || !filter.Match(point) {
				continue
			}
			line, found := byMetric[point.MetricName]
			if !found {
				line = &plotLine{name: point.MetricName}
				if len(names) > 1 {
					line.name = fmt.Sprintf("%s: %s", names[modelIdx], point.MetricName)
				}
				byMetric[point.MetricName] = line
			}
			line.steps = append(line.steps, point.Step)
			line.values = append(line.values, point.Value)
		}
		for _, metricName := range slices.Sorted(maps.Keys(byMetric)) {
			line := byMetric[metricName]
			indices := xslices.Iota(0, len(line.steps))
			slices.SortStableFunc(indices, func(i, j int) int {
				switch {
				case line.steps[i] < line.steps[j]:
					return -1
				case line.steps[i] > line.steps[j]:
					return 1
				}
				return 0
			})
			line.steps = xslices.Map(indices, func(idx int) float64 { return line.steps[idx] })
			line.values = xslices.Map(indices, func(idx int) float64 { return line.values[idx] })
			lines = append(lines, line)
		}
	}
	return lines
}

// metricTypes returns the sorted metric types accepted by filter. Histograms are only
// plotted if their type is explicitly selected.
func metricTypes(points [][]plots.Point, filter *metricsFilter) []string {
	types := make(map[string]bool)
	withHistograms := filter.types != nil && filter.types.Has(summary.HistogramMetricType)
	for _, modelPoints := range points {
		for _, point := range modelPoints {
			if point.MetricType == summary.HistogramMetricType && !withHistograms {
				continue
			}
			if filter.Match(point) {
				types[point.MetricType] = true
			}
		}
	}
	return slices.Sorted(maps.Keys(types))
}

// BuildFigures creates one Plotly figure per metric type, in the order of types.
func BuildFigures(types []string, names []string, points [][]plots.Point, filter *metricsFilter) []*grob.Fig {
	var figs []*grob.Fig
	for _, metricType := range types {
		fig := &grob.Fig{
			Layout: &grob.Layout{
				Title: &grob.LayoutTitle{
					Text: ptypes.S(metricType),
				},
				Xaxis: &grob.LayoutXaxis{
					Showgrid: ptypes.B(true),
				},
				Yaxis: &grob.LayoutYaxis{
					Showgrid: ptypes.B(true),
				},
			},
		}
		for _, line := range createPlotLines(metricType, names, points, filter) {
			fig.Data = append(fig.Data, &grob.Scatter{
				Name: ptypes.S(line.name),
				Line: &grob.ScatterLine{
					Shape: grob.ScatterLineShapeLinear,
				},
				Mode: "lines+markers",
				X:    ptypes.DataArray(line.steps),
				Y:    ptypes.DataArray(line.values),
			})
		}
		figs = append(figs, fig)
	}
	return figs
}

// BuildPlots writes the figures of BuildFigures as an HTML page to path.
func BuildPlots(path string, names []string, points [][]plots.Point, filter *metricsFilter) error {
	types := metricTypes(points, filter)
	if len(types) == 0 {
		return errors.New("no metrics to plot")
	}
	figs := BuildFigures(types, names, points, filter)
	figsAsJSON := make([][]byte, 0, len(figs))
	for ii, fig := range figs {
		figAsJSON, err := json.Marshal(fig)
		if err != nil {
			return errors.Wrapf(err, "failed to marshal plotly figure for metric type %q", types[ii])
		}
		figsAsJSON = append(figsAsJSON, figAsJSON)
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create file %q", path)
	}
	if err = WritePlotlyAsHTML(f, figsAsJSON...); err != nil {
		_ = f.Close()
		return err
	}
	return errors.Wrapf(f.Close(), "failed to close %q", path)
}

var (
	singleFileHTML = `<!DOCTYPE html>
	<head>
		<meta charset="utf-8">
		<script src="{{ .CDN }}"></script>
	</head>
	<body>
{{- range $i, $f := .Figures }}
		<div id="plot{{ $i }}"></div>
		{{ if not (eq $i (lastIdx $.Figures)) }}
		<hr style="border-color: gray;">
		{{ end }}
{{- end }}
	<script>
{{- range $i, $f := .Figures }}
		data = JSON.parse(atob('{{ $f }}'))
		Plotly.newPlot('plot{{ $i }}', data);
{{- end }}
	</script>
	</body>
</html>`
	singleFileHTMLTmpl = template.Must(template.New("plotly").Funcs(template.FuncMap{
		"lastIdx": func(a []string) int { return len(a) - 1 },
	}).Parse(singleFileHTML))
)

// WritePlotlyAsHTML renders the Plotly figures (given as JSON) to an HTML page.
func WritePlotlyAsHTML(w io.Writer, figuresAsJSON ...[]byte) error {
	data := &struct {
		CDN     string
		Figures []string
	}{
		CDN:     PlotlySrc,
		Figures: xslices.Map(figuresAsJSON, func(fig []byte) string { return base64.StdEncoding.EncodeToString(fig) }),
	}
	if err := singleFileHTMLTmpl.Execute(w, data); err != nil {
		return errors.Wrap(err, "failed to render plotly")
	}
	return nil
}
