// Copyright 2026 The cacti Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/aigraph/cacti/pkg/summary"
	"github.com/gomlx/gomlx/ui/plots"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPoints() []plots.Point {
	var points []plots.Point
	for step := 4; step >= 0; step -= 2 {
		points = append(points,
			plots.Point{MetricName: "Accuracy", Short: "acc", MetricType: "accuracy", Step: float64(step), Value: 0.25 * float64(step/2)},
			plots.Point{MetricName: "Loss", Short: "loss", MetricType: "loss", Step: float64(step), Value: 1.0 / float64(step+1)},
		)
		for ii, stat := range summary.StatNames {
			value := float64(ii + step)
			if step == 4 && stat == "max" {
				value = math.Inf(1)
			}
			points = append(points, plots.Point{
				MetricName: "fc2/weights/" + stat, Short: stat,
				MetricType: summary.HistogramMetricType, Step: float64(step), Value: value,
			})
		}
	}
	return points
}

func TestFilter(t *testing.T) {
	acc := plots.Point{MetricName: "Accuracy", Short: "acc", MetricType: "accuracy"}
	loss := plots.Point{MetricName: "Loss", Short: "loss", MetricType: "loss"}

	f, err := newFilter("", "")
	require.NoError(t, err)
	assert.True(t, f.Match(acc))
	assert.True(t, f.Match(loss))

	f, err = newFilter("^acc$", "")
	require.NoError(t, err)
	assert.True(t, f.Match(acc))
	assert.False(t, f.Match(loss))

	f, err = newFilter("", "loss, histogram")
	require.NoError(t, err)
	assert.False(t, f.Match(acc))
	assert.True(t, f.Match(loss))

	_, err = newFilter("(", "")
	require.Error(t, err)
}

func TestReportMetrics(t *testing.T) {
	f, err := newFilter("", "")
	require.NoError(t, err)
	var buf bytes.Buffer
	ReportMetrics(&buf, []string{"run"}, [][]plots.Point{testPoints()}, f)
	output := buf.String()
	assert.Contains(t, output, "Accuracy")
	assert.Contains(t, output, "Loss")
	assert.Contains(t, output, "50.00%")
	assert.Contains(t, output, "0.2")
	assert.NotContains(t, output, "fc2/weights")

	buf.Reset()
	f, err = newFilter("nothing", "")
	require.NoError(t, err)
	ReportMetrics(&buf, []string{"run"}, [][]plots.Point{testPoints()}, f)
	assert.Equal(t, "No metrics found.\n", buf.String())
}

func TestLatestHistograms(t *testing.T) {
	step, stats := latestHistograms(testPoints())
	assert.Equal(t, int64(4), step)
	require.Len(t, stats, 1)
	assert.Equal(t, 4.0, stats["fc2/weights"]["mean"])
	assert.True(t, math.IsInf(stats["fc2/weights"]["max"], 1))

	var buf bytes.Buffer
	ReportHistograms(&buf, "run", testPoints())
	assert.Contains(t, buf.String(), "fc2/weights")
	assert.Contains(t, buf.String(), "+Inf")

	buf.Reset()
	ReportHistograms(&buf, "run", nil)
	assert.Empty(t, buf.String())
}

func TestBuildPlots(t *testing.T) {
	f, err := newFilter("", "")
	require.NoError(t, err)
	points := [][]plots.Point{testPoints(), testPoints()}
	names := []string{"a", "b"}
	assert.Equal(t, []string{"accuracy", "loss"}, metricTypes(points, f))

	lines := createPlotLines("loss", names, points, f)
	require.Len(t, lines, 2)
	assert.Equal(t, "a: Loss", lines[0].name)
	assert.Equal(t, []float64{0, 2, 4}, lines[0].steps)
	assert.Equal(t, 1.0, lines[0].values[0])

	path := filepath.Join(t.TempDir(), "plots.html")
	require.NoError(t, BuildPlots(path, names, points, f))
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), PlotlySrc)
	assert.Contains(t, string(content), "plot0")
	assert.Contains(t, string(content), "plot1")
	assert.NotContains(t, string(content), "plot2")

	f, err = newFilter("", "histogram")
	require.NoError(t, err)
	assert.Equal(t, []string{summary.HistogramMetricType}, metricTypes(points, f))

	f, err = newFilter("nothing", "")
	require.NoError(t, err)
	require.Error(t, BuildPlots(path, names, points, f))
}
