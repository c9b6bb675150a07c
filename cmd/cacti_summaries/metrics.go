// Copyright 2026 The cacti Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"maps"
	"math"
	"slices"
	"strings"

	"github.com/aigraph/cacti/internal/tables"
	"github.com/aigraph/cacti/pkg/summary"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/gomlx/ui/plots"
)

// ModelNameAndMetric identifies a metric of one of the summary directories.
type ModelNameAndMetric struct{ ModelName, MetricName, MetricType string }

// metricsColumns maps the scalar metrics (histograms excluded) accepted by filter to their
// column in the metrics table, starting from 1: column 0 is the step.
func metricsColumns(names []string, points [][]plots.Point, filter *metricsFilter) map[ModelNameAndMetric]int {
	used := make(map[ModelNameAndMetric]bool)
	for modelIdx, modelPoints := range points {
		for _, point := range modelPoints {
			if point.MetricType == summary.HistogramMetricType || !filter.Match(point) {
				continue
			}
			used[ModelNameAndMetric{names[modelIdx], point.MetricName, point.MetricType}] = true
		}
	}
	inOrder := slices.SortedFunc(maps.Keys(used), func(a, b ModelNameAndMetric) int {
		if c := strings.Compare(a.MetricName, b.MetricName); c != 0 {
			return c
		}
		return strings.Compare(a.ModelName, b.ModelName)
	})
	columns := make(map[ModelNameAndMetric]int, len(inOrder))
	for idx, metric := range inOrder {
		columns[metric] = idx + 1
	}
	return columns
}

// formatValue formats accuracies as percentages.
func formatValue(metricType string, value float64) string {
	if metricType == "accuracy" {
		return fmt.Sprintf("%.2f%%", 100.0*value)
	}
	return fmt.Sprintf("%.3g", value)
}

// ReportMetrics writes a table with one row per step and one column per scalar metric.
func ReportMetrics(w io.Writer, names []string, points [][]plots.Point, filter *metricsFilter) {
	columns := metricsColumns(names, points, filter)
	if len(columns) == 0 {
		_, _ = fmt.Fprintln(w, "No metrics found.")
		return
	}
	_, _ = fmt.Fprintln(w, tables.TitleStyle.Render("Metrics"))
	table := tables.New(lipgloss.Right)
	header := make([]string, 1+len(columns))
	header[0] = "Step"
	for metric, idx := range columns {
		if len(names) == 1 {
			header[idx] = metric.MetricName
		} else {
			header[idx] = fmt.Sprintf("%s: %s", metric.ModelName, metric.MetricName)
		}
	}
	table.Headers(header...)

	rows := make(map[int64][]string)
	for modelIdx, modelPoints := range points {
		for _, point := range modelPoints {
			idx, found := columns[ModelNameAndMetric{names[modelIdx], point.MetricName, point.MetricType}]
			if !found {
				continue
			}
			step := int64(point.Step)
			row, found := rows[step]
			if !found {
				row = make([]string, 1+len(columns))
				row[0] = humanize.Comma(step)
				rows[step] = row
			}
			row[idx] = formatValue(point.MetricType, point.Value)
		}
	}
	for _, step := range slices.Sorted(maps.Keys(rows)) {
		table.Row(false, rows[step]...)
	}
	_, _ = fmt.Fprintln(w, table.Render())
}

// latestHistograms returns the histogram statistics of the last step with histograms, indexed
// by the name of the summarized tensor and then by the statistic name.
func latestHistograms(points []plots.Point) (step int64, stats map[string]map[string]float64) {
	step = -1
	for _, point := range points {
		if point.MetricType == summary.HistogramMetricType && int64(point.Step) > step {
			step = int64(point.Step)
		}
	}
	stats = make(map[string]map[string]float64)
	for _, point := range points {
		if point.MetricType != summary.HistogramMetricType || int64(point.Step) != step {
			continue
		}
		name := strings.TrimSuffix(point.MetricName, "/"+point.Short)
		if stats[name] == nil {
			stats[name] = make(map[string]float64)
		}
		stats[name][point.Short] = point.Value
	}
	return
}

// ReportHistograms writes a table with the statistics of each summarized tensor at the last step.
// Rows of tensors with non-finite values are highlighted.
func ReportHistograms(w io.Writer, name string, points []plots.Point) {
	step, stats := latestHistograms(points)
	if len(stats) == 0 {
		return
	}
	_, _ = fmt.Fprintln(w, tables.TitleStyle.Render(fmt.Sprintf("Histograms of %s at step %s", name, humanize.Comma(step))))
	table := tables.New(lipgloss.Left, lipgloss.Right)
	table.Headers(append([]string{"Tensor"}, summary.StatNames...)...)
	for _, tensorName := range slices.Sorted(maps.Keys(stats)) {
		row := []string{tensorName}
		highlight := false
		for _, statName := range summary.StatNames {
			value, found := stats[tensorName][statName]
			if !found {
				row = append(row, "")
				continue
			}
			if math.IsNaN(value) || math.IsInf(value, 0) {
				highlight = true
			}
			row = append(row, fmt.Sprintf("%.4g", value))
		}
		table.Row(highlight, row...)
	}
	_, _ = fmt.Fprintln(w, table.Render())
}
