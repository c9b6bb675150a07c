// Copyright 2026 The cacti Authors. SPDX-License-Identifier: Apache-2.0

// cacti_summaries reports the summaries written by cacti during training.
//
// Example:
//
//	$ cacti_summaries -plot /tmp/cacti_summaries_1234 /tmp/cacti_summaries_5678
//
// More than one summary directory can be given, to compare training sessions.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/aigraph/cacti/pkg/summary"
	"github.com/gomlx/gomlx/pkg/support/sets"
	"github.com/gomlx/gomlx/ui/plots"
	"github.com/janpfeifer/must"
	"k8s.io/klog/v2"
)

var (
	flagMetrics      = flag.Bool("metrics", true, "Lists the scalar metrics, one row per step.")
	flagHistograms   = flag.Bool("histograms", true, "Lists the statistics of the weights, biases and activations at the last step.")
	flagGraph        = flag.Bool("graph", false, fmt.Sprintf("Prints the model description saved in %q.", summary.GraphFileName))
	flagMetricsNames = flag.String("metrics_names", "", "Regular expression that if matches the name or short name, the metric is included.")
	flagMetricsTypes = flag.String("metrics_types", "", "Comma-separated list of metric types to include in the metrics reports.")
	flagPlot         = flag.Bool("plot", false, "Plots the metrics in an HTML page, one plot per metric type.")
	flagPlotFile     = flag.String("plot_file", "", "File where to write the plots. If empty, a temporary file is created.")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	dirs := flag.Args()
	if len(dirs) == 0 {
		klog.Errorf("Missing summary directory to read from. See 'cacti_summaries -help'.")
		os.Exit(1)
	}
	names := make([]string, len(dirs))
	points := make([][]plots.Point, len(dirs))
	for ii, dir := range dirs {
		names[ii] = filepath.Base(filepath.Clean(dir))
		points[ii] = must.M1(plots.LoadPoints(filepath.Join(dir, plots.TrainingPlotFileName)))
		if len(points[ii]) == 0 {
			klog.Warningf("no summaries found in %q", dir)
		}
	}
	filter := must.M1(newFilter(*flagMetricsNames, *flagMetricsTypes))

	if *flagGraph {
		for ii, dir := range dirs {
			content, err := os.ReadFile(filepath.Join(dir, summary.GraphFileName))
			if err != nil {
				klog.Warningf("no model description in %q: %v", dir, err)
				continue
			}
			fmt.Printf("%s:\n%s\n", names[ii], content)
		}
	}
	if *flagMetrics {
		ReportMetrics(os.Stdout, names, points, filter)
	}
	if *flagHistograms {
		for ii := range dirs {
			ReportHistograms(os.Stdout, names[ii], points[ii])
		}
	}
	if *flagPlot {
		path := *flagPlotFile
		if path == "" {
			f := must.M1(os.CreateTemp("", "cacti-plots-*.html"))
			path = f.Name()
			must.M(f.Close())
		}
		must.M(BuildPlots(path, names, points, filter))
		fmt.Printf("\nPlots written to:\t%s\n\n", path)
	}
}

// metricsFilter selects the metrics included in the reports. The zero value includes everything.
type metricsFilter struct {
	names *regexp.Regexp
	types sets.Set[string]
}

func newFilter(namesRegexp, typesList string) (*metricsFilter, error) {
	f := &metricsFilter{}
	if namesRegexp != "" {
		var err error
		f.names, err = regexp.Compile(namesRegexp)
		if err != nil {
			return nil, err
		}
	}
	if typesList != "" {
		f.types = sets.Make[string]()
		for _, metricType := range strings.Split(typesList, ",") {
			f.types.Insert(strings.TrimSpace(metricType))
		}
	}
	return f, nil
}

// Match returns whether the point is included. If both a names and a types filter are given,
// matching either is enough.
func (f *metricsFilter) Match(point plots.Point) bool {
	if f.names == nil && f.types == nil {
		return true
	}
	foundName := f.names != nil && (f.names.MatchString(point.MetricName) || f.names.MatchString(point.Short))
	foundType := f.types != nil && f.types.Has(point.MetricType)
	return foundName || foundType
}
