// Copyright 2026 The cacti Authors. SPDX-License-Identifier: Apache-2.0

// Package summary records what happens during training, in a directory that can be
// inspected later with cmd/cacti_summaries.
//
// Scalars and histogram statistics are appended as plot points (the format of the
// GoMLX ui/plots package) to the file plots.TrainingPlotFileName. Sample input images are
// saved as PNG files, and a description of the model variables and hyperparameters is
// saved in GraphFileName.
package summary

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	timages "github.com/gomlx/gomlx/pkg/core/tensors/images"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/ui/plots"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

const (
	// GraphFileName holds the description of the model variables and hyperparameters.
	GraphFileName = "graph.txt"

	// HistogramMetricType is the plots.Point.MetricType of histogram statistics.
	HistogramMetricType = "histogram"

	// MaxImages is the maximum number of input images saved.
	MaxImages = 3
)

// Writer of summaries. It is safe for concurrent use.
type Writer struct {
	dir string

	mu        sync.Mutex
	points    chan<- plots.Point
	errReport <-chan error
	closed    bool
	err       error
}

// New creates a Writer in dir, creating the directory if needed.
// If dir is empty a new temporary directory is created.
func New(dir string) (*Writer, error) {
	var err error
	if dir == "" {
		dir, err = os.MkdirTemp("", "cacti_summaries_")
		if err != nil {
			return nil, errors.Wrap(err, "failed to create temporary directory for summaries")
		}
	} else if err = os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to create summaries directory %q", dir)
	}
	w := &Writer{dir: dir}
	w.points, w.errReport = plots.CreatePointsWriter(filepath.Join(dir, plots.TrainingPlotFileName))
	klog.V(1).Infof("writing summaries to %q", dir)
	return w, nil
}

// Dir where summaries are written.
func (w *Writer) Dir() string { return w.dir }

func (w *Writer) write(point plots.Point) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		klog.Warningf("summary %q written after Writer.Close(), dropped", point.MetricName)
		return
	}
	w.points <- point
}

// Scalar records value of the metric at the given step. metricType groups metrics in the same plot,
// e.g.: "loss" or "accuracy".
func (w *Writer) Scalar(step int, name, short, metricType string, value float64) {
	w.write(plots.Point{
		MetricName: name,
		Short:      short,
		MetricType: metricType,
		Step:       float64(step),
		Value:      value,
	})
}

// Histogram records the statistics returned by HistogramStats for the named tensor at the given step.
func (w *Writer) Histogram(step int, name string, stats []float32) error {
	if len(stats) != len(StatNames) {
		return errors.Errorf("histogram %q expects %d statistics (%q), got %d", name, len(StatNames), StatNames, len(stats))
	}
	for ii, statName := range StatNames {
		w.write(plots.Point{
			MetricName: name + "/" + statName,
			Short:      statName,
			MetricType: HistogramMetricType,
			Step:       float64(step),
			Value:      float64(stats[ii]),
		})
	}
	return nil
}

// Images saves up to MaxImages of the flattened grayscale images, shaped [batchSize, imageSize*imageSize]
// with values in [0, 1], as the PNG files "input_<i>.png". Later calls overwrite the files.
func (w *Writer) Images(flatImages *tensors.Tensor, imageSize int) ([]string, error) {
	dims := flatImages.Shape().Dimensions
	if len(dims) != 2 || dims[1] != imageSize*imageSize {
		return nil, errors.Errorf("images expected shaped [batch_size, %d], got %s", imageSize*imageSize, flatImages.Shape())
	}
	numImages := min(dims[0], MaxImages)
	gray := tensors.MustCopyFlatData[float32](flatImages)
	rgb := make([]float32, 0, numImages*imageSize*imageSize*3)
	for _, v := range gray[:numImages*imageSize*imageSize] {
		rgb = append(rgb, v, v, v)
	}
	imgs := timages.ToImage().Batch(tensors.FromFlatDataAndDimensions(rgb, numImages, imageSize, imageSize, 3))
	paths := make([]string, 0, numImages)
	for ii, img := range imgs {
		path := filepath.Join(w.dir, fmt.Sprintf("input_%d.png", ii))
		if err := saveImage(img, path); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func saveImage(img image.Image, path string) error {
	if err := imaging.Save(img, path); err != nil {
		return errors.Wrapf(err, "failed to save image summary %q", path)
	}
	return nil
}

// Graph writes a description of the variables and hyperparameters of ctx to GraphFileName.
func (w *Writer) Graph(ctx *context.Context) error {
	var sb strings.Builder
	sb.WriteString("Variables:\n")
	var totalSize, totalMemory int
	var lines []string
	for v := range ctx.IterVariables() {
		shape := v.Shape()
		totalSize += shape.Size()
		totalMemory += int(shape.Memory())
		lines = append(lines, fmt.Sprintf("\t%s/%s: %s\n", strings.TrimSuffix(v.Scope(), "/"), v.Name(), shape))
	}
	slices.Sort(lines)
	for _, line := range lines {
		sb.WriteString(line)
	}
	fmt.Fprintf(&sb, "\t%d variables, %s parameters, %s\n", len(lines),
		humanize.Comma(int64(totalSize)), humanize.Bytes(uint64(totalMemory)))

	sb.WriteString("Hyperparameters:\n")
	lines = lines[:0]
	ctx.EnumerateParams(func(scope, key string, value any) {
		lines = append(lines, fmt.Sprintf("\t%s%s=%v\n", scopePrefix(scope), key, value))
	})
	slices.Sort(lines)
	for _, line := range lines {
		sb.WriteString(line)
	}

	path := filepath.Join(w.dir, GraphFileName)
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		return errors.Wrapf(err, "failed to write %q", path)
	}
	return nil
}

func scopePrefix(scope string) string {
	if scope == context.RootScope {
		return ""
	}
	return scope + context.ScopeSeparator
}

// Close flushes the pending points and returns the first error found while writing them.
// It is safe to call it more than once.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return w.err
	}
	w.closed = true
	close(w.points)
	w.err = <-w.errReport
	return w.err
}
