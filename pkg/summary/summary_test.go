// Copyright 2026 The cacti Authors. SPDX-License-Identifier: Apache-2.0

package summary

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/graph/graphtest"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/ui/plots"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistogramStats(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	got, err := graph.ExecOnce(backend, func(x *graph.Node) *graph.Node {
		return HistogramStats(x)
	}, [][]float32{{1, 2}, {3, 6}})
	require.NoError(t, err)
	require.Equal(t, []int{4}, got.Shape().Dimensions)
	stats := tensors.MustCopyFlatData[float32](got)
	assert.InDelta(t, 3.0, stats[0], 1e-5)
	assert.InDelta(t, 1.870829, stats[1], 1e-5) // sqrt((4+1+0+9)/4)
	assert.InDelta(t, 1.0, stats[2], 1e-5)
	assert.InDelta(t, 6.0, stats[3], 1e-5)
}

func TestWriterPoints(t *testing.T) {
	w, err := New(filepath.Join(t.TempDir(), "summaries"))
	require.NoError(t, err)
	w.Scalar(5, "Batch Accuracy", "acc", "accuracy", 0.75)
	w.Scalar(5, "Batch Loss", "loss", "loss", 1.5)
	require.NoError(t, w.Histogram(5, "conv0/weights", []float32{0, 0.1, -0.2, 0.2}))
	require.Error(t, w.Histogram(5, "conv0/biases", []float32{0.1}))
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
	w.Scalar(6, "Batch Loss", "loss", "loss", 1.0) // Dropped.

	points, err := plots.LoadPoints(filepath.Join(w.Dir(), plots.TrainingPlotFileName))
	require.NoError(t, err)
	require.Len(t, points, 6)
	assert.Equal(t, plots.Point{MetricName: "Batch Accuracy", Short: "acc", MetricType: "accuracy", Step: 5, Value: 0.75}, points[0])
	assert.Equal(t, "conv0/weights/stddev", points[3].MetricName)
	assert.Equal(t, HistogramMetricType, points[3].MetricType)
	assert.InDelta(t, 0.1, points[3].Value, 1e-6)
}

func TestWriterTempDir(t *testing.T) {
	w, err := New("")
	require.NoError(t, err)
	defer func() { _ = os.RemoveAll(w.Dir()) }()
	info, err := os.Stat(w.Dir())
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	require.NoError(t, w.Close())
}

func TestWriterImages(t *testing.T) {
	w, err := New(t.TempDir())
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	const size = 4
	flat := make([]float32, 5*size*size)
	for ii := range flat {
		flat[ii] = float32(ii/(size*size)) / 4 // Image i has value i/4.
	}
	paths, err := w.Images(tensors.FromFlatDataAndDimensions(flat, 5, size*size), size)
	require.NoError(t, err)
	require.Len(t, paths, MaxImages)
	img, err := imaging.Open(paths[2])
	require.NoError(t, err)
	r, g, b, _ := img.At(1, 1).RGBA()
	assert.InDelta(t, 0.5*0xFFFF, float64(r), 0x200)
	assert.Equal(t, r, g)
	assert.Equal(t, r, b)

	_, err = w.Images(tensors.FromFlatDataAndDimensions(flat, 5, size*size), size+1)
	require.Error(t, err)
}

func TestWriterGraph(t *testing.T) {
	w, err := New(t.TempDir())
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	ctx := context.New()
	ctx.SetParams(map[string]any{"model": "5", "learning_rate": 1e-5})
	ctx.In("fc2").VariableWithValue("biases", []float32{0.1, 0.1, 0.1})
	require.NoError(t, w.Graph(ctx))
	contents, err := os.ReadFile(filepath.Join(w.Dir(), GraphFileName))
	require.NoError(t, err)
	assert.Regexp(t, `/fc2/biases: .*\[3\]`, string(contents))
	assert.Contains(t, string(contents), "model=5")
	assert.Contains(t, string(contents), "learning_rate=1e-05")
}
