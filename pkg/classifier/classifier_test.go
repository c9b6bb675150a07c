// Copyright 2026 The cacti Authors. SPDX-License-Identifier: Apache-2.0

package classifier_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aigraph/cacti/pkg/classifier"
	"github.com/aigraph/cacti/pkg/dataset"
	"github.com/aigraph/cacti/pkg/dataset/datasettest"
	"github.com/aigraph/cacti/pkg/model"
	"github.com/gomlx/gomlx/pkg/core/graph/graphtest"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArgMax(t *testing.T) {
	assert.Equal(t, dataset.Normal, classifier.ArgMax([]float32{1, 0, -1}))
	assert.Equal(t, dataset.Outage, classifier.ArgMax([]float32{1, 3, 2}))
	assert.Equal(t, dataset.Plateau, classifier.ArgMax([]float32{-3, -2, -1}))
	// Ties go to the first class.
	assert.Equal(t, dataset.Outage, classifier.ArgMax([]float32{0, 5, 5}))
}

var testPredictions = []classifier.Prediction{
	{File: "/data/test/a.png", Class: dataset.Normal, Logits: []float32{2, 1, 0}},
	{File: "/data/test/b.png", Class: dataset.Outage, Logits: []float32{0, 1.5, 0.25}},
	{File: "/data/test/c.png", Class: dataset.Plateau, Logits: []float32{-1, 0, 3}},
}

func TestPrintTable(t *testing.T) {
	var buf bytes.Buffer
	classifier.PrintTable(&buf, "Final verification result", testPredictions)
	output := buf.String()
	for _, want := range []string{"Final verification result", "a.png", "*Outage", "#Plateau", "1.5000", "0.2500"} {
		assert.Contains(t, output, want)
	}
	assert.NotContains(t, output, "/data/test")
}

func TestPrintClasses(t *testing.T) {
	var buf bytes.Buffer
	classifier.PrintClasses(&buf, "Final verification result", testPredictions)
	assert.Equal(t, "Final verification result [0 1 2]\n", buf.String())
}

func TestPrintLogits(t *testing.T) {
	var buf bytes.Buffer
	classifier.PrintLogits(&buf, "Test y_conv", testPredictions)
	assert.Equal(t, "Test y_conv\n[2 1 0]\n[0 1.5 0.25]\n[-1 0 3]\n", buf.String())
}

func TestWriteCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "predictions.csv")
	require.NoError(t, classifier.WriteCSV(path, testPredictions))
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "file,class,logit_Normal,logit_Outage,logit_Plateau", lines[0])
	assert.True(t, strings.HasPrefix(lines[2], "/data/test/b.png,Outage,"), "got %q", lines[2])

	df := classifier.PredictionsDataFrame(testPredictions)
	assert.Equal(t, 3, df.Nrow())
	assert.Equal(t, []float64{0, 0.25, 3}, df.Col("logit_Plateau").Float())
}

func TestClassifier(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	const imageSize = 16
	ctx := context.New()
	ctx.SetParams(map[string]any{model.ParamImageSize: imageSize, model.ParamModel: "5"})
	c, err := classifier.FromContext(backend, ctx.In("model").Checked(false))
	require.NoError(t, err)
	assert.Equal(t, imageSize, c.ImageSize())

	// Model with random weights: only shapes and consistency are checked.
	dir := datasettest.CreateDataDir(t, 0, 5, 24)
	files, err := dataset.ListImages(filepath.Join(dir, dataset.TestSubDir))
	require.NoError(t, err)
	predictions, err := c.ClassifyFiles(files, false)
	require.NoError(t, err)
	require.Len(t, predictions, 5)
	for ii, p := range predictions {
		assert.Equal(t, files[ii], p.File)
		require.Len(t, p.Logits, model.NumClasses)
		assert.Equal(t, classifier.ArgMax(p.Logits), p.Class)
	}

	// Same images, through ClassifyImages and a smaller batch size.
	img := datasettest.PatternImage(int(dataset.Outage), imageSize)
	fromImages, err := c.ClassifyImages(img, img)
	require.NoError(t, err)
	require.Len(t, fromImages, 2)
	assert.Equal(t, "", fromImages[0].File)
	assert.InDeltaSlice(t, fromImages[0].Logits, fromImages[1].Logits, 1e-5)

	flats := [][]float32{dataset.ImageToFlat(img, imageSize), dataset.ImageToFlat(img, imageSize)}
	ds := dataset.NewDataSet("pair", imageSize, flats, nil, nil)
	batched, err := c.ClassifyDataSet(ds, 1)
	require.NoError(t, err)
	require.Len(t, batched, 2)
	assert.InDeltaSlice(t, fromImages[0].Logits, batched[1].Logits, 1e-5)

	// Images of the wrong size.
	_, err = c.ClassifyDataSet(dataset.NewDataSet("wrong", 8, [][]float32{make([]float32, 64)}, nil, nil), 1)
	require.Error(t, err)
}

func TestFromContextErrors(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	ctx := context.New()
	ctx.SetParam(model.ParamModel, "unknown")
	_, err := classifier.FromContext(backend, ctx.In("model"))
	require.Error(t, err)

	ctx = context.New()
	ctx.SetParams(map[string]any{model.ParamImageSize: 10, model.ParamModel: "13"})
	_, err = classifier.FromContext(backend, ctx.In("model"))
	require.ErrorContains(t, err, "too small")

	_, err = classifier.New(backend, filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
}
