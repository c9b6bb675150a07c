// Copyright 2026 The cacti Authors. SPDX-License-Identifier: Apache-2.0

package dataset_test

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aigraph/cacti/pkg/dataset"
	"github.com/aigraph/cacti/pkg/dataset/datasettest"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testImageSize = 16

func TestReadDataSetsDiscover(t *testing.T) {
	dir := datasettest.CreateDataDir(t, 5, 4, testImageSize)
	cfg := dataset.DefaultConfig(dir)
	cfg.ImageSize = testImageSize
	cfg.ValidationSize = 3
	dss, err := dataset.ReadDataSets(cfg)
	require.NoError(t, err)
	assert.Equal(t, 12, dss.Train.Len())
	assert.Equal(t, 3, dss.Validation.Len())
	assert.Equal(t, 4, dss.Test.Len())
	assert.False(t, dss.Test.Labeled())
	assert.Equal(t, "graph_000.png", filepath.Base(dss.Test.Files[0]))

	// Labels must follow the directory of each file.
	for _, ds := range []*dataset.DataSet{dss.Train, dss.Validation} {
		for ii, file := range ds.Files {
			wantClass := filepath.Base(filepath.Dir(file))
			assert.Equal(t, wantClass, ds.Labels[ii].String(), "file %q", file)
		}
	}

	// The split is deterministic.
	dss2, err := dataset.ReadDataSets(cfg)
	require.NoError(t, err)
	assert.Equal(t, dss.Validation.Files, dss2.Validation.Files)

	images, labels := dss.Validation.Tensors()
	assert.Equal(t, []int{3, testImageSize * testImageSize}, images.Shape().Dimensions)
	assert.Equal(t, []int{3, 1}, labels.Shape().Dimensions)

	images, labels = dss.Test.Range(1, 3)
	assert.Equal(t, []int{2, testImageSize * testImageSize}, images.Shape().Dimensions)
	assert.Nil(t, labels)
}

func TestReadDataSetsIndex(t *testing.T) {
	dir := datasettest.CreateDataDir(t, 2, 0, testImageSize)
	var sb strings.Builder
	sb.WriteString("file,label\n")
	for label, classDir := range datasettest.ClassDirs {
		for ii := range 2 {
			// Mix names and numeric labels.
			labelStr := classDir
			if ii == 1 {
				labelStr = fmt.Sprint(label)
			}
			fmt.Fprintf(&sb, "%s/%s_%03d.png,%s\n", classDir, classDir, ii, labelStr)
		}
	}
	indexPath := filepath.Join(t.TempDir(), "index.csv")
	require.NoError(t, os.WriteFile(indexPath, []byte(sb.String()), 0o644))

	examples, err := dataset.ReadIndex(indexPath, dir)
	require.NoError(t, err)
	require.Len(t, examples, 6)
	assert.Equal(t, dataset.Outage, examples[3].Label)
	assert.True(t, filepath.IsAbs(examples[0].File) || strings.HasPrefix(examples[0].File, dir))

	cfg := dataset.DefaultConfig(dir)
	cfg.IndexFile = indexPath
	cfg.ImageSize = testImageSize
	cfg.ValidationSize = 1
	dss, err := dataset.ReadDataSets(cfg)
	require.NoError(t, err)
	assert.Equal(t, 5, dss.Train.Len())
	assert.Equal(t, 0, dss.Test.Len())
}

func TestReadDataSetsErrors(t *testing.T) {
	dir := datasettest.CreateDataDir(t, 1, 0, testImageSize)
	cfg := dataset.DefaultConfig(dir)
	cfg.ImageSize = testImageSize
	_, err := dataset.ReadDataSets(cfg) // Only 3 examples for 100 validation.
	require.ErrorContains(t, err, "validation size")

	_, err = dataset.ReadDataSets(dataset.DefaultConfig(t.TempDir()))
	require.ErrorContains(t, err, "no images found")

	indexPath := filepath.Join(t.TempDir(), "index.csv")
	require.NoError(t, os.WriteFile(indexPath, []byte("file,label\nNormal/Normal_000.png,Spike\n"), 0o644))
	_, err = dataset.ReadIndex(indexPath, dir)
	require.ErrorContains(t, err, "unknown class")

	require.NoError(t, os.WriteFile(indexPath, []byte("path,class\na.png,Normal\n"), 0o644))
	_, err = dataset.ReadIndex(indexPath, dir)
	require.ErrorContains(t, err, "column")
}

func newCountingDataSet(n int) *dataset.DataSet {
	images := make([][]float32, n)
	labels := make([]dataset.Class, n)
	for ii := range n {
		// Image of size 1x1 holding its own index.
		images[ii] = []float32{float32(ii)}
		labels[ii] = dataset.Class(ii % dataset.NumClasses)
	}
	return dataset.NewDataSet("counting", 1, images, labels, nil)
}

func TestNextBatch(t *testing.T) {
	ds := newCountingDataSet(10)
	seen := make(map[float32]int)
	for range 5 {
		images, labels, err := ds.NextBatch(4)
		require.NoError(t, err)
		require.Equal(t, []int{4, 1}, images.Shape().Dimensions)
		require.Equal(t, []int{4, 1}, labels.Shape().Dimensions)
		values := tensors.MustCopyFlatData[float32](images)
		gotLabels := tensors.MustCopyFlatData[int32](labels)
		for ii, v := range values {
			seen[v]++
			assert.Equal(t, int32(int(v)%dataset.NumClasses), gotLabels[ii])
		}
	}
	// 20 examples: the first epoch rolled over at the 3rd batch and the second one
	// ended exactly at the 5th batch, so every example was seen twice.
	assert.Equal(t, 1, ds.EpochsCompleted())
	require.Len(t, seen, 10)
	for v, count := range seen {
		assert.Equal(t, 2, count, "example %g", v)
	}

	_, _, err := ds.NextBatch(11)
	require.Error(t, err)
	_, _, err = ds.NextBatch(0)
	require.Error(t, err)
}

func TestBatcher(t *testing.T) {
	ds := newCountingDataSet(6)
	_, err := dataset.NewBatcher(dataset.NewDataSet("unlabeled", 1, ds.Images, nil, nil), 2)
	require.Error(t, err)
	_, err = dataset.NewBatcher(ds, 7)
	require.Error(t, err)

	batcher, err := dataset.NewBatcher(ds, 4)
	require.NoError(t, err)
	assert.False(t, batcher.IsOwnershipTransferred())

	// Peek is stable until the batch is yielded.
	images, labels, err := batcher.Peek()
	require.NoError(t, err)
	images2, labels2, err := batcher.Peek()
	require.NoError(t, err)
	assert.Same(t, images, images2)
	assert.Same(t, labels, labels2)
	peeked := tensors.MustCopyFlatData[float32](images)

	_, inputs, labelsList, err := batcher.Yield()
	require.NoError(t, err)
	require.Len(t, inputs, 1)
	require.Len(t, labelsList, 1)
	assert.Same(t, images, inputs[0])
	assert.Same(t, labels, labelsList[0])
	assert.Equal(t, peeked, tensors.MustCopyFlatData[float32](inputs[0]))

	// A new batch after the yield, and the stream is infinite.
	images, _, err = batcher.Peek()
	require.NoError(t, err)
	assert.NotSame(t, inputs[0], images)
	for range 10 {
		_, _, _, err = batcher.Yield()
		require.NoError(t, err)
	}
	batcher.Finalize()
}
