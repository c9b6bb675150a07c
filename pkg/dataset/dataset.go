// Copyright 2026 The cacti Authors. SPDX-License-Identifier: Apache-2.0

// Package dataset reads the labeled graph images used to train the outage classifier.
//
// Images are either listed in an index file (CSV with the header "file,label") or
// discovered from one sub-directory per class ("Normal", "Outage", "Plateau") under the
// data directory. Unlabeled images to classify after training are read from the "test"
// sub-directory.
//
// Every image is converted to grayscale, resized to ImageSize x ImageSize and flattened,
// so the examples are vectors of ImageSize*ImageSize float32 values in [0, 1].
package dataset

import (
	"math/rand/v2"
	"os"
	"path/filepath"

	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

const (
	// DefaultImageSize is the side of the square images fed to the model.
	DefaultImageSize = 288

	// DefaultValidationSize is the number of labeled examples held out for validation.
	DefaultValidationSize = 100

	// TestSubDir holds the unlabeled images classified after training.
	TestSubDir = "test"
)

// Config for ReadDataSets.
type Config struct {
	// Dir is the data directory. Required.
	Dir string

	// IndexFile lists the labeled examples. If empty, the class sub-directories of Dir are scanned.
	IndexFile string

	ImageSize      int
	ValidationSize int

	// Seed for the validation split and the shuffling of the batches.
	Seed uint64

	// Verbose displays a progress bar while loading.
	Verbose bool
}

// DefaultConfig returns the configuration to read the data sets under dir.
func DefaultConfig(dir string) Config {
	return Config{
		Dir:            dir,
		ImageSize:      DefaultImageSize,
		ValidationSize: DefaultValidationSize,
	}
}

// DataSets groups the train, validation and test sets.
// Test is unlabeled and may be empty.
type DataSets struct {
	Train, Validation, Test *DataSet
}

// ReadDataSets reads, loads and splits the examples configured in cfg.
func ReadDataSets(cfg Config) (*DataSets, error) {
	if cfg.Dir == "" {
		return nil, errors.New("data directory not given")
	}
	if cfg.ImageSize <= 0 {
		return nil, errors.Errorf("invalid image size %d", cfg.ImageSize)
	}
	if cfg.ValidationSize < 0 {
		return nil, errors.Errorf("invalid validation size %d", cfg.ValidationSize)
	}

	var examples []Example
	var err error
	if cfg.IndexFile != "" {
		examples, err = ReadIndex(cfg.IndexFile, cfg.Dir)
	} else {
		examples, err = DiscoverExamples(cfg.Dir)
	}
	if err != nil {
		return nil, err
	}
	if cfg.ValidationSize >= len(examples) {
		return nil, errors.Errorf("validation size (%d) should be smaller than the number of labeled examples (%d)",
			cfg.ValidationSize, len(examples))
	}

	rng := rand.New(rand.NewPCG(cfg.Seed, 0))
	rng.Shuffle(len(examples), func(i, j int) { examples[i], examples[j] = examples[j], examples[i] })
	validationExamples, trainExamples := examples[:cfg.ValidationSize], examples[cfg.ValidationSize:]

	var testFiles []string
	testDir := filepath.Join(cfg.Dir, TestSubDir)
	if _, err := os.Stat(testDir); err == nil {
		testFiles, err = ListImages(testDir)
		if err != nil {
			return nil, err
		}
	} else {
		klog.V(1).Infof("no test directory in %q", cfg.Dir)
	}

	files := make([]string, 0, len(examples)+len(testFiles))
	for _, ex := range trainExamples {
		files = append(files, ex.File)
	}
	for _, ex := range validationExamples {
		files = append(files, ex.File)
	}
	files = append(files, testFiles...)
	flats, err := LoadImages(files, cfg.ImageSize, cfg.Verbose)
	if err != nil {
		return nil, err
	}

	numTrain, numValidation := len(trainExamples), len(validationExamples)
	dss := &DataSets{
		Train: NewDataSet("train", cfg.ImageSize, flats[:numTrain], labelsOf(trainExamples), files[:numTrain]),
		Validation: NewDataSet("validation", cfg.ImageSize, flats[numTrain:numTrain+numValidation],
			labelsOf(validationExamples), files[numTrain:numTrain+numValidation]),
		Test: NewDataSet("test", cfg.ImageSize, flats[numTrain+numValidation:], nil, testFiles),
	}
	dss.Train.rng = rand.New(rand.NewPCG(cfg.Seed, 1))
	klog.Infof("read %d training, %d validation and %d test images from %q",
		dss.Train.Len(), dss.Validation.Len(), dss.Test.Len(), cfg.Dir)
	return dss, nil
}

func labelsOf(examples []Example) []Class {
	labels := make([]Class, len(examples))
	for ii, ex := range examples {
		labels[ii] = ex.Label
	}
	return labels
}

// DataSet holds loaded examples. Labels is nil for unlabeled sets.
type DataSet struct {
	Name      string
	ImageSize int
	Images    [][]float32
	Labels    []Class
	Files     []string

	rng             *rand.Rand
	perm            []int
	indexInEpoch    int
	epochsCompleted int
}

// NewDataSet creates a DataSet with the given examples. labels may be nil.
func NewDataSet(name string, imageSize int, images [][]float32, labels []Class, files []string) *DataSet {
	return &DataSet{
		Name:      name,
		ImageSize: imageSize,
		Images:    images,
		Labels:    labels,
		Files:     files,
		rng:       rand.New(rand.NewPCG(0, 1)),
	}
}

// Len returns the number of examples.
func (ds *DataSet) Len() int { return len(ds.Images) }

// Labeled returns whether the examples have labels.
func (ds *DataSet) Labeled() bool { return ds.Labels != nil }

// EpochsCompleted by NextBatch.
func (ds *DataSet) EpochsCompleted() int { return ds.epochsCompleted }

// Tensors returns all images as a float32 tensor shaped [N, ImageSize*ImageSize] and the
// labels as an int32 tensor shaped [N, 1]. labels is nil if the DataSet is unlabeled.
func (ds *DataSet) Tensors() (images, labels *tensors.Tensor) {
	return ds.Range(0, ds.Len())
}

// Range returns the examples from start to end (exclusive), like Tensors.
func (ds *DataSet) Range(start, end int) (images, labels *tensors.Tensor) {
	indices := make([]int, 0, end-start)
	for ii := start; ii < end; ii++ {
		indices = append(indices, ii)
	}
	return ds.gather(indices)
}

func (ds *DataSet) gather(indices []int) (images, labels *tensors.Tensor) {
	exampleSize := ds.ImageSize * ds.ImageSize
	flat := make([]float32, 0, len(indices)*exampleSize)
	for _, idx := range indices {
		flat = append(flat, ds.Images[idx]...)
	}
	images = tensors.FromFlatDataAndDimensions(flat, len(indices), exampleSize)
	if ds.Labeled() {
		flatLabels := make([]int32, len(indices))
		for ii, idx := range indices {
			flatLabels[ii] = int32(ds.Labels[idx])
		}
		labels = tensors.FromFlatDataAndDimensions(flatLabels, len(indices), 1)
	}
	return
}

// NextBatch returns the next batchSize examples. Examples are visited in a random order
// reshuffled at every epoch; a batch crossing the end of an epoch is completed with
// examples from the start of the next one.
func (ds *DataSet) NextBatch(batchSize int) (images, labels *tensors.Tensor, err error) {
	indices, err := ds.nextBatchIndices(batchSize)
	if err != nil {
		return nil, nil, err
	}
	images, labels = ds.gather(indices)
	return
}

func (ds *DataSet) nextBatchIndices(batchSize int) ([]int, error) {
	numExamples := ds.Len()
	if batchSize <= 0 || batchSize > numExamples {
		return nil, errors.Errorf("invalid batch size %d for dataset %q with %d examples", batchSize, ds.Name, numExamples)
	}
	if ds.perm == nil {
		ds.perm = ds.rng.Perm(numExamples)
	}
	start := ds.indexInEpoch
	if start+batchSize <= numExamples {
		ds.indexInEpoch += batchSize
		return append([]int(nil), ds.perm[start:ds.indexInEpoch]...), nil
	}

	// Epoch finished: take the rest, reshuffle and complete from the new epoch.
	ds.epochsCompleted++
	indices := append([]int(nil), ds.perm[start:]...)
	ds.perm = ds.rng.Perm(numExamples)
	ds.indexInEpoch = batchSize - len(indices)
	indices = append(indices, ds.perm[:ds.indexInEpoch]...)
	return indices, nil
}
