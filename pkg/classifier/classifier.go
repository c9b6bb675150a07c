// Copyright 2026 The cacti Authors. SPDX-License-Identifier: Apache-2.0

// Package classifier classifies graph images with a trained model.
//
// To use it, create a Classifier with New, from a checkpoint saved by cacti, or with
// FromContext, from a context holding the model variables. Then call one of its Classify methods.
package classifier

import (
	"image"

	"github.com/aigraph/cacti/pkg/dataset"
	"github.com/aigraph/cacti/pkg/model"
	"github.com/gomlx/gomlx/backends"
	"github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/context/checkpoints"
	"github.com/pkg/errors"
)

// DefaultBatchSize is the number of images classified per execution of the model.
const DefaultBatchSize = 100

// Prediction for one image.
type Prediction struct {
	// File the image was read from, if known.
	File string

	// Class with the highest logit.
	Class dataset.Class

	// Logits output by the model, one per class.
	Logits []float32
}

// Classifier holds the model compiled.
type Classifier struct {
	backend   backends.Backend
	ctx       *context.Context
	imageSize int
	exec      *context.Exec
}

// New creates a Classifier from the checkpoint in checkpointDir.
// The hyperparameters (model variant and image size) are read from the checkpoint as well.
func New(backend backends.Backend, checkpointDir string) (*Classifier, error) {
	ctx := context.New()
	_, err := checkpoints.Load(ctx).Dir(checkpointDir).Done()
	if err != nil {
		return nil, errors.WithMessagef(err, "failed while loading model from %q", checkpointDir)
	}
	// Reuse: it is an error to create a new variable, since they all come from the checkpoint.
	return FromContext(backend, ctx.Reuse().In("model"))
}

// FromContext creates a Classifier using the model variables and hyperparameters of ctx,
// which should be scoped where the model was built ("/model").
func FromContext(backend backends.Backend, ctx *context.Context) (*Classifier, error) {
	variant := context.GetParamOr(ctx, model.ParamModel, model.DefaultVariant)
	if err := model.CheckVariant(variant); err != nil {
		return nil, err
	}
	c := &Classifier{
		backend:   backend,
		ctx:       ctx,
		imageSize: context.GetParamOr(ctx, model.ParamImageSize, dataset.DefaultImageSize),
	}
	if _, _, err := model.FeatureMapSize(variant, c.imageSize); err != nil {
		return nil, err
	}
	var err error
	c.exec, err = context.NewExec(backend, ctx, func(ctx *context.Context, flatImages *graph.Node) *graph.Node {
		return model.Logits(ctx, flatImages, nil)
	})
	if err != nil {
		return nil, errors.WithMessage(err, "failed to create model executor")
	}
	return c, nil
}

// ImageSize returns the side of the square images expected by the model.
func (c *Classifier) ImageSize() int { return c.imageSize }

// Logits returns the model logits for the flattened images, shaped [batchSize, imageSize*imageSize].
func (c *Classifier) Logits(flatImages *tensors.Tensor) ([][]float32, error) {
	output, err := c.exec.Exec1(flatImages)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to execute model")
	}
	defer func() { _ = output.FinalizeAll() }()
	if dims := output.Shape().Dimensions; len(dims) != 2 || dims[1] != model.NumClasses {
		return nil, errors.Errorf("model output expected shaped [batch_size, %d], got %s", model.NumClasses, output.Shape())
	}
	flat := tensors.MustCopyFlatData[float32](output)
	logits := make([][]float32, 0, len(flat)/model.NumClasses)
	for start := 0; start < len(flat); start += model.NumClasses {
		logits = append(logits, flat[start:start+model.NumClasses])
	}
	return logits, nil
}

// ClassifyDataSet classifies all the images of ds, batchSize at a time.
func (c *Classifier) ClassifyDataSet(ds *dataset.DataSet, batchSize int) ([]Prediction, error) {
	if ds.ImageSize != c.imageSize {
		return nil, errors.Errorf("dataset %q has images of size %d, but model expects size %d",
			ds.Name, ds.ImageSize, c.imageSize)
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	predictions := make([]Prediction, 0, ds.Len())
	for start := 0; start < ds.Len(); start += batchSize {
		end := min(start+batchSize, ds.Len())
		images, labels := ds.Range(start, end)
		logits, err := c.Logits(images)
		_ = images.FinalizeAll()
		if labels != nil {
			_ = labels.FinalizeAll()
		}
		if err != nil {
			return nil, errors.WithMessagef(err, "dataset %q, examples %d to %d", ds.Name, start, end)
		}
		for ii, exampleLogits := range logits {
			p := Prediction{Class: ArgMax(exampleLogits), Logits: exampleLogits}
			if start+ii < len(ds.Files) {
				p.File = ds.Files[start+ii]
			}
			predictions = append(predictions, p)
		}
	}
	return predictions, nil
}

// ClassifyImages classifies the given images. They are converted to grayscale and resized as needed.
func (c *Classifier) ClassifyImages(imgs ...image.Image) ([]Prediction, error) {
	flats := make([][]float32, len(imgs))
	for ii, img := range imgs {
		flats[ii] = dataset.ImageToFlat(img, c.imageSize)
	}
	return c.ClassifyDataSet(dataset.NewDataSet("images", c.imageSize, flats, nil, nil), DefaultBatchSize)
}

// ClassifyFiles loads and classifies the image files.
func (c *Classifier) ClassifyFiles(files []string, verbose bool) ([]Prediction, error) {
	flats, err := dataset.LoadImages(files, c.imageSize, verbose)
	if err != nil {
		return nil, err
	}
	return c.ClassifyDataSet(dataset.NewDataSet("files", c.imageSize, flats, nil, files), DefaultBatchSize)
}

// ArgMax returns the class with the highest logit. Ties go to the lowest class.
func ArgMax(logits []float32) dataset.Class {
	best := 0
	for ii, v := range logits {
		if v > logits[best] {
			best = ii
		}
	}
	return dataset.Class(best)
}
