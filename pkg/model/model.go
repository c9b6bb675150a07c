// Copyright 2026 The cacti Authors. SPDX-License-Identifier: Apache-2.0

// Package model defines the convolutional classifier of graph images.
//
// The input is a batch of flattened grayscale images, shaped [batchSize, imageSize*imageSize].
// They go through a stack of convolution and max-pooling stages, followed by a fully
// connected hidden layer with dropout and a final linear layer that outputs the logits of
// the NumClasses classes.
//
// Two variants are available, selected with the context parameter "model":
//
//   - "5": five stages starting with a 5x5 convolution. 288x288 images end as 9x9x128.
//   - "13": six stages starting with a 13x13 convolution without padding. 288x288 images end as 5x5x128.
package model

import (
	"fmt"
	"math"
	"slices"

	"github.com/gomlx/exceptions"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/shapes"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/layers"
	"github.com/gomlx/gomlx/pkg/ml/layers/activations"
	"github.com/pkg/errors"
)

const (
	// ParamModel is the context parameter with the model variant.
	ParamModel = "model"

	// ParamImageSize is the context parameter with the side of the square input images.
	ParamImageSize = "image_size"

	// ParamDropoutRate is the context parameter with the dropout rate of the hidden layer, during training.
	ParamDropoutRate = "dropout_rate"

	// NumClasses is the number of logits output.
	NumClasses = 3

	// HiddenSize is the number of units of the fully connected hidden layer.
	HiddenSize = 1024

	// DefaultVariant is used if ParamModel is not set.
	DefaultVariant = "5"
)

// Stage of convolution + bias + ReLU + max-pooling.
type Stage struct {
	KernelSize, Channels int

	// Valid convolutions are not padded, and the output shrinks by KernelSize-1.
	Valid bool
}

// Variants maps the model variant name to its convolution stages.
var Variants = map[string][]Stage{
	"5": {
		{KernelSize: 5, Channels: 64},
		{KernelSize: 3, Channels: 96},
		{KernelSize: 3, Channels: 96},
		{KernelSize: 3, Channels: 96},
		{KernelSize: 3, Channels: 128},
	},
	"13": {
		{KernelSize: 13, Channels: 32, Valid: true},
		{KernelSize: 5, Channels: 64},
		{KernelSize: 3, Channels: 96},
		{KernelSize: 3, Channels: 96},
		{KernelSize: 3, Channels: 128},
		{KernelSize: 3, Channels: 128},
	},
}

// VariantNames returns the sorted names of the model variants.
func VariantNames() []string {
	names := make([]string, 0, len(Variants))
	for name := range Variants {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// CheckVariant returns an error if the variant is unknown.
func CheckVariant(variant string) error {
	if _, found := Variants[variant]; !found {
		return errors.Errorf("unknown model variant %q, valid values are %q", variant, VariantNames())
	}
	return nil
}

// FeatureMapSize returns the side and the number of channels of the feature map output by the
// convolution stages of the variant, for square images of the given size.
func FeatureMapSize(variant string, imageSize int) (size, channels int, err error) {
	if err = CheckVariant(variant); err != nil {
		return
	}
	size, channels = imageSize, 1
	for _, stage := range Variants[variant] {
		if stage.Valid {
			size -= stage.KernelSize - 1
		}
		if size <= 0 {
			err = errors.Errorf("images of size %d are too small for model variant %q", imageSize, variant)
			return
		}
		size = (size + 1) / 2
		channels = stage.Channels
	}
	return
}

// Taps collects intermediary nodes of the model, by name, to be summarized.
// A nil *Taps is valid and ignores everything.
type Taps struct {
	Names []string
	Nodes []*Node
}

// Add node under name. It is a no-op if t is nil.
func (t *Taps) Add(name string, node *Node) {
	if t == nil {
		return
	}
	t.Names = append(t.Names, name)
	t.Nodes = append(t.Nodes, node)
}

// ModelGraph implements train.ModelFn: it takes the flattened images in inputs[0] and
// returns the logits.
func ModelGraph(ctx *context.Context, spec any, inputs []*Node) []*Node {
	_ = spec // Not used.
	return []*Node{Logits(ctx, inputs[0], nil)}
}

// Logits builds the model on the flattened images, shaped [batchSize, imageSize*imageSize],
// and returns the logits shaped [batchSize, NumClasses].
//
// The activations and variables worth summarizing are added to taps, which may be nil.
func Logits(ctx *context.Context, flatImages *Node, taps *Taps) *Node {
	g := flatImages.Graph()
	dtype := flatImages.DType()
	batchSize := flatImages.Shape().Dimensions[0]
	variant := context.GetParamOr(ctx, ParamModel, DefaultVariant)
	stages, found := Variants[variant]
	if !found {
		exceptions.Panicf("unknown model variant %q set in context parameter %q, valid values are %q",
			variant, ParamModel, VariantNames())
	}
	imageSize := context.GetParamOr(ctx, ParamImageSize, 0)
	if imageSize == 0 {
		imageSize = int(math.Round(math.Sqrt(float64(flatImages.Shape().Dimensions[1]))))
	}
	if flatImages.Rank() != 2 || flatImages.Shape().Dimensions[1] != imageSize*imageSize {
		exceptions.Panicf("model expects flattened images shaped [batch_size, %d], got %s",
			imageSize*imageSize, flatImages.Shape())
	}

	weightsCtx := func(scope string) *context.Context {
		return ctx.In(scope).WithInitializer(TruncatedNormalFn(ctx, WeightsStddev))
	}
	biasCtx := func(scope string) *context.Context {
		return ctx.In(scope).WithInitializer(ConstantFn(BiasValue))
	}

	x := Reshape(flatImages, batchSize, imageSize, imageSize, 1)
	channels := 1
	for idx, stage := range stages {
		scope := fmt.Sprintf("conv%d", idx)
		w := weightsCtx(scope).VariableWithShape("weights",
			shapes.Make(dtype, stage.KernelSize, stage.KernelSize, channels, stage.Channels)).ValueGraph(g)
		b := biasCtx(scope).VariableWithShape("biases", shapes.Make(dtype, stage.Channels)).ValueGraph(g)
		if stage.Valid {
			x = Conv2DNoPad1(x, w)
		} else {
			x = Conv2D(x, w)
		}
		x = activations.Relu(Add(x, ExpandLeftToRank(b, x.Rank())))
		if idx == 0 {
			taps.Add(scope+"/weights", w)
			taps.Add(scope+"/biases", b)
			taps.Add(scope+"/activations", x)
		}
		x = MaxPool2x2(x)
		channels = stage.Channels
	}

	size, _, err := FeatureMapSize(variant, imageSize)
	if err != nil {
		panic(err)
	}
	x.AssertDims(batchSize, size, size, channels)
	x = Reshape(x, batchSize, -1)

	x = denseLayer(weightsCtx("fc1"), biasCtx("fc1"), x, HiddenSize, taps, "fc1")
	x = activations.Relu(x)
	taps.Add("fc1/activations", x)
	dropoutRate := context.GetParamOr(ctx, ParamDropoutRate, 0.5)
	if dropoutRate > 0 {
		x = layers.DropoutNormalize(ctx.In("dropout"), x, Scalar(g, dtype, dropoutRate), true)
	}

	logits := denseLayer(weightsCtx("fc2"), biasCtx("fc2"), x, NumClasses, taps, "fc2")
	taps.Add("fc2/activations", logits)
	logits.AssertDims(batchSize, NumClasses)
	return logits
}

// denseLayer computes x*W+b, with W and b created in the given contexts.
func denseLayer(weightsCtx, biasCtx *context.Context, x *Node, outputSize int, taps *Taps, scope string) *Node {
	g := x.Graph()
	inputSize := x.Shape().Dimensions[1]
	w := weightsCtx.VariableWithShape("weights", shapes.Make(x.DType(), inputSize, outputSize)).ValueGraph(g)
	b := biasCtx.VariableWithShape("biases", shapes.Make(x.DType(), outputSize)).ValueGraph(g)
	taps.Add(scope+"/weights", w)
	taps.Add(scope+"/biases", b)
	return Add(MatMul(x, w), ExpandLeftToRank(b, 2))
}
