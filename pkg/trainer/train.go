// Copyright 2026 The cacti Authors. SPDX-License-Identifier: Apache-2.0

// Package trainer trains the graph image classifier defined in package model.
//
// Train reads the data, trains the model for the configured number of steps while
// writing summaries, reports the validation accuracy and the predictions on the test
// images, and finally offers to save the trained variables to a checkpoint.
//
// All hyperparameters are stored in the context, see CreateDefaultContext.
package trainer

import (
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/aigraph/cacti/pkg/classifier"
	"github.com/aigraph/cacti/pkg/dataset"
	"github.com/aigraph/cacti/pkg/model"
	"github.com/aigraph/cacti/pkg/summary"
	"github.com/gomlx/gomlx/backends"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/shapes"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/context/checkpoints"
	"github.com/gomlx/gomlx/pkg/ml/datasets"
	"github.com/gomlx/gomlx/pkg/ml/train"
	"github.com/gomlx/gomlx/pkg/ml/train/losses"
	"github.com/gomlx/gomlx/pkg/ml/train/metrics"
	"github.com/gomlx/gomlx/pkg/ml/train/optimizers"
	"github.com/gomlx/gomlx/ui/commandline"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Config of a training session. Hyperparameters are not here, they are in the context.
type Config struct {
	// DataDir holds the class sub-directories and the "test" sub-directory. Required.
	DataDir string

	// IndexFile lists the labeled images. Optional, see dataset.Config.
	IndexFile string

	// RestoreDir is a checkpoint to restore the variables and hyperparameters from, before training.
	RestoreDir string

	// SummaryDir is where summaries are written. If empty, a temporary directory is created.
	SummaryDir string

	// PredictionsFile, if set, receives the predictions on the test images as CSV.
	PredictionsFile string

	// SavePath is the checkpoint directory offered to save the trained variables.
	// If empty, DefaultSavePath of the model variant is used.
	SavePath string

	// AssumeYes saves the trained variables without asking.
	AssumeYes bool

	// ParamsSet lists the hyperparameters explicitly set by the user: they take precedence over
	// the ones in the restored checkpoint.
	ParamsSet []string

	// In is where the answer to the save prompt is read from. Defaults to os.Stdin.
	In io.Reader

	// Out is where results are printed. Defaults to os.Stdout.
	Out io.Writer

	// Verbose displays progress bars and extra information.
	Verbose bool
}

// Result of Train.
type Result struct {
	// GlobalStep at the end of training.
	GlobalStep int

	// UntrainedAccuracies are the accuracies measured on each summarized batch, before training on it.
	UntrainedAccuracies []float64

	// ValidationAccuracy is NaN if there are no validation examples.
	ValidationAccuracy float64

	// ValidationPredictions on the validation images, in the order of the validation set.
	ValidationPredictions []classifier.Prediction

	// Predictions on the test images.
	Predictions []classifier.Prediction

	// SummaryDir where the summaries were written.
	SummaryDir string

	// CheckpointDir where the variables were saved, or empty if they were not saved.
	CheckpointDir string
}

// Train the model with the hyperparameters in ctx. See package documentation.
func Train(backend backends.Backend, ctx *context.Context, cfg Config) (*Result, error) {
	if cfg.In == nil {
		cfg.In = os.Stdin
	}
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}
	if cfg.Verbose {
		_, _ = fmt.Fprintf(cfg.Out, "Backend %q:\t%s\n", backend.Name(), backend.Description())
	}

	var restored *checkpoints.Handler
	if cfg.RestoreDir != "" {
		var err error
		restored, err = RestoreCheckpoint(ctx, cfg.RestoreDir, cfg.ParamsSet)
		if err != nil {
			return nil, err
		}
		_, _ = fmt.Fprintf(cfg.Out, "Restored variables from %q\n", restored.Dir())
	}

	variant := context.GetParamOr(ctx, model.ParamModel, model.DefaultVariant)
	imageSize := context.GetParamOr(ctx, model.ParamImageSize, dataset.DefaultImageSize)
	if _, _, err := model.FeatureMapSize(variant, imageSize); err != nil {
		return nil, err
	}
	batchSize := context.GetParamOr(ctx, ParamBatchSize, 0)
	if batchSize <= 0 {
		return nil, errors.Errorf("batch size must be > 0 (maybe it was not set?): %d", batchSize)
	}
	evalBatchSize := context.GetParamOr(ctx, ParamEvalBatchSize, 0)
	if evalBatchSize <= 0 {
		evalBatchSize = batchSize
	}
	summaryEvery := context.GetParamOr(ctx, ParamSummaryEvery, 0)

	seed := context.GetParamOr(ctx, ParamSeed, 0)
	dataSeed := uint64(seed)
	if seed != 0 {
		if err := ctx.SetRNGStateFromSeed(int64(seed)); err != nil {
			return nil, errors.WithMessage(err, "failed to seed the context RNG")
		}
	} else {
		dataSeed = uint64(time.Now().UnixNano())
	}

	dataCfg := dataset.Config{
		Dir:            cfg.DataDir,
		IndexFile:      cfg.IndexFile,
		ImageSize:      imageSize,
		ValidationSize: context.GetParamOr(ctx, ParamValidationSize, dataset.DefaultValidationSize),
		Seed:           dataSeed,
		Verbose:        cfg.Verbose,
	}
	dss, err := dataset.ReadDataSets(dataCfg)
	if err != nil {
		return nil, err
	}
	batcher, err := dataset.NewBatcher(dss.Train, batchSize)
	if err != nil {
		return nil, err
	}
	defer batcher.Finalize()

	summaries, err := summary.New(cfg.SummaryDir)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := summaries.Close(); err != nil {
			klog.Errorf("failed to write summaries: %+v", err)
		}
	}()
	_, _ = fmt.Fprintf(cfg.Out, "Summaries written to %q\n", summaries.Dir())
	result := &Result{SummaryDir: summaries.Dir(), ValidationAccuracy: math.NaN()}

	// Metrics we are interested in.
	meanAccuracyMetric := metrics.NewSparseCategoricalAccuracy("Mean Accuracy", "#acc")
	movingAccuracyMetric := metrics.NewMovingAverageSparseCategoricalAccuracy("Moving Average Accuracy", "~acc", 0.01)

	// The model variables are created by whichever runs first: the summary before step 0 or
	// the first training step. So the model context is not checked for reuse.
	modelCtx := ctx.In("model").Checked(false)
	trainer := train.NewTrainer(backend, modelCtx, model.ModelGraph,
		losses.SparseCategoricalCrossEntropyLogits,
		optimizers.FromContext(modelCtx),
		[]metrics.Interface{movingAccuracyMetric}, // trainMetrics
		[]metrics.Interface{meanAccuracyMetric})   // evalMetrics
	loop := train.NewLoop(trainer)
	if cfg.Verbose {
		commandline.AttachProgressBar(loop)
	}

	summarize, err := newSummarizer(backend, modelCtx, batcher, summaries, imageSize)
	if err != nil {
		return nil, err
	}
	summaryStep := func(globalStep, trainedSteps int) error {
		accuracy, err := summarize.run(globalStep)
		if err != nil {
			return err
		}
		if trainedSteps == 0 && restored == nil {
			if err := summaries.Graph(ctx); err != nil {
				return err
			}
		}
		result.UntrainedAccuracies = append(result.UntrainedAccuracies, accuracy)
		_, _ = fmt.Fprintf(cfg.Out, "Run %d times, untraining accuracy :%.5f\n", trainedSteps*batchSize, accuracy)
		return nil
	}
	if summaryEvery > 0 {
		loop.OnStep("summaries", 0, func(loop *train.Loop, _ []*tensors.Tensor) error {
			nextStep := loop.LoopStep + 1
			trainedSteps := nextStep - loop.StartStep
			if trainedSteps%summaryEvery != 0 || nextStep >= loop.EndStep {
				return nil
			}
			return summaryStep(nextStep, trainedSteps)
		})
	}

	// Loop for the given number of steps: one epoch by default.
	numTrainSteps := context.GetParamOr(ctx, ParamTrainSteps, 0)
	if numTrainSteps <= 0 {
		numTrainSteps = max(dss.Train.Len()/batchSize, 1)
	}
	if summaryEvery > 0 {
		if err := summaryStep(loop.LoopStep, 0); err != nil {
			return nil, err
		}
	}
	if _, err = loop.RunSteps(batcher, numTrainSteps); err != nil {
		return nil, errors.WithMessage(err, "training failed")
	}
	result.GlobalStep = int(optimizers.GetGlobalStep(modelCtx))
	klog.V(1).Infof("trained %d steps, global step %d", numTrainSteps, result.GlobalStep)
	if cfg.Verbose {
		_, _ = fmt.Fprintf(cfg.Out, "\t[Step %d] median train step: %d microseconds\n",
			loop.LoopStep, loop.MedianTrainStepDuration().Microseconds())
	}

	// Validation.
	if dss.Validation.Len() > 0 {
		result.ValidationAccuracy, err = evalAccuracy(backend, trainer, dss.Validation, evalBatchSize, meanAccuracyMetric.Name())
		if err != nil {
			return nil, err
		}
		summaries.Scalar(result.GlobalStep, "Validation Accuracy", "val_acc", "accuracy", result.ValidationAccuracy)
		_, _ = fmt.Fprintf(cfg.Out, "Run %d times, validation images accuracy :%.5f\n",
			dss.Train.Len(), result.ValidationAccuracy)
	}

	// Predictions on the validation and test images.
	c, err := classifier.FromContext(backend, modelCtx)
	if err != nil {
		return nil, err
	}
	if dss.Validation.Len() > 0 {
		result.ValidationPredictions, err = c.ClassifyDataSet(dss.Validation, evalBatchSize)
		if err != nil {
			return nil, err
		}
		classifier.PrintClasses(cfg.Out, "Final verification result", result.ValidationPredictions)
	}
	if dss.Test.Len() > 0 {
		result.Predictions, err = c.ClassifyDataSet(dss.Test, evalBatchSize)
		if err != nil {
			return nil, err
		}
		classifier.PrintTable(cfg.Out, "Test images", result.Predictions)
		classifier.PrintLogits(cfg.Out, "Test y_conv", result.Predictions)
		if cfg.PredictionsFile != "" {
			if err := classifier.WriteCSV(cfg.PredictionsFile, result.Predictions); err != nil {
				return nil, err
			}
			klog.Infof("predictions written to %q", cfg.PredictionsFile)
		}
	} else {
		_, _ = fmt.Fprintf(cfg.Out, "No test images in %q\n", cfg.DataDir)
	}

	// Save.
	savePath := cfg.SavePath
	if savePath == "" {
		savePath = DefaultSavePath(variant)
	}
	save, err := Confirm(cfg.In, cfg.Out,
		fmt.Sprintf("Do you want to save the trained variables to %s?", savePath), cfg.AssumeYes)
	if err != nil {
		return nil, err
	}
	if save {
		handler, err := SaveCheckpoint(ctx, savePath, restored)
		if err != nil {
			return nil, err
		}
		result.CheckpointDir = handler.Dir()
		_, _ = fmt.Fprintf(cfg.Out, "Variables saved to %q\n", result.CheckpointDir)
	}
	return result, nil
}

// evalAccuracy returns the value of the metric named accuracyName, evaluated by trainer over ds.
func evalAccuracy(backend backends.Backend, trainer *train.Trainer, ds *dataset.DataSet, batchSize int,
	accuracyName string) (float64, error) {
	images, labels := ds.Tensors()
	evalDS, err := datasets.InMemoryFromData(backend, ds.Name, []any{images}, []any{labels})
	if err != nil {
		return 0, errors.WithMessagef(err, "failed to create %q evaluation dataset", ds.Name)
	}
	evalDS.BatchSize(batchSize, false)
	values, err := trainer.Eval(evalDS)
	if err != nil {
		return 0, errors.WithMessagef(err, "failed to evaluate %q dataset", ds.Name)
	}
	for ii, metric := range trainer.EvalMetrics() {
		if metric.Name() == accuracyName {
			return shapes.ConvertTo[float64](values[ii].Value()), nil
		}
	}
	return 0, errors.Errorf("metric %q not found in evaluation metrics", accuracyName)
}

// summarizer evaluates the next training batch, before it is trained on, and writes the summaries.
type summarizer struct {
	batcher   *dataset.Batcher
	writer    *summary.Writer
	imageSize int
	exec      *context.Exec

	// tapNames are set when the graph is built.
	tapNames      []string
	imagesWritten bool
}

func newSummarizer(backend backends.Backend, modelCtx *context.Context, batcher *dataset.Batcher,
	writer *summary.Writer, imageSize int) (*summarizer, error) {
	s := &summarizer{batcher: batcher, writer: writer, imageSize: imageSize}
	var err error
	s.exec, err = context.NewExec(backend, modelCtx, func(ctx *context.Context, images, labels *Node) []*Node {
		taps := &model.Taps{}
		logits := model.Logits(ctx, images, taps)
		accuracy := metrics.SparseCategoricalAccuracyGraph(ctx, []*Node{labels}, []*Node{logits})
		loss := ReduceAllMean(losses.SparseCategoricalCrossEntropyLogits([]*Node{labels}, []*Node{logits}))
		outputs := []*Node{accuracy, loss}
		for _, node := range taps.Nodes {
			outputs = append(outputs, summary.HistogramStats(node))
		}
		s.tapNames = taps.Names
		return outputs
	})
	if err != nil {
		return nil, errors.WithMessage(err, "failed to create summaries executor")
	}
	return s, nil
}

// run writes the summaries of the next batch at the given global step and returns its accuracy.
func (s *summarizer) run(globalStep int) (accuracy float64, err error) {
	images, labels, err := s.batcher.Peek()
	if err != nil {
		return 0, err
	}
	outputs, _, err := s.exec.ExecWithGraph(images, labels)
	if err != nil {
		return 0, errors.WithMessagef(err, "failed to evaluate summaries at step %d", globalStep)
	}
	defer func() {
		for _, t := range outputs {
			_ = t.FinalizeAll()
		}
	}()
	accuracy = shapes.ConvertTo[float64](outputs[0].Value())
	loss := shapes.ConvertTo[float64](outputs[1].Value())
	s.writer.Scalar(globalStep, "Accuracy", "acc", "accuracy", accuracy)
	s.writer.Scalar(globalStep, "Loss", "loss", "loss", loss)
	for ii, name := range s.tapNames {
		if err = s.writer.Histogram(globalStep, name, tensors.MustCopyFlatData[float32](outputs[2+ii])); err != nil {
			return 0, err
		}
	}
	if !s.imagesWritten {
		if _, err = s.writer.Images(images, s.imageSize); err != nil {
			return 0, err
		}
		s.imagesWritten = true
	}
	return accuracy, nil
}
