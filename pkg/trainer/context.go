// Copyright 2026 The cacti Authors. SPDX-License-Identifier: Apache-2.0

package trainer

import (
	"github.com/aigraph/cacti/pkg/dataset"
	"github.com/aigraph/cacti/pkg/model"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/train/optimizers"
)

// Context parameters used by Train, besides the ones defined by the model package and the optimizers.
const (
	// ParamBatchSize is the number of examples per training step.
	ParamBatchSize = "batch_size"

	// ParamEvalBatchSize is the number of examples per evaluation step, used for validation and predictions.
	ParamEvalBatchSize = "eval_batch_size"

	// ParamValidationSize is the number of labeled examples held out for validation.
	ParamValidationSize = "validation_size"

	// ParamSummaryEvery is the number of training steps between summaries.
	ParamSummaryEvery = "summary_every"

	// ParamNumCheckpoints is the number of checkpoints kept when saving.
	ParamNumCheckpoints = "num_checkpoints"

	// ParamTrainSteps is the number of training steps. If 0, one epoch is trained.
	ParamTrainSteps = "train_steps"

	// ParamSeed seeds the data shuffling and the model's random number generator. If 0, a time-based seed is used.
	ParamSeed = "seed"
)

// ParamsExcludedFromSaving is the list of parameters (see CreateDefaultContext) that shouldn't be saved
// along with the checkpoints, and may be overwritten in further training sessions.
var ParamsExcludedFromSaving = []string{
	ParamTrainSteps, ParamNumCheckpoints, ParamSummaryEvery,
}

// CreateDefaultContext sets the context with default hyperparameters to use with Train.
func CreateDefaultContext() *context.Context {
	ctx := context.New()
	ctx.SetParams(map[string]any{
		// Model variant: "5" or "13".
		model.ParamModel:     model.DefaultVariant,
		model.ParamImageSize: dataset.DefaultImageSize,

		// Applied to the hidden layer, during training only.
		model.ParamDropoutRate: 0.5,

		ParamBatchSize:      50,
		ParamEvalBatchSize:  100,
		ParamValidationSize: dataset.DefaultValidationSize,
		ParamSummaryEvery:   5,
		ParamNumCheckpoints: 1,
		ParamTrainSteps:     0,
		ParamSeed:           0,

		optimizers.ParamOptimizer:    "adam",
		optimizers.ParamLearningRate: 1e-5,
		optimizers.ParamAdamEpsilon:  1e-8,
	})
	return ctx
}
