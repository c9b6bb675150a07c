// Copyright 2026 The cacti Authors. SPDX-License-Identifier: Apache-2.0

// cacti trains the classifier of graph images ("Normal", "Outage" or "Plateau").
//
// Example:
//
//	$ cacti -d ~/data/graphs -n 5 -set "batch_size=32;learning_rate=1e-4"
//
// The data directory must have one sub-directory of images per class, and optionally a
// "test" sub-directory with images classified after training. Alternatively, the labeled
// images can be listed in a CSV index file, given with -t.
//
// Flag -vlog sets the logging verbosity, since -v is used to restore a checkpoint.
package main

import (
	"flag"
	"fmt"
	"os"
	"slices"

	"github.com/aigraph/cacti/pkg/model"
	"github.com/aigraph/cacti/pkg/trainer"
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/ui/commandline"
	"github.com/janpfeifer/must"
	"k8s.io/klog/v2"
)

var (
	flagRestore     = flag.String("v", "", "Checkpoint directory to restore the variables from, before training.")
	flagIndex       = flag.String("t", "", "CSV index file with the header \"file,label\" listing the training images. If empty, the class sub-directories of -d are used.")
	flagDataDir     = flag.String("d", "", "Data directory, with one sub-directory of images per class and a \"test\" sub-directory. Required.")
	flagVariant     = flag.String("n", model.DefaultVariant, fmt.Sprintf("Model variant, one of %q. If not given when restoring with -v, the checkpoint's variant is used.", model.VariantNames()))
	flagSteps       = flag.Int("steps", 0, "Number of training steps. If 0, the value of the \"train_steps\" parameter is used, and if that is also 0, one epoch is trained.")
	flagYes         = flag.Bool("yes", false, "Save the trained variables without asking.")
	flagSave        = flag.String("save", "", "Checkpoint directory where to save the trained variables. Defaults to ./pm_graph_variables<n>.ckpt.")
	flagSummaries   = flag.String("summaries", "", "Directory where to write the summaries. If empty, a temporary directory is created.")
	flagPredictions = flag.String("predictions", "", "If set, the predictions on the test images are also written as CSV to this file.")
	flagVerbose     = flag.Bool("verbose", true, "Display progress bars and extra information.")
)

// initKlogFlags registers klog flags, with its "-v" renamed to "-vlog".
func initKlogFlags() {
	klogFlags := flag.NewFlagSet("klog", flag.ExitOnError)
	klog.InitFlags(klogFlags)
	klogFlags.VisitAll(func(f *flag.Flag) {
		name := f.Name
		if name == "v" {
			name = "vlog"
		}
		flag.CommandLine.Var(f.Value, name, f.Usage)
	})
}

// resolveVariant sets the model variant in ctx and returns it, along with the updated list of
// parameters set by the user. The variant comes from -n if given, then from the "model"
// setting of -set, then from the checkpoint being restored, and finally the default.
func resolveVariant(ctx *context.Context, paramsSet []string, variantFlag string, variantGiven bool, restoreDir string) ([]string, string, error) {
	switch {
	case variantGiven:
		ctx.SetParam(model.ParamModel, variantFlag)
		if !slices.Contains(paramsSet, model.ParamModel) {
			paramsSet = append(paramsSet, model.ParamModel)
		}
	case slices.Contains(paramsSet, model.ParamModel):
	case restoreDir != "":
		variant, err := trainer.CheckpointVariant(restoreDir)
		if err != nil {
			return nil, "", err
		}
		ctx.SetParam(model.ParamModel, variant)
	}
	variant := context.GetParamOr(ctx, model.ParamModel, model.DefaultVariant)
	return paramsSet, variant, model.CheckVariant(variant)
}

func main() {
	ctx := trainer.CreateDefaultContext()
	settings := commandline.CreateContextSettingsFlag(ctx, "")
	initKlogFlags()
	flag.Parse()
	if *flagDataDir == "" {
		klog.Errorf("Missing data directory, set with -d. See 'cacti -help'.")
		os.Exit(1)
	}
	variantGiven := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "n" {
			variantGiven = true
		}
	})

	paramsSet := must.M1(commandline.ParseContextSettings(ctx, *settings))
	paramsSet, variant, err := resolveVariant(ctx, paramsSet, *flagVariant, variantGiven, *flagRestore)
	if err != nil {
		klog.Fatalf("Invalid model variant: %+v", err)
	}
	if *flagSteps > 0 {
		ctx.SetParam(trainer.ParamTrainSteps, *flagSteps)
	}
	if klog.V(1).Enabled() {
		fmt.Println(commandline.SprintContextSettings(ctx))
	}

	cfg := trainer.Config{
		DataDir:         *flagDataDir,
		IndexFile:       *flagIndex,
		RestoreDir:      *flagRestore,
		SummaryDir:      *flagSummaries,
		PredictionsFile: *flagPredictions,
		SavePath:        *flagSave,
		AssumeYes:       *flagYes,
		ParamsSet:       paramsSet,
		Verbose:         *flagVerbose,
	}
	trainer.LogHostMemory()
	err = exceptions.TryCatch[error](func() {
		backend := must.M1(trainer.NewBackend(variant))
		defer backend.Finalize()
		_ = must.M1(trainer.Train(backend, ctx, cfg))
	})
	if err != nil {
		klog.Fatalf("Failed with error: %+v", err)
	}
}
