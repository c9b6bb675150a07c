// Copyright 2026 The cacti Authors. SPDX-License-Identifier: Apache-2.0

// cacti_classify classifies graph images with a model trained by cacti.
//
// Example:
//
//	$ cacti_classify -checkpoint ./pm_graph_variables5.ckpt ~/data/graphs/test
//
// Arguments can be image files or directories, in which case all images directly under
// them are classified.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/aigraph/cacti/pkg/classifier"
	"github.com/aigraph/cacti/pkg/dataset"
	"github.com/aigraph/cacti/pkg/model"
	"github.com/aigraph/cacti/pkg/trainer"
	"github.com/gomlx/exceptions"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

var (
	flagCheckpoint = flag.String("checkpoint", trainer.DefaultSavePath(model.DefaultVariant),
		"Checkpoint directory with the trained model.")
	flagCSV    = flag.String("csv", "", "If set, the predictions are also written as CSV to this file.")
	flagLogits = flag.Bool("logits", false, "Also print the logits of every image.")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	if flag.NArg() == 0 {
		klog.Errorf("Missing images or directories to classify. See 'cacti_classify -help'.")
		os.Exit(1)
	}
	files, err := expandArgs(flag.Args())
	if err != nil {
		klog.Fatalf("%+v", err)
	}

	err = exceptions.TryCatch[error](func() {
		// Inference runs on CPU, unless GOMLX_BACKEND is set.
		backend := must.M1(trainer.NewBackend(""))
		defer backend.Finalize()
		c := must.M1(classifier.New(backend, *flagCheckpoint))
		predictions := must.M1(c.ClassifyFiles(files, len(files) > 100))
		classifier.PrintTable(os.Stdout, "Final verification result", predictions)
		if *flagLogits {
			classifier.PrintLogits(os.Stdout, "Logits", predictions)
		}
		if *flagCSV != "" {
			must.M(classifier.WriteCSV(*flagCSV, predictions))
			fmt.Printf("Predictions written to %q\n", *flagCSV)
		}
	})
	if err != nil {
		klog.Fatalf("Failed with error: %+v", err)
	}
}

// expandArgs replaces directories by the images directly under them.
func expandArgs(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, errors.Wrapf(err, "cannot classify %q", arg)
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}
		images, err := dataset.ListImages(arg)
		if err != nil {
			return nil, err
		}
		if len(images) == 0 {
			klog.Warningf("no images found in %q", arg)
		}
		files = append(files, images...)
	}
	if len(files) == 0 {
		return nil, errors.Errorf("no images to classify in %q", args)
	}
	return files, nil
}
