// Copyright 2026 The cacti Authors. SPDX-License-Identifier: Apache-2.0

package trainer

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aigraph/cacti/pkg/model"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/context/checkpoints"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// BackupSuffix is appended to an existing checkpoint directory before it is replaced.
const BackupSuffix = "~"

// DefaultSavePath returns the checkpoint directory where the variables of the model variant are saved.
func DefaultSavePath(variant string) string {
	return fmt.Sprintf("./pm_graph_variables%s.ckpt", variant)
}

// Confirm asks question on out and reads the answer from in. Only "y" or "Y" are taken as yes,
// anything else, including the end of the input, is a no.
// If assumeYes, the question is printed with the answer and nothing is read.
func Confirm(in io.Reader, out io.Writer, question string, assumeYes bool) (bool, error) {
	if assumeYes {
		_, _ = fmt.Fprintf(out, "%s (y/N) y\n", question)
		return true, nil
	}
	_, _ = fmt.Fprintf(out, "%s (y/N) ", question)
	answer, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, errors.Wrap(err, "failed to read answer")
	}
	answer = strings.TrimSpace(answer)
	return answer == "y" || answer == "Y", nil
}

// RestoreCheckpoint loads the hyperparameters from the checkpoint in dir into ctx, and sets
// ctx to load the variables from it as they are created.
// The values of paramsSet in ctx take precedence over the ones in the checkpoint.
func RestoreCheckpoint(ctx *context.Context, dir string, paramsSet []string) (*checkpoints.Handler, error) {
	userValues := make(map[string]any, len(paramsSet))
	for _, key := range paramsSet {
		if value, found := ctx.GetParam(key); found {
			userValues[key] = value
		}
	}
	handler, err := checkpoints.Load(ctx).
		Dir(dir).
		Keep(context.GetParamOr(ctx, ParamNumCheckpoints, 1)).
		ExcludeParams(ParamsExcludedFromSaving...).
		Done()
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to restore variables from %q", dir)
	}
	for key, value := range userValues {
		ctx.SetParam(key, value)
	}
	return handler, nil
}

// CheckpointVariant returns the model variant saved with the checkpoint in dir.
func CheckpointVariant(dir string) (string, error) {
	ctx := context.New()
	if _, err := checkpoints.Load(ctx).Dir(dir).Done(); err != nil {
		return "", errors.WithMessagef(err, "failed to read checkpoint %q", dir)
	}
	return context.GetParamOr(ctx, model.ParamModel, model.DefaultVariant), nil
}

// SaveCheckpoint saves the variables and hyperparameters of ctx in dir.
//
// If restored was loaded from dir, a new checkpoint is added to it. Otherwise an existing dir
// is first renamed with the BackupSuffix, replacing any previous backup.
func SaveCheckpoint(ctx *context.Context, dir string, restored *checkpoints.Handler) (*checkpoints.Handler, error) {
	if restored != nil && sameDir(restored.Dir(), dir) {
		if err := restored.Save(); err != nil {
			return nil, errors.WithMessagef(err, "failed to save checkpoint to %q", dir)
		}
		return restored, nil
	}
	if _, err := os.Stat(dir); err == nil {
		backup := filepath.Clean(dir) + BackupSuffix
		if err := os.RemoveAll(backup); err != nil {
			return nil, errors.Wrapf(err, "failed to remove previous backup %q", backup)
		}
		if err := os.Rename(dir, backup); err != nil {
			return nil, errors.Wrapf(err, "failed to move existing checkpoint %q to %q", dir, backup)
		}
		klog.Infof("existing checkpoint %q moved to %q", dir, backup)
	}
	handler, err := checkpoints.Build(ctx).
		Dir(dir).
		Keep(context.GetParamOr(ctx, ParamNumCheckpoints, 1)).
		ExcludeParams(ParamsExcludedFromSaving...).
		Done()
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to create checkpoint %q", dir)
	}
	if err = handler.Save(); err != nil {
		return nil, errors.WithMessagef(err, "failed to save checkpoint to %q", dir)
	}
	return handler, nil
}

func sameDir(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}
