// Copyright 2026 The cacti Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"flag"
	"path/filepath"
	"testing"

	"github.com/aigraph/cacti/pkg/model"
	"github.com/aigraph/cacti/pkg/trainer"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/klog/v2"
)

func TestInitKlogFlags(t *testing.T) {
	initKlogFlags()
	// The restore flag keeps its name, klog's verbosity is renamed.
	restore := flag.Lookup("v")
	require.NotNil(t, restore)
	assert.Equal(t, "", restore.DefValue)
	require.NotNil(t, flag.Lookup("vlog"))
	require.NotNil(t, flag.Lookup("logtostderr"))

	require.NoError(t, flag.Set("vlog", "2"))
	assert.True(t, klog.V(2).Enabled())
	require.NoError(t, flag.Set("vlog", "0"))
	assert.False(t, klog.V(1).Enabled())
}

func TestResolveVariant(t *testing.T) {
	// Default.
	ctx := trainer.CreateDefaultContext()
	paramsSet, variant, err := resolveVariant(ctx, nil, "5", false, "")
	require.NoError(t, err)
	assert.Equal(t, "5", variant)
	assert.Empty(t, paramsSet)

	// -n takes precedence over everything, and the checkpoint is not read.
	ctx = trainer.CreateDefaultContext()
	missing := filepath.Join(t.TempDir(), "missing")
	paramsSet, variant, err = resolveVariant(ctx, []string{"batch_size"}, "13", true, missing)
	require.NoError(t, err)
	assert.Equal(t, "13", variant)
	assert.Equal(t, []string{"batch_size", model.ParamModel}, paramsSet)
	assert.Equal(t, "13", context.GetParamOr(ctx, model.ParamModel, ""))

	// Set with -set "model=13".
	ctx = trainer.CreateDefaultContext()
	ctx.SetParam(model.ParamModel, "13")
	paramsSet, variant, err = resolveVariant(ctx, []string{model.ParamModel}, "5", false, missing)
	require.NoError(t, err)
	assert.Equal(t, "13", variant)
	assert.Equal(t, []string{model.ParamModel}, paramsSet)

	// Otherwise the checkpoint decides: it must exist.
	ctx = trainer.CreateDefaultContext()
	_, _, err = resolveVariant(ctx, nil, "5", false, missing)
	require.Error(t, err)

	// Unknown variant.
	ctx = trainer.CreateDefaultContext()
	_, _, err = resolveVariant(ctx, nil, "7", true, "")
	require.ErrorContains(t, err, "unknown model variant")
}
