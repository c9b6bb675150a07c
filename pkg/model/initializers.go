// Copyright 2026 The cacti Authors. SPDX-License-Identifier: Apache-2.0

package model

import (
	"github.com/gomlx/exceptions"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/shapes"
	"github.com/gomlx/gomlx/pkg/ml/context"
)

const (
	// WeightsStddev is the standard deviation of the truncated normal initialization of the weights.
	WeightsStddev = 0.1

	// BiasValue is the initial value of every bias.
	BiasValue = 0.1

	// TruncatedNormalRedraws is the number of times values out of the truncation range are redrawn.
	TruncatedNormalRedraws = 4
)

// TruncatedNormalFn returns an initializer that samples a normal distribution with mean 0 and the given
// standard deviation, truncated to 2 standard deviations.
//
// Values out of the range are redrawn up to TruncatedNormalRedraws times, and whatever is still
// out of the range after that is clipped. The graph stays static, and clipping affects
// about 0.046^5 of the values.
//
// It uses the context random number generator, so it can be seeded with Context.SetRNGStateFromSeed.
func TruncatedNormalFn(ctx *context.Context, stddev float64) context.VariableInitializer {
	return func(g *Graph, shape shapes.Shape) *Node {
		if !shape.DType.IsFloat() {
			exceptions.Panicf("cannot initialize non-float variable with TruncatedNormal, shape requested %s", shape)
		}
		limit := Scalar(g, shape.DType, 2.0)
		values := ctx.RandomNormal(g, shape)
		for range TruncatedNormalRedraws {
			outOfRange := GreaterThan(Abs(values), limit)
			values = Where(outOfRange, ctx.RandomNormal(g, shape), values)
		}
		return MulScalar(ClipScalar(values, -2, 2), stddev)
	}
}

// ConstantFn returns an initializer that sets every value to value.
func ConstantFn(value float64) context.VariableInitializer {
	return func(g *Graph, shape shapes.Shape) *Node {
		return FillScalar(g, shape, value)
	}
}
