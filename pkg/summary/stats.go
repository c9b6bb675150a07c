// Copyright 2026 The cacti Authors. SPDX-License-Identifier: Apache-2.0

package summary

import (
	"github.com/gomlx/gomlx/pkg/core/dtypes"
	. "github.com/gomlx/gomlx/pkg/core/graph"
)

// StatNames are the statistics returned by HistogramStats, in order.
var StatNames = []string{"mean", "stddev", "min", "max"}

// HistogramStats summarizes the distribution of all the values of x. It returns a
// float32 vector shaped [4], with the values described in StatNames.
func HistogramStats(x *Node) *Node {
	x = ConvertDType(StopGradient(x), dtypes.Float32)
	mean := ReduceAllMean(x)
	variance := ReduceAllMean(Square(Sub(x, mean)))
	return Stack([]*Node{mean, Sqrt(variance), ReduceAllMin(x), ReduceAllMax(x)}, 0)
}
