// Copyright 2026 The cacti Authors. SPDX-License-Identifier: Apache-2.0

package model

import (
	. "github.com/gomlx/gomlx/pkg/core/graph"
)

// Conv2D convolves the NHWC images x with kernel w, shaped [height, width, inputChannels, outputChannels],
// with stride 1 and the output padded to the same spatial size as the input.
func Conv2D(x, w *Node) *Node {
	return Convolve(x, w).Strides(1).PadSame().Done()
}

// Conv2DNoPad1 is a stride 1 convolution without padding: the output shrinks by the kernel size minus 1.
func Conv2DNoPad1(x, w *Node) *Node {
	return Convolve(x, w).Strides(1).NoPadding().Done()
}

// Conv2DNoPad2 is a stride 2 convolution without padding.
func Conv2DNoPad2(x, w *Node) *Node {
	return Convolve(x, w).Strides(2).NoPadding().Done()
}

// Conv2DNoPad5 is a stride 5 convolution without padding.
func Conv2DNoPad5(x, w *Node) *Node {
	return Convolve(x, w).Strides(5).NoPadding().Done()
}

// MaxPool2x2 downsamples the NHWC images x by 2, taking the max of each 2x2 window.
// Odd sizes are padded, so the output size is ceil(size/2).
func MaxPool2x2(x *Node) *Node {
	return MaxPool(x).Window(2).Strides(2).PadSame().Done()
}
