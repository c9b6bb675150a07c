// Copyright 2026 The cacti Authors. SPDX-License-Identifier: Apache-2.0

// Package datasettest generates small synthetic data directories for tests.
//
// Each class gets a distinct, easy to learn pattern: "Normal" images are a flat mid-gray,
// "Outage" images have their right half black and "Plateau" images have a bright
// horizontal band.
package datasettest

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
)

// ClassDirs are the sub-directory names used for each class, in label order.
var ClassDirs = []string{"Normal", "Outage", "Plateau"}

// PatternImage creates a size x size image with the pattern of the class with the given label.
func PatternImage(label, size int) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	for y := range size {
		for x := range size {
			v := uint8(128)
			switch label {
			case 1:
				if x >= size/2 {
					v = 0
				}
			case 2:
				if y >= size/3 && y < 2*size/3 {
					v = 255
				}
			}
			img.Set(x, y, color.NRGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return img
}

// WriteImage saves img as a PNG file in path, creating the directory if needed.
func WriteImage(t testing.TB, path string, img image.Image) {
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, imaging.Save(img, path))
}

// CreateDataDir creates a data directory under t.TempDir() with perClass images in each
// class sub-directory and numTest images in the "test" sub-directory. Images are
// size x size PNG files.
func CreateDataDir(t testing.TB, perClass, numTest, size int) string {
	dir := t.TempDir()
	for label, classDir := range ClassDirs {
		for ii := range perClass {
			WriteImage(t, filepath.Join(dir, classDir, fmt.Sprintf("%s_%03d.png", classDir, ii)), PatternImage(label, size))
		}
	}
	for ii := range numTest {
		WriteImage(t, filepath.Join(dir, "test", fmt.Sprintf("graph_%03d.png", ii)), PatternImage(ii%len(ClassDirs), size))
	}
	return dir
}
