// Copyright 2026 The cacti Authors. SPDX-License-Identifier: Apache-2.0

package dataset

import (
	"context"
	"image"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gomlx/gomlx/pkg/support/sets"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"
)

// ImageExtensions accepted when scanning directories for images.
var ImageExtensions = sets.MakeWith(".png", ".jpg", ".jpeg", ".gif", ".bmp", ".tif", ".tiff")

// IsImageFile reports whether the file name has one of the ImageExtensions and is not hidden.
func IsImageFile(name string) bool {
	base := filepath.Base(name)
	if strings.HasPrefix(base, ".") {
		return false
	}
	return ImageExtensions.Has(strings.ToLower(filepath.Ext(base)))
}

// ListImages returns the image files directly under dir, sorted by name.
func ListImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list images in %q", dir)
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !IsImageFile(entry.Name()) {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	slices.Sort(files)
	return files, nil
}

// ImageToFlat converts img to grayscale, resizes it to size x size if needed and returns the
// pixels in row-major order, scaled to [0, 1].
func ImageToFlat(img image.Image, size int) []float32 {
	gray := imaging.Grayscale(img)
	if bounds := gray.Bounds(); bounds.Dx() != size || bounds.Dy() != size {
		gray = imaging.Resize(gray, size, size, imaging.Lanczos)
	}
	flat := make([]float32, size*size)
	for y := range size {
		row := gray.Pix[y*gray.Stride:]
		for x := range size {
			// After Grayscale R == G == B, so the red channel is enough.
			flat[y*size+x] = float32(row[x*4]) / 255.0
		}
	}
	return flat
}

// LoadImage reads and decodes the image file and converts it with ImageToFlat.
func LoadImage(path string, size int) ([]float32, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load image %q", path)
	}
	return ImageToFlat(img, size), nil
}

// LoadImages loads all files in parallel. The returned slice is in the same order as files.
// The first error interrupts the loading and is returned.
//
// If verbose, a progress bar is displayed.
func LoadImages(files []string, size int, verbose bool) ([][]float32, error) {
	flats := make([][]float32, len(files))
	var pBar *progressbar.ProgressBar
	if verbose && len(files) > 0 {
		pBar = progressbar.NewOptions(len(files),
			progressbar.OptionSetDescription("Loading"),
			progressbar.OptionUseANSICodes(true),
			progressbar.OptionEnableColorCodes(true),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("images"),
			progressbar.OptionSetTheme(progressbar.ThemeUnicode),
			progressbar.OptionThrottle(250*time.Millisecond),
			progressbar.OptionClearOnFinish(),
		)
	}

	eg, egCtx := errgroup.WithContext(context.Background())
	eg.SetLimit(runtime.NumCPU() + 1)
	for ii, path := range files {
		eg.Go(func() error {
			if egCtx.Err() != nil {
				return nil
			}
			flat, err := LoadImage(path, size)
			if err != nil {
				return err
			}
			flats[ii] = flat
			if pBar != nil {
				_ = pBar.Add(1)
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	if pBar != nil {
		_ = pBar.Finish()
	}
	return flats, nil
}
