// Copyright 2026 The cacti Authors. SPDX-License-Identifier: Apache-2.0

package dataset

import (
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/pkg/errors"
)

// Column names of the index file.
const (
	FileCol  = "file"
	LabelCol = "label"
)

// IndexFieldTypes are read as strings: labels may be given by name or by number.
var IndexFieldTypes = map[string]series.Type{
	FileCol:  series.String,
	LabelCol: series.String,
}

// Example is one labeled image file, before loading.
type Example struct {
	File  string
	Label Class
}

// ReadIndex reads a CSV index with the header "file,label". Relative file paths are
// resolved against baseDir.
func ReadIndex(path, baseDir string) ([]Example, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open index file %q", path)
	}
	defer func() { _ = f.Close() }()

	df := dataframe.ReadCSV(f, dataframe.HasHeader(true), dataframe.WithTypes(IndexFieldTypes))
	if df.Err != nil {
		return nil, errors.Wrapf(df.Err, "failed to parse index file %q", path)
	}
	names := df.Names()
	for _, col := range []string{FileCol, LabelCol} {
		if !slices.Contains(names, col) {
			return nil, errors.Errorf("index file %q has no %q column (columns: %q)", path, col, names)
		}
	}

	files := df.Col(FileCol).Records()
	labels := df.Col(LabelCol).Records()
	examples := make([]Example, 0, len(files))
	for ii, file := range files {
		file = strings.TrimSpace(file)
		if file == "" {
			continue
		}
		label, err := ParseClass(labels[ii])
		if err != nil {
			return nil, errors.WithMessagef(err, "index file %q, row %d", path, ii+1)
		}
		if !filepath.IsAbs(file) && baseDir != "" {
			file = filepath.Join(baseDir, file)
		}
		examples = append(examples, Example{File: file, Label: label})
	}
	if len(examples) == 0 {
		return nil, errors.Errorf("index file %q has no examples", path)
	}
	return examples, nil
}

// DiscoverExamples scans one sub-directory per class under dir (matched case-insensitively
// against the class names) and labels its images accordingly.
// Other sub-directories, like "test", are ignored.
func DiscoverExamples(dir string) ([]Example, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read data directory %q", dir)
	}
	var examples []Example
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		label, found := classFromDirName(entry.Name())
		if !found {
			continue
		}
		files, err := ListImages(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		for _, file := range files {
			examples = append(examples, Example{File: file, Label: label})
		}
	}
	if len(examples) == 0 {
		return nil, errors.Errorf("no images found in the class sub-directories (%q) of %q", classNames, dir)
	}
	slices.SortFunc(examples, func(a, b Example) int { return strings.Compare(a.File, b.File) })
	return examples, nil
}

func classFromDirName(name string) (Class, bool) {
	for ii := range NumClasses {
		if strings.EqualFold(name, classNames[ii]) {
			return Class(ii), true
		}
	}
	return 0, false
}
