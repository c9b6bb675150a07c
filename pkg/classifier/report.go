// Copyright 2026 The cacti Authors. SPDX-License-Identifier: Apache-2.0

package classifier

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aigraph/cacti/internal/tables"
	"github.com/aigraph/cacti/pkg/dataset"
	"github.com/charmbracelet/lipgloss"
	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/pkg/errors"
)

// Columns of the predictions CSV file.
const (
	FileCol  = "file"
	ClassCol = "class"

	// LogitColPrefix is followed by the class name, one column per class.
	LogitColPrefix = "logit_"
)

// PrintTable writes the predictions as a table with the file name, the class marker and the logits.
// Images not classified as Normal are highlighted.
func PrintTable(w io.Writer, title string, predictions []Prediction) {
	if title != "" {
		_, _ = fmt.Fprintln(w, tables.TitleStyle.Render(title))
	}
	table := tables.New(lipgloss.Left, lipgloss.Left, lipgloss.Right)
	headers := []string{"File", "Class"}
	for _, class := range dataset.Classes {
		headers = append(headers, class.String())
	}
	table.Headers(headers...)
	for _, p := range predictions {
		row := []string{filepath.Base(p.File), p.Class.Marker()}
		for _, logit := range p.Logits {
			row = append(row, fmt.Sprintf("%.4f", logit))
		}
		table.Row(p.Class != dataset.Normal, row...)
	}
	_, _ = fmt.Fprintln(w, table.Render())
}

// PrintClasses writes the title followed by the predicted class index of each image, in one line.
func PrintClasses(w io.Writer, title string, predictions []Prediction) {
	parts := make([]string, len(predictions))
	for ii, p := range predictions {
		parts[ii] = fmt.Sprintf("%d", p.Class)
	}
	_, _ = fmt.Fprintf(w, "%s [%s]\n", title, strings.Join(parts, " "))
}

// PrintLogits writes the logits of all predictions, one line per image.
func PrintLogits(w io.Writer, title string, predictions []Prediction) {
	_, _ = fmt.Fprintln(w, title)
	for _, p := range predictions {
		parts := make([]string, len(p.Logits))
		for ii, logit := range p.Logits {
			parts[ii] = fmt.Sprintf("%g", logit)
		}
		_, _ = fmt.Fprintf(w, "[%s]\n", strings.Join(parts, " "))
	}
}

// PredictionsDataFrame converts the predictions to a dataframe with the columns FileCol,
// ClassCol and one LogitColPrefix column per class.
func PredictionsDataFrame(predictions []Prediction) dataframe.DataFrame {
	files := make([]string, len(predictions))
	classes := make([]string, len(predictions))
	logits := make([][]float64, dataset.NumClasses)
	for classIdx := range logits {
		logits[classIdx] = make([]float64, len(predictions))
	}
	for ii, p := range predictions {
		files[ii] = p.File
		classes[ii] = p.Class.String()
		for classIdx, logit := range p.Logits {
			logits[classIdx][ii] = float64(logit)
		}
	}
	columns := []series.Series{
		series.New(files, series.String, FileCol),
		series.New(classes, series.String, ClassCol),
	}
	for _, class := range dataset.Classes {
		columns = append(columns, series.New(logits[class], series.Float, LogitColPrefix+class.String()))
	}
	return dataframe.New(columns...)
}

// WriteCSV writes the predictions to path, in the format of PredictionsDataFrame.
func WriteCSV(path string, predictions []Prediction) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create predictions file %q", path)
	}
	df := PredictionsDataFrame(predictions)
	if err = df.WriteCSV(f); err != nil {
		_ = f.Close()
		return errors.Wrapf(err, "failed to write predictions to %q", path)
	}
	return errors.Wrapf(f.Close(), "failed to close predictions file %q", path)
}
