// Copyright 2026 The cacti Authors. SPDX-License-Identifier: Apache-2.0

// Package tables renders the terminal tables printed by the cacti programs.
package tables

import (
	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
)

var (
	headerRowStyle = lipgloss.NewStyle().Reverse(true).
			Padding(0, 2, 0, 2).Align(lipgloss.Center)
	oddRowStyle = lipgloss.NewStyle().Faint(false).
			PaddingLeft(1).PaddingRight(1)
	evenRowStyle = lipgloss.NewStyle().Faint(true).
			PaddingLeft(1).PaddingRight(1)
	highlightRowStyle = lipgloss.NewStyle().
				Foreground(lipgloss.AdaptiveColor{Light: "9", Dark: "9"}).
				Bold(true).
				PaddingLeft(1).PaddingRight(1)

	// TitleStyle is used for the titles printed above tables.
	TitleStyle = lipgloss.NewStyle().Bold(true).Padding(1, 4, 1, 4)
)

// Table wraps a lipgloss table and keeps track of the highlighted rows.
type Table struct {
	*lgtable.Table

	count       int
	highlighted map[int]bool
}

// New creates a Table. The column alignments are given in order, and the last one is
// used for any remaining columns. The default is lipgloss.Left.
func New(alignments ...lipgloss.Position) *Table {
	t := &Table{highlighted: make(map[int]bool)}
	t.Table = lgtable.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))).
		StyleFunc(func(row, col int) (s lipgloss.Style) {
			if row < 0 {
				return headerRowStyle
			}
			switch {
			case t.highlighted[row]:
				s = highlightRowStyle
			case row%2 == 0:
				s = oddRowStyle
			default:
				s = evenRowStyle
			}
			alignment := lipgloss.Left
			if col < len(alignments) {
				alignment = alignments[col]
			} else if len(alignments) > 0 {
				alignment = alignments[len(alignments)-1]
			}
			return s.Align(alignment)
		})
	return t
}

// Row appends a row, highlighted in red if highlight is true.
func (t *Table) Row(highlight bool, cells ...string) {
	if highlight {
		t.highlighted[t.count] = true
	}
	t.Table.Row(cells...)
	t.count++
}

// Len returns the number of rows added.
func (t *Table) Len() int { return t.count }
