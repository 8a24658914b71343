// Package ui renders command output: tables, status lines and errors.
// Colors are disabled when NoColor is set or the output is not a terminal.
package ui

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/fatih/color"
)

// Table writes rows aligned under a header
type Table struct {
	w       io.Writer
	headers []string
	rows    [][]string
	noColor bool
}

// NewTable creates a table with the given headers
func NewTable(w io.Writer, noColor bool, headers ...string) *Table {
	return &Table{w: w, headers: headers, noColor: noColor}
}

// AddRow appends a row. Cells beyond the header count are dropped.
func (t *Table) AddRow(cells ...string) {
	if len(cells) > len(t.headers) {
		cells = cells[:len(t.headers)]
	}
	t.rows = append(t.rows, cells)
}

// Len returns the number of rows
func (t *Table) Len() int { return len(t.rows) }

// Render writes the table
func (t *Table) Render() {
	if len(t.headers) == 0 {
		return
	}

	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = utf8.RuneCountInString(h)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			widths[i] = max(widths[i], utf8.RuneCountInString(cell))
		}
	}

	head := t.color(color.Bold, color.FgCyan)
	rule := t.color(color.FgHiBlack)

	for i, h := range t.headers {
		head.Fprint(t.w, pad(h, widths[i], i == len(t.headers)-1))
	}
	fmt.Fprintln(t.w)
	for i, width := range widths {
		rule.Fprint(t.w, pad(strings.Repeat("─", width), width, i == len(widths)-1))
	}
	fmt.Fprintln(t.w)
	for _, row := range t.rows {
		for i, cell := range row {
			fmt.Fprint(t.w, pad(cell, widths[i], i == len(row)-1))
		}
		fmt.Fprintln(t.w)
	}
}

func (t *Table) color(attrs ...color.Attribute) *color.Color {
	c := color.New(attrs...)
	if t.noColor {
		c.DisableColor()
	}
	return c
}

// pad right-pads s to width and separates columns with two spaces
func pad(s string, width int, last bool) string {
	if last {
		return s
	}
	if n := utf8.RuneCountInString(s); n < width {
		s += strings.Repeat(" ", width-n)
	}
	return s + "  "
}
