package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// Problem describes a failure shown to the user
type Problem struct {
	// Context is a short upper-cased label such as "CONFIG"
	Context     string
	Message     string
	Suggestions []string
	Help        []string
}

// FormatProblem renders p as
//
//	✗ CONFIG: prefix must start with '/'
//
//	   Did you mean: serve, routes?
//
//	   → waypoint --help
func FormatProblem(p Problem, noColor bool) string {
	red := newColor(noColor, color.FgRed, color.Bold)
	yellow := newColor(noColor, color.FgYellow)
	cyan := newColor(noColor, color.FgCyan)

	var b strings.Builder
	if p.Context != "" {
		red.Fprintf(&b, "✗ %s: %s\n", strings.ToUpper(p.Context), p.Message)
	} else {
		red.Fprintf(&b, "✗ %s\n", p.Message)
	}
	if len(p.Suggestions) > 0 {
		b.WriteString("\n")
		yellow.Fprintf(&b, "   Did you mean: %s?\n", strings.Join(p.Suggestions, ", "))
	}
	if len(p.Help) > 0 {
		b.WriteString("\n")
		for _, h := range p.Help {
			cyan.Fprintf(&b, "   → %s\n", h)
		}
	}
	return b.String()
}

// WriteProblem writes the formatted problem to w
func WriteProblem(w io.Writer, p Problem, noColor bool) {
	fmt.Fprint(w, FormatProblem(p, noColor))
}

// WriteSuccess writes a green check line
func WriteSuccess(w io.Writer, message string, noColor bool) {
	newColor(noColor, color.FgGreen, color.Bold).Fprintf(w, "✓ %s\n", message)
}

// WriteField writes a "key: value" line with a highlighted key
func WriteField(w io.Writer, key, value string, noColor bool) {
	newColor(noColor, color.FgCyan, color.Bold).Fprintf(w, "%s: ", key)
	fmt.Fprintln(w, value)
}

func newColor(noColor bool, attrs ...color.Attribute) *color.Color {
	c := color.New(attrs...)
	if noColor {
		c.DisableColor()
	}
	return c
}
