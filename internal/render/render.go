// Package render formats command output. It supports a human-readable
// styled mode and a machine-readable JSON mode selected with --json.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Options controls renderer behavior.
type Options struct {
	// JSON switches all output to indented JSON.
	JSON bool

	// NoColor strips styling from human-readable output.
	NoColor bool
}

// Row is one label/value line in a detail block.
type Row struct {
	Label string
	Value string
}

// Renderer writes formatted output to a single destination.
type Renderer struct {
	w    io.Writer
	json bool

	titleStyle     lipgloss.Style
	headerStyle    lipgloss.Style
	labelStyle     lipgloss.Style
	changedStyle   lipgloss.Style
	unchangedStyle lipgloss.Style
}

// New creates a renderer writing to w.
func New(w io.Writer, opts Options) *Renderer {
	r := &Renderer{w: w, json: opts.JSON}
	if opts.NoColor {
		plain := lipgloss.NewStyle()
		r.titleStyle = plain
		r.headerStyle = plain
		r.labelStyle = plain
		r.changedStyle = plain
		r.unchangedStyle = plain
		return r
	}
	r.titleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true)
	r.headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	r.labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	r.changedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Bold(true)
	r.unchangedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	return r
}

// JSONMode reports whether the renderer emits JSON.
func (r *Renderer) JSONMode() bool {
	return r.json
}

// JSON writes v as indented JSON.
func (r *Renderer) JSON(v any) error {
	enc := json.NewEncoder(r.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Title writes a section title.
func (r *Renderer) Title(text string) {
	fmt.Fprintln(r.w, r.titleStyle.Render(text))
}

// Detail writes a label/value block, skipping rows with empty values.
func (r *Renderer) Detail(rows []Row) {
	width := 0
	for _, row := range rows {
		if row.Value != "" && len(row.Label) > width {
			width = len(row.Label)
		}
	}
	for _, row := range rows {
		if row.Value == "" {
			continue
		}
		label := fmt.Sprintf("%-*s", width, row.Label)
		fmt.Fprintf(r.w, "  %s  %s\n", r.labelStyle.Render(label), row.Value)
	}
}

// Table writes rows under a styled header, columns padded to fit.
func (r *Renderer) Table(headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	var header strings.Builder
	for i, h := range headers {
		header.WriteString(fmt.Sprintf("%-*s  ", widths[i], h))
	}
	fmt.Fprintln(r.w, r.headerStyle.Render(strings.TrimRight(header.String(), " ")))

	for _, row := range rows {
		var line strings.Builder
		for i, cell := range row {
			if i < len(widths) {
				line.WriteString(fmt.Sprintf("%-*s  ", widths[i], cell))
			}
		}
		fmt.Fprintln(r.w, strings.TrimRight(line.String(), " "))
	}
	if len(rows) == 0 {
		fmt.Fprintln(r.w, r.labelStyle.Render("(none)"))
	}
}

// Outcome writes a one-line change status for write commands.
func (r *Renderer) Outcome(changed bool, message string) {
	badge := r.unchangedStyle.Render("unchanged")
	if changed {
		badge = r.changedStyle.Render("changed")
	}
	fmt.Fprintf(r.w, "%s  %s\n", badge, message)
}
