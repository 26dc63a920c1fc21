// Package output renders command results.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/goccy/go-yaml"
	"github.com/vmihailenco/msgpack/v5"
)

// Format represents the output format type
type Format string

const (
	// FormatYAML outputs as YAML
	FormatYAML Format = "yaml"
	// FormatJSON outputs as JSON
	FormatJSON Format = "json"
	// FormatMsgpack outputs binary MessagePack
	FormatMsgpack Format = "msgpack"
	// FormatTable outputs a formatted table (Tabler values only)
	FormatTable Format = "table"
)

// Tabler is implemented by results that can render themselves as tables.
type Tabler interface {
	Tables() []Table
}

// Table is a titled grid of cells.
type Table struct {
	Title   string
	Headers []string
	Rows    [][]string
}

// Options configures output behavior
type Options struct {
	Format Format

	// File is the output file path (empty for stdout)
	File string

	// Writer overrides File
	Writer io.Writer
}

var (
	primary = lipgloss.Color("#00ff9f")
	dim     = lipgloss.Color("#6e7681")

	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(primary).Padding(0, 1)
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(primary)
	ruleStyle   = lipgloss.NewStyle().Foreground(dim)
)

// Write renders result to the configured destination.
func Write(result any, opts Options) error {
	var w io.Writer = os.Stdout

	if opts.Writer != nil {
		w = opts.Writer
	} else if opts.File != "" {
		f, err := os.Create(opts.File)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	switch opts.Format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	case FormatYAML, "":
		data, err := yaml.Marshal(result)
		if err != nil {
			return fmt.Errorf("failed to format output: %w", err)
		}
		_, err = w.Write(data)
		return err
	case FormatMsgpack:
		data, err := msgpack.Marshal(result)
		if err != nil {
			return fmt.Errorf("failed to encode msgpack: %w", err)
		}
		_, err = w.Write(data)
		return err
	case FormatTable:
		t, ok := result.(Tabler)
		if !ok {
			return fmt.Errorf("%T cannot be rendered as a table", result)
		}
		for i, table := range t.Tables() {
			if i > 0 {
				fmt.Fprintln(w)
			}
			if _, err := io.WriteString(w, Render(table)); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unsupported output format: %s", opts.Format)
	}
}

// Render draws a table with left-aligned, width-padded columns.
func Render(t Table) string {
	widths := make([]int, len(t.Headers))
	for i, h := range t.Headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range t.Rows {
		for i, cell := range row {
			if i < len(widths) {
				widths[i] = max(widths[i], lipgloss.Width(cell))
			}
		}
	}

	var b strings.Builder
	if t.Title != "" {
		b.WriteString(titleStyle.Render(t.Title))
		b.WriteByte('\n')
	}

	total := 0
	for i, h := range t.Headers {
		if i > 0 {
			b.WriteString("  ")
			total += 2
		}
		b.WriteString(headerStyle.Render(pad(h, widths[i])))
		total += widths[i]
	}
	b.WriteByte('\n')
	b.WriteString(ruleStyle.Render(strings.Repeat("─", total)))
	b.WriteByte('\n')

	for _, row := range t.Rows {
		for i := range widths {
			if i > 0 {
				b.WriteString("  ")
			}
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			b.WriteString(pad(cell, widths[i]))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func pad(s string, width int) string {
	return s + strings.Repeat(" ", max(0, width-lipgloss.Width(s)))
}

// Bar draws a proportional bar for a value in [0, 1].
func Bar(value float64, width int) string {
	n := int(value*float64(width) + 0.5)
	n = max(0, min(width, n))
	return strings.Repeat("█", n) + strings.Repeat("·", width-n)
}
