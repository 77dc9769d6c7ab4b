// Package output renders command results as bordered tables, YAML or JSON.
package output

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"gopkg.in/yaml.v3"

	"github.com/Sergeydigl3/dfwctl/internal/dfw"
)

// Output formats.
const (
	FormatTable = "table"
	FormatYAML  = "yaml"
	FormatJSON  = "json"
)

// View is one command result.
type View struct {
	// Message is a status line printed above the tables, e.g. for a no-op.
	Message string

	// Tables are rendered by the table format.
	Tables []dfw.Table

	// Data is the structured result rendered by the yaml and json formats.
	Data interface{}
}

// Renderer writes a View in one output format.
type Renderer interface {
	Render(w io.Writer, v View) error
}

// NewRenderer creates a renderer for the format.
func NewRenderer(format string) (Renderer, error) {
	switch format {
	case "", FormatTable:
		return tableRenderer{}, nil
	case FormatYAML:
		return yamlRenderer{}, nil
	case FormatJSON:
		return jsonRenderer{}, nil
	default:
		return nil, fmt.Errorf("unknown output format: %s (must be one of: table, yaml, json)", format)
	}
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	cellStyle  = lipgloss.NewStyle().Padding(0, 1)
	headStyle  = cellStyle.Bold(true)
)

type tableRenderer struct{}

func (tableRenderer) Render(w io.Writer, v View) error {
	if v.Message != "" {
		if _, err := fmt.Fprintln(w, v.Message); err != nil {
			return err
		}
	}

	for i, t := range v.Tables {
		if i > 0 || v.Message != "" {
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
		}
		if t.Title != "" {
			if _, err := fmt.Fprintln(w, titleStyle.Render(t.Title)); err != nil {
				return err
			}
		}

		tbl := table.New().
			Border(lipgloss.NormalBorder()).
			StyleFunc(func(row, _ int) lipgloss.Style {
				if row == table.HeaderRow {
					return headStyle
				}
				return cellStyle
			}).
			Headers(t.Headers...).
			Rows(t.Rows...)

		if _, err := fmt.Fprintln(w, tbl.String()); err != nil {
			return err
		}
	}
	return nil
}

// payload falls back to the message when a view has no structured data.
func payload(v View) interface{} {
	if v.Data != nil {
		return v.Data
	}
	return map[string]string{"message": v.Message}
}

type yamlRenderer struct{}

func (yamlRenderer) Render(w io.Writer, v View) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(payload(v)); err != nil {
		return fmt.Errorf("failed to encode yaml: %w", err)
	}
	return enc.Close()
}

type jsonRenderer struct{}

func (jsonRenderer) Render(w io.Writer, v View) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(payload(v)); err != nil {
		return fmt.Errorf("failed to encode json: %w", err)
	}
	return nil
}
