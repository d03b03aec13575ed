// Package render formats fixture reports and trigger results for the
// terminal or as JSON/YAML for automation.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/goblinsan/jira-util/pkg/engine"
	"gopkg.in/yaml.v3"
)

// Format selects the output encoding.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat validates an --output value.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported output format %q (want text, json or yaml)", s)
	}
}

// Printer writes results to w in a fixed format.
type Printer struct {
	w        io.Writer
	format   Format
	terminal *Terminal
}

// NewPrinter creates a printer. The terminal theme is chosen from w.
func NewPrinter(w io.Writer, format Format) *Printer {
	return &Printer{
		w:        w,
		format:   format,
		terminal: NewTerminal(ThemeFor(w), WidthFor(w)),
	}
}

// Report prints a reset or assert report.
func (p *Printer) Report(r *engine.Report) error {
	if p.format == FormatText {
		_, err := io.WriteString(p.w, p.terminal.Report(r))
		return err
	}
	return Encode(p.w, p.format, r)
}

// Trigger prints a trigger result.
func (p *Printer) Trigger(res *engine.TriggerResult) error {
	if p.format == FormatText {
		_, err := io.WriteString(p.w, p.terminal.Trigger(res))
		return err
	}
	return Encode(p.w, p.format, res)
}

// Encode writes v as JSON or YAML.
func Encode(w io.Writer, format Format, v interface{}) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("failed to encode JSON: %w", err)
		}
		return nil
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("failed to encode YAML: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("format %q is not a structured encoding", format)
	}
}
