// Package ux holds the presentation helpers shared by the CLI commands:
// output formatters and user-facing error hints.
package ux

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Supported output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Formatter writes command results in one output format.
type Formatter interface {
	Format(data any) error
}

// Texter is implemented by results with a human-readable rendering.
type Texter interface {
	Text() string
}

// FormatterOptions configures a formatter.
type FormatterOptions struct {
	// Writer defaults to os.Stdout.
	Writer io.Writer
	// Compact disables indentation for JSON and YAML.
	Compact bool
}

// NewFormatter returns the formatter for format ("text", "json" or "yaml").
func NewFormatter(format string, opts *FormatterOptions) (Formatter, error) {
	if opts == nil {
		opts = &FormatterOptions{}
	}
	if opts.Writer == nil {
		opts.Writer = os.Stdout
	}

	switch strings.ToLower(format) {
	case FormatJSON:
		return &JSONFormatter{opts: opts}, nil
	case FormatYAML:
		return &YAMLFormatter{opts: opts}, nil
	case FormatText, "":
		return &TextFormatter{opts: opts}, nil
	default:
		return nil, fmt.Errorf("unknown format: %s (supported: text, json, yaml)", format)
	}
}

// JSONFormatter formats output as JSON.
type JSONFormatter struct {
	opts *FormatterOptions
}

// Format writes data as JSON.
func (f *JSONFormatter) Format(data any) error {
	encoder := json.NewEncoder(f.opts.Writer)
	if !f.opts.Compact {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(data)
}

// YAMLFormatter formats output as YAML.
type YAMLFormatter struct {
	opts *FormatterOptions
}

// Format writes data as YAML.
func (f *YAMLFormatter) Format(data any) error {
	encoder := yaml.NewEncoder(f.opts.Writer)
	if !f.opts.Compact {
		encoder.SetIndent(2)
	}
	defer encoder.Close()
	return encoder.Encode(data)
}

// TextFormatter writes Texter, Stringer, string and flat map values as
// plain lines.
type TextFormatter struct {
	opts *FormatterOptions
}

// Format writes data as text.
func (f *TextFormatter) Format(data any) error {
	var out string
	switch v := data.(type) {
	case Texter:
		out = v.Text()
	case fmt.Stringer:
		out = v.String()
	case string:
		out = v
	case map[string]string:
		out = KeyValues(v)
	default:
		return fmt.Errorf("text output is not available for %T, use --format json", data)
	}
	_, err := fmt.Fprintln(f.opts.Writer, strings.TrimRight(out, "\n"))
	return err
}

// KeyValues renders m as aligned "key: value" lines sorted by key.
func KeyValues(m map[string]string) string {
	keys := make([]string, 0, len(m))
	width := 0
	for k := range m {
		keys = append(keys, k)
		if len(k) > width {
			width = len(k)
		}
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%-*s  %s\n", width+1, k+":", m[k])
	}
	return b.String()
}

var (
	_ Formatter = (*JSONFormatter)(nil)
	_ Formatter = (*YAMLFormatter)(nil)
	_ Formatter = (*TextFormatter)(nil)
)
