package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// OutputFormat selects how a command prints its result.
type OutputFormat string

const (
	// FormatText is human-readable output (default).
	FormatText OutputFormat = "text"
	// FormatJSON is indented JSON.
	FormatJSON OutputFormat = "json"
	// FormatYAML is YAML laid out like the configuration file.
	FormatYAML OutputFormat = "yaml"
)

// OutputFormats lists the accepted --output values.
var OutputFormats = []OutputFormat{FormatText, FormatJSON, FormatYAML}

// ParseOutputFormat validates an --output flag value. Matching is case
// insensitive and an empty value means text.
func ParseOutputFormat(s string) (OutputFormat, error) {
	if s == "" {
		return FormatText, nil
	}
	f := OutputFormat(strings.ToLower(s))
	for _, known := range OutputFormats {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("unsupported output format %q (want text, json or yaml)", s)
}

// Formatter writes a command result.
type Formatter interface {
	Write(w io.Writer, v any) error
}

// NewFormatter returns the formatter for format. Unknown formats fall back
// to text.
func NewFormatter(format OutputFormat) Formatter {
	switch format {
	case FormatJSON:
		return jsonFormatter{}
	case FormatYAML:
		return yamlFormatter{}
	default:
		return textFormatter{}
	}
}

// Render is NewFormatter(format).Write(w, v).
func Render(w io.Writer, format OutputFormat, v any) error {
	return NewFormatter(format).Write(w, v)
}

// textFormatter prints v with %v, so types that want a readable text form
// implement fmt.Stringer.
type textFormatter struct{}

func (textFormatter) Write(w io.Writer, v any) error {
	_, err := fmt.Fprintf(w, "%v\n", v)
	return err
}

type jsonFormatter struct{}

func (jsonFormatter) Write(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type yamlFormatter struct{}

func (yamlFormatter) Write(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode yaml: %w", err)
	}
	return enc.Close()
}
