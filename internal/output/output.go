// Package output writes search results in the formats the CLI offers.
package output

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/FranksOps/serpent/internal/storage"
)

// Format represents output format types.
type Format string

const (
	FormatText  Format = "text"
	FormatJSON  Format = "json"
	FormatJSONL Format = "jsonl"
	FormatYAML  Format = "yaml"
)

// Writer serializes records. Close must be called to flush buffered formats.
type Writer interface {
	Write(r *storage.Record) error
	Close() error
}

// NewWriter creates a writer for the specified format. Text output prints
// one URL per line, followed by title and description when advanced is set.
func NewWriter(w io.Writer, format Format, advanced bool) (Writer, error) {
	switch format {
	case FormatText, "":
		return &textWriter{w: bufio.NewWriter(w), advanced: advanced}, nil
	case FormatJSON:
		return &jsonWriter{w: w, items: make([]*storage.Record, 0)}, nil
	case FormatJSONL:
		return &jsonlWriter{enc: json.NewEncoder(w)}, nil
	case FormatYAML:
		return &yamlWriter{w: w}, nil
	default:
		return nil, fmt.Errorf("output: unsupported format %q", format)
	}
}

type textWriter struct {
	w        *bufio.Writer
	advanced bool
}

func (t *textWriter) Write(r *storage.Record) error {
	if !t.advanced {
		_, err := fmt.Fprintln(t.w, r.URL)
		if err != nil {
			return fmt.Errorf("output: write: %w", err)
		}
		return t.w.Flush()
	}
	if _, err := fmt.Fprintf(t.w, "%d. %s\n   %s\n", r.Rank, r.Title, r.URL); err != nil {
		return fmt.Errorf("output: write: %w", err)
	}
	if r.Description != "" {
		if _, err := fmt.Fprintf(t.w, "   %s\n", r.Description); err != nil {
			return fmt.Errorf("output: write: %w", err)
		}
	}
	if _, err := t.w.WriteString("\n"); err != nil {
		return fmt.Errorf("output: write: %w", err)
	}
	return t.w.Flush()
}

func (t *textWriter) Close() error { return t.w.Flush() }

// jsonWriter buffers records and emits a single array on Close.
type jsonWriter struct {
	w     io.Writer
	items []*storage.Record
}

func (j *jsonWriter) Write(r *storage.Record) error {
	j.items = append(j.items, r)
	return nil
}

func (j *jsonWriter) Close() error {
	data, err := json.MarshalIndent(j.items, "", "  ")
	if err != nil {
		return fmt.Errorf("output: marshal json: %w", err)
	}
	if _, err := j.w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("output: write: %w", err)
	}
	return nil
}

// jsonlWriter streams one JSON object per line.
type jsonlWriter struct {
	enc *json.Encoder
}

func (j *jsonlWriter) Write(r *storage.Record) error {
	if err := j.enc.Encode(r); err != nil {
		return fmt.Errorf("output: encode jsonl: %w", err)
	}
	return nil
}

func (j *jsonlWriter) Close() error { return nil }

type yamlWriter struct {
	w     io.Writer
	items []*storage.Record
}

func (y *yamlWriter) Write(r *storage.Record) error {
	y.items = append(y.items, r)
	return nil
}

func (y *yamlWriter) Close() error {
	enc := yaml.NewEncoder(y.w)
	enc.SetIndent(2)
	if err := enc.Encode(y.items); err != nil {
		return fmt.Errorf("output: encode yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("output: encode yaml: %w", err)
	}
	return nil
}
