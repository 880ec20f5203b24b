package report

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/nao1215/sitemirror/internal/model"
)

// JSONWriter outputs reports as a single JSON document followed by a
// newline. URLs are written verbatim; "&" and "<" are not escaped.
type JSONWriter struct {
	baseWriter

	prefix string
	indent string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent indents nested values with indent, each line starting with
// prefix.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.prefix = prefix
		w.indent = indent
	}
}

// WithPrettyPrint indents with two spaces.
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// NewJSONWriter returns a compact JSONWriter unless options say otherwise.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the run summary.
func (w *JSONWriter) Write(s *Summary) (int, error) {
	return w.encode(s)
}

// WriteRuns outputs the run history as {"runs": [...]}, with an empty
// array rather than null when there are none.
func (w *JSONWriter) WriteRuns(runs []model.RunStats) (int, error) {
	if runs == nil {
		runs = []model.RunStats{}
	}
	return w.encode(struct {
		Runs []model.RunStats `json:"runs"`
	}{Runs: runs})
}

func (w *JSONWriter) encode(v any) (int, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if w.prefix != "" || w.indent != "" {
		enc.SetIndent(w.prefix, w.indent)
	}
	if err := enc.Encode(v); err != nil {
		return 0, err
	}
	return w.output.Write(buf.Bytes())
}
