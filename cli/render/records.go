package render

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/justapithecus/rawzeo/record"
)

// RecordWriter streams record envelopes in one format.
// Not safe for concurrent use.
type RecordWriter struct {
	format Format
	out    io.Writer
	json   *json.Encoder
	yaml   *yaml.Encoder
	header bool
}

// NewRecordWriter creates a RecordWriter. An empty format selects json.
func NewRecordWriter(format Format, out io.Writer) *RecordWriter {
	if format == "" {
		format = FormatJSON
	}
	w := &RecordWriter{format: format, out: out}
	switch format {
	case FormatJSON:
		w.json = json.NewEncoder(out)
	case FormatYAML:
		w.yaml = yaml.NewEncoder(out)
		w.yaml.SetIndent(2)
	}
	return w
}

// Write emits one envelope.
func (w *RecordWriter) Write(e record.Envelope) error {
	switch w.format {
	case FormatJSON:
		return w.json.Encode(e)
	case FormatYAML:
		return w.yaml.Encode(e)
	case FormatTable:
		return w.writeRow(e)
	default:
		return fmt.Errorf("unknown format: %s", w.format)
	}
}

// Close finishes the stream. It does not close the underlying writer.
func (w *RecordWriter) Close() error {
	if w.yaml != nil {
		return w.yaml.Close()
	}
	return nil
}

const rowFormat = "%-10v  %-15v  %-4v  %-4v  %-6v  %v\n"

func (w *RecordWriter) writeRow(e record.Envelope) error {
	if !w.header {
		w.header = true
		if _, err := fmt.Fprintf(w.out, rowFormat, "OFFSET", "KIND", "TAG", "SEQ", "TIME", "DATA"); err != nil {
			return err
		}
	}
	t := ""
	if e.Time != 0 {
		t = fmt.Sprint(e.Time)
	}
	_, err := fmt.Fprintf(w.out, rowFormat, e.Offset, e.Kind, fmt.Sprintf("%02X", e.Tag), e.Sequence, t, FormatData(e.Data))
	return err
}

// FormatData renders record data as sorted key=value pairs. Byte slices are
// shown as hex and long slices are summarized.
func FormatData(data map[string]any) string {
	parts := make([]string, 0, len(data))
	for _, k := range slices.Sorted(maps.Keys(data)) {
		parts = append(parts, k+"="+formatDatum(data[k]))
	}
	return strings.Join(parts, " ")
}

const maxInlineValues = 8

func formatDatum(v any) string {
	switch x := v.(type) {
	case []byte:
		return hex.EncodeToString(x)
	case []int16:
		return summarize(x)
	case []uint16:
		return summarize(x)
	case []uint32:
		return summarize(x)
	case []float64:
		return summarize(x)
	default:
		return fmt.Sprint(v)
	}
}

func summarize[T any](values []T) string {
	if len(values) <= maxInlineValues {
		return fmt.Sprint(values)
	}
	return fmt.Sprintf("%v...(%d values)", values[:maxInlineValues], len(values))
}
