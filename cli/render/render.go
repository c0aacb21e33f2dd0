// Package render provides centralized output rendering for the rawzeo CLI.
//
// Format selection rules:
//   - If output is a TTY, default to table
//   - If output is not a TTY, default to json
//   - --format flag always overrides defaults
//   - Invalid formats are errors
//
// Snapshots (stats, inspect) go through Renderer. Decoded records stream
// through RecordWriter: one JSON object per line, one YAML document per
// record, or one table row per record.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"reflect"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/justapithecus/rawzeo/cli/tui"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"
)

// Format represents an output format.
type Format string

// Supported formats.
const (
	FormatJSON  Format = "json"
	FormatTable Format = "table"
	FormatYAML  Format = "yaml"
)

// ParseFormat parses a format string, returning an error for invalid formats.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "json":
		return FormatJSON, nil
	case "table":
		return FormatTable, nil
	case "yaml":
		return FormatYAML, nil
	case "":
		return "", nil // Let caller decide default
	default:
		return "", fmt.Errorf("invalid format: %q (must be json, table, or yaml)", s)
	}
}

// Renderer handles output formatting.
type Renderer struct {
	format  Format
	noColor bool
	out     io.Writer
}

// NewRenderer creates a renderer from CLI context.
func NewRenderer(c *cli.Context) (*Renderer, error) {
	out := Output(c)
	format, err := ResolveFormat(c.String("format"), out)
	if err != nil {
		return nil, err
	}

	return &Renderer{
		format:  format,
		noColor: c.Bool("no-color"),
		out:     out,
	}, nil
}

// Output returns the app writer, falling back to os.Stdout.
func Output(c *cli.Context) io.Writer {
	if c != nil && c.App != nil && c.App.Writer != nil {
		return c.App.Writer
	}
	return os.Stdout
}

// ResolveFormat parses s and applies the default when it is empty: table
// for a terminal, json for anything else.
func ResolveFormat(s string, out io.Writer) (Format, error) {
	format, err := ParseFormat(s)
	if err != nil {
		return "", err
	}
	if format == "" {
		if isTTY(out) {
			return FormatTable, nil
		}
		return FormatJSON, nil
	}
	return format, nil
}

// NewRendererWithWriter creates a renderer with a custom writer (for testing).
func NewRendererWithWriter(format Format, noColor bool, out io.Writer) *Renderer {
	return &Renderer{
		format:  format,
		noColor: noColor,
		out:     out,
	}
}

// Render outputs the data in the configured format.
func (r *Renderer) Render(data any) error {
	switch r.format {
	case FormatJSON:
		return r.renderJSON(data)
	case FormatTable:
		return r.renderTable(data)
	case FormatYAML:
		return r.renderYAML(data)
	default:
		return fmt.Errorf("unknown format: %s", r.format)
	}
}

// RenderTUI initiates TUI mode for the given view type.
// TUI is opt-in and read-only.
func (r *Renderer) RenderTUI(viewType string, data any) error {
	// Validate TUI is supported for this view type
	if !tui.IsTUISupported(viewType) {
		return fmt.Errorf("--tui is not supported for %s", viewType)
	}

	// Run the TUI
	return tui.Run(viewType, data)
}

func (r *Renderer) renderJSON(data any) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func (r *Renderer) renderYAML(data any) error {
	enc := yaml.NewEncoder(r.out)
	enc.SetIndent(2)
	return enc.Encode(data)
}

// leadingColumns come first in slice tables, in this order. Other columns
// follow sorted by name.
var leadingColumns = []string{"offset", "kind", "tag", "sequence", "time", "session_id"}

func (r *Renderer) renderTable(data any) error {
	v := reflect.ValueOf(data)
	if v.Kind() == reflect.Ptr && !v.IsNil() {
		v = v.Elem()
	}

	w := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		if v.Len() == 0 {
			_, err := fmt.Fprintln(r.out, "(no results)")
			return err
		}
		writeSliceTable(w, v)
	case reflect.Struct, reflect.Map:
		for _, c := range columnsOf(v) {
			fmt.Fprintf(w, "%s:\t%s\n", c.name, formatValue(c.value))
		}
	default:
		fmt.Fprintf(w, "%v\n", data)
	}
	return w.Flush()
}

// writeSliceTable writes one row per element. Map rows may carry different
// keys; the header is their union.
func writeSliceTable(w io.Writer, v reflect.Value) {
	rows := make([]map[string]reflect.Value, v.Len())
	seen := make(map[string]bool)
	var names []string
	for i := range rows {
		cols := columnsOf(v.Index(i))
		rows[i] = make(map[string]reflect.Value, len(cols))
		for _, c := range cols {
			rows[i][c.name] = c.value
			if !seen[c.name] {
				seen[c.name] = true
				names = append(names, c.name)
			}
		}
	}
	// Struct rows keep field order; map rows get leading columns first.
	if k := indirect(v.Index(0)).Kind(); k == reflect.Map || k == reflect.Interface {
		names = orderColumns(names)
	}

	fmt.Fprintln(w, strings.Join(names, "\t"))
	cells := make([]string, len(names))
	for _, row := range rows {
		for i, name := range names {
			cells[i] = formatValue(row[name])
		}
		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}
}

type column struct {
	name  string
	value reflect.Value
}

// columnsOf lists struct fields in declaration order or map entries sorted
// by key.
func columnsOf(v reflect.Value) []column {
	v = indirect(v)
	var cols []column
	switch v.Kind() {
	case reflect.Struct:
		t := v.Type()
		for i := range t.NumField() {
			f := t.Field(i)
			if !f.IsExported() {
				continue
			}
			cols = append(cols, column{name: fieldName(f), value: v.Field(i)})
		}
	case reflect.Map:
		for _, key := range sortedKeys(v) {
			cols = append(cols, column{name: fmt.Sprint(key.Interface()), value: v.MapIndex(key)})
		}
	}
	return cols
}

func orderColumns(names []string) []string {
	rest := slices.Clone(names)
	slices.Sort(rest)
	out := make([]string, 0, len(names))
	for _, lead := range leadingColumns {
		if i := slices.Index(rest, lead); i >= 0 {
			out = append(out, lead)
			rest = slices.Delete(rest, i, i+1)
		}
	}
	return append(out, rest...)
}

func indirect(v reflect.Value) reflect.Value {
	for v.IsValid() && (v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}

func fieldName(f reflect.StructField) string {
	if name, _, _ := strings.Cut(f.Tag.Get("json"), ","); name != "" && name != "-" {
		return name
	}
	return strings.ToLower(f.Name)
}

func formatValue(v reflect.Value) string {
	v = indirect(v)
	if !v.IsValid() || !v.CanInterface() {
		return ""
	}
	if s, ok := v.Interface().(fmt.Stringer); ok {
		return s.String()
	}

	switch v.Kind() {
	case reflect.Map:
		if v.Len() == 0 {
			return "{}"
		}
		if v.Type().Key().Kind() != reflect.String {
			return fmt.Sprintf("{%d keys}", v.Len())
		}
		parts := make([]string, 0, v.Len())
		for _, key := range sortedKeys(v) {
			parts = append(parts, key.String()+"="+formatValue(v.MapIndex(key)))
		}
		return strings.Join(parts, " ")
	case reflect.Slice, reflect.Array:
		if v.Type().Elem().Kind() == reflect.Uint8 && v.Kind() == reflect.Slice {
			return formatDatum(v.Bytes())
		}
		if v.Len() == 0 {
			return "[]"
		}
		if v.Len() > maxInlineValues {
			return fmt.Sprintf("[%d items]", v.Len())
		}
		return fmt.Sprint(v.Interface())
	case reflect.Struct:
		return "{...}"
	default:
		return fmt.Sprint(v.Interface())
	}
}

// sortedKeys returns map keys ordered by their printed form.
func sortedKeys(v reflect.Value) []reflect.Value {
	keys := v.MapKeys()
	slices.SortFunc(keys, func(a, b reflect.Value) int {
		return strings.Compare(fmt.Sprint(a.Interface()), fmt.Sprint(b.Interface()))
	})
	return keys
}

// isTTY returns true if the writer is a terminal.
func isTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
