// Package render holds the runtime helpers called by generated template
// code. A generated Render method wraps its io.Writer in a Writer, writes
// literals with WriteString and values with Escape, Raw or JSON, and returns
// Err at the end.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// Writer writes to an io.Writer and remembers the first error. Writes after
// an error are dropped.
type Writer struct {
	w   io.Writer
	n   int64
	err error
}

// NewWriter wraps w.
func NewWriter(w io.Writer) *Writer {
	if rw, ok := w.(*Writer); ok {
		return rw
	}
	return &Writer{w: w}
}

// WriteString writes s.
func (w *Writer) WriteString(s string) {
	if w.err != nil || s == "" {
		return
	}
	n, err := io.WriteString(w.w, s)
	w.n += int64(n)
	w.err = err
}

// Write implements io.Writer.
func (w *Writer) Write(p []byte) (int, error) {
	if w.err != nil {
		return 0, w.err
	}
	n, err := w.w.Write(p)
	w.n += int64(n)
	w.err = err
	return n, err
}

// Err returns the first write or encoding error.
func (w *Writer) Err() error { return w.err }

// Written returns the number of bytes written so far.
func (w *Writer) Written() int64 { return w.n }

// Text returns the text of v as printed by fmt.Print.
func Text(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		return strconv.FormatBool(v)
	case fmt.Stringer:
		return v.String()
	}
	return fmt.Sprint(v)
}

// Chars splits s into its characters, so that ranging over a string
// yields strings rather than runes.
func Chars[S ~string](s S) []string {
	out := make([]string, 0, utf8.RuneCountInString(string(s)))
	for _, r := range string(s) {
		out = append(out, string(r))
	}
	return out
}

// IsZero reports whether v is nil or the zero value of its type.
func IsZero(v any) bool {
	if v == nil {
		return true
	}
	return reflect.ValueOf(v).IsZero()
}

// EscapeString escapes s for HTML text and attribute values.
func EscapeString(s string) string {
	return html.EscapeString(s)
}

// Escape writes v HTML-escaped.
func Escape(w *Writer, v any) {
	w.WriteString(html.EscapeString(Text(v)))
}

// Raw writes v unescaped.
func Raw(w *Writer, v any) {
	w.WriteString(Text(v))
}

// EncodeJSON encodes v as compact or indented JSON. The output is safe to
// embed in HTML: json escapes <, > and &, and single quotes are escaped
// too so the text can sit in a single-quoted attribute.
func EncodeJSON(v any, pretty bool) (string, error) {
	var (
		data []byte
		err  error
	)
	if pretty {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return "", err
	}
	return strings.ReplaceAll(string(data), "'", "\\u0027"), nil
}

// JSON writes v as compact JSON.
func JSON(w *Writer, v any) {
	writeJSON(w, v, false)
}

// JSONPretty writes v as JSON indented by two spaces.
func JSONPretty(w *Writer, v any) {
	writeJSON(w, v, true)
}

func writeJSON(w *Writer, v any, pretty bool) {
	s, err := EncodeJSON(v, pretty)
	if err != nil {
		if w.err == nil {
			w.err = fmt.Errorf("render: json: %w", err)
		}
		return
	}
	w.WriteString(s)
}
