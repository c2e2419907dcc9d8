package errors

import (
	"fmt"
	"io"
	"strings"

	"github.com/stache-go/stache/syntax"
)

const snippetWidth = 79

func formatWithSnippet(w io.Writer, err *Error) {
	_, _ = fmt.Fprint(w, err.Error())
	if err.Source == "" || err.Span == nil {
		return
	}

	title := fmt.Sprintf(" %s ", templateTitle(err.displayName()))
	_, _ = fmt.Fprint(w, "\n")
	_, _ = fmt.Fprintln(w, centerLine(title, '-', snippetWidth))

	lines := strings.Split(err.Source, "\n")
	start := syntax.LineCol(err.Source, err.Span.Lo)
	end := syntax.LineCol(err.Source, err.Span.Hi)
	lineIdx := start.Line - 1
	if lineIdx >= len(lines) {
		lineIdx = len(lines) - 1
	}

	skip := lineIdx - 3
	if skip < 0 {
		skip = 0
	}
	for idx := skip; idx < lineIdx; idx++ {
		_, _ = fmt.Fprintf(w, "%4d | %s\n", idx+1, lines[idx])
	}
	_, _ = fmt.Fprintf(w, "%4d > %s\n", lineIdx+1, lines[lineIdx])

	width := 1
	if end.Line == start.Line && end.Col > start.Col {
		width = end.Col - start.Col
	}
	_, _ = fmt.Fprintf(
		w,
		"     i %s%s %s\n",
		strings.Repeat(" ", start.Col),
		strings.Repeat("^", width),
		err.Message,
	)

	for idx := lineIdx + 1; idx <= lineIdx+3 && idx < len(lines); idx++ {
		_, _ = fmt.Fprintf(w, "%4d | %s\n", idx+1, lines[idx])
	}
	_, _ = fmt.Fprint(w, strings.Repeat("~", snippetWidth))
}

func templateTitle(name string) string {
	if name == "" {
		return "Template Source"
	}
	return name
}

func centerLine(title string, fill rune, width int) string {
	if len(title) >= width {
		return title
	}
	pad := width - len(title)
	left := pad / 2
	right := pad - left
	return strings.Repeat(string(fill), left) + title + strings.Repeat(string(fill), right)
}
