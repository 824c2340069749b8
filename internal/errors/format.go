package errors

import (
	stderrors "errors"
	"fmt"
	"io"
	"sort"
	"strings"
)

// ANSI color codes for terminal output.
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorGray   = "\033[90m"
	colorBold   = "\033[1m"
)

// Formatter renders SSRErrors for terminals.
type Formatter struct {
	Color bool
}

func (f Formatter) color(code, text string) string {
	if !f.Color {
		return text
	}
	return code + text + colorReset
}

// Format returns a multi-line message for terminal display.
func (f Formatter) Format(e *SSRError) string {
	var b strings.Builder

	b.WriteString(f.color(colorRed+colorBold, "ERROR "))
	if e.Code != "" {
		b.WriteString(f.color(colorBold, e.Code+": "))
	}
	b.WriteString(e.Message)
	b.WriteString("\n")

	if e.Detail != "" {
		b.WriteString("\n")
		for _, line := range wrapText(e.Detail, 72) {
			b.WriteString("  " + line + "\n")
		}
	}

	if len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString("\n")
		for _, k := range keys {
			b.WriteString(f.color(colorGray, fmt.Sprintf("  %s: %v\n", k, e.Fields[k])))
		}
	}

	if e.Wrapped != nil {
		b.WriteString("\n  Cause: " + e.Wrapped.Error() + "\n")
	}

	if e.Suggestion != "" {
		b.WriteString("\n  " + f.color(colorYellow, "Hint: ") + e.Suggestion + "\n")
	}

	return b.String()
}

// FormatCompact returns a compact single-line error format.
func (e *SSRError) FormatCompact() string {
	if e.Code == "" {
		return e.Message
	}
	return e.Code + ": " + e.Message
}

// wrapText wraps text to the specified width.
func wrapText(text string, width int) []string {
	if text == "" {
		return nil
	}
	if len(text) <= width {
		return []string{text}
	}

	var lines []string
	var current strings.Builder

	for _, word := range strings.Fields(text) {
		if current.Len() > 0 && current.Len()+len(word)+1 > width {
			lines = append(lines, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(word)
	}

	if current.Len() > 0 {
		lines = append(lines, current.String())
	}

	return lines
}

// Fprint writes err to w, using the structured layout when err carries an
// SSRError.
func (f Formatter) Fprint(w io.Writer, err error) {
	var se *SSRError
	if stderrors.As(err, &se) {
		fmt.Fprint(w, f.Format(se))
		return
	}
	fmt.Fprintf(w, "%s %s\n", f.color(colorRed+colorBold, "ERROR"), err.Error())
}
