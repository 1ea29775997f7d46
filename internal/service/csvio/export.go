package csvio

import (
	"io"
	"strings"
)

// Export renders header and rows as CSV text, one line per row terminated by "\n".
func Export(header []string, rows [][]string) string {
	var b strings.Builder
	_ = Write(&b, header, rows)
	return b.String()
}

// Write streams header and rows to w.
func Write(w io.Writer, header []string, rows [][]string) error {
	if err := writeLine(w, header); err != nil {
		return err
	}
	for _, row := range rows {
		if err := writeLine(w, row); err != nil {
			return err
		}
	}
	return nil
}

// Escape quotes value only when it contains a comma, a quote or a line break.
func Escape(value string) string {
	if !strings.ContainsAny(value, ",\"\n\r") {
		return value
	}
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

func writeLine(w io.Writer, cells []string) error {
	escaped := make([]string, len(cells))
	for i, cell := range cells {
		escaped[i] = Escape(cell)
	}
	_, err := io.WriteString(w, strings.Join(escaped, ",")+"\n")
	return err
}
