// Package csvio reads contact exports and writes enriched lists back to CSV.
//
// The reader handles the RFC 4180 subset produced by spreadsheet tools and LinkedIn:
// quoted fields, embedded commas and doubled quotes. Input is split into lines before
// fields are parsed, so a quoted field cannot span a line break. Such a field is
// read as two truncated rows.
package csvio

import (
	"io"
	"strings"
)

const bom = "\ufeff"

// Table is a parsed CSV document. Every row has exactly len(Header) cells.
type Table struct {
	Header []string
	Rows   [][]string
}

// Empty reports whether the table has no data rows.
func (t Table) Empty() bool {
	return len(t.Rows) == 0
}

// Parse reads text whose first non-blank line is the header. Malformed or empty
// input yields an empty table rather than an error.
func Parse(text string) Table {
	lines := splitLines(text)
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		return buildTable(ParseLine(line), lines[i+1:])
	}
	return Table{}
}

// ParseConnections reads a LinkedIn connections export. Preamble lines before the
// "First Name,Last Name" header are skipped. Without that header it behaves like Parse.
func ParseConnections(text string) Table {
	lines := splitLines(text)
	for i, line := range lines {
		fields := ParseLine(line)
		if isConnectionsHeader(fields) {
			return buildTable(fields, lines[i+1:])
		}
	}
	return Parse(text)
}

// ParseLine splits a single line into fields.
func ParseLine(line string) []string {
	var (
		fields   []string
		field    strings.Builder
		inQuotes bool
	)
	for i := 0; i < len(line); i++ {
		ch := line[i]
		switch {
		case ch == '"' && inQuotes && i+1 < len(line) && line[i+1] == '"':
			field.WriteByte('"')
			i++
		case ch == '"':
			inQuotes = !inQuotes
		case ch == ',' && !inQuotes:
			fields = append(fields, field.String())
			field.Reset()
		default:
			field.WriteByte(ch)
		}
	}
	return append(fields, field.String())
}

// ReadAll reads r fully and parses it with Parse, or ParseConnections when
// connections is set.
func ReadAll(r io.Reader, connections bool) (Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Table{}, err
	}
	if connections {
		return ParseConnections(string(data)), nil
	}
	return Parse(string(data)), nil
}

func splitLines(text string) []string {
	text = strings.TrimPrefix(text, bom)
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return strings.Split(text, "\n")
}

func buildTable(header []string, lines []string) Table {
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	t := Table{Header: header}
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		cells := ParseLine(line)
		row := make([]string, len(header))
		copy(row, cells)
		t.Rows = append(t.Rows, row)
	}
	return t
}

func isConnectionsHeader(fields []string) bool {
	return len(fields) >= 2 &&
		strings.EqualFold(strings.TrimSpace(fields[0]), "First Name") &&
		strings.EqualFold(strings.TrimSpace(fields[1]), "Last Name")
}
