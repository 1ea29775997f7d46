package csvio

import (
	"strings"
	"unicode"

	"github.com/octobees/enrichment-pipeline/internal/entity"
)

// standardAliases maps a squashed header (lowercase, letters and digits only) to a
// standard field key.
var standardAliases = map[string]string{
	"firstname":       entity.FieldFirstName,
	"first":           entity.FieldFirstName,
	"givenname":       entity.FieldFirstName,
	"lastname":        entity.FieldLastName,
	"last":            entity.FieldLastName,
	"surname":         entity.FieldLastName,
	"familyname":      entity.FieldLastName,
	"email":           entity.FieldEmail,
	"emailaddress":    entity.FieldEmail,
	"mail":            entity.FieldEmail,
	"company":         entity.FieldCompany,
	"companyname":     entity.FieldCompany,
	"organization":    entity.FieldCompany,
	"organisation":    entity.FieldCompany,
	"title":           entity.FieldTitle,
	"jobtitle":        entity.FieldTitle,
	"position":        entity.FieldTitle,
	"role":            entity.FieldTitle,
	"profileurl":      entity.FieldProfileURL,
	"url":             entity.FieldProfileURL,
	"linkedin":        entity.FieldProfileURL,
	"linkedinurl":     entity.FieldProfileURL,
	"linkedinprofile": entity.FieldProfileURL,
}

// Column describes where one header cell lands in a contact.
type Column struct {
	Index    int
	Header   string
	Key      string
	Standard bool
}

// MapColumns resolves each header cell to a standard key or, failing that, to a
// custom key equal to the trimmed header text. When two headers alias the same
// standard key the first one wins and the later one is kept as custom.
func MapColumns(header []string) []Column {
	taken := make(map[string]bool, len(entity.StandardFields))
	cols := make([]Column, 0, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		col := Column{Index: i, Header: h, Key: h}
		if key, ok := standardAliases[squash(h)]; ok && !taken[key] {
			taken[key] = true
			col.Key = key
			col.Standard = true
		}
		cols = append(cols, col)
	}
	return cols
}

// Record is one data row split into standard and custom values.
type Record struct {
	Standard map[string]string
	Custom   map[string]string
}

// Records maps every row of t through MapColumns. Cell values are trimmed and
// empty custom cells are dropped.
func (t Table) Records() []Record {
	cols := MapColumns(t.Header)
	out := make([]Record, 0, len(t.Rows))
	for _, row := range t.Rows {
		rec := Record{Standard: map[string]string{}, Custom: map[string]string{}}
		for _, col := range cols {
			value := strings.TrimSpace(row[col.Index])
			if col.Standard {
				rec.Standard[col.Key] = value
				continue
			}
			if value != "" {
				rec.Custom[col.Key] = value
			}
		}
		out = append(out, rec)
	}
	return out
}

func squash(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
