package service

import (
	"maps"
	"slices"

	"github.com/octobees/enrichment-pipeline/internal/entity"
	"github.com/octobees/enrichment-pipeline/internal/service/enrichment"
)

// Export column names appended after the contact fields.
const (
	ColumnStatus       = "status"
	ColumnError        = "error"
	ColumnEmailSubject = "email_subject"
	ColumnEmailBody    = "email_body"
)

// ExportTable lays contacts out as CSV rows: standard fields, custom fields, step
// outputs, status and error, then the rendered email when tmpl is set. Unresolved
// placeholders render as empty strings. A custom field or output whose name collides
// with a trailing column is exported under the "field_" prefix.
func ExportTable(contacts []entity.Contact, tmpl *entity.EmailTemplate) ([]string, [][]string) {
	trailing := []string{ColumnStatus, ColumnError}
	if tmpl != nil {
		trailing = append(trailing, ColumnEmailSubject, ColumnEmailBody)
	}
	keys := slices.Clone(entity.StandardFields)
	header := slices.Clone(entity.StandardFields)
	seen := make(map[string]struct{}, len(header))
	labels := make(map[string]struct{}, len(header)+len(trailing))
	for _, key := range header {
		seen[key] = struct{}{}
		labels[key] = struct{}{}
	}
	for _, col := range trailing {
		labels[col] = struct{}{}
	}
	addKeys := func(m map[string]string) {
		for _, key := range slices.Sorted(maps.Keys(m)) {
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			label := key
			for {
				if _, taken := labels[label]; !taken {
					break
				}
				label = "field_" + label
			}
			labels[label] = struct{}{}
			keys = append(keys, key)
			header = append(header, label)
		}
	}
	for _, c := range contacts {
		addKeys(c.CustomFields)
	}
	for _, c := range contacts {
		addKeys(c.StepOutputs)
	}
	header = append(header, trailing...)

	rows := make([][]string, 0, len(contacts))
	for _, c := range contacts {
		fields := enrichment.BuildFields(c)
		row := make([]string, 0, len(header))
		for _, key := range keys {
			row = append(row, fields[key])
		}
		status := c.Status
		if status == "" {
			status = entity.StatusNotStarted
		}
		row = append(row, string(status), c.Error)
		if tmpl != nil {
			row = append(row,
				enrichment.Interpolate(tmpl.Subject, fields, false),
				enrichment.Interpolate(tmpl.Body, fields, false),
			)
		}
		rows = append(rows, row)
	}
	return header, rows
}
