// Package prefilter drops connections that cannot qualify before any remote call is made.
package prefilter

import (
	"strings"
	"time"

	"github.com/octobees/enrichment-pipeline/internal/entity"
)

// Layouts accepted for the connection date column, tried in order.
var dateLayouts = []string{
	"02 Jan 2006",
	"2 Jan 2006",
	"2006-01-02",
	"Jan 2, 2006",
	"January 2, 2006",
	"1/2/2006",
	time.RFC3339,
}

// Summary counts how many rows each predicate removed. A row is attributed to the
// first predicate that rejects it, in the order title, company, date.
type Summary struct {
	Input           int `json:"input"`
	Retained        int `json:"retained"`
	ExcludedTitle   int `json:"excluded_title"`
	ExcludedCompany int `json:"excluded_company"`
	ExcludedDate    int `json:"excluded_date"`
}

// Apply returns the contacts that pass every enabled predicate, in input order.
func Apply(contacts []entity.Contact, criteria entity.QualificationCriteria) []entity.Contact {
	out, _ := ApplyWithSummary(contacts, criteria)
	return out
}

// ApplyWithSummary is Apply plus per-predicate removal counts.
func ApplyWithSummary(contacts []entity.Contact, criteria entity.QualificationCriteria) ([]entity.Contact, Summary) {
	titles := normalizeTerms(criteria.ExcludeTitles)
	companies := normalizeTerms(criteria.ExcludeCompanies)
	dateField := criteria.ConnectionDateField()

	var bound time.Time
	if criteria.ConnectedAfter != nil {
		bound = truncateDay(*criteria.ConnectedAfter)
	}

	summary := Summary{Input: len(contacts)}
	out := make([]entity.Contact, 0, len(contacts))
	for _, c := range contacts {
		switch {
		case matchesAny(c.Title, titles):
			summary.ExcludedTitle++
		case matchesAny(c.Company, companies):
			summary.ExcludedCompany++
		case criteria.ConnectedAfter != nil && !connectedOnOrAfter(c, dateField, bound):
			summary.ExcludedDate++
		default:
			out = append(out, c)
		}
	}
	summary.Retained = len(out)
	return out, summary
}

// ParseDate parses a connection date in any of the accepted layouts.
func ParseDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func connectedOnOrAfter(c entity.Contact, field string, bound time.Time) bool {
	raw, ok := c.CustomFields[field]
	if !ok {
		return false
	}
	t, ok := ParseDate(raw)
	if !ok {
		return false
	}
	return !truncateDay(t).Before(bound)
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func normalizeTerms(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, term := range terms {
		term = strings.ToLower(strings.TrimSpace(term))
		if term != "" {
			out = append(out, term)
		}
	}
	return out
}

func matchesAny(value string, terms []string) bool {
	if len(terms) == 0 {
		return false
	}
	value = strings.ToLower(value)
	for _, term := range terms {
		if strings.Contains(value, term) {
			return true
		}
	}
	return false
}
