package entity

import (
	"time"

	"github.com/google/uuid"
)

// EnrichmentStatus tracks where a contact is in the enrichment lifecycle.
type EnrichmentStatus string

const (
	StatusNotStarted EnrichmentStatus = "not_started"
	StatusDone       EnrichmentStatus = "done"
	StatusFailed     EnrichmentStatus = "failed"
)

// Standard field keys exposed in a contact's field mapping.
const (
	FieldFirstName  = "first_name"
	FieldLastName   = "last_name"
	FieldEmail      = "email"
	FieldCompany    = "company"
	FieldTitle      = "title"
	FieldProfileURL = "profile_url"
)

// StandardFields lists the standard keys in their canonical export order.
var StandardFields = []string{
	FieldFirstName,
	FieldLastName,
	FieldEmail,
	FieldCompany,
	FieldTitle,
	FieldProfileURL,
}

// Contact is one imported row of a contact or connection list.
type Contact struct {
	ID           uuid.UUID         `json:"id"`
	ListID       uuid.UUID         `json:"list_id"`
	FirstName    string            `json:"first_name"`
	LastName     string            `json:"last_name"`
	Email        string            `json:"email"`
	Company      string            `json:"company"`
	Title        string            `json:"title"`
	ProfileURL   string            `json:"profile_url"`
	CustomFields map[string]string `json:"custom_fields"`
	StepOutputs  map[string]string `json:"step_outputs"`
	Status       EnrichmentStatus  `json:"status"`
	Error        string            `json:"error,omitempty"`
	Position     int               `json:"position"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// Standard returns the standard attributes keyed by their field names.
func (c Contact) Standard() map[string]string {
	return map[string]string{
		FieldFirstName:  c.FirstName,
		FieldLastName:   c.LastName,
		FieldEmail:      c.Email,
		FieldCompany:    c.Company,
		FieldTitle:      c.Title,
		FieldProfileURL: c.ProfileURL,
	}
}

// SetStandard assigns a standard attribute by key. Unknown keys are reported as false.
func (c *Contact) SetStandard(key, value string) bool {
	switch key {
	case FieldFirstName:
		c.FirstName = value
	case FieldLastName:
		c.LastName = value
	case FieldEmail:
		c.Email = value
	case FieldCompany:
		c.Company = value
	case FieldTitle:
		c.Title = value
	case FieldProfileURL:
		c.ProfileURL = value
	default:
		return false
	}
	return true
}
