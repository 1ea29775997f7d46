package entity

import "time"

// DefaultConnectionDateField is the LinkedIn export column holding the connection date.
const DefaultConnectionDateField = "Connected On"

// QualificationCriteria is fixed for the duration of a connection-qualifier run.
type QualificationCriteria struct {
	TargetTitles     []string   `json:"target_titles" yaml:"target_titles"`
	ExcludeTitles    []string   `json:"exclude_titles" yaml:"exclude_titles"`
	TargetIndustries []string   `json:"target_industries" yaml:"target_industries"`
	ExcludeCompanies []string   `json:"exclude_companies" yaml:"exclude_companies"`
	ConnectedAfter   *time.Time `json:"connected_after,omitempty" yaml:"connected_after,omitempty"`
	Guidance         string     `json:"guidance" yaml:"guidance"`
	DateField        string     `json:"date_field,omitempty" yaml:"date_field,omitempty"`
}

// ConnectionDateField returns the custom column used for the connected-after bound.
func (c QualificationCriteria) ConnectionDateField() string {
	if c.DateField == "" {
		return DefaultConnectionDateField
	}
	return c.DateField
}
