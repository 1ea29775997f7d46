package dto

// StartRunRequest starts a recipe run over a contact list.
type StartRunRequest struct {
	ListID string `json:"list_id"`
}

// QualifyRequest starts a connection qualification run.
type QualifyRequest struct {
	ListID   string          `json:"list_id"`
	Criteria CriteriaRequest `json:"criteria"`
}

// CriteriaRequest is the wire form of the qualification criteria. ConnectedAfter
// accepts the same date layouts as the LinkedIn export.
type CriteriaRequest struct {
	TargetTitles     []string `json:"target_titles"`
	ExcludeTitles    []string `json:"exclude_titles"`
	TargetIndustries []string `json:"target_industries"`
	ExcludeCompanies []string `json:"exclude_companies"`
	ConnectedAfter   string   `json:"connected_after,omitempty"`
	Guidance         string   `json:"guidance"`
	DateField        string   `json:"date_field,omitempty"`
}
