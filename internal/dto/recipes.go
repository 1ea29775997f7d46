package dto

import "github.com/octobees/enrichment-pipeline/internal/entity"

// SaveRecipeRequest creates or replaces a recipe. An empty ID creates a new one.
type SaveRecipeRequest struct {
	ID            string                `json:"id,omitempty"`
	Slug          string                `json:"slug,omitempty"`
	Name          string                `json:"name"`
	Steps         []entity.Step         `json:"steps"`
	EmailTemplate *entity.EmailTemplate `json:"email_template,omitempty"`
}

// PreviewRequest selects the contact to render a recipe's email for.
type PreviewRequest struct {
	ContactID string `json:"contact_id"`
}
