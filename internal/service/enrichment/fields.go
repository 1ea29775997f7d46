package enrichment

import (
	"maps"

	"github.com/octobees/enrichment-pipeline/internal/entity"
)

// Fields is the flat string-keyed view of a contact used by transforms and templates.
type Fields map[string]string

// Clone returns an independent copy of f.
func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	maps.Copy(out, f)
	return out
}

// BaseFields returns the standard attributes overlaid by custom fields.
func BaseFields(c entity.Contact) Fields {
	out := make(Fields, len(entity.StandardFields)+len(c.CustomFields))
	maps.Copy(out, c.Standard())
	maps.Copy(out, c.CustomFields)
	return out
}

// BuildFields returns the mapping for c with precedence standard < custom < step output.
func BuildFields(c entity.Contact) Fields {
	out := BaseFields(c)
	maps.Copy(out, c.StepOutputs)
	return out
}
