package entity

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// StepType identifies the variant of an enrichment step.
type StepType string

const (
	StepAIPrompt  StepType = "ai_prompt"
	StepAIExtract StepType = "ai_extract"
	StepTransform StepType = "transform"
	StepFieldMap  StepType = "field_map"
)

// TransformKind identifies a single sub-transform inside a transform step.
type TransformKind string

const (
	TransformTemplate  TransformKind = "template"
	TransformConcat    TransformKind = "concat"
	TransformLowercase TransformKind = "lowercase"
	TransformUppercase TransformKind = "uppercase"
	TransformStrip     TransformKind = "strip"
)

// Recipe is an ordered enrichment plan with an optional email template.
type Recipe struct {
	ID            uuid.UUID      `json:"id" yaml:"id,omitempty"`
	Slug          string         `json:"slug" yaml:"slug"`
	Name          string         `json:"name" yaml:"name"`
	Steps         []Step         `json:"steps" yaml:"steps"`
	EmailTemplate *EmailTemplate `json:"email_template,omitempty" yaml:"email_template,omitempty"`
	CreatedAt     time.Time      `json:"created_at" yaml:"-"`
	UpdatedAt     time.Time      `json:"updated_at" yaml:"-"`
}

// EmailTemplate holds the subject and body rendered per contact.
type EmailTemplate struct {
	Subject string `json:"subject" yaml:"subject"`
	Body    string `json:"body" yaml:"body"`
}

// Step is one configured unit of enrichment work. Exactly one config matching Type is set.
type Step struct {
	ID        string           `json:"id,omitempty" yaml:"id,omitempty"`
	Type      StepType         `json:"type" yaml:"type"`
	Prompt    *PromptConfig    `json:"prompt,omitempty" yaml:"prompt,omitempty"`
	Extract   *ExtractConfig   `json:"extract,omitempty" yaml:"extract,omitempty"`
	Transform *TransformConfig `json:"transform,omitempty" yaml:"transform,omitempty"`
	FieldMap  *FieldMapConfig  `json:"field_map,omitempty" yaml:"field_map,omitempty"`
}

// PromptConfig configures an ai_prompt step.
type PromptConfig struct {
	Prompt      string `json:"prompt" yaml:"prompt"`
	OutputField string `json:"output_field" yaml:"output_field"`
	MaxTokens   int    `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
}

// ExtractConfig configures an ai_extract step.
type ExtractConfig struct {
	SourceField string   `json:"source_field" yaml:"source_field"`
	Fields      []string `json:"fields" yaml:"fields"`
	Prompt      string   `json:"prompt,omitempty" yaml:"prompt,omitempty"`
}

// TransformConfig configures a transform step.
type TransformConfig struct {
	Operations []TransformOp `json:"operations" yaml:"operations"`
}

// TransformOp is a single local transform writing exactly one output field.
type TransformOp struct {
	Kind      TransformKind `json:"kind" yaml:"kind"`
	Output    string        `json:"output" yaml:"output"`
	Template  string        `json:"template,omitempty" yaml:"template,omitempty"`
	Input     string        `json:"input,omitempty" yaml:"input,omitempty"`
	Inputs    []string      `json:"inputs,omitempty" yaml:"inputs,omitempty"`
	Separator *string       `json:"separator,omitempty" yaml:"separator,omitempty"`
}

// FieldMapConfig configures a field_map step.
type FieldMapConfig struct {
	Mappings []FieldMapping `json:"mappings" yaml:"mappings"`
}

// FieldMapping copies the value of From into To.
type FieldMapping struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
}

var (
	// ErrInvalidStep is wrapped by every step validation failure.
	ErrInvalidStep = errors.New("invalid step")
	// ErrRecipeNameRequired is returned for a recipe with a blank name.
	ErrRecipeNameRequired = errors.New("recipe name is required")
)

// Remote reports whether the step crosses the remote enrichment boundary.
func (s Step) Remote() bool {
	return s.Type == StepAIPrompt || s.Type == StepAIExtract
}

// Validate checks that the step carries the config its type requires.
func (s Step) Validate() error {
	switch s.Type {
	case StepAIPrompt:
		if s.Prompt == nil {
			return fmt.Errorf("%w: ai_prompt requires prompt config", ErrInvalidStep)
		}
		if strings.TrimSpace(s.Prompt.Prompt) == "" || strings.TrimSpace(s.Prompt.OutputField) == "" {
			return fmt.Errorf("%w: ai_prompt requires prompt and output_field", ErrInvalidStep)
		}
		if s.Prompt.MaxTokens < 0 {
			return fmt.Errorf("%w: ai_prompt max_tokens must not be negative", ErrInvalidStep)
		}
	case StepAIExtract:
		if s.Extract == nil {
			return fmt.Errorf("%w: ai_extract requires extract config", ErrInvalidStep)
		}
		if strings.TrimSpace(s.Extract.SourceField) == "" || len(s.Extract.Fields) == 0 {
			return fmt.Errorf("%w: ai_extract requires source_field and fields", ErrInvalidStep)
		}
	case StepTransform:
		if s.Transform == nil || len(s.Transform.Operations) == 0 {
			return fmt.Errorf("%w: transform requires at least one operation", ErrInvalidStep)
		}
		for i, op := range s.Transform.Operations {
			if err := op.validate(); err != nil {
				return fmt.Errorf("operation %d: %w", i, err)
			}
		}
	case StepFieldMap:
		if s.FieldMap == nil || len(s.FieldMap.Mappings) == 0 {
			return fmt.Errorf("%w: field_map requires at least one mapping", ErrInvalidStep)
		}
		for i, m := range s.FieldMap.Mappings {
			if strings.TrimSpace(m.From) == "" || strings.TrimSpace(m.To) == "" {
				return fmt.Errorf("%w: mapping %d requires from and to", ErrInvalidStep, i)
			}
		}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidStep, s.Type)
	}
	return nil
}

func (op TransformOp) validate() error {
	if strings.TrimSpace(op.Output) == "" {
		return fmt.Errorf("%w: transform output is required", ErrInvalidStep)
	}
	switch op.Kind {
	case TransformTemplate:
		return nil
	case TransformConcat:
		if len(op.Inputs) == 0 {
			return fmt.Errorf("%w: concat requires inputs", ErrInvalidStep)
		}
	case TransformLowercase, TransformUppercase, TransformStrip:
		if strings.TrimSpace(op.Input) == "" {
			return fmt.Errorf("%w: %s requires input", ErrInvalidStep, op.Kind)
		}
	default:
		return fmt.Errorf("%w: unknown transform %q", ErrInvalidStep, op.Kind)
	}
	return nil
}

// Validate checks the recipe identity and every step in order.
func (r Recipe) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return ErrRecipeNameRequired
	}
	for i, step := range r.Steps {
		if err := step.Validate(); err != nil {
			return fmt.Errorf("step %d: %w", i+1, err)
		}
	}
	return nil
}
