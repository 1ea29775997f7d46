package gemini

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"google.golang.org/genai"

	"github.com/octobees/enrichment-pipeline/internal/entity"
	"github.com/octobees/enrichment-pipeline/internal/service/enrichment"
)

type timeoutNetErr struct{}

func (timeoutNetErr) Error() string   { return "i/o timeout" }
func (timeoutNetErr) Timeout() bool   { return true }
func (timeoutNetErr) Temporary() bool { return false }

type call struct {
	prompt string
	config *genai.GenerateContentConfig
}

type fakeGenerator struct {
	calls   []call
	respond func(prompt string) (string, error)
}

func (f *fakeGenerator) GenerateContent(_ context.Context, _ string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	prompt := contents[0].Parts[0].Text
	f.calls = append(f.calls, call{prompt: prompt, config: config})
	text, err := f.respond(prompt)
	if err != nil {
		return nil, err
	}
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: genai.NewContentFromText(text, genai.RoleModel),
	}}}, nil
}

func TestClassifyErr(t *testing.T) {
	tests := []struct {
		name          string
		in            error
		wantTransient bool
	}{
		{name: "api_429", in: genai.APIError{Code: 429}, wantTransient: true},
		{name: "api_503", in: genai.APIError{Code: 503}, wantTransient: true},
		{name: "api_400", in: genai.APIError{Code: 400}, wantTransient: false},
		{name: "net_timeout", in: timeoutNetErr{}, wantTransient: true},
		{name: "plain", in: errors.New("boom"), wantTransient: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var te *enrichment.TransientError
			if got := errors.As(classifyErr(tt.in), &te); got != tt.wantTransient {
				t.Fatalf("transient=%v want=%v", got, tt.wantTransient)
			}
		})
	}
}

func TestRunBatchChainsStepsPerRow(t *testing.T) {
	gen := &fakeGenerator{respond: func(prompt string) (string, error) {
		switch {
		case strings.HasPrefix(prompt, "Summarise"):
			return "  Builds analytical engines  ", nil
		case strings.HasPrefix(prompt, "Extract"):
			return `{"seniority":"senior","score":7}`, nil
		}
		return "", errors.New("unexpected prompt")
	}}
	client := &Client{models: gen, model: "test-model"}

	req := enrichment.BatchRequest{
		Rows: []enrichment.BatchRow{{ID: "r1", Fields: enrichment.Fields{"first_name": "Ada", "title": "Analyst"}}},
		Steps: []entity.Step{
			{Type: entity.StepAIPrompt, Prompt: &entity.PromptConfig{Prompt: "Summarise {{first_name}} the {{title}}", OutputField: "summary", MaxTokens: 64}},
			{Type: entity.StepAIExtract, Extract: &entity.ExtractConfig{SourceField: "summary", Fields: []string{"seniority", "score"}, Prompt: "Judge {{first_name}}"}},
		},
	}

	resp, err := client.RunBatch(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []enrichment.BatchResult{{ContactID: "r1", Outputs: map[string]string{
		"summary":   "Builds analytical engines",
		"seniority": "senior",
		"score":     "7",
	}}}
	if diff := cmp.Diff(want, resp.Results); diff != "" {
		t.Fatalf("unexpected results (-want +got):\n%s", diff)
	}

	if len(gen.calls) != 2 {
		t.Fatalf("expected 2 model calls, got %d", len(gen.calls))
	}
	if gen.calls[0].prompt != "Summarise Ada the Analyst" || gen.calls[0].config.MaxOutputTokens != 64 {
		t.Fatalf("prompt not interpolated or token limit missing: %#v", gen.calls[0])
	}
	extract := gen.calls[1]
	if !strings.Contains(extract.prompt, "Builds analytical engines") || !strings.Contains(extract.prompt, "Judge Ada") {
		t.Fatalf("extract prompt should carry source and guidance: %s", extract.prompt)
	}
	if extract.config.ResponseSchema == nil || len(extract.config.ResponseSchema.Properties) != 2 {
		t.Fatalf("expected structured schema, got %#v", extract.config.ResponseSchema)
	}
}

func TestRunBatchPerRowErrors(t *testing.T) {
	gen := &fakeGenerator{respond: func(prompt string) (string, error) {
		if strings.Contains(prompt, "Grace") {
			return "", genai.APIError{Code: 400, Message: "blocked"}
		}
		return "hello", nil
	}}
	client := &Client{models: gen, model: "test-model"}

	req := enrichment.BatchRequest{
		Rows: []enrichment.BatchRow{
			{ID: "r1", Fields: enrichment.Fields{"first_name": "Ada"}},
			{ID: "r2", Fields: enrichment.Fields{"first_name": "Grace"}},
		},
		Steps: []entity.Step{{Type: entity.StepAIPrompt, Prompt: &entity.PromptConfig{Prompt: "Greet {{first_name}}", OutputField: "greeting"}}},
	}

	resp, err := client.RunBatch(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Results[0].Outputs["greeting"] != "hello" || resp.Results[0].Error != "" {
		t.Fatalf("unexpected first result: %#v", resp.Results[0])
	}
	if resp.Results[1].Error == "" || resp.Results[1].Outputs != nil {
		t.Fatalf("expected per-row error, got %#v", resp.Results[1])
	}
}

func TestRunBatchTransientFailsWholeBatch(t *testing.T) {
	gen := &fakeGenerator{respond: func(string) (string, error) {
		return "", genai.APIError{Code: 429}
	}}
	client := &Client{models: gen, model: "test-model"}

	req := enrichment.BatchRequest{
		Rows:  []enrichment.BatchRow{{ID: "r1", Fields: enrichment.Fields{}}},
		Steps: []entity.Step{{Type: entity.StepAIPrompt, Prompt: &entity.PromptConfig{Prompt: "x", OutputField: "y"}}},
	}

	_, err := client.RunBatch(context.Background(), req)
	var te *enrichment.TransientError
	if !errors.As(err, &te) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestRunBatchRejectsLocalSteps(t *testing.T) {
	client := &Client{models: &fakeGenerator{}, model: "test-model"}
	req := enrichment.BatchRequest{
		Rows:  []enrichment.BatchRow{{ID: "r1", Fields: enrichment.Fields{}}},
		Steps: []entity.Step{{Type: entity.StepFieldMap, FieldMap: &entity.FieldMapConfig{}}},
	}

	resp, err := client.RunBatch(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(resp.Results[0].Error, "unsupported remote step") {
		t.Fatalf("expected unsupported step error, got %#v", resp.Results[0])
	}
}

func TestNewValidatesConfig(t *testing.T) {
	if _, err := New(context.Background(), Config{Model: "m"}); err == nil {
		t.Fatalf("expected missing api key error")
	}
	if _, err := New(context.Background(), Config{APIKey: "k"}); err == nil {
		t.Fatalf("expected missing model error")
	}
}
