// Package gemini runs remote enrichment steps in-process against the Gemini API.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/octobees/enrichment-pipeline/internal/entity"
	"github.com/octobees/enrichment-pipeline/internal/service/enrichment"
)

type Config struct {
	APIKey string
	Model  string

	// BaseURL overrides the Gemini API base URL. Useful for proxies/testing.
	BaseURL string
}

type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Client implements enrichment.Client by running each row's AI steps as model calls.
type Client struct {
	models generator
	model  string
}

func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("GEMINI_MODEL is required")
	}

	cc := &genai.ClientConfig{
		APIKey:  strings.TrimSpace(cfg.APIKey),
		Backend: genai.BackendGeminiAPI,
	}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		cc.HTTPOptions.BaseURL = strings.TrimSpace(cfg.BaseURL)
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, err
	}
	return &Client{models: client.Models, model: strings.TrimSpace(cfg.Model)}, nil
}

// RunBatch processes rows one at a time. A row's steps run in order against its
// evolving fields, so a later step in the group sees earlier outputs. Model errors
// fail only their row unless they are transient, in which case the whole batch is
// returned for retry.
func (c *Client) RunBatch(ctx context.Context, req enrichment.BatchRequest) (enrichment.BatchResponse, error) {
	results := make([]enrichment.BatchResult, 0, len(req.Rows))
	for _, row := range req.Rows {
		if err := ctx.Err(); err != nil {
			return enrichment.BatchResponse{}, err
		}

		outputs, err := c.runRow(ctx, row.Fields.Clone(), req.Steps)
		if err != nil {
			var te *enrichment.TransientError
			if errors.As(err, &te) || ctx.Err() != nil {
				return enrichment.BatchResponse{}, err
			}
			results = append(results, enrichment.BatchResult{ContactID: row.ID, Error: err.Error()})
			continue
		}
		results = append(results, enrichment.BatchResult{ContactID: row.ID, Outputs: outputs})
	}
	return enrichment.BatchResponse{Results: results}, nil
}

func (c *Client) runRow(ctx context.Context, fields enrichment.Fields, steps []entity.Step) (map[string]string, error) {
	outputs := make(map[string]string)
	for i, step := range steps {
		var (
			produced map[string]string
			err      error
		)
		switch {
		case step.Type == entity.StepAIPrompt && step.Prompt != nil:
			produced, err = c.prompt(ctx, fields, *step.Prompt)
		case step.Type == entity.StepAIExtract && step.Extract != nil:
			produced, err = c.extract(ctx, fields, *step.Extract)
		default:
			err = fmt.Errorf("step %d: unsupported remote step type %q", i+1, step.Type)
		}
		if err != nil {
			return nil, err
		}
		for k, v := range produced {
			fields[k] = v
			outputs[k] = v
		}
	}
	return outputs, nil
}

func (c *Client) prompt(ctx context.Context, fields enrichment.Fields, cfg entity.PromptConfig) (map[string]string, error) {
	gc := &genai.GenerateContentConfig{CandidateCount: 1}
	if cfg.MaxTokens > 0 {
		gc.MaxOutputTokens = int32(cfg.MaxTokens)
	}

	text, err := c.generate(ctx, enrichment.Interpolate(cfg.Prompt, fields, false), gc)
	if err != nil {
		return nil, err
	}
	return map[string]string{cfg.OutputField: text}, nil
}

func (c *Client) extract(ctx context.Context, fields enrichment.Fields, cfg entity.ExtractConfig) (map[string]string, error) {
	schema := &genai.Schema{
		Type:       genai.TypeObject,
		Properties: make(map[string]*genai.Schema, len(cfg.Fields)),
		Required:   cfg.Fields,
	}
	for _, name := range cfg.Fields {
		schema.Properties[name] = &genai.Schema{Type: genai.TypeString}
	}

	text, err := c.generate(ctx, buildExtractPrompt(cfg, fields), &genai.GenerateContentConfig{
		CandidateCount:   1,
		ResponseMIMEType: "application/json",
		ResponseSchema:   schema,
	})
	if err != nil {
		return nil, err
	}

	var parsed map[string]any
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return nil, fmt.Errorf("gemini: parse structured json: %w", err)
	}
	out := make(map[string]string, len(cfg.Fields))
	for _, name := range cfg.Fields {
		out[name] = stringify(parsed[name])
	}
	return out, nil
}

func (c *Client) generate(ctx context.Context, prompt string, gc *genai.GenerateContentConfig) (string, error) {
	resp, err := c.models.GenerateContent(ctx, c.model, genai.Text(prompt), gc)
	if err != nil {
		return "", classifyErr(err)
	}
	if resp == nil {
		return "", errors.New("gemini: empty response")
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", errors.New("gemini: empty response")
	}
	return text, nil
}

func buildExtractPrompt(cfg entity.ExtractConfig, fields enrichment.Fields) string {
	var b strings.Builder
	b.WriteString("Extract the following fields from the source text and return ONLY a single JSON object with these keys:\n")
	for _, name := range cfg.Fields {
		b.WriteString("- " + name + " (string)\n")
	}
	b.WriteString("If a field cannot be determined, set it to an empty string. Do not include extra keys.\n")
	if guidance := strings.TrimSpace(enrichment.Interpolate(cfg.Prompt, fields, false)); guidance != "" {
		b.WriteString("\nGuidance:\n" + guidance + "\n")
	}
	b.WriteString("\nSource:\n" + fields[cfg.SourceField])
	return b.String()
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	default:
		return fmt.Sprint(t)
	}
}

func classifyErr(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusTooManyRequests || apiErr.Code/100 == 5 {
			return &enrichment.TransientError{Err: err}
		}
		return err
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return &enrichment.TransientError{Err: err}
	}
	return err
}

var _ enrichment.Client = (*Client)(nil)
