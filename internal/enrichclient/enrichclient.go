// Package enrichclient provides the remote enrichment endpoints used by the dispatcher.
package enrichclient

import (
	"context"
	"fmt"

	"github.com/octobees/enrichment-pipeline/internal/config"
	"github.com/octobees/enrichment-pipeline/internal/enrichclient/gemini"
	"github.com/octobees/enrichment-pipeline/internal/service/enrichment"
)

// New builds the client selected by cfg.Backend.
func New(ctx context.Context, cfg config.EnrichConfig) (enrichment.Client, error) {
	switch cfg.Backend {
	case config.BackendGemini:
		return gemini.New(ctx, gemini.Config{
			APIKey:  cfg.GeminiAPIKey,
			Model:   cfg.GeminiModel,
			BaseURL: cfg.GeminiBaseURL,
		})
	case config.BackendWorker, "":
		return NewWorkerClient(ctx, nil, cfg.WorkerURL)
	default:
		return nil, fmt.Errorf("unknown enrichment backend %q", cfg.Backend)
	}
}

// DispatcherOptions maps the tuning knobs of cfg onto dispatcher options.
func DispatcherOptions(cfg config.EnrichConfig) enrichment.Options {
	return enrichment.Options{
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		MaxRetries:   cfg.MaxRetries,
		RateLimitRPS: cfg.RateLimitRPS,
	}
}
