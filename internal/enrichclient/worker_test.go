package enrichclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/octobees/enrichment-pipeline/internal/entity"
	"github.com/octobees/enrichment-pipeline/internal/requestid"
	"github.com/octobees/enrichment-pipeline/internal/service/enrichment"
)

func batchRequest() enrichment.BatchRequest {
	return enrichment.BatchRequest{
		Rows: []enrichment.BatchRow{
			{ID: "row-1", Fields: enrichment.Fields{"first_name": "Ada"}},
			{ID: "row-2", Fields: enrichment.Fields{"first_name": "Grace"}},
		},
		Steps: []entity.Step{{
			Type:   entity.StepAIPrompt,
			Prompt: &entity.PromptConfig{Prompt: "Write a hook for {{first_name}}", OutputField: "hook"},
		}},
	}
}

func TestWorkerClient_RunBatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != BatchPath || r.Method != http.MethodPost {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if r.Header.Get("X-Request-ID") != "req-1" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		var payload enrichment.BatchRequest
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if len(payload.Rows) != 2 || payload.Steps[0].Prompt.OutputField != "hook" {
			w.WriteHeader(http.StatusUnprocessableEntity)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"results": []map[string]any{
			{"contactId": "row-1", "outputs": map[string]string{"hook": "Hi Ada"}},
			{"contactId": "row-2", "error": "model refused"},
		}}})
	}))
	defer server.Close()

	client, err := NewWorkerClient(context.Background(), server.Client(), server.URL+"/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx := requestid.NewContext(context.Background(), "req-1")
	resp, err := client.RunBatch(ctx, batchRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Results) != 2 {
		t.Fatalf("expected 2 results, got %#v", resp.Results)
	}
	if resp.Results[0].Outputs["hook"] != "Hi Ada" || resp.Results[1].Error != "model refused" {
		t.Fatalf("unexpected results: %#v", resp.Results)
	}
}

func TestWorkerClient_RunBatchErrors(t *testing.T) {
	tests := map[string]struct {
		status        int
		body          string
		wantTransient bool
		wantMessage   string
	}{
		"throttled": {
			status:        http.StatusTooManyRequests,
			body:          `{"error":"slow down"}`,
			wantTransient: true,
			wantMessage:   "slow down",
		},
		"unavailable": {
			status:        http.StatusServiceUnavailable,
			body:          "upstream gone",
			wantTransient: true,
			wantMessage:   "upstream gone",
		},
		"bad request": {
			status:      http.StatusBadRequest,
			body:        `{"error":"unknown step type"}`,
			wantMessage: "unknown step type",
		},
		"envelope error": {
			status:      http.StatusOK,
			body:        `{"error":"quota exhausted"}`,
			wantMessage: "quota exhausted",
		},
		"empty error body": {
			status:      http.StatusForbidden,
			wantMessage: "worker returned an error",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client, err := NewWorkerClient(context.Background(), server.Client(), server.URL)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			_, err = client.RunBatch(context.Background(), batchRequest())
			if err == nil {
				t.Fatalf("expected error")
			}
			var te *enrichment.TransientError
			if errors.As(err, &te) != tt.wantTransient {
				t.Fatalf("transient=%v want=%v (err=%v)", !tt.wantTransient, tt.wantTransient, err)
			}
			if !strings.Contains(err.Error(), tt.wantMessage) {
				t.Fatalf("expected %q in error, got %v", tt.wantMessage, err)
			}
		})
	}
}

func TestNewWorkerClientRequiresURL(t *testing.T) {
	if _, err := NewWorkerClient(context.Background(), http.DefaultClient, "  "); err == nil {
		t.Fatalf("expected error for empty base url")
	}
}
