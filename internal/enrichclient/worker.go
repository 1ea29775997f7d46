package enrichclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"google.golang.org/api/idtoken"

	"github.com/octobees/enrichment-pipeline/internal/requestid"
	"github.com/octobees/enrichment-pipeline/internal/service/enrichment"
)

// BatchPath is the worker route that processes one enrichment batch.
const BatchPath = "/enrich/batch"

const maxErrorBody = 4 << 10

// WorkerClient posts enrichment batches to the worker service.
type WorkerClient struct {
	client  *http.Client
	baseURL string
}

// NewWorkerClient builds a worker client, auto-configuring an ID token client when needed.
func NewWorkerClient(ctx context.Context, client *http.Client, workerBaseURL string) (*WorkerClient, error) {
	workerBaseURL = strings.TrimRight(strings.TrimSpace(workerBaseURL), "/")
	if workerBaseURL == "" {
		return nil, errors.New("worker base url must not be empty")
	}
	if client == nil {
		idc, err := idtoken.NewClient(ctx, workerBaseURL)
		if err != nil {
			client = &http.Client{Timeout: 2 * time.Minute}
		} else {
			client = idc
		}
	}
	return &WorkerClient{client: client, baseURL: workerBaseURL}, nil
}

// RunBatch sends the rows and steps of one remote group and returns one result per row.
// Throttling and server errors are reported as enrichment.TransientError.
func (c *WorkerClient) RunBatch(ctx context.Context, req enrichment.BatchRequest) (enrichment.BatchResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return enrichment.BatchResponse{}, fmt.Errorf("failed to marshal batch: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+BatchPath, bytes.NewReader(body))
	if err != nil {
		return enrichment.BatchResponse{}, fmt.Errorf("failed to create worker request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if rid := requestid.FromContext(ctx); rid != "" {
		httpReq.Header.Set(requestid.Header, rid)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return enrichment.BatchResponse{}, fmt.Errorf("worker request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		werr := fmt.Errorf("worker error (%d): %s", resp.StatusCode, extractWorkerError(resp.Body))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return enrichment.BatchResponse{}, &enrichment.TransientError{Err: werr}
		}
		return enrichment.BatchResponse{}, werr
	}

	var workerResp struct {
		Data  enrichment.BatchResponse `json:"data"`
		Error string                   `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&workerResp); err != nil && err != io.EOF {
		return enrichment.BatchResponse{}, fmt.Errorf("could not decode worker response: %w", err)
	}
	if workerResp.Error != "" {
		return enrichment.BatchResponse{}, fmt.Errorf("worker error: %s", workerResp.Error)
	}
	return workerResp.Data, nil
}

func extractWorkerError(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, maxErrorBody))
	if err != nil || len(bytes.TrimSpace(data)) == 0 {
		return "worker returned an error"
	}

	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	return strings.TrimSpace(string(data))
}

var _ enrichment.Client = (*WorkerClient)(nil)
