package enrichment

import (
	"context"

	"github.com/octobees/enrichment-pipeline/internal/entity"
)

// Client is the remote enrichment endpoint. One call processes one batch of rows
// through every step of a remote group.
type Client interface {
	RunBatch(ctx context.Context, req BatchRequest) (BatchResponse, error)
}

// ClientFunc adapts a function to the Client interface.
type ClientFunc func(ctx context.Context, req BatchRequest) (BatchResponse, error)

// RunBatch implements Client.
func (f ClientFunc) RunBatch(ctx context.Context, req BatchRequest) (BatchResponse, error) {
	return f(ctx, req)
}

// BatchRequest is the payload sent to the remote endpoint.
type BatchRequest struct {
	Rows  []BatchRow    `json:"rows"`
	Steps []entity.Step `json:"steps"`
}

// BatchRow carries one row's current field mapping.
type BatchRow struct {
	ID     string `json:"id"`
	Fields Fields `json:"fields"`
}

// BatchResponse holds one result per input row.
type BatchResponse struct {
	Results []BatchResult `json:"results"`
}

// BatchResult is either a set of outputs or a per-row error.
type BatchResult struct {
	ContactID string            `json:"contactId"`
	Outputs   map[string]string `json:"outputs,omitempty"`
	Error     string            `json:"error,omitempty"`
}

// TransientError marks a whole-batch failure as retryable.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	if e == nil || e.Err == nil {
		return "transient error"
	}
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
