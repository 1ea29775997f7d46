package enrichment

import "context"

// Progress is a snapshot of a run's counters, updated after every remote batch.
//
// Total counts units of remote work: one per row per remote group. A run without
// remote groups counts one unit per row. Rows that failed in an earlier group are
// still counted as processed when a later group skips them.
type Progress struct {
	RunID     string `json:"run_id"`
	Group     int    `json:"group"`
	Groups    int    `json:"groups"`
	Total     int    `json:"total"`
	Processed int    `json:"processed"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
}

func newProgress(runID string, rows, remoteGroups int) Progress {
	total := rows * remoteGroups
	if remoteGroups == 0 {
		total = rows
	}
	return Progress{
		RunID:  runID,
		Groups: remoteGroups,
		Total:  total,
	}
}

// Done reports whether every unit of work has been processed.
func (p Progress) Done() bool {
	return p.Processed >= p.Total
}

type runIDKey struct{}

// ContextWithRunID makes Dispatcher.Run use id instead of generating one.
func ContextWithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

// RunIDFromContext returns the run identifier stored by ContextWithRunID.
func RunIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}
