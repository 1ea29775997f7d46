package service

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/octobees/enrichment-pipeline/internal/redact"
	"github.com/octobees/enrichment-pipeline/internal/service/enrichment"
	"github.com/octobees/enrichment-pipeline/internal/service/prefilter"
)

// RunKind distinguishes recipe runs from connection qualification.
type RunKind string

const (
	RunKindRecipe    RunKind = "recipe"
	RunKindQualifier RunKind = "qualifier"
)

// RunState is the latest known state of a list's run.
type RunState struct {
	RunID      string              `json:"run_id"`
	ListID     uuid.UUID           `json:"list_id"`
	RecipeID   *uuid.UUID          `json:"recipe_id,omitempty"`
	Kind       RunKind             `json:"kind"`
	Active     bool                `json:"active"`
	Progress   enrichment.Progress `json:"progress"`
	Prefilter  *prefilter.Summary  `json:"prefilter,omitempty"`
	Done       int                 `json:"done"`
	Failed     int                 `json:"failed"`
	Error      string              `json:"error,omitempty"`
	StartedAt  time.Time           `json:"started_at"`
	FinishedAt *time.Time          `json:"finished_at,omitempty"`
}

// RunTracker records the progress of runs, keyed by list. HTTP handlers read it
// while run goroutines write to it.
type RunTracker struct {
	mu    sync.RWMutex
	runs  map[uuid.UUID]RunState
	holds map[uuid.UUID]int
	now   func() time.Time
}

// NewRunTracker creates an empty tracker.
func NewRunTracker() *RunTracker {
	return &RunTracker{
		runs:  make(map[uuid.UUID]RunState),
		holds: make(map[uuid.UUID]int),
		now:   time.Now,
	}
}

// Begin registers a new active run for listID. Only one run per list may be active.
func (t *RunTracker) Begin(listID uuid.UUID, kind RunKind, recipeID *uuid.UUID) (RunState, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if existing, ok := t.runs[listID]; ok && existing.Active {
		return existing, ErrRunInProgress
	}
	if t.holds[listID] > 0 {
		return RunState{}, ErrListBusy
	}
	id := ulid.Make().String()
	state := RunState{
		RunID:     id,
		ListID:    listID,
		RecipeID:  recipeID,
		Kind:      kind,
		Active:    true,
		Progress:  enrichment.Progress{RunID: id},
		StartedAt: t.now(),
	}
	t.runs[listID] = state
	return state, nil
}

// Hold blocks new runs on listID until release is called. It fails with
// ErrRunInProgress when a run is already active. Holds may overlap.
func (t *RunTracker) Hold(listID uuid.UUID) (release func(), err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if state, ok := t.runs[listID]; ok && state.Active {
		return nil, ErrRunInProgress
	}
	t.holds[listID]++

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			defer t.mu.Unlock()
			if t.holds[listID]--; t.holds[listID] <= 0 {
				delete(t.holds, listID)
			}
		})
	}, nil
}

// Update stores the latest progress snapshot for listID.
func (t *RunTracker) Update(listID uuid.UUID, p enrichment.Progress) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if state, ok := t.runs[listID]; ok {
		state.Progress = p
		t.runs[listID] = state
	}
}

// SetPrefilter attaches the pre-filter summary to the run for listID.
func (t *RunTracker) SetPrefilter(listID uuid.UUID, summary prefilter.Summary) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if state, ok := t.runs[listID]; ok {
		state.Prefilter = &summary
		t.runs[listID] = state
	}
}

// Finish marks the run for listID as complete. A nil report means the run aborted.
func (t *RunTracker) Finish(listID uuid.UUID, report *enrichment.Report, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.finish(listID, report, err)
}

func (t *RunTracker) finish(listID uuid.UUID, report *enrichment.Report, err error) {
	state, ok := t.runs[listID]
	if !ok {
		return
	}
	finished := t.now()
	state.Active = false
	state.FinishedAt = &finished
	if report != nil {
		state.Progress = report.Progress
		state.Done = report.Done
		state.Failed = report.Failed
	}
	if err != nil {
		state.Error = redact.Secrets(err.Error())
	}
	t.runs[listID] = state
}

// Abort finishes listID with err only while runID is still its active run.
func (t *RunTracker) Abort(listID uuid.UUID, runID string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if state, ok := t.runs[listID]; ok && state.Active && state.RunID == runID {
		t.finish(listID, nil, err)
	}
}

// abortPanic ends state's run with the recovered panic value as its error.
func (t *RunTracker) abortPanic(state RunState, rec any) error {
	err := fmt.Errorf("run panicked: %v", rec)
	t.Abort(state.ListID, state.RunID, err)
	return err
}

// Get returns the latest state for listID.
func (t *RunTracker) Get(listID uuid.UUID) (RunState, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	state, ok := t.runs[listID]
	return state, ok
}

// Active reports whether listID has a run in flight.
func (t *RunTracker) Active(listID uuid.UUID) bool {
	state, ok := t.Get(listID)
	return ok && state.Active
}
