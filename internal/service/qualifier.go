package service

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/octobees/enrichment-pipeline/internal/entity"
	"github.com/octobees/enrichment-pipeline/internal/repository"
	"github.com/octobees/enrichment-pipeline/internal/service/enrichment"
	"github.com/octobees/enrichment-pipeline/internal/service/prefilter"
)

// Output fields written by connection qualification.
const (
	FieldProfileSummary = "profile_summary"
	FieldQualified      = "qualified"
	FieldScore          = "score"
	FieldReason         = "reason"
)

// QualifyReport is the outcome of a qualification run.
type QualifyReport struct {
	enrichment.Report
	Prefilter prefilter.Summary `json:"prefilter"`
}

// QualifierService imports LinkedIn connections and qualifies them against criteria.
type QualifierService struct {
	contacts *ContactsService
	repo     repository.ContactsRepository
	enricher Enricher
	tracker  *RunTracker
	logger   *zap.Logger
}

// NewQualifierService creates a new instance of QualifierService.
func NewQualifierService(contacts *ContactsService, repo repository.ContactsRepository, enricher Enricher, tracker *RunTracker, logger *zap.Logger) *QualifierService {
	if tracker == nil {
		tracker = NewRunTracker()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QualifierService{
		contacts: contacts,
		repo:     repo,
		enricher: enricher,
		tracker:  tracker,
		logger:   logger,
	}
}

// ImportConnections imports a LinkedIn "Connections" export into listID.
func (s *QualifierService) ImportConnections(ctx context.Context, listID uuid.UUID, r io.Reader) (ImportSummary, error) {
	return s.contacts.ImportCSV(ctx, listID, r, FormatLinkedIn)
}

// Run pre-filters listID with criteria, qualifies the survivors remotely and
// persists their results. Rows removed by the pre-filter are left untouched.
func (s *QualifierService) Run(ctx context.Context, listID uuid.UUID, criteria entity.QualificationCriteria) (QualifyReport, error) {
	contacts, err := s.prepare(ctx, listID, criteria)
	if err != nil {
		return QualifyReport{}, err
	}
	state, err := s.tracker.Begin(listID, RunKindQualifier, nil)
	if err != nil {
		return QualifyReport{}, err
	}
	defer func() {
		if rec := recover(); rec != nil {
			s.tracker.abortPanic(state, rec)
			panic(rec)
		}
	}()
	return s.execute(ctx, state, contacts, criteria)
}

// StartRun validates the run synchronously and executes it in the background.
func (s *QualifierService) StartRun(ctx context.Context, listID uuid.UUID, criteria entity.QualificationCriteria) (RunState, error) {
	contacts, err := s.prepare(ctx, listID, criteria)
	if err != nil {
		return RunState{}, err
	}
	state, err := s.tracker.Begin(listID, RunKindQualifier, nil)
	if err != nil {
		return state, err
	}

	runCtx := context.WithoutCancel(ctx)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				err := s.tracker.abortPanic(state, rec)
				s.logger.Error("qualifier run panicked", zap.String("run_id", state.RunID), zap.Error(err), zap.Stack("stack"))
			}
		}()
		if _, err := s.execute(runCtx, state, contacts, criteria); err != nil {
			s.logger.Error("qualifier run failed", zap.String("run_id", state.RunID), zap.Error(err))
		}
	}()
	return state, nil
}

func (s *QualifierService) prepare(ctx context.Context, listID uuid.UUID, criteria entity.QualificationCriteria) ([]entity.Contact, error) {
	if err := ValidateCriteria(criteria); err != nil {
		return nil, err
	}
	contacts, err := s.repo.ListByList(ctx, listID)
	if err != nil {
		return nil, fmt.Errorf("load list: %w", err)
	}
	if len(contacts) == 0 {
		return nil, ErrEmptyList
	}
	return contacts, nil
}

func (s *QualifierService) execute(ctx context.Context, state RunState, contacts []entity.Contact, criteria entity.QualificationCriteria) (QualifyReport, error) {
	retained, summary := prefilter.ApplyWithSummary(contacts, criteria)
	s.tracker.SetPrefilter(state.ListID, summary)
	s.logger.Info("connections pre-filtered",
		zap.String("run_id", state.RunID),
		zap.Int("input", summary.Input),
		zap.Int("retained", summary.Retained),
		zap.Int("excluded_title", summary.ExcludedTitle),
		zap.Int("excluded_company", summary.ExcludedCompany),
		zap.Int("excluded_date", summary.ExcludedDate),
	)

	ctx = enrichment.ContextWithRunID(ctx, state.RunID)
	report, err := s.enricher.Run(ctx, QualificationSteps(criteria), retained, func(p enrichment.Progress) {
		s.tracker.Update(state.ListID, p)
	})
	if err != nil {
		s.tracker.Finish(state.ListID, nil, err)
		return QualifyReport{}, fmt.Errorf("qualify connections: %w", err)
	}

	out := QualifyReport{Report: report, Prefilter: summary}
	if err := persistReport(ctx, s.repo, report); err != nil {
		s.tracker.Finish(state.ListID, &report, err)
		return out, err
	}
	s.tracker.Finish(state.ListID, &report, nil)
	return out, nil
}

// ValidateCriteria requires something for the model to qualify against.
func ValidateCriteria(criteria entity.QualificationCriteria) error {
	if len(nonEmpty(criteria.TargetTitles)) == 0 &&
		len(nonEmpty(criteria.TargetIndustries)) == 0 &&
		strings.TrimSpace(criteria.Guidance) == "" {
		return fmt.Errorf("%w: target titles, target industries or guidance are required", ErrInvalidCriteria)
	}
	return nil
}

// QualificationSteps builds the recipe used to qualify one connection: a local
// profile summary followed by a structured extraction of the verdict.
func QualificationSteps(criteria entity.QualificationCriteria) []entity.Step {
	return []entity.Step{
		{
			ID:   "profile-summary",
			Type: entity.StepTransform,
			Transform: &entity.TransformConfig{Operations: []entity.TransformOp{{
				Kind:     entity.TransformTemplate,
				Output:   FieldProfileSummary,
				Template: "{{first_name}} {{last_name}}, {{title}} at {{company}}",
			}}},
		},
		{
			ID:   "qualify",
			Type: entity.StepAIExtract,
			Extract: &entity.ExtractConfig{
				SourceField: FieldProfileSummary,
				Fields:      []string{FieldQualified, FieldScore, FieldReason},
				Prompt:      CriteriaPrompt(criteria),
			},
		},
	}
}

// CriteriaPrompt renders criteria as guidance for the qualification step.
func CriteriaPrompt(criteria entity.QualificationCriteria) string {
	var b strings.Builder
	b.WriteString("Decide whether this LinkedIn connection is a good prospect.\n")
	writeList := func(label string, values []string) {
		if values = nonEmpty(values); len(values) > 0 {
			b.WriteString(label + ": " + strings.Join(values, ", ") + "\n")
		}
	}
	writeList("Target titles", criteria.TargetTitles)
	writeList("Target industries", criteria.TargetIndustries)
	writeList("Avoid titles", criteria.ExcludeTitles)
	writeList("Avoid companies", criteria.ExcludeCompanies)
	if guidance := strings.TrimSpace(criteria.Guidance); guidance != "" {
		b.WriteString("Additional guidance: " + guidance + "\n")
	}
	b.WriteString("Set qualified to \"yes\" or \"no\", score to an integer from 0 to 100, and reason to one sentence.")
	return b.String()
}

func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
