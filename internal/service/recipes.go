package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/octobees/enrichment-pipeline/internal/entity"
	"github.com/octobees/enrichment-pipeline/internal/repository"
	"github.com/octobees/enrichment-pipeline/internal/service/enrichment"
)

// Enricher runs steps over contacts. *enrichment.Dispatcher satisfies it.
type Enricher interface {
	Run(ctx context.Context, steps []entity.Step, contacts []entity.Contact, onProgress func(enrichment.Progress)) (enrichment.Report, error)
}

// Preview is one contact's rendered email with unresolved placeholders listed.
type Preview struct {
	ContactID  uuid.UUID         `json:"contact_id"`
	Subject    string            `json:"subject"`
	Body       string            `json:"body"`
	Unresolved []string          `json:"unresolved"`
	Fields     map[string]string `json:"fields"`
}

// RecipesService stores recipes and runs them over contact lists.
type RecipesService struct {
	recipes  repository.RecipesRepository
	contacts repository.ContactsRepository
	enricher Enricher
	tracker  *RunTracker
	logger   *zap.Logger
}

// NewRecipesService creates a new instance of RecipesService.
func NewRecipesService(recipes repository.RecipesRepository, contacts repository.ContactsRepository, enricher Enricher, tracker *RunTracker, logger *zap.Logger) *RecipesService {
	if tracker == nil {
		tracker = NewRunTracker()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecipesService{
		recipes:  recipes,
		contacts: contacts,
		enricher: enricher,
		tracker:  tracker,
		logger:   logger,
	}
}

// Save validates and stores recipe in one write. A missing slug is derived from the name.
func (s *RecipesService) Save(ctx context.Context, recipe *entity.Recipe) error {
	if recipe == nil {
		return fmt.Errorf("%w: recipe is required", ErrInvalidRecipe)
	}
	recipe.Name = strings.TrimSpace(recipe.Name)
	recipe.Slug = strings.TrimSpace(recipe.Slug)
	if recipe.Slug == "" {
		recipe.Slug = Slugify(recipe.Name)
	}
	if err := recipe.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRecipe, err)
	}
	if recipe.Slug == "" {
		return fmt.Errorf("%w: slug is required", ErrInvalidRecipe)
	}
	return s.recipes.Save(ctx, recipe)
}

// Get returns the recipe with the given id.
func (s *RecipesService) Get(ctx context.Context, id uuid.UUID) (*entity.Recipe, error) {
	return s.recipes.Get(ctx, id)
}

// List returns every stored recipe, most recently updated first.
func (s *RecipesService) List(ctx context.Context) ([]entity.Recipe, error) {
	return s.recipes.List(ctx)
}

// Run executes recipeID over listID and persists the results before returning.
func (s *RecipesService) Run(ctx context.Context, recipeID, listID uuid.UUID) (enrichment.Report, error) {
	recipe, contacts, err := s.prepare(ctx, recipeID, listID)
	if err != nil {
		return enrichment.Report{}, err
	}
	state, err := s.tracker.Begin(listID, RunKindRecipe, &recipe.ID)
	if err != nil {
		return enrichment.Report{}, err
	}
	defer func() {
		if rec := recover(); rec != nil {
			s.tracker.abortPanic(state, rec)
			panic(rec)
		}
	}()
	return s.execute(ctx, state, recipe, contacts)
}

// StartRun validates the run synchronously and executes it in the background.
// The returned state carries the run id; progress is read through Progress.
func (s *RecipesService) StartRun(ctx context.Context, recipeID, listID uuid.UUID) (RunState, error) {
	recipe, contacts, err := s.prepare(ctx, recipeID, listID)
	if err != nil {
		return RunState{}, err
	}
	state, err := s.tracker.Begin(listID, RunKindRecipe, &recipe.ID)
	if err != nil {
		return state, err
	}

	runCtx := context.WithoutCancel(ctx)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				err := s.tracker.abortPanic(state, rec)
				s.logger.Error("recipe run panicked", zap.String("run_id", state.RunID), zap.Error(err), zap.Stack("stack"))
			}
		}()
		if _, err := s.execute(runCtx, state, recipe, contacts); err != nil {
			s.logger.Error("recipe run failed", zap.String("run_id", state.RunID), zap.Error(err))
		}
	}()
	return state, nil
}

// Progress returns the latest run state for listID.
func (s *RecipesService) Progress(listID uuid.UUID) (RunState, bool) {
	return s.tracker.Get(listID)
}

// Preview renders the recipe's email for one contact, keeping unresolved placeholders
// visible so authors can spot missing fields.
func (s *RecipesService) Preview(ctx context.Context, recipeID, contactID uuid.UUID) (Preview, error) {
	recipe, err := s.recipes.Get(ctx, recipeID)
	if err != nil {
		return Preview{}, fmt.Errorf("load recipe: %w", err)
	}
	contact, err := s.contacts.Get(ctx, contactID)
	if err != nil {
		return Preview{}, fmt.Errorf("load contact: %w", err)
	}

	fields := enrichment.BuildFields(*contact)
	preview := Preview{ContactID: contact.ID, Fields: fields, Unresolved: []string{}}
	if recipe.EmailTemplate == nil {
		return preview, nil
	}
	preview.Subject = enrichment.Interpolate(recipe.EmailTemplate.Subject, fields, true)
	preview.Body = enrichment.Interpolate(recipe.EmailTemplate.Body, fields, true)

	seen := map[string]struct{}{}
	for _, name := range append(
		enrichment.Unresolved(recipe.EmailTemplate.Subject, fields),
		enrichment.Unresolved(recipe.EmailTemplate.Body, fields)...,
	) {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		preview.Unresolved = append(preview.Unresolved, name)
	}
	return preview, nil
}

func (s *RecipesService) prepare(ctx context.Context, recipeID, listID uuid.UUID) (*entity.Recipe, []entity.Contact, error) {
	recipe, err := s.recipes.Get(ctx, recipeID)
	if err != nil {
		return nil, nil, fmt.Errorf("load recipe: %w", err)
	}
	if err := recipe.Validate(); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrInvalidRecipe, err)
	}
	contacts, err := s.contacts.ListByList(ctx, listID)
	if err != nil {
		return nil, nil, fmt.Errorf("load list: %w", err)
	}
	if len(contacts) == 0 {
		return nil, nil, ErrEmptyList
	}
	return recipe, contacts, nil
}

func (s *RecipesService) execute(ctx context.Context, state RunState, recipe *entity.Recipe, contacts []entity.Contact) (enrichment.Report, error) {
	ctx = enrichment.ContextWithRunID(ctx, state.RunID)
	report, err := s.enricher.Run(ctx, recipe.Steps, contacts, func(p enrichment.Progress) {
		s.tracker.Update(state.ListID, p)
	})
	if err != nil {
		s.tracker.Finish(state.ListID, nil, err)
		return enrichment.Report{}, fmt.Errorf("run recipe %s: %w", recipe.Slug, err)
	}

	if err := persistReport(ctx, s.contacts, report); err != nil {
		s.tracker.Finish(state.ListID, &report, err)
		return report, err
	}
	s.tracker.Finish(state.ListID, &report, nil)
	return report, nil
}

// persistReport writes every row's outputs and terminal status in one batch.
func persistReport(ctx context.Context, repo repository.ContactsRepository, report enrichment.Report) error {
	updates := make([]repository.EnrichmentUpdate, 0, len(report.Results))
	for _, res := range report.Results {
		updates = append(updates, repository.EnrichmentUpdate{
			ContactID: res.ContactID,
			Outputs:   res.Outputs,
			Status:    res.Status,
			Error:     res.Error,
		})
	}
	if err := repo.SaveEnrichment(ctx, updates); err != nil {
		return fmt.Errorf("persist results: %w", err)
	}
	return nil
}

// Slugify lowercases s and joins its alphanumeric runs with hyphens.
func Slugify(s string) string {
	var b strings.Builder
	pendingDash := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
			continue
		}
		pendingDash = true
	}
	return b.String()
}

// IsNotFound reports whether err wraps repository.ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, repository.ErrNotFound)
}
