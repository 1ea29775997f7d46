package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/octobees/enrichment-pipeline/internal/entity"
	"github.com/octobees/enrichment-pipeline/internal/repository"
	"github.com/octobees/enrichment-pipeline/internal/service/csvio"
)

// ImportFormat selects how an uploaded CSV is read.
type ImportFormat string

const (
	// FormatGeneric is a plain CSV whose first line is the header.
	FormatGeneric ImportFormat = "generic"
	// FormatLinkedIn is a LinkedIn "Connections" export with a notes preamble.
	FormatLinkedIn ImportFormat = "linkedin"
)

// ParseImportFormat maps a request value to an ImportFormat, defaulting to generic.
func ParseImportFormat(value string) (ImportFormat, error) {
	switch ImportFormat(strings.ToLower(strings.TrimSpace(value))) {
	case "", FormatGeneric:
		return FormatGeneric, nil
	case FormatLinkedIn:
		return FormatLinkedIn, nil
	}
	return "", CSVValidationError{Message: fmt.Sprintf("unsupported format %q", value)}
}

// ImportSummary reports the outcome of a CSV import.
type ImportSummary struct {
	ListID          uuid.UUID `json:"list_id"`
	Imported        int       `json:"imported"`
	StandardColumns []string  `json:"standard_columns"`
	CustomColumns   []string  `json:"custom_columns"`
}

// ContactsService imports, lists, exports and resets contact lists.
type ContactsService struct {
	repo       repository.ContactsRepository
	normalizer *ContactNormalizer
	tracker    *RunTracker
	logger     *zap.Logger
}

// NewContactsService creates a new instance of ContactsService.
func NewContactsService(repo repository.ContactsRepository, normalizer *ContactNormalizer, tracker *RunTracker, logger *zap.Logger) *ContactsService {
	if normalizer == nil {
		normalizer = NewContactNormalizer("")
	}
	if tracker == nil {
		tracker = NewRunTracker()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ContactsService{repo: repo, normalizer: normalizer, tracker: tracker, logger: logger}
}

// ImportCSV parses r and appends its rows to listID in file order.
func (s *ContactsService) ImportCSV(ctx context.Context, listID uuid.UUID, r io.Reader, format ImportFormat) (ImportSummary, error) {
	if listID == uuid.Nil {
		return ImportSummary{}, CSVValidationError{Message: "list id is required"}
	}
	release, err := s.tracker.Hold(listID)
	if err != nil {
		return ImportSummary{}, err
	}
	defer release()

	table, err := csvio.ReadAll(r, format == FormatLinkedIn)
	if err != nil {
		return ImportSummary{}, fmt.Errorf("read csv: %w", err)
	}
	contacts, summary, err := ContactsFromTable(table, listID)
	if err != nil {
		return ImportSummary{}, err
	}

	existing, err := s.repo.ListByList(ctx, listID)
	if err != nil {
		return ImportSummary{}, fmt.Errorf("load list: %w", err)
	}
	for i := range contacts {
		contacts[i].Position = len(existing) + i
	}
	s.normalizer.NormalizeAll(ctx, contacts)

	inserted, err := s.repo.BulkInsert(ctx, contacts)
	if err != nil {
		return ImportSummary{}, fmt.Errorf("store contacts: %w", err)
	}
	summary.Imported = inserted

	s.logger.Info("contacts imported",
		zap.String("list_id", listID.String()),
		zap.String("format", string(format)),
		zap.Int("rows", inserted),
		zap.Int("custom_columns", len(summary.CustomColumns)),
	)
	return summary, nil
}

// ContactsFromTable converts a parsed table into not-started contacts for listID.
func ContactsFromTable(table csvio.Table, listID uuid.UUID) ([]entity.Contact, ImportSummary, error) {
	if len(table.Header) == 0 {
		return nil, ImportSummary{}, CSVValidationError{Message: "csv file is empty"}
	}
	if len(table.Rows) == 0 {
		return nil, ImportSummary{}, CSVValidationError{Message: "no rows found"}
	}

	summary := ImportSummary{ListID: listID}
	for _, col := range csvio.MapColumns(table.Header) {
		if col.Standard {
			summary.StandardColumns = append(summary.StandardColumns, col.Key)
		} else {
			summary.CustomColumns = append(summary.CustomColumns, col.Key)
		}
	}

	now := time.Now().UTC()
	records := table.Records()
	contacts := make([]entity.Contact, 0, len(records))
	for i, rec := range records {
		c := entity.Contact{
			ID:           uuid.New(),
			ListID:       listID,
			CustomFields: rec.Custom,
			StepOutputs:  map[string]string{},
			Status:       entity.StatusNotStarted,
			Position:     i,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		for key, value := range rec.Standard {
			c.SetStandard(key, value)
		}
		contacts = append(contacts, c)
	}
	return contacts, summary, nil
}

// List returns the contacts of listID in import order.
func (s *ContactsService) List(ctx context.Context, listID uuid.UUID) ([]entity.Contact, error) {
	return s.repo.ListByList(ctx, listID)
}

// ExportCSV writes listID as CSV to w. When recipe carries an email template the
// rendered subject and body are appended to every row.
func (s *ContactsService) ExportCSV(ctx context.Context, w io.Writer, listID uuid.UUID, recipe *entity.Recipe) error {
	contacts, err := s.repo.ListByList(ctx, listID)
	if err != nil {
		return fmt.Errorf("load list: %w", err)
	}
	var tmpl *entity.EmailTemplate
	if recipe != nil {
		tmpl = recipe.EmailTemplate
	}
	header, rows := ExportTable(contacts, tmpl)
	return csvio.Write(w, header, rows)
}

// Reset clears step outputs and reverts every contact of listID to not started.
func (s *ContactsService) Reset(ctx context.Context, listID uuid.UUID) (int64, error) {
	release, err := s.tracker.Hold(listID)
	if err != nil {
		return 0, err
	}
	defer release()
	n, err := s.repo.ResetList(ctx, listID)
	if err != nil {
		return 0, fmt.Errorf("reset list: %w", err)
	}
	s.logger.Info("list reset", zap.String("list_id", listID.String()), zap.Int64("contacts", n))
	return n, nil
}

// DeleteList removes every contact of listID.
func (s *ContactsService) DeleteList(ctx context.Context, listID uuid.UUID) (int64, error) {
	release, err := s.tracker.Hold(listID)
	if err != nil {
		return 0, err
	}
	defer release()
	return s.repo.DeleteList(ctx, listID)
}
