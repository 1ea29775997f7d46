package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/octobees/enrichment-pipeline/internal/entity"
)

// ContactsRepository describes persistence operations for imported contacts.
type ContactsRepository interface {
	BulkInsert(ctx context.Context, contacts []entity.Contact) (int, error)
	ListByList(ctx context.Context, listID uuid.UUID) ([]entity.Contact, error)
	Get(ctx context.Context, id uuid.UUID) (*entity.Contact, error)
	SaveEnrichment(ctx context.Context, updates []EnrichmentUpdate) error
	ResetList(ctx context.Context, listID uuid.UUID) (int64, error)
	DeleteList(ctx context.Context, listID uuid.UUID) (int64, error)
}

// EnrichmentUpdate is the terminal state of one contact after a run.
// Outputs are merged into the stored step outputs.
type EnrichmentUpdate struct {
	ContactID uuid.UUID
	Outputs   map[string]string
	Status    entity.EnrichmentStatus
	Error     string
}

// PGXContactsRepository implements ContactsRepository using pgx.
type PGXContactsRepository struct {
	pool pgxPool
}

// NewPGXContactsRepository wires a pgx backed repository.
func NewPGXContactsRepository(pool *pgxpool.Pool) *PGXContactsRepository {
	return &PGXContactsRepository{pool: pool}
}

const contactColumns = `id, list_id, first_name, last_name, email, company, title, profile_url,
            custom_fields, step_outputs, enrichment_status, enrichment_error, position, created_at, updated_at`

const insertContactSQL = `
        INSERT INTO contacts (
            id, list_id, first_name, last_name, email, company, title, profile_url,
            custom_fields, step_outputs, enrichment_status, position
        ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9::jsonb,'{}'::jsonb,$10,$11)
    `

// BulkInsert stores contacts in one transaction. Missing IDs are generated.
func (r *PGXContactsRepository) BulkInsert(ctx context.Context, contacts []entity.Contact) (int, error) {
	if len(contacts) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for i := range contacts {
		c := &contacts[i]
		if c.ListID == uuid.Nil {
			return 0, fmt.Errorf("contact %d: list id is required", i)
		}
		if c.ID == uuid.Nil {
			c.ID = uuid.New()
		}
		if c.Status == "" {
			c.Status = entity.StatusNotStarted
		}
		custom, err := marshalFields(c.CustomFields)
		if err != nil {
			return 0, fmt.Errorf("encode custom fields: %w", err)
		}
		batch.Queue(insertContactSQL,
			c.ID, c.ListID, c.FirstName, c.LastName, c.Email, c.Company, c.Title, c.ProfileURL,
			custom, string(c.Status), c.Position,
		)
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, fmt.Errorf("start bulk insert tx: %w", err)
	}
	defer tx.Rollback(ctx)

	results := tx.SendBatch(ctx, batch)
	for i := range contacts {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return 0, fmt.Errorf("insert contact %d: %w", i, err)
		}
	}
	if err := results.Close(); err != nil {
		return 0, fmt.Errorf("close insert batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit bulk insert tx: %w", err)
	}
	return len(contacts), nil
}

// ListByList returns every contact of a list in import order.
func (r *PGXContactsRepository) ListByList(ctx context.Context, listID uuid.UUID) ([]entity.Contact, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+contactColumns+` FROM contacts WHERE list_id = $1 ORDER BY position ASC, created_at ASC`, listID)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	defer rows.Close()

	var contacts []entity.Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		contacts = append(contacts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate contacts: %w", err)
	}
	return contacts, nil
}

// Get fetches a single contact.
func (r *PGXContactsRepository) Get(ctx context.Context, id uuid.UUID) (*entity.Contact, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+contactColumns+` FROM contacts WHERE id = $1`, id)
	c, err := scanContact(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

const saveEnrichmentSQL = `
        UPDATE contacts SET
            step_outputs = step_outputs || $2::jsonb,
            enrichment_status = $3,
            enrichment_error = $4,
            updated_at = NOW()
        WHERE id = $1
    `

// SaveEnrichment persists run results in one transaction.
func (r *PGXContactsRepository) SaveEnrichment(ctx context.Context, updates []EnrichmentUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, u := range updates {
		if u.ContactID == uuid.Nil {
			return fmt.Errorf("enrichment update: contact id is required")
		}
		outputs, err := marshalFields(u.Outputs)
		if err != nil {
			return fmt.Errorf("encode step outputs: %w", err)
		}
		batch.Queue(saveEnrichmentSQL, u.ContactID, outputs, string(u.Status), u.Error)
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("start save enrichment tx: %w", err)
	}
	defer tx.Rollback(ctx)

	results := tx.SendBatch(ctx, batch)
	for _, u := range updates {
		tag, err := results.Exec()
		if err != nil {
			results.Close()
			return fmt.Errorf("save enrichment for %s: %w", u.ContactID, err)
		}
		if tag.RowsAffected() == 0 {
			results.Close()
			return fmt.Errorf("save enrichment for %s: %w", u.ContactID, ErrNotFound)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("close enrichment batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit save enrichment tx: %w", err)
	}
	return nil
}

// ResetList clears step outputs and reverts every contact of the list to not_started.
func (r *PGXContactsRepository) ResetList(ctx context.Context, listID uuid.UUID) (int64, error) {
	cmd, err := r.pool.Exec(ctx, `
        UPDATE contacts SET
            step_outputs = '{}'::jsonb,
            enrichment_status = $2,
            enrichment_error = '',
            updated_at = NOW()
        WHERE list_id = $1
    `, listID, string(entity.StatusNotStarted))
	if err != nil {
		return 0, fmt.Errorf("reset contacts: %w", err)
	}
	return cmd.RowsAffected(), nil
}

// DeleteList removes a list and all of its contacts.
func (r *PGXContactsRepository) DeleteList(ctx context.Context, listID uuid.UUID) (int64, error) {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM contacts WHERE list_id = $1`, listID)
	if err != nil {
		return 0, fmt.Errorf("delete contacts: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return 0, ErrNotFound
	}
	return cmd.RowsAffected(), nil
}

func scanContact(row pgx.Row) (entity.Contact, error) {
	var (
		c       entity.Contact
		custom  []byte
		outputs []byte
		status  string
	)
	if err := row.Scan(
		&c.ID, &c.ListID, &c.FirstName, &c.LastName, &c.Email, &c.Company, &c.Title, &c.ProfileURL,
		&custom, &outputs, &status, &c.Error, &c.Position, &c.CreatedAt, &c.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c, err
		}
		return c, fmt.Errorf("scan contact row: %w", err)
	}
	c.Status = entity.EnrichmentStatus(status)

	var err error
	if c.CustomFields, err = unmarshalFields(custom); err != nil {
		return c, fmt.Errorf("decode custom fields: %w", err)
	}
	if c.StepOutputs, err = unmarshalFields(outputs); err != nil {
		return c, fmt.Errorf("decode step outputs: %w", err)
	}
	return c, nil
}

func marshalFields(fields map[string]string) (string, error) {
	if len(fields) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func unmarshalFields(raw []byte) (map[string]string, error) {
	out := map[string]string{}
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
