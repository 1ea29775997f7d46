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

// RecipesRepository describes persistence operations for enrichment recipes.
type RecipesRepository interface {
	Save(ctx context.Context, recipe *entity.Recipe) error
	Get(ctx context.Context, id uuid.UUID) (*entity.Recipe, error)
	GetBySlug(ctx context.Context, slug string) (*entity.Recipe, error)
	List(ctx context.Context) ([]entity.Recipe, error)
}

// PGXRecipesRepository implements RecipesRepository using pgx.
type PGXRecipesRepository struct {
	pool pgxPool
}

// NewPGXRecipesRepository wires a pgx backed repository.
func NewPGXRecipesRepository(pool *pgxpool.Pool) *PGXRecipesRepository {
	return &PGXRecipesRepository{pool: pool}
}

const recipeColumns = `id, slug, name, steps, email_subject, email_body, created_at, updated_at`

// Save inserts or replaces the whole recipe in a single statement.
func (r *PGXRecipesRepository) Save(ctx context.Context, recipe *entity.Recipe) error {
	if recipe == nil {
		return fmt.Errorf("recipe payload is nil")
	}
	if recipe.ID == uuid.Nil {
		recipe.ID = uuid.New()
	}

	steps := recipe.Steps
	if steps == nil {
		steps = []entity.Step{}
	}
	stepsJSON, err := json.Marshal(steps)
	if err != nil {
		return fmt.Errorf("encode recipe steps: %w", err)
	}

	var subject, body *string
	if recipe.EmailTemplate != nil {
		subject = &recipe.EmailTemplate.Subject
		body = &recipe.EmailTemplate.Body
	}

	row := r.pool.QueryRow(ctx, `
        INSERT INTO recipes (id, slug, name, steps, email_subject, email_body, updated_at)
        VALUES ($1, $2, $3, $4::jsonb, $5, $6, NOW())
        ON CONFLICT (id) DO UPDATE SET
            slug = EXCLUDED.slug,
            name = EXCLUDED.name,
            steps = EXCLUDED.steps,
            email_subject = EXCLUDED.email_subject,
            email_body = EXCLUDED.email_body,
            updated_at = NOW()
        RETURNING created_at, updated_at
    `, recipe.ID, recipe.Slug, recipe.Name, string(stepsJSON), subject, body)

	if err := row.Scan(&recipe.CreatedAt, &recipe.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrSlugTaken, recipe.Slug)
		}
		return fmt.Errorf("save recipe: %w", err)
	}
	return nil
}

// Get fetches a recipe by identifier.
func (r *PGXRecipesRepository) Get(ctx context.Context, id uuid.UUID) (*entity.Recipe, error) {
	return r.getOne(ctx, `SELECT `+recipeColumns+` FROM recipes WHERE id = $1`, id)
}

// GetBySlug fetches a recipe by its slug.
func (r *PGXRecipesRepository) GetBySlug(ctx context.Context, slug string) (*entity.Recipe, error) {
	return r.getOne(ctx, `SELECT `+recipeColumns+` FROM recipes WHERE slug = $1`, slug)
}

// List returns all recipes, most recently updated first.
func (r *PGXRecipesRepository) List(ctx context.Context) ([]entity.Recipe, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+recipeColumns+` FROM recipes ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list recipes: %w", err)
	}
	defer rows.Close()

	var recipes []entity.Recipe
	for rows.Next() {
		recipe, err := scanRecipe(rows)
		if err != nil {
			return nil, err
		}
		recipes = append(recipes, recipe)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recipes: %w", err)
	}
	return recipes, nil
}

func (r *PGXRecipesRepository) getOne(ctx context.Context, query string, arg any) (*entity.Recipe, error) {
	recipe, err := scanRecipe(r.pool.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &recipe, nil
}

func scanRecipe(row pgx.Row) (entity.Recipe, error) {
	var (
		recipe  entity.Recipe
		steps   []byte
		subject *string
		body    *string
	)
	if err := row.Scan(&recipe.ID, &recipe.Slug, &recipe.Name, &steps, &subject, &body, &recipe.CreatedAt, &recipe.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return recipe, err
		}
		return recipe, fmt.Errorf("scan recipe row: %w", err)
	}
	if len(steps) > 0 {
		if err := json.Unmarshal(steps, &recipe.Steps); err != nil {
			return recipe, fmt.Errorf("decode recipe steps: %w", err)
		}
	}
	if subject != nil || body != nil {
		recipe.EmailTemplate = &entity.EmailTemplate{}
		if subject != nil {
			recipe.EmailTemplate.Subject = *subject
		}
		if body != nil {
			recipe.EmailTemplate.Body = *body
		}
	}
	return recipe, nil
}
