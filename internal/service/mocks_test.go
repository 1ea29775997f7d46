package service

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/octobees/enrichment-pipeline/internal/entity"
	"github.com/octobees/enrichment-pipeline/internal/repository"
)

type mockContactsRepository struct {
	mu       sync.Mutex
	bulk     func(ctx context.Context, contacts []entity.Contact) (int, error)
	list     func(ctx context.Context, listID uuid.UUID) ([]entity.Contact, error)
	get      func(ctx context.Context, id uuid.UUID) (*entity.Contact, error)
	save     func(ctx context.Context, updates []repository.EnrichmentUpdate) error
	reset    func(ctx context.Context, listID uuid.UUID) (int64, error)
	deleteFn func(ctx context.Context, listID uuid.UUID) (int64, error)
	saved    [][]repository.EnrichmentUpdate
}

func (m *mockContactsRepository) BulkInsert(ctx context.Context, contacts []entity.Contact) (int, error) {
	if m.bulk != nil {
		return m.bulk(ctx, contacts)
	}
	return 0, errors.New("bulk insert not implemented")
}

func (m *mockContactsRepository) ListByList(ctx context.Context, listID uuid.UUID) ([]entity.Contact, error) {
	if m.list != nil {
		return m.list(ctx, listID)
	}
	return nil, errors.New("list not implemented")
}

func (m *mockContactsRepository) Get(ctx context.Context, id uuid.UUID) (*entity.Contact, error) {
	if m.get != nil {
		return m.get(ctx, id)
	}
	return nil, errors.New("get not implemented")
}

func (m *mockContactsRepository) SaveEnrichment(ctx context.Context, updates []repository.EnrichmentUpdate) error {
	m.mu.Lock()
	m.saved = append(m.saved, updates)
	m.mu.Unlock()
	if m.save != nil {
		return m.save(ctx, updates)
	}
	return nil
}

func (m *mockContactsRepository) ResetList(ctx context.Context, listID uuid.UUID) (int64, error) {
	if m.reset != nil {
		return m.reset(ctx, listID)
	}
	return 0, errors.New("reset not implemented")
}

func (m *mockContactsRepository) DeleteList(ctx context.Context, listID uuid.UUID) (int64, error) {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, listID)
	}
	return 0, errors.New("delete not implemented")
}

func (m *mockContactsRepository) savedUpdates() [][]repository.EnrichmentUpdate {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saved
}

type mockRecipesRepository struct {
	save      func(ctx context.Context, recipe *entity.Recipe) error
	get       func(ctx context.Context, id uuid.UUID) (*entity.Recipe, error)
	getBySlug func(ctx context.Context, slug string) (*entity.Recipe, error)
	list      func(ctx context.Context) ([]entity.Recipe, error)
}

func (m *mockRecipesRepository) Save(ctx context.Context, recipe *entity.Recipe) error {
	if m.save != nil {
		return m.save(ctx, recipe)
	}
	return errors.New("save not implemented")
}

func (m *mockRecipesRepository) Get(ctx context.Context, id uuid.UUID) (*entity.Recipe, error) {
	if m.get != nil {
		return m.get(ctx, id)
	}
	return nil, errors.New("get not implemented")
}

func (m *mockRecipesRepository) GetBySlug(ctx context.Context, slug string) (*entity.Recipe, error) {
	if m.getBySlug != nil {
		return m.getBySlug(ctx, slug)
	}
	return nil, errors.New("get by slug not implemented")
}

func (m *mockRecipesRepository) List(ctx context.Context) ([]entity.Recipe, error) {
	if m.list != nil {
		return m.list(ctx)
	}
	return nil, errors.New("list not implemented")
}
