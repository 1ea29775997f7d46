package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/octobees/enrichment-pipeline/internal/entity"
	"github.com/octobees/enrichment-pipeline/internal/repository"
	"github.com/octobees/enrichment-pipeline/internal/service"
	"github.com/octobees/enrichment-pipeline/internal/service/enrichment"
)

type memContactsRepository struct {
	mu       sync.Mutex
	contacts []entity.Contact
	err      error
}

func (m *memContactsRepository) BulkInsert(_ context.Context, contacts []entity.Contact) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	m.contacts = append(m.contacts, contacts...)
	return len(contacts), nil
}

func (m *memContactsRepository) ListByList(_ context.Context, listID uuid.UUID) ([]entity.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var out []entity.Contact
	for _, c := range m.contacts {
		if c.ListID == listID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memContactsRepository) Get(_ context.Context, id uuid.UUID) (*entity.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.contacts {
		if c.ID == id {
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memContactsRepository) SaveEnrichment(_ context.Context, updates []repository.EnrichmentUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range updates {
		for i := range m.contacts {
			if m.contacts[i].ID != u.ContactID {
				continue
			}
			if m.contacts[i].StepOutputs == nil {
				m.contacts[i].StepOutputs = map[string]string{}
			}
			for k, v := range u.Outputs {
				m.contacts[i].StepOutputs[k] = v
			}
			m.contacts[i].Status = u.Status
			m.contacts[i].Error = u.Error
		}
	}
	return nil
}

func (m *memContactsRepository) ResetList(_ context.Context, listID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for i := range m.contacts {
		if m.contacts[i].ListID == listID {
			m.contacts[i].StepOutputs = map[string]string{}
			m.contacts[i].Status = entity.StatusNotStarted
			m.contacts[i].Error = ""
			n++
		}
	}
	return n, nil
}

func (m *memContactsRepository) DeleteList(_ context.Context, listID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.contacts[:0]
	var n int64
	for _, c := range m.contacts {
		if c.ListID == listID {
			n++
			continue
		}
		kept = append(kept, c)
	}
	m.contacts = kept
	if n == 0 {
		return 0, repository.ErrNotFound
	}
	return n, nil
}

func (m *memContactsRepository) snapshot() []entity.Contact {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]entity.Contact, len(m.contacts))
	copy(out, m.contacts)
	return out
}

type memRecipesRepository struct {
	mu      sync.Mutex
	recipes map[uuid.UUID]entity.Recipe
}

func newMemRecipesRepository(recipes ...entity.Recipe) *memRecipesRepository {
	m := &memRecipesRepository{recipes: map[uuid.UUID]entity.Recipe{}}
	for _, r := range recipes {
		m.recipes[r.ID] = r
	}
	return m
}

func (m *memRecipesRepository) Save(_ context.Context, recipe *entity.Recipe) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, r := range m.recipes {
		if r.Slug == recipe.Slug && id != recipe.ID {
			return repository.ErrSlugTaken
		}
	}
	if recipe.ID == uuid.Nil {
		recipe.ID = uuid.New()
	}
	m.recipes[recipe.ID] = *recipe
	return nil
}

func (m *memRecipesRepository) Get(_ context.Context, id uuid.UUID) (*entity.Recipe, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.recipes[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &r, nil
}

func (m *memRecipesRepository) GetBySlug(_ context.Context, slug string) (*entity.Recipe, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.recipes {
		if r.Slug == slug {
			return &r, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memRecipesRepository) List(context.Context) ([]entity.Recipe, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]entity.Recipe, 0, len(m.recipes))
	for _, r := range m.recipes {
		out = append(out, r)
	}
	return out, nil
}

// greetingClient answers each row with greeting = "hello <first_name>".
func greetingClient() enrichment.Client {
	return enrichment.ClientFunc(func(_ context.Context, req enrichment.BatchRequest) (enrichment.BatchResponse, error) {
		var resp enrichment.BatchResponse
		for _, row := range req.Rows {
			resp.Results = append(resp.Results, enrichment.BatchResult{
				ContactID: row.ID,
				Outputs:   map[string]string{"greeting": "hello " + row.Fields["first_name"]},
			})
		}
		return resp, nil
	})
}

type fixture struct {
	contactsRepo *memContactsRepository
	recipesRepo  *memRecipesRepository
	tracker      *service.RunTracker
	contacts     *service.ContactsService
	recipes      *service.RecipesService
	qualifier    *service.QualifierService
}

func newFixture(client enrichment.Client, recipes ...entity.Recipe) *fixture {
	f := &fixture{
		contactsRepo: &memContactsRepository{},
		recipesRepo:  newMemRecipesRepository(recipes...),
		tracker:      service.NewRunTracker(),
	}
	dispatcher := enrichment.NewDispatcher(client, enrichment.Options{}, nil)
	f.contacts = service.NewContactsService(f.contactsRepo, nil, f.tracker, nil)
	f.recipes = service.NewRecipesService(f.recipesRepo, f.contactsRepo, dispatcher, f.tracker, nil)
	f.qualifier = service.NewQualifierService(f.contacts, f.contactsRepo, dispatcher, f.tracker, nil)
	return f
}

func greetingRecipe() entity.Recipe {
	return entity.Recipe{
		ID:   uuid.New(),
		Slug: "greeting",
		Name: "Greeting",
		Steps: []entity.Step{{
			Type:   entity.StepAIPrompt,
			Prompt: &entity.PromptConfig{Prompt: "Greet {{first_name}}", OutputField: "greeting"},
		}},
		EmailTemplate: &entity.EmailTemplate{Subject: "Hi {{first_name}}", Body: "{{greeting}}, {{missing}}"},
	}
}

func jsonRequest(method, target string, payload any) *http.Request {
	var body bytes.Buffer
	if s, ok := payload.(string); ok {
		body.WriteString(s)
	} else {
		_ = json.NewEncoder(&body).Encode(payload)
	}
	req := httptest.NewRequest(method, target, &body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func multipartRequest(t *testing.T, target string, fields map[string]string, filename, content string) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if filename != "" {
		part, err := writer.CreateFormFile("file", filename)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := part.Write([]byte(content)); err != nil {
			t.Fatalf("write form file: %v", err)
		}
	}
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, target, body)
	req.Header.Set(echo.HeaderContentType, writer.FormDataContentType())
	return req
}

func withParams(c echo.Context, kv ...string) echo.Context {
	var names, values []string
	for i := 0; i+1 < len(kv); i += 2 {
		names = append(names, kv[i])
		values = append(values, kv[i+1])
	}
	c.SetParamNames(names...)
	c.SetParamValues(values...)
	return c
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder, data any) APIResponse {
	t.Helper()
	var raw struct {
		APIResponse
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &raw); err != nil {
		t.Fatalf("failed to decode response %q: %v", rec.Body.String(), err)
	}
	if data != nil && len(raw.Data) > 0 {
		if err := json.Unmarshal(raw.Data, data); err != nil {
			t.Fatalf("failed to decode data: %v", err)
		}
	}
	return raw.APIResponse
}

func containsAll(s string, parts ...string) bool {
	for _, p := range parts {
		if !strings.Contains(s, p) {
			return false
		}
	}
	return true
}
