package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/octobees/enrichment-pipeline/internal/config"
	"github.com/octobees/enrichment-pipeline/internal/enrichclient"
	"github.com/octobees/enrichment-pipeline/internal/entity"
	"github.com/octobees/enrichment-pipeline/internal/service"
	"github.com/octobees/enrichment-pipeline/internal/service/csvio"
	"github.com/octobees/enrichment-pipeline/internal/service/enrichment"
)

// newClient is swapped in tests.
var newClient = enrichclient.New

func newDispatcher(ctx context.Context) (*enrichment.Dispatcher, error) {
	cfg, err := config.LoadEnrich()
	if err != nil {
		return nil, err
	}
	client, err := newClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("build enrichment client: %w", err)
	}
	return enrichment.NewDispatcher(client, enrichclient.DispatcherOptions(cfg), logger), nil
}

func loadRecipe(path string) (*entity.Recipe, error) {
	var recipe entity.Recipe
	if err := decodeYAML(path, &recipe); err != nil {
		return nil, err
	}
	if recipe.Slug == "" {
		recipe.Slug = service.Slugify(recipe.Name)
	}
	if err := recipe.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &recipe, nil
}

func loadCriteria(path string) (entity.QualificationCriteria, error) {
	var criteria entity.QualificationCriteria
	if err := decodeYAML(path, &criteria); err != nil {
		return entity.QualificationCriteria{}, err
	}
	if err := service.ValidateCriteria(criteria); err != nil {
		return entity.QualificationCriteria{}, fmt.Errorf("%s: %w", path, err)
	}
	return criteria, nil
}

func decodeYAML(path string, out any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// readContacts parses a CSV file into in-memory contacts under a throwaway list id.
func readContacts(ctx context.Context, path string, connections bool, region string) ([]entity.Contact, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	table, err := csvio.ReadAll(f, connections)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	contacts, _, err := service.ContactsFromTable(table, uuid.New())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	service.NewContactNormalizer(region).NormalizeAll(ctx, contacts)
	return contacts, nil
}

// applyReport copies each row's outputs and terminal status onto its contact.
func applyReport(contacts []entity.Contact, report enrichment.Report) {
	byID := make(map[uuid.UUID]int, len(contacts))
	for i, c := range contacts {
		byID[c.ID] = i
	}
	for _, res := range report.Results {
		i, ok := byID[res.ContactID]
		if !ok {
			continue
		}
		c := &contacts[i]
		if c.StepOutputs == nil {
			c.StepOutputs = map[string]string{}
		}
		for k, v := range res.Outputs {
			c.StepOutputs[k] = v
		}
		c.Status = res.Status
		c.Error = res.Error
	}
}

// writeContacts exports to path, or to stdout when path is empty.
func writeContacts(stdout io.Writer, path string, contacts []entity.Contact, tmpl *entity.EmailTemplate) error {
	header, rows := service.ExportTable(contacts, tmpl)
	if path == "" {
		return csvio.Write(stdout, header, rows)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := csvio.Write(f, header, rows); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
