package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/octobees/enrichment-pipeline/internal/entity"
)

func TestContactsService_ImportCSV(t *testing.T) {
	listID := uuid.New()
	var stored []entity.Contact
	repo := &mockContactsRepository{
		list: func(context.Context, uuid.UUID) ([]entity.Contact, error) {
			return make([]entity.Contact, 2), nil
		},
		bulk: func(_ context.Context, contacts []entity.Contact) (int, error) {
			stored = contacts
			return len(contacts), nil
		},
	}
	svc := NewContactsService(repo, NewContactNormalizer("US"), nil, nil)

	csv := "First Name,Last Name,Email Address,Company,Position,Industry,Mobile\n" +
		"Ada,Lovelace, ADA@Example.com ,Engines,Analyst,Computing,(650) 253-0000\n" +
		"Grace,Hopper,not-an-email,Navy,Rear Admiral,,\n"

	summary, err := svc.ImportCSV(context.Background(), listID, strings.NewReader(csv), FormatGeneric)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Imported != 2 || len(summary.CustomColumns) != 2 || len(summary.StandardColumns) != 5 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if len(stored) != 2 {
		t.Fatalf("expected 2 stored contacts, got %d", len(stored))
	}

	ada := stored[0]
	if ada.ListID != listID || ada.ID == uuid.Nil {
		t.Fatalf("contact not assigned to list: %#v", ada)
	}
	if ada.Title != "Analyst" || ada.Email != "ada@example.com" {
		t.Fatalf("standard columns not mapped or cleaned: %#v", ada)
	}
	if ada.CustomFields["Industry"] != "Computing" || ada.CustomFields["Mobile"] != "+16502530000" {
		t.Fatalf("unexpected custom fields: %#v", ada.CustomFields)
	}
	if ada.Status != entity.StatusNotStarted || ada.Position != 2 || stored[1].Position != 3 {
		t.Fatalf("expected positions after existing rows, got %d/%d", ada.Position, stored[1].Position)
	}
	if stored[1].Email != "" {
		t.Fatalf("invalid email should be blanked, got %q", stored[1].Email)
	}
	if _, ok := stored[1].CustomFields["Industry"]; ok {
		t.Fatalf("empty custom cells should be dropped: %#v", stored[1].CustomFields)
	}
}

func TestContactsService_ImportCSVLinkedInPreamble(t *testing.T) {
	var stored []entity.Contact
	repo := &mockContactsRepository{
		list: func(context.Context, uuid.UUID) ([]entity.Contact, error) { return nil, nil },
		bulk: func(_ context.Context, contacts []entity.Contact) (int, error) {
			stored = contacts
			return len(contacts), nil
		},
	}
	svc := NewContactsService(repo, nil, nil, nil)

	csv := "Notes:\n" +
		"\"When exporting your connection data, you may notice that some of the email addresses are missing.\"\n" +
		"\n" +
		"First Name,Last Name,URL,Email Address,Company,Position,Connected On\n" +
		"Alice,Smith,https://www.linkedin.com/in/alice,,Acme,Software Engineer,15 Mar 2025\n"

	if _, err := svc.ImportCSV(context.Background(), uuid.New(), strings.NewReader(csv), FormatLinkedIn); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(stored) != 1 || stored[0].FirstName != "Alice" || stored[0].CustomFields["Connected On"] != "15 Mar 2025" {
		t.Fatalf("unexpected import: %#v", stored)
	}
	if stored[0].ProfileURL != "https://www.linkedin.com/in/alice" {
		t.Fatalf("unexpected profile url %q", stored[0].ProfileURL)
	}
}

func TestContactsService_ImportCSVValidation(t *testing.T) {
	svc := NewContactsService(&mockContactsRepository{}, nil, nil, nil)

	tests := map[string]struct {
		body string
		want string
	}{
		"empty":       {body: "", want: "csv file is empty"},
		"header only": {body: "First Name,Email\n", want: "no rows found"},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := svc.ImportCSV(context.Background(), uuid.New(), strings.NewReader(tt.body), FormatGeneric)
			var csvErr CSVValidationError
			if !errors.As(err, &csvErr) || csvErr.Message != tt.want {
				t.Fatalf("expected %q validation error, got %v", tt.want, err)
			}
		})
	}

	if _, err := svc.ImportCSV(context.Background(), uuid.Nil, strings.NewReader("a\nb\n"), FormatGeneric); err == nil {
		t.Fatalf("expected error for missing list id")
	}
}

func TestParseImportFormat(t *testing.T) {
	for in, want := range map[string]ImportFormat{"": FormatGeneric, "LinkedIn": FormatLinkedIn, "generic": FormatGeneric} {
		got, err := ParseImportFormat(in)
		if err != nil || got != want {
			t.Fatalf("ParseImportFormat(%q): expected %q, got %q (%v)", in, want, got, err)
		}
	}
	if _, err := ParseImportFormat("xlsx"); err == nil {
		t.Fatalf("expected error for unsupported format")
	}
}

func TestContactsService_ExportCSV(t *testing.T) {
	listID := uuid.New()
	repo := &mockContactsRepository{
		list: func(context.Context, uuid.UUID) ([]entity.Contact, error) {
			return []entity.Contact{
				{
					FirstName:    "Ada",
					Company:      "Engines, Ltd",
					CustomFields: map[string]string{"Industry": "Computing"},
					StepOutputs:  map[string]string{"hook": `She said "hi"`},
					Status:       entity.StatusDone,
				},
				{
					FirstName: "Grace",
					Status:    entity.StatusFailed,
					Error:     "model refused",
				},
			}, nil
		},
	}
	svc := NewContactsService(repo, nil, nil, nil)
	recipe := &entity.Recipe{EmailTemplate: &entity.EmailTemplate{Subject: "Hi {{first_name}}", Body: "{{hook}} {{missing}}"}}

	var buf bytes.Buffer
	if err := svc.ExportCSV(context.Background(), &buf, listID, recipe); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header and 2 rows, got %q", buf.String())
	}
	wantHeader := "first_name,last_name,email,company,title,profile_url,Industry,hook,status,error,email_subject,email_body"
	if lines[0] != wantHeader {
		t.Fatalf("unexpected header:\n%s", lines[0])
	}
	wantAda := `Ada,,,"Engines, Ltd",,,Computing,"She said ""hi""",done,,Hi Ada,"She said ""hi"" "`
	if lines[1] != wantAda {
		t.Fatalf("unexpected row:\n%s\nwant\n%s", lines[1], wantAda)
	}
	if lines[2] != "Grace,,,,,,,,failed,model refused,Hi Grace, " {
		t.Fatalf("unexpected failed row: %s", lines[2])
	}
}

func TestContactsService_ResetRejectedWhileRunning(t *testing.T) {
	listID := uuid.New()
	tracker := NewRunTracker()
	resets := 0
	repo := &mockContactsRepository{
		reset: func(context.Context, uuid.UUID) (int64, error) {
			resets++
			return 4, nil
		},
	}
	svc := NewContactsService(repo, nil, tracker, nil)

	if _, err := tracker.Begin(listID, RunKindRecipe, nil); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if _, err := svc.Reset(context.Background(), listID); !errors.Is(err, ErrRunInProgress) {
		t.Fatalf("expected ErrRunInProgress, got %v", err)
	}
	tracker.Finish(listID, nil, nil)

	n, err := svc.Reset(context.Background(), listID)
	if err != nil || n != 4 || resets != 1 {
		t.Fatalf("expected reset of 4 rows, got %d (%v)", n, err)
	}
}

func TestContactsService_ImportBlocksRunStart(t *testing.T) {
	listID := uuid.New()
	tracker := NewRunTracker()
	entered := make(chan struct{})
	proceed := make(chan struct{})
	repo := &mockContactsRepository{
		list: func(context.Context, uuid.UUID) ([]entity.Contact, error) {
			close(entered)
			<-proceed
			return nil, nil
		},
		bulk: func(_ context.Context, contacts []entity.Contact) (int, error) {
			return len(contacts), nil
		},
	}
	svc := NewContactsService(repo, nil, tracker, nil)

	done := make(chan error, 1)
	go func() {
		_, err := svc.ImportCSV(context.Background(), listID, strings.NewReader("First Name,Company\nAda,Engines\n"), FormatGeneric)
		done <- err
	}()

	<-entered
	if _, err := tracker.Begin(listID, RunKindRecipe, nil); !errors.Is(err, ErrListBusy) {
		t.Fatalf("expected ErrListBusy during import, got %v", err)
	}
	close(proceed)
	if err := <-done; err != nil {
		t.Fatalf("import: %v", err)
	}

	if _, err := tracker.Begin(listID, RunKindRecipe, nil); err != nil {
		t.Fatalf("run should start after the import: %v", err)
	}
	if _, err := svc.ImportCSV(context.Background(), listID, strings.NewReader("First Name\nGrace\n"), FormatGeneric); !errors.Is(err, ErrRunInProgress) {
		t.Fatalf("expected ErrRunInProgress, got %v", err)
	}
}
