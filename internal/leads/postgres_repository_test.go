package leads

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	pgx "github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
)

func TestPostgresUpsertInsertsNewLead(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	now := time.Date(2026, 10, 12, 10, 0, 0, 0, time.UTC)
	mock.ExpectBegin()
	mock.ExpectQuery(`FROM leads WHERE org_id = \$1 AND phone = \$2 FOR UPDATE`).
		WithArgs("org-1", "+15550102000").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery("INSERT INTO leads").
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	mock.ExpectCommit()

	repo := newPostgresRepository(mock)
	var sawExisting bool
	lead, err := repo.Upsert(context.Background(), "org-1", "+15550102000", func(existing *Lead) (*Lead, error) {
		sawExisting = existing != nil
		return &Lead{Name: "Maria", Notes: []Note{{ID: "n1", Content: "first call"}}}, nil
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if sawExisting {
		t.Fatalf("expected no existing lead")
	}
	if lead.ID == "" || lead.OrgID != "org-1" || !lead.CreatedAt.Equal(now) {
		t.Fatalf("unexpected lead %+v", lead)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresUpsertRollsBackOnMutateError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	boom := errors.New("boom")
	_, err = newPostgresRepository(mock).Upsert(context.Background(), "org-1", "+1", func(*Lead) (*Lead, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected mutate error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresUpsertGivesUpOnRepeatedConflict(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	for i := 0; i < upsertAttempts; i++ {
		mock.ExpectBegin()
		mock.ExpectQuery("FOR UPDATE").WillReturnError(pgx.ErrNoRows)
		mock.ExpectQuery("INSERT INTO leads").WillReturnError(pgx.ErrNoRows)
		mock.ExpectRollback()
	}

	_, err = newPostgresRepository(mock).Upsert(context.Background(), "org-1", "+1", func(*Lead) (*Lead, error) {
		return &Lead{}, nil
	})
	if err == nil || !strings.Contains(err.Error(), "conflicting") {
		t.Fatalf("expected conflict error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresFindByPhoneNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`WHERE org_id = \$1 AND phone = \$2`).WithArgs("org-1", "+15550102000").WillReturnError(pgx.ErrNoRows)
	if _, err := newPostgresRepository(mock).FindByPhone(context.Background(), "org-1", "+15550102000"); !errors.Is(err, ErrLeadNotFound) {
		t.Fatalf("expected ErrLeadNotFound, got %v", err)
	}
}

func TestCustomFieldsRoundTripKeepsNotesSeparate(t *testing.T) {
	lead := &Lead{
		CustomFields: map[string]any{"address": map[string]any{"city": "Austin"}},
		Notes:        []Note{{ID: "n1", Content: "hello"}},
	}
	raw, err := encodeCustomFields(lead)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var back Lead
	if err := decodeCustomFields(&back, raw); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := back.CustomFields["notes"]; ok {
		t.Fatalf("notes leaked into custom fields")
	}
	if len(back.Notes) != 1 || back.Notes[0].Content != "hello" {
		t.Fatalf("unexpected notes %+v", back.Notes)
	}
	addr := back.CustomFields["address"].(map[string]any)
	if addr["city"] != "Austin" {
		t.Fatalf("unexpected address %+v", addr)
	}
}
