package followups

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresStore writes to the appointments and tasks tables.
type PostgresStore struct {
	db execer
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	if pool == nil {
		panic("followups: pgx pool required")
	}
	return &PostgresStore{db: pool}
}

// NewPostgresStoreWithExecer allows injecting mocks for tests.
func NewPostgresStoreWithExecer(db execer) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) CreateAppointment(ctx context.Context, a *Appointment) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO appointments (id, org_id, lead_id, call_id, scheduled_at, time_text, duration_minutes,
			appointment_type, location, status, agenda, created_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, $9, $10, $11, $12)
	`, a.ID, a.OrgID, nullUUID(a.LeadID), a.CallID, toPGTime(a.ScheduledAt), a.TimeText, a.DurationMinutes,
		a.Type, a.Location, a.Status, a.Agenda, toPGTime(a.CreatedAt))
	if err != nil {
		return fmt.Errorf("followups: insert appointment: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateTask(ctx context.Context, t *Task) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO tasks (id, org_id, lead_id, call_id, title, description, due_at, priority, status,
			assigned_to, created_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, $9, NULLIF($10, ''), $11)
	`, t.ID, t.OrgID, nullUUID(t.LeadID), t.CallID, t.Title, t.Description, toPGTime(t.DueAt), t.Priority,
		t.Status, t.AssignedTo, toPGTime(t.CreatedAt))
	if err != nil {
		return fmt.Errorf("followups: insert task: %w", err)
	}
	return nil
}

// ClearCall deletes the call's appointments and tasks in one transaction.
func (s *PostgresStore) ClearCall(ctx context.Context, orgID, callID string) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("followups: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM appointments WHERE org_id = $1 AND call_id = $2`, orgID, callID); err != nil {
		return fmt.Errorf("followups: clear appointments: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM tasks WHERE org_id = $1 AND call_id = $2`, orgID, callID); err != nil {
		return fmt.Errorf("followups: clear tasks: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("followups: commit: %w", err)
	}
	return nil
}

func nullUUID(id string) pgtype.UUID {
	parsed, err := uuid.Parse(id)
	if err != nil || parsed == uuid.Nil {
		return pgtype.UUID{}
	}
	return pgtype.UUID{Bytes: [16]byte(parsed), Valid: true}
}

func toPGTime(t time.Time) pgtype.Timestamptz {
	if t.IsZero() {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: t, Valid: true}
}
