package leads

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

type pgxDB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresRepository stores leads in the relational database.
type PostgresRepository struct {
	db     pgxDB
	tracer trace.Tracer
}

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("leads: pgx pool required")
	}
	return newPostgresRepository(pool)
}

func newPostgresRepository(db pgxDB) *PostgresRepository {
	return &PostgresRepository{db: db, tracer: otel.Tracer("callcrm.internal.leads")}
}

const leadColumns = `id, org_id, phone, name, email, alternate_phone, company, job_title, source,
	interest_level, budget, timeline, decision_authority, quality_tier, qualification_status, score,
	data_quality, call_attempts, last_call_at, next_call_at, converted, conversion_value, assigned_to,
	custom_fields, created_at, updated_at`

// insert races on a brand-new key are resolved by retrying once against the winner's row
const upsertAttempts = 2

// Upsert runs fn inside a transaction holding a row lock on the (org, phone) lead.
func (r *PostgresRepository) Upsert(ctx context.Context, orgID, phone string, fn MutateFunc) (*Lead, error) {
	ctx, span := r.tracer.Start(ctx, "leads.upsert")
	defer span.End()

	for attempt := 1; ; attempt++ {
		lead, conflict, err := r.upsertOnce(ctx, orgID, phone, fn)
		if err != nil {
			return nil, err
		}
		if !conflict {
			return lead, nil
		}
		if attempt >= upsertAttempts {
			return nil, fmt.Errorf("leads: concurrent insert for %s kept conflicting", phone)
		}
	}
}

func (r *PostgresRepository) upsertOnce(ctx context.Context, orgID, phone string, fn MutateFunc) (*Lead, bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("leads: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	existing, err := scanLead(tx.QueryRow(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE org_id = $1 AND phone = $2 FOR UPDATE`, orgID, phone))
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, false, fmt.Errorf("leads: select for update: %w", err)
		}
		existing = nil
	}

	next, err := fn(existing)
	if err != nil {
		return nil, false, err
	}
	next.OrgID, next.Phone = orgID, phone
	custom, err := encodeCustomFields(next)
	if err != nil {
		return nil, false, err
	}

	if existing == nil {
		if next.ID == "" {
			next.ID = uuid.New().String()
		}
		err = tx.QueryRow(ctx, `
			INSERT INTO leads (`+leadColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, now(), now())
			ON CONFLICT (org_id, phone) DO NOTHING
			RETURNING created_at, updated_at
		`, leadArgs(next, custom)...).Scan(&next.CreatedAt, &next.UpdatedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, true, nil
		}
		if err != nil {
			return nil, false, fmt.Errorf("leads: insert failed: %w", err)
		}
	} else {
		next.ID = existing.ID
		err = tx.QueryRow(ctx, `
			UPDATE leads SET name = $4, email = $5, alternate_phone = $6, company = $7, job_title = $8,
				source = $9, interest_level = $10, budget = $11, timeline = $12, decision_authority = $13,
				quality_tier = $14, qualification_status = $15, score = $16, data_quality = $17,
				call_attempts = $18, last_call_at = $19, next_call_at = $20, converted = $21,
				conversion_value = $22, assigned_to = $23, custom_fields = $24, updated_at = now()
			WHERE id = $1 AND org_id = $2 AND phone = $3
			RETURNING created_at, updated_at
		`, leadArgs(next, custom)...).Scan(&next.CreatedAt, &next.UpdatedAt)
		if err != nil {
			return nil, false, fmt.Errorf("leads: update failed: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("leads: commit: %w", err)
	}
	return next, false, nil
}

func leadArgs(l *Lead, custom []byte) []any {
	return []any{
		l.ID, l.OrgID, l.Phone, l.Name, l.Email, l.AlternatePhone, l.Company, l.JobTitle, l.Source,
		l.InterestLevel, l.Budget, l.Timeline, l.DecisionAuthority, string(l.QualityTier),
		l.QualificationStatus, l.Score, l.DataQuality, l.CallAttempts, l.LastCallAt, l.NextCallAt,
		l.Converted, l.ConversionValue, l.AssignedTo, custom,
	}
}

func (r *PostgresRepository) FindByPhone(ctx context.Context, orgID, phone string) (*Lead, error) {
	lead, err := scanLead(r.db.QueryRow(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE org_id = $1 AND phone = $2`, orgID, phone))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLeadNotFound
		}
		return nil, fmt.Errorf("leads: select failed: %w", err)
	}
	return lead, nil
}

// GetByID fetches a lead scoped to the org.
func (r *PostgresRepository) GetByID(ctx context.Context, orgID string, id string) (*Lead, error) {
	lead, err := scanLead(r.db.QueryRow(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE id::text = $1 AND org_id = $2`, id, orgID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLeadNotFound
		}
		return nil, fmt.Errorf("leads: select failed: %w", err)
	}
	return lead, nil
}

func (r *PostgresRepository) ListByOrg(ctx context.Context, orgID string, filter ListFilter) ([]*Lead, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(ctx, `
		SELECT `+leadColumns+` FROM leads
		WHERE org_id = $1 AND ($2 = '' OR quality_tier = $2)
		ORDER BY updated_at DESC
		LIMIT $3 OFFSET $4
	`, orgID, string(filter.Tier), limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("leads: list failed: %w", err)
	}
	defer rows.Close()

	out := []*Lead{}
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("leads: scan failed: %w", err)
		}
		out = append(out, lead)
	}
	return out, rows.Err()
}

func scanLead(row pgx.Row) (*Lead, error) {
	var (
		l      Lead
		tier   string
		custom []byte
	)
	if err := row.Scan(
		&l.ID, &l.OrgID, &l.Phone, &l.Name, &l.Email, &l.AlternatePhone, &l.Company, &l.JobTitle,
		&l.Source, &l.InterestLevel, &l.Budget, &l.Timeline, &l.DecisionAuthority, &tier,
		&l.QualificationStatus, &l.Score, &l.DataQuality, &l.CallAttempts, &l.LastCallAt,
		&l.NextCallAt, &l.Converted, &l.ConversionValue, &l.AssignedTo, &custom, &l.CreatedAt,
		&l.UpdatedAt,
	); err != nil {
		return nil, err
	}
	l.QualityTier = QualityTier(tier)
	if err := decodeCustomFields(&l, custom); err != nil {
		return nil, err
	}
	return &l, nil
}

// notes live inside custom_fields so the column stays one schemaless bag
func encodeCustomFields(l *Lead) ([]byte, error) {
	bag := make(map[string]any, len(l.CustomFields)+1)
	for k, v := range l.CustomFields {
		bag[k] = v
	}
	if len(l.Notes) > 0 {
		bag["notes"] = l.Notes
	}
	out, err := json.Marshal(bag)
	if err != nil {
		return nil, fmt.Errorf("leads: encode custom_fields: %w", err)
	}
	return out, nil
}

func decodeCustomFields(l *Lead, raw []byte) error {
	if len(raw) == 0 {
		return nil
	}
	var bag map[string]json.RawMessage
	if err := json.Unmarshal(raw, &bag); err != nil {
		return fmt.Errorf("leads: decode custom_fields: %w", err)
	}
	if notes, ok := bag["notes"]; ok {
		if err := json.Unmarshal(notes, &l.Notes); err != nil {
			return fmt.Errorf("leads: decode notes: %w", err)
		}
		delete(bag, "notes")
	}
	l.CustomFields = make(map[string]any, len(bag))
	for k, v := range bag {
		var val any
		if err := json.Unmarshal(v, &val); err != nil {
			return fmt.Errorf("leads: decode custom field %s: %w", k, err)
		}
		l.CustomFields[k] = val
	}
	return nil
}

