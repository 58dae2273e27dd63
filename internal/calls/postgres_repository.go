package calls

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores call records in the call_records table.
type PostgresRepository struct {
	db     pgxQuerier
	tracer trace.Tracer
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("calls: pgx pool required")
	}
	return newPostgresRepository(pool)
}

func newPostgresRepository(db pgxQuerier) *PostgresRepository {
	return &PostgresRepository{db: db, tracer: otel.Tracer("callcrm.internal.calls")}
}

// every lookup matches either id space; id is compared as text so provider ids never fail uuid casts
const matchAnyID = `(provider_call_id = $1 OR id::text = $1)`

const recordColumns = `id, provider_call_id, org_id, campaign_id, assistant_id, phone_number, contact_name,
	status, started_at, ended_at, duration_seconds, end_reason, transcript, summary, sentiment,
	recording_url, analysis, qualification_score, is_qualified, created_crm_contact, cost, lead_id,
	raw_payload, metadata, processed_at, created_at, updated_at`

func (r *PostgresRepository) FindByAnyID(ctx context.Context, callID string) (*CallRecord, error) {
	ctx, span := r.tracer.Start(ctx, "calls.find")
	defer span.End()
	query := `SELECT ` + recordColumns + ` FROM call_records WHERE ` + matchAnyID + ` LIMIT 1`
	rec, err := scanRecord(r.db.QueryRow(ctx, query, callID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCallNotFound
		}
		return nil, fmt.Errorf("calls: select failed: %w", err)
	}
	return rec, nil
}

func (r *PostgresRepository) UpsertOnStart(ctx context.Context, callID string, f StartFields) (*CallRecord, error) {
	return r.update(ctx, "calls.upsert_on_start", callID, `
		status = CASE WHEN status IN ('completed', 'failed') THEN status ELSE 'in-progress' END,
		started_at = COALESCE(started_at, $2),
		phone_number = COALESCE(NULLIF(phone_number, ''), NULLIF($3, '')),
		contact_name = COALESCE(NULLIF(contact_name, ''), NULLIF($4, '')),
		assistant_id = COALESCE(NULLIF(assistant_id, ''), NULLIF($5, '')),
		org_id = COALESCE(NULLIF(org_id, ''), NULLIF($6, '')),
		campaign_id = COALESCE(NULLIF(campaign_id, ''), NULLIF($7, '')),
		raw_payload = COALESCE($8, raw_payload)`,
		nullTime(f.StartedAt), f.PhoneNumber, f.ContactName, f.AssistantID, f.OrgID, f.CampaignID, nullJSON(f.RawPayload))
}

func (r *PostgresRepository) UpdateOnEnd(ctx context.Context, callID string, f EndFields) (*CallRecord, error) {
	status := StatusCompleted
	if f.Failed {
		status = StatusFailed
	}
	return r.update(ctx, "calls.update_on_end", callID, `
		status = $2,
		ended_at = COALESCE($3, ended_at),
		duration_seconds = CASE WHEN $4::int > 0 THEN $4::int ELSE duration_seconds END,
		end_reason = COALESCE(NULLIF($5, ''), end_reason),
		summary = COALESCE(NULLIF(summary, ''), NULLIF($6, '')),
		cost = CASE WHEN $7::float8 > 0 THEN $7::float8 ELSE cost END,
		phone_number = COALESCE(NULLIF(phone_number, ''), NULLIF($8, '')),
		org_id = COALESCE(NULLIF(org_id, ''), NULLIF($9, '')),
		campaign_id = COALESCE(NULLIF(campaign_id, ''), NULLIF($10, '')),
		raw_payload = COALESCE($11, raw_payload)`,
		string(status), nullTime(f.EndedAt), f.DurationSeconds, f.EndReason, f.Summary, f.Cost,
		f.PhoneNumber, f.OrgID, f.CampaignID, nullJSON(f.RawPayload))
}

func (r *PostgresRepository) AttachTranscript(ctx context.Context, callID, transcript string) (*CallRecord, error) {
	return r.update(ctx, "calls.attach_transcript", callID,
		`transcript = COALESCE(NULLIF($2, ''), transcript)`, strings.TrimSpace(transcript))
}

func (r *PostgresRepository) AttachAnalysis(ctx context.Context, callID string, analysis map[string]any) (*CallRecord, error) {
	var payload []byte
	if len(analysis) > 0 {
		encoded, err := json.Marshal(analysis)
		if err != nil {
			return nil, fmt.Errorf("calls: encode analysis: %w", err)
		}
		payload = encoded
	}
	return r.update(ctx, "calls.attach_analysis", callID, `analysis = COALESCE($2, analysis)`, nullJSON(payload))
}

func (r *PostgresRepository) AttachRecording(ctx context.Context, callID, url string) (*CallRecord, error) {
	return r.update(ctx, "calls.attach_recording", callID,
		`recording_url = COALESCE(NULLIF($2, ''), recording_url)`, url)
}

func (r *PostgresRepository) RecordOutcome(ctx context.Context, callID string, o Outcome) error {
	ctx, span := r.tracer.Start(ctx, "calls.record_outcome")
	defer span.End()

	metadata := []byte(`{}`)
	if len(o.Metadata) > 0 {
		encoded, err := json.Marshal(o.Metadata)
		if err != nil {
			return fmt.Errorf("calls: encode metadata: %w", err)
		}
		metadata = encoded
	}
	processed := o.ProcessedAt
	if processed.IsZero() {
		processed = time.Now().UTC()
	}
	query := `
		UPDATE call_records SET
			summary = COALESCE(NULLIF($2, ''), summary),
			sentiment = COALESCE(NULLIF($3, ''), sentiment),
			qualification_score = $4,
			is_qualified = $5,
			created_crm_contact = $6,
			lead_id = COALESCE(NULLIF($7, ''), lead_id),
			metadata = COALESCE(metadata, '{}'::jsonb) || $8::jsonb,
			processed_at = $9,
			updated_at = now()
		WHERE ` + matchAnyID
	tag, err := r.db.Exec(ctx, query, callID, o.Summary, o.Sentiment, o.QualificationScore,
		o.IsQualified, o.CreatedCRMContact, o.LeadID, metadata, processed)
	if err != nil {
		return fmt.Errorf("calls: record outcome: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCallNotFound
	}
	return nil
}

// update ensures a row exists for callID, then applies the SET clause. $1 is always callID.
func (r *PostgresRepository) update(ctx context.Context, op, callID, set string, args ...any) (*CallRecord, error) {
	callID = strings.TrimSpace(callID)
	if callID == "" {
		return nil, ErrMissingCallID
	}
	ctx, span := r.tracer.Start(ctx, op)
	defer span.End()

	if err := r.ensure(ctx, callID); err != nil {
		return nil, err
	}
	query := `UPDATE call_records SET ` + set + `, updated_at = now() WHERE ` + matchAnyID + ` RETURNING ` + recordColumns
	rec, err := scanRecord(r.db.QueryRow(ctx, query, append([]any{callID}, args...)...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCallNotFound
		}
		return nil, fmt.Errorf("calls: %s: %w", op, err)
	}
	return rec, nil
}

func (r *PostgresRepository) ensure(ctx context.Context, callID string) error {
	query := `
		INSERT INTO call_records (id, provider_call_id, status)
		SELECT $1, $2, 'pending'
		WHERE NOT EXISTS (SELECT 1 FROM call_records WHERE provider_call_id = $2 OR id::text = $2)
		ON CONFLICT (provider_call_id) DO NOTHING`
	if _, err := r.db.Exec(ctx, query, uuid.New(), callID); err != nil {
		return fmt.Errorf("calls: ensure record: %w", err)
	}
	return nil
}

func scanRecord(row pgx.Row) (*CallRecord, error) {
	var (
		rec                                                           CallRecord
		providerID, orgID, campaignID, assistantID, phone, name       *string
		endReason, transcript, summary, sentiment, recording, leadID *string
		status                                                        string
		analysis, metadata                                            map[string]any
		raw                                                           []byte
		score                                                         *int
	)
	if err := row.Scan(
		&rec.ID, &providerID, &orgID, &campaignID, &assistantID, &phone, &name,
		&status, &rec.StartedAt, &rec.EndedAt, &rec.DurationSeconds, &endReason, &transcript, &summary, &sentiment,
		&recording, &analysis, &score, &rec.IsQualified, &rec.CreatedCRMContact, &rec.Cost, &leadID,
		&raw, &metadata, &rec.ProcessedAt, &rec.CreatedAt, &rec.UpdatedAt,
	); err != nil {
		return nil, err
	}
	rec.ProviderCallID = deref(providerID)
	rec.OrgID = deref(orgID)
	rec.CampaignID = deref(campaignID)
	rec.AssistantID = deref(assistantID)
	rec.PhoneNumber = deref(phone)
	rec.ContactName = deref(name)
	rec.Status = Status(status)
	rec.EndReason = deref(endReason)
	rec.Transcript = deref(transcript)
	rec.Summary = deref(summary)
	rec.Sentiment = deref(sentiment)
	rec.RecordingURL = deref(recording)
	rec.LeadID = deref(leadID)
	rec.Analysis = analysis
	rec.Metadata = metadata
	rec.QualificationScore = score
	if len(raw) > 0 {
		rec.RawPayload = json.RawMessage(raw)
	}
	return &rec, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	utc := t.UTC()
	return &utc
}

func nullJSON(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return b
}
