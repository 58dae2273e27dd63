package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const defaultProvider = "voice"

type rowQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ProcessedStore is the Postgres Deduplicator. Claims older than ttl count as unseen and
// can be claimed again, matching the Redis and in-memory backends.
type ProcessedStore struct {
	db       rowQuerier
	provider string
	ttl      time.Duration
}

func NewProcessedStore(pool *pgxpool.Pool, provider string, ttl time.Duration) *ProcessedStore {
	if pool == nil {
		panic("events: pgx pool required")
	}
	return newProcessedStore(pool, provider, ttl)
}

func newProcessedStore(db rowQuerier, provider string, ttl time.Duration) *ProcessedStore {
	if db == nil {
		panic("events: querier required")
	}
	if provider == "" {
		provider = defaultProvider
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &ProcessedStore{db: db, provider: provider, ttl: ttl}
}

func (s *ProcessedStore) ttlSeconds() float64 {
	return s.ttl.Seconds()
}

func (s *ProcessedStore) Seen(ctx context.Context, eventID string) (bool, error) {
	var exists int
	err := s.db.QueryRow(ctx, `
		SELECT 1 FROM processed_events
		WHERE provider = $1 AND event_id = $2 AND processed_at > now() - make_interval(secs => $3)`,
		s.provider, eventID, s.ttlSeconds()).Scan(&exists)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("events: check processed: %w", err)
	}
	return true, nil
}

// MarkSeen claims eventID. An expired claim is refreshed and counts as a new claim.
func (s *ProcessedStore) MarkSeen(ctx context.Context, eventID string) (bool, error) {
	ct, err := s.db.Exec(ctx, `
		INSERT INTO processed_events (provider, event_id, processed_at)
		VALUES ($1, $2, now())
		ON CONFLICT (provider, event_id) DO UPDATE SET processed_at = now()
		WHERE processed_events.processed_at <= now() - make_interval(secs => $3)`,
		s.provider, eventID, s.ttlSeconds())
	if err != nil {
		return false, fmt.Errorf("events: mark processed: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}

// Purge deletes expired claims and returns how many were removed.
func (s *ProcessedStore) Purge(ctx context.Context) (int64, error) {
	ct, err := s.db.Exec(ctx, `
		DELETE FROM processed_events
		WHERE provider = $1 AND processed_at <= now() - make_interval(secs => $2)`,
		s.provider, s.ttlSeconds())
	if err != nil {
		return 0, fmt.Errorf("events: purge processed: %w", err)
	}
	return ct.RowsAffected(), nil
}
