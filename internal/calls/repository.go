package calls

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Repository persists call records. Every callID argument may be either a provider call id
// or an internal id; implementations must match on both. Write operations create the record
// when the reference is unknown.
type Repository interface {
	FindByAnyID(ctx context.Context, callID string) (*CallRecord, error)
	UpsertOnStart(ctx context.Context, callID string, f StartFields) (*CallRecord, error)
	UpdateOnEnd(ctx context.Context, callID string, f EndFields) (*CallRecord, error)
	AttachTranscript(ctx context.Context, callID, transcript string) (*CallRecord, error)
	AttachAnalysis(ctx context.Context, callID string, analysis map[string]any) (*CallRecord, error)
	AttachRecording(ctx context.Context, callID, url string) (*CallRecord, error)
	RecordOutcome(ctx context.Context, callID string, o Outcome) error
}

// InMemoryRepository is a Repository backed by a map, used by tests and single-node dev runs.
type InMemoryRepository struct {
	mu      sync.RWMutex
	records map[string]*CallRecord
	now     func() time.Time
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		records: make(map[string]*CallRecord),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (r *InMemoryRepository) FindByAnyID(_ context.Context, callID string) (*CallRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec := r.lookup(callID)
	if rec == nil {
		return nil, ErrCallNotFound
	}
	return cloneRecord(rec), nil
}

func (r *InMemoryRepository) UpsertOnStart(_ context.Context, callID string, f StartFields) (*CallRecord, error) {
	return r.mutate(callID, func(rec *CallRecord) {
		if !rec.Status.Terminal() {
			rec.Status = StatusInProgress
		}
		if !f.StartedAt.IsZero() && rec.StartedAt == nil {
			started := f.StartedAt.UTC()
			rec.StartedAt = &started
		}
		rec.PhoneNumber = firstNonEmpty(rec.PhoneNumber, f.PhoneNumber)
		rec.ContactName = firstNonEmpty(rec.ContactName, f.ContactName)
		rec.AssistantID = firstNonEmpty(rec.AssistantID, f.AssistantID)
		rec.OrgID = firstNonEmpty(rec.OrgID, f.OrgID)
		rec.CampaignID = firstNonEmpty(rec.CampaignID, f.CampaignID)
		if len(f.RawPayload) > 0 {
			rec.RawPayload = append(json.RawMessage(nil), f.RawPayload...)
		}
	})
}

func (r *InMemoryRepository) UpdateOnEnd(_ context.Context, callID string, f EndFields) (*CallRecord, error) {
	return r.mutate(callID, func(rec *CallRecord) {
		if f.Failed {
			rec.Status = StatusFailed
		} else {
			rec.Status = StatusCompleted
		}
		if !f.EndedAt.IsZero() {
			ended := f.EndedAt.UTC()
			rec.EndedAt = &ended
		}
		if f.DurationSeconds > 0 {
			rec.DurationSeconds = f.DurationSeconds
		}
		rec.EndReason = firstNonEmpty(f.EndReason, rec.EndReason)
		rec.Summary = firstNonEmpty(rec.Summary, f.Summary)
		if f.Cost > 0 {
			rec.Cost = f.Cost
		}
		rec.PhoneNumber = firstNonEmpty(rec.PhoneNumber, f.PhoneNumber)
		rec.OrgID = firstNonEmpty(rec.OrgID, f.OrgID)
		rec.CampaignID = firstNonEmpty(rec.CampaignID, f.CampaignID)
		if len(f.RawPayload) > 0 {
			rec.RawPayload = append(json.RawMessage(nil), f.RawPayload...)
		}
	})
}

func (r *InMemoryRepository) AttachTranscript(_ context.Context, callID, transcript string) (*CallRecord, error) {
	return r.mutate(callID, func(rec *CallRecord) {
		if strings.TrimSpace(transcript) != "" {
			rec.Transcript = transcript
		}
	})
}

func (r *InMemoryRepository) AttachAnalysis(_ context.Context, callID string, analysis map[string]any) (*CallRecord, error) {
	return r.mutate(callID, func(rec *CallRecord) {
		if len(analysis) > 0 {
			rec.Analysis = cloneMap(analysis)
		}
	})
}

func (r *InMemoryRepository) AttachRecording(_ context.Context, callID, url string) (*CallRecord, error) {
	return r.mutate(callID, func(rec *CallRecord) {
		rec.RecordingURL = firstNonEmpty(url, rec.RecordingURL)
	})
}

func (r *InMemoryRepository) RecordOutcome(_ context.Context, callID string, o Outcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec := r.lookup(callID)
	if rec == nil {
		return ErrCallNotFound
	}
	score := o.QualificationScore
	rec.QualificationScore = &score
	rec.Summary = firstNonEmpty(o.Summary, rec.Summary)
	rec.Sentiment = firstNonEmpty(o.Sentiment, rec.Sentiment)
	rec.IsQualified = o.IsQualified
	rec.CreatedCRMContact = o.CreatedCRMContact
	rec.LeadID = firstNonEmpty(o.LeadID, rec.LeadID)
	if rec.Metadata == nil {
		rec.Metadata = map[string]any{}
	}
	for k, v := range o.Metadata {
		rec.Metadata[k] = v
	}
	processed := o.ProcessedAt
	if processed.IsZero() {
		processed = r.now()
	}
	rec.ProcessedAt = &processed
	rec.UpdatedAt = r.now()
	return nil
}

func (r *InMemoryRepository) mutate(callID string, apply func(*CallRecord)) (*CallRecord, error) {
	callID = strings.TrimSpace(callID)
	if callID == "" {
		return nil, ErrMissingCallID
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	rec := r.lookup(callID)
	now := r.now()
	if rec == nil {
		rec = &CallRecord{
			ID:             uuid.NewString(),
			ProviderCallID: callID,
			Status:         StatusPending,
			CreatedAt:      now,
		}
		r.records[rec.ID] = rec
	}
	apply(rec)
	rec.UpdatedAt = now
	return cloneRecord(rec), nil
}

func (r *InMemoryRepository) lookup(callID string) *CallRecord {
	if rec, ok := r.records[callID]; ok {
		return rec
	}
	for _, rec := range r.records {
		if rec.ProviderCallID == callID {
			return rec
		}
	}
	return nil
}

func cloneRecord(rec *CallRecord) *CallRecord {
	out := *rec
	out.Analysis = cloneMap(rec.Analysis)
	out.Metadata = cloneMap(rec.Metadata)
	if rec.RawPayload != nil {
		out.RawPayload = append(json.RawMessage(nil), rec.RawPayload...)
	}
	return &out
}

func cloneMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
