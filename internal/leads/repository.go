package leads

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MutateFunc receives the current lead for a key (nil when none exists) and returns the lead to
// store. Returning an error aborts the write.
type MutateFunc func(existing *Lead) (*Lead, error)

// Repository defines the interface for lead storage
type Repository interface {
	// Upsert reads, mutates and writes the lead for (orgID, phone) as one unit; concurrent
	// upserts for the same key are serialized.
	Upsert(ctx context.Context, orgID, phone string, fn MutateFunc) (*Lead, error)
	FindByPhone(ctx context.Context, orgID, phone string) (*Lead, error)
	GetByID(ctx context.Context, orgID, id string) (*Lead, error)
	ListByOrg(ctx context.Context, orgID string, filter ListFilter) ([]*Lead, error)
}

// InMemoryRepository is a Repository backed by a map, used by tests and single-node dev runs.
type InMemoryRepository struct {
	mu    sync.Mutex
	leads map[string]*Lead
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		leads: make(map[string]*Lead),
	}
}

func leadKey(orgID, phone string) string {
	return orgID + "|" + phone
}

func (r *InMemoryRepository) Upsert(_ context.Context, orgID, phone string, fn MutateFunc) (*Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := leadKey(orgID, phone)
	var existing *Lead
	if cur, ok := r.leads[key]; ok {
		existing = cloneLead(cur)
	}
	next, err := fn(existing)
	if err != nil {
		return nil, err
	}
	if next.ID == "" {
		next.ID = uuid.New().String()
	}
	next.OrgID, next.Phone = orgID, phone
	r.leads[key] = cloneLead(next)
	return next, nil
}

func (r *InMemoryRepository) FindByPhone(_ context.Context, orgID, phone string) (*Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	lead, ok := r.leads[leadKey(orgID, phone)]
	if !ok {
		return nil, ErrLeadNotFound
	}
	return cloneLead(lead), nil
}

// GetByID retrieves a lead by ID
func (r *InMemoryRepository) GetByID(_ context.Context, orgID, id string) (*Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, lead := range r.leads {
		if lead.ID == id && lead.OrgID == orgID {
			return cloneLead(lead), nil
		}
	}
	return nil, ErrLeadNotFound
}

func (r *InMemoryRepository) ListByOrg(_ context.Context, orgID string, filter ListFilter) ([]*Lead, error) {
	r.mu.Lock()
	var out []*Lead
	for _, lead := range r.leads {
		if lead.OrgID != orgID || (filter.Tier != "" && lead.QualityTier != filter.Tier) {
			continue
		}
		out = append(out, cloneLead(lead))
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	if filter.Offset >= len(out) {
		return []*Lead{}, nil
	}
	out = out[filter.Offset:]
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// cloneLead copies the lead deep enough that callers cannot mutate stored notes or the top
// level of custom_fields.
func cloneLead(l *Lead) *Lead {
	c := *l
	c.Notes = append([]Note(nil), l.Notes...)
	if l.CustomFields != nil {
		c.CustomFields = make(map[string]any, len(l.CustomFields))
		for k, v := range l.CustomFields {
			c.CustomFields[k] = v
		}
	}
	return &c
}
