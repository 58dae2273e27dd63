package webhook

import (
	"sync"
	"time"
)

// Stats counts webhook deliveries since process start.
type Stats struct {
	mu           sync.Mutex
	startedAt    time.Time
	received     int64
	duplicates   int64
	rejected     int64
	unrecognized int64
	byType       map[string]int64
	lastEventAt  time.Time
}

func NewStats() *Stats {
	return &Stats{startedAt: time.Now().UTC(), byType: make(map[string]int64)}
}

type StatsSnapshot struct {
	StartedAt    time.Time        `json:"started_at"`
	Received     int64            `json:"received"`
	Duplicates   int64            `json:"duplicates"`
	Rejected     int64            `json:"rejected"`
	Unrecognized int64            `json:"unrecognized"`
	ByType       map[string]int64 `json:"by_type"`
	LastEventAt  *time.Time       `json:"last_event_at,omitempty"`
}

func (s *Stats) accepted(actionName string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.received++
	s.byType[actionName]++
	s.lastEventAt = at
}

func (s *Stats) duplicate() {
	s.mu.Lock()
	s.duplicates++
	s.mu.Unlock()
}

func (s *Stats) reject() {
	s.mu.Lock()
	s.rejected++
	s.mu.Unlock()
}

func (s *Stats) unknown(at time.Time) {
	s.mu.Lock()
	s.unrecognized++
	s.lastEventAt = at
	s.mu.Unlock()
}

func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := StatsSnapshot{
		StartedAt:    s.startedAt,
		Received:     s.received,
		Duplicates:   s.duplicates,
		Rejected:     s.rejected,
		Unrecognized: s.unrecognized,
		ByType:       make(map[string]int64, len(s.byType)),
	}
	for k, v := range s.byType {
		out.ByType[k] = v
	}
	if !s.lastEventAt.IsZero() {
		last := s.lastEventAt
		out.LastEventAt = &last
	}
	return out
}
