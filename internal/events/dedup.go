package events

import (
	"container/list"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"
)

// Deduplicator tracks webhook event ids that were already handled.
type Deduplicator interface {
	// Seen reports whether the event id was previously claimed.
	Seen(ctx context.Context, eventID string) (bool, error)
	// MarkSeen claims the event id. It returns false when another delivery claimed it first.
	MarkSeen(ctx context.Context, eventID string) (bool, error)
}

// EventID returns the payload's own id when present, otherwise a stable digest of
// (eventType, callID, receivedAt).
func EventID(payloadID, eventType, callID string, receivedAt time.Time) string {
	if id := strings.TrimSpace(payloadID); id != "" {
		return id
	}
	sum := sha256.Sum256([]byte(strings.Join([]string{
		strings.TrimSpace(eventType),
		strings.TrimSpace(callID),
		receivedAt.UTC().Format(time.RFC3339Nano),
	}, "|")))
	return "syn_" + hex.EncodeToString(sum[:16])
}

// MemoryDeduplicator is a process-local Deduplicator with TTL expiry and a capacity cap.
// Entries do not survive restarts and are not shared across instances.
type MemoryDeduplicator struct {
	mu      sync.Mutex
	ttl     time.Duration
	max     int
	now     func() time.Time
	order   *list.List
	entries map[string]*list.Element
}

type memoryEntry struct {
	id        string
	expiresAt time.Time
}

// NewMemoryDeduplicator builds an in-memory dedup set. ttl <= 0 disables expiry;
// maxEntries <= 0 disables the cap.
func NewMemoryDeduplicator(ttl time.Duration, maxEntries int) *MemoryDeduplicator {
	return &MemoryDeduplicator{
		ttl:     ttl,
		max:     maxEntries,
		now:     time.Now,
		order:   list.New(),
		entries: make(map[string]*list.Element),
	}
}

func (d *MemoryDeduplicator) Seen(_ context.Context, eventID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.evictExpired()
	_, ok := d.entries[eventID]
	return ok, nil
}

func (d *MemoryDeduplicator) MarkSeen(_ context.Context, eventID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.evictExpired()
	if _, ok := d.entries[eventID]; ok {
		return false, nil
	}
	entry := &memoryEntry{id: eventID}
	if d.ttl > 0 {
		entry.expiresAt = d.now().Add(d.ttl)
	}
	d.entries[eventID] = d.order.PushBack(entry)
	for d.max > 0 && d.order.Len() > d.max {
		d.removeElement(d.order.Front())
	}
	return true, nil
}

// Len returns the number of tracked ids.
func (d *MemoryDeduplicator) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.order.Len()
}

// insertion order equals expiry order because every entry shares one ttl
func (d *MemoryDeduplicator) evictExpired() {
	if d.ttl <= 0 {
		return
	}
	now := d.now()
	for el := d.order.Front(); el != nil; el = d.order.Front() {
		if el.Value.(*memoryEntry).expiresAt.After(now) {
			return
		}
		d.removeElement(el)
	}
}

func (d *MemoryDeduplicator) removeElement(el *list.Element) {
	if el == nil {
		return
	}
	entry := d.order.Remove(el).(*memoryEntry)
	delete(d.entries, entry.id)
}
