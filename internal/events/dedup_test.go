package events

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventIDPrefersPayloadID(t *testing.T) {
	at := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, "evt_123", EventID(" evt_123 ", "call-ended", "call-1", at))
}

func TestEventIDSynthesizedIsStable(t *testing.T) {
	at := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	a := EventID("", "call-ended", "call-1", at)
	b := EventID("", "call-ended", "call-1", at)
	c := EventID("", "transcript", "call-1", at)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Contains(t, a, "syn_")
}

func TestMemoryDeduplicatorClaimsOnce(t *testing.T) {
	ctx := context.Background()
	d := NewMemoryDeduplicator(time.Hour, 0)

	seen, err := d.Seen(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, seen)

	first, err := d.MarkSeen(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, first)

	second, err := d.MarkSeen(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, second)

	seen, _ = d.Seen(ctx, "evt-1")
	assert.True(t, seen)
}

func TestMemoryDeduplicatorExpires(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	d := NewMemoryDeduplicator(time.Minute, 0)
	d.now = func() time.Time { return now }

	_, _ = d.MarkSeen(ctx, "evt-1")
	now = now.Add(2 * time.Minute)

	seen, _ := d.Seen(ctx, "evt-1")
	assert.False(t, seen)
	assert.Equal(t, 0, d.Len())
}

func TestMemoryDeduplicatorCapEvictsOldest(t *testing.T) {
	ctx := context.Background()
	d := NewMemoryDeduplicator(0, 2)
	_, _ = d.MarkSeen(ctx, "a")
	_, _ = d.MarkSeen(ctx, "b")
	_, _ = d.MarkSeen(ctx, "c")

	assert.Equal(t, 2, d.Len())
	seen, _ := d.Seen(ctx, "a")
	assert.False(t, seen)
	seen, _ = d.Seen(ctx, "c")
	assert.True(t, seen)
}

func TestRedisDeduplicator(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	d := NewRedisDeduplicator(client, time.Minute)
	ctx := context.Background()

	seen, err := d.Seen(ctx, "evt-9")
	require.NoError(t, err)
	assert.False(t, seen)

	ok, err := d.MarkSeen(ctx, "evt-9")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = d.MarkSeen(ctx, "evt-9")
	require.NoError(t, err)
	assert.False(t, ok)

	seen, err = d.Seen(ctx, "evt-9")
	require.NoError(t, err)
	assert.True(t, seen)

	mr.FastForward(2 * time.Minute)
	seen, err = d.Seen(ctx, "evt-9")
	require.NoError(t, err)
	assert.False(t, seen)
}
