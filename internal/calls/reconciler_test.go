package calls

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfman30/callcrm-ai-platform/pkg/logging"
)

type recordingScheduler struct {
	mu        sync.Mutex
	processed []string
	fetches   []string
}

func (s *recordingScheduler) EnqueueProcessing(_ context.Context, callID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processed = append(s.processed, callID)
	return nil
}

func (s *recordingScheduler) ScheduleTranscriptFetch(_ context.Context, callID string, attempt int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetches = append(s.fetches, callID)
	return nil
}

const sampleTranscript = "AI: Hi, this is Sam from Bright Solar.\nUser: Sure, Friday at 6 PM works."

func endedAt() time.Time { return time.Date(2026, 3, 2, 15, 4, 5, 0, time.UTC) }

func endEvent() EndedCall {
	return EndedCall{Fields: EndFields{EndedAt: endedAt(), DurationSeconds: 182, EndReason: "customer-ended-call", PhoneNumber: "+15551234567"}}
}

func stripVolatile(rec *CallRecord) CallRecord {
	out := *rec
	out.ID = ""
	out.CreatedAt = time.Time{}
	out.UpdatedAt = time.Time{}
	return out
}

func TestReconcilerOrderIndependence(t *testing.T) {
	ctx := context.Background()
	logger := logging.Default()

	repoA := NewInMemoryRepository()
	schedA := &recordingScheduler{}
	recA := NewReconciler(repoA, schedA, logger)
	recA.CallStarted(ctx, "call-x", StartFields{PhoneNumber: "+15551234567"})
	recA.CallEnded(ctx, "call-x", endEvent())
	recA.TranscriptReceived(ctx, "call-x", sampleTranscript)

	repoB := NewInMemoryRepository()
	schedB := &recordingScheduler{}
	recB := NewReconciler(repoB, schedB, logger)
	recB.CallStarted(ctx, "call-x", StartFields{PhoneNumber: "+15551234567"})
	recB.TranscriptReceived(ctx, "call-x", sampleTranscript)
	recB.CallEnded(ctx, "call-x", endEvent())

	a, err := repoA.FindByAnyID(ctx, "call-x")
	require.NoError(t, err)
	b, err := repoB.FindByAnyID(ctx, "call-x")
	require.NoError(t, err)

	assert.Equal(t, stripVolatile(a), stripVolatile(b))
	assert.Equal(t, StatusCompleted, a.Status)
	assert.Equal(t, sampleTranscript, a.Transcript)
	assert.Len(t, schedA.processed, 1)
	assert.Len(t, schedB.processed, 1)
}

func TestReconcilerSchedulesFetchWhenTranscriptMissing(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryRepository()
	sched := &recordingScheduler{}
	rec := NewReconciler(repo, sched, logging.Default())

	rec.CallEnded(ctx, "call-y", endEvent())

	assert.Equal(t, []string{"call-y"}, sched.fetches)
	assert.Empty(t, sched.processed)
}

func TestReconcilerFailedCallDoesNotFetch(t *testing.T) {
	ctx := context.Background()
	sched := &recordingScheduler{}
	rec := NewReconciler(NewInMemoryRepository(), sched, logging.Default())

	ended := endEvent()
	ended.Fields.Failed = true
	rec.CallEnded(ctx, "call-f", ended)

	assert.Empty(t, sched.fetches)
	assert.Empty(t, sched.processed)
}

func TestReconcilerAnalysisAloneDoesNotTrigger(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryRepository()
	sched := &recordingScheduler{}
	rec := NewReconciler(repo, sched, logging.Default())

	rec.AnalysisReceived(ctx, "call-z", map[string]any{"summary": "interested"})

	stored, err := repo.FindByAnyID(ctx, "call-z")
	require.NoError(t, err)
	assert.Equal(t, "interested", stored.Analysis["summary"])
	assert.Empty(t, sched.processed)
}

func TestReconcilerRetriggersOnTranscriptReattach(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryRepository()
	sched := &recordingScheduler{}
	rec := NewReconciler(repo, sched, logging.Default())

	ended := endEvent()
	ended.Transcript = sampleTranscript
	rec.CallEnded(ctx, "call-r", ended)
	rec.TranscriptReceived(ctx, "call-r", sampleTranscript+"\nUser: Thanks!")

	stored, _ := repo.FindByAnyID(ctx, "call-r")
	assert.Len(t, sched.processed, 2)
	assert.Contains(t, stored.Transcript, "Thanks!")
	assert.Equal(t, stored.ID, sched.processed[0])
}

func TestReconcilerLateStartDoesNotRegressStatus(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryRepository()
	rec := NewReconciler(repo, &recordingScheduler{}, logging.Default())

	rec.CallEnded(ctx, "call-late", endEvent())
	rec.CallStarted(ctx, "call-late", StartFields{StartedAt: endedAt().Add(-3 * time.Minute)})

	stored, _ := repo.FindByAnyID(ctx, "call-late")
	assert.Equal(t, StatusCompleted, stored.Status)
	require.NotNil(t, stored.StartedAt)
}

func TestReconcilerLookupByInternalID(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryRepository()
	rec := NewReconciler(repo, &recordingScheduler{}, logging.Default())

	rec.CallStarted(ctx, "prov-1", StartFields{})
	stored, err := repo.FindByAnyID(ctx, "prov-1")
	require.NoError(t, err)

	rec.RecordingReady(ctx, stored.ID, "https://cdn.example.com/rec.mp3")
	byProvider, err := repo.FindByAnyID(ctx, "prov-1")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/rec.mp3", byProvider.RecordingURL)
}

type flakyRepo struct {
	*InMemoryRepository
	failAnalysis bool
}

func (f *flakyRepo) AttachAnalysis(ctx context.Context, callID string, analysis map[string]any) (*CallRecord, error) {
	if f.failAnalysis {
		return nil, errors.New("connection reset")
	}
	return f.InMemoryRepository.AttachAnalysis(ctx, callID, analysis)
}

func TestReconcilerIndependentWritesSurviveFailure(t *testing.T) {
	ctx := context.Background()
	repo := &flakyRepo{InMemoryRepository: NewInMemoryRepository(), failAnalysis: true}
	sched := &recordingScheduler{}
	rec := NewReconciler(repo, sched, logging.Default())

	ended := endEvent()
	ended.Transcript = sampleTranscript
	ended.Analysis = map[string]any{"successEvaluation": true}
	ended.RecordingURL = "https://cdn.example.com/r.wav"
	rec.CallEnded(ctx, "call-flaky", ended)

	stored, err := repo.FindByAnyID(ctx, "call-flaky")
	require.NoError(t, err)
	assert.Equal(t, sampleTranscript, stored.Transcript)
	assert.Equal(t, "https://cdn.example.com/r.wav", stored.RecordingURL)
	assert.Nil(t, stored.Analysis)
	assert.Len(t, sched.processed, 1)
}
