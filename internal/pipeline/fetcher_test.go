package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfman30/callcrm-ai-platform/internal/calls"
	"github.com/wolfman30/callcrm-ai-platform/internal/jobs"
	"github.com/wolfman30/callcrm-ai-platform/internal/provider"
)

type stubSource struct {
	detail *provider.CallDetail
	err    error
	refs   []string
}

func (s *stubSource) GetCall(_ context.Context, callID string) (*provider.CallDetail, error) {
	s.refs = append(s.refs, callID)
	return s.detail, s.err
}

type recordingScheduler struct{ processed []string }

func (s *recordingScheduler) EnqueueProcessing(_ context.Context, callID string) error {
	s.processed = append(s.processed, callID)
	return nil
}

func (s *recordingScheduler) ScheduleTranscriptFetch(context.Context, string, int) error { return nil }

func endedWithoutTranscript(t *testing.T) *calls.InMemoryRepository {
	t.Helper()
	repo := calls.NewInMemoryRepository()
	_, err := repo.UpsertOnStart(context.Background(), "prov-7", calls.StartFields{OrgID: "org-1"})
	require.NoError(t, err)
	_, err = repo.UpdateOnEnd(context.Background(), "prov-7", calls.EndFields{EndedAt: monday})
	require.NoError(t, err)
	return repo
}

func TestFetchTranscriptAttachesAndEnqueues(t *testing.T) {
	repo := endedWithoutTranscript(t)
	sched := &recordingScheduler{}
	source := &stubSource{detail: &provider.CallDetail{
		ID:            "prov-7",
		Status:        "ended",
		RawTranscript: json.RawMessage(`"User: Friday at 6 PM works."`),
		RecordingURL:  "https://cdn.example.com/rec.wav",
		Analysis:      map[string]any{"summary": "booked"},
	}}
	f := NewFetcher(repo, source, calls.NewReconciler(repo, sched, nil), nil)

	require.NoError(t, f.FetchTranscript(context.Background(), "prov-7"))

	rec, err := repo.FindByAnyID(context.Background(), "prov-7")
	require.NoError(t, err)
	assert.Equal(t, "User: Friday at 6 PM works.", rec.Transcript)
	assert.Equal(t, "https://cdn.example.com/rec.wav", rec.RecordingURL)
	assert.Len(t, sched.processed, 1)
	assert.Equal(t, []string{"prov-7"}, source.refs)
}

func TestFetchTranscriptPendingIsRetryable(t *testing.T) {
	repo := endedWithoutTranscript(t)
	source := &stubSource{detail: &provider.CallDetail{ID: "prov-7", Status: "ended"}}
	f := NewFetcher(repo, source, calls.NewReconciler(repo, nil, nil), nil)

	err := f.Handle(context.Background(), jobs.Payload{Kind: jobs.KindFetchTranscript, CallID: "prov-7", Attempt: 2})
	assert.ErrorIs(t, err, ErrTranscriptPending)
	assert.False(t, jobs.IsPermanent(err))
}

func TestFetchTranscriptProviderErrors(t *testing.T) {
	repo := endedWithoutTranscript(t)

	notFound := NewFetcher(repo, &stubSource{err: &provider.APIError{Status: 404}}, calls.NewReconciler(repo, nil, nil), nil)
	err := notFound.FetchTranscript(context.Background(), "prov-7")
	assert.True(t, jobs.IsPermanent(err))

	flaky := NewFetcher(repo, &stubSource{err: errors.New("timeout")}, calls.NewReconciler(repo, nil, nil), nil)
	err = flaky.FetchTranscript(context.Background(), "prov-7")
	require.Error(t, err)
	assert.False(t, jobs.IsPermanent(err))
}

func TestFetchTranscriptSkipsWhenAlreadyReady(t *testing.T) {
	repo := endedWithoutTranscript(t)
	_, err := repo.AttachTranscript(context.Background(), "prov-7", "User: hello")
	require.NoError(t, err)
	source := &stubSource{}
	f := NewFetcher(repo, source, calls.NewReconciler(repo, nil, nil), nil)

	require.NoError(t, f.FetchTranscript(context.Background(), "prov-7"))
	assert.Empty(t, source.refs)
}
