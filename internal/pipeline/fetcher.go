package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/wolfman30/callcrm-ai-platform/internal/calls"
	"github.com/wolfman30/callcrm-ai-platform/internal/jobs"
	"github.com/wolfman30/callcrm-ai-platform/internal/provider"
	"github.com/wolfman30/callcrm-ai-platform/pkg/logging"
)

// ErrTranscriptPending means the provider has not produced a transcript yet.
var ErrTranscriptPending = errors.New("pipeline: transcript not ready")

type CallDetailSource interface {
	GetCall(ctx context.Context, callID string) (*provider.CallDetail, error)
}

// CallUpdater is the reconciler surface the fetcher feeds. *calls.Reconciler satisfies it.
type CallUpdater interface {
	TranscriptReceived(ctx context.Context, callID, transcript string)
	AnalysisReceived(ctx context.Context, callID string, analysis map[string]any)
	RecordingReady(ctx context.Context, callID, url string)
}

// Fetcher polls the provider for calls that ended without a transcript.
type Fetcher struct {
	calls   calls.Repository
	source  CallDetailSource
	updater CallUpdater
	logger  *logging.Logger
}

func NewFetcher(repo calls.Repository, source CallDetailSource, updater CallUpdater, logger *logging.Logger) *Fetcher {
	if repo == nil || source == nil || updater == nil {
		panic("pipeline: fetcher dependencies cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Fetcher{calls: repo, source: source, updater: updater, logger: logger}
}

func (f *Fetcher) Handle(ctx context.Context, job jobs.Payload) error {
	err := f.FetchTranscript(ctx, job.CallID)
	if errors.Is(err, ErrTranscriptPending) {
		f.logger.Info("transcript not ready yet", "call_id", job.CallID, "attempt", job.Attempt)
	}
	return err
}

// FetchTranscript attaches whatever the provider has for the call. It returns
// ErrTranscriptPending while the transcript is missing so the job is retried.
func (f *Fetcher) FetchTranscript(ctx context.Context, callID string) error {
	ref := callID
	rec, err := f.calls.FindByAnyID(ctx, callID)
	switch {
	case err == nil && rec.ProviderCallID != "":
		ref = rec.ProviderCallID
	case errors.Is(err, calls.ErrCallNotFound):
		return jobs.Permanent(fmt.Errorf("pipeline: fetch transcript: %w", err))
	case err != nil:
		return fmt.Errorf("pipeline: fetch transcript: %w", err)
	}
	if rec.ReadyForExtraction() {
		// a transcript webhook arrived while the fetch was waiting
		return nil
	}

	detail, err := f.source.GetCall(ctx, ref)
	if err != nil {
		var apiErr *provider.APIError
		if errors.As(err, &apiErr) && (apiErr.Status == http.StatusNotFound || apiErr.Status == http.StatusUnauthorized) {
			return jobs.Permanent(fmt.Errorf("pipeline: fetch call %s: %w", ref, err))
		}
		return fmt.Errorf("pipeline: fetch call %s: %w", ref, err)
	}

	if len(detail.Analysis) > 0 {
		f.updater.AnalysisReceived(ctx, ref, detail.Analysis)
	}
	if url := detail.Recording(); url != "" {
		f.updater.RecordingReady(ctx, ref, url)
	}
	transcript := detail.Transcript()
	if transcript == "" {
		return ErrTranscriptPending
	}
	f.updater.TranscriptReceived(ctx, ref, transcript)
	return nil
}
