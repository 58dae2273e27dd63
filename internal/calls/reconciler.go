package calls

import (
	"context"
	"strings"

	"github.com/wolfman30/callcrm-ai-platform/pkg/logging"
)

// Scheduler defers heavy work off the webhook path.
type Scheduler interface {
	// EnqueueProcessing queues transcript extraction and lead synthesis for the call.
	EnqueueProcessing(ctx context.Context, callID string) error
	// ScheduleTranscriptFetch queues a delayed call-detail fetch. attempt starts at 1.
	ScheduleTranscriptFetch(ctx context.Context, callID string, attempt int) error
}

// Reconciler folds call lifecycle events into the canonical call record. Store failures
// are logged and the individual write is dropped; they never propagate to the caller.
type Reconciler struct {
	repo      Repository
	scheduler Scheduler
	logger    *logging.Logger
}

func NewReconciler(repo Repository, scheduler Scheduler, logger *logging.Logger) *Reconciler {
	if repo == nil {
		panic("calls: repository cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Reconciler{repo: repo, scheduler: scheduler, logger: logger}
}

// CallStarted records the start of a call.
func (r *Reconciler) CallStarted(ctx context.Context, callID string, f StartFields) {
	if _, err := r.repo.UpsertOnStart(ctx, callID, f); err != nil {
		r.logger.Error("calls: upsert on start failed", "call_id", callID, "error", err)
	}
}

// EndedCall bundles a call-ended event; optional parts are written independently.
type EndedCall struct {
	Fields       EndFields
	Transcript   string
	Analysis     map[string]any
	RecordingURL string
}

// CallEnded records the end of a call, attaches whatever the event carried, and either
// queues processing or schedules a transcript fetch.
func (r *Reconciler) CallEnded(ctx context.Context, callID string, ended EndedCall) {
	rec, err := r.repo.UpdateOnEnd(ctx, callID, ended.Fields)
	if err != nil {
		r.logger.Error("calls: update on end failed", "call_id", callID, "error", err)
	}
	if strings.TrimSpace(ended.Transcript) != "" {
		if updated, err := r.repo.AttachTranscript(ctx, callID, ended.Transcript); err != nil {
			r.logger.Error("calls: attach transcript failed", "call_id", callID, "error", err)
		} else {
			rec = updated
		}
	}
	if len(ended.Analysis) > 0 {
		if updated, err := r.repo.AttachAnalysis(ctx, callID, ended.Analysis); err != nil {
			r.logger.Error("calls: attach analysis failed", "call_id", callID, "error", err)
		} else {
			rec = updated
		}
	}
	if ended.RecordingURL != "" {
		if updated, err := r.repo.AttachRecording(ctx, callID, ended.RecordingURL); err != nil {
			r.logger.Error("calls: attach recording failed", "call_id", callID, "error", err)
		} else {
			rec = updated
		}
	}
	if rec == nil {
		return
	}

	switch {
	case rec.ReadyForExtraction():
		r.enqueue(ctx, rec)
	case rec.Status == StatusCompleted && r.scheduler != nil:
		r.logger.Info("calls: call ended without transcript, scheduling fetch", "call_id", callID)
		if err := r.scheduler.ScheduleTranscriptFetch(ctx, providerRef(rec, callID), 1); err != nil {
			r.logger.Error("calls: schedule transcript fetch failed", "call_id", callID, "error", err)
		}
	}
}

// TranscriptReceived attaches a transcript. A completed call is (re)queued for processing;
// each run supersedes the previous one.
func (r *Reconciler) TranscriptReceived(ctx context.Context, callID, transcript string) {
	if strings.TrimSpace(transcript) == "" {
		r.logger.Warn("calls: empty transcript ignored", "call_id", callID)
		return
	}
	rec, err := r.repo.AttachTranscript(ctx, callID, transcript)
	if err != nil {
		r.logger.Error("calls: attach transcript failed", "call_id", callID, "error", err)
		return
	}
	if rec.ReadyForExtraction() {
		r.enqueue(ctx, rec)
	}
}

// AnalysisReceived stores provider analysis. Analysis alone never triggers processing.
func (r *Reconciler) AnalysisReceived(ctx context.Context, callID string, analysis map[string]any) {
	if _, err := r.repo.AttachAnalysis(ctx, callID, analysis); err != nil {
		r.logger.Error("calls: attach analysis failed", "call_id", callID, "error", err)
	}
}

// RecordingReady stores the recording URL.
func (r *Reconciler) RecordingReady(ctx context.Context, callID, url string) {
	if _, err := r.repo.AttachRecording(ctx, callID, url); err != nil {
		r.logger.Error("calls: attach recording failed", "call_id", callID, "error", err)
	}
}

func (r *Reconciler) enqueue(ctx context.Context, rec *CallRecord) {
	if r.scheduler == nil {
		r.logger.Warn("calls: no scheduler configured, skipping processing", "call_id", rec.ID)
		return
	}
	if err := r.scheduler.EnqueueProcessing(ctx, rec.ID); err != nil {
		r.logger.Error("calls: enqueue processing failed", "call_id", rec.ID, "error", err)
	}
}

// the call-detail API only understands provider ids
func providerRef(rec *CallRecord, fallback string) string {
	if rec != nil && rec.ProviderCallID != "" {
		return rec.ProviderCallID
	}
	return fallback
}
