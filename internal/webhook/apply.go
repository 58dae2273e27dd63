package webhook

import (
	"context"

	"github.com/wolfman30/callcrm-ai-platform/internal/calls"
)

// CallReconciler receives canonical actions. *calls.Reconciler satisfies it.
type CallReconciler interface {
	CallStarted(ctx context.Context, callID string, f calls.StartFields)
	CallEnded(ctx context.Context, callID string, ended calls.EndedCall)
	TranscriptReceived(ctx context.Context, callID, transcript string)
	AnalysisReceived(ctx context.Context, callID string, analysis map[string]any)
	RecordingReady(ctx context.Context, callID, url string)
}

// Apply routes a normalized envelope to the reconciler. It reports whether the action was handled.
func Apply(ctx context.Context, r CallReconciler, env Envelope) bool {
	switch a := env.Action.(type) {
	case CallStarted:
		r.CallStarted(ctx, a.CallID, calls.StartFields{
			StartedAt:   a.StartedAt,
			PhoneNumber: a.PhoneNumber,
			ContactName: a.ContactName,
			AssistantID: a.AssistantID,
			OrgID:       a.OrgID,
			CampaignID:  a.CampaignID,
			RawPayload:  env.Raw,
		})
	case CallEnded:
		r.CallEnded(ctx, a.CallID, calls.EndedCall{
			Fields: calls.EndFields{
				EndedAt:         a.EndedAt,
				DurationSeconds: a.DurationSeconds,
				EndReason:       a.EndReason,
				Summary:         a.Summary,
				Cost:            a.Cost,
				Failed:          a.Failed,
				PhoneNumber:     a.PhoneNumber,
				OrgID:           a.OrgID,
				CampaignID:      a.CampaignID,
				RawPayload:      env.Raw,
			},
			Transcript:   a.Transcript,
			Analysis:     a.Analysis,
			RecordingURL: a.RecordingURL,
		})
	case TranscriptReceived:
		r.TranscriptReceived(ctx, a.CallID, a.Text)
	case AnalysisReceived:
		r.AnalysisReceived(ctx, a.CallID, a.Analysis)
	case RecordingReady:
		r.RecordingReady(ctx, a.CallID, a.URL)
	default:
		return false
	}
	return true
}
