package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/callcrm-ai-platform/internal/archive"
	"github.com/wolfman30/callcrm-ai-platform/internal/brief"
	"github.com/wolfman30/callcrm-ai-platform/internal/calls"
	"github.com/wolfman30/callcrm-ai-platform/internal/extraction"
	"github.com/wolfman30/callcrm-ai-platform/internal/followups"
	"github.com/wolfman30/callcrm-ai-platform/internal/jobs"
	"github.com/wolfman30/callcrm-ai-platform/internal/leads"
	"github.com/wolfman30/callcrm-ai-platform/internal/observability/metrics"
	"github.com/wolfman30/callcrm-ai-platform/pkg/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("callcrm.pipeline")

type Extractor interface {
	Extract(ctx context.Context, transcript string, metadata map[string]any) extraction.Facts
}

type BriefBuilder interface {
	ShouldGenerate(f extraction.Facts) bool
	Build(ctx context.Context, in brief.Input) brief.Brief
}

type LeadMerger interface {
	Merge(ctx context.Context, in leads.MergeInput) (*leads.Lead, bool, error)
}

type LeadFinder interface {
	FindByPhone(ctx context.Context, orgID, phone string) (*leads.Lead, error)
}

type FollowupDispatcher interface {
	Dispatch(ctx context.Context, refs followups.Refs, b brief.Brief) followups.Result
}

// Processor runs extraction, brief generation, lead merge and follow-up dispatch for one
// completed call, then projects the outcome back onto the call record.
type Processor struct {
	calls      calls.Repository
	extractor  Extractor
	briefs     BriefBuilder
	merger     LeadMerger
	leads      LeadFinder
	dispatcher FollowupDispatcher
	metrics    *metrics.PipelineMetrics
	logger     *logging.Logger
	now        func() time.Time
}

type Option func(*Processor)

func WithMetrics(m *metrics.PipelineMetrics) Option {
	return func(p *Processor) { p.metrics = m }
}

// WithLeadFinder supplies the existing lead snapshot for brief generation.
func WithLeadFinder(f LeadFinder) Option {
	return func(p *Processor) { p.leads = f }
}

func WithClock(now func() time.Time) Option {
	return func(p *Processor) {
		if now != nil {
			p.now = now
		}
	}
}

func NewProcessor(repo calls.Repository, extractor Extractor, briefs BriefBuilder, merger LeadMerger, dispatcher FollowupDispatcher, logger *logging.Logger, opts ...Option) *Processor {
	if repo == nil || extractor == nil || briefs == nil || merger == nil || dispatcher == nil {
		panic("pipeline: processor dependencies cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	p := &Processor{
		calls:      repo,
		extractor:  extractor,
		briefs:     briefs,
		merger:     merger,
		dispatcher: dispatcher,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// Handle adapts ProcessCall to the job worker.
func (p *Processor) Handle(ctx context.Context, job jobs.Payload) error {
	return p.ProcessCall(ctx, job.CallID)
}

// ProcessCall is safe to rerun: each run supersedes the previous outcome on the call record.
// Missing calls are permanent failures; a failed lead merge is retryable.
func (p *Processor) ProcessCall(ctx context.Context, callID string) error {
	ctx, span := tracer.Start(ctx, "pipeline.process_call")
	defer span.End()
	span.SetAttributes(attribute.String("callcrm.call_id", callID))

	rec, err := p.calls.FindByAnyID(ctx, callID)
	p.metrics.ObserveStage("load_call", err)
	if err != nil {
		if errors.Is(err, calls.ErrCallNotFound) {
			return jobs.Permanent(fmt.Errorf("pipeline: load call %s: %w", callID, err))
		}
		return fmt.Errorf("pipeline: load call %s: %w", callID, err)
	}
	if !rec.ReadyForExtraction() {
		p.logger.Warn("call not ready for processing, skipping", "call_id", callID, "status", rec.Status)
		return nil
	}

	now := p.now()
	metadata := callMetadata(rec)
	facts := p.extractor.Extract(ctx, rec.Transcript, metadata)
	p.metrics.ObserveStage("extract", nil)
	p.metrics.ObserveExtraction(facts.Source)

	outcome := calls.Outcome{
		Summary:            rec.Summary,
		Sentiment:          extraction.Str(facts.Sentiment),
		QualificationScore: facts.Interest() * 10,
		IsQualified:        facts.Qualified(),
		ProcessedAt:        now,
		Metadata:           map[string]any{"extraction_source": facts.Source},
	}

	if !p.briefs.ShouldGenerate(facts) {
		p.logger.Info("call below qualification threshold", "call_id", rec.ID, "interest", facts.Interest())
		outcome.Metadata["brief"] = nil
		p.recordOutcome(ctx, rec.ID, outcome)
		return nil
	}

	phone := firstNonEmpty(rec.PhoneNumber, extraction.Str(facts.Phone))
	b := p.briefs.Build(ctx, brief.Input{
		Transcript: rec.Transcript,
		Metadata:   metadata,
		Facts:      facts,
		Snapshot:   p.snapshot(ctx, rec.OrgID, phone),
		Now:        now,
	})
	p.metrics.ObserveStage("brief", nil)

	lead, created, err := p.merger.Merge(ctx, leads.MergeInput{
		OrgID:      rec.OrgID,
		Phone:      phone,
		CampaignID: rec.CampaignID,
		CallID:     rec.ID,
		Facts:      facts,
		Brief:      &b,
		CalledAt:   callTime(rec, now),
	})
	p.metrics.ObserveStage("merge_lead", err)
	if err != nil {
		if errors.Is(err, leads.ErrMissingOrgID) || errors.Is(err, leads.ErrMissingPhone) {
			p.logger.Warn("call cannot be attributed to a lead", "call_id", rec.ID, "org_id", rec.OrgID,
				"phone_hash", archive.HashPhone(phone), "error", err)
			outcome.Metadata["brief"] = b
			p.recordOutcome(ctx, rec.ID, outcome)
			return nil
		}
		return fmt.Errorf("pipeline: merge lead for call %s: %w", rec.ID, err)
	}

	res := p.dispatcher.Dispatch(ctx, followups.Refs{
		OrgID:      rec.OrgID,
		LeadID:     lead.ID,
		CallID:     rec.ID,
		CampaignID: rec.CampaignID,
	}, b)
	dispatchErr := errors.Join(res.Failures...)
	p.metrics.ObserveStage("dispatch", dispatchErr)
	if errors.Is(dispatchErr, followups.ErrClearFailed) {
		return fmt.Errorf("pipeline: dispatch follow-ups for call %s: %w", rec.ID, dispatchErr)
	}

	if outcome.Sentiment == "" {
		outcome.Sentiment = b.Meta.Sentiment
	}
	if strings.TrimSpace(outcome.Summary) == "" {
		outcome.Summary = b.Executive.Outcome
	}
	outcome.CreatedCRMContact = true
	outcome.LeadID = lead.ID
	outcome.Metadata["brief"] = b
	outcome.Metadata["lead_created"] = created
	outcome.Metadata["appointments_created"] = res.Appointments
	outcome.Metadata["tasks_created"] = res.Tasks
	p.recordOutcome(ctx, rec.ID, outcome)

	p.logger.Info("call processed", "call_id", rec.ID, "lead_id", lead.ID, "lead_created", created,
		"interest", facts.Interest(), "qualified", outcome.IsQualified, "extraction_source", facts.Source)
	return nil
}

// recordOutcome failures are logged only; rerunning the whole job would duplicate lead notes.
func (p *Processor) recordOutcome(ctx context.Context, callID string, o calls.Outcome) {
	err := p.calls.RecordOutcome(ctx, callID, o)
	p.metrics.ObserveStage("record_outcome", err)
	if err != nil {
		p.logger.Error("failed to record call outcome", "call_id", callID, "error", err)
	}
}

func (p *Processor) snapshot(ctx context.Context, orgID, phone string) brief.LeadSnapshot {
	if p.leads == nil || orgID == "" || phone == "" {
		return brief.LeadSnapshot{}
	}
	lead, err := p.leads.FindByPhone(ctx, orgID, leads.NormalizePhone(phone))
	if err != nil {
		if !errors.Is(err, leads.ErrLeadNotFound) {
			p.logger.Warn("lead snapshot lookup failed", "org_id", orgID, "error", err)
		}
		return brief.LeadSnapshot{}
	}
	return lead.Snapshot()
}

func callMetadata(rec *calls.CallRecord) map[string]any {
	md := map[string]any{"callId": rec.ID}
	if rec.PhoneNumber != "" {
		md["customerNumber"] = rec.PhoneNumber
	}
	if rec.ContactName != "" {
		md["contactName"] = rec.ContactName
	}
	if rec.OrgID != "" {
		md["organizationId"] = rec.OrgID
	}
	if rec.CampaignID != "" {
		md["campaignId"] = rec.CampaignID
	}
	if rec.Summary != "" {
		md["providerSummary"] = rec.Summary
	}
	if len(rec.Analysis) > 0 {
		md["providerAnalysis"] = rec.Analysis
	}
	if rec.DurationSeconds > 0 {
		md["durationSeconds"] = rec.DurationSeconds
	}
	return md
}

func callTime(rec *calls.CallRecord, fallback time.Time) time.Time {
	switch {
	case rec.EndedAt != nil:
		return *rec.EndedAt
	case rec.StartedAt != nil:
		return *rec.StartedAt
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
