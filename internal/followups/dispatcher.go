package followups

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/callcrm-ai-platform/internal/brief"
	"github.com/wolfman30/callcrm-ai-platform/pkg/logging"
)

var tracer = otel.Tracer("callcrm.internal.followups")

// ErrClearFailed marks a dispatch that created nothing because the previous run's follow-ups
// could not be removed. Retrying the whole dispatch is safe.
var ErrClearFailed = errors.New("followups: clear previous follow-ups failed")

// Refs ties created follow-ups to their origin.
type Refs struct {
	OrgID      string
	LeadID     string
	CallID     string
	CampaignID string
}

// AssigneeResolver picks who owns created tasks.
type AssigneeResolver interface {
	DefaultAssignee(ctx context.Context, orgID, campaignID string) (string, error)
}

// Result counts what a dispatch created. Failures holds one error per item that could not be
// stored; the remaining items are still attempted.
type Result struct {
	Appointments int
	Tasks        int
	Failures     []error
}

// Dispatcher turns a brief's calendar and action items into stored appointments and tasks.
type Dispatcher struct {
	store     Store
	assignee  AssigneeResolver
	nextSteps bool
	logger    *logging.Logger
	now       func() time.Time
}

type Option func(*Dispatcher)

func WithAssigneeResolver(r AssigneeResolver) Option {
	return func(d *Dispatcher) { d.assignee = r }
}

// WithNextStepTasks also creates a low-priority task per declared next step.
func WithNextStepTasks(enabled bool) Option {
	return func(d *Dispatcher) { d.nextSteps = enabled }
}

func withClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

func NewDispatcher(store Store, logger *logging.Logger, opts ...Option) *Dispatcher {
	if store == nil {
		panic("followups: store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	d := &Dispatcher{
		store:  store,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// Dispatch creates every appointment and task in b, first removing whatever an earlier run created
// for the same call. A failed item is logged and skipped.
func (d *Dispatcher) Dispatch(ctx context.Context, refs Refs, b brief.Brief) Result {
	ctx, span := tracer.Start(ctx, "followups.dispatch")
	defer span.End()
	span.SetAttributes(
		attribute.String("callcrm.org_id", refs.OrgID),
		attribute.String("callcrm.lead_id", refs.LeadID),
		attribute.String("callcrm.call_id", refs.CallID),
	)

	now := d.now()
	var res Result

	if refs.CallID != "" {
		if err := d.store.ClearCall(ctx, refs.OrgID, refs.CallID); err != nil {
			res.Failures = append(res.Failures, fmt.Errorf("%w: %w", ErrClearFailed, err))
			d.logger.Error("failed to clear previous follow-ups", "call_id", refs.CallID, "error", err)
			return res
		}
	}

	for i, a := range b.Calendar.Appointments {
		appt := &Appointment{
			OrgID:           refs.OrgID,
			LeadID:          refs.LeadID,
			CallID:          refs.CallID,
			ScheduledAt:     appointmentTime(a),
			TimeText:        a.TimeText,
			DurationMinutes: a.DurationMin,
			Type:            a.Type,
			Location:        a.Location,
			Status:          StatusScheduled,
			Agenda:          a.Agenda,
			CreatedAt:       now,
		}
		if a.Confirmed {
			appt.Status = StatusConfirmed
		}
		if appt.DurationMinutes <= 0 {
			appt.DurationMinutes = 30
		}
		if err := d.store.CreateAppointment(ctx, appt); err != nil {
			res.Failures = append(res.Failures, fmt.Errorf("appointment %d: %w", i, err))
			d.logger.Error("failed to create appointment", "call_id", refs.CallID, "index", i, "error", err)
			continue
		}
		res.Appointments++
	}

	tasks := append([]brief.Task(nil), b.Actions.Tasks...)
	if d.nextSteps {
		for _, step := range b.Actions.NextSteps {
			if step = strings.TrimSpace(step); step != "" {
				tasks = append(tasks, brief.Task{Title: "Next step: " + step, Priority: "low"})
			}
		}
	}

	var owner string
	if len(tasks) > 0 {
		owner = d.owner(ctx, refs)
	}
	for i, t := range tasks {
		task := &Task{
			OrgID:       refs.OrgID,
			LeadID:      refs.LeadID,
			CallID:      refs.CallID,
			Title:       t.Title,
			Description: t.Description,
			DueAt:       brief.NextBusinessDay(now),
			Priority:    t.Priority,
			Status:      StatusOpen,
			AssignedTo:  owner,
			CreatedAt:   now,
		}
		if t.DueAt != nil {
			task.DueAt = *t.DueAt
		}
		if task.Priority == "" {
			task.Priority = "medium"
		}
		if err := d.store.CreateTask(ctx, task); err != nil {
			res.Failures = append(res.Failures, fmt.Errorf("task %d: %w", i, err))
			d.logger.Error("failed to create task", "call_id", refs.CallID, "index", i, "title", t.Title, "error", err)
			continue
		}
		res.Tasks++
	}

	if len(res.Failures) > 0 {
		span.SetAttributes(attribute.Int("callcrm.followups.failures", len(res.Failures)))
	}
	d.logger.Info("follow-ups dispatched", "call_id", refs.CallID, "lead_id", refs.LeadID,
		"appointments", res.Appointments, "tasks", res.Tasks, "failures", len(res.Failures))
	return res
}

func (d *Dispatcher) owner(ctx context.Context, refs Refs) string {
	if d.assignee == nil {
		return ""
	}
	id, err := d.assignee.DefaultAssignee(ctx, refs.OrgID, refs.CampaignID)
	if err != nil {
		d.logger.Warn("task assignee lookup failed", "org_id", refs.OrgID, "error", err)
		return ""
	}
	return id
}

// appointmentTime uses the parsed clock time when there is one, otherwise a representative hour
// for the spoken part of day.
func appointmentTime(a brief.Appointment) time.Time {
	if a.ScheduledAt != nil {
		return *a.ScheduledAt
	}
	hour := 9
	switch text := strings.ToLower(a.TimeText); {
	case strings.Contains(text, "afternoon"), strings.Contains(text, "lunch"):
		hour = 13
	case strings.Contains(text, "evening"), strings.Contains(text, "end of"):
		hour = 17
	case strings.HasPrefix(text, "after "), strings.HasPrefix(text, "before "), strings.HasPrefix(text, "by "):
		if _, rest, ok := strings.Cut(text, " "); ok {
			if h, m, ok := brief.ParseClock(rest); ok {
				return a.Date.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
			}
		}
	}
	return a.Date.Add(time.Duration(hour) * time.Hour)
}
