package followups

import "time"

const (
	StatusScheduled = "scheduled"
	StatusConfirmed = "confirmed"
	StatusOpen      = "open"
)

// Appointment is a meeting booked on a call.
type Appointment struct {
	ID              string    `json:"id"`
	OrgID           string    `json:"org_id"`
	LeadID          string    `json:"lead_id"`
	CallID          string    `json:"call_id,omitempty"`
	ScheduledAt     time.Time `json:"scheduled_at"`
	TimeText        string    `json:"time_text,omitempty"`
	DurationMinutes int       `json:"duration_minutes"`
	Type            string    `json:"type"`
	Location        string    `json:"location,omitempty"`
	Status          string    `json:"status"`
	Agenda          string    `json:"agenda,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// Task is a follow-up action for the lead's owner.
type Task struct {
	ID          string    `json:"id"`
	OrgID       string    `json:"org_id"`
	LeadID      string    `json:"lead_id"`
	CallID      string    `json:"call_id,omitempty"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	DueAt       time.Time `json:"due_at"`
	Priority    string    `json:"priority"`
	Status      string    `json:"status"`
	AssignedTo  string    `json:"assigned_to,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
