package followups

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Store persists appointments and tasks.
type Store interface {
	CreateAppointment(ctx context.Context, a *Appointment) error
	CreateTask(ctx context.Context, t *Task) error
	// ClearCall removes the appointments and tasks previously created for callID.
	ClearCall(ctx context.Context, orgID, callID string) error
}

// MemoryStore keeps follow-ups in process memory.
type MemoryStore struct {
	mu           sync.Mutex
	appointments []Appointment
	tasks        []Task
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) CreateAppointment(_ context.Context, a *Appointment) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	s.mu.Lock()
	s.appointments = append(s.appointments, *a)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) CreateTask(_ context.Context, t *Task) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	s.mu.Lock()
	s.tasks = append(s.tasks, *t)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) ClearCall(_ context.Context, orgID, callID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	appts := s.appointments[:0]
	for _, a := range s.appointments {
		if a.OrgID != orgID || a.CallID != callID {
			appts = append(appts, a)
		}
	}
	s.appointments = appts
	tasks := s.tasks[:0]
	for _, t := range s.tasks {
		if t.OrgID != orgID || t.CallID != callID {
			tasks = append(tasks, t)
		}
	}
	s.tasks = tasks
	return nil
}

// Appointments returns a copy of every stored appointment.
func (s *MemoryStore) Appointments() []Appointment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Appointment(nil), s.appointments...)
}

// Tasks returns a copy of every stored task.
func (s *MemoryStore) Tasks() []Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Task(nil), s.tasks...)
}
