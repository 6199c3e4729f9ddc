package appointment

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is an in-process store used by tests and local sandbox
// runs. It implements the same contract as PgRepository, including the
// all-or-nothing UpdatePriorities.
type MemoryRepository struct {
	mu           sync.RWMutex
	appointments map[uuid.UUID]Appointment
	patients     map[uuid.UUID]PatientSummary
	events       []EventLog
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		appointments: make(map[uuid.UUID]Appointment),
		patients:     make(map[uuid.UUID]PatientSummary),
	}
}

// AddPatient registers a patient summary for lookups. The real patient
// collaborator lives outside this service.
func (r *MemoryRepository) AddPatient(id uuid.UUID, p PatientSummary) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.WhatsAppLink == "" {
		p.WhatsAppLink = DeriveWhatsAppLink(p.Telephone)
	}
	r.patients[id] = p
}

func (r *MemoryRepository) RemovePatient(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.patients, id)
}

func (r *MemoryRepository) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return &a, nil
}

func (r *MemoryRepository) Create(ctx context.Context, a *Appointment) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *a
	now := time.Now()
	stored.CreatedAt = now
	stored.UpdatedAt = now
	r.appointments[stored.ID] = stored
	return &stored, nil
}

func (r *MemoryRepository) Update(ctx context.Context, a *Appointment) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.appointments[a.ID]
	if !ok {
		return nil, ErrAppointmentNotFound
	}

	stored := *a
	stored.CreatedAt = existing.CreatedAt
	stored.UpdatedAt = time.Now()
	r.appointments[stored.ID] = stored
	return &stored, nil
}

func (r *MemoryRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.appointments[id]; !ok {
		return ErrAppointmentNotFound
	}
	delete(r.appointments, id)
	return nil
}

func (r *MemoryRepository) ListByDate(ctx context.Context, date string) ([]Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []Appointment
	for _, a := range r.appointments {
		if a.Date == date {
			result = append(result, a)
		}
	}
	return result, nil
}

func (r *MemoryRepository) ListWaiting(ctx context.Context, date string) ([]Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []Appointment
	for _, a := range r.appointments {
		if a.Date == date && a.Statut == StatusAttente {
			result = append(result, a)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Priority != result[j].Priority {
			return result[i].Priority < result[j].Priority
		}
		if result[i].Heure != result[j].Heure {
			return result[i].Heure < result[j].Heure
		}
		return result[i].ID.String() < result[j].ID.String()
	})
	return result, nil
}

func (r *MemoryRepository) UpdatePriorities(ctx context.Context, updates []PriorityUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Validate first so the write is all-or-nothing.
	for _, u := range updates {
		if _, ok := r.appointments[u.ID]; !ok {
			return ErrAppointmentNotFound
		}
	}

	now := time.Now()
	for _, u := range updates {
		a := r.appointments[u.ID]
		a.Priority = u.Priority
		a.UpdatedAt = now
		r.appointments[u.ID] = a
	}
	return nil
}

func (r *MemoryRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ev.ID = int64(len(r.events) + 1)
	r.events = append(r.events, ev)
	return nil
}

// Events returns a copy of the audit trail, oldest first.
func (r *MemoryRepository) Events() []EventLog {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]EventLog(nil), r.events...)
}

func (r *MemoryRepository) GetPatientSummary(ctx context.Context, patientID uuid.UUID) (*PatientSummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.patients[patientID]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return &p, nil
}
