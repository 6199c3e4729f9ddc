package appointment

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrPatientNotFound     = errors.New("patient not found")

	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidHeure     = errors.New("invalid time of day")
	ErrInvalidStatus    = errors.New("invalid status value")
	ErrInvalidTypeRdv   = errors.New("invalid appointment type")
	ErrInvalidSalle     = errors.New("invalid room value")
	ErrInvalidAction    = errors.New("invalid reorder action")
	ErrNotWaiting       = errors.New("appointment is not in the waiting queue")
	ErrMissingParameter = errors.New("missing required parameter")
)

// Repository contains all store interactions needed by the service. The
// queue renumbering path (ListWaiting + UpdatePriorities) is always called
// under the per-date lock, so implementations only need per-call atomicity:
// UpdatePriorities applies fully or not at all.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	Create(ctx context.Context, a *Appointment) (*Appointment, error)
	Update(ctx context.Context, a *Appointment) (*Appointment, error)
	Delete(ctx context.Context, id uuid.UUID) error

	// ListByDate returns every appointment on date, unordered.
	ListByDate(ctx context.Context, date string) ([]Appointment, error)

	// ListWaiting returns the attente subset for date sorted ascending by
	// (priority, heure, id).
	ListWaiting(ctx context.Context, date string) ([]Appointment, error)

	// UpdatePriorities rewrites the priority of each listed appointment
	// in one atomic step.
	UpdatePriorities(ctx context.Context, updates []PriorityUpdate) error

	// InsertEvent appends one audit event. Failures are logged by callers,
	// never propagated into the request outcome.
	InsertEvent(ctx context.Context, ev EventLog) error

	// GetPatientSummary resolves the read-only patient fields denormalized
	// into agenda views. Implementations return ErrPatientNotFound when the
	// patient no longer exists; callers degrade to empty fields.
	GetPatientSummary(ctx context.Context, patientID uuid.UUID) (*PatientSummary, error)
}

// PriorityUpdate is one row of a queue renumbering.
type PriorityUpdate struct {
	ID       uuid.UUID
	Priority int
}
