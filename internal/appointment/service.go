package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/drheny/cab-sub000/internal/config"
	redisclient "github.com/drheny/cab-sub000/internal/redis"
)

const (
	EventStatusChanged  = "RDV_STATUS_CHANGED"
	EventRoomAssigned   = "RDV_ROOM_ASSIGNED"
	EventQueueReordered = "RDV_QUEUE_REORDERED"
	EventLateMarked     = "RDV_LATE_MARKED"
)

// Lock contention on a date is transient (renumbering is a handful of row
// writes), so the service retries instead of surfacing a conflict.
const (
	lockRetries    = 20
	lockRetryDelay = 25 * time.Millisecond
)

type Service struct {
	repo   Repository
	locker redisclient.Locker
	cfg    config.Config
	now    func() time.Time
}

func NewService(repo Repository, locker redisclient.Locker, cfg config.Config) *Service {
	return &Service{
		repo:   repo,
		locker: locker,
		cfg:    cfg,
		now:    time.Now,
	}
}

// CreateAppointment validates and stores a new agenda entry. Statut may be
// any of the six values so integrations and seeding can materialize a day
// mid-flight; it defaults to programme.
func (s *Service) CreateAppointment(ctx context.Context, a *Appointment) (*Appointment, error) {
	date, err := ParseDate(a.Date)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDate, a.Date)
	}
	a.Date = date

	if _, err := time.Parse(HeureLayout, a.Heure); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidHeure, a.Heure)
	}
	if a.TypeRdv == "" {
		a.TypeRdv = TypeVisite
	}
	if !ValidTypeRdv(a.TypeRdv) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTypeRdv, a.TypeRdv)
	}
	if a.Statut == "" {
		a.Statut = StatusProgramme
	}
	if !ValidStatus(a.Statut) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, a.Statut)
	}
	if !ValidSalle(a.Salle) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSalle, a.Salle)
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}

	created, err := s.repo.Create(ctx, a)
	if err != nil {
		return nil, fmt.Errorf("create appointment: %w", err)
	}
	return created, nil
}

// GetAppointment loads one appointment by id.
func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// DeleteAppointment removes an appointment outright. There is no
// soft-delete; a removed entry simply leaves its date's agenda.
func (s *Service) DeleteAppointment(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

// SetStatus moves an appointment to newStatus. Entering attente stamps
// heure_arrivee_attente once per episode: server time unless the caller
// supplies arrivalOverride, and never overwritten while already set.
// Priority is deliberately left alone; a newly waiting patient keeps
// whatever stale value it had until the desk reorders the queue.
func (s *Service) SetStatus(ctx context.Context, id uuid.UUID, newStatus Status, arrivalOverride *time.Time) (*Appointment, error) {
	if !ValidStatus(newStatus) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, newStatus)
	}

	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	previous := a.Statut
	a.Statut = newStatus

	if newStatus == StatusAttente && a.HeureArriveeAttente == nil {
		arrival := s.now()
		if arrivalOverride != nil {
			arrival = *arrivalOverride
		}
		a.HeureArriveeAttente = &arrival
	}

	updated, err := s.repo.Update(ctx, a)
	if err != nil {
		return nil, fmt.Errorf("update status: %w", err)
	}

	s.logEvent(ctx, updated.ID, EventStatusChanged, map[string]any{
		"from": string(previous),
		"to":   string(newStatus),
	})

	return updated, nil
}

// SetRoom assigns or clears the treatment room. The field is independent
// of statut: the desk may stage a room before check-in or clear it after.
func (s *Service) SetRoom(ctx context.Context, id uuid.UUID, salle Salle) (*Appointment, error) {
	if !ValidSalle(salle) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSalle, salle)
	}

	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	a.Salle = salle
	updated, err := s.repo.Update(ctx, a)
	if err != nil {
		return nil, fmt.Errorf("update room: %w", err)
	}

	s.logEvent(ctx, updated.ID, EventRoomAssigned, map[string]any{
		"salle": string(salle),
	})

	return updated, nil
}

// Reorder applies one waiting-queue action for the appointment's date. The
// whole read-renumber-write runs under the per-date lock so concurrent
// reorders can never leave a duplicate or missing priority; contention is
// retried here rather than reported to the caller.
func (s *Service) Reorder(ctx context.Context, id uuid.UUID, action string, target *int) (*ReorderResult, error) {
	if !ValidAction(action) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAction, action)
	}
	if action == ActionSetPosition && target == nil {
		return nil, fmt.Errorf("%w: position", ErrMissingParameter)
	}

	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Statut != StatusAttente {
		return nil, fmt.Errorf("%w: statut is %q", ErrNotWaiting, a.Statut)
	}

	pos := 0
	if target != nil {
		pos = *target
	}

	var result ReorderResult
	err = s.withQueueLock(ctx, a.Date, func(lockCtx context.Context) error {
		// Membership can change between the check above and lock
		// acquisition; the queue is authoritative inside the lock.
		waiting, err := s.repo.ListWaiting(lockCtx, a.Date)
		if err != nil {
			return fmt.Errorf("load waiting queue: %w", err)
		}

		queue := NewWaitingQueue(a.Date, waiting)
		res, updates, err := queue.Apply(action, id, pos)
		if err != nil {
			return err
		}

		if len(updates) > 0 {
			if err := s.repo.UpdatePriorities(lockCtx, updates); err != nil {
				return fmt.Errorf("renumber queue: %w", err)
			}
		}

		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Changed {
		s.logEvent(ctx, id, EventQueueReordered, map[string]any{
			"action":            result.Action,
			"previous_position": result.PreviousPosition,
			"new_position":      result.NewPosition,
			"total_waiting":     result.TotalWaiting,
		})
	}

	return &result, nil
}

func (s *Service) withQueueLock(ctx context.Context, date string, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 0; attempt < lockRetries; attempt++ {
		err = s.locker.WithQueueLock(ctx, date, fn)
		if !errors.Is(err, redisclient.ErrLockNotAcquired) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(lockRetryDelay):
		}
	}
	return fmt.Errorf("queue lock busy for date %s: %w", date, err)
}

// AgendaEntry is one denormalized row of a day or week view.
type AgendaEntry struct {
	Appointment
	DisplayStatut Status
	Patient       PatientSummary
}

// ListDay returns every appointment on date, waiting patients first by
// queue position, the rest by scheduled time, each row carrying its
// display status and patient summary.
func (s *Service) ListDay(ctx context.Context, date string) ([]AgendaEntry, error) {
	date, err := ParseDate(date)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDate, err)
	}

	entries, err := s.repo.ListByDate(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("list day: %w", err)
	}

	return s.denormalize(ctx, SortAgenda(entries)), nil
}

// WeekAgenda is the Monday..Saturday view around one date.
type WeekAgenda struct {
	WeekDates    []string
	Appointments []AgendaEntry
}

// ListWeek flattens the 6-day window containing date, each day ordered by
// the same per-status policy as ListDay.
func (s *Service) ListWeek(ctx context.Context, date string) (*WeekAgenda, error) {
	date, err := ParseDate(date)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDate, err)
	}

	days, err := WeekDates(date)
	if err != nil {
		return nil, err
	}

	week := &WeekAgenda{WeekDates: days, Appointments: []AgendaEntry{}}
	for _, day := range days {
		entries, err := s.repo.ListByDate(ctx, day)
		if err != nil {
			return nil, fmt.Errorf("list week day %s: %w", day, err)
		}
		week.Appointments = append(week.Appointments, s.denormalize(ctx, SortAgenda(entries))...)
	}
	return week, nil
}

// Stats aggregates one day for the dashboard.
func (s *Service) Stats(ctx context.Context, date string) (DayStats, error) {
	date, err := ParseDate(date)
	if err != nil {
		return DayStats{}, fmt.Errorf("%w: %v", ErrInvalidDate, err)
	}

	entries, err := s.repo.ListByDate(ctx, date)
	if err != nil {
		return DayStats{}, fmt.Errorf("list day for stats: %w", err)
	}
	return ComputeStats(date, entries), nil
}

// TimeSlots derives the 15-minute booking grid for date.
func (s *Service) TimeSlots(ctx context.Context, date string) ([]TimeSlot, error) {
	date, err := ParseDate(date)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDate, err)
	}

	entries, err := s.repo.ListByDate(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("list day for slots: %w", err)
	}
	return ComputeTimeSlots(entries), nil
}

// MarkLate persists retard for every overdue programme appointment on
// date. Deploying this is optional: ListDay already shows retard without
// it. It is intended for the late-marker worker, run once per tick.
func (s *Service) MarkLate(ctx context.Context, date string) (int, error) {
	date, err := ParseDate(date)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidDate, err)
	}

	entries, err := s.repo.ListByDate(ctx, date)
	if err != nil {
		return 0, fmt.Errorf("list day for late marking: %w", err)
	}

	now := s.now()
	marked := 0
	for i := range entries {
		a := entries[i]
		if !IsLate(&a, now, s.cfg.LateThreshold) {
			continue
		}
		a.Statut = StatusRetard
		if _, err := s.repo.Update(ctx, &a); err != nil {
			log.Printf("failed to mark appointment %s late: %v", a.ID, err)
			continue
		}
		s.logEvent(ctx, a.ID, EventLateMarked, map[string]any{
			"scheduled": a.Date + " " + a.Heure,
		})
		marked++
	}
	return marked, nil
}

func (s *Service) denormalize(ctx context.Context, entries []Appointment) []AgendaEntry {
	now := s.now()
	out := make([]AgendaEntry, 0, len(entries))
	for _, a := range entries {
		entry := AgendaEntry{
			Appointment:   a,
			DisplayStatut: DisplayStatus(&a, now, s.cfg.LateThreshold),
		}
		summary, err := s.repo.GetPatientSummary(ctx, a.PatientID)
		switch {
		case err == nil:
			entry.Patient = *summary
		case errors.Is(err, ErrPatientNotFound):
			// Deleted patient: the row stays, summary fields go empty.
		default:
			log.Printf("failed to load patient %s: %v", a.PatientID, err)
		}
		out = append(out, entry)
	}
	return out
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("failed to marshal event payload for %s: %v", eventType, err)
		data = nil
	}

	apptID := appointmentID

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     s.now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		log.Printf("failed to insert event log %s for appointment %s: %v", eventType, appointmentID, err)
	}
}
