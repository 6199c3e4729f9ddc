package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const appointmentColumns = `id, patient_id, date, heure, type_rdv, statut, salle, priority, heure_arrivee_attente, paye, motif, created_at, updated_at`

// Helpers

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var date time.Time
	var arrivee *time.Time

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&date,
		&a.Heure,
		&a.TypeRdv,
		&a.Statut,
		&a.Salle,
		&a.Priority,
		&arrivee,
		&a.Paye,
		&a.Motif,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.Date = date.Format(DateLayout)
	a.HeureArriveeAttente = arrivee
	return &a, nil
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Interface methods

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) Create(ctx context.Context, a *Appointment) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (id, patient_id, date, heure, type_rdv, statut, salle, priority, heure_arrivee_attente, paye, motif, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now(), now())
		RETURNING `+appointmentColumns+`
	`, a.ID, a.PatientID, a.Date, a.Heure, a.TypeRdv, a.Statut, a.Salle, a.Priority, a.HeureArriveeAttente, a.Paye, a.Motif)

	return scanAppointment(row)
}

func (r *PgRepository) Update(ctx context.Context, a *Appointment) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET patient_id = $2,
		    date = $3,
		    heure = $4,
		    type_rdv = $5,
		    statut = $6,
		    salle = $7,
		    priority = $8,
		    heure_arrivee_attente = $9,
		    paye = $10,
		    motif = $11,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+appointmentColumns+`
	`, a.ID, a.PatientID, a.Date, a.Heure, a.TypeRdv, a.Statut, a.Salle, a.Priority, a.HeureArriveeAttente, a.Paye, a.Motif)

	return scanAppointment(row)
}

func (r *PgRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (r *PgRepository) ListByDate(ctx context.Context, date string) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE date = $1
	`, date)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) ListWaiting(ctx context.Context, date string) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE date = $1 AND statut = 'attente'
		ORDER BY priority, heure, id
	`, date)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

// UpdatePriorities rewrites the queue in one transaction so no reader can
// observe a half-renumbered date.
func (r *PgRepository) UpdatePriorities(ctx context.Context, updates []PriorityUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin renumbering: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	batch := &pgx.Batch{}
	for _, u := range updates {
		batch.Queue(`
			UPDATE appointments
			SET priority = $2,
			    updated_at = now()
			WHERE id = $1
		`, u.ID, u.Priority)
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("apply renumbering: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit renumbering: %w", err)
	}
	return nil
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	var appID *uuid.UUID
	if ev.AppointmentID != nil {
		appID = ev.AppointmentID
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, appID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func (r *PgRepository) GetPatientSummary(ctx context.Context, patientID uuid.UUID) (*PatientSummary, error) {
	var p PatientSummary
	var telephone *string

	err := r.pool.QueryRow(ctx, `
		SELECT nom, prenom, telephone
		FROM patients
		WHERE id = $1
	`, patientID).Scan(&p.Nom, &p.Prenom, &telephone)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	if telephone != nil {
		p.Telephone = *telephone
	}
	p.WhatsAppLink = DeriveWhatsAppLink(p.Telephone)
	return &p, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
