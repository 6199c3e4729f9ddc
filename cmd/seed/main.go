package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/drheny/cab-sub000/internal/appointment"
	"github.com/drheny/cab-sub000/internal/db"
)

// seed fills the store with a plausible cabinet day: patients, a morning
// of programme appointments, a small waiting queue with contiguous
// priorities, and one consultation in progress.
func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	if err := createTables(context.Background(), pool); err != nil {
		log.Fatalf("create tables: %v", err)
	}

	patients, err := seedPatients(context.Background(), pool, 40)
	if err != nil {
		log.Fatalf("seed patients: %v", err)
	}
	if err := seedDay(context.Background(), pool, patients); err != nil {
		log.Fatalf("seed appointments: %v", err)
	}

	log.Println("seed complete")
}

func createTables(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS patients (
			id UUID PRIMARY KEY,
			nom TEXT NOT NULL,
			prenom TEXT NOT NULL,
			telephone TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);

		CREATE TABLE IF NOT EXISTS appointments (
			id UUID PRIMARY KEY,
			patient_id UUID NOT NULL,
			date DATE NOT NULL,
			heure TEXT NOT NULL,
			type_rdv TEXT NOT NULL DEFAULT 'visite',
			statut TEXT NOT NULL DEFAULT 'programme',
			salle TEXT NOT NULL DEFAULT '',
			priority INT NOT NULL DEFAULT 999,
			heure_arrivee_attente TIMESTAMPTZ,
			paye BOOLEAN NOT NULL DEFAULT false,
			motif TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS idx_appointments_date ON appointments (date);
		CREATE INDEX IF NOT EXISTS idx_appointments_date_statut ON appointments (date, statut);

		CREATE TABLE IF NOT EXISTS event_logs (
			id BIGSERIAL PRIMARY KEY,
			event_type TEXT NOT NULL,
			appointment_id UUID,
			payload JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
	`)
	return err
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d patients", count)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		_, err := tx.Exec(ctx, `
			INSERT INTO patients (id, nom, prenom, telephone, created_at, updated_at)
			VALUES ($1, $2, $3, $4, now(), now())
		`, id, gofakeit.LastName(), gofakeit.FirstName(), gofakeit.Phone())
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	log.Println("patients seeded")
	return ids, nil
}

func seedDay(ctx context.Context, pool *pgxpool.Pool, patients []uuid.UUID) error {
	today := time.Now().Format(appointment.DateLayout)
	log.Printf("seeding appointments for %s", today)

	hours := []string{
		"09:00", "09:15", "09:30", "09:45",
		"10:00", "10:30", "11:00", "11:15",
		"14:00", "14:30", "15:00", "15:45",
		"16:30", "17:00",
	}
	motifs := []string{"consultation", "suivi", "vaccination", "certificat", "renouvellement"}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	waiting := 0
	for i, heure := range hours {
		if i >= len(patients) {
			break
		}

		typeRdv := appointment.TypeVisite
		if gofakeit.Number(0, 3) == 0 {
			typeRdv = appointment.TypeControle
		}

		// First few entries are already checked in, one is in the chair.
		statut := appointment.StatusProgramme
		var arrivee *time.Time
		priority := 999
		salle := appointment.SalleNone
		switch {
		case i == 0:
			statut = appointment.StatusEnCours
			salle = appointment.Salle1
		case i < 4:
			statut = appointment.StatusAttente
			t := time.Now().Add(-time.Duration(gofakeit.Number(5, 40)) * time.Minute)
			arrivee = &t
			priority = waiting
			waiting++
		}

		_, err := tx.Exec(ctx, `
			INSERT INTO appointments (id, patient_id, date, heure, type_rdv, statut, salle, priority, heure_arrivee_attente, paye, motif, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now(), now())
		`, uuid.New(), patients[i], today, heure, typeRdv, statut, salle, priority, arrivee,
			typeRdv == appointment.TypeControle || gofakeit.Bool(), motifs[gofakeit.Number(0, len(motifs)-1)])
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Printf("appointments seeded: %d (waiting=%d)", len(hours), waiting)
	return nil
}
