package appointment

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestMemoryRepository_CRUD(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	a := &Appointment{
		ID:        uuid.New(),
		PatientID: uuid.New(),
		Date:      "2026-09-01",
		Heure:     "09:00",
		TypeRdv:   TypeVisite,
		Statut:    StatusProgramme,
	}

	created, err := repo.Create(ctx, a)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.CreatedAt.IsZero() || created.UpdatedAt.IsZero() {
		t.Error("timestamps not set on create")
	}

	got, err := repo.GetByID(ctx, a.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Heure != "09:00" {
		t.Errorf("unexpected heure %q", got.Heure)
	}

	got.Salle = Salle1
	if _, err := repo.Update(ctx, got); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ = repo.GetByID(ctx, a.ID)
	if got.Salle != Salle1 {
		t.Error("update not persisted")
	}

	if err := repo.Delete(ctx, a.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.GetByID(ctx, a.ID); !errors.Is(err, ErrAppointmentNotFound) {
		t.Fatalf("expected ErrAppointmentNotFound, got %v", err)
	}
}

func TestMemoryRepository_UpdateUnknown(t *testing.T) {
	repo := NewMemoryRepository()

	_, err := repo.Update(context.Background(), &Appointment{ID: uuid.New()})
	if !errors.Is(err, ErrAppointmentNotFound) {
		t.Fatalf("expected ErrAppointmentNotFound, got %v", err)
	}
}

func TestMemoryRepository_ListByDate(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	for _, date := range []string{"2026-09-01", "2026-09-01", "2026-09-02"} {
		_, err := repo.Create(ctx, &Appointment{ID: uuid.New(), Date: date, Heure: "09:00", Statut: StatusProgramme})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	day, err := repo.ListByDate(ctx, "2026-09-01")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(day) != 2 {
		t.Errorf("expected 2 entries, got %d", len(day))
	}
}

func TestMemoryRepository_ListWaitingSorted(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	ids := make([]uuid.UUID, 3)
	for i, priority := range []int{2, 0, 1} {
		ids[i] = uuid.New()
		_, err := repo.Create(ctx, &Appointment{
			ID:       ids[i],
			Date:     "2026-09-01",
			Heure:    "09:00",
			Statut:   StatusAttente,
			Priority: priority,
		})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	// A non-waiting row on the same date stays out of the queue.
	if _, err := repo.Create(ctx, &Appointment{ID: uuid.New(), Date: "2026-09-01", Heure: "08:00", Statut: StatusTermine}); err != nil {
		t.Fatalf("create: %v", err)
	}

	waiting, err := repo.ListWaiting(ctx, "2026-09-01")
	if err != nil {
		t.Fatalf("list waiting: %v", err)
	}
	if len(waiting) != 3 {
		t.Fatalf("expected 3 waiting, got %d", len(waiting))
	}
	want := []uuid.UUID{ids[1], ids[2], ids[0]}
	for i, id := range want {
		if waiting[i].ID != id {
			t.Errorf("position %d holds wrong entry", i)
		}
	}
}

func TestMemoryRepository_UpdatePrioritiesAllOrNothing(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	a := &Appointment{ID: uuid.New(), Date: "2026-09-01", Heure: "09:00", Statut: StatusAttente, Priority: 0}
	if _, err := repo.Create(ctx, a); err != nil {
		t.Fatalf("create: %v", err)
	}

	err := repo.UpdatePriorities(ctx, []PriorityUpdate{
		{ID: a.ID, Priority: 5},
		{ID: uuid.New(), Priority: 0}, // unknown row poisons the batch
	})
	if !errors.Is(err, ErrAppointmentNotFound) {
		t.Fatalf("expected ErrAppointmentNotFound, got %v", err)
	}

	got, _ := repo.GetByID(ctx, a.ID)
	if got.Priority != 0 {
		t.Errorf("partial write observed: priority %d", got.Priority)
	}
}

func TestMemoryRepository_PatientSummary(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	id := uuid.New()
	repo.AddPatient(id, PatientSummary{Nom: "Haddad", Prenom: "Karim", Telephone: "+33 6 01 02 03 04"})

	p, err := repo.GetPatientSummary(ctx, id)
	if err != nil {
		t.Fatalf("get summary: %v", err)
	}
	if p.WhatsAppLink != "https://wa.me/33601020304" {
		t.Errorf("unexpected link %q", p.WhatsAppLink)
	}

	repo.RemovePatient(id)
	if _, err := repo.GetPatientSummary(ctx, id); !errors.Is(err, ErrPatientNotFound) {
		t.Fatalf("expected ErrPatientNotFound, got %v", err)
	}
}
