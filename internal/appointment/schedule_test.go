package appointment

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestWeekDates(t *testing.T) {
	tests := []struct {
		name   string
		date   string
		monday string
	}{
		{"monday maps to itself", "2026-08-31", "2026-08-31"},
		{"midweek", "2026-09-02", "2026-08-31"},
		{"saturday", "2026-09-05", "2026-08-31"},
		{"sunday belongs to the closing week", "2026-09-06", "2026-08-31"},
		{"across a month boundary", "2026-09-01", "2026-08-31"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			days, err := WeekDates(tt.date)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(days) != 6 {
				t.Fatalf("expected 6 days, got %d", len(days))
			}
			if days[0] != tt.monday {
				t.Errorf("week starts %s, want %s", days[0], tt.monday)
			}

			prev, _ := time.Parse(DateLayout, days[0])
			for _, d := range days[1:] {
				cur, err := time.Parse(DateLayout, d)
				if err != nil {
					t.Fatalf("bad date %q: %v", d, err)
				}
				if cur.Sub(prev) != 24*time.Hour {
					t.Fatalf("days %s and %s are not consecutive", prev.Format(DateLayout), d)
				}
				prev = cur
			}
		})
	}
}

func TestWeekDates_InvalidDate(t *testing.T) {
	if _, err := WeekDates("31-08-2026"); err == nil {
		t.Fatal("expected error for malformed date")
	}
}

func TestSortAgenda_IgnoresStalePriorityOnNonWaiting(t *testing.T) {
	done := Appointment{ID: uuid.New(), Statut: StatusTermine, Priority: 0, Date: "2026-09-01", Heure: "15:00"}
	scheduled := Appointment{ID: uuid.New(), Statut: StatusProgramme, Priority: 999, Date: "2026-09-01", Heure: "09:00"}
	waiting := Appointment{ID: uuid.New(), Statut: StatusAttente, Priority: 5, Date: "2026-09-01", Heure: "14:00"}

	sorted := SortAgenda([]Appointment{done, scheduled, waiting})

	if sorted[0].ID != waiting.ID {
		t.Error("waiting entry should lead the agenda")
	}
	if sorted[1].ID != scheduled.ID || sorted[2].ID != done.ID {
		t.Error("non-waiting entries should be time-ordered, not priority-ordered")
	}
}

func TestSortAgenda_WaitingTieBreaksOnHeure(t *testing.T) {
	// Both entries carry the same stale sentinel priority.
	first := Appointment{ID: uuid.New(), Statut: StatusAttente, Priority: 999, Date: "2026-09-01", Heure: "09:00"}
	second := Appointment{ID: uuid.New(), Statut: StatusAttente, Priority: 999, Date: "2026-09-01", Heure: "10:00"}

	sorted := SortAgenda([]Appointment{second, first})
	if sorted[0].ID != first.ID {
		t.Error("equal priorities should fall back to scheduled time")
	}
}

func TestComputeStats_AllStatusesCounted(t *testing.T) {
	entries := []Appointment{
		{Statut: StatusProgramme, TypeRdv: TypeVisite},
		{Statut: StatusAttente, TypeRdv: TypeVisite, Paye: true},
		{Statut: StatusEnCours, TypeRdv: TypeControle, Paye: true},
		{Statut: StatusTermine, TypeRdv: TypeVisite, Paye: true},
		{Statut: StatusAbsent, TypeRdv: TypeControle},
		{Statut: StatusRetard, TypeRdv: TypeVisite},
	}

	s := ComputeStats("2026-09-01", entries)

	if s.Total != 6 {
		t.Errorf("total is %d, want 6", s.Total)
	}
	for _, statut := range []Status{StatusProgramme, StatusAttente, StatusEnCours, StatusTermine, StatusAbsent, StatusRetard} {
		if s.ByStatut[statut] != 1 {
			t.Errorf("count for %s is %d, want 1", statut, s.ByStatut[statut])
		}
	}
	if s.Visites != 4 || s.Controles != 2 {
		t.Errorf("type split %d/%d, want 4/2", s.Visites, s.Controles)
	}
	if s.Payes != 3 || s.NonPayes != 3 {
		t.Errorf("payment split %d/%d, want 3/3", s.Payes, s.NonPayes)
	}
	// 3 of 6 seen: 50.0.
	if s.AttendanceRate != 50.0 {
		t.Errorf("attendance rate is %v, want 50.0", s.AttendanceRate)
	}
}

func TestComputeTimeSlots_EmptyDay(t *testing.T) {
	slots := ComputeTimeSlots(nil)

	if len(slots) != 36 {
		t.Fatalf("expected 36 slots, got %d", len(slots))
	}
	for _, s := range slots {
		if !s.Available || s.OccupiedCount != 0 {
			t.Fatalf("empty day slot not free: %+v", s)
		}
	}
}

func TestDeriveWhatsAppLink(t *testing.T) {
	tests := []struct {
		phone string
		want  string
	}{
		{"+216 20 123 456", "https://wa.me/21620123456"},
		{"0601020304", "https://wa.me/0601020304"},
		{"", ""},
		{"n/a", ""},
	}

	for _, tt := range tests {
		if got := DeriveWhatsAppLink(tt.phone); got != tt.want {
			t.Errorf("DeriveWhatsAppLink(%q) = %q, want %q", tt.phone, got, tt.want)
		}
	}
}

func TestIsLate_OnlyProgramme(t *testing.T) {
	now := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)

	for _, statut := range []Status{StatusAttente, StatusEnCours, StatusTermine, StatusAbsent, StatusRetard} {
		a := Appointment{Statut: statut, Date: "2026-09-01", Heure: "08:00"}
		if IsLate(&a, now, 0) {
			t.Errorf("statut %s flagged late", statut)
		}
	}

	a := Appointment{Statut: StatusProgramme, Date: "2026-09-01", Heure: "09:30"}
	if !IsLate(&a, now, 0) {
		t.Error("programme 30 minutes past should be late")
	}

	// Exactly at the threshold is not yet late.
	onEdge := Appointment{Statut: StatusProgramme, Date: "2026-09-01", Heure: "09:45"}
	if IsLate(&onEdge, now, 0) {
		t.Error("15 minutes past is within the grace period")
	}
}

func TestIsLate_ConfiguredThreshold(t *testing.T) {
	now := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	a := Appointment{Statut: StatusProgramme, Date: "2026-09-01", Heure: "09:30"}

	if IsLate(&a, now, 45*time.Minute) {
		t.Error("30 minutes past is within a 45-minute grace")
	}
	if !IsLate(&a, now, 10*time.Minute) {
		t.Error("30 minutes past exceeds a 10-minute grace")
	}
	// Zero means the default.
	if !IsLate(&a, now, 0) {
		t.Error("default threshold should flag a 30-minute overrun")
	}
}
