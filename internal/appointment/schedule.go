package appointment

import (
	"math"
	"sort"
	"time"
)

// SortAgenda orders a day's appointments for display: the attente subset
// first, ascending by (priority, heure, id), then everything else ascending
// by (date, heure). Stale priorities on non-attente rows are ignored.
func SortAgenda(entries []Appointment) []Appointment {
	waiting := make([]Appointment, 0, len(entries))
	others := make([]Appointment, 0, len(entries))
	for _, a := range entries {
		if a.Statut == StatusAttente {
			waiting = append(waiting, a)
		} else {
			others = append(others, a)
		}
	}

	sort.Slice(waiting, func(i, j int) bool {
		if waiting[i].Priority != waiting[j].Priority {
			return waiting[i].Priority < waiting[j].Priority
		}
		if waiting[i].Heure != waiting[j].Heure {
			return waiting[i].Heure < waiting[j].Heure
		}
		return waiting[i].ID.String() < waiting[j].ID.String()
	})
	sort.Slice(others, func(i, j int) bool {
		if others[i].Date != others[j].Date {
			return others[i].Date < others[j].Date
		}
		return others[i].Heure < others[j].Heure
	})

	return append(waiting, others...)
}

// DayStats aggregates one date's appointments for the dashboard.
type DayStats struct {
	Date           string
	Total          int
	Visites        int
	Controles      int
	ByStatut       map[Status]int
	AttendanceRate float64
	Payes          int
	NonPayes       int
}

// ComputeStats derives counts and the attendance rate for a day. The rate
// is the share of patients seen or being seen (attente, en_cours, termine)
// rounded to one decimal, zero on an empty day.
func ComputeStats(date string, entries []Appointment) DayStats {
	s := DayStats{
		Date: date,
		ByStatut: map[Status]int{
			StatusProgramme: 0,
			StatusAttente:   0,
			StatusEnCours:   0,
			StatusTermine:   0,
			StatusAbsent:    0,
			StatusRetard:    0,
		},
	}

	for _, a := range entries {
		s.Total++
		if a.TypeRdv == TypeControle {
			s.Controles++
		} else {
			s.Visites++
		}
		s.ByStatut[a.Statut]++
		if a.Paye {
			s.Payes++
		} else {
			s.NonPayes++
		}
	}

	if s.Total > 0 {
		present := s.ByStatut[StatusAttente] + s.ByStatut[StatusEnCours] + s.ByStatut[StatusTermine]
		s.AttendanceRate = math.Round(1000*float64(present)/float64(s.Total)) / 10
	}
	return s
}

// Consultation grid: 15-minute slots from 09:00 through 17:45.
const (
	slotCount  = 36
	slotStride = 15 * time.Minute
)

var slotOpening = time.Date(2000, 1, 1, 9, 0, 0, 0, time.UTC)

// TimeSlot is one bookable 15-minute interval of the consultation day.
type TimeSlot struct {
	Time          string
	Available     bool
	OccupiedCount int
}

// ComputeTimeSlots derives the day grid from existing bookings, with no
// persisted slot state. A slot is available while nothing is booked at its
// exact time.
func ComputeTimeSlots(entries []Appointment) []TimeSlot {
	occupied := make(map[string]int, len(entries))
	for _, a := range entries {
		occupied[a.Heure]++
	}

	slots := make([]TimeSlot, slotCount)
	for i := range slots {
		at := slotOpening.Add(time.Duration(i) * slotStride).Format(HeureLayout)
		n := occupied[at]
		slots[i] = TimeSlot{
			Time:          at,
			Available:     n == 0,
			OccupiedCount: n,
		}
	}
	return slots
}
