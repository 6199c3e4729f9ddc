package appointment

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusProgramme Status = "programme"
	StatusAttente   Status = "attente"
	StatusEnCours   Status = "en_cours"
	StatusTermine   Status = "termine"
	StatusAbsent    Status = "absent"
	StatusRetard    Status = "retard"
)

// ValidStatus reports whether s is one of the six stored statuses.
func ValidStatus(s Status) bool {
	switch s {
	case StatusProgramme, StatusAttente, StatusEnCours, StatusTermine, StatusAbsent, StatusRetard:
		return true
	}
	return false
}

type TypeRdv string

const (
	TypeVisite   TypeRdv = "visite"
	TypeControle TypeRdv = "controle"
)

func ValidTypeRdv(t TypeRdv) bool {
	return t == TypeVisite || t == TypeControle
}

type Salle string

const (
	SalleNone Salle = ""
	Salle1    Salle = "salle1"
	Salle2    Salle = "salle2"
)

func ValidSalle(s Salle) bool {
	return s == SalleNone || s == Salle1 || s == Salle2
}

const (
	// DateLayout is the wire and storage format for calendar dates.
	DateLayout = "2006-01-02"
	// HeureLayout is the wire format for scheduled times of day.
	HeureLayout = "15:04"
)

// Appointment is one entry in the cabinet agenda. Priority is only
// meaningful while Statut == attente; rows in any other status carry a
// stale value that sorting must ignore.
type Appointment struct {
	ID                  uuid.UUID
	PatientID           uuid.UUID
	Date                string // DateLayout
	Heure               string // HeureLayout
	TypeRdv             TypeRdv
	Statut              Status
	Salle               Salle
	Priority            int
	HeureArriveeAttente *time.Time
	Paye                bool
	Motif               string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// ScheduledAt combines Date and Heure into a wall-clock instant in loc.
func (a *Appointment) ScheduledAt(loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout+" "+HeureLayout, a.Date+" "+a.Heure, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse scheduled datetime: %w", err)
	}
	return t, nil
}

// EventLog is one row of the append-only audit trail.
type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}

// PatientSummary is the read-only slice of the patient record the agenda
// views denormalize. The patient collaborator owns the full record.
type PatientSummary struct {
	Nom          string
	Prenom       string
	Telephone    string
	WhatsAppLink string
}

// DeriveWhatsAppLink builds a wa.me deep link from a phone number, empty
// when the number has no digits.
func DeriveWhatsAppLink(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return ""
	}
	return "https://wa.me/" + b.String()
}

// ParseDate validates an ISO calendar date and returns it normalized.
func ParseDate(s string) (string, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return "", fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t.Format(DateLayout), nil
}

// WeekDates returns the Monday..Saturday window containing date.
func WeekDates(date string) ([]string, error) {
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", date, err)
	}
	// time.Weekday puts Sunday at 0; shift so Monday is the anchor.
	offset := (int(t.Weekday()) + 6) % 7
	monday := t.AddDate(0, 0, -offset)

	days := make([]string, 6)
	for i := range days {
		days[i] = monday.AddDate(0, 0, i).Format(DateLayout)
	}
	return days, nil
}
