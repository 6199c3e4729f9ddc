package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/drheny/cab-sub000/internal/appointment"
)

type CreateAppointmentRequest struct {
	PatientID string `json:"patient_id"`
	Date      string `json:"date"`
	Heure     string `json:"heure"`
	TypeRdv   string `json:"type_rdv"`
	Statut    string `json:"statut,omitempty"`
	Salle     string `json:"salle,omitempty"`
	Paye      bool   `json:"paye,omitempty"`
	Motif     string `json:"motif,omitempty"`
}

type UpdateStatusRequest struct {
	Statut              string     `json:"statut"`
	HeureArriveeAttente *time.Time `json:"heure_arrivee_attente,omitempty"`
}

type UpdatePriorityRequest struct {
	Action   string `json:"action"`
	Position *int   `json:"position,omitempty"`
}

type PatientSummaryResponse struct {
	Nom          string `json:"nom"`
	Prenom       string `json:"prenom"`
	Telephone    string `json:"telephone"`
	LienWhatsapp string `json:"lien_whatsapp"`
}

type AppointmentResponse struct {
	ID                  uuid.UUID              `json:"id"`
	PatientID           uuid.UUID              `json:"patient_id"`
	Date                string                 `json:"date"`
	Heure               string                 `json:"heure"`
	TypeRdv             string                 `json:"type_rdv"`
	Statut              string                 `json:"statut"`
	Salle               string                 `json:"salle"`
	Priority            int                    `json:"priority"`
	HeureArriveeAttente *time.Time             `json:"heure_arrivee_attente,omitempty"`
	Paye                bool                   `json:"paye"`
	Motif               string                 `json:"motif,omitempty"`
	Patient             PatientSummaryResponse `json:"patient"`
}

type WeekResponse struct {
	WeekDates    []string              `json:"week_dates"`
	Appointments []AppointmentResponse `json:"appointments"`
}

type StatsResponse struct {
	Date           string         `json:"date"`
	Total          int            `json:"total"`
	Visites        int            `json:"visites"`
	Controles      int            `json:"controles"`
	ParStatut      map[string]int `json:"par_statut"`
	AttendanceRate float64        `json:"attendance_rate"`
	Payes          int            `json:"payes"`
	NonPayes       int            `json:"non_payes"`
}

type TimeSlotResponse struct {
	Time          string `json:"time"`
	Available     bool   `json:"available"`
	OccupiedCount int    `json:"occupied_count"`
}

type StatusUpdateResponse struct {
	Message string `json:"message"`
	Statut  string `json:"statut"`
}

type RoomUpdateResponse struct {
	Message string `json:"message"`
	Salle   string `json:"salle"`
}

type PriorityUpdateResponse struct {
	Message          string `json:"message"`
	PreviousPosition int    `json:"previous_position"`
	NewPosition      int    `json:"new_position"`
	TotalWaiting     int    `json:"total_waiting"`
	Action           string `json:"action"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toAppointmentResponse(e appointment.AgendaEntry) AppointmentResponse {
	return AppointmentResponse{
		ID:                  e.ID,
		PatientID:           e.PatientID,
		Date:                e.Date,
		Heure:               e.Heure,
		TypeRdv:             string(e.TypeRdv),
		// Views carry the display status: an overdue programme entry
		// reads retard even while the stored statut is untouched.
		Statut:              string(e.DisplayStatut),
		Salle:               string(e.Salle),
		Priority:            e.Priority,
		HeureArriveeAttente: e.HeureArriveeAttente,
		Paye:                e.Paye,
		Motif:               e.Motif,
		Patient: PatientSummaryResponse{
			Nom:          e.Patient.Nom,
			Prenom:       e.Patient.Prenom,
			Telephone:    e.Patient.Telephone,
			LienWhatsapp: e.Patient.WhatsAppLink,
		},
	}
}

func toAppointmentResponses(entries []appointment.AgendaEntry) []AppointmentResponse {
	out := make([]AppointmentResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toAppointmentResponse(e))
	}
	return out
}
