package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/drheny/cab-sub000/internal/appointment"
)

func dayHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries, err := svc.ListDay(r.Context(), chi.URLParam(r, "date"))
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponses(entries))
	}
}

func weekHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		week, err := svc.ListWeek(r.Context(), chi.URLParam(r, "date"))
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, WeekResponse{
			WeekDates:    week.WeekDates,
			Appointments: toAppointmentResponses(week.Appointments),
		})
	}
}

func statsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := svc.Stats(r.Context(), chi.URLParam(r, "date"))
		if err != nil {
			handleServiceError(w, err)
			return
		}

		parStatut := make(map[string]int, len(stats.ByStatut))
		for statut, n := range stats.ByStatut {
			parStatut[string(statut)] = n
		}

		writeJSON(w, http.StatusOK, StatsResponse{
			Date:           stats.Date,
			Total:          stats.Total,
			Visites:        stats.Visites,
			Controles:      stats.Controles,
			ParStatut:      parStatut,
			AttendanceRate: stats.AttendanceRate,
			Payes:          stats.Payes,
			NonPayes:       stats.NonPayes,
		})
	}
}

func timeSlotsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date := r.URL.Query().Get("date")
		if date == "" {
			writeError(w, http.StatusBadRequest, "missing_date", "date query parameter is required")
			return
		}

		slots, err := svc.TimeSlots(r.Context(), date)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		out := make([]TimeSlotResponse, 0, len(slots))
		for _, s := range slots {
			out = append(out, TimeSlotResponse{
				Time:          s.Time,
				Available:     s.Available,
				OccupiedCount: s.OccupiedCount,
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func createHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		patientID, err := uuid.Parse(req.PatientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}

		created, err := svc.CreateAppointment(r.Context(), &appointment.Appointment{
			PatientID: patientID,
			Date:      req.Date,
			Heure:     req.Heure,
			TypeRdv:   appointment.TypeRdv(req.TypeRdv),
			Statut:    appointment.Status(req.Statut),
			Salle:     appointment.Salle(req.Salle),
			Paye:      req.Paye,
			Motif:     req.Motif,
		})
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appointment.AgendaEntry{
			Appointment:   *created,
			DisplayStatut: created.Statut,
		}))
	}
}

func deleteHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseID(w, r)
		if !ok {
			return
		}
		if err := svc.DeleteAppointment(r.Context(), id); err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "rendez-vous supprime"})
	}
}

func statusHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseID(w, r)
		if !ok {
			return
		}

		var req UpdateStatusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		updated, err := svc.SetStatus(r.Context(), id, appointment.Status(req.Statut), req.HeureArriveeAttente)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, StatusUpdateResponse{
			Message: fmt.Sprintf("statut mis a jour: %s", updated.Statut),
			Statut:  string(updated.Statut),
		})
	}
}

func roomHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseID(w, r)
		if !ok {
			return
		}

		salle := r.URL.Query().Get("salle")
		updated, err := svc.SetRoom(r.Context(), id, appointment.Salle(salle))
		if err != nil {
			handleServiceError(w, err)
			return
		}

		msg := fmt.Sprintf("salle attribuee: %s", updated.Salle)
		if updated.Salle == appointment.SalleNone {
			msg = "salle liberee"
		}
		writeJSON(w, http.StatusOK, RoomUpdateResponse{
			Message: msg,
			Salle:   string(updated.Salle),
		})
	}
}

func priorityHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseID(w, r)
		if !ok {
			return
		}

		var req UpdatePriorityRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		res, err := svc.Reorder(r.Context(), id, req.Action, req.Position)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, PriorityUpdateResponse{
			Message:          res.Message,
			PreviousPosition: res.PreviousPosition,
			NewPosition:      res.NewPosition,
			TotalWaiting:     res.TotalWaiting,
			Action:           res.Action,
		})
	}
}

func parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_rdv_id", "id must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, appointment.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "rdv_not_found", err.Error())
	case errors.Is(err, appointment.ErrInvalidDate):
		writeError(w, http.StatusBadRequest, "invalid_date", err.Error())
	case errors.Is(err, appointment.ErrInvalidHeure):
		writeError(w, http.StatusBadRequest, "invalid_heure", err.Error())
	case errors.Is(err, appointment.ErrInvalidStatus),
		errors.Is(err, appointment.ErrNotWaiting):
		writeError(w, http.StatusBadRequest, "invalid_statut", err.Error())
	case errors.Is(err, appointment.ErrInvalidTypeRdv):
		writeError(w, http.StatusBadRequest, "invalid_type_rdv", err.Error())
	case errors.Is(err, appointment.ErrInvalidSalle):
		writeError(w, http.StatusBadRequest, "invalid_salle", err.Error())
	case errors.Is(err, appointment.ErrInvalidAction):
		writeError(w, http.StatusBadRequest, "invalid_action", err.Error())
	case errors.Is(err, appointment.ErrMissingParameter):
		writeError(w, http.StatusBadRequest, "missing_parameter", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
