package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/drheny/cab-sub000/internal/appointment"
	"github.com/drheny/cab-sub000/internal/config"
	redisclient "github.com/drheny/cab-sub000/internal/redis"
)

// All fixture dates are far in the future so the delay detector never
// rewrites a programme entry to retard mid-test.
const testDate = "2030-06-03"

func newTestRouter(t *testing.T) (http.Handler, *appointment.Service, *appointment.MemoryRepository) {
	t.Helper()
	repo := appointment.NewMemoryRepository()
	svc := appointment.NewService(repo, redisclient.NewLocalQueueLocker(), config.Config{})
	router := NewRouter(RouterConfig{Service: svc, Env: "test", Version: "test"})
	return router, svc, repo
}

func createAppointment(t *testing.T, svc *appointment.Service, a appointment.Appointment) *appointment.Appointment {
	t.Helper()
	if a.Date == "" {
		a.Date = testDate
	}
	if a.Heure == "" {
		a.Heure = "09:00"
	}
	if a.PatientID == uuid.Nil {
		a.PatientID = uuid.New()
	}
	created, err := svc.CreateAppointment(context.Background(), &a)
	if err != nil {
		t.Fatalf("create appointment: %v", err)
	}
	return created
}

func doRequest(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

// ---------- Day view ----------

func TestDayEndpoint_SortAndFields(t *testing.T) {
	router, svc, repo := newTestRouter(t)

	patientID := uuid.New()
	repo.AddPatient(patientID, appointment.PatientSummary{Nom: "Trabelsi", Prenom: "Amina", Telephone: "+216 98 765 432"})

	second := createAppointment(t, svc, appointment.Appointment{Statut: appointment.StatusAttente, Priority: 1, Heure: "08:30"})
	first := createAppointment(t, svc, appointment.Appointment{Statut: appointment.StatusAttente, Priority: 0, Heure: "10:00", PatientID: patientID})
	scheduled := createAppointment(t, svc, appointment.Appointment{Statut: appointment.StatusProgramme, Heure: "14:00"})

	rec := doRequest(t, router, http.MethodGet, "/rdv/day/"+testDate, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}

	entries := decode[[]AppointmentResponse](t, rec)
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}

	wantOrder := []uuid.UUID{first.ID, second.ID, scheduled.ID}
	for i, want := range wantOrder {
		if entries[i].ID != want {
			t.Errorf("entry %d is %s, want %s", i, entries[i].ID, want)
		}
	}

	if entries[0].Patient.Nom != "Trabelsi" || entries[0].Patient.LienWhatsapp != "https://wa.me/21698765432" {
		t.Errorf("unexpected patient summary: %+v", entries[0].Patient)
	}
	// Unknown patient degrades to empty strings.
	if entries[1].Patient.Nom != "" || entries[1].Patient.Telephone != "" {
		t.Errorf("missing patient should yield empty summary: %+v", entries[1].Patient)
	}
}

func TestDayEndpoint_InvalidDate(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := doRequest(t, router, http.MethodGet, "/rdv/day/03-06-2030", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", rec.Code)
	}
	if resp := decode[ErrorResponse](t, rec); resp.Error != "invalid_date" {
		t.Errorf("error code %q", resp.Error)
	}
}

// ---------- Week view ----------

func TestWeekEndpoint(t *testing.T) {
	router, svc, _ := newTestRouter(t)

	// 2030-06-03 is a Monday.
	createAppointment(t, svc, appointment.Appointment{Date: "2030-06-05", Heure: "10:00"})
	createAppointment(t, svc, appointment.Appointment{Date: "2030-06-09", Heure: "09:00"}) // Sunday

	rec := doRequest(t, router, http.MethodGet, "/rdv/week/2030-06-05", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}

	week := decode[WeekResponse](t, rec)
	if len(week.WeekDates) != 6 {
		t.Fatalf("expected 6 week dates, got %d", len(week.WeekDates))
	}
	if week.WeekDates[0] != "2030-06-03" || week.WeekDates[5] != "2030-06-08" {
		t.Errorf("window is %s..%s", week.WeekDates[0], week.WeekDates[5])
	}
	if len(week.Appointments) != 1 {
		t.Errorf("expected only the in-window appointment, got %d", len(week.Appointments))
	}
}

// ---------- Stats ----------

func TestStatsEndpoint_Identity(t *testing.T) {
	router, svc, _ := newTestRouter(t)

	createAppointment(t, svc, appointment.Appointment{Statut: appointment.StatusTermine, TypeRdv: appointment.TypeVisite, Paye: true, Heure: "09:00"})
	createAppointment(t, svc, appointment.Appointment{Statut: appointment.StatusAttente, TypeRdv: appointment.TypeControle, Heure: "09:15"})
	createAppointment(t, svc, appointment.Appointment{Statut: appointment.StatusProgramme, TypeRdv: appointment.TypeVisite, Heure: "09:30"})

	rec := doRequest(t, router, http.MethodGet, "/rdv/stats/"+testDate, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}

	stats := decode[StatsResponse](t, rec)
	if stats.Total != 3 {
		t.Errorf("total %d, want 3", stats.Total)
	}
	if stats.Visites+stats.Controles != stats.Total {
		t.Errorf("type identity broken: %d+%d != %d", stats.Visites, stats.Controles, stats.Total)
	}
	if stats.Payes+stats.NonPayes != stats.Total {
		t.Errorf("payment identity broken: %d+%d != %d", stats.Payes, stats.NonPayes, stats.Total)
	}
	// 2 of 3 seen or present.
	if stats.AttendanceRate != 66.7 {
		t.Errorf("attendance rate %v, want 66.7", stats.AttendanceRate)
	}
	if stats.ParStatut["attente"] != 1 || stats.ParStatut["termine"] != 1 {
		t.Errorf("unexpected par_statut: %v", stats.ParStatut)
	}
}

// ---------- Time slots ----------

func TestTimeSlotsEndpoint(t *testing.T) {
	router, svc, _ := newTestRouter(t)

	createAppointment(t, svc, appointment.Appointment{Heure: "09:00"})

	rec := doRequest(t, router, http.MethodGet, "/rdv/time_slots?date="+testDate, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}

	slots := decode[[]TimeSlotResponse](t, rec)
	if len(slots) != 36 {
		t.Fatalf("expected 36 slots, got %d", len(slots))
	}
	if slots[0].Time != "09:00" || slots[35].Time != "17:45" {
		t.Errorf("grid bounds %s..%s", slots[0].Time, slots[35].Time)
	}
	if slots[0].Available || slots[0].OccupiedCount != 1 {
		t.Errorf("09:00 should be occupied: %+v", slots[0])
	}
	if !slots[1].Available {
		t.Errorf("09:15 should be free: %+v", slots[1])
	}
}

func TestTimeSlotsEndpoint_MissingDate(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := doRequest(t, router, http.MethodGet, "/rdv/time_slots", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", rec.Code)
	}
}

// ---------- Status updates ----------

func TestStatusEndpoint(t *testing.T) {
	router, svc, _ := newTestRouter(t)
	a := createAppointment(t, svc, appointment.Appointment{})

	rec := doRequest(t, router, http.MethodPut, fmt.Sprintf("/rdv/%s/status", a.ID), UpdateStatusRequest{Statut: "attente"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}

	resp := decode[StatusUpdateResponse](t, rec)
	if resp.Statut != "attente" {
		t.Errorf("statut %q, want attente", resp.Statut)
	}
	if resp.Message == "" {
		t.Error("missing message")
	}

	updated, err := svc.GetAppointment(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if updated.HeureArriveeAttente == nil {
		t.Error("check-in did not stamp the arrival time")
	}
}

func TestStatusEndpoint_Errors(t *testing.T) {
	router, svc, _ := newTestRouter(t)
	a := createAppointment(t, svc, appointment.Appointment{})

	tests := []struct {
		name     string
		path     string
		body     any
		wantCode int
		wantErr  string
	}{
		{"unknown id", "/rdv/" + uuid.NewString() + "/status", UpdateStatusRequest{Statut: "attente"}, http.StatusNotFound, "rdv_not_found"},
		{"invalid statut", fmt.Sprintf("/rdv/%s/status", a.ID), UpdateStatusRequest{Statut: "cancelled"}, http.StatusBadRequest, "invalid_statut"},
		{"malformed id", "/rdv/not-a-uuid/status", UpdateStatusRequest{Statut: "attente"}, http.StatusBadRequest, "invalid_rdv_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, router, http.MethodPut, tt.path, tt.body)
			if rec.Code != tt.wantCode {
				t.Fatalf("status %d, want %d: %s", rec.Code, tt.wantCode, rec.Body.String())
			}
			if resp := decode[ErrorResponse](t, rec); resp.Error != tt.wantErr {
				t.Errorf("error code %q, want %q", resp.Error, tt.wantErr)
			}
		})
	}
}

// ---------- Room updates ----------

func TestRoomEndpoint(t *testing.T) {
	router, svc, _ := newTestRouter(t)
	a := createAppointment(t, svc, appointment.Appointment{})

	rec := doRequest(t, router, http.MethodPut, fmt.Sprintf("/rdv/%s/room?salle=salle2", a.ID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	if resp := decode[RoomUpdateResponse](t, rec); resp.Salle != "salle2" {
		t.Errorf("salle %q, want salle2", resp.Salle)
	}

	// Clearing the room is a valid assignment.
	rec = doRequest(t, router, http.MethodPut, fmt.Sprintf("/rdv/%s/room", a.ID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("clear room status %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, router, http.MethodPut, fmt.Sprintf("/rdv/%s/room?salle=salle7", a.ID), nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid room status %d, want 400", rec.Code)
	}
	if resp := decode[ErrorResponse](t, rec); resp.Error != "invalid_salle" {
		t.Errorf("error code %q", resp.Error)
	}

	rec = doRequest(t, router, http.MethodPut, "/rdv/"+uuid.NewString()+"/room?salle=salle1", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown id status %d, want 404", rec.Code)
	}
}

// ---------- Priority updates ----------

func seedWaiting(t *testing.T, svc *appointment.Service, n int) []*appointment.Appointment {
	t.Helper()
	out := make([]*appointment.Appointment, n)
	for i := range out {
		out[i] = createAppointment(t, svc, appointment.Appointment{
			Statut:   appointment.StatusAttente,
			Priority: i,
			Heure:    fmt.Sprintf("09:%02d", i*15),
		})
	}
	return out
}

func TestPriorityEndpoint_SetPosition(t *testing.T) {
	router, svc, _ := newTestRouter(t)
	items := seedWaiting(t, svc, 4)

	pos := 2
	rec := doRequest(t, router, http.MethodPut, fmt.Sprintf("/rdv/%s/priority", items[0].ID),
		UpdatePriorityRequest{Action: "set_position", Position: &pos})
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}

	resp := decode[PriorityUpdateResponse](t, rec)
	if resp.PreviousPosition != 1 || resp.NewPosition != 3 || resp.TotalWaiting != 4 || resp.Action != "set_position" {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestPriorityEndpoint_SetFirst(t *testing.T) {
	router, svc, _ := newTestRouter(t)
	items := seedWaiting(t, svc, 3)

	rec := doRequest(t, router, http.MethodPut, fmt.Sprintf("/rdv/%s/priority", items[2].ID),
		UpdatePriorityRequest{Action: "set_first"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	if resp := decode[PriorityUpdateResponse](t, rec); resp.NewPosition != 1 {
		t.Errorf("new position %d, want 1", resp.NewPosition)
	}
}

func TestPriorityEndpoint_Errors(t *testing.T) {
	router, svc, _ := newTestRouter(t)
	items := seedWaiting(t, svc, 2)
	scheduled := createAppointment(t, svc, appointment.Appointment{Statut: appointment.StatusProgramme, Heure: "15:00"})

	tests := []struct {
		name     string
		path     string
		body     UpdatePriorityRequest
		wantCode int
		wantErr  string
	}{
		{"unknown id", "/rdv/" + uuid.NewString() + "/priority", UpdatePriorityRequest{Action: "move_up"}, http.StatusNotFound, "rdv_not_found"},
		{"invalid action", fmt.Sprintf("/rdv/%s/priority", items[0].ID), UpdatePriorityRequest{Action: "swap"}, http.StatusBadRequest, "invalid_action"},
		{"missing position", fmt.Sprintf("/rdv/%s/priority", items[0].ID), UpdatePriorityRequest{Action: "set_position"}, http.StatusBadRequest, "missing_parameter"},
		{"not waiting", fmt.Sprintf("/rdv/%s/priority", scheduled.ID), UpdatePriorityRequest{Action: "move_up"}, http.StatusBadRequest, "invalid_statut"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, router, http.MethodPut, tt.path, tt.body)
			if rec.Code != tt.wantCode {
				t.Fatalf("status %d, want %d: %s", rec.Code, tt.wantCode, rec.Body.String())
			}
			if resp := decode[ErrorResponse](t, rec); resp.Error != tt.wantErr {
				t.Errorf("error code %q, want %q", resp.Error, tt.wantErr)
			}
		})
	}
}

// ---------- Create / delete ----------

func TestCreateAndDeleteEndpoints(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := doRequest(t, router, http.MethodPost, "/rdv/", CreateAppointmentRequest{
		PatientID: uuid.NewString(),
		Date:      testDate,
		Heure:     "11:30",
		TypeRdv:   "controle",
		Motif:     "suivi vaccination",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}

	created := decode[AppointmentResponse](t, rec)
	if created.Statut != "programme" || created.TypeRdv != "controle" {
		t.Errorf("unexpected created entry: %+v", created)
	}

	rec = doRequest(t, router, http.MethodDelete, "/rdv/"+created.ID.String(), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, router, http.MethodDelete, "/rdv/"+created.ID.String(), nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("second delete status %d, want 404", rec.Code)
	}
}

func TestCreateEndpoint_BadBody(t *testing.T) {
	router, _, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/rdv/", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", rec.Code)
	}
}

// ---------- Health ----------

func TestHealthLiveness(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := doRequest(t, router, http.MethodGet, "/health/live", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, want 200", rec.Code)
	}
	if resp := decode[LivenessResponse](t, rec); resp.Status != "ok" {
		t.Errorf("status %q", resp.Status)
	}
}
