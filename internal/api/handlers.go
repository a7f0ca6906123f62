package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/careslot/careslot/internal/booking"
	redisclient "github.com/careslot/careslot/internal/redis"
)

func fieldsHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fields, err := svc.ListFields(r.Context())
		if err != nil {
			handleServiceError(w, err)
			return
		}
		if fields == nil {
			fields = []string{}
		}
		writeJSON(w, http.StatusOK, fields)
	}
}

func listDoctorsHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		page, _ := strconv.Atoi(q.Get("page"))
		limit, _ := strconv.Atoi(q.Get("limit"))

		doctors, err := svc.ListDoctors(r.Context(), booking.DoctorFilter{
			Field: q.Get("field"),
			Query: q.Get("q"),
			Page:  page,
			Limit: limit,
		})
		if err != nil {
			handleServiceError(w, err)
			return
		}

		resp := make([]DoctorResponse, 0, len(doctors))
		for i := range doctors {
			resp = append(resp, toDoctorResponse(&doctors[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func getDoctorHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseUUIDParam(w, r, "id", "doctor id")
		if !ok {
			return
		}

		doctor, err := svc.GetDoctor(r.Context(), id)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toDoctorResponse(doctor))
	}
}

func availabilityHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseUUIDParam(w, r, "id", "doctor id")
		if !ok {
			return
		}

		slots, err := svc.ResolveFreeSlots(r.Context(), id, r.URL.Query().Get("date"))
		if err != nil {
			handleServiceError(w, err)
			return
		}
		if slots == nil {
			slots = []string{}
		}
		writeJSON(w, http.StatusOK, slots)
	}
}

func listRulesHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseUUIDParam(w, r, "id", "doctor id")
		if !ok {
			return
		}

		rules, err := svc.ListAvailabilityRules(r.Context(), id)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		resp := make([]RuleResponse, 0, len(rules))
		for _, rule := range rules {
			resp = append(resp, RuleResponse{
				Weekday:     rule.Weekday,
				StartTime:   rule.StartTime.String(),
				EndTime:     rule.EndTime.String(),
				SlotMinutes: rule.SlotMinutes,
				IsActive:    rule.IsActive,
			})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func saveRulesHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseUUIDParam(w, r, "id", "doctor id")
		if !ok {
			return
		}

		var req []RuleInput
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		inputs := make([]booking.RuleInput, 0, len(req))
		for _, in := range req {
			inputs = append(inputs, booking.RuleInput{
				Weekday:     in.Weekday,
				StartTime:   in.StartTime,
				EndTime:     in.EndTime,
				SlotMinutes: in.SlotMinutes,
				IsActive:    in.IsActive,
			})
		}

		if err := svc.SaveWeeklyAvailability(r.Context(), id, inputs); err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	}
}

func createAppointmentHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		doctorID, err := uuid.Parse(req.DoctorID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
			return
		}

		patientID, err := uuid.Parse(req.PatientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}

		appt, err := svc.CreateAppointment(r.Context(), doctorID, patientID, req.Date, req.Time, req.Description)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func setStatusHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseUUIDParam(w, r, "id", "appointment id")
		if !ok {
			return
		}

		var req SetStatusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		doctorID, err := uuid.Parse(req.DoctorID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
			return
		}

		appt, err := svc.SetAppointmentStatus(r.Context(), id, doctorID, booking.AppointmentStatus(req.Status))
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func doctorAppointmentsHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseUUIDParam(w, r, "id", "doctor id")
		if !ok {
			return
		}

		q := r.URL.Query()
		appts, err := svc.ListDoctorAppointments(r.Context(), id, booking.AppointmentFilter{
			Status:   booking.AppointmentStatus(q.Get("status")),
			FromDate: q.Get("from"),
			ToDate:   q.Get("to"),
		})
		if err != nil {
			handleServiceError(w, err)
			return
		}

		resp := make([]DoctorAppointmentResponse, 0, len(appts))
		for i := range appts {
			resp = append(resp, DoctorAppointmentResponse{
				AppointmentResponse: toAppointmentResponse(&appts[i].Appointment),
				PatientName:         appts[i].PatientName,
				PatientEmail:        appts[i].PatientEmail,
			})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func patientAppointmentsHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseUUIDParam(w, r, "id", "patient id")
		if !ok {
			return
		}

		appts, err := svc.ListPatientAppointments(r.Context(), id)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		resp := make([]PatientAppointmentResponse, 0, len(appts))
		for i := range appts {
			resp = append(resp, PatientAppointmentResponse{
				AppointmentResponse: toAppointmentResponse(&appts[i].Appointment),
				DoctorFirstName:     appts[i].DoctorFirstName,
				DoctorLastName:      appts[i].DoctorLastName,
				DoctorField:         appts[i].DoctorField,
				DoctorLocation:      appts[i].DoctorLocation,
			})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func parseUUIDParam(w http.ResponseWriter, r *http.Request, param, label string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_"+param, label+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func handleServiceError(w http.ResponseWriter, err error) {
	var vErr *booking.ValidationError
	var connErr *pgconn.ConnectError

	switch {
	case errors.As(err, &vErr):
		writeError(w, http.StatusBadRequest, "validation_error", vErr.Error())
	case errors.Is(err, booking.ErrSlotTaken):
		writeError(w, http.StatusConflict, "slot_taken", "slot already taken, please pick another time")
	case errors.Is(err, booking.ErrSlotBeingBooked),
		errors.Is(err, redisclient.ErrLockNotAcquired):
		writeError(w, http.StatusConflict, "slot_being_booked", "slot is currently being booked, please retry shortly")
	case errors.Is(err, booking.ErrDoctorNotFound):
		writeError(w, http.StatusNotFound, "doctor_not_found", "doctor not found")
	case errors.Is(err, booking.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", "patient not found")
	case errors.Is(err, booking.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", "appointment not found")
	case errors.As(err, &connErr):
		writeError(w, http.StatusServiceUnavailable, "storage_unavailable", "storage is unreachable, please retry later")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
