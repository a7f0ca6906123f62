package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/careslot/careslot/internal/booking"
)

type CreateAppointmentRequest struct {
	DoctorID    string  `json:"doctor_id"`
	PatientID   string  `json:"patient_id"`
	Date        string  `json:"date"`
	Time        string  `json:"time"`
	Description *string `json:"description,omitempty"`
}

type SetStatusRequest struct {
	DoctorID string `json:"doctor_id"`
	Status   string `json:"status"`
}

type RuleInput struct {
	Weekday     int    `json:"weekday"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	SlotMinutes int    `json:"slot_minutes,omitempty"`
	IsActive    bool   `json:"is_active"`
}

type AppointmentResponse struct {
	ID          uuid.UUID `json:"id"`
	DoctorID    uuid.UUID `json:"doctor_id"`
	PatientID   uuid.UUID `json:"patient_id"`
	Date        string    `json:"date"`
	Time        string    `json:"time"`
	Description *string   `json:"description,omitempty"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toAppointmentResponse(a *booking.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:          a.ID,
		DoctorID:    a.DoctorID,
		PatientID:   a.PatientID,
		Date:        a.Date,
		Time:        a.Time.String(),
		Description: a.Description,
		Status:      string(a.Status),
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

type DoctorAppointmentResponse struct {
	AppointmentResponse
	PatientName  string `json:"patient_name"`
	PatientEmail string `json:"patient_email"`
}

type PatientAppointmentResponse struct {
	AppointmentResponse
	DoctorFirstName string `json:"doctor_first_name"`
	DoctorLastName  string `json:"doctor_last_name"`
	DoctorField     string `json:"doctor_field"`
	DoctorLocation  string `json:"doctor_location"`
}

type DoctorResponse struct {
	ID          uuid.UUID `json:"id"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	Email       string    `json:"email"`
	Field       string    `json:"field"`
	Location    string    `json:"location"`
	PhoneNumber *string   `json:"phone_number,omitempty"`
	About       *string   `json:"about,omitempty"`
}

func toDoctorResponse(d *booking.Doctor) DoctorResponse {
	return DoctorResponse{
		ID:          d.ID,
		FirstName:   d.FirstName,
		LastName:    d.LastName,
		Email:       d.Email,
		Field:       d.Field,
		Location:    d.Location,
		PhoneNumber: d.PhoneNumber,
		About:       d.About,
	}
}

type RuleResponse struct {
	Weekday     int    `json:"weekday"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	SlotMinutes int    `json:"slot_minutes"`
	IsActive    bool   `json:"is_active"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
