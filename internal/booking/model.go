package booking

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusRejected  AppointmentStatus = "rejected"
)

// Terminal reports whether an appointment can still change state.
// pending -> {confirmed, rejected}; both are final.
func (s AppointmentStatus) Terminal() bool {
	return s == StatusConfirmed || s == StatusRejected
}

type Doctor struct {
	ID          uuid.UUID
	FirstName   string
	LastName    string
	Email       string
	Field       string
	Location    string
	PhoneNumber *string
	About       *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Patient struct {
	ID        uuid.UUID
	UserName  string
	Email     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AvailabilityRule is a doctor's recurring weekly window. One row per
// (doctor, weekday); saving a weekday replaces the previous row wholesale.
type AvailabilityRule struct {
	ID          uuid.UUID
	DoctorID    uuid.UUID
	Weekday     int // 0=Sunday .. 6=Saturday
	StartTime   TimeOfDay
	EndTime     TimeOfDay
	SlotMinutes int
	IsActive    bool
}

type Appointment struct {
	ID          uuid.UUID
	DoctorID    uuid.UUID
	PatientID   uuid.UUID
	Date        string // YYYY-MM-DD
	Time        TimeOfDay
	Description *string
	Status      AppointmentStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// DoctorAppointment is an appointment as seen from the doctor's list,
// joined with the booking patient.
type DoctorAppointment struct {
	Appointment
	PatientName  string
	PatientEmail string
}

// PatientAppointment is an appointment as seen from the patient's list,
// joined with the doctor it was booked with.
type PatientAppointment struct {
	Appointment
	DoctorFirstName string
	DoctorLastName  string
	DoctorField     string
	DoctorLocation  string
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}

// RuleInput is one weekday's window in a weekly-availability save request.
type RuleInput struct {
	Weekday     int
	StartTime   string // HH:MM
	EndTime     string // HH:MM
	SlotMinutes int    // 0 means default (30)
	IsActive    bool
}

type DoctorFilter struct {
	Field string
	Query string
	Page  int
	Limit int
}

type AppointmentFilter struct {
	Status   AppointmentStatus // empty = all
	FromDate string            // YYYY-MM-DD, empty = unbounded
	ToDate   string            // YYYY-MM-DD, empty = unbounded
}
