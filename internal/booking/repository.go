package booking

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrDoctorNotFound      = errors.New("doctor not found")
	ErrPatientNotFound     = errors.New("patient not found")
	ErrAppointmentNotFound = errors.New("appointment not found")

	// ErrSlotTaken is the conflict-guard failure: another pending or
	// confirmed appointment already occupies the doctor/date/time.
	ErrSlotTaken = errors.New("slot already taken")
)

// ValidationError rejects malformed input before any storage access.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func invalid(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// Repository contains all DB interactions needed by the service.
type Repository interface {
	GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	ListDoctors(ctx context.Context, filter DoctorFilter) ([]Doctor, error)
	ListFields(ctx context.Context) ([]string, error)
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)

	// For slot resolution. Both reads run in one read-only snapshot so a
	// booking landing between them cannot show up as free.
	GetDaySchedule(ctx context.Context, doctorID uuid.UUID, weekday int, date string) (rules []AvailabilityRule, taken []TimeOfDay, err error)

	ListAvailabilityRules(ctx context.Context, doctorID uuid.UUID) ([]AvailabilityRule, error)

	// SaveAvailabilityRules upserts the submitted weekdays atomically.
	// Weekdays not present in rules are left untouched.
	SaveAvailabilityRules(ctx context.Context, doctorID uuid.UUID, rules []AvailabilityRule) error

	// CreateAppointment inserts a pending row; returns ErrSlotTaken when the
	// slot-guard unique index rejects it.
	CreateAppointment(ctx context.Context, doctorID, patientID uuid.UUID, date string, timeOfDay TimeOfDay, description *string) (*Appointment, error)

	// SetAppointmentStatus updates status for an appointment owned by
	// doctorID; a missing row and a foreign row both return
	// ErrAppointmentNotFound.
	SetAppointmentStatus(ctx context.Context, id, doctorID uuid.UUID, status AppointmentStatus) (*Appointment, error)

	ListDoctorAppointments(ctx context.Context, doctorID uuid.UUID, filter AppointmentFilter) ([]DoctorAppointment, error)
	ListPatientAppointments(ctx context.Context, patientID uuid.UUID) ([]PatientAppointment, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}
