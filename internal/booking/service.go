package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/careslot/careslot/internal/config"
	redisclient "github.com/careslot/careslot/internal/redis"
)

const (
	EventAppointmentCreated   = "APPOINTMENT_CREATED"
	EventAppointmentConfirmed = "APPOINTMENT_CONFIRMED"
	EventAppointmentRejected  = "APPOINTMENT_REJECTED"
	EventAvailabilityUpdated  = "AVAILABILITY_UPDATED"
)

var (
	ErrSlotBeingBooked = errors.New("slot is currently being booked, please retry")
)

type Service struct {
	repo   Repository
	locker redisclient.Locker
	cfg    config.Config
	log    zerolog.Logger
	now    func() time.Time
}

func NewService(repo Repository, locker redisclient.Locker, cfg config.Config, log zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		locker: locker,
		cfg:    cfg,
		log:    log.With().Str("component", "booking").Logger(),
		now:    time.Now,
	}
}

// ResolveFreeSlots computes the bookable times for a doctor on one date:
// the weekday's rule expanded into candidate starts, minus taken slots,
// minus same-day times inside the lead-time buffer. An unknown doctor or a
// weekday without an active rule yields an empty list, not an error.
func (s *Service) ResolveFreeSlots(ctx context.Context, doctorID uuid.UUID, date string) ([]string, error) {
	day, err := ParseDate(date)
	if err != nil {
		return nil, invalid("date", "must be YYYY-MM-DD")
	}

	weekday := int(day.Weekday())

	rules, taken, err := s.repo.GetDaySchedule(ctx, doctorID, weekday, date)
	if err != nil {
		return nil, fmt.Errorf("load day schedule: %w", err)
	}

	free := ResolveDay(rules, taken, day, s.now().UTC(), s.cfg.BookingLeadTime)

	out := make([]string, 0, len(free))
	for _, slot := range free {
		out = append(out, slot.String())
	}
	return out, nil
}

// CreateAppointment books a slot for a patient, creating a pending
// appointment. Admission is the uniqueness invariant alone: the requested
// time is deliberately not re-checked against ResolveFreeSlots, so a client
// racing ahead with a stale slot list simply hits ErrSlotTaken. The Redis
// lock serializes the common case; the slot-guard index settles the rest.
func (s *Service) CreateAppointment(ctx context.Context, doctorID, patientID uuid.UUID, date, timeOfDay string, description *string) (*Appointment, error) {
	if _, err := ParseDate(date); err != nil {
		return nil, invalid("date", "must be YYYY-MM-DD")
	}
	slot, err := ParseTimeOfDay(timeOfDay)
	if err != nil {
		return nil, invalid("time", "must be HH:MM")
	}

	if _, err := s.repo.GetPatientByID(ctx, patientID); err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}
	if _, err := s.repo.GetDoctorByID(ctx, doctorID); err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load doctor: %w", err)
	}

	var created *Appointment

	book := func(bookCtx context.Context) error {
		appt, err := s.repo.CreateAppointment(bookCtx, doctorID, patientID, date, slot, description)
		if err != nil {
			return err
		}
		created = appt

		s.logEvent(bookCtx, appt.ID, EventAppointmentCreated, map[string]any{
			"doctor_id":  doctorID.String(),
			"patient_id": patientID.String(),
			"date":       date,
			"time":       slot.String(),
		})
		return nil
	}

	key := redisclient.SlotLockKey(doctorID, date, slot.String())
	err = s.locker.WithSlotLock(ctx, key, book)
	if errors.Is(err, redisclient.ErrLockUnavailable) {
		// Redis being down only costs the fast path. The slot-guard index
		// still rejects a double booking.
		s.log.Warn().Err(err).Str("key", key).Msg("slot lock unavailable, booking without it")
		err = book(ctx)
	}

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotBeingBooked
		}
		if errors.Is(err, ErrSlotTaken) {
			return nil, err
		}
		return nil, fmt.Errorf("create appointment: %w", err)
	}

	return created, nil
}

// SetAppointmentStatus lets the owning doctor confirm or reject an
// appointment. Both states are terminal; re-applying one is an idempotent
// no-op rather than an error.
func (s *Service) SetAppointmentStatus(ctx context.Context, id, doctorID uuid.UUID, status AppointmentStatus) (*Appointment, error) {
	if status != StatusConfirmed && status != StatusRejected {
		return nil, invalid("status", "must be confirmed or rejected")
	}

	updated, err := s.repo.SetAppointmentStatus(ctx, id, doctorID, status)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("set appointment status: %w", err)
	}

	event := EventAppointmentConfirmed
	if status == StatusRejected {
		event = EventAppointmentRejected
	}
	s.logEvent(ctx, updated.ID, event, map[string]any{
		"doctor_id": doctorID.String(),
	})

	return updated, nil
}

// SaveWeeklyAvailability upserts the submitted weekdays for a doctor in one
// atomic call. Weekdays absent from the payload keep their existing rule.
func (s *Service) SaveWeeklyAvailability(ctx context.Context, doctorID uuid.UUID, inputs []RuleInput) error {
	if len(inputs) == 0 {
		return invalid("rules", "at least one weekday is required")
	}

	seen := make(map[int]bool)
	rules := make([]AvailabilityRule, 0, len(inputs))

	for _, in := range inputs {
		if in.Weekday < 0 || in.Weekday > 6 {
			return invalid("weekday", "must be between 0 (Sunday) and 6 (Saturday)")
		}
		if seen[in.Weekday] {
			return invalid("weekday", fmt.Sprintf("weekday %d appears more than once", in.Weekday))
		}
		seen[in.Weekday] = true

		start, err := ParseTimeOfDay(in.StartTime)
		if err != nil {
			return invalid("start_time", "must be HH:MM")
		}
		end, err := ParseTimeOfDay(in.EndTime)
		if err != nil {
			return invalid("end_time", "must be HH:MM")
		}

		slotMinutes := in.SlotMinutes
		if slotMinutes == 0 {
			slotMinutes = 30
		}
		if slotMinutes < 5 || slotMinutes > 240 {
			return invalid("slot_minutes", "must be between 5 and 240")
		}

		if in.IsActive && start >= end {
			return invalid("start_time", "must be before end_time")
		}

		rules = append(rules, AvailabilityRule{
			DoctorID:    doctorID,
			Weekday:     in.Weekday,
			StartTime:   start,
			EndTime:     end,
			SlotMinutes: slotMinutes,
			IsActive:    in.IsActive,
		})
	}

	if _, err := s.repo.GetDoctorByID(ctx, doctorID); err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return err
		}
		return fmt.Errorf("load doctor: %w", err)
	}

	if err := s.repo.SaveAvailabilityRules(ctx, doctorID, rules); err != nil {
		return fmt.Errorf("save availability rules: %w", err)
	}

	weekdays := make([]int, 0, len(rules))
	for _, r := range rules {
		weekdays = append(weekdays, r.Weekday)
	}
	s.logEvent(ctx, uuid.Nil, EventAvailabilityUpdated, map[string]any{
		"doctor_id": doctorID.String(),
		"weekdays":  weekdays,
	})

	return nil
}

// Directory and listing reads

func (s *Service) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	d, err := s.repo.GetDoctorByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get doctor: %w", err)
	}
	return d, nil
}

func (s *Service) ListDoctors(ctx context.Context, filter DoctorFilter) ([]Doctor, error) {
	doctors, err := s.repo.ListDoctors(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list doctors: %w", err)
	}
	return doctors, nil
}

func (s *Service) ListFields(ctx context.Context) ([]string, error) {
	fields, err := s.repo.ListFields(ctx)
	if err != nil {
		return nil, fmt.Errorf("list fields: %w", err)
	}
	return fields, nil
}

func (s *Service) ListAvailabilityRules(ctx context.Context, doctorID uuid.UUID) ([]AvailabilityRule, error) {
	rules, err := s.repo.ListAvailabilityRules(ctx, doctorID)
	if err != nil {
		return nil, fmt.Errorf("list availability rules: %w", err)
	}
	return rules, nil
}

func (s *Service) ListDoctorAppointments(ctx context.Context, doctorID uuid.UUID, filter AppointmentFilter) ([]DoctorAppointment, error) {
	if filter.Status != "" {
		switch filter.Status {
		case StatusPending, StatusConfirmed, StatusRejected:
		default:
			return nil, invalid("status", "must be pending, confirmed or rejected")
		}
	}
	if filter.FromDate != "" {
		if _, err := ParseDate(filter.FromDate); err != nil {
			return nil, invalid("from", "must be YYYY-MM-DD")
		}
	}
	if filter.ToDate != "" {
		if _, err := ParseDate(filter.ToDate); err != nil {
			return nil, invalid("to", "must be YYYY-MM-DD")
		}
	}

	appts, err := s.repo.ListDoctorAppointments(ctx, doctorID, filter)
	if err != nil {
		return nil, fmt.Errorf("list doctor appointments: %w", err)
	}
	return appts, nil
}

func (s *Service) ListPatientAppointments(ctx context.Context, patientID uuid.UUID) ([]PatientAppointment, error) {
	appts, err := s.repo.ListPatientAppointments(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("list patient appointments: %w", err)
	}
	return appts, nil
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Error().Err(err).Str("event", eventType).Msg("marshal event payload")
		data = nil
	}

	ev := EventLog{
		EventType: eventType,
		Payload:   data,
		CreatedAt: s.now(),
	}
	if appointmentID != uuid.Nil {
		apptID := appointmentID
		ev.AppointmentID = &apptID
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.log.Error().Err(err).Str("event", eventType).Msg("insert event log")
	}
}
