package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/careslot/careslot/internal/booking"
)

// BookingService is what the handlers need from the booking core.
type BookingService interface {
	ResolveFreeSlots(ctx context.Context, doctorID uuid.UUID, date string) ([]string, error)
	CreateAppointment(ctx context.Context, doctorID, patientID uuid.UUID, date, timeOfDay string, description *string) (*booking.Appointment, error)
	SetAppointmentStatus(ctx context.Context, id, doctorID uuid.UUID, status booking.AppointmentStatus) (*booking.Appointment, error)
	SaveWeeklyAvailability(ctx context.Context, doctorID uuid.UUID, inputs []booking.RuleInput) error
	ListAvailabilityRules(ctx context.Context, doctorID uuid.UUID) ([]booking.AvailabilityRule, error)
	GetDoctor(ctx context.Context, id uuid.UUID) (*booking.Doctor, error)
	ListDoctors(ctx context.Context, filter booking.DoctorFilter) ([]booking.Doctor, error)
	ListFields(ctx context.Context) ([]string, error)
	ListDoctorAppointments(ctx context.Context, doctorID uuid.UUID, filter booking.AppointmentFilter) ([]booking.DoctorAppointment, error)
	ListPatientAppointments(ctx context.Context, patientID uuid.UUID) ([]booking.PatientAppointment, error)
}

type RouterConfig struct {
	Service BookingService
	PgPool  *pgxpool.Pool
	Redis   *redis.Client
	Logger  zerolog.Logger
	Env     string
	Version string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	r.Route("/api", func(r chi.Router) {
		r.Get("/fields", fieldsHandler(cfg.Service))
		r.Get("/doctors", listDoctorsHandler(cfg.Service))
		r.Get("/doctors/{id}", getDoctorHandler(cfg.Service))
		r.Get("/doctors/{id}/availability", availabilityHandler(cfg.Service))
		r.Get("/doctors/{id}/availability/rules", listRulesHandler(cfg.Service))
		r.Put("/doctors/{id}/availability/rules", saveRulesHandler(cfg.Service))
		r.Get("/doctors/{id}/appointments", doctorAppointmentsHandler(cfg.Service))

		r.Post("/appointments", createAppointmentHandler(cfg.Service))
		r.Patch("/appointments/{id}", setStatusHandler(cfg.Service))

		r.Get("/patients/{id}/appointments", patientAppointmentsHandler(cfg.Service))
	})

	return r
}
