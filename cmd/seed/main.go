package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/careslot/careslot/internal/db"
)

var logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()

func main() {
	logger.Info().Msg("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		logger.Fatal().Msg("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	doctorIDs, err := seedDoctors(context.Background(), pool, 50)
	if err != nil {
		logger.Fatal().Err(err).Msg("seed doctors")
	}
	if err := seedPatients(context.Background(), pool, 500); err != nil {
		logger.Fatal().Err(err).Msg("seed patients")
	}
	if err := seedAvailability(context.Background(), pool, doctorIDs); err != nil {
		logger.Fatal().Err(err).Msg("seed availability")
	}

	logger.Info().Msg("seed complete")
}

func seedDoctors(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	logger.Info().Int("count", count).Msg("seeding doctors")

	fields := []string{
		"Dermatology",
		"Cardiology",
		"General Practice",
		"Orthopedics",
		"Endocrinology",
		"Neurology",
		"Pediatrics",
		"Psychiatry",
		"Ophthalmology",
		"ENT",
	}

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		first := gofakeit.FirstName()
		last := gofakeit.LastName()
		email := fmt.Sprintf("%s.%s.%d@clinic.example", strings.ToLower(first), strings.ToLower(last), i)
		field := fields[gofakeit.Number(0, len(fields)-1)]
		location := gofakeit.City()
		phone := gofakeit.Phone()
		about := gofakeit.Paragraph(1, 3, 12, " ")

		_, err := pool.Exec(ctx, `
			INSERT INTO doctors (id, first_name, last_name, email, field, location, phone_number, about)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, id, first, last, email, field, location, phone, about)
		if err != nil {
			return nil, fmt.Errorf("insert doctor %d: %w", i, err)
		}
		ids = append(ids, id)
	}

	return ids, nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int) error {
	logger.Info().Int("count", count).Msg("seeding patients")

	for i := 0; i < count; i++ {
		name := gofakeit.Username()
		email := fmt.Sprintf("%s.%d@patients.example", strings.ToLower(name), i)

		_, err := pool.Exec(ctx, `
			INSERT INTO patients (id, user_name, email)
			VALUES ($1, $2, $3)
		`, uuid.New(), name, email)
		if err != nil {
			return fmt.Errorf("insert patient %d: %w", i, err)
		}
	}

	return nil
}

// seedAvailability gives every doctor a Monday-Friday week with a randomized
// window and slot size.
func seedAvailability(ctx context.Context, pool *pgxpool.Pool, doctorIDs []uuid.UUID) error {
	logger.Info().Int("doctors", len(doctorIDs)).Msg("seeding availability")

	slotSizes := []int{15, 20, 30, 60}

	for _, doctorID := range doctorIDs {
		startHour := gofakeit.Number(8, 10)
		endHour := gofakeit.Number(16, 18)
		slotMinutes := slotSizes[gofakeit.Number(0, len(slotSizes)-1)]

		for weekday := 1; weekday <= 5; weekday++ {
			_, err := pool.Exec(ctx, `
				INSERT INTO doctor_availability (doctor_id, weekday, start_time, end_time, slot_minutes, is_active)
				VALUES ($1, $2, $3::time, $4::time, $5, true)
			`, doctorID, weekday,
				fmt.Sprintf("%02d:00", startHour),
				fmt.Sprintf("%02d:00", endHour),
				slotMinutes)
			if err != nil {
				return fmt.Errorf("insert availability for doctor %s weekday %d: %w", doctorID, weekday, err)
			}
		}
	}

	return nil
}
