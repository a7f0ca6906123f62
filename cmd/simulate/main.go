package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/careslot/careslot/internal/db"
)

// simulate races concurrent booking requests for the same doctor/date/time
// slots against a running api-server, then verifies that every contested
// slot produced exactly one created appointment and conflicts for the rest.

type SimConfig struct {
	APIBaseURL  string
	Slots       int // contested slots to race over
	Contenders  int // concurrent bookings per slot
	Date        string
	PostgresDSN string
}

type slotResult struct {
	time      string
	created   int
	conflicts int
	errors    int
}

var logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()

func main() {
	logger.Info().Msg("simulator starting")

	cfg := SimConfig{
		APIBaseURL:  getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Slots:       getInt("SIM_SLOTS", 8),
		Contenders:  getInt("SIM_CONTENDERS", 12),
		Date:        getEnv("SIM_DATE", time.Now().UTC().AddDate(0, 0, 7).Format("2006-01-02")),
		PostgresDSN: os.Getenv("POSTGRES_DSN"),
	}
	if cfg.PostgresDSN == "" {
		logger.Fatal().Msg("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pgPool.Close()

	doctorID, patientIDs, err := loadActors(ctx, pgPool, cfg.Contenders)
	if err != nil {
		logger.Fatal().Err(err).Msg("load actors")
	}

	logger.Info().
		Str("doctor", doctorID.String()).
		Int("slots", cfg.Slots).
		Int("contenders", cfg.Contenders).
		Str("date", cfg.Date).
		Msg("racing bookings")

	client := &http.Client{Timeout: 10 * time.Second}

	failed := false
	for i := 0; i < cfg.Slots; i++ {
		slot := fmt.Sprintf("%02d:%02d", 9+i/2, (i%2)*30)
		res := raceSlot(client, cfg, doctorID, patientIDs, slot)

		evt := logger.Info()
		if res.created != 1 {
			evt = logger.Error()
			failed = true
		}
		evt.
			Str("slot", res.time).
			Int("created", res.created).
			Int("conflicts", res.conflicts).
			Int("errors", res.errors).
			Msg("slot raced")
	}

	if failed {
		logger.Fatal().Msg("conflict guard violated: a contested slot did not end with exactly one booking")
	}
	logger.Info().Msg("simulation complete: every contested slot was booked exactly once")
}

func raceSlot(client *http.Client, cfg SimConfig, doctorID uuid.UUID, patientIDs []uuid.UUID, slot string) slotResult {
	res := slotResult{time: slot}

	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, patientID := range patientIDs {
		wg.Add(1)
		go func(patientID uuid.UUID) {
			defer wg.Done()

			status, err := postBooking(client, cfg.APIBaseURL, doctorID, patientID, cfg.Date, slot)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				res.errors++
			case status == http.StatusCreated:
				res.created++
			case status == http.StatusConflict:
				res.conflicts++
			default:
				res.errors++
			}
		}(patientID)
	}

	wg.Wait()
	return res
}

func postBooking(client *http.Client, baseURL string, doctorID, patientID uuid.UUID, date, slot string) (int, error) {
	payload, err := json.Marshal(map[string]string{
		"doctor_id":  doctorID.String(),
		"patient_id": patientID.String(),
		"date":       date,
		"time":       slot,
	})
	if err != nil {
		return 0, err
	}

	resp, err := client.Post(baseURL+"/api/appointments", "application/json", bytes.NewReader(payload))
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode, nil
}

func loadActors(ctx context.Context, pool *pgxpool.Pool, patients int) (uuid.UUID, []uuid.UUID, error) {
	var doctorID uuid.UUID
	if err := pool.QueryRow(ctx, `SELECT id FROM doctors LIMIT 1`).Scan(&doctorID); err != nil {
		return uuid.Nil, nil, fmt.Errorf("load doctor: %w", err)
	}

	rows, err := pool.Query(ctx, `SELECT id FROM patients LIMIT $1`, patients)
	if err != nil {
		return uuid.Nil, nil, fmt.Errorf("load patients: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return uuid.Nil, nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return uuid.Nil, nil, err
	}
	if len(ids) == 0 {
		return uuid.Nil, nil, fmt.Errorf("no patients seeded")
	}

	return doctorID, ids, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
