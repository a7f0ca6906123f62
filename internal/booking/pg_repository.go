package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const slotGuardIndex = "appointments_slot_guard"

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor

	err := row.Scan(
		&d.ID,
		&d.FirstName,
		&d.LastName,
		&d.Email,
		&d.Field,
		&d.Location,
		&d.PhoneNumber,
		&d.About,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}

	return &d, nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient

	err := row.Scan(
		&p.ID,
		&p.UserName,
		&p.Email,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	return &p, nil
}

func scanRule(row pgx.Row) (*AvailabilityRule, error) {
	var r AvailabilityRule
	var start, end string

	err := row.Scan(
		&r.ID,
		&r.DoctorID,
		&r.Weekday,
		&start,
		&end,
		&r.SlotMinutes,
		&r.IsActive,
	)
	if err != nil {
		return nil, err
	}

	if r.StartTime, err = ParseTimeOfDay(start); err != nil {
		return nil, fmt.Errorf("rule start_time: %w", err)
	}
	if r.EndTime, err = ParseTimeOfDay(end); err != nil {
		return nil, fmt.Errorf("rule end_time: %w", err)
	}

	return &r, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var timeOfDay string

	err := row.Scan(
		&a.ID,
		&a.DoctorID,
		&a.PatientID,
		&a.Date,
		&timeOfDay,
		&a.Description,
		&a.Status,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	if a.Time, err = ParseTimeOfDay(timeOfDay); err != nil {
		return nil, fmt.Errorf("appointment time: %w", err)
	}

	return &a, nil
}

// appointmentCols normalizes date and time to the string forms slot identity
// is defined on (minute granularity, no seconds).
const appointmentCols = `
	id, doctor_id, patient_id,
	to_char(date, 'YYYY-MM-DD'), to_char(time, 'HH24:MI'),
	description, status, created_at, updated_at`

// Interface methods

func (r *PgRepository) GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, first_name, last_name, email, field, location, phone_number, about, created_at, updated_at
		FROM doctors
		WHERE id = $1
	`, id)
	return scanDoctor(row)
}

func (r *PgRepository) ListDoctors(ctx context.Context, filter DoctorFilter) ([]Doctor, error) {
	where := []string{}
	params := []any{}

	if filter.Field != "" {
		params = append(params, filter.Field)
		where = append(where, fmt.Sprintf("field = $%d", len(params)))
	}
	if filter.Query != "" {
		params = append(params, "%"+filter.Query+"%")
		where = append(where, fmt.Sprintf(
			"(first_name || ' ' || last_name ILIKE $%d OR location ILIKE $%d)",
			len(params), len(params)))
	}

	whereSQL := ""
	if len(where) > 0 {
		whereSQL = "WHERE " + strings.Join(where, " AND ")
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 12
	}
	if limit > 50 {
		limit = 50
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	params = append(params, limit, (page-1)*limit)

	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
		SELECT id, first_name, last_name, email, field, location, phone_number, about, created_at, updated_at
		FROM doctors
		%s
		ORDER BY last_name, first_name
		LIMIT $%d OFFSET $%d
	`, whereSQL, len(params)-1, len(params)), params...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}
	return result, rows.Err()
}

func (r *PgRepository) ListFields(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT field FROM doctors ORDER BY field ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fields []string
	for rows.Next() {
		var f string
		if err := rows.Scan(&f); err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	return fields, rows.Err()
}

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, user_name, email, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

// GetDaySchedule reads the weekday's rules and the date's taken times inside
// one repeatable-read read-only transaction, so both observe the same
// snapshot of the appointments table.
func (r *PgRepository) GetDaySchedule(ctx context.Context, doctorID uuid.UUID, weekday int, date string) ([]AvailabilityRule, []TimeOfDay, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("begin day schedule tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ruleRows, err := tx.Query(ctx, `
		SELECT id, doctor_id, weekday, to_char(start_time, 'HH24:MI'), to_char(end_time, 'HH24:MI'), slot_minutes, is_active
		FROM doctor_availability
		WHERE doctor_id = $1 AND weekday = $2 AND is_active = true
	`, doctorID, weekday)
	if err != nil {
		return nil, nil, err
	}

	var rules []AvailabilityRule
	for ruleRows.Next() {
		rule, err := scanRule(ruleRows)
		if err != nil {
			ruleRows.Close()
			return nil, nil, err
		}
		rules = append(rules, *rule)
	}
	ruleRows.Close()
	if err := ruleRows.Err(); err != nil {
		return nil, nil, err
	}

	takenRows, err := tx.Query(ctx, `
		SELECT to_char(time, 'HH24:MI')
		FROM appointments
		WHERE doctor_id = $1 AND date = $2::date AND status IN ('pending', 'confirmed')
	`, doctorID, date)
	if err != nil {
		return nil, nil, err
	}

	var taken []TimeOfDay
	for takenRows.Next() {
		var s string
		if err := takenRows.Scan(&s); err != nil {
			takenRows.Close()
			return nil, nil, err
		}
		t, err := ParseTimeOfDay(s)
		if err != nil {
			takenRows.Close()
			return nil, nil, err
		}
		taken = append(taken, t)
	}
	takenRows.Close()
	if err := takenRows.Err(); err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("commit day schedule tx: %w", err)
	}

	return rules, taken, nil
}

func (r *PgRepository) ListAvailabilityRules(ctx context.Context, doctorID uuid.UUID) ([]AvailabilityRule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, doctor_id, weekday, to_char(start_time, 'HH24:MI'), to_char(end_time, 'HH24:MI'), slot_minutes, is_active
		FROM doctor_availability
		WHERE doctor_id = $1
		ORDER BY weekday ASC
	`, doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []AvailabilityRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *rule)
	}
	return result, rows.Err()
}

// SaveAvailabilityRules replaces each submitted weekday's row with a delete
// then insert, all inside one transaction. A crash mid-save can never leave
// a doctor with a half-updated week. Weekdays not in rules are untouched.
func (r *PgRepository) SaveAvailabilityRules(ctx context.Context, doctorID uuid.UUID, rules []AvailabilityRule) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin availability tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, rule := range rules {
		if _, err := tx.Exec(ctx, `
			DELETE FROM doctor_availability WHERE doctor_id = $1 AND weekday = $2
		`, doctorID, rule.Weekday); err != nil {
			return fmt.Errorf("clear weekday %d: %w", rule.Weekday, err)
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO doctor_availability (doctor_id, weekday, start_time, end_time, slot_minutes, is_active)
			VALUES ($1, $2, $3::time, $4::time, $5, $6)
		`, doctorID, rule.Weekday, rule.StartTime.String(), rule.EndTime.String(), rule.SlotMinutes, rule.IsActive); err != nil {
			return fmt.Errorf("insert weekday %d: %w", rule.Weekday, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit availability tx: %w", err)
	}
	return nil
}

func (r *PgRepository) CreateAppointment(ctx context.Context, doctorID, patientID uuid.UUID, date string, timeOfDay TimeOfDay, description *string) (*Appointment, error) {
	id := uuid.New()

	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (id, doctor_id, patient_id, date, time, description, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4::date, $5::time, $6, 'pending', now(), now())
		RETURNING `+appointmentCols+`
	`, id, doctorID, patientID, date, timeOfDay.String(), description)

	appt, err := scanAppointment(row)
	if err != nil {
		return nil, mapPgError(err)
	}
	return appt, nil
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentCols+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

// SetAppointmentStatus matches on both id and doctor_id so a doctor cannot
// touch (or learn about) another doctor's appointment; both cases surface as
// ErrAppointmentNotFound.
func (r *PgRepository) SetAppointmentStatus(ctx context.Context, id, doctorID uuid.UUID, status AppointmentStatus) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $3,
		    updated_at = now()
		WHERE id = $1
		  AND doctor_id = $2
		RETURNING `+appointmentCols+`
	`, id, doctorID, status)

	return scanAppointment(row)
}

func (r *PgRepository) ListDoctorAppointments(ctx context.Context, doctorID uuid.UUID, filter AppointmentFilter) ([]DoctorAppointment, error) {
	where := []string{"a.doctor_id = $1"}
	params := []any{doctorID}

	if filter.Status != "" {
		params = append(params, filter.Status)
		where = append(where, fmt.Sprintf("a.status = $%d", len(params)))
	}
	if filter.FromDate != "" {
		params = append(params, filter.FromDate)
		where = append(where, fmt.Sprintf("a.date >= $%d::date", len(params)))
	}
	if filter.ToDate != "" {
		params = append(params, filter.ToDate)
		where = append(where, fmt.Sprintf("a.date <= $%d::date", len(params)))
	}

	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
		SELECT a.id, a.doctor_id, a.patient_id,
		       to_char(a.date, 'YYYY-MM-DD'), to_char(a.time, 'HH24:MI'),
		       a.description, a.status, a.created_at, a.updated_at,
		       p.user_name, p.email
		FROM appointments a
		JOIN patients p ON p.id = a.patient_id
		WHERE %s
		ORDER BY a.date ASC, a.time ASC
	`, strings.Join(where, " AND ")), params...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []DoctorAppointment
	for rows.Next() {
		var da DoctorAppointment
		var timeOfDay string
		err := rows.Scan(
			&da.ID, &da.DoctorID, &da.PatientID,
			&da.Date, &timeOfDay,
			&da.Description, &da.Status, &da.CreatedAt, &da.UpdatedAt,
			&da.PatientName, &da.PatientEmail,
		)
		if err != nil {
			return nil, err
		}
		if da.Time, err = ParseTimeOfDay(timeOfDay); err != nil {
			return nil, err
		}
		result = append(result, da)
	}
	return result, rows.Err()
}

func (r *PgRepository) ListPatientAppointments(ctx context.Context, patientID uuid.UUID) ([]PatientAppointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT a.id, a.doctor_id, a.patient_id,
		       to_char(a.date, 'YYYY-MM-DD'), to_char(a.time, 'HH24:MI'),
		       a.description, a.status, a.created_at, a.updated_at,
		       d.first_name, d.last_name, d.field, d.location
		FROM appointments a
		JOIN doctors d ON d.id = a.doctor_id
		WHERE a.patient_id = $1
		ORDER BY a.date DESC, a.time DESC
	`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []PatientAppointment
	for rows.Next() {
		var pa PatientAppointment
		var timeOfDay string
		err := rows.Scan(
			&pa.ID, &pa.DoctorID, &pa.PatientID,
			&pa.Date, &timeOfDay,
			&pa.Description, &pa.Status, &pa.CreatedAt, &pa.UpdatedAt,
			&pa.DoctorFirstName, &pa.DoctorLastName, &pa.DoctorField, &pa.DoctorLocation,
		)
		if err != nil {
			return nil, err
		}
		if pa.Time, err = ParseTimeOfDay(timeOfDay); err != nil {
			return nil, err
		}
		result = append(result, pa)
	}
	return result, rows.Err()
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// mapPgError translates constraint violations on appointment inserts into
// domain errors. The slot-guard partial unique index is the real
// conflict-prevention mechanism; everything else passes through.
func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case "23505":
		if pgErr.ConstraintName == slotGuardIndex {
			return ErrSlotTaken
		}
	case "23503":
		if strings.Contains(pgErr.ConstraintName, "doctor") {
			return ErrDoctorNotFound
		}
		if strings.Contains(pgErr.ConstraintName, "patient") {
			return ErrPatientNotFound
		}
	}

	return err
}
