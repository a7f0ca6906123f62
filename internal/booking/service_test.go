package booking

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/careslot/careslot/internal/config"
	redisclient "github.com/careslot/careslot/internal/redis"
)

// MockRepository is a testify mock of Repository.
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Doctor), args.Error(1)
}

func (m *MockRepository) ListDoctors(ctx context.Context, filter DoctorFilter) ([]Doctor, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Doctor), args.Error(1)
}

func (m *MockRepository) ListFields(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Patient), args.Error(1)
}

func (m *MockRepository) GetDaySchedule(ctx context.Context, doctorID uuid.UUID, weekday int, date string) ([]AvailabilityRule, []TimeOfDay, error) {
	args := m.Called(ctx, doctorID, weekday, date)
	var rules []AvailabilityRule
	var taken []TimeOfDay
	if args.Get(0) != nil {
		rules = args.Get(0).([]AvailabilityRule)
	}
	if args.Get(1) != nil {
		taken = args.Get(1).([]TimeOfDay)
	}
	return rules, taken, args.Error(2)
}

func (m *MockRepository) ListAvailabilityRules(ctx context.Context, doctorID uuid.UUID) ([]AvailabilityRule, error) {
	args := m.Called(ctx, doctorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]AvailabilityRule), args.Error(1)
}

func (m *MockRepository) SaveAvailabilityRules(ctx context.Context, doctorID uuid.UUID, rules []AvailabilityRule) error {
	args := m.Called(ctx, doctorID, rules)
	return args.Error(0)
}

func (m *MockRepository) CreateAppointment(ctx context.Context, doctorID, patientID uuid.UUID, date string, timeOfDay TimeOfDay, description *string) (*Appointment, error) {
	args := m.Called(ctx, doctorID, patientID, date, timeOfDay, description)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Appointment), args.Error(1)
}

func (m *MockRepository) SetAppointmentStatus(ctx context.Context, id, doctorID uuid.UUID, status AppointmentStatus) (*Appointment, error) {
	args := m.Called(ctx, id, doctorID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Appointment), args.Error(1)
}

func (m *MockRepository) ListDoctorAppointments(ctx context.Context, doctorID uuid.UUID, filter AppointmentFilter) ([]DoctorAppointment, error) {
	args := m.Called(ctx, doctorID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]DoctorAppointment), args.Error(1)
}

func (m *MockRepository) ListPatientAppointments(ctx context.Context, patientID uuid.UUID) ([]PatientAppointment, error) {
	args := m.Called(ctx, patientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]PatientAppointment), args.Error(1)
}

func (m *MockRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

// fakeLocker runs the critical section inline, refuses when busy, or fails
// like an unreachable Redis when down.
type fakeLocker struct {
	busy bool
	down bool
	keys []string
}

func (l *fakeLocker) WithSlotLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	l.keys = append(l.keys, key)
	if l.down {
		return fmt.Errorf("%w: connection refused", redisclient.ErrLockUnavailable)
	}
	if l.busy {
		return redisclient.ErrLockNotAcquired
	}
	return fn(ctx)
}

func setupTestService(t *testing.T) (*Service, *MockRepository, *fakeLocker) {
	t.Helper()

	repo := &MockRepository{}
	locker := &fakeLocker{}
	cfg := config.Config{BookingLeadTime: 30 * time.Minute}

	svc := NewService(repo, locker, cfg, zerolog.Nop())
	svc.now = func() time.Time {
		return time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	}
	return svc, repo, locker
}

var (
	testDoctorID  = uuid.MustParse("5f8b1a6e-0c1d-4f3a-9e93-0d4a3c2b1a00")
	testPatientID = uuid.MustParse("7d2e4b8c-6a5f-4e1d-8c3b-9f0e1d2c3b01")
)

func testDoctor() *Doctor {
	return &Doctor{ID: testDoctorID, FirstName: "Greta", LastName: "Holm", Field: "Cardiology"}
}

func testPatient() *Patient {
	return &Patient{ID: testPatientID, UserName: "pat", Email: "pat@patients.example"}
}

func TestResolveFreeSlots(t *testing.T) {
	svc, repo, _ := setupTestService(t)

	rules := []AvailabilityRule{{
		DoctorID:    testDoctorID,
		Weekday:     1,
		StartTime:   9 * 60,
		EndTime:     17 * 60,
		SlotMinutes: 30,
		IsActive:    true,
	}}
	taken := []TimeOfDay{10 * 60}

	// 2026-09-07 is a Monday: weekday 1 must be requested.
	repo.On("GetDaySchedule", mock.Anything, testDoctorID, 1, "2026-09-07").
		Return(rules, taken, nil)

	slots, err := svc.ResolveFreeSlots(context.Background(), testDoctorID, "2026-09-07")
	require.NoError(t, err)

	assert.Len(t, slots, 15)
	assert.Equal(t, "09:00", slots[0])
	assert.NotContains(t, slots, "10:00")
	repo.AssertExpectations(t)
}

func TestResolveFreeSlotsMalformedDate(t *testing.T) {
	svc, repo, _ := setupTestService(t)

	_, err := svc.ResolveFreeSlots(context.Background(), testDoctorID, "09/07/2026")

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "date", vErr.Field)
	repo.AssertNotCalled(t, "GetDaySchedule", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestResolveFreeSlotsUnknownDoctorIsEmpty(t *testing.T) {
	svc, repo, _ := setupTestService(t)

	repo.On("GetDaySchedule", mock.Anything, testDoctorID, 2, "2026-09-08").
		Return(nil, nil, nil)

	slots, err := svc.ResolveFreeSlots(context.Background(), testDoctorID, "2026-09-08")
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestCreateAppointmentSuccess(t *testing.T) {
	svc, repo, locker := setupTestService(t)

	created := &Appointment{
		ID:        uuid.New(),
		DoctorID:  testDoctorID,
		PatientID: testPatientID,
		Date:      "2026-09-07",
		Time:      10 * 60,
		Status:    StatusPending,
	}

	repo.On("GetPatientByID", mock.Anything, testPatientID).Return(testPatient(), nil)
	repo.On("GetDoctorByID", mock.Anything, testDoctorID).Return(testDoctor(), nil)
	repo.On("CreateAppointment", mock.Anything, testDoctorID, testPatientID, "2026-09-07", TimeOfDay(10*60), (*string)(nil)).
		Return(created, nil)
	repo.On("InsertEvent", mock.Anything, mock.MatchedBy(func(ev EventLog) bool {
		return ev.EventType == EventAppointmentCreated
	})).Return(nil)

	appt, err := svc.CreateAppointment(context.Background(), testDoctorID, testPatientID, "2026-09-07", "10:00", nil)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, appt.Status)

	require.Len(t, locker.keys, 1)
	assert.Contains(t, locker.keys[0], testDoctorID.String())
	assert.Contains(t, locker.keys[0], "2026-09-07")
	assert.Contains(t, locker.keys[0], "10:00")
	repo.AssertExpectations(t)
}

func TestCreateAppointmentSlotConflict(t *testing.T) {
	svc, repo, _ := setupTestService(t)

	repo.On("GetPatientByID", mock.Anything, testPatientID).Return(testPatient(), nil)
	repo.On("GetDoctorByID", mock.Anything, testDoctorID).Return(testDoctor(), nil)
	repo.On("CreateAppointment", mock.Anything, testDoctorID, testPatientID, "2026-09-07", TimeOfDay(10*60), (*string)(nil)).
		Return(nil, ErrSlotTaken)

	_, err := svc.CreateAppointment(context.Background(), testDoctorID, testPatientID, "2026-09-07", "10:00", nil)
	assert.ErrorIs(t, err, ErrSlotTaken)
	repo.AssertNotCalled(t, "InsertEvent", mock.Anything, mock.Anything)
}

func TestCreateAppointmentLockBusy(t *testing.T) {
	svc, repo, locker := setupTestService(t)
	locker.busy = true

	repo.On("GetPatientByID", mock.Anything, testPatientID).Return(testPatient(), nil)
	repo.On("GetDoctorByID", mock.Anything, testDoctorID).Return(testDoctor(), nil)

	_, err := svc.CreateAppointment(context.Background(), testDoctorID, testPatientID, "2026-09-07", "10:00", nil)
	assert.ErrorIs(t, err, ErrSlotBeingBooked)
	repo.AssertNotCalled(t, "CreateAppointment",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateAppointmentLockUnavailableBooksWithoutLock(t *testing.T) {
	svc, repo, locker := setupTestService(t)
	locker.down = true

	created := &Appointment{
		ID:        uuid.New(),
		DoctorID:  testDoctorID,
		PatientID: testPatientID,
		Date:      "2026-09-07",
		Time:      10 * 60,
		Status:    StatusPending,
	}

	repo.On("GetPatientByID", mock.Anything, testPatientID).Return(testPatient(), nil)
	repo.On("GetDoctorByID", mock.Anything, testDoctorID).Return(testDoctor(), nil)
	repo.On("CreateAppointment", mock.Anything, testDoctorID, testPatientID, "2026-09-07", TimeOfDay(10*60), (*string)(nil)).
		Return(created, nil)
	repo.On("InsertEvent", mock.Anything, mock.Anything).Return(nil)

	// An unreachable Redis loses the fast path only; the booking still
	// lands and the slot-guard index remains the arbiter.
	appt, err := svc.CreateAppointment(context.Background(), testDoctorID, testPatientID, "2026-09-07", "10:00", nil)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, appt.Status)
	repo.AssertExpectations(t)
}

func TestCreateAppointmentLockUnavailableStillReportsConflict(t *testing.T) {
	svc, repo, locker := setupTestService(t)
	locker.down = true

	repo.On("GetPatientByID", mock.Anything, testPatientID).Return(testPatient(), nil)
	repo.On("GetDoctorByID", mock.Anything, testDoctorID).Return(testDoctor(), nil)
	repo.On("CreateAppointment", mock.Anything, testDoctorID, testPatientID, "2026-09-07", TimeOfDay(10*60), (*string)(nil)).
		Return(nil, ErrSlotTaken)

	_, err := svc.CreateAppointment(context.Background(), testDoctorID, testPatientID, "2026-09-07", "10:00", nil)
	assert.ErrorIs(t, err, ErrSlotTaken)
}

func TestCreateAppointmentValidation(t *testing.T) {
	svc, repo, _ := setupTestService(t)

	var vErr *ValidationError

	_, err := svc.CreateAppointment(context.Background(), testDoctorID, testPatientID, "bad-date", "10:00", nil)
	assert.ErrorAs(t, err, &vErr)

	_, err = svc.CreateAppointment(context.Background(), testDoctorID, testPatientID, "2026-09-07", "25:00", nil)
	assert.ErrorAs(t, err, &vErr)

	repo.AssertNotCalled(t, "GetPatientByID", mock.Anything, mock.Anything)
}

func TestCreateAppointmentUnknownPatient(t *testing.T) {
	svc, repo, _ := setupTestService(t)

	repo.On("GetPatientByID", mock.Anything, testPatientID).Return(nil, ErrPatientNotFound)

	_, err := svc.CreateAppointment(context.Background(), testDoctorID, testPatientID, "2026-09-07", "10:00", nil)
	assert.ErrorIs(t, err, ErrPatientNotFound)
}

func TestSetAppointmentStatusIdempotent(t *testing.T) {
	svc, repo, _ := setupTestService(t)

	apptID := uuid.New()
	confirmed := &Appointment{ID: apptID, DoctorID: testDoctorID, Status: StatusConfirmed}

	repo.On("SetAppointmentStatus", mock.Anything, apptID, testDoctorID, StatusConfirmed).
		Return(confirmed, nil).Twice()
	repo.On("InsertEvent", mock.Anything, mock.Anything).Return(nil)

	first, err := svc.SetAppointmentStatus(context.Background(), apptID, testDoctorID, StatusConfirmed)
	require.NoError(t, err)

	second, err := svc.SetAppointmentStatus(context.Background(), apptID, testDoctorID, StatusConfirmed)
	require.NoError(t, err)

	assert.Equal(t, first.Status, second.Status)
	repo.AssertExpectations(t)
}

func TestSetAppointmentStatusInvalid(t *testing.T) {
	svc, repo, _ := setupTestService(t)

	_, err := svc.SetAppointmentStatus(context.Background(), uuid.New(), testDoctorID, "cancelled")

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	repo.AssertNotCalled(t, "SetAppointmentStatus",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSetAppointmentStatusForeignAppointment(t *testing.T) {
	svc, repo, _ := setupTestService(t)

	apptID := uuid.New()
	// Missing and not-owned are the same error on purpose.
	repo.On("SetAppointmentStatus", mock.Anything, apptID, testDoctorID, StatusRejected).
		Return(nil, ErrAppointmentNotFound)

	_, err := svc.SetAppointmentStatus(context.Background(), apptID, testDoctorID, StatusRejected)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestSaveWeeklyAvailability(t *testing.T) {
	svc, repo, _ := setupTestService(t)

	repo.On("GetDoctorByID", mock.Anything, testDoctorID).Return(testDoctor(), nil)
	repo.On("SaveAvailabilityRules", mock.Anything, testDoctorID, mock.MatchedBy(func(rules []AvailabilityRule) bool {
		return len(rules) == 1 &&
			rules[0].Weekday == 1 &&
			rules[0].SlotMinutes == 30 && // default applied
			rules[0].StartTime.String() == "09:00" &&
			rules[0].EndTime.String() == "17:00"
	})).Return(nil)
	repo.On("InsertEvent", mock.Anything, mock.MatchedBy(func(ev EventLog) bool {
		return ev.EventType == EventAvailabilityUpdated
	})).Return(nil)

	err := svc.SaveWeeklyAvailability(context.Background(), testDoctorID, []RuleInput{
		{Weekday: 1, StartTime: "09:00", EndTime: "17:00", IsActive: true},
	})
	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestSaveWeeklyAvailabilityValidation(t *testing.T) {
	svc, repo, _ := setupTestService(t)

	cases := []struct {
		name   string
		inputs []RuleInput
	}{
		{"empty payload", nil},
		{"weekday out of range", []RuleInput{
			{Weekday: 7, StartTime: "09:00", EndTime: "17:00", IsActive: true},
		}},
		{"duplicate weekday", []RuleInput{
			{Weekday: 1, StartTime: "09:00", EndTime: "12:00", IsActive: true},
			{Weekday: 1, StartTime: "13:00", EndTime: "17:00", IsActive: true},
		}},
		{"start not before end", []RuleInput{
			{Weekday: 1, StartTime: "17:00", EndTime: "09:00", IsActive: true},
		}},
		{"slot minutes too small", []RuleInput{
			{Weekday: 1, StartTime: "09:00", EndTime: "17:00", SlotMinutes: 3, IsActive: true},
		}},
		{"slot minutes too large", []RuleInput{
			{Weekday: 1, StartTime: "09:00", EndTime: "17:00", SlotMinutes: 300, IsActive: true},
		}},
		{"bad time format", []RuleInput{
			{Weekday: 1, StartTime: "9am", EndTime: "17:00", IsActive: true},
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := svc.SaveWeeklyAvailability(context.Background(), testDoctorID, tc.inputs)
			var vErr *ValidationError
			assert.ErrorAs(t, err, &vErr)
		})
	}

	repo.AssertNotCalled(t, "SaveAvailabilityRules", mock.Anything, mock.Anything, mock.Anything)
}

func TestSaveWeeklyAvailabilityInactiveWindowNotChecked(t *testing.T) {
	svc, repo, _ := setupTestService(t)

	repo.On("GetDoctorByID", mock.Anything, testDoctorID).Return(testDoctor(), nil)
	repo.On("SaveAvailabilityRules", mock.Anything, testDoctorID, mock.Anything).Return(nil)
	repo.On("InsertEvent", mock.Anything, mock.Anything).Return(nil)

	// start >= end only matters for active rules.
	err := svc.SaveWeeklyAvailability(context.Background(), testDoctorID, []RuleInput{
		{Weekday: 0, StartTime: "00:00", EndTime: "00:00", IsActive: false},
	})
	assert.NoError(t, err)
}

func TestListDoctorAppointmentsFilterValidation(t *testing.T) {
	svc, repo, _ := setupTestService(t)

	var vErr *ValidationError

	_, err := svc.ListDoctorAppointments(context.Background(), testDoctorID, AppointmentFilter{Status: "archived"})
	assert.ErrorAs(t, err, &vErr)

	_, err = svc.ListDoctorAppointments(context.Background(), testDoctorID, AppointmentFilter{FromDate: "yesterday"})
	assert.ErrorAs(t, err, &vErr)

	repo.AssertNotCalled(t, "ListDoctorAppointments", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateAppointmentStorageErrorWrapped(t *testing.T) {
	svc, repo, _ := setupTestService(t)

	boom := errors.New("connection refused")
	repo.On("GetPatientByID", mock.Anything, testPatientID).Return(nil, boom)

	_, err := svc.CreateAppointment(context.Background(), testDoctorID, testPatientID, "2026-09-07", "10:00", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrPatientNotFound)
}
