package scheduling

import (
	"context"
	goerrors "errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joez89/autism-center-api/internal/model"
	"github.com/joez89/autism-center-api/internal/service/slot"
	"github.com/joez89/autism-center-api/pkg/errors"
	"github.com/joez89/autism-center-api/pkg/lock"
	"github.com/joez89/autism-center-api/pkg/logger"
	"github.com/joez89/autism-center-api/pkg/metrics"
)

var testMetrics = metrics.New("scheduling_test")

type fakeDoctorRepo struct {
	doctors map[uuid.UUID]*model.Doctor
}

func (f *fakeDoctorRepo) Get(_ context.Context, id uuid.UUID) (*model.Doctor, error) {
	doctor, ok := f.doctors[id]
	if !ok {
		return nil, errors.NotFound("doctor")
	}
	return doctor, nil
}

func (f *fakeDoctorRepo) List(_ context.Context) ([]*model.Doctor, error) {
	var out []*model.Doctor
	for _, d := range f.doctors {
		out = append(out, d)
	}
	return out, nil
}

type fakeAppointmentRepo struct {
	appointments map[uuid.UUID]*model.Appointment
	addCalls     int
	seq          int
}

func newFakeAppointmentRepo() *fakeAppointmentRepo {
	return &fakeAppointmentRepo{appointments: make(map[uuid.UUID]*model.Appointment)}
}

func (f *fakeAppointmentRepo) Get(_ context.Context, id uuid.UUID) (*model.Appointment, error) {
	appointment, ok := f.appointments[id]
	if !ok {
		return nil, errors.NotFound("appointment")
	}
	return appointment, nil
}

func (f *fakeAppointmentRepo) Add(_ context.Context, appointment *model.Appointment) error {
	f.addCalls++
	f.appointments[appointment.ID] = appointment
	return nil
}

func (f *fakeAppointmentRepo) Update(_ context.Context, appointment *model.Appointment) error {
	f.appointments[appointment.ID] = appointment
	return nil
}

func (f *fakeAppointmentRepo) ListForUser(_ context.Context, userID uuid.UUID) ([]*model.Appointment, error) {
	var out []*model.Appointment
	for _, a := range f.appointments {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeAppointmentRepo) ListForDoctor(_ context.Context, doctorID uuid.UUID, from, to time.Time) ([]*model.Appointment, error) {
	return nil, nil
}

func (f *fakeAppointmentRepo) ListStaleScheduled(_ context.Context, before time.Time, limit int) ([]*model.Appointment, error) {
	return nil, nil
}

func (f *fakeAppointmentRepo) HasConflictingAppointment(_ context.Context, doctorID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) (bool, error) {
	for _, a := range f.appointments {
		if a.DoctorID != doctorID {
			continue
		}
		if excludeID != nil && a.ID == *excludeID {
			continue
		}
		switch a.Status {
		case model.AppointmentStatusScheduled, model.AppointmentStatusConfirmed, model.AppointmentStatusInProgress:
		default:
			continue
		}
		if a.StartTime.Before(end) && a.EndTime().After(start) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeAppointmentRepo) GenerateAppointmentNumber(_ context.Context) (string, error) {
	f.seq++
	return fmt.Sprintf("APT-%06d", f.seq), nil
}

type fakeMeetingService struct {
	createErr   error
	createCalls int
	updateCalls int
	deleteCalls int
}

func (f *fakeMeetingService) CreateMeeting(_ context.Context, appointment *model.Appointment) (string, error) {
	f.createCalls++
	if f.createErr != nil {
		return "", f.createErr
	}
	joinURL := "https://zoom.us/j/123456"
	if err := appointment.SetMeeting("123456", joinURL); err != nil {
		return "", err
	}
	return joinURL, nil
}

func (f *fakeMeetingService) HandleRescheduled(_ context.Context, _ *model.Appointment) error {
	f.updateCalls++
	return nil
}

func (f *fakeMeetingService) HandleCancelled(_ context.Context, appointment *model.Appointment) error {
	f.deleteCalls++
	appointment.ClearMeeting()
	return nil
}

type fakeSink struct {
	events []string
}

func (f *fakeSink) Emit(_ context.Context, eventType string, _ interface{}) error {
	f.events = append(f.events, eventType)
	return nil
}

type fakeLocker struct {
	denied bool
	calls  int
}

func (f *fakeLocker) WithDoctorLock(ctx context.Context, _ uuid.UUID, fn func(ctx context.Context) error) error {
	f.calls++
	if f.denied {
		return lock.ErrLockNotAcquired
	}
	return fn(ctx)
}

type fixture struct {
	svc          *Service
	doctor       *model.Doctor
	appointments *fakeAppointmentRepo
	meetings     *fakeMeetingService
	sink         *fakeSink
	locker       *fakeLocker
	start        time.Time
}

// allWeekDoctor is reachable from any test start time.
func allWeekDoctor() *model.Doctor {
	doctor := &model.Doctor{
		ID:     uuid.New(),
		NameEn: "Dr. Leila Hassan",
		Active: true,
	}
	for day := time.Sunday; day <= time.Saturday; day++ {
		doctor.Availabilities = append(doctor.Availabilities, model.DoctorAvailability{
			ID:        uuid.New(),
			DayOfWeek: day,
			StartTime: "09:00",
			EndTime:   "17:00",
			Active:    true,
		})
	}
	return doctor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	doctor := allWeekDoctor()
	doctors := &fakeDoctorRepo{doctors: map[uuid.UUID]*model.Doctor{doctor.ID: doctor}}
	appointments := newFakeAppointmentRepo()
	meetings := &fakeMeetingService{}
	sink := &fakeSink{}
	locker := &fakeLocker{}

	svc := NewService(
		doctors,
		appointments,
		slot.NewService(doctors, appointments),
		meetings,
		sink,
		locker,
		logger.NewLogger(nil),
		testMetrics,
		Config{BusinessStart: "09:00", BusinessEnd: "18:00", ClosedWeekdays: []time.Weekday{time.Friday, time.Saturday}},
	)

	// two days out at 10:00 UTC, always inside the doctor's windows
	d := time.Now().UTC().AddDate(0, 0, 2)
	start := time.Date(d.Year(), d.Month(), d.Day(), 10, 0, 0, 0, time.UTC)

	return &fixture{
		svc:          svc,
		doctor:       doctor,
		appointments: appointments,
		meetings:     meetings,
		sink:         sink,
		locker:       locker,
		start:        start,
	}
}

func patient() model.PatientInfo {
	return model.PatientInfo{Name: "Sami", Age: 7}
}

func TestBookAppointment(t *testing.T) {
	f := newFixture(t)

	appointment, err := f.svc.BookAppointment(context.Background(), uuid.New(), f.doctor.ID, f.start, 60, patient())
	require.NoError(t, err)

	assert.Equal(t, model.AppointmentStatusScheduled, appointment.Status)
	assert.Equal(t, "APT-000001", appointment.Number)
	assert.Equal(t, 1, f.appointments.addCalls)
	assert.Equal(t, 1, f.locker.calls)
	assert.Equal(t, []string{model.EventAppointmentScheduled}, f.sink.events)
	assert.True(t, appointment.HasMeeting())
}

func TestBookAppointmentConflict(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.BookAppointment(context.Background(), uuid.New(), f.doctor.ID, f.start, 60, patient())
	require.NoError(t, err)

	_, err = f.svc.BookAppointment(context.Background(), uuid.New(), f.doctor.ID, f.start.Add(30*time.Minute), 60, patient())
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindInvalidState))
	assert.Equal(t, 1, f.appointments.addCalls)
}

func TestBookAppointmentMissingDoctor(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.BookAppointment(context.Background(), uuid.New(), uuid.New(), f.start, 60, patient())
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindInvalidState))
	assert.Zero(t, f.appointments.addCalls)
}

func TestBookAppointmentLockDenied(t *testing.T) {
	f := newFixture(t)
	f.locker.denied = true

	_, err := f.svc.BookAppointment(context.Background(), uuid.New(), f.doctor.ID, f.start, 60, patient())
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindInvalidState))
	assert.Zero(t, f.appointments.addCalls)
}

func TestBookAppointmentMeetingFailureDoesNotFailBooking(t *testing.T) {
	f := newFixture(t)
	f.meetings.createErr = goerrors.New("zoom is down")

	appointment, err := f.svc.BookAppointment(context.Background(), uuid.New(), f.doctor.ID, f.start, 60, patient())
	require.NoError(t, err)

	assert.Equal(t, 1, f.appointments.addCalls)
	assert.Equal(t, 1, f.meetings.createCalls)
	assert.False(t, appointment.HasMeeting())
	assert.Nil(t, appointment.MeetingJoinURL)
}

func TestScheduleAppointmentErrors(t *testing.T) {
	f := newFixture(t)

	// missing doctor
	_, err := f.svc.ScheduleAppointment(context.Background(), uuid.New(), uuid.New(), f.start, 60, patient())
	assert.EqualError(t, err, "doctor not found")

	// inactive doctor
	f.doctor.Active = false
	_, err = f.svc.ScheduleAppointment(context.Background(), uuid.New(), f.doctor.ID, f.start, 60, patient())
	assert.EqualError(t, err, "doctor is not active")
	f.doctor.Active = true

	// outside every window
	night := time.Date(f.start.Year(), f.start.Month(), f.start.Day(), 22, 0, 0, 0, time.UTC)
	_, err = f.svc.ScheduleAppointment(context.Background(), uuid.New(), f.doctor.ID, night, 60, patient())
	assert.EqualError(t, err, "doctor is not available at the requested time")

	// conflict
	_, err = f.svc.BookAppointment(context.Background(), uuid.New(), f.doctor.ID, f.start, 60, patient())
	require.NoError(t, err)
	_, err = f.svc.ScheduleAppointment(context.Background(), uuid.New(), f.doctor.ID, f.start, 60, patient())
	assert.EqualError(t, err, "doctor already has an appointment at the requested time")
}

func TestRescheduleAppointment(t *testing.T) {
	f := newFixture(t)
	userID := uuid.New()

	appointment, err := f.svc.BookAppointment(context.Background(), userID, f.doctor.ID, f.start, 60, patient())
	require.NoError(t, err)

	newStart := f.start.Add(3 * time.Hour)
	moved, err := f.svc.RescheduleAppointment(context.Background(), userID, appointment.ID, newStart)
	require.NoError(t, err)

	assert.Equal(t, newStart, moved.StartTime)
	assert.Equal(t, 1, f.meetings.updateCalls)
	assert.Contains(t, f.sink.events, model.EventAppointmentRescheduled)
}

func TestRescheduleAppointmentOwnership(t *testing.T) {
	f := newFixture(t)

	appointment, err := f.svc.BookAppointment(context.Background(), uuid.New(), f.doctor.ID, f.start, 60, patient())
	require.NoError(t, err)

	_, err = f.svc.RescheduleAppointment(context.Background(), uuid.New(), appointment.ID, f.start.Add(3*time.Hour))
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindUnauthorized))
}

func TestCancelAppointment(t *testing.T) {
	f := newFixture(t)
	userID := uuid.New()

	appointment, err := f.svc.BookAppointment(context.Background(), userID, f.doctor.ID, f.start, 60, patient())
	require.NoError(t, err)

	cancelled, err := f.svc.CancelAppointment(context.Background(), userID, appointment.ID, "family emergency")
	require.NoError(t, err)

	assert.Equal(t, model.AppointmentStatusCancelled, cancelled.Status)
	assert.Equal(t, 1, f.meetings.deleteCalls)
	assert.False(t, cancelled.HasMeeting())
	assert.Contains(t, f.sink.events, model.EventAppointmentCancelled)
}

func TestCancelAppointmentOwnership(t *testing.T) {
	f := newFixture(t)

	appointment, err := f.svc.BookAppointment(context.Background(), uuid.New(), f.doctor.ID, f.start, 60, patient())
	require.NoError(t, err)

	_, err = f.svc.CancelAppointment(context.Background(), uuid.New(), appointment.ID, "")
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindUnauthorized))
	assert.Zero(t, f.meetings.deleteCalls)
}

func TestLifecycleTransitions(t *testing.T) {
	f := newFixture(t)
	userID := uuid.New()

	appointment, err := f.svc.BookAppointment(context.Background(), userID, f.doctor.ID, f.start, 60, patient())
	require.NoError(t, err)

	confirmed, err := f.svc.ConfirmAppointment(context.Background(), appointment.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusConfirmed, confirmed.Status)

	started, err := f.svc.StartAppointment(context.Background(), appointment.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusInProgress, started.Status)

	completed, err := f.svc.CompleteAppointment(context.Background(), appointment.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCompleted, completed.Status)

	assert.Equal(t, []string{
		model.EventAppointmentScheduled,
		model.EventAppointmentConfirmed,
		model.EventAppointmentStarted,
		model.EventAppointmentCompleted,
	}, f.sink.events)

	// completing twice is refused
	_, err = f.svc.CompleteAppointment(context.Background(), appointment.ID)
	assert.True(t, errors.IsKind(err, errors.KindInvalidState))
}

func TestIsAppointmentTimeValid(t *testing.T) {
	f := newFixture(t)
	// 2026-09-07 is a Monday
	f.svc.now = func() time.Time { return time.Date(2026, 9, 7, 8, 0, 0, 0, time.UTC) }

	monday := func(hour int) time.Time { return time.Date(2026, 9, 7, hour, 0, 0, 0, time.UTC) }

	assert.True(t, f.svc.IsAppointmentTimeValid(monday(9)))
	assert.True(t, f.svc.IsAppointmentTimeValid(monday(17)))
	assert.False(t, f.svc.IsAppointmentTimeValid(monday(18)))
	assert.False(t, f.svc.IsAppointmentTimeValid(monday(8).Add(30*time.Minute)))

	// the past never validates
	assert.False(t, f.svc.IsAppointmentTimeValid(monday(9).AddDate(0, 0, -7)))

	// Friday and Saturday are closed
	assert.False(t, f.svc.IsAppointmentTimeValid(time.Date(2026, 9, 11, 10, 0, 0, 0, time.UTC)))
	assert.False(t, f.svc.IsAppointmentTimeValid(time.Date(2026, 9, 12, 10, 0, 0, 0, time.UTC)))
	assert.True(t, f.svc.IsAppointmentTimeValid(time.Date(2026, 9, 13, 10, 0, 0, 0, time.UTC)))
}

func TestGetAppointmentOwnership(t *testing.T) {
	f := newFixture(t)
	userID := uuid.New()

	appointment, err := f.svc.BookAppointment(context.Background(), userID, f.doctor.ID, f.start, 60, patient())
	require.NoError(t, err)

	got, err := f.svc.GetAppointment(context.Background(), userID, appointment.ID)
	require.NoError(t, err)
	assert.Equal(t, appointment.ID, got.ID)

	_, err = f.svc.GetAppointment(context.Background(), uuid.New(), appointment.ID)
	assert.True(t, errors.IsKind(err, errors.KindUnauthorized))
}
