package slot

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joez89/autism-center-api/internal/model"
	"github.com/joez89/autism-center-api/pkg/errors"
)

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
	updateCalls  int
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
	f.updateCalls++
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
	var out []*model.Appointment
	for _, a := range f.appointments {
		if a.DoctorID == doctorID && !a.StartTime.Before(from) && a.StartTime.Before(to) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeAppointmentRepo) ListStaleScheduled(_ context.Context, before time.Time, limit int) ([]*model.Appointment, error) {
	var out []*model.Appointment
	for _, a := range f.appointments {
		if a.Status == model.AppointmentStatusScheduled && a.StartTime.Before(before) {
			out = append(out, a)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
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

// 2026-09-07 is a Monday; the fixed clock sits on the preceding Tuesday.
var (
	testNow    = time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	testMonday = time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)
)

func newTestService(doctor *model.Doctor) (*Service, *fakeAppointmentRepo) {
	doctors := &fakeDoctorRepo{doctors: map[uuid.UUID]*model.Doctor{}}
	if doctor != nil {
		doctors.doctors[doctor.ID] = doctor
	}
	appointments := newFakeAppointmentRepo()
	svc := NewService(doctors, appointments)
	svc.now = func() time.Time { return testNow }
	return svc, appointments
}

func testDoctor() *model.Doctor {
	return &model.Doctor{
		ID:     uuid.New(),
		NameEn: "Dr. Leila Hassan",
		Active: true,
		Availabilities: []model.DoctorAvailability{{
			ID:        uuid.New(),
			DayOfWeek: time.Monday,
			StartTime: "09:00",
			EndTime:   "17:00",
			Active:    true,
		}},
	}
}

func bookedAppointment(t *testing.T, doctorID uuid.UUID, start time.Time, minutes int) *model.Appointment {
	t.Helper()
	appointment, err := model.NewAppointment("APT-900001", uuid.New(), doctorID, start, minutes, model.PatientInfo{Name: "Sami", Age: 7})
	require.NoError(t, err)
	return appointment
}

func TestGenerateAvailableSlotsFullDay(t *testing.T) {
	doctor := testDoctor()
	svc, appointments := newTestService(doctor)

	// 10:00-11:00 already booked
	booked := bookedAppointment(t, doctor.ID, testMonday.Add(10*time.Hour), 60)
	require.NoError(t, appointments.Add(context.Background(), booked))

	slots, err := svc.GenerateAvailableSlots(context.Background(), doctor.ID, testMonday, 60)
	require.NoError(t, err)

	// 8 hourly candidates minus the booked one
	require.Len(t, slots, 7)
	assert.Equal(t, testMonday.Add(9*time.Hour), slots[0])
	assert.NotContains(t, slots, testMonday.Add(10*time.Hour))
	assert.Equal(t, testMonday.Add(16*time.Hour), slots[len(slots)-1])

	for i := 1; i < len(slots); i++ {
		assert.True(t, slots[i].After(slots[i-1]))
	}
}

func TestGenerateAvailableSlotsWindowTooShort(t *testing.T) {
	doctor := testDoctor()
	doctor.Availabilities[0].EndTime = "09:30"
	svc, _ := newTestService(doctor)

	slots, err := svc.GenerateAvailableSlots(context.Background(), doctor.ID, testMonday, 60)
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestGenerateAvailableSlotsMissingDoctor(t *testing.T) {
	svc, _ := newTestService(nil)

	slots, err := svc.GenerateAvailableSlots(context.Background(), uuid.New(), testMonday, 60)
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestGenerateAvailableSlotsInactiveDoctor(t *testing.T) {
	doctor := testDoctor()
	doctor.Active = false
	svc, _ := newTestService(doctor)

	slots, err := svc.GenerateAvailableSlots(context.Background(), doctor.ID, testMonday, 60)
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestGenerateAvailableSlotsInvalidDuration(t *testing.T) {
	doctor := testDoctor()
	svc, _ := newTestService(doctor)

	_, err := svc.GenerateAvailableSlots(context.Background(), doctor.ID, testMonday, 0)
	assert.True(t, errors.IsKind(err, errors.KindValidation))
}

func TestGenerateAvailableSlotsTodayAppliesLeadTime(t *testing.T) {
	doctor := testDoctor()
	doctor.Availabilities[0].DayOfWeek = time.Tuesday
	svc, _ := newTestService(doctor)

	// clock is Tuesday 12:00; lead time pushes the first slot past 12:30,
	// rounded up to the next window-grid boundary
	today := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	slots, err := svc.GenerateAvailableSlots(context.Background(), doctor.ID, today, 60)
	require.NoError(t, err)

	require.NotEmpty(t, slots)
	assert.Equal(t, today.Add(13*time.Hour), slots[0])
}

func TestGenerateAvailableSlotsLeadTimeAcrossTimezones(t *testing.T) {
	doctor := testDoctor()
	svc, _ := newTestService(doctor)

	// a UTC+5 host clock reads Tuesday 01:00 while the requested Monday
	// is still running in UTC (Monday 20:00); the lead-time gate must
	// key off the date's zone, not the host's, or past slots get offered
	svc.now = func() time.Time {
		return time.Date(2026, 9, 8, 1, 0, 0, 0, time.FixedZone("UTC+5", 5*3600))
	}

	slots, err := svc.GenerateAvailableSlots(context.Background(), doctor.ID, testMonday, 60)
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestIsSlotAvailableHalfOpenIntervals(t *testing.T) {
	doctor := testDoctor()
	svc, appointments := newTestService(doctor)

	booked := bookedAppointment(t, doctor.ID, testMonday.Add(10*time.Hour), 60)
	require.NoError(t, appointments.Add(context.Background(), booked))

	// back-to-back bookings do not conflict
	ok, err := svc.IsSlotAvailable(context.Background(), doctor.ID, testMonday.Add(11*time.Hour), 60, nil)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.IsSlotAvailable(context.Background(), doctor.ID, testMonday.Add(9*time.Hour), 60, nil)
	require.NoError(t, err)
	assert.True(t, ok)

	// any overlap does
	ok, err = svc.IsSlotAvailable(context.Background(), doctor.ID, testMonday.Add(10*time.Hour+30*time.Minute), 60, nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIsSlotAvailableCancelledBookingDoesNotBlock(t *testing.T) {
	doctor := testDoctor()
	svc, appointments := newTestService(doctor)

	booked := bookedAppointment(t, doctor.ID, testMonday.Add(10*time.Hour), 60)
	_, err := booked.Cancel("")
	require.NoError(t, err)
	require.NoError(t, appointments.Add(context.Background(), booked))

	ok, err := svc.IsSlotAvailable(context.Background(), doctor.ID, testMonday.Add(10*time.Hour), 60, nil)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestIsSlotAvailableExcludesOwnBooking(t *testing.T) {
	doctor := testDoctor()
	svc, appointments := newTestService(doctor)

	booked := bookedAppointment(t, doctor.ID, testMonday.Add(10*time.Hour), 60)
	require.NoError(t, appointments.Add(context.Background(), booked))

	// moving the appointment 30 minutes overlaps only itself
	ok, err := svc.IsSlotAvailable(context.Background(), doctor.ID, testMonday.Add(10*time.Hour+30*time.Minute), 60, &booked.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestValidateSlotLeadTime(t *testing.T) {
	doctor := testDoctor()
	doctor.Availabilities[0].DayOfWeek = testNow.Weekday()
	svc, _ := newTestService(doctor)

	err := svc.ValidateSlot(context.Background(), doctor.ID, testNow.Add(10*time.Minute), 60, nil)
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindValidation))
	assert.Contains(t, err.Error(), "at least 30 minutes in advance")

	// exactly at the boundary is still too soon
	err = svc.ValidateSlot(context.Background(), doctor.ID, testNow.Add(MinLeadTime), 60, nil)
	assert.True(t, errors.IsKind(err, errors.KindValidation))

	err = svc.ValidateSlot(context.Background(), doctor.ID, testNow.Add(MinLeadTime+time.Minute), 60, nil)
	assert.NoError(t, err)
}

func TestValidateSlotUnavailable(t *testing.T) {
	doctor := testDoctor()
	svc, _ := newTestService(doctor)

	// Sunday, outside every window
	err := svc.ValidateSlot(context.Background(), doctor.ID, testMonday.Add(-24*time.Hour).Add(10*time.Hour), 60, nil)
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindInvalidState))
}

func TestCanReschedule(t *testing.T) {
	doctor := testDoctor()
	svc, appointments := newTestService(doctor)

	booked := bookedAppointment(t, doctor.ID, testMonday.Add(10*time.Hour), 60)
	require.NoError(t, appointments.Add(context.Background(), booked))

	ok, err := svc.CanReschedule(context.Background(), booked.ID, testMonday.Add(14*time.Hour))
	require.NoError(t, err)
	assert.True(t, ok)

	// a completed appointment cannot move
	_, err = booked.Confirm()
	require.NoError(t, err)
	_, err = booked.Start()
	require.NoError(t, err)
	_, err = booked.Complete()
	require.NoError(t, err)

	ok, err = svc.CanReschedule(context.Background(), booked.ID, testMonday.Add(14*time.Hour))
	require.NoError(t, err)
	assert.False(t, ok)
}
