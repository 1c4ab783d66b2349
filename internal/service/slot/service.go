package slot

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/joez89/autism-center-api/internal/model"
	"github.com/joez89/autism-center-api/internal/repository"
	"github.com/joez89/autism-center-api/pkg/errors"
)

// MinLeadTime is the minimum gap between "now" and a bookable start time.
const MinLeadTime = 30 * time.Minute

// Service is the authoritative arbiter of whether an exact slot can be
// booked, and the generator of candidate slots for a date. Results are
// never cached; every call re-queries current state.
type Service struct {
	doctors      repository.DoctorRepository
	appointments repository.AppointmentRepository
	now          func() time.Time
}

func NewService(doctors repository.DoctorRepository, appointments repository.AppointmentRepository) *Service {
	return &Service{
		doctors:      doctors,
		appointments: appointments,
		now:          time.Now,
	}
}

// IsSlotAvailable fails closed: a missing or inactive doctor means false,
// not an error. The conflict query uses half-open [start, end) intervals,
// so a booking ending exactly at start does not conflict.
func (s *Service) IsSlotAvailable(ctx context.Context, doctorID uuid.UUID, start time.Time, durationMinutes int, excludeID *uuid.UUID) (bool, error) {
	if durationMinutes <= 0 {
		return false, nil
	}

	doctor, err := s.doctors.Get(ctx, doctorID)
	if err != nil {
		if errors.IsKind(err, errors.KindNotFound) {
			return false, nil
		}
		return false, err
	}
	if !doctor.Active {
		return false, nil
	}

	duration := time.Duration(durationMinutes) * time.Minute
	if !doctor.IsAvailableAt(start, duration) {
		return false, nil
	}

	conflict, err := s.appointments.HasConflictingAppointment(ctx, doctorID, start, start.Add(duration), excludeID)
	if err != nil {
		return false, err
	}
	return !conflict, nil
}

// GenerateAvailableSlots walks each active window matching the date's
// weekday in steps of exactly durationMinutes, skipping candidates that
// conflict with existing bookings. For today the walk starts no earlier
// than now+MinLeadTime, rounded up to the next duration-aligned boundary
// of the window grid. A missing or inactive doctor yields an empty
// sequence, never an error.
func (s *Service) GenerateAvailableSlots(ctx context.Context, doctorID uuid.UUID, date time.Time, durationMinutes int) ([]time.Time, error) {
	if durationMinutes <= 0 {
		return nil, errors.Validation("appointment duration must be positive")
	}

	doctor, err := s.doctors.Get(ctx, doctorID)
	if err != nil {
		if errors.IsKind(err, errors.KindNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if !doctor.Active {
		return nil, nil
	}

	duration := time.Duration(durationMinutes) * time.Minute
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())

	// compare calendar days in the date's zone; the host clock may sit
	// on a different day near midnight
	now := s.now()
	var minStart time.Time
	if sameDay(date, now.In(date.Location())) {
		minStart = now.Add(MinLeadTime)
	}

	var slots []time.Time
	for i := range doctor.Availabilities {
		w := &doctor.Availabilities[i]
		if !w.Active || w.DayOfWeek != date.Weekday() {
			continue
		}

		startMin, err := model.ParseTimeOfDay(w.StartTime)
		if err != nil {
			continue
		}
		endMin, err := model.ParseTimeOfDay(w.EndTime)
		if err != nil {
			continue
		}

		winStart := dayStart.Add(time.Duration(startMin) * time.Minute)
		winEnd := dayStart.Add(time.Duration(endMin) * time.Minute)

		first := winStart
		if !minStart.IsZero() && minStart.After(first) {
			// round up to the next duration-aligned step of this window
			steps := (minStart.Sub(winStart) + duration - 1) / duration
			first = winStart.Add(steps * duration)
		}

		for t := first; !t.Add(duration).After(winEnd); t = t.Add(duration) {
			conflict, err := s.appointments.HasConflictingAppointment(ctx, doctorID, t, t.Add(duration), nil)
			if err != nil {
				return nil, err
			}
			if !conflict {
				slots = append(slots, t)
			}
		}
	}

	sort.Slice(slots, func(i, j int) bool { return slots[i].Before(slots[j]) })
	return slots, nil
}

// ValidateSlot is the single choke point every booking and reschedule
// path must pass through: lead time, duration, then full availability.
func (s *Service) ValidateSlot(ctx context.Context, doctorID uuid.UUID, start time.Time, durationMinutes int, excludeID *uuid.UUID) error {
	if durationMinutes <= 0 {
		return errors.Validation("appointment duration must be positive")
	}
	if !start.After(s.now().Add(MinLeadTime)) {
		return errors.Validation("appointments must be booked at least 30 minutes in advance")
	}

	available, err := s.IsSlotAvailable(ctx, doctorID, start, durationMinutes, excludeID)
	if err != nil {
		return err
	}
	if !available {
		return errors.InvalidState("the requested time slot is not available")
	}
	return nil
}

// CanReschedule loads the appointment, checks the entity allows a move,
// then checks the target slot excluding the appointment's own booking.
func (s *Service) CanReschedule(ctx context.Context, appointmentID uuid.UUID, newStart time.Time) (bool, error) {
	appointment, err := s.appointments.Get(ctx, appointmentID)
	if err != nil {
		return false, err
	}
	if !appointment.CanBeRescheduled(s.now()) {
		return false, nil
	}
	return s.IsSlotAvailable(ctx, appointment.DoctorID, newStart, appointment.DurationMinutes, &appointment.ID)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
