package scheduling

import (
	"context"
	goerrors "errors"
	"time"

	"github.com/google/uuid"

	"github.com/joez89/autism-center-api/internal/model"
	"github.com/joez89/autism-center-api/internal/repository"
	"github.com/joez89/autism-center-api/internal/service/event"
	"github.com/joez89/autism-center-api/internal/service/slot"
	"github.com/joez89/autism-center-api/pkg/errors"
	"github.com/joez89/autism-center-api/pkg/lock"
	"github.com/joez89/autism-center-api/pkg/logger"
	"github.com/joez89/autism-center-api/pkg/metrics"
)

// MeetingService is the slice of the meeting integration the scheduler
// drives. All calls are best-effort from the booking path's perspective.
type MeetingService interface {
	CreateMeeting(ctx context.Context, appointment *model.Appointment) (string, error)
	HandleRescheduled(ctx context.Context, appointment *model.Appointment) error
	HandleCancelled(ctx context.Context, appointment *model.Appointment) error
}

// Config is the business-hours policy for IsAppointmentTimeValid.
type Config struct {
	BusinessStart  string
	BusinessEnd    string
	ClosedWeekdays []time.Weekday
}

type Service struct {
	doctors      repository.DoctorRepository
	appointments repository.AppointmentRepository
	slots        *slot.Service
	meetings     MeetingService
	events       event.Sink
	locks        lock.DoctorLocker
	logger       *logger.Logger
	metrics      *metrics.Metrics
	now          func() time.Time

	businessStartMin int
	businessEndMin   int
	closedWeekdays   map[time.Weekday]bool
}

func NewService(
	doctors repository.DoctorRepository,
	appointments repository.AppointmentRepository,
	slots *slot.Service,
	meetings MeetingService,
	events event.Sink,
	locks lock.DoctorLocker,
	logger *logger.Logger,
	m *metrics.Metrics,
	cfg Config,
) *Service {
	startMin, err := model.ParseTimeOfDay(cfg.BusinessStart)
	if err != nil {
		startMin = 9 * 60
	}
	endMin, err := model.ParseTimeOfDay(cfg.BusinessEnd)
	if err != nil {
		endMin = 18 * 60
	}
	closed := make(map[time.Weekday]bool, len(cfg.ClosedWeekdays))
	for _, d := range cfg.ClosedWeekdays {
		closed[d] = true
	}

	return &Service{
		doctors:          doctors,
		appointments:     appointments,
		slots:            slots,
		meetings:         meetings,
		events:           events,
		locks:            locks,
		logger:           logger,
		metrics:          m,
		now:              time.Now,
		businessStartMin: startMin,
		businessEndMin:   endMin,
		closedWeekdays:   closed,
	}
}

// ScheduleAppointment validates the doctor, availability and conflicts,
// then constructs a Scheduled appointment with a freshly generated
// number. It neither persists the appointment nor applies the lead-time
// check; BookAppointment wraps both around this.
func (s *Service) ScheduleAppointment(ctx context.Context, userID, doctorID uuid.UUID, start time.Time, durationMinutes int, patient model.PatientInfo) (*model.Appointment, error) {
	doctor, err := s.doctors.Get(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	if !doctor.Active {
		return nil, errors.InvalidState("doctor is not active")
	}

	duration := time.Duration(durationMinutes) * time.Minute
	if !doctor.IsAvailableAt(start, duration) {
		return nil, errors.InvalidState("doctor is not available at the requested time")
	}

	conflict, err := s.appointments.HasConflictingAppointment(ctx, doctorID, start, start.Add(duration), nil)
	if err != nil {
		return nil, err
	}
	if conflict {
		return nil, errors.InvalidState("doctor already has an appointment at the requested time")
	}

	number, err := s.appointments.GenerateAppointmentNumber(ctx)
	if err != nil {
		return nil, err
	}

	return model.NewAppointment(number, userID, doctorID, start, durationMinutes, patient)
}

// BookAppointment is the single entry point for booking: slot validation
// (lead time + duration + availability), then schedule-and-persist under
// the per-doctor lock, then the meeting side effect. Meeting creation
// failing does not fail the booking; the appointment is returned with a
// nil join URL.
func (s *Service) BookAppointment(ctx context.Context, userID, doctorID uuid.UUID, start time.Time, durationMinutes int, patient model.PatientInfo) (*model.Appointment, error) {
	if err := s.slots.ValidateSlot(ctx, doctorID, start, durationMinutes, nil); err != nil {
		s.metrics.BookingsTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}

	var appointment *model.Appointment
	err := s.locks.WithDoctorLock(ctx, doctorID, func(ctx context.Context) error {
		a, err := s.ScheduleAppointment(ctx, userID, doctorID, start, durationMinutes, patient)
		if err != nil {
			return err
		}
		if err := s.appointments.Add(ctx, a); err != nil {
			return err
		}
		appointment = a
		return nil
	})
	if err != nil {
		if goerrors.Is(err, lock.ErrLockNotAcquired) {
			err = errors.InvalidState("doctor is currently being booked, please retry")
		}
		s.metrics.BookingsTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}

	s.emit(ctx, appointment.NewScheduledEvent())

	if _, err := s.meetings.CreateMeeting(ctx, appointment); err != nil {
		// booking already committed; a missing join URL is an accepted state
		s.logger.Error(err, "failed to create meeting for appointment",
			"appointment_id", appointment.ID.String())
	}

	s.metrics.BookingsTotal.WithLabelValues("booked").Inc()
	return appointment, nil
}

// RescheduleAppointment moves an appointment the acting user owns to a
// new start time, re-validating the slot and serializing on the doctor.
func (s *Service) RescheduleAppointment(ctx context.Context, userID, appointmentID uuid.UUID, newStart time.Time) (*model.Appointment, error) {
	appointment, err := s.appointments.Get(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if appointment.UserID != userID {
		return nil, errors.Unauthorized("appointment belongs to another user")
	}

	if err := s.slots.ValidateSlot(ctx, appointment.DoctorID, newStart, appointment.DurationMinutes, &appointment.ID); err != nil {
		return nil, err
	}

	var ev *model.AppointmentEvent
	err = s.locks.WithDoctorLock(ctx, appointment.DoctorID, func(ctx context.Context) error {
		end := newStart.Add(appointment.Duration())
		conflict, err := s.appointments.HasConflictingAppointment(ctx, appointment.DoctorID, newStart, end, &appointment.ID)
		if err != nil {
			return err
		}
		if conflict {
			return errors.InvalidState("doctor already has an appointment at the requested time")
		}

		ev, err = appointment.Reschedule(newStart, s.now())
		if err != nil {
			return err
		}
		return s.appointments.Update(ctx, appointment)
	})
	if err != nil {
		if goerrors.Is(err, lock.ErrLockNotAcquired) {
			err = errors.InvalidState("doctor is currently being booked, please retry")
		}
		return nil, err
	}

	s.emit(ctx, ev)

	if err := s.meetings.HandleRescheduled(ctx, appointment); err != nil {
		s.logger.Error(err, "failed to update meeting after reschedule",
			"appointment_id", appointment.ID.String())
	}

	return appointment, nil
}

// CancelAppointment cancels an appointment the acting user owns. The
// meeting cleanup is best-effort and never fails the cancellation.
func (s *Service) CancelAppointment(ctx context.Context, userID, appointmentID uuid.UUID, reason string) (*model.Appointment, error) {
	appointment, err := s.appointments.Get(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if appointment.UserID != userID {
		return nil, errors.Unauthorized("appointment belongs to another user")
	}

	ev, err := appointment.Cancel(reason)
	if err != nil {
		return nil, err
	}
	if err := s.appointments.Update(ctx, appointment); err != nil {
		return nil, err
	}

	s.emit(ctx, ev)

	if err := s.meetings.HandleCancelled(ctx, appointment); err != nil {
		s.logger.Error(err, "failed to clean up meeting after cancellation",
			"appointment_id", appointment.ID.String())
	}

	return appointment, nil
}

// ConfirmAppointment moves an appointment to Confirmed.
func (s *Service) ConfirmAppointment(ctx context.Context, appointmentID uuid.UUID) (*model.Appointment, error) {
	return s.transition(ctx, appointmentID, (*model.Appointment).Confirm)
}

// StartAppointment moves a confirmed appointment to InProgress.
func (s *Service) StartAppointment(ctx context.Context, appointmentID uuid.UUID) (*model.Appointment, error) {
	return s.transition(ctx, appointmentID, (*model.Appointment).Start)
}

// CompleteAppointment finishes an in-progress appointment.
func (s *Service) CompleteAppointment(ctx context.Context, appointmentID uuid.UUID) (*model.Appointment, error) {
	return s.transition(ctx, appointmentID, (*model.Appointment).Complete)
}

func (s *Service) transition(ctx context.Context, appointmentID uuid.UUID, fn func(*model.Appointment) (*model.AppointmentEvent, error)) (*model.Appointment, error) {
	appointment, err := s.appointments.Get(ctx, appointmentID)
	if err != nil {
		return nil, err
	}

	ev, err := fn(appointment)
	if err != nil {
		return nil, err
	}
	if err := s.appointments.Update(ctx, appointment); err != nil {
		return nil, err
	}

	s.emit(ctx, ev)
	return appointment, nil
}

// GetAppointment loads a single appointment, enforcing ownership.
func (s *Service) GetAppointment(ctx context.Context, userID, appointmentID uuid.UUID) (*model.Appointment, error) {
	appointment, err := s.appointments.Get(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if appointment.UserID != userID {
		return nil, errors.Unauthorized("appointment belongs to another user")
	}
	return appointment, nil
}

// ListAppointments returns the acting user's appointments.
func (s *Service) ListAppointments(ctx context.Context, userID uuid.UUID) ([]*model.Appointment, error) {
	return s.appointments.ListForUser(ctx, userID)
}

// CanReschedule re-validates doctor activity, availability and
// conflict-freedom (excluding the appointment itself) for the new time.
func (s *Service) CanReschedule(ctx context.Context, appointmentID uuid.UUID, newStart time.Time) (bool, error) {
	return s.slots.CanReschedule(ctx, appointmentID, newStart)
}

// GetAvailableSlots is a pass-through to the slot generator. A missing
// or inactive doctor yields an empty list, never an error.
func (s *Service) GetAvailableSlots(ctx context.Context, doctorID uuid.UUID, date time.Time, durationMinutes int) ([]time.Time, error) {
	defer s.metrics.ObserveSlotGeneration(time.Now())
	return s.slots.GenerateAvailableSlots(ctx, doctorID, date, durationMinutes)
}

// IsAppointmentTimeValid is a pure business-hours predicate: strictly
// future, within the configured daily window, and not on a closed
// weekday. Usable for client-side pre-checks; it performs no I/O.
func (s *Service) IsAppointmentTimeValid(start time.Time) bool {
	if !start.After(s.now()) {
		return false
	}
	if s.closedWeekdays[start.Weekday()] {
		return false
	}
	minutes := model.MinutesOfDay(start)
	return minutes >= s.businessStartMin && minutes < s.businessEndMin
}

func (s *Service) emit(ctx context.Context, ev *model.AppointmentEvent) {
	if ev == nil {
		return
	}
	if err := s.events.Emit(ctx, ev.Type, ev); err != nil {
		s.logger.Error(err, "failed to emit appointment event",
			"event_type", ev.Type, "appointment_id", ev.AppointmentID.String())
	}
}
