package meeting

import (
	"context"
	"fmt"

	"github.com/joez89/autism-center-api/internal/model"
	"github.com/joez89/autism-center-api/internal/repository"
	"github.com/joez89/autism-center-api/pkg/errors"
	"github.com/joez89/autism-center-api/pkg/logger"
	"github.com/joez89/autism-center-api/pkg/metrics"
	"github.com/joez89/autism-center-api/pkg/security"
	"github.com/joez89/autism-center-api/pkg/zoom"
)

const meetingPasswordLength = 10

// Service owns the appointment-to-meeting linkage. Provider failures are
// translated to integration errors; the callers decide whether those are
// fatal (they usually are not).
type Service struct {
	provider     zoom.Provider
	appointments repository.AppointmentRepository
	logger       *logger.Logger
	metrics      *metrics.Metrics
	password     func(int) (string, error)
}

func NewService(provider zoom.Provider, appointments repository.AppointmentRepository, logger *logger.Logger, m *metrics.Metrics) *Service {
	return &Service{
		provider:     provider,
		appointments: appointments,
		logger:       logger,
		metrics:      m,
		password:     security.RandomString,
	}
}

// CreateMeeting provisions a video meeting for the appointment and
// persists the linkage. Calling it on an appointment that already has a
// meeting is an error; the guard keeps retries from leaking meetings.
func (s *Service) CreateMeeting(ctx context.Context, appointment *model.Appointment) (string, error) {
	if appointment.HasMeeting() {
		return "", errors.InvalidState("appointment already has a Zoom meeting")
	}

	password, err := s.password(meetingPasswordLength)
	if err != nil {
		return "", errors.Internal(err)
	}

	meeting, err := s.provider.CreateMeeting(ctx, zoom.MeetingRequest{
		Topic:           fmt.Sprintf("Appointment %s - %s", appointment.Number, appointment.PatientInfo.Name),
		StartTime:       appointment.StartTime,
		DurationMinutes: appointment.DurationMinutes,
		Password:        password,
		WaitingRoom:     true,
		JoinBeforeHost:  false,
	})
	if err != nil {
		s.metrics.MeetingFailures.WithLabelValues("create").Inc()
		return "", errors.Integration("failed to create Zoom meeting", err)
	}

	if err := appointment.SetMeeting(meeting.ID, meeting.JoinURL); err != nil {
		return "", err
	}
	if err := s.appointments.Update(ctx, appointment); err != nil {
		return "", err
	}

	return meeting.JoinURL, nil
}

// UpdateMeeting pushes the appointment's current time onto its existing
// meeting.
func (s *Service) UpdateMeeting(ctx context.Context, appointment *model.Appointment) error {
	if !appointment.HasMeeting() {
		return errors.InvalidState("appointment has no Zoom meeting to update")
	}

	// the provider replaces the whole settings block on update, so the
	// create-time room settings must be re-sent; the password stays
	// unset and therefore unchanged
	err := s.provider.UpdateMeeting(ctx, *appointment.MeetingID, zoom.MeetingRequest{
		Topic:           fmt.Sprintf("Appointment %s - %s", appointment.Number, appointment.PatientInfo.Name),
		StartTime:       appointment.StartTime,
		DurationMinutes: appointment.DurationMinutes,
		WaitingRoom:     true,
		JoinBeforeHost:  false,
	})
	if err != nil {
		s.metrics.MeetingFailures.WithLabelValues("update").Inc()
		return errors.Integration("failed to update Zoom meeting", err)
	}
	return nil
}

// DeleteMeeting removes the remote meeting and always clears the local
// linkage, even when the provider call fails. The remote meeting may be
// orphaned in that case; the linkage must not outlive the appointment's
// need for it.
func (s *Service) DeleteMeeting(ctx context.Context, appointment *model.Appointment) error {
	if !appointment.HasMeeting() {
		return nil
	}

	if err := s.provider.DeleteMeeting(ctx, *appointment.MeetingID); err != nil {
		s.metrics.MeetingFailures.WithLabelValues("delete").Inc()
		s.logger.Error(err, "failed to delete Zoom meeting",
			"meeting_id", *appointment.MeetingID,
			"appointment_id", appointment.ID.String())
	}

	appointment.ClearMeeting()
	return s.appointments.Update(ctx, appointment)
}

// HandleRescheduled reconciles the meeting after a time change: update
// when one exists, create when the original booking never got one.
func (s *Service) HandleRescheduled(ctx context.Context, appointment *model.Appointment) error {
	if appointment.HasMeeting() {
		return s.UpdateMeeting(ctx, appointment)
	}
	_, err := s.CreateMeeting(ctx, appointment)
	return err
}

// HandleCancelled tears down the meeting for a cancelled appointment.
func (s *Service) HandleCancelled(ctx context.Context, appointment *model.Appointment) error {
	return s.DeleteMeeting(ctx, appointment)
}
