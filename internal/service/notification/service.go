package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/joez89/autism-center-api/internal/email"
	"github.com/joez89/autism-center-api/internal/model"
	"github.com/joez89/autism-center-api/pkg/logger"
	"github.com/joez89/autism-center-api/pkg/messaging"
)

// Service consumes appointment events from the broker and mails the
// center's coordination inbox. Delivery is at-least-once; the mails are
// informational, so duplicates are tolerated.
type Service struct {
	broker   messaging.Broker
	email    email.Service
	notifyTo string
	logger   *logger.Logger
}

func NewService(broker messaging.Broker, email email.Service, notifyTo string, logger *logger.Logger) *Service {
	return &Service{
		broker:   broker,
		email:    email,
		notifyTo: notifyTo,
		logger:   logger,
	}
}

// Start subscribes to every appointment event channel and blocks until
// the context is cancelled.
func (s *Service) Start(ctx context.Context) error {
	channels := []string{
		model.EventAppointmentScheduled,
		model.EventAppointmentConfirmed,
		model.EventAppointmentCancelled,
		model.EventAppointmentRescheduled,
	}

	for _, channel := range channels {
		msgs, err := s.broker.Subscribe(ctx, channel)
		if err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", channel, err)
		}
		go s.consume(ctx, channel, msgs)
	}

	<-ctx.Done()
	return nil
}

func (s *Service) consume(ctx context.Context, channel string, msgs <-chan []byte) {
	for {
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-msgs:
			if !ok {
				return
			}
			if err := s.handle(ctx, channel, payload); err != nil {
				s.logger.Error(err, "Failed to handle event", "channel", channel)
			}
		}
	}
}

func (s *Service) handle(ctx context.Context, channel string, payload []byte) error {
	var ev model.AppointmentEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return fmt.Errorf("failed to unmarshal event: %w", err)
	}

	subject, body := s.render(&ev)
	return s.email.SendAppointmentNotification(ctx, s.notifyTo, subject, body)
}

func (s *Service) render(ev *model.AppointmentEvent) (subject, body string) {
	when := ev.StartTime.Format(time.RFC1123)

	switch ev.Type {
	case model.EventAppointmentScheduled:
		subject = fmt.Sprintf("New appointment %s", ev.Number)
		body = fmt.Sprintf("<p>Appointment <b>%s</b> was booked for %s.</p>", ev.Number, when)
	case model.EventAppointmentConfirmed:
		subject = fmt.Sprintf("Appointment %s confirmed", ev.Number)
		body = fmt.Sprintf("<p>Appointment <b>%s</b> on %s was confirmed.</p>", ev.Number, when)
	case model.EventAppointmentCancelled:
		subject = fmt.Sprintf("Appointment %s cancelled", ev.Number)
		reason := "no reason given"
		if ev.Reason != nil {
			reason = *ev.Reason
		}
		body = fmt.Sprintf("<p>Appointment <b>%s</b> on %s was cancelled: %s.</p>", ev.Number, when, reason)
	case model.EventAppointmentRescheduled:
		subject = fmt.Sprintf("Appointment %s rescheduled", ev.Number)
		body = fmt.Sprintf("<p>Appointment <b>%s</b> was moved to %s.</p>", ev.Number, when)
	default:
		subject = fmt.Sprintf("Appointment %s update", ev.Number)
		body = fmt.Sprintf("<p>Appointment <b>%s</b> raised event %s.</p>", ev.Number, ev.Type)
	}
	return subject, body
}
