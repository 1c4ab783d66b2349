package worker

import (
	"context"
	"time"

	"github.com/joez89/autism-center-api/internal/model"
	"github.com/joez89/autism-center-api/internal/repository"
	"github.com/joez89/autism-center-api/internal/service/event"
	"github.com/joez89/autism-center-api/pkg/logger"
	"github.com/joez89/autism-center-api/pkg/metrics"
)

const sweepBatchSize = 100

// MeetingCleaner releases the video meeting of a cancelled appointment.
type MeetingCleaner interface {
	HandleCancelled(ctx context.Context, appointment *model.Appointment) error
}

// SweepWorker cancels appointments that were never confirmed and whose
// start time passed more than the grace period ago. It keeps the doctor's
// calendar from being blocked by no-shows that never checked in.
type SweepWorker struct {
	appointments repository.AppointmentRepository
	meetings     MeetingCleaner
	events       event.Sink
	interval     time.Duration
	grace        time.Duration
	logger       *logger.Logger
	metrics      *metrics.Metrics
}

func NewSweepWorker(
	appointments repository.AppointmentRepository,
	meetings MeetingCleaner,
	events event.Sink,
	interval, grace time.Duration,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *SweepWorker {
	return &SweepWorker{
		appointments: appointments,
		meetings:     meetings,
		events:       events,
		interval:     interval,
		grace:        grace,
		logger:       logger,
		metrics:      metrics,
	}
}

func (w *SweepWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("Starting stale appointment sweep")

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Shutting down stale appointment sweep")
			return
		case <-ticker.C:
			if err := w.sweep(ctx); err != nil {
				w.logger.Error(err, "Failed to sweep stale appointments")
			}
		}
	}
}

func (w *SweepWorker) sweep(ctx context.Context) error {
	cutoff := time.Now().Add(-w.grace)
	stale, err := w.appointments.ListStaleScheduled(ctx, cutoff, sweepBatchSize)
	if err != nil {
		return err
	}

	for _, appointment := range stale {
		ev, err := appointment.Cancel("not confirmed before start time")
		if err != nil {
			// moved out of Scheduled since the query ran
			continue
		}
		if err := w.appointments.Update(ctx, appointment); err != nil {
			w.logger.Error(err, "Failed to cancel stale appointment",
				"appointment_id", appointment.ID.String())
			continue
		}

		w.metrics.SweepCancellations.Inc()

		if err := w.events.Emit(ctx, ev.Type, ev); err != nil {
			w.logger.Error(err, "Failed to emit cancellation event",
				"appointment_id", appointment.ID.String())
		}
		if err := w.meetings.HandleCancelled(ctx, appointment); err != nil {
			w.logger.Error(err, "Failed to clean up meeting for stale appointment",
				"appointment_id", appointment.ID.String())
		}
	}

	return nil
}
