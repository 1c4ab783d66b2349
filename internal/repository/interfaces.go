package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/joez89/autism-center-api/internal/model"
)

// All repository interfaces in one file
type (
	// DoctorRepository is read-only to the scheduling core; doctors and
	// their availability windows are managed elsewhere.
	DoctorRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.Doctor, error)
		List(ctx context.Context) ([]*model.Doctor, error)
	}

	AppointmentRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
		Add(ctx context.Context, appointment *model.Appointment) error
		Update(ctx context.Context, appointment *model.Appointment) error
		ListForUser(ctx context.Context, userID uuid.UUID) ([]*model.Appointment, error)
		ListForDoctor(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]*model.Appointment, error)
		// ListStaleScheduled returns appointments still Scheduled whose
		// start time passed before the cutoff.
		ListStaleScheduled(ctx context.Context, before time.Time, limit int) ([]*model.Appointment, error)
		// HasConflictingAppointment checks half-open [start, end) overlap
		// against active bookings; excludeID skips the appointment being
		// rescheduled in place.
		HasConflictingAppointment(ctx context.Context, doctorID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) (bool, error)
		// GenerateAppointmentNumber draws the next value of an atomic
		// database sequence.
		GenerateAppointmentNumber(ctx context.Context) (string, error)
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		GetPendingEvents(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		MarkProcessed(ctx context.Context, id uuid.UUID) error
		MarkFailed(ctx context.Context, id uuid.UUID, errMsg string, retryAt time.Time) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}
)
