package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/joez89/autism-center-api/internal/model"
	"github.com/joez89/autism-center-api/internal/repository"
	"github.com/joez89/autism-center-api/pkg/errors"
)

const appointmentColumns = `
	id, appointment_number, user_id, doctor_id, start_time, duration_minutes,
	status, patient_name, patient_age, medical_history, reason,
	emergency_contact_name, emergency_contact_phone,
	meeting_id, meeting_join_url, cancel_reason, created_at, updated_at`

type appointmentRepository struct {
	db *sqlx.DB
}

func NewAppointmentRepository(db *sqlx.DB) repository.AppointmentRepository {
	return &appointmentRepository{db: db}
}

func (r *appointmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	query := `SELECT` + appointmentColumns + ` FROM appointments WHERE id = $1`

	var appointment model.Appointment
	err := r.db.GetContext(ctx, &appointment, query, id)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("appointment")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	return &appointment, nil
}

func (r *appointmentRepository) Add(ctx context.Context, appointment *model.Appointment) error {
	query := `
		INSERT INTO appointments (
			id, appointment_number, user_id, doctor_id, start_time, duration_minutes,
			status, patient_name, patient_age, medical_history, reason,
			emergency_contact_name, emergency_contact_phone,
			meeting_id, meeting_join_url, cancel_reason, created_at, updated_at
		) VALUES (
			:id, :appointment_number, :user_id, :doctor_id, :start_time, :duration_minutes,
			:status, :patient_name, :patient_age, :medical_history, :reason,
			:emergency_contact_name, :emergency_contact_phone,
			:meeting_id, :meeting_join_url, :cancel_reason, :created_at, :updated_at
		)
	`
	if _, err := r.db.NamedExecContext(ctx, query, appointment); err != nil {
		return fmt.Errorf("failed to create appointment: %w", err)
	}
	return nil
}

func (r *appointmentRepository) Update(ctx context.Context, appointment *model.Appointment) error {
	query := `
		UPDATE appointments
		SET start_time = :start_time,
			duration_minutes = :duration_minutes,
			status = :status,
			patient_name = :patient_name,
			patient_age = :patient_age,
			medical_history = :medical_history,
			reason = :reason,
			emergency_contact_name = :emergency_contact_name,
			emergency_contact_phone = :emergency_contact_phone,
			meeting_id = :meeting_id,
			meeting_join_url = :meeting_join_url,
			cancel_reason = :cancel_reason,
			updated_at = :updated_at
		WHERE id = :id
	`
	appointment.UpdatedAt = time.Now().UTC()

	result, err := r.db.NamedExecContext(ctx, query, appointment)
	if err != nil {
		return fmt.Errorf("failed to update appointment: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return errors.NotFound("appointment")
	}

	return nil
}

func (r *appointmentRepository) ListForUser(ctx context.Context, userID uuid.UUID) ([]*model.Appointment, error) {
	query := `SELECT` + appointmentColumns + `
		FROM appointments
		WHERE user_id = $1
		ORDER BY start_time DESC
	`
	var appointments []*model.Appointment
	if err := r.db.SelectContext(ctx, &appointments, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return appointments, nil
}

func (r *appointmentRepository) ListForDoctor(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]*model.Appointment, error) {
	query := `SELECT` + appointmentColumns + `
		FROM appointments
		WHERE doctor_id = $1
		AND start_time >= $2
		AND start_time < $3
		AND status NOT IN ('cancelled')
		ORDER BY start_time ASC
	`
	var appointments []*model.Appointment
	if err := r.db.SelectContext(ctx, &appointments, query, doctorID, from, to); err != nil {
		return nil, fmt.Errorf("failed to list doctor appointments: %w", err)
	}
	return appointments, nil
}

func (r *appointmentRepository) ListStaleScheduled(ctx context.Context, before time.Time, limit int) ([]*model.Appointment, error) {
	query := `SELECT` + appointmentColumns + `
		FROM appointments
		WHERE status = $1
		AND start_time < $2
		ORDER BY start_time ASC
		LIMIT $3
	`
	var appointments []*model.Appointment
	err := r.db.SelectContext(ctx, &appointments, query, model.AppointmentStatusScheduled, before, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale appointments: %w", err)
	}
	return appointments, nil
}

// HasConflictingAppointment uses half-open interval semantics: an
// appointment ending exactly when another starts does not conflict.
func (r *appointmentRepository) HasConflictingAppointment(ctx context.Context, doctorID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE doctor_id = $1
			AND status IN ('scheduled', 'confirmed', 'in_progress')
			AND start_time < $3
			AND start_time + make_interval(mins => duration_minutes) > $2
	`
	args := []interface{}{doctorID, start, end}

	if excludeID != nil {
		query += " AND id != $4"
		args = append(args, *excludeID)
	}

	query += ")"

	var hasConflict bool
	if err := r.db.GetContext(ctx, &hasConflict, query, args...); err != nil {
		return false, fmt.Errorf("failed to check conflicts: %w", err)
	}
	return hasConflict, nil
}

func (r *appointmentRepository) GenerateAppointmentNumber(ctx context.Context) (string, error) {
	var seq int64
	if err := r.db.GetContext(ctx, &seq, `SELECT nextval('appointment_numbers')`); err != nil {
		return "", fmt.Errorf("failed to generate appointment number: %w", err)
	}
	return fmt.Sprintf("APT-%06d", seq), nil
}
