package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/joez89/autism-center-api/internal/model"
	"github.com/joez89/autism-center-api/internal/repository"
	"github.com/joez89/autism-center-api/pkg/errors"
)

type doctorRepository struct {
	db *sqlx.DB
}

func NewDoctorRepository(db *sqlx.DB) repository.DoctorRepository {
	return &doctorRepository{db: db}
}

func (r *doctorRepository) Get(ctx context.Context, id uuid.UUID) (*model.Doctor, error) {
	query := `
		SELECT id, name_en, name_ar, specialty_en, specialty_ar, email, active,
			   created_at, updated_at
		FROM doctors
		WHERE id = $1
	`
	var doctor model.Doctor
	err := r.db.GetContext(ctx, &doctor, query, id)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("doctor")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get doctor: %w", err)
	}

	availabilities, err := r.listAvailabilities(ctx, id)
	if err != nil {
		return nil, err
	}
	doctor.Availabilities = availabilities

	return &doctor, nil
}

func (r *doctorRepository) List(ctx context.Context) ([]*model.Doctor, error) {
	query := `
		SELECT id, name_en, name_ar, specialty_en, specialty_ar, email, active,
			   created_at, updated_at
		FROM doctors
		WHERE active = true
		ORDER BY name_en ASC
	`
	var doctors []*model.Doctor
	if err := r.db.SelectContext(ctx, &doctors, query); err != nil {
		return nil, fmt.Errorf("failed to list doctors: %w", err)
	}
	return doctors, nil
}

func (r *doctorRepository) listAvailabilities(ctx context.Context, doctorID uuid.UUID) ([]model.DoctorAvailability, error) {
	query := `
		SELECT id, doctor_id, day_of_week, start_time, end_time, active
		FROM doctor_availabilities
		WHERE doctor_id = $1
		ORDER BY day_of_week ASC, start_time ASC
	`
	var availabilities []model.DoctorAvailability
	if err := r.db.SelectContext(ctx, &availabilities, query, doctorID); err != nil {
		return nil, fmt.Errorf("failed to list doctor availabilities: %w", err)
	}
	return availabilities, nil
}
