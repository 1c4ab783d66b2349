package main

import (
	"context"
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/joez89/autism-center-api/internal/config"
	"github.com/joez89/autism-center-api/internal/repository/postgres"
)

const doctorCount = 8

var specialties = [][2]string{
	{"Child Psychiatry", "الطب النفسي للأطفال"},
	{"Behavioral Therapy", "العلاج السلوكي"},
	{"Speech Therapy", "علاج النطق"},
	{"Occupational Therapy", "العلاج الوظيفي"},
	{"Developmental Pediatrics", "طب الأطفال التنموي"},
}

// Seeds development databases with a plausible roster of doctors and
// Sunday-Thursday availability windows.
func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx := context.Background()
	for i := 0; i < doctorCount; i++ {
		if err := seedDoctor(ctx, db); err != nil {
			log.Fatal().Err(err).Msg("failed to seed doctor")
		}
	}

	log.Info().Int("doctors", doctorCount).Msg("seed complete")
}

func seedDoctor(ctx context.Context, db *sqlx.DB) error {
	id := uuid.New()
	name := gofakeit.Name()
	specialty := specialties[gofakeit.Number(0, len(specialties)-1)]
	now := time.Now().UTC()

	_, err := db.ExecContext(ctx, `
		INSERT INTO doctors (id, name_en, name_ar, specialty_en, specialty_ar, email, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, true, $7, $7)`,
		id, "Dr. "+name, "د. "+name, specialty[0], specialty[1], gofakeit.Email(), now,
	)
	if err != nil {
		return fmt.Errorf("insert doctor: %w", err)
	}

	// Sunday through Thursday, morning and afternoon blocks
	for day := time.Sunday; day <= time.Thursday; day++ {
		windows := [][2]string{{"09:00", "13:00"}, {"14:00", "18:00"}}
		for _, w := range windows {
			_, err := db.ExecContext(ctx, `
				INSERT INTO doctor_availabilities (id, doctor_id, day_of_week, start_time, end_time, active)
				VALUES ($1, $2, $3, $4, $5, true)`,
				uuid.New(), id, int(day), w[0], w[1],
			)
			if err != nil {
				return fmt.Errorf("insert availability: %w", err)
			}
		}
	}

	return nil
}
