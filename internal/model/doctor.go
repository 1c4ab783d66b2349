package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Doctor is a care provider of the center. Display fields carry both
// locales served by the platform.
type Doctor struct {
	ID             uuid.UUID            `db:"id" json:"id"`
	NameEn         string               `db:"name_en" json:"name_en"`
	NameAr         string               `db:"name_ar" json:"name_ar"`
	SpecialtyEn    string               `db:"specialty_en" json:"specialty_en"`
	SpecialtyAr    string               `db:"specialty_ar" json:"specialty_ar"`
	Email          string               `db:"email" json:"email"`
	Active         bool                 `db:"active" json:"active"`
	Availabilities []DoctorAvailability `db:"-" json:"availabilities,omitempty"`
	CreatedAt      time.Time            `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time            `db:"updated_at" json:"updated_at"`
}

// DoctorAvailability is a weekly recurring working window. Times are
// time-of-day strings ("15:04"); windows never cross midnight.
type DoctorAvailability struct {
	ID        uuid.UUID    `db:"id" json:"id"`
	DoctorID  uuid.UUID    `db:"doctor_id" json:"doctor_id"`
	DayOfWeek time.Weekday `db:"day_of_week" json:"day_of_week"`
	StartTime string       `db:"start_time" json:"start_time"`
	EndTime   string       `db:"end_time" json:"end_time"`
	Active    bool         `db:"active" json:"active"`
}

func (a *DoctorAvailability) Validate() error {
	start, err := ParseTimeOfDay(a.StartTime)
	if err != nil {
		return fmt.Errorf("invalid start time %q: %w", a.StartTime, err)
	}
	end, err := ParseTimeOfDay(a.EndTime)
	if err != nil {
		return fmt.Errorf("invalid end time %q: %w", a.EndTime, err)
	}
	if start >= end {
		return fmt.Errorf("availability start time %s must be before end time %s", a.StartTime, a.EndTime)
	}
	if a.DayOfWeek < time.Sunday || a.DayOfWeek > time.Saturday {
		return fmt.Errorf("invalid day of week %d", a.DayOfWeek)
	}
	return nil
}

// Contains reports whether the window fully covers [startMin, endMin),
// expressed as minutes from midnight.
func (a *DoctorAvailability) Contains(startMin, endMin int) bool {
	winStart, err := ParseTimeOfDay(a.StartTime)
	if err != nil {
		return false
	}
	winEnd, err := ParseTimeOfDay(a.EndTime)
	if err != nil {
		return false
	}
	return winStart <= startMin && endMin <= winEnd
}

// IsAvailableAt reports whether the doctor has an active weekly window
// fully containing [start, start+duration), in time-of-day terms. It says
// nothing about existing bookings.
func (d *Doctor) IsAvailableAt(start time.Time, duration time.Duration) bool {
	if duration <= 0 {
		return false
	}
	startMin := MinutesOfDay(start)
	endMin := startMin + int(duration.Minutes())
	if endMin > 24*60 {
		// would cross midnight; no window can contain it
		return false
	}
	for i := range d.Availabilities {
		w := &d.Availabilities[i]
		if !w.Active || w.DayOfWeek != start.Weekday() {
			continue
		}
		if w.Contains(startMin, endMin) {
			return true
		}
	}
	return false
}

// MinutesOfDay returns t's time of day as minutes from midnight.
func MinutesOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// ParseTimeOfDay parses "15:04" (or "15:04:05", as postgres TIME columns
// scan) into minutes from midnight.
func ParseTimeOfDay(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		t, err = time.Parse("15:04:05", s)
		if err != nil {
			return 0, err
		}
	}
	return t.Hour()*60 + t.Minute(), nil
}
