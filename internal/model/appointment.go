package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/joez89/autism-center-api/pkg/errors"
)

type AppointmentStatus string

const (
	AppointmentStatusScheduled  AppointmentStatus = "scheduled"
	AppointmentStatusConfirmed  AppointmentStatus = "confirmed"
	AppointmentStatusInProgress AppointmentStatus = "in_progress"
	AppointmentStatusCompleted  AppointmentStatus = "completed"
	AppointmentStatusCancelled  AppointmentStatus = "cancelled"
)

// Label returns the human-readable status name used in error messages.
func (s AppointmentStatus) Label() string {
	switch s {
	case AppointmentStatusScheduled:
		return "Scheduled"
	case AppointmentStatusConfirmed:
		return "Confirmed"
	case AppointmentStatusInProgress:
		return "InProgress"
	case AppointmentStatusCompleted:
		return "Completed"
	case AppointmentStatusCancelled:
		return "Cancelled"
	default:
		return string(s)
	}
}

// PatientInfo is the patient details captured at booking time. It is
// replaced wholesale on edit, never mutated field by field.
type PatientInfo struct {
	Name                  string  `db:"patient_name" json:"patient_name"`
	Age                   int     `db:"patient_age" json:"patient_age"`
	MedicalHistory        *string `db:"medical_history" json:"medical_history,omitempty"`
	Reason                *string `db:"reason" json:"reason,omitempty"`
	EmergencyContactName  *string `db:"emergency_contact_name" json:"emergency_contact_name,omitempty"`
	EmergencyContactPhone *string `db:"emergency_contact_phone" json:"emergency_contact_phone,omitempty"`
}

func (p *PatientInfo) Validate() error {
	if p.Name == "" {
		return errors.Validation("patient name is required")
	}
	if p.Age <= 0 {
		return errors.Validation("patient age must be positive")
	}
	return nil
}

type Appointment struct {
	ID              uuid.UUID         `db:"id" json:"id"`
	Number          string            `db:"appointment_number" json:"appointment_number"`
	UserID          uuid.UUID         `db:"user_id" json:"user_id"`
	DoctorID        uuid.UUID         `db:"doctor_id" json:"doctor_id"`
	StartTime       time.Time         `db:"start_time" json:"start_time"`
	DurationMinutes int               `db:"duration_minutes" json:"duration_minutes"`
	Status          AppointmentStatus `db:"status" json:"status"`
	PatientInfo
	MeetingID      *string   `db:"meeting_id" json:"meeting_id,omitempty"`
	MeetingJoinURL *string   `db:"meeting_join_url" json:"meeting_join_url,omitempty"`
	CancelReason   *string   `db:"cancel_reason" json:"cancel_reason,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// NewAppointment constructs an appointment in the Scheduled state.
func NewAppointment(number string, userID, doctorID uuid.UUID, start time.Time, durationMinutes int, patient PatientInfo) (*Appointment, error) {
	if durationMinutes <= 0 {
		return nil, errors.Validation("appointment duration must be positive")
	}
	if err := patient.Validate(); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	return &Appointment{
		ID:              uuid.New(),
		Number:          number,
		UserID:          userID,
		DoctorID:        doctorID,
		StartTime:       start.UTC(),
		DurationMinutes: durationMinutes,
		Status:          AppointmentStatusScheduled,
		PatientInfo:     patient,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

func (a *Appointment) Duration() time.Duration {
	return time.Duration(a.DurationMinutes) * time.Minute
}

func (a *Appointment) EndTime() time.Time {
	return a.StartTime.Add(a.Duration())
}

func (a *Appointment) HasMeeting() bool {
	return a.MeetingID != nil && *a.MeetingID != ""
}

func (a *Appointment) isTerminal() bool {
	return a.Status == AppointmentStatusCompleted || a.Status == AppointmentStatusCancelled
}

// Confirm moves the appointment from Scheduled to Confirmed.
func (a *Appointment) Confirm() (*AppointmentEvent, error) {
	if a.Status != AppointmentStatusScheduled {
		return nil, errors.InvalidState(fmt.Sprintf("Cannot confirm appointment with status %s", a.Status.Label()))
	}
	a.Status = AppointmentStatusConfirmed
	a.UpdatedAt = time.Now().UTC()
	return a.newEvent(EventAppointmentConfirmed), nil
}

// Start moves the appointment from Confirmed to InProgress.
func (a *Appointment) Start() (*AppointmentEvent, error) {
	if a.Status != AppointmentStatusConfirmed {
		return nil, errors.InvalidState(fmt.Sprintf("Cannot start appointment with status %s", a.Status.Label()))
	}
	a.Status = AppointmentStatusInProgress
	a.UpdatedAt = time.Now().UTC()
	return a.newEvent(EventAppointmentStarted), nil
}

// Complete moves the appointment from InProgress to Completed.
func (a *Appointment) Complete() (*AppointmentEvent, error) {
	if a.Status != AppointmentStatusInProgress {
		return nil, errors.InvalidState(fmt.Sprintf("Cannot complete appointment with status %s", a.Status.Label()))
	}
	a.Status = AppointmentStatusCompleted
	a.UpdatedAt = time.Now().UTC()
	ev := a.newEvent(EventAppointmentCompleted)
	completedAt := a.UpdatedAt
	ev.CompletedAt = &completedAt
	return ev, nil
}

// Cancel is valid from Scheduled or Confirmed only.
func (a *Appointment) Cancel(reason string) (*AppointmentEvent, error) {
	if a.Status != AppointmentStatusScheduled && a.Status != AppointmentStatusConfirmed {
		return nil, errors.InvalidState(fmt.Sprintf("Cannot cancel appointment with status %s", a.Status.Label()))
	}
	a.Status = AppointmentStatusCancelled
	if reason != "" {
		a.CancelReason = &reason
	}
	a.UpdatedAt = time.Now().UTC()
	ev := a.newEvent(EventAppointmentCancelled)
	if reason != "" {
		ev.Reason = &reason
	}
	return ev, nil
}

// CanBeRescheduled reports whether the appointment may still be moved:
// Scheduled or Confirmed, and not yet started.
func (a *Appointment) CanBeRescheduled(now time.Time) bool {
	if a.Status != AppointmentStatusScheduled && a.Status != AppointmentStatusConfirmed {
		return false
	}
	return a.StartTime.After(now)
}

// Reschedule updates the start time. Slot re-validation against
// availability and conflicts belongs to the scheduling service.
func (a *Appointment) Reschedule(newStart, now time.Time) (*AppointmentEvent, error) {
	if !a.CanBeRescheduled(now) {
		return nil, errors.InvalidState(fmt.Sprintf("Cannot reschedule appointment with status %s", a.Status.Label()))
	}
	a.StartTime = newStart.UTC()
	a.UpdatedAt = time.Now().UTC()
	return a.newEvent(EventAppointmentRescheduled), nil
}

// SetMeeting records the external meeting linkage. Both fields are set
// together; refused once the appointment is terminal.
func (a *Appointment) SetMeeting(meetingID, joinURL string) error {
	if a.isTerminal() {
		return errors.InvalidState(fmt.Sprintf("Cannot attach meeting to appointment with status %s", a.Status.Label()))
	}
	a.MeetingID = &meetingID
	a.MeetingJoinURL = &joinURL
	a.UpdatedAt = time.Now().UTC()
	return nil
}

// ClearMeeting drops the linkage. Allowed in any state so cancellation
// cleanup can always release the remote meeting reference.
func (a *Appointment) ClearMeeting() {
	a.MeetingID = nil
	a.MeetingJoinURL = nil
	a.UpdatedAt = time.Now().UTC()
}

// Domain event types raised by lifecycle transitions.
const (
	EventAppointmentScheduled   = "appointment.scheduled"
	EventAppointmentConfirmed   = "appointment.confirmed"
	EventAppointmentStarted     = "appointment.started"
	EventAppointmentCompleted   = "appointment.completed"
	EventAppointmentCancelled   = "appointment.cancelled"
	EventAppointmentRescheduled = "appointment.rescheduled"
)

// AppointmentEvent is returned by state-machine methods and forwarded to
// the event sink by the owning service. No hidden event bus.
type AppointmentEvent struct {
	Type          string     `json:"type"`
	AppointmentID uuid.UUID  `json:"appointment_id"`
	Number        string     `json:"appointment_number"`
	DoctorID      uuid.UUID  `json:"doctor_id"`
	UserID        uuid.UUID  `json:"user_id"`
	StartTime     time.Time  `json:"start_time"`
	OccurredAt    time.Time  `json:"occurred_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	Reason        *string    `json:"reason,omitempty"`
}

func (a *Appointment) newEvent(eventType string) *AppointmentEvent {
	return &AppointmentEvent{
		Type:          eventType,
		AppointmentID: a.ID,
		Number:        a.Number,
		DoctorID:      a.DoctorID,
		UserID:        a.UserID,
		StartTime:     a.StartTime,
		OccurredAt:    time.Now().UTC(),
	}
}

// NewScheduledEvent is raised by the scheduling service once the
// appointment has been persisted.
func (a *Appointment) NewScheduledEvent() *AppointmentEvent {
	return a.newEvent(EventAppointmentScheduled)
}
