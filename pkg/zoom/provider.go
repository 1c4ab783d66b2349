package zoom

import (
	"context"
	"time"
)

// MeetingRequest carries the fields the center controls on a meeting.
type MeetingRequest struct {
	Topic           string
	StartTime       time.Time
	DurationMinutes int
	Password        string
	WaitingRoom     bool
	JoinBeforeHost  bool
}

// Meeting is the provider's view of a created meeting.
type Meeting struct {
	ID      string
	JoinURL string
}

// Provider is the video-conferencing capability consumed by the meeting
// integration service.
type Provider interface {
	CreateMeeting(ctx context.Context, req MeetingRequest) (*Meeting, error)
	UpdateMeeting(ctx context.Context, meetingID string, req MeetingRequest) error
	DeleteMeeting(ctx context.Context, meetingID string) error
}
