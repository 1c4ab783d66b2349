package event

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/joez89/autism-center-api/internal/model"
	"github.com/joez89/autism-center-api/internal/repository"
)

// Sink receives domain events raised by lifecycle transitions. The
// scheduling service calls it synchronously; delivery to downstream
// consumers is the outbox worker's job.
type Sink interface {
	Emit(ctx context.Context, eventType string, payload interface{}) error
}

// Service stages events in the outbox table so they survive restarts and
// are published exactly once by the worker.
type Service struct {
	outbox repository.OutboxRepository
}

func NewService(outbox repository.OutboxRepository) *Service {
	return &Service{outbox: outbox}
}

func (s *Service) Emit(ctx context.Context, eventType string, payload interface{}) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	event := &model.OutboxEvent{
		EventType: eventType,
		Payload:   payloadJSON,
	}

	if err := s.outbox.Create(ctx, event); err != nil {
		return fmt.Errorf("failed to create outbox event: %w", err)
	}
	return nil
}
