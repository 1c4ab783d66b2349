package messaging

import "context"

// Broker is the message transport between the outbox worker and
// downstream consumers (notifications).
type Broker interface {
	Publish(ctx context.Context, channel string, message interface{}) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	Close() error
}
