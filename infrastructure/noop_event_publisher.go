package infrastructure

import (
	"context"
)

// NoopPublisher is a message publisher that does nothing.
// Used when no external sink is configured and by admin commands.
type NoopPublisher struct{}

var _ MessagePublisher = (*NoopPublisher)(nil)

// NewNoopPublisher creates a new no-op publisher
func NewNoopPublisher() *NoopPublisher {
	return &NoopPublisher{}
}

// Publish drops the message
func (n *NoopPublisher) Publish(ctx context.Context, subject string, data []byte) error {
	return nil
}

// Close does nothing
func (n *NoopPublisher) Close() error {
	return nil
}
