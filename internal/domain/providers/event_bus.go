package providers

import (
	"context"

	"github.com/partaibook/vendor-discovery/internal/domain/entities"
)

// EventBus fans marker updates out to map subscribers
type EventBus interface {
	// Publish publishes an update to all subscribers of a channel
	Publish(ctx context.Context, channel string, update *entities.MarkerUpdate) error

	// Subscribe subscribes to updates on a channel
	Subscribe(ctx context.Context, channel string) (<-chan *entities.MarkerUpdate, error)

	// Unsubscribe drops every local subscriber of a channel
	Unsubscribe(ctx context.Context, channel string) error

	// Close closes the event bus and all subscriptions
	Close() error
}

const (
	// EventChannelSessionPrefix is the prefix for per-session marker channels
	EventChannelSessionPrefix = "discovery:session:"

	// EventChannelCheckoutHandoffs carries shortlist handoffs to checkout
	EventChannelCheckoutHandoffs = "checkout:handoffs"
)

// GetSessionChannel returns the marker channel for a discovery session
func GetSessionChannel(sessionID string) string {
	return EventChannelSessionPrefix + sessionID
}

// CheckoutProvider receives the shortlist on continue-to-booking.
type CheckoutProvider interface {
	HandOff(ctx context.Context, handoff *entities.BookingHandoff) error
}
