package dispatch

import "errors"

// Sentinel errors for registry and queue operations.
// All registry errors indicate a programming or broker-configuration
// mistake, not a transient condition: callers terminate rather than retry.
var (
	// ErrDuplicateRegistration is returned when registering a topic that
	// already has a handler bound. The original binding remains in place.
	ErrDuplicateRegistration = errors.New("topic already registered")

	// ErrNotRegistered is returned when unregistering a topic that has no
	// handler bound.
	ErrNotRegistered = errors.New("topic not registered")

	// ErrSubscriptionFailed is returned when the transport rejects a
	// subscribe request. The binding is not recorded.
	ErrSubscriptionFailed = errors.New("transport subscription failed")

	// ErrUnroutedMessage is returned when a message arrives on a topic
	// with no registered handler.
	ErrUnroutedMessage = errors.New("no handler registered for topic")

	// ErrConnectionRefused is returned when the broker rejects the
	// connection attempt.
	ErrConnectionRefused = errors.New("broker refused connection")

	// ErrQueueFull is returned when pushing onto a queue at capacity.
	ErrQueueFull = errors.New("queue is full")
)
