package dispatch

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/JaumeFigueras/sihoa/internal/infrastructure/mqtt"
)

// Handler processes the decoded payload of one inbound message.
// Handlers run synchronously on the application loop via ProcessInbound.
type Handler func(payload map[string]any)

// Transport is the subset of the MQTT client the registry needs.
type Transport interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Logger is the minimal logging interface the registry needs.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger discards all log output. Used when no logger is configured.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry owns the topic-to-handler bindings and the inbound queue.
//
// A topic may be bound at most once. All bookkeeping lives here: the
// transport client does not track subscriptions, and reconnects replay
// the registry's bindings through OnConnect.
//
// Thread Safety:
//   - Register, Unregister, ProcessInbound and ProcessOutbound run on the
//     application loop.
//   - OnMessage and OnConnect run on the transport's network goroutine.
//   - The binding map is guarded by a mutex so both sides may read it.
type Registry struct {
	transport Transport
	qos       byte
	inbound   *Queue
	logger    Logger

	mu       sync.Mutex
	handlers map[string]Handler

	// fatal holds the first unrecoverable routing error, observed by the
	// application loop through Fatal().
	fatalMu sync.Mutex
	fatal   error
}

// NewRegistry creates a registry over the given transport.
//
// Parameters:
//   - transport: The MQTT client used for subscribe/unsubscribe/publish
//   - qos: QoS level for all subscriptions and publishes
//   - inbound: Queue that OnMessage appends decoded messages to
//   - logger: Optional logger, may be nil
func NewRegistry(transport Transport, qos byte, inbound *Queue, logger Logger) *Registry {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Registry{
		transport: transport,
		qos:       qos,
		inbound:   inbound,
		logger:    logger,
		handlers:  make(map[string]Handler),
	}
}

// Register subscribes to topic on the transport and binds handler to it.
//
// Returns:
//   - error: ErrDuplicateRegistration if the topic is already bound (the
//     original handler remains bound), ErrSubscriptionFailed if the
//     transport rejects the subscribe (no binding is recorded)
func (r *Registry) Register(topic string, handler Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[topic]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateRegistration, topic)
	}

	if err := r.transport.Subscribe(topic, r.qos, r.OnMessage); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrSubscriptionFailed, topic, err)
	}

	r.handlers[topic] = handler
	r.logger.Debug("topic registered", "topic", topic)
	return nil
}

// Unregister unsubscribes from topic and removes its binding.
//
// Returns:
//   - Handler: The previously bound handler
//   - error: ErrNotRegistered if no binding exists
func (r *Registry) Unregister(topic string) (Handler, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	handler, exists := r.handlers[topic]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, topic)
	}

	if err := r.transport.Unsubscribe(topic); err != nil {
		r.logger.Warn("unsubscribe failed", "topic", topic, "error", err)
	}

	delete(r.handlers, topic)
	r.logger.Debug("topic unregistered", "topic", topic)
	return handler, nil
}

// ProcessInbound invokes the handler bound to topic with the decoded
// payload. Called by the application loop for each message drained from
// the inbound queue.
//
// Returns:
//   - error: ErrUnroutedMessage if no handler is bound; the caller treats
//     this as fatal
func (r *Registry) ProcessInbound(topic string, payload map[string]any) error {
	r.mu.Lock()
	handler, exists := r.handlers[topic]
	r.mu.Unlock()

	if !exists {
		return fmt.Errorf("%w: %s", ErrUnroutedMessage, topic)
	}

	handler(payload)
	return nil
}

// ProcessOutbound encodes payload as JSON and publishes it on topic.
//
// Publish failures are transport-level (disconnected broker, timeout) and
// are logged rather than surfaced: commands are idempotent and the next
// evaluation tick re-issues them once the round trip recovers.
func (r *Registry) ProcessOutbound(topic string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		r.logger.Error("outbound payload encode failed", "topic", topic, "error", err)
		return
	}

	if err := r.transport.Publish(topic, data, r.qos, false); err != nil {
		r.logger.Warn("outbound publish failed", "topic", topic, "error", err)
	}
}

// OnConnect handles a connection attempt result.
//
// On success (reason == nil) it replays a subscribe for every registered
// topic: broker-side subscriptions are not guaranteed to survive a
// disconnect. Replaying is idempotent.
//
// Parameters:
//   - reason: The connection result, nil on success
//
// Returns:
//   - error: ErrConnectionRefused if the broker rejected the connection,
//     ErrSubscriptionFailed if any replay subscribe fails
func (r *Registry) OnConnect(reason error) error {
	if reason != nil {
		return fmt.Errorf("%w: %w", ErrConnectionRefused, reason)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for topic := range r.handlers {
		if err := r.transport.Subscribe(topic, r.qos, r.OnMessage); err != nil {
			return fmt.Errorf("%w: replay %s: %w", ErrSubscriptionFailed, topic, err)
		}
	}

	r.logger.Debug("subscriptions replayed", "count", len(r.handlers))
	return nil
}

// OnMessage is the transport's inbound delivery callback. It runs on the
// network goroutine and must not block: it decodes the payload and appends
// to the inbound queue for the application loop to drain.
//
// A payload that does not decode as a JSON object is treated as "no data"
// and dropped with a debug log. A message on an unregistered topic is a
// bookkeeping bug: it is recorded as the registry's fatal error (see
// Fatal) and returned so the transport can log it.
func (r *Registry) OnMessage(topic string, rawPayload []byte) error {
	r.mu.Lock()
	_, exists := r.handlers[topic]
	r.mu.Unlock()

	if !exists {
		err := fmt.Errorf("%w: %s", ErrUnroutedMessage, topic)
		r.setFatal(err)
		return err
	}

	var payload map[string]any
	if err := json.Unmarshal(rawPayload, &payload); err != nil {
		r.logger.Debug("undecodable payload dropped", "topic", topic, "error", err)
		return nil
	}

	if err := r.inbound.Push(Message{Topic: topic, Payload: payload}); err != nil {
		r.logger.Warn("inbound queue full, message dropped", "topic", topic)
	}
	return nil
}

// Fatal returns the first unrecoverable routing error observed on the
// transport goroutine, or nil. The application loop checks it every tick
// and terminates when it is set.
func (r *Registry) Fatal() error {
	r.fatalMu.Lock()
	defer r.fatalMu.Unlock()
	return r.fatal
}

func (r *Registry) setFatal(err error) {
	r.fatalMu.Lock()
	defer r.fatalMu.Unlock()
	if r.fatal == nil {
		r.fatal = err
	}
	r.logger.Error("fatal routing error", "error", err)
}
