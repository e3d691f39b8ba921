package dispatch

import "time"

// Message is one decoded MQTT message in flight between the transport and
// the application loop.
//
// Inbound messages carry the full broker topic. Outbound messages carry a
// device-relative topic (e.g. "exterior_porta/set"); the application loop
// prefixes the zigbee base topic just before publishing.
type Message struct {
	Topic   string
	Payload map[string]any
}

// Queue is a bounded, thread-safe, multi-producer/single-consumer message
// queue.
//
// Producers (the transport's network goroutine for inbound, actuators on
// the application loop for outbound) push without blocking; the single
// consumer pops with a short timeout until the queue is empty.
type Queue struct {
	ch chan Message
}

// NewQueue creates a queue holding at most capacity messages.
// A capacity below 1 is treated as 1.
func NewQueue(capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{ch: make(chan Message, capacity)}
}

// Push appends a message without blocking.
//
// Returns:
//   - error: ErrQueueFull if the queue is at capacity, nil otherwise
func (q *Queue) Push(msg Message) error {
	select {
	case q.ch <- msg:
		return nil
	default:
		return ErrQueueFull
	}
}

// Pop removes and returns the oldest message, waiting up to timeout for
// one to arrive.
//
// Returns:
//   - Message: The oldest queued message, zero value if none arrived
//   - bool: false if the timeout elapsed with the queue empty
func (q *Queue) Pop(timeout time.Duration) (Message, bool) {
	select {
	case msg := <-q.ch:
		return msg, true
	default:
	}

	if timeout <= 0 {
		return Message{}, false
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case msg := <-q.ch:
		return msg, true
	case <-timer.C:
		return Message{}, false
	}
}

// Len returns the number of messages currently queued.
func (q *Queue) Len() int {
	return len(q.ch)
}
