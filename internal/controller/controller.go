package controller

import (
	"context"
	"fmt"
	"time"

	"github.com/JaumeFigueras/sihoa/internal/actuator"
	"github.com/JaumeFigueras/sihoa/internal/dispatch"
	"github.com/JaumeFigueras/sihoa/internal/infrastructure/mqtt"
)

const (
	// drainTimeout is how long a single queue pop waits before the drain
	// concludes the queue is empty.
	drainTimeout = 50 * time.Millisecond

	// connectPollInterval paces the bounded connect wait.
	connectPollInterval = 100 * time.Millisecond
)

// Logger is the minimal logging interface the controller needs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Evaluator is the scheduling step invoked once per tick.
type Evaluator interface {
	Evaluate()
}

// Controller drives the application loop over a set of actuators.
type Controller struct {
	registry  *dispatch.Registry
	inbound   *dispatch.Queue
	outbound  *dispatch.Queue
	topics    mqtt.Topics
	devices   []actuator.Device
	evaluator Evaluator
	tick      time.Duration
	logger    Logger
}

// New creates a controller.
//
// Parameters:
//   - registry: Topic registry over the connected transport
//   - inbound: Queue the registry's OnMessage fills
//   - outbound: Queue actuators emit commands on
//   - topics: Topic builder carrying the zigbee base topic
//   - devices: The actuator fleet, one entry per physical device
//   - evaluator: Per-tick scheduling step, may be nil
//   - tick: Loop period
//   - logger: Optional logger, may be nil
func New(registry *dispatch.Registry, inbound, outbound *dispatch.Queue, topics mqtt.Topics,
	devices []actuator.Device, evaluator Evaluator, tick time.Duration, logger Logger) *Controller {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Controller{
		registry:  registry,
		inbound:   inbound,
		outbound:  outbound,
		topics:    topics,
		devices:   devices,
		evaluator: evaluator,
		tick:      tick,
		logger:    logger,
	}
}

// RegisterDevices binds every device's availability and report topics.
// Called once before Run.
func (c *Controller) RegisterDevices() error {
	for _, device := range c.devices {
		err := c.registry.Register(c.topics.Availability(device.Name()), device.HandleAvailability)
		if err != nil {
			return fmt.Errorf("registering %s availability: %w", device.Name(), err)
		}
		err = c.registry.Register(c.topics.Report(device.Name()), device.HandleReport)
		if err != nil {
			return fmt.Errorf("registering %s reports: %w", device.Name(), err)
		}
		c.logger.Info("device registered", "device", device.Name(), "ieee_address", device.IEEEAddress())
	}
	return nil
}

// Run executes the loop until ctx is cancelled or a fatal routing error
// occurs.
func (c *Controller) Run(ctx context.Context) error {
	c.logger.Info("application loop started", "tick", c.tick, "devices", len(c.devices))

	for {
		if err := c.registry.Fatal(); err != nil {
			c.logger.Error("terminating on routing error", "error", err)
			return err
		}

		c.drainOutbound()
		if err := c.drainInbound(); err != nil {
			c.logger.Error("terminating on routing error", "error", err)
			return err
		}

		if c.evaluator != nil {
			c.evaluator.Evaluate()
		}

		select {
		case <-ctx.Done():
			c.logger.Info("application loop stopped")
			return ctx.Err()
		case <-time.After(c.tick):
		}
	}
}

// drainOutbound publishes every queued command. Queue entries carry
// device-relative topics; the base topic is prefixed here.
func (c *Controller) drainOutbound() {
	for {
		msg, ok := c.outbound.Pop(drainTimeout)
		if !ok {
			return
		}
		c.registry.ProcessOutbound(c.topics.Prefix(msg.Topic), msg.Payload)
	}
}

// drainInbound routes every queued message to its handler. An unrouted
// message is fatal to the loop.
func (c *Controller) drainInbound() error {
	for {
		msg, ok := c.inbound.Pop(drainTimeout)
		if !ok {
			return nil
		}
		if err := c.registry.ProcessInbound(msg.Topic, msg.Payload); err != nil {
			return err
		}
	}
}

// WaitConnected polls conn until it reports connected or the timeout
// elapses. The whole process fails on timeout: without a broker there is
// nothing to control.
func WaitConnected(conn interface{ IsConnected() bool }, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for !conn.IsConnected() {
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: broker not connected after %v", dispatch.ErrConnectionRefused, timeout)
		}
		time.Sleep(connectPollInterval)
	}
	return nil
}
