package actuator

import (
	"time"

	"github.com/JaumeFigueras/sihoa/internal/dispatch"
)

// Availability is the tri-state reachability of a device. It only changes
// on an availability message; a device that has never reported is Unknown.
type Availability int

const (
	AvailabilityUnknown Availability = iota
	AvailabilityOnline
	AvailabilityOffline
)

// String returns the lowercase wire form of the availability state.
func (a Availability) String() string {
	switch a {
	case AvailabilityOnline:
		return "online"
	case AvailabilityOffline:
		return "offline"
	default:
		return "unknown"
	}
}

// Device is a class-specific actuator as seen by the application loop:
// it names its inbound topics and consumes their payloads.
type Device interface {
	// Name returns the friendly name the device's topics are built from.
	Name() string

	// IEEEAddress returns the device's permanent hardware address.
	IEEEAddress() string

	// HandleAvailability consumes a payload from <name>/availability.
	HandleAvailability(payload map[string]any)

	// HandleReport consumes a state report from <name>.
	HandleReport(payload map[string]any)
}

// Switchable is a device the scheduler can command.
type Switchable interface {
	RequestOn() bool
	RequestOff() bool
}

// Logger is the minimal logging interface actuators need.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Recorder receives confirmed state changes and link-quality readings for
// telemetry. Implementations must not block.
type Recorder interface {
	RecordState(device string, on bool)
	RecordLinkQuality(device string, linkQuality int)
}

// Actuator is the device-class-independent core: availability, confirmed
// on/off state, and the pending-command gate.
//
// All fields are touched only from the application loop goroutine; the
// transport goroutine reaches actuators exclusively through the inbound
// queue.
type Actuator struct {
	name string
	ieee string

	availability Availability

	// on is the last confirmed state; nil until the first state report.
	on *bool

	// pending is true from command emission until a confirming report.
	// While true, RequestOn and RequestOff are no-ops.
	pending      bool
	pendingSince time.Time

	// pendingTimeout bounds how long the gate holds without confirmation.
	// Zero disables the timeout: a device that never confirms stays gated
	// until a report arrives.
	pendingTimeout time.Duration

	// setHints is merged into every set command payload. Lights use it to
	// request instant transitions.
	setHints map[string]any

	// onHints is merged into set commands turning the device on, e.g. a
	// light's configured brightness and colour temperature.
	onHints map[string]any

	outbound *dispatch.Queue
	logger   Logger
	recorder Recorder
}

func newActuator(name, ieee string, outbound *dispatch.Queue, logger Logger) Actuator {
	if logger == nil {
		logger = noopLogger{}
	}
	return Actuator{
		name:     name,
		ieee:     ieee,
		outbound: outbound,
		logger:   logger,
	}
}

// Name returns the friendly name the device's topics are built from.
func (a *Actuator) Name() string { return a.name }

// IEEEAddress returns the device's permanent hardware address.
func (a *Actuator) IEEEAddress() string { return a.ieee }

// Availability returns the device's current reachability.
func (a *Actuator) Availability() Availability { return a.availability }

// Online reports whether the device is currently reachable.
func (a *Actuator) Online() bool { return a.availability == AvailabilityOnline }

// On returns the last confirmed on/off state.
//
// Returns:
//   - bool: The confirmed state (meaningless when confirmed is false)
//   - bool: false until the first confirming report has arrived
func (a *Actuator) On() (on, confirmed bool) {
	if a.on == nil {
		return false, false
	}
	return *a.on, true
}

// Pending reports whether a command is in flight awaiting confirmation.
func (a *Actuator) Pending() bool { return a.pending }

// SetPendingTimeout bounds how long the pending gate holds without a
// confirming report. Zero (the default) disables the timeout.
func (a *Actuator) SetPendingTimeout(d time.Duration) { a.pendingTimeout = d }

// SetRecorder attaches a telemetry sink for confirmed state changes and
// link-quality readings.
func (a *Actuator) SetRecorder(r Recorder) { a.recorder = r }

// RequestOn asks the device to turn on.
//
// A no-op while a previous command is unconfirmed. Otherwise it enqueues a
// set command followed by a get read-back and raises the pending gate.
// Idempotent: requesting on for an already-on device just re-confirms.
//
// Returns:
//   - bool: true if a command was issued, false if gated
func (a *Actuator) RequestOn() bool { return a.request("ON") }

// RequestOff asks the device to turn off. See RequestOn; the pair differ
// only in the commanded state value.
func (a *Actuator) RequestOff() bool { return a.request("OFF") }

func (a *Actuator) request(state string) bool {
	if a.pending {
		if a.pendingTimeout <= 0 || time.Since(a.pendingSince) < a.pendingTimeout {
			return false
		}
		a.logger.Warn("pending command timed out, re-issuing",
			"device", a.name,
			"waited", time.Since(a.pendingSince),
		)
	}

	set := map[string]any{"state": state}
	for k, v := range a.setHints {
		set[k] = v
	}
	if state == "ON" {
		for k, v := range a.onHints {
			set[k] = v
		}
	}
	if err := a.outbound.Push(dispatch.Message{Topic: a.name + "/set", Payload: set}); err != nil {
		// Full queue: leave the gate down so the next tick retries.
		a.logger.Warn("outbound queue full, command dropped", "device", a.name, "state", state)
		return false
	}
	a.readBack("state")

	a.pending = true
	a.pendingSince = time.Now()
	a.logger.Debug("command issued", "device", a.name, "state", state)
	return true
}

// readBack enqueues a get request asking the device to report the given
// attributes. The wire form maps each attribute to an empty string.
func (a *Actuator) readBack(attributes ...string) {
	payload := make(map[string]any, len(attributes))
	for _, attr := range attributes {
		payload[attr] = ""
	}
	if err := a.outbound.Push(dispatch.Message{Topic: a.name + "/get", Payload: payload}); err != nil {
		a.logger.Warn("outbound queue full, read-back dropped", "device", a.name)
	}
}

// handleAvailability applies an availability payload and reports whether
// the device just transitioned to online, so class variants can issue
// their on-online read requests.
func (a *Actuator) handleAvailability(payload map[string]any) (wentOnline bool) {
	state, ok := stringField(payload, "state")
	if !ok {
		return false
	}

	previous := a.availability
	switch state {
	case "online":
		a.availability = AvailabilityOnline
	case "offline":
		a.availability = AvailabilityOffline
	default:
		return false
	}

	if a.availability != previous {
		a.logger.Debug("availability changed", "device", a.name, "state", a.availability.String())
	}
	return a.availability == AvailabilityOnline && previous != AvailabilityOnline
}

// handleState applies the "state" field of a report, if present: clears
// the pending gate and records the confirmed on/off value. Reports without
// a state field leave both untouched.
func (a *Actuator) handleState(payload map[string]any) {
	state, ok := stringField(payload, "state")
	if !ok {
		return
	}

	on := state == "ON"
	changed := a.on == nil || *a.on != on
	a.on = &on
	a.pending = false

	if changed {
		a.logger.Debug("state confirmed", "device", a.name, "on", on)
		if a.recorder != nil {
			a.recorder.RecordState(a.name, on)
		}
	}
}

// stringField extracts a string value from a decoded payload.
func stringField(payload map[string]any, key string) (string, bool) {
	v, ok := payload[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// intField extracts a numeric value from a decoded payload. JSON numbers
// decode as float64; integral strings are not accepted.
func intField(payload map[string]any, key string) (int, bool) {
	v, ok := payload[key]
	if !ok {
		return 0, false
	}
	f, ok := v.(float64)
	if !ok {
		return 0, false
	}
	return int(f), true
}
