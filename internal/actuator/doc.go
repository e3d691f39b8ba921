// Package actuator models the runtime state of controllable Zigbee devices.
//
// Each physical device gets one in-memory Actuator for the lifetime of the
// process, identified by its IEEE address and addressed on the wire by its
// friendly name. The Actuator tracks availability, last confirmed on/off
// state, and a pending-command flag that gates re-entry: while a set
// command is in flight and unconfirmed, further on/off requests are no-ops.
// The scheduling loop re-asserts the desired state every tick, so without
// the gate every tick would emit a fresh command.
//
// Commands never touch the network directly. RequestOn and RequestOff
// append a set command plus a get read-back to the outbound queue; the
// application loop publishes them and routes the confirming report back
// through HandleReport. All Actuator state is owned by the application
// loop goroutine, so no locking is needed.
//
// Device classes (Light, Plug) wrap the shared Actuator core with their
// class-specific report fields and on-online read requests.
package actuator
