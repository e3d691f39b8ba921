// Package process supervises the MQTT broker as a child process.
//
// The usual deployment points SIHOA at an externally managed mosquitto,
// but on single-board installs it is convenient to let the controller own
// the broker. The Manager starts the configured binary in its own process
// group, mirrors its output into the log, restarts it with a delay when
// it dies, and tears the whole group down on shutdown (SIGTERM, then
// SIGKILL after a grace period).
package process
