// Package influxdb provides optional time-series telemetry for SIHOA.
//
// It wraps the official influxdb-client-go v2 library with connection
// management and non-blocking batched writes. The
// controller records two measurements: confirmed actuator state changes
// and reported radio link quality. Both arrive through the
// actuator.Recorder interface, which *Client satisfies.
//
// Telemetry is best effort. When InfluxDB is disabled in config or the
// server is unreachable, the controller runs without it; writes on a
// disconnected client are silently dropped.
//
// All methods are safe for concurrent use. Writes are batched according
// to the configured batch size and flush interval.
package influxdb
