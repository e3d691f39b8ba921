package mqtt

import "fmt"

// Topics builds zigbee2mqtt topic names under a base topic.
//
// zigbee2mqtt exposes one topic namespace per device friendly name:
//
//	<base>/<name>/availability   inbound, {"state":"online"|"offline"}
//	<base>/<name>                inbound state reports
//	<base>/<name>/set            outbound commands
//	<base>/<name>/get            outbound read requests
//
// plus the retained bridge device list at <base>/bridge/devices.
type Topics struct {
	// Base is the zigbee2mqtt base topic (e.g. "zigbee").
	Base string
}

// Availability returns the availability topic for a device.
//
// Example: zigbee/exterior_porta/availability
func (t Topics) Availability(name string) string {
	return fmt.Sprintf("%s/%s/availability", t.Base, name)
}

// Report returns the state-report topic for a device.
//
// Example: zigbee/exterior_porta
func (t Topics) Report(name string) string {
	return fmt.Sprintf("%s/%s", t.Base, name)
}

// BridgeDevices returns the retained topic carrying the authoritative
// device list.
//
// Example: zigbee/bridge/devices
func (t Topics) BridgeDevices() string {
	return fmt.Sprintf("%s/bridge/devices", t.Base)
}

// Prefix joins a device-relative topic (e.g. "exterior_porta/set") with the
// base topic. Outbound queue entries carry device-relative topics; the
// application loop prefixes them just before publishing.
func (t Topics) Prefix(topic string) string {
	return t.Base + "/" + topic
}
