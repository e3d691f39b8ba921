package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// RecordState writes a confirmed actuator state change.
//
// The write is non-blocking; data is batched and sent asynchronously.
// Dropped silently when disconnected: telemetry never stalls the
// application loop.
//
// Parameters:
//   - device: The actuator's friendly name
//   - on: The confirmed state
func (c *Client) RecordState(device string, on bool) {
	if !c.IsConnected() {
		return
	}

	state := 0
	if on {
		state = 1
	}

	point := write.NewPoint(
		"actuator_state",
		map[string]string{
			"device": device,
		},
		map[string]interface{}{
			"on": state,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// RecordLinkQuality writes a reported radio link quality (0-255).
//
// zigbee2mqtt attaches linkquality to most state reports; the series is
// useful for spotting devices drifting out of radio range.
func (c *Client) RecordLinkQuality(device string, linkQuality int) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"link_quality",
		map[string]string{
			"device": device,
		},
		map[string]interface{}{
			"lqi": linkQuality,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}
