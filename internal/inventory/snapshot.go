package inventory

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/JaumeFigueras/sihoa/internal/infrastructure/mqtt"
)

// SnapshotTransport is the subset of the MQTT client snapshot fetching
// needs.
type SnapshotTransport interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// FetchSnapshot reads the bridge's retained device list.
//
// zigbee2mqtt publishes the full device list as a retained JSON array, so
// subscribing normally yields it immediately; the timeout bounds the wait
// when retention is disabled or the bridge has never published.
//
// Non-object array entries are dropped. Payloads that do not decode as a
// JSON array are ignored and the wait continues, in case a later publish
// is well-formed.
//
// Parameters:
//   - transport: Connected MQTT client
//   - topic: Devices topic, e.g. "zigbee/bridge/devices"
//   - timeout: Maximum time to wait for the retained message
//
// Returns:
//   - []map[string]any: The device descriptors
//   - error: ErrSnapshotTimeout if nothing usable arrived in time
func FetchSnapshot(transport SnapshotTransport, topic string, timeout time.Duration) ([]map[string]any, error) {
	results := make(chan []map[string]any, 1)

	handler := func(_ string, payload []byte) error {
		var raw []any
		if err := json.Unmarshal(payload, &raw); err != nil {
			return fmt.Errorf("decoding device list: %w", err)
		}

		descriptors := make([]map[string]any, 0, len(raw))
		for _, entry := range raw {
			if d, ok := entry.(map[string]any); ok {
				descriptors = append(descriptors, d)
			}
		}

		select {
		case results <- descriptors:
		default:
		}
		return nil
	}

	if err := transport.Subscribe(topic, 0, handler); err != nil {
		return nil, fmt.Errorf("subscribing to device list: %w", err)
	}
	defer transport.Unsubscribe(topic) //nolint:errcheck // Best effort cleanup

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case snapshot := <-results:
		return snapshot, nil
	case <-timer.C:
		return nil, fmt.Errorf("%w: %s after %v", ErrSnapshotTimeout, topic, timeout)
	}
}
