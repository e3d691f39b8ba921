package influxdb_test

import (
	"errors"
	"testing"
	"time"

	"github.com/JaumeFigueras/sihoa/internal/infrastructure/config"
	"github.com/JaumeFigueras/sihoa/internal/infrastructure/influxdb"
)

// testConfig returns a configuration for a local dev InfluxDB.
func testConfig() config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           "http://127.0.0.1:8086",
		Token:         "sihoa-dev-token",
		Org:           "sihoa",
		Bucket:        "telemetry",
		BatchSize:     100,
		FlushInterval: 1, // 1 second for faster test feedback
	}
}

// skipIfNoInfluxDB skips the test when no local server is available.
func skipIfNoInfluxDB(t *testing.T) *influxdb.Client {
	t.Helper()
	client, err := influxdb.Connect(testConfig())
	if err != nil {
		t.Skip("InfluxDB not available, skipping integration test")
	}
	t.Cleanup(func() { client.Close() }) //nolint:errcheck // Test cleanup
	return client
}

func TestConnectDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false

	if _, err := influxdb.Connect(cfg); !errors.Is(err, influxdb.ErrDisabled) {
		t.Errorf("expected ErrDisabled, got %v", err)
	}
}

func TestConnectUnreachable(t *testing.T) {
	cfg := testConfig()
	cfg.URL = "http://127.0.0.1:59999" // Nothing listens here

	if _, err := influxdb.Connect(cfg); !errors.Is(err, influxdb.ErrConnectionFailed) {
		t.Errorf("expected ErrConnectionFailed, got %v", err)
	}
}

func TestConnect(t *testing.T) {
	client := skipIfNoInfluxDB(t)

	if !client.IsConnected() {
		t.Error("IsConnected() = false after Connect()")
	}
}

func TestRecordState(t *testing.T) {
	client := skipIfNoInfluxDB(t)

	// Non-blocking writes surface failures via the error callback.
	writeErrs := make(chan error, 1)
	client.SetOnError(func(err error) {
		select {
		case writeErrs <- err:
		default:
		}
	})

	client.RecordState("menjador", true)
	client.RecordState("menjador", false)
	client.RecordLinkQuality("menjador", 87)

	select {
	case err := <-writeErrs:
		t.Errorf("async write error: %v", err)
	case <-time.After(2 * time.Second):
	}
}

func TestWritesDroppedAfterClose(t *testing.T) {
	client := skipIfNoInfluxDB(t)
	if err := client.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// Must not panic or block once disconnected.
	client.RecordState("menjador", true)
	client.RecordLinkQuality("menjador", 10)

	if client.IsConnected() {
		t.Error("IsConnected() = true after Close()")
	}
}
