// SIHOA - SImple HOme Automation
//
// The controller daemon: connects to the MQTT broker, mirrors every
// configured Zigbee actuator in memory, and drives them on a fixed-period
// loop from sunrise/sunset windows. Optionally supervises the broker as a
// child process and ships telemetry to InfluxDB.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/JaumeFigueras/sihoa/migrations"

	"github.com/JaumeFigueras/sihoa/internal/actuator"
	"github.com/JaumeFigueras/sihoa/internal/controller"
	"github.com/JaumeFigueras/sihoa/internal/dispatch"
	"github.com/JaumeFigueras/sihoa/internal/infrastructure/config"
	"github.com/JaumeFigueras/sihoa/internal/infrastructure/database"
	"github.com/JaumeFigueras/sihoa/internal/infrastructure/influxdb"
	"github.com/JaumeFigueras/sihoa/internal/infrastructure/logging"
	"github.com/JaumeFigueras/sihoa/internal/infrastructure/mqtt"
	"github.com/JaumeFigueras/sihoa/internal/process"
	"github.com/JaumeFigueras/sihoa/internal/schedule"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// Sizing and timing for the transport plumbing.
const (
	queueCapacity  = 256
	connectTimeout = 5 * time.Second
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main so errors map
// to exit codes in one place.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting SIHOA", "version", version, "commit", commit)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)

	// Open database and bring the schema up to date.
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()

	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	log.Info("database ready", "path", cfg.Database.Path)

	// Optionally supervise the broker ourselves.
	if cfg.Broker.Managed {
		broker := process.NewManager(process.Config{
			Name:               "mosquitto",
			Binary:             cfg.Broker.Binary,
			Args:               cfg.Broker.Args,
			RestartOnFailure:   cfg.Broker.RestartOnFailure,
			RestartDelay:       time.Duration(cfg.Broker.RestartDelaySeconds) * time.Second,
			MaxRestartAttempts: cfg.Broker.MaxRestartAttempts,
		})
		broker.SetLogger(log)
		if err := broker.Start(ctx); err != nil {
			return fmt.Errorf("starting broker: %w", err)
		}
		defer func() {
			if stopErr := broker.Stop(); stopErr != nil {
				log.Error("error stopping broker", "error", stopErr)
			}
		}()
		log.Info("broker process started", "pid", broker.PID())
	}

	// Connect to the broker and wait until the session is up.
	client, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		if closeErr := client.Close(); closeErr != nil {
			log.Error("error closing MQTT client", "error", closeErr)
		}
	}()
	client.SetLogger(log)

	if err := controller.WaitConnected(client, connectTimeout); err != nil {
		return err
	}
	log.Info("MQTT connected", "host", cfg.MQTT.Broker.Host, "port", cfg.MQTT.Broker.Port)

	inbound := dispatch.NewQueue(queueCapacity)
	outbound := dispatch.NewQueue(queueCapacity)
	registry := dispatch.NewRegistry(client, byte(cfg.MQTT.QoS), inbound, log)

	// Replay subscriptions after every reconnect; the registry is the
	// only owner of topic bookkeeping.
	client.SetOnConnect(func() {
		if err := registry.OnConnect(nil); err != nil {
			log.Error("subscription replay failed", "error", err)
		}
	})
	client.SetOnDisconnect(func(err error) {
		log.Warn("MQTT connection lost", "error", err)
	})

	// Optional telemetry sink.
	var recorder actuator.Recorder
	influx, err := influxdb.Connect(cfg.InfluxDB)
	switch {
	case err == nil:
		defer influx.Close() //nolint:errcheck // Flush-and-close on shutdown
		influx.SetOnError(func(err error) {
			log.Warn("influxdb write failed", "error", err)
		})
		recorder = influx
		log.Info("influxdb telemetry enabled", "url", cfg.InfluxDB.URL)
	case errors.Is(err, influxdb.ErrDisabled):
		log.Debug("influxdb telemetry disabled")
	default:
		// Telemetry is best effort; run without it.
		log.Warn("influxdb unavailable, telemetry disabled", "error", err)
	}

	devices, groups, err := buildFleet(cfg, outbound, recorder, log)
	if err != nil {
		return err
	}

	evaluator := schedule.NewEvaluator(schedule.Site{
		Latitude:  cfg.Site.Latitude,
		Longitude: cfg.Site.Longitude,
		Location:  cfg.Site.Location(),
	}, groups)

	loop := controller.New(registry, inbound, outbound, mqtt.Topics{Base: cfg.Zigbee.BaseTopic},
		devices, evaluator, cfg.Schedule.TickPeriod(), log)
	if err := loop.RegisterDevices(); err != nil {
		return err
	}

	return loop.Run(ctx)
}

// buildFleet creates one actuator per configured device and groups them
// by control window.
func buildFleet(cfg *config.Config, outbound *dispatch.Queue, recorder actuator.Recorder,
	log *logging.Logger) ([]actuator.Device, []schedule.Group, error) {
	offHour, offMinute, err := config.ParseOffTime(cfg.Schedule.OffTime)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing off time: %w", err)
	}

	var (
		devices []actuator.Device
		byMode  = map[schedule.ControlMode][]schedule.Device{}
	)
	for _, dc := range cfg.Devices {
		mode, err := schedule.ParseControlMode(dc.Control)
		if err != nil {
			return nil, nil, fmt.Errorf("device %s: %w", dc.Name, err)
		}

		var (
			device     actuator.Device
			switchable schedule.Device
		)
		switch dc.Class {
		case "light":
			light := actuator.NewLight(dc.Name, dc.IEEEAddress, outbound, log)
			light.SetTurnOnDefaults(dc.DefaultBrightness, dc.DefaultColorTemp)
			light.SetPendingTimeout(cfg.Schedule.PendingTimeout())
			light.SetRecorder(recorder)
			device, switchable = light, light
		case "plug":
			plug := actuator.NewPlug(dc.Name, dc.IEEEAddress, outbound, log)
			plug.SetPendingTimeout(cfg.Schedule.PendingTimeout())
			plug.SetRecorder(recorder)
			device, switchable = plug, plug
		default:
			return nil, nil, fmt.Errorf("device %s: unknown class %q", dc.Name, dc.Class)
		}

		devices = append(devices, device)
		byMode[mode] = append(byMode[mode], switchable)
	}

	var groups []schedule.Group
	for mode, members := range byMode {
		groups = append(groups, schedule.Group{
			Mode:      mode,
			OffHour:   offHour,
			OffMinute: offMinute,
			Devices:   members,
		})
	}
	return devices, groups, nil
}

// getConfigPath resolves the configuration file: first argument, then the
// SIHOA_CONFIG environment variable, then the default path.
func getConfigPath() string {
	if len(os.Args) > 1 {
		return os.Args[1]
	}
	if path := os.Getenv("SIHOA_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
