// sihoa-import seeds and refreshes the device inventory.
//
// It reads the retained device list zigbee2mqtt publishes on
// <base>/bridge/devices, prints it, and reconciles it against the SQLite
// inventory: descriptors are upserted, devices missing from the list are
// soft-retired. With -dry-run the list is printed without touching the
// database.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/JaumeFigueras/sihoa/migrations"

	"github.com/JaumeFigueras/sihoa/internal/infrastructure/config"
	"github.com/JaumeFigueras/sihoa/internal/infrastructure/database"
	"github.com/JaumeFigueras/sihoa/internal/infrastructure/logging"
	"github.com/JaumeFigueras/sihoa/internal/infrastructure/mqtt"
	"github.com/JaumeFigueras/sihoa/internal/inventory"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	configPath := flag.String("config", "configs/config.yaml", "path to the configuration file")
	dryRun := flag.Bool("dry-run", false, "print the device list without updating the inventory")
	flag.Parse()

	if err := run(ctx, *configPath, *dryRun); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string, dryRun bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log := logging.New(cfg.Logging, "dev")

	client, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer client.Close() //nolint:errcheck // Short-lived tool

	topic := cfg.Zigbee.ResolvedDevicesTopic()
	snapshot, err := inventory.FetchSnapshot(client, topic, cfg.Zigbee.FetchTimeoutDuration())
	if err != nil {
		return fmt.Errorf("fetching device list: %w", err)
	}
	log.Info("device list received", "topic", topic, "devices", len(snapshot))

	// Print the raw list so the output can be piped or archived.
	pretty, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding device list: %w", err)
	}
	fmt.Println(string(pretty))

	if dryRun {
		return nil
	}

	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close() //nolint:errcheck // Short-lived tool

	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	upserted, retired, err := inventory.NewReconciler(db, log).Reconcile(ctx, snapshot)
	if err != nil {
		return fmt.Errorf("reconciling inventory: %w", err)
	}

	fmt.Printf("Upserted %d devices, retired %d\n", upserted, retired)
	return nil
}
