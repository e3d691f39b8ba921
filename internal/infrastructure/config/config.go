package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for SIHOA.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site     SiteConfig     `yaml:"site"`
	Database DatabaseConfig `yaml:"database"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Zigbee   ZigbeeConfig   `yaml:"zigbee"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`
	Broker   BrokerConfig   `yaml:"broker"`
	Schedule ScheduleConfig `yaml:"schedule"`
	Devices  []DeviceConfig `yaml:"devices"`
}

// SiteConfig contains the site location used for sunrise/sunset calculations.
type SiteConfig struct {
	Name      string  `yaml:"name"`
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
	Elevation float64 `yaml:"elevation"`
	Timezone  string  `yaml:"timezone"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains optional MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings (seconds).
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// ZigbeeConfig contains zigbee2mqtt topic settings.
type ZigbeeConfig struct {
	// BaseTopic is the zigbee2mqtt base topic. Every per-device topic is
	// published and consumed under this prefix (e.g. "zigbee/<name>/set").
	BaseTopic string `yaml:"base_topic"`

	// DevicesTopic is the retained topic carrying the authoritative device
	// list. Defaults to "<base_topic>/bridge/devices" when empty.
	DevicesTopic string `yaml:"devices_topic"`

	// FetchTimeout is the maximum time to wait for the retained device
	// list (seconds).
	FetchTimeout int `yaml:"fetch_timeout"`
}

// InfluxDBConfig contains optional InfluxDB telemetry settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// BrokerConfig contains settings for an optionally managed MQTT broker
// subprocess (mosquitto). When Managed is false the broker is expected to be
// running externally, which matches the usual deployment.
type BrokerConfig struct {
	Managed             bool     `yaml:"managed"`
	Binary              string   `yaml:"binary"`
	Args                []string `yaml:"args"`
	RestartOnFailure    bool     `yaml:"restart_on_failure"`
	RestartDelaySeconds int      `yaml:"restart_delay_seconds"`
	MaxRestartAttempts  int      `yaml:"max_restart_attempts"`
}

// ScheduleConfig contains evaluation loop settings.
type ScheduleConfig struct {
	// TickMS is the fixed loop period in milliseconds.
	TickMS int `yaml:"tick_ms"`

	// OffTime is the local wall-clock time ("HH:MM") at which time-windowed
	// groups turn off. An off time earlier than sunset is treated as
	// belonging to the next day (e.g. "04:00").
	OffTime string `yaml:"off_time"`

	// PendingTimeoutSeconds bounds how long a commanded actuator stays
	// gated waiting for a confirming report. Zero disables the timeout and
	// keeps the flag set until a report arrives.
	PendingTimeoutSeconds int `yaml:"pending_timeout_seconds"`
}

// DeviceConfig declares one actuator of the fleet.
type DeviceConfig struct {
	// Name is the zigbee2mqtt friendly name; it builds the device's topic
	// namespace (<name>/availability, <name>, <name>/set, <name>/get).
	Name string `yaml:"name"`

	// IEEEAddress is the permanent 64-bit hardware address.
	IEEEAddress string `yaml:"ieee_address"`

	// Class selects the device variant: "light" or "plug".
	Class string `yaml:"class"`

	// Control selects the scheduling window for this device.
	// Supported: "sunset_sunrise", "sunset_time".
	Control string `yaml:"control"`

	// DefaultBrightness and DefaultColorTemp apply to lights only.
	DefaultBrightness *int `yaml:"default_brightness,omitempty"`
	DefaultColorTemp  *int `yaml:"default_color_temp,omitempty"`
}

// Load reads configuration from a YAML file and applies environment variable
// overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: SIHOA_SECTION_KEY
// For example: SIHOA_DATABASE_PATH, SIHOA_MQTT_HOST
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			Name:     "sihoa",
			Timezone: "UTC",
		},
		Database: DatabaseConfig{
			Path:        "./data/sihoa.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "sihoa",
			},
			QoS: 0,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		Zigbee: ZigbeeConfig{
			BaseTopic:    "zigbee",
			FetchTimeout: 5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Broker: BrokerConfig{
			Managed:             false,
			Binary:              "/usr/sbin/mosquitto",
			RestartOnFailure:    true,
			RestartDelaySeconds: 5,
			MaxRestartAttempts:  10,
		},
		Schedule: ScheduleConfig{
			TickMS:  300,
			OffTime: "04:00",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SIHOA_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("SIHOA_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("SIHOA_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("SIHOA_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}
	if v := os.Getenv("SIHOA_ZIGBEE_BASE_TOPIC"); v != "" {
		cfg.Zigbee.BaseTopic = v
	}
	if v := os.Getenv("SIHOA_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// validDeviceClasses lists the accepted device class values.
var validDeviceClasses = map[string]bool{
	"light": true,
	"plug":  true,
}

// validControlModes lists the accepted scheduling window values.
var validControlModes = map[string]bool{
	"sunset_sunrise": true,
	"sunset_time":    true,
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error { //nolint:gocognit // flat list of field checks
	var errs []string

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}
	if c.Site.Latitude < -90 || c.Site.Latitude > 90 {
		errs = append(errs, "site.latitude must be between -90 and 90")
	}
	if c.Site.Longitude < -180 || c.Site.Longitude > 180 {
		errs = append(errs, "site.longitude must be between -180 and 180")
	}
	if _, err := time.LoadLocation(c.Site.Timezone); err != nil {
		errs = append(errs, fmt.Sprintf("site.timezone %q is not a valid IANA timezone", c.Site.Timezone))
	}
	if c.Zigbee.BaseTopic == "" {
		errs = append(errs, "zigbee.base_topic is required")
	}
	if c.Schedule.TickMS < 50 {
		errs = append(errs, "schedule.tick_ms must be at least 50")
	}
	if _, _, err := ParseOffTime(c.Schedule.OffTime); err != nil {
		errs = append(errs, fmt.Sprintf("schedule.off_time: %v", err))
	}

	seenNames := make(map[string]bool, len(c.Devices))
	seenAddrs := make(map[string]bool, len(c.Devices))
	for i, d := range c.Devices {
		if d.Name == "" {
			errs = append(errs, fmt.Sprintf("devices[%d].name is required", i))
		} else if seenNames[d.Name] {
			errs = append(errs, fmt.Sprintf("devices[%d].name %q is duplicated", i, d.Name))
		}
		seenNames[d.Name] = true

		if d.IEEEAddress == "" {
			errs = append(errs, fmt.Sprintf("devices[%d].ieee_address is required", i))
		} else if seenAddrs[d.IEEEAddress] {
			errs = append(errs, fmt.Sprintf("devices[%d].ieee_address %q is duplicated", i, d.IEEEAddress))
		}
		seenAddrs[d.IEEEAddress] = true

		if !validDeviceClasses[d.Class] {
			errs = append(errs, fmt.Sprintf("devices[%d].class %q must be one of: light, plug", i, d.Class))
		}
		if !validControlModes[d.Control] {
			errs = append(errs, fmt.Sprintf("devices[%d].control %q must be one of: sunset_sunrise, sunset_time", i, d.Control))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// ParseOffTime parses an "HH:MM" wall-clock string into hour and minute.
func ParseOffTime(s string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, fmt.Errorf("must be HH:MM: %w", err)
	}
	return t.Hour(), t.Minute(), nil
}

// ResolvedDevicesTopic returns the configured devices topic, or the
// zigbee2mqtt default "<base_topic>/bridge/devices".
func (z ZigbeeConfig) ResolvedDevicesTopic() string {
	if z.DevicesTopic != "" {
		return z.DevicesTopic
	}
	return z.BaseTopic + "/bridge/devices"
}

// Location resolves the configured timezone. Validate guarantees it loads.
func (s SiteConfig) Location() *time.Location {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// TickPeriod returns the loop period as a Duration.
func (s ScheduleConfig) TickPeriod() time.Duration {
	return time.Duration(s.TickMS) * time.Millisecond
}

// PendingTimeout returns the pending-command timeout as a Duration.
// Zero means the gate never expires.
func (s ScheduleConfig) PendingTimeout() time.Duration {
	return time.Duration(s.PendingTimeoutSeconds) * time.Second
}

// FetchTimeoutDuration returns the snapshot fetch timeout as a Duration.
func (z ZigbeeConfig) FetchTimeoutDuration() time.Duration {
	return time.Duration(z.FetchTimeout) * time.Second
}
