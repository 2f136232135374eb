package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the Z-Wave controller.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site      SiteConfig      `yaml:"site"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Security  SecurityConfig  `yaml:"security"`
	ZWave     ZWaveConfig     `yaml:"zwave"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
}

// SiteConfig contains site-specific information.
type SiteConfig struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Timezone string `yaml:"timezone"`
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

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket event stream settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
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

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig contains JWT token settings.
type JWTConfig struct {
	Secret         string `yaml:"secret"`
	AccessTokenTTL int    `yaml:"access_token_ttl"`
}

// ZWaveConfig contains settings for the external Z-Wave gateway.
type ZWaveConfig struct {
	// GatewayID names the gateway instance in event topics
	// (graylogic/zwave/{gateway_id}/event/{kind}).
	GatewayID string `yaml:"gateway_id"`

	// CommandTimeout bounds how long a device command waits for its ack.
	CommandTimeout time.Duration `yaml:"command_timeout"`

	// Listeners maps an event kind to "once" or "always".
	// Kinds not listed use the built-in defaults.
	Listeners map[string]string `yaml:"listeners"`
}

// SchedulerConfig contains the scheduling core settings.
type SchedulerConfig struct {
	// TickInterval is the period between time-of-day ticks. Default: 1m
	TickInterval time.Duration `yaml:"tick_interval"`

	// InboxSize bounds the router's event queue. Ticks that arrive while
	// the queue is full are dropped.
	InboxSize int `yaml:"inbox_size"`

	// SinkQueueSize bounds the dispatch records waiting to be written to
	// the log, bus and metrics. Default: 256
	SinkQueueSize int `yaml:"sink_queue_size"`

	// Modules lists the behavioural modules to load.
	Modules []ModuleConfig `yaml:"modules"`
}

// ModuleConfig points at one behavioural module's configuration file.
type ModuleConfig struct {
	Name    string `yaml:"name"`
	File    string `yaml:"file"`
	Enabled *bool  `yaml:"enabled"`

	// Motion, if set, switches the module's actuators on motion reports.
	Motion *MotionConfig `yaml:"motion"`

	// Alarm, if set, logs and broadcasts alarm reports.
	Alarm *AlarmConfig `yaml:"alarm"`
}

// MotionConfig drives a module's actuators from motion sensors.
type MotionConfig struct {
	// Sensors lists the sensor node IDs. Empty means any node.
	Sensors []int `yaml:"sensors"`

	// Property is the value property key. Default: "Motion sensor status"
	Property string `yaml:"property"`

	// Hold is how long the actuators stay on after the last report. Default: 1m
	Hold time.Duration `yaml:"hold"`
}

// AlarmConfig watches alarm sensors.
type AlarmConfig struct {
	Sensors  []int  `yaml:"sensors"`
	Property string `yaml:"property"`

	// Raised and Cleared override the alarm values. Defaults: 3 and 0
	Raised  *int `yaml:"raised"`
	Cleared *int `yaml:"cleared"`
}

// IsEnabled reports whether the module should be loaded. Modules are
// enabled unless explicitly disabled.
func (m ModuleConfig) IsEnabled() bool {
	return m.Enabled == nil || *m.Enabled
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: GRAYLOGIC_SECTION_KEY
// For example: GRAYLOGIC_DATABASE_PATH, GRAYLOGIC_MQTT_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
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
			ID:       "site-001",
			Name:     "Gray Logic Z-Wave",
			Timezone: "Local",
		},
		Database: DatabaseConfig{
			Path:        "./data/graylogic-zwave.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "graylogic-zwave",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 3001,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				AccessTokenTTL: 15,
			},
		},
		ZWave: ZWaveConfig{
			GatewayID:      "zwave-01",
			CommandTimeout: 10 * time.Second,
		},
		Scheduler: SchedulerConfig{
			TickInterval:  time.Minute,
			InboxSize:     64,
			SinkQueueSize: 256,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: GRAYLOGIC_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GRAYLOGIC_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := os.Getenv("GRAYLOGIC_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("GRAYLOGIC_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("GRAYLOGIC_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("GRAYLOGIC_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	if v := os.Getenv("GRAYLOGIC_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	if v := os.Getenv("GRAYLOGIC_ZWAVE_GATEWAY_ID"); v != "" {
		cfg.ZWave.GatewayID = v
	}

	// Always override the JWT secret in production
	if v := os.Getenv("GRAYLOGIC_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
}

// validListenerModes are the accepted values for zwave.listeners entries.
var validListenerModes = map[string]bool{"once": true, "always": true}

// Validate checks the configuration for errors and security issues.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error { //nolint:gocognit,gocyclo // flat list of independent checks
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}
	if _, err := time.LoadLocation(c.Site.Timezone); err != nil {
		errs = append(errs, fmt.Sprintf("site.timezone %q is not a valid IANA zone", c.Site.Timezone))
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// Control endpoints switch physical devices, so the signing secret is mandatory.
	const minJWTSecretLength = 32
	if c.Security.JWT.Secret == "" {
		errs = append(errs, "security.jwt.secret is required (set GRAYLOGIC_JWT_SECRET environment variable)")
	} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters for adequate security")
	}

	if c.ZWave.GatewayID == "" {
		errs = append(errs, "zwave.gateway_id is required")
	}
	if c.ZWave.CommandTimeout <= 0 {
		errs = append(errs, "zwave.command_timeout must be positive")
	}
	for kind, mode := range c.ZWave.Listeners {
		if !validListenerModes[strings.ToLower(mode)] {
			errs = append(errs, fmt.Sprintf("zwave.listeners.%s must be \"once\" or \"always\"", kind))
		}
	}

	if c.Scheduler.TickInterval <= 0 {
		errs = append(errs, "scheduler.tick_interval must be positive")
	}
	if c.Scheduler.InboxSize < 1 {
		errs = append(errs, "scheduler.inbox_size must be at least 1")
	}
	if c.Scheduler.SinkQueueSize < 1 {
		errs = append(errs, "scheduler.sink_queue_size must be at least 1")
	}
	seen := make(map[string]bool, len(c.Scheduler.Modules))
	for i, m := range c.Scheduler.Modules {
		if m.Name == "" {
			errs = append(errs, fmt.Sprintf("scheduler.modules[%d].name is required", i))
		} else if seen[m.Name] {
			errs = append(errs, fmt.Sprintf("scheduler.modules[%d].name %q is duplicated", i, m.Name))
		}
		seen[m.Name] = true
		if m.File == "" {
			errs = append(errs, fmt.Sprintf("scheduler.modules[%d].file is required", i))
		}
		if m.Motion != nil {
			if m.Motion.Hold < 0 {
				errs = append(errs, fmt.Sprintf("scheduler.modules[%d].motion.hold must not be negative", i))
			}
			errs = append(errs, sensorErrors(fmt.Sprintf("scheduler.modules[%d].motion", i), m.Motion.Sensors)...)
		}
		if m.Alarm != nil {
			errs = append(errs, sensorErrors(fmt.Sprintf("scheduler.modules[%d].alarm", i), m.Alarm.Sensors)...)
			if m.Alarm.Raised != nil && m.Alarm.Cleared != nil && *m.Alarm.Raised == *m.Alarm.Cleared {
				errs = append(errs, fmt.Sprintf("scheduler.modules[%d].alarm raised and cleared must differ", i))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

func sensorErrors(prefix string, sensors []int) []string {
	var errs []string
	for j, id := range sensors {
		if id < 1 || id > 232 {
			errs = append(errs, fmt.Sprintf("%s.sensors[%d] must be a node ID between 1 and 232", prefix, j))
		}
	}
	return errs
}

// Location returns the site time zone used to format ticks.
// Validate guarantees the zone loads; UTC is returned if it somehow does not.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Site.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
