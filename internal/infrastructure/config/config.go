package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultProduct is the product tag the PLAF203 firmware uses in its topic names.
const DefaultProduct = "PLAF203"

// Config is the root configuration structure for the PLAF203 feeder core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Device    DeviceConfig    `yaml:"device"`
	Protocol  ProtocolConfig  `yaml:"protocol"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Status    StatusConfig    `yaml:"status"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// DeviceConfig identifies the feeder this process talks to.
type DeviceConfig struct {
	// Serial is the device serial number used in every topic name.
	Serial string `yaml:"serial"`

	// Product is the fixed product tag in the topic namespace.
	// Default: "PLAF203"
	Product string `yaml:"product"`

	// Timezone is the IANA zone the device clock is assumed to run in.
	// "Local" uses the host zone.
	Timezone string `yaml:"timezone"`

	// BindID is returned to the device on BINDING requests.
	// Defaults to the serial when empty.
	BindID string `yaml:"bind_id"`

	// CameraID is pushed with DEVICE_INFO_SERVICE when the device comes online.
	// Nothing is pushed when empty.
	CameraID string `yaml:"camera_id"`
}

// ProtocolConfig contains device protocol timing settings (seconds).
type ProtocolConfig struct {
	HeartbeatPeriod int `yaml:"heartbeat_period"`
	HeartbeatGrace  int `yaml:"heartbeat_grace"`
	DriftThreshold  int `yaml:"drift_threshold"`
	QoS             int `yaml:"qos"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`

	// FeedLogRetention is how many days of feed log are kept. 0 keeps everything.
	FeedLogRetention int `yaml:"feed_log_retention"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	KeepAlive int                 `yaml:"keepalive"`
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
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
	Auth     APIAuthConfig    `yaml:"auth"`
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
}

// APIAuthConfig contains bearer token settings for the HTTP API.
type APIAuthConfig struct {
	Enabled bool `yaml:"enabled"`

	// JWTSecret signs and verifies HS256 tokens.
	JWTSecret string `yaml:"jwt_secret"`

	// TokenTTL is the default lifetime of issued tokens in minutes.
	TokenTTL int `yaml:"token_ttl"`
}

// WebSocketConfig contains WebSocket event stream settings.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
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

// StatusConfig controls the retained MQTT status report.
type StatusConfig struct {
	Enabled  bool `yaml:"enabled"`
	Interval int  `yaml:"interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// EnvPrefix prefixes every environment override, e.g. PLAF203_MQTT_HOST.
const EnvPrefix = "PLAF203_"

// Load reads the YAML file at path over the defaults, applies environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := defaultConfig()
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
		Device: DeviceConfig{
			Product:  DefaultProduct,
			Timezone: "Local",
		},
		Protocol: ProtocolConfig{
			HeartbeatPeriod: 51,
			HeartbeatGrace:  30,
			DriftThreshold:  10,
			QoS:             1,
		},
		Database: DatabaseConfig{
			Path:             "./data/plaf203.db",
			WALMode:          true,
			BusyTimeout:      5,
			FeedLogRetention: 90,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "plaf203-core",
			},
			QoS:       1,
			KeepAlive: 60,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8203,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
			Auth: APIAuthConfig{
				TokenTTL: 60 * 24 * 30,
			},
		},
		WebSocket: WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		InfluxDB: InfluxDBConfig{
			Bucket:        "plaf203",
			BatchSize:     100,
			FlushInterval: 10,
		},
		Status: StatusConfig{
			Enabled:  true,
			Interval: 60,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// envOverrides maps variable names (without EnvPrefix) to the field they set.
// Malformed numbers are ignored.
func envOverrides(cfg *Config) map[string]func(string) {
	str := func(dst *string) func(string) {
		return func(v string) { *dst = v }
	}
	num := func(dst *int) func(string) {
		return func(v string) {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	return map[string]func(string){
		"DEVICE_SERIAL":   str(&cfg.Device.Serial),
		"DEVICE_TIMEZONE": str(&cfg.Device.Timezone),
		"DATABASE_PATH":   str(&cfg.Database.Path),
		"MQTT_HOST":       str(&cfg.MQTT.Broker.Host),
		"MQTT_PORT":       num(&cfg.MQTT.Broker.Port),
		"MQTT_USERNAME":   str(&cfg.MQTT.Auth.Username),
		"MQTT_PASSWORD":   str(&cfg.MQTT.Auth.Password),
		"API_HOST":        str(&cfg.API.Host),
		"API_PORT":        num(&cfg.API.Port),
		"API_JWT_SECRET":  str(&cfg.API.Auth.JWTSecret),
		"INFLUXDB_URL":    str(&cfg.InfluxDB.URL),
		"INFLUXDB_TOKEN":  str(&cfg.InfluxDB.Token),
		"LOG_LEVEL":       str(&cfg.Logging.Level),
	}
}

func applyEnvOverrides(cfg *Config) {
	for name, set := range envOverrides(cfg) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			set(v)
		}
	}
}

// minJWTSecretLength keeps HS256 secrets out of brute-force range.
const minJWTSecretLength = 32

// Validate reports every problem found, joined into one error.
func (c *Config) Validate() error {
	var errs []string
	check := func(bad bool, format string, args ...any) {
		if bad {
			errs = append(errs, fmt.Sprintf(format, args...))
		}
	}
	validQoS := func(q int) bool { return q >= 0 && q <= 2 }

	check(c.Device.Serial == "", "device.serial is required (set %sDEVICE_SERIAL)", EnvPrefix)
	check(strings.ContainsAny(c.Device.Serial, "/+#"), "device.serial must not contain MQTT topic characters")
	check(c.Device.Product == "", "device.product is required")
	if _, err := c.Location(); err != nil {
		check(true, "device.timezone is invalid: %v", err)
	}

	check(c.Protocol.HeartbeatPeriod <= 0, "protocol.heartbeat_period must be positive")
	check(c.Protocol.HeartbeatGrace < 0, "protocol.heartbeat_grace must not be negative")
	check(c.Protocol.DriftThreshold <= 0, "protocol.drift_threshold must be positive")
	check(!validQoS(c.Protocol.QoS), "protocol.qos must be 0, 1, or 2")

	check(c.Database.Path == "", "database.path is required")
	check(c.Database.FeedLogRetention < 0, "database.feed_log_retention must not be negative")

	check(!validQoS(c.MQTT.QoS), "mqtt.qos must be 0, 1, or 2")

	if c.API.Enabled {
		check(c.API.Port < 1 || c.API.Port > 65535, "api.port must be between 1 and 65535")
		if c.API.Auth.Enabled {
			check(c.API.Auth.JWTSecret == "",
				"api.auth.jwt_secret is required when api.auth.enabled (set %sAPI_JWT_SECRET)", EnvPrefix)
			check(c.API.Auth.JWTSecret != "" && len(c.API.Auth.JWTSecret) < minJWTSecretLength,
				"api.auth.jwt_secret must be at least %d characters", minJWTSecretLength)
		}
	}

	check(c.InfluxDB.Enabled && c.InfluxDB.URL == "", "influxdb.url is required when influxdb.enabled")

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Location resolves device.timezone to a *time.Location.
func (c *Config) Location() (*time.Location, error) {
	switch c.Device.Timezone {
	case "", "Local":
		return time.Local, nil
	default:
		return time.LoadLocation(c.Device.Timezone)
	}
}

// WatchdogTimeout returns the heartbeat period plus grace as a Duration.
func (c *Config) WatchdogTimeout() time.Duration {
	return time.Duration(c.Protocol.HeartbeatPeriod+c.Protocol.HeartbeatGrace) * time.Second
}

// DriftThreshold returns the clock drift tolerance as a Duration.
func (c *Config) DriftThreshold() time.Duration {
	return time.Duration(c.Protocol.DriftThreshold) * time.Second
}

// BindID returns the bind identifier reported to the device.
func (c *Config) BindID() string {
	if c.Device.BindID != "" {
		return c.Device.BindID
	}
	return c.Device.Serial
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

// FeedLogRetention returns how long feed log entries are kept, or 0 to keep them forever.
func (c *Config) FeedLogRetention() time.Duration {
	return time.Duration(c.Database.FeedLogRetention) * 24 * time.Hour
}

// StatusInterval returns the status report interval as a Duration.
func (c *Config) StatusInterval() time.Duration {
	return time.Duration(c.Status.Interval) * time.Second
}
