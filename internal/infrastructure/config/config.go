package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for BabyBox.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Media     MediaConfig     `yaml:"media"`
	Player    PlayerConfig    `yaml:"player"`
	Hardware  HardwareConfig  `yaml:"hardware"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Security  SecurityConfig  `yaml:"security"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MediaConfig contains the on-disk media library layout.
// Audio, video, and thumbnail directories are derived from BaseDir.
type MediaConfig struct {
	BaseDir string `yaml:"base_dir"`
}

// AudioDir returns the directory for audio files.
func (m MediaConfig) AudioDir() string { return filepath.Join(m.BaseDir, "audio") }

// VideoDir returns the directory for video files.
func (m MediaConfig) VideoDir() string { return filepath.Join(m.BaseDir, "video") }

// ThumbnailDir returns the directory for thumbnail images.
func (m MediaConfig) ThumbnailDir() string { return filepath.Join(m.BaseDir, "thumbnails") }

// EnsureDirs creates the media directories if they don't exist.
func (m MediaConfig) EnsureDirs() error {
	for _, dir := range []string{m.AudioDir(), m.VideoDir(), m.ThumbnailDir()} {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("creating media directory %s: %w", dir, err)
		}
	}
	return nil
}

// PlayerConfig contains settings for the external mpv playback process.
type PlayerConfig struct {
	// Binary is the path to the mpv executable.
	// Default: "/usr/bin/mpv"
	Binary string `yaml:"binary"`

	// AudioDevice is the mpv audio output driver. Default: "pulse"
	AudioDevice string `yaml:"audio_device"`

	// GracefulTimeoutSeconds is how long to wait after SIGTERM before SIGKILL.
	GracefulTimeoutSeconds int `yaml:"graceful_timeout_seconds"`
}

// GracefulTimeout returns the stop escalation timeout as a Duration.
func (p PlayerConfig) GracefulTimeout() time.Duration {
	return time.Duration(p.GracefulTimeoutSeconds) * time.Second
}

// HardwareConfig contains input debounce settings for the front panel.
type HardwareConfig struct {
	// TagDedupWindowMS ignores repeat detections of the same UID within
	// this window while the tag has not been removed from the surface.
	TagDedupWindowMS int `yaml:"tag_dedup_window_ms"`

	// ButtonDebounceMS is the refractory window after a button press.
	ButtonDebounceMS int `yaml:"button_debounce_ms"`
}

// TagDedupWindow returns the tag dedup window as a Duration.
func (h HardwareConfig) TagDedupWindow() time.Duration {
	return time.Duration(h.TagDedupWindowMS) * time.Millisecond
}

// ButtonDebounce returns the button refractory window as a Duration.
func (h HardwareConfig) ButtonDebounce() time.Duration {
	return time.Duration(h.ButtonDebounceMS) * time.Millisecond
}

// MQTTConfig contains MQTT broker connection settings for the front-panel bridge.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
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

// MQTTReconnectConfig contains MQTT reconnection settings (seconds).
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// APIConfig contains HTTP admin API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings (seconds).
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig contains optional telemetry settings.
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

// SecurityConfig contains admin authentication settings.
// The parental PIN itself lives in the settings table (hashed); only the
// token signing secret and TTL are static configuration.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig contains JWT session token settings.
type JWTConfig struct {
	Secret         string `yaml:"secret"`
	AccessTokenTTL int    `yaml:"access_token_ttl"` // minutes
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: BABYBOX_SECTION_KEY
// For example: BABYBOX_DATABASE_PATH, BABYBOX_MQTT_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := Default()

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

// Default returns a Config with sensible defaults for a Raspberry Pi install.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:        "./data/babybox.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Media: MediaConfig{
			BaseDir: "./data/media",
		},
		Player: PlayerConfig{
			Binary:                 "/usr/bin/mpv",
			AudioDevice:            "pulse",
			GracefulTimeoutSeconds: 5,
		},
		Hardware: HardwareConfig{
			TagDedupWindowMS: 2000,
			ButtonDebounceMS: 250,
		},
		MQTT: MQTTConfig{
			Enabled: true,
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "babybox-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
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
				AccessTokenTTL: 60,
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: BABYBOX_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("BABYBOX_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("BABYBOX_MEDIA_DIR"); v != "" {
		cfg.Media.BaseDir = v
	}
	if v := os.Getenv("BABYBOX_PLAYER_BINARY"); v != "" {
		cfg.Player.Binary = v
	}
	if v := os.Getenv("BABYBOX_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("BABYBOX_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("BABYBOX_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("BABYBOX_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}
	if v := os.Getenv("BABYBOX_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("BABYBOX_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
	// Always override in production: the secret signs parental admin sessions.
	if v := os.Getenv("BABYBOX_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
}

// Validate checks the configuration for errors and security issues.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}
	if c.Media.BaseDir == "" {
		errs = append(errs, "media.base_dir is required")
	}
	if c.Player.Binary == "" {
		errs = append(errs, "player.binary is required")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// The JWT secret gates quota settings and tag bindings; an empty or
	// guessable secret would let anyone on the LAN lift the viewing limits.
	const minJWTSecretLength = 32
	if c.Security.JWT.Secret == "" {
		errs = append(errs, "security.jwt.secret is required (set BABYBOX_JWT_SECRET environment variable)")
	} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
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
