package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const testJWTSecret = "test-secret-key-at-least-32-chars!"

func TestLoad_ValidConfig(t *testing.T) {
	content := `
database:
  path: "/tmp/test.db"
  wal_mode: true
  busy_timeout: 5
media:
  base_dir: "/tmp/media"
player:
  binary: "/usr/bin/mpv"
mqtt:
  broker:
    host: "localhost"
    port: 1883
    client_id: "test-client"
  qos: 1
api:
  host: "0.0.0.0"
  port: 8080
security:
  jwt:
    secret: "` + testJWTSecret + `"
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/test.db")
	}
	if cfg.Media.BaseDir != "/tmp/media" {
		t.Errorf("Media.BaseDir = %q, want %q", cfg.Media.BaseDir, "/tmp/media")
	}
	if cfg.MQTT.Broker.Host != "localhost" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "localhost")
	}
	// Defaults survive a partial file.
	if cfg.Hardware.TagDedupWindowMS != 2000 {
		t.Errorf("Hardware.TagDedupWindowMS = %d, want default 2000", cfg.Hardware.TagDedupWindowMS)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("invalid: [yaml: content"), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		cfg := Default()
		cfg.Security.JWT.Secret = testJWTSecret
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid config",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name:    "missing database path",
			mutate:  func(c *Config) { c.Database.Path = "" },
			wantErr: true,
		},
		{
			name:    "missing media dir",
			mutate:  func(c *Config) { c.Media.BaseDir = "" },
			wantErr: true,
		},
		{
			name:    "missing player binary",
			mutate:  func(c *Config) { c.Player.Binary = "" },
			wantErr: true,
		},
		{
			name:    "invalid qos",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: true,
		},
		{
			name:    "invalid api port",
			mutate:  func(c *Config) { c.API.Port = 0 },
			wantErr: true,
		},
		{
			name:    "missing jwt secret",
			mutate:  func(c *Config) { c.Security.JWT.Secret = "" },
			wantErr: true,
		},
		{
			name:    "short jwt secret",
			mutate:  func(c *Config) { c.Security.JWT.Secret = "short" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	content := `
database:
  path: "/tmp/test.db"
security:
  jwt:
    secret: "` + testJWTSecret + `"
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	t.Setenv("BABYBOX_DATABASE_PATH", "/override/babybox.db")
	t.Setenv("BABYBOX_MQTT_HOST", "broker.lan")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.Path != "/override/babybox.db" {
		t.Errorf("Database.Path = %q, want env override", cfg.Database.Path)
	}
	if cfg.MQTT.Broker.Host != "broker.lan" {
		t.Errorf("MQTT.Broker.Host = %q, want env override", cfg.MQTT.Broker.Host)
	}
}

func TestMediaDirsDerivedFromBase(t *testing.T) {
	m := MediaConfig{BaseDir: "/data/media"}

	if got := m.AudioDir(); got != "/data/media/audio" {
		t.Errorf("AudioDir() = %q", got)
	}
	if got := m.VideoDir(); got != "/data/media/video" {
		t.Errorf("VideoDir() = %q", got)
	}
	if got := m.ThumbnailDir(); got != "/data/media/thumbnails" {
		t.Errorf("ThumbnailDir() = %q", got)
	}
}

func TestDurationHelpers(t *testing.T) {
	h := HardwareConfig{TagDedupWindowMS: 2000, ButtonDebounceMS: 250}
	if h.TagDedupWindow() != 2*time.Second {
		t.Errorf("TagDedupWindow() = %v", h.TagDedupWindow())
	}
	if h.ButtonDebounce() != 250*time.Millisecond {
		t.Errorf("ButtonDebounce() = %v", h.ButtonDebounce())
	}

	p := PlayerConfig{GracefulTimeoutSeconds: 5}
	if p.GracefulTimeout() != 5*time.Second {
		t.Errorf("GracefulTimeout() = %v", p.GracefulTimeout())
	}
}
