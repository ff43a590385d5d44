package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage mode names.
const (
	ModePostgres = "postgres"
	ModeSQLite   = "sqlite"
	ModeMemory   = "memory"
)

type Config struct {
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`

	Database struct {
		// PostgresURL is the hosted backend's connection string. When
		// set, the service runs against the remote database.
		PostgresURL string `yaml:"postgres_url"`
		// SQLitePath keeps bookings in a local file when no remote
		// backend is configured.
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`

	Redis struct {
		Address         string `yaml:"address"`
		Password        string `yaml:"password"`
		DB              int    `yaml:"db"`
		CacheTTLSeconds int    `yaml:"cache_ttl_seconds"`
	} `yaml:"redis"`

	Monitoring struct {
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Booking struct {
		AdminLabel  string  `yaml:"admin_label"`
		DefaultUser string  `yaml:"default_user"`
		RatePerSec  float64 `yaml:"rate_per_sec"`
		RateBurst   int     `yaml:"rate_burst"`
	} `yaml:"booking"`
}

// Load reads the YAML config at path. A missing file yields a config of pure
// defaults, so the binary starts with zero setup in the in-memory mode.
func Load(path string) (*Config, error) {
	if path == "" {
		path = "configs/config.yaml"
	}

	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyDefaults()
			return &cfg, nil
		}
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.Booking.AdminLabel == "" {
		c.Booking.AdminLabel = "Administrator"
	}
	if c.Booking.RatePerSec <= 0 {
		c.Booking.RatePerSec = 10
	}
	if c.Booking.RateBurst <= 0 {
		c.Booking.RateBurst = 20
	}
}

// StorageMode derives the backend from what is configured: the remote
// database wins, the local file comes next, and with neither credential the
// whole system falls back to memory.
func (c *Config) StorageMode() string {
	switch {
	case c.Database.PostgresURL != "":
		return ModePostgres
	case c.Database.SQLitePath != "":
		return ModeSQLite
	default:
		return ModeMemory
	}
}

// CacheEnabled reports whether the Redis snapshot cache is configured.
func (c *Config) CacheEnabled() bool {
	return c.Redis.Address != "" && c.Redis.CacheTTLSeconds > 0
}

// CacheTTL returns the snapshot cache TTL.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Redis.CacheTTLSeconds) * time.Second
}
