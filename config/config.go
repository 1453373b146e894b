package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Scanner    ScannerConfig    `yaml:"scanner"`
	Source     SourceConfig     `yaml:"source"`
	Database   DatabaseConfig   `yaml:"database"`
	Push       PushConfig       `yaml:"push"`
	Broker     BrokerConfig     `yaml:"broker"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
	Penalty    PenaltyConfig    `yaml:"penalty"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// BrokerConfig controls publishing of booking alerts to RabbitMQ.
type BrokerConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Queue   string `yaml:"queue"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RequestIPHeader string  `yaml:"request_ip_header"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// ScannerConfig holds the lifecycle scanner configuration.
type ScannerConfig struct {
	Enabled          bool          `yaml:"enabled"`
	IntervalSeconds  int           `yaml:"interval_seconds"`
	Interval         time.Duration `yaml:"-"` // Ignored by YAML parser
	Timezone         string        `yaml:"timezone"`
	UserIDs          []string      `yaml:"user_ids"`
	ScheduleUpcoming bool          `yaml:"schedule_upcoming"`
}

// SourceConfig describes how bookings are fetched from the parking backend.
type SourceConfig struct {
	BaseURL         string            `yaml:"base_url"`
	Token           string            `yaml:"token"`
	Headers         map[string]string `yaml:"headers"`
	HTTPProxy       string            `yaml:"http_proxy"`
	TimeoutSeconds  int               `yaml:"timeout_seconds"`
	RateLimitPerSec float64           `yaml:"rate_limit_per_sec"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// PenaltyConfig overrides entries of the default overstay rate table.
// Keys are vehicle types, values are the hourly penalty.
type PenaltyConfig struct {
	Rates map[string]float64 `yaml:"rates"`
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()

	if token := os.Getenv("BACKEND_TOKEN"); token != "" {
		cfg.Source.Token = token
	}

	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Scanner.IntervalSeconds <= 0 {
		cfg.Scanner.IntervalSeconds = 60
	}
	cfg.Scanner.Interval = time.Duration(cfg.Scanner.IntervalSeconds) * time.Second

	if cfg.Scanner.Timezone == "" {
		cfg.Scanner.Timezone = "Local"
	}

	if cfg.Source.TimeoutSeconds <= 0 {
		cfg.Source.TimeoutSeconds = 30
	}

	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 30
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.Broker.Queue == "" {
		cfg.Broker.Queue = "booking.alerts"
	}

	if cfg.WorkerPool.Size <= 0 {
		log.Printf("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}
}
