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
	Database   DatabaseConfig   `yaml:"database"`
	Print      PrintConfig      `yaml:"print"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
}

// ServerConfig holds the HTTP server configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// PrintConfig holds the print-delivery pipeline knobs.
type PrintConfig struct {
	DefaultPrinterPort  int `yaml:"default_printer_port"`
	SendTimeoutMs       int `yaml:"send_timeout_ms"`
	ProbeTimeoutMs      int `yaml:"probe_timeout_ms"`
	SettleDelayMs       int `yaml:"settle_delay_ms"`
	MaxAttempts         int `yaml:"max_attempts"`
	BridgeOnlineSeconds int `yaml:"bridge_online_window_seconds"`
	StatusStaleSeconds  int `yaml:"status_stale_seconds"`

	Logo LogoConfig `yaml:"logo"`

	SendTimeout        time.Duration `yaml:"-"`
	ProbeTimeout       time.Duration `yaml:"-"`
	SettleDelay        time.Duration `yaml:"-"`
	BridgeOnlineWindow time.Duration `yaml:"-"`
	StatusStaleWindow  time.Duration `yaml:"-"`
}

// LogoConfig describes the outlet logo used on receipts.
type LogoConfig struct {
	Source    string `yaml:"source"` // local path or URL; empty disables logos
	MaxWidth  int    `yaml:"max_width"`
	MaxHeight int    `yaml:"max_height"`
	Threshold int    `yaml:"threshold"`
}

// PushConfig holds the VAPID keys for operator web push alerts.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// WorkerPoolConfig holds the configuration for the alert worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
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

	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyDefaults fills in defaults for anything the file left unset and
// derives the time.Duration fields.
func (cfg *Config) ApplyDefaults() {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 20
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 30
	}

	if cfg.Print.DefaultPrinterPort <= 0 {
		cfg.Print.DefaultPrinterPort = 9100
	}
	if cfg.Print.SendTimeoutMs <= 0 {
		cfg.Print.SendTimeoutMs = 5000
	}
	if cfg.Print.ProbeTimeoutMs <= 0 {
		cfg.Print.ProbeTimeoutMs = 2000
	}
	if cfg.Print.SettleDelayMs <= 0 {
		cfg.Print.SettleDelayMs = 200
	}
	if cfg.Print.MaxAttempts <= 0 {
		cfg.Print.MaxAttempts = 3
	}
	if cfg.Print.BridgeOnlineSeconds <= 0 {
		cfg.Print.BridgeOnlineSeconds = 90
	}
	if cfg.Print.StatusStaleSeconds <= 0 {
		cfg.Print.StatusStaleSeconds = 90
	}
	if cfg.Print.Logo.MaxWidth <= 0 {
		cfg.Print.Logo.MaxWidth = 384
	}
	if cfg.Print.Logo.MaxHeight <= 0 {
		cfg.Print.Logo.MaxHeight = 240
	}
	if cfg.Print.Logo.Threshold <= 0 {
		cfg.Print.Logo.Threshold = 128
	}

	cfg.Print.SendTimeout = time.Duration(cfg.Print.SendTimeoutMs) * time.Millisecond
	cfg.Print.ProbeTimeout = time.Duration(cfg.Print.ProbeTimeoutMs) * time.Millisecond
	cfg.Print.SettleDelay = time.Duration(cfg.Print.SettleDelayMs) * time.Millisecond
	cfg.Print.BridgeOnlineWindow = time.Duration(cfg.Print.BridgeOnlineSeconds) * time.Second
	cfg.Print.StatusStaleWindow = time.Duration(cfg.Print.StatusStaleSeconds) * time.Second

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		log.Printf("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}
}
