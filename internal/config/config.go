// Package config loads channel server configuration from YAML with
// built-in defaults, the way la2go's config package loads its login and
// game server configs.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ChannelServer holds all configuration for one channel server process.
type ChannelServer struct {
	// Network
	BindAddress string `yaml:"bind_address"`
	Port        int    `yaml:"port"`

	// Data store search paths, first-hit-wins for reads; the last entry
	// is where writes land. At least one path is required.
	DataStorePaths []string `yaml:"data_store_paths"`

	// Session runtime
	KeepAliveInterval time.Duration `yaml:"keep_alive_interval"`
	SessionTimeout    time.Duration `yaml:"session_timeout"`

	// Dispatch worker pool; <=0 defaults to runtime.NumCPU() at startup.
	DispatchWorkers int `yaml:"dispatch_workers"`

	// Database
	Database DatabaseConfig `yaml:"database"`

	// Logging
	LogLevel string `yaml:"log_level"` // debug, info, warn, error (default: info)
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`

	// Connection pool parameters (optional, defaults from pgxpool apply if not set)
	MaxConns          int32  `yaml:"max_conns"`           // default: max(4, NumCPU)
	MinConns          int32  `yaml:"min_conns"`           // default: 0
	MaxConnLifetime   string `yaml:"max_conn_lifetime"`   // duration, e.g. "1h"
	MaxConnIdleTime   string `yaml:"max_conn_idle_time"`  // duration, e.g. "30m"
	HealthCheckPeriod string `yaml:"health_check_period"` // duration, e.g. "1m"
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	base := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)

	var params []string
	if d.MaxConns > 0 {
		params = append(params, fmt.Sprintf("pool_max_conns=%d", d.MaxConns))
	}
	if d.MinConns > 0 {
		params = append(params, fmt.Sprintf("pool_min_conns=%d", d.MinConns))
	}
	if d.MaxConnLifetime != "" {
		params = append(params, fmt.Sprintf("pool_max_conn_lifetime=%s", d.MaxConnLifetime))
	}
	if d.MaxConnIdleTime != "" {
		params = append(params, fmt.Sprintf("pool_max_conn_idle_time=%s", d.MaxConnIdleTime))
	}
	if d.HealthCheckPeriod != "" {
		params = append(params, fmt.Sprintf("pool_health_check_period=%s", d.HealthCheckPeriod))
	}

	if len(params) > 0 {
		return base + "&" + strings.Join(params, "&")
	}
	return base
}

// Default returns a ChannelServer config with sensible defaults.
func Default() ChannelServer {
	return ChannelServer{
		BindAddress:       "0.0.0.0",
		Port:              7777,
		DataStorePaths:    []string{"./data"},
		KeepAliveInterval: 10 * time.Second,
		SessionTimeout:    30 * time.Second,
		DispatchWorkers:   0,
		LogLevel:          "info",
		Database: DatabaseConfig{
			Host:    "127.0.0.1",
			Port:    5432,
			User:    "channelcore",
			Password: "channelcore",
			DBName:  "channelcore",
			SSLMode: "disable",
		},
	}
}

// Load reads config from a YAML file, layered over Default(). If path
// doesn't exist, the defaults are returned unmodified.
func Load(path string) (ChannelServer, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if len(cfg.DataStorePaths) == 0 {
		return cfg, fmt.Errorf("config %s: data_store_paths must list at least one path", path)
	}

	return cfg, nil
}
