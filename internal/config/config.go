// Package config loads agent configuration from file and environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the complete application configuration
type Config struct {
	Storage     StorageConfig     `mapstructure:"storage"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Watch       WatchConfig       `mapstructure:"watch"`
	Gate        GateConfig        `mapstructure:"gate"`
	Risk        RiskConfig        `mapstructure:"risk"`
	Control     ControlConfig     `mapstructure:"control"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance"`
}

// StorageConfig defines storage backend settings
type StorageConfig struct {
	Type  string      `mapstructure:"type"` // "bolt" or "redis"
	Path  string      `mapstructure:"path"`
	Redis RedisConfig `mapstructure:"redis"`
}

// RedisConfig defines connection settings for the redis backend
type RedisConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
	DialTimeout  string `mapstructure:"dial_timeout"`
	ReadTimeout  string `mapstructure:"read_timeout"`
	WriteTimeout string `mapstructure:"write_timeout"`
}

// LoggingConfig defines logging behavior
type LoggingConfig struct {
	Level              string `mapstructure:"level"`
	Format             string `mapstructure:"format"`
	EventRetentionDays int    `mapstructure:"event_retention_days"`
}

// WatchConfig defines the foreground watcher settings
type WatchConfig struct {
	PollInterval   string `mapstructure:"poll_interval"`
	Cooldown       string `mapstructure:"cooldown"`
	SelfPackage    string `mapstructure:"self_package"`
	SourceCommand  string `mapstructure:"source_command"`
	BlockCommand   string `mapstructure:"block_command"`
	UnblockCommand string `mapstructure:"unblock_command"`
}

// GateConfig defines block decision settings
type GateConfig struct {
	PolicyDir            string `mapstructure:"policy_dir"`
	BlockOnRecordFailure bool   `mapstructure:"block_on_record_failure"`
}

// RiskConfig defines risk evaluation settings
type RiskConfig struct {
	ModelTimeout string `mapstructure:"model_timeout"`
}

// ControlConfig defines the local control API settings
type ControlConfig struct {
	Address string `mapstructure:"address"`
}

// MetricsConfig defines the metrics endpoint settings
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address"`
}

// MaintenanceConfig defines the nightly maintenance settings
type MaintenanceConfig struct {
	PurgeTime string `mapstructure:"purge_time"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("taglock")
		v.AddConfigPath("/etc/taglock")
		v.AddConfigPath(".")
	}
	v.SetEnvPrefix("TAGLOCK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults and environment variables
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Storage defaults
	v.SetDefault("storage.type", "bolt")
	v.SetDefault("storage.path", "/var/lib/taglock/taglock.db")
	v.SetDefault("storage.redis.host", "localhost")
	v.SetDefault("storage.redis.port", 6379)
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.pool_size", 10)
	v.SetDefault("storage.redis.min_idle_conns", 2)
	v.SetDefault("storage.redis.dial_timeout", "5s")
	v.SetDefault("storage.redis.read_timeout", "3s")
	v.SetDefault("storage.redis.write_timeout", "3s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.event_retention_days", 90)

	// Watcher defaults
	v.SetDefault("watch.poll_interval", "1s")
	v.SetDefault("watch.cooldown", "750ms")
	v.SetDefault("watch.self_package", "com.goodtune.taglock")

	// Gate defaults
	v.SetDefault("gate.policy_dir", "")
	v.SetDefault("gate.block_on_record_failure", true)

	// Risk defaults
	v.SetDefault("risk.model_timeout", "2s")

	// Control API defaults
	v.SetDefault("control.address", "127.0.0.1:9311")

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.address", "localhost:9310")

	// Maintenance defaults
	v.SetDefault("maintenance.purge_time", "03:30")
}

// validate validates the configuration
func validate(cfg *Config) error {
	switch cfg.Storage.Type {
	case "bolt":
		if cfg.Storage.Path == "" {
			return fmt.Errorf("storage path is required")
		}
		storageDir := filepath.Dir(cfg.Storage.Path)
		if err := os.MkdirAll(storageDir, 0755); err != nil {
			return fmt.Errorf("failed to create storage directory: %w", err)
		}
	case "redis":
		if cfg.Storage.Redis.Host == "" {
			return fmt.Errorf("redis host is required")
		}
		if cfg.Storage.Redis.Port <= 0 || cfg.Storage.Redis.Port > 65535 {
			return fmt.Errorf("invalid redis port: %d", cfg.Storage.Redis.Port)
		}
	default:
		return fmt.Errorf("unknown storage type: %s", cfg.Storage.Type)
	}

	if cfg.Logging.EventRetentionDays <= 0 {
		return fmt.Errorf("event retention must be at least one day")
	}

	for _, d := range []struct {
		name  string
		value string
	}{
		{"watch.poll_interval", cfg.Watch.PollInterval},
		{"watch.cooldown", cfg.Watch.Cooldown},
		{"risk.model_timeout", cfg.Risk.ModelTimeout},
	} {
		if _, err := time.ParseDuration(d.value); err != nil {
			return fmt.Errorf("invalid duration for %s: %w", d.name, err)
		}
	}

	if _, err := time.Parse("15:04", cfg.Maintenance.PurgeTime); err != nil {
		return fmt.Errorf("invalid maintenance purge time: %w", err)
	}

	return nil
}
