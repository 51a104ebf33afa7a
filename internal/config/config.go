package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Remote driver names
const (
	RemoteAppwrite = "appwrite"
	RemoteMemory   = "memory"
)

// Config holds all application configuration
type Config struct {
	Storage StorageConfig `mapstructure:"storage"`
	Remote  RemoteConfig  `mapstructure:"remote"`
	Sync    SyncConfig    `mapstructure:"sync"`
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// StorageConfig selects and configures the durable ledger store
type StorageConfig struct {
	Driver        string `mapstructure:"driver" validate:"oneof=bolt badger file sqlite redis memory"`
	Path          string `mapstructure:"path"` // directory for bolt/badger/file/sqlite
	Key           string `mapstructure:"key" validate:"required"`
	RedisAddr     string `mapstructure:"redis_addr" validate:"required_if=Driver redis"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db" validate:"gte=0"`
	RedisPrefix   string `mapstructure:"redis_prefix"`
}

// RemoteConfig holds the remote document store connection
type RemoteConfig struct {
	Driver     string        `mapstructure:"driver" validate:"oneof=appwrite memory"`
	Endpoint   string        `mapstructure:"endpoint" validate:"omitempty,url"`
	Project    string        `mapstructure:"project" validate:"required_if=Driver appwrite"`
	APIKey     string        `mapstructure:"api_key"`
	Database   string        `mapstructure:"database" validate:"required_if=Driver appwrite"`
	Collection string        `mapstructure:"collection" validate:"required_if=Driver appwrite"`
	Field      string        `mapstructure:"field" validate:"required"`
	Timeout    time.Duration `mapstructure:"timeout" validate:"gte=0"`
}

// SyncConfig tunes the sync dispatcher and its app-level triggers
type SyncConfig struct {
	Concurrency   int           `mapstructure:"concurrency" validate:"gte=1,lte=64"`
	RatePerSecond float64       `mapstructure:"rate_per_second" validate:"gte=0"` // 0 = unlimited
	Interval      time.Duration `mapstructure:"interval" validate:"gte=0"`        // 0 disables periodic flush
	WriteTimeout  time.Duration `mapstructure:"write_timeout" validate:"gte=0"`   // bound on one shared remote write
	FlushOnPlay   bool          `mapstructure:"flush_on_play"`
}

// ServerConfig holds the HTTP API configuration
type ServerConfig struct {
	Listen string `mapstructure:"listen" validate:"required"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	File   string `mapstructure:"file"` // empty logs to stderr
	Level  string `mapstructure:"level" validate:"oneof=debug info warn warning error"`
	Format string `mapstructure:"format" validate:"oneof=json console"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Driver: "bolt",
			Path:   defaultDataPath(),
			Key:    "playbackData",
		},
		Remote: RemoteConfig{
			Driver:  RemoteMemory,
			Field:   "playCount",
			Timeout: 30 * time.Second,
		},
		Sync: SyncConfig{
			Concurrency:   4,
			RatePerSecond: 10,
			Interval:      time.Minute,
			WriteTimeout:  2 * time.Minute,
			FlushOnPlay:   true,
		},
		Server: ServerConfig{
			Listen: "127.0.0.1:8478",
		},
		Logging: LoggingConfig{
			File:   defaultLogPath(),
			Level:  "info",
			Format: "json",
		},
	}
}

// defaultLogPath returns the default log file path for the current OS
func defaultLogPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "playtally", "playtally.log")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "playtally", "playtally.log")
	}
}

// defaultDataPath returns the default store directory for the current OS
func defaultDataPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("LOCALAPPDATA"), "playtally", "data")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "playtally", "data")
	}
}

// DefaultConfigDir returns the default config directory for the current OS
func DefaultConfigDir() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "playtally")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "playtally")
	}
}

// Load reads configuration from file and environment.
// An empty path searches the default config dir and "."; a missing file there is not an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	setDefaults(v, cfg)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(DefaultConfigDir())
		v.AddConfigPath(".")
	}

	// Environment variable overrides: PLAYTALLY_REMOTE_ENDPOINT etc.
	v.SetEnvPrefix("PLAYTALLY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML. An empty path uses the default config dir.
func Save(cfg *Config, path string) error {
	if path == "" {
		path = filepath.Join(DefaultConfigDir(), "config.yaml")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	setDefaults(v, cfg)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// setDefaults registers every key so AutomaticEnv can override it and Save writes snake_case keys
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("storage.driver", cfg.Storage.Driver)
	v.SetDefault("storage.path", cfg.Storage.Path)
	v.SetDefault("storage.key", cfg.Storage.Key)
	v.SetDefault("storage.redis_addr", cfg.Storage.RedisAddr)
	v.SetDefault("storage.redis_password", cfg.Storage.RedisPassword)
	v.SetDefault("storage.redis_db", cfg.Storage.RedisDB)
	v.SetDefault("storage.redis_prefix", cfg.Storage.RedisPrefix)

	v.SetDefault("remote.driver", cfg.Remote.Driver)
	v.SetDefault("remote.endpoint", cfg.Remote.Endpoint)
	v.SetDefault("remote.project", cfg.Remote.Project)
	v.SetDefault("remote.api_key", cfg.Remote.APIKey)
	v.SetDefault("remote.database", cfg.Remote.Database)
	v.SetDefault("remote.collection", cfg.Remote.Collection)
	v.SetDefault("remote.field", cfg.Remote.Field)
	v.SetDefault("remote.timeout", cfg.Remote.Timeout.String())

	v.SetDefault("sync.concurrency", cfg.Sync.Concurrency)
	v.SetDefault("sync.rate_per_second", cfg.Sync.RatePerSecond)
	v.SetDefault("sync.interval", cfg.Sync.Interval.String())
	v.SetDefault("sync.write_timeout", cfg.Sync.WriteTimeout.String())
	v.SetDefault("sync.flush_on_play", cfg.Sync.FlushOnPlay)

	v.SetDefault("server.listen", cfg.Server.Listen)

	v.SetDefault("logging.file", cfg.Logging.File)
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
}

// Validate normalizes and checks the configuration
func (c *Config) Validate() error {
	c.Logging.Level = strings.ToLower(c.Logging.Level)
	c.Logging.Format = strings.ToLower(c.Logging.Format)
	c.Storage.Driver = strings.ToLower(c.Storage.Driver)
	c.Remote.Driver = strings.ToLower(c.Remote.Driver)

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Remote.Driver == RemoteAppwrite && c.Remote.Endpoint == "" {
		return fmt.Errorf("invalid config: remote.endpoint is required for the %s driver", RemoteAppwrite)
	}
	return nil
}

// IsRemoteConfigured returns true if counts leave this process
func (c *Config) IsRemoteConfigured() bool {
	return c.Remote.Driver == RemoteAppwrite && c.Remote.Endpoint != ""
}
