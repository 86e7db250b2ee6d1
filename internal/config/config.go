// Package config loads tripctl settings from config.yaml, .env files, and
// TRIPSTATE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/tripstate/internal/keylock"
	"github.com/mesh-intelligence/tripstate/pkg/types"
)

// FileName is the configuration file written by tripctl init.
const FileName = "config.yaml"

// EnvPrefix prefixes every environment override, e.g. TRIPSTATE_LOG_LEVEL.
const EnvPrefix = "TRIPSTATE"

// Keys understood in config.yaml and, upper-cased with EnvPrefix, in the
// environment.
const (
	KeyBackend       = "backend"
	KeyDataDir       = "data_dir"
	KeyLogLevel      = "log_level"
	KeyLogFormat     = "log_format"
	KeyRedisAddr     = "redis_addr"
	KeyRedisPassword = "redis_password"
	KeyLockTTL       = "lock_ttl"
	KeyBusyTimeout   = "busy_timeout"
)

// Config is the resolved CLI configuration.
type Config struct {
	Backend   string `mapstructure:"backend" validate:"required,oneof=sqlite"`
	DataDir   string `mapstructure:"data_dir"`
	LogLevel  string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	LogFormat string `mapstructure:"log_format" validate:"required,oneof=json console"`

	// RedisAddr enables the distributed per-key locker when set.
	RedisAddr     string        `mapstructure:"redis_addr" validate:"omitempty,hostname_port"`
	RedisPassword string        `mapstructure:"redis_password"`
	LockTTL       time.Duration `mapstructure:"lock_ttl" validate:"gt=0"`

	BusyTimeout time.Duration `mapstructure:"busy_timeout" validate:"gte=0"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load reads configDir/config.yaml when present, then .env files from
// configDir and the working directory, then the environment. A missing
// config file is not an error.
func Load(configDir string) (*Config, error) {
	// .env files never override variables already set.
	for _, path := range []string{filepath.Join(configDir, ".env"), ".env"} {
		if err := loadDotEnv(path); err != nil {
			return nil, err
		}
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	v.SetDefault(KeyBackend, types.BackendSQLite)
	v.SetDefault(KeyDataDir, "")
	v.SetDefault(KeyLogLevel, "warn")
	v.SetDefault(KeyLogFormat, "console")
	v.SetDefault(KeyRedisAddr, "")
	v.SetDefault(KeyRedisPassword, "")
	v.SetDefault(KeyLockTTL, keylock.DefaultTTL)
	v.SetDefault(KeyBusyTimeout, types.DefaultBusyTimeout)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := validate.Struct(&c); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &c, nil
}

// Store returns the backend configuration for dataDir.
func (c *Config) Store(dataDir string) types.Config {
	return types.Config{
		Backend:     c.Backend,
		DataDir:     dataDir,
		BusyTimeout: c.BusyTimeout,
	}
}

// fileContents is the shape written by WriteDefault.
type fileContents struct {
	Backend   string `yaml:"backend"`
	DataDir   string `yaml:"data_dir,omitempty"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// loadDotEnv loads path into the environment. A missing file is skipped.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("loading %s: %w", path, err)
}

// WriteDefault creates configDir/config.yaml unless it already exists. It
// reports whether a file was written.
func WriteDefault(configDir, dataDir string) (bool, error) {
	path := filepath.Join(configDir, FileName)
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("checking %s: %w", path, err)
	}

	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return false, fmt.Errorf("creating config dir: %w", err)
	}
	data, err := yaml.Marshal(&fileContents{
		Backend:   types.BackendSQLite,
		DataDir:   dataDir,
		LogLevel:  "warn",
		LogFormat: "console",
	})
	if err != nil {
		return false, fmt.Errorf("encoding config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return false, fmt.Errorf("writing %s: %w", path, err)
	}
	return true, nil
}
