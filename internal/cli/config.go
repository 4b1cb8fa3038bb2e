package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Cache backends accepted by cache.backend.
const (
	backendNone   = "none"
	backendMemory = "memory"
	backendFile   = "file"
	backendRedis  = "redis"
)

// Config is the graphstate configuration, read from graphstate.toml and
// GRAPHSTATE_* environment variables.
type Config struct {
	Log     LogConfig   `mapstructure:"log"`
	Cache   CacheConfig `mapstructure:"cache"`
	Redis   RedisConfig `mapstructure:"redis"`
	Metrics bool        `mapstructure:"metrics"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// CacheConfig selects and sizes the graph definition cache.
type CacheConfig struct {
	Backend string        `mapstructure:"backend"`
	Size    int           `mapstructure:"size"`
	TTL     time.Duration `mapstructure:"ttl"`
	// Dir overrides the file backend directory.
	Dir string `mapstructure:"dir"`
	// Scope prefixes every key, so several projects can share one backend.
	Scope string `mapstructure:"scope"`
}

// RedisConfig configures the redis cache backend.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// loadConfig reads the configuration. An explicit path must exist; without
// one, graphstate.toml is looked up in the working directory and the config
// directory, and a missing file means defaults.
func loadConfig(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("log.level", "info")
	v.SetDefault("cache.backend", backendFile)
	v.SetDefault("cache.size", 256)
	v.SetDefault("cache.ttl", 24*time.Hour)
	v.SetDefault("cache.dir", "")
	v.SetDefault("cache.scope", "")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("metrics", false)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(appName)
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		if dir, err := configDir(); err == nil {
			v.AddConfigPath(dir)
		}
	}

	v.SetEnvPrefix("GRAPHSTATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Cache.Backend {
	case backendNone, backendMemory, backendFile, backendRedis:
	default:
		return fmt.Errorf("cache.backend must be one of none, memory, file, redis, got: %s", c.Cache.Backend)
	}
	if c.Cache.Backend == backendMemory && c.Cache.Size <= 0 {
		return fmt.Errorf("cache.size must be positive, got: %d", c.Cache.Size)
	}
	if c.Cache.TTL < 0 {
		return fmt.Errorf("cache.ttl must not be negative, got: %s", c.Cache.TTL)
	}
	return nil
}

// cacheDir returns the file backend directory.
func (c *Config) cacheDir() (string, error) {
	if c.Cache.Dir != "" {
		return c.Cache.Dir, nil
	}
	return cacheDir()
}
