package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds everything the server needs. Values come from defaults,
// an optional yaml config file, and SHOWTRACKER_* environment variables,
// in increasing order of precedence.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	TMDb     TMDbConfig     `mapstructure:"tmdb"`
	Database DatabaseConfig `mapstructure:"database"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Search   SearchConfig   `mapstructure:"search"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

type TMDbConfig struct {
	BaseURL           string `mapstructure:"base_url"`
	APIKey            string `mapstructure:"api_key"`
	RequestsPerSecond int    `mapstructure:"requests_per_second"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type CacheConfig struct {
	// Backend is "memory" or "redis".
	Backend       string `mapstructure:"backend"`
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
}

type SearchConfig struct {
	// IndexPath is the on-disk bleve index location. Empty means in-memory.
	IndexPath string `mapstructure:"index_path"`
}

type JWTConfig struct {
	Key             string `mapstructure:"key"`
	Issuer          string `mapstructure:"issuer"`
	Audience        string `mapstructure:"audience"`
	ExpirationHours int    `mapstructure:"expiration_hours"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	// File enables rotating file output when set; empty logs to stderr.
	File string `mapstructure:"file"`
}

// Expiry returns the configured token lifetime.
func (j JWTConfig) Expiry() time.Duration {
	return time.Duration(j.ExpirationHours) * time.Hour
}

// Load reads configuration. configFile may be empty, in which case only
// defaults and environment variables apply.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.addr", ":8085")
	v.SetDefault("tmdb.base_url", "https://api.themoviedb.org/3")
	v.SetDefault("tmdb.requests_per_second", 10)
	v.SetDefault("database.path", "showtracker.db")
	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.redis_addr", "localhost:6379")
	v.SetDefault("cache.redis_db", 0)
	v.SetDefault("search.index_path", "")
	v.SetDefault("jwt.issuer", "showtracker")
	v.SetDefault("jwt.audience", "showtracker")
	v.SetDefault("jwt.expiration_hours", 5)
	v.SetDefault("log.level", "info")

	v.SetEnvPrefix("SHOWTRACKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.TMDb.APIKey == "" {
		return fmt.Errorf("tmdb.api_key is required")
	}
	if c.JWT.Key == "" {
		return fmt.Errorf("jwt.key is required")
	}
	if c.TMDb.RequestsPerSecond <= 0 {
		return fmt.Errorf("tmdb.requests_per_second must be positive")
	}
	switch c.Cache.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("cache.backend must be memory or redis, got %q", c.Cache.Backend)
	}
	return nil
}

// BindFlags registers command-line overrides for the most common settings.
func BindFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "path to config file")
	fs.String("addr", "", "listen address override")
	fs.String("db", "", "database path override")
}
