package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"canonurl/internal/urlnorm"
)

type Config struct {
	Env             string                 `mapstructure:"env"`
	HTTPAddr        string                 `mapstructure:"http_addr"`
	LogLevel        string                 `mapstructure:"log_level"`
	ShutdownTimeout time.Duration          `mapstructure:"shutdown_timeout"`
	RateLimit       RateLimitConfig        `mapstructure:"ratelimit"`
	Normalize       map[string]interface{} `mapstructure:"normalize"`
}

type RateLimitConfig struct {
	PerMinute int `mapstructure:"per_minute"`
	Burst     int `mapstructure:"burst"`
}

// Load reads an optional YAML file at path (or ./config.yaml) and
// URLCANON_* environment variables over built-in defaults.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("URLCANON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	applyDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg,
		viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
		)),
	); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	if cfg.RateLimit.PerMinute <= 0 || cfg.RateLimit.Burst <= 0 {
		return Config{}, fmt.Errorf("ratelimit.per_minute and ratelimit.burst must be positive")
	}
	if _, err := cfg.NormalizeOptions(); err != nil {
		return Config{}, fmt.Errorf("normalize: %w", err)
	}
	return cfg, nil
}

// NormalizeOptions returns the service-wide normalization defaults.
func (c Config) NormalizeOptions() (urlnorm.Options, error) {
	return urlnorm.DecodeOptions(c.Normalize)
}

func applyDefaults(v *viper.Viper) {
	v.SetDefault("env", "development")
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("shutdown_timeout", "5s")

	v.SetDefault("ratelimit.per_minute", 120)
	v.SetDefault("ratelimit.burst", 30)
}
