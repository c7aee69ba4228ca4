package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Cache   CacheConfig   `mapstructure:"cache"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Fetch   FetchConfig   `mapstructure:"fetch"`
	Sources SourcesConfig `mapstructure:"sources"`
	Log     LogConfig     `mapstructure:"log"`
}

type CacheConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

type HTTPConfig struct {
	Timeout    time.Duration `mapstructure:"timeout"`
	Retries    int           `mapstructure:"retries"`
	RetryWait  time.Duration `mapstructure:"retry_wait"`
	RetryMax   time.Duration `mapstructure:"retry_max_wait"`
	RatePerSec float64       `mapstructure:"rate_per_sec"`
	RateBurst  int           `mapstructure:"rate_burst"`
}

type FetchConfig struct {
	DefaultLimit     int           `mapstructure:"default_limit"`
	AggregateTimeout time.Duration `mapstructure:"aggregate_timeout"`
}

type SourcesConfig struct {
	HackerNews SourceConfig `mapstructure:"hackernews"`
	DevTo      SourceConfig `mapstructure:"devto"`
	GitHub     SourceConfig `mapstructure:"github"`
	Lobsters   SourceConfig `mapstructure:"lobsters"`
}

type SourceConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	BaseURL string `mapstructure:"base_url"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// Load reads configuration from an optional yaml file plus DEVPULSE_*
// environment variables. A missing config file is not an error; the
// defaults describe a working setup.
func Load(configPath string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	v.SetEnvPrefix("devpulse")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && configPath != "" {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("cache.ttl", 5*time.Minute)

	v.SetDefault("http.timeout", 10*time.Second)
	v.SetDefault("http.retries", 2) // resty counts retries, not attempts
	v.SetDefault("http.retry_wait", 500*time.Millisecond)
	v.SetDefault("http.retry_max_wait", 5*time.Second)
	v.SetDefault("http.rate_per_sec", 5)
	v.SetDefault("http.rate_burst", 10)

	v.SetDefault("fetch.default_limit", 30)
	v.SetDefault("fetch.aggregate_timeout", 30*time.Second)

	v.SetDefault("sources.hackernews.enabled", true)
	v.SetDefault("sources.hackernews.base_url", "https://hacker-news.firebaseio.com/v0")
	v.SetDefault("sources.devto.enabled", true)
	v.SetDefault("sources.devto.base_url", "https://dev.to/api")
	v.SetDefault("sources.github.enabled", true)
	v.SetDefault("sources.github.base_url", "https://api.github.com")
	v.SetDefault("sources.lobsters.enabled", false)
	v.SetDefault("sources.lobsters.base_url", "https://lobste.rs/rss")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.file", "")
}
