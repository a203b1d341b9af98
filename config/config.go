package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"hubgate/internal/validation"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Store    StoreConfig    `yaml:"store"`
	Platform PlatformConfig `yaml:"platform"`
	Hub      HubConfig      `yaml:"hub"`
	Cache    CacheConfig    `yaml:"cache"`
	Log      LogConfig      `yaml:"log"`
}

type ServerConfig struct {
	Addr               string        `yaml:"addr"`
	LoginRateLimit     int           `yaml:"login_rate_limit"`
	LoginRateWindow    time.Duration `yaml:"login_rate_window"`
	RequestTimeout     time.Duration `yaml:"request_timeout"`
	ShutdownTimeout    time.Duration `yaml:"shutdown_timeout"`
	SessionIdleTimeout time.Duration `yaml:"session_idle_timeout"`
}

type StoreConfig struct {
	Driver       string        `yaml:"driver" validate:"oneof=postgres postgrest" label:"store driver"`
	DSN          string        `yaml:"dsn" validate:"required_if=Driver postgres" label:"store dsn"`
	MaxOpenConns int           `yaml:"max_open_conns"`
	MaxIdleConns int           `yaml:"max_idle_conns"`
	RestURL      string        `yaml:"rest_url" validate:"required_if=Driver postgrest" label:"store rest_url"`
	APIKey       string        `yaml:"api_key" validate:"required_if=Driver postgrest" label:"store api_key"`
	Timeout      time.Duration `yaml:"timeout"`
}

type PlatformConfig struct {
	AuthBaseURL    string        `yaml:"auth_base_url" validate:"required,url" label:"platform auth_base_url"`
	HistoryBaseURL string        `yaml:"history_base_url" validate:"omitempty,url" label:"platform history_base_url"`
	APIKey         string        `yaml:"api_key"`
	Timeout        time.Duration `yaml:"timeout"`
}

type HubConfig struct {
	RequestTimeout    time.Duration `yaml:"request_timeout"`
	HomeProbeTimeout  time.Duration `yaml:"home_probe_timeout"`
	CloudProbeTimeout time.Duration `yaml:"cloud_probe_timeout"`
}

type CacheConfig struct {
	Backend           string        `yaml:"backend" validate:"oneof=memory redis" label:"cache backend"`
	TTL               time.Duration `yaml:"ttl"`
	BackgroundTimeout time.Duration `yaml:"background_timeout"`
	Redis             RedisConfig   `yaml:"redis"`
}

type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if err := validation.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Cache.Backend == "redis" && c.Cache.Redis.Addr == "" {
		return fmt.Errorf("invalid config: cache.redis.addr is required for the redis backend")
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.LoginRateLimit == 0 {
		c.Server.LoginRateLimit = 10
	}
	if c.Server.LoginRateWindow == 0 {
		c.Server.LoginRateWindow = time.Minute
	}
	if c.Server.RequestTimeout == 0 {
		c.Server.RequestTimeout = 30 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Server.SessionIdleTimeout == 0 {
		c.Server.SessionIdleTimeout = 12 * time.Hour
	}
	if c.Store.Driver == "" {
		c.Store.Driver = "postgres"
	}
	if c.Store.MaxOpenConns == 0 {
		c.Store.MaxOpenConns = 10
	}
	if c.Store.MaxIdleConns == 0 {
		c.Store.MaxIdleConns = 5
	}
	if c.Store.Timeout == 0 {
		c.Store.Timeout = 10 * time.Second
	}
	if c.Platform.Timeout == 0 {
		c.Platform.Timeout = 10 * time.Second
	}
	if c.Hub.RequestTimeout == 0 {
		c.Hub.RequestTimeout = 5 * time.Second
	}
	if c.Hub.HomeProbeTimeout == 0 {
		c.Hub.HomeProbeTimeout = 2 * time.Second
	}
	if c.Hub.CloudProbeTimeout == 0 {
		c.Hub.CloudProbeTimeout = 4 * time.Second
	}
	if c.Cache.Backend == "" {
		c.Cache.Backend = "memory"
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = 10 * time.Minute
	}
	if c.Cache.BackgroundTimeout == 0 {
		c.Cache.BackgroundTimeout = 15 * time.Second
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}
