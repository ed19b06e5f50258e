package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values like "5s" parse. yaml.v3
// does not decode duration strings natively.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("duration must be a string like \"5s\": %w", err)
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the value as a time.Duration
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	API       APIConfig       `yaml:"api"`
	Store     StoreConfig     `yaml:"store"`
	Hub       HubConfig       `yaml:"hub"`
	Assist    AssistConfig    `yaml:"assist"`
	NATS      NATSConfig      `yaml:"nats"`
	JWT       JWTConfig       `yaml:"jwt"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	CORS      CORSConfig      `yaml:"cors"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig represents server identity
type ServerConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// APIConfig represents the HTTP listener configuration
type APIConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StoreConfig represents the external realtime store
type StoreConfig struct {
	URL     string   `yaml:"url"`
	Secret  string   `yaml:"secret"`
	Timeout Duration `yaml:"timeout"`
}

// HubConfig represents the downstream home-automation hub
type HubConfig struct {
	URL     string   `yaml:"url"`
	Token   string   `yaml:"token"`
	Timeout Duration `yaml:"timeout"`
}

// AssistConfig represents the text-generation API. The assist endpoint is
// disabled when APIKey is empty.
type AssistConfig struct {
	URL      string   `yaml:"url"`
	APIKey   string   `yaml:"api_key"`
	Model    string   `yaml:"model"`
	Preamble string   `yaml:"preamble"`
	Timeout  Duration `yaml:"timeout"`
}

// NATSConfig represents the optional audit event feed
type NATSConfig struct {
	URL               string   `yaml:"url"`
	Username          string   `yaml:"username"`
	Password          string   `yaml:"password"`
	MaxReconnects     int      `yaml:"max_reconnects"`
	ReconnectInterval Duration `yaml:"reconnect_interval"`
}

// JWTConfig represents admin token validation
type JWTConfig struct {
	Secret string `yaml:"secret"`
}

// RateLimitConfig represents per-IP fixed-window limits
type RateLimitConfig struct {
	Window        Duration `yaml:"window"`
	ControlPerMin int      `yaml:"control_per_min"`
	AssistPerMin  int      `yaml:"assist_per_min"`
}

// CORSConfig represents the browser origin allowlist
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load loads configuration from file
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.applyEnvOverrides()
	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applyEnvOverrides applies environment variable overrides
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("STORE_URL"); v != "" {
		c.Store.URL = v
	}
	if v := os.Getenv("STORE_SECRET"); v != "" {
		c.Store.Secret = v
	}
	if v := os.Getenv("HUB_URL"); v != "" {
		c.Hub.URL = v
	}
	if v := os.Getenv("HUB_TOKEN"); v != "" {
		c.Hub.Token = v
	}
	if v := os.Getenv("ASSIST_API_KEY"); v != "" {
		c.Assist.APIKey = v
	}
	if v := os.Getenv("NATS_URL"); v != "" {
		c.NATS.URL = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		c.JWT.Secret = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

// applyDefaults fills in unset values
func (c *Config) applyDefaults() {
	if c.API.Port == 0 {
		c.API.Port = 8090
	}
	if c.Store.Timeout == 0 {
		c.Store.Timeout = Duration(5 * time.Second)
	}
	if c.Hub.Timeout == 0 {
		c.Hub.Timeout = Duration(10 * time.Second)
	}
	if c.Assist.Timeout == 0 {
		c.Assist.Timeout = Duration(30 * time.Second)
	}
	if c.NATS.ReconnectInterval == 0 {
		c.NATS.ReconnectInterval = Duration(5 * time.Second)
	}
	if c.RateLimit.Window == 0 {
		c.RateLimit.Window = Duration(time.Minute)
	}
	if c.RateLimit.ControlPerMin == 0 {
		c.RateLimit.ControlPerMin = 20
	}
	if c.RateLimit.AssistPerMin == 0 {
		c.RateLimit.AssistPerMin = 10
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// validate checks the settings the proxy cannot run without
func (c *Config) validate() error {
	if c.Store.URL == "" {
		return fmt.Errorf("store.url is required")
	}
	if c.Hub.URL == "" {
		return fmt.Errorf("hub.url is required")
	}
	if c.Hub.Token == "" {
		return fmt.Errorf("hub.token is required")
	}
	return nil
}
