package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"
)

// Config models remindline.yml.
type Config struct {
	Timezone   string `yaml:"timezone"`
	WorkWindow struct {
		StartHour int `yaml:"start_hour"`
		EndHour   int `yaml:"end_hour"`
	} `yaml:"work_window"`
	Scheduler struct {
		Tick            time.Duration `yaml:"tick"`
		DeliveryTimeout time.Duration `yaml:"delivery_timeout"`
		Enabled         bool          `yaml:"enabled"`
	} `yaml:"scheduler"`
	Hierarchy struct {
		DeveloperID string `yaml:"developer_id"`
	} `yaml:"hierarchy"`
	Notifier struct {
		Kind     string        `yaml:"kind"`
		URL      string        `yaml:"url"`
		Token    string        `yaml:"token"`
		Timeout  time.Duration `yaml:"timeout"`
		Language string        `yaml:"language"`
	} `yaml:"notifier"`
	Relay struct {
		Interval  time.Duration `yaml:"interval"`
		BatchSize int           `yaml:"batch_size"`
		Webhooks  []Webhook     `yaml:"webhooks"`
		Kafka     struct {
			Brokers []string `yaml:"brokers"`
			Topic   string   `yaml:"topic"`
		} `yaml:"kafka"`
	} `yaml:"relay"`
	Server struct {
		Addr      string `yaml:"addr"`
		BasePath  string `yaml:"base_path"`
		JWTSecret string `yaml:"jwt_secret"`
		// AllowUserHeader trusts X-User-Id on unauthenticated requests.
		AllowUserHeader bool `yaml:"allow_user_header"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

type Webhook struct {
	Name   string `yaml:"name"`
	URL    string `yaml:"url"`
	Secret string `yaml:"secret"`
}

// Location resolves the configured time zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Timezone)
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with remindline config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("config.timezone: %w", err)
	}
	if c.WorkWindow.StartHour < 0 || c.WorkWindow.EndHour > 24 || c.WorkWindow.StartHour >= c.WorkWindow.EndHour {
		return fmt.Errorf("config.work_window must satisfy 0 <= start_hour < end_hour <= 24")
	}
	if c.Scheduler.Tick < time.Second {
		return fmt.Errorf("config.scheduler.tick must be at least 1s")
	}
	if c.Scheduler.DeliveryTimeout <= 0 {
		return fmt.Errorf("config.scheduler.delivery_timeout must be positive")
	}
	switch c.Notifier.Kind {
	case "log":
	case "webhook":
		if c.Notifier.URL == "" {
			return fmt.Errorf("config.notifier.url is required for the webhook notifier")
		}
	default:
		return fmt.Errorf("config.notifier.kind must be 'log' or 'webhook'")
	}
	switch c.Notifier.Language {
	case "ru", "en":
	default:
		return fmt.Errorf("config.notifier.language must be 'ru' or 'en'")
	}
	for i, wh := range c.Relay.Webhooks {
		if wh.URL == "" {
			return fmt.Errorf("config.relay.webhooks[%d].url is required", i)
		}
	}
	if len(c.Relay.Kafka.Brokers) > 0 && c.Relay.Kafka.Topic == "" {
		return fmt.Errorf("config.relay.kafka.topic is required when brokers are set")
	}
	if c.Server.BasePath != "" && !strings.HasPrefix(c.Server.BasePath, "/") {
		return fmt.Errorf("config.server.base_path must start with /")
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "remindline.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// LoadOptional returns the defaults if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the default Config.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes. Keys missing from the
// file keep their default values.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

// YAML renders the config, masking secrets.
func (c *Config) YAML() (string, error) {
	masked := *c
	if masked.Notifier.Token != "" {
		masked.Notifier.Token = "***"
	}
	if masked.Server.JWTSecret != "" {
		masked.Server.JWTSecret = "***"
	}
	masked.Relay.Webhooks = make([]Webhook, len(c.Relay.Webhooks))
	for i, wh := range c.Relay.Webhooks {
		if wh.Secret != "" {
			wh.Secret = "***"
		}
		masked.Relay.Webhooks[i] = wh
	}
	out, err := yaml.Marshal(&masked)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

const defaultTemplate = `timezone: Europe/Moscow

work_window:
  start_hour: 10
  end_hour: 19

scheduler:
  enabled: true
  tick: 60s
  delivery_timeout: 10s

hierarchy:
  developer_id: ""

notifier:
  kind: log
  url: ""
  timeout: 10s
  language: ru

relay:
  interval: 2s
  batch_size: 100
  webhooks: []
  kafka:
    brokers: []
    topic: remindline.task-events

server:
  addr: 127.0.0.1:8080
  base_path: /v0
  allow_user_header: false

log:
  level: info
  format: json
`
