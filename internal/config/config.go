package config

import (
	"bytes"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config models siteline.yml.
type Config struct {
	Server struct {
		Addr     string `yaml:"addr"`
		BasePath string `yaml:"base_path"`
	} `yaml:"server"`
	Auth struct {
		JWTSecret              string `yaml:"jwt_secret"`
		AllowLegacyActorHeader bool   `yaml:"allow_legacy_actor_header"`
		DevLogin               bool   `yaml:"dev_login"`
	} `yaml:"auth"`
	Bootstrap struct {
		AdminID string `yaml:"admin_id"`
	} `yaml:"bootstrap"`
	Notify struct {
		NATSURL       string `yaml:"nats_url"`
		SubjectPrefix string `yaml:"subject_prefix"`
		Log           bool   `yaml:"log"`
	} `yaml:"notify"`
	Evidence struct {
		Dir      string `yaml:"dir"`
		MaxBytes int64  `yaml:"max_bytes"`
	} `yaml:"evidence"`
	Webhooks []Webhook `yaml:"webhooks"`
	Log      struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// Webhook forwards matching event-log rows to URL.
type Webhook struct {
	ID             string   `yaml:"id"`
	URL            string   `yaml:"url"`
	Events         []string `yaml:"events"`
	Secret         string   `yaml:"secret"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
	Enabled        bool     `yaml:"enabled"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create it with siteline config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("config.server.addr is required")
	}
	if c.Server.BasePath != "" && !strings.HasPrefix(c.Server.BasePath, "/") {
		return fmt.Errorf("config.server.base_path must start with /")
	}
	if c.Evidence.Dir == "" {
		return fmt.Errorf("config.evidence.dir is required")
	}
	if c.Evidence.MaxBytes <= 0 {
		return fmt.Errorf("config.evidence.max_bytes must be positive")
	}
	if c.Notify.NATSURL != "" {
		if _, err := url.Parse(c.Notify.NATSURL); err != nil {
			return fmt.Errorf("config.notify.nats_url: %w", err)
		}
	}
	switch c.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config.log.level %q is not one of debug, info, warn, error", c.Log.Level)
	}
	switch c.Log.Format {
	case "", "auto", "text", "json":
	default:
		return fmt.Errorf("config.log.format %q is not one of auto, text, json", c.Log.Format)
	}
	seen := map[string]bool{}
	for i, h := range c.Webhooks {
		if h.ID == "" {
			return fmt.Errorf("config.webhooks[%d].id is required", i)
		}
		if seen[h.ID] {
			return fmt.Errorf("config.webhooks has duplicate id %s", h.ID)
		}
		seen[h.ID] = true
		u, err := url.Parse(h.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Errorf("webhook %s url must be http(s)", h.ID)
		}
		if h.TimeoutSeconds < 0 {
			return fmt.Errorf("webhook %s timeout_seconds must not be negative", h.ID)
		}
		for _, evt := range h.Events {
			if evt == "" {
				return fmt.Errorf("webhook %s has empty event type", h.ID)
			}
		}
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "siteline.yml")
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

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes. Keys missing
// from data keep their default values.
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

// EvidenceDir resolves the evidence directory against workspace.
func (c *Config) EvidenceDir(workspace string) string {
	if filepath.IsAbs(c.Evidence.Dir) {
		return c.Evidence.Dir
	}
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, c.Evidence.Dir)
}

const defaultTemplate = `server:
  addr: 127.0.0.1:8080
  base_path: ""

auth:
  jwt_secret: ""
  allow_legacy_actor_header: false
  dev_login: false

bootstrap:
  admin_id: admin

notify:
  nats_url: ""
  subject_prefix: siteline
  log: true

evidence:
  dir: .siteline/evidence
  max_bytes: 10485760

webhooks: []

log:
  level: info
  format: auto
`
