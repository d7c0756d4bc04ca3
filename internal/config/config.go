package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config models cutroom.yml.
type Config struct {
	Platform struct {
		Name string `yaml:"name" json:"name"`
	} `yaml:"platform" json:"platform"`
	Plans struct {
		Catalog map[string]Plan `yaml:"catalog" json:"catalog"`
		Default string          `yaml:"default" json:"default"`
	} `yaml:"plans" json:"plans"`
	Notifications struct {
		Enabled bool `yaml:"enabled" json:"enabled"`
	} `yaml:"notifications" json:"notifications"`
	Auth struct {
		JWTSecret              string `yaml:"jwt_secret" json:"jwt_secret"`
		AllowLegacyActorHeader bool   `yaml:"allow_legacy_actor_header" json:"allow_legacy_actor_header"`
	} `yaml:"auth" json:"auth"`
	Webhooks []WebhookConfig `yaml:"webhooks,omitempty" json:"webhooks,omitempty"`
}

// Plan bounds what a purchased tier allows. MaxRevisions -1 means unlimited.
type Plan struct {
	MaxRevisions   int `yaml:"max_revisions" json:"max_revisions"`
	TurnaroundDays int `yaml:"turnaround_days" json:"turnaround_days"`
}

type WebhookConfig struct {
	URL            string   `yaml:"url" json:"url"`
	Secret         string   `yaml:"secret,omitempty" json:"secret,omitempty"`
	Events         []string `yaml:"events,omitempty" json:"events,omitempty"`
	Enabled        *bool    `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	TimeoutSeconds int      `yaml:"timeout_seconds,omitempty" json:"timeout_seconds,omitempty"`
}

// MaxRevisionsFor returns the revision cap for a plan name, falling back to
// the default plan when the name is unknown or empty.
func (c *Config) MaxRevisionsFor(plan string) int {
	if p, ok := c.Plans.Catalog[plan]; ok {
		return p.MaxRevisions
	}
	if p, ok := c.Plans.Catalog[c.Plans.Default]; ok {
		return p.MaxRevisions
	}
	return 1
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if len(c.Plans.Catalog) == 0 {
		return fmt.Errorf("config.plans.catalog is required")
	}
	for name, plan := range c.Plans.Catalog {
		if name == "" {
			return fmt.Errorf("config.plans.catalog contains empty plan name")
		}
		if plan.MaxRevisions < -1 {
			return fmt.Errorf("plan %s: max_revisions must be >= -1", name)
		}
	}
	if c.Plans.Default == "" {
		return fmt.Errorf("config.plans.default is required")
	}
	if _, ok := c.Plans.Catalog[c.Plans.Default]; !ok {
		return fmt.Errorf("config.plans.default %s not in catalog", c.Plans.Default)
	}
	for i, hook := range c.Webhooks {
		if hook.URL == "" {
			return fmt.Errorf("webhook %d has empty url", i)
		}
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "cutroom.yml")
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create it with cutroom config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.Unmarshal([]byte(defaultTemplate), &cfg)
	return &cfg
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `platform:
  name: cutroom

plans:
  catalog:
    basic:
      max_revisions: 1
      turnaround_days: 4
    monthly-pass:
      max_revisions: 2
      turnaround_days: 3
    premium:
      max_revisions: 3
      turnaround_days: 2
    ultimate:
      max_revisions: -1
      turnaround_days: 1
  default: basic

notifications:
  enabled: true

auth:
  jwt_secret: ""
  allow_legacy_actor_header: false
`
