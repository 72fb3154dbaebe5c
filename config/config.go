// Package config loads harvester settings from YAML.
package config

import (
	"os"
	"time"

	"clearance-chromedp/entity"
	"clearance-chromedp/utils"

	"github.com/chromedp/cdproto/network"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Headless    bool                   `yaml:"headless"`
	RemoteURL   string                 `yaml:"remote_url"`
	UserAgent   string                 `yaml:"user_agent"`
	CookieName  string                 `yaml:"cookie_name"`
	Selector    string                 `yaml:"selector"`
	Timeout     time.Duration          `yaml:"timeout"`
	Intercept   bool                   `yaml:"intercept"`
	Allow       []string               `yaml:"allow"`
	Concurrency int                    `yaml:"concurrency"`
	LogLevel    string                 `yaml:"log_level"`
	Flags       map[string]interface{} `yaml:"flags"`
	URLs        []string               `yaml:"urls"`
}

func Default() *Config {
	return &Config{
		CookieName:  "cf_clearance",
		Selector:    "body",
		Timeout:     30 * time.Second,
		Allow:       []string{"Document", "Script", "XHR"},
		Concurrency: 1,
		LogLevel:    "info",
	}
}

// Load reads path over Default.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parse config %s", path)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return errors.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	if c.Concurrency < 1 || c.Concurrency > 50 {
		return errors.Errorf("concurrency must be in 1..50, got %d", c.Concurrency)
	}
	if c.CookieName == "" {
		return errors.New("cookie_name must not be empty")
	}
	if _, err := c.ResourceTypes(); err != nil {
		return err
	}
	return nil
}

// ResourceTypes resolves Allow, dropping duplicates.
func (c *Config) ResourceTypes() ([]network.ResourceType, error) {
	types := make([]network.ResourceType, 0, len(c.Allow))
	for _, name := range c.Allow {
		typ, err := entity.ParseResourceType(name)
		if err != nil {
			return nil, errors.Wrap(err, "allow")
		}
		types = append(types, typ)
	}
	return utils.Unique(types), nil
}

// Policy returns the interception policy, nil when interception is off.
func (c *Config) Policy() (entity.HijackRequestFunc, error) {
	if !c.Intercept {
		return nil, nil
	}
	types, err := c.ResourceTypes()
	if err != nil {
		return nil, err
	}
	return entity.AllowResourceTypes(types...), nil
}
