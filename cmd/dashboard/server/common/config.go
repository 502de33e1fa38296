package common

import (
	"fmt"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/sincaw/chred/pkg/scan"
)

// Config for dashboard server behavior
type Config struct {
	Server   WebServerConfig `yaml:"server" json:"server"`
	Session  SessionConfig   `yaml:"session" json:"session"`
	Maintain MaintainConfig  `yaml:"maintain" json:"maintain"`

	DatabasePath string `yaml:"databasePath" json:"-"`

	onChange func(Config) error
}

// WebServerConfig for api server
type WebServerConfig struct {
	// web serving address (ip:port)
	Addr string `yaml:"addr" json:"addr"`
	// save completed entities to the archive if Archive set to true
	Archive bool `yaml:"archive" json:"archive"`
}

// SessionConfig for the scan session
type SessionConfig struct {
	// largest message a first chunk may declare, 0 for default
	MaxLength int `yaml:"maxLength" json:"maxLength"`
	// an unfinished session is reset after being idle that long, e.g. "10m", empty disables it
	IdleReset string `yaml:"idleReset" json:"idleReset"`
}

// MaintainConfig for background jobs
type MaintainConfig struct {
	// crontab like string, for db compaction schedule, empty disables it
	Cron string `yaml:"cron" json:"cron"`
}

// DefaultConfig is used for fields missing in config file
func DefaultConfig() Config {
	return Config{
		Server:       WebServerConfig{Addr: "127.0.0.1:8080", Archive: true},
		Session:      SessionConfig{MaxLength: scan.DefaultMaxLength},
		Maintain:     MaintainConfig{Cron: "@daily"},
		DatabasePath: ".data",
	}
}

// LoadConfig reads yaml config file, a missing file gives the default config
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()
	content, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if err == nil {
		if err = yaml.Unmarshal(content, &config); err != nil {
			return nil, fmt.Errorf("parse config file %q fail: %w", path, err)
		}
	}
	if err = config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// SaveConfig writes config as yaml
func SaveConfig(path string, config Config) error {
	content, err := yaml.Marshal(config)
	if err != nil {
		return err
	}
	return os.WriteFile(path, content, 0o600)
}

// Validate checks every field
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("empty server addr")
	}
	if c.Session.MaxLength != 0 && c.Session.MaxLength <= scan.HeaderLen {
		return fmt.Errorf("max length %d is too small", c.Session.MaxLength)
	}
	if _, err := c.Session.IdleDuration(); err != nil {
		return err
	}
	if c.Maintain.Cron != "" {
		if _, err := cron.ParseStandard(c.Maintain.Cron); err != nil {
			return fmt.Errorf("invalid cron %q: %w", c.Maintain.Cron, err)
		}
	}
	return nil
}

// IdleDuration parses IdleReset, 0 means never
func (s SessionConfig) IdleDuration() (time.Duration, error) {
	if s.IdleReset == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s.IdleReset)
	if err != nil {
		return 0, fmt.Errorf("invalid idle reset %q: %w", s.IdleReset, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("negative idle reset %q", s.IdleReset)
	}
	return d, nil
}

// SessionOptions returns scan options for new sessions
func (s SessionConfig) SessionOptions() []scan.Option {
	if s.MaxLength == 0 {
		return nil
	}
	return []scan.Option{scan.WithMaxLength(s.MaxLength)}
}

// Update validates conf, replaces self data and triggers onChange function.
// DatabasePath can not be changed.
func (c *Config) Update(conf Config) error {
	conf.DatabasePath = c.DatabasePath
	if err := conf.Validate(); err != nil {
		return err
	}
	conf.onChange = c.onChange
	*c = conf
	if c.onChange == nil {
		return nil
	}
	return c.onChange(conf)
}

// OnChange sets callback function
func (c *Config) OnChange(fn func(conf Config) error) {
	c.onChange = fn
}
