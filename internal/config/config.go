// Package config handles livereload configuration from YAML files.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/livereload/reloader"
)

// ErrNoRoot is returned by Validate when no root directory is configured.
var ErrNoRoot = errors.New("config: no root directory")

// Config is the top-level livereload configuration.
type Config struct {
	Root    string        `yaml:"root"`
	Listen  string        `yaml:"listen"`
	Watch   WatchConfig   `yaml:"watch"`
	Reload  ReloadConfig  `yaml:"reload"`
	Browser BrowserConfig `yaml:"browser"`
	Journal JournalConfig `yaml:"journal"`
	Sinks   []SinkConfig  `yaml:"sinks"`
}

// WatchConfig controls the file watcher.
type WatchConfig struct {
	Include  []string      `yaml:"include"`
	Exclude  []string      `yaml:"exclude"`
	Debounce time.Duration `yaml:"debounce"`
}

// ReloadConfig is the default ReloadOptions sent with every change.
type ReloadConfig struct {
	LiveCSS                 *bool         `yaml:"live_css"`
	LiveImg                 *bool         `yaml:"live_img"`
	StylesheetReloadTimeout time.Duration `yaml:"stylesheet_reload_timeout"`
	ServerURL               string        `yaml:"server_url"`
	OverrideURL             string        `yaml:"override_url"`
}

// BrowserConfig controls the Chrome sessions driven over CDP.
type BrowserConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Remote          string        `yaml:"remote"`
	Headless        *bool         `yaml:"headless"`
	Stealth         bool          `yaml:"stealth"`
	Pages           []string      `yaml:"pages"`
	RecycleInterval time.Duration `yaml:"recycle_interval"`
}

// JournalConfig controls the SQLite reload journal.
type JournalConfig struct {
	Path      string        `yaml:"path"`
	Retention time.Duration `yaml:"retention"`
}

// SinkConfig defines an extra output backend.
type SinkConfig struct {
	Type string `yaml:"type"` // stdout | webhook
	URL  string `yaml:"url"`  // for webhook
}

// LoadFile reads a YAML configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration and applies defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func (c *Config) applyDefaults() {
	if c.Root == "" {
		c.Root = "."
	}
	if c.Listen == "" {
		c.Listen = "127.0.0.1:35729"
	}
	if c.Watch.Debounce <= 0 {
		c.Watch.Debounce = 250 * time.Millisecond
	}
	if len(c.Watch.Exclude) == 0 {
		c.Watch.Exclude = []string{".git/**", "node_modules/**", "**/*.swp", "**/*~"}
	}
	if c.Reload.LiveCSS == nil {
		c.Reload.LiveCSS = boolPtr(true)
	}
	if c.Reload.LiveImg == nil {
		c.Reload.LiveImg = boolPtr(true)
	}
	if c.Reload.StylesheetReloadTimeout <= 0 {
		c.Reload.StylesheetReloadTimeout = reloader.DefaultStylesheetReloadTimeout
	}
	if c.Browser.Headless == nil {
		c.Browser.Headless = boolPtr(true)
	}
	if c.Browser.RecycleInterval <= 0 {
		c.Browser.RecycleInterval = 4 * time.Hour
	}
	if c.Journal.Path == "" {
		c.Journal.Path = "livereload.db"
	}
	if c.Journal.Retention <= 0 {
		c.Journal.Retention = 7 * 24 * time.Hour
	}
}

// Validate checks the configuration and resolves Root to an absolute path.
func (c *Config) Validate() error {
	if c.Root == "" {
		return ErrNoRoot
	}
	abs, err := filepath.Abs(c.Root)
	if err != nil {
		return fmt.Errorf("config: root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("config: root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("config: root %s is not a directory", abs)
	}
	c.Root = abs
	for i, s := range c.Sinks {
		switch s.Type {
		case "stdout":
		case "webhook":
			if s.URL == "" {
				return fmt.Errorf("config: sinks[%d]: webhook without url", i)
			}
		default:
			return fmt.Errorf("config: sinks[%d]: unknown type %q", i, s.Type)
		}
	}
	return nil
}

// Options returns the reload options every change carries by default.
func (c *Config) Options() reloader.Options {
	return reloader.Options{
		LiveCSS:                 c.Reload.LiveCSS != nil && *c.Reload.LiveCSS,
		LiveImg:                 c.Reload.LiveImg != nil && *c.Reload.LiveImg,
		StylesheetReloadTimeout: c.Reload.StylesheetReloadTimeout,
		ServerURL:               c.Reload.ServerURL,
		OverrideURL:             c.Reload.OverrideURL,
	}
}

func boolPtr(b bool) *bool { return &b }
