package rebrand

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/rebrand/complete"
	"github.com/hazyhaar/rebrand/detect"
)

// Config is the daemon's YAML configuration.
type Config struct {
	Listen    string `yaml:"listen"`
	StorePath string `yaml:"store_path"`
	LogLevel  string `yaml:"log_level"`

	Completion struct {
		Endpoint    string  `yaml:"endpoint"`
		Model       string  `yaml:"model"`
		Temperature float64 `yaml:"temperature"`
		MaxTokens   int     `yaml:"max_tokens"`
		TimeoutMs   int     `yaml:"timeout_ms"`
		MaxRetries  int     `yaml:"max_retries"`
		BackoffMs   int     `yaml:"backoff_ms"`
		PaceMs      int     `yaml:"pace_ms"`
	} `yaml:"completion"`

	Browser struct {
		Remote   string `yaml:"remote"`
		Headless *bool  `yaml:"headless"`
		Stealth  bool   `yaml:"stealth"`
	} `yaml:"browser"`

	Detection struct {
		MaxElements int `yaml:"max_elements"`
		MinTextLen  int `yaml:"min_text_len"`
		MaxTextLen  int `yaml:"max_text_len"`
	} `yaml:"detection"`

	Engine struct {
		PaceMs      int `yaml:"pace_ms"`
		HighlightMs int `yaml:"highlight_ms"`
	} `yaml:"engine"`

	Watcher struct {
		SettleMs int `yaml:"settle_ms"`
	} `yaml:"watcher"`
}

func (c *Config) applyDefaults() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8090"
	}
	if c.StorePath == "" {
		c.StorePath = "rebrand.db"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Completion.Endpoint == "" {
		c.Completion.Endpoint = "https://api.openai.com"
	}
	if c.Completion.Model == "" {
		c.Completion.Model = "gpt-4o-mini"
	}
	if c.Completion.TimeoutMs <= 0 {
		c.Completion.TimeoutMs = 60000
	}
	if c.Browser.Headless == nil {
		headless := true
		c.Browser.Headless = &headless
	}
	if c.Watcher.SettleMs <= 0 {
		c.Watcher.SettleMs = 100
	}
	if c.Engine.HighlightMs <= 0 {
		c.Engine.HighlightMs = 1000
	}
}

// LoadConfig reads YAML from path and applies defaults. A missing file
// yields the pure defaults.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("rebrand: read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("rebrand: parse config %s: %w", path, err)
		}
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// CompletionConfig builds the completion client config with the given
// credential. The credential travels by argument only; it never appears in
// the YAML struct.
func (c *Config) CompletionConfig(credential string) complete.Config {
	return complete.Config{
		Endpoint:   c.Completion.Endpoint,
		Model:      c.Completion.Model,
		Credential: credential,
		Timeout:    time.Duration(c.Completion.TimeoutMs) * time.Millisecond,
		MaxRetries: c.Completion.MaxRetries,
		Backoff:    time.Duration(c.Completion.BackoffMs) * time.Millisecond,
		Pace:       time.Duration(c.Completion.PaceMs) * time.Millisecond,
	}
}

// SessionOptions builds session options from the config; the caller fills
// the collaborators (Chat, Applier, Store, Logger).
func (c *Config) SessionOptions() Options {
	return Options{
		Limits: detect.Limits{
			MaxElements: c.Detection.MaxElements,
			MinTextLen:  c.Detection.MinTextLen,
			MaxTextLen:  c.Detection.MaxTextLen,
		},
		Pace:         time.Duration(c.Engine.PaceMs) * time.Millisecond,
		Settle:       time.Duration(c.Watcher.SettleMs) * time.Millisecond,
		HighlightFor: time.Duration(c.Engine.HighlightMs) * time.Millisecond,
	}
}
