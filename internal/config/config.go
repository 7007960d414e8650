// Package config loads switchboard configuration from YAML with
// environment overrides.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// Load reads configuration from the given YAML file, then overlays
// environment variable overrides (SWITCHBOARD_*). A double underscore in
// the variable name descends into a nested section, e.g.
// SWITCHBOARD_SLACK__BOT_TOKEN -> slack.bot_token.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	cfg := DefaultConfig()

	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("accessing config %s: %w", path, err)
	}

	if err := k.Load(env.Provider("SWITCHBOARD_", ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, "SWITCHBOARD_"))
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	// The Slack credentials also follow the conventional variable names,
	// so a plain SLACK_BOT_TOKEN in the environment just works.
	if cfg.Slack.BotToken == "" {
		cfg.Slack.BotToken = os.Getenv("SLACK_BOT_TOKEN")
	}
	if cfg.Slack.AppToken == "" {
		cfg.Slack.AppToken = os.Getenv("SLACK_APP_TOKEN")
	}
	if cfg.Slack.SigningSecret == "" {
		cfg.Slack.SigningSecret = os.Getenv("SLACK_SIGNING_SECRET")
	}

	return cfg, nil
}

// Save writes the configuration to the given YAML file path.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Validate checks that the configuration contains valid values.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if len(c.Handlers) == 0 {
		return fmt.Errorf("handlers must list at least one pattern")
	}
	if c.HandlerTimeoutSeconds < 0 {
		return fmt.Errorf("handler_timeout_seconds must be non-negative")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	return nil
}
