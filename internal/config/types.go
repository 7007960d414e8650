package config

import "github.com/zidanhm/switchboard/internal/access"

// Config is the top-level switchboard configuration, corresponding to
// .switchboard.yml.
type Config struct {
	DataDir               string       `yaml:"data_dir" koanf:"data_dir"`
	Handlers              []string     `yaml:"handlers" koanf:"handlers"`
	HandlerTimeoutSeconds int          `yaml:"handler_timeout_seconds" koanf:"handler_timeout_seconds"`
	Slack                 SlackConfig  `yaml:"slack" koanf:"slack"`
	Server                ServerConfig `yaml:"server" koanf:"server"`
	Access                access.Seed  `yaml:"access" koanf:"access"`
}

// SlackConfig holds the Slack credentials. The app token enables Socket
// Mode; without it the host serves the Events API webhook only.
type SlackConfig struct {
	BotToken      string `yaml:"bot_token" koanf:"bot_token"`
	AppToken      string `yaml:"app_token" koanf:"app_token"`
	SigningSecret string `yaml:"signing_secret" koanf:"signing_secret"`
}

// ServerConfig holds the admin API server settings.
type ServerConfig struct {
	Port     int  `yaml:"port" koanf:"port"`
	AllowAll bool `yaml:"allow_all_origins" koanf:"allow_all_origins"`
}
