package config

// DefaultConfigPath is where Load and the wizard look for configuration.
const DefaultConfigPath = ".switchboard.yml"

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		DataDir:               ".switchboard",
		Handlers:              []string{"**"},
		HandlerTimeoutSeconds: 30,
		Server: ServerConfig{
			Port: 8080,
		},
	}
}
