package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/manifoldco/promptui"
)

// RunWizard runs an interactive configuration wizard and returns the
// resulting Config. It also saves the config to .switchboard.yml.
func RunWizard() (*Config, error) {
	fmt.Println("Welcome to switchboard! Let's configure your bot host.")
	fmt.Println()

	cfg := DefaultConfig()

	dataDirPrompt := promptui.Prompt{
		Label:   "Data directory (SQLite database and handler files)",
		Default: cfg.DataDir,
	}
	dataDir, err := dataDirPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("data dir: %w", err)
	}
	cfg.DataDir = dataDir

	portPrompt := promptui.Prompt{
		Label:   "Admin API port",
		Default: strconv.Itoa(cfg.Server.Port),
		Validate: func(s string) error {
			p, err := strconv.Atoi(s)
			if err != nil || p < 1 || p > 65535 {
				return fmt.Errorf("enter a port between 1 and 65535")
			}
			return nil
		},
	}
	portStr, err := portPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("port: %w", err)
	}
	cfg.Server.Port, _ = strconv.Atoi(portStr)

	handlersPrompt := promptui.Prompt{
		Label:   "Enabled handler patterns (comma-separated globs)",
		Default: "**",
	}
	handlersStr, err := handlersPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("handler patterns: %w", err)
	}
	cfg.Handlers = splitAndTrim(handlersStr)

	adminsPrompt := promptui.Prompt{
		Label:   "Admin user IDs (comma-separated Slack user IDs, blank for none)",
		Default: "",
	}
	adminsStr, err := adminsPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("admins: %w", err)
	}
	cfg.Access.Admins = splitAndTrim(adminsStr)

	timeoutPrompt := promptui.Select{
		Label: "Handler call timeout",
		Items: []string{"30 seconds", "60 seconds", "none"},
	}
	timeoutIdx, _, err := timeoutPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("timeout selection: %w", err)
	}
	cfg.HandlerTimeoutSeconds = []int{30, 60, 0}[timeoutIdx]

	for _, envVar := range []string{"SLACK_BOT_TOKEN", "SLACK_SIGNING_SECRET"} {
		if os.Getenv(envVar) == "" {
			fmt.Printf("\nNote: Set %s in your environment before running switchboard run.\n", envVar)
		}
	}

	if err := cfg.Save(DefaultConfigPath); err != nil {
		return nil, fmt.Errorf("saving config: %w", err)
	}

	fmt.Printf("\nConfiguration saved to %s\n", DefaultConfigPath)
	return cfg, nil
}

// splitAndTrim splits a comma-separated string and trims whitespace.
func splitAndTrim(s string) []string {
	var result []string
	for _, part := range strings.Split(s, ",") {
		if token := strings.TrimSpace(part); token != "" {
			result = append(result, token)
		}
	}
	return result
}
