package cmd

import (
	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "switchboard",
	Short: "Multi-tenant chat bot host",
	Long: `Switchboard routes direct messages from many Slack users to whichever
pluggable handler each user is currently attached to, and governs who
may use which handler.`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", ".switchboard.yml", "config file path")
}
