package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/zidanhm/switchboard/internal/config"
	"github.com/zidanhm/switchboard/internal/db"
	"github.com/zidanhm/switchboard/internal/usage"
)

func withRecorder(fn func(ctx context.Context, r *usage.Recorder) error) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	database, err := db.Open(filepath.Join(cfg.DataDir, "switchboard.db"))
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer database.Close()

	return fn(context.Background(), usage.NewRecorder(database))
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show usage statistics",
}

var statsUserCmd = &cobra.Command{
	Use:   "user <user-id>",
	Short: "Show a user's usage",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRecorder(func(ctx context.Context, r *usage.Recorder) error {
			stats, err := r.StatsForUser(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("User %s\n", stats.UserID)
			fmt.Printf("  Messages: %d\n", stats.MessageCount)
			if stats.LastActive != nil {
				fmt.Printf("  Last active: %s\n", stats.LastActive.Format("2006-01-02 15:04:05"))
			}
			for handler, count := range stats.ByHandler {
				fmt.Printf("  %s: %d\n", handler, count)
			}
			return nil
		})
	},
}

var statsHandlerCmd = &cobra.Command{
	Use:   "handler <name>",
	Short: "Show a handler's usage",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRecorder(func(ctx context.Context, r *usage.Recorder) error {
			stats, err := r.StatsForHandler(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Handler %s\n", stats.Handler)
			fmt.Printf("  Messages: %d\n", stats.MessageCount)
			fmt.Printf("  Unique users: %d\n", stats.UniqueUsers)
			fmt.Printf("  Errors: %d\n", stats.ErrorCount)
			return nil
		})
	},
}

func init() {
	statsCmd.AddCommand(statsUserCmd, statsHandlerCmd)
	rootCmd.AddCommand(statsCmd)
}
