package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/zidanhm/switchboard/internal/access"
	"github.com/zidanhm/switchboard/internal/config"
	"github.com/zidanhm/switchboard/internal/db"
)

// withResolver opens the configured database and hands a Resolver to fn.
func withResolver(fn func(ctx context.Context, r *access.Resolver) error) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	database, err := db.Open(filepath.Join(cfg.DataDir, "switchboard.db"))
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer database.Close()

	return fn(context.Background(), access.NewResolver(database))
}

var accessCmd = &cobra.Command{
	Use:   "access",
	Short: "Manage who may use which handler",
}

var accessGrantCmd = &cobra.Command{
	Use:   "grant <user-id> <handler>",
	Short: "Allow a user to use a handler",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withResolver(func(ctx context.Context, r *access.Resolver) error {
			if err := r.Grant(ctx, args[0], args[1]); err != nil {
				return err
			}
			fmt.Printf("Granted %s access to %s\n", args[0], args[1])
			return nil
		})
	},
}

var accessRevokeCmd = &cobra.Command{
	Use:   "revoke <user-id> <handler>",
	Short: "Remove a user's access to a handler",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withResolver(func(ctx context.Context, r *access.Resolver) error {
			if err := r.Revoke(ctx, args[0], args[1]); err != nil {
				return err
			}
			fmt.Printf("Revoked %s's access to %s\n", args[0], args[1])
			return nil
		})
	},
}

var accessOpenCmd = &cobra.Command{
	Use:   "open <handler>",
	Short: "Open a handler to all users",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withResolver(func(ctx context.Context, r *access.Resolver) error {
			if err := r.SetOpen(ctx, args[0], true); err != nil {
				return err
			}
			fmt.Printf("Opened %s to all users\n", args[0])
			return nil
		})
	},
}

var accessCloseCmd = &cobra.Command{
	Use:   "close <handler>",
	Short: "Close a handler (allow-list and admins only)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withResolver(func(ctx context.Context, r *access.Resolver) error {
			if err := r.SetOpen(ctx, args[0], false); err != nil {
				return err
			}
			fmt.Printf("Closed %s\n", args[0])
			return nil
		})
	},
}

var accessAdminCmd = &cobra.Command{
	Use:   "admin <add|remove> <user-id>",
	Short: "Manage admin users",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withResolver(func(ctx context.Context, r *access.Resolver) error {
			switch args[0] {
			case "add":
				if err := r.AddAdmin(ctx, args[1]); err != nil {
					return err
				}
				fmt.Printf("Added admin %s\n", args[1])
			case "remove":
				if err := r.RemoveAdmin(ctx, args[1]); err != nil {
					return err
				}
				fmt.Printf("Removed admin %s\n", args[1])
			default:
				return fmt.Errorf("unknown admin action %q: use add or remove", args[0])
			}
			return nil
		})
	},
}

func init() {
	accessCmd.AddCommand(accessGrantCmd, accessRevokeCmd, accessOpenCmd, accessCloseCmd, accessAdminCmd)
	rootCmd.AddCommand(accessCmd)
}
