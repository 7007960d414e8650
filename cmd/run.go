package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/zidanhm/switchboard/handlers"
	"github.com/zidanhm/switchboard/internal/access"
	"github.com/zidanhm/switchboard/internal/bots"
	"github.com/zidanhm/switchboard/internal/config"
	"github.com/zidanhm/switchboard/internal/host"
	"github.com/zidanhm/switchboard/internal/server"
	"github.com/zidanhm/switchboard/internal/usage"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the bot host",
	Long: `Starts the switchboard host: loads the built-in handlers, seeds access
rules from configuration, serves the admin API, and connects to Slack
(Socket Mode when an app token is configured, the Events API webhook
otherwise).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// A local .env is optional; absence is not an error.
		if err := godotenv.Load(); err == nil {
			log.Printf("run: loaded environment from .env")
		}

		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		h, err := host.New(ctx, cfg, handlers.Builtins())
		if err != nil {
			return err
		}
		defer h.Close()

		srv := server.New(server.Config{
			Port:     cfg.Server.Port,
			AllowAll: cfg.Server.AllowAll,
		}, h.Dispatcher)

		r := srv.Router()
		access.RegisterRoutes(r, h.Access)
		usage.RegisterRoutes(r, h.Usage)

		gateway := bots.NewGateway(h.Dispatcher)
		if cfg.Slack.BotToken == "" {
			log.Printf("run: no Slack bot token configured; Slack transport disabled")
		} else {
			client := bots.NewClient(cfg.Slack.BotToken, cfg.Slack.AppToken)
			slackHandler := bots.NewSlackHandler(gateway, client, cfg.Slack.SigningSecret)
			slackHandler.RegisterRoutes(r)

			if cfg.Slack.AppToken != "" {
				sm := bots.NewSocketMode(gateway, client)
				go func() {
					if err := sm.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
						log.Printf("run: socket mode stopped: %v", err)
					}
				}()
			}
		}

		go func() {
			<-ctx.Done()
			fmt.Fprintln(os.Stderr, "\nShutting down...")
			srv.Shutdown(context.Background())
		}()

		fmt.Fprintf(os.Stderr, "switchboard v%s starting on port %d\n", Version, cfg.Server.Port)
		fmt.Fprintf(os.Stderr, "  Data dir: %s\n", cfg.DataDir)
		fmt.Fprintf(os.Stderr, "  Handlers: %v\n", h.Registry.Names())

		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
