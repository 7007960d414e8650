// Package host wires the core components together: database, registry,
// stores and dispatcher, with explicit setup and teardown.
package host

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/zidanhm/switchboard/internal/access"
	"github.com/zidanhm/switchboard/internal/config"
	"github.com/zidanhm/switchboard/internal/db"
	"github.com/zidanhm/switchboard/internal/dispatch"
	"github.com/zidanhm/switchboard/internal/handler"
	"github.com/zidanhm/switchboard/internal/session"
	"github.com/zidanhm/switchboard/internal/usage"
)

// Registration binds a handler name to its factory.
type Registration struct {
	Name    string
	Factory handler.Factory
}

// Host owns every core component for one running switchboard process.
type Host struct {
	Config     *config.Config
	DB         *db.DB
	Registry   *handler.Registry
	Sessions   *session.Store
	Access     *access.Resolver
	Usage      *usage.Recorder
	Dispatcher *dispatch.Dispatcher
}

// New builds a Host from configuration: opens the database, registers
// and loads the given handlers, seeds access rules, and assembles the
// dispatcher.
func New(ctx context.Context, cfg *config.Config, registrations []Registration) (*Host, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("creating data dir %s: %w", cfg.DataDir, err)
	}

	database, err := db.Open(filepath.Join(cfg.DataDir, "switchboard.db"))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	registry := handler.NewRegistry(handler.Env{
		DB:      database,
		DataDir: cfg.DataDir,
	}, cfg.Handlers)
	for _, reg := range registrations {
		registry.Register(reg.Name, reg.Factory)
	}
	loaded := registry.LoadAll()
	log.Printf("host: loaded %d of %d registered handlers", len(loaded), len(registrations))

	resolver := access.NewResolver(database)
	if err := resolver.SyncFromConfig(ctx, cfg.Access); err != nil {
		database.Close()
		return nil, fmt.Errorf("seeding access rules: %w", err)
	}

	sessions := session.NewStore(database)
	recorder := usage.NewRecorder(database)

	var opts []dispatch.Option
	if cfg.HandlerTimeoutSeconds > 0 {
		opts = append(opts, dispatch.WithHandlerTimeout(time.Duration(cfg.HandlerTimeoutSeconds)*time.Second))
	}
	dispatcher := dispatch.New(registry, sessions, resolver, recorder, opts...)

	return &Host{
		Config:     cfg,
		DB:         database,
		Registry:   registry,
		Sessions:   sessions,
		Access:     resolver,
		Usage:      recorder,
		Dispatcher: dispatcher,
	}, nil
}

// Close releases the host's resources.
func (h *Host) Close() error {
	return h.DB.Close()
}
