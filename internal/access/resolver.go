// Package access answers "may user U use handler H" from three unioned
// rule sets: global admins, handlers open to everyone, and per-handler
// allow-list grants.
package access

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/zidanhm/switchboard/internal/db"
)

// Resolver reads and mutates the permission rule sets. It is consulted on
// every dispatch, so grants revoked while a session is active take effect
// on the user's next message.
type Resolver struct {
	db *db.DB
}

// NewResolver creates a Resolver backed by the given database.
func NewResolver(database *db.DB) *Resolver {
	return &Resolver{db: database}
}

// IsAllowed reports whether the user may use the handler: admin
// membership short-circuits, then open handlers, then explicit grants.
func (r *Resolver) IsAllowed(ctx context.Context, userID, handler string) (bool, error) {
	admin, err := r.IsAdmin(ctx, userID)
	if err != nil {
		return false, err
	}
	if admin {
		return true, nil
	}

	open, err := r.exists(ctx, "SELECT 1 FROM open_handlers WHERE handler = ?", handler)
	if err != nil {
		return false, err
	}
	if open {
		return true, nil
	}

	return r.exists(ctx,
		"SELECT 1 FROM handler_grants WHERE handler = ? AND user_id = ?", handler, userID)
}

// Allowed filters names down to the handlers the user may use, preserving
// the given order. Admins get the full list without per-item checks.
func (r *Resolver) Allowed(ctx context.Context, userID string, names []string) ([]string, error) {
	admin, err := r.IsAdmin(ctx, userID)
	if err != nil {
		return nil, err
	}
	if admin {
		out := make([]string, len(names))
		copy(out, names)
		return out, nil
	}

	var allowed []string
	for _, name := range names {
		ok, err := r.IsAllowed(ctx, userID, name)
		if err != nil {
			return nil, err
		}
		if ok {
			allowed = append(allowed, name)
		}
	}
	return allowed, nil
}

// IsAdmin reports whether the user has blanket access to all handlers.
func (r *Resolver) IsAdmin(ctx context.Context, userID string) (bool, error) {
	return r.exists(ctx, "SELECT 1 FROM admins WHERE user_id = ?", userID)
}

// Grant adds the user to the handler's allow-list. Idempotent.
func (r *Resolver) Grant(ctx context.Context, userID, handler string) error {
	return r.exec(ctx,
		"INSERT OR IGNORE INTO handler_grants (handler, user_id) VALUES (?, ?)", handler, userID)
}

// Revoke removes the user from the handler's allow-list. Idempotent.
func (r *Resolver) Revoke(ctx context.Context, userID, handler string) error {
	return r.exec(ctx,
		"DELETE FROM handler_grants WHERE handler = ? AND user_id = ?", handler, userID)
}

// SetOpen marks the handler as open to all users, or closes it again.
func (r *Resolver) SetOpen(ctx context.Context, handler string, open bool) error {
	if open {
		return r.exec(ctx, "INSERT OR IGNORE INTO open_handlers (handler) VALUES (?)", handler)
	}
	return r.exec(ctx, "DELETE FROM open_handlers WHERE handler = ?", handler)
}

// AddAdmin grants the user blanket access. Idempotent.
func (r *Resolver) AddAdmin(ctx context.Context, userID string) error {
	return r.exec(ctx, "INSERT OR IGNORE INTO admins (user_id) VALUES (?)", userID)
}

// RemoveAdmin revokes the user's blanket access. Idempotent.
func (r *Resolver) RemoveAdmin(ctx context.Context, userID string) error {
	return r.exec(ctx, "DELETE FROM admins WHERE user_id = ?", userID)
}

// Seed describes access rules declared in configuration.
type Seed struct {
	Admins []string            `yaml:"admins" koanf:"admins"`
	Open   []string            `yaml:"open" koanf:"open"`
	Grants map[string][]string `yaml:"grants" koanf:"grants"`
}

// SyncFromConfig applies configured rules additively. Rules granted
// through the admin surface at runtime are left untouched.
func (r *Resolver) SyncFromConfig(ctx context.Context, seed Seed) error {
	for _, userID := range seed.Admins {
		if err := r.AddAdmin(ctx, userID); err != nil {
			return err
		}
	}
	for _, handler := range seed.Open {
		if err := r.SetOpen(ctx, handler, true); err != nil {
			return err
		}
	}
	for handler, users := range seed.Grants {
		for _, userID := range users {
			if err := r.Grant(ctx, userID, handler); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *Resolver) exists(ctx context.Context, query string, args ...any) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&one)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, fmt.Errorf("checking permission: %w", err)
}

func (r *Resolver) exec(ctx context.Context, query string, args ...any) error {
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("updating permissions: %w", err)
	}
	return nil
}
