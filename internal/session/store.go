// Package session persists which handler each user is attached to.
package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/zidanhm/switchboard/internal/db"
)

// Session is one user's durable routing state. Handler is empty when the
// user has no handler attached.
type Session struct {
	UserID     string    `json:"user_id"`
	Handler    string    `json:"handler,omitempty"`
	LastActive time.Time `json:"last_active"`
}

// Store provides single-row operations on user sessions. Operations for
// different users are independent; callers that need ordering for one
// user serialize above this layer.
type Store struct {
	db *db.DB
}

// NewStore creates a Store backed by the given database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// Current returns the name of the user's attached handler, or "" when the
// user has none (including when no session row exists yet).
func (s *Store) Current(ctx context.Context, userID string) (string, error) {
	var handler sql.NullString
	err := s.db.QueryRowContext(ctx,
		"SELECT current_handler FROM user_sessions WHERE user_id = ?", userID,
	).Scan(&handler)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading session for %s: %w", userID, err)
	}
	if !handler.Valid {
		return "", nil
	}
	return handler.String, nil
}

// Set upserts the user's session, attaching the named handler (or
// detaching when name is empty) and bumping last_active.
func (s *Store) Set(ctx context.Context, userID, name string) error {
	var handler sql.NullString
	if name != "" {
		handler = sql.NullString{String: name, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_sessions (user_id, current_handler, last_active)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			current_handler = excluded.current_handler,
			last_active = excluded.last_active`,
		userID, handler, now())
	if err != nil {
		return fmt.Errorf("setting session for %s: %w", userID, err)
	}
	return nil
}

// Clear detaches the user from any handler.
func (s *Store) Clear(ctx context.Context, userID string) error {
	return s.Set(ctx, userID, "")
}

// Touch bumps last_active without changing the attached handler. A user
// with no session row is left untouched.
func (s *Store) Touch(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE user_sessions SET last_active = ? WHERE user_id = ?", now(), userID)
	if err != nil {
		return fmt.Errorf("touching session for %s: %w", userID, err)
	}
	return nil
}

// Get returns the full session row, or nil when none exists.
func (s *Store) Get(ctx context.Context, userID string) (*Session, error) {
	var (
		sess    Session
		handler sql.NullString
		ts      string
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT user_id, current_handler, last_active FROM user_sessions WHERE user_id = ?",
		userID,
	).Scan(&sess.UserID, &handler, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading session for %s: %w", userID, err)
	}
	if handler.Valid {
		sess.Handler = handler.String
	}
	if t, parseErr := time.Parse(time.DateTime, ts); parseErr == nil {
		sess.LastActive = t
	}
	return &sess, nil
}

func now() string {
	return time.Now().UTC().Format(time.DateTime)
}
