// Package echo is a built-in handler that echoes messages back, keeping
// a per-user count in its own table.
package echo

import (
	"context"
	"fmt"

	"github.com/zidanhm/switchboard/internal/db"
	"github.com/zidanhm/switchboard/internal/handler"
)

const schema = `
CREATE TABLE IF NOT EXISTS echo_counts (
    user_id TEXT PRIMARY KEY,
    count   INTEGER NOT NULL DEFAULT 0
);`

// Echo repeats each message back with a running per-user counter.
type Echo struct {
	db *db.DB
}

// New creates the echo handler and its private table.
func New(env handler.Env) (handler.Handler, error) {
	if _, err := env.DB.Exec(schema); err != nil {
		return nil, fmt.Errorf("creating echo table: %w", err)
	}
	return &Echo{db: env.DB}, nil
}

func (e *Echo) Info() handler.Info {
	return handler.Info{
		Name:        "echo",
		DisplayName: "Echo",
		Command:     "/echo",
		Description: "Echoes your messages back.",
		HelpText:    "Send any message and I'll repeat it back with a counter.\nSend `reset` to restart your counter.",
		Version:     "1.0.0",
	}
}

func (e *Echo) Welcome() string {
	return "Echo here. Say something and I'll say it back."
}

func (e *Echo) Handle(ctx context.Context, userID, text string, _ map[string]any) (*handler.Response, error) {
	switch text {
	case "help":
		return &handler.Response{
			Kind:     handler.KindSuccess,
			Messages: []string{e.Info().HelpText},
		}, nil
	case "reset":
		if err := e.reset(ctx, userID); err != nil {
			return nil, err
		}
		return &handler.Response{
			Kind:     handler.KindSuccess,
			Messages: []string{"Counter reset."},
		}, nil
	}

	count, err := e.increment(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &handler.Response{
		Kind:     handler.KindSuccess,
		Messages: []string{fmt.Sprintf("echo #%d: %s", count, text)},
		Metadata: map[string]any{"count": count},
	}, nil
}

// OnActivate greets returning users with their running count.
func (e *Echo) OnActivate(ctx context.Context, userID string) (string, error) {
	var count int
	err := e.db.QueryRowContext(ctx,
		"SELECT count FROM echo_counts WHERE user_id = ?", userID).Scan(&count)
	if err != nil || count == 0 {
		return "", nil
	}
	return fmt.Sprintf("Welcome back, you've echoed %d messages so far.", count), nil
}

func (e *Echo) increment(ctx context.Context, userID string) (int, error) {
	var count int
	err := e.db.QueryRowContext(ctx, `
		INSERT INTO echo_counts (user_id, count) VALUES (?, 1)
		ON CONFLICT(user_id) DO UPDATE SET count = count + 1
		RETURNING count`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("updating echo count: %w", err)
	}
	return count, nil
}

func (e *Echo) reset(ctx context.Context, userID string) error {
	if _, err := e.db.ExecContext(ctx,
		"DELETE FROM echo_counts WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("resetting echo count: %w", err)
	}
	return nil
}
