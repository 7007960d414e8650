// Package handler defines the contract every switchboard handler
// implements and the registry that loads them.
package handler

import (
	"context"

	"github.com/zidanhm/switchboard/internal/db"
)

// Info is the static metadata a handler reports about itself.
type Info struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	HelpText    string `json:"help_text"`
	Version     string `json:"version"`
}

// Kind classifies the outcome of handling one message.
type Kind string

const (
	KindSuccess  Kind = "success"
	KindError    Kind = "error"
	KindNoAction Kind = "no_action"
)

// Response is what a handler returns for one message. "Not found" and
// similar expected outcomes are expressed as KindError or KindNoAction
// responses, not as returned errors; a returned error (or a panic) means
// the handler itself failed.
type Response struct {
	Kind     Kind
	Messages []string
	Err      string
	Metadata map[string]any
}

// Handler is one pluggable bot capability. The dispatcher treats
// implementations as opaque and contains any fault they raise.
type Handler interface {
	Info() Info
	Handle(ctx context.Context, userID, text string, event map[string]any) (*Response, error)
	Welcome() string
}

// Activator is an optional hook invoked after a user switches to the
// handler. A non-empty returned string is sent after the welcome message.
type Activator interface {
	OnActivate(ctx context.Context, userID string) (string, error)
}

// Deactivator is an optional hook invoked before a user switches away.
// Failures are advisory; the switch proceeds regardless.
type Deactivator interface {
	OnDeactivate(ctx context.Context, userID string) error
}

// Env is what the host provides to a handler at construction time.
// DB is a shared handle to the host database; handlers may create their
// own tables through it as long as they avoid db.ReservedTables.
type Env struct {
	DB      *db.DB
	DataDir string
}

// Factory builds one handler instance. Factories run once at startup and
// must tolerate partially missing environment (credentials, config):
// prefer returning a handler that fails individual invocations later over
// failing construction.
type Factory func(env Env) (Handler, error)
