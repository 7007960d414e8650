// Package usage keeps the append-only audit log of dispatch outcomes and
// computes statistics from it at read time.
package usage

import "time"

// Kind classifies one usage event.
type Kind string

const (
	KindMessage Kind = "message"
	KindSwitch  Kind = "switch"
	KindError   Kind = "error"
)

// maxPreviewLen is the longest message preview stored with an event.
const maxPreviewLen = 100

// Event is one immutable audit record. Metadata is stored and returned
// verbatim as an opaque blob.
type Event struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	Handler   string         `json:"handler"`
	Kind      Kind           `json:"kind"`
	Preview   string         `json:"preview,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// UserStats aggregates one user's activity.
type UserStats struct {
	UserID       string         `json:"user_id"`
	MessageCount int            `json:"message_count"`
	ByHandler    map[string]int `json:"by_handler"`
	LastActive   *time.Time     `json:"last_active,omitempty"`
}

// HandlerStats aggregates one handler's activity.
type HandlerStats struct {
	Handler      string `json:"handler"`
	MessageCount int    `json:"message_count"`
	UniqueUsers  int    `json:"unique_users"`
	ErrorCount   int    `json:"error_count"`
}
