package usage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zidanhm/switchboard/internal/db"
)

// Recorder appends usage events and serves statistics queries. Every
// write is a single insert, so a crash can never leave a partial record.
type Recorder struct {
	db *db.DB
}

// NewRecorder creates a Recorder backed by the given database.
func NewRecorder(database *db.DB) *Recorder {
	return &Recorder{db: database}
}

// Record appends one event. The preview is truncated to 100 characters
// and a UUID is generated when the event has no ID.
func (r *Recorder) Record(ctx context.Context, e Event) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if runes := []rune(e.Preview); len(runes) > maxPreviewLen {
		e.Preview = string(runes[:maxPreviewLen])
	}

	metadata := "{}"
	if e.Metadata != nil {
		raw, err := json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("marshalling event metadata: %w", err)
		}
		metadata = string(raw)
	}

	var preview sql.NullString
	if e.Preview != "" {
		preview = sql.NullString{String: e.Preview, Valid: true}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO usage_events (id, user_id, handler, action, message_preview, metadata)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.UserID, e.Handler, string(e.Kind), preview, metadata)
	if err != nil {
		return fmt.Errorf("inserting usage event: %w", err)
	}
	return nil
}

// Message records a successfully routed message.
func (r *Recorder) Message(ctx context.Context, userID, handler, preview string, metadata map[string]any) error {
	return r.Record(ctx, Event{UserID: userID, Handler: handler, Kind: KindMessage, Preview: preview, Metadata: metadata})
}

// Switch records a handler switch with from/to metadata. from is empty
// when the user was previously unattached.
func (r *Recorder) Switch(ctx context.Context, userID, from, to string) error {
	meta := map[string]any{"to": to}
	if from != "" {
		meta["from"] = from
	} else {
		meta["from"] = nil
	}
	return r.Record(ctx, Event{UserID: userID, Handler: to, Kind: KindSwitch, Metadata: meta})
}

// Error records a handler fault.
func (r *Recorder) Error(ctx context.Context, userID, handler, description string) error {
	return r.Record(ctx, Event{UserID: userID, Handler: handler, Kind: KindError, Metadata: map[string]any{"error": description}})
}

// Filter controls which events Query returns.
type Filter struct {
	UserID  string
	Handler string
	Kind    Kind
	Since   *time.Time
	Until   *time.Time
	Limit   int
	Offset  int
}

// Query returns events matching the filter in insertion order.
func (r *Recorder) Query(ctx context.Context, filter Filter) ([]Event, error) {
	var (
		clauses []string
		args    []any
	)

	if filter.UserID != "" {
		clauses = append(clauses, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.Handler != "" {
		clauses = append(clauses, "handler = ?")
		args = append(args, filter.Handler)
	}
	if filter.Kind != "" {
		clauses = append(clauses, "action = ?")
		args = append(args, string(filter.Kind))
	}
	if filter.Since != nil {
		clauses = append(clauses, "timestamp >= ?")
		args = append(args, filter.Since.UTC().Format(time.DateTime))
	}
	if filter.Until != nil {
		clauses = append(clauses, "timestamp <= ?")
		args = append(args, filter.Until.UTC().Format(time.DateTime))
	}

	query := "SELECT id, user_id, handler, action, message_preview, metadata, timestamp FROM usage_events"
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	// rowid breaks ties within the same second, keeping insertion order.
	query += " ORDER BY timestamp, rowid"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying usage events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			e        Event
			kind     string
			preview  sql.NullString
			metadata string
			ts       string
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.Handler, &kind, &preview, &metadata, &ts); err != nil {
			return nil, fmt.Errorf("scanning usage event: %w", err)
		}
		e.Kind = Kind(kind)
		if preview.Valid {
			e.Preview = preview.String
		}
		if err := json.Unmarshal([]byte(metadata), &e.Metadata); err != nil {
			e.Metadata = nil
		}
		if t, parseErr := time.Parse(time.DateTime, ts); parseErr == nil {
			e.Timestamp = t
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// StatsForUser aggregates the user's activity from the log.
func (r *Recorder) StatsForUser(ctx context.Context, userID string) (*UserStats, error) {
	stats := &UserStats{UserID: userID, ByHandler: make(map[string]int)}

	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM usage_events WHERE user_id = ? AND action = 'message'", userID,
	).Scan(&stats.MessageCount)
	if err != nil {
		return nil, fmt.Errorf("counting user messages: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT handler, COUNT(*) FROM usage_events
		WHERE user_id = ? AND action = 'message'
		GROUP BY handler`, userID)
	if err != nil {
		return nil, fmt.Errorf("grouping user messages: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var handler string
		var count int
		if err := rows.Scan(&handler, &count); err != nil {
			return nil, fmt.Errorf("scanning user breakdown: %w", err)
		}
		stats.ByHandler[handler] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var last sql.NullString
	err = r.db.QueryRowContext(ctx,
		"SELECT MAX(timestamp) FROM usage_events WHERE user_id = ?", userID,
	).Scan(&last)
	if err != nil {
		return nil, fmt.Errorf("reading user last activity: %w", err)
	}
	if last.Valid {
		if t, parseErr := time.Parse(time.DateTime, last.String); parseErr == nil {
			stats.LastActive = &t
		}
	}

	return stats, nil
}

// StatsForHandler aggregates the handler's activity from the log.
func (r *Recorder) StatsForHandler(ctx context.Context, handler string) (*HandlerStats, error) {
	stats := &HandlerStats{Handler: handler}

	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM usage_events WHERE handler = ? AND action = 'message'", handler,
	).Scan(&stats.MessageCount)
	if err != nil {
		return nil, fmt.Errorf("counting handler messages: %w", err)
	}

	err = r.db.QueryRowContext(ctx,
		"SELECT COUNT(DISTINCT user_id) FROM usage_events WHERE handler = ?", handler,
	).Scan(&stats.UniqueUsers)
	if err != nil {
		return nil, fmt.Errorf("counting handler users: %w", err)
	}

	err = r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM usage_events WHERE handler = ? AND action = 'error'", handler,
	).Scan(&stats.ErrorCount)
	if err != nil {
		return nil, fmt.Errorf("counting handler errors: %w", err)
	}

	return stats, nil
}
