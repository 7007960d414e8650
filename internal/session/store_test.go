package session

import (
	"context"
	"testing"
	"time"

	"github.com/zidanhm/switchboard/internal/db"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return NewStore(database)
}

func TestCurrentEmpty(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	current, err := store.Current(ctx, "U1")
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if current != "" {
		t.Errorf("Current = %q, want empty", current)
	}
}

func TestSetAndCurrent(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, "U1", "echo"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	current, err := store.Current(ctx, "U1")
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if current != "echo" {
		t.Errorf("Current = %q, want %q", current, "echo")
	}
}

func TestSetIdempotent(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, "U1", "echo"); err != nil {
		t.Fatalf("first Set: %v", err)
	}
	first, err := store.Get(ctx, "U1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	time.Sleep(1100 * time.Millisecond)
	if err := store.Set(ctx, "U1", "echo"); err != nil {
		t.Fatalf("second Set: %v", err)
	}

	second, err := store.Get(ctx, "U1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if second.Handler != "echo" {
		t.Errorf("Handler = %q, want %q", second.Handler, "echo")
	}
	if !second.LastActive.After(first.LastActive) {
		t.Errorf("LastActive not bumped: first=%v second=%v", first.LastActive, second.LastActive)
	}

	// Still exactly one row.
	var count int
	if err := storeDB(t, store).QueryRow("SELECT COUNT(*) FROM user_sessions").Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Errorf("session rows = %d, want 1", count)
	}
}

func TestClear(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, "U1", "echo"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := store.Clear(ctx, "U1"); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	current, err := store.Current(ctx, "U1")
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if current != "" {
		t.Errorf("Current = %q after Clear, want empty", current)
	}

	// The row survives clearing.
	sess, err := store.Get(ctx, "U1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if sess == nil {
		t.Fatal("session row deleted by Clear")
	}
}

func TestTouchKeepsHandler(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, "U1", "echo"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := store.Touch(ctx, "U1"); err != nil {
		t.Fatalf("Touch: %v", err)
	}

	current, err := store.Current(ctx, "U1")
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if current != "echo" {
		t.Errorf("Current = %q after Touch, want %q", current, "echo")
	}
}

func TestTouchWithoutRow(t *testing.T) {
	store := setupStore(t)
	if err := store.Touch(context.Background(), "U-nobody"); err != nil {
		t.Fatalf("Touch without row: %v", err)
	}
}

func TestUsersIndependent(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, "U1", "echo"); err != nil {
		t.Fatalf("Set U1: %v", err)
	}
	if err := store.Set(ctx, "U2", "links"); err != nil {
		t.Fatalf("Set U2: %v", err)
	}
	if err := store.Clear(ctx, "U1"); err != nil {
		t.Fatalf("Clear U1: %v", err)
	}

	current, err := store.Current(ctx, "U2")
	if err != nil {
		t.Fatalf("Current U2: %v", err)
	}
	if current != "links" {
		t.Errorf("U2 Current = %q, want %q", current, "links")
	}
}

func storeDB(t *testing.T, s *Store) *db.DB {
	t.Helper()
	return s.db
}
