package access

import (
	"context"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/zidanhm/switchboard/internal/db"
)

func setupResolver(t *testing.T) *Resolver {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return NewResolver(database)
}

func TestUnionRule(t *testing.T) {
	r := setupResolver(t)
	ctx := context.Background()

	// No grants at all.
	allowed, err := r.IsAllowed(ctx, "U1", "echo")
	if err != nil {
		t.Fatalf("IsAllowed: %v", err)
	}
	if allowed {
		t.Error("U1 allowed with no grants")
	}

	// Open handler grants everyone.
	if err := r.SetOpen(ctx, "echo", true); err != nil {
		t.Fatalf("SetOpen: %v", err)
	}
	if allowed, _ := r.IsAllowed(ctx, "U1", "echo"); !allowed {
		t.Error("U1 not allowed on open handler")
	}
	// Opening echo must not affect other handlers.
	if allowed, _ := r.IsAllowed(ctx, "U1", "links"); allowed {
		t.Error("opening echo leaked to links")
	}

	// Explicit grant.
	if err := r.Grant(ctx, "U1", "links"); err != nil {
		t.Fatalf("Grant: %v", err)
	}
	if allowed, _ := r.IsAllowed(ctx, "U1", "links"); !allowed {
		t.Error("U1 not allowed after grant")
	}
	if allowed, _ := r.IsAllowed(ctx, "U2", "links"); allowed {
		t.Error("grant to U1 leaked to U2")
	}

	// Admin bypasses everything.
	if err := r.AddAdmin(ctx, "U3"); err != nil {
		t.Fatalf("AddAdmin: %v", err)
	}
	if allowed, _ := r.IsAllowed(ctx, "U3", "anything"); !allowed {
		t.Error("admin not allowed")
	}
}

func TestRevocation(t *testing.T) {
	r := setupResolver(t)
	ctx := context.Background()

	r.Grant(ctx, "U1", "echo")
	r.Revoke(ctx, "U1", "echo")
	if allowed, _ := r.IsAllowed(ctx, "U1", "echo"); allowed {
		t.Error("U1 still allowed after revoke")
	}

	r.SetOpen(ctx, "echo", true)
	r.SetOpen(ctx, "echo", false)
	if allowed, _ := r.IsAllowed(ctx, "U1", "echo"); allowed {
		t.Error("U1 still allowed after close")
	}

	r.AddAdmin(ctx, "U1")
	r.RemoveAdmin(ctx, "U1")
	if allowed, _ := r.IsAllowed(ctx, "U1", "echo"); allowed {
		t.Error("U1 still allowed after admin removal")
	}
}

func TestMutationsIdempotent(t *testing.T) {
	r := setupResolver(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := r.Grant(ctx, "U1", "echo"); err != nil {
			t.Fatalf("Grant #%d: %v", i+1, err)
		}
		if err := r.SetOpen(ctx, "echo", true); err != nil {
			t.Fatalf("SetOpen #%d: %v", i+1, err)
		}
		if err := r.AddAdmin(ctx, "U1"); err != nil {
			t.Fatalf("AddAdmin #%d: %v", i+1, err)
		}
	}
	if err := r.Revoke(ctx, "U-none", "echo"); err != nil {
		t.Fatalf("Revoke of missing grant: %v", err)
	}
}

func TestAllowedPreservesOrder(t *testing.T) {
	r := setupResolver(t)
	ctx := context.Background()

	names := []string{"alpha", "bravo", "charlie"}
	r.SetOpen(ctx, "charlie", true)
	r.Grant(ctx, "U1", "alpha")

	allowed, err := r.Allowed(ctx, "U1", names)
	if err != nil {
		t.Fatalf("Allowed: %v", err)
	}
	if !reflect.DeepEqual(allowed, []string{"alpha", "charlie"}) {
		t.Errorf("Allowed = %v, want [alpha charlie]", allowed)
	}
}

func TestAllowedAdminFullList(t *testing.T) {
	r := setupResolver(t)
	ctx := context.Background()

	names := []string{"alpha", "bravo"}
	r.AddAdmin(ctx, "U1")

	allowed, err := r.Allowed(ctx, "U1", names)
	if err != nil {
		t.Fatalf("Allowed: %v", err)
	}
	if !reflect.DeepEqual(allowed, names) {
		t.Errorf("Allowed = %v, want %v", allowed, names)
	}
}

func TestSyncFromConfig(t *testing.T) {
	r := setupResolver(t)
	ctx := context.Background()

	seed := Seed{
		Admins: []string{"U-admin"},
		Open:   []string{"echo"},
		Grants: map[string][]string{"links": {"U1", "U2"}},
	}
	if err := r.SyncFromConfig(ctx, seed); err != nil {
		t.Fatalf("SyncFromConfig: %v", err)
	}
	// Applying twice is fine.
	if err := r.SyncFromConfig(ctx, seed); err != nil {
		t.Fatalf("second SyncFromConfig: %v", err)
	}

	if ok, _ := r.IsAdmin(ctx, "U-admin"); !ok {
		t.Error("U-admin not admin after sync")
	}
	if ok, _ := r.IsAllowed(ctx, "U-any", "echo"); !ok {
		t.Error("echo not open after sync")
	}
	if ok, _ := r.IsAllowed(ctx, "U2", "links"); !ok {
		t.Error("U2 not granted links after sync")
	}
}

// --- HTTP handler tests ---

func setupRouter(t *testing.T) (chi.Router, *Resolver) {
	t.Helper()
	resolver := setupResolver(t)
	r := chi.NewRouter()
	RegisterRoutes(r, resolver)
	return r, resolver
}

func TestHTTPGrantAndCheck(t *testing.T) {
	router, _ := setupRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/access/grants",
		strings.NewReader(`{"user_id":"U1","handler":"echo"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("grant status = %d, want %d", rec.Code, http.StatusNoContent)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/access/check?user=U1&handler=echo", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("check status = %d, want %d", rec.Code, http.StatusOK)
	}
	if !strings.Contains(rec.Body.String(), `"allowed":true`) {
		t.Errorf("check body = %s, want allowed:true", rec.Body.String())
	}
}

func TestHTTPOpenAndAdmin(t *testing.T) {
	router, resolver := setupRouter(t)
	ctx := context.Background()

	req := httptest.NewRequest(http.MethodPut, "/api/access/open/echo", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("open status = %d", rec.Code)
	}
	if ok, _ := resolver.IsAllowed(ctx, "U-any", "echo"); !ok {
		t.Error("echo not open after PUT")
	}

	req = httptest.NewRequest(http.MethodPut, "/api/access/admins/U9", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("admin status = %d", rec.Code)
	}
	if ok, _ := resolver.IsAdmin(ctx, "U9"); !ok {
		t.Error("U9 not admin after PUT")
	}
}

func TestHTTPCheckMissingParams(t *testing.T) {
	router, _ := setupRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/access/check?user=U1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}
