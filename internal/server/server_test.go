package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/zidanhm/switchboard/internal/access"
	"github.com/zidanhm/switchboard/internal/db"
	"github.com/zidanhm/switchboard/internal/dispatch"
	"github.com/zidanhm/switchboard/internal/handler"
	"github.com/zidanhm/switchboard/internal/session"
	"github.com/zidanhm/switchboard/internal/usage"
)

type listedHandler struct{ info handler.Info }

func (h *listedHandler) Info() handler.Info { return h.info }

func (h *listedHandler) Handle(context.Context, string, string, map[string]any) (*handler.Response, error) {
	return &handler.Response{Kind: handler.KindNoAction}, nil
}

func (h *listedHandler) Welcome() string { return "hi" }

func setupServer(t *testing.T) (*Server, *session.Store) {
	t.Helper()

	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	reg := handler.NewRegistry(handler.Env{DB: database}, nil)
	reg.Register("echo", func(handler.Env) (handler.Handler, error) {
		return &listedHandler{info: handler.Info{
			Name:        "echo",
			DisplayName: "Echo",
			Command:     "/echo",
			Description: "Echoes messages back.",
		}}, nil
	})
	reg.LoadAll()

	sessions := session.NewStore(database)
	d := dispatch.New(reg, sessions, access.NewResolver(database), usage.NewRecorder(database))
	return New(Config{Port: 0}, d), sessions
}

func TestHealthCheck(t *testing.T) {
	srv, _ := setupServer(t)

	req := httptest.NewRequest("GET", "/healthz", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("expected status 'ok', got %q", body["status"])
	}
}

func TestListHandlers(t *testing.T) {
	srv, _ := setupServer(t)

	req := httptest.NewRequest("GET", "/api/handlers", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var infos []handler.Info
	if err := json.Unmarshal(w.Body.Bytes(), &infos); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(infos) != 1 || infos[0].Name != "echo" {
		t.Errorf("got %v, want one handler named echo", infos)
	}
}

func TestSessionStatus(t *testing.T) {
	srv, sessions := setupServer(t)

	if err := sessions.Set(context.Background(), "U1", "echo"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	req := httptest.NewRequest("GET", "/api/sessions/U1", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["handler"] != "echo" {
		t.Errorf("handler = %v, want echo", body["handler"])
	}
}

func TestSessionStatusUnattached(t *testing.T) {
	srv, _ := setupServer(t)

	req := httptest.NewRequest("GET", "/api/sessions/U9", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["handler"] != nil {
		t.Errorf("handler = %v, want null", body["handler"])
	}
}

func TestCORSHeaders(t *testing.T) {
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer database.Close()

	reg := handler.NewRegistry(handler.Env{DB: database}, nil)
	d := dispatch.New(reg, session.NewStore(database), access.NewResolver(database), usage.NewRecorder(database))
	srv := New(Config{Port: 0, AllowAll: true}, d)

	req := httptest.NewRequest("OPTIONS", "/healthz", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", "GET")
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want *", got)
	}
}
