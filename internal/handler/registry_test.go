package handler

import (
	"context"
	"errors"
	"testing"
)

type stubHandler struct {
	info Info
}

func (s *stubHandler) Info() Info { return s.info }

func (s *stubHandler) Handle(ctx context.Context, userID, text string, event map[string]any) (*Response, error) {
	return &Response{Kind: KindSuccess, Messages: []string{"ok"}}, nil
}

func (s *stubHandler) Welcome() string { return "welcome to " + s.info.Name }

func stubFactory(name string) Factory {
	return func(env Env) (Handler, error) {
		return &stubHandler{info: Info{
			Name:        name,
			DisplayName: name,
			Command:     "/" + name,
			Description: "stub",
			Version:     "1.0.0",
		}}, nil
	}
}

func TestLoadAllPreservesOrder(t *testing.T) {
	r := NewRegistry(Env{}, nil)
	r.Register("bravo", stubFactory("bravo"))
	r.Register("alpha", stubFactory("alpha"))

	loaded := r.LoadAll()
	if len(loaded) != 2 {
		t.Fatalf("expected 2 loaded handlers, got %d", len(loaded))
	}

	names := r.Names()
	if len(names) != 2 || names[0] != "bravo" || names[1] != "alpha" {
		t.Errorf("Names() = %v, want [bravo alpha]", names)
	}
}

func TestLoadFailureIsolation(t *testing.T) {
	r := NewRegistry(Env{}, nil)
	r.Register("bad", func(env Env) (Handler, error) {
		return nil, errors.New("missing credentials")
	})
	r.Register("panicky", func(env Env) (Handler, error) {
		panic("boom")
	})
	r.Register("good", stubFactory("good"))

	loaded := r.LoadAll()
	if len(loaded) != 1 {
		t.Fatalf("expected 1 loaded handler, got %d", len(loaded))
	}
	if _, ok := loaded["good"]; !ok {
		t.Error("good handler missing from LoadAll result")
	}
}

func TestLoadRejectsIncompleteInfo(t *testing.T) {
	r := NewRegistry(Env{}, nil)
	r.Register("nocmd", func(env Env) (Handler, error) {
		return &stubHandler{info: Info{Name: "nocmd"}}, nil
	})

	if _, err := r.Load("nocmd"); err == nil {
		t.Error("expected error for handler without command")
	}
}

func TestLoadRejectsNameMismatch(t *testing.T) {
	r := NewRegistry(Env{}, nil)
	r.Register("alias", stubFactory("actual"))

	if _, err := r.Load("alias"); err == nil {
		t.Error("expected error for name mismatch")
	}
}

func TestLoadUnregistered(t *testing.T) {
	r := NewRegistry(Env{}, nil)
	if _, err := r.Load("ghost"); err == nil {
		t.Error("expected error for unregistered handler")
	}
}

func TestAllowPatterns(t *testing.T) {
	r := NewRegistry(Env{}, []string{"contact_*", "echo"})
	r.Register("echo", stubFactory("echo"))
	r.Register("contact_finder", stubFactory("contact_finder"))
	r.Register("payroll_lookup", stubFactory("payroll_lookup"))

	names := r.Discover()
	if len(names) != 2 {
		t.Fatalf("Discover() = %v, want 2 names", names)
	}
	if names[0] != "echo" || names[1] != "contact_finder" {
		t.Errorf("Discover() = %v, want [echo contact_finder]", names)
	}
}

func TestGet(t *testing.T) {
	r := NewRegistry(Env{}, nil)
	r.Register("echo", stubFactory("echo"))
	r.LoadAll()

	if _, ok := r.Get("echo"); !ok {
		t.Error("Get(echo) not found after LoadAll")
	}
	if _, ok := r.Get("missing"); ok {
		t.Error("Get(missing) unexpectedly found")
	}
}
