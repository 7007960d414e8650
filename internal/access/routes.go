package access

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes mounts the administrative permission endpoints under
// /api/access. This is the external administrative surface; it is not on
// the dispatch hot path.
func RegisterRoutes(r chi.Router, resolver *Resolver) {
	r.Route("/api/access", func(r chi.Router) {
		r.Get("/check", handleCheck(resolver))
		r.Post("/grants", handleGrant(resolver))
		r.Delete("/grants", handleRevoke(resolver))
		r.Put("/open/{handler}", handleSetOpen(resolver, true))
		r.Delete("/open/{handler}", handleSetOpen(resolver, false))
		r.Put("/admins/{user}", handleAdmin(resolver, true))
		r.Delete("/admins/{user}", handleAdmin(resolver, false))
	})
}

type grantRequest struct {
	UserID  string `json:"user_id"`
	Handler string `json:"handler"`
}

func handleCheck(resolver *Resolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		userID, handler := q.Get("user"), q.Get("handler")
		if userID == "" || handler == "" {
			http.Error(w, "user and handler are required", http.StatusBadRequest)
			return
		}

		allowed, err := resolver.IsAllowed(r.Context(), userID, handler)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"allowed": allowed})
	}
}

func handleGrant(resolver *Resolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req grantRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" || req.Handler == "" {
			http.Error(w, "user_id and handler are required", http.StatusBadRequest)
			return
		}
		if err := resolver.Grant(r.Context(), req.UserID, req.Handler); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleRevoke(resolver *Resolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req grantRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" || req.Handler == "" {
			http.Error(w, "user_id and handler are required", http.StatusBadRequest)
			return
		}
		if err := resolver.Revoke(r.Context(), req.UserID, req.Handler); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleSetOpen(resolver *Resolver, open bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		handler := chi.URLParam(r, "handler")
		if err := resolver.SetOpen(r.Context(), handler, open); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleAdmin(resolver *Resolver, add bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "user")
		var err error
		if add {
			err = resolver.AddAdmin(r.Context(), userID)
		} else {
			err = resolver.RemoveAdmin(r.Context(), userID)
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
