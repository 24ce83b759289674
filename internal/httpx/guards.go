package httpx

import (
	"net/http"

	"github.com/ariefcatur/go-order-app/internal/store"
)

// StateSource is anything that can report the current store state.
type StateSource interface {
	Snapshot() store.State
}

// RequireUser answers 401 when nobody is signed in.
func RequireUser(s StateSource) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if s.Snapshot().User == nil {
				writeJSON(w, http.StatusUnauthorized, errorBody{Error: "Please log in first"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireGuest answers 409 when someone is already signed in.
func RequireGuest(s StateSource) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if s.Snapshot().User != nil {
				writeJSON(w, http.StatusConflict, errorBody{Error: "Already logged in"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireReady answers 503 while the previous session is being restored, so
// guards above it never decide on a half-loaded state.
func RequireReady(s StateSource) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if s.Snapshot().Restoring {
				w.Header().Set("Retry-After", "1")
				writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "Starting up, please retry"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
