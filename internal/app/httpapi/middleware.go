package httpapi

import (
	"net/http"

	"github.com/openpledge/sponsorships/internal/app/userstore"
)

// WithBasicAuth guards state-changing REST calls with credentials from the
// user store. Reads stay open, and so does the approval endpoint: the token
// in the emailed link is the sponsor's authorisation.
func WithBasicAuth(next http.Handler, users *userstore.Store) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !requiresAuth(r) {
			next.ServeHTTP(w, r)
			return
		}

		username, password, ok := r.BasicAuth()
		if !ok {
			unauthorized(w)
			return
		}
		user, err := users.Authenticate(username, password)
		if err != nil {
			unauthorized(w)
			return
		}

		// The authenticated identity overrides any client-supplied actor.
		r.Header.Set(actorHeader, user.Username)
		next.ServeHTTP(w, r)
	})
}

func requiresAuth(r *http.Request) bool {
	if r.URL.Path == "/extension-response" {
		return false
	}
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Basic realm="sponsorships"`)
	w.WriteHeader(http.StatusUnauthorized)
}
