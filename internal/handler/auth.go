package handler

import (
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	appI18n "github.com/falanarh/lms-sub001/internal/i18n"
)

// requireAccess guards the facade with the configured access password. The
// UI presents it as a bearer token; the agent only ever stores the bcrypt
// hash. An empty hash disables the guard.
func (h *Handler) requireAccess(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.config.AccessPasswordHash == "" {
			next.ServeHTTP(w, r)
			return
		}

		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if token == "" || token == r.Header.Get("Authorization") {
			h.unauthorized(w, r)
			return
		}
		if err := bcrypt.CompareHashAndPassword([]byte(h.config.AccessPasswordHash), []byte(token)); err != nil {
			h.unauthorized(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) unauthorized(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusUnauthorized, map[string]any{
		"error":     appI18n.T(r.Context(), "Unauthorized"),
		"retryable": false,
	})
}
