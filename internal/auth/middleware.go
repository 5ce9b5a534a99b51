// Package auth signs administrators in against the backend and guards the
// console routes.
package auth

import (
	"net/http"

	"github.com/machineskills/console/internal/backend"
	"github.com/machineskills/console/internal/shared"
	"github.com/machineskills/console/internal/view"
)

// RequireAuth redirects anonymous requests to the login page and exposes the
// session's backend token to the client through the request context.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		token := ""
		if sess != nil {
			token = sess.Get(shared.SessionTokenKey)
		}
		if token == "" {
			http.Redirect(w, r, view.LoginPath, http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r.WithContext(backend.WithToken(r.Context(), token)))
	})
}
