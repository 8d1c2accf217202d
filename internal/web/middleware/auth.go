package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/JonMunkholm/dummycsv/internal/core"
	"github.com/JonMunkholm/dummycsv/internal/logging"
)

// RequireUser rejects requests that carry no logged-in user with 401.
// The user is put on the context by the session middleware.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := core.UserFromContext(r.Context()); ok {
			next.ServeHTTP(w, r)
			return
		}

		logging.FromContext(r.Context()).Info("auth: no session",
			"path", r.URL.Path,
			"method", r.Method,
			"remote_addr", r.RemoteAddr,
		)

		msg := core.MapError(core.ErrUnauthenticated)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{
			"error":   msg.Message,
			"message": msg.Message,
			"action":  msg.Action,
			"code":    msg.Code,
		})
	})
}
