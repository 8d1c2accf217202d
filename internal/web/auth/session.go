// Package auth keeps the logged-in user in a signed and encrypted cookie.
package auth

import (
	"context"
	"crypto/sha256"
	"net/http"

	"github.com/gorilla/sessions"

	"github.com/JonMunkholm/dummycsv/internal/config"
	"github.com/JonMunkholm/dummycsv/internal/core"
	"github.com/JonMunkholm/dummycsv/internal/logging"
)

// DefaultCookieName is used when the configuration names no cookie.
const DefaultCookieName = "dummycsv_session"

const userIDKey = "user_id"

// UserLookup resolves the user id stored in a session.
type UserLookup interface {
	GetUser(ctx context.Context, id int64) (core.User, error)
}

// Sessions reads and writes the session cookie.
type Sessions struct {
	store *sessions.CookieStore
	name  string
}

// New creates the cookie store. The secret signs the cookie; its SHA-256
// digest is the AES key that encrypts it.
func New(cfg config.SessionConfig) *Sessions {
	blockKey := sha256.Sum256([]byte(cfg.Secret))
	store := sessions.NewCookieStore([]byte(cfg.Secret), blockKey[:])

	maxAge := int(cfg.MaxAge.Seconds())
	store.MaxAge(maxAge)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	}

	name := cfg.Name
	if name == "" {
		name = DefaultCookieName
	}
	return &Sessions{store: store, name: name}
}

// session returns the request's session. A cookie that fails to decode,
// for example after the secret changed, yields a fresh session.
func (s *Sessions) session(r *http.Request) (*sessions.Session, error) {
	sess, err := s.store.Get(r, s.name)
	if err == nil {
		return sess, nil
	}
	logging.FromContext(r.Context()).Debug("discarding unreadable session cookie", "error", err)
	return s.store.New(r, s.name)
}

// UserID returns the id of the logged-in user, if any.
func (s *Sessions) UserID(r *http.Request) (int64, bool) {
	sess, err := s.store.Get(r, s.name)
	if err != nil {
		return 0, false
	}
	id, ok := sess.Values[userIDKey].(int64)
	return id, ok && id > 0
}

// Login stores userID in a new session, dropping whatever the old one held.
func (s *Sessions) Login(w http.ResponseWriter, r *http.Request, userID int64) error {
	sess, err := s.session(r)
	if err != nil && sess == nil {
		return err
	}
	for k := range sess.Values {
		delete(sess.Values, k)
	}
	sess.Values[userIDKey] = userID
	return sess.Save(r, w)
}

// Logout expires the session cookie.
func (s *Sessions) Logout(w http.ResponseWriter, r *http.Request) error {
	sess, err := s.session(r)
	if err != nil && sess == nil {
		return err
	}
	for k := range sess.Values {
		delete(sess.Values, k)
	}
	sess.Options.MaxAge = -1
	return sess.Save(r, w)
}

// LoadUser puts the session's user on the request context. Requests
// without a valid session pass through anonymously; RequireUser rejects
// them where a user is needed.
func (s *Sessions) LoadUser(users UserLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := s.UserID(r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			user, err := users.GetUser(r.Context(), id)
			if err != nil {
				// A deleted account leaves a stale cookie behind.
				logging.FromContext(r.Context()).Info("session user not loaded", "user_id", id, "error", err)
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(core.ContextWithUser(r.Context(), user)))
		})
	}
}
