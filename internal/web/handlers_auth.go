package web

import (
	"net/http"

	"github.com/JonMunkholm/dummycsv/internal/core"
	"github.com/JonMunkholm/dummycsv/internal/logging"
)

// handleLogin checks credentials and starts a session.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if _, ok := core.UserFromContext(r.Context()); ok {
		s.respondError(w, r, core.ErrAlreadyLoggedIn)
		return
	}

	var creds core.Credentials
	if err := decodeJSON(w, r, &creds); err != nil {
		s.respondError(w, r, err)
		return
	}

	user, err := s.service.Authenticate(r.Context(), creds)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := s.sessions.Login(w, r, user.ID); err != nil {
		s.respondError(w, r, err)
		return
	}

	logging.FromContext(r.Context()).Info("user logged in", "user_id", user.ID)
	writeJSON(w, http.StatusOK, user)
}

// handleLogout ends the session. Logging out without a session succeeds.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Logout(w, r); err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

// handleRegister creates an account and logs it in.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if _, ok := core.UserFromContext(r.Context()); ok {
		s.respondError(w, r, core.ErrAlreadyLoggedIn)
		return
	}

	var creds core.Credentials
	if err := decodeJSON(w, r, &creds); err != nil {
		s.respondError(w, r, err)
		return
	}

	user, err := s.service.Register(r.Context(), creds)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := s.sessions.Login(w, r, user.ID); err != nil {
		s.respondError(w, r, err)
		return
	}

	logging.FromContext(r.Context()).Info("user registered", "user_id", user.ID)
	writeJSON(w, http.StatusCreated, user)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, currentUser(r))
}
