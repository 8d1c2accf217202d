package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/JonMunkholm/dummycsv/internal/errs"
)

// Authenticate checks credentials and returns the matching user. Unknown
// usernames and wrong passwords fail the same way.
func (s *Service) Authenticate(ctx context.Context, creds Credentials) (User, error) {
	if err := creds.Validate(false); err != nil {
		return User{}, err
	}

	u, err := s.store.GetUserByUsername(ctx, strings.TrimSpace(creds.Username))
	if err != nil {
		if errs.IsNotFound(err) {
			// Spend the same time as a real comparison.
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(creds.Password))
			return User{}, ErrInvalidCredentials
		}
		return User{}, fmt.Errorf("get user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(creds.Password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return User{}, ErrInvalidCredentials
		}
		return User{}, fmt.Errorf("compare password: %w", err)
	}
	return u, nil
}

// Register creates an account when registration is enabled.
func (s *Service) Register(ctx context.Context, creds Credentials) (User, error) {
	if !s.opts.AllowRegistration {
		return User{}, ErrRegistrationDisabled
	}
	if err := creds.Validate(true); err != nil {
		return User{}, err
	}
	return s.createUser(ctx, strings.TrimSpace(creds.Username), creds.Password)
}

// EnsureUser creates the given account unless the username already
// exists. It is used to bootstrap a first login.
func (s *Service) EnsureUser(ctx context.Context, username, password string) error {
	creds := Credentials{Username: username, Password: password}
	if err := creds.Validate(true); err != nil {
		return err
	}

	_, err := s.store.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err == nil {
		return nil
	}
	if !errs.IsNotFound(err) {
		return fmt.Errorf("get user: %w", err)
	}

	if _, err := s.createUser(ctx, strings.TrimSpace(username), password); err != nil && !errors.Is(err, ErrUsernameTaken) {
		return err
	}
	slog.Info("bootstrap user ready", "username", username)
	return nil
}

// GetUser returns the user with id.
func (s *Service) GetUser(ctx context.Context, id int64) (User, error) {
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		if errs.IsNotFound(err) {
			return User{}, ErrUnauthenticated
		}
		return User{}, fmt.Errorf("get user %d: %w", id, err)
	}
	return u, nil
}

func (s *Service) createUser(ctx context.Context, username, password string) (User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}
	u, err := s.store.CreateUser(ctx, username, hash, s.now())
	if err != nil {
		if errs.IsConflict(err) {
			return User{}, ErrUsernameTaken
		}
		return User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// dummyHash is compared against when the username does not exist.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("dummycsv-placeholder"), bcrypt.DefaultCost)
