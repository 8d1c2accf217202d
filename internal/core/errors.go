package core

import "github.com/JonMunkholm/dummycsv/internal/errs"

// Domain errors. Compare with errors.Is; the web layer maps their kinds to
// status codes and their messages to codes via MapError.
var (
	ErrUnauthenticated      = errs.New(errs.KindPermissionDenied, "authentication required")
	ErrInvalidCredentials   = errs.New(errs.KindInvalidInput, "invalid credentials")
	ErrAlreadyLoggedIn      = errs.New(errs.KindInvalidInput, "already logged in")
	ErrRegistrationDisabled = errs.New(errs.KindPermissionDenied, "registration disabled")
	ErrUsernameTaken        = errs.New(errs.KindConflict, "username already taken")

	ErrSchemaNotFound  = errs.New(errs.KindNotFound, "schema not found")
	ErrColumnNotFound  = errs.New(errs.KindNotFound, "column not found")
	ErrDatasetNotFound = errs.New(errs.KindNotFound, "dataset not found")
	ErrDatasetNotReady = errs.New(errs.KindNotFound, "dataset file not ready")
	ErrJobNotFound     = errs.New(errs.KindNotFound, "job not found")
	ErrLastColumn      = errs.New(errs.KindConflict, "cannot delete the last column")

	ErrTooManyDownloads = errs.New(errs.KindUnavailable, "too many downloads in progress")
	ErrQueueFull        = errs.New(errs.KindUnavailable, "generation queue full")
)
