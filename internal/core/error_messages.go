// error_messages.go turns errors into what a client is shown: a message, a
// suggested action and a short code. The technical error is only logged.
//
//	VAL001          validation, with per-field details
//	AUTH001-AUTH005 accounts and sessions
//	RES001-RES004   missing schemas, columns, datasets and files
//	SCH001          last column of a schema
//	DL001, GEN001   download slots and the generation queue
//	DB001-DB006     repository and file store failures
//	REQ001-REQ003   cancelled, malformed or unroutable requests
//	RATE001         rate limited
//	ERR000          anything else
package core

import (
	"context"
	"errors"
	"strings"

	"github.com/JonMunkholm/dummycsv/internal/errs"
)

// UserMessage is the client-facing description of an error.
type UserMessage struct {
	Message string
	Action  string
	Code    string
}

var (
	msgValidation = UserMessage{"Some fields are invalid", "Correct the listed fields and try again", "VAL001"}
	msgDuplicate  = UserMessage{"A record with this value already exists", "Use a different value", "DB001"}
	msgNoBackend  = UserMessage{"Unable to connect to database", "Please try again in a few moments", "DB004"}
	msgReset      = UserMessage{"Database connection was interrupted", "Please try again", "DB005"}
	msgTimeout    = UserMessage{"Operation timed out", "Please try again later", "DB006"}
	msgCancelled  = UserMessage{"Request was cancelled", "Please try again", "REQ001"}
	msgUnexpected = UserMessage{"An unexpected error occurred", "Please try again or contact support", "ERR000"}
)

// sentinelMessages is checked with errors.Is, in order.
var sentinelMessages = []struct {
	target error
	msg    UserMessage
}{
	{ErrUnauthenticated, UserMessage{"You are not logged in", "Log in and try again", "AUTH001"}},
	{ErrInvalidCredentials, UserMessage{"User not found by the given credentials", "Check your username and password", "AUTH002"}},
	{ErrAlreadyLoggedIn, UserMessage{"You are already logged in", "Log out first to switch accounts", "AUTH003"}},
	{ErrRegistrationDisabled, UserMessage{"Registration is disabled", "Ask an administrator for an account", "AUTH004"}},
	{ErrUsernameTaken, UserMessage{"This username is already taken", "Choose a different username", "AUTH005"}},

	{ErrSchemaNotFound, UserMessage{"Schema not found", "Check the schema id; you can only access your own schemas", "RES001"}},
	{ErrColumnNotFound, UserMessage{"Column not found", "Check the column id and the schema it belongs to", "RES002"}},
	{ErrDatasetNotFound, UserMessage{"Dataset not found", "Check the dataset id", "RES003"}},
	{ErrDatasetNotReady, UserMessage{"The dataset file has not been generated yet", "Check the dataset status and try again when it is processed", "RES004"}},
	{ErrLastColumn, UserMessage{"A schema must keep at least one column", "Add another column before deleting this one", "SCH001"}},

	{ErrTooManyDownloads, UserMessage{"Too many downloads in progress", "Please wait a moment and try again", "DL001"}},
	{ErrQueueFull, UserMessage{"The generator is busy", "Your dataset was saved and will be generated shortly", "GEN001"}},

	{context.Canceled, msgCancelled},
	{context.DeadlineExceeded, msgTimeout},
}

// textMessages covers errors raised outside this package, matched as
// lowercase substrings of the error text.
var textMessages = []struct {
	substr string
	msg    UserMessage
}{
	{"invalid json", UserMessage{"Request body is not valid JSON", "Send a JSON object matching the documented fields", "REQ002"}},
	{"route not found", UserMessage{"No such endpoint", "Check the request path and method", "REQ003"}},
	{"rate limit", UserMessage{"Too many requests", "Please wait a moment before trying again", "RATE001"}},
	{"duplicate key", msgDuplicate},
	{"connection refused", msgNoBackend},
	{"connection reset", msgReset},
}

// MapError returns the UserMessage for err, or the zero value for nil.
// Sentinels win over text matches, which win over the error kind.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var verrs ValidationErrors
	if errors.As(err, &verrs) {
		return msgValidation
	}

	for _, s := range sentinelMessages {
		if errors.Is(err, s.target) {
			return s.msg
		}
	}

	text := strings.ToLower(err.Error())
	for _, t := range textMessages {
		if strings.Contains(text, t.substr) {
			return t.msg
		}
	}

	switch errs.KindOf(err) {
	case errs.KindConflict:
		return msgDuplicate
	case errs.KindConnectionFailed:
		return msgNoBackend
	case errs.KindTimeout:
		return msgTimeout
	}
	return msgUnexpected
}
