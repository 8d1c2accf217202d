package web

// errors.go provides unified error response handling for the web layer.
//
// Every failure goes through respondError, which:
//  1. Picks the status code from the error's kind (statusFor)
//  2. Maps the error to a user-facing message via core.MapError
//  3. Logs the technical error with the request id for correlation
//  4. Renders JSON for API clients, an HTML fragment for HTMX requests,
//     and plain text otherwise

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/JonMunkholm/dummycsv/internal/core"
	"github.com/JonMunkholm/dummycsv/internal/errs"
	"github.com/JonMunkholm/dummycsv/internal/logging"
	"github.com/JonMunkholm/dummycsv/internal/web/templates"
)

var (
	errRouteNotFound    = errs.New(errs.KindNotFound, "route not found")
	errMethodNotAllowed = errs.New(errs.KindNotFound, "route not found for method")
	errInvalidJSON      = errs.New(errs.KindInvalidInput, "invalid json body")
	errRateLimited      = errs.New(errs.KindUnavailable, "rate limit exceeded")
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code, Fields) and human-readable
// (Message, Action) fields.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Action  string            `json:"action,omitempty"`
	Code    string            `json:"code"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func errorBody(msg core.UserMessage, fields map[string]string) ErrorResponse {
	return ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
		Fields:  fields,
	}
}

// statusFor maps an error to its HTTP status code.
func statusFor(err error) int {
	var verrs core.ValidationErrors
	if errors.As(err, &verrs) {
		return http.StatusBadRequest
	}

	switch {
	case errors.Is(err, core.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, core.ErrTooManyDownloads), errors.Is(err, errRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, errMethodNotAllowed):
		return http.StatusMethodNotAllowed
	}

	switch errs.KindOf(err) {
	case errs.KindNotFound:
		return http.StatusNotFound
	case errs.KindInvalidInput:
		return http.StatusBadRequest
	case errs.KindPermissionDenied:
		return http.StatusForbidden
	case errs.KindConflict:
		return http.StatusConflict
	case errs.KindTimeout:
		return http.StatusGatewayTimeout
	case errs.KindUnavailable, errs.KindConnectionFailed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError handles error responses with user-friendly messages.
// It logs the technical error server-side and returns a response shaped
// for the client.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	userMsg := core.MapError(err)

	logger := logging.FromContext(r.Context()).With(
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"code", userMsg.Code,
		"error", err.Error(),
	)
	if status >= http.StatusInternalServerError {
		logger.Error("request error")
	} else {
		logger.Info("request rejected")
	}

	var fields map[string]string
	var verrs core.ValidationErrors
	if errors.As(err, &verrs) {
		fields = verrs.Fields()
	}

	switch {
	case isHTMX(r):
		renderErrorPartial(w, r, userMsg, status)
	case wantsJSON(r):
		writeJSON(w, status, errorBody(userMsg, fields))
	default:
		http.Error(w, userMsg.Message+" ("+userMsg.Code+")", status)
	}
}

// renderErrorPartial renders an HTMX-compatible error fragment.
func renderErrorPartial(w http.ResponseWriter, r *http.Request, msg core.UserMessage, status int) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)

	if err := templates.ErrorAlert(msg.Message, msg.Action, msg.Code).Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render error fragment", "error", err)
	}
}

// isHTMX checks if the request is an HTMX request.
func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// wantsJSON checks if the client prefers JSON response.
func wantsJSON(r *http.Request) bool {
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		return true
	}
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		return true
	}

	// API routes default to JSON
	return strings.HasPrefix(r.URL.Path, "/api/")
}

// decodeJSON reads a JSON request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errs.Wrap(errs.KindInvalidInput, errInvalidJSON.Message, err)
	}
	return nil
}
