package core

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/JonMunkholm/dummycsv/internal/errs"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{"nil", nil, ""},
		{"validation", fmt.Errorf("create schema: %w", ValidationErrors{{Field: "title", Message: "this field is required"}}), "VAL001"},
		{"wrapped schema not found", fmt.Errorf("get schema 7: %w", ErrSchemaNotFound), "RES001"},
		{"column not found", ErrColumnNotFound, "RES002"},
		{"dataset not ready", ErrDatasetNotReady, "RES004"},
		{"last column", ErrLastColumn, "SCH001"},
		{"too many downloads", ErrTooManyDownloads, "DL001"},
		{"queue full", fmt.Errorf("enqueue: %w", ErrQueueFull), "GEN001"},
		{"invalid credentials", ErrInvalidCredentials, "AUTH002"},
		{"username taken", ErrUsernameTaken, "AUTH005"},
		{"cancelled", fmt.Errorf("list schemas: %w", context.Canceled), "REQ001"},
		{"deadline", context.DeadlineExceeded, "DB006"},
		{"bad json", errs.Wrap(errs.KindInvalidInput, "invalid json body", errors.New("unexpected EOF")), "REQ002"},
		{"unknown route", errs.New(errs.KindNotFound, "route not found"), "REQ003"},
		{"rate limit", errors.New("rate limit exceeded"), "RATE001"},
		{"text match ignores case", errors.New("DUPLICATE KEY value violates"), "DB001"},
		{"connection refused", errors.New("dial tcp: connection refused"), "DB004"},
		{"timeout kind", errs.Wrap(errs.KindTimeout, "query", errors.New("boom")), "DB006"},
		{"conflict kind", errs.New(errs.KindConflict, "unique violation"), "DB001"},
		{"unreachable kind", errs.Wrap(errs.KindConnectionFailed, "ping", errors.New("no route")), "DB004"},
		{"unknown", errors.New("some random internal error"), "ERR000"},
		{"unmapped kind", errs.New(errs.KindQueryFailed, "syntax"), "ERR000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MapError(tt.err).Code; got != tt.wantCode {
				t.Errorf("MapError(%v).Code = %q, want %q", tt.err, got, tt.wantCode)
			}
		})
	}
}

func TestMapError_SentinelBeforeText(t *testing.T) {
	// The wrapped text mentions a timeout but the sentinel decides.
	err := fmt.Errorf("timeout while streaming: %w", ErrDatasetNotFound)
	got := MapError(err)
	if got.Code != "RES003" || got.Message != "Dataset not found" {
		t.Errorf("MapError = %+v, want RES003", got)
	}
}

func TestMapError_EveryCodeHasText(t *testing.T) {
	for _, s := range sentinelMessages {
		if s.msg.Message == "" || s.msg.Action == "" || s.msg.Code == "" {
			t.Errorf("incomplete message for %v: %+v", s.target, s.msg)
		}
	}
	for _, m := range textMessages {
		if m.msg.Message == "" || m.msg.Action == "" || m.msg.Code == "" {
			t.Errorf("incomplete message for %q: %+v", m.substr, m.msg)
		}
	}
}
