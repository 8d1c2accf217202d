package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/JonMunkholm/dummycsv/internal/errs"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want errs.Kind
	}{
		{"no rows", pgx.ErrNoRows, errs.KindNotFound},
		{"wrapped no rows", fmt.Errorf("scan: %w", pgx.ErrNoRows), errs.KindNotFound},
		{"deadline", context.DeadlineExceeded, errs.KindTimeout},
		{"unique", &pgconn.PgError{Code: pgErrUniqueViolation}, errs.KindConflict},
		{"foreign key", &pgconn.PgError{Code: pgErrForeignKeyViolation}, errs.KindNotFound},
		{"check", &pgconn.PgError{Code: pgErrCheckViolation}, errs.KindInvalidInput},
		{"connection", &pgconn.PgError{Code: pgErrConnectionFailure}, errs.KindConnectionFailed},
		{"canceled statement", &pgconn.PgError{Code: pgErrQueryCanceled}, errs.KindTimeout},
		{"undefined table", &pgconn.PgError{Code: pgErrUndefinedTable, Message: "relation does not exist"}, errs.KindQueryFailed},
		{"anything else", errors.New("boom"), errs.KindQueryFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapError(tt.err, "op")
			assert.Equal(t, tt.want, errs.KindOf(got))
			assert.ErrorIs(t, got, tt.err)
		})
	}
}

func TestMapError_Nil(t *testing.T) {
	assert.NoError(t, mapError(nil, "op"))
}
