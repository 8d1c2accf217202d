package minio

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/JonMunkholm/dummycsv/internal/errs"
	"github.com/JonMunkholm/dummycsv/internal/filestore"
	miniogo "github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want errs.Kind
	}{
		{"missing key", miniogo.ErrorResponse{Code: "NoSuchKey", StatusCode: http.StatusNotFound}, errs.KindNotFound},
		{"missing bucket wrapped", fmt.Errorf("get: %w", miniogo.ErrorResponse{Code: "NoSuchBucket"}), errs.KindNotFound},
		{"bare 404", miniogo.ErrorResponse{StatusCode: http.StatusNotFound}, errs.KindNotFound},
		{"denied", miniogo.ErrorResponse{Code: "AccessDenied", StatusCode: http.StatusForbidden}, errs.KindPermissionDenied},
		{"bad name", miniogo.ErrorResponse{Code: "InvalidObjectName"}, errs.KindInvalidInput},
		{"slow down", miniogo.ErrorResponse{Code: "SlowDown", StatusCode: http.StatusServiceUnavailable}, errs.KindTimeout},
		{"unavailable", miniogo.ErrorResponse{StatusCode: http.StatusServiceUnavailable}, errs.KindUnavailable},
		{"deadline", context.DeadlineExceeded, errs.KindTimeout},
		{"network", errors.New("dial tcp: connection refused"), errs.KindConnectionFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapError(tt.err, "op")
			assert.Equal(t, tt.want, got.Kind)
			assert.Equal(t, tt.err, got.Cause)
		})
	}

	assert.Nil(t, mapError(nil, "op"))
}

func TestNew_RequiresBucket(t *testing.T) {
	_, err := New(context.Background(), &filestore.Config{Provider: filestore.ProviderMinIO, Endpoint: "localhost:9000"})
	assert.True(t, errs.IsInvalidInput(err))
}
