// Package filestore defines the interface for the backends that hold
// generated dataset files.
//
// Drivers live in sub-packages (local, minio). Callers depend only on this
// package:
//
//	w, err := store.Create(ctx, "3f2a...e1.csv")
//	if err != nil { ... }
//	if _, err := w.Write(chunk); err != nil {
//	    w.Abort()
//	    ...
//	}
//	err = w.Close() // the object becomes visible here
package filestore

import (
	"context"
	"io"
	"mime"
	"path"
	"strings"
	"time"

	"github.com/JonMunkholm/dummycsv/internal/errs"
)

// Store is implemented by every file storage backend.
type Store interface {
	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases any held resources.
	Close() error

	// Create starts writing the object at key, replacing any existing
	// object once the returned Writer is closed.
	Create(ctx context.Context, key string) (Writer, error)

	// Open returns a streaming handle to the object at key.
	// The caller MUST call Object.Close() after reading.
	Open(ctx context.Context, key string) (Object, error)

	// Stat returns metadata without reading the content.
	Stat(ctx context.Context, key string) (*ObjectInfo, error)

	// Remove deletes the object at key. Removing a missing object is not
	// an error.
	Remove(ctx context.Context, key string) error
}

// Writer receives an object's content.
type Writer interface {
	io.Writer

	// Close commits the content. Nothing is visible under the key before
	// Close returns nil.
	Close() error

	// Abort discards everything written so far.
	Abort() error
}

// Object is a streaming handle to an object's content.
type Object interface {
	io.ReadCloser

	// Info returns the metadata for this object.
	Info() *ObjectInfo
}

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	ContentType  string
	LastModified time.Time
}

// Provider identifies the file storage backend.
type Provider string

const (
	ProviderLocal Provider = "local"
	ProviderMinIO Provider = "minio"
)

// Config holds the settings of every driver; each reads only its own.
type Config struct {
	Provider Provider

	// Root is the media directory of the local driver.
	Root string

	// MinIO connection.
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Region    string
	Bucket    string
}

// ValidateKey rejects keys that could escape the store's namespace.
func ValidateKey(key string) error {
	switch {
	case key == "":
		return errs.New(errs.KindInvalidInput, "empty object key")
	case strings.HasPrefix(key, "/"), strings.Contains(key, `\`):
		return errs.Newf(errs.KindInvalidInput, "invalid object key %q", key)
	case path.Clean(key) != key:
		return errs.Newf(errs.KindInvalidInput, "invalid object key %q", key)
	case key == ".." || strings.HasPrefix(key, "../"):
		return errs.Newf(errs.KindInvalidInput, "invalid object key %q", key)
	}
	return nil
}

// ContentType guesses the MIME type stored alongside an object.
func ContentType(key string) string {
	ext := strings.ToLower(path.Ext(key))
	if ext == ".csv" {
		return "text/csv"
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}
