// Package local provides a filesystem implementation of filestore.Store
// rooted at a media directory.
package local

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/JonMunkholm/dummycsv/internal/errs"
	"github.com/JonMunkholm/dummycsv/internal/filestore"
)

// Driver stores each object as a file under root.
// It is safe for concurrent use by multiple goroutines.
type Driver struct {
	root string
}

// New creates the media root if needed and returns a Driver.
func New(cfg *filestore.Config) (*Driver, error) {
	if cfg.Root == "" {
		return nil, errs.New(errs.KindInvalidInput, "media root is required")
	}
	if err := os.MkdirAll(cfg.Root, 0o755); err != nil {
		return nil, mapError(err, "failed to create media root")
	}
	return &Driver{root: cfg.Root}, nil
}

// Root returns the media directory.
func (d *Driver) Root() string { return d.root }

func (d *Driver) path(key string) (string, error) {
	if err := filestore.ValidateKey(key); err != nil {
		return "", err
	}
	return filepath.Join(d.root, filepath.FromSlash(key)), nil
}

// Ping checks that the media root is still a directory.
func (d *Driver) Ping(ctx context.Context) error {
	info, err := os.Stat(d.root)
	if err != nil {
		return mapError(err, "media root unavailable")
	}
	if !info.IsDir() {
		return errs.Newf(errs.KindUnavailable, "media root %q is not a directory", d.root)
	}
	return nil
}

// Close is a no-op; files are closed by their handles.
func (d *Driver) Close() error {
	return nil
}

// Create writes to a temporary file next to the target and renames it into
// place on Close.
func (d *Driver) Create(ctx context.Context, key string) (filestore.Writer, error) {
	target, err := d.path(key)
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, mapError(err, "failed to create directory")
	}
	f, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return nil, mapError(err, "failed to create file")
	}
	return &writer{f: f, target: target}, nil
}

// Open opens the file at key for reading.
func (d *Driver) Open(ctx context.Context, key string) (filestore.Object, error) {
	p, err := d.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, mapError(err, "failed to open file")
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, mapError(err, "failed to stat file after open")
	}
	return &object{File: f, info: objectInfo(key, stat)}, nil
}

// Stat returns the file's metadata.
func (d *Driver) Stat(ctx context.Context, key string) (*filestore.ObjectInfo, error) {
	p, err := d.path(key)
	if err != nil {
		return nil, err
	}
	stat, err := os.Stat(p)
	if err != nil {
		return nil, mapError(err, "failed to stat file")
	}
	return objectInfo(key, stat), nil
}

// Remove deletes the file at key.
func (d *Driver) Remove(ctx context.Context, key string) error {
	p, err := d.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return mapError(err, "failed to remove file")
	}
	return nil
}

func objectInfo(key string, stat fs.FileInfo) *filestore.ObjectInfo {
	return &filestore.ObjectInfo{
		Key:          key,
		Size:         stat.Size(),
		ContentType:  filestore.ContentType(key),
		LastModified: stat.ModTime(),
	}
}

type writer struct {
	f      *os.File
	target string
	done   bool
}

func (w *writer) Write(p []byte) (int, error) {
	n, err := w.f.Write(p)
	if err != nil {
		return n, mapError(err, "failed to write file")
	}
	return n, nil
}

func (w *writer) Close() error {
	if w.done {
		return nil
	}
	w.done = true
	if err := w.f.Close(); err != nil {
		os.Remove(w.f.Name())
		return mapError(err, "failed to close file")
	}
	if err := os.Rename(w.f.Name(), w.target); err != nil {
		os.Remove(w.f.Name())
		return mapError(err, "failed to commit file")
	}
	return nil
}

func (w *writer) Abort() error {
	if w.done {
		return nil
	}
	w.done = true
	w.f.Close()
	if err := os.Remove(w.f.Name()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return mapError(err, "failed to discard file")
	}
	return nil
}

type object struct {
	*os.File
	info *filestore.ObjectInfo
}

func (o *object) Info() *filestore.ObjectInfo {
	return o.info
}
