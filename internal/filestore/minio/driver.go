// Package minio provides a MinIO implementation of filestore.Store.
//
// Usage:
//
//	store, err := minio.New(ctx, &filestore.Config{
//	    Provider:  filestore.ProviderMinIO,
//	    Endpoint:  "localhost:9000",
//	    AccessKey: "minioadmin",
//	    SecretKey: "minioadmin",
//	    Bucket:    "datasets",
//	})
//	if err != nil { ... }
//	defer store.Close()
package minio

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/JonMunkholm/dummycsv/internal/errs"
	"github.com/JonMunkholm/dummycsv/internal/filestore"
	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// partSize bounds the memory an upload of unknown length buffers.
const partSize = 16 << 20

var errAborted = errors.New("upload aborted")

// Driver is a MinIO implementation of filestore.Store bound to one bucket.
// It is safe for concurrent use by multiple goroutines.
type Driver struct {
	client *miniogo.Client
	bucket string
}

// New connects to MinIO, creating the bucket if it does not exist.
func New(ctx context.Context, cfg *filestore.Config) (*Driver, error) {
	if cfg.Bucket == "" {
		return nil, errs.New(errs.KindInvalidInput, "bucket is required")
	}

	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, errs.Wrap(errs.KindConnectionFailed, "failed to create minio client", err)
	}

	d := &Driver{client: client, bucket: cfg.Bucket}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, mapError(err, "failed to check bucket")
	}
	if !exists {
		err := client.MakeBucket(ctx, cfg.Bucket, miniogo.MakeBucketOptions{Region: cfg.Region})
		if err != nil && miniogo.ToErrorResponse(err).Code != "BucketAlreadyOwnedByYou" {
			return nil, mapError(err, "failed to create bucket")
		}
	}

	return d, nil
}

// --- filestore.Store implementation ---

// Ping verifies the bucket is reachable.
func (d *Driver) Ping(ctx context.Context) error {
	ok, err := d.client.BucketExists(ctx, d.bucket)
	if err != nil {
		return mapError(err, "ping failed")
	}
	if !ok {
		return errs.Newf(errs.KindNotFound, "bucket %q does not exist", d.bucket)
	}
	return nil
}

// Close is a no-op for MinIO; the SDK client holds no persistent connections.
func (d *Driver) Close() error {
	return nil
}

// Create streams the object through a pipe into PutObject. The upload runs
// until the Writer is closed or aborted.
func (d *Driver) Create(ctx context.Context, key string) (filestore.Writer, error) {
	if err := filestore.ValidateKey(key); err != nil {
		return nil, err
	}

	pr, pw := io.Pipe()
	w := &writer{pw: pw, done: make(chan error, 1)}

	go func() {
		_, err := d.client.PutObject(ctx, d.bucket, key, pr, -1, miniogo.PutObjectOptions{
			ContentType: filestore.ContentType(key),
			PartSize:    partSize,
		})
		// Unblock a writer stuck on a failed upload.
		pr.CloseWithError(err)
		w.done <- err
	}()

	return w, nil
}

// Open opens a streaming handle to the object at key.
func (d *Driver) Open(ctx context.Context, key string) (filestore.Object, error) {
	if err := filestore.ValidateKey(key); err != nil {
		return nil, err
	}

	obj, err := d.client.GetObject(ctx, d.bucket, key, miniogo.GetObjectOptions{})
	if err != nil {
		return nil, mapError(err, "failed to get object")
	}

	stat, err := obj.Stat()
	if err != nil {
		obj.Close()
		return nil, mapError(err, "failed to stat object after get")
	}

	return &object{
		ReadCloser: obj,
		info: &filestore.ObjectInfo{
			Key:          key,
			Size:         stat.Size,
			ContentType:  stat.ContentType,
			LastModified: stat.LastModified,
		},
	}, nil
}

// Stat returns metadata for the object at key without downloading it.
func (d *Driver) Stat(ctx context.Context, key string) (*filestore.ObjectInfo, error) {
	if err := filestore.ValidateKey(key); err != nil {
		return nil, err
	}

	stat, err := d.client.StatObject(ctx, d.bucket, key, miniogo.StatObjectOptions{})
	if err != nil {
		return nil, mapError(err, "failed to stat object")
	}

	return &filestore.ObjectInfo{
		Key:          stat.Key,
		Size:         stat.Size,
		ContentType:  stat.ContentType,
		LastModified: stat.LastModified,
	}, nil
}

// Remove deletes the object at key.
func (d *Driver) Remove(ctx context.Context, key string) error {
	if err := filestore.ValidateKey(key); err != nil {
		return err
	}

	err := d.client.RemoveObject(ctx, d.bucket, key, miniogo.RemoveObjectOptions{})
	if err != nil {
		if mapped := mapError(err, "failed to remove object"); !errs.IsNotFound(mapped) {
			return mapped
		}
	}
	return nil
}

// --- internal types ---

// writer feeds PutObject through a pipe.
type writer struct {
	pw   *io.PipeWriter
	done chan error
	once sync.Once
	err  error
}

func (w *writer) Write(p []byte) (int, error) {
	n, err := w.pw.Write(p)
	if err != nil {
		return n, mapError(err, "failed to upload object")
	}
	return n, nil
}

func (w *writer) Close() error {
	w.once.Do(func() {
		w.pw.Close()
		if err := <-w.done; err != nil {
			w.err = mapError(err, "failed to upload object")
		}
	})
	return w.err
}

func (w *writer) Abort() error {
	w.once.Do(func() {
		w.pw.CloseWithError(errAborted)
		<-w.done
	})
	return nil
}

// object wraps a MinIO GetObject response and exposes filestore.Object.
type object struct {
	io.ReadCloser
	info *filestore.ObjectInfo
}

func (o *object) Info() *filestore.ObjectInfo {
	return o.info
}
