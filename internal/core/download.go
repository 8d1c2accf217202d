package core

// download.go streams a generated file back to its owner.
//
// The stored file is decoded and re-encoded in chunks of BatchSize rows,
// both in the dialect captured on the dataset, so a download never holds
// more than one chunk in memory. Each open stream occupies a slot of the
// download limiter until it is closed.

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/JonMunkholm/dummycsv/internal/csv"
	"github.com/JonMunkholm/dummycsv/internal/errs"
	"github.com/JonMunkholm/dummycsv/internal/filestore"
)

// OpenDataset opens one of the user's processed datasets for download.
// Every failure, including a missing file, is reported before any byte
// is produced. The caller MUST Close the stream.
func (s *Service) OpenDataset(ctx context.Context, userID int64, id string) (*DatasetStream, error) {
	ds, err := s.GetDataset(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if !ds.Processed {
		return nil, ErrDatasetNotReady
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}

	obj, err := s.files.Open(ctx, ds.FileKey())
	if err != nil {
		s.limiter.Release()
		if errs.IsNotFound(err) {
			return nil, ErrDatasetNotReady
		}
		return nil, fmt.Errorf("open dataset file %s: %w", ds.ID, err)
	}

	return newDatasetStream(ds, obj, s.opts.BatchSize, s.limiter.Release), nil
}

// DatasetStream yields a dataset's file in re-encoded chunks.
type DatasetStream struct {
	Dataset Dataset

	obj     filestore.Object
	dec     *csv.Decoder
	dialect csv.Dialect
	batch   int
	buf     []byte
	rows    int
	done    bool

	closeOnce sync.Once
	release   func()
}

func newDatasetStream(ds Dataset, obj filestore.Object, batch int, release func()) *DatasetStream {
	if batch <= 0 {
		batch = csv.DefaultBatchSize
	}
	d := ds.Snapshot.Dialect()
	return &DatasetStream{
		Dataset: ds,
		obj:     obj,
		dec:     csv.NewDecoder(obj, d),
		dialect: d,
		batch:   batch,
		release: release,
	}
}

// Filename is the attachment name of the download.
func (st *DatasetStream) Filename() string {
	return st.Dataset.FileKey()
}

// Next returns the next chunk of up to batch rows, or io.EOF after the
// last one. The chunk is only valid until the following call.
func (st *DatasetStream) Next() ([]byte, error) {
	if st.done {
		return nil, io.EOF
	}

	st.buf = st.buf[:0]
	for n := 0; n < st.batch; n++ {
		row, err := st.dec.Decode()
		if errors.Is(err, io.EOF) {
			st.done = true
			break
		}
		if err != nil {
			st.done = true
			return nil, fmt.Errorf("read dataset %s: %w", st.Dataset.ID, err)
		}
		st.buf = csv.AppendRow(st.buf, st.dialect, row)
		st.rows++
	}

	if len(st.buf) == 0 {
		return nil, io.EOF
	}
	return st.buf, nil
}

// WriteTo copies the remaining chunks to w. When w can flush, each chunk
// is flushed as soon as it is written.
func (st *DatasetStream) WriteTo(w io.Writer) (int64, error) {
	flusher, _ := w.(interface{ Flush() })

	var total int64
	for {
		chunk, err := st.Next()
		if errors.Is(err, io.EOF) {
			return total, nil
		}
		if err != nil {
			return total, err
		}
		n, err := w.Write(chunk)
		total += int64(n)
		if err != nil {
			return total, err
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

// Rows returns the number of records streamed so far, header included.
func (st *DatasetStream) Rows() int {
	return st.rows
}

// Close releases the file and the download slot. It is safe to call more
// than once.
func (st *DatasetStream) Close() error {
	var err error
	st.closeOnce.Do(func() {
		err = st.obj.Close()
		if st.release != nil {
			st.release()
		}
	})
	return err
}
