package core

// generate.go writes a dataset's file.
//
// The snapshot's row sequence is pulled one row at a time and pushed
// through a csv.BatchWriter, so memory stays bounded by one batch however
// many rows are requested. The file only becomes visible in the file store
// when the writer is closed; a failed attempt aborts and leaves any
// earlier content untouched.

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"time"

	"github.com/JonMunkholm/dummycsv/internal/csv"
	"github.com/JonMunkholm/dummycsv/internal/logging"
)

// WriteRows encodes the snapshot's header and count generated rows to w in
// the snapshot's dialect, batchSize rows per write. It returns the number
// of rows written, header included.
func WriteRows(ctx context.Context, w io.Writer, snap Snapshot, count, batchSize int, rng *rand.Rand) (int, error) {
	if batchSize <= 0 {
		batchSize = csv.DefaultBatchSize
	}
	bw := csv.NewBatchWriter(w, snap.Dialect(), batchSize)
	seq := NewRowSequence(snap, count, rng)

	for row, ok := seq.Next(); ok; row, ok = seq.Next() {
		if err := bw.Write(row); err != nil {
			return bw.Rows(), fmt.Errorf("write batch: %w", err)
		}
		// Check for shutdown once per batch.
		if bw.Rows()%batchSize == 0 {
			if err := ctx.Err(); err != nil {
				return bw.Rows(), err
			}
		}
	}
	if err := seq.Err(); err != nil {
		return bw.Rows(), fmt.Errorf("generate rows: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return bw.Rows(), fmt.Errorf("write batch: %w", err)
	}
	return bw.Rows(), nil
}

// generate produces the dataset's file in the file store.
func (s *Service) generate(ctx context.Context, ds Dataset) error {
	start := time.Now()

	w, err := s.files.Create(ctx, ds.FileKey())
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}

	written, err := WriteRows(ctx, w, ds.Snapshot, ds.Rows, s.opts.BatchSize, s.newRand())
	if err != nil {
		if abortErr := w.Abort(); abortErr != nil {
			logging.FromContext(ctx).Warn("failed to abort dataset file", "error", abortErr)
		}
		return err
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("commit file: %w", err)
	}

	logging.FromContext(ctx).Debug("dataset file written",
		"rows", written,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}
