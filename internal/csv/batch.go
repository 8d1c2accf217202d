package csv

import "io"

// DefaultBatchSize is the number of rows buffered between writes.
const DefaultBatchSize = 1000

// BatchWriter encodes rows into a buffer and hands the buffer to the
// underlying writer once every size rows. Memory use is bounded by one
// batch regardless of how many rows pass through.
type BatchWriter struct {
	w       io.Writer
	d       Dialect
	size    int
	buf     []byte
	pending int
	rows    int
	flushes int
}

func NewBatchWriter(w io.Writer, d Dialect, size int) *BatchWriter {
	if size <= 0 {
		size = DefaultBatchSize
	}
	return &BatchWriter{w: w, d: d, size: size}
}

// Write buffers one row, flushing when the batch is full.
func (b *BatchWriter) Write(row []string) error {
	b.buf = AppendRow(b.buf, b.d, row)
	b.pending++
	b.rows++
	if b.pending >= b.size {
		return b.Flush()
	}
	return nil
}

// Flush writes any buffered rows.
func (b *BatchWriter) Flush() error {
	if b.pending == 0 {
		return nil
	}
	_, err := b.w.Write(b.buf)
	b.buf = b.buf[:0]
	b.pending = 0
	b.flushes++
	return err
}

// Rows returns the number of rows accepted so far.
func (b *BatchWriter) Rows() int { return b.rows }

// Flushes returns the number of writes issued to the underlying writer.
func (b *BatchWriter) Flushes() int { return b.flushes }
