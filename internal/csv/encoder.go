package csv

import (
	"io"
	"strings"
)

// AppendRow appends one encoded record to dst and returns the extended
// buffer. Every field is quoted.
func AppendRow(dst []byte, d Dialect, row []string) []byte {
	for i, field := range row {
		if i > 0 {
			dst = append(dst, d.Separator...)
		}
		dst = append(dst, d.Quote...)
		if strings.Contains(field, d.Quote) {
			field = strings.ReplaceAll(field, d.Quote, d.Quote+d.Quote)
		}
		dst = append(dst, field...)
		dst = append(dst, d.Quote...)
	}
	return append(dst, '\r', '\n')
}

// Encoder writes records to an io.Writer, one Write per record.
type Encoder struct {
	w   io.Writer
	d   Dialect
	buf []byte
}

func NewEncoder(w io.Writer, d Dialect) *Encoder {
	return &Encoder{w: w, d: d}
}

// Encode writes a single record.
func (e *Encoder) Encode(row []string) error {
	e.buf = AppendRow(e.buf[:0], e.d, row)
	_, err := e.w.Write(e.buf)
	return err
}
