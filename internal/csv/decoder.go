package csv

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

var (
	ErrUnterminatedQuote = errors.New("quoted field is not terminated")
	ErrTrailingQuote     = errors.New("unexpected character after closing quote")
)

// ParseError reports the record line where decoding failed.
type ParseError struct {
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error on line %d: %v", e.Line, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Decoder reads records written by Encoder, or any file using the same
// separator and quote.
type Decoder struct {
	r     *bufio.Reader
	sep   []byte
	quote rune
	line  int
	start int
	field strings.Builder
}

func NewDecoder(r io.Reader, d Dialect) *Decoder {
	return &Decoder{
		r:     bufio.NewReader(r),
		sep:   []byte(d.Separator),
		quote: d.quoteRune(),
	}
}

// Line returns the line the last record started on, 1-based.
func (d *Decoder) Line() int { return d.start }

// Decode returns the next record, or io.EOF when the input is exhausted.
func (d *Decoder) Decode() ([]string, error) {
	if _, err := d.r.Peek(1); err != nil {
		return nil, err
	}
	d.line++
	d.start = d.line

	var fields []string
	for {
		value, end, err := d.readField()
		if err != nil {
			return nil, &ParseError{Line: d.start, Err: err}
		}
		fields = append(fields, value)
		if end {
			return fields, nil
		}
	}
}

// readField reads one field and reports whether it closed the record.
func (d *Decoder) readField() (string, bool, error) {
	d.field.Reset()

	r, _, err := d.r.ReadRune()
	if err == io.EOF {
		return "", true, nil
	}
	if err != nil {
		return "", false, err
	}
	if r == d.quote {
		return d.readQuoted()
	}
	if err := d.r.UnreadRune(); err != nil {
		return "", false, err
	}

	for {
		if d.atSeparator() {
			return d.field.String(), false, nil
		}
		r, raw, err := d.readRune()
		if err == io.EOF {
			return d.field.String(), true, nil
		}
		if err != nil {
			return "", false, err
		}
		if r == '\r' || r == '\n' {
			d.endLine(r)
			return d.field.String(), true, nil
		}
		d.keep(r, raw)
	}
}

func (d *Decoder) readQuoted() (string, bool, error) {
	for {
		r, raw, err := d.readRune()
		if err == io.EOF {
			return "", false, ErrUnterminatedQuote
		}
		if err != nil {
			return "", false, err
		}

		if r != d.quote {
			if r == '\n' {
				d.line++
			}
			d.keep(r, raw)
			continue
		}

		// Closing quote or the first half of a doubled quote.
		next, _, err := d.r.ReadRune()
		if err == io.EOF {
			return d.field.String(), true, nil
		}
		if err != nil {
			return "", false, err
		}
		if next == d.quote {
			d.field.WriteRune(d.quote)
			continue
		}
		if next == '\r' || next == '\n' {
			d.endLine(next)
			return d.field.String(), true, nil
		}
		if err := d.r.UnreadRune(); err != nil {
			return "", false, err
		}
		if d.atSeparator() {
			return d.field.String(), false, nil
		}
		return "", false, ErrTrailingQuote
	}
}

// readRune reads one rune. An invalid UTF-8 byte is reported as raw so it
// can be kept as is; raw is -1 otherwise.
func (d *Decoder) readRune() (r rune, raw int, err error) {
	b, err := d.r.Peek(1)
	if err != nil {
		return 0, -1, err
	}
	r, size, err := d.r.ReadRune()
	if err != nil {
		return 0, -1, err
	}
	if r == utf8.RuneError && size == 1 {
		return r, int(b[0]), nil
	}
	return r, -1, nil
}

func (d *Decoder) keep(r rune, raw int) {
	if raw >= 0 {
		d.field.WriteByte(byte(raw))
		return
	}
	d.field.WriteRune(r)
}

// atSeparator consumes the separator if it is next in the input.
func (d *Decoder) atSeparator() bool {
	b, _ := d.r.Peek(len(d.sep))
	if !bytes.Equal(b, d.sep) {
		return false
	}
	_, _ = d.r.Discard(len(d.sep))
	return true
}

// endLine swallows the '\n' of a "\r\n" pair.
func (d *Decoder) endLine(r rune) {
	if r != '\r' {
		return
	}
	if b, err := d.r.Peek(1); err == nil && b[0] == '\n' {
		_, _ = d.r.Discard(1)
	}
}
