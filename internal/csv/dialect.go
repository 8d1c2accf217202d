// Package csv reads and writes delimited text with a configurable separator
// of one to three characters and a configurable quote character.
//
// Encoding always quotes every field and doubles embedded quote characters.
// Records end in "\r\n". Decoding accepts quoted and unquoted fields and
// either "\r\n" or "\n" line endings, so it reads everything the encoder
// writes back field for field.
//
// encoding/csv is not used because it only supports a single-rune comma
// and a fixed '"' quote.
package csv

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	// MaxSeparatorLen is the longest separator, in characters.
	MaxSeparatorLen = 3

	DefaultSeparator = ","
	DefaultQuote     = `"`
)

var (
	ErrSeparatorLength = fmt.Errorf("separator must be 1 to %d characters", MaxSeparatorLen)
	ErrSeparatorChars  = errors.New("separator must not contain line breaks or the quote character")
	ErrQuoteLength     = errors.New("quote character must be exactly 1 character")
	ErrQuoteChars      = errors.New("quote character must not be a line break")
)

// Dialect describes how fields are separated and quoted.
type Dialect struct {
	Separator string
	Quote     string
}

// DefaultDialect is comma separated with double quotes.
func DefaultDialect() Dialect {
	return Dialect{Separator: DefaultSeparator, Quote: DefaultQuote}
}

// ValidateSeparator checks the separator on its own.
func ValidateSeparator(sep string) error {
	n := utf8.RuneCountInString(sep)
	if n < 1 || n > MaxSeparatorLen || !utf8.ValidString(sep) {
		return ErrSeparatorLength
	}
	if strings.ContainsAny(sep, "\r\n") {
		return ErrSeparatorChars
	}
	return nil
}

// ValidateQuote checks the quote character on its own.
func ValidateQuote(quote string) error {
	if utf8.RuneCountInString(quote) != 1 || !utf8.ValidString(quote) {
		return ErrQuoteLength
	}
	if quote == "\r" || quote == "\n" {
		return ErrQuoteChars
	}
	return nil
}

// Validate checks both characters and that they do not overlap.
func (d Dialect) Validate() error {
	if err := ValidateSeparator(d.Separator); err != nil {
		return err
	}
	if err := ValidateQuote(d.Quote); err != nil {
		return err
	}
	if strings.Contains(d.Separator, d.Quote) {
		return ErrSeparatorChars
	}
	return nil
}

func (d Dialect) quoteRune() rune {
	r, _ := utf8.DecodeRuneInString(d.Quote)
	return r
}
