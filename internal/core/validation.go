package core

// validation.go checks client input before anything reaches the store.
//
// Every problem is reported against the field it concerns, using dotted
// paths for nested input ("columns.2.params"), so a client can show all of
// them at once. Nothing invalid is ever queued for generation.

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/JonMunkholm/dummycsv/internal/csv"
)

const (
	MaxColumnNameLen  = 50
	MaxSchemaTitleLen = 250
	MaxUsernameLen    = 150
	MinPasswordLen    = 8

	// MaxParamValue keeps integer bounds exactly representable in JSON.
	MaxParamValue = 1<<53 - 1

	// MaxTextSentences caps the end of a text column's range.
	MaxTextSentences = 1000
)

// ValidationError represents a single validation error for a field.
type ValidationError struct {
	Field   string // Field path, e.g. "columns.0.params"
	Value   string // The invalid value, when it is short enough to echo
	Message string // Human-readable error message
}

func (e ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// ValidationErrors collects every problem found in one request.
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	parts := make([]string, len(v))
	for i, e := range v {
		parts[i] = e.Error()
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Fields maps each field path to its first message.
func (v ValidationErrors) Fields() map[string]string {
	fields := make(map[string]string, len(v))
	for _, e := range v {
		if _, ok := fields[e.Field]; !ok {
			fields[e.Field] = e.Message
		}
	}
	return fields
}

// Err returns v as an error, or nil when it is empty.
func (v ValidationErrors) Err() error {
	if len(v) == 0 {
		return nil
	}
	return v
}

func (v *ValidationErrors) add(field, format string, args ...any) {
	*v = append(*v, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
}

func fieldPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}

// --- params ---

// ParseParams validates the params of a column of kind k. Kinds without a
// range get nil params whatever was sent. Bounds may be JSON numbers or
// numeric strings but must be whole numbers with start < end.
func ParseParams(k Kind, raw json.RawMessage) (*Params, error) {
	if !k.NeedsParams() {
		return nil, nil
	}

	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, fmt.Errorf("this field is required for %s columns", k)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return nil, fmt.Errorf("must be an object with start and end")
	}

	start, err := parseBound(fields["start"])
	if err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}
	end, err := parseBound(fields["end"])
	if err != nil {
		return nil, fmt.Errorf("end: %w", err)
	}
	if start >= end {
		return nil, fmt.Errorf("start must be less than end")
	}
	if k == KindText && (start < 0 || end > MaxTextSentences) {
		return nil, fmt.Errorf("text range must lie within 0 and %d sentences", MaxTextSentences)
	}

	return &Params{Start: start, End: end}, nil
}

func parseBound(raw json.RawMessage) (int64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, fmt.Errorf("this field is required")
	}

	var text string
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return 0, fmt.Errorf("must be a number")
		}
		text = strings.TrimSpace(text)
	} else {
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return 0, fmt.Errorf("must be a number")
		}
		text = n.String()
	}

	f, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("must be a number")
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("must be a whole number")
	}
	if math.Abs(f) > MaxParamValue {
		return 0, fmt.Errorf("must be between -%d and %d", int64(MaxParamValue), int64(MaxParamValue))
	}
	return int64(f), nil
}

// --- input types ---

// ColumnInput is a column as sent by a client.
type ColumnInput struct {
	Name   string          `json:"name"`
	Order  *int            `json:"order"`
	Type   json.RawMessage `json:"type"`
	Params json.RawMessage `json:"params"`
}

// Validate checks the input and returns the column it describes. Field
// paths are reported under prefix.
func (in ColumnInput) Validate(prefix string) (Column, ValidationErrors) {
	var verrs ValidationErrors
	col := Column{Name: in.Name}

	switch n := utf8.RuneCountInString(in.Name); {
	case strings.TrimSpace(in.Name) == "":
		verrs.add(fieldPath(prefix, "name"), "this field is required")
	case n > MaxColumnNameLen:
		verrs.add(fieldPath(prefix, "name"), "must be at most %d characters", MaxColumnNameLen)
	}

	switch {
	case in.Order == nil:
		verrs.add(fieldPath(prefix, "order"), "this field is required")
	case *in.Order < 0:
		verrs.add(fieldPath(prefix, "order"), "must be zero or greater")
	default:
		col.Order = *in.Order
	}

	kind, err := ParseKind(in.Type)
	if err != nil {
		verrs.add(fieldPath(prefix, "type"), "%v", err)
		return col, verrs
	}
	col.Kind = kind

	params, err := ParseParams(kind, in.Params)
	if err != nil {
		verrs.add(fieldPath(prefix, "params"), "%v", err)
	}
	col.Params = params

	return col, verrs
}

// SchemaInput creates a schema together with its columns.
type SchemaInput struct {
	Title     string        `json:"title"`
	Separator *string       `json:"separator"`
	QuoteChar *string       `json:"quote_char"`
	Columns   []ColumnInput `json:"columns"`
}

// Validate checks the input and returns the schema it describes, with
// defaults applied.
func (in SchemaInput) Validate() (Schema, error) {
	var verrs ValidationErrors
	s := Schema{
		Title:     in.Title,
		Separator: csv.DefaultSeparator,
		QuoteChar: csv.DefaultQuote,
	}

	validateTitle(&verrs, in.Title)
	if in.Separator != nil {
		s.Separator = *in.Separator
	}
	if in.QuoteChar != nil {
		s.QuoteChar = *in.QuoteChar
	}
	validateDialect(&verrs, s.Separator, s.QuoteChar)

	if len(in.Columns) == 0 {
		verrs.add("columns", "at least one column is required")
	}
	for i, ci := range in.Columns {
		col, cerrs := ci.Validate(fieldPath("columns", strconv.Itoa(i)))
		verrs = append(verrs, cerrs...)
		s.Columns = append(s.Columns, col)
	}

	return s, verrs.Err()
}

// SchemaUpdate changes schema metadata. Nil fields are left as they are.
type SchemaUpdate struct {
	Title     *string `json:"title"`
	Separator *string `json:"separator"`
	QuoteChar *string `json:"quote_char"`
}

// Apply validates the update against s and returns the updated schema.
// A full update (PUT) must carry a title.
func (u SchemaUpdate) Apply(s Schema, full bool) (Schema, error) {
	var verrs ValidationErrors

	if u.Title != nil {
		s.Title = *u.Title
		validateTitle(&verrs, s.Title)
	} else if full {
		verrs.add("title", "this field is required")
	}
	if u.Separator != nil {
		s.Separator = *u.Separator
	}
	if u.QuoteChar != nil {
		s.QuoteChar = *u.QuoteChar
	}
	validateDialect(&verrs, s.Separator, s.QuoteChar)

	return s, verrs.Err()
}

// DatasetInput requests a dataset of rows rows from a schema.
type DatasetInput struct {
	Schema int64 `json:"schema"`
	Rows   *int  `json:"rows"`
}

// Validate checks the input against the configured row cap.
func (in DatasetInput) Validate(maxRows int) error {
	var verrs ValidationErrors
	if in.Schema <= 0 {
		verrs.add("schema", "this field is required")
	}
	switch {
	case in.Rows == nil:
		verrs.add("rows", "this field is required")
	case *in.Rows < 1:
		verrs.add("rows", "must be at least 1")
	case maxRows > 0 && *in.Rows > maxRows:
		verrs.add("rows", "must be at most %d", maxRows)
	}
	return verrs.Err()
}

// Credentials are a login or registration request.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Validate checks presence for login; register also enforces lengths.
func (c Credentials) Validate(register bool) error {
	var verrs ValidationErrors
	if strings.TrimSpace(c.Username) == "" {
		verrs.add("username", "this field is required")
	} else if utf8.RuneCountInString(c.Username) > MaxUsernameLen {
		verrs.add("username", "must be at most %d characters", MaxUsernameLen)
	}
	if c.Password == "" {
		verrs.add("password", "this field is required")
	} else if register && len(c.Password) < MinPasswordLen {
		verrs.add("password", "must be at least %d characters", MinPasswordLen)
	}
	return verrs.Err()
}

func validateTitle(verrs *ValidationErrors, title string) {
	switch {
	case strings.TrimSpace(title) == "":
		verrs.add("title", "this field is required")
	case utf8.RuneCountInString(title) > MaxSchemaTitleLen:
		verrs.add("title", "must be at most %d characters", MaxSchemaTitleLen)
	}
}

func validateDialect(verrs *ValidationErrors, separator, quote string) {
	sepErr := csv.ValidateSeparator(separator)
	if sepErr != nil {
		verrs.add("separator", "%v", sepErr)
	}
	if err := csv.ValidateQuote(quote); err != nil {
		verrs.add("quote_char", "%v", err)
		return
	}
	if sepErr == nil {
		if err := (csv.Dialect{Separator: separator, Quote: quote}).Validate(); err != nil {
			verrs.add("separator", "%v", err)
		}
	}
}
