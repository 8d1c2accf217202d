package core

import (
	"sort"
	"time"

	"github.com/JonMunkholm/dummycsv/internal/csv"
)

// Params is the value range of text and integer columns. Both bounds are
// integers and Start < End; End is exclusive.
type Params struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// Column is one typed column of a schema.
type Column struct {
	ID       int64   `json:"id"`
	SchemaID int64   `json:"-"`
	Name     string  `json:"name"`
	Order    int     `json:"order"`
	Kind     Kind    `json:"type"`
	Params   *Params `json:"params"`
}

// Schema is a user's definition of a CSV layout.
type Schema struct {
	ID        int64     `json:"id"`
	OwnerID   int64     `json:"-"`
	Title     string    `json:"title"`
	Separator string    `json:"separator"`
	QuoteChar string    `json:"quote_char"`
	Modified  time.Time `json:"modified"`
	Columns   []Column  `json:"columns"`
}

// Dialect returns the CSV dialect the schema's files are written in.
func (s *Schema) Dialect() csv.Dialect {
	return csv.Dialect{Separator: s.Separator, Quote: s.QuoteChar}
}

// Snapshot captures the schema as it is now, with columns in output order.
func (s *Schema) Snapshot() Snapshot {
	cols := make([]Column, len(s.Columns))
	copy(cols, s.Columns)
	SortColumns(cols)
	return Snapshot{
		Title:     s.Title,
		Separator: s.Separator,
		QuoteChar: s.QuoteChar,
		Columns:   cols,
	}
}

// SortColumns orders columns for output: ascending order, then id.
func SortColumns(cols []Column) {
	sort.SliceStable(cols, func(i, j int) bool {
		if cols[i].Order != cols[j].Order {
			return cols[i].Order < cols[j].Order
		}
		return cols[i].ID < cols[j].ID
	})
}

// Snapshot is the frozen copy of a schema a dataset is generated from.
// Later edits to the schema do not change datasets already requested.
type Snapshot struct {
	Title     string   `json:"title"`
	Separator string   `json:"separator"`
	QuoteChar string   `json:"quote_char"`
	Columns   []Column `json:"columns"`
}

// Dialect returns the CSV dialect of the snapshot.
func (s Snapshot) Dialect() csv.Dialect {
	return csv.Dialect{Separator: s.Separator, Quote: s.QuoteChar}
}

// Header returns the column names in output order.
func (s Snapshot) Header() []string {
	header := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		header[i] = c.Name
	}
	return header
}

// Dataset is a request for a generated CSV file. Its ID is also the file
// name, without the .csv extension.
type Dataset struct {
	ID        string    `json:"id"`
	OwnerID   int64     `json:"-"`
	SchemaID  int64     `json:"schema"`
	Rows      int       `json:"rows"`
	Processed bool      `json:"processed"`
	CreatedAt time.Time `json:"created"`
	Snapshot  Snapshot  `json:"-"`
}

// FileKey is the file store key of the dataset's file.
func (d *Dataset) FileKey() string {
	return d.ID + ".csv"
}

// JobState is the lifecycle position of a generation job.
type JobState string

const (
	JobPending JobState = "pending"
	JobRunning JobState = "running"
	JobDone    JobState = "done"
	JobFailed  JobState = "failed"
)

// Terminal reports whether the job will never run again.
func (s JobState) Terminal() bool {
	return s == JobDone || s == JobFailed
}

// Job tracks the generation of one dataset's file.
type Job struct {
	ID          string    `json:"id"`
	DatasetID   string    `json:"dataset_id"`
	State       JobState  `json:"state"`
	Attempts    int       `json:"attempts"`
	MaxAttempts int       `json:"max_attempts"`
	LastError   string    `json:"last_error,omitempty"`
	RunAt       time.Time `json:"run_at"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// User is an account that owns schemas.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// DefaultPageSize is the listing size when no limit is given.
const DefaultPageSize = 30

// MaxPageSize caps the limit a client may request.
const MaxPageSize = 200

// Page selects a slice of a listing.
type Page struct {
	Limit  int
	Offset int
}

// Normalize applies the default and maximum limit.
func (p Page) Normalize() Page {
	if p.Limit <= 0 {
		p.Limit = DefaultPageSize
	}
	if p.Limit > MaxPageSize {
		p.Limit = MaxPageSize
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// PageResult is a listing with the total number of matches.
type PageResult[T any] struct {
	TotalCount int `json:"total_count"`
	Result     []T `json:"result"`
}
