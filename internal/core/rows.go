package core

import (
	"fmt"
	"math/rand/v2"
)

// RowSequence yields a snapshot's header followed by count generated rows.
// It is pull-based, single-pass and holds only the row being built:
//
//	seq := NewRowSequence(snap, 1_000_000, rng)
//	for row, ok := seq.Next(); ok; row, ok = seq.Next() {
//	    ...
//	}
//	if err := seq.Err(); err != nil { ... }
type RowSequence struct {
	columns    []Column
	rng        *rand.Rand
	remaining  int
	headerSent bool
	err        error
}

// NewRowSequence prepares a sequence of count+1 rows. The snapshot's
// columns are used in the order stored on it.
func NewRowSequence(snap Snapshot, count int, rng *rand.Rand) *RowSequence {
	if count < 0 {
		count = 0
	}
	return &RowSequence{
		columns:   snap.Columns,
		rng:       rng,
		remaining: count,
	}
}

// Next returns the next row. Once it reports false it keeps doing so.
// The returned slice is owned by the caller.
func (s *RowSequence) Next() ([]string, bool) {
	if s.err != nil {
		return nil, false
	}
	if !s.headerSent {
		s.headerSent = true
		header := make([]string, len(s.columns))
		for i, c := range s.columns {
			header[i] = c.Name
		}
		return header, true
	}
	if s.remaining == 0 {
		return nil, false
	}

	row := make([]string, len(s.columns))
	for i, c := range s.columns {
		v, err := c.Kind.Generate(s.rng, c.Params)
		if err != nil {
			s.err = fmt.Errorf("column %q: %w", c.Name, err)
			return nil, false
		}
		row[i] = v
	}
	s.remaining--
	return row, true
}

// Err returns the error that ended the sequence early, if any.
func (s *RowSequence) Err() error {
	return s.err
}

// Remaining returns the number of data rows not yet produced.
func (s *RowSequence) Remaining() int {
	return s.remaining
}
