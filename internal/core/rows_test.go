package core

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strconv"
	"testing"

	"github.com/JonMunkholm/dummycsv/internal/csv"
)

func testSnapshot() Snapshot {
	s := Schema{
		Title:     "People",
		Separator: ",",
		QuoteChar: `"`,
		Columns: []Column{
			{ID: 2, Name: "Bio", Order: 2, Kind: KindText, Params: &Params{Start: 1, End: 3}},
			{ID: 1, Name: "Name", Order: 0, Kind: KindName},
			{ID: 3, Name: "Age", Order: 1, Kind: KindInteger, Params: &Params{Start: 18, End: 65}},
			{ID: 4, Name: "Born", Order: 1, Kind: KindDate},
		},
	}
	return s.Snapshot()
}

func TestSnapshot_OrdersColumns(t *testing.T) {
	got := testSnapshot().Header()
	want := []string{"Name", "Age", "Born", "Bio"}
	if len(got) != len(want) {
		t.Fatalf("Header() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Header()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestRowSequence_HeaderThenRows(t *testing.T) {
	snap := testSnapshot()
	seq := NewRowSequence(snap, 5, testRand())

	var rows [][]string
	for row, ok := seq.Next(); ok; row, ok = seq.Next() {
		rows = append(rows, row)
	}
	if err := seq.Err(); err != nil {
		t.Fatalf("Err() = %v", err)
	}
	if len(rows) != 6 {
		t.Fatalf("got %d rows, want 6", len(rows))
	}
	for i, name := range snap.Header() {
		if rows[0][i] != name {
			t.Errorf("header[%d] = %q, want %q", i, rows[0][i], name)
		}
	}
	for _, row := range rows[1:] {
		if len(row) != 4 {
			t.Fatalf("row has %d fields, want 4", len(row))
		}
		age, err := strconv.Atoi(row[1])
		if err != nil || age < 18 || age >= 65 {
			t.Errorf("age %q outside [18, 65)", row[1])
		}
	}

	if _, ok := seq.Next(); ok {
		t.Error("exhausted sequence produced another row")
	}
	if seq.Remaining() != 0 {
		t.Errorf("Remaining() = %d", seq.Remaining())
	}
}

func TestRowSequence_ZeroRows(t *testing.T) {
	seq := NewRowSequence(testSnapshot(), 0, testRand())
	if _, ok := seq.Next(); !ok {
		t.Fatal("header missing")
	}
	if _, ok := seq.Next(); ok {
		t.Error("expected only the header")
	}
}

func TestRowSequence_StopsOnGeneratorError(t *testing.T) {
	snap := Snapshot{Columns: []Column{{Name: "Broken", Kind: KindInteger}}}
	seq := NewRowSequence(snap, 3, testRand())

	seq.Next() // header
	if _, ok := seq.Next(); ok {
		t.Fatal("row produced without params")
	}
	if seq.Err() == nil {
		t.Fatal("Err() should report the generator failure")
	}
	if _, ok := seq.Next(); ok {
		t.Error("sequence resumed after an error")
	}
}

func TestWriteRows_ChunkedMatchesUnchunked(t *testing.T) {
	snap := testSnapshot()
	snap.Separator = "~|"
	snap.QuoteChar = "'"

	var reference bytes.Buffer
	enc := csv.NewEncoder(&reference, snap.Dialect())
	seq := NewRowSequence(snap, 25, testRand())
	for row, ok := seq.Next(); ok; row, ok = seq.Next() {
		if err := enc.Encode(row); err != nil {
			t.Fatalf("Encode: %v", err)
		}
	}

	for _, batch := range []int{1, 7, 26, 1000} {
		var chunked bytes.Buffer
		n, err := WriteRows(context.Background(), &chunked, snap, 25, batch, testRand())
		if err != nil {
			t.Fatalf("batch %d: WriteRows: %v", batch, err)
		}
		if n != 26 {
			t.Errorf("batch %d: wrote %d rows, want 26", batch, n)
		}
		if !bytes.Equal(chunked.Bytes(), reference.Bytes()) {
			t.Errorf("batch %d: output differs from the unchunked encoding", batch)
		}
	}
}

func TestWriteRows_RoundTrip(t *testing.T) {
	snap := testSnapshot()
	var buf bytes.Buffer
	if _, err := WriteRows(context.Background(), &buf, snap, 50, 10, testRand()); err != nil {
		t.Fatalf("WriteRows: %v", err)
	}

	dec := csv.NewDecoder(&buf, snap.Dialect())
	records := 0
	for {
		rec, err := dec.Decode()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if len(rec) != len(snap.Columns) {
			t.Fatalf("record %d has %d fields", records, len(rec))
		}
		records++
	}
	if records != 51 {
		t.Errorf("decoded %d records, want 51", records)
	}
}

func TestWriteRows_StopsWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var buf bytes.Buffer
	_, err := WriteRows(ctx, &buf, testSnapshot(), 100, 10, testRand())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
