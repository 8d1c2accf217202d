package core

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestParseParams(t *testing.T) {
	tests := []struct {
		name    string
		kind    Kind
		raw     string
		want    *Params
		wantErr string
	}{
		{"numbers", KindInteger, `{"start": 1, "end": 10}`, &Params{Start: 1, End: 10}, ""},
		{"numeric strings", KindInteger, `{"start": "-3", "end": " 4 "}`, &Params{Start: -3, End: 4}, ""},
		{"whole float", KindInteger, `{"start": 2.0, "end": 1e2}`, &Params{Start: 2, End: 100}, ""},
		{"text range", KindText, `{"start": 0, "end": 3}`, &Params{Start: 0, End: 3}, ""},
		{"params dropped for name", KindName, `{"start": 1, "end": 2}`, nil, ""},
		{"garbage dropped for date", KindDate, `"whatever"`, nil, ""},
		{"missing", KindInteger, ``, nil, "required"},
		{"null", KindText, `null`, nil, "required"},
		{"not an object", KindInteger, `[1, 2]`, nil, "object"},
		{"missing end", KindInteger, `{"start": 1}`, nil, "end: this field is required"},
		{"fractional", KindInteger, `{"start": 1.5, "end": 3}`, nil, "whole number"},
		{"fractional string", KindInteger, `{"start": "1", "end": "2.25"}`, nil, "whole number"},
		{"word", KindInteger, `{"start": "one", "end": 3}`, nil, "must be a number"},
		{"boolean", KindInteger, `{"start": true, "end": 3}`, nil, "must be a number"},
		{"equal bounds", KindInteger, `{"start": 5, "end": 5}`, nil, "less than"},
		{"reversed bounds", KindInteger, `{"start": 6, "end": 5}`, nil, "less than"},
		{"too large", KindInteger, `{"start": 0, "end": 9007199254740992}`, nil, "between"},
		{"negative text", KindText, `{"start": -1, "end": 3}`, nil, "text range"},
		{"huge text", KindText, `{"start": 0, "end": 1001}`, nil, "text range"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseParams(tt.kind, json.RawMessage(tt.raw))
			if tt.wantErr != "" {
				if err == nil {
					t.Fatalf("expected error containing %q, got %+v", tt.wantErr, got)
				}
				if !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("error %q does not contain %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			switch {
			case tt.want == nil && got != nil:
				t.Errorf("got %+v, want nil", got)
			case tt.want != nil && (got == nil || *got != *tt.want):
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func intPtr(v int) *int { return &v }
func strPtr(v string) *string { return &v }
func raw(v string) json.RawMessage { return json.RawMessage(v) }

func TestSchemaInput_Validate(t *testing.T) {
	in := SchemaInput{
		Title: "People",
		Columns: []ColumnInput{
			{Name: "Name", Order: intPtr(1), Type: raw(`"name"`)},
			{Name: "Age", Order: intPtr(0), Type: raw(`4`), Params: raw(`{"start": 18, "end": 65}`)},
		},
	}

	s, err := in.Validate()
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if s.Separator != "," || s.QuoteChar != `"` {
		t.Errorf("defaults not applied: separator %q quote %q", s.Separator, s.QuoteChar)
	}
	if len(s.Columns) != 2 || s.Columns[1].Kind != KindInteger || s.Columns[1].Params == nil {
		t.Errorf("columns not parsed: %+v", s.Columns)
	}
}

func TestSchemaInput_ReportsEveryField(t *testing.T) {
	in := SchemaInput{
		Title:     "",
		Separator: strPtr(""),
		QuoteChar: strPtr("''"),
		Columns: []ColumnInput{
			{Name: "ok", Order: intPtr(0), Type: raw(`"job"`)},
			{Name: strings.Repeat("x", MaxColumnNameLen+1), Order: intPtr(-1), Type: raw(`"integer"`), Params: raw(`{"start": 3, "end": 1}`)},
			{Name: "bad type", Order: nil, Type: raw(`"phone"`)},
		},
	}

	_, err := in.Validate()
	var verrs ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("expected ValidationErrors, got %v", err)
	}

	fields := verrs.Fields()
	for _, f := range []string{
		"title", "separator", "quote_char",
		"columns.1.name", "columns.1.order", "columns.1.params",
		"columns.2.order", "columns.2.type",
	} {
		if _, ok := fields[f]; !ok {
			t.Errorf("missing error for %s; got %v", f, fields)
		}
	}
	if _, ok := fields["columns.0.name"]; ok {
		t.Errorf("valid column reported: %v", fields)
	}
}

func TestSchemaInput_RequiresColumns(t *testing.T) {
	_, err := SchemaInput{Title: "Empty"}.Validate()
	var verrs ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("expected ValidationErrors, got %v", err)
	}
	if _, ok := verrs.Fields()["columns"]; !ok {
		t.Errorf("expected a columns error, got %v", verrs.Fields())
	}
}

func TestSchemaInput_DialectConflict(t *testing.T) {
	in := SchemaInput{
		Title:     "Clash",
		Separator: strPtr(`|"`),
		QuoteChar: strPtr(`"`),
		Columns:   []ColumnInput{{Name: "a", Order: intPtr(0), Type: raw(`"job"`)}},
	}
	if _, err := in.Validate(); err == nil {
		t.Error("a separator containing the quote char should be rejected")
	}
}

func TestSchemaUpdate_Apply(t *testing.T) {
	base := Schema{ID: 1, Title: "Old", Separator: ",", QuoteChar: `"`}

	got, err := SchemaUpdate{Separator: strPtr(";;")}.Apply(base, false)
	if err != nil {
		t.Fatalf("partial update: %v", err)
	}
	if got.Title != "Old" || got.Separator != ";;" {
		t.Errorf("partial update = %+v", got)
	}

	if _, err := (SchemaUpdate{Separator: strPtr(";")}).Apply(base, true); err == nil {
		t.Error("full update without title should fail")
	}

	got, err = SchemaUpdate{Title: strPtr("New"), QuoteChar: strPtr("'")}.Apply(base, true)
	if err != nil {
		t.Fatalf("full update: %v", err)
	}
	if got.Title != "New" || got.QuoteChar != "'" || got.Separator != "," {
		t.Errorf("full update = %+v", got)
	}

	if _, err := (SchemaUpdate{Separator: strPtr(",,,,")}).Apply(base, false); err == nil {
		t.Error("four character separator should fail")
	}
}

func TestDatasetInput_Validate(t *testing.T) {
	tests := []struct {
		name   string
		in     DatasetInput
		fields []string
	}{
		{"valid", DatasetInput{Schema: 1, Rows: intPtr(3)}, nil},
		{"at cap", DatasetInput{Schema: 1, Rows: intPtr(100)}, nil},
		{"missing everything", DatasetInput{}, []string{"schema", "rows"}},
		{"zero rows", DatasetInput{Schema: 1, Rows: intPtr(0)}, []string{"rows"}},
		{"over cap", DatasetInput{Schema: 1, Rows: intPtr(101)}, []string{"rows"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.in.Validate(100)
			if len(tt.fields) == 0 {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			var verrs ValidationErrors
			if !errors.As(err, &verrs) {
				t.Fatalf("expected ValidationErrors, got %v", err)
			}
			for _, f := range tt.fields {
				if _, ok := verrs.Fields()[f]; !ok {
					t.Errorf("missing error for %s: %v", f, verrs.Fields())
				}
			}
		})
	}
}

func TestCredentials_Validate(t *testing.T) {
	if err := (Credentials{Username: "a", Password: "short"}).Validate(false); err != nil {
		t.Errorf("login should not check password length: %v", err)
	}
	if err := (Credentials{Username: "a", Password: "short"}).Validate(true); err == nil {
		t.Error("registration should reject short passwords")
	}
	if err := (Credentials{Username: " ", Password: "long enough"}).Validate(true); err == nil {
		t.Error("blank username should be rejected")
	}
	if err := (Credentials{Username: "alice", Password: "long enough"}).Validate(true); err != nil {
		t.Errorf("valid registration rejected: %v", err)
	}
}

func TestValidationErrors_Err(t *testing.T) {
	var verrs ValidationErrors
	if verrs.Err() != nil {
		t.Error("empty ValidationErrors should be a nil error")
	}
	verrs.add("title", "too %s", "long")
	if got := verrs.Error(); got != "validation failed: title: too long" {
		t.Errorf("Error() = %q", got)
	}
}
