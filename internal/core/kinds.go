package core

// kinds.go defines the closed set of column kinds and how each one
// generates a value.
//
// The kind table is a fixed array indexed by Kind. Adding a kind without a
// table entry (or the reverse) fails to compile because of the array length
// assertion below.

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"
)

// Kind identifies how a column's values are generated.
type Kind uint8

const (
	KindName Kind = iota + 1
	KindJob
	KindText
	KindInteger
	KindDate

	kindEnd
)

const kindCount = int(kindEnd) - 1

// Date values are drawn between the Unix epoch and this instant.
var referenceTime = time.Now().UTC()

type generateFunc func(rng *rand.Rand, p *Params) (string, error)

type kindSpec struct {
	sid         string
	label       string
	needsParams bool
	generate    generateFunc
}

var kindTable = [...]kindSpec{
	KindName - 1:    {sid: "name", label: "Full name", generate: generateName},
	KindJob - 1:     {sid: "job", label: "Job", generate: generateJob},
	KindText - 1:    {sid: "text", label: "Text", needsParams: true, generate: generateText},
	KindInteger - 1: {sid: "integer", label: "Integer", needsParams: true, generate: generateInteger},
	KindDate - 1:    {sid: "date", label: "Date", generate: generateDate},
}

// Every kind has exactly one table entry.
var _ [kindCount]kindSpec = kindTable

// ColumnType is the public description of a kind.
type ColumnType struct {
	ID    int    `json:"id"`
	SID   string `json:"sid"`
	Label string `json:"label"`
}

// ColumnTypes lists every kind in table order.
func ColumnTypes() []ColumnType {
	types := make([]ColumnType, 0, kindCount)
	for i, spec := range kindTable {
		types = append(types, ColumnType{ID: i + 1, SID: spec.sid, Label: spec.label})
	}
	return types
}

func (k Kind) valid() bool { return k >= KindName && k < kindEnd }

func (k Kind) spec() kindSpec { return kindTable[k-1] }

// SID returns the kind's string identifier, e.g. "integer".
func (k Kind) SID() string {
	if !k.valid() {
		return ""
	}
	return k.spec().sid
}

func (k Kind) String() string {
	if !k.valid() {
		return fmt.Sprintf("Kind(%d)", k)
	}
	return k.spec().sid
}

// NeedsParams reports whether the kind requires a {start, end} range.
func (k Kind) NeedsParams() bool {
	return k.valid() && k.spec().needsParams
}

// Generate produces one value. Calls share no state.
func (k Kind) Generate(rng *rand.Rand, p *Params) (string, error) {
	if !k.valid() {
		return "", fmt.Errorf("unknown column kind %d", k)
	}
	spec := k.spec()
	if spec.needsParams {
		if p == nil {
			return "", fmt.Errorf("%s column requires params", spec.sid)
		}
		if p.Start >= p.End {
			return "", fmt.Errorf("%s column: start %d must be below end %d", spec.sid, p.Start, p.End)
		}
	}
	return spec.generate(rng, p)
}

// LookupKind finds a kind by its string identifier.
func LookupKind(sid string) (Kind, bool) {
	for i, spec := range kindTable {
		if spec.sid == sid {
			return Kind(i + 1), true
		}
	}
	return 0, false
}

// ParseKind accepts a kind as its sid ("integer") or its 1-based id (4).
func ParseKind(raw json.RawMessage) (Kind, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, fmt.Errorf("this field is required")
	}

	var sid string
	if err := json.Unmarshal(raw, &sid); err == nil {
		if k, ok := LookupKind(strings.ToLower(strings.TrimSpace(sid))); ok {
			return k, nil
		}
		if id, err := strconv.Atoi(sid); err == nil && id >= 1 && id <= kindCount {
			return Kind(id), nil
		}
		return 0, fmt.Errorf("unknown column type %q", sid)
	}

	var id int
	if err := json.Unmarshal(raw, &id); err == nil {
		if id >= 1 && id <= kindCount {
			return Kind(id), nil
		}
		return 0, fmt.Errorf("unknown column type %d", id)
	}

	return 0, fmt.Errorf("column type must be a type id or sid")
}

func (k Kind) MarshalJSON() ([]byte, error) {
	if !k.valid() {
		return nil, fmt.Errorf("marshal unknown column kind %d", k)
	}
	return json.Marshal(k.SID())
}

func (k *Kind) UnmarshalJSON(data []byte) error {
	parsed, err := ParseKind(data)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// --- generators ---

func generateName(rng *rand.Rand, _ *Params) (string, error) {
	return pick(rng, samples.FirstNames) + " " + pick(rng, samples.LastNames), nil
}

func generateJob(rng *rand.Rand, _ *Params) (string, error) {
	return pick(rng, samples.Jobs), nil
}

// generateText joins n sentences, n uniform in [start, end).
func generateText(rng *rand.Rand, p *Params) (string, error) {
	n := int(p.Start + rng.Int64N(p.End-p.Start))
	if n == 0 {
		return "", nil
	}
	var b strings.Builder
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(pick(rng, samples.Sentences))
	}
	return b.String(), nil
}

// generateInteger returns a uniform integer in [start, end).
func generateInteger(rng *rand.Rand, p *Params) (string, error) {
	return strconv.FormatInt(p.Start+rng.Int64N(p.End-p.Start), 10), nil
}

func generateDate(rng *rand.Rand, _ *Params) (string, error) {
	sec := rng.Int64N(referenceTime.Unix() + 1)
	return time.Unix(sec, 0).UTC().Format(time.DateOnly), nil
}

func pick(rng *rand.Rand, pool []string) string {
	return pool[rng.IntN(len(pool))]
}
