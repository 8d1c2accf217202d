// Package storetest holds the behaviour every core.Store must share. Each
// implementation's tests call Run with a constructor for an empty store.
package storetest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/dummycsv/internal/core"
	"github.com/JonMunkholm/dummycsv/internal/errs"
)

// Run exercises s against the core.Store contract. newStore must return an
// empty store each time it is called.
func Run(t *testing.T, newStore func(t *testing.T) core.Store) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s core.Store)
	}{
		{"Users", testUsers},
		{"SchemaLifecycle", testSchemaLifecycle},
		{"ListSchemasOrderAndPaging", testListSchemas},
		{"Columns", testColumns},
		{"DeleteLastColumn", testDeleteLastColumn},
		{"DatasetLifecycle", testDatasetLifecycle},
		{"DeleteSchemaCascades", testDeleteSchemaCascades},
		{"JobStateMachine", testJobStateMachine},
		{"DueAndStaleJobs", testDueAndStaleJobs},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newStore(t))
		})
	}
}

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newUser(t *testing.T, s core.Store, name string) core.User {
	t.Helper()
	u, err := s.CreateUser(context.Background(), name, []byte("hash"), base)
	require.NoError(t, err)
	return u
}

func newSchema(t *testing.T, s core.Store, ownerID int64, title string, modified time.Time) core.Schema {
	t.Helper()
	schema, err := s.CreateSchema(context.Background(), core.Schema{
		OwnerID:   ownerID,
		Title:     title,
		Separator: ",",
		QuoteChar: `"`,
		Modified:  modified,
		Columns: []core.Column{
			{Name: "Name", Order: 1, Kind: core.KindName},
			{Name: "Age", Order: 0, Kind: core.KindInteger, Params: &core.Params{Start: 18, End: 65}},
		},
	})
	require.NoError(t, err)
	return schema
}

func newDataset(t *testing.T, s core.Store, schema core.Schema, created time.Time) (core.Dataset, core.Job) {
	t.Helper()
	id := uuid.New()
	d, j, err := s.CreateDataset(context.Background(), core.Dataset{
		ID:        fmt.Sprintf("%x", id[:]),
		OwnerID:   schema.OwnerID,
		SchemaID:  schema.ID,
		Rows:      3,
		CreatedAt: created,
		Snapshot:  schema.Snapshot(),
	}, core.Job{
		ID:          uuid.NewString(),
		State:       core.JobPending,
		MaxAttempts: 3,
		RunAt:       created,
		CreatedAt:   created,
		UpdatedAt:   created,
	})
	require.NoError(t, err)
	return d, j
}

func requireKind(t *testing.T, kind errs.Kind, err error) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, kind, errs.KindOf(err), "error: %v", err)
}

func testUsers(t *testing.T, s core.Store) {
	ctx := context.Background()
	u := newUser(t, s, "alice")
	assert.NotZero(t, u.ID)

	got, err := s.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, []byte("hash"), got.PasswordHash)

	byID, err := s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", byID.Username)

	_, err = s.CreateUser(ctx, "alice", []byte("other"), base)
	requireKind(t, errs.KindConflict, err)

	_, err = s.GetUserByUsername(ctx, "bob")
	requireKind(t, errs.KindNotFound, err)
	_, err = s.GetUser(ctx, u.ID+100)
	requireKind(t, errs.KindNotFound, err)
}

func testSchemaLifecycle(t *testing.T, s core.Store) {
	ctx := context.Background()
	u := newUser(t, s, "alice")
	schema := newSchema(t, s, u.ID, "People", base)

	require.Len(t, schema.Columns, 2)
	for _, c := range schema.Columns {
		assert.NotZero(t, c.ID)
	}

	got, err := s.GetSchema(ctx, schema.ID)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.OwnerID)
	assert.Equal(t, "People", got.Title)
	require.Len(t, got.Columns, 2)
	assert.Equal(t, "Age", got.Columns[0].Name, "columns come back in output order")
	assert.Equal(t, &core.Params{Start: 18, End: 65}, got.Columns[0].Params)
	assert.Nil(t, got.Columns[1].Params)

	got.Title = "Staff"
	got.Separator = ";;"
	got.QuoteChar = "'"
	got.Modified = base.Add(time.Hour)
	updated, err := s.UpdateSchema(ctx, got)
	require.NoError(t, err)
	assert.Equal(t, "Staff", updated.Title)
	assert.Equal(t, ";;", updated.Separator)
	assert.Equal(t, "'", updated.QuoteChar)
	assert.True(t, updated.Modified.Equal(base.Add(time.Hour)))
	assert.Len(t, updated.Columns, 2)

	_, err = s.GetSchema(ctx, schema.ID+100)
	requireKind(t, errs.KindNotFound, err)
	_, err = s.UpdateSchema(ctx, core.Schema{ID: schema.ID + 100, Title: "x", Separator: ",", QuoteChar: `"`})
	requireKind(t, errs.KindNotFound, err)
}

func testListSchemas(t *testing.T, s core.Store) {
	ctx := context.Background()
	alice := newUser(t, s, "alice")
	bob := newUser(t, s, "bob")

	for i := 0; i < 5; i++ {
		newSchema(t, s, alice.ID, fmt.Sprintf("schema %d", i), base.Add(time.Duration(i)*time.Minute))
	}
	newSchema(t, s, bob.ID, "bob's", base)

	list, total, err := s.ListSchemas(ctx, alice.ID, core.Page{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, list, 2)
	assert.Equal(t, "schema 4", list[0].Title)
	assert.Equal(t, "schema 3", list[1].Title)

	list, total, err = s.ListSchemas(ctx, alice.ID, core.Page{Limit: 2, Offset: 4})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, list, 1)
	assert.Equal(t, "schema 0", list[0].Title)

	list, total, err = s.ListSchemas(ctx, bob.ID, core.Page{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, list, 1)
	assert.Len(t, list[0].Columns, 2)
}

func testColumns(t *testing.T, s core.Store) {
	ctx := context.Background()
	u := newUser(t, s, "alice")
	schema := newSchema(t, s, u.ID, "People", base)

	added, err := s.CreateColumn(ctx, core.Column{
		SchemaID: schema.ID,
		Name:     "Bio",
		Order:    5,
		Kind:     core.KindText,
		Params:   &core.Params{Start: 1, End: 3},
	}, base.Add(time.Hour))
	require.NoError(t, err)
	assert.NotZero(t, added.ID)

	got, err := s.GetSchema(ctx, schema.ID)
	require.NoError(t, err)
	require.Len(t, got.Columns, 3)
	assert.Equal(t, "Bio", got.Columns[2].Name)
	assert.True(t, got.Modified.Equal(base.Add(time.Hour)), "adding a column bumps modified")

	added.Name = "Biography"
	added.Order = 0
	added.Kind = core.KindDate
	added.Params = nil
	_, err = s.UpdateColumn(ctx, added, base.Add(2*time.Hour))
	require.NoError(t, err)

	got, err = s.GetSchema(ctx, schema.ID)
	require.NoError(t, err)
	var found bool
	for _, c := range got.Columns {
		if c.ID == added.ID {
			found = true
			assert.Equal(t, "Biography", c.Name)
			assert.Equal(t, core.KindDate, c.Kind)
			assert.Nil(t, c.Params)
		}
	}
	assert.True(t, found)
	assert.True(t, got.Modified.Equal(base.Add(2*time.Hour)))

	// A column only matches within its own schema.
	other := newSchema(t, s, u.ID, "Other", base)
	wrong := added
	wrong.SchemaID = other.ID
	_, err = s.UpdateColumn(ctx, wrong, base)
	requireKind(t, errs.KindNotFound, err)
	requireKind(t, errs.KindNotFound, s.DeleteColumn(ctx, other.ID, added.ID, base))

	require.NoError(t, s.DeleteColumn(ctx, schema.ID, added.ID, base.Add(3*time.Hour)))
	got, err = s.GetSchema(ctx, schema.ID)
	require.NoError(t, err)
	assert.Len(t, got.Columns, 2)
	assert.True(t, got.Modified.Equal(base.Add(3*time.Hour)))

	_, err = s.CreateColumn(ctx, core.Column{SchemaID: schema.ID + 100, Name: "x", Kind: core.KindJob}, base)
	requireKind(t, errs.KindNotFound, err)
}

func testDeleteLastColumn(t *testing.T, s core.Store) {
	ctx := context.Background()
	u := newUser(t, s, "alice")
	schema := newSchema(t, s, u.ID, "People", base)

	require.NoError(t, s.DeleteColumn(ctx, schema.ID, schema.Columns[0].ID, base))
	requireKind(t, errs.KindConflict, s.DeleteColumn(ctx, schema.ID, schema.Columns[1].ID, base))

	got, err := s.GetSchema(ctx, schema.ID)
	require.NoError(t, err)
	assert.Len(t, got.Columns, 1)
}

func testDatasetLifecycle(t *testing.T, s core.Store) {
	ctx := context.Background()
	u := newUser(t, s, "alice")
	schema := newSchema(t, s, u.ID, "People", base)

	d, j := newDataset(t, s, schema, base)
	assert.Equal(t, d.ID, j.DatasetID)
	assert.False(t, d.Processed)

	got, err := s.GetDataset(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.OwnerID)
	assert.Equal(t, schema.ID, got.SchemaID)
	assert.Equal(t, 3, got.Rows)
	assert.Equal(t, "People", got.Snapshot.Title)
	assert.Equal(t, []string{"Age", "Name"}, got.Snapshot.Header())
	assert.Equal(t, schema.Dialect(), got.Snapshot.Dialect())
	require.Len(t, got.Snapshot.Columns, 2)
	assert.Equal(t, core.KindInteger, got.Snapshot.Columns[0].Kind)
	assert.Equal(t, &core.Params{Start: 18, End: 65}, got.Snapshot.Columns[0].Params)

	// The snapshot does not follow later schema edits.
	schema.Title = "Renamed"
	schema.Modified = base.Add(time.Hour)
	_, err = s.UpdateSchema(ctx, schema)
	require.NoError(t, err)
	got, err = s.GetDataset(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, "People", got.Snapshot.Title)

	job, err := s.GetJobByDataset(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, j.ID, job.ID)
	assert.Equal(t, core.JobPending, job.State)

	d2, _ := newDataset(t, s, schema, base.Add(time.Minute))
	list, total, err := s.ListDatasets(ctx, u.ID, core.Page{})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, list, 2)
	assert.Equal(t, d2.ID, list[0].ID, "newest first")

	require.NoError(t, s.MarkDatasetProcessed(ctx, d.ID))
	got, err = s.GetDataset(ctx, d.ID)
	require.NoError(t, err)
	assert.True(t, got.Processed)
	assert.Equal(t, 3, got.Rows)

	require.NoError(t, s.DeleteDataset(ctx, d.ID))
	_, err = s.GetDataset(ctx, d.ID)
	requireKind(t, errs.KindNotFound, err)
	_, err = s.GetJob(ctx, j.ID)
	requireKind(t, errs.KindNotFound, err)
	requireKind(t, errs.KindNotFound, s.DeleteDataset(ctx, d.ID))
	requireKind(t, errs.KindNotFound, s.MarkDatasetProcessed(ctx, d.ID))

	_, _, err = s.CreateDataset(ctx, core.Dataset{ID: "x", OwnerID: u.ID, SchemaID: schema.ID + 100, Rows: 1, CreatedAt: base},
		core.Job{ID: uuid.NewString(), State: core.JobPending, MaxAttempts: 1, RunAt: base, CreatedAt: base, UpdatedAt: base})
	requireKind(t, errs.KindNotFound, err)
}

func testDeleteSchemaCascades(t *testing.T, s core.Store) {
	ctx := context.Background()
	u := newUser(t, s, "alice")
	schema := newSchema(t, s, u.ID, "People", base)
	keep := newSchema(t, s, u.ID, "Keep", base)

	d1, j1 := newDataset(t, s, schema, base)
	d2, _ := newDataset(t, s, schema, base)
	d3, _ := newDataset(t, s, keep, base)

	removed, err := s.DeleteSchema(ctx, schema.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{d1.ID, d2.ID}, removed)

	_, err = s.GetSchema(ctx, schema.ID)
	requireKind(t, errs.KindNotFound, err)
	_, err = s.GetDataset(ctx, d1.ID)
	requireKind(t, errs.KindNotFound, err)
	_, err = s.GetJob(ctx, j1.ID)
	requireKind(t, errs.KindNotFound, err)

	_, err = s.GetDataset(ctx, d3.ID)
	require.NoError(t, err)

	_, err = s.DeleteSchema(ctx, schema.ID)
	requireKind(t, errs.KindNotFound, err)
}

func testJobStateMachine(t *testing.T, s core.Store) {
	ctx := context.Background()
	u := newUser(t, s, "alice")
	schema := newSchema(t, s, u.ID, "People", base)
	_, j := newDataset(t, s, schema, base)

	// Only running jobs can finish.
	requireKind(t, errs.KindConflict, s.CompleteJob(ctx, j.ID, base))

	claimed, err := s.ClaimJob(ctx, j.ID, base.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, core.JobRunning, claimed.State)
	assert.Equal(t, 1, claimed.Attempts)

	_, err = s.ClaimJob(ctx, j.ID, base)
	requireKind(t, errs.KindConflict, err)

	runAt := base.Add(time.Minute)
	require.NoError(t, s.RetryJob(ctx, j.ID, "disk full", runAt, base.Add(2*time.Second)))
	job, err := s.GetJob(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, core.JobPending, job.State)
	assert.Equal(t, "disk full", job.LastError)
	assert.True(t, job.RunAt.Equal(runAt))

	claimed, err = s.ClaimJob(ctx, j.ID, base.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 2, claimed.Attempts)

	require.NoError(t, s.FailJob(ctx, j.ID, "still full", base.Add(2*time.Minute)))
	job, err = s.GetJob(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, core.JobFailed, job.State)
	assert.Equal(t, "still full", job.LastError)
	assert.True(t, job.State.Terminal())

	_, err = s.ClaimJob(ctx, j.ID, base)
	requireKind(t, errs.KindConflict, err)
	_, err = s.ClaimJob(ctx, uuid.NewString(), base)
	requireKind(t, errs.KindNotFound, err)

	_, j2 := newDataset(t, s, schema, base)
	_, err = s.ClaimJob(ctx, j2.ID, base)
	require.NoError(t, err)
	require.NoError(t, s.CompleteJob(ctx, j2.ID, base))
	job, err = s.GetJob(ctx, j2.ID)
	require.NoError(t, err)
	assert.Equal(t, core.JobDone, job.State)
}

func testDueAndStaleJobs(t *testing.T, s core.Store) {
	ctx := context.Background()
	u := newUser(t, s, "alice")
	schema := newSchema(t, s, u.ID, "People", base)

	_, due := newDataset(t, s, schema, base)
	_, later := newDataset(t, s, schema, base)
	_, running := newDataset(t, s, schema, base)

	_, err := s.ClaimJob(ctx, later.ID, base)
	require.NoError(t, err)
	require.NoError(t, s.RetryJob(ctx, later.ID, "boom", base.Add(time.Hour), base))

	_, err = s.ClaimJob(ctx, running.ID, base)
	require.NoError(t, err)

	jobs, err := s.DueJobs(ctx, base.Add(time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, due.ID, jobs[0].ID)

	jobs, err = s.DueJobs(ctx, base.Add(2*time.Hour), 1)
	require.NoError(t, err)
	assert.Len(t, jobs, 1, "limit is honoured")

	n, err := s.ResetStaleJobs(ctx, base.Add(-time.Minute), base.Add(time.Minute))
	require.NoError(t, err)
	assert.Zero(t, n, "recently updated running jobs are left alone")

	n, err = s.ResetStaleJobs(ctx, base.Add(time.Minute), base.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	job, err := s.GetJob(ctx, running.ID)
	require.NoError(t, err)
	assert.Equal(t, core.JobPending, job.State)
	assert.Equal(t, 1, job.Attempts, "reset keeps the attempt count")
}
