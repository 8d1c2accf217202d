// Package memory is an in-process core.Store. It keeps everything in maps
// behind one mutex and is meant for tests and local runs with
// DB_DRIVER=memory; nothing survives a restart.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/JonMunkholm/dummycsv/internal/core"
	"github.com/JonMunkholm/dummycsv/internal/errs"
)

// Store implements core.Store.
type Store struct {
	mu sync.RWMutex

	users    map[int64]core.User
	schemas  map[int64]core.Schema
	datasets map[string]core.Dataset
	jobs     map[string]core.Job

	nextUserID   int64
	nextSchemaID int64
	nextColumnID int64
}

var _ core.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		users:    make(map[int64]core.User),
		schemas:  make(map[int64]core.Schema),
		datasets: make(map[string]core.Dataset),
		jobs:     make(map[string]core.Job),
	}
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// --- users ---

func (s *Store) CreateUser(_ context.Context, username string, passwordHash []byte, now time.Time) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Username, username) {
			return core.User{}, errs.Newf(errs.KindConflict, "username %q already exists", username)
		}
	}
	s.nextUserID++
	u := core.User{
		ID:           s.nextUserID,
		Username:     username,
		PasswordHash: append([]byte(nil), passwordHash...),
		CreatedAt:    now,
	}
	s.users[u.ID] = u
	return u, nil
}

func (s *Store) GetUser(_ context.Context, id int64) (core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return core.User{}, errs.Newf(errs.KindNotFound, "user %d not found", id)
	}
	return u, nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Username, username) {
			return u, nil
		}
	}
	return core.User{}, errs.Newf(errs.KindNotFound, "user %q not found", username)
}

// --- schemas ---

func (s *Store) CreateSchema(_ context.Context, schema core.Schema) (core.Schema, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[schema.OwnerID]; !ok {
		return core.Schema{}, errs.Newf(errs.KindNotFound, "user %d not found", schema.OwnerID)
	}

	s.nextSchemaID++
	schema.ID = s.nextSchemaID
	schema.Columns = copyColumns(schema.Columns)
	for i := range schema.Columns {
		s.nextColumnID++
		schema.Columns[i].ID = s.nextColumnID
		schema.Columns[i].SchemaID = schema.ID
	}
	core.SortColumns(schema.Columns)
	s.schemas[schema.ID] = schema
	return cloneSchema(schema), nil
}

func (s *Store) GetSchema(_ context.Context, id int64) (core.Schema, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	schema, ok := s.schemas[id]
	if !ok {
		return core.Schema{}, errs.Newf(errs.KindNotFound, "schema %d not found", id)
	}
	return cloneSchema(schema), nil
}

func (s *Store) ListSchemas(_ context.Context, ownerID int64, page core.Page) ([]core.Schema, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var owned []core.Schema
	for _, schema := range s.schemas {
		if schema.OwnerID == ownerID {
			owned = append(owned, schema)
		}
	}
	sort.Slice(owned, func(i, j int) bool {
		if !owned[i].Modified.Equal(owned[j].Modified) {
			return owned[i].Modified.After(owned[j].Modified)
		}
		return owned[i].ID > owned[j].ID
	})

	window := paginate(owned, page)
	result := make([]core.Schema, len(window))
	for i, schema := range window {
		result[i] = cloneSchema(schema)
	}
	return result, len(owned), nil
}

func (s *Store) UpdateSchema(_ context.Context, schema core.Schema) (core.Schema, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.schemas[schema.ID]
	if !ok {
		return core.Schema{}, errs.Newf(errs.KindNotFound, "schema %d not found", schema.ID)
	}
	cur.Title = schema.Title
	cur.Separator = schema.Separator
	cur.QuoteChar = schema.QuoteChar
	cur.Modified = schema.Modified
	s.schemas[cur.ID] = cur
	return cloneSchema(cur), nil
}

func (s *Store) DeleteSchema(_ context.Context, id int64) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.schemas[id]; !ok {
		return nil, errs.Newf(errs.KindNotFound, "schema %d not found", id)
	}
	delete(s.schemas, id)

	var removed []string
	for dsID, ds := range s.datasets {
		if ds.SchemaID == id {
			s.deleteDatasetLocked(dsID)
			removed = append(removed, dsID)
		}
	}
	sort.Strings(removed)
	return removed, nil
}

// --- columns ---

func (s *Store) CreateColumn(_ context.Context, c core.Column, now time.Time) (core.Column, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	schema, ok := s.schemas[c.SchemaID]
	if !ok {
		return core.Column{}, errs.Newf(errs.KindNotFound, "schema %d not found", c.SchemaID)
	}
	s.nextColumnID++
	c.ID = s.nextColumnID
	c.Params = copyParams(c.Params)

	schema.Columns = append(copyColumns(schema.Columns), c)
	core.SortColumns(schema.Columns)
	schema.Modified = now
	s.schemas[schema.ID] = schema
	return c, nil
}

func (s *Store) UpdateColumn(_ context.Context, c core.Column, now time.Time) (core.Column, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	schema, ok := s.schemas[c.SchemaID]
	if !ok {
		return core.Column{}, errs.Newf(errs.KindNotFound, "schema %d not found", c.SchemaID)
	}
	cols := copyColumns(schema.Columns)
	i := indexColumn(cols, c.ID)
	if i < 0 {
		return core.Column{}, errs.Newf(errs.KindNotFound, "column %d not found", c.ID)
	}
	c.Params = copyParams(c.Params)
	cols[i] = c
	core.SortColumns(cols)

	schema.Columns = cols
	schema.Modified = now
	s.schemas[schema.ID] = schema
	return c, nil
}

func (s *Store) DeleteColumn(_ context.Context, schemaID, columnID int64, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	schema, ok := s.schemas[schemaID]
	if !ok {
		return errs.Newf(errs.KindNotFound, "schema %d not found", schemaID)
	}
	i := indexColumn(schema.Columns, columnID)
	if i < 0 {
		return errs.Newf(errs.KindNotFound, "column %d not found", columnID)
	}
	if len(schema.Columns) == 1 {
		return errs.Newf(errs.KindConflict, "column %d is the last column of schema %d", columnID, schemaID)
	}

	cols := copyColumns(schema.Columns)
	schema.Columns = append(cols[:i], cols[i+1:]...)
	schema.Modified = now
	s.schemas[schema.ID] = schema
	return nil
}

// --- datasets ---

func (s *Store) CreateDataset(_ context.Context, d core.Dataset, j core.Job) (core.Dataset, core.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.schemas[d.SchemaID]; !ok {
		return core.Dataset{}, core.Job{}, errs.Newf(errs.KindNotFound, "schema %d not found", d.SchemaID)
	}
	if _, ok := s.datasets[d.ID]; ok {
		return core.Dataset{}, core.Job{}, errs.Newf(errs.KindConflict, "dataset %s already exists", d.ID)
	}
	if _, ok := s.jobs[j.ID]; ok {
		return core.Dataset{}, core.Job{}, errs.Newf(errs.KindConflict, "job %s already exists", j.ID)
	}

	d.Snapshot.Columns = copyColumns(d.Snapshot.Columns)
	j.DatasetID = d.ID
	s.datasets[d.ID] = d
	s.jobs[j.ID] = j
	return cloneDataset(d), j, nil
}

func (s *Store) GetDataset(_ context.Context, id string) (core.Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.datasets[id]
	if !ok {
		return core.Dataset{}, errs.Newf(errs.KindNotFound, "dataset %s not found", id)
	}
	return cloneDataset(d), nil
}

func (s *Store) ListDatasets(_ context.Context, ownerID int64, page core.Page) ([]core.Dataset, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var owned []core.Dataset
	for _, d := range s.datasets {
		if d.OwnerID == ownerID {
			owned = append(owned, d)
		}
	}
	sort.Slice(owned, func(i, j int) bool {
		if !owned[i].CreatedAt.Equal(owned[j].CreatedAt) {
			return owned[i].CreatedAt.After(owned[j].CreatedAt)
		}
		return owned[i].ID > owned[j].ID
	})

	window := paginate(owned, page)
	result := make([]core.Dataset, len(window))
	for i, d := range window {
		result[i] = cloneDataset(d)
	}
	return result, len(owned), nil
}

func (s *Store) MarkDatasetProcessed(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.datasets[id]
	if !ok {
		return errs.Newf(errs.KindNotFound, "dataset %s not found", id)
	}
	d.Processed = true
	s.datasets[id] = d
	return nil
}

func (s *Store) DeleteDataset(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.datasets[id]; !ok {
		return errs.Newf(errs.KindNotFound, "dataset %s not found", id)
	}
	s.deleteDatasetLocked(id)
	return nil
}

func (s *Store) deleteDatasetLocked(id string) {
	delete(s.datasets, id)
	for jobID, j := range s.jobs {
		if j.DatasetID == id {
			delete(s.jobs, jobID)
		}
	}
}

// --- jobs ---

func (s *Store) GetJob(_ context.Context, id string) (core.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	j, ok := s.jobs[id]
	if !ok {
		return core.Job{}, errs.Newf(errs.KindNotFound, "job %s not found", id)
	}
	return j, nil
}

func (s *Store) GetJobByDataset(_ context.Context, datasetID string) (core.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, j := range s.jobs {
		if j.DatasetID == datasetID {
			return j, nil
		}
	}
	return core.Job{}, errs.Newf(errs.KindNotFound, "job for dataset %s not found", datasetID)
}

func (s *Store) ClaimJob(_ context.Context, id string, now time.Time) (core.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return core.Job{}, errs.Newf(errs.KindNotFound, "job %s not found", id)
	}
	if j.State != core.JobPending {
		return core.Job{}, errs.Newf(errs.KindConflict, "job %s is %s", id, j.State)
	}
	j.State = core.JobRunning
	j.Attempts++
	j.UpdatedAt = now
	s.jobs[id] = j
	return j, nil
}

func (s *Store) CompleteJob(_ context.Context, id string, now time.Time) error {
	return s.transition(id, func(j *core.Job) {
		j.State = core.JobDone
		j.LastError = ""
		j.UpdatedAt = now
	})
}

func (s *Store) RetryJob(_ context.Context, id, lastError string, runAt, now time.Time) error {
	return s.transition(id, func(j *core.Job) {
		j.State = core.JobPending
		j.LastError = lastError
		j.RunAt = runAt
		j.UpdatedAt = now
	})
}

func (s *Store) FailJob(_ context.Context, id, lastError string, now time.Time) error {
	return s.transition(id, func(j *core.Job) {
		j.State = core.JobFailed
		j.LastError = lastError
		j.UpdatedAt = now
	})
}

// transition applies fn to a running job.
func (s *Store) transition(id string, fn func(*core.Job)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return errs.Newf(errs.KindNotFound, "job %s not found", id)
	}
	if j.State != core.JobRunning {
		return errs.Newf(errs.KindConflict, "job %s is %s", id, j.State)
	}
	fn(&j)
	s.jobs[id] = j
	return nil
}

func (s *Store) DueJobs(_ context.Context, now time.Time, limit int) ([]core.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var due []core.Job
	for _, j := range s.jobs {
		if j.State == core.JobPending && !j.RunAt.After(now) {
			due = append(due, j)
		}
	}
	sort.Slice(due, func(i, k int) bool {
		if !due[i].RunAt.Equal(due[k].RunAt) {
			return due[i].RunAt.Before(due[k].RunAt)
		}
		return due[i].ID < due[k].ID
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (s *Store) ResetStaleJobs(_ context.Context, cutoff, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, j := range s.jobs {
		if j.State == core.JobRunning && j.UpdatedAt.Before(cutoff) {
			j.State = core.JobPending
			j.RunAt = now
			j.UpdatedAt = now
			s.jobs[id] = j
			n++
		}
	}
	return n, nil
}

// --- helpers ---

func paginate[T any](items []T, page core.Page) []T {
	page = page.Normalize()
	if page.Offset >= len(items) {
		return nil
	}
	end := min(page.Offset+page.Limit, len(items))
	return items[page.Offset:end]
}

func indexColumn(cols []core.Column, id int64) int {
	for i, c := range cols {
		if c.ID == id {
			return i
		}
	}
	return -1
}

func copyParams(p *core.Params) *core.Params {
	if p == nil {
		return nil
	}
	cp := *p
	return &cp
}

func copyColumns(cols []core.Column) []core.Column {
	out := make([]core.Column, len(cols))
	for i, c := range cols {
		c.Params = copyParams(c.Params)
		out[i] = c
	}
	return out
}

func cloneSchema(s core.Schema) core.Schema {
	s.Columns = copyColumns(s.Columns)
	return s
}

func cloneDataset(d core.Dataset) core.Dataset {
	d.Snapshot.Columns = copyColumns(d.Snapshot.Columns)
	return d
}
