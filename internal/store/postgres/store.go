// Package postgres is the PostgreSQL core.Store, backed by pgxpool.
package postgres

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/dummycsv/internal/core"
	"github.com/JonMunkholm/dummycsv/internal/errs"
)

//go:embed schema.sql
var schemaSQL string

// Config holds the connection settings.
type Config struct {
	URL             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	ConnectTimeout  time.Duration
}

// Store implements core.Store. It is safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

var _ core.Store = (*Store)(nil)

// New connects using cfg and pings before returning.
func New(ctx context.Context, cfg Config) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, errs.Wrap(errs.KindConnectionFailed, "invalid database URL", err)
	}

	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	if cfg.ConnectTimeout > 0 {
		poolCfg.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, errs.Wrap(errs.KindConnectionFailed, "failed to create connection pool", err)
	}

	s := &Store{pool: pool}
	if err := s.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewFromPool wraps an existing pool.
func NewFromPool(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Bootstrap creates any missing tables and indexes.
func (s *Store) Bootstrap(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return mapError(err, "bootstrap schema")
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return mapError(err, "ping failed")
	}
	return nil
}

// Close drains the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// --- users ---

const userColumns = `id, username, password_hash, created_at`

func scanUser(row pgx.Row) (core.User, error) {
	var u core.User
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt); err != nil {
		return core.User{}, err
	}
	u.CreatedAt = u.CreatedAt.UTC()
	return u, nil
}

func (s *Store) CreateUser(ctx context.Context, username string, passwordHash []byte, now time.Time) (core.User, error) {
	const q = `
		INSERT INTO users (username, password_hash, created_at)
		VALUES ($1, $2, $3)
		RETURNING ` + userColumns

	u, err := scanUser(s.pool.QueryRow(ctx, q, username, passwordHash, now))
	if err != nil {
		return core.User{}, mapError(err, fmt.Sprintf("create user %q", username))
	}
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id int64) (core.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	u, err := scanUser(s.pool.QueryRow(ctx, q, id))
	if err != nil {
		return core.User{}, mapError(err, fmt.Sprintf("get user %d", id))
	}
	return u, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (core.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE lower(username) = lower($1)`

	u, err := scanUser(s.pool.QueryRow(ctx, q, username))
	if err != nil {
		return core.User{}, mapError(err, fmt.Sprintf("get user %q", username))
	}
	return u, nil
}

// --- schemas ---

const schemaColumns = `id, owner_id, title, separator, quote_char, modified`

func scanSchema(row pgx.Row) (core.Schema, error) {
	var sc core.Schema
	if err := row.Scan(&sc.ID, &sc.OwnerID, &sc.Title, &sc.Separator, &sc.QuoteChar, &sc.Modified); err != nil {
		return core.Schema{}, err
	}
	sc.Modified = sc.Modified.UTC()
	return sc, nil
}

const columnColumns = `id, schema_id, name, position, kind, params_start, params_end`

func scanColumn(row pgx.Row) (core.Column, error) {
	var (
		c          core.Column
		kind       string
		start, end *int64
	)
	if err := row.Scan(&c.ID, &c.SchemaID, &c.Name, &c.Order, &kind, &start, &end); err != nil {
		return core.Column{}, err
	}
	k, ok := core.LookupKind(kind)
	if !ok {
		return core.Column{}, errs.Newf(errs.KindQueryFailed, "column %d has unknown kind %q", c.ID, kind)
	}
	c.Kind = k
	if start != nil && end != nil {
		c.Params = &core.Params{Start: *start, End: *end}
	}
	return c, nil
}

func paramBounds(p *core.Params) (start, end *int64) {
	if p == nil {
		return nil, nil
	}
	return &p.Start, &p.End
}

// querier is satisfied by both the pool and a transaction.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func insertColumn(ctx context.Context, q querier, c core.Column) (core.Column, error) {
	const stmt = `
		INSERT INTO schema_columns (schema_id, name, position, kind, params_start, params_end)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + columnColumns

	start, end := paramBounds(c.Params)
	return scanColumn(q.QueryRow(ctx, stmt, c.SchemaID, c.Name, c.Order, c.Kind.SID(), start, end))
}

// loadColumns fills in the columns of every schema in schemas.
func loadColumns(ctx context.Context, q querier, schemas []core.Schema) error {
	if len(schemas) == 0 {
		return nil
	}
	ids := make([]int64, len(schemas))
	index := make(map[int64]int, len(schemas))
	for i, sc := range schemas {
		ids[i] = sc.ID
		index[sc.ID] = i
		schemas[i].Columns = []core.Column{}
	}

	const stmt = `
		SELECT ` + columnColumns + `
		FROM schema_columns
		WHERE schema_id = ANY($1)
		ORDER BY schema_id, position, id`

	rows, err := q.Query(ctx, stmt, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		c, err := scanColumn(rows)
		if err != nil {
			return err
		}
		i := index[c.SchemaID]
		schemas[i].Columns = append(schemas[i].Columns, c)
	}
	return rows.Err()
}

func (s *Store) CreateSchema(ctx context.Context, sc core.Schema) (core.Schema, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return core.Schema{}, mapError(err, "begin transaction")
	}
	defer tx.Rollback(ctx) // No-op if already committed

	const stmt = `
		INSERT INTO schemas (owner_id, title, separator, quote_char, modified)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + schemaColumns

	created, err := scanSchema(tx.QueryRow(ctx, stmt, sc.OwnerID, sc.Title, sc.Separator, sc.QuoteChar, sc.Modified))
	if err != nil {
		return core.Schema{}, mapError(err, "create schema")
	}

	created.Columns = make([]core.Column, 0, len(sc.Columns))
	for _, c := range sc.Columns {
		c.SchemaID = created.ID
		col, err := insertColumn(ctx, tx, c)
		if err != nil {
			return core.Schema{}, mapError(err, fmt.Sprintf("create column %q", c.Name))
		}
		created.Columns = append(created.Columns, col)
	}

	if err := tx.Commit(ctx); err != nil {
		return core.Schema{}, mapError(err, "commit schema")
	}
	core.SortColumns(created.Columns)
	return created, nil
}

func (s *Store) GetSchema(ctx context.Context, id int64) (core.Schema, error) {
	const stmt = `SELECT ` + schemaColumns + ` FROM schemas WHERE id = $1`

	sc, err := scanSchema(s.pool.QueryRow(ctx, stmt, id))
	if err != nil {
		return core.Schema{}, mapError(err, fmt.Sprintf("get schema %d", id))
	}
	schemas := []core.Schema{sc}
	if err := loadColumns(ctx, s.pool, schemas); err != nil {
		return core.Schema{}, mapError(err, fmt.Sprintf("get columns of schema %d", id))
	}
	return schemas[0], nil
}

func (s *Store) ListSchemas(ctx context.Context, ownerID int64, page core.Page) ([]core.Schema, int, error) {
	page = page.Normalize()

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM schemas WHERE owner_id = $1`, ownerID).Scan(&total); err != nil {
		return nil, 0, mapError(err, "count schemas")
	}

	const stmt = `
		SELECT ` + schemaColumns + `
		FROM schemas
		WHERE owner_id = $1
		ORDER BY modified DESC, id DESC
		LIMIT $2 OFFSET $3`

	rows, err := s.pool.Query(ctx, stmt, ownerID, page.Limit, page.Offset)
	if err != nil {
		return nil, 0, mapError(err, "list schemas")
	}
	schemas, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.Schema, error) {
		return scanSchema(row)
	})
	if err != nil {
		return nil, 0, mapError(err, "list schemas")
	}

	if err := loadColumns(ctx, s.pool, schemas); err != nil {
		return nil, 0, mapError(err, "list columns")
	}
	return schemas, total, nil
}

func (s *Store) UpdateSchema(ctx context.Context, sc core.Schema) (core.Schema, error) {
	const stmt = `
		UPDATE schemas
		SET title = $2, separator = $3, quote_char = $4, modified = $5
		WHERE id = $1
		RETURNING ` + schemaColumns

	updated, err := scanSchema(s.pool.QueryRow(ctx, stmt, sc.ID, sc.Title, sc.Separator, sc.QuoteChar, sc.Modified))
	if err != nil {
		return core.Schema{}, mapError(err, fmt.Sprintf("update schema %d", sc.ID))
	}
	schemas := []core.Schema{updated}
	if err := loadColumns(ctx, s.pool, schemas); err != nil {
		return core.Schema{}, mapError(err, fmt.Sprintf("get columns of schema %d", sc.ID))
	}
	return schemas[0], nil
}

func (s *Store) DeleteSchema(ctx context.Context, id int64) ([]string, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, mapError(err, "begin transaction")
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `DELETE FROM datasets WHERE schema_id = $1 RETURNING id`, id)
	if err != nil {
		return nil, mapError(err, fmt.Sprintf("delete datasets of schema %d", id))
	}
	removed, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, mapError(err, fmt.Sprintf("delete datasets of schema %d", id))
	}

	tag, err := tx.Exec(ctx, `DELETE FROM schemas WHERE id = $1`, id)
	if err != nil {
		return nil, mapError(err, fmt.Sprintf("delete schema %d", id))
	}
	if tag.RowsAffected() == 0 {
		return nil, errs.Newf(errs.KindNotFound, "schema %d not found", id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, mapError(err, "commit schema delete")
	}
	return removed, nil
}

// --- columns ---

// touchSchema sets a schema's modified time, failing when it is missing.
func touchSchema(ctx context.Context, tx pgx.Tx, schemaID int64, now time.Time) error {
	tag, err := tx.Exec(ctx, `UPDATE schemas SET modified = $2 WHERE id = $1`, schemaID, now)
	if err != nil {
		return mapError(err, fmt.Sprintf("touch schema %d", schemaID))
	}
	if tag.RowsAffected() == 0 {
		return errs.Newf(errs.KindNotFound, "schema %d not found", schemaID)
	}
	return nil
}

func (s *Store) CreateColumn(ctx context.Context, c core.Column, now time.Time) (core.Column, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return core.Column{}, mapError(err, "begin transaction")
	}
	defer tx.Rollback(ctx)

	if err := touchSchema(ctx, tx, c.SchemaID, now); err != nil {
		return core.Column{}, err
	}
	created, err := insertColumn(ctx, tx, c)
	if err != nil {
		return core.Column{}, mapError(err, fmt.Sprintf("create column %q", c.Name))
	}

	if err := tx.Commit(ctx); err != nil {
		return core.Column{}, mapError(err, "commit column")
	}
	return created, nil
}

func (s *Store) UpdateColumn(ctx context.Context, c core.Column, now time.Time) (core.Column, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return core.Column{}, mapError(err, "begin transaction")
	}
	defer tx.Rollback(ctx)

	const stmt = `
		UPDATE schema_columns
		SET name = $3, position = $4, kind = $5, params_start = $6, params_end = $7
		WHERE id = $1 AND schema_id = $2
		RETURNING ` + columnColumns

	start, end := paramBounds(c.Params)
	updated, err := scanColumn(tx.QueryRow(ctx, stmt, c.ID, c.SchemaID, c.Name, c.Order, c.Kind.SID(), start, end))
	if err != nil {
		return core.Column{}, mapError(err, fmt.Sprintf("update column %d", c.ID))
	}
	if err := touchSchema(ctx, tx, c.SchemaID, now); err != nil {
		return core.Column{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return core.Column{}, mapError(err, "commit column")
	}
	return updated, nil
}

func (s *Store) DeleteColumn(ctx context.Context, schemaID, columnID int64, now time.Time) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return mapError(err, "begin transaction")
	}
	defer tx.Rollback(ctx)

	// Lock the schema so two deletes cannot both see two columns.
	var locked int64
	if err := tx.QueryRow(ctx, `SELECT id FROM schemas WHERE id = $1 FOR UPDATE`, schemaID).Scan(&locked); err != nil {
		return mapError(err, fmt.Sprintf("lock schema %d", schemaID))
	}
	var count int
	if err := tx.QueryRow(ctx, `SELECT count(*) FROM schema_columns WHERE schema_id = $1`, schemaID).Scan(&count); err != nil {
		return mapError(err, fmt.Sprintf("count columns of schema %d", schemaID))
	}

	tag, err := tx.Exec(ctx, `DELETE FROM schema_columns WHERE id = $1 AND schema_id = $2`, columnID, schemaID)
	if err != nil {
		return mapError(err, fmt.Sprintf("delete column %d", columnID))
	}
	if tag.RowsAffected() == 0 {
		return errs.Newf(errs.KindNotFound, "column %d not found", columnID)
	}
	if count <= 1 {
		return errs.Newf(errs.KindConflict, "column %d is the last column of schema %d", columnID, schemaID)
	}
	if err := touchSchema(ctx, tx, schemaID, now); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return mapError(err, "commit column delete")
	}
	return nil
}

// --- datasets ---

const datasetColumns = `id, owner_id, schema_id, rows, processed, snapshot, created_at`

func scanDataset(row pgx.Row) (core.Dataset, error) {
	var (
		d    core.Dataset
		snap []byte
	)
	if err := row.Scan(&d.ID, &d.OwnerID, &d.SchemaID, &d.Rows, &d.Processed, &snap, &d.CreatedAt); err != nil {
		return core.Dataset{}, err
	}
	if err := json.Unmarshal(snap, &d.Snapshot); err != nil {
		return core.Dataset{}, errs.Wrap(errs.KindQueryFailed, fmt.Sprintf("decode snapshot of dataset %s", d.ID), err)
	}
	d.CreatedAt = d.CreatedAt.UTC()
	return d, nil
}

const jobColumns = `id, dataset_id, state, attempts, max_attempts, last_error, run_at, created_at, updated_at`

func scanJob(row pgx.Row) (core.Job, error) {
	var (
		j     core.Job
		state string
	)
	if err := row.Scan(&j.ID, &j.DatasetID, &state, &j.Attempts, &j.MaxAttempts, &j.LastError, &j.RunAt, &j.CreatedAt, &j.UpdatedAt); err != nil {
		return core.Job{}, err
	}
	j.State = core.JobState(state)
	j.RunAt = j.RunAt.UTC()
	j.CreatedAt = j.CreatedAt.UTC()
	j.UpdatedAt = j.UpdatedAt.UTC()
	return j, nil
}

func (s *Store) CreateDataset(ctx context.Context, d core.Dataset, j core.Job) (core.Dataset, core.Job, error) {
	snap, err := json.Marshal(d.Snapshot)
	if err != nil {
		return core.Dataset{}, core.Job{}, errs.Wrap(errs.KindInvalidInput, "encode snapshot", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return core.Dataset{}, core.Job{}, mapError(err, "begin transaction")
	}
	defer tx.Rollback(ctx)

	const dsStmt = `
		INSERT INTO datasets (id, owner_id, schema_id, rows, processed, snapshot, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + datasetColumns

	created, err := scanDataset(tx.QueryRow(ctx, dsStmt, d.ID, d.OwnerID, d.SchemaID, d.Rows, d.Processed, snap, d.CreatedAt))
	if err != nil {
		return core.Dataset{}, core.Job{}, mapError(err, fmt.Sprintf("create dataset %s", d.ID))
	}

	const jobStmt = `
		INSERT INTO jobs (id, dataset_id, state, attempts, max_attempts, last_error, run_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + jobColumns

	job, err := scanJob(tx.QueryRow(ctx, jobStmt,
		j.ID, created.ID, string(j.State), j.Attempts, j.MaxAttempts, j.LastError, j.RunAt, j.CreatedAt, j.UpdatedAt))
	if err != nil {
		return core.Dataset{}, core.Job{}, mapError(err, fmt.Sprintf("create job for dataset %s", d.ID))
	}

	if err := tx.Commit(ctx); err != nil {
		return core.Dataset{}, core.Job{}, mapError(err, "commit dataset")
	}
	return created, job, nil
}

func (s *Store) GetDataset(ctx context.Context, id string) (core.Dataset, error) {
	const stmt = `SELECT ` + datasetColumns + ` FROM datasets WHERE id = $1`

	d, err := scanDataset(s.pool.QueryRow(ctx, stmt, id))
	if err != nil {
		return core.Dataset{}, mapError(err, fmt.Sprintf("get dataset %s", id))
	}
	return d, nil
}

func (s *Store) ListDatasets(ctx context.Context, ownerID int64, page core.Page) ([]core.Dataset, int, error) {
	page = page.Normalize()

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM datasets WHERE owner_id = $1`, ownerID).Scan(&total); err != nil {
		return nil, 0, mapError(err, "count datasets")
	}

	const stmt = `
		SELECT ` + datasetColumns + `
		FROM datasets
		WHERE owner_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`

	rows, err := s.pool.Query(ctx, stmt, ownerID, page.Limit, page.Offset)
	if err != nil {
		return nil, 0, mapError(err, "list datasets")
	}
	datasets, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.Dataset, error) {
		return scanDataset(row)
	})
	if err != nil {
		return nil, 0, mapError(err, "list datasets")
	}
	return datasets, total, nil
}

func (s *Store) MarkDatasetProcessed(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE datasets SET processed = TRUE WHERE id = $1`, id)
	if err != nil {
		return mapError(err, fmt.Sprintf("mark dataset %s processed", id))
	}
	if tag.RowsAffected() == 0 {
		return errs.Newf(errs.KindNotFound, "dataset %s not found", id)
	}
	return nil
}

func (s *Store) DeleteDataset(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM datasets WHERE id = $1`, id)
	if err != nil {
		return mapError(err, fmt.Sprintf("delete dataset %s", id))
	}
	if tag.RowsAffected() == 0 {
		return errs.Newf(errs.KindNotFound, "dataset %s not found", id)
	}
	return nil
}

// --- jobs ---

func (s *Store) GetJob(ctx context.Context, id string) (core.Job, error) {
	const stmt = `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1`

	j, err := scanJob(s.pool.QueryRow(ctx, stmt, id))
	if err != nil {
		return core.Job{}, mapError(err, fmt.Sprintf("get job %s", id))
	}
	return j, nil
}

func (s *Store) GetJobByDataset(ctx context.Context, datasetID string) (core.Job, error) {
	const stmt = `SELECT ` + jobColumns + ` FROM jobs WHERE dataset_id = $1`

	j, err := scanJob(s.pool.QueryRow(ctx, stmt, datasetID))
	if err != nil {
		return core.Job{}, mapError(err, fmt.Sprintf("get job for dataset %s", datasetID))
	}
	return j, nil
}

func (s *Store) ClaimJob(ctx context.Context, id string, now time.Time) (core.Job, error) {
	const stmt = `
		UPDATE jobs
		SET state = 'running', attempts = attempts + 1, updated_at = $2
		WHERE id = $1 AND state = 'pending'
		RETURNING ` + jobColumns

	j, err := scanJob(s.pool.QueryRow(ctx, stmt, id, now))
	if err == nil {
		return j, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return core.Job{}, mapError(err, fmt.Sprintf("claim job %s", id))
	}
	return core.Job{}, s.stateConflict(ctx, id)
}

// stateConflict explains why a guarded update matched nothing.
func (s *Store) stateConflict(ctx context.Context, id string) error {
	var state string
	err := s.pool.QueryRow(ctx, `SELECT state FROM jobs WHERE id = $1`, id).Scan(&state)
	if err != nil {
		return mapError(err, fmt.Sprintf("get job %s", id))
	}
	return errs.Newf(errs.KindConflict, "job %s is %s", id, state)
}

// transition runs a guarded update of a running job.
func (s *Store) transition(ctx context.Context, id, set string, args ...any) error {
	stmt := `UPDATE jobs SET ` + set + ` WHERE id = $1 AND state = 'running'`

	tag, err := s.pool.Exec(ctx, stmt, append([]any{id}, args...)...)
	if err != nil {
		return mapError(err, fmt.Sprintf("update job %s", id))
	}
	if tag.RowsAffected() == 0 {
		return s.stateConflict(ctx, id)
	}
	return nil
}

func (s *Store) CompleteJob(ctx context.Context, id string, now time.Time) error {
	return s.transition(ctx, id, `state = 'done', last_error = '', updated_at = $2`, now)
}

func (s *Store) RetryJob(ctx context.Context, id, lastError string, runAt, now time.Time) error {
	return s.transition(ctx, id, `state = 'pending', last_error = $2, run_at = $3, updated_at = $4`, lastError, runAt, now)
}

func (s *Store) FailJob(ctx context.Context, id, lastError string, now time.Time) error {
	return s.transition(ctx, id, `state = 'failed', last_error = $2, updated_at = $3`, lastError, now)
}

func (s *Store) DueJobs(ctx context.Context, now time.Time, limit int) ([]core.Job, error) {
	const stmt = `
		SELECT ` + jobColumns + `
		FROM jobs
		WHERE state = 'pending' AND run_at <= $1
		ORDER BY run_at, id
		LIMIT $2`

	var lim any // NULL means no limit
	if limit > 0 {
		lim = limit
	}
	rows, err := s.pool.Query(ctx, stmt, now, lim)
	if err != nil {
		return nil, mapError(err, "list due jobs")
	}
	jobs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.Job, error) {
		return scanJob(row)
	})
	if err != nil {
		return nil, mapError(err, "list due jobs")
	}
	return jobs, nil
}

func (s *Store) ResetStaleJobs(ctx context.Context, cutoff, now time.Time) (int, error) {
	const stmt = `
		UPDATE jobs
		SET state = 'pending', run_at = $2, updated_at = $2
		WHERE state = 'running' AND updated_at < $1`

	tag, err := s.pool.Exec(ctx, stmt, cutoff, now)
	if err != nil {
		return 0, mapError(err, "reset stale jobs")
	}
	return int(tag.RowsAffected()), nil
}
