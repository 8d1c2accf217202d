package core

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/dummycsv/internal/errs"
	"github.com/JonMunkholm/dummycsv/internal/filestore"
)

// Options tunes generation and downloads. Zero fields take the defaults
// from DefaultOptions.
type Options struct {
	BatchSize    int           // Rows per file write and per download chunk
	MaxRows      int           // Largest dataset a client may request
	MaxAttempts  int           // Generation attempts before a job fails
	RetryBackoff time.Duration // Delay before the first retry
	MaxBackoff   time.Duration // Cap on the retry delay
	QueueSize    int           // Buffered job ids awaiting a worker
	Workers      int           // Concurrent generation workers
	ScanInterval time.Duration // How often the scheduler looks for due jobs
	StaleAfter   time.Duration // Running jobs untouched this long are reset

	MaxConcurrentDownloads int
	DownloadWait           time.Duration

	AllowRegistration bool
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		BatchSize:              1000,
		MaxRows:                10_000_000,
		MaxAttempts:            5,
		RetryBackoff:           2 * time.Second,
		MaxBackoff:             time.Minute,
		QueueSize:              256,
		Workers:                4,
		ScanInterval:           time.Minute,
		StaleAfter:             30 * time.Minute,
		MaxConcurrentDownloads: DefaultMaxConcurrentDownloads,
		DownloadWait:           DefaultMaxWaitTime,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.BatchSize <= 0 {
		o.BatchSize = d.BatchSize
	}
	if o.MaxRows <= 0 {
		o.MaxRows = d.MaxRows
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = d.MaxAttempts
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = d.RetryBackoff
	}
	if o.MaxBackoff < o.RetryBackoff {
		o.MaxBackoff = max(d.MaxBackoff, o.RetryBackoff)
	}
	if o.QueueSize <= 0 {
		o.QueueSize = d.QueueSize
	}
	if o.Workers <= 0 {
		o.Workers = d.Workers
	}
	if o.ScanInterval <= 0 {
		o.ScanInterval = d.ScanInterval
	}
	if o.StaleAfter <= 0 {
		o.StaleAfter = d.StaleAfter
	}
	if o.MaxConcurrentDownloads <= 0 {
		o.MaxConcurrentDownloads = d.MaxConcurrentDownloads
	}
	if o.DownloadWait <= 0 {
		o.DownloadWait = d.DownloadWait
	}
	return o
}

// Service provides schema management, dataset generation and downloads.
type Service struct {
	store   Store
	files   filestore.Store
	opts    Options
	limiter *DownloadLimiter

	queue chan string

	now     func() time.Time
	newRand func() *rand.Rand

	mu      sync.Mutex
	retries map[string]*time.Timer
}

// NewService creates a Service backed by store and files.
func NewService(store Store, files filestore.Store, opts Options) *Service {
	opts = opts.withDefaults()
	return &Service{
		store:   store,
		files:   files,
		opts:    opts,
		limiter: NewDownloadLimiter(opts.MaxConcurrentDownloads, opts.DownloadWait),
		queue:   make(chan string, opts.QueueSize),
		now:     func() time.Time { return time.Now().UTC() },
		newRand: func() *rand.Rand {
			return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
		},
		retries: make(map[string]*time.Timer),
	}
}

// Options returns the effective options.
func (s *Service) Options() Options {
	return s.opts
}

// Limiter returns the download limiter.
func (s *Service) Limiter() *DownloadLimiter {
	return s.limiter
}

// Ping checks the store and the file store.
func (s *Service) Ping(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if err := s.files.Ping(ctx); err != nil {
		return fmt.Errorf("file store: %w", err)
	}
	return nil
}

// ColumnTypes lists the column kinds a schema may use.
func (s *Service) ColumnTypes() []ColumnType {
	return ColumnTypes()
}

// --- schemas ---

// CreateSchema validates in and stores it, with its columns, for userID.
func (s *Service) CreateSchema(ctx context.Context, userID int64, in SchemaInput) (Schema, error) {
	schema, err := in.Validate()
	if err != nil {
		return Schema{}, err
	}
	schema.OwnerID = userID
	schema.Modified = s.now()

	created, err := s.store.CreateSchema(ctx, schema)
	if err != nil {
		return Schema{}, fmt.Errorf("create schema: %w", err)
	}
	SortColumns(created.Columns)

	slog.Info("schema created", "schema_id", created.ID, "user_id", userID, "columns", len(created.Columns))
	return created, nil
}

// GetSchema returns one of the user's schemas. Schemas owned by someone
// else are reported as not found.
func (s *Service) GetSchema(ctx context.Context, userID, id int64) (Schema, error) {
	schema, err := s.store.GetSchema(ctx, id)
	if err != nil {
		if errs.IsNotFound(err) {
			return Schema{}, ErrSchemaNotFound
		}
		return Schema{}, fmt.Errorf("get schema %d: %w", id, err)
	}
	if schema.OwnerID != userID {
		return Schema{}, ErrSchemaNotFound
	}
	return schema, nil
}

// ListSchemas returns a page of the user's schemas, most recently
// modified first.
func (s *Service) ListSchemas(ctx context.Context, userID int64, page Page) (PageResult[Schema], error) {
	page = page.Normalize()
	schemas, total, err := s.store.ListSchemas(ctx, userID, page)
	if err != nil {
		return PageResult[Schema]{}, fmt.Errorf("list schemas: %w", err)
	}
	if schemas == nil {
		schemas = []Schema{}
	}
	return PageResult[Schema]{TotalCount: total, Result: schemas}, nil
}

// UpdateSchema changes a schema's metadata. Columns are edited through
// their own operations.
func (s *Service) UpdateSchema(ctx context.Context, userID, id int64, upd SchemaUpdate, full bool) (Schema, error) {
	schema, err := s.GetSchema(ctx, userID, id)
	if err != nil {
		return Schema{}, err
	}
	schema, err = upd.Apply(schema, full)
	if err != nil {
		return Schema{}, err
	}
	schema.Modified = s.now()

	updated, err := s.store.UpdateSchema(ctx, schema)
	if err != nil {
		if errs.IsNotFound(err) {
			return Schema{}, ErrSchemaNotFound
		}
		return Schema{}, fmt.Errorf("update schema %d: %w", id, err)
	}
	return updated, nil
}

// DeleteSchema removes a schema together with its columns and datasets.
// Files of the removed datasets are deleted on a best-effort basis.
func (s *Service) DeleteSchema(ctx context.Context, userID, id int64) error {
	if _, err := s.GetSchema(ctx, userID, id); err != nil {
		return err
	}

	datasetIDs, err := s.store.DeleteSchema(ctx, id)
	if err != nil {
		if errs.IsNotFound(err) {
			return ErrSchemaNotFound
		}
		return fmt.Errorf("delete schema %d: %w", id, err)
	}

	for _, dsID := range datasetIDs {
		s.removeFile(ctx, Dataset{ID: dsID})
	}

	slog.Info("schema deleted", "schema_id", id, "user_id", userID, "datasets_removed", len(datasetIDs))
	return nil
}

// --- columns ---

// AddColumn appends a column to one of the user's schemas.
func (s *Service) AddColumn(ctx context.Context, userID, schemaID int64, in ColumnInput) (Column, error) {
	if _, err := s.GetSchema(ctx, userID, schemaID); err != nil {
		return Column{}, err
	}
	col, verrs := in.Validate("")
	if err := verrs.Err(); err != nil {
		return Column{}, err
	}
	col.SchemaID = schemaID

	created, err := s.store.CreateColumn(ctx, col, s.now())
	if err != nil {
		if errs.IsNotFound(err) {
			return Column{}, ErrSchemaNotFound
		}
		return Column{}, fmt.Errorf("create column: %w", err)
	}
	return created, nil
}

// UpdateColumn replaces a column of one of the user's schemas.
func (s *Service) UpdateColumn(ctx context.Context, userID, schemaID, columnID int64, in ColumnInput) (Column, error) {
	if _, err := s.GetSchema(ctx, userID, schemaID); err != nil {
		return Column{}, err
	}
	col, verrs := in.Validate("")
	if err := verrs.Err(); err != nil {
		return Column{}, err
	}
	col.ID = columnID
	col.SchemaID = schemaID

	updated, err := s.store.UpdateColumn(ctx, col, s.now())
	if err != nil {
		if errs.IsNotFound(err) {
			return Column{}, ErrColumnNotFound
		}
		return Column{}, fmt.Errorf("update column %d: %w", columnID, err)
	}
	return updated, nil
}

// DeleteColumn removes a column. A schema always keeps at least one.
func (s *Service) DeleteColumn(ctx context.Context, userID, schemaID, columnID int64) error {
	if _, err := s.GetSchema(ctx, userID, schemaID); err != nil {
		return err
	}
	err := s.store.DeleteColumn(ctx, schemaID, columnID, s.now())
	switch {
	case err == nil:
		return nil
	case errs.IsNotFound(err):
		return ErrColumnNotFound
	case errs.IsConflict(err):
		return ErrLastColumn
	default:
		return fmt.Errorf("delete column %d: %w", columnID, err)
	}
}

// --- datasets ---

// DatasetStatus is a dataset with the state of its generation job.
type DatasetStatus struct {
	Dataset
	Job Job `json:"job"`
}

// CreateDataset stores a dataset request with a pending job and queues
// the job. The dataset keeps a snapshot of the schema as it is now.
func (s *Service) CreateDataset(ctx context.Context, userID int64, in DatasetInput) (Dataset, error) {
	if err := in.Validate(s.opts.MaxRows); err != nil {
		return Dataset{}, err
	}
	schema, err := s.GetSchema(ctx, userID, in.Schema)
	if err != nil {
		return Dataset{}, err
	}

	now := s.now()
	ds := Dataset{
		ID:        newDatasetID(),
		OwnerID:   userID,
		SchemaID:  schema.ID,
		Rows:      *in.Rows,
		CreatedAt: now,
		Snapshot:  schema.Snapshot(),
	}
	job := Job{
		ID:          uuid.NewString(),
		DatasetID:   ds.ID,
		State:       JobPending,
		MaxAttempts: s.opts.MaxAttempts,
		RunAt:       now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	ds, job, err = s.store.CreateDataset(ctx, ds, job)
	if err != nil {
		if errs.IsNotFound(err) {
			return Dataset{}, ErrSchemaNotFound
		}
		return Dataset{}, fmt.Errorf("create dataset: %w", err)
	}

	if !s.Enqueue(job.ID) {
		slog.Warn("generation queue full, job left for the scheduler",
			"job_id", job.ID,
			"dataset_id", ds.ID,
		)
	}

	slog.Info("dataset requested", "dataset_id", ds.ID, "schema_id", ds.SchemaID, "rows", ds.Rows, "user_id", userID)
	return ds, nil
}

// GetDataset returns one of the user's datasets.
func (s *Service) GetDataset(ctx context.Context, userID int64, id string) (Dataset, error) {
	ds, err := s.store.GetDataset(ctx, id)
	if err != nil {
		if errs.IsNotFound(err) {
			return Dataset{}, ErrDatasetNotFound
		}
		return Dataset{}, fmt.Errorf("get dataset %s: %w", id, err)
	}
	if ds.OwnerID != userID {
		return Dataset{}, ErrDatasetNotFound
	}
	return ds, nil
}

// DatasetStatus returns a dataset and its job.
func (s *Service) DatasetStatus(ctx context.Context, userID int64, id string) (DatasetStatus, error) {
	ds, err := s.GetDataset(ctx, userID, id)
	if err != nil {
		return DatasetStatus{}, err
	}
	job, err := s.store.GetJobByDataset(ctx, ds.ID)
	if err != nil {
		if errs.IsNotFound(err) {
			return DatasetStatus{}, ErrJobNotFound
		}
		return DatasetStatus{}, fmt.Errorf("get job for dataset %s: %w", id, err)
	}
	return DatasetStatus{Dataset: ds, Job: job}, nil
}

// ListDatasets returns a page of the user's datasets, newest first.
func (s *Service) ListDatasets(ctx context.Context, userID int64, page Page) (PageResult[Dataset], error) {
	page = page.Normalize()
	datasets, total, err := s.store.ListDatasets(ctx, userID, page)
	if err != nil {
		return PageResult[Dataset]{}, fmt.Errorf("list datasets: %w", err)
	}
	if datasets == nil {
		datasets = []Dataset{}
	}
	return PageResult[Dataset]{TotalCount: total, Result: datasets}, nil
}

// DeleteDataset removes a dataset, its job and its file.
func (s *Service) DeleteDataset(ctx context.Context, userID int64, id string) error {
	ds, err := s.GetDataset(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteDataset(ctx, ds.ID); err != nil {
		if errs.IsNotFound(err) {
			return ErrDatasetNotFound
		}
		return fmt.Errorf("delete dataset %s: %w", id, err)
	}
	s.removeFile(ctx, ds)

	slog.Info("dataset deleted", "dataset_id", ds.ID, "user_id", userID)
	return nil
}

func (s *Service) removeFile(ctx context.Context, ds Dataset) {
	if err := s.files.Remove(ctx, ds.FileKey()); err != nil {
		slog.Warn("failed to remove dataset file", "dataset_id", ds.ID, "error", err)
	}
}

// newDatasetID returns 32 hex characters of a random UUID.
func newDatasetID() string {
	id := uuid.New()
	return fmt.Sprintf("%x", id[:])
}
