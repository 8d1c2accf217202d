package core

import (
	"context"
	"time"
)

// Store is the repository the service persists to. Implementations return
// *errs.Error values; a missing row is errs.KindNotFound.
type Store interface {
	Ping(ctx context.Context) error

	// CreateUser fails with a conflict when the username is taken.
	CreateUser(ctx context.Context, username string, passwordHash []byte, now time.Time) (User, error)
	GetUser(ctx context.Context, id int64) (User, error)
	GetUserByUsername(ctx context.Context, username string) (User, error)

	// CreateSchema inserts the schema and all of its columns atomically.
	CreateSchema(ctx context.Context, s Schema) (Schema, error)
	// GetSchema returns the schema with its columns in output order.
	GetSchema(ctx context.Context, id int64) (Schema, error)
	// ListSchemas returns the owner's schemas, most recently modified first.
	ListSchemas(ctx context.Context, ownerID int64, page Page) ([]Schema, int, error)
	// UpdateSchema saves title, separator and quote char and bumps modified.
	UpdateSchema(ctx context.Context, s Schema) (Schema, error)
	// DeleteSchema removes the schema, its columns, datasets and jobs, and
	// returns the ids of the removed datasets.
	DeleteSchema(ctx context.Context, id int64) ([]string, error)

	// Column mutations set the owning schema's modified time to now.
	CreateColumn(ctx context.Context, c Column, now time.Time) (Column, error)
	// UpdateColumn matches on both the column id and its schema id.
	UpdateColumn(ctx context.Context, c Column, now time.Time) (Column, error)
	// DeleteColumn fails with a conflict when it is the schema's last column.
	DeleteColumn(ctx context.Context, schemaID, columnID int64, now time.Time) error

	// CreateDataset inserts the dataset and its pending job atomically.
	CreateDataset(ctx context.Context, d Dataset, j Job) (Dataset, Job, error)
	GetDataset(ctx context.Context, id string) (Dataset, error)
	// ListDatasets returns the owner's datasets, newest first.
	ListDatasets(ctx context.Context, ownerID int64, page Page) ([]Dataset, int, error)
	// MarkDatasetProcessed sets processed and changes nothing else.
	MarkDatasetProcessed(ctx context.Context, id string) error
	// DeleteDataset removes the dataset and its job.
	DeleteDataset(ctx context.Context, id string) error

	GetJob(ctx context.Context, id string) (Job, error)
	GetJobByDataset(ctx context.Context, datasetID string) (Job, error)
	// ClaimJob moves a pending job to running and counts the attempt. It
	// fails with a conflict when the job is not pending.
	ClaimJob(ctx context.Context, id string, now time.Time) (Job, error)
	CompleteJob(ctx context.Context, id string, now time.Time) error
	// RetryJob puts a running job back to pending, due at runAt.
	RetryJob(ctx context.Context, id, lastError string, runAt, now time.Time) error
	FailJob(ctx context.Context, id, lastError string, now time.Time) error
	// DueJobs lists pending jobs whose run_at is not after now.
	DueJobs(ctx context.Context, now time.Time, limit int) ([]Job, error)
	// ResetStaleJobs returns running jobs last updated before cutoff to
	// pending and reports how many there were.
	ResetStaleJobs(ctx context.Context, cutoff, now time.Time) (int, error)
}
