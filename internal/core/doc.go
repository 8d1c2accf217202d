// Package core provides the business logic for synthetic CSV datasets.
//
// This package holds all domain logic independent of the transport layer
// and of the storage backends. It talks to a repository through [Store]
// and to generated files through a filestore.Store, so the web handlers,
// the worker pool and the tests all drive the same [Service].
//
// # Schemas and Column Kinds
//
// A [Schema] is a user's CSV layout: a title, a dialect (separator and
// quote character) and ordered, typed columns. Each column has a [Kind]
// that decides how its values are generated:
//
//   - name: a random full name from the sample pool
//   - job: a random job title from the sample pool
//   - text: a paragraph of Start to End-1 sentences
//   - integer: a value in [Start, End)
//   - date: a calendar date between 1970 and process start
//
// Only text and integer columns take [Params]; the others reject them.
//
// # Dataset Lifecycle
//
// Requesting a dataset freezes a [Snapshot] of the schema, so later
// schema edits never change it. Generation then runs in the background:
//
//  1. [Service.CreateDataset] stores the dataset with a pending [Job]
//  2. The job id is queued without blocking; a full queue leaves it
//     pending for the scheduler
//  3. A worker claims the job, writes a header plus Rows rows to
//     "<id>.csv" in batches and marks the dataset processed
//  4. Failed attempts are retried with exponential backoff up to
//     MaxAttempts; [Service.StartJobScheduler] requeues due and stale jobs
//
// # Downloads
//
// [Service.OpenDataset] re-encodes the stored file in chunks while holding
// a slot of the [DownloadLimiter], so at most MaxConcurrentDownloads files
// stream at once.
//
// # Error Handling
//
// Operations return the sentinel errors in errors.go, wrapped where useful.
// [MapError] turns any error into a user-facing message with a code for
// support reference:
//
//   - AUTH001-AUTH005: Accounts and sessions
//   - RES001-RES004: Missing schemas, columns, datasets and files
//   - VAL001: Validation, with per-field messages in [ValidationErrors]
//   - DB001-DB006: Repository failures
//
// # Ownership
//
// Every lookup is scoped to the calling user. Another user's schema or
// dataset is reported exactly like a missing one.
package core
