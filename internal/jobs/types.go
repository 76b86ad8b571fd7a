// Package jobs defines the asynchronous sync job contracts. Interfaces
// keep the queue implementation swappable; the in-memory implementation
// under jobs/inmemory suits single-instance deployments.
package jobs

import (
	"context"
	"time"
)

// JobType represents the type of job to be executed.
type JobType string

const (
	// JobTypeSyncAccount fetches one account's transactions and
	// balance and re-ingests them into the ledger.
	JobTypeSyncAccount JobType = "sync_account"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusRetrying  JobStatus = "retrying"
)

// SyncAccountJob describes one account sync request.
type SyncAccountJob struct {
	// JobID is the unique identifier for this job.
	JobID string `json:"job_id"`

	// AccountID is the bank account to sync.
	AccountID string `json:"account_id"`

	// From and To bound the server-side transaction fetch window.
	From time.Time `json:"from"`
	To   time.Time `json:"to"`

	// ForceFullSync widens the window to the configured full-sync
	// range regardless of the last sync time.
	ForceFullSync bool `json:"force_full_sync,omitempty"`

	// Seq orders overlapping syncs of the same store: a later request
	// carries a higher Seq and wins even if an earlier one finishes
	// after it.
	Seq uint64 `json:"seq"`

	Status JobStatus `json:"status"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error contains error details if the job failed.
	Error string `json:"error,omitempty"`

	// Transactions is the number of records ingested on success.
	Transactions int `json:"transactions,omitempty"`

	RetryCount int `json:"retry_count"`
	MaxRetries int `json:"max_retries"`
}

// Job is a generic interface for all job types.
type Job interface {
	GetID() string
	GetType() JobType
	GetStatus() JobStatus
}

func (j *SyncAccountJob) GetID() string        { return j.JobID }
func (j *SyncAccountJob) GetType() JobType     { return JobTypeSyncAccount }
func (j *SyncAccountJob) GetStatus() JobStatus { return j.Status }

// Publisher defines the interface for publishing jobs to a queue.
type Publisher interface {
	// PublishSyncAccount publishes an account sync job.
	PublishSyncAccount(ctx context.Context, job *SyncAccountJob) error

	// Close closes the publisher and releases resources.
	Close() error
}

// Consumer defines the interface for consuming jobs from a queue.
type Consumer interface {
	// Start begins consuming jobs from the queue. The handler function
	// is called for each job received.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler is a function that processes a job. It should return an
// error if the job failed and should be retried.
type JobHandler func(ctx context.Context, job Job) error

// JobStore defines the interface for storing and retrieving job status.
type JobStore interface {
	SaveJob(ctx context.Context, job *SyncAccountJob) error
	GetJob(ctx context.Context, jobID string) (*SyncAccountJob, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]*SyncAccountJob, error)
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errorMsg string) error
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	// AccountID filters jobs by account.
	AccountID string

	// Status filters jobs by status.
	Status JobStatus

	// Limit limits the number of results.
	Limit int

	// Offset for pagination.
	Offset int
}
