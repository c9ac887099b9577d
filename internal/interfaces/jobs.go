package interfaces

import (
	"context"

	"github.com/ternarybob/quill/internal/models"
)

// JobService is the pipeline manager: a concurrent scheduler for index jobs
type JobService interface {
	// Enqueue validates and queues a crawl job, returning its ID. The job
	// starts as soon as a scheduler slot frees.
	Enqueue(ctx context.Context, library, version, seedURL string, opts models.ScrapeOptions) (string, error)

	// GetJob returns a snapshot of a job, or nil when unknown.
	GetJob(ctx context.Context, id string) (*models.IndexJob, error)

	// ListJobs returns jobs sorted by creation time, optionally filtered by
	// status.
	ListJobs(ctx context.Context, statuses ...models.JobStatus) ([]*models.IndexJob, error)

	// CancelJob requests cooperative cancellation. Idempotent on terminal
	// jobs: returns ok=false with a reason instead of an error.
	CancelJob(ctx context.Context, id string) (ok bool, message string, err error)

	// WaitForJob blocks until the job reaches a terminal status or the
	// context is cancelled.
	WaitForJob(ctx context.Context, id string) (*models.IndexJob, error)

	// ClearCompleted removes terminal job records, returning the count.
	ClearCompleted(ctx context.Context) int

	// FindJobs returns jobs for a library scope, optionally filtered by
	// status.
	FindJobs(ctx context.Context, library, version string, statuses ...models.JobStatus) ([]*models.IndexJob, error)

	// Shutdown cancels running jobs and waits for workers to drain.
	Shutdown(ctx context.Context) error
}

// JobStorage persists job records across process restarts
type JobStorage interface {
	// SaveJob upserts the latest snapshot of a job.
	SaveJob(ctx context.Context, job *models.IndexJob) error

	// LoadJobs returns all persisted job records.
	LoadJobs(ctx context.Context) ([]*models.IndexJob, error)

	// DeleteJob removes a job record; unknown IDs are ignored.
	DeleteJob(ctx context.Context, id string) error
}

// SearchService executes hybrid retrieval over the chunk store
type SearchService interface {
	Search(ctx context.Context, library, version, query string, limit int, exactMatch bool) ([]models.SearchResult, error)
}
