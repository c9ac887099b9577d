package store

import (
	"context"
	"fmt"

	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/quill/internal/models"
)

// jobRecord wraps an IndexJob for badgerhold persistence
type jobRecord struct {
	ID  string `badgerhold:"key"`
	Job models.IndexJob
}

// SaveJob upserts one job record. The manager calls this on every status
// transition, so the stored record always reflects the latest snapshot.
func (s *Store) SaveJob(ctx context.Context, job *models.IndexJob) error {
	record := jobRecord{ID: job.ID, Job: *job.Clone()}
	if err := s.db.Upsert(job.ID, &record); err != nil {
		return fmt.Errorf("save job %s: %w", job.ID, err)
	}
	return nil
}

// LoadJobs returns every persisted job record
func (s *Store) LoadJobs(ctx context.Context) ([]*models.IndexJob, error) {
	var records []jobRecord
	if err := s.db.Find(&records, nil); err != nil {
		return nil, fmt.Errorf("load jobs: %w", err)
	}

	jobs := make([]*models.IndexJob, 0, len(records))
	for i := range records {
		job := records[i].Job
		jobs = append(jobs, &job)
	}
	return jobs, nil
}

// DeleteJob removes one job record; unknown IDs are not an error
func (s *Store) DeleteJob(ctx context.Context, id string) error {
	err := s.db.Delete(id, &jobRecord{})
	if err != nil && err != badgerhold.ErrNotFound {
		return fmt.Errorf("delete job %s: %w", id, err)
	}
	return nil
}
