package jobs

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/quill/internal/common"
	"github.com/ternarybob/quill/internal/interfaces"
	"github.com/ternarybob/quill/internal/models"
)

// CrawlFunc runs one crawl for a scope. The manager owns the surrounding
// lifecycle: queueing, concurrency limits, cancellation, and status updates.
type CrawlFunc func(ctx context.Context, library, version, seedURL string, opts models.ScrapeOptions, onProgress func(models.JobProgress)) (models.JobProgress, error)

// jobEntry pairs a job record with its runtime handles
type jobEntry struct {
	job    *models.IndexJob
	cancel context.CancelFunc
	done   chan struct{}
}

// Manager schedules index jobs against a global concurrency limit. Jobs run
// as soon as a slot frees; re-indexing a scope deletes its previous chunks
// first so every scope reflects exactly one crawl.
type Manager struct {
	mu       sync.Mutex
	entries  map[string]*jobEntry
	sem      chan struct{}
	crawl    CrawlFunc
	store    interfaces.ChunkStorage
	jobStore interfaces.JobStorage
	baseCtx  context.Context
	stop     context.CancelFunc
	wg       sync.WaitGroup
	logger   arbor.ILogger
}

func NewManager(crawl CrawlFunc, store interfaces.ChunkStorage, jobStore interfaces.JobStorage, cfg *common.Config, logger arbor.ILogger) *Manager {
	baseCtx, stop := context.WithCancel(context.Background())
	m := &Manager{
		entries:  make(map[string]*jobEntry),
		sem:      make(chan struct{}, cfg.Jobs.Concurrency),
		crawl:    crawl,
		store:    store,
		jobStore: jobStore,
		baseCtx:  baseCtx,
		stop:     stop,
		logger:   logger,
	}
	m.restore()
	return m
}

// restore loads job records from a previous process. Jobs that were still in
// flight when that process died are settled as failed, since their crawl
// state is gone.
func (m *Manager) restore() {
	if m.jobStore == nil {
		return
	}
	jobs, err := m.jobStore.LoadJobs(context.Background())
	if err != nil {
		m.logger.Warn().Err(err).Msg("Failed to load persisted jobs")
		return
	}
	for _, job := range jobs {
		if !job.Status.IsTerminal() {
			job.Status = models.JobStatusFailed
			job.Error = "interrupted by restart"
			if job.FinishedAt == nil {
				now := time.Now()
				job.FinishedAt = &now
			}
			m.persist(job)
		}
		done := make(chan struct{})
		close(done)
		m.entries[job.ID] = &jobEntry{job: job, cancel: func() {}, done: done}
	}
	if len(jobs) > 0 {
		m.logger.Info().Int("count", len(jobs)).Msg("Restored job records")
	}
}

func (m *Manager) persist(job *models.IndexJob) {
	if m.jobStore == nil {
		return
	}
	if err := m.jobStore.SaveJob(context.Background(), job); err != nil {
		m.logger.Warn().Err(err).Str("job_id", job.ID).Msg("Failed to persist job record")
	}
}

// Enqueue validates the request, registers a queued job, and starts its
// runner goroutine. The runner blocks on the concurrency semaphore.
func (m *Manager) Enqueue(ctx context.Context, library, version, seedURL string, opts models.ScrapeOptions) (string, error) {
	if library == "" {
		return "", fmt.Errorf("library is required")
	}
	if err := models.ValidateSeedURL(seedURL); err != nil {
		return "", err
	}
	opts.Normalize()
	if err := opts.Validate(); err != nil {
		return "", err
	}

	job := &models.IndexJob{
		ID:        uuid.New().String(),
		Library:   models.NormalizeLibrary(library),
		Version:   models.NormalizeVersion(version),
		SeedURL:   seedURL,
		Options:   opts,
		Status:    models.JobStatusQueued,
		CreatedAt: time.Now(),
	}

	jobCtx, cancel := context.WithCancel(m.baseCtx)
	entry := &jobEntry{job: job, cancel: cancel, done: make(chan struct{})}

	m.mu.Lock()
	if m.baseCtx.Err() != nil {
		m.mu.Unlock()
		cancel()
		return "", fmt.Errorf("manager is shut down")
	}
	m.entries[job.ID] = entry
	m.mu.Unlock()

	m.persist(job.Clone())

	m.logger.Info().
		Str("job_id", job.ID).
		Str("library", job.Library).
		Str("version", job.Version).
		Str("url", seedURL).
		Msg("Job queued")

	m.wg.Add(1)
	go m.run(jobCtx, entry)

	return job.ID, nil
}

func (m *Manager) run(ctx context.Context, entry *jobEntry) {
	defer m.wg.Done()
	defer close(entry.done)

	select {
	case m.sem <- struct{}{}:
		defer func() { <-m.sem }()
	case <-ctx.Done():
		m.finish(entry, models.JobStatusCancelled, "")
		return
	}

	if !m.transition(entry, models.JobStatusRunning) {
		// Cancelled while queued
		m.finish(entry, models.JobStatusCancelled, "")
		return
	}

	job := m.snapshot(entry)

	// A fresh crawl replaces whatever the scope held before
	if exists, err := m.store.Exists(ctx, job.Library, job.Version); err == nil && exists {
		m.logger.Info().
			Str("library", job.Library).
			Str("version", job.Version).
			Msg("Scope already indexed, removing before re-crawl")
		if err := m.store.DeleteScope(ctx, job.Library, job.Version); err != nil {
			m.finish(entry, models.JobStatusFailed, fmt.Sprintf("clear existing scope: %v", err))
			return
		}
	}

	progress, err := m.crawl(ctx, job.Library, job.Version, job.SeedURL, job.Options, func(p models.JobProgress) {
		m.mu.Lock()
		entry.job.Progress = p
		m.mu.Unlock()
	})

	m.mu.Lock()
	entry.job.Progress = progress
	m.mu.Unlock()

	switch {
	case err == nil:
		m.finish(entry, models.JobStatusCompleted, "")
	case ctx.Err() != nil:
		m.finish(entry, models.JobStatusCancelled, "")
	default:
		m.finish(entry, models.JobStatusFailed, err.Error())
	}
}

// transition applies a state change under the lock, honoring the job state
// machine. Returns false when the change is not legal from the current state.
func (m *Manager) transition(entry *jobEntry, to models.JobStatus) bool {
	m.mu.Lock()
	if !models.CanTransition(entry.job.Status, to) {
		m.mu.Unlock()
		return false
	}
	entry.job.Status = to
	if to == models.JobStatusRunning {
		now := time.Now()
		entry.job.StartedAt = &now
	}
	snapshot := entry.job.Clone()
	m.mu.Unlock()

	m.persist(snapshot)
	return true
}

func (m *Manager) finish(entry *jobEntry, status models.JobStatus, errMsg string) {
	m.mu.Lock()
	current := entry.job.Status
	switch {
	case models.CanTransition(current, status):
		entry.job.Status = status
	case current == models.JobStatusCancelling:
		// A cancel request raced the crawl's own finish; the cancel wins so
		// the caller's accepted cancellation never reports completed
		entry.job.Status = models.JobStatusCancelled
	case status == models.JobStatusCancelled && models.CanTransition(current, models.JobStatusCancelling):
		// Context cancellation without an explicit CancelJob call, e.g.
		// manager shutdown: running jobs settle straight to cancelled
		entry.job.Status = models.JobStatusCancelled
	}
	now := time.Now()
	entry.job.FinishedAt = &now
	entry.job.Error = errMsg
	entry.job.Progress.CurrentURL = ""
	final := entry.job.Status
	snapshot := entry.job.Clone()
	m.mu.Unlock()

	m.persist(snapshot)

	evt := m.logger.Info()
	if final == models.JobStatusFailed {
		evt = m.logger.Warn()
	}
	evt.Str("job_id", entry.job.ID).
		Str("status", string(final)).
		Str("error", errMsg).
		Msg("Job finished")
}

func (m *Manager) snapshot(entry *jobEntry) *models.IndexJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	return entry.job.Clone()
}

func (m *Manager) GetJob(ctx context.Context, id string) (*models.IndexJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[id]
	if !ok {
		return nil, nil
	}
	return entry.job.Clone(), nil
}

func (m *Manager) ListJobs(ctx context.Context, statuses ...models.JobStatus) ([]*models.IndexJob, error) {
	m.mu.Lock()
	jobs := make([]*models.IndexJob, 0, len(m.entries))
	for _, entry := range m.entries {
		if matchesStatus(entry.job.Status, statuses) {
			jobs = append(jobs, entry.job.Clone())
		}
	}
	m.mu.Unlock()

	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
			return jobs[i].ID < jobs[j].ID
		}
		return jobs[i].CreatedAt.Before(jobs[j].CreatedAt)
	})
	return jobs, nil
}

func (m *Manager) FindJobs(ctx context.Context, library, version string, statuses ...models.JobStatus) ([]*models.IndexJob, error) {
	library = models.NormalizeLibrary(library)
	version = models.NormalizeVersion(version)

	all, err := m.ListJobs(ctx, statuses...)
	if err != nil {
		return nil, err
	}
	matched := make([]*models.IndexJob, 0, len(all))
	for _, job := range all {
		if job.Library == library && (version == "" || job.Version == version) {
			matched = append(matched, job)
		}
	}
	return matched, nil
}

// CancelJob requests cancellation. Queued jobs cancel immediately; running
// jobs move to cancelling and settle once their crawl context unwinds.
func (m *Manager) CancelJob(ctx context.Context, id string) (bool, string, error) {
	m.mu.Lock()
	entry, ok := m.entries[id]
	if !ok {
		m.mu.Unlock()
		return false, fmt.Sprintf("job %s not found", id), nil
	}

	status := entry.job.Status
	switch {
	case status.IsTerminal():
		m.mu.Unlock()
		return false, fmt.Sprintf("job is already %s", status), nil
	case status == models.JobStatusCancelling:
		m.mu.Unlock()
		return true, "cancellation already in progress", nil
	case status == models.JobStatusRunning:
		entry.job.Status = models.JobStatusCancelling
		m.mu.Unlock()
		entry.cancel()
		return true, "cancelling running job", nil
	default: // queued
		m.mu.Unlock()
		entry.cancel()
		return true, "cancelled queued job", nil
	}
}

func (m *Manager) WaitForJob(ctx context.Context, id string) (*models.IndexJob, error) {
	m.mu.Lock()
	entry, ok := m.entries[id]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("job %s not found", id)
	}

	select {
	case <-entry.done:
		return m.snapshot(entry), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *Manager) ClearCompleted(ctx context.Context) int {
	m.mu.Lock()
	removed := make([]string, 0)
	for id, entry := range m.entries {
		if entry.job.Status.IsTerminal() {
			delete(m.entries, id)
			removed = append(removed, id)
		}
	}
	m.mu.Unlock()

	if m.jobStore != nil {
		for _, id := range removed {
			if err := m.jobStore.DeleteJob(ctx, id); err != nil {
				m.logger.Warn().Err(err).Str("job_id", id).Msg("Failed to delete job record")
			}
		}
	}
	return len(removed)
}

// Shutdown cancels everything and waits for runners to drain or the context
// to expire.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.stop()

	drained := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		m.logger.Info().Msg("Job manager drained")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func matchesStatus(status models.JobStatus, filter []models.JobStatus) bool {
	if len(filter) == 0 {
		return true
	}
	for _, s := range filter {
		if s == status {
			return true
		}
	}
	return false
}

var _ interfaces.JobService = (*Manager)(nil)
