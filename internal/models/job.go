package models

import (
	"time"
)

// JobStatus represents the state of an index job
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusRunning    JobStatus = "running"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelling JobStatus = "cancelling"
	JobStatusCancelled  JobStatus = "cancelled"
)

// IsTerminal reports whether a job in this status will never change again
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// CanTransition enforces the job state machine:
// queued -> running -> {completed|failed|cancelling}; queued -> cancelled;
// cancelling -> cancelled. Terminal states are immutable.
func CanTransition(from, to JobStatus) bool {
	if from.IsTerminal() {
		return false
	}
	switch from {
	case JobStatusQueued:
		return to == JobStatusRunning || to == JobStatusCancelled
	case JobStatusRunning:
		return to == JobStatusCompleted || to == JobStatusFailed || to == JobStatusCancelling
	case JobStatusCancelling:
		return to == JobStatusCancelled
	}
	return false
}

// JobProgress tracks pages processed during a crawl
type JobProgress struct {
	PagesScraped    int    `json:"pages_scraped"`
	PagesFailed     int    `json:"pages_failed"`
	TotalDiscovered int    `json:"total_discovered"`
	CurrentURL      string `json:"current_url,omitempty"`
}

// IndexJob is one crawl-and-index request owned by the pipeline manager.
// Options are snapshot at enqueue time so a job is self-contained.
type IndexJob struct {
	ID         string        `json:"id"`
	Library    string        `json:"library"` // Normalized
	Version    string        `json:"version"` // Normalized; empty is the unversioned bucket
	SeedURL    string        `json:"seed_url"`
	Options    ScrapeOptions `json:"options"`
	Status     JobStatus     `json:"status"`
	Progress   JobProgress   `json:"progress"`
	CreatedAt  time.Time     `json:"created_at"`
	StartedAt  *time.Time    `json:"started_at,omitempty"`
	FinishedAt *time.Time    `json:"finished_at,omitempty"`
	// Error holds a concise description of why the job failed, only populated
	// for status "failed".
	Error string `json:"error,omitempty"`
}

// Clone returns a copy safe to hand out while the manager keeps mutating the
// original under its lock.
func (j *IndexJob) Clone() *IndexJob {
	c := *j
	if j.StartedAt != nil {
		t := *j.StartedAt
		c.StartedAt = &t
	}
	if j.FinishedAt != nil {
		t := *j.FinishedAt
		c.FinishedAt = &t
	}
	return &c
}
