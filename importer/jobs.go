/*
Package importer implements CSV bulk import of driver shifts and credit-card
charges.

jobs.go - Import job tracking

PURPOSE:
  Import runs are tracked through an injected JobStore rather than a
  process-global map, so multiple instances don't silently drop job status.
  The memory implementation backs tests and single-node deployments; the
  sqlite store provides a durable one.
*/
package importer

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	JobRunning   JobStatus = "RUNNING"
	JobCompleted JobStatus = "COMPLETED"
	JobFailed    JobStatus = "FAILED"
)

type JobKind string

const (
	JobDriverShifts JobKind = "DRIVER_SHIFTS"
	JobCardCharges  JobKind = "CARD_CHARGES"
)

// Job records one import run: counts plus the per-row errors collected
// along the way. RowErrors never abort the run.
type Job struct {
	ID        string
	Kind      JobKind
	Status    JobStatus
	StartedAt time.Time
	EndedAt   *time.Time

	RowsTotal    int
	RowsImported int
	RowErrors    []RowError
}

// RowError ties a failure to its CSV line.
type RowError struct {
	Line    int
	Message string
}

type JobStore interface {
	SaveJob(ctx context.Context, job Job) error
	JobByID(ctx context.Context, id string) (*Job, error)
	Jobs(ctx context.Context) ([]Job, error)
}

func newJob(kind JobKind, now time.Time) Job {
	return Job{
		ID:        uuid.NewString(),
		Kind:      kind,
		Status:    JobRunning,
		StartedAt: now,
	}
}

// =============================================================================
// MEMORY JOB STORE
// =============================================================================

type MemoryJobStore struct {
	mu   sync.RWMutex
	jobs map[string]Job
}

func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{jobs: make(map[string]Job)}
}

func (m *MemoryJobStore) SaveJob(_ context.Context, job Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = job
	return nil
}

func (m *MemoryJobStore) JobByID(_ context.Context, id string) (*Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if job, ok := m.jobs[id]; ok {
		return &job, nil
	}
	return nil, nil
}

func (m *MemoryJobStore) Jobs(_ context.Context) ([]Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		out = append(out, job)
	}
	return out, nil
}
