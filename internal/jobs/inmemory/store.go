package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dvloznov/horizon/internal/jobs"
)

// Store keeps transfer jobs in process memory. Jobs do not survive a restart;
// the recorded transfers themselves live in the ledger store.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*jobs.TransferJob
	now  func() time.Time
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		jobs: make(map[string]*jobs.TransferJob),
		now:  time.Now,
	}
}

// SaveJob stores a copy of job, replacing any earlier state.
func (s *Store) SaveJob(ctx context.Context, job *jobs.TransferJob) error {
	if job.JobID == "" {
		return fmt.Errorf("SaveJob: job ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	saved := *job
	s.jobs[job.JobID] = &saved
	return nil
}

// GetJob returns a copy of the job.
func (s *Store) GetJob(ctx context.Context, jobID string) (*jobs.TransferJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("GetJob %s: %w", jobID, jobs.ErrJobNotFound)
	}

	found := *job
	return &found, nil
}

// ListJobs returns the matching transfers, newest first. Ties on CreatedAt
// are broken by job ID so offsets page deterministically.
func (s *Store) ListJobs(ctx context.Context, filter jobs.JobFilter) ([]*jobs.TransferJob, error) {
	s.mu.RLock()
	result := make([]*jobs.TransferJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		if filter.UserID != "" && job.UserID != filter.UserID {
			continue
		}
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}
		if filter.BankID != "" && !job.Involves(filter.BankID) {
			continue
		}
		found := *job
		result = append(result, &found)
	}
	s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].JobID < result[j].JobID
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return []*jobs.TransferJob{}, nil
		}
		result = result[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}

	return result, nil
}

// UpdateJobStatus moves a job to status and records errorMsg, if any.
func (s *Store) UpdateJobStatus(ctx context.Context, jobID string, status jobs.JobStatus, errorMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return fmt.Errorf("UpdateJobStatus %s: %w", jobID, jobs.ErrJobNotFound)
	}

	job.Status = status
	if errorMsg != "" {
		job.Error = errorMsg
	}
	if status.Terminal() {
		completed := s.now()
		job.CompletedAt = &completed
	}
	return nil
}

var _ jobs.JobStore = (*Store)(nil)
