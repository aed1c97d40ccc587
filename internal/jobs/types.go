package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// JobType represents the type of job to be executed.
type JobType string

const (
	// JobTypeTransfer moves money between two linked banks.
	JobTypeTransfer JobType = "transfer"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	// JobStatusPending indicates the job is waiting to be processed.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates the job is currently being processed.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates the job completed successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the job failed.
	JobStatusFailed JobStatus = "failed"
	// JobStatusRetrying indicates the job failed and is being retried.
	JobStatusRetrying JobStatus = "retrying"
)

// TransferJob represents a transfer between two linked banks, executed
// asynchronously by a worker.
type TransferJob struct {
	// JobID is the unique identifier for this job.
	JobID string `json:"job_id"`

	SenderBankID   string          `json:"sender_bank_id"`
	ReceiverBankID string          `json:"receiver_bank_id"`
	Amount         decimal.Decimal `json:"amount"`
	Name           string          `json:"name,omitempty"`

	// UserID is the authenticated user who requested the transfer.
	UserID string `json:"user_id,omitempty"`

	// TransferID is the ID of the recorded transfer once completed.
	TransferID string `json:"transfer_id,omitempty"`

	// TransferURL is the payment processor's resource for the transfer.
	TransferURL string `json:"transfer_url,omitempty"`

	// Status is the current status of the job.
	Status JobStatus `json:"status"`

	// CreatedAt is when the job was created.
	CreatedAt time.Time `json:"created_at"`

	// StartedAt is when the job started processing.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt is when the job completed (success or failure).
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error contains error details if the job failed.
	Error string `json:"error,omitempty"`

	// RetryCount is the number of times this job has been retried.
	RetryCount int `json:"retry_count"`

	// MaxRetries is the maximum number of retries allowed.
	MaxRetries int `json:"max_retries"`
}

var (
	// ErrPermanent marks a job failure that must not be retried.
	ErrPermanent = errors.New("permanent job failure")

	// ErrJobNotFound is returned by a JobStore for an unknown job ID.
	ErrJobNotFound = errors.New("job not found")
)

// Permanent wraps err so the queue fails the job without retrying.
func Permanent(err error) error {
	return fmt.Errorf("%w: %w", ErrPermanent, err)
}

// Job is a generic interface for all job types.
type Job interface {
	// GetID returns the unique job identifier.
	GetID() string

	// GetType returns the job type.
	GetType() JobType

	// GetStatus returns the current job status.
	GetStatus() JobStatus
}

// GetID implements the Job interface.
func (j *TransferJob) GetID() string {
	return j.JobID
}

// GetType implements the Job interface.
func (j *TransferJob) GetType() JobType {
	return JobTypeTransfer
}

// GetStatus implements the Job interface.
func (j *TransferJob) GetStatus() JobStatus {
	return j.Status
}

// Publisher defines the interface for publishing jobs to a queue.
type Publisher interface {
	// PublishTransfer publishes a transfer job.
	PublishTransfer(ctx context.Context, job *TransferJob) error

	// Close closes the publisher and releases resources.
	Close() error
}

// Consumer defines the interface for consuming jobs from a queue.
// This abstraction allows for different queue implementations (in-memory, Cloud Tasks, Pub/Sub).
type Consumer interface {
	// Start begins consuming jobs from the queue.
	// The handler function is called for each job received.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler is a function that processes a job.
// It should return an error if the job failed and should be retried, or a
// Permanent error if retrying cannot help.
type JobHandler func(ctx context.Context, job Job) error

// JobStore records the state of transfer jobs so clients can poll them.
type JobStore interface {
	// SaveJob saves or updates a job's state.
	SaveJob(ctx context.Context, job *TransferJob) error

	// GetJob retrieves a job by ID.
	GetJob(ctx context.Context, jobID string) (*TransferJob, error)

	// ListJobs retrieves jobs with optional filtering.
	ListJobs(ctx context.Context, filter JobFilter) ([]*TransferJob, error)

	// UpdateJobStatus moves a job to status. Completed and failed jobs are
	// stamped with their completion time.
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errorMsg string) error
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	// UserID filters jobs by requesting user.
	UserID string

	// Status filters jobs by status.
	Status JobStatus

	// BankID keeps transfers where the bank is the sender or the receiver.
	BankID string

	// Limit limits the number of results.
	Limit int

	// Offset for pagination.
	Offset int
}

// Involves reports whether bankID is the sender or the receiver of the transfer.
func (j *TransferJob) Involves(bankID string) bool {
	return j.SenderBankID == bankID || j.ReceiverBankID == bankID
}

// Terminal reports whether a job in status s will not run again.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}
