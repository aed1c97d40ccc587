package app

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/dvloznov/horizon/internal/config"
	"github.com/dvloznov/horizon/internal/domain"
	"github.com/dvloznov/horizon/internal/jobs"
	"github.com/dvloznov/horizon/internal/transfer"
	"github.com/shopspring/decimal"
)

// MockExecutor is a mock implementation of TransferExecutor.
type MockExecutor struct {
	ExecuteFunc func(ctx context.Context, req transfer.Request) (*transfer.Result, error)
}

func (m *MockExecutor) Execute(ctx context.Context, req transfer.Request) (*transfer.Result, error) {
	return m.ExecuteFunc(ctx, req)
}

// otherJob is a job type the transfer handler does not know.
type otherJob struct{}

func (otherJob) GetID() string             { return "other" }
func (otherJob) GetType() jobs.JobType     { return "other" }
func (otherJob) GetStatus() jobs.JobStatus { return jobs.JobStatusPending }

func TestTransferJobHandler(t *testing.T) {
	var got transfer.Request
	exec := &MockExecutor{
		ExecuteFunc: func(ctx context.Context, req transfer.Request) (*transfer.Result, error) {
			got = req
			return &transfer.Result{
				Record:      domain.TransferRecord{ID: "tr-1"},
				TransferURL: "https://api.dwolla.com/transfers/abc",
			}, nil
		},
	}
	job := &jobs.TransferJob{
		JobID:          "job-1",
		SenderBankID:   "bank-1",
		ReceiverBankID: "bank-2",
		Amount:         decimal.RequireFromString("25.00"),
		Name:           "Rent",
	}

	if err := TransferJobHandler(exec)(context.Background(), job); err != nil {
		t.Fatalf("handler failed: %v", err)
	}

	if got.IdempotencyKey != "job-1" {
		t.Errorf("Expected idempotency key job-1, got %q", got.IdempotencyKey)
	}
	if got.SenderBankID != "bank-1" || got.ReceiverBankID != "bank-2" || got.Name != "Rent" {
		t.Errorf("Unexpected request: %+v", got)
	}
	if job.TransferID != "tr-1" || job.TransferURL == "" {
		t.Errorf("Expected job to carry the transfer, got %+v", job)
	}
}

func TestTransferJobHandler_Errors(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		wantPermanent bool
	}{
		{"invalid request", fmt.Errorf("Execute: %w", transfer.ErrInvalidRequest), true},
		{"unknown bank", fmt.Errorf("Execute: sender: %w", transfer.ErrBankNotFound), true},
		{"no funding source", fmt.Errorf("Execute: receiver: %w", transfer.ErrNoFundingSource), true},
		{"processor outage", errors.New("connection reset"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := &MockExecutor{
				ExecuteFunc: func(ctx context.Context, req transfer.Request) (*transfer.Result, error) {
					return nil, tt.err
				},
			}

			err := TransferJobHandler(exec)(context.Background(), &jobs.TransferJob{JobID: "job-1"})
			if !errors.Is(err, tt.err) {
				t.Errorf("Expected wrapped %v, got %v", tt.err, err)
			}
			if errors.Is(err, jobs.ErrPermanent) != tt.wantPermanent {
				t.Errorf("Permanent = %v, want %v", errors.Is(err, jobs.ErrPermanent), tt.wantPermanent)
			}
		})
	}
}

func TestTransferJobHandler_UnknownJob(t *testing.T) {
	err := TransferJobHandler(&MockExecutor{})(context.Background(), otherJob{})
	if !errors.Is(err, jobs.ErrPermanent) {
		t.Errorf("Expected permanent error, got %v", err)
	}
}

func TestNewTransferService_Disabled(t *testing.T) {
	_, err := NewTransferService(context.Background(), config.Config{}, nil)
	if !errors.Is(err, ErrTransfersDisabled) {
		t.Errorf("Expected ErrTransfersDisabled, got %v", err)
	}
}

func TestNewLinkService_Disabled(t *testing.T) {
	_, err := NewLinkService(context.Background(), config.Config{PlaidClientID: "client-id"}, nil)
	if !errors.Is(err, ErrTransfersDisabled) {
		t.Errorf("Expected ErrTransfersDisabled, got %v", err)
	}
}

func TestOpenStore_UnknownBackend(t *testing.T) {
	_, _, err := OpenStore(context.Background(), config.Config{StoreBackend: "sqlite"})
	if !errors.Is(err, config.ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig, got %v", err)
	}
}
