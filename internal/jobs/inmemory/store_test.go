package inmemory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dvloznov/horizon/internal/jobs"
)

func seededStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2024, 2, 15, 9, 0, 0, 0, time.UTC)

	store := NewStore()
	for _, job := range []*jobs.TransferJob{
		{JobID: "a", UserID: "u1", SenderBankID: "bank-1", ReceiverBankID: "bank-2", Status: jobs.JobStatusCompleted, CreatedAt: base},
		{JobID: "b", UserID: "u1", SenderBankID: "bank-3", ReceiverBankID: "bank-1", Status: jobs.JobStatusFailed, CreatedAt: base.Add(time.Hour)},
		{JobID: "c", UserID: "u2", SenderBankID: "bank-4", ReceiverBankID: "bank-2", Status: jobs.JobStatusCompleted, CreatedAt: base.Add(2 * time.Hour)},
		{JobID: "d", UserID: "u1", SenderBankID: "bank-3", ReceiverBankID: "bank-4", Status: jobs.JobStatusPending, CreatedAt: base.Add(2 * time.Hour)},
	} {
		if err := store.SaveJob(ctx, job); err != nil {
			t.Fatalf("SaveJob failed: %v", err)
		}
	}
	return store
}

func TestStore_ListJobs(t *testing.T) {
	store := seededStore(t)

	tests := []struct {
		name   string
		filter jobs.JobFilter
		want   []string
	}{
		{"all newest first", jobs.JobFilter{}, []string{"c", "d", "b", "a"}},
		{"by user", jobs.JobFilter{UserID: "u1"}, []string{"d", "b", "a"}},
		{"by status", jobs.JobFilter{Status: jobs.JobStatusCompleted}, []string{"c", "a"}},
		{"bank as sender or receiver", jobs.JobFilter{BankID: "bank-1"}, []string{"b", "a"}},
		{"bank and user", jobs.JobFilter{BankID: "bank-4", UserID: "u1"}, []string{"d"}},
		{"user and status", jobs.JobFilter{UserID: "u1", Status: jobs.JobStatusFailed}, []string{"b"}},
		{"limit", jobs.JobFilter{Limit: 2}, []string{"c", "d"}},
		{"offset", jobs.JobFilter{Offset: 1, Limit: 2}, []string{"d", "b"}},
		{"offset past end", jobs.JobFilter{Offset: 5}, []string{}},
		{"unknown bank", jobs.JobFilter{BankID: "bank-9"}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.ListJobs(context.Background(), tt.filter)
			if err != nil {
				t.Fatalf("ListJobs failed: %v", err)
			}
			ids := make([]string, len(got))
			for i, job := range got {
				ids[i] = job.JobID
			}
			if len(ids) != len(tt.want) {
				t.Fatalf("Expected %v, got %v", tt.want, ids)
			}
			for i := range ids {
				if ids[i] != tt.want[i] {
					t.Errorf("Expected %v, got %v", tt.want, ids)
					break
				}
			}
		})
	}
}

func TestStore_GetJob(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	if _, err := store.GetJob(ctx, "missing"); !errors.Is(err, jobs.ErrJobNotFound) {
		t.Errorf("Expected ErrJobNotFound, got %v", err)
	}
	if err := store.SaveJob(ctx, &jobs.TransferJob{}); err == nil {
		t.Error("Expected error saving a job without ID")
	}

	if err := store.SaveJob(ctx, &jobs.TransferJob{JobID: "j1", Status: jobs.JobStatusPending}); err != nil {
		t.Fatalf("SaveJob failed: %v", err)
	}
	got, _ := store.GetJob(ctx, "j1")
	got.Status = jobs.JobStatusFailed

	again, _ := store.GetJob(ctx, "j1")
	if again.Status != jobs.JobStatusPending {
		t.Error("Expected GetJob to return a copy")
	}
}

func TestStore_UpdateJobStatus(t *testing.T) {
	ctx := context.Background()
	completed := time.Date(2024, 2, 15, 10, 0, 0, 0, time.UTC)
	store := NewStore()
	store.now = func() time.Time { return completed }

	if err := store.UpdateJobStatus(ctx, "missing", jobs.JobStatusFailed, ""); !errors.Is(err, jobs.ErrJobNotFound) {
		t.Errorf("Expected ErrJobNotFound, got %v", err)
	}

	if err := store.SaveJob(ctx, &jobs.TransferJob{JobID: "j1", Status: jobs.JobStatusPending}); err != nil {
		t.Fatalf("SaveJob failed: %v", err)
	}

	if err := store.UpdateJobStatus(ctx, "j1", jobs.JobStatusRunning, ""); err != nil {
		t.Fatalf("UpdateJobStatus failed: %v", err)
	}
	running, _ := store.GetJob(ctx, "j1")
	if running.Status != jobs.JobStatusRunning || running.CompletedAt != nil {
		t.Errorf("Unexpected running job: %+v", running)
	}

	if err := store.UpdateJobStatus(ctx, "j1", jobs.JobStatusFailed, "processor timeout"); err != nil {
		t.Fatalf("UpdateJobStatus failed: %v", err)
	}
	failed, _ := store.GetJob(ctx, "j1")
	if failed.Status != jobs.JobStatusFailed || failed.Error != "processor timeout" {
		t.Errorf("Unexpected failed job: %+v", failed)
	}
	if failed.CompletedAt == nil || !failed.CompletedAt.Equal(completed) {
		t.Errorf("CompletedAt = %v, want %s", failed.CompletedAt, completed)
	}
}
