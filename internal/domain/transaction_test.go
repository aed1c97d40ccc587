package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestTransferRecord_TypeFor(t *testing.T) {
	rec := TransferRecord{ID: "t1", SenderAccountID: "A", ReceiverAccountID: "B"}

	tests := []struct {
		name   string
		viewer string
		want   TransactionType
	}{
		{"sender sees debit", "A", TransactionTypeDebit},
		{"receiver sees credit", "B", TransactionTypeCredit},
		{"unrelated account sees credit", "C", TransactionTypeCredit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := rec.TypeFor(tt.viewer); got != tt.want {
				t.Errorf("TypeFor(%q) = %s, want %s", tt.viewer, got, tt.want)
			}
		})
	}
}

func TestTransferRecord_TypeForSwappedParties(t *testing.T) {
	rec := TransferRecord{SenderAccountID: "A", ReceiverAccountID: "B"}
	swapped := TransferRecord{SenderAccountID: "B", ReceiverAccountID: "A"}

	if rec.TypeFor("A") == swapped.TypeFor("A") {
		t.Error("Expected swapping sender and receiver to flip the derived type")
	}
}

func TestTransferRecord_ToTransaction(t *testing.T) {
	created := time.Date(2024, 2, 15, 10, 0, 0, 0, time.UTC)
	rec := TransferRecord{
		ID:                "t1",
		Name:              "Rent split",
		Amount:            decimal.RequireFromString("125.50"),
		CreatedAt:         created,
		Channel:           "online",
		Category:          "Transfer",
		SenderAccountID:   "A",
		ReceiverAccountID: "B",
	}

	tx := rec.ToTransaction("B")

	if tx.ID != "t1" || tx.Name != "Rent split" {
		t.Errorf("Unexpected identity fields: %+v", tx)
	}
	if !tx.Amount.Equal(decimal.RequireFromString("125.5")) {
		t.Errorf("Amount = %s, want 125.5", tx.Amount)
	}
	if !tx.Date.Equal(created) {
		t.Errorf("Date = %s, want %s", tx.Date, created)
	}
	if tx.PaymentChannel != "online" || tx.Category != "Transfer" {
		t.Errorf("Unexpected channel/category: %q/%q", tx.PaymentChannel, tx.Category)
	}
	if tx.Type != TransactionTypeCredit {
		t.Errorf("Type = %s, want credit", tx.Type)
	}
	if tx.AccountID != "B" {
		t.Errorf("AccountID = %q, want the viewing ID B", tx.AccountID)
	}
	if rec.SenderAccountID != "A" {
		t.Error("ToTransaction must not mutate the record")
	}
}

func TestSummarize(t *testing.T) {
	summary := Summarize([]Account{
		{ID: "a1", CurrentBalance: decimal.RequireFromString("100.10")},
		{ID: "a2", CurrentBalance: decimal.RequireFromString("0.20")},
	})

	if summary.TotalBanks != 2 {
		t.Errorf("TotalBanks = %d, want 2", summary.TotalBanks)
	}
	if !summary.TotalCurrentBalance.Equal(decimal.RequireFromString("100.30")) {
		t.Errorf("TotalCurrentBalance = %s, want 100.30", summary.TotalCurrentBalance)
	}
}

func TestSummarize_Empty(t *testing.T) {
	summary := Summarize(nil)
	if summary.Accounts == nil {
		t.Error("Expected non-nil accounts slice")
	}
	if !summary.TotalCurrentBalance.IsZero() {
		t.Errorf("Expected zero total, got %s", summary.TotalCurrentBalance)
	}
}
