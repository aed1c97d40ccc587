package ledger

import (
	"sort"

	"github.com/dvloznov/horizon/internal/domain"
)

// Merge combines the synced external transactions with the transfer records
// of the viewing account into one ledger, most recent first.
//
// External transactions come first in the concatenation and the sort is
// stable, so entries with identical dates keep that relative order.
func Merge(external []domain.Transaction, transfers []domain.TransferRecord, viewingAccountID string) []domain.Transaction {
	return merge(external, transfers, viewingAccountID, viewingAccountID)
}

// MergeForBank merges the ledger of a linked bank. Transfers are recorded
// against the bank ID but their entries carry the bank's aggregator account
// ID, the same one its external transactions carry.
func MergeForBank(external []domain.Transaction, transfers []domain.TransferRecord, bank domain.Bank) []domain.Transaction {
	accountID := bank.AccountID
	if accountID == "" {
		accountID = bank.ID
	}
	return merge(external, transfers, bank.ID, accountID)
}

func merge(external []domain.Transaction, transfers []domain.TransferRecord, viewingID, accountID string) []domain.Transaction {
	merged := make([]domain.Transaction, 0, len(external)+len(transfers))
	merged = append(merged, external...)
	for _, rec := range transfers {
		tx := rec.ToTransaction(viewingID)
		tx.AccountID = accountID
		merged = append(merged, tx)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Date.After(merged[j].Date)
	})

	return merged
}
