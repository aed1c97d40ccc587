package ledger

import (
	"context"

	"github.com/dvloznov/horizon/internal/domain"
)

// TransactionFetcher produces the complete external transaction set for an
// access token. *txsync.Fetcher satisfies it.
type TransactionFetcher interface {
	FetchAll(ctx context.Context, accessToken string) ([]domain.Transaction, error)
}

// TransferStore reads locally recorded transfers.
type TransferStore interface {
	// GetTransfersByAccount returns every transfer where accountID is the
	// sender or the receiver.
	GetTransfersByAccount(ctx context.Context, accountID string) ([]domain.TransferRecord, error)
}

// BankStore reads the banks a user has linked.
type BankStore interface {
	// GetBank returns the bank with the given ID, or nil if none exists.
	GetBank(ctx context.Context, bankID string) (*domain.Bank, error)

	// ListBanksByUser returns every bank linked by the user.
	ListBanksByUser(ctx context.Context, userID string) ([]domain.Bank, error)
}

// AccountProvider resolves the aggregator account behind an access token.
type AccountProvider interface {
	// GetAccount returns the first account of the item, or nil if the item
	// has no accounts.
	GetAccount(ctx context.Context, accessToken string) (*domain.Account, error)
}
