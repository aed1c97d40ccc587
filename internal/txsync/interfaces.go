package txsync

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Provider is the account-aggregation service that hands out transactions
// incrementally. This interface enables mocking of the aggregator in tests.
type Provider interface {
	// SyncTransactions returns the next page of added transactions for the
	// access token. cursor is the NextCursor of the previous page, or "" for
	// the first call. Providers that track position themselves may ignore it.
	SyncTransactions(ctx context.Context, accessToken, cursor string) (*Page, error)
}

// Page is one response of the incremental sync endpoint.
type Page struct {
	Added      []RawTransaction
	HasMore    bool
	NextCursor string
}

// RawTransaction carries the provider fields the ledger consumes.
type RawTransaction struct {
	TransactionID  string
	Name           string
	PaymentChannel string
	AccountID      string
	Amount         decimal.Decimal
	Pending        bool
	Category       []string // may be nil or empty
	Date           time.Time
	LogoURL        string // optional
}
