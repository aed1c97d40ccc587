package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType classifies a ledger entry relative to the account being viewed.
type TransactionType string

const (
	TransactionTypeDebit  TransactionType = "debit"
	TransactionTypeCredit TransactionType = "credit"
)

// Transaction is the normalized ledger entry. External transactions from the
// aggregator and internal transfers both end up in this shape, so nothing
// downstream needs to know where an entry came from.
type Transaction struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Amount         decimal.Decimal `json:"amount"`
	Date           time.Time       `json:"date"`
	PaymentChannel string          `json:"payment_channel"`
	Category       string          `json:"category"` // never absent, "" when unknown
	Pending        bool            `json:"pending"`
	Type           TransactionType `json:"type"`
	Image          string          `json:"image,omitempty"`

	// AccountID is the aggregator account the entry belongs to. Transfer
	// entries merged without a linked bank carry the viewing ID instead.
	AccountID string `json:"account_id,omitempty"`
}

// TransferRecord is a payment between two accounts managed by Horizon.
// It is persisted by a store and only read by the ledger.
type TransferRecord struct {
	ID                string          `json:"id"`
	Name              string          `json:"name"`
	Amount            decimal.Decimal `json:"amount"` // unsigned
	CreatedAt         time.Time       `json:"created_at"`
	Channel           string          `json:"channel"`
	Category          string          `json:"category"`
	SenderAccountID   string          `json:"sender_account_id"`
	ReceiverAccountID string          `json:"receiver_account_id"`
}

// TypeFor derives the transfer's type as seen from viewingAccountID.
// The result is never stored on the record: the same transfer is a debit for
// the sender and a credit for everybody else.
func (r TransferRecord) TypeFor(viewingAccountID string) TransactionType {
	if r.SenderAccountID == viewingAccountID {
		return TransactionTypeDebit
	}
	return TransactionTypeCredit
}

// ToTransaction projects the record into the ledger shape for viewingAccountID,
// which also becomes the entry's AccountID.
func (r TransferRecord) ToTransaction(viewingAccountID string) Transaction {
	return Transaction{
		ID:             r.ID,
		Name:           r.Name,
		Amount:         r.Amount,
		Date:           r.CreatedAt,
		PaymentChannel: r.Channel,
		Category:       r.Category,
		Type:           r.TypeFor(viewingAccountID),
		AccountID:      viewingAccountID,
	}
}
