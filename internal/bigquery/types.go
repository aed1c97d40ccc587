package bigquery

import (
	"context"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/horizon/internal/domain"
	"github.com/shopspring/decimal"
)

// numericScale is the scale of the BigQuery NUMERIC type.
const numericScale = 9

// TransferRepository provides an interface for transfer-related database operations.
type TransferRepository interface {
	// GetTransfersByAccount returns every transfer where the bank is sender or receiver.
	GetTransfersByAccount(ctx context.Context, accountID string) ([]domain.TransferRecord, error)

	// InsertTransfer records a completed transfer.
	InsertTransfer(ctx context.Context, rec domain.TransferRecord) error
}

// BankRepository provides an interface for linked-bank database operations.
type BankRepository interface {
	// GetBank returns the bank with the given ID, or nil if none exists.
	GetBank(ctx context.Context, bankID string) (*domain.Bank, error)

	// ListBanksByUser returns every bank linked by the user.
	ListBanksByUser(ctx context.Context, userID string) ([]domain.Bank, error)

	// InsertBank records a newly linked bank.
	InsertBank(ctx context.Context, bank domain.Bank) error
}

// TransferRow represents a transfer record in BigQuery.
type TransferRow struct {
	TransferID     string              `bigquery:"transfer_id"`
	Name           string              `bigquery:"name"`
	Amount         *big.Rat            `bigquery:"amount"` // NUMERIC
	Channel        string              `bigquery:"channel"`
	Category       bigquery.NullString `bigquery:"category"`
	SenderBankID   string              `bigquery:"sender_bank_id"`
	ReceiverBankID string              `bigquery:"receiver_bank_id"`
	CreatedTS      time.Time           `bigquery:"created_ts"`
}

// BankRow represents a linked bank in BigQuery.
type BankRow struct {
	BankID           string                 `bigquery:"bank_id"`
	UserID           string                 `bigquery:"user_id"`
	AccountID        string                 `bigquery:"account_id"`
	AccessToken      string                 `bigquery:"access_token"`
	FundingSourceURL bigquery.NullString    `bigquery:"funding_source_url"`
	ShareableID      bigquery.NullString    `bigquery:"shareable_id"`
	CreatedTS        bigquery.NullTimestamp `bigquery:"created_ts"`
}

// NewTransferRow converts a domain record into its table row.
func NewTransferRow(rec domain.TransferRecord) *TransferRow {
	return &TransferRow{
		TransferID:     rec.ID,
		Name:           rec.Name,
		Amount:         rec.Amount.Rat(),
		Channel:        rec.Channel,
		Category:       bigquery.NullString{StringVal: rec.Category, Valid: rec.Category != ""},
		SenderBankID:   rec.SenderAccountID,
		ReceiverBankID: rec.ReceiverAccountID,
		CreatedTS:      rec.CreatedAt,
	}
}

// Record converts the row back into a domain record. A NULL category maps to "".
func (r *TransferRow) Record() domain.TransferRecord {
	amount := decimal.Zero
	if r.Amount != nil {
		amount = decimal.NewFromBigRat(r.Amount, numericScale)
	}
	return domain.TransferRecord{
		ID:                r.TransferID,
		Name:              r.Name,
		Amount:            amount,
		CreatedAt:         r.CreatedTS,
		Channel:           r.Channel,
		Category:          r.Category.StringVal,
		SenderAccountID:   r.SenderBankID,
		ReceiverAccountID: r.ReceiverBankID,
	}
}

// NewBankRow converts a domain bank into its table row, stamped with created.
func NewBankRow(bank domain.Bank, created time.Time) *BankRow {
	return &BankRow{
		BankID:           bank.ID,
		UserID:           bank.UserID,
		AccountID:        bank.AccountID,
		AccessToken:      bank.AccessToken,
		FundingSourceURL: bigquery.NullString{StringVal: bank.FundingSourceURL, Valid: bank.FundingSourceURL != ""},
		ShareableID:      bigquery.NullString{StringVal: bank.ShareableID, Valid: bank.ShareableID != ""},
		CreatedTS:        bigquery.NullTimestamp{Timestamp: created, Valid: !created.IsZero()},
	}
}

// Bank converts the row into a domain bank.
func (r *BankRow) Bank() domain.Bank {
	return domain.Bank{
		ID:               r.BankID,
		UserID:           r.UserID,
		AccountID:        r.AccountID,
		AccessToken:      r.AccessToken,
		FundingSourceURL: r.FundingSourceURL.StringVal,
		ShareableID:      r.ShareableID.StringVal,
	}
}
