package transfer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dvloznov/horizon/internal/domain"
	"github.com/dvloznov/horizon/internal/dwolla"
	"github.com/dvloznov/horizon/internal/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	channelOnline    = "online"
	categoryTransfer = "Transfer"
	defaultName      = "Transfer"
)

var (
	ErrInvalidRequest  = errors.New("invalid transfer request")
	ErrBankNotFound    = errors.New("bank not found")
	ErrNoFundingSource = errors.New("bank has no funding source")
)

// BankLookup resolves linked banks.
type BankLookup interface {
	GetBank(ctx context.Context, bankID string) (*domain.Bank, error)
}

// PaymentProcessor moves money between funding sources.
type PaymentProcessor interface {
	CreateTransfer(ctx context.Context, params dwolla.TransferParams) (string, error)
}

// TransferWriter persists completed transfers.
type TransferWriter interface {
	InsertTransfer(ctx context.Context, rec domain.TransferRecord) error
}

// Request asks to move Amount from the sender's bank to the receiver's.
type Request struct {
	SenderBankID   string          `json:"sender_bank_id"`
	ReceiverBankID string          `json:"receiver_bank_id"`
	Amount         decimal.Decimal `json:"amount"`
	Name           string          `json:"name,omitempty"`

	// IdempotencyKey lets a retried request replay the processor call
	// instead of moving the money twice.
	IdempotencyKey string `json:"-"`
}

// Validate checks the request without touching any collaborator.
func (r Request) Validate() error {
	switch {
	case r.SenderBankID == "" || r.ReceiverBankID == "":
		return fmt.Errorf("%w: sender and receiver are required", ErrInvalidRequest)
	case r.SenderBankID == r.ReceiverBankID:
		return fmt.Errorf("%w: sender and receiver must differ", ErrInvalidRequest)
	case !r.Amount.IsPositive():
		return fmt.Errorf("%w: amount must be positive", ErrInvalidRequest)
	case !r.Amount.Equal(r.Amount.Truncate(2)):
		return fmt.Errorf("%w: amount must be in whole cents", ErrInvalidRequest)
	}
	return nil
}

// Result is a completed transfer.
type Result struct {
	Record      domain.TransferRecord `json:"record"`
	TransferURL string                `json:"transfer_url"`
}

// Service executes transfers between linked banks.
type Service struct {
	banks     BankLookup
	payments  PaymentProcessor
	transfers TransferWriter
	now       func() time.Time
	newID     func() string
}

// NewService creates a Service.
func NewService(banks BankLookup, payments PaymentProcessor, transfers TransferWriter) *Service {
	return &Service{
		banks:     banks,
		payments:  payments,
		transfers: transfers,
		now:       time.Now,
		newID:     func() string { return uuid.New().String() },
	}
}

// Execute creates the payment and records it so both banks' ledgers show it.
// The record is written only after the processor accepted the transfer.
func (s *Service) Execute(ctx context.Context, req Request) (*Result, error) {
	log := logger.FromContext(ctx)

	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("Execute: %w", err)
	}

	sender, err := s.fundedBank(ctx, req.SenderBankID)
	if err != nil {
		return nil, fmt.Errorf("Execute: sender: %w", err)
	}
	receiver, err := s.fundedBank(ctx, req.ReceiverBankID)
	if err != nil {
		return nil, fmt.Errorf("Execute: receiver: %w", err)
	}

	transferURL, err := s.payments.CreateTransfer(ctx, dwolla.TransferParams{
		SourceFundingSourceURL:      sender.FundingSourceURL,
		DestinationFundingSourceURL: receiver.FundingSourceURL,
		Amount:                      req.Amount,
		IdempotencyKey:              req.IdempotencyKey,
	})
	if err != nil {
		return nil, fmt.Errorf("Execute: %w", err)
	}

	name := req.Name
	if name == "" {
		name = defaultName
	}

	rec := domain.TransferRecord{
		ID:                s.newID(),
		Name:              name,
		Amount:            req.Amount,
		CreatedAt:         s.now().UTC(),
		Channel:           channelOnline,
		Category:          categoryTransfer,
		SenderAccountID:   sender.ID,
		ReceiverAccountID: receiver.ID,
	}
	if err := s.transfers.InsertTransfer(ctx, rec); err != nil {
		log.Error().Err(err).Str("transfer_url", transferURL).Msg("Transfer sent but not recorded")
		return nil, fmt.Errorf("Execute: recording transfer: %w", err)
	}

	log.Info().
		Str("transfer_id", rec.ID).
		Str("sender_bank_id", sender.ID).
		Str("receiver_bank_id", receiver.ID).
		Str("amount", rec.Amount.String()).
		Msg("Transfer executed")

	return &Result{Record: rec, TransferURL: transferURL}, nil
}

func (s *Service) fundedBank(ctx context.Context, bankID string) (*domain.Bank, error) {
	bank, err := s.banks.GetBank(ctx, bankID)
	if err != nil {
		return nil, err
	}
	if bank == nil {
		return nil, fmt.Errorf("%s: %w", bankID, ErrBankNotFound)
	}
	if bank.FundingSourceURL == "" {
		return nil, fmt.Errorf("%s: %w", bankID, ErrNoFundingSource)
	}
	return bank, nil
}
