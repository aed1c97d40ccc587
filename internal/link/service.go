// Package link connects a user's bank through Plaid Link and registers it
// with Dwolla so it can send and receive transfers.
package link

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"path"

	"github.com/dvloznov/horizon/internal/domain"
	"github.com/dvloznov/horizon/internal/dwolla"
	"github.com/dvloznov/horizon/internal/logger"
)

var (
	ErrInvalidRequest = errors.New("invalid link request")
	ErrNoAccount      = errors.New("linked item has no account")
)

// Aggregator runs the Plaid side of the link flow.
type Aggregator interface {
	CreateLinkToken(ctx context.Context, userID string) (string, error)
	ExchangePublicToken(ctx context.Context, publicToken string) (accessToken, itemID string, err error)
	GetAccount(ctx context.Context, accessToken string) (*domain.Account, error)
	CreateProcessorToken(ctx context.Context, accessToken, accountID string) (string, error)
}

// FundingSources registers customers and their banks with the payment processor.
type FundingSources interface {
	CreateCustomer(ctx context.Context, params dwolla.NewCustomerParams) (string, error)
	AddFundingSource(ctx context.Context, params dwolla.AddFundingSourceParams) (string, error)
}

// BankWriter persists linked banks.
type BankWriter interface {
	InsertBank(ctx context.Context, bank domain.Bank) error
}

// Request links the item behind PublicToken to the user's Dwolla customer.
type Request struct {
	UserID           string `json:"-"`
	PublicToken      string `json:"public_token"`
	DwollaCustomerID string `json:"dwolla_customer_id"`
}

// Validate checks the request without touching any collaborator.
func (r Request) Validate() error {
	switch {
	case r.UserID == "":
		return fmt.Errorf("%w: user is required", ErrInvalidRequest)
	case r.PublicToken == "":
		return fmt.Errorf("%w: public_token is required", ErrInvalidRequest)
	case r.DwollaCustomerID == "":
		return fmt.Errorf("%w: dwolla_customer_id is required", ErrInvalidRequest)
	}
	return nil
}

// Customer is a registered Dwolla customer.
type Customer struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Service links banks for transfers.
type Service struct {
	aggregator Aggregator
	funding    FundingSources
	banks      BankWriter
}

// NewService creates a Service.
func NewService(aggregator Aggregator, funding FundingSources, banks BankWriter) *Service {
	return &Service{
		aggregator: aggregator,
		funding:    funding,
		banks:      banks,
	}
}

// CreateLinkToken starts a Plaid Link session for the user.
func (s *Service) CreateLinkToken(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("CreateLinkToken: %w: user is required", ErrInvalidRequest)
	}

	token, err := s.aggregator.CreateLinkToken(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("CreateLinkToken: %w", err)
	}
	return token, nil
}

// CreateCustomer registers a personal Dwolla customer.
func (s *Service) CreateCustomer(ctx context.Context, params dwolla.NewCustomerParams) (*Customer, error) {
	if params.FirstName == "" || params.LastName == "" || params.Email == "" {
		return nil, fmt.Errorf("CreateCustomer: %w: first name, last name and email are required", ErrInvalidRequest)
	}

	location, err := s.funding.CreateCustomer(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("CreateCustomer: %w", err)
	}

	id, err := resourceID(location)
	if err != nil {
		return nil, fmt.Errorf("CreateCustomer: %w", err)
	}

	log := logger.FromContext(ctx)
	log.Info().Str("customer_id", id).Msg("Dwolla customer created")
	return &Customer{ID: id, URL: location}, nil
}

// LinkBank exchanges the public token, attaches the item's first account to
// the customer as a funding source and stores the bank. Nothing is stored
// unless every step succeeds.
func (s *Service) LinkBank(ctx context.Context, req Request) (*domain.Bank, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("LinkBank: %w", err)
	}

	accessToken, itemID, err := s.aggregator.ExchangePublicToken(ctx, req.PublicToken)
	if err != nil {
		return nil, fmt.Errorf("LinkBank: %w", err)
	}

	account, err := s.aggregator.GetAccount(ctx, accessToken)
	if err != nil {
		return nil, fmt.Errorf("LinkBank: %w", err)
	}
	if account == nil {
		return nil, fmt.Errorf("LinkBank: item %s: %w", itemID, ErrNoAccount)
	}

	processorToken, err := s.aggregator.CreateProcessorToken(ctx, accessToken, account.ID)
	if err != nil {
		return nil, fmt.Errorf("LinkBank: %w", err)
	}

	fundingSourceURL, err := s.funding.AddFundingSource(ctx, dwolla.AddFundingSourceParams{
		CustomerID:     req.DwollaCustomerID,
		ProcessorToken: processorToken,
		BankName:       account.Name,
	})
	if err != nil {
		return nil, fmt.Errorf("LinkBank: %w", err)
	}

	bank := domain.Bank{
		ID:               itemID,
		UserID:           req.UserID,
		AccountID:        account.ID,
		AccessToken:      accessToken,
		FundingSourceURL: fundingSourceURL,
		ShareableID:      ShareableID(account.ID),
	}
	if err := s.banks.InsertBank(ctx, bank); err != nil {
		return nil, fmt.Errorf("LinkBank: %w", err)
	}

	log := logger.FromContext(ctx)
	log.Info().
		Str("user_id", req.UserID).
		Str("bank_id", bank.ID).
		Msg("Bank linked")

	return &bank, nil
}

// ShareableID is the identifier a user hands out so others can send them money.
func ShareableID(accountID string) string {
	return base64.StdEncoding.EncodeToString([]byte(accountID))
}

// resourceID returns the last path segment of a Dwolla resource URL.
func resourceID(location string) (string, error) {
	u, err := url.Parse(location)
	if err != nil {
		return "", fmt.Errorf("parsing resource url %q: %w", location, err)
	}
	id := path.Base(u.Path)
	if id == "" || id == "/" || id == "." {
		return "", fmt.Errorf("resource url %q has no id", location)
	}
	return id, nil
}
