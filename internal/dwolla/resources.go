package dwolla

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/dvloznov/horizon/internal/logger"
	"github.com/shopspring/decimal"
)

// Link is a HAL link.
type Link struct {
	Href string `json:"href"`
	Type string `json:"type,omitempty"`
}

// NewCustomerParams describes a personal verified customer.
type NewCustomerParams struct {
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Email       string `json:"email"`
	Type        string `json:"type"`
	Address1    string `json:"address1"`
	City        string `json:"city"`
	State       string `json:"state"`
	PostalCode  string `json:"postalCode"`
	DateOfBirth string `json:"dateOfBirth"`
	SSN         string `json:"ssn"`
}

// FundingSourceParams attaches a bank account, via a processor token, to a customer.
type FundingSourceParams struct {
	CustomerID     string
	Name           string
	ProcessorToken string
	Links          map[string]Link
}

// AddFundingSourceParams is the input of AddFundingSource.
type AddFundingSourceParams struct {
	CustomerID     string
	ProcessorToken string
	BankName       string
}

// TransferParams moves Amount from the source to the destination funding source.
type TransferParams struct {
	SourceFundingSourceURL      string
	DestinationFundingSourceURL string
	Amount                      decimal.Decimal
	IdempotencyKey              string
}

type amount struct {
	Currency string `json:"currency"`
	Value    string `json:"value"`
}

type transferBody struct {
	Links  map[string]Link `json:"_links"`
	Amount amount          `json:"amount"`
}

type fundingSourceBody struct {
	Name       string          `json:"name"`
	PlaidToken string          `json:"plaidToken"`
	Links      map[string]Link `json:"_links,omitempty"`
}

// CreateCustomer creates a customer and returns its URL.
func (c *Client) CreateCustomer(ctx context.Context, params NewCustomerParams) (string, error) {
	if params.Type == "" {
		params.Type = "personal"
	}

	location, err := c.postForLocation(ctx, "customers", params, "")
	if err != nil {
		logFailure(ctx, "create_customer", err)
		return "", fmt.Errorf("CreateCustomer: %w", err)
	}
	return location, nil
}

// CreateOnDemandAuthorization returns the authorization links to attach to a
// new funding source.
func (c *Client) CreateOnDemandAuthorization(ctx context.Context) (map[string]Link, error) {
	_, body, err := c.post(ctx, "on-demand-authorizations", nil, "")
	if err != nil {
		logFailure(ctx, "create_on_demand_authorization", err)
		return nil, fmt.Errorf("CreateOnDemandAuthorization: %w", err)
	}

	var doc struct {
		Links map[string]Link `json:"_links"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("CreateOnDemandAuthorization: decoding body: %w", err)
	}
	return doc.Links, nil
}

// CreateFundingSource creates a funding source and returns its URL.
func (c *Client) CreateFundingSource(ctx context.Context, params FundingSourceParams) (string, error) {
	if params.CustomerID == "" || params.ProcessorToken == "" {
		return "", fmt.Errorf("CreateFundingSource: customer id and processor token are required")
	}

	path := "customers/" + url.PathEscape(params.CustomerID) + "/funding-sources"
	location, err := c.postForLocation(ctx, path, fundingSourceBody{
		Name:       params.Name,
		PlaidToken: params.ProcessorToken,
		Links:      params.Links,
	}, "")
	if err != nil {
		logFailure(ctx, "create_funding_source", err)
		return "", fmt.Errorf("CreateFundingSource: %w", err)
	}
	return location, nil
}

// AddFundingSource authorizes and creates a funding source in one step.
func (c *Client) AddFundingSource(ctx context.Context, params AddFundingSourceParams) (string, error) {
	links, err := c.CreateOnDemandAuthorization(ctx)
	if err != nil {
		return "", fmt.Errorf("AddFundingSource: %w", err)
	}

	location, err := c.CreateFundingSource(ctx, FundingSourceParams{
		CustomerID:     params.CustomerID,
		Name:           params.BankName,
		ProcessorToken: params.ProcessorToken,
		Links:          links,
	})
	if err != nil {
		return "", fmt.Errorf("AddFundingSource: %w", err)
	}
	return location, nil
}

// CreateTransfer moves money between two funding sources and returns the
// transfer URL. The amount must be positive and in whole cents; it is
// never rounded.
func (c *Client) CreateTransfer(ctx context.Context, params TransferParams) (string, error) {
	if params.SourceFundingSourceURL == "" || params.DestinationFundingSourceURL == "" ||
		!params.Amount.IsPositive() || !params.Amount.Equal(params.Amount.Truncate(2)) {
		return "", fmt.Errorf("CreateTransfer: %w", ErrInvalidTransfer)
	}

	body := transferBody{
		Links: map[string]Link{
			"source":      {Href: params.SourceFundingSourceURL},
			"destination": {Href: params.DestinationFundingSourceURL},
		},
		Amount: amount{Currency: "USD", Value: params.Amount.StringFixed(2)},
	}

	location, err := c.postForLocation(ctx, "transfers", body, params.IdempotencyKey)
	if err != nil {
		logFailure(ctx, "create_transfer", err)
		return "", fmt.Errorf("CreateTransfer: %w", err)
	}

	log := logger.FromContext(ctx)
	log.Info().Str("transfer_url", location).Str("amount", body.Amount.Value).Msg("Transfer created")
	return location, nil
}
