package plaid

import (
	"context"
	"errors"
	"fmt"

	"github.com/plaid/plaid-go/v29/plaid"
)

const (
	clientName      = "Horizon"
	linkLanguage    = "en"
	processorDwolla = "dwolla"
)

// ErrEmptyToken is returned when Plaid answers without the requested token.
var ErrEmptyToken = errors.New("plaid returned an empty token")

// CreateLinkToken starts a Link session for userID.
func (c *Client) CreateLinkToken(ctx context.Context, userID string) (string, error) {
	req := plaid.NewLinkTokenCreateRequest(
		clientName,
		linkLanguage,
		[]plaid.CountryCode{plaid.COUNTRYCODE_US},
		*plaid.NewLinkTokenCreateRequestUser(userID),
	)
	req.SetProducts([]plaid.Products{plaid.PRODUCTS_AUTH, plaid.PRODUCTS_TRANSACTIONS})

	resp, _, err := c.api.PlaidApi.LinkTokenCreate(ctx).LinkTokenCreateRequest(*req).Execute()
	if err != nil {
		return "", fmt.Errorf("CreateLinkToken: %w", describe(err))
	}
	if resp.GetLinkToken() == "" {
		return "", fmt.Errorf("CreateLinkToken: %w", ErrEmptyToken)
	}
	return resp.GetLinkToken(), nil
}

// ExchangePublicToken trades the public token of a finished Link session for
// the item's access token and ID.
func (c *Client) ExchangePublicToken(ctx context.Context, publicToken string) (accessToken, itemID string, err error) {
	req := plaid.NewItemPublicTokenExchangeRequest(publicToken)

	resp, _, err := c.api.PlaidApi.ItemPublicTokenExchange(ctx).ItemPublicTokenExchangeRequest(*req).Execute()
	if err != nil {
		return "", "", fmt.Errorf("ExchangePublicToken: %w", describe(err))
	}
	if resp.GetAccessToken() == "" {
		return "", "", fmt.Errorf("ExchangePublicToken: %w", ErrEmptyToken)
	}
	return resp.GetAccessToken(), resp.GetItemId(), nil
}

// CreateProcessorToken lets Dwolla reach accountID of the item.
func (c *Client) CreateProcessorToken(ctx context.Context, accessToken, accountID string) (string, error) {
	req := plaid.NewProcessorTokenCreateRequest(accessToken, accountID, processorDwolla)

	resp, _, err := c.api.PlaidApi.ProcessorTokenCreate(ctx).ProcessorTokenCreateRequest(*req).Execute()
	if err != nil {
		return "", fmt.Errorf("CreateProcessorToken: %w", describe(err))
	}
	if resp.GetProcessorToken() == "" {
		return "", fmt.Errorf("CreateProcessorToken: %w", ErrEmptyToken)
	}
	return resp.GetProcessorToken(), nil
}
