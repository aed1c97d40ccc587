package plaid

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/horizon/internal/domain"
	"github.com/dvloznov/horizon/internal/txsync"
	"github.com/plaid/plaid-go/v29/plaid"
	"github.com/shopspring/decimal"
)

// ErrInvalidEnvironment is returned for an environment other than sandbox or production.
var ErrInvalidEnvironment = errors.New("plaid environment should be either sandbox or production")

// Config is the immutable client configuration.
type Config struct {
	ClientID    string
	Secret      string
	Environment string // "sandbox" or "production"
	BaseURL     string // overrides the environment's API host when set
}

// Client is the aggregator adapter. It implements txsync.Provider and
// ledger.AccountProvider on top of the Plaid SDK.
type Client struct {
	api *plaid.APIClient
}

// NewClient creates a Client for the configured environment.
func NewClient(cfg Config) (*Client, error) {
	env, err := environment(cfg.Environment)
	if err != nil {
		return nil, fmt.Errorf("NewClient: %w", err)
	}

	conf := plaid.NewConfiguration()
	conf.AddDefaultHeader("PLAID-CLIENT-ID", cfg.ClientID)
	conf.AddDefaultHeader("PLAID-SECRET", cfg.Secret)
	conf.UseEnvironment(env)
	if cfg.BaseURL != "" {
		conf.UseEnvironment(plaid.Environment(cfg.BaseURL))
	}

	return &Client{api: plaid.NewAPIClient(conf)}, nil
}

func environment(name string) (plaid.Environment, error) {
	switch name {
	case "", "sandbox":
		return plaid.Sandbox, nil
	case "production":
		return plaid.Production, nil
	default:
		return "", fmt.Errorf("%q: %w", name, ErrInvalidEnvironment)
	}
}

// SyncTransactions implements txsync.Provider with /transactions/sync.
func (c *Client) SyncTransactions(ctx context.Context, accessToken, cursor string) (*txsync.Page, error) {
	req := plaid.NewTransactionsSyncRequest(accessToken)
	if cursor != "" {
		req.SetCursor(cursor)
	}

	resp, _, err := c.api.PlaidApi.TransactionsSync(ctx).TransactionsSyncRequest(*req).Execute()
	if err != nil {
		return nil, fmt.Errorf("SyncTransactions: %w", describe(err))
	}

	added := resp.GetAdded()
	page := &txsync.Page{
		Added:      make([]txsync.RawTransaction, 0, len(added)),
		HasMore:    resp.GetHasMore(),
		NextCursor: resp.GetNextCursor(),
	}
	for i := range added {
		raw, err := toRaw(&added[i])
		if err != nil {
			return nil, fmt.Errorf("SyncTransactions: %w", err)
		}
		page.Added = append(page.Added, raw)
	}

	return page, nil
}

// GetAccount implements ledger.AccountProvider with /accounts/get. Only the
// first account of the item is returned; nil means the item has none.
func (c *Client) GetAccount(ctx context.Context, accessToken string) (*domain.Account, error) {
	req := plaid.NewAccountsGetRequest(accessToken)

	resp, _, err := c.api.PlaidApi.AccountsGet(ctx).AccountsGetRequest(*req).Execute()
	if err != nil {
		return nil, fmt.Errorf("GetAccount: %w", describe(err))
	}

	accounts := resp.GetAccounts()
	if len(accounts) == 0 {
		return nil, nil
	}

	item := resp.GetItem()
	account := toAccount(&accounts[0], item.GetInstitutionId())
	return &account, nil
}

// describe folds the Plaid error code and message into the error text.
func describe(err error) error {
	perr, convErr := plaid.ToPlaidError(err)
	if convErr != nil {
		return err
	}
	return fmt.Errorf("%s: %s: %w", perr.ErrorCode, perr.ErrorMessage, err)
}

// transaction is the subset of the SDK transaction getters the ledger reads.
type transaction interface {
	GetTransactionId() string
	GetName() string
	GetPaymentChannel() string
	GetAccountId() string
	GetAmount() float64
	GetPending() bool
	GetCategory() []string
	GetDate() string
	GetLogoUrl() string
}

func toRaw(tx transaction) (txsync.RawTransaction, error) {
	date, err := civil.ParseDate(tx.GetDate())
	if err != nil {
		return txsync.RawTransaction{}, fmt.Errorf("transaction %s: parsing date %q: %w", tx.GetTransactionId(), tx.GetDate(), err)
	}

	return txsync.RawTransaction{
		TransactionID:  tx.GetTransactionId(),
		Name:           tx.GetName(),
		PaymentChannel: tx.GetPaymentChannel(),
		AccountID:      tx.GetAccountId(),
		Amount:         decimal.NewFromFloat(tx.GetAmount()),
		Pending:        tx.GetPending(),
		Category:       tx.GetCategory(),
		Date:           date.In(time.UTC),
		LogoURL:        tx.GetLogoUrl(),
	}, nil
}

// account is the subset of the SDK account getters the ledger reads.
type account interface {
	GetAccountId() string
	GetBalances() plaid.AccountBalance
	GetName() string
	GetOfficialName() string
	GetMask() string
	GetType() plaid.AccountType
	GetSubtype() plaid.AccountSubtype
}

func toAccount(a account, institutionID string) domain.Account {
	balances := a.GetBalances()
	return domain.Account{
		ID:               a.GetAccountId(),
		AvailableBalance: decimal.NewFromFloat(balances.GetAvailable()),
		CurrentBalance:   decimal.NewFromFloat(balances.GetCurrent()),
		InstitutionID:    institutionID,
		Name:             a.GetName(),
		OfficialName:     a.GetOfficialName(),
		Mask:             a.GetMask(),
		Type:             string(a.GetType()),
		Subtype:          string(a.GetSubtype()),
	}
}

// Ensure Client implements txsync.Provider.
var _ txsync.Provider = (*Client)(nil)
