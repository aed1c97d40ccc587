package domain

import "github.com/shopspring/decimal"

// Bank is an external institution item linked by a user. The access token
// identifies the item to the aggregator and is never sent to clients.
type Bank struct {
	ID               string `json:"id"`
	UserID           string `json:"user_id"`
	AccountID        string `json:"account_id"`
	AccessToken      string `json:"-"`
	FundingSourceURL string `json:"funding_source_url"`
	ShareableID      string `json:"shareable_id"`
}

// Account is the aggregator's view of the first account of a linked bank.
type Account struct {
	ID               string          `json:"id"`
	AvailableBalance decimal.Decimal `json:"available_balance"`
	CurrentBalance   decimal.Decimal `json:"current_balance"`
	InstitutionID    string          `json:"institution_id"`
	Name             string          `json:"name"`
	OfficialName     string          `json:"official_name,omitempty"`
	Mask             string          `json:"mask"`
	Type             string          `json:"type"`
	Subtype          string          `json:"subtype"`
	BankID           string          `json:"bank_id"`
	ShareableID      string          `json:"shareable_id,omitempty"`
}

// AccountsSummary aggregates every linked account of a user.
type AccountsSummary struct {
	Accounts            []Account       `json:"data"`
	TotalBanks          int             `json:"total_banks"`
	TotalCurrentBalance decimal.Decimal `json:"total_current_balance"`
}

// Summarize sums current balances with exact decimal arithmetic.
func Summarize(accounts []Account) AccountsSummary {
	total := decimal.Zero
	for _, a := range accounts {
		total = total.Add(a.CurrentBalance)
	}
	if accounts == nil {
		accounts = []Account{}
	}
	return AccountsSummary{
		Accounts:            accounts,
		TotalBanks:          len(accounts),
		TotalCurrentBalance: total,
	}
}
