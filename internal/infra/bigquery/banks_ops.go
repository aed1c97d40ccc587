package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	bq "github.com/dvloznov/horizon/internal/bigquery"
	"github.com/dvloznov/horizon/internal/domain"
	"google.golang.org/api/iterator"
)

const bankColumns = `
			bank_id,
			user_id,
			account_id,
			access_token,
			funding_source_url,
			shareable_id,
			created_ts`

// GetBankWithClient finds a bank by ID. Returns nil if no bank matches.
func GetBankWithClient(ctx context.Context, client *bigquery.Client, table, bankID string) (*domain.Bank, error) {
	if bankID == "" {
		return nil, fmt.Errorf("GetBankWithClient: bank_id cannot be empty")
	}

	q := client.Query(`
		SELECT` + bankColumns + `
		FROM ` + table + `
		WHERE bank_id = @bank_id
		LIMIT 1
	`)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "bank_id", Value: bankID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("GetBankWithClient: reading query: %w", err)
	}

	var row BankRow
	err = it.Next(&row)
	if err == iterator.Done {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetBankWithClient: iterating: %w", err)
	}

	bank := row.Bank()
	return &bank, nil
}

// ListBanksByUserWithClient returns the user's banks, oldest link first.
func ListBanksByUserWithClient(ctx context.Context, client *bigquery.Client, table, userID string) ([]domain.Bank, error) {
	q := client.Query(`
		SELECT` + bankColumns + `
		FROM ` + table + `
		WHERE user_id = @user_id
		ORDER BY created_ts
	`)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListBanksByUserWithClient: reading query: %w", err)
	}

	var banks []domain.Bank
	for {
		var row BankRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListBanksByUserWithClient: iterating: %w", err)
		}
		banks = append(banks, row.Bank())
	}

	return banks, nil
}

// InsertBankWithClient streams a newly linked bank into the table.
func InsertBankWithClient(ctx context.Context, table *bigquery.Table, bank domain.Bank) error {
	if bank.ID == "" || bank.UserID == "" {
		return fmt.Errorf("InsertBank: bank_id and user_id cannot be empty")
	}

	if err := table.Inserter().Put(ctx, bq.NewBankRow(bank, time.Now().UTC())); err != nil {
		return fmt.Errorf("InsertBank: inserting row: %w", err)
	}
	return nil
}
