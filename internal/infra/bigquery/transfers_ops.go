package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	bq "github.com/dvloznov/horizon/internal/bigquery"
	"github.com/dvloznov/horizon/internal/domain"
	"google.golang.org/api/iterator"
)

// GetTransfersByAccountWithClient returns every transfer where accountID is
// the sender or the receiver, oldest first. The ledger re-sorts the result.
func GetTransfersByAccountWithClient(ctx context.Context, client *bigquery.Client, table, accountID string) ([]domain.TransferRecord, error) {
	q := client.Query(`
		SELECT
			transfer_id,
			name,
			amount,
			channel,
			category,
			sender_bank_id,
			receiver_bank_id,
			created_ts
		FROM ` + table + `
		WHERE sender_bank_id = @account_id
		   OR receiver_bank_id = @account_id
		ORDER BY created_ts, transfer_id
	`)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "account_id", Value: accountID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("GetTransfersByAccount: query read: %w", err)
	}

	records := []domain.TransferRecord{}
	for {
		var row TransferRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("GetTransfersByAccount: iter next: %w", err)
		}
		records = append(records, row.Record())
	}

	return records, nil
}

// InsertTransferWithClient streams a single transfer row into the table.
func InsertTransferWithClient(ctx context.Context, table *bigquery.Table, rec domain.TransferRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("InsertTransfer: transfer_id cannot be empty")
	}

	if err := table.Inserter().Put(ctx, bq.NewTransferRow(rec)); err != nil {
		return fmt.Errorf("InsertTransfer: inserting row: %w", err)
	}
	return nil
}

