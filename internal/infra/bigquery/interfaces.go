package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	bq "github.com/dvloznov/horizon/internal/bigquery"
	"github.com/dvloznov/horizon/internal/domain"
)

// Re-export interfaces and rows from the shared package
type TransferRepository = bq.TransferRepository
type BankRepository = bq.BankRepository
type TransferRow = bq.TransferRow
type BankRow = bq.BankRow

const (
	transfersTable = "transfers"
	banksTable     = "banks"
)

// Repository is the BigQuery implementation of TransferRepository and
// BankRepository. It holds a shared client to avoid creating a new
// connection for each operation.
type Repository struct {
	client    *bigquery.Client
	projectID string
	datasetID string
}

// NewRepository creates a Repository with a shared BigQuery client.
func NewRepository(ctx context.Context, projectID, datasetID string) (*Repository, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewRepository: creating client: %w", err)
	}
	return &Repository{
		client:    client,
		projectID: projectID,
		datasetID: datasetID,
	}, nil
}

// Close closes the BigQuery client connection. This should be called when
// the repository is no longer needed to release resources.
func (r *Repository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// Client exposes the shared client for schema migrations.
func (r *Repository) Client() *bigquery.Client {
	return r.client
}

// GetTransfersByAccount delegates to GetTransfersByAccountWithClient with the shared client.
func (r *Repository) GetTransfersByAccount(ctx context.Context, accountID string) ([]domain.TransferRecord, error) {
	return GetTransfersByAccountWithClient(ctx, r.client, r.table(transfersTable), accountID)
}

// InsertTransfer delegates to InsertTransferWithClient with the shared client.
func (r *Repository) InsertTransfer(ctx context.Context, rec domain.TransferRecord) error {
	return InsertTransferWithClient(ctx, r.client.DatasetInProject(r.projectID, r.datasetID).Table(transfersTable), rec)
}

// GetBank delegates to GetBankWithClient with the shared client.
func (r *Repository) GetBank(ctx context.Context, bankID string) (*domain.Bank, error) {
	return GetBankWithClient(ctx, r.client, r.table(banksTable), bankID)
}

// ListBanksByUser delegates to ListBanksByUserWithClient with the shared client.
func (r *Repository) ListBanksByUser(ctx context.Context, userID string) ([]domain.Bank, error) {
	return ListBanksByUserWithClient(ctx, r.client, r.table(banksTable), userID)
}

// InsertBank delegates to InsertBankWithClient with the shared client.
func (r *Repository) InsertBank(ctx context.Context, bank domain.Bank) error {
	return InsertBankWithClient(ctx, r.client.DatasetInProject(r.projectID, r.datasetID).Table(banksTable), bank)
}

// table returns the fully qualified, backtick-quoted table name.
func (r *Repository) table(name string) string {
	return fmt.Sprintf("`%s.%s.%s`", r.projectID, r.datasetID, name)
}

// Ensure Repository implements both repository interfaces.
var _ TransferRepository = (*Repository)(nil)
var _ BankRepository = (*Repository)(nil)
