// Package app assembles the services shared by the API server and the CLI
// from a loaded configuration.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/horizon/internal/config"
	"github.com/dvloznov/horizon/internal/domain"
	"github.com/dvloznov/horizon/internal/dwolla"
	infraBQ "github.com/dvloznov/horizon/internal/infra/bigquery"
	infraMongo "github.com/dvloznov/horizon/internal/infra/mongo"
	"github.com/dvloznov/horizon/internal/jobs"
	"github.com/dvloznov/horizon/internal/ledger"
	"github.com/dvloznov/horizon/internal/link"
	"github.com/dvloznov/horizon/internal/logger"
	"github.com/dvloznov/horizon/internal/plaid"
	"github.com/dvloznov/horizon/internal/transfer"
	"github.com/dvloznov/horizon/internal/txsync"
)

// ErrTransfersDisabled is returned when no payment processor is configured.
// Linking banks needs the processor too.
var ErrTransfersDisabled = errors.New("transfers are not configured")

// Store is everything the services need from persistence. Both the BigQuery
// and the MongoDB repositories implement it.
type Store interface {
	GetTransfersByAccount(ctx context.Context, accountID string) ([]domain.TransferRecord, error)
	InsertTransfer(ctx context.Context, rec domain.TransferRecord) error
	GetBank(ctx context.Context, bankID string) (*domain.Bank, error)
	ListBanksByUser(ctx context.Context, userID string) ([]domain.Bank, error)
	InsertBank(ctx context.Context, bank domain.Bank) error
}

var (
	_ Store = (*infraBQ.Repository)(nil)
	_ Store = (*infraMongo.Repository)(nil)
)

// OpenStore connects to the configured backend. The returned func releases it.
func OpenStore(ctx context.Context, cfg config.Config) (Store, func() error, error) {
	log := logger.FromContext(ctx)

	switch cfg.StoreBackend {
	case config.BackendMongo:
		client, err := infraMongo.Connect(ctx, cfg.MongoURI)
		if err != nil {
			return nil, nil, fmt.Errorf("OpenStore: %w", err)
		}
		repo := infraMongo.NewRepository(infraMongo.NewProvider(client, cfg.MongoDatabase))
		log.Info().Str("database", cfg.MongoDatabase).Msg("Using MongoDB store")
		return repo, func() error { return client.Disconnect(context.Background()) }, nil

	case config.BackendBigQuery:
		repo, err := infraBQ.NewRepository(ctx, cfg.BQProjectID, cfg.BQDataset)
		if err != nil {
			return nil, nil, fmt.Errorf("OpenStore: %w", err)
		}
		log.Info().Str("project", cfg.BQProjectID).Str("dataset", cfg.BQDataset).Msg("Using BigQuery store")
		return repo, repo.Close, nil

	default:
		return nil, nil, fmt.Errorf("OpenStore: backend %q: %w", cfg.StoreBackend, config.ErrInvalidConfig)
	}
}

func newPlaidClient(cfg config.Config) (*plaid.Client, error) {
	return plaid.NewClient(plaid.Config{
		ClientID:    cfg.PlaidClientID,
		Secret:      cfg.PlaidSecret,
		Environment: cfg.PlaidEnv,
	})
}

func newDwollaClient(ctx context.Context, cfg config.Config) (*dwolla.Client, error) {
	if !cfg.DwollaEnabled() {
		return nil, ErrTransfersDisabled
	}
	return dwolla.NewClient(ctx, dwolla.Config{
		Key:         cfg.DwollaKey,
		Secret:      cfg.DwollaSecret,
		Environment: cfg.DwollaEnv,
	})
}

// NewLedger builds the ledger service on top of the Plaid aggregator.
func NewLedger(cfg config.Config, store Store) (*ledger.Service, error) {
	client, err := newPlaidClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("NewLedger: %w", err)
	}

	fetcher := txsync.NewFetcher(client, txsync.Options{
		MaxPages:    cfg.SyncMaxPages,
		PageTimeout: cfg.SyncPageTimeout,
	})
	return ledger.NewService(fetcher, store, store, client), nil
}

// NewTransferService builds the transfer service, or returns
// ErrTransfersDisabled when Dwolla credentials are missing.
func NewTransferService(ctx context.Context, cfg config.Config, store Store) (*transfer.Service, error) {
	client, err := newDwollaClient(ctx, cfg)
	if errors.Is(err, ErrTransfersDisabled) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("NewTransferService: %w", err)
	}
	return transfer.NewService(store, client, store), nil
}

// NewLinkService builds the bank linking service, or returns
// ErrTransfersDisabled when Dwolla credentials are missing.
func NewLinkService(ctx context.Context, cfg config.Config, store Store) (*link.Service, error) {
	funding, err := newDwollaClient(ctx, cfg)
	if errors.Is(err, ErrTransfersDisabled) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("NewLinkService: %w", err)
	}

	aggregator, err := newPlaidClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("NewLinkService: %w", err)
	}
	return link.NewService(aggregator, funding, store), nil
}

// TransferExecutor runs a transfer request.
type TransferExecutor interface {
	Execute(ctx context.Context, req transfer.Request) (*transfer.Result, error)
}

// TransferJobHandler executes queued transfer jobs. The job ID doubles as the
// idempotency key so a retried job never pays twice. Failures no retry can
// fix are marked permanent.
func TransferJobHandler(exec TransferExecutor) jobs.JobHandler {
	return func(ctx context.Context, job jobs.Job) error {
		tj, ok := job.(*jobs.TransferJob)
		if !ok {
			return jobs.Permanent(fmt.Errorf("unexpected job type: %T", job))
		}

		log := logger.FromContext(ctx).With().Str("job_id", tj.JobID).Logger()
		ctx = logger.WithContext(ctx, log)

		result, err := exec.Execute(ctx, transfer.Request{
			SenderBankID:   tj.SenderBankID,
			ReceiverBankID: tj.ReceiverBankID,
			Amount:         tj.Amount,
			Name:           tj.Name,
			IdempotencyKey: tj.JobID,
		})
		if err != nil {
			log.Error().Err(err).Int("retry_count", tj.RetryCount).Msg("Transfer job failed")
			if errors.Is(err, transfer.ErrInvalidRequest) ||
				errors.Is(err, transfer.ErrBankNotFound) ||
				errors.Is(err, transfer.ErrNoFundingSource) ||
				errors.Is(err, dwolla.ErrInvalidTransfer) {
				return jobs.Permanent(err)
			}
			return err
		}

		tj.TransferID = result.Record.ID
		tj.TransferURL = result.TransferURL
		log.Info().Str("transfer_id", tj.TransferID).Msg("Transfer job completed")
		return nil
	}
}
