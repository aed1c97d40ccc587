package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/horizon/internal/domain"
	"github.com/dvloznov/horizon/internal/logger"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrBankNotFound is returned when a bank ID does not resolve.
	ErrBankNotFound = errors.New("bank not found")
	// ErrNoAccountData is returned when the aggregator has no account for a bank.
	ErrNoAccountData = errors.New("no account data found")
)

// maxConcurrentBanks bounds the per-user fan-out in ListAccounts.
const maxConcurrentBanks = 4

// AccountDetail is one account together with its merged ledger.
type AccountDetail struct {
	Account      domain.Account       `json:"data"`
	Transactions []domain.Transaction `json:"transactions"`
}

// Service answers ledger and account queries. Every call re-fetches from the
// aggregator and the store; nothing is cached between calls.
type Service struct {
	fetcher   TransactionFetcher
	transfers TransferStore
	banks     BankStore
	accounts  AccountProvider
}

// NewService creates a ledger service from its collaborators.
func NewService(fetcher TransactionFetcher, transfers TransferStore, banks BankStore, accounts AccountProvider) *Service {
	return &Service{
		fetcher:   fetcher,
		transfers: transfers,
		banks:     banks,
		accounts:  accounts,
	}
}

// GetAccountLedger returns the merged ledger for accountID, most recent first.
// A failure of either the sync or the transfer store fails the whole call;
// an empty result always means there really are no transactions.
func (s *Service) GetAccountLedger(ctx context.Context, accessToken, accountID string) ([]domain.Transaction, error) {
	external, transfers, err := s.collect(ctx, accessToken, accountID)
	if err != nil {
		return nil, fmt.Errorf("GetAccountLedger: %w", err)
	}
	return Merge(external, transfers, accountID), nil
}

// bankLedger is GetAccountLedger for a linked bank. Transfers are recorded
// against the bank, so the bank is the viewing account.
func (s *Service) bankLedger(ctx context.Context, bank *domain.Bank) ([]domain.Transaction, error) {
	external, transfers, err := s.collect(ctx, bank.AccessToken, bank.ID)
	if err != nil {
		return nil, err
	}
	return MergeForBank(external, transfers, *bank), nil
}

// collect loads both ledger sources for viewingID.
func (s *Service) collect(ctx context.Context, accessToken, viewingID string) ([]domain.Transaction, []domain.TransferRecord, error) {
	log := logger.FromContext(ctx)

	external, err := s.fetcher.FetchAll(ctx, accessToken)
	if err != nil {
		return nil, nil, fmt.Errorf("syncing transactions: %w", err)
	}

	transfers, err := s.transfers.GetTransfersByAccount(ctx, viewingID)
	if err != nil {
		return nil, nil, fmt.Errorf("reading transfers for %s: %w", viewingID, err)
	}

	log.Debug().
		Str("account_id", viewingID).
		Int("external_count", len(external)).
		Int("transfer_count", len(transfers)).
		Msg("Merged account ledger")

	return external, transfers, nil
}

// GetAccount returns the account behind a bank and its ledger.
func (s *Service) GetAccount(ctx context.Context, bankID string) (*AccountDetail, error) {
	bank, err := s.banks.GetBank(ctx, bankID)
	if err != nil {
		return nil, fmt.Errorf("GetAccount: loading bank: %w", err)
	}
	if bank == nil {
		return nil, fmt.Errorf("GetAccount: %s: %w", bankID, ErrBankNotFound)
	}

	account, err := s.accountFor(ctx, bank)
	if err != nil {
		return nil, fmt.Errorf("GetAccount: %w", err)
	}

	transactions, err := s.bankLedger(ctx, bank)
	if err != nil {
		return nil, fmt.Errorf("GetAccount: %w", err)
	}

	return &AccountDetail{
		Account:      *account,
		Transactions: transactions,
	}, nil
}

// GetBankLedger resolves the bank's access token and returns its ledger.
func (s *Service) GetBankLedger(ctx context.Context, bankID string) ([]domain.Transaction, error) {
	bank, err := s.banks.GetBank(ctx, bankID)
	if err != nil {
		return nil, fmt.Errorf("GetBankLedger: loading bank: %w", err)
	}
	if bank == nil {
		return nil, fmt.Errorf("GetBankLedger: %s: %w", bankID, ErrBankNotFound)
	}
	transactions, err := s.bankLedger(ctx, bank)
	if err != nil {
		return nil, fmt.Errorf("GetBankLedger: %w", err)
	}
	return transactions, nil
}

// ListAccounts returns every linked account of the user with the total
// current balance. Banks are queried concurrently; one failure fails all.
func (s *Service) ListAccounts(ctx context.Context, userID string) (*domain.AccountsSummary, error) {
	banks, err := s.banks.ListBanksByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ListAccounts: loading banks: %w", err)
	}

	accounts := make([]domain.Account, len(banks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentBanks)

	for i := range banks {
		bank := banks[i]
		g.Go(func() error {
			account, err := s.accountFor(gctx, &bank)
			if err != nil {
				return err
			}
			accounts[i] = *account
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("ListAccounts: %w", err)
	}

	summary := domain.Summarize(accounts)
	log := logger.FromContext(ctx)
	log.Info().
		Str("user_id", userID).
		Int("total_banks", summary.TotalBanks).
		Msg("Listed linked accounts")

	return &summary, nil
}

func (s *Service) accountFor(ctx context.Context, bank *domain.Bank) (*domain.Account, error) {
	account, err := s.accounts.GetAccount(ctx, bank.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("fetching account for bank %s: %w", bank.ID, err)
	}
	if account == nil {
		return nil, fmt.Errorf("bank %s: %w", bank.ID, ErrNoAccountData)
	}

	account.BankID = bank.ID
	account.ShareableID = bank.ShareableID
	return account, nil
}
