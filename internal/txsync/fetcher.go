package txsync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dvloznov/horizon/internal/domain"
	"github.com/dvloznov/horizon/internal/logger"
)

const (
	// DefaultMaxPages bounds the sync loop when no option is given.
	DefaultMaxPages = 100
	// DefaultPageTimeout bounds a single page request.
	DefaultPageTimeout = 30 * time.Second
)

// ErrSyncIncomplete is returned when the provider still reports more data
// after the configured page limit was reached.
var ErrSyncIncomplete = errors.New("transaction sync incomplete")

// Options configures a Fetcher. MaxPages <= 0 disables the page cap and
// PageTimeout <= 0 disables the per-page deadline.
type Options struct {
	MaxPages    int
	PageTimeout time.Duration
}

// DefaultOptions returns the hardened defaults.
func DefaultOptions() Options {
	return Options{
		MaxPages:    DefaultMaxPages,
		PageTimeout: DefaultPageTimeout,
	}
}

// Fetcher pulls the complete transaction set for an access token.
// It holds no per-call state and is safe for concurrent use.
type Fetcher struct {
	provider Provider
	opts     Options
}

// NewFetcher creates a Fetcher over the given provider.
func NewFetcher(provider Provider, opts Options) *Fetcher {
	return &Fetcher{
		provider: provider,
		opts:     opts,
	}
}

// FetchAll requests pages until the provider clears HasMore and returns every
// added transaction, normalized, in provider emission order.
//
// An empty page does not end the loop; only the flag does. If any page fails,
// or the page cap is hit, nothing accumulated so far is returned.
func (f *Fetcher) FetchAll(ctx context.Context, accessToken string) ([]domain.Transaction, error) {
	log := logger.FromContext(ctx)

	var (
		all    []domain.Transaction
		cursor string
		pages  int
	)

	for {
		if f.opts.MaxPages > 0 && pages >= f.opts.MaxPages {
			log.Warn().
				Str("access_token_suffix", logger.Suffix(accessToken)).
				Int("pages", pages).
				Int("accumulated", len(all)).
				Msg("Sync page limit reached with more data pending")
			return nil, fmt.Errorf("FetchAll: stopped after %d pages: %w", pages, ErrSyncIncomplete)
		}

		page, err := f.fetchPage(ctx, accessToken, cursor)
		if err != nil {
			return nil, fmt.Errorf("FetchAll: page %d: %w", pages+1, err)
		}
		pages++

		for _, raw := range page.Added {
			all = append(all, Normalize(raw))
		}

		log.Debug().
			Str("access_token_suffix", logger.Suffix(accessToken)).
			Int("page", pages).
			Int("added", len(page.Added)).
			Bool("has_more", page.HasMore).
			Msg("Fetched transaction sync page")

		if !page.HasMore {
			break
		}
		cursor = page.NextCursor
	}

	log.Info().
		Str("access_token_suffix", logger.Suffix(accessToken)).
		Int("pages", pages).
		Int("transaction_count", len(all)).
		Msg("Transaction sync completed")

	if all == nil {
		all = []domain.Transaction{}
	}
	return all, nil
}

func (f *Fetcher) fetchPage(ctx context.Context, accessToken, cursor string) (*Page, error) {
	if f.opts.PageTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.opts.PageTimeout)
		defer cancel()
	}

	page, err := f.provider.SyncTransactions(ctx, accessToken, cursor)
	if err != nil {
		return nil, err
	}
	if page == nil {
		return nil, errors.New("provider returned no page")
	}
	return page, nil
}

// Normalize maps a provider transaction to the ledger shape. The type of an
// external transaction is its payment channel, and a missing category
// becomes "".
func Normalize(raw RawTransaction) domain.Transaction {
	category := ""
	if len(raw.Category) > 0 {
		category = raw.Category[0]
	}

	return domain.Transaction{
		ID:             raw.TransactionID,
		Name:           raw.Name,
		Amount:         raw.Amount,
		Date:           raw.Date,
		PaymentChannel: raw.PaymentChannel,
		Category:       category,
		Pending:        raw.Pending,
		Type:           domain.TransactionType(raw.PaymentChannel),
		Image:          raw.LogoURL,
		AccountID:      raw.AccountID,
	}
}
