package notionsync

import (
	"context"
	"fmt"

	"github.com/dvloznov/horizon/internal/domain"
	"github.com/dvloznov/horizon/internal/logger"
	"github.com/jomei/notionapi"
)

// queryPageSize is the Notion maximum page size.
const queryPageSize = 100

// PublishOptions controls PublishLedger.
type PublishOptions struct {
	// DryRun logs what would change without writing to Notion.
	DryRun bool

	// Prune archives pages of the account whose transaction is no longer
	// in the ledger, such as pending entries replaced once posted.
	Prune bool
}

// PublishResult counts what PublishLedger did, or would have done in a dry run.
type PublishResult struct {
	Created  int `json:"created"`
	Updated  int `json:"updated"`
	Skipped  int `json:"skipped"`
	Archived int `json:"archived"`
	Failed   int `json:"failed"`
}

// PublishLedger mirrors an account's ledger into a Notion database. Entries
// already present, keyed by transaction ID, are skipped unless their pending
// flag changed. Individual page failures are logged and counted; only a
// failure to read the existing pages aborts the publish.
func PublishLedger(ctx context.Context, notionClient NotionService, notionDBID, accountID string, ledger []domain.Transaction, opts PublishOptions) (*PublishResult, error) {
	log := logger.FromContext(ctx).With().
		Str("account_id", accountID).
		Bool("dry_run", opts.DryRun).
		Logger()

	log.Info().Int("transaction_count", len(ledger)).Msg("Publishing ledger to Notion")

	pages, err := queryAccountPages(ctx, notionClient, notionDBID, accountID)
	if err != nil {
		return nil, fmt.Errorf("PublishLedger: %w", err)
	}

	log.Info().Int("notion_page_count", len(pages)).Msg("Retrieved existing Notion pages")

	existing := make(map[string]notionapi.Page, len(pages))
	for _, page := range pages {
		if txID := extractTransactionID(page); txID != "" {
			existing[txID] = page
		}
	}

	result := &PublishResult{}
	inLedger := make(map[string]bool, len(ledger))

	for _, tx := range ledger {
		inLedger[tx.ID] = true

		page, found := existing[tx.ID]
		switch {
		case found && extractPending(page) == tx.Pending:
			result.Skipped++

		case found:
			if opts.DryRun {
				log.Info().Str("transaction_id", tx.ID).Str("page_id", string(page.ID)).Msg("[DRY RUN] Would update Notion page")
				result.Updated++
				continue
			}
			if _, err := notionClient.UpdatePage(ctx, string(page.ID), PendingUpdateProperties(tx.Pending)); err != nil {
				log.Warn().Err(err).Str("transaction_id", tx.ID).Str("page_id", string(page.ID)).Msg("Failed to update Notion page")
				result.Failed++
				continue
			}
			result.Updated++

		default:
			if opts.DryRun {
				log.Info().Str("transaction_id", tx.ID).Msg("[DRY RUN] Would create Notion page")
				result.Created++
				continue
			}
			created, err := notionClient.CreatePage(ctx, notionDBID, TransactionToNotionProperties(tx, accountID))
			if err != nil {
				log.Warn().Err(err).Str("transaction_id", tx.ID).Msg("Failed to create Notion page")
				result.Failed++
				continue
			}
			log.Debug().Str("transaction_id", tx.ID).Str("page_id", string(created.ID)).Msg("Created Notion page")
			result.Created++
		}
	}

	if opts.Prune {
		for _, page := range pages {
			txID := extractTransactionID(page)
			if txID != "" && inLedger[txID] {
				continue
			}
			if opts.DryRun {
				log.Info().Str("transaction_id", txID).Str("page_id", string(page.ID)).Msg("[DRY RUN] Would archive stale Notion page")
				result.Archived++
				continue
			}
			if err := notionClient.DeletePage(ctx, string(page.ID)); err != nil {
				log.Warn().Err(err).Str("transaction_id", txID).Str("page_id", string(page.ID)).Msg("Failed to archive stale Notion page")
				result.Failed++
				continue
			}
			result.Archived++
		}
	}

	log.Info().
		Int("created", result.Created).
		Int("updated", result.Updated).
		Int("skipped", result.Skipped).
		Int("archived", result.Archived).
		Int("failed", result.Failed).
		Msg("Ledger publish completed")

	return result, nil
}

// queryAccountPages reads every page of the account, following the
// HasMore/NextCursor pagination.
func queryAccountPages(ctx context.Context, notionClient NotionService, databaseID, accountID string) ([]notionapi.Page, error) {
	var allPages []notionapi.Page
	var cursor notionapi.Cursor

	for {
		req := &notionapi.DatabaseQueryRequest{
			Filter: notionapi.PropertyFilter{
				Property: propAccount,
				RichText: &notionapi.TextFilterCondition{
					Equals: accountID,
				},
			},
			PageSize: queryPageSize,
		}

		// Only set StartCursor if we have a cursor value
		if cursor != "" {
			req.StartCursor = cursor
		}

		resp, err := notionClient.QueryDatabase(ctx, databaseID, req)
		if err != nil {
			return nil, fmt.Errorf("queryAccountPages: %w", err)
		}

		allPages = append(allPages, resp.Results...)

		if !resp.HasMore {
			break
		}
		cursor = resp.NextCursor
	}

	return allPages, nil
}
