package export

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dvloznov/horizon/internal/domain"
	"github.com/dvloznov/horizon/internal/logger"
)

const (
	objectPrefix    = "ledgers"
	timestampFormat = "20060102T150405Z"
	jsonContentType = "application/json"
)

// Snapshot is the exported document: one account's ledger at a point in time.
type Snapshot struct {
	AccountID    string               `json:"account_id"`
	ExportedAt   time.Time            `json:"exported_at"`
	Count        int                  `json:"count"`
	Transactions []domain.Transaction `json:"transactions"`
}

// LedgerExporter writes ledger snapshots to object storage.
type LedgerExporter struct {
	store ObjectStore
	now   func() time.Time
}

// NewLedgerExporter creates a LedgerExporter.
func NewLedgerExporter(store ObjectStore) *LedgerExporter {
	return &LedgerExporter{store: store, now: time.Now}
}

// ObjectName is where the snapshot of accountID taken at t is stored.
func ObjectName(accountID string, t time.Time) string {
	return fmt.Sprintf("%s/%s/%s.json", objectPrefix, accountID, t.UTC().Format(timestampFormat))
}

// Export writes the ledger as JSON to gs://bucket/ledgers/<account>/<timestamp>.json
// and returns the object URI. The ledger order is preserved.
func (e *LedgerExporter) Export(ctx context.Context, bucket, accountID string, ledger []domain.Transaction) (string, error) {
	if bucket == "" || accountID == "" {
		return "", fmt.Errorf("Export: bucket and account are required")
	}
	if ledger == nil {
		ledger = []domain.Transaction{}
	}

	exportedAt := e.now().UTC()
	data, err := json.Marshal(Snapshot{
		AccountID:    accountID,
		ExportedAt:   exportedAt,
		Count:        len(ledger),
		Transactions: ledger,
	})
	if err != nil {
		return "", fmt.Errorf("Export: encoding snapshot: %w", err)
	}

	object := ObjectName(accountID, exportedAt)
	if err := e.store.Write(ctx, bucket, object, jsonContentType, data); err != nil {
		return "", fmt.Errorf("Export: %w", err)
	}

	uri := fmt.Sprintf("gs://%s/%s", bucket, object)
	log := logger.FromContext(ctx)
	log.Info().Str("account_id", accountID).Str("gcs_uri", uri).Int("count", len(ledger)).Msg("Ledger exported")

	return uri, nil
}

// Load reads a snapshot previously written by Export.
func (e *LedgerExporter) Load(ctx context.Context, gcsURI string) (*Snapshot, error) {
	bucket, object, err := ParseGCSURI(gcsURI)
	if err != nil {
		return nil, fmt.Errorf("Load: %w", err)
	}

	data, err := e.store.Read(ctx, bucket, object)
	if err != nil {
		return nil, fmt.Errorf("Load: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("Load: decoding %s: %w", gcsURI, err)
	}
	return &snap, nil
}
