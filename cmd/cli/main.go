package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/dvloznov/horizon/internal/api/middleware"
	"github.com/dvloznov/horizon/internal/app"
	"github.com/dvloznov/horizon/internal/config"
	"github.com/dvloznov/horizon/internal/domain"
	"github.com/dvloznov/horizon/internal/dwolla"
	"github.com/dvloznov/horizon/internal/export"
	"github.com/dvloznov/horizon/internal/link"
	"github.com/dvloznov/horizon/internal/logger"
	"github.com/dvloznov/horizon/internal/notionsync"
	"github.com/dvloznov/horizon/internal/transfer"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx := context.Background()
	cfg, err := config.Load(ctx)
	if err != nil {
		bootLog := logger.New()
		bootLog.Fatal().Err(err).Msg("Failed to load configuration")
	}
	log := logger.NewWithLevel(cfg.LogLevel)

	switch os.Args[1] {
	case "accounts":
		runAccounts(log, *cfg)
	case "ledger":
		runLedger(log, *cfg)
	case "export":
		runExport(log, *cfg)
	case "notion-sync":
		runNotionSync(log, *cfg)
	case "transfer":
		runTransfer(log, *cfg)
	case "token":
		runToken(log, *cfg)
	case "customer":
		runCustomer(log, *cfg)
	case "link-token":
		runLinkToken(log, *cfg)
	case "link-bank":
		runLinkBank(log, *cfg)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Horizon CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  accounts     List a user's linked accounts and total balance")
	fmt.Println("  ledger       Print the merged ledger of a bank as JSON")
	fmt.Println("  export       Write a ledger snapshot to GCS")
	fmt.Println("  notion-sync  Publish a ledger to a Notion database")
	fmt.Println("  transfer     Move money between two linked banks")
	fmt.Println("  token        Issue an API token for a user")
	fmt.Println("  customer     Register a Dwolla customer")
	fmt.Println("  link-token   Create a Plaid Link token for a user")
	fmt.Println("  link-bank    Link a bank from a Plaid public token")
	fmt.Println("  help         Show this help message")
	fmt.Println("\nConfiguration is read from the environment.")
	fmt.Println("Run 'cli <command> -h' for more information on a command.")
}

// command returns a context bounded by timeout and carrying log.
func command(log zerolog.Logger, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	return logger.WithContext(ctx, log), cancel
}

// openStore opens the configured store or exits.
func openStore(ctx context.Context, log zerolog.Logger, cfg config.Config) (app.Store, func()) {
	store, closeStore, err := app.OpenStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open store")
	}
	return store, func() {
		if err := closeStore(); err != nil {
			log.Error().Err(err).Msg("Failed to close store")
		}
	}
}

// bankLedger fetches the merged ledger of a bank or exits.
func bankLedger(ctx context.Context, log zerolog.Logger, cfg config.Config, bankID string) []domain.Transaction {
	store, closeStore := openStore(ctx, log, cfg)
	defer closeStore()

	svc, err := app.NewLedger(cfg, store)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create ledger service")
	}

	ledger, err := svc.GetBankLedger(ctx, bankID)
	if err != nil {
		log.Fatal().Err(err).Str("bank_id", bankID).Msg("Failed to load ledger")
	}
	return ledger
}

func printJSON(log zerolog.Logger, v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.Fatal().Err(err).Msg("Failed to encode output")
	}
}

func runAccounts(log zerolog.Logger, cfg config.Config) {
	fs := flag.NewFlagSet("accounts", flag.ExitOnError)
	userID := fs.String("user", "", "User ID")
	fs.Parse(os.Args[2:])

	if *userID == "" {
		log.Fatal().Msg("Error: --user is required")
	}

	ctx, cancel := command(log, 2*time.Minute)
	defer cancel()

	store, closeStore := openStore(ctx, log, cfg)
	defer closeStore()

	svc, err := app.NewLedger(cfg, store)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create ledger service")
	}

	summary, err := svc.ListAccounts(ctx, *userID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list accounts")
	}
	printJSON(log, summary)
}

func runLedger(log zerolog.Logger, cfg config.Config) {
	fs := flag.NewFlagSet("ledger", flag.ExitOnError)
	bankID := fs.String("bank", "", "Bank ID")
	fs.Parse(os.Args[2:])

	if *bankID == "" {
		log.Fatal().Msg("Error: --bank is required")
	}

	ctx, cancel := command(log, 5*time.Minute)
	defer cancel()

	printJSON(log, bankLedger(ctx, log, cfg, *bankID))
}

func runExport(log zerolog.Logger, cfg config.Config) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	bankID := fs.String("bank", "", "Bank ID")
	bucket := fs.String("bucket", cfg.ExportBucket, "GCS bucket (or set EXPORT_BUCKET env)")
	fs.Parse(os.Args[2:])

	if *bankID == "" || *bucket == "" {
		log.Fatal().Msg("Usage: cli export -bank ID -bucket NAME")
	}

	ctx, cancel := command(log, 5*time.Minute)
	defer cancel()

	ledger := bankLedger(ctx, log, cfg, *bankID)

	gcs, err := export.NewGCSStore(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create GCS client")
	}
	defer gcs.Close()

	uri, err := export.NewLedgerExporter(gcs).Export(ctx, *bucket, *bankID, ledger)
	if err != nil {
		log.Fatal().Err(err).Msg("Export failed")
	}

	fmt.Printf("Exported %d transactions to %s\n", len(ledger), uri)
}

func runNotionSync(log zerolog.Logger, cfg config.Config) {
	fs := flag.NewFlagSet("notion-sync", flag.ExitOnError)
	bankID := fs.String("bank", "", "Bank ID to sync from the live ledger")
	from := fs.String("from", "", "gs:// URI of an exported snapshot to sync instead")
	dryRun := fs.Bool("dry-run", false, "Preview changes without writing to Notion")
	prune := fs.Bool("prune", false, "Archive pages no longer in the ledger")
	fs.Parse(os.Args[2:])

	if (*bankID == "") == (*from == "") {
		log.Fatal().Msg("Error: exactly one of --bank or --from is required")
	}
	if cfg.NotionToken == "" || cfg.NotionDBID == "" {
		log.Fatal().Msg("Error: NOTION_TOKEN and NOTION_DB_ID must be set")
	}

	ctx, cancel := command(log, 10*time.Minute)
	defer cancel()

	accountID := *bankID
	var ledger []domain.Transaction
	if *from != "" {
		gcs, err := export.NewGCSStore(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create GCS client")
		}
		defer gcs.Close()

		snap, err := export.NewLedgerExporter(gcs).Load(ctx, *from)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load snapshot")
		}
		accountID = snap.AccountID
		ledger = snap.Transactions
	} else {
		ledger = bankLedger(ctx, log, cfg, *bankID)
	}

	client := notionsync.NewNotionClient(cfg.NotionToken)
	result, err := notionsync.PublishLedger(ctx, client, cfg.NotionDBID, accountID, ledger, notionsync.PublishOptions{
		DryRun: *dryRun,
		Prune:  *prune,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Sync failed")
	}

	fmt.Printf("Sync completed: %d created, %d updated, %d skipped, %d archived, %d failed\n",
		result.Created, result.Updated, result.Skipped, result.Archived, result.Failed)
	if result.Failed > 0 {
		os.Exit(1)
	}
}

func runTransfer(log zerolog.Logger, cfg config.Config) {
	fs := flag.NewFlagSet("transfer", flag.ExitOnError)
	sender := fs.String("from", "", "Sender bank ID")
	receiver := fs.String("to", "", "Receiver bank ID")
	amountStr := fs.String("amount", "", "Amount in USD, e.g. 12.50")
	name := fs.String("name", "", "Transfer name")
	key := fs.String("idempotency-key", "", "Key to safely repeat a transfer (defaults to a new UUID)")
	fs.Parse(os.Args[2:])

	amount, err := decimal.NewFromString(*amountStr)
	if err != nil {
		log.Fatal().Err(err).Str("amount", *amountStr).Msg("Error: invalid --amount")
	}
	if *key == "" {
		*key = uuid.New().String()
	}

	ctx, cancel := command(log, 2*time.Minute)
	defer cancel()

	store, closeStore := openStore(ctx, log, cfg)
	defer closeStore()

	svc, err := app.NewTransferService(ctx, cfg, store)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create transfer service")
	}

	result, err := svc.Execute(ctx, transfer.Request{
		SenderBankID:   *sender,
		ReceiverBankID: *receiver,
		Amount:         amount,
		Name:           *name,
		IdempotencyKey: *key,
	})
	if err != nil {
		log.Fatal().Err(err).Str("idempotency_key", *key).Msg("Transfer failed")
	}
	printJSON(log, result)
}

// linkService builds the link service or exits. The store is released by the
// returned func.
func linkService(ctx context.Context, log zerolog.Logger, cfg config.Config) (*link.Service, func()) {
	store, closeStore := openStore(ctx, log, cfg)

	svc, err := app.NewLinkService(ctx, cfg, store)
	if err != nil {
		closeStore()
		log.Fatal().Err(err).Msg("Failed to create link service")
	}
	return svc, closeStore
}

func runCustomer(log zerolog.Logger, cfg config.Config) {
	fs := flag.NewFlagSet("customer", flag.ExitOnError)
	var params dwolla.NewCustomerParams
	fs.StringVar(&params.FirstName, "first-name", "", "First name")
	fs.StringVar(&params.LastName, "last-name", "", "Last name")
	fs.StringVar(&params.Email, "email", "", "Email")
	fs.StringVar(&params.Address1, "address", "", "Street address")
	fs.StringVar(&params.City, "city", "", "City")
	fs.StringVar(&params.State, "state", "", "Two-letter state code")
	fs.StringVar(&params.PostalCode, "postal-code", "", "Postal code")
	fs.StringVar(&params.DateOfBirth, "dob", "", "Date of birth, YYYY-MM-DD")
	fs.StringVar(&params.SSN, "ssn", "", "Last four digits of the SSN")
	fs.Parse(os.Args[2:])

	ctx, cancel := command(log, 2*time.Minute)
	defer cancel()

	svc, closeStore := linkService(ctx, log, cfg)
	defer closeStore()

	customer, err := svc.CreateCustomer(ctx, params)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create customer")
	}
	printJSON(log, customer)
}

func runLinkToken(log zerolog.Logger, cfg config.Config) {
	fs := flag.NewFlagSet("link-token", flag.ExitOnError)
	userID := fs.String("user", "", "User ID")
	fs.Parse(os.Args[2:])

	if *userID == "" {
		log.Fatal().Msg("Error: --user is required")
	}

	ctx, cancel := command(log, time.Minute)
	defer cancel()

	svc, closeStore := linkService(ctx, log, cfg)
	defer closeStore()

	token, err := svc.CreateLinkToken(ctx, *userID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create link token")
	}
	fmt.Println(token)
}

func runLinkBank(log zerolog.Logger, cfg config.Config) {
	fs := flag.NewFlagSet("link-bank", flag.ExitOnError)
	var req link.Request
	fs.StringVar(&req.UserID, "user", "", "User ID")
	fs.StringVar(&req.PublicToken, "public-token", "", "Public token from Plaid Link")
	fs.StringVar(&req.DwollaCustomerID, "customer", "", "Dwolla customer ID")
	fs.Parse(os.Args[2:])

	if err := req.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Error: --user, --public-token and --customer are required")
	}

	ctx, cancel := command(log, 2*time.Minute)
	defer cancel()

	svc, closeStore := linkService(ctx, log, cfg)
	defer closeStore()

	bank, err := svc.LinkBank(ctx, req)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to link bank")
	}
	printJSON(log, bank)
}

func runToken(log zerolog.Logger, cfg config.Config) {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	userID := fs.String("user", "", "User ID to issue the token for")
	ttl := fs.Duration("ttl", 24*time.Hour, "Token lifetime")
	fs.Parse(os.Args[2:])

	if *userID == "" {
		log.Fatal().Msg("Error: --user is required")
	}
	if cfg.JWTSecret == "" {
		log.Fatal().Msg("Error: JWT_SECRET must be set")
	}

	token, err := middleware.IssueToken([]byte(cfg.JWTSecret), *userID, *ttl)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to issue token")
	}
	fmt.Println(token)
}
