package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/horizon/internal/api/handlers"
	"github.com/dvloznov/horizon/internal/api/middleware"
	"github.com/dvloznov/horizon/internal/app"
	"github.com/dvloznov/horizon/internal/config"
	"github.com/dvloznov/horizon/internal/jobs"
	"github.com/dvloznov/horizon/internal/jobs/inmemory"
	"github.com/dvloznov/horizon/internal/logger"
	"github.com/gorilla/mux"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load(ctx)
	if err != nil {
		bootLog := logger.New()
		bootLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.NewWithLevel(cfg.LogLevel)
	ctx = logger.WithContext(ctx, log)

	if cfg.JWTSecret == "" {
		log.Fatal().Msg("JWT_SECRET is required")
	}

	store, closeStore, err := app.OpenStore(ctx, *cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open store")
	}
	defer func() {
		if err := closeStore(); err != nil {
			log.Error().Err(err).Msg("Failed to close store")
		}
	}()

	ledgerSvc, err := app.NewLedger(*cfg, store)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create ledger service")
	}

	// Initialize job infrastructure
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, jobStore)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	var publisher jobs.Publisher
	transferSvc, err := app.NewTransferService(ctx, *cfg, store)
	switch {
	case errors.Is(err, app.ErrTransfersDisabled):
		log.Warn().Msg("No Dwolla credentials configured - transfers will be disabled")
	case err != nil:
		log.Fatal().Err(err).Msg("Failed to create transfer service")
	default:
		publisher = jobQueue
		log.Info().Msg("Starting transfer worker")
		if err := jobQueue.Start(workerCtx, app.TransferJobHandler(transferSvc)); err != nil {
			log.Fatal().Err(err).Msg("Failed to start transfer worker")
		}
	}

	var linkSvc handlers.LinkService
	switch svc, err := app.NewLinkService(ctx, *cfg, store); {
	case errors.Is(err, app.ErrTransfersDisabled):
		log.Warn().Msg("No Dwolla credentials configured - bank linking will be disabled")
	case err != nil:
		log.Fatal().Err(err).Msg("Failed to create link service")
	default:
		linkSvc = svc
	}

	// Initialize handlers
	accountsHandler := handlers.NewAccountsHandler(ledgerSvc, store, log)
	transfersHandler := handlers.NewTransfersHandler(store, publisher, log)
	jobsHandler := handlers.NewJobsHandler(jobStore, log)
	linkHandler := handlers.NewLinkHandler(linkSvc, log)

	router := mux.NewRouter()
	router.HandleFunc("/health", handlers.Health).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/accounts", accountsHandler.ListAccounts).Methods(http.MethodGet)
	api.HandleFunc("/accounts/{bankID}", accountsHandler.GetAccount).Methods(http.MethodGet)
	api.HandleFunc("/accounts/{bankID}/transactions", accountsHandler.GetTransactions).Methods(http.MethodGet)
	api.HandleFunc("/transfers", transfersHandler.CreateTransfer).Methods(http.MethodPost)
	api.HandleFunc("/jobs", jobsHandler.ListJobs).Methods(http.MethodGet)
	api.HandleFunc("/jobs/{id}", jobsHandler.GetJob).Methods(http.MethodGet)
	api.HandleFunc("/link/token", linkHandler.CreateLinkToken).Methods(http.MethodPost)
	api.HandleFunc("/customers", linkHandler.CreateCustomer).Methods(http.MethodPost)
	api.HandleFunc("/banks", linkHandler.LinkBank).Methods(http.MethodPost)

	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusNotFound, "Not found")
	})

	// Apply middleware
	handler := middleware.Recovery(log)(
		middleware.RequestID(log)(
			middleware.Logger(log)(
				middleware.CORS(
					middleware.Auth([]byte(cfg.JWTSecret), "/health")(router),
				),
			),
		),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Stop job queue and wait for in-flight transfers
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}
	cancelWorker()

	log.Info().Msg("Server exited")
}
