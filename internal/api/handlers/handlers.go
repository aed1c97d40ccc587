package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/dvloznov/horizon/internal/api/middleware"
	"github.com/dvloznov/horizon/internal/domain"
	"github.com/dvloznov/horizon/internal/dwolla"
	"github.com/dvloznov/horizon/internal/jobs"
	"github.com/dvloznov/horizon/internal/ledger"
	"github.com/dvloznov/horizon/internal/link"
	"github.com/dvloznov/horizon/internal/transfer"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// LedgerService answers account and ledger queries. *ledger.Service satisfies it.
type LedgerService interface {
	ListAccounts(ctx context.Context, userID string) (*domain.AccountsSummary, error)
	GetAccount(ctx context.Context, bankID string) (*ledger.AccountDetail, error)
	GetBankLedger(ctx context.Context, bankID string) ([]domain.Transaction, error)
}

// BankLookup resolves a linked bank, or nil if none exists.
type BankLookup interface {
	GetBank(ctx context.Context, bankID string) (*domain.Bank, error)
}

// AccountsHandler handles account and ledger endpoints.
type AccountsHandler struct {
	ledger LedgerService
	banks  BankLookup
	log    zerolog.Logger
}

// NewAccountsHandler creates a new accounts handler.
func NewAccountsHandler(svc LedgerService, banks BankLookup, log zerolog.Logger) *AccountsHandler {
	return &AccountsHandler{
		ledger: svc,
		banks:  banks,
		log:    log,
	}
}

// ListAccounts handles GET /api/accounts
func (h *AccountsHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())

	summary, err := h.ledger.ListAccounts(r.Context(), userID)
	if err != nil {
		h.writeLedgerError(w, err, "Failed to list accounts")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, summary)
}

// GetAccount handles GET /api/accounts/{bankID}
func (h *AccountsHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	bankID := mux.Vars(r)["bankID"]
	if !h.authorize(w, r, bankID) {
		return
	}

	detail, err := h.ledger.GetAccount(r.Context(), bankID)
	if err != nil {
		h.writeLedgerError(w, err, "Failed to load account")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, detail)
}

// GetTransactions handles GET /api/accounts/{bankID}/transactions
func (h *AccountsHandler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	bankID := mux.Vars(r)["bankID"]
	if !h.authorize(w, r, bankID) {
		return
	}

	transactions, err := h.ledger.GetBankLedger(r.Context(), bankID)
	if err != nil {
		h.writeLedgerError(w, err, "Failed to load transactions")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": transactions,
		"count":        len(transactions),
	})
}

// authorize writes a 404 unless bankID belongs to the authenticated user.
// Foreign banks are indistinguishable from missing ones.
func (h *AccountsHandler) authorize(w http.ResponseWriter, r *http.Request, bankID string) bool {
	bank, err := h.banks.GetBank(r.Context(), bankID)
	if err != nil {
		h.log.Error().Err(err).Str("bank_id", bankID).Msg("Failed to load bank")
		middleware.WriteError(w, http.StatusBadGateway, "Failed to load bank")
		return false
	}
	if bank == nil || bank.UserID != middleware.UserIDFromContext(r.Context()) {
		middleware.WriteError(w, http.StatusNotFound, "Bank not found")
		return false
	}
	return true
}

// writeLedgerError maps ledger failures onto HTTP statuses. A failed sync or
// store read is a 502, never an empty ledger.
func (h *AccountsHandler) writeLedgerError(w http.ResponseWriter, err error, msg string) {
	switch {
	case errors.Is(err, ledger.ErrBankNotFound):
		middleware.WriteError(w, http.StatusNotFound, "Bank not found")
	case errors.Is(err, ledger.ErrNoAccountData):
		middleware.WriteError(w, http.StatusNotFound, "No account data found")
	default:
		h.log.Error().Err(err).Msg(msg)
		middleware.WriteError(w, http.StatusBadGateway, msg)
	}
}

// TransfersHandler accepts transfer requests and queues them.
type TransfersHandler struct {
	banks     BankLookup
	publisher jobs.Publisher
	log       zerolog.Logger
}

// NewTransfersHandler creates a new transfers handler. A nil publisher
// disables transfers.
func NewTransfersHandler(banks BankLookup, publisher jobs.Publisher, log zerolog.Logger) *TransfersHandler {
	return &TransfersHandler{
		banks:     banks,
		publisher: publisher,
		log:       log,
	}
}

// CreateTransfer handles POST /api/transfers
func (h *TransfersHandler) CreateTransfer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.publisher == nil {
		middleware.WriteError(w, http.StatusServiceUnavailable, "Transfers are not configured")
		return
	}

	var req transfer.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	userID := middleware.UserIDFromContext(ctx)
	sender, err := h.banks.GetBank(ctx, req.SenderBankID)
	if err != nil {
		h.log.Error().Err(err).Str("bank_id", req.SenderBankID).Msg("Failed to load sender bank")
		middleware.WriteError(w, http.StatusBadGateway, "Failed to load bank")
		return
	}
	if sender == nil || sender.UserID != userID {
		middleware.WriteError(w, http.StatusNotFound, "Sender bank not found")
		return
	}

	job := &jobs.TransferJob{
		JobID:          uuid.New().String(),
		SenderBankID:   req.SenderBankID,
		ReceiverBankID: req.ReceiverBankID,
		Amount:         req.Amount,
		Name:           req.Name,
		UserID:         userID,
		Status:         jobs.JobStatusPending,
	}
	// A worker owns job once published.
	jobID := job.JobID

	if err := h.publisher.PublishTransfer(ctx, job); err != nil {
		h.log.Error().Err(err).Str("job_id", jobID).Msg("Failed to queue transfer")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to queue transfer")
		return
	}

	h.log.Info().
		Str("job_id", jobID).
		Str("sender_bank_id", req.SenderBankID).
		Str("receiver_bank_id", req.ReceiverBankID).
		Msg("Transfer queued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]interface{}{
		"job_id": jobID,
		"status": jobs.JobStatusPending,
	})
}

// LinkService links banks and registers Dwolla customers. *link.Service satisfies it.
type LinkService interface {
	CreateLinkToken(ctx context.Context, userID string) (string, error)
	CreateCustomer(ctx context.Context, params dwolla.NewCustomerParams) (*link.Customer, error)
	LinkBank(ctx context.Context, req link.Request) (*domain.Bank, error)
}

// LinkHandler handles bank linking endpoints.
type LinkHandler struct {
	svc LinkService
	log zerolog.Logger
}

// NewLinkHandler creates a new link handler. A nil service disables linking.
func NewLinkHandler(svc LinkService, log zerolog.Logger) *LinkHandler {
	return &LinkHandler{
		svc: svc,
		log: log,
	}
}

// CreateLinkToken handles POST /api/link/token
func (h *LinkHandler) CreateLinkToken(w http.ResponseWriter, r *http.Request) {
	if !h.enabled(w) {
		return
	}

	token, err := h.svc.CreateLinkToken(r.Context(), middleware.UserIDFromContext(r.Context()))
	if err != nil {
		h.writeLinkError(w, err, "Failed to create link token")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]string{"link_token": token})
}

// CreateCustomer handles POST /api/customers
func (h *LinkHandler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	if !h.enabled(w) {
		return
	}

	var params dwolla.NewCustomerParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	customer, err := h.svc.CreateCustomer(r.Context(), params)
	if err != nil {
		h.writeLinkError(w, err, "Failed to create customer")
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, customer)
}

// LinkBank handles POST /api/banks
func (h *LinkHandler) LinkBank(w http.ResponseWriter, r *http.Request) {
	if !h.enabled(w) {
		return
	}

	var req link.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.UserID = middleware.UserIDFromContext(r.Context())

	bank, err := h.svc.LinkBank(r.Context(), req)
	if err != nil {
		h.writeLinkError(w, err, "Failed to link bank")
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, bank)
}

func (h *LinkHandler) enabled(w http.ResponseWriter) bool {
	if h.svc == nil {
		middleware.WriteError(w, http.StatusServiceUnavailable, "Bank linking is not configured")
		return false
	}
	return true
}

func (h *LinkHandler) writeLinkError(w http.ResponseWriter, err error, msg string) {
	switch {
	case errors.Is(err, link.ErrInvalidRequest):
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, link.ErrNoAccount):
		middleware.WriteError(w, http.StatusUnprocessableEntity, "Linked item has no account")
	default:
		h.log.Error().Err(err).Msg(msg)
		middleware.WriteError(w, http.StatusBadGateway, msg)
	}
}

// JobsHandler handles job-related endpoints.
type JobsHandler struct {
	store jobs.JobStore
	log   zerolog.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{
		store: store,
		log:   log,
	}
}

// GetJob handles GET /api/jobs/{id}
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["id"]

	job, err := h.store.GetJob(r.Context(), jobID)
	if err != nil || job.UserID != middleware.UserIDFromContext(r.Context()) {
		if err != nil {
			h.log.Debug().Err(err).Str("job_id", jobID).Msg("Job lookup failed")
		}
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs, newest first. Optional query parameters:
// status, bank_id (sender or receiver), limit and offset.
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := jobs.JobFilter{
		UserID: middleware.UserIDFromContext(r.Context()),
		Status: jobs.JobStatus(query.Get("status")),
		BankID: query.Get("bank_id"),
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}

	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	jobsList, err := h.store.ListJobs(r.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}

// Health handles GET /health
func Health(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
