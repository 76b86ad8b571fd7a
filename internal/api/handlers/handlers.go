// Package handlers exposes the ledger over HTTP for the dashboard.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/tallyhq/ledger/internal/api/middleware"
	"github.com/tallyhq/ledger/internal/domain"
	"github.com/tallyhq/ledger/internal/jobs"
	"github.com/tallyhq/ledger/internal/ledger"
	"github.com/tallyhq/ledger/internal/logger"
	"github.com/tallyhq/ledger/internal/syncer"
)

// TransactionsHandler serves the transaction collection.
type TransactionsHandler struct {
	store *ledger.Store
	log   zerolog.Logger
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(store *ledger.Store, log zerolog.Logger) *TransactionsHandler {
	return &TransactionsHandler{store: store, log: log}
}

// List handles GET /api/transactions. It returns the effective
// collection; categories, min_amount and max_amount query parameters
// narrow the response without touching the persistent filter state.
func (h *TransactionsHandler) List(w http.ResponseWriter, r *http.Request) {
	txs := h.store.Effective()

	query := r.URL.Query()

	var categories map[string]struct{}
	if raw := query.Get("categories"); raw != "" {
		categories = make(map[string]struct{})
		for _, c := range strings.Split(raw, ",") {
			if c = strings.TrimSpace(c); c != "" {
				categories[c] = struct{}{}
			}
		}
	}

	minAmount, err := parseAmountParam(query.Get("min_amount"))
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid min_amount")
		return
	}
	maxAmount, err := parseAmountParam(query.Get("max_amount"))
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid max_amount")
		return
	}

	if categories != nil || minAmount != nil || maxAmount != nil {
		narrowed := make([]domain.Transaction, 0, len(txs))
		for _, tx := range txs {
			if categories != nil {
				if _, ok := categories[tx.Category]; !ok {
					continue
				}
			}
			if minAmount != nil && tx.Amount.LessThan(*minAmount) {
				continue
			}
			if maxAmount != nil && tx.Amount.GreaterThan(*maxAmount) {
				continue
			}
			narrowed = append(narrowed, tx)
		}
		txs = narrowed
	}

	// Return array directly for frontend compatibility
	if txs == nil {
		txs = []domain.Transaction{}
	}
	middleware.WriteJSON(w, http.StatusOK, txs)
}

// ByDay handles GET /api/transactions/by-day.
func (h *TransactionsHandler) ByDay(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, h.store.TransactionsByDay())
}

func parseAmountParam(raw string) (*decimal.Decimal, error) {
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// FiltersHandler manages the persistent filter criteria.
type FiltersHandler struct {
	store *ledger.Store
	sync  *SyncHandler
	log   zerolog.Logger
}

// NewFiltersHandler creates a new filters handler. sync may be nil when
// no upstream connection is configured; date-range changes then only
// flag needs_refetch without enqueueing anything.
func NewFiltersHandler(store *ledger.Store, sync *SyncHandler, log zerolog.Logger) *FiltersHandler {
	return &FiltersHandler{store: store, sync: sync, log: log}
}

type filterRequest struct {
	StartDate  string           `json:"start_date"`
	EndDate    string           `json:"end_date"`
	Categories []string         `json:"categories"`
	MinAmount  *decimal.Decimal `json:"min_amount"`
	MaxAmount  *decimal.Decimal `json:"max_amount"`
}

// Put handles PUT /api/filters. A changed date range flags a refetch
// and enqueues sync jobs over the new window; category and amount
// changes take effect immediately.
func (h *FiltersHandler) Put(w http.ResponseWriter, r *http.Request) {
	var req filterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	criteria := ledger.FilterCriteria{
		Categories: req.Categories,
		MinAmount:  req.MinAmount,
		MaxAmount:  req.MaxAmount,
	}
	if req.StartDate != "" {
		start, err := time.Parse("2006-01-02", req.StartDate)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid start_date format")
			return
		}
		criteria.Start = &start
	}
	if req.EndDate != "" {
		end, err := time.Parse("2006-01-02", req.EndDate)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid end_date format")
			return
		}
		criteria.End = &end
	}

	result := h.store.SetFilters(criteria)

	var enqueued []string
	if result.NeedsRefetch && h.sync != nil {
		published, err := h.sync.enqueueWindow(r, criteria.Start, criteria.End)
		if err != nil {
			log := logger.FromContext(r.Context())
			log.Error().Err(err).Msg("Failed to enqueue refetch jobs")
		}
		for _, job := range published {
			enqueued = append(enqueued, job.JobID)
		}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"changed":       result.Changed,
		"needs_refetch": result.NeedsRefetch,
		"jobs":          enqueued,
	})
}

// Delete handles DELETE /api/filters. Clearing drops any server-side
// date window too, so a full reload is enqueued.
func (h *FiltersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	h.store.ClearFilters()

	var enqueued []string
	if h.sync != nil {
		published, err := h.sync.enqueueWindow(r, nil, nil)
		if err != nil {
			log := logger.FromContext(r.Context())
			log.Error().Err(err).Msg("Failed to enqueue reload jobs")
		}
		for _, job := range published {
			enqueued = append(enqueued, job.JobID)
		}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"changed":       true,
		"needs_refetch": true,
		"jobs":          enqueued,
	})
}

// SummaryHandler serves the aggregate view.
type SummaryHandler struct {
	store    *ledger.Store
	accounts *ledger.AccountStore
	log      zerolog.Logger
}

// NewSummaryHandler creates a new summary handler.
func NewSummaryHandler(store *ledger.Store, accounts *ledger.AccountStore, log zerolog.Logger) *SummaryHandler {
	return &SummaryHandler{store: store, accounts: accounts, log: log}
}

// Summary handles GET /api/summary.
func (h *SummaryHandler) Summary(w http.ResponseWriter, r *http.Request) {
	income := h.store.TotalIncome()
	expenses := h.store.TotalExpenses()

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"total_income":         income,
		"total_expenses":       expenses,
		"net":                  income.Sub(expenses),
		"spending_by_category": h.store.SpendingByCategory(),
		"spending_by_day":      h.store.SpendingByDay(),
		"total_balance":        h.accounts.TotalBalance(),
		"transaction_count":    h.store.Len(),
	})
}

// CategoriesHandler serves the category list.
type CategoriesHandler struct {
	store *ledger.Store
	log   zerolog.Logger
}

// NewCategoriesHandler creates a new categories handler.
func NewCategoriesHandler(store *ledger.Store, log zerolog.Logger) *CategoriesHandler {
	return &CategoriesHandler{store: store, log: log}
}

// List handles GET /api/categories. Categories always reflect the full
// collection, never the filtered view.
func (h *CategoriesHandler) List(w http.ResponseWriter, r *http.Request) {
	categories := h.store.AllCategories()
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"categories": categories,
		"count":      len(categories),
	})
}

// AccountsHandler serves the linked bank accounts.
type AccountsHandler struct {
	accounts *ledger.AccountStore
	log      zerolog.Logger
}

// NewAccountsHandler creates a new accounts handler.
func NewAccountsHandler(accounts *ledger.AccountStore, log zerolog.Logger) *AccountsHandler {
	return &AccountsHandler{accounts: accounts, log: log}
}

// List handles GET /api/accounts.
func (h *AccountsHandler) List(w http.ResponseWriter, r *http.Request) {
	accounts := h.accounts.Accounts()
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"accounts": accounts,
		"count":    len(accounts),
	})
}

// Disconnect handles DELETE /api/accounts/{id}. The account's
// transactions stay in the ledger until the next full ingest.
func (h *AccountsHandler) Disconnect(w http.ResponseWriter, r *http.Request, accountID string) {
	log := logger.FromContext(r.Context())
	if err := h.accounts.Disconnect(accountID); err != nil {
		if errors.Is(err, ledger.ErrAccountNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "Account not found")
			return
		}
		log.Error().Err(err).Str("account_id", accountID).Msg("Failed to disconnect account")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to disconnect account")
		return
	}

	log.Info().Str("account_id", accountID).Msg("Account disconnected")
	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"account_id": accountID,
		"status":     "disconnected",
	})
}

// SyncHandler enqueues account sync jobs.
type SyncHandler struct {
	syncer    *syncer.Syncer
	accounts  *ledger.AccountStore
	publisher jobs.Publisher
	log       zerolog.Logger
}

// NewSyncHandler creates a new sync handler.
func NewSyncHandler(s *syncer.Syncer, accounts *ledger.AccountStore, publisher jobs.Publisher, log zerolog.Logger) *SyncHandler {
	return &SyncHandler{syncer: s, accounts: accounts, publisher: publisher, log: log}
}

// Trigger handles POST /api/sync. With an account_id in the body it
// syncs that account; otherwise every linked account. Jobs run
// asynchronously; poll /api/jobs/{id} for completion.
func (h *SyncHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AccountID     string `json:"account_id"`
		ForceFullSync bool   `json:"force_full_sync"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	ctx := r.Context()
	log := logger.FromContext(ctx)

	// First sync on an empty workspace needs the account list itself.
	if len(h.accounts.Accounts()) == 0 {
		if err := h.syncer.RefreshAccounts(ctx); err != nil {
			log.Error().Err(err).Msg("Failed to refresh accounts")
			middleware.WriteError(w, http.StatusBadGateway, "Failed to fetch accounts from provider")
			return
		}
	}

	var targets []domain.BankAccount
	if req.AccountID != "" {
		account, err := h.accounts.Get(req.AccountID)
		if err != nil {
			middleware.WriteError(w, http.StatusNotFound, "Account not found")
			return
		}
		targets = []domain.BankAccount{account}
	} else {
		targets = h.accounts.Accounts()
	}

	published := make([]*jobs.SyncAccountJob, 0, len(targets))
	for _, account := range targets {
		from, to := h.syncer.Window(account, req.ForceFullSync)
		job := &jobs.SyncAccountJob{
			AccountID:     account.ID,
			From:          from,
			To:            to,
			ForceFullSync: req.ForceFullSync,
			Seq:           h.syncer.NextSeq(),
		}
		if err := h.publisher.PublishSyncAccount(ctx, job); err != nil {
			log.Error().Err(err).Str("account_id", account.ID).Msg("Failed to enqueue sync job")
			continue
		}
		published = append(published, job)
	}

	if len(targets) > 0 && len(published) == 0 {
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue sync jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusAccepted, map[string]interface{}{
		"jobs":  published,
		"count": len(published),
	})
}

// enqueueWindow publishes one sync job per linked account over an
// explicit window, defaulting missing bounds to each account's normal
// window.
func (h *SyncHandler) enqueueWindow(r *http.Request, start, end *time.Time) ([]*jobs.SyncAccountJob, error) {
	ctx := r.Context()

	var published []*jobs.SyncAccountJob
	var firstErr error
	for _, account := range h.accounts.Accounts() {
		from, to := h.syncer.Window(account, false)
		if start != nil {
			from = *start
		}
		if end != nil {
			to = *end
		}
		job := &jobs.SyncAccountJob{
			AccountID: account.ID,
			From:      from,
			To:        to,
			Seq:       h.syncer.NextSeq(),
		}
		if err := h.publisher.PublishSyncAccount(ctx, job); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		published = append(published, job)
	}
	return published, firstErr
}

// JobsHandler serves sync job status.
type JobsHandler struct {
	store jobs.JobStore
	log   zerolog.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{store: store, log: log}
}

// Get handles GET /api/jobs/{id}.
func (h *JobsHandler) Get(w http.ResponseWriter, r *http.Request, jobID string) {
	job, err := h.store.GetJob(r.Context(), jobID)
	if err != nil {
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, job)
}

// List handles GET /api/jobs.
func (h *JobsHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := jobs.JobFilter{
		AccountID: query.Get("account_id"),
		Status:    jobs.JobStatus(query.Get("status")),
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
