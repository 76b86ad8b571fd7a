package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/tallyhq/ledger/internal/api/handlers"
	"github.com/tallyhq/ledger/internal/api/middleware"
	"github.com/tallyhq/ledger/internal/classifier"
	"github.com/tallyhq/ledger/internal/config"
	"github.com/tallyhq/ledger/internal/feed"
	"github.com/tallyhq/ledger/internal/jobs"
	"github.com/tallyhq/ledger/internal/jobs/inmemory"
	"github.com/tallyhq/ledger/internal/ledger"
	"github.com/tallyhq/ledger/internal/logger"
	"github.com/tallyhq/ledger/internal/syncer"
	"github.com/tallyhq/ledger/internal/truelayer"
)

func main() {
	// Parse command-line flags
	var (
		configPath = flag.String("config", os.Getenv("LEDGER_CONFIG"), "Path to config file (or set LEDGER_CONFIG env)")
		logLevel   = flag.String("log-level", os.Getenv("LEDGER_LOG_LEVEL"), "Log level (debug, info, warn, error)")
	)
	flag.Parse()

	// Initialize logger
	log := logger.New(*logLevel)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize the ledger stores
	rules := make([]classifier.Rule, 0, len(cfg.Categories))
	for _, r := range cfg.Categories {
		rules = append(rules, classifier.Rule{Category: r.Category, Keywords: r.Keywords})
	}
	store := ledger.NewStore(classifier.New(rules...))
	accounts := ledger.NewAccountStore()
	decoder := feed.NewDecoder(cfg.DefaultCurrency, log)

	// Initialize the upstream session. Tokens come from the environment;
	// the access token may be empty or expired, the session refreshes on
	// the first 401.
	client := truelayer.NewClient(truelayer.Config{
		AuthBaseURL:  cfg.TrueLayer.AuthBaseURL,
		APIBaseURL:   cfg.TrueLayer.APIBaseURL,
		ClientID:     cfg.TrueLayer.ClientID,
		ClientSecret: cfg.TrueLayer.ClientSecret,
	}, log)
	session := truelayer.NewSession(client, truelayer.Token{
		AccessToken:  os.Getenv("LEDGER_TRUELAYER_ACCESS_TOKEN"),
		RefreshToken: os.Getenv("LEDGER_TRUELAYER_REFRESH_TOKEN"),
	})
	if session.Token().RefreshToken == "" {
		log.Warn().Msg("No refresh token configured - syncs will fail once the access token expires")
	}

	sync := syncer.New(session, decoder, store, accounts, cfg.Sync, log)

	// Initialize job infrastructure
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, 2, jobStore)

	// Start worker in background to process sync jobs
	ctx := context.Background()
	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	jobHandler := func(ctx context.Context, job jobs.Job) error {
		syncJob, ok := job.(*jobs.SyncAccountJob)
		if !ok {
			return fmt.Errorf("unexpected job type: %T", job)
		}

		log.Info().
			Str("job_id", syncJob.JobID).
			Str("account_id", syncJob.AccountID).
			Uint64("seq", syncJob.Seq).
			Msg("Processing sync job")

		n, err := sync.SyncAccount(ctx, syncJob.AccountID, syncJob.From, syncJob.To, syncJob.Seq)
		if err != nil {
			log.Error().
				Err(err).
				Str("job_id", syncJob.JobID).
				Str("account_id", syncJob.AccountID).
				Msg("Sync failed")
			return err
		}

		syncJob.Transactions = n
		log.Info().
			Str("job_id", syncJob.JobID).
			Str("account_id", syncJob.AccountID).
			Int("transactions", n).
			Msg("Sync completed")
		return nil
	}

	go func() {
		log.Info().Msg("Starting sync worker")
		if err := jobQueue.Start(workerCtx, jobHandler); err != nil {
			log.Error().Err(err).Msg("Sync worker stopped with error")
		}
	}()

	// Initialize handlers
	transactionsHandler := handlers.NewTransactionsHandler(store, log)
	syncHandler := handlers.NewSyncHandler(sync, accounts, jobQueue, log)
	filtersHandler := handlers.NewFiltersHandler(store, syncHandler, log)
	summaryHandler := handlers.NewSummaryHandler(store, accounts, log)
	categoriesHandler := handlers.NewCategoriesHandler(store, log)
	accountsHandler := handlers.NewAccountsHandler(accounts, log)
	jobsHandler := handlers.NewJobsHandler(jobStore, log)

	// Create router
	mux := http.NewServeMux()

	// Transactions endpoints
	mux.HandleFunc("/api/transactions", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			transactionsHandler.List(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/transactions/by-day", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			transactionsHandler.ByDay(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Filters endpoints
	mux.HandleFunc("/api/filters", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPut:
			filtersHandler.Put(w, r)
		case http.MethodDelete:
			filtersHandler.Delete(w, r)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Summary endpoint
	mux.HandleFunc("/api/summary", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			summaryHandler.Summary(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Categories endpoint
	mux.HandleFunc("/api/categories", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			categoriesHandler.List(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Accounts endpoints
	mux.HandleFunc("/api/accounts", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			accountsHandler.List(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/accounts/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			accountID := strings.TrimPrefix(r.URL.Path, "/api/accounts/")
			if accountID == "" {
				middleware.WriteError(w, http.StatusBadRequest, "Account ID is required")
				return
			}
			accountsHandler.Disconnect(w, r, accountID)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Sync endpoint
	mux.HandleFunc("/api/sync", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			syncHandler.Trigger(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Jobs endpoints
	mux.HandleFunc("/api/jobs", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			jobsHandler.List(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/jobs/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			jobID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
			if jobID == "" {
				middleware.WriteError(w, http.StatusBadRequest, "Job ID is required")
				return
			}
			jobsHandler.Get(w, r, jobID)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// Apply middleware. RequestID runs outside Logger so the
	// request-scoped logger carries the id.
	handler := middleware.Recovery(log)(
		middleware.RequestID(
			middleware.Logger(log)(
				middleware.CORS(mux),
			),
		),
	)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Cancel worker context
	cancelWorker()

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	// Stop job queue and wait for in-flight jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}

	log.Info().Msg("Server exited")
}
