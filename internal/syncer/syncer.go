// Package syncer orchestrates a full account sync: fetch raw feeds via
// the sync client, adapt them through the feed decoders, and replace
// the ledger state. It owns the request sequence numbers that make
// overlapping syncs last-response-wins.
package syncer

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/tallyhq/ledger/internal/config"
	"github.com/tallyhq/ledger/internal/domain"
	"github.com/tallyhq/ledger/internal/feed"
	"github.com/tallyhq/ledger/internal/ledger"
	"github.com/tallyhq/ledger/internal/truelayer"
)

// Source fetches raw feeds for one bank connection. Satisfied by
// *truelayer.Session; an interface so tests can stub the network.
type Source interface {
	Accounts(ctx context.Context) ([]byte, error)
	Balance(ctx context.Context, accountID string) ([]byte, error)
	Transactions(ctx context.Context, accountID string, from, to time.Time) ([]byte, error)
}

var _ Source = (*truelayer.Session)(nil)

// Syncer drives account and transaction syncs into the ledger stores.
type Syncer struct {
	source   Source
	decoder  *feed.Decoder
	store    *ledger.Store
	accounts *ledger.AccountStore
	cfg      config.SyncConfig
	log      zerolog.Logger
	seq      atomic.Uint64
}

// New creates a syncer over the given source and stores.
func New(source Source, decoder *feed.Decoder, store *ledger.Store, accounts *ledger.AccountStore, cfg config.SyncConfig, log zerolog.Logger) *Syncer {
	return &Syncer{
		source:   source,
		decoder:  decoder,
		store:    store,
		accounts: accounts,
		cfg:      cfg,
		log:      log,
	}
}

// NextSeq issues the sequence number for a new sync request. Callers
// obtain it when the request is created, not when it completes, so an
// early request finishing late carries a stale number and loses.
func (s *Syncer) NextSeq() uint64 {
	return s.seq.Add(1)
}

// Window computes the fetch window for an account. A forced full sync
// uses the configured full range; otherwise the window starts a few
// days before the account's last sync so boundary records are not
// missed, falling back to the default window for never-synced accounts.
func (s *Syncer) Window(account domain.BankAccount, force bool) (time.Time, time.Time) {
	now := time.Now()
	if force {
		return now.AddDate(0, 0, -s.cfg.FullSyncDays), now
	}
	if !account.LastSynced.IsZero() {
		return account.LastSynced.AddDate(0, 0, -s.cfg.OverlapDays), now
	}
	return now.AddDate(0, 0, -s.cfg.WindowDays), now
}

// RefreshAccounts fetches the account feed and replaces the account
// collection.
func (s *Syncer) RefreshAccounts(ctx context.Context) error {
	raw, err := s.source.Accounts(ctx)
	if err != nil {
		return fmt.Errorf("RefreshAccounts: %w", err)
	}
	accounts, skipped, err := s.decoder.DecodeAccounts(raw)
	if err != nil {
		return fmt.Errorf("RefreshAccounts: %w", err)
	}
	if skipped > 0 {
		s.log.Warn().Int("skipped", skipped).Msg("account feed contained malformed records")
	}

	// Keep LastSynced stamps across the replace; the feed knows nothing
	// about local sync history.
	previous := make(map[string]time.Time)
	for _, a := range s.accounts.Accounts() {
		previous[a.ID] = a.LastSynced
	}
	for i := range accounts {
		accounts[i].LastSynced = previous[accounts[i].ID]
	}

	s.accounts.Replace(accounts)
	s.log.Info().Int("accounts", len(accounts)).Msg("account collection replaced")
	return nil
}

// SyncAccount fetches one account's transactions within [from, to] and
// replaces that account's slice of the ledger, leaving other accounts'
// transactions in place. The given sequence number orders overlapping
// syncs of the same account; a stale number ingests nothing and is not
// an error. The fresh balance is overlaid best-effort.
func (s *Syncer) SyncAccount(ctx context.Context, accountID string, from, to time.Time, seq uint64) (int, error) {
	raw, err := s.source.Transactions(ctx, accountID, from, to)
	if err != nil {
		return 0, fmt.Errorf("SyncAccount %s: %w", accountID, err)
	}

	res, err := s.decoder.DecodeTransactions(raw, accountID, feed.SchemaAuto)
	if err != nil {
		return 0, fmt.Errorf("SyncAccount %s: %w", accountID, err)
	}
	if res.Skipped > 0 {
		s.log.Warn().Str("account_id", accountID).Int("skipped", res.Skipped).Msg("transaction feed contained malformed records")
	}

	if !s.store.IngestAccountSeq(accountID, seq, res.Transactions) {
		s.log.Info().Str("account_id", accountID).Uint64("seq", seq).Msg("dropping stale sync response")
		return 0, nil
	}

	// Balance failure does not undo the ingest; the stamp just stays
	// stale until the next sync.
	var balance *decimal.Decimal
	if rawBalance, err := s.source.Balance(ctx, accountID); err == nil {
		if current, err := s.decoder.DecodeBalance(rawBalance); err == nil {
			balance = &current
		} else {
			s.log.Warn().Str("account_id", accountID).Err(err).Msg("balance feed unreadable")
		}
	} else {
		s.log.Warn().Str("account_id", accountID).Err(err).Msg("balance fetch failed")
	}

	if s.accounts != nil {
		if err := s.accounts.MarkSynced(accountID, time.Now(), balance); err != nil {
			s.log.Warn().Str("account_id", accountID).Err(err).Msg("could not stamp last sync")
		}
	}

	s.log.Info().
		Str("account_id", accountID).
		Int("transactions", len(res.Transactions)).
		Uint64("seq", seq).
		Msg("account synced")
	return len(res.Transactions), nil
}
