// Package ledger holds the in-memory transaction ledger: a replaceable
// base collection, a filter engine over it, and aggregate queries
// consumed by presentation layers.
package ledger

import (
	"sort"
	"sync"

	"github.com/tallyhq/ledger/internal/classifier"
	"github.com/tallyhq/ledger/internal/domain"
)

// Store holds the full fetched transaction set and a derived filtered
// subset. It is safe for concurrent use; accessors return copies so
// callers can never mutate internal state.
type Store struct {
	mu         sync.RWMutex
	classify   *classifier.Classifier
	base       []domain.Transaction
	filtered   []domain.Transaction
	criteria   FilterCriteria
	lastSeq    uint64
	accountSeq map[string]uint64
	subscriber []func()
}

// NewStore creates an empty store. A nil classifier falls back to the
// default rule table.
func NewStore(c *classifier.Classifier) *Store {
	if c == nil {
		c = classifier.New()
	}
	return &Store{classify: c, accountSeq: make(map[string]uint64)}
}

// Ingest classifies each transaction and replaces the base collection
// wholesale. The previous collection is discarded, not merged: stale
// entries vanish rather than being patched field by field. The result is
// stable-sorted by timestamp descending, ties keeping feed order, and
// the filtered view is recomputed against the active criteria.
func (s *Store) Ingest(txs []domain.Transaction) {
	s.mu.Lock()
	s.ingestLocked(s.maxSeqLocked()+1, txs)
	s.mu.Unlock()
	s.notify()
}

// IngestSeq is Ingest with last-response-wins ordering: the batch is
// applied only when seq is newer than the last applied sequence number.
// Callers that issue overlapping fetches assign monotonically increasing
// sequence numbers per request so a slow early response cannot clobber a
// later one. Returns whether the batch was applied.
func (s *Store) IngestSeq(seq uint64, txs []domain.Transaction) bool {
	s.mu.Lock()
	if seq <= s.maxSeqLocked() {
		s.mu.Unlock()
		return false
	}
	s.ingestLocked(seq, txs)
	s.mu.Unlock()
	s.notify()
	return true
}

// IngestAccountSeq replaces one account's transactions, leaving every
// other account's untouched. Ordering is last-response-wins per
// account: the batch is dropped unless seq is newer than both the
// account's last applied sequence number and the last full replace.
// Returns whether the batch was applied.
func (s *Store) IngestAccountSeq(accountID string, seq uint64, txs []domain.Transaction) bool {
	s.mu.Lock()
	if seq <= s.lastSeq || seq <= s.accountSeq[accountID] {
		s.mu.Unlock()
		return false
	}

	next := make([]domain.Transaction, 0, len(s.base)+len(txs))
	for _, tx := range s.base {
		if tx.AccountID != accountID {
			next = append(next, tx)
		}
	}
	next = append(next, s.normalize(txs)...)
	sort.SliceStable(next, func(i, j int) bool {
		return next[i].Timestamp.After(next[j].Timestamp)
	})

	s.base = next
	s.accountSeq[accountID] = seq
	s.recomputeLocked()
	s.mu.Unlock()
	s.notify()
	return true
}

func (s *Store) ingestLocked(seq uint64, txs []domain.Transaction) {
	next := s.normalize(txs)
	sort.SliceStable(next, func(i, j int) bool {
		return next[i].Timestamp.After(next[j].Timestamp)
	})

	s.base = next
	s.lastSeq = seq
	// A full replace supersedes every in-flight per-account sync.
	clear(s.accountSeq)
	s.recomputeLocked()
}

func (s *Store) normalize(txs []domain.Transaction) []domain.Transaction {
	next := make([]domain.Transaction, len(txs))
	copy(next, txs)
	for i := range next {
		next[i].Category = s.classify.Classify(next[i].Description)
		if next[i].Amount.IsNegative() {
			next[i].Amount = next[i].Amount.Abs()
		}
	}
	return next
}

// maxSeqLocked is the highest sequence number applied so far across
// full and per-account ingests.
func (s *Store) maxSeqLocked() uint64 {
	max := s.lastSeq
	for _, seq := range s.accountSeq {
		if seq > max {
			max = seq
		}
	}
	return max
}

// All returns the full collection, sorted by timestamp descending.
func (s *Store) All() []domain.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyTxs(s.base)
}

// Filtered returns the filtered view. By convention it is empty when no
// category or amount constraint is active; consumers needing "all when
// unfiltered" semantics use Effective.
func (s *Store) Filtered() []domain.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyTxs(s.filtered)
}

// Effective returns the collection aggregation operates over: the
// filtered view when non-empty, otherwise the full collection.
func (s *Store) Effective() []domain.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyTxs(s.effectiveLocked())
}

func (s *Store) effectiveLocked() []domain.Transaction {
	if len(s.filtered) > 0 {
		return s.filtered
	}
	return s.base
}

// Len reports the size of the full collection.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.base)
}

// Subscribe registers fn to run after every state change (ingest, filter
// update, clear). Subscribers are invoked outside the store lock.
func (s *Store) Subscribe(fn func()) {
	s.mu.Lock()
	s.subscriber = append(s.subscriber, fn)
	s.mu.Unlock()
}

func (s *Store) notify() {
	s.mu.RLock()
	subs := make([]func(), len(s.subscriber))
	copy(subs, s.subscriber)
	s.mu.RUnlock()
	for _, fn := range subs {
		fn()
	}
}

func copyTxs(txs []domain.Transaction) []domain.Transaction {
	out := make([]domain.Transaction, len(txs))
	copy(out, txs)
	return out
}
