package ledger

import (
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tallyhq/ledger/internal/domain"
)

// ErrAccountNotFound is returned when an account id is unknown.
var ErrAccountNotFound = errors.New("account not found")

// AccountStore holds the linked bank accounts. Accounts reference no
// transactions; the relation is derived by filtering the transaction
// store on AccountID.
type AccountStore struct {
	mu         sync.RWMutex
	accounts   []domain.BankAccount
	subscriber []func()
}

// NewAccountStore creates an empty account store.
func NewAccountStore() *AccountStore {
	return &AccountStore{}
}

// Replace swaps the account collection wholesale, mirroring the
// transaction store's fetch-replaces semantics.
func (s *AccountStore) Replace(accounts []domain.BankAccount) {
	next := make([]domain.BankAccount, len(accounts))
	copy(next, accounts)

	s.mu.Lock()
	s.accounts = next
	s.mu.Unlock()
	s.notify()
}

// Accounts returns a copy of the account collection.
func (s *AccountStore) Accounts() []domain.BankAccount {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.BankAccount, len(s.accounts))
	copy(out, s.accounts)
	return out
}

// Get returns the account with the given id.
func (s *AccountStore) Get(id string) (domain.BankAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.accounts {
		if a.ID == id {
			return a, nil
		}
	}
	return domain.BankAccount{}, ErrAccountNotFound
}

// Disconnect removes the account from the collection. Its transactions
// are left in the transaction store untouched; they only disappear on
// the next full ingest.
func (s *AccountStore) Disconnect(id string) error {
	s.mu.Lock()
	idx := -1
	for i, a := range s.accounts {
		if a.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return ErrAccountNotFound
	}
	s.accounts = append(s.accounts[:idx], s.accounts[idx+1:]...)
	s.mu.Unlock()
	s.notify()
	return nil
}

// MarkSynced stamps the account's LastSynced time and, when balance is
// non-nil, overlays a freshly fetched balance.
func (s *AccountStore) MarkSynced(id string, at time.Time, balance *decimal.Decimal) error {
	s.mu.Lock()
	for i := range s.accounts {
		if s.accounts[i].ID != id {
			continue
		}
		s.accounts[i].LastSynced = at
		if balance != nil {
			s.accounts[i].Balance = *balance
		}
		s.mu.Unlock()
		s.notify()
		return nil
	}
	s.mu.Unlock()
	return ErrAccountNotFound
}

// TotalBalance sums the balances of every linked account.
func (s *AccountStore) TotalBalance() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := decimal.Zero
	for _, a := range s.accounts {
		total = total.Add(a.Balance)
	}
	return total
}

// Subscribe registers fn to run after every account change.
func (s *AccountStore) Subscribe(fn func()) {
	s.mu.Lock()
	s.subscriber = append(s.subscriber, fn)
	s.mu.Unlock()
}

func (s *AccountStore) notify() {
	s.mu.RLock()
	subs := make([]func(), len(s.subscriber))
	copy(subs, s.subscriber)
	s.mu.RUnlock()
	for _, fn := range subs {
		fn()
	}
}
