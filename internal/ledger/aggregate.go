package ledger

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/tallyhq/ledger/internal/domain"
)

// Aggregate queries. All of them operate over the effective collection
// (filtered view if non-empty, else the full set) except AllCategories,
// which always reflects the full collection. Transfers are excluded from
// income and expense totals.

// TotalIncome sums the amounts of income-typed transactions.
func (s *Store) TotalIncome() decimal.Decimal {
	return s.totalByType(domain.TypeIncome)
}

// TotalExpenses sums the amounts of expense-typed transactions.
func (s *Store) TotalExpenses() decimal.Decimal {
	return s.totalByType(domain.TypeExpense)
}

func (s *Store) totalByType(t domain.TransactionType) decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := decimal.Zero
	for _, tx := range s.effectiveLocked() {
		if tx.Type == t {
			total = total.Add(tx.Amount)
		}
	}
	return total
}

// SpendingByCategory maps each category to its summed expense amount.
// Categories with no expense transactions are absent, not zero-valued.
func (s *Store) SpendingByCategory() map[string]decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]decimal.Decimal)
	for _, tx := range s.effectiveLocked() {
		if tx.Type != domain.TypeExpense {
			continue
		}
		out[tx.Category] = out[tx.Category].Add(tx.Amount)
	}
	return out
}

// SpendingByDay maps each calendar day (local date, ISO format) to its
// summed expense amount.
func (s *Store) SpendingByDay() map[string]decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]decimal.Decimal)
	for _, tx := range s.effectiveLocked() {
		if tx.Type != domain.TypeExpense {
			continue
		}
		day := tx.Day()
		out[day] = out[day].Add(tx.Amount)
	}
	return out
}

// TransactionsByDay groups the effective collection by ISO date string.
// Each day's list keeps the store order, i.e. timestamp descending.
func (s *Store) TransactionsByDay() map[string][]domain.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string][]domain.Transaction)
	for _, tx := range s.effectiveLocked() {
		day := tx.Day()
		out[day] = append(out[day], tx)
	}
	return out
}

// AllCategories returns the sorted, deduplicated categories present
// across the full (unfiltered) collection.
func (s *Store) AllCategories() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, tx := range s.base {
		seen[tx.Category] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
