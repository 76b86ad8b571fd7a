package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// FilterCriteria is a snapshot of the active constraints. A nil or empty
// field means "no constraint on that dimension". Replacing criteria is
// atomic from the consumer's point of view: the filtered view is
// recomputed wholesale, never patched incrementally.
type FilterCriteria struct {
	// Start and End bound the date range. Date filtering happens
	// server-side at fetch time; the engine only detects changes and
	// flags the need to refetch.
	Start *time.Time
	End   *time.Time

	Categories []string

	MinAmount *decimal.Decimal
	MaxAmount *decimal.Decimal
}

// hasLocalConstraint reports whether any client-side dimension
// (category, amount) is constrained.
func (c FilterCriteria) hasLocalConstraint() bool {
	return len(c.Categories) > 0 || c.MinAmount != nil || c.MaxAmount != nil
}

// ChangeResult reports what SetFilters changed. NeedsRefetch means the
// date range moved and the caller must fetch a fresh base collection
// from the sync client; the engine itself never fetches.
type ChangeResult struct {
	Changed      bool `json:"changed"`
	NeedsRefetch bool `json:"needs_refetch"`
}

// SetFilters replaces the active criteria. A date-range change flags
// NeedsRefetch; category and amount changes recompute the filtered
// subset synchronously from the current base collection.
func (s *Store) SetFilters(criteria FilterCriteria) ChangeResult {
	s.mu.Lock()

	dateChanged := !timePtrEqual(s.criteria.Start, criteria.Start) ||
		!timePtrEqual(s.criteria.End, criteria.End)
	localChanged := !stringSetEqual(s.criteria.Categories, criteria.Categories) ||
		!decimalPtrEqual(s.criteria.MinAmount, criteria.MinAmount) ||
		!decimalPtrEqual(s.criteria.MaxAmount, criteria.MaxAmount)

	if !dateChanged && !localChanged {
		s.mu.Unlock()
		return ChangeResult{}
	}

	s.criteria = criteria
	s.recomputeLocked()
	s.mu.Unlock()
	s.notify()

	return ChangeResult{Changed: true, NeedsRefetch: dateChanged}
}

// ClearFilters resets every dimension to "no constraint" and empties the
// filtered view. The caller is expected to trigger a full reload since
// any server-side date window is gone too.
func (s *Store) ClearFilters() {
	s.mu.Lock()
	s.criteria = FilterCriteria{}
	s.recomputeLocked()
	s.mu.Unlock()
	s.notify()
}

// Criteria returns the active filter criteria.
func (s *Store) Criteria() FilterCriteria {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c := s.criteria
	c.Categories = append([]string(nil), s.criteria.Categories...)
	return c
}

// recomputeLocked rebuilds the filtered view. With no local constraint
// active the view is deliberately empty, not "equal to all": consumers
// fall back to the full collection themselves (see Effective). The base
// collection already satisfies any date range, so dates are not
// re-checked here.
func (s *Store) recomputeLocked() {
	if !s.criteria.hasLocalConstraint() {
		s.filtered = nil
		return
	}

	categories := make(map[string]struct{}, len(s.criteria.Categories))
	for _, c := range s.criteria.Categories {
		categories[c] = struct{}{}
	}

	s.filtered = s.filtered[:0]
	for _, tx := range s.base {
		if len(categories) > 0 {
			if _, ok := categories[tx.Category]; !ok {
				continue
			}
		}
		if s.criteria.MinAmount != nil && tx.Amount.LessThan(*s.criteria.MinAmount) {
			continue
		}
		if s.criteria.MaxAmount != nil && tx.Amount.GreaterThan(*s.criteria.MaxAmount) {
			continue
		}
		s.filtered = append(s.filtered, tx)
	}
}

func timePtrEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func decimalPtrEqual(a, b *decimal.Decimal) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

// stringSetEqual compares two category lists as multisets so inputs
// with duplicates cannot read as equal to distinct lists of the same
// length.
func stringSetEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	counts := make(map[string]int, len(a))
	for _, s := range a {
		counts[s]++
	}
	for _, s := range b {
		counts[s]--
		if counts[s] < 0 {
			return false
		}
	}
	return true
}
