package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tallyhq/ledger/internal/domain"
)

func tx(id, desc string, amount float64, txType domain.TransactionType, ts time.Time) domain.Transaction {
	return domain.Transaction{
		ID:          id,
		AccountID:   "acct-1",
		Timestamp:   ts,
		Description: desc,
		Amount:      decimal.NewFromFloat(amount),
		Currency:    "GBP",
		Type:        txType,
	}
}

func day(d int, hour int) time.Time {
	return time.Date(2025, 3, d, hour, 0, 0, 0, time.UTC)
}

func TestIngest_ReplacesNotMerges(t *testing.T) {
	s := NewStore(nil)

	s.Ingest([]domain.Transaction{
		tx("a1", "TESCO", 10, domain.TypeExpense, day(1, 9)),
		tx("a2", "UBER", 20, domain.TypeExpense, day(2, 9)),
	})
	s.Ingest([]domain.Transaction{
		tx("b1", "NETFLIX", 12, domain.TypeExpense, day(3, 9)),
	})

	all := s.All()
	require.Len(t, all, 1)
	assert.Equal(t, "b1", all[0].ID)
}

func TestIngest_SortsDescendingStable(t *testing.T) {
	s := NewStore(nil)

	same := day(2, 12)
	s.Ingest([]domain.Transaction{
		tx("old", "TESCO", 1, domain.TypeExpense, day(1, 8)),
		tx("tie-first", "UBER", 2, domain.TypeExpense, same),
		tx("new", "RENT", 3, domain.TypeExpense, day(3, 8)),
		tx("tie-second", "ASDA", 4, domain.TypeExpense, same),
	})

	all := s.All()
	require.Len(t, all, 4)
	for i := 0; i < len(all)-1; i++ {
		assert.False(t, all[i].Timestamp.Before(all[i+1].Timestamp),
			"timestamps must be non-increasing at %d", i)
	}
	// Equal timestamps keep feed order.
	assert.Equal(t, "tie-first", all[1].ID)
	assert.Equal(t, "tie-second", all[2].ID)
}

func TestIngest_ClassifiesEveryTransaction(t *testing.T) {
	s := NewStore(nil)

	s.Ingest([]domain.Transaction{
		tx("a", "TESCO STORES", 10, domain.TypeExpense, day(1, 9)),
		tx("b", "completely opaque", 5, domain.TypeExpense, day(1, 10)),
	})

	all := s.All()
	require.Len(t, all, 2)
	for _, got := range all {
		assert.NotEmpty(t, got.Category, "category must never be empty after ingest")
	}
	assert.Equal(t, "Miscellaneous", all[0].Category)
	assert.Equal(t, "Groceries", all[1].Category)
}

func TestIngestSeq_LastResponseWins(t *testing.T) {
	s := NewStore(nil)

	applied := s.IngestSeq(2, []domain.Transaction{tx("late-request", "TESCO", 1, domain.TypeExpense, day(1, 9))})
	require.True(t, applied)

	// An earlier request completing after the later one must be dropped.
	applied = s.IngestSeq(1, []domain.Transaction{tx("early-request", "UBER", 2, domain.TypeExpense, day(2, 9))})
	assert.False(t, applied)

	all := s.All()
	require.Len(t, all, 1)
	assert.Equal(t, "late-request", all[0].ID)
}

func atx(account, id string, ts time.Time) domain.Transaction {
	out := tx(id, "TESCO", 10, domain.TypeExpense, ts)
	out.AccountID = account
	return out
}

func TestIngestAccountSeq_KeepsOtherAccounts(t *testing.T) {
	s := NewStore(nil)

	require.True(t, s.IngestAccountSeq("acct-a", 1, []domain.Transaction{atx("acct-a", "a1", day(1, 9))}))
	require.True(t, s.IngestAccountSeq("acct-b", 2, []domain.Transaction{atx("acct-b", "b1", day(2, 9))}))

	all := s.All()
	require.Len(t, all, 2, "syncing one account must not evict another's transactions")
	assert.Equal(t, "b1", all[0].ID)
	assert.Equal(t, "a1", all[1].ID)

	// Re-syncing one account replaces only that account's slice.
	require.True(t, s.IngestAccountSeq("acct-a", 3, []domain.Transaction{atx("acct-a", "a2", day(3, 9))}))
	all = s.All()
	require.Len(t, all, 2)
	assert.Equal(t, "a2", all[0].ID)
	assert.Equal(t, "b1", all[1].ID)
}

func TestIngestAccountSeq_LastResponseWinsPerAccount(t *testing.T) {
	s := NewStore(nil)

	require.True(t, s.IngestAccountSeq("acct-a", 2, []domain.Transaction{atx("acct-a", "late", day(1, 9))}))

	// A stale response for the same account is dropped.
	assert.False(t, s.IngestAccountSeq("acct-a", 1, []domain.Transaction{atx("acct-a", "early", day(2, 9))}))

	// Another account's sequence numbering is independent.
	assert.True(t, s.IngestAccountSeq("acct-b", 3, []domain.Transaction{atx("acct-b", "b1", day(3, 9))}))

	all := s.All()
	require.Len(t, all, 2)
	assert.Equal(t, "b1", all[0].ID)
	assert.Equal(t, "late", all[1].ID)
}

func TestIngestSeq_FullReplaceSupersedesAccountSyncs(t *testing.T) {
	s := NewStore(nil)

	require.True(t, s.IngestAccountSeq("acct-a", 1, []domain.Transaction{atx("acct-a", "a1", day(1, 9))}))
	require.True(t, s.IngestSeq(2, []domain.Transaction{atx("acct-b", "b1", day(2, 9))}))

	// An in-flight per-account response issued before the full replace
	// must lose to it.
	assert.False(t, s.IngestAccountSeq("acct-a", 2, []domain.Transaction{atx("acct-a", "a2", day(3, 9))}))

	all := s.All()
	require.Len(t, all, 1)
	assert.Equal(t, "b1", all[0].ID)
}

func TestFiltered_EmptyWhenUnconstrained(t *testing.T) {
	s := NewStore(nil)
	s.Ingest([]domain.Transaction{
		tx("a", "TESCO", 10, domain.TypeExpense, day(1, 9)),
		tx("b", "SALARY", 100, domain.TypeIncome, day(2, 9)),
	})

	assert.Empty(t, s.Filtered(), "unconstrained filtered view is empty by convention")
	assert.Len(t, s.Effective(), 2, "aggregation falls back to the full collection")

	// Aggregates over the fallback must equal direct aggregates.
	assert.True(t, s.TotalIncome().Equal(decimal.NewFromInt(100)))
	assert.True(t, s.TotalExpenses().Equal(decimal.NewFromInt(10)))
}

func TestSetFilters_AmountRange(t *testing.T) {
	s := NewStore(nil)
	s.Ingest([]domain.Transaction{
		tx("a", "X", 10, domain.TypeExpense, day(1, 9)),
		tx("b", "Y", 50, domain.TypeExpense, day(2, 9)),
		tx("c", "Z", 100, domain.TypeExpense, day(3, 9)),
	})

	min := decimal.NewFromInt(20)
	max := decimal.NewFromInt(80)
	res := s.SetFilters(FilterCriteria{MinAmount: &min, MaxAmount: &max})
	assert.True(t, res.Changed)
	assert.False(t, res.NeedsRefetch)

	filtered := s.Filtered()
	require.Len(t, filtered, 1)
	assert.Equal(t, "b", filtered[0].ID)
	assert.True(t, s.TotalExpenses().Equal(decimal.NewFromInt(50)))
}

func TestSetFilters_Categories(t *testing.T) {
	s := NewStore(nil)
	s.Ingest([]domain.Transaction{
		tx("a", "TESCO", 10, domain.TypeExpense, day(1, 9)),
		tx("b", "UBER", 20, domain.TypeExpense, day(2, 9)),
		tx("c", "NETFLIX", 12, domain.TypeExpense, day(3, 9)),
	})

	res := s.SetFilters(FilterCriteria{Categories: []string{"Groceries", "Transport"}})
	require.True(t, res.Changed)

	filtered := s.Filtered()
	require.Len(t, filtered, 2)
	assert.Equal(t, "b", filtered[0].ID)
	assert.Equal(t, "a", filtered[1].ID)
}

func TestSetFilters_DuplicateCategoriesAreNotEqual(t *testing.T) {
	s := NewStore(nil)
	s.Ingest([]domain.Transaction{
		tx("a", "TESCO", 10, domain.TypeExpense, day(1, 9)),
		tx("b", "UBER", 20, domain.TypeExpense, day(2, 9)),
	})

	res := s.SetFilters(FilterCriteria{Categories: []string{"Groceries", "Transport"}})
	require.True(t, res.Changed)
	require.Len(t, s.Filtered(), 2)

	// Same length, different contents: must register as a change and
	// install the new criteria.
	res = s.SetFilters(FilterCriteria{Categories: []string{"Groceries", "Groceries"}})
	assert.True(t, res.Changed)

	filtered := s.Filtered()
	require.Len(t, filtered, 1)
	assert.Equal(t, "a", filtered[0].ID)
}

func TestSetFilters_DateRangeFlagsRefetch(t *testing.T) {
	s := NewStore(nil)

	start := day(1, 0)
	end := day(31, 0)
	res := s.SetFilters(FilterCriteria{Start: &start, End: &end})
	assert.True(t, res.Changed)
	assert.True(t, res.NeedsRefetch, "date filtering is server-side, engine only flags the refetch")

	// Setting identical criteria again is a no-op.
	sameStart, sameEnd := start, end
	res = s.SetFilters(FilterCriteria{Start: &sameStart, End: &sameEnd})
	assert.False(t, res.Changed)
	assert.False(t, res.NeedsRefetch)
}

func TestSetFilters_SurvivesReingest(t *testing.T) {
	s := NewStore(nil)
	min := decimal.NewFromInt(15)
	s.SetFilters(FilterCriteria{MinAmount: &min})

	s.Ingest([]domain.Transaction{
		tx("a", "X", 10, domain.TypeExpense, day(1, 9)),
		tx("b", "Y", 50, domain.TypeExpense, day(2, 9)),
	})

	filtered := s.Filtered()
	require.Len(t, filtered, 1)
	assert.Equal(t, "b", filtered[0].ID, "filtered view recomputes on ingest")
}

func TestClearFilters(t *testing.T) {
	s := NewStore(nil)
	s.Ingest([]domain.Transaction{tx("a", "TESCO", 10, domain.TypeExpense, day(1, 9))})

	min := decimal.NewFromInt(5)
	s.SetFilters(FilterCriteria{MinAmount: &min})
	require.Len(t, s.Filtered(), 1)

	s.ClearFilters()
	assert.Empty(t, s.Filtered())
	assert.Empty(t, s.Criteria().Categories)
	assert.Nil(t, s.Criteria().MinAmount)
}

func TestAggregation_Totals(t *testing.T) {
	s := NewStore(nil)
	s.Ingest([]domain.Transaction{
		tx("a", "SALARY", 100, domain.TypeIncome, day(1, 9)),
		tx("b", "TESCO", 30, domain.TypeExpense, day(2, 9)),
		tx("c", "UBER", 20, domain.TypeExpense, day(3, 9)),
		tx("d", "TRANSFER TO SAVINGS", 500, domain.TypeTransfer, day(4, 9)),
	})

	assert.True(t, s.TotalIncome().Equal(decimal.NewFromInt(100)))
	assert.True(t, s.TotalExpenses().Equal(decimal.NewFromInt(50)), "transfers are excluded from totals")

	byCat := s.SpendingByCategory()
	require.Len(t, byCat, 2)
	assert.True(t, byCat["Groceries"].Equal(decimal.NewFromInt(30)))
	assert.True(t, byCat["Transport"].Equal(decimal.NewFromInt(20)))
	_, present := byCat["Income"]
	assert.False(t, present, "income categories are absent from spending, not zero")
}

func TestAggregation_DayBucketing(t *testing.T) {
	s := NewStore(nil)
	s.Ingest([]domain.Transaction{
		tx("a", "TESCO", 10, domain.TypeExpense, day(5, 8)),
		tx("b", "ASDA", 15, domain.TypeExpense, day(5, 19)),
		tx("c", "UBER", 7, domain.TypeExpense, day(6, 9)),
	})

	byDay := s.SpendingByDay()
	require.Len(t, byDay, 2)
	key := day(5, 8).Local().Format("2006-01-02")
	assert.True(t, byDay[key].Equal(decimal.NewFromInt(25)), "same-day transactions share one bucket")

	grouped := s.TransactionsByDay()
	require.Len(t, grouped[key], 2)
	assert.Equal(t, "b", grouped[key][0].ID, "within a day, newest first")
	assert.Equal(t, "a", grouped[key][1].ID)
}

func TestAllCategories_SortedDeduped(t *testing.T) {
	s := NewStore(nil)
	s.Ingest([]domain.Transaction{
		tx("a", "TESCO", 1, domain.TypeExpense, day(1, 9)),
		tx("b", "ASDA", 2, domain.TypeExpense, day(2, 9)),
		tx("c", "LIDL", 3, domain.TypeExpense, day(3, 9)),
		tx("d", "UBER", 4, domain.TypeExpense, day(4, 9)),
		tx("e", "TAXI", 5, domain.TypeExpense, day(5, 9)),
	})

	got := s.AllCategories()
	assert.Equal(t, []string{"Groceries", "Transport"}, got)

	// Categories reflect the full collection even while a filter hides
	// some transactions.
	s.SetFilters(FilterCriteria{Categories: []string{"Transport"}})
	assert.Equal(t, []string{"Groceries", "Transport"}, s.AllCategories())
}

func TestSubscribe_NotifiedOnChange(t *testing.T) {
	s := NewStore(nil)
	var calls int
	s.Subscribe(func() { calls++ })

	s.Ingest([]domain.Transaction{tx("a", "TESCO", 1, domain.TypeExpense, day(1, 9))})
	min := decimal.NewFromInt(1)
	s.SetFilters(FilterCriteria{MinAmount: &min})
	s.ClearFilters()

	assert.Equal(t, 3, calls)

	// An unchanged filter does not notify.
	s.ClearFilters()
	assert.Equal(t, 4, calls) // ClearFilters always notifies; SetFilters no-op does not
	s.SetFilters(FilterCriteria{})
	assert.Equal(t, 4, calls)
}
