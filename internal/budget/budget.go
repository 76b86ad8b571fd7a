// Package budget compares spending against per-category budgets and
// projects future monthly expenses from history.
package budget

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/tallyhq/ledger/internal/domain"
)

// Line is one category's budget-vs-actual comparison.
type Line struct {
	Category    string          `json:"category"`
	Budget      decimal.Decimal `json:"budget"`
	Spent       decimal.Decimal `json:"spent"`
	Remaining   decimal.Decimal `json:"remaining"`
	PercentUsed decimal.Decimal `json:"percent_used"`
}

// Suggestion labels for budget adjustments.
const (
	SuggestIncrease = "increase budget"
	SuggestMonitor  = "monitor closely"
	SuggestDecrease = "consider decreasing"
)

// Adjustment is a suggested budget change for one category.
type Adjustment struct {
	Line
	Suggestion string          `json:"suggestion"`
	Amount     decimal.Decimal `json:"amount"`
}

var hundred = decimal.NewFromInt(100)

// VsActual compares budgets against actual expense-typed spending in
// txs. Categories without a budget are ignored; budgeted categories
// with no spending appear with zero spent. Lines are sorted by percent
// used descending, ties by category name.
func VsActual(txs []domain.Transaction, budgets map[string]decimal.Decimal) []Line {
	if len(budgets) == 0 {
		return nil
	}

	spent := make(map[string]decimal.Decimal)
	for _, tx := range txs {
		if tx.Type != domain.TypeExpense {
			continue
		}
		spent[tx.Category] = spent[tx.Category].Add(tx.Amount)
	}

	lines := make([]Line, 0, len(budgets))
	for category, budget := range budgets {
		line := Line{
			Category:  category,
			Budget:    budget,
			Spent:     spent[category],
			Remaining: budget.Sub(spent[category]),
		}
		if budget.IsPositive() {
			line.PercentUsed = line.Spent.Div(budget).Mul(hundred)
		}
		lines = append(lines, line)
	}

	sort.Slice(lines, func(i, j int) bool {
		if !lines[i].PercentUsed.Equal(lines[j].PercentUsed) {
			return lines[i].PercentUsed.GreaterThan(lines[j].PercentUsed)
		}
		return lines[i].Category < lines[j].Category
	})
	return lines
}

// ForecastMonthly projects per-category monthly spending as the mean of
// each category's monthly expense totals over the most recent months
// calendar months present in txs.
func ForecastMonthly(txs []domain.Transaction, months int) map[string]decimal.Decimal {
	if months <= 0 {
		return nil
	}

	// category -> month ("2006-01") -> total
	perMonth := make(map[string]map[string]decimal.Decimal)
	monthSet := make(map[string]struct{})
	for _, tx := range txs {
		if tx.Type != domain.TypeExpense {
			continue
		}
		month := tx.Timestamp.Local().Format("2006-01")
		monthSet[month] = struct{}{}
		if perMonth[tx.Category] == nil {
			perMonth[tx.Category] = make(map[string]decimal.Decimal)
		}
		perMonth[tx.Category][month] = perMonth[tx.Category][month].Add(tx.Amount)
	}
	if len(monthSet) == 0 {
		return map[string]decimal.Decimal{}
	}

	allMonths := make([]string, 0, len(monthSet))
	for m := range monthSet {
		allMonths = append(allMonths, m)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(allMonths)))
	if len(allMonths) > months {
		allMonths = allMonths[:months]
	}
	recent := make(map[string]struct{}, len(allMonths))
	for _, m := range allMonths {
		recent[m] = struct{}{}
	}

	forecast := make(map[string]decimal.Decimal)
	for category, byMonth := range perMonth {
		total := decimal.Zero
		n := 0
		for month, sum := range byMonth {
			if _, ok := recent[month]; !ok {
				continue
			}
			total = total.Add(sum)
			n++
		}
		if n > 0 {
			forecast[category] = total.Div(decimal.NewFromInt(int64(n)))
		}
	}
	return forecast
}

// SuggestAdjustments flags categories that are over budget, close to
// the limit, or well under it. threshold is the percent-used value
// treated as "close" (90 means flag above 90%); spending under half the
// threshold suggests freeing up budget.
func SuggestAdjustments(lines []Line, threshold decimal.Decimal) []Adjustment {
	half := threshold.Div(decimal.NewFromInt(2))

	var out []Adjustment
	for _, line := range lines {
		switch {
		case line.PercentUsed.GreaterThan(hundred):
			// Over budget: raise by the deficit plus 10%.
			out = append(out, Adjustment{
				Line:       line,
				Suggestion: SuggestIncrease,
				Amount:     line.Spent.Sub(line.Budget).Mul(decimal.RequireFromString("1.1")),
			})
		case line.PercentUsed.GreaterThan(threshold):
			out = append(out, Adjustment{Line: line, Suggestion: SuggestMonitor})
		case line.PercentUsed.LessThan(half):
			// Well under: free up half the unused portion.
			out = append(out, Adjustment{
				Line:       line,
				Suggestion: SuggestDecrease,
				Amount:     line.Budget.Sub(line.Spent).Div(decimal.NewFromInt(2)).Neg(),
			})
		}
	}
	return out
}
