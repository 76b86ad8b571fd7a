// Package classifier assigns spending categories to transaction
// descriptions using an ordered keyword rule table.
package classifier

import "strings"

// Fallback is returned when no rule matches.
const Fallback = "Miscellaneous"

// Rule maps a set of keywords to a category. Rules are evaluated in
// order and the first rule with a matching keyword wins, so priority is
// positional, not score-based.
type Rule struct {
	Category string
	Keywords []string
}

// DefaultRules is the built-in rule table. Order matters: a description
// containing both "salary" and "tesco" is Income, not Groceries.
var DefaultRules = []Rule{
	{Category: "Income", Keywords: []string{"salary", "wage", "income"}},
	{Category: "Groceries", Keywords: []string{"sainsbury", "tesco", "asda", "aldi", "lidl", "morrisons", "waitrose", "grocery"}},
	{Category: "Transport", Keywords: []string{"uber", "taxi", "bus", "transport", "train", "rail"}},
	{Category: "Dining", Keywords: []string{"restaurant", "cafe", "coffee", "pub", "bar", "takeaway"}},
	{Category: "Housing", Keywords: []string{"rent", "mortgage", "council tax", "water", "electric", "gas", "energy"}},
	{Category: "Shopping", Keywords: []string{"amazon", "ebay", "shops"}},
	{Category: "Entertainment", Keywords: []string{"netflix", "spotify", "cinema", "entertainment"}},
	{Category: "Health", Keywords: []string{"gym", "fitness", "health"}},
	{Category: "Healthcare", Keywords: []string{"doctor", "dentist", "pharmacy", "medical"}},
	{Category: "Utilities", Keywords: []string{"phone", "mobile", "broadband", "internet"}},
	{Category: "Insurance", Keywords: []string{"insurance", "premium"}},
	{Category: "Transfer", Keywords: []string{"transfer"}},
}

// Classifier resolves descriptions to category labels. The zero value is
// not usable; construct with New.
type Classifier struct {
	rules []Rule
}

// New returns a classifier over the given rules, or DefaultRules when
// none are supplied. Keywords are matched lower-cased, so rules may be
// written in any case.
func New(rules ...Rule) *Classifier {
	if len(rules) == 0 {
		rules = DefaultRules
	}
	normalized := make([]Rule, 0, len(rules))
	for _, r := range rules {
		keywords := make([]string, len(r.Keywords))
		for i, k := range r.Keywords {
			keywords[i] = strings.ToLower(k)
		}
		normalized = append(normalized, Rule{Category: r.Category, Keywords: keywords})
	}
	return &Classifier{rules: normalized}
}

// Classify maps a free-text description to a category label. It is pure
// and total: the same input always yields the same label, unmatched
// input yields Fallback, and it never fails.
func (c *Classifier) Classify(description string) string {
	desc := strings.ToLower(description)
	for _, r := range c.rules {
		for _, keyword := range r.Keywords {
			if strings.Contains(desc, keyword) {
				return r.Category
			}
		}
	}
	return Fallback
}
