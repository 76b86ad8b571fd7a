package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/tallyhq/ledger/internal/budget"
	"github.com/tallyhq/ledger/internal/classifier"
	"github.com/tallyhq/ledger/internal/config"
	"github.com/tallyhq/ledger/internal/feed"
	"github.com/tallyhq/ledger/internal/ledger"
	"github.com/tallyhq/ledger/internal/logger"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var (
	flagConfig   string
	flagSchema   string
	flagCurrency string

	flagBudgets   []string
	flagThreshold string
	flagForecast  int
)

var rootCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Inspect and aggregate bank transaction feeds",
	Long: `Ledger is a tool for decoding bank transaction feeds, categorizing
transactions with keyword rules, and summarizing spending.`,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Println("Use --help for available commands")
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to config file")

	loadCmd.Flags().StringVar(&flagSchema, "schema", string(feed.SchemaAuto), "feed schema: auto, results or transactions")
	loadCmd.Flags().StringVar(&flagCurrency, "currency", "", "currency for records that carry none")
	rootCmd.AddCommand(loadCmd)

	rootCmd.AddCommand(classifyCmd)

	budgetCmd.Flags().StringArrayVar(&flagBudgets, "set", nil, "budget line as Category=Amount (repeatable)")
	budgetCmd.Flags().StringVar(&flagThreshold, "threshold", "90", "percent-used value treated as close to the limit")
	budgetCmd.Flags().IntVar(&flagForecast, "forecast", 0, "also forecast monthly spending over the last N months")
	rootCmd.AddCommand(budgetCmd)
}

func newClassifier() (*classifier.Classifier, *config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, nil, err
	}
	rules := make([]classifier.Rule, 0, len(cfg.Categories))
	for _, r := range cfg.Categories {
		rules = append(rules, classifier.Rule{Category: r.Category, Keywords: r.Keywords})
	}
	return classifier.New(rules...), cfg, nil
}

func loadFeed(path string) (*ledger.Store, feed.Result, error) {
	c, cfg, err := newClassifier()
	if err != nil {
		return nil, feed.Result{}, err
	}
	store := ledger.NewStore(c)

	currency := flagCurrency
	if currency == "" {
		currency = cfg.DefaultCurrency
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, feed.Result{}, err
	}

	decoder := feed.NewDecoder(currency, logger.New("warn"))
	res, err := decoder.DecodeTransactions(data, "", feed.Schema(flagSchema))
	if err != nil {
		return nil, feed.Result{}, err
	}

	store.Ingest(res.Transactions)
	return store, res, nil
}

var loadCmd = &cobra.Command{
	Use:   "load <feed.json>",
	Short: "Decode a transaction feed and print a summary",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, res, err := loadFeed(args[0])
		if err != nil {
			return err
		}

		cmd.Printf("Loaded %d transactions (%s schema)", store.Len(), res.Schema)
		if res.Skipped > 0 {
			cmd.Printf(", skipped %d malformed records", res.Skipped)
		}
		cmd.Println()

		cmd.Printf("Income:   %s\n", store.TotalIncome().StringFixed(2))
		cmd.Printf("Expenses: %s\n", store.TotalExpenses().StringFixed(2))

		byCategory := store.SpendingByCategory()
		categories := make([]string, 0, len(byCategory))
		for c := range byCategory {
			categories = append(categories, c)
		}
		sort.Strings(categories)

		cmd.Println("\nSpending by category:")
		for _, c := range categories {
			cmd.Printf("  %-20s %12s\n", c, byCategory[c].StringFixed(2))
		}
		return nil
	},
}

var classifyCmd = &cobra.Command{
	Use:   "classify <description>...",
	Short: "Print the category for one or more descriptions",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, _, err := newClassifier()
		if err != nil {
			return err
		}

		for _, description := range args {
			cmd.Printf("%-40s %s\n", description, c.Classify(description))
		}
		return nil
	},
}

var budgetCmd = &cobra.Command{
	Use:   "budget <feed.json>",
	Short: "Compare feed spending against per-category budgets",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		budgets := make(map[string]decimal.Decimal, len(flagBudgets))
		for _, raw := range flagBudgets {
			category, amount, ok := strings.Cut(raw, "=")
			if !ok {
				return fmt.Errorf("invalid budget %q, want Category=Amount", raw)
			}
			d, err := decimal.NewFromString(amount)
			if err != nil {
				return fmt.Errorf("invalid budget amount %q: %w", amount, err)
			}
			budgets[category] = d
		}
		if len(budgets) == 0 {
			return fmt.Errorf("no budgets given, use --set Category=Amount")
		}
		threshold, err := decimal.NewFromString(flagThreshold)
		if err != nil {
			return fmt.Errorf("invalid threshold %q: %w", flagThreshold, err)
		}

		store, _, err := loadFeed(args[0])
		if err != nil {
			return err
		}
		txs := store.All()

		lines := budget.VsActual(txs, budgets)
		cmd.Printf("%-20s %10s %10s %10s %8s\n", "Category", "Budget", "Spent", "Remaining", "Used%")
		for _, line := range lines {
			cmd.Printf("%-20s %10s %10s %10s %7s%%\n",
				line.Category,
				line.Budget.StringFixed(2),
				line.Spent.StringFixed(2),
				line.Remaining.StringFixed(2),
				line.PercentUsed.StringFixed(1),
			)
		}

		adjustments := budget.SuggestAdjustments(lines, threshold)
		if len(adjustments) > 0 {
			cmd.Println("\nSuggestions:")
			for _, adj := range adjustments {
				if adj.Amount.IsZero() {
					cmd.Printf("  %-20s %s\n", adj.Category, adj.Suggestion)
				} else {
					cmd.Printf("  %-20s %s (%s)\n", adj.Category, adj.Suggestion, adj.Amount.StringFixed(2))
				}
			}
		}

		if flagForecast > 0 {
			forecast := budget.ForecastMonthly(txs, flagForecast)
			categories := make([]string, 0, len(forecast))
			for c := range forecast {
				categories = append(categories, c)
			}
			sort.Strings(categories)

			cmd.Printf("\nForecast monthly spending (last %d months):\n", flagForecast)
			for _, c := range categories {
				cmd.Printf("  %-20s %12s\n", c, forecast[c].StringFixed(2))
			}
		}
		return nil
	},
}
