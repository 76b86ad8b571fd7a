// Package feed decodes raw backend transaction and account feeds into
// domain values. Two incompatible JSON shapes exist across backend
// versions; each is modeled as an explicit schema with its own adapter
// rather than duck-typed in place.
package feed

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/tallyhq/ledger/internal/domain"
)

// Schema identifies which backend feed shape a payload uses.
type Schema string

const (
	// SchemaAuto sniffs the envelope key to pick a schema.
	SchemaAuto Schema = "auto"
	// SchemaResults is the aggregator-native shape: {"results": [...]},
	// records carry transaction_id, timestamp and a signed amount.
	SchemaResults Schema = "results"
	// SchemaTransactions is the legacy backend shape:
	// {"transactions": [...]}, records carry id, type and an unsigned
	// amount.
	SchemaTransactions Schema = "transactions"
)

// DefaultCurrency substitutes for records that omit a currency code.
const DefaultCurrency = "GBP"

// Decoder maps raw feed payloads into domain transactions and accounts.
// Malformed records are skipped and counted, never fatal to the batch;
// only a structurally invalid envelope fails the decode.
type Decoder struct {
	currency string
	log      zerolog.Logger
}

// NewDecoder returns a decoder that substitutes defaultCurrency for
// records missing a currency code. An empty defaultCurrency falls back
// to DefaultCurrency.
func NewDecoder(defaultCurrency string, log zerolog.Logger) *Decoder {
	if defaultCurrency == "" {
		defaultCurrency = DefaultCurrency
	}
	return &Decoder{currency: defaultCurrency, log: log}
}

// Result is the outcome of decoding one transaction feed.
type Result struct {
	Transactions []domain.Transaction
	Skipped      int
	Schema       Schema
}

// DecodeTransactions parses a raw transaction feed. accountID is stamped
// onto records that do not carry their own account reference (the
// results schema scopes the feed to one account server-side).
func (d *Decoder) DecodeTransactions(data []byte, accountID string, schema Schema) (Result, error) {
	var envelope map[string]any
	if err := json.Unmarshal(data, &envelope); err != nil {
		return Result{}, fmt.Errorf("DecodeTransactions: parsing feed envelope: %w", err)
	}

	records, schema, err := selectRecords(envelope, schema)
	if err != nil {
		return Result{}, fmt.Errorf("DecodeTransactions: %w", err)
	}

	res := Result{Schema: schema, Transactions: make([]domain.Transaction, 0, len(records))}
	for i, item := range records {
		obj, ok := item.(map[string]any)
		if !ok {
			d.log.Warn().Int("index", i).Msgf("skipping feed record: element is %T, want object", item)
			res.Skipped++
			continue
		}

		var tx domain.Transaction
		switch schema {
		case SchemaResults:
			tx, err = d.decodeResultsRecord(obj, accountID)
		default:
			tx, err = d.decodeTransactionsRecord(obj, accountID)
		}
		if err != nil {
			d.log.Warn().Int("index", i).Err(err).Msg("skipping malformed feed record")
			res.Skipped++
			continue
		}
		res.Transactions = append(res.Transactions, tx)
	}

	return res, nil
}

// selectRecords resolves the schema (sniffing the envelope key for
// SchemaAuto) and returns the raw record list.
func selectRecords(envelope map[string]any, schema Schema) ([]any, Schema, error) {
	key := ""
	switch schema {
	case SchemaResults:
		key = "results"
	case SchemaTransactions:
		key = "transactions"
	case SchemaAuto, "":
		if _, ok := envelope["results"]; ok {
			key, schema = "results", SchemaResults
		} else if _, ok := envelope["transactions"]; ok {
			key, schema = "transactions", SchemaTransactions
		} else {
			return nil, schema, fmt.Errorf("feed has neither 'results' nor 'transactions' key")
		}
	default:
		return nil, schema, fmt.Errorf("unknown feed schema %q", schema)
	}

	raw, ok := envelope[key]
	if !ok {
		return nil, schema, fmt.Errorf("feed is missing %q key", key)
	}
	records, ok := raw.([]any)
	if !ok {
		return nil, schema, fmt.Errorf("feed %q is %T, want array", key, raw)
	}
	return records, schema, nil
}

// decodeResultsRecord adapts the aggregator-native shape. The feed signs
// the amount (negative for money out); the sign is folded into Type and
// the stored amount is the magnitude.
func (d *Decoder) decodeResultsRecord(obj map[string]any, accountID string) (domain.Transaction, error) {
	tsStr, err := getString(obj, "timestamp")
	if err != nil {
		return domain.Transaction{}, err
	}
	ts, err := parseTimestamp(tsStr)
	if err != nil {
		return domain.Transaction{}, err
	}

	description := getOptionalString(obj, "description")
	if description == "" {
		description = getOptionalString(obj, "merchant_name")
	}
	if description == "" {
		if meta := getObject(obj, "meta"); meta != nil {
			description = getOptionalString(meta, "provider_reference")
		}
	}
	if description == "" {
		return domain.Transaction{}, fmt.Errorf("record has no description, merchant_name or meta.provider_reference")
	}

	amount, err := getNumber(obj, "amount")
	if err != nil {
		return domain.Transaction{}, err
	}
	txType := domain.TypeIncome
	if amount.IsNegative() {
		txType = domain.TypeExpense
		amount = amount.Abs()
	}

	id := getOptionalString(obj, "transaction_id")
	if id == "" {
		id = uuid.NewString()
	}

	currency := getOptionalString(obj, "currency")
	if currency == "" {
		currency = d.currency
	}

	return domain.Transaction{
		ID:          id,
		AccountID:   accountID,
		Timestamp:   ts,
		Description: description,
		Amount:      amount,
		Currency:    currency,
		Type:        txType,
	}, nil
}

// decodeTransactionsRecord adapts the legacy backend shape, which already
// separates an unsigned amount from an explicit type tag.
func (d *Decoder) decodeTransactionsRecord(obj map[string]any, accountID string) (domain.Transaction, error) {
	tsStr, err := getString(obj, "date")
	if err != nil {
		tsStr, err = getString(obj, "timestamp")
		if err != nil {
			return domain.Transaction{}, fmt.Errorf("record has neither date nor timestamp")
		}
	}
	ts, err := parseTimestamp(tsStr)
	if err != nil {
		return domain.Transaction{}, err
	}

	description, err := getString(obj, "description")
	if err != nil {
		return domain.Transaction{}, err
	}

	amount, err := getNumber(obj, "amount")
	if err != nil {
		return domain.Transaction{}, err
	}
	if amount.IsNegative() {
		// Legacy records are unsigned by contract; tolerate a stray sign.
		amount = amount.Abs()
	}

	txType := domain.TransactionType(getOptionalString(obj, "type"))
	if !txType.Valid() {
		return domain.Transaction{}, fmt.Errorf("record has invalid type %q", txType)
	}

	id := getOptionalString(obj, "id")
	if id == "" {
		id = getOptionalString(obj, "transaction_id")
	}
	if id == "" {
		id = uuid.NewString()
	}

	if acct := getOptionalString(obj, "account_id"); acct != "" {
		accountID = acct
	}

	currency := getOptionalString(obj, "currency")
	if currency == "" {
		currency = d.currency
	}

	return domain.Transaction{
		ID:          id,
		AccountID:   accountID,
		Timestamp:   ts,
		Description: description,
		Amount:      amount,
		Currency:    currency,
		Type:        txType,
	}, nil
}

// DecodeAccounts parses a raw account feed ({"results": [...]} or a bare
// array). Balance is zero unless present; callers fetch balances
// separately and overlay them.
func (d *Decoder) DecodeAccounts(data []byte) ([]domain.BankAccount, int, error) {
	var records []any

	var envelope map[string]any
	if err := json.Unmarshal(data, &envelope); err == nil {
		raw, ok := envelope["results"]
		if !ok {
			return nil, 0, fmt.Errorf("DecodeAccounts: feed is missing 'results' key")
		}
		records, ok = raw.([]any)
		if !ok {
			return nil, 0, fmt.Errorf("DecodeAccounts: 'results' is %T, want array", raw)
		}
	} else if err := json.Unmarshal(data, &records); err != nil {
		return nil, 0, fmt.Errorf("DecodeAccounts: parsing feed: %w", err)
	}

	accounts := make([]domain.BankAccount, 0, len(records))
	skipped := 0
	for i, item := range records {
		obj, ok := item.(map[string]any)
		if !ok {
			d.log.Warn().Int("index", i).Msgf("skipping account record: element is %T, want object", item)
			skipped++
			continue
		}
		acct, err := d.decodeAccountRecord(obj)
		if err != nil {
			d.log.Warn().Int("index", i).Err(err).Msg("skipping malformed account record")
			skipped++
			continue
		}
		accounts = append(accounts, acct)
	}
	return accounts, skipped, nil
}

func (d *Decoder) decodeAccountRecord(obj map[string]any) (domain.BankAccount, error) {
	id := getOptionalString(obj, "account_id")
	if id == "" {
		id = getOptionalString(obj, "id")
	}
	if id == "" {
		return domain.BankAccount{}, fmt.Errorf("account record has no id")
	}

	name := getOptionalString(obj, "display_name")
	if name == "" {
		name = getOptionalString(obj, "name")
	}

	balance := decimal.Zero
	if b, ok := getOptionalNumber(obj, "balance"); ok {
		balance = b
	}

	currency := getOptionalString(obj, "currency")
	if currency == "" {
		currency = d.currency
	}

	acct := domain.BankAccount{
		ID:       id,
		Name:     name,
		Type:     getOptionalString(obj, "account_type"),
		Balance:  balance,
		Currency: currency,
	}
	if num := getObject(obj, "account_number"); num != nil {
		acct.AccountNumber = getOptionalString(num, "number")
		acct.SortCode = getOptionalString(num, "sort_code")
	}
	return acct, nil
}
