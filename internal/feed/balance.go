package feed

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// DecodeBalance parses a raw balance feed ({"results": [{"current":
// ...}]}) and returns the current balance. A balance feed is tiny and
// fetched per account, so unlike transactions it fails as a whole.
func (d *Decoder) DecodeBalance(data []byte) (decimal.Decimal, error) {
	var envelope map[string]any
	if err := json.Unmarshal(data, &envelope); err != nil {
		return decimal.Zero, fmt.Errorf("DecodeBalance: parsing feed: %w", err)
	}
	raw, ok := envelope["results"]
	if !ok {
		return decimal.Zero, fmt.Errorf("DecodeBalance: feed is missing 'results' key")
	}
	records, ok := raw.([]any)
	if !ok || len(records) == 0 {
		return decimal.Zero, fmt.Errorf("DecodeBalance: 'results' is empty or not an array")
	}
	obj, ok := records[0].(map[string]any)
	if !ok {
		return decimal.Zero, fmt.Errorf("DecodeBalance: balance record is %T, want object", records[0])
	}
	current, err := getNumber(obj, "current")
	if err != nil {
		return decimal.Zero, fmt.Errorf("DecodeBalance: %w", err)
	}
	return current, nil
}
