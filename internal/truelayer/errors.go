package truelayer

import "fmt"

// Kind classifies sync client failures so callers can branch on the
// failure class instead of string-matching or catching exceptions.
type Kind string

const (
	// KindAuth covers invalid credentials and 401s that survive a
	// token refresh.
	KindAuth Kind = "auth"
	// KindRateLimit is a 429 from the aggregator.
	KindRateLimit Kind = "rate_limit"
	// KindNetwork is a transport-level failure (DNS, timeout, ...).
	KindNetwork Kind = "network"
	// KindDecode is an unparseable response body.
	KindDecode Kind = "decode"
	// KindAPI is any other non-2xx API response.
	KindAPI Kind = "api"
)

// Error is the typed failure returned by every client operation.
type Error struct {
	Kind   Kind
	Op     string
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("truelayer: %s: %s (status %d): %v", e.Op, e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("truelayer: %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
