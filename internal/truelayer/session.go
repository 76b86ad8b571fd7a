package truelayer

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"
)

// Session wraps a Client with a live token pair for one bank
// connection. Every data call carries the bearer token and retries
// exactly once after a 401 by refreshing; a second 401 is surfaced as a
// KindAuth error rather than retried again.
type Session struct {
	client *Client

	mu    sync.Mutex
	token Token
}

// NewSession binds a token pair to the client.
func NewSession(client *Client, token Token) *Session {
	return &Session{client: client, token: token}
}

// Token returns the current token pair (it changes after refreshes).
func (s *Session) Token() Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func (s *Session) accessToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token.AccessToken
}

func (s *Session) refresh(ctx context.Context, op string) error {
	s.mu.Lock()
	refreshToken := s.token.RefreshToken
	s.mu.Unlock()

	if refreshToken == "" {
		return &Error{Kind: KindAuth, Op: op, Err: fmt.Errorf("access token rejected and no refresh token held")}
	}
	token, err := s.client.Refresh(ctx, refreshToken)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
	return nil
}

// get fetches path with the bearer token, refreshing and retrying once
// on 401. A token already past its expiry is refreshed up front so the
// request is not wasted on a guaranteed 401.
func (s *Session) get(ctx context.Context, op, path string, query url.Values) ([]byte, error) {
	if token := s.Token(); token.Expired() && token.RefreshToken != "" {
		if err := s.refresh(ctx, op); err != nil {
			return nil, err
		}
	}

	body, status, err := s.client.get(ctx, s.accessToken(), path, query)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Op: op, Err: err}
	}

	if status == http.StatusUnauthorized {
		s.client.log.Debug().Str("op", op).Msg("access token rejected, refreshing")
		if err := s.refresh(ctx, op); err != nil {
			return nil, err
		}
		body, status, err = s.client.get(ctx, s.accessToken(), path, query)
		if err != nil {
			return nil, &Error{Kind: KindNetwork, Op: op, Err: err}
		}
	}

	switch {
	case status == http.StatusOK:
		return body, nil
	case status == http.StatusUnauthorized:
		return nil, &Error{Kind: KindAuth, Op: op, Status: status, Err: fmt.Errorf("unauthorized after token refresh")}
	case status == http.StatusTooManyRequests:
		return nil, &Error{Kind: KindRateLimit, Op: op, Status: status, Err: fmt.Errorf("rate limited")}
	default:
		return nil, &Error{Kind: KindAPI, Op: op, Status: status, Err: fmt.Errorf("unexpected status")}
	}
}

// Accounts fetches the raw account feed for this connection.
func (s *Session) Accounts(ctx context.Context) ([]byte, error) {
	return s.get(ctx, "Accounts", "/data/v1/accounts", nil)
}

// Balance fetches the raw balance feed for one account.
func (s *Session) Balance(ctx context.Context, accountID string) ([]byte, error) {
	path := fmt.Sprintf("/data/v1/accounts/%s/balance", url.PathEscape(accountID))
	return s.get(ctx, "Balance", path, nil)
}

// Transactions fetches the raw transaction feed for one account within
// the given date window. Date filtering is server-side: the returned
// feed already satisfies [from, to].
func (s *Session) Transactions(ctx context.Context, accountID string, from, to time.Time) ([]byte, error) {
	path := fmt.Sprintf("/data/v1/accounts/%s/transactions", url.PathEscape(accountID))
	query := url.Values{
		"from": {from.Format("2006-01-02")},
		"to":   {to.Format("2006-01-02")},
	}
	return s.get(ctx, "Transactions", path, query)
}
