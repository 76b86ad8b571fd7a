// Package truelayer is the sync client: it fetches raw account and
// transaction feeds from the aggregator API and handles the
// bearer-token refresh-and-retry contract. It performs no ingestion;
// the feed package adapts its raw JSON into domain values.
package truelayer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Default provider and scope sets requested during the auth flow.
var (
	DefaultProviders = []string{"uk-ob-all", "uk-oauth-all"}
	DefaultScopes    = []string{"info", "accounts", "balance", "cards", "transactions", "offline_access"}
)

// Config holds the aggregator endpoints and app credentials.
type Config struct {
	AuthBaseURL  string
	APIBaseURL   string
	ClientID     string
	ClientSecret string

	// HTTPClient overrides the default client, mainly for tests.
	HTTPClient *http.Client
}

// Token is an issued access/refresh token pair.
type Token struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	Expiry       time.Time `json:"expiry"`
}

// Expired reports whether the access token is past its expiry.
func (t Token) Expired() bool {
	return !t.Expiry.IsZero() && !t.Expiry.After(time.Now())
}

// Client talks to the aggregator's auth and data APIs.
type Client struct {
	authBase     string
	apiBase      string
	clientID     string
	clientSecret string
	http         *http.Client
	log          zerolog.Logger
}

// NewClient creates a sync client from the given config.
func NewClient(cfg Config, log zerolog.Logger) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		authBase:     strings.TrimRight(cfg.AuthBaseURL, "/"),
		apiBase:      strings.TrimRight(cfg.APIBaseURL, "/"),
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		http:         httpClient,
		log:          log,
	}
}

// AuthURL builds the link the user follows to connect a bank. Empty
// providers or scopes fall back to the defaults.
func (c *Client) AuthURL(redirectURI, state string, providers, scopes []string) string {
	if len(providers) == 0 {
		providers = DefaultProviders
	}
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}
	params := url.Values{
		"response_type": {"code"},
		"client_id":     {c.clientID},
		"redirect_uri":  {redirectURI},
		"scope":         {strings.Join(scopes, " ")},
		"providers":     {strings.Join(providers, " ")},
		"state":         {state},
	}
	return c.authBase + "/?" + params.Encode()
}

// ExchangeCode trades an authorization code for a token pair.
func (c *Client) ExchangeCode(ctx context.Context, code, redirectURI string) (Token, error) {
	return c.tokenRequest(ctx, "ExchangeCode", url.Values{
		"grant_type":    {"authorization_code"},
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
		"redirect_uri":  {redirectURI},
		"code":          {code},
	})
}

// Refresh trades a refresh token for a fresh token pair.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (Token, error) {
	return c.tokenRequest(ctx, "Refresh", url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
		"refresh_token": {refreshToken},
	})
}

func (c *Client) tokenRequest(ctx context.Context, op string, form url.Values) (Token, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.authBase+"/connect/token", strings.NewReader(form.Encode()))
	if err != nil {
		return Token{}, &Error{Kind: KindNetwork, Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return Token{}, &Error{Kind: KindNetwork, Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Token{}, &Error{Kind: KindNetwork, Op: op, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		kind := KindAPI
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusBadRequest {
			kind = KindAuth
		}
		return Token{}, &Error{Kind: kind, Op: op, Status: resp.StatusCode,
			Err: fmt.Errorf("token endpoint: %s", strings.TrimSpace(string(body)))}
	}

	var payload struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return Token{}, &Error{Kind: KindDecode, Op: op, Err: err}
	}
	if payload.AccessToken == "" {
		return Token{}, &Error{Kind: KindDecode, Op: op, Err: errors.New("token response missing access_token")}
	}

	token := Token{AccessToken: payload.AccessToken, RefreshToken: payload.RefreshToken}
	if payload.ExpiresIn > 0 {
		token.Expiry = time.Now().Add(time.Duration(payload.ExpiresIn) * time.Second)
	}
	c.log.Debug().Str("op", op).Time("expiry", token.Expiry).Msg("token issued")
	return token, nil
}

// get performs an authenticated GET against the data API and returns the
// raw body. 401 handling lives in Session.
func (c *Client) get(ctx context.Context, accessToken, path string, query url.Values) ([]byte, int, error) {
	u := c.apiBase + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, err
	}
	return body, resp.StatusCode, nil
}
