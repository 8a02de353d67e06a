package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"bank-dashboard-client-go/internal/models"

	"go.uber.org/zap"
	"golang.org/x/net/http2"
)

// TokenSource supplies the current bearer token for authenticated
// calls. It returns the empty string when no session is active; the
// session store remains the only writer of the credential.
type TokenSource func() string

// Client talks to the banking API over HTTPS with JSON bodies. Login
// and Signup are the only unauthenticated calls; everything else sends
// an Authorization bearer header from the TokenSource.
type Client struct {
	baseURL string
	http    *http.Client
	token   TokenSource
}

func NewClient(cfg models.APIConfig, token TokenSource) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("api base url cannot be empty")
	}
	if token == nil {
		return nil, fmt.Errorf("token source cannot be nil")
	}

	httpClient, err := createCustomHttpClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("unable to create custom http client: %w", err)
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    httpClient,
		token:   token,
	}, nil
}

func createCustomHttpClient(cfg models.APIConfig) (*http.Client, error) {
	tr := &http.Transport{
		ResponseHeaderTimeout: cfg.ResponseHeaderTimeout,
		Proxy:                 http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			KeepAlive: 30 * time.Second,
			Timeout:   cfg.DialTimeout,
		}).DialContext,
		MaxIdleConns:          cfg.MaxIdleConns,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		MaxIdleConnsPerHost:   cfg.MaxIdleConnsPerHost,
		ExpectContinueTimeout: 5 * time.Second,
	}

	if err := http2.ConfigureTransport(tr); err != nil {
		return nil, err
	}

	return &http.Client{
		Transport: tr,
		Timeout:   cfg.RequestTimeout,
	}, nil
}

// BaseURL returns the configured API root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Login exchanges credentials for a token. Auth failures come back as
// AuthError so a rejected login is distinguishable from a server fault.
func (c *Client) Login(ctx context.Context, username, password string) (*models.JwtResponse, error) {
	var out models.JwtResponse
	err := c.do(ctx, http.MethodPost, "/auth/login", models.LoginRequest{
		Username: username,
		Password: password,
	}, &out, false)
	if err != nil {
		// A login rejection arrives as a non-2xx without a token;
		// treat any 4xx on this endpoint as a credential problem.
		var se *ServerError
		if errors.As(err, &se) && se.StatusCode >= 400 && se.StatusCode < 500 {
			return nil, &AuthError{Message: se.Message}
		}
		return nil, err
	}
	return &out, nil
}

// Signup registers a new user.
func (c *Client) Signup(ctx context.Context, req models.SignupRequest) error {
	return c.do(ctx, http.MethodPost, "/auth/signup", req, nil, false)
}

// CurrentUser fetches the identity bound to the active token.
func (c *Client) CurrentUser(ctx context.Context) (*models.UserIdentity, error) {
	var out models.UserIdentity
	if err := c.do(ctx, http.MethodGet, "/users/me", nil, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListAccounts fetches the full account list for the current user.
func (c *Client) ListAccounts(ctx context.Context) ([]models.Account, error) {
	var out []models.Account
	if err := c.do(ctx, http.MethodGet, "/accounts", nil, &out, true); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateAccount opens a new account of the given type.
func (c *Client) CreateAccount(ctx context.Context, req models.CreateAccountRequest) (*models.Account, error) {
	var out models.Account
	if err := c.do(ctx, http.MethodPost, "/accounts", req, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

// Deposit submits a deposit into an account.
func (c *Client) Deposit(ctx context.Context, req models.MoneyRequest) (*models.TransactionRecord, error) {
	var out models.TransactionRecord
	if err := c.do(ctx, http.MethodPost, "/transactions/deposit", req, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

// Withdraw submits a withdrawal from an account.
func (c *Client) Withdraw(ctx context.Context, req models.MoneyRequest) (*models.TransactionRecord, error) {
	var out models.TransactionRecord
	if err := c.do(ctx, http.MethodPost, "/transactions/withdraw", req, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

// Transfer submits a transfer between two accounts.
func (c *Client) Transfer(ctx context.Context, req models.TransferWireRequest) (*models.TransactionRecord, error) {
	var out models.TransactionRecord
	if err := c.do(ctx, http.MethodPost, "/transactions/transfer", req, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

// History fetches the transaction history for one account.
func (c *Client) History(ctx context.Context, accountId int64) ([]models.TransactionRecord, error) {
	var out []models.TransactionRecord
	path := fmt.Sprintf("/transactions/history/%d", accountId)
	if err := c.do(ctx, http.MethodGet, path, nil, &out, true); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any, authed bool) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("unable to encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("unable to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		req.Header.Set("Authorization", "Bearer "+c.token())
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return classifyResponse(resp)
	}

	if out == nil {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &NetworkError{Err: fmt.Errorf("unable to decode response: %w", err)}
	}
	return nil
}

// classifyResponse maps a non-2xx response onto the error taxonomy.
// 401/403 means the token was rejected, which obliges the caller to
// tear down the session.
func classifyResponse(resp *http.Response) error {
	message := serverMessage(resp.Body)

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		zap.L().Warn("Authenticated call rejected",
			zap.Int("status", resp.StatusCode),
			zap.String("path", resp.Request.URL.Path))
		return &AuthError{Message: message}
	}

	return &ServerError{
		StatusCode: resp.StatusCode,
		Message:    message,
	}
}

// serverMessage extracts the optional {message} field from an error
// body, tolerating bodies that are not JSON at all.
func serverMessage(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, 64*1024))
	if err != nil {
		return ""
	}
	var apiErr models.APIError
	if err := json.Unmarshal(raw, &apiErr); err != nil {
		return ""
	}
	return apiErr.Message
}
