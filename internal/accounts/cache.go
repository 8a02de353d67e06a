/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package accounts

import (
	"context"
	"errors"
	"strings"
	"sync"

	"bank-dashboard-client-go/internal/models"
	"bank-dashboard-client-go/internal/notify"
	"bank-dashboard-client-go/internal/session"
	"bank-dashboard-client-go/internal/transport"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Sentinel results for refreshes that were started but whose response
// must not be applied.
var (
	// ErrRefreshInFlight is returned by TryRefresh when another
	// refresh is already outstanding and the call was coalesced away.
	ErrRefreshInFlight = errors.New("refresh already in flight")

	// ErrSessionChanged is returned when a response arrives for a
	// session that was torn down or replaced while the fetch was in
	// flight. The response is discarded, never applied.
	ErrSessionChanged = errors.New("session changed during refresh")

	// ErrStaleResponse is returned when a newer refresh response was
	// applied while this one was in flight.
	ErrStaleResponse = errors.New("stale refresh response discarded")
)

// Cache holds the authenticated user's account list. It is the only
// writer of that list, and every update is a full atomic replacement
// of the previous snapshot with a server response; balances are never
// adjusted by local arithmetic.
type Cache struct {
	session   *session.Store
	transport *transport.Client
	sink      notify.Sink

	mu         sync.Mutex
	accounts   []models.Account
	fetched    bool
	inflight   int
	nextSeq    uint64
	appliedSeq uint64
}

func NewCache(sess *session.Store, tc *transport.Client, sink notify.Sink) *Cache {
	return &Cache{
		session:   sess,
		transport: tc,
		sink:      sink,
	}
}

// Refresh fetches the full account list and atomically replaces the
// cached snapshot. It fails fast with an AuthError when no session is
// active. Concurrent refreshes race freely; ordering is settled at
// apply time by the epoch and sequence guards.
func (c *Cache) Refresh(ctx context.Context) ([]models.Account, error) {
	return c.refresh(ctx, false)
}

// TryRefresh is Refresh with at-most-one-outstanding-call semantics:
// when a refresh is already in flight the call is skipped and
// ErrRefreshInFlight is returned. Used by the scheduler and the event
// stream so background reconciliation never stacks network calls.
func (c *Cache) TryRefresh(ctx context.Context) ([]models.Account, error) {
	return c.refresh(ctx, true)
}

func (c *Cache) refresh(ctx context.Context, coalesce bool) ([]models.Account, error) {
	if err := c.session.Ensure(); err != nil {
		return nil, err
	}
	epoch := c.session.Epoch()

	c.mu.Lock()
	if coalesce && c.inflight > 0 {
		c.mu.Unlock()
		return nil, ErrRefreshInFlight
	}
	c.inflight++
	c.nextSeq++
	seq := c.nextSeq
	c.mu.Unlock()

	fetched, err := c.transport.ListAccounts(ctx)

	c.mu.Lock()
	c.inflight--
	if err != nil {
		c.mu.Unlock()
		if transport.IsAuthError(err) {
			c.session.Invalidate(ctx)
		}
		return nil, err
	}

	// A response for a superseded session must never repopulate the
	// cache, and an out-of-order response must never overwrite a newer
	// snapshot.
	if c.session.Epoch() != epoch {
		c.mu.Unlock()
		zap.L().Debug("Discarding refresh response for superseded session", zap.Uint64("seq", seq))
		return nil, ErrSessionChanged
	}
	if seq <= c.appliedSeq {
		c.mu.Unlock()
		zap.L().Debug("Discarding out-of-order refresh response",
			zap.Uint64("seq", seq),
			zap.Uint64("applied_seq", c.appliedSeq))
		return nil, ErrStaleResponse
	}

	c.accounts = make([]models.Account, len(fetched))
	copy(c.accounts, fetched)
	c.fetched = true
	c.appliedSeq = seq
	snapshot := make([]models.Account, len(c.accounts))
	copy(snapshot, c.accounts)
	c.mu.Unlock()

	return snapshot, nil
}

// InvalidateAndRefresh discards the snapshot and refetches from the
// server. Called after every confirmed mutation: the server is the
// sole source of truth for the resulting balances.
func (c *Cache) InvalidateAndRefresh(ctx context.Context) ([]models.Account, error) {
	c.mu.Lock()
	c.accounts = nil
	c.fetched = false
	c.mu.Unlock()
	return c.Refresh(ctx)
}

// CreateAccount opens a new account and refetches the account list on
// success.
func (c *Cache) CreateAccount(ctx context.Context, accountType string) (*models.Account, error) {
	accountType = strings.ToUpper(strings.TrimSpace(accountType))
	if accountType == "" {
		err := &transport.ValidationError{Reason: "Please select an account type"}
		c.sink.Publish(notify.Event{Level: notify.LevelWarning, Message: err.Reason})
		return nil, err
	}

	if err := c.session.Ensure(); err != nil {
		c.sink.Publish(notify.Event{
			Level:   notify.LevelError,
			Message: transport.UserMessage(err, "Failed to create account"),
		})
		return nil, err
	}

	account, err := c.transport.CreateAccount(ctx, models.CreateAccountRequest{AccountType: accountType})
	if err != nil {
		if transport.IsAuthError(err) {
			c.session.Invalidate(ctx)
		}
		c.sink.Publish(notify.Event{
			Level:   notify.LevelError,
			Message: transport.UserMessage(err, "Failed to create account"),
		})
		return nil, err
	}

	if _, err := c.InvalidateAndRefresh(ctx); err != nil {
		zap.L().Warn("Account list refresh after creation failed", zap.Error(err))
	}

	c.sink.Publish(notify.Event{Level: notify.LevelSuccess, Message: "Account created successfully!"})
	return account, nil
}

// Clear drops the snapshot. Wired as a session teardown hook.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.accounts = nil
	c.fetched = false
	c.mu.Unlock()
}

// Snapshot returns a copy of the cached account list without fetching.
// Callers that need freshness call Refresh explicitly.
func (c *Cache) Snapshot() []models.Account {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.Account, len(c.accounts))
	copy(out, c.accounts)
	return out
}

// Fetched reports whether the cache holds a server response, as
// opposed to being empty because it was never (or no longer) filled.
func (c *Cache) Fetched() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fetched
}

// AccountByID returns the cached account with the given id.
func (c *Cache) AccountByID(id int64) (models.Account, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, a := range c.accounts {
		if a.Id == id {
			return a, true
		}
	}
	return models.Account{}, false
}

// TotalBalance sums the cached balances for the dashboard summary.
func (c *Cache) TotalBalance() decimal.Decimal {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := decimal.Zero
	for _, a := range c.accounts {
		total = total.Add(a.Balance)
	}
	return total
}
