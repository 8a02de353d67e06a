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

package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"bank-dashboard-client-go/internal/models"
	"bank-dashboard-client-go/internal/notify"
	"bank-dashboard-client-go/internal/tokenstore"
	"bank-dashboard-client-go/internal/transport"

	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"
)

// Store owns the session: the credential token plus the confirmed user
// identity. It is the single writer of both; every other component
// reads through its accessors. The token and identity are set and
// cleared together, never one without the other.
type Store struct {
	transport *transport.Client
	tokens    tokenstore.Store
	sink      notify.Sink

	mu        sync.Mutex
	token     string
	user      *models.UserIdentity
	expiresAt time.Time
	epoch     uint64

	establishHooks []func()
	teardownHooks  []func()
}

func NewStore(tc *transport.Client, tokens tokenstore.Store, sink notify.Sink) *Store {
	return &Store{
		transport: tc,
		tokens:    tokens,
		sink:      sink,
	}
}

// OnEstablish registers a hook invoked after every successful login or
// token validation. Register hooks before the first login.
func (s *Store) OnEstablish(fn func()) {
	s.establishHooks = append(s.establishHooks, fn)
}

// OnTeardown registers a hook invoked after every session teardown,
// whether user-initiated or forced by an auth rejection.
func (s *Store) OnTeardown(fn func()) {
	s.teardownHooks = append(s.teardownHooks, fn)
}

// Login exchanges credentials for a token, confirms the identity via
// /users/me, persists the token and establishes the session.
func (s *Store) Login(ctx context.Context, username, password string) (*models.Session, error) {
	resp, err := s.transport.Login(ctx, username, password)
	if err != nil {
		s.sink.Publish(notify.Event{
			Level:   notify.LevelError,
			Message: transport.UserMessage(err, "Login failed"),
		})
		return nil, err
	}

	// Stage the token so the identity call can authenticate with it.
	// The session itself is not observable until the identity is
	// confirmed.
	s.stageToken(resp.AccessToken, tokenExpiry(resp.AccessToken, resp.ExpiresIn))

	user, err := s.transport.CurrentUser(ctx)
	if err != nil {
		s.teardown(ctx)
		s.sink.Publish(notify.Event{
			Level:   notify.LevelError,
			Message: transport.UserMessage(err, "Login failed"),
		})
		return nil, err
	}

	sess := s.establish(ctx, resp.AccessToken, *user)
	s.sink.Publish(notify.Event{Level: notify.LevelSuccess, Message: "Login successful!"})
	return sess, nil
}

// ValidateExisting establishes a session from a previously persisted
// token by confirming the identity it maps to. On any failure, network
// or rejection, the token is discarded as if logout had been called: a
// stale token is never retried silently.
func (s *Store) ValidateExisting(ctx context.Context, token string) (*models.Session, error) {
	if token == "" {
		return nil, &transport.AuthError{Message: "no token to validate"}
	}

	s.stageToken(token, tokenExpiry(token, 0))

	user, err := s.transport.CurrentUser(ctx)
	if err != nil {
		s.teardown(ctx)
		zap.L().Info("Persisted token rejected, session discarded", zap.Error(err))
		s.sink.Publish(notify.Event{
			Level:   notify.LevelWarning,
			Message: "Saved session is no longer valid, please log in again",
		})
		return nil, err
	}

	return s.establish(ctx, token, *user), nil
}

// Resume restores a session from durable storage at startup. It
// returns (nil, nil) when no token was persisted.
func (s *Store) Resume(ctx context.Context) (*models.Session, error) {
	token, err := s.tokens.Load(ctx)
	if errors.Is(err, tokenstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("unable to read persisted token: %w", err)
	}
	return s.ValidateExisting(ctx, token)
}

// Logout clears the session, the persisted token, the account cache
// and the refresh scheduler (via hooks). Safe to call when already
// logged out.
func (s *Store) Logout(ctx context.Context) {
	if s.teardown(ctx) {
		s.sink.Publish(notify.Event{Level: notify.LevelInfo, Message: "Logged out successfully"})
	}
}

// Invalidate tears the session down after an authentication rejection.
// Unlike Logout it publishes no event of its own; the operation that
// observed the rejection reports the failure.
func (s *Store) Invalidate(ctx context.Context) {
	if s.teardown(ctx) {
		zap.L().Warn("Session invalidated after authentication rejection")
	}
}

// Ensure fails fast with an AuthError when no session is active or the
// token is already past its expiry. An expired session is torn down
// rather than letting a known-invalid token reach the wire.
func (s *Store) Ensure() error {
	s.mu.Lock()
	active := s.token != "" && s.user != nil
	expired := active && !s.expiresAt.IsZero() && time.Now().After(s.expiresAt)
	s.mu.Unlock()

	if !active {
		return &transport.AuthError{Message: "You are not logged in"}
	}
	if expired {
		s.Invalidate(context.Background())
		return &transport.AuthError{Message: "Your session has expired, please log in again"}
	}
	return nil
}

// Current returns the active session, or nil when logged out. The
// token and user are returned together or not at all.
func (s *Store) Current() *models.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == "" || s.user == nil {
		return nil
	}
	return &models.Session{
		Token:     s.token,
		User:      *s.user,
		ExpiresAt: s.expiresAt,
	}
}

// Authenticated reports whether a session is active.
func (s *Store) Authenticated() bool {
	return s.Current() != nil
}

// Token supplies the credential for outgoing requests. It also exposes
// a staged token during login so the identity confirmation call can
// authenticate; consumers needing the session itself use Current.
func (s *Store) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// Epoch returns the session epoch. It increments on every teardown and
// every newly established session; responses tagged with an older
// epoch belong to a superseded session and must be discarded.
func (s *Store) Epoch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch
}

func (s *Store) stageToken(token string, expiresAt time.Time) {
	s.mu.Lock()
	s.token = token
	s.user = nil
	s.expiresAt = expiresAt
	s.mu.Unlock()
}

func (s *Store) establish(ctx context.Context, token string, user models.UserIdentity) *models.Session {
	s.mu.Lock()
	s.token = token
	s.user = &user
	s.epoch++
	sess := models.Session{Token: token, User: user, ExpiresAt: s.expiresAt}
	s.mu.Unlock()

	if err := s.tokens.Save(ctx, token); err != nil {
		zap.L().Warn("Failed to persist token", zap.Error(err))
	}

	zap.L().Info("Session established",
		zap.String("username", user.Username),
		zap.Int64("user_id", user.Id))

	for _, fn := range s.establishHooks {
		fn()
	}
	return &sess
}

// teardown clears all session state and reports whether anything was
// actually cleared. A staged (unconfirmed) token counts.
func (s *Store) teardown(ctx context.Context) bool {
	s.mu.Lock()
	had := s.token != "" || s.user != nil
	s.token = ""
	s.user = nil
	s.expiresAt = time.Time{}
	if had {
		s.epoch++
	}
	s.mu.Unlock()

	if !had {
		return false
	}

	if err := s.tokens.Clear(ctx); err != nil {
		zap.L().Warn("Failed to clear persisted token", zap.Error(err))
	}
	for _, fn := range s.teardownHooks {
		fn()
	}
	return true
}

// tokenExpiry derives the session expiry from the token's exp claim,
// falling back to the server-announced lifetime. Zero means the client
// has no usable expiry and leaves enforcement to the server.
func tokenExpiry(token string, expiresIn int64) time.Time {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err == nil && claims.ExpiresAt != nil {
		return claims.ExpiresAt.Time
	}
	if expiresIn > 0 {
		return time.Now().Add(time.Duration(expiresIn) * time.Second)
	}
	return time.Time{}
}
