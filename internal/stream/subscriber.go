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

package stream

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"

	"bank-dashboard-client-go/internal/accounts"
	"bank-dashboard-client-go/internal/models"
	"bank-dashboard-client-go/internal/notify"
	"bank-dashboard-client-go/internal/session"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Subscriber consumes server-pushed account-change events over a
// websocket and turns each one into a guarded cache refresh. It is the
// push-based alternative to interval polling; both paths share the
// cache's epoch discard and at-most-one-outstanding-refresh guards,
// and the event payload itself is never applied to the cache.
type Subscriber struct {
	url     string
	session *session.Store
	cache   *accounts.Cache
	sink    notify.Sink

	mu       sync.Mutex
	conn     *websocket.Conn
	stopChan chan struct{}
	doneChan chan struct{}
	running  bool
}

// NewSubscriber builds a subscriber for the account-event stream below
// the given API base URL (http(s) is rewritten to ws(s)).
func NewSubscriber(baseURL, path string, sess *session.Store, cache *accounts.Cache, sink notify.Sink) *Subscriber {
	wsURL := strings.Replace(strings.TrimRight(baseURL, "/"), "http", "ws", 1) + path
	return &Subscriber{
		url:     wsURL,
		session: sess,
		cache:   cache,
		sink:    sink,
	}
}

// Start dials the stream with the session credential and begins
// consuming events. A second Start while running is a no-op.
func (s *Subscriber) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	if err := s.session.Ensure(); err != nil {
		return err
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+s.session.Token())

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, s.url, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.conn = conn
	s.stopChan = make(chan struct{})
	s.doneChan = make(chan struct{})
	s.running = true
	stopChan, doneChan := s.stopChan, s.doneChan
	s.mu.Unlock()

	zap.L().Info("Account event stream connected", zap.String("url", s.url))
	go s.readLoop(ctx, conn, stopChan, doneChan)
	return nil
}

// Stop closes the stream. Non-blocking and idempotent, so it is safe
// as a session teardown hook.
func (s *Subscriber) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopChan)
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()

	// Closing the connection unblocks the read loop.
	if conn != nil {
		_ = conn.Close()
	}
	zap.L().Info("Account event stream stopped")
}

// Wait blocks until the read loop has unwound after Stop.
func (s *Subscriber) Wait() {
	s.mu.Lock()
	doneChan := s.doneChan
	s.mu.Unlock()
	if doneChan != nil {
		<-doneChan
	}
}

// Running reports whether the stream is connected.
func (s *Subscriber) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Subscriber) readLoop(ctx context.Context, conn *websocket.Conn, stopChan, doneChan chan struct{}) {
	defer close(doneChan)

	for {
		var event models.AccountEvent
		if err := conn.ReadJSON(&event); err != nil {
			select {
			case <-stopChan:
				return
			default:
			}
			zap.L().Warn("Account event stream closed, polling continues to reconcile", zap.Error(err))
			s.sink.Publish(notify.Event{
				Level:   notify.LevelWarning,
				Message: "Live account updates disconnected",
			})
			s.mu.Lock()
			s.running = false
			s.mu.Unlock()
			return
		}

		zap.L().Debug("Account event received",
			zap.String("type", event.Type),
			zap.Int64("account_id", event.AccountId))

		// The event only signals that something changed; the refetch
		// is what updates the cache, under the usual guards.
		if _, err := s.cache.TryRefresh(ctx); err != nil &&
			!errors.Is(err, accounts.ErrRefreshInFlight) &&
			!errors.Is(err, accounts.ErrStaleResponse) &&
			!errors.Is(err, accounts.ErrSessionChanged) {
			zap.L().Warn("Refresh after account event failed", zap.Error(err))
		}
	}
}
