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

package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"bank-dashboard-client-go/internal/accounts"
	"bank-dashboard-client-go/internal/notify"
	"bank-dashboard-client-go/internal/transport"

	"go.uber.org/zap"
)

// State of the scheduler's two-state machine.
type State int

const (
	Idle State = iota
	Polling
)

func (s State) String() string {
	if s == Polling {
		return "polling"
	}
	return "idle"
}

// Scheduler drives periodic background refreshes of the account cache
// while a session is active. Idle when logged out, Polling while
// logged in; refresh failures are reported but never tear down the
// session on their own.
type Scheduler struct {
	cache    *accounts.Cache
	sink     notify.Sink
	interval time.Duration

	mu       sync.Mutex
	state    State
	stopChan chan struct{}
	doneChan chan struct{}
}

func NewScheduler(cache *accounts.Cache, sink notify.Sink, interval time.Duration) *Scheduler {
	return &Scheduler{
		cache:    cache,
		sink:     sink,
		interval: interval,
		state:    Idle,
	}
}

// Start transitions Idle -> Polling and begins the refresh loop. A
// second Start while polling is a no-op, so the transition happens at
// most once per established session.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.state == Polling {
		s.mu.Unlock()
		return
	}
	s.state = Polling
	s.stopChan = make(chan struct{})
	s.doneChan = make(chan struct{})
	stopChan, doneChan := s.stopChan, s.doneChan
	s.mu.Unlock()

	zap.L().Info("Refresh scheduler started", zap.Duration("polling_interval", s.interval))
	go s.pollLoop(ctx, stopChan, doneChan)
}

// Stop transitions Polling -> Idle. It does not wait for the loop to
// unwind, so it is safe to call from a session teardown hook that was
// itself triggered by a refresh. Idempotent.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.state == Idle {
		s.mu.Unlock()
		return
	}
	s.state = Idle
	close(s.stopChan)
	s.mu.Unlock()

	zap.L().Info("Refresh scheduler stopped")
}

// Wait blocks until the refresh loop has fully unwound after Stop.
func (s *Scheduler) Wait() {
	s.mu.Lock()
	doneChan := s.doneChan
	s.mu.Unlock()
	if doneChan != nil {
		<-doneChan
	}
}

// State returns the current scheduler state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Scheduler) pollLoop(ctx context.Context, stopChan, doneChan chan struct{}) {
	defer close(doneChan)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.tick(ctx)
		case <-stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// tick runs one scheduled refresh. A tick that fires while a refresh
// is already in flight is skipped rather than queued, so at most one
// refresh is ever outstanding.
func (s *Scheduler) tick(ctx context.Context) {
	_, err := s.cache.TryRefresh(ctx)
	switch {
	case err == nil:
		zap.L().Debug("Scheduled account refresh applied")
	case errors.Is(err, accounts.ErrRefreshInFlight):
		zap.L().Debug("Refresh already in flight, tick skipped")
	case errors.Is(err, accounts.ErrSessionChanged), errors.Is(err, accounts.ErrStaleResponse):
		zap.L().Debug("Scheduled refresh response discarded", zap.Error(err))
	case transport.IsAuthError(err):
		// The cache already funneled the rejection into a session
		// teardown, which stops this scheduler. Surface the outcome
		// once.
		s.sink.Publish(notify.Event{
			Level:   notify.LevelError,
			Message: transport.UserMessage(err, "Your session has expired, please log in again"),
		})
	default:
		zap.L().Warn("Scheduled account refresh failed", zap.Error(err))
		s.sink.Publish(notify.Event{
			Level:   notify.LevelWarning,
			Message: transport.UserMessage(err, "Failed to refresh accounts"),
		})
	}
}
