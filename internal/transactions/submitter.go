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

package transactions

import (
	"context"
	"fmt"

	"bank-dashboard-client-go/internal/accounts"
	"bank-dashboard-client-go/internal/models"
	"bank-dashboard-client-go/internal/notify"
	"bank-dashboard-client-go/internal/session"
	"bank-dashboard-client-go/internal/transport"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Kind selects the money-movement variant.
type Kind string

const (
	KindDeposit    Kind = "deposit"
	KindWithdrawal Kind = "withdrawal"
	KindTransfer   Kind = "transfer"
)

// Request is a money-movement request. AccountId carries the target
// for deposits and withdrawals; transfers use FromAccountId and
// ToAccountId instead. Reference is optional and generated when empty.
type Request struct {
	Kind          Kind
	AccountId     int64
	FromAccountId int64
	ToAccountId   int64
	Amount        decimal.Decimal
	Description   string
	Reference     string
}

// Validate applies the local pre-submission checks. A request that
// fails here never produces a network call.
func (r Request) Validate() error {
	if r.Amount.LessThanOrEqual(decimal.Zero) {
		return &transport.ValidationError{Reason: "Amount must be a positive number"}
	}
	switch r.Kind {
	case KindDeposit, KindWithdrawal:
		if r.AccountId == 0 {
			return &transport.ValidationError{Reason: "Please select an account"}
		}
	case KindTransfer:
		if r.FromAccountId == 0 || r.ToAccountId == 0 {
			return &transport.ValidationError{Reason: "Please select both accounts"}
		}
		if r.FromAccountId == r.ToAccountId {
			return &transport.ValidationError{Reason: "Source and destination accounts cannot be the same"}
		}
	default:
		return &transport.ValidationError{Reason: fmt.Sprintf("Unknown transaction type %q", string(r.Kind))}
	}
	return nil
}

// Submitter validates and sends money-movement requests. On a
// confirmed success the account cache is invalidated and refetched; a
// failure is classified and reported to the sink and never retried,
// leaving the cache untouched.
type Submitter struct {
	session   *session.Store
	transport *transport.Client
	cache     *accounts.Cache
	sink      notify.Sink
}

func NewSubmitter(sess *session.Store, tc *transport.Client, cache *accounts.Cache, sink notify.Sink) *Submitter {
	return &Submitter{
		session:   sess,
		transport: tc,
		cache:     cache,
		sink:      sink,
	}
}

// Submit runs one transaction end to end: local validation, session
// check, dispatch, then cache refetch and exactly one notification.
func (s *Submitter) Submit(ctx context.Context, req Request) (*models.TransactionRecord, error) {
	if err := req.Validate(); err != nil {
		s.sink.Publish(notify.Event{
			Level:   notify.LevelWarning,
			Message: transport.UserMessage(err, "Invalid transaction"),
		})
		return nil, err
	}

	// A session that is absent or already expired fails here; a
	// known-invalid token is never sent.
	if err := s.session.Ensure(); err != nil {
		s.sink.Publish(notify.Event{
			Level:   notify.LevelError,
			Message: transport.UserMessage(err, string(req.Kind)+" failed"),
		})
		return nil, err
	}

	if req.Reference == "" {
		req.Reference = uuid.New().String()
	}

	record, err := s.dispatch(ctx, req)
	if err != nil {
		if transport.IsAuthError(err) {
			s.session.Invalidate(ctx)
		}
		// No automatic retry: resubmitting a money movement could
		// silently duplicate it.
		s.sink.Publish(notify.Event{
			Level:   notify.LevelError,
			Message: transport.UserMessage(err, fallbackMessage(req.Kind)),
		})
		return nil, err
	}

	// Refetch before reporting success. The echoed record is not
	// trusted for balances: the server may have applied fees or holds
	// the echo does not reflect.
	if _, err := s.cache.InvalidateAndRefresh(ctx); err != nil {
		zap.L().Warn("Account refresh after transaction failed",
			zap.String("kind", string(req.Kind)),
			zap.String("reference", req.Reference),
			zap.Error(err))
	}

	s.sink.Publish(notify.Event{Level: notify.LevelSuccess, Message: successMessage(req.Kind)})
	zap.L().Info("Transaction confirmed",
		zap.String("kind", string(req.Kind)),
		zap.String("amount", req.Amount.String()),
		zap.String("reference", req.Reference))
	return record, nil
}

func (s *Submitter) dispatch(ctx context.Context, req Request) (*models.TransactionRecord, error) {
	switch req.Kind {
	case KindDeposit:
		return s.transport.Deposit(ctx, models.MoneyRequest{
			AccountId:   req.AccountId,
			Amount:      req.Amount,
			Description: req.Description,
			Reference:   req.Reference,
		})
	case KindWithdrawal:
		return s.transport.Withdraw(ctx, models.MoneyRequest{
			AccountId:   req.AccountId,
			Amount:      req.Amount,
			Description: req.Description,
			Reference:   req.Reference,
		})
	case KindTransfer:
		return s.transport.Transfer(ctx, models.TransferWireRequest{
			FromAccountId: req.FromAccountId,
			ToAccountId:   req.ToAccountId,
			Amount:        req.Amount,
			Description:   req.Description,
			Reference:     req.Reference,
		})
	}
	return nil, fmt.Errorf("unreachable transaction kind %q", string(req.Kind))
}

// History fetches the server-side transaction records for one account.
// Records are displayed as returned, never constructed locally.
func (s *Submitter) History(ctx context.Context, accountId int64) ([]models.TransactionRecord, error) {
	if accountId == 0 {
		return nil, &transport.ValidationError{Reason: "Please select an account"}
	}
	if err := s.session.Ensure(); err != nil {
		return nil, err
	}
	records, err := s.transport.History(ctx, accountId)
	if err != nil {
		if transport.IsAuthError(err) {
			s.session.Invalidate(ctx)
		}
		return nil, err
	}
	return records, nil
}

func successMessage(kind Kind) string {
	switch kind {
	case KindDeposit:
		return "Deposit successful!"
	case KindWithdrawal:
		return "Withdrawal successful!"
	case KindTransfer:
		return "Transfer successful!"
	}
	return "Transaction successful!"
}

func fallbackMessage(kind Kind) string {
	switch kind {
	case KindDeposit:
		return "Deposit failed"
	case KindWithdrawal:
		return "Withdrawal failed"
	case KindTransfer:
		return "Transfer failed"
	}
	return "Transaction failed"
}
