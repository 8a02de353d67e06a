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

package models

import "github.com/shopspring/decimal"

// LoginRequest is the body for POST /auth/login
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// SignupRequest is the body for POST /auth/signup
type SignupRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

// JwtResponse is the body returned by a successful login
type JwtResponse struct {
	AccessToken string       `json:"accessToken"`
	TokenType   string       `json:"tokenType"`
	ExpiresIn   int64        `json:"expiresIn"` // seconds
	User        UserIdentity `json:"user"`
}

// CreateAccountRequest is the body for POST /accounts
type CreateAccountRequest struct {
	AccountType string `json:"accountType"`
	Description string `json:"description,omitempty"`
}

// MoneyRequest is the body for POST /transactions/deposit and
// POST /transactions/withdraw
type MoneyRequest struct {
	AccountId   int64           `json:"accountId"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description,omitempty"`
	Reference   string          `json:"reference,omitempty"`
}

// TransferWireRequest is the body for POST /transactions/transfer
type TransferWireRequest struct {
	FromAccountId int64           `json:"fromAccountId"`
	ToAccountId   int64           `json:"toAccountId"`
	Amount        decimal.Decimal `json:"amount"`
	Description   string          `json:"description,omitempty"`
	Reference     string          `json:"reference,omitempty"`
}

// APIError is the error body the banking API attaches to non-2xx
// responses. The message is optional; callers fall back to a generic
// text when it is empty.
type APIError struct {
	Message string `json:"message"`
}
