package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction types as reported by the banking API
const (
	TransactionTypeDeposit    = "DEPOSIT"
	TransactionTypeWithdrawal = "WITHDRAWAL"
	TransactionTypeTransfer   = "TRANSFER"
)

// Transaction statuses as reported by the banking API
const (
	TransactionStatusPending   = "PENDING"
	TransactionStatusCompleted = "COMPLETED"
	TransactionStatusFailed    = "FAILED"
)

// AccountRef identifies an account on one side of a transaction record.
type AccountRef struct {
	Id            int64  `json:"id"`
	AccountNumber string `json:"accountNumber"`
	AccountType   string `json:"accountType"`
}

// TransactionRecord represents a transaction in an account's history.
// Records are read-only server facts; the client only displays them.
type TransactionRecord struct {
	Id              int64           `json:"id"`
	TransactionType string          `json:"transactionType"`
	Amount          decimal.Decimal `json:"amount"`
	Description     string          `json:"description,omitempty"`
	Reference       string          `json:"reference,omitempty"`
	Status          string          `json:"status"`
	CreatedAt       time.Time       `json:"createdAt"`
	FromAccount     *AccountRef     `json:"fromAccount,omitempty"`
	ToAccount       *AccountRef     `json:"toAccount,omitempty"`
}

// Direction returns "+" or "-" for displaying the record from the
// perspective of the given account, mirroring how the dashboard renders
// history entries.
func (t TransactionRecord) Direction(accountId int64) string {
	switch t.TransactionType {
	case TransactionTypeDeposit:
		return "+"
	case TransactionTypeWithdrawal:
		return "-"
	case TransactionTypeTransfer:
		if t.FromAccount != nil && t.FromAccount.Id == accountId {
			return "-"
		}
		return "+"
	}
	return ""
}

// TimeDisplay formats the record timestamp for console output.
func (t TransactionRecord) TimeDisplay() string {
	return t.CreatedAt.Format("2006-01-02 15:04:05")
}
