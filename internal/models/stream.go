package models

import "time"

// Account-event types pushed over the websocket stream
const (
	AccountEventBalanceChanged = "BALANCE_CHANGED"
	AccountEventAccountCreated = "ACCOUNT_CREATED"
)

// AccountEvent is a server push notifying the client that its account
// set changed. The event carries no balance data on purpose: the client
// reacts by refetching, never by applying the event locally.
type AccountEvent struct {
	Type      string    `json:"type"`
	AccountId int64     `json:"accountId,omitempty"`
	At        time.Time `json:"at"`
}
