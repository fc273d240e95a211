package model

import "time"

// CreditOperation names the unit of work a ledger entry paid for. Action
// handlers pass the operation strings defined in internal/action; the grant
// below is the only operation minted outside an action.
type CreditOperation string

const CreditOpSignupGrant CreditOperation = "signup.grant"

// CreditAccount is the materialized balance for one tenant. The ledger is the
// source of truth; balance updates happen in the same transaction as the
// entry insert.
type CreditAccount struct {
	AccountID int64     `json:"account_id"`
	Balance   int64     `json:"balance"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreditEntry is one append-only ledger row. Debits carry negative amounts.
type CreditEntry struct {
	ID        int64           `json:"id"`
	AccountID int64           `json:"account_id"`
	Operation CreditOperation `json:"operation"`
	Amount    int64           `json:"amount"`
	CreatedAt time.Time       `json:"created_at"`
}
