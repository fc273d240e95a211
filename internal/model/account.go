package model

import "time"

type Plan string

const (
	PlanTrial  Plan = "trial"
	PlanGrowth Plan = "growth"
	PlanScale  Plan = "scale"
)

// Account is the tenant. Every interview, credit ledger entry and site hangs
// off one.
type Account struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	Plan      Plan      `json:"plan"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
