package service

import (
	"context"

	"github.com/jackc/pgx/v5"
	"rankwell.app/onboard/core/db"
	"rankwell.app/onboard/internal/store"
)

// StoreProvider exposes the stores a transactional operation can touch.
// *store.Stores satisfies it whether bound to the pool or to a transaction.
type StoreProvider interface {
	Interviews() store.InterviewStore
	Questions() store.QuestionStore
	Credits() store.CreditStore
	Users() store.UserStore
	Sessions() store.SessionStore
	Accounts() store.AccountStore
	Sites() store.SiteStore
	SuggestionEvals() store.SuggestionEvalStore
}

// TxRunner runs functions within a transaction and provides stores bound to that transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(stores StoreProvider) error) error
}

type dbTxRunner struct {
	db *db.DB
}

// NewTxRunner builds a TxRunner backed by the core DB.
func NewTxRunner(db *db.DB) TxRunner {
	return &dbTxRunner{db: db}
}

func (r *dbTxRunner) WithTx(ctx context.Context, fn func(stores StoreProvider) error) error {
	return r.db.WithTx(ctx, func(tx pgx.Tx) error {
		stores := store.NewStores(tx)
		return fn(stores)
	})
}
