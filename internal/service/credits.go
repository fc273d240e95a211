package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"rankwell.app/onboard/common/id"
	"rankwell.app/onboard/common/logger"
	"rankwell.app/onboard/core/config"
	"rankwell.app/onboard/internal/action"
	"rankwell.app/onboard/internal/model"
	"rankwell.app/onboard/internal/store"
)

// ErrUnknownOperation is returned when an action names a billable operation
// with no configured cost. Treated as a denial, never a free pass.
var ErrUnknownOperation = errors.New("unknown billable operation")

// CreditService is the ledger gate for paid actions. It satisfies
// action.CreditLedger for the handlers and adds the account-facing reads.
type CreditService interface {
	Authorize(ctx context.Context, accountID int64, op string) (*action.Decision, error)
	Debit(ctx context.Context, accountID int64, op string) error
	// EnsureWithGrant creates the credit account on first call and mints the
	// signup grant exactly once, atomically with the creation.
	EnsureWithGrant(ctx context.Context, accountID int64) error
	Balance(ctx context.Context, accountID int64) (*model.CreditAccount, error)
	History(ctx context.Context, accountID int64, limit int32) ([]model.CreditEntry, error)
}

type creditService struct {
	stores   StoreProvider
	txRunner TxRunner
	costs    map[string]int64
	grant    int64
}

func NewCreditService(stores StoreProvider, txRunner TxRunner, cfg config.CreditsConfig) CreditService {
	return &creditService{
		stores:   stores,
		txRunner: txRunner,
		costs: map[string]int64{
			action.OpCrawlSite:     cfg.CrawlCost,
			action.OpAIKeywords:    cfg.KeywordsCost,
			action.OpAICompetitors: cfg.CompetitorsCost,
		},
		grant: cfg.SignupGrant,
	}
}

func (s *creditService) Authorize(ctx context.Context, accountID int64, op string) (*action.Decision, error) {
	cost, ok := s.costs[op]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, ErrUnknownOperation)
	}

	account, err := s.stores.Credits().GetAccount(ctx, accountID)
	if errors.Is(err, store.ErrNotFound) {
		return &action.Decision{Allowed: false, Reason: "no credit account"}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading credit account: %w", err)
	}

	if account.Balance < cost {
		return &action.Decision{
			Allowed:   false,
			Reason:    "insufficient credits",
			Remaining: account.Balance,
		}, nil
	}

	return &action.Decision{Allowed: true, Remaining: account.Balance - cost}, nil
}

func (s *creditService) Debit(ctx context.Context, accountID int64, op string) error {
	cost, ok := s.costs[op]
	if !ok {
		return fmt.Errorf("%s: %w", op, ErrUnknownOperation)
	}
	if cost == 0 {
		return nil
	}

	entry := &model.CreditEntry{
		ID:        id.New(),
		AccountID: accountID,
		Operation: model.CreditOperation(op),
		Amount:    -cost,
	}

	err := s.txRunner.WithTx(ctx, func(stores StoreProvider) error {
		_, err := stores.Credits().ApplyEntry(ctx, entry)
		return err
	})
	if err != nil {
		return fmt.Errorf("debiting %s: %w", op, err)
	}
	return nil
}

func (s *creditService) EnsureWithGrant(ctx context.Context, accountID int64) error {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "onboard.service.credits",
		AccountID: &accountID,
	})

	return s.txRunner.WithTx(ctx, func(stores StoreProvider) error {
		_, created, err := stores.Credits().EnsureAccount(ctx, accountID)
		if err != nil {
			return fmt.Errorf("ensuring credit account: %w", err)
		}
		if !created || s.grant <= 0 {
			return nil
		}

		entry := &model.CreditEntry{
			ID:        id.New(),
			AccountID: accountID,
			Operation: model.CreditOpSignupGrant,
			Amount:    s.grant,
		}
		if _, err := stores.Credits().ApplyEntry(ctx, entry); err != nil {
			return fmt.Errorf("minting signup grant: %w", err)
		}

		slog.InfoContext(ctx, "signup grant minted", "amount", s.grant)
		return nil
	})
}

func (s *creditService) Balance(ctx context.Context, accountID int64) (*model.CreditAccount, error) {
	account, err := s.stores.Credits().GetAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("loading credit account: %w", err)
	}
	return account, nil
}

func (s *creditService) History(ctx context.Context, accountID int64, limit int32) ([]model.CreditEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	entries, err := s.stores.Credits().ListEntries(ctx, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing credit entries: %w", err)
	}
	return entries, nil
}
