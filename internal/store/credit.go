package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"rankwell.app/onboard/internal/model"
)

type creditStore struct {
	q Querier
}

func (s *creditStore) GetAccount(ctx context.Context, accountID int64) (*model.CreditAccount, error) {
	acct := &model.CreditAccount{}
	err := s.q.QueryRow(ctx, `
		SELECT account_id, balance, updated_at
		FROM credit_accounts
		WHERE account_id = $1`, accountID).
		Scan(&acct.AccountID, &acct.Balance, &acct.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return acct, nil
}

func (s *creditStore) EnsureAccount(ctx context.Context, accountID int64) (*model.CreditAccount, bool, error) {
	tag, err := s.q.Exec(ctx, `
		INSERT INTO credit_accounts (account_id, balance)
		VALUES ($1, 0)
		ON CONFLICT (account_id) DO NOTHING`, accountID)
	if err != nil {
		return nil, false, err
	}

	acct, err := s.GetAccount(ctx, accountID)
	if err != nil {
		return nil, false, err
	}
	return acct, tag.RowsAffected() == 1, nil
}

func (s *creditStore) ApplyEntry(ctx context.Context, entry *model.CreditEntry) (*model.CreditAccount, error) {
	// Balance first: the guard in the WHERE clause rejects debits that would
	// go negative without inserting a ledger row.
	acct := &model.CreditAccount{}
	err := s.q.QueryRow(ctx, `
		UPDATE credit_accounts
		SET balance = balance + $2, updated_at = now()
		WHERE account_id = $1 AND balance + $2 >= 0
		RETURNING account_id, balance, updated_at`,
		entry.AccountID, entry.Amount).
		Scan(&acct.AccountID, &acct.Balance, &acct.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if _, getErr := s.GetAccount(ctx, entry.AccountID); errors.Is(getErr, ErrNotFound) {
				return nil, ErrNotFound
			}
			return nil, ErrInsufficientCredits
		}
		return nil, err
	}

	err = s.q.QueryRow(ctx, `
		INSERT INTO credit_entries (id, account_id, operation, amount)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`,
		entry.ID, entry.AccountID, entry.Operation, entry.Amount).
		Scan(&entry.CreatedAt)
	if err != nil {
		return nil, err
	}
	return acct, nil
}

func (s *creditStore) ListEntries(ctx context.Context, accountID int64, limit int32) ([]model.CreditEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.q.Query(ctx, `
		SELECT id, account_id, operation, amount, created_at
		FROM credit_entries
		WHERE account_id = $1
		ORDER BY id DESC
		LIMIT $2`, accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []model.CreditEntry
	for rows.Next() {
		var e model.CreditEntry
		if err := rows.Scan(&e.ID, &e.AccountID, &e.Operation, &e.Amount, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
