package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"rankwell.app/onboard/internal/model"
)

type accountStore struct {
	q Querier
}

func (s *accountStore) Create(ctx context.Context, account *model.Account) error {
	err := s.q.QueryRow(ctx, `
		INSERT INTO accounts (id, name, slug, plan)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at`,
		account.ID, account.Name, account.Slug, account.Plan).
		Scan(&account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return err
	}
	return nil
}

func (s *accountStore) GetByID(ctx context.Context, id int64) (*model.Account, error) {
	return s.get(ctx, `SELECT id, name, slug, plan, created_at, updated_at FROM accounts WHERE id = $1`, id)
}

func (s *accountStore) GetBySlug(ctx context.Context, slug string) (*model.Account, error) {
	return s.get(ctx, `SELECT id, name, slug, plan, created_at, updated_at FROM accounts WHERE slug = $1`, slug)
}

func (s *accountStore) get(ctx context.Context, sql string, arg any) (*model.Account, error) {
	account := &model.Account{}
	err := s.q.QueryRow(ctx, sql, arg).
		Scan(&account.ID, &account.Name, &account.Slug, &account.Plan, &account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return account, nil
}
