package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"rankwell.app/onboard/internal/model"
)

type userStore struct {
	q Querier
}

const userCols = `id, account_id, name, email, avatar_url, workos_id, created_at, updated_at`

func (s *userStore) GetByID(ctx context.Context, id int64) (*model.User, error) {
	u := &model.User{}
	err := s.q.QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE id = $1`, id).
		Scan(&u.ID, &u.AccountID, &u.Name, &u.Email, &u.AvatarURL, &u.WorkOSID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return u, nil
}

func (s *userStore) GetByWorkOSID(ctx context.Context, workosID string) (*model.User, error) {
	u := &model.User{}
	err := s.q.QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE workos_id = $1`, workosID).
		Scan(&u.ID, &u.AccountID, &u.Name, &u.Email, &u.AvatarURL, &u.WorkOSID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return u, nil
}

// UpsertByWorkOSID inserts the user on first login and refreshes profile
// fields on every later one. The caller sets ID and AccountID for the insert
// path; on conflict the stored identity wins and the model is reloaded from
// the row.
func (s *userStore) UpsertByWorkOSID(ctx context.Context, user *model.User) error {
	row := s.q.QueryRow(ctx, `
		INSERT INTO users (id, account_id, name, email, avatar_url, workos_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (workos_id) DO UPDATE SET
			name = EXCLUDED.name,
			email = EXCLUDED.email,
			avatar_url = EXCLUDED.avatar_url,
			updated_at = now()
		RETURNING `+userCols,
		user.ID, user.AccountID, user.Name, user.Email, user.AvatarURL, user.WorkOSID)
	return row.Scan(&user.ID, &user.AccountID, &user.Name, &user.Email, &user.AvatarURL, &user.WorkOSID, &user.CreatedAt, &user.UpdatedAt)
}
