package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"rankwell.app/onboard/internal/model"
)

type sessionStore struct {
	q Querier
}

func (s *sessionStore) Create(ctx context.Context, session *model.Session) error {
	row := s.q.QueryRow(ctx, `
		INSERT INTO sessions (id, user_id, workos_session_id, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`,
		session.ID, session.UserID, session.WorkOSSessionID, session.ExpiresAt)
	return row.Scan(&session.CreatedAt)
}

func (s *sessionStore) GetValid(ctx context.Context, id int64) (*model.Session, error) {
	sess := &model.Session{}
	err := s.q.QueryRow(ctx, `
		SELECT id, user_id, workos_session_id, created_at, expires_at
		FROM sessions
		WHERE id = $1 AND expires_at > now()`, id).
		Scan(&sess.ID, &sess.UserID, &sess.WorkOSSessionID, &sess.CreatedAt, &sess.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return sess, nil
}

func (s *sessionStore) Delete(ctx context.Context, id int64) error {
	_, err := s.q.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	return err
}
