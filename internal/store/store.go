package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the slice of pgx that both *pgxpool.Pool and pgx.Tx satisfy, so
// every store runs unchanged on the pool or inside a transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Stores bundles the per-aggregate stores over one Querier.
type Stores struct {
	q Querier
}

func NewStores(q Querier) *Stores {
	return &Stores{q: q}
}

func (s *Stores) Interviews() InterviewStore {
	return &interviewStore{q: s.q}
}

func (s *Stores) Questions() QuestionStore {
	return &questionStore{q: s.q}
}

func (s *Stores) Credits() CreditStore {
	return &creditStore{q: s.q}
}

func (s *Stores) Users() UserStore {
	return &userStore{q: s.q}
}

func (s *Stores) Sessions() SessionStore {
	return &sessionStore{q: s.q}
}

func (s *Stores) Accounts() AccountStore {
	return &accountStore{q: s.q}
}

func (s *Stores) Sites() SiteStore {
	return &siteStore{q: s.q}
}

func (s *Stores) SuggestionEvals() SuggestionEvalStore {
	return &suggestionEvalStore{q: s.q}
}

// marshalJSONMap encodes a response or settings map for a jsonb column,
// normalizing nil to an empty object so NULL never round-trips back.
func marshalJSONMap(m map[string]any) ([]byte, error) {
	if m == nil {
		m = map[string]any{}
	}
	return json.Marshal(m)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
