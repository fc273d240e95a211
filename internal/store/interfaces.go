package store

import (
	"context"
	"errors"

	"rankwell.app/onboard/internal/model"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when an insert collides with a uniqueness
// constraint the caller can react to (open interview per user, site slug).
var ErrConflict = errors.New("already exists")

// ErrInsufficientCredits is returned by CreditStore.ApplyEntry when a debit
// would push the balance below zero.
var ErrInsufficientCredits = errors.New("insufficient credits")

// InterviewStore defines the contract for interview data access
type InterviewStore interface {
	Create(ctx context.Context, itv *model.Interview) error
	GetByID(ctx context.Context, id int64) (*model.Interview, error)
	// GetByIDForUpdate locks the row until the surrounding transaction ends.
	GetByIDForUpdate(ctx context.Context, id int64) (*model.Interview, error)
	FindOpenByUser(ctx context.Context, accountID, userID int64) (*model.Interview, error)
	Update(ctx context.Context, itv *model.Interview) error
	AppendMessage(ctx context.Context, msg *model.Message) error
	ListMessages(ctx context.Context, interviewID int64) ([]model.Message, error)
	DeleteMessages(ctx context.Context, interviewID int64) error
}

// QuestionStore defines the contract for question catalog access
type QuestionStore interface {
	ListActive(ctx context.Context) ([]model.Question, error)
	GetByID(ctx context.Context, id string) (*model.Question, error)
	Upsert(ctx context.Context, q *model.Question) error
}

// CreditStore defines the contract for the credit ledger
type CreditStore interface {
	GetAccount(ctx context.Context, accountID int64) (*model.CreditAccount, error)
	// EnsureAccount inserts a zero-balance account if none exists and reports
	// whether it did; the caller mints the signup grant exactly once.
	EnsureAccount(ctx context.Context, accountID int64) (*model.CreditAccount, bool, error)
	// ApplyEntry inserts a ledger row and moves the materialized balance
	// together; run it inside the caller's transaction.
	ApplyEntry(ctx context.Context, entry *model.CreditEntry) (*model.CreditAccount, error)
	ListEntries(ctx context.Context, accountID int64, limit int32) ([]model.CreditEntry, error)
}

// UserStore defines the contract for user data access
type UserStore interface {
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetByWorkOSID(ctx context.Context, workosID string) (*model.User, error)
	UpsertByWorkOSID(ctx context.Context, user *model.User) error
}

// SessionStore defines the contract for session data access
type SessionStore interface {
	Create(ctx context.Context, session *model.Session) error
	GetValid(ctx context.Context, id int64) (*model.Session, error) // checks expiry
	Delete(ctx context.Context, id int64) error
}

// AccountStore defines the contract for tenant account data access
type AccountStore interface {
	Create(ctx context.Context, account *model.Account) error
	GetByID(ctx context.Context, id int64) (*model.Account, error)
	GetBySlug(ctx context.Context, slug string) (*model.Account, error)
}

// SiteStore defines the contract for provisioned site data access
type SiteStore interface {
	// CreateFromInterview inserts the site built from a completed interview.
	// Idempotent on interview_id: a replay loads the existing row into site
	// instead of inserting twice.
	CreateFromInterview(ctx context.Context, site *model.Site) error
	GetByInterviewID(ctx context.Context, interviewID int64) (*model.Site, error)
}

// SuggestionEvalStore defines the contract for AI suggestion audit rows
type SuggestionEvalStore interface {
	Insert(ctx context.Context, eval *model.SuggestionEval) error
	ListByInterview(ctx context.Context, interviewID int64) ([]model.SuggestionEval, error)
}
