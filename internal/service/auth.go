package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/workos/workos-go/v6/pkg/usermanagement"
	"rankwell.app/onboard/common"
	"rankwell.app/onboard/common/id"
	"rankwell.app/onboard/core/config"
	"rankwell.app/onboard/internal/model"
	"rankwell.app/onboard/internal/store"
)

var (
	ErrInvalidCode    = errors.New("invalid authorization code")
	ErrUserNotFound   = errors.New("user not found")
	ErrSessionExpired = errors.New("session expired")
)

const sessionTTL = 7 * 24 * time.Hour

// CallbackResult is everything the login callback produced: the (possibly
// just bootstrapped) tenant, the user and the fresh session.
type CallbackResult struct {
	User    *model.User
	Account *model.Account
	Session *model.Session
}

type AuthService interface {
	GetAuthorizationURL(state string) (string, error)
	HandleCallback(ctx context.Context, code string) (*CallbackResult, error)
	ValidateSession(ctx context.Context, sessionID int64) (*model.User, *model.Account, error)
	Logout(ctx context.Context, sessionID int64) error
}

type authService struct {
	stores   StoreProvider
	txRunner TxRunner
	credits  CreditService
	cfg      config.WorkOSConfig
}

func NewAuthService(
	stores StoreProvider,
	txRunner TxRunner,
	credits CreditService,
	cfg config.WorkOSConfig,
) AuthService {
	usermanagement.SetAPIKey(cfg.APIKey)
	return &authService{
		stores:   stores,
		txRunner: txRunner,
		credits:  credits,
		cfg:      cfg,
	}
}

func (s *authService) GetAuthorizationURL(state string) (string, error) {
	url, err := usermanagement.GetAuthorizationURL(usermanagement.GetAuthorizationURLOpts{
		ClientID:    s.cfg.ClientID,
		RedirectURI: s.cfg.RedirectURI,
		State:       state,
		Provider:    "authkit",
	})
	if err != nil {
		return "", fmt.Errorf("generating authorization URL: %w", err)
	}
	return url.String(), nil
}

// HandleCallback exchanges the AuthKit code, upserts the user and issues a
// session. A first login also bootstraps the tenant: a trial account plus its
// credit account with the signup grant.
func (s *authService) HandleCallback(ctx context.Context, code string) (*CallbackResult, error) {
	authResponse, err := usermanagement.AuthenticateWithCode(ctx, usermanagement.AuthenticateWithCodeOpts{
		ClientID: s.cfg.ClientID,
		Code:     code,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to authenticate with code", "error", err)
		return nil, ErrInvalidCode
	}

	workosUser := authResponse.User

	var avatarURL *string
	if workosUser.ProfilePictureURL != "" {
		avatarURL = &workosUser.ProfilePictureURL
	}

	user := &model.User{
		ID:        id.New(),
		Name:      buildUserName(workosUser),
		Email:     workosUser.Email,
		AvatarURL: avatarURL,
		WorkOSID:  &workosUser.ID,
	}

	var account *model.Account
	session := &model.Session{
		ID:        id.New(),
		ExpiresAt: time.Now().Add(sessionTTL),
	}

	err = s.txRunner.WithTx(ctx, func(stores StoreProvider) error {
		existing, err := stores.Users().GetByWorkOSID(ctx, workosUser.ID)
		switch {
		case errors.Is(err, store.ErrNotFound):
			account, err = s.bootstrapAccount(ctx, stores, user.Name)
			if err != nil {
				return err
			}
			user.AccountID = account.ID
		case err != nil:
			return fmt.Errorf("looking up user: %w", err)
		default:
			user.ID = existing.ID
			user.AccountID = existing.AccountID
			account, err = stores.Accounts().GetByID(ctx, existing.AccountID)
			if err != nil {
				return fmt.Errorf("loading account: %w", err)
			}
		}

		if err := stores.Users().UpsertByWorkOSID(ctx, user); err != nil {
			return fmt.Errorf("upserting user: %w", err)
		}

		session.UserID = user.ID
		if err := stores.Sessions().Create(ctx, session); err != nil {
			return fmt.Errorf("creating session: %w", err)
		}
		return nil
	})
	if err != nil {
		slog.ErrorContext(ctx, "login bootstrap failed",
			"error", err,
			"email", user.Email,
			"workos_id", workosUser.ID)
		return nil, err
	}

	// Idempotent: the account row is created once and the grant minted with
	// it, so running this on every login self-heals a failed first attempt.
	if err := s.credits.EnsureWithGrant(ctx, account.ID); err != nil {
		slog.ErrorContext(ctx, "failed to ensure credit account",
			"error", err,
			"account_id", account.ID)
	}

	slog.InfoContext(ctx, "user authenticated",
		"user_id", user.ID,
		"account_id", account.ID,
		"email", user.Email,
		"session_id", session.ID)

	return &CallbackResult{User: user, Account: account, Session: session}, nil
}

func (s *authService) ValidateSession(ctx context.Context, sessionID int64) (*model.User, *model.Account, error) {
	session, err := s.stores.Sessions().GetValid(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, ErrSessionExpired
		}
		return nil, nil, fmt.Errorf("getting session: %w", err)
	}

	user, err := s.stores.Users().GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, ErrUserNotFound
		}
		return nil, nil, fmt.Errorf("getting user: %w", err)
	}

	account, err := s.stores.Accounts().GetByID(ctx, user.AccountID)
	if err != nil {
		return nil, nil, fmt.Errorf("getting account: %w", err)
	}

	return user, account, nil
}

func (s *authService) Logout(ctx context.Context, sessionID int64) error {
	if err := s.stores.Sessions().Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

func (s *authService) bootstrapAccount(ctx context.Context, stores StoreProvider, ownerName string) (*model.Account, error) {
	slug, err := s.ensureSlug(ctx, stores, ownerName)
	if err != nil {
		return nil, err
	}

	account := &model.Account{
		ID:   id.New(),
		Name: ownerName,
		Slug: slug,
		Plan: model.PlanTrial,
	}
	if err := stores.Accounts().Create(ctx, account); err != nil {
		return nil, fmt.Errorf("creating account: %w", err)
	}

	slog.InfoContext(ctx, "account bootstrapped",
		"account_id", account.ID,
		"slug", account.Slug)
	return account, nil
}

func (s *authService) ensureSlug(ctx context.Context, stores StoreProvider, name string) (string, error) {
	base, err := common.Slugify(name, "account")
	if err != nil {
		return "", fmt.Errorf("generating slug: %w", err)
	}

	// Fast path
	if _, err := stores.Accounts().GetBySlug(ctx, base); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return base, nil
		}
		return "", fmt.Errorf("checking slug availability: %w", err)
	}

	// Add numeric suffix until available
	for i := 1; i <= 20; i++ {
		candidate := fmt.Sprintf("%s-%d", base, i)
		_, err := stores.Accounts().GetBySlug(ctx, candidate)
		if errors.Is(err, store.ErrNotFound) {
			return candidate, nil
		}
		if err != nil {
			return "", fmt.Errorf("checking slug availability: %w", err)
		}
	}

	return "", fmt.Errorf("unable to find available slug for %q", base)
}

func buildUserName(user usermanagement.User) string {
	if user.FirstName != "" && user.LastName != "" {
		return user.FirstName + " " + user.LastName
	}
	if user.FirstName != "" {
		return user.FirstName
	}
	if user.LastName != "" {
		return user.LastName
	}
	return user.Email
}
