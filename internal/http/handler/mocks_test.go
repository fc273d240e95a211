package handler_test

import (
	"context"

	"rankwell.app/onboard/internal/action"
	"rankwell.app/onboard/internal/graph"
	"rankwell.app/onboard/internal/model"
	"rankwell.app/onboard/internal/service"
)

type mockInterviewService struct {
	getOrCreateFn  func(ctx context.Context, accountID, userID int64) (*service.InterviewState, error)
	getFn          func(ctx context.Context, accountID, userID int64) (*service.InterviewState, error)
	submitFn       func(ctx context.Context, req service.SubmitRequest) (*service.SubmitResult, error)
	nextQuestionFn func(ctx context.Context, accountID, userID int64) (*model.Question, error)
	progressFn     func(ctx context.Context, accountID, userID int64) (graph.Progress, error)
	messagesFn     func(ctx context.Context, accountID, userID int64) ([]model.Message, error)
	invokeActionFn func(ctx context.Context, accountID, userID int64, name action.Name) (*service.ActionOutcome, error)
	revertFn       func(ctx context.Context, req service.RevertRequest) (*service.InterviewState, error)
	resetFn        func(ctx context.Context, accountID, userID int64) (*service.InterviewState, error)
	abandonFn      func(ctx context.Context, accountID, userID int64) error
}

func (m *mockInterviewService) GetOrCreate(ctx context.Context, accountID, userID int64) (*service.InterviewState, error) {
	if m.getOrCreateFn != nil {
		return m.getOrCreateFn(ctx, accountID, userID)
	}
	return nil, service.ErrNoOpenInterview
}

func (m *mockInterviewService) Get(ctx context.Context, accountID, userID int64) (*service.InterviewState, error) {
	if m.getFn != nil {
		return m.getFn(ctx, accountID, userID)
	}
	return nil, service.ErrNoOpenInterview
}

func (m *mockInterviewService) Submit(ctx context.Context, req service.SubmitRequest) (*service.SubmitResult, error) {
	if m.submitFn != nil {
		return m.submitFn(ctx, req)
	}
	return nil, service.ErrNoOpenInterview
}

func (m *mockInterviewService) NextQuestion(ctx context.Context, accountID, userID int64) (*model.Question, error) {
	if m.nextQuestionFn != nil {
		return m.nextQuestionFn(ctx, accountID, userID)
	}
	return nil, nil
}

func (m *mockInterviewService) Progress(ctx context.Context, accountID, userID int64) (graph.Progress, error) {
	if m.progressFn != nil {
		return m.progressFn(ctx, accountID, userID)
	}
	return graph.Progress{}, nil
}

func (m *mockInterviewService) Messages(ctx context.Context, accountID, userID int64) ([]model.Message, error) {
	if m.messagesFn != nil {
		return m.messagesFn(ctx, accountID, userID)
	}
	return nil, nil
}

func (m *mockInterviewService) InvokeAction(ctx context.Context, accountID, userID int64, name action.Name) (*service.ActionOutcome, error) {
	if m.invokeActionFn != nil {
		return m.invokeActionFn(ctx, accountID, userID, name)
	}
	return nil, service.ErrNoOpenInterview
}

func (m *mockInterviewService) Revert(ctx context.Context, req service.RevertRequest) (*service.InterviewState, error) {
	if m.revertFn != nil {
		return m.revertFn(ctx, req)
	}
	return nil, service.ErrNoOpenInterview
}

func (m *mockInterviewService) Reset(ctx context.Context, accountID, userID int64) (*service.InterviewState, error) {
	if m.resetFn != nil {
		return m.resetFn(ctx, accountID, userID)
	}
	return nil, service.ErrNoOpenInterview
}

func (m *mockInterviewService) Abandon(ctx context.Context, accountID, userID int64) error {
	if m.abandonFn != nil {
		return m.abandonFn(ctx, accountID, userID)
	}
	return nil
}

type mockAuthService struct {
	getAuthorizationURLFn func(state string) (string, error)
	handleCallbackFn      func(ctx context.Context, code string) (*service.CallbackResult, error)
	validateSessionFn     func(ctx context.Context, sessionID int64) (*model.User, *model.Account, error)
	logoutFn              func(ctx context.Context, sessionID int64) error
}

func (m *mockAuthService) GetAuthorizationURL(state string) (string, error) {
	if m.getAuthorizationURLFn != nil {
		return m.getAuthorizationURLFn(state)
	}
	return "https://auth.example/authorize?state=" + state, nil
}

func (m *mockAuthService) HandleCallback(ctx context.Context, code string) (*service.CallbackResult, error) {
	if m.handleCallbackFn != nil {
		return m.handleCallbackFn(ctx, code)
	}
	return nil, service.ErrInvalidCode
}

func (m *mockAuthService) ValidateSession(ctx context.Context, sessionID int64) (*model.User, *model.Account, error) {
	if m.validateSessionFn != nil {
		return m.validateSessionFn(ctx, sessionID)
	}
	return nil, nil, service.ErrSessionExpired
}

func (m *mockAuthService) Logout(ctx context.Context, sessionID int64) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, sessionID)
	}
	return nil
}

type mockCreditService struct {
	authorizeFn func(ctx context.Context, accountID int64, op string) (*action.Decision, error)
	debitFn     func(ctx context.Context, accountID int64, op string) error
	ensureFn    func(ctx context.Context, accountID int64) error
	balanceFn   func(ctx context.Context, accountID int64) (*model.CreditAccount, error)
	historyFn   func(ctx context.Context, accountID int64, limit int32) ([]model.CreditEntry, error)
}

func (m *mockCreditService) Authorize(ctx context.Context, accountID int64, op string) (*action.Decision, error) {
	if m.authorizeFn != nil {
		return m.authorizeFn(ctx, accountID, op)
	}
	return &action.Decision{Allowed: true}, nil
}

func (m *mockCreditService) Debit(ctx context.Context, accountID int64, op string) error {
	if m.debitFn != nil {
		return m.debitFn(ctx, accountID, op)
	}
	return nil
}

func (m *mockCreditService) EnsureWithGrant(ctx context.Context, accountID int64) error {
	if m.ensureFn != nil {
		return m.ensureFn(ctx, accountID)
	}
	return nil
}

func (m *mockCreditService) Balance(ctx context.Context, accountID int64) (*model.CreditAccount, error) {
	if m.balanceFn != nil {
		return m.balanceFn(ctx, accountID)
	}
	return &model.CreditAccount{AccountID: accountID}, nil
}

func (m *mockCreditService) History(ctx context.Context, accountID int64, limit int32) ([]model.CreditEntry, error) {
	if m.historyFn != nil {
		return m.historyFn(ctx, accountID, limit)
	}
	return nil, nil
}
