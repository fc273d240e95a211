package service_test

import (
	"context"

	"rankwell.app/onboard/internal/action"
	"rankwell.app/onboard/internal/model"
	"rankwell.app/onboard/internal/queue"
	"rankwell.app/onboard/internal/service"
	"rankwell.app/onboard/internal/store"
)

type mockInterviewStore struct {
	createFn           func(ctx context.Context, itv *model.Interview) error
	getByIDFn          func(ctx context.Context, id int64) (*model.Interview, error)
	getByIDForUpdateFn func(ctx context.Context, id int64) (*model.Interview, error)
	findOpenByUserFn   func(ctx context.Context, accountID, userID int64) (*model.Interview, error)
	updateFn           func(ctx context.Context, itv *model.Interview) error
	appendMessageFn    func(ctx context.Context, msg *model.Message) error
	listMessagesFn     func(ctx context.Context, interviewID int64) ([]model.Message, error)
	deleteMessagesFn   func(ctx context.Context, interviewID int64) error

	createCalls         int
	updateCalls         int
	appendCalls         int
	deleteMessagesCalls int
}

func (m *mockInterviewStore) Create(ctx context.Context, itv *model.Interview) error {
	m.createCalls++
	if m.createFn != nil {
		return m.createFn(ctx, itv)
	}
	return nil
}

func (m *mockInterviewStore) GetByID(ctx context.Context, id int64) (*model.Interview, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, store.ErrNotFound
}

func (m *mockInterviewStore) GetByIDForUpdate(ctx context.Context, id int64) (*model.Interview, error) {
	if m.getByIDForUpdateFn != nil {
		return m.getByIDForUpdateFn(ctx, id)
	}
	return nil, store.ErrNotFound
}

func (m *mockInterviewStore) FindOpenByUser(ctx context.Context, accountID, userID int64) (*model.Interview, error) {
	if m.findOpenByUserFn != nil {
		return m.findOpenByUserFn(ctx, accountID, userID)
	}
	return nil, store.ErrNotFound
}

func (m *mockInterviewStore) Update(ctx context.Context, itv *model.Interview) error {
	m.updateCalls++
	if m.updateFn != nil {
		return m.updateFn(ctx, itv)
	}
	return nil
}

func (m *mockInterviewStore) AppendMessage(ctx context.Context, msg *model.Message) error {
	m.appendCalls++
	if m.appendMessageFn != nil {
		return m.appendMessageFn(ctx, msg)
	}
	return nil
}

func (m *mockInterviewStore) ListMessages(ctx context.Context, interviewID int64) ([]model.Message, error) {
	if m.listMessagesFn != nil {
		return m.listMessagesFn(ctx, interviewID)
	}
	return []model.Message{}, nil
}

func (m *mockInterviewStore) DeleteMessages(ctx context.Context, interviewID int64) error {
	m.deleteMessagesCalls++
	if m.deleteMessagesFn != nil {
		return m.deleteMessagesFn(ctx, interviewID)
	}
	return nil
}

type mockQuestionStore struct {
	listActiveFn func(ctx context.Context) ([]model.Question, error)
	getByIDFn    func(ctx context.Context, id string) (*model.Question, error)
	upsertFn     func(ctx context.Context, q *model.Question) error
}

func (m *mockQuestionStore) ListActive(ctx context.Context) ([]model.Question, error) {
	if m.listActiveFn != nil {
		return m.listActiveFn(ctx)
	}
	return []model.Question{}, nil
}

func (m *mockQuestionStore) GetByID(ctx context.Context, id string) (*model.Question, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, store.ErrNotFound
}

func (m *mockQuestionStore) Upsert(ctx context.Context, q *model.Question) error {
	if m.upsertFn != nil {
		return m.upsertFn(ctx, q)
	}
	return nil
}

type mockCreditStore struct {
	getAccountFn    func(ctx context.Context, accountID int64) (*model.CreditAccount, error)
	ensureAccountFn func(ctx context.Context, accountID int64) (*model.CreditAccount, bool, error)
	applyEntryFn    func(ctx context.Context, entry *model.CreditEntry) (*model.CreditAccount, error)
	listEntriesFn   func(ctx context.Context, accountID int64, limit int32) ([]model.CreditEntry, error)

	ensureCalls int
	applyCalls  int
}

func (m *mockCreditStore) GetAccount(ctx context.Context, accountID int64) (*model.CreditAccount, error) {
	if m.getAccountFn != nil {
		return m.getAccountFn(ctx, accountID)
	}
	return nil, store.ErrNotFound
}

func (m *mockCreditStore) EnsureAccount(ctx context.Context, accountID int64) (*model.CreditAccount, bool, error) {
	m.ensureCalls++
	if m.ensureAccountFn != nil {
		return m.ensureAccountFn(ctx, accountID)
	}
	return &model.CreditAccount{AccountID: accountID}, false, nil
}

func (m *mockCreditStore) ApplyEntry(ctx context.Context, entry *model.CreditEntry) (*model.CreditAccount, error) {
	m.applyCalls++
	if m.applyEntryFn != nil {
		return m.applyEntryFn(ctx, entry)
	}
	return &model.CreditAccount{AccountID: entry.AccountID, Balance: entry.Amount}, nil
}

func (m *mockCreditStore) ListEntries(ctx context.Context, accountID int64, limit int32) ([]model.CreditEntry, error) {
	if m.listEntriesFn != nil {
		return m.listEntriesFn(ctx, accountID, limit)
	}
	return []model.CreditEntry{}, nil
}

type mockUserStore struct {
	getByIDFn       func(ctx context.Context, id int64) (*model.User, error)
	getByWorkOSIDFn func(ctx context.Context, workosID string) (*model.User, error)
	upsertFn        func(ctx context.Context, user *model.User) error
}

func (m *mockUserStore) GetByID(ctx context.Context, id int64) (*model.User, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, store.ErrNotFound
}

func (m *mockUserStore) GetByWorkOSID(ctx context.Context, workosID string) (*model.User, error) {
	if m.getByWorkOSIDFn != nil {
		return m.getByWorkOSIDFn(ctx, workosID)
	}
	return nil, store.ErrNotFound
}

func (m *mockUserStore) UpsertByWorkOSID(ctx context.Context, user *model.User) error {
	if m.upsertFn != nil {
		return m.upsertFn(ctx, user)
	}
	return nil
}

type mockSessionStore struct {
	createFn   func(ctx context.Context, session *model.Session) error
	getValidFn func(ctx context.Context, id int64) (*model.Session, error)
	deleteFn   func(ctx context.Context, id int64) error
}

func (m *mockSessionStore) Create(ctx context.Context, session *model.Session) error {
	if m.createFn != nil {
		return m.createFn(ctx, session)
	}
	return nil
}

func (m *mockSessionStore) GetValid(ctx context.Context, id int64) (*model.Session, error) {
	if m.getValidFn != nil {
		return m.getValidFn(ctx, id)
	}
	return nil, store.ErrNotFound
}

func (m *mockSessionStore) Delete(ctx context.Context, id int64) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

type mockAccountStore struct {
	createFn    func(ctx context.Context, account *model.Account) error
	getByIDFn   func(ctx context.Context, id int64) (*model.Account, error)
	getBySlugFn func(ctx context.Context, slug string) (*model.Account, error)
}

func (m *mockAccountStore) Create(ctx context.Context, account *model.Account) error {
	if m.createFn != nil {
		return m.createFn(ctx, account)
	}
	return nil
}

func (m *mockAccountStore) GetByID(ctx context.Context, id int64) (*model.Account, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, store.ErrNotFound
}

func (m *mockAccountStore) GetBySlug(ctx context.Context, slug string) (*model.Account, error) {
	if m.getBySlugFn != nil {
		return m.getBySlugFn(ctx, slug)
	}
	return nil, store.ErrNotFound
}

type mockSiteStore struct {
	createFromInterviewFn func(ctx context.Context, site *model.Site) error
	getByInterviewIDFn    func(ctx context.Context, interviewID int64) (*model.Site, error)
}

func (m *mockSiteStore) CreateFromInterview(ctx context.Context, site *model.Site) error {
	if m.createFromInterviewFn != nil {
		return m.createFromInterviewFn(ctx, site)
	}
	return nil
}

func (m *mockSiteStore) GetByInterviewID(ctx context.Context, interviewID int64) (*model.Site, error) {
	if m.getByInterviewIDFn != nil {
		return m.getByInterviewIDFn(ctx, interviewID)
	}
	return nil, store.ErrNotFound
}

type mockSuggestionEvalStore struct {
	insertFn func(ctx context.Context, eval *model.SuggestionEval) error
	listFn   func(ctx context.Context, interviewID int64) ([]model.SuggestionEval, error)
}

func (m *mockSuggestionEvalStore) Insert(ctx context.Context, eval *model.SuggestionEval) error {
	if m.insertFn != nil {
		return m.insertFn(ctx, eval)
	}
	return nil
}

func (m *mockSuggestionEvalStore) ListByInterview(ctx context.Context, interviewID int64) ([]model.SuggestionEval, error) {
	if m.listFn != nil {
		return m.listFn(ctx, interviewID)
	}
	return []model.SuggestionEval{}, nil
}

// mockStoreProvider serves the same mocks for pool reads and for the
// transactional callback, so tests see one coherent state.
type mockStoreProvider struct {
	interviews *mockInterviewStore
	questions  *mockQuestionStore
	credits    *mockCreditStore
	users      *mockUserStore
	sessions   *mockSessionStore
	accounts   *mockAccountStore
	sites      *mockSiteStore
	evals      *mockSuggestionEvalStore
}

func newMockProvider() *mockStoreProvider {
	return &mockStoreProvider{
		interviews: &mockInterviewStore{},
		questions:  &mockQuestionStore{},
		credits:    &mockCreditStore{},
		users:      &mockUserStore{},
		sessions:   &mockSessionStore{},
		accounts:   &mockAccountStore{},
		sites:      &mockSiteStore{},
		evals:      &mockSuggestionEvalStore{},
	}
}

func (m *mockStoreProvider) Interviews() store.InterviewStore        { return m.interviews }
func (m *mockStoreProvider) Questions() store.QuestionStore          { return m.questions }
func (m *mockStoreProvider) Credits() store.CreditStore              { return m.credits }
func (m *mockStoreProvider) Users() store.UserStore                  { return m.users }
func (m *mockStoreProvider) Sessions() store.SessionStore            { return m.sessions }
func (m *mockStoreProvider) Accounts() store.AccountStore            { return m.accounts }
func (m *mockStoreProvider) Sites() store.SiteStore                  { return m.sites }
func (m *mockStoreProvider) SuggestionEvals() store.SuggestionEvalStore {
	return m.evals
}

type mockTxRunner struct {
	provider *mockStoreProvider
	withTxFn func(ctx context.Context, fn func(stores service.StoreProvider) error) error
	txCalls  int
}

func (m *mockTxRunner) WithTx(ctx context.Context, fn func(stores service.StoreProvider) error) error {
	m.txCalls++
	if m.withTxFn != nil {
		return m.withTxFn(ctx, fn)
	}
	return fn(m.provider)
}

type mockProducer struct {
	enqueueFn    func(ctx context.Context, msg queue.TaskMessage) error
	enqueueCalls int
	lastMsg      queue.TaskMessage
}

func (m *mockProducer) Enqueue(ctx context.Context, msg queue.TaskMessage) error {
	m.enqueueCalls++
	m.lastMsg = msg
	if m.enqueueFn != nil {
		return m.enqueueFn(ctx, msg)
	}
	return nil
}

func (m *mockProducer) Close() error { return nil }

type mockFinalizer struct {
	calls int
	last  *model.Interview
}

func (m *mockFinalizer) OnComplete(_ context.Context, itv *model.Interview) {
	m.calls++
	m.last = itv
}

// mockHandler is a programmable action.Handler for dispatcher wiring.
type mockHandler struct {
	name     action.Name
	invokeFn func(ctx context.Context, actx *action.Context) (*action.Result, error)
	calls    int
}

func (m *mockHandler) Name() action.Name { return m.name }

func (m *mockHandler) Invoke(ctx context.Context, actx *action.Context) (*action.Result, error) {
	m.calls++
	if m.invokeFn != nil {
		return m.invokeFn(ctx, actx)
	}
	return &action.Result{}, nil
}
