package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"rankwell.app/onboard/common/id"
	"rankwell.app/onboard/common/logger"
	"rankwell.app/onboard/internal/action"
	"rankwell.app/onboard/internal/graph"
	"rankwell.app/onboard/internal/invalidate"
	"rankwell.app/onboard/internal/model"
	"rankwell.app/onboard/internal/store"
	"rankwell.app/onboard/internal/validate"
)

var (
	// ErrNoOpenInterview is returned when the user has no NOT_STARTED or
	// IN_PROGRESS interview to operate on.
	ErrNoOpenInterview = errors.New("no open interview")

	// ErrQuestionNotFound is returned when a submission or revert references
	// a question id missing from the active catalog.
	ErrQuestionNotFound = errors.New("question not found")

	// ErrInvalidTarget is returned when a revert request names neither a
	// question nor a step, or a step outside the active flow.
	ErrInvalidTarget = errors.New("invalid revert target")
)

// ValidationError carries the validator's verdict back to the caller without
// touching interview state. errors.As-able so the HTTP layer can surface the
// suggestion payload.
type ValidationError struct {
	QuestionID string
	Result     validate.Result
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.QuestionID, e.Result.Error)
}

// ActionError marks a manual action that was allowed and dispatched but whose
// handler failed. Distinct from ErrNotAllowed/ErrDenied (403 territory) and
// from persistence errors.
type ActionError struct {
	Action action.Name
	Err    error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("action %s failed: %v", e.Action, e.Err)
}

func (e *ActionError) Unwrap() error { return e.Err }

// InterviewState is the client-facing view of one interview: the row plus the
// derived position and progress. NextQuestion is nil once every reachable
// question is answered.
type InterviewState struct {
	Interview    *model.Interview
	NextQuestion *model.Question
	Progress     graph.Progress
}

type SubmitRequest struct {
	AccountID      int64
	UserID         int64
	QuestionID     string
	Value          any
	SkipValidation bool
}

type SubmitResult struct {
	Interview      *model.Interview
	NextQuestion   *model.Question
	Progress       graph.Progress
	ActionFailures []action.Failure
}

type RevertRequest struct {
	AccountID        int64
	UserID           int64
	TargetIndex      *int32
	TargetQuestionID string
}

// ActionOutcome reports a manual action invocation: which externalData keys
// the handler stored.
type ActionOutcome struct {
	Action     action.Name
	StoredKeys []string
}

// CompletionFinalizer is notified after an interview transition to COMPLETED
// has committed. Implementations must not fail the caller.
type CompletionFinalizer interface {
	OnComplete(ctx context.Context, itv *model.Interview)
}

// InterviewService drives the question flow: lazy session creation,
// submission with validation/invalidation/auto-actions, derivation of the
// next question and progress, manual actions, revert, reset and abandon.
type InterviewService interface {
	GetOrCreate(ctx context.Context, accountID, userID int64) (*InterviewState, error)
	Get(ctx context.Context, accountID, userID int64) (*InterviewState, error)
	Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error)
	NextQuestion(ctx context.Context, accountID, userID int64) (*model.Question, error)
	Progress(ctx context.Context, accountID, userID int64) (graph.Progress, error)
	Messages(ctx context.Context, accountID, userID int64) ([]model.Message, error)
	InvokeAction(ctx context.Context, accountID, userID int64, name action.Name) (*ActionOutcome, error)
	Revert(ctx context.Context, req RevertRequest) (*InterviewState, error)
	Reset(ctx context.Context, accountID, userID int64) (*InterviewState, error)
	Abandon(ctx context.Context, accountID, userID int64) error
}

type interviewService struct {
	stores      StoreProvider
	txRunner    TxRunner
	dispatcher  *action.Dispatcher
	invalidator *invalidate.Engine
	finalizer   CompletionFinalizer
}

func NewInterviewService(
	stores StoreProvider,
	txRunner TxRunner,
	dispatcher *action.Dispatcher,
	invalidator *invalidate.Engine,
	finalizer CompletionFinalizer,
) InterviewService {
	return &interviewService{
		stores:      stores,
		txRunner:    txRunner,
		dispatcher:  dispatcher,
		invalidator: invalidator,
		finalizer:   finalizer,
	}
}

const completionPrompt = "You're all set! We're building your SEO workspace now — it will appear on your dashboard in a moment."

func (s *interviewService) GetOrCreate(ctx context.Context, accountID, userID int64) (*InterviewState, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "onboard.service.interview",
		AccountID: &accountID,
		UserID:    &userID,
	})

	questions, err := s.activeQuestions(ctx)
	if err != nil {
		return nil, err
	}

	itv, err := s.openInterview(ctx, accountID, userID)
	switch {
	case err == nil:
		return stateOf(ctx, itv, questions), nil
	case errors.Is(err, ErrNoOpenInterview):
		// fall through to lazy creation
	default:
		return nil, err
	}

	itv = &model.Interview{
		ID:                 id.New(),
		AccountID:          accountID,
		UserID:             userID,
		Status:             model.InterviewStatusNotStarted,
		CurrentStep:        0,
		Responses:          map[string]any{},
		ExternalData:       map[string]any{},
		QuestionSetVersion: catalogVersion(questions),
	}

	first := graph.NextQuestion(ctx, questions, nil, nil)

	err = s.txRunner.WithTx(ctx, func(stores StoreProvider) error {
		if err := stores.Interviews().Create(ctx, itv); err != nil {
			return fmt.Errorf("creating interview: %w", err)
		}
		if first != nil {
			if err := stores.Interviews().AppendMessage(ctx, promptMessage(itv.ID, first)); err != nil {
				return fmt.Errorf("appending first prompt: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		// A racing create lost to the one-open-interview-per-user index;
		// the winner's row is the session.
		if errors.Is(err, store.ErrConflict) {
			itv, err = s.openInterview(ctx, accountID, userID)
			if err != nil {
				return nil, err
			}
			return stateOf(ctx, itv, questions), nil
		}
		return nil, err
	}

	slog.InfoContext(ctx, "interview created", "interview_id", itv.ID)
	return stateOf(ctx, itv, questions), nil
}

func (s *interviewService) Get(ctx context.Context, accountID, userID int64) (*InterviewState, error) {
	questions, err := s.activeQuestions(ctx)
	if err != nil {
		return nil, err
	}
	itv, err := s.openInterview(ctx, accountID, userID)
	if err != nil {
		return nil, err
	}
	return stateOf(ctx, itv, questions), nil
}

func (s *interviewService) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component:  "onboard.service.interview",
		AccountID:  &req.AccountID,
		UserID:     &req.UserID,
		QuestionID: &req.QuestionID,
	})

	questions, err := s.activeQuestions(ctx)
	if err != nil {
		return nil, err
	}

	itv, err := s.openInterview(ctx, req.AccountID, req.UserID)
	if err != nil {
		return nil, err
	}
	ctx = logger.WithLogFields(ctx, logger.LogFields{InterviewID: &itv.ID})

	q := findQuestion(questions, req.QuestionID)
	if q == nil {
		return nil, fmt.Errorf("%s: %w", req.QuestionID, ErrQuestionNotFound)
	}

	if !req.SkipValidation {
		if res := validate.Validate(*q, req.Value); !res.IsValid {
			slog.InfoContext(ctx, "submission rejected by validation", "reason", res.Error)
			return nil, &ValidationError{QuestionID: q.ID, Result: res}
		}
	}

	// Confirmation answers gate other questions, so the accepted yes/no
	// string forms are stored as the boolean they mean.
	if q.Type == model.QuestionTypeConfirmation {
		req.Value = canonicalConfirmation(req.Value)
	}

	// Everything below mutates the in-memory row only; persistence is the
	// single transaction at the end.
	if itv.Responses == nil {
		itv.Responses = map[string]any{}
	}
	key := q.ResponseKey()
	oldValue := itv.Responses[key]

	itv.Responses[q.ID] = req.Value
	if key != q.ID {
		itv.Responses[key] = req.Value
	}

	if fired := s.invalidator.Apply(questions, itv, key, oldValue, req.Value); fired {
		slog.InfoContext(ctx, "invalidation cascade fired", "field", key)
	}

	userMsg := &model.Message{
		ID:          id.New(),
		InterviewID: itv.ID,
		Role:        model.MessageRoleUser,
		Content:     renderValue(req.Value),
	}

	actx := &action.Context{
		InterviewID:  itv.ID,
		AccountID:    itv.AccountID,
		SiteID:       itv.SiteID,
		Responses:    itv.Responses,
		ExternalData: itv.ExternalData,
	}
	failures := s.dispatcher.RunAuto(ctx, q.AutoActions, actx)
	itv.ExternalData = actx.ExternalData

	next := graph.NextQuestion(ctx, questions, itv.Responses, itv.ExternalData)
	completed := next == nil

	var sysMsg *model.Message
	if completed {
		itv.Status = model.InterviewStatusCompleted
		itv.CurrentStep = int32(len(questions))
		now := time.Now().UTC()
		itv.CompletedAt = &now
		sysMsg = &model.Message{
			ID:          id.New(),
			InterviewID: itv.ID,
			Role:        model.MessageRoleSystem,
			Content:     completionPrompt,
		}
	} else {
		itv.Status = model.InterviewStatusInProgress
		itv.CurrentStep = graph.StepIndex(questions, next.ID)
		sysMsg = promptMessage(itv.ID, next)
	}

	err = s.txRunner.WithTx(ctx, func(stores StoreProvider) error {
		if err := stores.Interviews().Update(ctx, itv); err != nil {
			return fmt.Errorf("updating interview: %w", err)
		}
		if err := stores.Interviews().AppendMessage(ctx, userMsg); err != nil {
			return fmt.Errorf("appending user message: %w", err)
		}
		if err := stores.Interviews().AppendMessage(ctx, sysMsg); err != nil {
			return fmt.Errorf("appending system message: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("persisting submission: %w", err)
	}

	slog.InfoContext(ctx, "answer recorded",
		"answered", len(itv.Responses),
		"completed", completed,
		"action_failures", len(failures))

	// The COMPLETED row is committed; provisioning rides the queue from here
	// and must not affect the submission outcome.
	if completed && s.finalizer != nil {
		s.finalizer.OnComplete(ctx, itv)
	}

	return &SubmitResult{
		Interview:      itv,
		NextQuestion:   next,
		Progress:       graph.ComputeProgress(ctx, questions, itv.Responses, itv.ExternalData),
		ActionFailures: failures,
	}, nil
}

func (s *interviewService) NextQuestion(ctx context.Context, accountID, userID int64) (*model.Question, error) {
	questions, err := s.activeQuestions(ctx)
	if err != nil {
		return nil, err
	}
	itv, err := s.openInterview(ctx, accountID, userID)
	if err != nil {
		return nil, err
	}
	return graph.NextQuestion(ctx, questions, itv.Responses, itv.ExternalData), nil
}

func (s *interviewService) Progress(ctx context.Context, accountID, userID int64) (graph.Progress, error) {
	questions, err := s.activeQuestions(ctx)
	if err != nil {
		return graph.Progress{}, err
	}
	itv, err := s.openInterview(ctx, accountID, userID)
	if err != nil {
		return graph.Progress{}, err
	}
	return graph.ComputeProgress(ctx, questions, itv.Responses, itv.ExternalData), nil
}

func (s *interviewService) Messages(ctx context.Context, accountID, userID int64) ([]model.Message, error) {
	itv, err := s.openInterview(ctx, accountID, userID)
	if err != nil {
		return nil, err
	}
	msgs, err := s.stores.Interviews().ListMessages(ctx, itv.ID)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	return msgs, nil
}

func (s *interviewService) InvokeAction(ctx context.Context, accountID, userID int64, name action.Name) (*ActionOutcome, error) {
	nameStr := string(name)
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "onboard.service.interview",
		AccountID: &accountID,
		UserID:    &userID,
		Action:    &nameStr,
	})

	questions, err := s.activeQuestions(ctx)
	if err != nil {
		return nil, err
	}
	itv, err := s.openInterview(ctx, accountID, userID)
	if err != nil {
		return nil, err
	}
	ctx = logger.WithLogFields(ctx, logger.LogFields{InterviewID: &itv.ID})

	// Manual actions are scoped to the question the user is looking at.
	current := graph.NextQuestion(ctx, questions, itv.Responses, itv.ExternalData)
	if current == nil {
		return nil, fmt.Errorf("%s: %w", name, action.ErrNotAllowed)
	}

	actx := &action.Context{
		InterviewID:  itv.ID,
		AccountID:    itv.AccountID,
		SiteID:       itv.SiteID,
		Responses:    itv.Responses,
		ExternalData: itv.ExternalData,
	}
	res, err := s.dispatcher.RunManual(ctx, current.AllowedActions, name, actx)
	if err != nil {
		if errors.Is(err, action.ErrNotAllowed) || errors.Is(err, action.ErrDenied) {
			return nil, err
		}
		return nil, &ActionError{Action: name, Err: err}
	}

	itv.ExternalData = res.MergeInto(itv.ExternalData)

	err = s.txRunner.WithTx(ctx, func(stores StoreProvider) error {
		return stores.Interviews().Update(ctx, itv)
	})
	if err != nil {
		return nil, fmt.Errorf("persisting action result: %w", err)
	}

	keys := make([]string, 0, len(res.StoreInExternalData))
	for k := range res.StoreInExternalData {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	slog.InfoContext(ctx, "manual action completed", "stored_keys", keys)
	return &ActionOutcome{Action: name, StoredKeys: keys}, nil
}

func (s *interviewService) Revert(ctx context.Context, req RevertRequest) (*InterviewState, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "onboard.service.interview",
		AccountID: &req.AccountID,
		UserID:    &req.UserID,
	})

	questions, err := s.activeQuestions(ctx)
	if err != nil {
		return nil, err
	}
	itv, err := s.openInterview(ctx, req.AccountID, req.UserID)
	if err != nil {
		return nil, err
	}
	ctx = logger.WithLogFields(ctx, logger.LogFields{InterviewID: &itv.ID})

	var idx int32
	switch {
	case req.TargetQuestionID != "":
		idx = graph.StepIndex(questions, req.TargetQuestionID)
		if idx < 0 {
			return nil, fmt.Errorf("%s: %w", req.TargetQuestionID, ErrQuestionNotFound)
		}
	case req.TargetIndex != nil:
		idx = *req.TargetIndex
		if idx < 0 || int(idx) >= len(questions) {
			return nil, fmt.Errorf("step %d: %w", idx, ErrInvalidTarget)
		}
	default:
		return nil, ErrInvalidTarget
	}

	target := questions[idx]
	cleared := questions[idx:]

	// Keep answers strictly before the target; the target question and
	// everything after it are asked again.
	kept := make(map[string]any)
	for _, kq := range questions[:idx] {
		v, ok := itv.Responses[kq.ID]
		if !ok {
			v, ok = itv.Responses[kq.ResponseKey()]
		}
		if !ok {
			continue
		}
		kept[kq.ID] = v
		if key := kq.ResponseKey(); key != kq.ID {
			kept[key] = v
		}
	}

	var clearedFields []string
	for _, cq := range cleared {
		if graph.Answered(cq, itv.Responses) {
			clearedFields = append(clearedFields, cq.ResponseKey())
		}
	}

	itv.Responses = kept
	s.invalidator.ApplyCleared(itv, clearedFields)
	itv.CurrentStep = idx
	itv.Status = model.InterviewStatusInProgress
	itv.CompletedAt = nil

	sysMsg := promptMessage(itv.ID, &target)

	err = s.txRunner.WithTx(ctx, func(stores StoreProvider) error {
		if err := stores.Interviews().Update(ctx, itv); err != nil {
			return fmt.Errorf("updating interview: %w", err)
		}
		return stores.Interviews().AppendMessage(ctx, sysMsg)
	})
	if err != nil {
		return nil, fmt.Errorf("persisting revert: %w", err)
	}

	slog.InfoContext(ctx, "interview reverted",
		"target_question", target.ID,
		"target_step", idx,
		"cleared_fields", clearedFields)

	return stateOf(ctx, itv, questions), nil
}

func (s *interviewService) Reset(ctx context.Context, accountID, userID int64) (*InterviewState, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "onboard.service.interview",
		AccountID: &accountID,
		UserID:    &userID,
	})

	questions, err := s.activeQuestions(ctx)
	if err != nil {
		return nil, err
	}

	itv, err := s.openInterview(ctx, accountID, userID)
	if errors.Is(err, ErrNoOpenInterview) {
		return s.GetOrCreate(ctx, accountID, userID)
	}
	if err != nil {
		return nil, err
	}
	ctx = logger.WithLogFields(ctx, logger.LogFields{InterviewID: &itv.ID})

	itv.Responses = map[string]any{}
	itv.ExternalData = map[string]any{}
	itv.CurrentStep = 0
	itv.Status = model.InterviewStatusNotStarted
	itv.CompletedAt = nil
	itv.QuestionSetVersion = catalogVersion(questions)

	first := graph.NextQuestion(ctx, questions, nil, nil)

	err = s.txRunner.WithTx(ctx, func(stores StoreProvider) error {
		if err := stores.Interviews().DeleteMessages(ctx, itv.ID); err != nil {
			return fmt.Errorf("deleting messages: %w", err)
		}
		if err := stores.Interviews().Update(ctx, itv); err != nil {
			return fmt.Errorf("updating interview: %w", err)
		}
		if first != nil {
			if err := stores.Interviews().AppendMessage(ctx, promptMessage(itv.ID, first)); err != nil {
				return fmt.Errorf("appending first prompt: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("persisting reset: %w", err)
	}

	slog.InfoContext(ctx, "interview reset")
	return stateOf(ctx, itv, questions), nil
}

func (s *interviewService) Abandon(ctx context.Context, accountID, userID int64) error {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "onboard.service.interview",
		AccountID: &accountID,
		UserID:    &userID,
	})

	itv, err := s.openInterview(ctx, accountID, userID)
	if err != nil {
		return err
	}

	itv.Status = model.InterviewStatusAbandoned
	err = s.txRunner.WithTx(ctx, func(stores StoreProvider) error {
		return stores.Interviews().Update(ctx, itv)
	})
	if err != nil {
		return fmt.Errorf("persisting abandon: %w", err)
	}

	slog.InfoContext(ctx, "interview abandoned", "interview_id", itv.ID)
	return nil
}

func (s *interviewService) activeQuestions(ctx context.Context) ([]model.Question, error) {
	questions, err := s.stores.Questions().ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading question catalog: %w", err)
	}
	return graph.Active(questions), nil
}

func (s *interviewService) openInterview(ctx context.Context, accountID, userID int64) (*model.Interview, error) {
	itv, err := s.stores.Interviews().FindOpenByUser(ctx, accountID, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNoOpenInterview
	}
	if err != nil {
		return nil, fmt.Errorf("finding open interview: %w", err)
	}
	return itv, nil
}

func stateOf(ctx context.Context, itv *model.Interview, questions []model.Question) *InterviewState {
	return &InterviewState{
		Interview:    itv,
		NextQuestion: graph.NextQuestion(ctx, questions, itv.Responses, itv.ExternalData),
		Progress:     graph.ComputeProgress(ctx, questions, itv.Responses, itv.ExternalData),
	}
}

func findQuestion(questions []model.Question, id string) *model.Question {
	for i := range questions {
		if questions[i].ID == id {
			return &questions[i]
		}
	}
	return nil
}

// catalogVersion pins the interview to the newest version present among the
// active questions.
func catalogVersion(questions []model.Question) int32 {
	var v int32
	for _, q := range questions {
		if q.Version > v {
			v = q.Version
		}
	}
	return v
}

func promptMessage(interviewID int64, q *model.Question) *model.Message {
	return &model.Message{
		ID:          id.New(),
		InterviewID: interviewID,
		Role:        model.MessageRoleSystem,
		Content:     q.Prompt,
		UIComponent: q.InputConfig.Component,
	}
}

// canonicalConfirmation maps the yes/no answer forms the validator accepts to
// a bool. Anything else passes through unchanged.
func canonicalConfirmation(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "true":
		return true
	case "no", "false":
		return false
	}
	return v
}

// renderValue flattens a submitted answer to the text stored in the
// conversational log. Non-string values keep their JSON shape.
func renderValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(b)
	}
}
