package service

import (
	"context"
	"log/slog"

	"rankwell.app/onboard/common/id"
	"rankwell.app/onboard/internal/action"
	"rankwell.app/onboard/internal/model"
)

type storeEvalSink struct {
	stores StoreProvider
}

// NewStoreEvalSink persists suggestion eval records through the pool-bound
// stores. Failures are logged only; eval logging never blocks an action.
func NewStoreEvalSink(stores StoreProvider) action.EvalSink {
	return &storeEvalSink{stores: stores}
}

func (s *storeEvalSink) Record(ctx context.Context, rec action.EvalRecord) {
	eval := &model.SuggestionEval{
		ID:            id.New(),
		InterviewID:   rec.InterviewID,
		Kind:          rec.Kind,
		Model:         rec.Model,
		PromptVersion: rec.PromptVersion,
		InputText:     rec.InputText,
		OutputJSON:    rec.OutputJSON,
		Success:       rec.Success,
	}
	if rec.LatencyMs > 0 {
		eval.LatencyMs = &rec.LatencyMs
	}

	if err := s.stores.SuggestionEvals().Insert(ctx, eval); err != nil {
		slog.ErrorContext(ctx, "failed to record suggestion eval",
			"error", err,
			"interview_id", rec.InterviewID,
			"kind", rec.Kind)
	}
}
