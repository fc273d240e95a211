package store

import (
	"context"

	"rankwell.app/onboard/internal/model"
)

type suggestionEvalStore struct {
	q Querier
}

func (s *suggestionEvalStore) Insert(ctx context.Context, eval *model.SuggestionEval) error {
	row := s.q.QueryRow(ctx, `
		INSERT INTO suggestion_evals (id, interview_id, kind, model, prompt_version, input_text, output_json, latency_ms, success)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at`,
		eval.ID, eval.InterviewID, eval.Kind, eval.Model, eval.PromptVersion,
		eval.InputText, eval.OutputJSON, eval.LatencyMs, eval.Success)
	return row.Scan(&eval.CreatedAt)
}

func (s *suggestionEvalStore) ListByInterview(ctx context.Context, interviewID int64) ([]model.SuggestionEval, error) {
	rows, err := s.q.Query(ctx, `
		SELECT id, interview_id, kind, model, prompt_version, input_text, output_json, latency_ms, success, created_at
		FROM suggestion_evals
		WHERE interview_id = $1
		ORDER BY id`, interviewID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var evals []model.SuggestionEval
	for rows.Next() {
		var e model.SuggestionEval
		if err := rows.Scan(&e.ID, &e.InterviewID, &e.Kind, &e.Model, &e.PromptVersion,
			&e.InputText, &e.OutputJSON, &e.LatencyMs, &e.Success, &e.CreatedAt); err != nil {
			return nil, err
		}
		evals = append(evals, e)
	}
	return evals, rows.Err()
}
