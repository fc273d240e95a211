package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"rankwell.app/onboard/internal/model"
)

type questionStore struct {
	q Querier
}

const questionCols = `id, display_order, is_active, type, prompt, input_config,
	validation, save_to_field, depends_on, show_condition, allowed_actions, auto_actions, version`

func (s *questionStore) ListActive(ctx context.Context) ([]model.Question, error) {
	rows, err := s.q.Query(ctx, `
		SELECT `+questionCols+`
		FROM questions
		WHERE is_active
		ORDER BY display_order`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		var q model.Question
		if err := scanQuestion(rows, &q); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

func (s *questionStore) GetByID(ctx context.Context, id string) (*model.Question, error) {
	q := &model.Question{}
	row := s.q.QueryRow(ctx, `SELECT `+questionCols+` FROM questions WHERE id = $1`, id)
	if err := scanQuestion(row, q); err != nil {
		return nil, err
	}
	return q, nil
}

func (s *questionStore) Upsert(ctx context.Context, q *model.Question) error {
	inputConfig, err := json.Marshal(q.InputConfig)
	if err != nil {
		return fmt.Errorf("encoding input config: %w", err)
	}

	var validation, showCondition []byte
	if q.Validation != nil {
		if validation, err = json.Marshal(q.Validation); err != nil {
			return fmt.Errorf("encoding validation: %w", err)
		}
	}
	if q.ShowCondition != nil {
		if showCondition, err = json.Marshal(q.ShowCondition); err != nil {
			return fmt.Errorf("encoding show condition: %w", err)
		}
	}
	// Action lists are NOT NULL columns; an absent list is stored as [].
	allowedActions := []byte(`[]`)
	if len(q.AllowedActions) > 0 {
		if allowedActions, err = json.Marshal(q.AllowedActions); err != nil {
			return fmt.Errorf("encoding allowed actions: %w", err)
		}
	}
	autoActions := []byte(`[]`)
	if len(q.AutoActions) > 0 {
		if autoActions, err = json.Marshal(q.AutoActions); err != nil {
			return fmt.Errorf("encoding auto actions: %w", err)
		}
	}

	_, err = s.q.Exec(ctx, `
		INSERT INTO questions (id, display_order, is_active, type, prompt, input_config,
			validation, save_to_field, depends_on, show_condition, allowed_actions, auto_actions, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			display_order = EXCLUDED.display_order,
			is_active = EXCLUDED.is_active,
			type = EXCLUDED.type,
			prompt = EXCLUDED.prompt,
			input_config = EXCLUDED.input_config,
			validation = EXCLUDED.validation,
			save_to_field = EXCLUDED.save_to_field,
			depends_on = EXCLUDED.depends_on,
			show_condition = EXCLUDED.show_condition,
			allowed_actions = EXCLUDED.allowed_actions,
			auto_actions = EXCLUDED.auto_actions,
			version = EXCLUDED.version,
			updated_at = now()`,
		q.ID, q.Order, q.IsActive, q.Type, q.Prompt, inputConfig, validation,
		q.SaveToField, q.DependsOn, showCondition, allowedActions, autoActions, q.Version)
	return err
}

func scanQuestion(row pgx.Row, q *model.Question) error {
	var inputConfig, validation, showCondition, allowedActions, autoActions []byte
	err := row.Scan(
		&q.ID, &q.Order, &q.IsActive, &q.Type, &q.Prompt, &inputConfig,
		&validation, &q.SaveToField, &q.DependsOn, &showCondition, &allowedActions, &autoActions, &q.Version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}

	if err := json.Unmarshal(inputConfig, &q.InputConfig); err != nil {
		return fmt.Errorf("decoding input config: %w", err)
	}
	q.Validation = nil
	if len(validation) > 0 {
		if err := json.Unmarshal(validation, &q.Validation); err != nil {
			return fmt.Errorf("decoding validation: %w", err)
		}
	}
	q.ShowCondition = nil
	if len(showCondition) > 0 {
		if err := json.Unmarshal(showCondition, &q.ShowCondition); err != nil {
			return fmt.Errorf("decoding show condition: %w", err)
		}
	}
	q.AllowedActions = nil
	if len(allowedActions) > 0 {
		if err := json.Unmarshal(allowedActions, &q.AllowedActions); err != nil {
			return fmt.Errorf("decoding allowed actions: %w", err)
		}
	}
	q.AutoActions = nil
	if len(autoActions) > 0 {
		if err := json.Unmarshal(autoActions, &q.AutoActions); err != nil {
			return fmt.Errorf("decoding auto actions: %w", err)
		}
	}
	return nil
}
