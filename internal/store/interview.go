package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"rankwell.app/onboard/internal/model"
)

type interviewStore struct {
	q Querier
}

const interviewCols = `id, account_id, user_id, site_id, status, current_step,
	responses, external_data, question_set_version, created_at, updated_at, completed_at`

func (s *interviewStore) Create(ctx context.Context, itv *model.Interview) error {
	responses, err := marshalJSONMap(itv.Responses)
	if err != nil {
		return fmt.Errorf("encoding responses: %w", err)
	}
	external, err := marshalJSONMap(itv.ExternalData)
	if err != nil {
		return fmt.Errorf("encoding external data: %w", err)
	}

	row := s.q.QueryRow(ctx, `
		INSERT INTO interviews (id, account_id, user_id, status, current_step, responses, external_data, question_set_version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+interviewCols,
		itv.ID, itv.AccountID, itv.UserID, itv.Status, itv.CurrentStep, responses, external, itv.QuestionSetVersion)
	if err := scanInterview(row, itv); err != nil {
		// The partial unique index allows one open interview per user; a
		// racing second create loses and should re-fetch the winner.
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return err
	}
	return nil
}

func (s *interviewStore) GetByID(ctx context.Context, id int64) (*model.Interview, error) {
	itv := &model.Interview{}
	row := s.q.QueryRow(ctx, `SELECT `+interviewCols+` FROM interviews WHERE id = $1`, id)
	if err := scanInterview(row, itv); err != nil {
		return nil, err
	}
	return itv, nil
}

func (s *interviewStore) GetByIDForUpdate(ctx context.Context, id int64) (*model.Interview, error) {
	itv := &model.Interview{}
	row := s.q.QueryRow(ctx, `SELECT `+interviewCols+` FROM interviews WHERE id = $1 FOR UPDATE`, id)
	if err := scanInterview(row, itv); err != nil {
		return nil, err
	}
	return itv, nil
}

func (s *interviewStore) FindOpenByUser(ctx context.Context, accountID, userID int64) (*model.Interview, error) {
	itv := &model.Interview{}
	row := s.q.QueryRow(ctx, `
		SELECT `+interviewCols+`
		FROM interviews
		WHERE account_id = $1 AND user_id = $2 AND status IN ('NOT_STARTED', 'IN_PROGRESS')
		ORDER BY created_at DESC
		LIMIT 1`, accountID, userID)
	if err := scanInterview(row, itv); err != nil {
		return nil, err
	}
	return itv, nil
}

func (s *interviewStore) Update(ctx context.Context, itv *model.Interview) error {
	responses, err := marshalJSONMap(itv.Responses)
	if err != nil {
		return fmt.Errorf("encoding responses: %w", err)
	}
	external, err := marshalJSONMap(itv.ExternalData)
	if err != nil {
		return fmt.Errorf("encoding external data: %w", err)
	}

	row := s.q.QueryRow(ctx, `
		UPDATE interviews
		SET site_id = $2, status = $3, current_step = $4, responses = $5,
			external_data = $6, completed_at = $7, updated_at = now()
		WHERE id = $1
		RETURNING `+interviewCols,
		itv.ID, itv.SiteID, itv.Status, itv.CurrentStep, responses, external, itv.CompletedAt)
	return scanInterview(row, itv)
}

func (s *interviewStore) AppendMessage(ctx context.Context, msg *model.Message) error {
	row := s.q.QueryRow(ctx, `
		INSERT INTO interview_messages (id, interview_id, role, content, ui_component)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`,
		msg.ID, msg.InterviewID, msg.Role, msg.Content, msg.UIComponent)
	return row.Scan(&msg.CreatedAt)
}

func (s *interviewStore) ListMessages(ctx context.Context, interviewID int64) ([]model.Message, error) {
	// Snowflake ids are time-ordered, so ordering by id replays the
	// conversation in insertion order.
	rows, err := s.q.Query(ctx, `
		SELECT id, interview_id, role, content, ui_component, created_at
		FROM interview_messages
		WHERE interview_id = $1
		ORDER BY id`, interviewID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []model.Message
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.ID, &m.InterviewID, &m.Role, &m.Content, &m.UIComponent, &m.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

func (s *interviewStore) DeleteMessages(ctx context.Context, interviewID int64) error {
	_, err := s.q.Exec(ctx, `DELETE FROM interview_messages WHERE interview_id = $1`, interviewID)
	return err
}

func scanInterview(row pgx.Row, itv *model.Interview) error {
	var responses, external []byte
	err := row.Scan(
		&itv.ID, &itv.AccountID, &itv.UserID, &itv.SiteID, &itv.Status, &itv.CurrentStep,
		&responses, &external, &itv.QuestionSetVersion, &itv.CreatedAt, &itv.UpdatedAt, &itv.CompletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}

	itv.Responses = nil
	if err := json.Unmarshal(responses, &itv.Responses); err != nil {
		return fmt.Errorf("decoding responses: %w", err)
	}
	itv.ExternalData = nil
	if err := json.Unmarshal(external, &itv.ExternalData); err != nil {
		return fmt.Errorf("decoding external data: %w", err)
	}
	return nil
}
