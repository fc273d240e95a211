package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"rankwell.app/onboard/internal/model"
)

type siteStore struct {
	q Querier
}

func (s *siteStore) CreateFromInterview(ctx context.Context, site *model.Site) error {
	keywords := site.Keywords
	if keywords == nil {
		keywords = []string{}
	}
	competitors := site.Competitors
	if competitors == nil {
		competitors = []string{}
	}
	keywordsJSON, err := json.Marshal(keywords)
	if err != nil {
		return fmt.Errorf("encoding keywords: %w", err)
	}
	competitorsJSON, err := json.Marshal(competitors)
	if err != nil {
		return fmt.Errorf("encoding competitors: %w", err)
	}
	settingsJSON, err := marshalJSONMap(site.Settings)
	if err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}

	_, err = s.q.Exec(ctx, `
		INSERT INTO sites (id, account_id, interview_id, domain, name, slug, keywords, competitors, settings)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (interview_id) DO NOTHING`,
		site.ID, site.AccountID, site.InterviewID, site.Domain, site.Name, site.Slug,
		keywordsJSON, competitorsJSON, settingsJSON)
	if err != nil {
		// A slug collision is a different constraint than the interview_id
		// replay guard; the worker regenerates the slug and retries.
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return err
	}

	// Reload regardless of whether this call inserted: a replay picks up the
	// row the first attempt wrote.
	existing, err := s.GetByInterviewID(ctx, site.InterviewID)
	if err != nil {
		return err
	}
	*site = *existing
	return nil
}

func (s *siteStore) GetByInterviewID(ctx context.Context, interviewID int64) (*model.Site, error) {
	site := &model.Site{}
	var keywords, competitors, settings []byte
	err := s.q.QueryRow(ctx, `
		SELECT id, account_id, interview_id, domain, name, slug, keywords, competitors, settings, created_at
		FROM sites
		WHERE interview_id = $1`, interviewID).
		Scan(&site.ID, &site.AccountID, &site.InterviewID, &site.Domain, &site.Name, &site.Slug,
			&keywords, &competitors, &settings, &site.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if len(keywords) > 0 {
		if err := json.Unmarshal(keywords, &site.Keywords); err != nil {
			return nil, fmt.Errorf("decoding keywords: %w", err)
		}
	}
	if len(competitors) > 0 {
		if err := json.Unmarshal(competitors, &site.Competitors); err != nil {
			return nil, fmt.Errorf("decoding competitors: %w", err)
		}
	}
	if len(settings) > 0 {
		if err := json.Unmarshal(settings, &site.Settings); err != nil {
			return nil, fmt.Errorf("decoding settings: %w", err)
		}
	}
	return site, nil
}
