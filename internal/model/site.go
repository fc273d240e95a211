package model

import "time"

// Site is the provisioned customer property, built by the completion worker
// from a finished interview. One site per interview.
type Site struct {
	ID          int64          `json:"id"`
	AccountID   int64          `json:"account_id"`
	InterviewID int64          `json:"interview_id"`
	Domain      string         `json:"domain"`
	Name        string         `json:"name"`
	Slug        string         `json:"slug"`
	Keywords    []string       `json:"keywords,omitempty"`
	Competitors []string       `json:"competitors,omitempty"`
	Settings    map[string]any `json:"settings,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}
