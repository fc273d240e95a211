package model

import "time"

// SuggestionEval is an audit row recorded for every AI suggestion call, kept
// so prompt changes can be judged against real traffic later.
type SuggestionEval struct {
	ID            int64     `json:"id"`
	InterviewID   int64     `json:"interview_id"`
	Kind          string    `json:"kind"` // "keywords" or "competitors"
	Model         string    `json:"model"`
	PromptVersion string    `json:"prompt_version"`
	InputText     string    `json:"input_text"`
	OutputJSON    []byte    `json:"output_json,omitempty"`
	LatencyMs     *int      `json:"latency_ms,omitempty"`
	Success       bool      `json:"success"`
	CreatedAt     time.Time `json:"created_at"`
}
