package model

import "time"

type InterviewStatus string

const (
	InterviewStatusNotStarted InterviewStatus = "NOT_STARTED"
	InterviewStatusInProgress InterviewStatus = "IN_PROGRESS"
	InterviewStatusCompleted  InterviewStatus = "COMPLETED"
	InterviewStatusAbandoned  InterviewStatus = "ABANDONED"
)

// Terminal reports whether the status admits no further transitions.
func (s InterviewStatus) Terminal() bool {
	return s == InterviewStatusCompleted || s == InterviewStatusAbandoned
}

// Interview is one onboarding session. At most one open (NOT_STARTED or
// IN_PROGRESS) interview exists per (account, user); the stores enforce it.
type Interview struct {
	ID                 int64           `json:"id"`
	AccountID          int64           `json:"account_id"`
	UserID             int64           `json:"user_id"`
	SiteID             *int64          `json:"site_id,omitempty"`
	Status             InterviewStatus `json:"status"`
	CurrentStep        int32           `json:"current_step"`
	Responses          map[string]any  `json:"responses"`
	ExternalData       map[string]any  `json:"external_data"`
	QuestionSetVersion int32           `json:"question_set_version"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
	CompletedAt        *time.Time      `json:"completed_at,omitempty"`
}

// Open reports whether the interview still accepts submissions.
func (i *Interview) Open() bool {
	return !i.Status.Terminal()
}

type MessageRole string

const (
	MessageRoleUser   MessageRole = "USER"
	MessageRoleSystem MessageRole = "SYSTEM"
)

// Message is one entry of the append-only conversational log. Engine logic
// never reads it back; it exists so the client can replay the conversation.
type Message struct {
	ID          int64       `json:"id"`
	InterviewID int64       `json:"interview_id"`
	Role        MessageRole `json:"role"`
	Content     string      `json:"content"`
	UIComponent string      `json:"ui_component,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}
