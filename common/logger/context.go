package logger

import "context"

type contextKey string

const logFieldsKey contextKey = "log_fields"

// LogFields contains structured fields automatically added to all logs within a context.
// Fields flow through context enrichment, enabling zero-touch logging where business
// context (interview_id, account_id, etc.) is automatically included in all log statements.
type LogFields struct {
	InterviewID *int64  // Interview session ID
	AccountID   *int64  // Tenant account ID
	UserID      *int64  // Acting user ID
	QuestionID  *string // Question being answered/evaluated
	Action      *string // Action handler name (e.g., "crawlWebsite")
	MessageID   *string // Redis stream message ID
	TaskType    *string // Queue task type
	Component   string  // Component name (OTel semantic convention style, e.g., "onboard.service.interview")
}

// WithLogFields enriches context with structured log fields.
// Multiple calls merge fields, with newer non-nil/non-empty values taking precedence.
// Context timeouts and cancellation are preserved.
func WithLogFields(ctx context.Context, fields LogFields) context.Context {
	existing := GetLogFields(ctx)
	merged := mergeFields(existing, fields)
	return context.WithValue(ctx, logFieldsKey, merged)
}

// GetLogFields retrieves log fields from context.
// Returns empty LogFields if none are set.
func GetLogFields(ctx context.Context) LogFields {
	if fields, ok := ctx.Value(logFieldsKey).(LogFields); ok {
		return fields
	}
	return LogFields{}
}

// mergeFields merges two LogFields, preferring non-nil/non-empty values from 'new'.
func mergeFields(existing, new LogFields) LogFields {
	result := existing

	if new.InterviewID != nil {
		result.InterviewID = new.InterviewID
	}
	if new.AccountID != nil {
		result.AccountID = new.AccountID
	}
	if new.UserID != nil {
		result.UserID = new.UserID
	}
	if new.QuestionID != nil {
		result.QuestionID = new.QuestionID
	}
	if new.Action != nil {
		result.Action = new.Action
	}
	if new.MessageID != nil {
		result.MessageID = new.MessageID
	}
	if new.TaskType != nil {
		result.TaskType = new.TaskType
	}
	if new.Component != "" {
		result.Component = new.Component
	}

	return result
}

// Ptr is a helper to create a pointer from a value.
// Useful for setting LogFields inline: logger.WithLogFields(ctx, logger.LogFields{InterviewID: logger.Ptr(id)})
func Ptr[T any](v T) *T {
	return &v
}

// Truncate truncates a string to maxLen characters, appending "..." if truncated.
// Useful for logging potentially long strings like submitted answers or error messages.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
