package model

import (
	"rankwell.app/onboard/internal/action"
	"rankwell.app/onboard/internal/condition"
)

type QuestionType string

const (
	QuestionTypeGreeting       QuestionType = "GREETING"
	QuestionTypeInput          QuestionType = "INPUT"
	QuestionTypeConfirmation   QuestionType = "CONFIRMATION"
	QuestionTypeSelection      QuestionType = "SELECTION"
	QuestionTypeMultiSelection QuestionType = "MULTI_SELECTION"
	QuestionTypeDynamic        QuestionType = "DYNAMIC"
	QuestionTypeEditableData   QuestionType = "EDITABLE_DATA"
	QuestionTypeFileUpload     QuestionType = "FILE_UPLOAD"
	QuestionTypeSlider         QuestionType = "SLIDER"
	QuestionTypeAISuggestion   QuestionType = "AI_SUGGESTION"
)

type Choice struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// InputConfig is type-specific presentation and constraint data. The engine
// treats it as opaque; only the validator interprets the fields matching the
// question's type.
type InputConfig struct {
	Component     string   `json:"component,omitempty"`
	Placeholder   string   `json:"placeholder,omitempty"`
	Choices       []Choice `json:"choices,omitempty"`
	Multiple      bool     `json:"multiple,omitempty"`
	MinValue      *float64 `json:"min_value,omitempty"`
	MaxValue      *float64 `json:"max_value,omitempty"`
	Step          *float64 `json:"step,omitempty"`
	MaxFiles      int      `json:"max_files,omitempty"`
	AcceptedTypes []string `json:"accepted_types,omitempty"`
	DataKey       string   `json:"data_key,omitempty"`
}

type ValidationRules struct {
	Required     bool   `json:"required,omitempty"`
	MinLength    *int   `json:"min_length,omitempty"`
	MaxLength    *int   `json:"max_length,omitempty"`
	Pattern      string `json:"pattern,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// Question is one node of the interview flow. Rows are immutable per Version;
// editing the catalog bumps the version rather than rewriting history.
type Question struct {
	ID             string               `json:"id"`
	Order          int32                `json:"order"`
	IsActive       bool                 `json:"is_active"`
	Type           QuestionType         `json:"type"`
	Prompt         string               `json:"prompt"`
	InputConfig    InputConfig          `json:"input_config"`
	Validation     *ValidationRules     `json:"validation,omitempty"`
	SaveToField    string               `json:"save_to_field,omitempty"`
	DependsOn      string               `json:"depends_on,omitempty"`
	ShowCondition  *condition.Predicate `json:"show_condition,omitempty"`
	AllowedActions []action.Name        `json:"allowed_actions,omitempty"`
	AutoActions    []action.Name        `json:"auto_actions,omitempty"`
	Version        int32                `json:"version"`
}

// ResponseKey is the canonical key an answer is filed under: the save_to_field
// alias when declared, the question id otherwise. Answers are recorded under
// both, but invalidation triggers and dependsOn references match on this one.
func (q Question) ResponseKey() string {
	if q.SaveToField != "" {
		return q.SaveToField
	}
	return q.ID
}
