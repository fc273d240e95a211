package dto

import (
	"strconv"
	"time"

	"rankwell.app/onboard/internal/graph"
	"rankwell.app/onboard/internal/model"
	"rankwell.app/onboard/internal/service"
)

type SubmitRequest struct {
	QuestionID     string `json:"questionId" binding:"required"`
	Value          any    `json:"value"`
	SkipValidation bool   `json:"skipValidation,omitempty"`
}

type RevertRequest struct {
	TargetIndex      *int32 `json:"targetIndex,omitempty"`
	TargetQuestionID string `json:"targetQuestionId,omitempty"`
}

type InterviewResponse struct {
	ID                 int64          `json:"id,string"`
	SiteID             *string        `json:"siteId,omitempty"`
	Status             string         `json:"status"`
	CurrentStep        int32          `json:"currentStep"`
	Responses          map[string]any `json:"responses"`
	ExternalData       map[string]any `json:"externalData"`
	QuestionSetVersion int32          `json:"questionSetVersion"`
	CreatedAt          time.Time      `json:"createdAt"`
	UpdatedAt          time.Time      `json:"updatedAt"`
	CompletedAt        *time.Time     `json:"completedAt,omitempty"`
}

func ToInterviewResponse(itv *model.Interview) *InterviewResponse {
	resp := &InterviewResponse{
		ID:                 itv.ID,
		Status:             string(itv.Status),
		CurrentStep:        itv.CurrentStep,
		Responses:          itv.Responses,
		ExternalData:       itv.ExternalData,
		QuestionSetVersion: itv.QuestionSetVersion,
		CreatedAt:          itv.CreatedAt,
		UpdatedAt:          itv.UpdatedAt,
		CompletedAt:        itv.CompletedAt,
	}
	if itv.SiteID != nil {
		siteID := strconv.FormatInt(*itv.SiteID, 10)
		resp.SiteID = &siteID
	}
	return resp
}

type ChoiceResponse struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

type InputConfigResponse struct {
	Component     string           `json:"component,omitempty"`
	Placeholder   string           `json:"placeholder,omitempty"`
	Choices       []ChoiceResponse `json:"choices,omitempty"`
	Multiple      bool             `json:"multiple,omitempty"`
	MinValue      *float64         `json:"minValue,omitempty"`
	MaxValue      *float64         `json:"maxValue,omitempty"`
	Step          *float64         `json:"step,omitempty"`
	MaxFiles      int              `json:"maxFiles,omitempty"`
	AcceptedTypes []string         `json:"acceptedTypes,omitempty"`
	DataKey       string           `json:"dataKey,omitempty"`
}

type ValidationRulesResponse struct {
	Required  bool   `json:"required,omitempty"`
	MinLength *int   `json:"minLength,omitempty"`
	MaxLength *int   `json:"maxLength,omitempty"`
	Pattern   string `json:"pattern,omitempty"`
}

// QuestionResponse is the client-facing slice of a question: enough to render
// the prompt and its input. Flow wiring (dependsOn, showCondition,
// autoActions) stays server-side.
type QuestionResponse struct {
	ID             string                   `json:"id"`
	Order          int32                    `json:"order"`
	Type           string                   `json:"type"`
	Prompt         string                   `json:"prompt"`
	InputConfig    InputConfigResponse      `json:"inputConfig"`
	Validation     *ValidationRulesResponse `json:"validation,omitempty"`
	SaveToField    string                   `json:"saveToField,omitempty"`
	AllowedActions []string                 `json:"allowedActions,omitempty"`
}

func ToQuestionResponse(q *model.Question) *QuestionResponse {
	if q == nil {
		return nil
	}

	resp := &QuestionResponse{
		ID:          q.ID,
		Order:       q.Order,
		Type:        string(q.Type),
		Prompt:      q.Prompt,
		SaveToField: q.SaveToField,
		InputConfig: InputConfigResponse{
			Component:     q.InputConfig.Component,
			Placeholder:   q.InputConfig.Placeholder,
			Multiple:      q.InputConfig.Multiple,
			MinValue:      q.InputConfig.MinValue,
			MaxValue:      q.InputConfig.MaxValue,
			Step:          q.InputConfig.Step,
			MaxFiles:      q.InputConfig.MaxFiles,
			AcceptedTypes: q.InputConfig.AcceptedTypes,
			DataKey:       q.InputConfig.DataKey,
		},
	}
	for _, choice := range q.InputConfig.Choices {
		resp.InputConfig.Choices = append(resp.InputConfig.Choices, ChoiceResponse(choice))
	}
	if q.Validation != nil {
		resp.Validation = &ValidationRulesResponse{
			Required:  q.Validation.Required,
			MinLength: q.Validation.MinLength,
			MaxLength: q.Validation.MaxLength,
			Pattern:   q.Validation.Pattern,
		}
	}
	for _, name := range q.AllowedActions {
		resp.AllowedActions = append(resp.AllowedActions, string(name))
	}
	return resp
}

type ProgressResponse struct {
	Answered  int32   `json:"answered"`
	Reachable int32   `json:"reachable"`
	Percent   float64 `json:"percent"`
}

func ToProgressResponse(p graph.Progress) ProgressResponse {
	return ProgressResponse{Answered: p.Answered, Reachable: p.Reachable, Percent: p.Percent}
}

type StateResponse struct {
	Interview    *InterviewResponse `json:"interview"`
	NextQuestion *QuestionResponse  `json:"nextQuestion"`
	Progress     ProgressResponse   `json:"progress"`
}

func ToStateResponse(state *service.InterviewState) *StateResponse {
	return &StateResponse{
		Interview:    ToInterviewResponse(state.Interview),
		NextQuestion: ToQuestionResponse(state.NextQuestion),
		Progress:     ToProgressResponse(state.Progress),
	}
}

type ActionFailureResponse struct {
	Action  string `json:"action"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type SubmitResponse struct {
	Interview      *InterviewResponse      `json:"interview"`
	NextQuestion   *QuestionResponse       `json:"nextQuestion"`
	Progress       ProgressResponse        `json:"progress"`
	ActionFailures []ActionFailureResponse `json:"actionFailures,omitempty"`
}

func ToSubmitResponse(res *service.SubmitResult) *SubmitResponse {
	resp := &SubmitResponse{
		Interview:    ToInterviewResponse(res.Interview),
		NextQuestion: ToQuestionResponse(res.NextQuestion),
		Progress:     ToProgressResponse(res.Progress),
	}
	for _, failure := range res.ActionFailures {
		code := CodeActionFailed
		if failure.Denied {
			code = CodeActionDenied
		}
		resp.ActionFailures = append(resp.ActionFailures, ActionFailureResponse{
			Action:  string(failure.Action),
			Code:    code,
			Message: failure.Err.Error(),
		})
	}
	return resp
}

type MessageResponse struct {
	ID          int64     `json:"id,string"`
	Role        string    `json:"role"`
	Content     string    `json:"content"`
	UIComponent string    `json:"uiComponent,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

func ToMessageResponse(msg model.Message) MessageResponse {
	return MessageResponse{
		ID:          msg.ID,
		Role:        string(msg.Role),
		Content:     msg.Content,
		UIComponent: msg.UIComponent,
		CreatedAt:   msg.CreatedAt,
	}
}

type ActionOutcomeResponse struct {
	Action     string   `json:"action"`
	StoredKeys []string `json:"storedKeys"`
}

func ToActionOutcomeResponse(outcome *service.ActionOutcome) *ActionOutcomeResponse {
	return &ActionOutcomeResponse{
		Action:     string(outcome.Action),
		StoredKeys: outcome.StoredKeys,
	}
}
