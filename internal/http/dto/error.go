package dto

// Stable machine-readable error codes. Clients branch on Code, never on the
// human-readable Error text.
const (
	CodeValidationError  = "VALIDATION_ERROR"
	CodeNotFound         = "NOT_FOUND"
	CodeActionDenied     = "ACTION_DENIED"
	CodeActionFailed     = "ACTION_FAILED"
	CodePersistenceError = "PERSISTENCE_ERROR"
)

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// ValidationErrorResponse is the 422 payload: the generic envelope plus the
// validator's verdict, including the auto-correct suggestion when one exists.
type ValidationErrorResponse struct {
	Error      string            `json:"error"`
	Code       string            `json:"code"`
	QuestionID string            `json:"questionId"`
	Validation ValidationPayload `json:"validation"`
}

type ValidationPayload struct {
	IsValid        bool   `json:"isValid"`
	Error          string `json:"error,omitempty"`
	Suggestion     string `json:"suggestion,omitempty"`
	CanAutoCorrect bool   `json:"canAutoCorrect,omitempty"`
}
