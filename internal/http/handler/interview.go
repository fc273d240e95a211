package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"rankwell.app/onboard/internal/action"
	"rankwell.app/onboard/internal/http/dto"
	"rankwell.app/onboard/internal/http/middleware"
	"rankwell.app/onboard/internal/service"
	"rankwell.app/onboard/internal/store"
)

type InterviewHandler struct {
	interviews service.InterviewService
}

func NewInterviewHandler(interviews service.InterviewService) *InterviewHandler {
	return &InterviewHandler{interviews: interviews}
}

// identity pulls the tenant pair the auth middleware resolved. Aborting here
// only happens when a route was wired without RequireAuth.
func identity(c *gin.Context) (accountID, userID int64, ok bool) {
	user := middleware.GetUser(c.Request.Context())
	account := middleware.GetAccount(c.Request.Context())
	if user == nil || account == nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return 0, 0, false
	}
	return account.ID, user.ID, true
}

func (h *InterviewHandler) Get(c *gin.Context) {
	accountID, userID, ok := identity(c)
	if !ok {
		return
	}

	state, err := h.interviews.Get(c.Request.Context(), accountID, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToStateResponse(state))
}

func (h *InterviewHandler) Create(c *gin.Context) {
	accountID, userID, ok := identity(c)
	if !ok {
		return
	}

	state, err := h.interviews.GetOrCreate(c.Request.Context(), accountID, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToStateResponse(state))
}

func (h *InterviewHandler) Submit(c *gin.Context) {
	ctx := c.Request.Context()
	accountID, userID, ok := identity(c)
	if !ok {
		return
	}

	var req dto.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(ctx, "invalid submit body", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "questionId is required"})
		return
	}

	res, err := h.interviews.Submit(ctx, service.SubmitRequest{
		AccountID:      accountID,
		UserID:         userID,
		QuestionID:     req.QuestionID,
		Value:          req.Value,
		SkipValidation: req.SkipValidation,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToSubmitResponse(res))
}

func (h *InterviewHandler) Next(c *gin.Context) {
	accountID, userID, ok := identity(c)
	if !ok {
		return
	}

	next, err := h.interviews.NextQuestion(c.Request.Context(), accountID, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	// A null nextQuestion means every reachable question is answered.
	c.JSON(http.StatusOK, gin.H{"nextQuestion": dto.ToQuestionResponse(next)})
}

func (h *InterviewHandler) Progress(c *gin.Context) {
	accountID, userID, ok := identity(c)
	if !ok {
		return
	}

	progress, err := h.interviews.Progress(c.Request.Context(), accountID, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToProgressResponse(progress))
}

func (h *InterviewHandler) Messages(c *gin.Context) {
	accountID, userID, ok := identity(c)
	if !ok {
		return
	}

	msgs, err := h.interviews.Messages(c.Request.Context(), accountID, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]dto.MessageResponse, 0, len(msgs))
	for _, msg := range msgs {
		out = append(out, dto.ToMessageResponse(msg))
	}
	c.JSON(http.StatusOK, gin.H{"messages": out})
}

func (h *InterviewHandler) InvokeAction(c *gin.Context) {
	accountID, userID, ok := identity(c)
	if !ok {
		return
	}

	name := action.Name(c.Param("name"))
	outcome, err := h.interviews.InvokeAction(c.Request.Context(), accountID, userID, name)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToActionOutcomeResponse(outcome))
}

func (h *InterviewHandler) Revert(c *gin.Context) {
	ctx := c.Request.Context()
	accountID, userID, ok := identity(c)
	if !ok {
		return
	}

	var req dto.RevertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(ctx, "invalid revert body", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "targetIndex or targetQuestionId is required"})
		return
	}

	state, err := h.interviews.Revert(ctx, service.RevertRequest{
		AccountID:        accountID,
		UserID:           userID,
		TargetIndex:      req.TargetIndex,
		TargetQuestionID: req.TargetQuestionID,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToStateResponse(state))
}

func (h *InterviewHandler) Reset(c *gin.Context) {
	accountID, userID, ok := identity(c)
	if !ok {
		return
	}

	state, err := h.interviews.Reset(c.Request.Context(), accountID, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToStateResponse(state))
}

func (h *InterviewHandler) Abandon(c *gin.Context) {
	accountID, userID, ok := identity(c)
	if !ok {
		return
	}

	if err := h.interviews.Abandon(c.Request.Context(), accountID, userID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "interview abandoned"})
}

// respondError maps service errors onto the stable error taxonomy. Validation
// verdicts carry their payload; everything unrecognized is a masked 500.
func respondError(c *gin.Context, err error) {
	ctx := c.Request.Context()

	var verr *service.ValidationError
	if errors.As(err, &verr) {
		c.JSON(http.StatusUnprocessableEntity, dto.ValidationErrorResponse{
			Error:      verr.Result.Error,
			Code:       dto.CodeValidationError,
			QuestionID: verr.QuestionID,
			Validation: dto.ValidationPayload{
				IsValid:        verr.Result.IsValid,
				Error:          verr.Result.Error,
				Suggestion:     verr.Result.Suggestion,
				CanAutoCorrect: verr.Result.CanAutoCorrect,
			},
		})
		return
	}

	var aerr *service.ActionError
	if errors.As(err, &aerr) {
		slog.ErrorContext(ctx, "manual action failed", "action", aerr.Action, "error", aerr.Err)
		c.JSON(http.StatusBadGateway, dto.ErrorResponse{Error: aerr.Error(), Code: dto.CodeActionFailed})
		return
	}

	switch {
	case errors.Is(err, service.ErrNoOpenInterview),
		errors.Is(err, service.ErrQuestionNotFound),
		errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: err.Error(), Code: dto.CodeNotFound})
	case errors.Is(err, action.ErrNotAllowed), errors.Is(err, action.ErrDenied):
		c.JSON(http.StatusForbidden, dto.ErrorResponse{Error: err.Error(), Code: dto.CodeActionDenied})
	case errors.Is(err, service.ErrInvalidTarget):
		c.JSON(http.StatusUnprocessableEntity, dto.ErrorResponse{Error: err.Error(), Code: dto.CodeValidationError})
	default:
		slog.ErrorContext(ctx, "interview operation failed", "error", err)
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "internal error", Code: dto.CodePersistenceError})
	}
}
