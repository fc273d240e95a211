package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"rankwell.app/onboard/internal/http/dto"
	"rankwell.app/onboard/internal/http/middleware"
	"rankwell.app/onboard/internal/service"
)

// CreditsHandler exposes the ledger reads the onboarding UI needs to render
// balances next to credit-gated actions. Purchasing stays out of scope.
type CreditsHandler struct {
	credits service.CreditService
}

func NewCreditsHandler(credits service.CreditService) *CreditsHandler {
	return &CreditsHandler{credits: credits}
}

func (h *CreditsHandler) Balance(c *gin.Context) {
	account := middleware.GetAccount(c.Request.Context())
	if account == nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	balance, err := h.credits.Balance(c.Request.Context(), account.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToCreditBalanceResponse(balance))
}

func (h *CreditsHandler) History(c *gin.Context) {
	account := middleware.GetAccount(c.Request.Context())
	if account == nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	var limit int32
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 32)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = int32(parsed)
	}

	entries, err := h.credits.History(c.Request.Context(), account.ID, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]dto.CreditEntryResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, dto.ToCreditEntryResponse(entry))
	}
	c.JSON(http.StatusOK, gin.H{"entries": out})
}
