package dto

import (
	"time"

	"rankwell.app/onboard/internal/model"
)

type CreditBalanceResponse struct {
	AccountID int64     `json:"accountId,string"`
	Balance   int64     `json:"balance"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func ToCreditBalanceResponse(account *model.CreditAccount) *CreditBalanceResponse {
	return &CreditBalanceResponse{
		AccountID: account.AccountID,
		Balance:   account.Balance,
		UpdatedAt: account.UpdatedAt,
	}
}

type CreditEntryResponse struct {
	ID        int64     `json:"id,string"`
	Operation string    `json:"operation"`
	Amount    int64     `json:"amount"`
	CreatedAt time.Time `json:"createdAt"`
}

func ToCreditEntryResponse(entry model.CreditEntry) CreditEntryResponse {
	return CreditEntryResponse{
		ID:        entry.ID,
		Operation: string(entry.Operation),
		Amount:    entry.Amount,
		CreatedAt: entry.CreatedAt,
	}
}
