package dto

import "rankwell.app/onboard/internal/model"

type LoginResponse struct {
	AuthorizationURL string `json:"authorizationUrl"`
	State            string `json:"state"`
}

type UserResponse struct {
	ID        int64   `json:"id,string"`
	Name      string  `json:"name"`
	Email     string  `json:"email"`
	AvatarURL *string `json:"avatarUrl,omitempty"`
}

type AccountResponse struct {
	ID   int64  `json:"id,string"`
	Name string `json:"name"`
	Slug string `json:"slug"`
	Plan string `json:"plan"`
}

type MeResponse struct {
	User    UserResponse    `json:"user"`
	Account AccountResponse `json:"account"`
}

func ToMeResponse(user *model.User, account *model.Account) *MeResponse {
	return &MeResponse{
		User: UserResponse{
			ID:        user.ID,
			Name:      user.Name,
			Email:     user.Email,
			AvatarURL: user.AvatarURL,
		},
		Account: AccountResponse{
			ID:   account.ID,
			Name: account.Name,
			Slug: account.Slug,
			Plan: string(account.Plan),
		},
	}
}
