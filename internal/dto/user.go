package dto

import (
	"time"

	"github.com/yukikurage/process-tracker-api/internal/models"
)

// UserDTO represents a user in API responses
type UserDTO struct {
	ID                 uint64             `json:"id"`
	Username           string             `json:"username"`
	Email              *string            `json:"email"`
	DiscordID          *string            `json:"discord_id"`
	GoogleID           *string            `json:"google_id"`
	DisplayName        *string            `json:"display_name"`
	IsAnonymous        bool               `json:"is_anonymous"`
	CommentsEnabled    bool               `json:"comments_enabled"`
	DiscordPrivacyMode string             `json:"discord_privacy_mode"`
	AccountKind        models.AccountKind `json:"account_kind"`
	CreatedAt          time.Time          `json:"created_at"`
	LastLogin          *time.Time         `json:"last_login"`
}

// TokenResponse is returned by every endpoint that issues an access token.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// LinkResponse is returned after linking a provider account
type LinkResponse struct {
	TokenResponse
	Message string  `json:"message"`
	User    UserDTO `json:"user"`
	Merged  bool    `json:"merged"`
}

// ToUserDTO converts a User model to UserDTO
func ToUserDTO(user models.User) UserDTO {
	return UserDTO{
		ID:                 user.ID,
		Username:           user.Username,
		Email:              user.Email,
		DiscordID:          user.DiscordID,
		GoogleID:           user.GoogleID,
		DisplayName:        user.DisplayName,
		IsAnonymous:        user.IsAnonymous,
		CommentsEnabled:    user.CommentsEnabled,
		DiscordPrivacyMode: user.DiscordPrivacyMode,
		AccountKind:        user.Kind(),
		CreatedAt:          user.CreatedAt,
		LastLogin:          user.LastLogin,
	}
}
