package dto

import (
	"time"

	"authgate/internal/entity"
)

type RegisterRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// TwoFactorRequest carries the one-time code. The challenge reference
// normally rides in the challenge cookie; the body field is a fallback
// for clients that do not hold cookies.
type TwoFactorRequest struct {
	Code        string `json:"code" validate:"required"`
	ChallengeID string `json:"challenge_id" validate:"omitempty,uuid"`
}

type TwoFactorConfirmRequest struct {
	Code string `json:"code" validate:"required"`
}

type LoginResponse struct {
	TwoFactor   bool          `json:"two_factor,omitempty"`
	AccessToken string        `json:"access_token,omitempty"`
	ExpiresIn   int64         `json:"expires_in,omitempty"`
	User        *UserResponse `json:"user,omitempty"`
}

type TwoFactorSetupResponse struct {
	Secret     string `json:"secret"`
	OTPAuthURL string `json:"otpauth_url"`
}

type UserResponse struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Email            string    `json:"email"`
	TwoFactorEnabled bool      `json:"two_factor_enabled"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// ErrorResponse is the envelope for every rejected request: field names
// key lists of human-readable messages.
type ErrorResponse struct {
	Errors map[string][]string `json:"errors"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

func UserResponseFromEntity(user *entity.User) *UserResponse {
	return &UserResponse{
		ID:               user.ID.String(),
		Name:             user.Name,
		Email:            user.Email,
		TwoFactorEnabled: user.TwoFactorEnabled,
		CreatedAt:        user.CreatedAt,
		UpdatedAt:        user.UpdatedAt,
	}
}
