package service

import (
	"time"

	"authgate/internal/entity"

	"github.com/google/uuid"
)

type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

type LoginInput struct {
	Email     string
	Password  string
	IPAddress *string
	UserAgent *string
}

type TwoFactorInput struct {
	ChallengeID uuid.UUID
	Code        string
	IPAddress   *string
	UserAgent   *string
}

// SessionGrant is everything a freshly authenticated client receives:
// the opaque session token (returned once, only its hash is stored) and
// a short-lived access token bound to the session.
type SessionGrant struct {
	User             *entity.User
	SessionID        uuid.UUID
	SessionToken     string
	SessionExpiresAt time.Time
	AccessToken      string
	AccessExpiresIn  int64
}

type TwoFactorSetup struct {
	Secret     string
	OTPAuthURL string
}
