package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type SecurityAction string

const (
	LoginSuccess         SecurityAction = "login_success"
	LoginFailed          SecurityAction = "login_failed"
	Logout               SecurityAction = "logout"
	ChallengeIssued      SecurityAction = "two_factor_challenge_issued"
	TwoFactorFailed      SecurityAction = "two_factor_failed"
	ChallengeInvalidated SecurityAction = "two_factor_challenge_invalidated"
	SessionRevoked       SecurityAction = "session_revoked"
)

type SecurityLog struct {
	ID uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`

	UserID *uuid.UUID `gorm:"type:uuid;index"`
	User   *User      `gorm:"constraint:OnDelete:SET NULL"`

	IPAddress *string        `gorm:"type:varchar(45)"`
	Action    SecurityAction `gorm:"type:varchar(64);not null;index"`

	Metadata datatypes.JSON

	CreatedAt time.Time
}
