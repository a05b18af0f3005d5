package entity

import (
	"time"

	"github.com/google/uuid"
)

// TwoFactorChallenge records that a password check already succeeded for
// the referenced user and that a one-time code is still owed. It proves
// nothing beyond the right to attempt that second step. Rows are removed
// on consumption, on expiry, and when the attempt cap is reached.
type TwoFactorChallenge struct {
	ID     uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID uuid.UUID `gorm:"type:uuid;not null;index"`
	User   User      `gorm:"constraint:OnDelete:CASCADE"`

	Attempts int `gorm:"default:0;not null"`

	ExpiresAt time.Time
	CreatedAt time.Time
}
