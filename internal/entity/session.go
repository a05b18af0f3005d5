package entity

import (
	"time"

	"github.com/google/uuid"
)

type Session struct {
	ID     uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID uuid.UUID `gorm:"type:uuid;not null;index"`
	User   User      `gorm:"constraint:OnDelete:CASCADE"`

	// Only the SHA-256 of the opaque token is stored; the plaintext
	// lives in the client cookie and nowhere else.
	TokenHash string `gorm:"type:text;not null;index"`

	ExpiresAt time.Time
	RevokedAt *time.Time

	CreatedAt time.Time
}
