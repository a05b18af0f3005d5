package entity

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID           uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Name         string    `gorm:"type:varchar(100);not null"`
	Email        string    `gorm:"type:varchar(255);uniqueIndex;not null"`
	PasswordHash string    `gorm:"type:text;not null"`

	// TwoFactorSecret is set during enrollment; login only honors it
	// once TwoFactorEnabled has been flipped by a confirmed code.
	TwoFactorSecret  *string `gorm:"type:text"`
	TwoFactorEnabled bool    `gorm:"default:false;not null"`

	CreatedAt time.Time
	UpdatedAt time.Time

	Sessions []Session
}
