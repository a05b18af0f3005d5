package repository

import (
	"context"
	"errors"

	"authgate/internal/entity"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrDuplicateEmail is returned by Insert when the email unique index
// rejects the row. Uniqueness is decided by the database alone; callers
// must not pre-check and race.
var ErrDuplicateEmail = errors.New("email already registered")

// PasswordComparer is the slice of the hashing collaborator the store
// needs to check a stored secret against a supplied one.
type PasswordComparer interface {
	Verify(hash string, password string) bool
}

// CredentialStore owns durable account state. Lookups return (nil, nil)
// for absent accounts so a non-nil error always means a storage fault.
type CredentialStore interface {
	Insert(ctx context.Context, user *entity.User) error
	FindByIdentifier(ctx context.Context, email string) (*entity.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*entity.User, error)
	VerifySecret(user *entity.User, password string) bool
	SetTwoFactorSecret(ctx context.Context, userID uuid.UUID, secret string) error
	EnableTwoFactor(ctx context.Context, userID uuid.UUID) error
	DisableTwoFactor(ctx context.Context, userID uuid.UUID) error
}

type credentialStore struct {
	db       *gorm.DB
	comparer PasswordComparer
}

func NewCredentialStore(db *gorm.DB, comparer PasswordComparer) CredentialStore {
	return &credentialStore{db: db, comparer: comparer}
}

func (s *credentialStore) Insert(ctx context.Context, user *entity.User) error {
	err := s.db.WithContext(ctx).Create(user).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateEmail
	}
	return err
}

func (s *credentialStore) FindByIdentifier(ctx context.Context, email string) (*entity.User, error) {
	var user entity.User
	err := s.db.WithContext(ctx).
		Where("email = ?", email).
		First(&user).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *credentialStore) FindByID(ctx context.Context, id uuid.UUID) (*entity.User, error) {
	var user entity.User
	err := s.db.WithContext(ctx).
		Where("id = ?", id).
		First(&user).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *credentialStore) VerifySecret(user *entity.User, password string) bool {
	if user == nil {
		return false
	}
	return s.comparer.Verify(user.PasswordHash, password)
}

func (s *credentialStore) SetTwoFactorSecret(ctx context.Context, userID uuid.UUID, secret string) error {
	return s.db.WithContext(ctx).
		Model(&entity.User{}).
		Where("id = ?", userID).
		Updates(map[string]any{
			"two_factor_secret":  secret,
			"two_factor_enabled": false,
		}).
		Error
}

func (s *credentialStore) EnableTwoFactor(ctx context.Context, userID uuid.UUID) error {
	return s.db.WithContext(ctx).
		Model(&entity.User{}).
		Where("id = ?", userID).
		Update("two_factor_enabled", true).
		Error
}

func (s *credentialStore) DisableTwoFactor(ctx context.Context, userID uuid.UUID) error {
	return s.db.WithContext(ctx).
		Model(&entity.User{}).
		Where("id = ?", userID).
		Updates(map[string]any{
			"two_factor_secret":  nil,
			"two_factor_enabled": false,
		}).
		Error
}
