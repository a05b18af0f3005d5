package repository

import (
	"context"
	"errors"
	"time"

	"authgate/internal/entity"
	"authgate/internal/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrSessionNotFound   = errors.New("session not found")
	ErrChallengeNotFound = errors.New("challenge not found")
)

const sessionTokenBytes = 48

// SessionManager owns sessions and pending two-factor challenges. A
// challenge is single-use: ConsumeChallenge deletes it in one statement
// and reports whether this caller won the row, so concurrent submissions
// of the same code cannot both mint sessions.
type SessionManager interface {
	CreateSession(ctx context.Context, user *entity.User) (*entity.Session, string, error)
	FindSessionByTokenHash(ctx context.Context, tokenHash string) (*entity.Session, error)
	RotateSessionToken(ctx context.Context, sessionID uuid.UUID) (string, time.Time, error)
	DestroySession(ctx context.Context, sessionID uuid.UUID) error
	DestroyAllSessions(ctx context.Context, userID uuid.UUID) error

	CreateChallenge(ctx context.Context, user *entity.User) (*entity.TwoFactorChallenge, error)
	GetChallenge(ctx context.Context, id uuid.UUID) (*entity.TwoFactorChallenge, error)
	RecordChallengeFailure(ctx context.Context, id uuid.UUID) (int, error)
	ConsumeChallenge(ctx context.Context, id uuid.UUID) (bool, error)
	InvalidateChallenge(ctx context.Context, id uuid.UUID) error

	PurgeExpired(ctx context.Context) error
}

type SessionManagerConfig struct {
	SessionTTL   time.Duration
	ChallengeTTL time.Duration
	Now          func() time.Time
}

type sessionManager struct {
	db     *gorm.DB
	config SessionManagerConfig
}

func NewSessionManager(db *gorm.DB, config SessionManagerConfig) SessionManager {
	return &sessionManager{db: db, config: config}
}

func (m *sessionManager) CreateSession(ctx context.Context, user *entity.User) (*entity.Session, string, error) {
	token, err := utils.NewSessionToken(sessionTokenBytes)
	if err != nil {
		return nil, "", err
	}
	session := &entity.Session{
		UserID:    user.ID,
		TokenHash: utils.HashSessionToken(token),
		ExpiresAt: m.now().Add(m.sessionTTL()),
	}
	if err := m.db.WithContext(ctx).Create(session).Error; err != nil {
		return nil, "", err
	}
	return session, token, nil
}

func (m *sessionManager) FindSessionByTokenHash(ctx context.Context, tokenHash string) (*entity.Session, error) {
	var session entity.Session
	err := m.db.WithContext(ctx).
		Where("token_hash = ? AND revoked_at IS NULL AND expires_at > ?", tokenHash, m.now()).
		First(&session).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (m *sessionManager) RotateSessionToken(ctx context.Context, sessionID uuid.UUID) (string, time.Time, error) {
	token, err := utils.NewSessionToken(sessionTokenBytes)
	if err != nil {
		return "", time.Time{}, err
	}
	expiresAt := m.now().Add(m.sessionTTL())
	result := m.db.WithContext(ctx).
		Model(&entity.Session{}).
		Where("id = ? AND revoked_at IS NULL", sessionID).
		Updates(map[string]any{
			"token_hash": utils.HashSessionToken(token),
			"expires_at": expiresAt,
		})
	if result.Error != nil {
		return "", time.Time{}, result.Error
	}
	if result.RowsAffected == 0 {
		return "", time.Time{}, ErrSessionNotFound
	}
	return token, expiresAt, nil
}

func (m *sessionManager) DestroySession(ctx context.Context, sessionID uuid.UUID) error {
	now := m.now()
	return m.db.WithContext(ctx).
		Model(&entity.Session{}).
		Where("id = ? AND revoked_at IS NULL", sessionID).
		Update("revoked_at", &now).
		Error
}

func (m *sessionManager) DestroyAllSessions(ctx context.Context, userID uuid.UUID) error {
	now := m.now()
	return m.db.WithContext(ctx).
		Model(&entity.Session{}).
		Where("user_id = ? AND revoked_at IS NULL", userID).
		Update("revoked_at", &now).
		Error
}

func (m *sessionManager) CreateChallenge(ctx context.Context, user *entity.User) (*entity.TwoFactorChallenge, error) {
	challenge := &entity.TwoFactorChallenge{
		UserID:    user.ID,
		ExpiresAt: m.now().Add(m.challengeTTL()),
	}
	if err := m.db.WithContext(ctx).Create(challenge).Error; err != nil {
		return nil, err
	}
	return challenge, nil
}

func (m *sessionManager) GetChallenge(ctx context.Context, id uuid.UUID) (*entity.TwoFactorChallenge, error) {
	var challenge entity.TwoFactorChallenge
	err := m.db.WithContext(ctx).
		Preload("User").
		Where("id = ?", id).
		First(&challenge).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &challenge, nil
}

// RecordChallengeFailure bumps the attempt counter in a single statement
// and returns the post-increment value, so concurrent wrong codes each
// observe a distinct count and exactly one of them crosses the cap.
func (m *sessionManager) RecordChallengeFailure(ctx context.Context, id uuid.UUID) (int, error) {
	challenge := entity.TwoFactorChallenge{ID: id}
	result := m.db.WithContext(ctx).
		Model(&challenge).
		Clauses(clause.Returning{Columns: []clause.Column{{Name: "attempts"}}}).
		UpdateColumn("attempts", gorm.Expr("attempts + 1"))
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected == 0 {
		return 0, ErrChallengeNotFound
	}
	return challenge.Attempts, nil
}

func (m *sessionManager) ConsumeChallenge(ctx context.Context, id uuid.UUID) (bool, error) {
	result := m.db.WithContext(ctx).Delete(&entity.TwoFactorChallenge{}, "id = ?", id)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (m *sessionManager) InvalidateChallenge(ctx context.Context, id uuid.UUID) error {
	return m.db.WithContext(ctx).Delete(&entity.TwoFactorChallenge{}, "id = ?", id).Error
}

// PurgeExpired is hygiene only; expiry is always re-checked against the
// clock wherever a session or challenge is read.
func (m *sessionManager) PurgeExpired(ctx context.Context) error {
	now := m.now()
	if err := m.db.WithContext(ctx).
		Where("expires_at < ?", now).
		Delete(&entity.Session{}).Error; err != nil {
		return err
	}
	return m.db.WithContext(ctx).
		Where("expires_at < ?", now).
		Delete(&entity.TwoFactorChallenge{}).Error
}

func (m *sessionManager) now() time.Time {
	if m.config.Now == nil {
		return time.Now()
	}
	return m.config.Now()
}

func (m *sessionManager) sessionTTL() time.Duration {
	if m.config.SessionTTL > 0 {
		return m.config.SessionTTL
	}
	return 30 * 24 * time.Hour
}

func (m *sessionManager) challengeTTL() time.Duration {
	if m.config.ChallengeTTL > 0 {
		return m.config.ChallengeTTL
	}
	return 5 * time.Minute
}
