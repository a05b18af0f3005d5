package service_test

import (
	"context"
	"sync"
	"time"

	"authgate/internal/entity"
	"authgate/internal/repository"
	"authgate/internal/service"
	"authgate/internal/utils"

	"github.com/google/uuid"
)

// In-memory collaborators mirroring the contracts of the gorm-backed
// implementations: absent rows read as (nil, nil), email uniqueness is
// enforced atomically under a lock, and challenge consumption deletes
// the row in one critical section.

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{t: t}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type memCredentialStore struct {
	mu       sync.Mutex
	comparer repository.PasswordComparer
	byEmail  map[string]*entity.User

	insertErr error
	findErr   error
}

func newMemCredentialStore(comparer repository.PasswordComparer) *memCredentialStore {
	return &memCredentialStore{
		comparer: comparer,
		byEmail:  make(map[string]*entity.User),
	}
}

func (s *memCredentialStore) Insert(ctx context.Context, user *entity.User) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byEmail[user.Email]; exists {
		return repository.ErrDuplicateEmail
	}
	user.ID = uuid.New()
	clone := *user
	s.byEmail[user.Email] = &clone
	return nil
}

func (s *memCredentialStore) FindByIdentifier(ctx context.Context, email string) (*entity.User, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.byEmail[email]
	if !ok {
		return nil, nil
	}
	clone := *user
	return &clone, nil
}

func (s *memCredentialStore) FindByID(ctx context.Context, id uuid.UUID) (*entity.User, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.byEmail {
		if user.ID == id {
			clone := *user
			return &clone, nil
		}
	}
	return nil, nil
}

func (s *memCredentialStore) VerifySecret(user *entity.User, password string) bool {
	if user == nil {
		return false
	}
	return s.comparer.Verify(user.PasswordHash, password)
}

func (s *memCredentialStore) SetTwoFactorSecret(ctx context.Context, userID uuid.UUID, secret string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.byEmail {
		if user.ID == userID {
			value := secret
			user.TwoFactorSecret = &value
			user.TwoFactorEnabled = false
			return nil
		}
	}
	return nil
}

func (s *memCredentialStore) EnableTwoFactor(ctx context.Context, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.byEmail {
		if user.ID == userID {
			user.TwoFactorEnabled = true
			return nil
		}
	}
	return nil
}

func (s *memCredentialStore) DisableTwoFactor(ctx context.Context, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.byEmail {
		if user.ID == userID {
			user.TwoFactorSecret = nil
			user.TwoFactorEnabled = false
			return nil
		}
	}
	return nil
}

type memSessionManager struct {
	mu           sync.Mutex
	creds        *memCredentialStore
	clock        *fakeClock
	sessionTTL   time.Duration
	challengeTTL time.Duration
	sessions     map[uuid.UUID]*entity.Session
	challenges   map[uuid.UUID]*entity.TwoFactorChallenge

	createSessionErr   error
	createChallengeErr error
}

func newMemSessionManager(creds *memCredentialStore, clock *fakeClock) *memSessionManager {
	return &memSessionManager{
		creds:        creds,
		clock:        clock,
		sessionTTL:   30 * 24 * time.Hour,
		challengeTTL: 5 * time.Minute,
		sessions:     make(map[uuid.UUID]*entity.Session),
		challenges:   make(map[uuid.UUID]*entity.TwoFactorChallenge),
	}
}

func (m *memSessionManager) CreateSession(ctx context.Context, user *entity.User) (*entity.Session, string, error) {
	if m.createSessionErr != nil {
		return nil, "", m.createSessionErr
	}
	token, err := utils.NewSessionToken(48)
	if err != nil {
		return nil, "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	session := &entity.Session{
		ID:        uuid.New(),
		UserID:    user.ID,
		TokenHash: utils.HashSessionToken(token),
		ExpiresAt: m.clock.Now().Add(m.sessionTTL),
		CreatedAt: m.clock.Now(),
	}
	m.sessions[session.ID] = session
	return session, token, nil
}

func (m *memSessionManager) FindSessionByTokenHash(ctx context.Context, tokenHash string) (*entity.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clock.Now()
	for _, session := range m.sessions {
		if session.TokenHash == tokenHash && session.RevokedAt == nil && session.ExpiresAt.After(now) {
			clone := *session
			return &clone, nil
		}
	}
	return nil, nil
}

func (m *memSessionManager) RotateSessionToken(ctx context.Context, sessionID uuid.UUID) (string, time.Time, error) {
	token, err := utils.NewSessionToken(48)
	if err != nil {
		return "", time.Time{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[sessionID]
	if !ok || session.RevokedAt != nil {
		return "", time.Time{}, repository.ErrSessionNotFound
	}
	session.TokenHash = utils.HashSessionToken(token)
	session.ExpiresAt = m.clock.Now().Add(m.sessionTTL)
	return token, session.ExpiresAt, nil
}

func (m *memSessionManager) DestroySession(ctx context.Context, sessionID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if session, ok := m.sessions[sessionID]; ok && session.RevokedAt == nil {
		now := m.clock.Now()
		session.RevokedAt = &now
	}
	return nil
}

func (m *memSessionManager) DestroyAllSessions(ctx context.Context, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clock.Now()
	for _, session := range m.sessions {
		if session.UserID == userID && session.RevokedAt == nil {
			session.RevokedAt = &now
		}
	}
	return nil
}

func (m *memSessionManager) CreateChallenge(ctx context.Context, user *entity.User) (*entity.TwoFactorChallenge, error) {
	if m.createChallengeErr != nil {
		return nil, m.createChallengeErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	challenge := &entity.TwoFactorChallenge{
		ID:        uuid.New(),
		UserID:    user.ID,
		ExpiresAt: m.clock.Now().Add(m.challengeTTL),
		CreatedAt: m.clock.Now(),
	}
	m.challenges[challenge.ID] = challenge
	return challenge, nil
}

func (m *memSessionManager) GetChallenge(ctx context.Context, id uuid.UUID) (*entity.TwoFactorChallenge, error) {
	m.mu.Lock()
	challenge, ok := m.challenges[id]
	if !ok {
		m.mu.Unlock()
		return nil, nil
	}
	clone := *challenge
	m.mu.Unlock()

	user, err := m.creds.FindByID(ctx, clone.UserID)
	if err != nil {
		return nil, err
	}
	if user != nil {
		clone.User = *user
	}
	return &clone, nil
}

func (m *memSessionManager) RecordChallengeFailure(ctx context.Context, id uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	challenge, ok := m.challenges[id]
	if !ok {
		return 0, repository.ErrChallengeNotFound
	}
	challenge.Attempts++
	return challenge.Attempts, nil
}

func (m *memSessionManager) ConsumeChallenge(ctx context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.challenges[id]; !ok {
		return false, nil
	}
	delete(m.challenges, id)
	return true, nil
}

func (m *memSessionManager) InvalidateChallenge(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.challenges, id)
	return nil
}

func (m *memSessionManager) PurgeExpired(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clock.Now()
	for id, session := range m.sessions {
		if session.ExpiresAt.Before(now) {
			delete(m.sessions, id)
		}
	}
	for id, challenge := range m.challenges {
		if challenge.ExpiresAt.Before(now) {
			delete(m.challenges, id)
		}
	}
	return nil
}

func (m *memSessionManager) liveSessionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, session := range m.sessions {
		if session.RevokedAt == nil {
			count++
		}
	}
	return count
}

func (m *memSessionManager) challengeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.challenges)
}

type memSecurityLog struct {
	mu      sync.Mutex
	entries []entity.SecurityLog

	recordErr error
}

func (l *memSecurityLog) Record(ctx context.Context, entry *entity.SecurityLog) error {
	if l.recordErr != nil {
		return l.recordErr
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, *entry)
	return nil
}

func (l *memSecurityLog) actions() []entity.SecurityAction {
	l.mu.Lock()
	defer l.mu.Unlock()
	actions := make([]entity.SecurityAction, 0, len(l.entries))
	for _, entry := range l.entries {
		actions = append(actions, entry.Action)
	}
	return actions
}

type memEmailSender struct {
	mu   sync.Mutex
	sent []string

	sendErr error
}

func (s *memEmailSender) SendWelcomeEmail(ctx context.Context, email string, name string) error {
	if s.sendErr != nil {
		return s.sendErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, email)
	return nil
}

func (s *memEmailSender) recipients() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sent...)
}

var _ repository.CredentialStore = (*memCredentialStore)(nil)
var _ repository.SessionManager = (*memSessionManager)(nil)
var _ repository.SecurityLogRepository = (*memSecurityLog)(nil)
var _ service.EmailSender = (*memEmailSender)(nil)
