package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"authgate/internal/entity"
	"authgate/internal/repository"
	"authgate/internal/utils"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// fallbackDummyHash keeps the unknown-email path burning a bcrypt
// comparison even if minting a fresh dummy hash at construction fails.
const fallbackDummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

type AuthService struct {
	credentials  repository.CredentialStore
	sessions     repository.SessionManager
	securityLogs repository.SecurityLogRepository

	emailSender  EmailSender
	passwordHash PasswordHasher
	accessTokens AccessTokenIssuer
	codes        CodeVerifier
	clock        Clock
	config       AuthConfig

	dummyHash string
}

func NewAuthService(
	credentials repository.CredentialStore,
	sessions repository.SessionManager,
	securityLogs repository.SecurityLogRepository,
	emailSender EmailSender,
	passwordHash PasswordHasher,
	accessTokens AccessTokenIssuer,
	codes CodeVerifier,
	clock Clock,
	config AuthConfig,
) *AuthService {
	// Minted with the live hasher so the unknown-email reject path costs
	// the same comparison as a wrong password against a real account.
	dummyHash, err := passwordHash.Hash("authgate.dummy.credential")
	if err != nil {
		dummyHash = fallbackDummyHash
	}
	return &AuthService{
		credentials:  credentials,
		sessions:     sessions,
		securityLogs: securityLogs,
		emailSender:  emailSender,
		passwordHash: passwordHash,
		accessTokens: accessTokens,
		codes:        codes,
		clock:        clock,
		config:       config,
		dummyHash:    dummyHash,
	}
}

// Register creates an account with a hashed password. Email uniqueness
// is decided by the store's unique index; there is no pre-check, so two
// concurrent registrations of the same address cannot both win.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*entity.User, error) {
	if verr := validateRegisterInput(input); verr != nil {
		return nil, verr
	}

	hash, err := s.passwordHash.Hash(input.Password)
	if err != nil {
		return nil, err
	}

	user := &entity.User{
		Name:         strings.TrimSpace(input.Name),
		Email:        utils.NormalizeEmail(input.Email),
		PasswordHash: hash,
	}
	if err := s.credentials.Insert(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, ErrDuplicateEmail
		}
		return nil, err
	}

	if s.emailSender != nil {
		_ = s.emailSender.SendWelcomeEmail(ctx, user.Email, user.Name)
	}
	return user, nil
}

// AttemptLogin performs the first factor. Unknown email and wrong
// password both collapse into a plain Failed outcome; the error return
// is reserved for storage faults. Two-factor status is consulted only
// after the password has verified, and a two-factor outcome creates a
// challenge but never a session.
func (s *AuthService) AttemptLogin(ctx context.Context, input LoginInput) (AuthAttempt, error) {
	if verr := validateLoginInput(input); verr != nil {
		return AttemptFailed(), verr
	}

	email := utils.NormalizeEmail(input.Email)
	user, err := s.credentials.FindByIdentifier(ctx, email)
	if err != nil {
		return AttemptFailed(), err
	}
	if user == nil {
		// Burn a comparison so unknown emails are not cheaper to probe
		// than wrong passwords.
		_ = s.passwordHash.Verify(s.dummyHash, input.Password)
		_ = s.logSecurity(ctx, nil, input.IPAddress, entity.LoginFailed, map[string]any{"email": email})
		return AttemptFailed(), nil
	}

	if !s.credentials.VerifySecret(user, input.Password) {
		_ = s.logSecurity(ctx, &user.ID, input.IPAddress, entity.LoginFailed, map[string]any{"email": email})
		return AttemptFailed(), nil
	}

	if user.TwoFactorEnabled {
		challenge, err := s.sessions.CreateChallenge(ctx, user)
		if err != nil {
			return AttemptFailed(), err
		}
		_ = s.logSecurity(ctx, &user.ID, input.IPAddress, entity.ChallengeIssued, map[string]any{"challenge_id": challenge.ID.String()})
		return AttemptRequiresTwoFactor(challenge.ID, challenge.ExpiresAt), nil
	}

	grant, err := s.establishSession(ctx, user)
	if err != nil {
		return AttemptFailed(), err
	}
	_ = s.logSecurity(ctx, &user.ID, input.IPAddress, entity.LoginSuccess, nil)
	return AttemptSucceeded(grant), nil
}

// AttemptTwoFactorLogin completes the second factor against a pending
// challenge. Every rejection reason maps to ErrTwoFactorRejected so a
// caller cannot tell a wrong code from a dead challenge. The challenge
// is consumed atomically: of two concurrent submissions of the correct
// code, exactly one receives a session.
func (s *AuthService) AttemptTwoFactorLogin(ctx context.Context, input TwoFactorInput) (*SessionGrant, error) {
	code := strings.TrimSpace(input.Code)
	if code == "" {
		return nil, NewValidationError("code", "code is required")
	}
	if input.ChallengeID == uuid.Nil {
		return nil, ErrTwoFactorRejected
	}

	challenge, err := s.sessions.GetChallenge(ctx, input.ChallengeID)
	if err != nil {
		return nil, err
	}
	if challenge == nil {
		return nil, ErrTwoFactorRejected
	}

	if s.now().After(challenge.ExpiresAt) {
		_ = s.sessions.InvalidateChallenge(ctx, challenge.ID)
		return nil, ErrTwoFactorRejected
	}

	if challenge.Attempts >= s.maxChallengeAttempts() {
		_ = s.sessions.InvalidateChallenge(ctx, challenge.ID)
		return nil, ErrTwoFactorRejected
	}

	user := &challenge.User
	if user.TwoFactorSecret == nil || !user.TwoFactorEnabled {
		// Enrollment was revoked while the challenge was pending.
		_ = s.sessions.InvalidateChallenge(ctx, challenge.ID)
		return nil, ErrTwoFactorRejected
	}

	if !s.codes.Verify(*user.TwoFactorSecret, code, s.now()) {
		attempts, err := s.sessions.RecordChallengeFailure(ctx, challenge.ID)
		if err != nil {
			if errors.Is(err, repository.ErrChallengeNotFound) {
				return nil, ErrTwoFactorRejected
			}
			return nil, err
		}
		_ = s.logSecurity(ctx, &challenge.UserID, input.IPAddress, entity.TwoFactorFailed, map[string]any{"challenge_id": challenge.ID.String(), "attempts": attempts})
		if attempts >= s.maxChallengeAttempts() {
			_ = s.sessions.InvalidateChallenge(ctx, challenge.ID)
			_ = s.logSecurity(ctx, &challenge.UserID, input.IPAddress, entity.ChallengeInvalidated, map[string]any{"challenge_id": challenge.ID.String()})
		}
		return nil, ErrTwoFactorRejected
	}

	consumed, err := s.sessions.ConsumeChallenge(ctx, challenge.ID)
	if err != nil {
		return nil, err
	}
	if !consumed {
		// A concurrent submission already spent this challenge.
		return nil, ErrTwoFactorRejected
	}

	grant, err := s.establishSession(ctx, user)
	if err != nil {
		return nil, err
	}
	_ = s.logSecurity(ctx, &user.ID, input.IPAddress, entity.LoginSuccess, map[string]any{"two_factor": true})
	return grant, nil
}

// LogOut destroys the session behind the opaque token. Unknown, expired
// and already-revoked tokens are a silent no-op.
func (s *AuthService) LogOut(ctx context.Context, sessionToken string) error {
	token := strings.TrimSpace(sessionToken)
	if token == "" {
		return nil
	}
	session, err := s.sessions.FindSessionByTokenHash(ctx, utils.HashSessionToken(token))
	if err != nil {
		return err
	}
	if session == nil {
		return nil
	}
	if err := s.sessions.DestroySession(ctx, session.ID); err != nil {
		return err
	}
	_ = s.logSecurity(ctx, &session.UserID, nil, entity.Logout, nil)
	return nil
}

func (s *AuthService) LogOutAll(ctx context.Context, userID uuid.UUID) error {
	if err := s.sessions.DestroyAllSessions(ctx, userID); err != nil {
		return err
	}
	_ = s.logSecurity(ctx, &userID, nil, entity.SessionRevoked, map[string]any{"scope": "all"})
	return nil
}

// RefreshSession rotates the opaque token of a live session and mints a
// fresh access token. The old token stops working the moment rotation
// commits.
func (s *AuthService) RefreshSession(ctx context.Context, sessionToken string) (*SessionGrant, error) {
	token := strings.TrimSpace(sessionToken)
	if token == "" {
		return nil, ErrInvalidToken
	}

	session, err := s.sessions.FindSessionByTokenHash(ctx, utils.HashSessionToken(token))
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrInvalidToken
	}

	user, err := s.credentials.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidToken
	}

	newToken, expiresAt, err := s.sessions.RotateSessionToken(ctx, session.ID)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}

	accessToken, accessTTL, err := s.accessTokens.IssueAccessToken(*user, session.ID)
	if err != nil {
		return nil, err
	}

	return &SessionGrant{
		User:             user,
		SessionID:        session.ID,
		SessionToken:     newToken,
		SessionExpiresAt: expiresAt,
		AccessToken:      accessToken,
		AccessExpiresIn:  int64(accessTTL.Seconds()),
	}, nil
}

// BeginTwoFactorEnrollment stores a fresh secret with the enabled flag
// still off; login ignores the secret until a code has been confirmed.
func (s *AuthService) BeginTwoFactorEnrollment(ctx context.Context, userID uuid.UUID) (*TwoFactorSetup, error) {
	user, err := s.credentials.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	if user.TwoFactorEnabled {
		return nil, ErrTwoFactorAlreadyEnabled
	}

	secret, otpauthURL, err := s.codes.GenerateSecret(user.Email)
	if err != nil {
		return nil, err
	}
	if err := s.credentials.SetTwoFactorSecret(ctx, user.ID, secret); err != nil {
		return nil, err
	}
	return &TwoFactorSetup{Secret: secret, OTPAuthURL: otpauthURL}, nil
}

func (s *AuthService) ConfirmTwoFactorEnrollment(ctx context.Context, userID uuid.UUID, code string) error {
	if strings.TrimSpace(code) == "" {
		return NewValidationError("code", "code is required")
	}
	user, err := s.credentials.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}
	if user.TwoFactorEnabled {
		return ErrTwoFactorAlreadyEnabled
	}
	if user.TwoFactorSecret == nil {
		return ErrTwoFactorNotConfigured
	}
	if !s.codes.Verify(*user.TwoFactorSecret, strings.TrimSpace(code), s.now()) {
		return ErrTwoFactorRejected
	}
	return s.credentials.EnableTwoFactor(ctx, user.ID)
}

func (s *AuthService) DisableTwoFactor(ctx context.Context, userID uuid.UUID) error {
	user, err := s.credentials.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}
	return s.credentials.DisableTwoFactor(ctx, user.ID)
}

func (s *AuthService) CurrentUser(ctx context.Context, userID uuid.UUID) (*entity.User, error) {
	user, err := s.credentials.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (s *AuthService) establishSession(ctx context.Context, user *entity.User) (*SessionGrant, error) {
	session, token, err := s.sessions.CreateSession(ctx, user)
	if err != nil {
		return nil, err
	}

	accessToken, accessTTL, err := s.accessTokens.IssueAccessToken(*user, session.ID)
	if err != nil {
		return nil, err
	}

	return &SessionGrant{
		User:             user,
		SessionID:        session.ID,
		SessionToken:     token,
		SessionExpiresAt: session.ExpiresAt,
		AccessToken:      accessToken,
		AccessExpiresIn:  int64(accessTTL.Seconds()),
	}, nil
}

func (s *AuthService) logSecurity(
	ctx context.Context,
	userID *uuid.UUID,
	ipAddress *string,
	action entity.SecurityAction,
	metadata map[string]any,
) error {
	if s.securityLogs == nil {
		return nil
	}
	var payload datatypes.JSON
	if metadata != nil {
		bytes, err := json.Marshal(metadata)
		if err != nil {
			return err
		}
		payload = datatypes.JSON(bytes)
	}

	entry := &entity.SecurityLog{
		UserID:    userID,
		IPAddress: ipAddress,
		Action:    action,
		Metadata:  payload,
	}
	return s.securityLogs.Record(ctx, entry)
}

func (s *AuthService) now() time.Time {
	if s.clock == nil {
		return time.Now()
	}
	return s.clock.Now()
}

func (s *AuthService) maxChallengeAttempts() int {
	if s.config.MaxChallengeAttempts > 0 {
		return s.config.MaxChallengeAttempts
	}
	return 5
}

func validateRegisterInput(input RegisterInput) *ValidationError {
	verr := &ValidationError{}
	if strings.TrimSpace(input.Name) == "" {
		verr.Add("name", "name is required")
	}
	if strings.TrimSpace(input.Email) == "" {
		verr.Add("email", "email is required")
	}
	if strings.TrimSpace(input.Password) == "" {
		verr.Add("password", "password is required")
	}
	if len(verr.Fields) == 0 {
		return nil
	}
	return verr
}

func validateLoginInput(input LoginInput) *ValidationError {
	verr := &ValidationError{}
	if strings.TrimSpace(input.Email) == "" {
		verr.Add("email", "email is required")
	}
	if strings.TrimSpace(input.Password) == "" {
		verr.Add("password", "password is required")
	}
	if len(verr.Fields) == 0 {
		return nil
	}
	return verr
}
