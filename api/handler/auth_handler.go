package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"time"

	"authgate/api/middleware"
	"authgate/internal/dto"
	"authgate/internal/entity"
	"authgate/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// Authenticator is the slice of the auth service the HTTP layer binds.
type Authenticator interface {
	Register(ctx context.Context, input service.RegisterInput) (*entity.User, error)
	AttemptLogin(ctx context.Context, input service.LoginInput) (service.AuthAttempt, error)
	AttemptTwoFactorLogin(ctx context.Context, input service.TwoFactorInput) (*service.SessionGrant, error)
	LogOut(ctx context.Context, sessionToken string) error
	LogOutAll(ctx context.Context, userID uuid.UUID) error
	RefreshSession(ctx context.Context, sessionToken string) (*service.SessionGrant, error)
	BeginTwoFactorEnrollment(ctx context.Context, userID uuid.UUID) (*service.TwoFactorSetup, error)
	ConfirmTwoFactorEnrollment(ctx context.Context, userID uuid.UUID, code string) error
	DisableTwoFactor(ctx context.Context, userID uuid.UUID) error
	CurrentUser(ctx context.Context, userID uuid.UUID) (*entity.User, error)
}

type AuthHandler struct {
	Service             Authenticator
	Validate            *validator.Validate
	SessionCookieName   string
	ChallengeCookieName string
	CookieDomain        string
	SecureCookies       bool
	SameSite            http.SameSite
}

func NewAuthHandler(svc Authenticator, validate *validator.Validate) *AuthHandler {
	return &AuthHandler{
		Service:             svc,
		Validate:            validate,
		SessionCookieName:   "session_token",
		ChallengeCookieName: "two_factor_challenge",
		SecureCookies:       true,
		SameSite:            http.SameSiteStrictMode,
	}
}

// NewValidator builds the request validator with json tag names, so the
// error envelope keys match the wire field names.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func (h *AuthHandler) Register(c echo.Context) error {
	var req dto.RegisterRequest
	if err := decodeJSON(c, &req); err != nil {
		return writeMessage(c, http.StatusBadRequest, "malformed request body")
	}
	if err := h.validate(req); err != nil {
		return writeValidationError(c, err)
	}

	input := service.RegisterInput{Name: req.Name, Email: req.Email, Password: req.Password}
	user, err := h.Service.Register(c.Request().Context(), input)
	if err != nil {
		return h.writeServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, dto.UserResponseFromEntity(user))
}

func (h *AuthHandler) Login(c echo.Context) error {
	var req dto.LoginRequest
	if err := decodeJSON(c, &req); err != nil {
		return writeMessage(c, http.StatusBadRequest, "malformed request body")
	}
	if err := h.validate(req); err != nil {
		return writeValidationError(c, err)
	}

	input := service.LoginInput{
		Email:     req.Email,
		Password:  req.Password,
		IPAddress: stringPtr(c.RealIP()),
		UserAgent: stringPtr(c.Request().UserAgent()),
	}
	attempt, err := h.Service.AttemptLogin(c.Request().Context(), input)
	if err != nil {
		return h.writeServiceError(c, err)
	}

	switch {
	case attempt.RequiresTwoFactor():
		h.setChallengeCookie(c, attempt.ChallengeID(), attempt.ChallengeExpiresAt())
		return c.JSON(http.StatusOK, dto.LoginResponse{TwoFactor: true})
	case attempt.Succeeded():
		grant := attempt.Grant()
		h.setSessionCookie(c, grant.SessionToken, grant.SessionExpiresAt)
		return c.JSON(http.StatusOK, grantResponse(grant))
	default:
		return writeFieldError(c, "password", "invalid username or password")
	}
}

func (h *AuthHandler) TwoFactorLogin(c echo.Context) error {
	var req dto.TwoFactorRequest
	if err := decodeJSON(c, &req); err != nil {
		return writeMessage(c, http.StatusBadRequest, "malformed request body")
	}
	if err := h.validate(req); err != nil {
		return writeValidationError(c, err)
	}

	input := service.TwoFactorInput{
		ChallengeID: h.challengeID(c, req.ChallengeID),
		Code:        req.Code,
		IPAddress:   stringPtr(c.RealIP()),
		UserAgent:   stringPtr(c.Request().UserAgent()),
	}
	grant, err := h.Service.AttemptTwoFactorLogin(c.Request().Context(), input)
	if err != nil {
		return h.writeServiceError(c, err)
	}

	h.clearChallengeCookie(c)
	h.setSessionCookie(c, grant.SessionToken, grant.SessionExpiresAt)
	return c.JSON(http.StatusOK, grantResponse(grant))
}

func (h *AuthHandler) Logout(c echo.Context) error {
	if err := h.Service.LogOut(c.Request().Context(), h.readSessionCookie(c)); err != nil {
		return h.writeServiceError(c, err)
	}
	h.clearSessionCookie(c)
	h.clearChallengeCookie(c)
	return c.NoContent(http.StatusNoContent)
}

func (h *AuthHandler) LogoutAll(c echo.Context) error {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		return writeMessage(c, http.StatusUnauthorized, "unauthorized")
	}
	if err := h.Service.LogOutAll(c.Request().Context(), userID); err != nil {
		return h.writeServiceError(c, err)
	}
	h.clearSessionCookie(c)
	h.clearChallengeCookie(c)
	return c.NoContent(http.StatusNoContent)
}

func (h *AuthHandler) Refresh(c echo.Context) error {
	grant, err := h.Service.RefreshSession(c.Request().Context(), h.readSessionCookie(c))
	if err != nil {
		return h.writeServiceError(c, err)
	}
	h.setSessionCookie(c, grant.SessionToken, grant.SessionExpiresAt)
	return c.JSON(http.StatusOK, grantResponse(grant))
}

func (h *AuthHandler) TwoFactorSetup(c echo.Context) error {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		return writeMessage(c, http.StatusUnauthorized, "unauthorized")
	}
	setup, err := h.Service.BeginTwoFactorEnrollment(c.Request().Context(), userID)
	if err != nil {
		return h.writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, dto.TwoFactorSetupResponse{Secret: setup.Secret, OTPAuthURL: setup.OTPAuthURL})
}

func (h *AuthHandler) TwoFactorConfirm(c echo.Context) error {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		return writeMessage(c, http.StatusUnauthorized, "unauthorized")
	}
	var req dto.TwoFactorConfirmRequest
	if err := decodeJSON(c, &req); err != nil {
		return writeMessage(c, http.StatusBadRequest, "malformed request body")
	}
	if err := h.validate(req); err != nil {
		return writeValidationError(c, err)
	}
	if err := h.Service.ConfirmTwoFactorEnrollment(c.Request().Context(), userID, req.Code); err != nil {
		return h.writeServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *AuthHandler) TwoFactorDisable(c echo.Context) error {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		return writeMessage(c, http.StatusUnauthorized, "unauthorized")
	}
	if err := h.Service.DisableTwoFactor(c.Request().Context(), userID); err != nil {
		return h.writeServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *AuthHandler) Me(c echo.Context) error {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		return writeMessage(c, http.StatusUnauthorized, "unauthorized")
	}
	user, err := h.Service.CurrentUser(c.Request().Context(), userID)
	if err != nil {
		return h.writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, dto.UserResponseFromEntity(user))
}

func (h *AuthHandler) validate(payload any) error {
	if h.Validate == nil {
		return nil
	}
	return h.Validate.Struct(payload)
}

// challengeID resolves the pending challenge reference, preferring the
// cookie over the request body.
func (h *AuthHandler) challengeID(c echo.Context, bodyValue string) uuid.UUID {
	if cookie, err := c.Cookie(h.ChallengeCookieName); err == nil {
		if id, err := uuid.Parse(cookie.Value); err == nil {
			return id
		}
	}
	if id, err := uuid.Parse(strings.TrimSpace(bodyValue)); err == nil {
		return id
	}
	return uuid.Nil
}

func (h *AuthHandler) setSessionCookie(c echo.Context, token string, expiresAt time.Time) {
	if token == "" {
		return
	}
	c.SetCookie(h.cookie(h.SessionCookieName, token, expiresAt))
}

func (h *AuthHandler) clearSessionCookie(c echo.Context) {
	c.SetCookie(h.expiredCookie(h.SessionCookieName))
}

func (h *AuthHandler) setChallengeCookie(c echo.Context, challengeID uuid.UUID, expiresAt time.Time) {
	if challengeID == uuid.Nil {
		return
	}
	c.SetCookie(h.cookie(h.ChallengeCookieName, challengeID.String(), expiresAt))
}

func (h *AuthHandler) clearChallengeCookie(c echo.Context) {
	c.SetCookie(h.expiredCookie(h.ChallengeCookieName))
}

func (h *AuthHandler) readSessionCookie(c echo.Context) string {
	cookie, err := c.Cookie(h.SessionCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func (h *AuthHandler) cookie(name string, value string, expiresAt time.Time) *http.Cookie {
	maxAge := int(time.Until(expiresAt).Seconds())
	if maxAge < 0 {
		maxAge = 0
	}
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   h.CookieDomain,
		MaxAge:   maxAge,
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   h.SecureCookies,
		SameSite: h.SameSite,
	}
}

func (h *AuthHandler) expiredCookie(name string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Domain:   h.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.SecureCookies,
		SameSite: h.SameSite,
	}
}

func (h *AuthHandler) writeServiceError(c echo.Context, err error) error {
	var verr *service.ValidationError
	if errors.As(err, &verr) {
		return c.JSON(http.StatusUnprocessableEntity, dto.ErrorResponse{Errors: verr.Fields})
	}
	switch {
	case errors.Is(err, service.ErrDuplicateEmail):
		return writeFieldError(c, "email", "email already registered")
	case errors.Is(err, service.ErrTwoFactorRejected):
		return writeFieldError(c, "code", "Invalid Code")
	case errors.Is(err, service.ErrInvalidToken):
		return writeMessage(c, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, service.ErrUserNotFound):
		return writeMessage(c, http.StatusNotFound, "user not found")
	case errors.Is(err, service.ErrTwoFactorNotConfigured):
		return writeMessage(c, http.StatusConflict, "two-factor setup has not been started")
	case errors.Is(err, service.ErrTwoFactorAlreadyEnabled):
		return writeMessage(c, http.StatusConflict, "two-factor authentication is already enabled")
	}
	// Storage and collaborator faults must never read as an
	// authentication decision.
	return writeMessage(c, http.StatusInternalServerError, "internal server error")
}

func writeValidationError(c echo.Context, err error) error {
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return writeMessage(c, http.StatusBadRequest, "invalid request")
	}
	fields := make(map[string][]string, len(fieldErrors))
	for _, fe := range fieldErrors {
		fields[fe.Field()] = append(fields[fe.Field()], validationMessage(fe))
	}
	return c.JSON(http.StatusUnprocessableEntity, dto.ErrorResponse{Errors: fields})
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "email":
		return fe.Field() + " must be a valid email address"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "uuid":
		return fe.Field() + " must be a valid uuid"
	default:
		return fe.Field() + " is invalid"
	}
}

func writeFieldError(c echo.Context, field string, message string) error {
	return c.JSON(http.StatusUnprocessableEntity, dto.ErrorResponse{
		Errors: map[string][]string{field: {message}},
	})
}

func writeMessage(c echo.Context, status int, message string) error {
	return c.JSON(status, dto.MessageResponse{Message: message})
}

func decodeJSON(c echo.Context, target any) error {
	decoder := json.NewDecoder(c.Request().Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(target)
}

func stringPtr(value string) *string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return &value
}

func grantResponse(grant *service.SessionGrant) dto.LoginResponse {
	return dto.LoginResponse{
		AccessToken: grant.AccessToken,
		ExpiresIn:   grant.AccessExpiresIn,
		User:        dto.UserResponseFromEntity(grant.User),
	}
}
