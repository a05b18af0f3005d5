package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"authgate/api/handler"
	apiMiddleware "authgate/api/middleware"
	"authgate/api/routes"
	"authgate/config"
	"authgate/internal/entity"
	"authgate/internal/repository"
	"authgate/internal/service"
	"authgate/internal/utils"

	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("configuration")
	}

	db, err := config.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.WithError(err).Fatal("database")
	}
	if err := db.AutoMigrate(
		&entity.User{},
		&entity.Session{},
		&entity.TwoFactorChallenge{},
		&entity.SecurityLog{},
	); err != nil {
		logger.WithError(err).Fatal("migrate")
	}

	passwordHasher := service.BcryptPasswordHasher{Cost: cfg.BcryptCost}
	clock := service.RealClock{}

	credentials := repository.NewCredentialStore(db, passwordHasher)
	sessions := repository.NewSessionManager(db, repository.SessionManagerConfig{
		SessionTTL:   cfg.SessionTTL,
		ChallengeTTL: cfg.ChallengeTTL,
		Now:          clock.Now,
	})
	securityLogs := repository.NewSecurityLogRepository(db)

	accessManager := utils.JWTManager{
		Secret:         []byte(cfg.JWTSecret),
		Issuer:         cfg.JWTIssuer,
		AccessTokenTTL: cfg.AccessTokenTTL,
	}

	var emailSender service.EmailSender
	if sender := service.NewResendEmailSender(cfg.ResendAPIKey, cfg.EmailFrom, cfg.AppName); sender != nil {
		emailSender = sender
	}

	authService := service.NewAuthService(
		credentials,
		sessions,
		securityLogs,
		emailSender,
		passwordHasher,
		service.JWTAccessIssuer{Manager: &accessManager},
		service.NewTOTPVerifier(cfg.TOTPIssuer),
		clock,
		service.AuthConfig{
			MaxChallengeAttempts: cfg.MaxChallengeAttempts,
		},
	)

	authHandler := handler.NewAuthHandler(authService, handler.NewValidator())
	authHandler.CookieDomain = cfg.CookieDomain
	authHandler.SecureCookies = cfg.SecureCookies

	app := echo.New()
	app.HideBanner = true
	app.HidePort = true
	app.Use(echoMiddleware.Recover())
	app.Use(echoMiddleware.RequestLoggerWithConfig(echoMiddleware.RequestLoggerConfig{
		LogStatus:   true,
		LogMethod:   true,
		LogURI:      true,
		LogRemoteIP: true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v echoMiddleware.RequestLoggerValues) error {
			entry := logger.WithFields(logrus.Fields{
				"status": v.Status,
				"method": v.Method,
				"uri":    v.URI,
				"ip":     v.RemoteIP,
			})
			if v.Error != nil {
				entry.WithError(v.Error).Error("request")
				return nil
			}
			entry.Info("request")
			return nil
		},
	}))

	authMiddleware := apiMiddleware.AuthMiddleware{JWT: &accessManager}
	router := routes.NewRouter(app, authHandler, authMiddleware)
	router.RegisterRoutes()

	if cfg.PurgeInterval > 0 {
		go purgeLoop(sessions, cfg.PurgeInterval, logger)
	}

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.WithField("addr", cfg.HTTPAddr).Info("server started")
	if err := app.StartServer(server); err != nil {
		logger.WithError(err).Fatal("server stopped")
	}
}

// purgeLoop sweeps expired sessions and challenges. Expiry is enforced
// at read time regardless; the sweep only reclaims storage.
func purgeLoop(sessions repository.SessionManager, interval time.Duration, logger *logrus.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for range ticker.C {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		if err := sessions.PurgeExpired(ctx); err != nil {
			logger.WithError(err).Warn("purge expired")
		}
		cancel()
	}
}
