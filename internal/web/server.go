// Package web serves the admin dashboard: login with optional TOTP,
// account administration and read-only location listings.
package web

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/encryptcookie"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/session"

	"github.com/Purpleaki2024/location-genius-bot/internal/admin"
	"github.com/Purpleaki2024/location-genius-bot/internal/auth"
	"github.com/Purpleaki2024/location-genius-bot/internal/config"
	"github.com/Purpleaki2024/location-genius-bot/internal/database"
)

// Deps contains everything the dashboard needs.
// Storage backs sessions and the login throttle; nil keeps them in memory.
type Deps struct {
	Logger        *slog.Logger
	Config        config.WebConfig
	Store         database.Store
	Authenticator *auth.Authenticator
	Admin         *admin.Service
	Storage       fiber.Storage
}

// Server wraps the fiber app and its session store.
type Server struct {
	deps       Deps
	log        *slog.Logger
	app        *fiber.App
	sessions   *session.Store
	authorizer auth.Authorizer
	validate   *validator.Validate
	pages      pageSet
}

// New builds the fiber app and registers every route.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Store == nil || deps.Authenticator == nil || deps.Admin == nil {
		return nil, errors.New("web: store, authenticator and admin service are required")
	}

	pages, err := parsePages()
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	ttl := deps.Config.SessionTTL
	if ttl <= 0 {
		ttl = config.DefaultSessionTTL
	}

	s := &Server{
		deps:       deps,
		log:        deps.Logger.With("component", "web"),
		authorizer: auth.SessionAuth{Accounts: deps.Store},
		validate:   validator.New(),
		pages:      pages,
		sessions: session.New(session.Config{
			Expiration:     ttl,
			Storage:        deps.Storage,
			CookieHTTPOnly: true,
			CookieSecure:   deps.Config.SecureCookie,
			CookieSameSite: fiber.CookieSameSiteLaxMode,
		}),
	}

	s.app = fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ReadTimeout:           15 * time.Second,
		WriteTimeout:          15 * time.Second,
		ErrorHandler:          s.handleError,
	})

	s.app.Use(recover.New())
	s.app.Use(encryptcookie.New(encryptcookie.Config{Key: cookieKey(deps.Config.SessionSecret)}))
	s.app.Use(requestIDMiddleware())
	s.app.Use(loggerMiddleware(s.log))

	s.routes()
	return s, nil
}

// App exposes the fiber app, mainly for app.Test.
func (s *Server) App() *fiber.App {
	return s.app
}

// Run listens on the configured address until ctx is cancelled, then shuts
// down within the configured timeout.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("Starting web server", "addr", s.deps.Config.Addr)
		errCh <- s.app.Listen(s.deps.Config.Addr)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("web server failed: %w", err)
		}
		return errors.New("web server stopped unexpectedly")
	case <-ctx.Done():
	}

	timeout := s.deps.Config.ShutdownTimeout
	if timeout <= 0 {
		timeout = config.DefaultWebShutdownTimeout
	}
	s.log.Info("Shutting down web server", "timeout", timeout)
	if err := s.app.ShutdownWithTimeout(timeout); err != nil {
		return fmt.Errorf("web server shutdown failed: %w", err)
	}
	if err := <-errCh; err != nil {
		s.log.Warn("Web server listener returned error after shutdown", "error", err)
	}
	s.log.Info("Web server stopped")
	return nil
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	if code >= fiber.StatusInternalServerError {
		s.log.Error("Request failed", "error", err, "path", c.Path(), "request_id", requestID(c))
		return c.Status(code).SendString("Internal Server Error")
	}
	return c.Status(code).SendString(err.Error())
}

// cookieKey derives the AES-256 key encryptcookie expects from the session secret.
func cookieKey(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return base64.StdEncoding.EncodeToString(sum[:])
}
