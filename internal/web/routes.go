package web

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

const (
	pathIndex     = "/"
	pathLogin     = "/login"
	pathVerify    = "/verify-2fa"
	pathLogout    = "/logout"
	pathDashboard = "/dashboard"
	pathUsers     = "/users"
	pathLocations = "/locations"
	pathHealth    = "/healthz"
)

const (
	loginAttempts = 10
	loginWindow   = time.Minute
	healthTimeout = 3 * time.Second
)

func (s *Server) routes() {
	s.app.Get(pathHealth, s.handleHealth)
	s.app.Get(pathIndex, s.handleIndex)

	throttle := limiter.New(limiter.Config{
		Max:        loginAttempts,
		Expiration: loginWindow,
		Storage:    s.deps.Storage,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() != fiber.MethodPost
		},
		LimitReached: func(c *fiber.Ctx) error {
			s.log.Warn("Login attempts throttled", "ip", c.IP(), "path", c.Path())
			return c.Status(fiber.StatusTooManyRequests).SendString("Too many attempts. Please wait a minute.")
		},
	})

	s.app.Get(pathLogin, s.handleLoginPage)
	s.app.Post(pathLogin, throttle, s.handleLogin)
	s.app.Get(pathVerify, s.handleVerifyPage)
	s.app.Post(pathVerify, throttle, s.handleVerify)
	s.app.Get(pathLogout, s.handleLogout)

	s.app.Get(pathDashboard, s.requireLogin, s.handleDashboard)
	s.app.Get(pathUsers, s.requireLogin, s.handleUsers)
	s.app.Post(pathUsers, s.requireLogin, s.handleAccountAction)
	s.app.Get(pathLocations, s.requireLogin, s.handleLocations)
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), healthTimeout)
	defer cancel()
	if err := s.deps.Store.Ping(ctx); err != nil {
		s.log.Warn("Health check failed", "error", err)
		return c.Status(fiber.StatusServiceUnavailable).SendString("unavailable")
	}
	return c.SendString("ok")
}

func (s *Server) handleIndex(c *fiber.Ctx) error {
	sess, err := s.sessions.Get(c)
	if err != nil {
		return err
	}
	if _, ok := sess.Get(keyUserID).(int64); ok {
		return c.Redirect(pathDashboard)
	}
	return c.Redirect(pathLogin)
}
