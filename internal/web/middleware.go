package web

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/Purpleaki2024/location-genius-bot/internal/auth"
	"github.com/Purpleaki2024/location-genius-bot/internal/database"
)

const (
	localRequestID = "request_id"
	localAccount   = "account"
	headerRequest  = "X-Request-ID"
)

func requestIDMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqID := c.Get(headerRequest)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Locals(localRequestID, reqID)
		c.Set(headerRequest, reqID)
		return c.Next()
	}
}

func requestID(c *fiber.Ctx) string {
	id, _ := c.Locals(localRequestID).(string)
	return id
}

func loggerMiddleware(log *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		log.Debug("HTTP request",
			"request_id", requestID(c),
			"method", c.Method(),
			"path", c.Path(),
			"status", c.Response().StatusCode(),
			"latency", time.Since(start),
			"ip", c.IP(),
		)
		return err
	}
}

// requireLogin admits requests whose session holds a user id that still
// resolves to an active admin. Revoked sessions are reset.
func (s *Server) requireLogin(c *fiber.Ctx) error {
	sess, err := s.sessions.Get(c)
	if err != nil {
		return err
	}

	uid, ok := sess.Get(keyUserID).(int64)
	if !ok {
		return c.Redirect(pathLogin)
	}

	acc, err := s.authorizer.Authorize(c.UserContext(), uid)
	if errors.Is(err, auth.ErrNotAuthorized) {
		s.log.Info("Revoking dashboard session", "account_id", uid, "request_id", requestID(c))
		if err := sess.Reset(); err != nil {
			return err
		}
		return s.redirectWithFlash(c, sess, pathLogin, levelWarning, msgNoLongerAuthorized)
	}
	if err != nil {
		return err
	}

	c.Locals(localAccount, acc)
	return c.Next()
}

func currentAccount(c *fiber.Ctx) *database.Account {
	acc, _ := c.Locals(localAccount).(*database.Account)
	return acc
}
