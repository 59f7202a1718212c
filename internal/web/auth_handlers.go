package web

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/Purpleaki2024/location-genius-bot/internal/auth"
	"github.com/Purpleaki2024/location-genius-bot/internal/database"
)

type loginForm struct {
	Username string `form:"username" validate:"required"`
	Password string `form:"password" validate:"required"`
}

type codeForm struct {
	Code string `form:"code"`
}

func (s *Server) handleLoginPage(c *fiber.Ctx) error {
	sess, err := s.sessions.Get(c)
	if err != nil {
		return err
	}
	if _, ok := sess.Get(keyUserID).(int64); ok {
		return c.Redirect(pathDashboard)
	}
	return s.render(c, sess, "login.html", pageData{Title: "Admin Login"})
}

func (s *Server) handleLogin(c *fiber.Ctx) error {
	sess, err := s.sessions.Get(c)
	if err != nil {
		return err
	}

	var form loginForm
	if err := c.BodyParser(&form); err != nil {
		return s.redirectWithFlash(c, sess, pathLogin, levelWarning, msgMissingCredentials)
	}
	form.Username = strings.TrimSpace(form.Username)
	if err := s.validate.Struct(form); err != nil {
		return s.redirectWithFlash(c, sess, pathLogin, levelWarning, msgMissingCredentials)
	}

	acc, err := s.deps.Authenticator.Authenticate(c.UserContext(), form.Username, form.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		s.log.Info("Dashboard login rejected", "username", form.Username, "ip", c.IP())
		return s.redirectWithFlash(c, sess, pathLogin, levelDanger, msgInvalidCredentials)
	}
	if err != nil {
		s.log.Error("Dashboard login failed", "error", err, "request_id", requestID(c))
		return s.redirectWithFlash(c, sess, pathLogin, levelDanger, msgGeneralError)
	}

	if acc.HasTOTP() {
		if err := awaitSecondFactor(sess, acc.ID); err != nil {
			return err
		}
		return s.redirectWithFlash(c, sess, pathVerify, levelInfo, msgEnterCode)
	}

	if err := signIn(sess, acc.ID); err != nil {
		return err
	}
	s.log.Info("Dashboard login", "account_id", acc.ID, "two_factor", false)
	return s.redirectWithFlash(c, sess, pathDashboard, levelSuccess, fmt.Sprintf(msgWelcome, welcomeName(acc)))
}

func (s *Server) handleVerifyPage(c *fiber.Ctx) error {
	sess, err := s.sessions.Get(c)
	if err != nil {
		return err
	}
	if _, ok := sess.Get(keyPendingID).(int64); !ok {
		if _, ok := sess.Get(keyUserID).(int64); ok {
			return c.Redirect(pathDashboard)
		}
		return c.Redirect(pathLogin)
	}
	return s.render(c, sess, "verify_2fa.html", pageData{Title: "Two-Factor Verification"})
}

func (s *Server) handleVerify(c *fiber.Ctx) error {
	sess, err := s.sessions.Get(c)
	if err != nil {
		return err
	}

	pendingID, ok := sess.Get(keyPendingID).(int64)
	if !ok {
		if _, ok := sess.Get(keyUserID).(int64); ok {
			return c.Redirect(pathDashboard)
		}
		return c.Redirect(pathLogin)
	}

	var form codeForm
	_ = c.BodyParser(&form)
	code := strings.TrimSpace(form.Code)
	if code == "" {
		return s.redirectWithFlash(c, sess, pathVerify, levelWarning, msgMissingCode)
	}

	acc, err := s.authorizer.Authorize(c.UserContext(), pendingID)
	if errors.Is(err, auth.ErrNotAuthorized) {
		if err := sess.Reset(); err != nil {
			return err
		}
		return s.redirectWithFlash(c, sess, pathLogin, levelDanger, msgSessionExpired)
	}
	if err != nil {
		s.log.Error("Failed to load pending account", "error", err, "account_id", pendingID)
		return s.redirectWithFlash(c, sess, pathVerify, levelDanger, msgGeneralError)
	}

	if !auth.VerifySecondFactor(acc, code) {
		s.log.Info("Second factor rejected", "account_id", acc.ID, "ip", c.IP())
		return s.redirectWithFlash(c, sess, pathVerify, levelDanger, msgInvalidCode)
	}

	if err := signIn(sess, acc.ID); err != nil {
		return err
	}
	s.log.Info("Dashboard login", "account_id", acc.ID, "two_factor", true)
	return s.redirectWithFlash(c, sess, pathDashboard, levelSuccess, fmt.Sprintf(msgVerifiedWelcome, welcomeName(acc)))
}

func (s *Server) handleLogout(c *fiber.Ctx) error {
	sess, err := s.sessions.Get(c)
	if err != nil {
		return err
	}
	if err := sess.Reset(); err != nil {
		return err
	}
	return s.redirectWithFlash(c, sess, pathLogin, levelInfo, msgLoggedOut)
}

func welcomeName(acc *database.Account) string {
	if acc.Username != "" {
		return acc.Username
	}
	if acc.FirstName != "" {
		return acc.FirstName
	}
	return acc.DisplayName()
}
