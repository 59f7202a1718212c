package web

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
)

// Session keys. A session holds at most one of keyUserID and keyPendingID.
const (
	keyUserID       = "user_id"
	keyPendingID    = "pending_user_id"
	keyFlashLevel   = "flash_level"
	keyFlashMessage = "flash_message"
)

// Flash levels, used as CSS classes.
const (
	levelSuccess = "success"
	levelInfo    = "info"
	levelWarning = "warning"
	levelDanger  = "danger"
)

type flash struct {
	Level   string
	Message string
}

func setFlash(sess *session.Session, level, message string) {
	sess.Set(keyFlashLevel, level)
	sess.Set(keyFlashMessage, message)
}

// popFlash returns and clears the pending flash, if any. The caller saves.
func popFlash(sess *session.Session) *flash {
	msg, _ := sess.Get(keyFlashMessage).(string)
	if msg == "" {
		return nil
	}
	level, _ := sess.Get(keyFlashLevel).(string)
	sess.Delete(keyFlashMessage)
	sess.Delete(keyFlashLevel)
	return &flash{Level: level, Message: msg}
}

func (s *Server) redirectWithFlash(c *fiber.Ctx, sess *session.Session, to, level, message string) error {
	setFlash(sess, level, message)
	if err := sess.Save(); err != nil {
		return err
	}
	return c.Redirect(to)
}

// signIn moves the session to the authenticated state under a fresh id.
func signIn(sess *session.Session, accountID int64) error {
	if err := sess.Regenerate(); err != nil {
		return err
	}
	sess.Delete(keyPendingID)
	sess.Set(keyUserID, accountID)
	return nil
}

// awaitSecondFactor moves the session to the pending_2fa state under a fresh id.
func awaitSecondFactor(sess *session.Session, accountID int64) error {
	if err := sess.Regenerate(); err != nil {
		return err
	}
	sess.Delete(keyUserID)
	sess.Set(keyPendingID, accountID)
	return nil
}
