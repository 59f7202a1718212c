package web

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/Purpleaki2024/location-genius-bot/internal/admin"
	"github.com/Purpleaki2024/location-genius-bot/internal/database"
)

const (
	recentQueries   = 5
	defaultListSize = 50
)

type accountActionForm struct {
	UserID int64  `form:"user_id" validate:"required,gt=0"`
	Action string `form:"action"  validate:"required,oneof=promote demote activate deactivate"`
}

func (s *Server) handleDashboard(c *fiber.Ctx) error {
	ctx := c.UserContext()

	stats, err := s.deps.Store.GetStats(ctx)
	if err != nil {
		return fmt.Errorf("failed to load stats: %w", err)
	}
	recent, _, err := s.deps.Store.ListLocationQueries(ctx, database.Page{Number: 1, Size: recentQueries})
	if err != nil {
		return fmt.Errorf("failed to load recent queries: %w", err)
	}

	sess, err := s.sessions.Get(c)
	if err != nil {
		return err
	}
	return s.render(c, sess, "dashboard.html", pageData{
		Title:   "Dashboard",
		Account: currentAccount(c),
		Stats:   stats,
		Queries: recent,
	})
}

func (s *Server) handleUsers(c *fiber.Ctx) error {
	page := pageFromQuery(c)
	accounts, total, err := s.deps.Store.ListAccounts(c.UserContext(), page)
	if err != nil {
		return fmt.Errorf("failed to list accounts: %w", err)
	}

	sess, err := s.sessions.Get(c)
	if err != nil {
		return err
	}
	return s.render(c, sess, "users.html", pageData{
		Title:    "Users",
		Account:  currentAccount(c),
		Accounts: accounts,
		Pager:    newPager(pathUsers, page, total),
	})
}

func (s *Server) handleAccountAction(c *fiber.Ctx) error {
	sess, err := s.sessions.Get(c)
	if err != nil {
		return err
	}
	actor := currentAccount(c)

	var form accountActionForm
	if err := c.BodyParser(&form); err != nil || s.validate.Struct(form) != nil {
		return s.redirectWithFlash(c, sess, pathUsers, levelDanger, msgUnknownAction)
	}
	action, _ := admin.ParseAction(form.Action)

	out, err := s.deps.Admin.Apply(c.UserContext(), action, actor.ID, form.UserID)
	switch {
	case errors.Is(err, admin.ErrAccountNotFound):
		return s.redirectWithFlash(c, sess, pathUsers, levelDanger, msgUserNotFound)
	case errors.Is(err, admin.ErrSelfLockout):
		return s.redirectWithFlash(c, sess, pathUsers, levelWarning, fmt.Sprintf(msgSelfLockout, action))
	case err != nil:
		s.log.Error("Account action failed", "error", err, "action", action, "target_id", form.UserID)
		return s.redirectWithFlash(c, sess, pathUsers, levelDanger, msgGeneralError)
	}

	s.log.Info("Account action applied",
		"actor_id", actor.ID, "target_id", form.UserID, "action", action,
		"changed", out.Changed, "notified", out.Notice.Delivered)

	name := out.Account.DisplayName()
	if !out.Changed {
		return s.redirectWithFlash(c, sess, pathUsers, levelInfo, fmt.Sprintf(msgUnchanged, name))
	}
	level, tmpl := actionFlash(action)
	return s.redirectWithFlash(c, sess, pathUsers, level, fmt.Sprintf(tmpl, name))
}

func actionFlash(action admin.Action) (level, tmpl string) {
	switch action {
	case admin.ActionPromote:
		return levelSuccess, msgPromoted
	case admin.ActionDemote:
		return levelInfo, msgDemoted
	case admin.ActionActivate:
		return levelSuccess, msgActivated
	default:
		return levelWarning, msgDeactivated
	}
}

func (s *Server) handleLocations(c *fiber.Ctx) error {
	page := pageFromQuery(c)
	queries, total, err := s.deps.Store.ListLocationQueries(c.UserContext(), page)
	if err != nil {
		return fmt.Errorf("failed to list location queries: %w", err)
	}

	sess, err := s.sessions.Get(c)
	if err != nil {
		return err
	}
	return s.render(c, sess, "locations.html", pageData{
		Title:   "Locations",
		Account: currentAccount(c),
		Queries: queries,
		Pager:   newPager(pathLocations, page, total),
	})
}

func pageFromQuery(c *fiber.Ctx) database.Page {
	return database.Page{
		Number: c.QueryInt("page", 1),
		Size:   c.QueryInt("size", defaultListSize),
	}.Normalize()
}

// pager renders previous/next links for a listing.
type pager struct {
	Path   string
	Number int
	Size   int
	Total  int
	Pages  int
}

func newPager(path string, page database.Page, total int) pager {
	pages := (total + page.Size - 1) / page.Size
	if pages < 1 {
		pages = 1
	}
	return pager{Path: path, Number: page.Number, Size: page.Size, Total: total, Pages: pages}
}

func (p pager) HasPrev() bool { return p.Number > 1 }
func (p pager) HasNext() bool { return p.Number < p.Pages }

func (p pager) PrevURL() string { return fmt.Sprintf("%s?page=%d&size=%d", p.Path, p.Number-1, p.Size) }
func (p pager) NextURL() string { return fmt.Sprintf("%s?page=%d&size=%d", p.Path, p.Number+1, p.Size) }
