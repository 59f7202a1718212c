package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"

	"github.com/Purpleaki2024/location-genius-bot/internal/database"
)

//go:embed templates/*.html
var templateFS embed.FS

const baseTemplate = "base.html"

// pageSet maps a page file name to its template, each parsed with the base layout.
type pageSet map[string]*template.Template

type pageData struct {
	Title    string
	Flash    *flash
	Account  *database.Account
	Stats    *database.Stats
	Accounts []database.Account
	Queries  []database.LocationQueryView
	Pager    pager
}

var templateFuncs = template.FuncMap{
	"when": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.UTC().Format("2006-01-02 15:04")
	},
}

func parsePages() (pageSet, error) {
	names, err := fs.Glob(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	pages := make(pageSet, len(names))
	for _, name := range names {
		file := name[len("templates/"):]
		if file == baseTemplate {
			continue
		}
		t, err := template.New(file).Funcs(templateFuncs).ParseFS(templateFS, "templates/"+baseTemplate, name)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", file, err)
		}
		pages[file] = t
	}
	return pages, nil
}

// render consumes the pending flash, saves the session and writes the page.
func (s *Server) render(c *fiber.Ctx, sess *session.Session, page string, data pageData) error {
	t, ok := s.pages[page]
	if !ok {
		return fmt.Errorf("unknown page %q", page)
	}

	data.Flash = popFlash(sess)
	if err := sess.Save(); err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "base", data); err != nil {
		return fmt.Errorf("render %s: %w", page, err)
	}
	c.Type("html", "utf-8")
	return c.Send(buf.Bytes())
}
