package web

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Purpleaki2024/location-genius-bot/internal/admin"
	"github.com/Purpleaki2024/location-genius-bot/internal/auth"
	"github.com/Purpleaki2024/location-genius-bot/internal/config"
	"github.com/Purpleaki2024/location-genius-bot/internal/database"
	"github.com/Purpleaki2024/location-genius-bot/internal/notify"
)

const testPassword = "s3cret-pass"

type recordingNotifier struct {
	mu   sync.Mutex
	sent map[int64][]string
}

func (r *recordingNotifier) Notify(_ context.Context, id int64, text string) notify.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sent == nil {
		r.sent = make(map[int64][]string)
	}
	r.sent[id] = append(r.sent[id], text)
	return notify.Result{Delivered: true}
}

func (r *recordingNotifier) count(id int64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent[id])
}

type fixture struct {
	server   *Server
	store    database.Store
	notifier *recordingNotifier
	admin    *database.Account
}

// newFixture seeds one admin with testPassword and, when totpSecret is set, a second factor.
func newFixture(t *testing.T, totpSecret string) *fixture {
	t.Helper()
	return newFixtureWithStorage(t, totpSecret, nil)
}

// newFixtureWithStorage is newFixture with sessions and throttling kept in storage.
func newFixtureWithStorage(t *testing.T, totpSecret string, storage fiber.Storage) *fixture {
	t.Helper()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "web.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.CloseDB(db) })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := database.NewStore(db, logger)
	ctx := context.Background()

	hash, err := auth.HashPassword(testPassword)
	require.NoError(t, err)
	created, err := store.EnsureInitialAdmin(ctx, database.AdminSeed{Username: "admin", PasswordHash: hash, TOTPSecret: totpSecret})
	require.NoError(t, err)
	require.True(t, created)
	adminAcc, err := store.GetAccountByUsername(ctx, "admin")
	require.NoError(t, err)

	n := &recordingNotifier{}
	srv, err := New(Deps{
		Logger: logger,
		Config: config.WebConfig{
			Addr:          ":0",
			SessionSecret: "test-session-secret",
			SessionTTL:    time.Hour,
		},
		Store:         store,
		Authenticator: auth.NewAuthenticator(store, logger),
		Admin:         admin.NewService(store, n, config.DefaultMessages, logger),
		Storage:       storage,
	})
	require.NoError(t, err)

	return &fixture{server: srv, store: store, notifier: n, admin: adminAcc}
}

// client carries cookies between app.Test calls and never follows redirects.
type client struct {
	t       *testing.T
	f       *fixture
	cookies map[string]string
}

func (f *fixture) client(t *testing.T) *client {
	return &client{t: t, f: f, cookies: make(map[string]string)}
}

func (c *client) do(method, path string, form url.Values) *http.Response {
	c.t.Helper()
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, path, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for name, value := range c.cookies {
		req.AddCookie(&http.Cookie{Name: name, Value: value})
	}

	resp, err := c.f.server.App().Test(req, -1)
	require.NoError(c.t, err)
	for _, ck := range resp.Cookies() {
		if ck.Value == "" || ck.MaxAge < 0 {
			delete(c.cookies, ck.Name)
			continue
		}
		c.cookies[ck.Name] = ck.Value
	}
	return resp
}

func (c *client) get(path string) *http.Response {
	return c.do(http.MethodGet, path, nil)
}

func (c *client) post(path string, form url.Values) *http.Response {
	return c.do(http.MethodPost, path, form)
}

// page GETs path, expects 200 and parses the body.
func (c *client) page(path string) *goquery.Document {
	c.t.Helper()
	resp := c.get(path)
	defer resp.Body.Close()
	require.Equal(c.t, http.StatusOK, resp.StatusCode, "GET %s", path)
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	require.NoError(c.t, err)
	return doc
}

func (c *client) login(password string) *http.Response {
	return c.post(pathLogin, url.Values{"username": {"admin"}, "password": {password}})
}

func assertRedirect(t *testing.T, resp *http.Response, to string) {
	t.Helper()
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, to, resp.Header.Get("Location"))
}

func flashText(doc *goquery.Document) string {
	return strings.TrimSpace(doc.Find("#flash").Text())
}

func TestIndexRedirects(t *testing.T) {
	t.Parallel()
	f := newFixture(t, "")
	c := f.client(t)

	assertRedirect(t, c.get(pathIndex), pathLogin)

	assertRedirect(t, c.login(testPassword), pathDashboard)
	assertRedirect(t, c.get(pathIndex), pathDashboard)
	assertRedirect(t, c.get(pathLogin), pathDashboard)
}

func TestProtectedPagesRequireLogin(t *testing.T) {
	t.Parallel()
	f := newFixture(t, "")
	c := f.client(t)

	for _, path := range []string{pathDashboard, pathUsers, pathLocations} {
		assertRedirect(t, c.get(path), pathLogin)
	}
	assertRedirect(t, c.post(pathUsers, url.Values{"user_id": {"1"}, "action": {"demote"}}), pathLogin)
}

func TestLoginFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		form  url.Values
		flash string
	}{
		{"missing password", url.Values{"username": {"admin"}}, msgMissingCredentials},
		{"blank username", url.Values{"username": {"  "}, "password": {"x"}}, msgMissingCredentials},
		{"wrong password", url.Values{"username": {"admin"}, "password": {"nope"}}, msgInvalidCredentials},
		{"unknown user", url.Values{"username": {"ghost"}, "password": {testPassword}}, msgInvalidCredentials},
	}

	f := newFixture(t, "")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := f.client(t)
			assertRedirect(t, c.post(pathLogin, tt.form), pathLogin)

			doc := c.page(pathLogin)
			assert.Equal(t, tt.flash, flashText(doc))
			assert.Equal(t, 1, doc.Find("#login-form").Length())

			// flash is one-shot
			assert.Empty(t, flashText(c.page(pathLogin)))
			assertRedirect(t, c.get(pathDashboard), pathLogin)
		})
	}
}

func TestLoginWithoutSecondFactor(t *testing.T) {
	t.Parallel()
	f := newFixture(t, "")
	c := f.client(t)

	assertRedirect(t, c.login(testPassword), pathDashboard)

	doc := c.page(pathDashboard)
	assert.Equal(t, "Welcome, admin!", flashText(doc))
	assert.Equal(t, "1", doc.Find("#stat-accounts").Text())
	assert.Equal(t, "1", doc.Find("#stat-admins").Text())
	assert.Equal(t, "0", doc.Find("#stat-queries").Text())
	assert.Equal(t, "@admin", doc.Find("#current-user").Text())

	// no pending state to verify
	assertRedirect(t, c.get(pathVerify), pathDashboard)
}

func TestLoginWithSecondFactor(t *testing.T) {
	t.Parallel()
	secret, err := auth.NewTOTPSecret("admin")
	require.NoError(t, err)
	f := newFixture(t, secret)
	c := f.client(t)

	assertRedirect(t, c.login(testPassword), pathVerify)
	doc := c.page(pathVerify)
	assert.Equal(t, msgEnterCode, flashText(doc))
	assert.Equal(t, 1, doc.Find("#verify-form").Length())

	// pending sessions are not logged in
	assertRedirect(t, c.get(pathDashboard), pathLogin)

	assertRedirect(t, c.post(pathVerify, url.Values{"code": {""}}), pathVerify)
	assert.Equal(t, msgMissingCode, flashText(c.page(pathVerify)))

	assertRedirect(t, c.post(pathVerify, url.Values{"code": {"000000x"}}), pathVerify)
	assert.Equal(t, msgInvalidCode, flashText(c.page(pathVerify)))

	code, err := auth.GenerateCode(secret, time.Now())
	require.NoError(t, err)
	assertRedirect(t, c.post(pathVerify, url.Values{"code": {code}}), pathDashboard)

	assert.Equal(t, "2FA verified. Welcome, admin!", flashText(c.page(pathDashboard)))
}

func TestVerifyWithoutPendingLogin(t *testing.T) {
	t.Parallel()
	f := newFixture(t, "")
	c := f.client(t)

	assertRedirect(t, c.get(pathVerify), pathLogin)
	assertRedirect(t, c.post(pathVerify, url.Values{"code": {"123456"}}), pathLogin)
}

func TestPendingLoginCollapsesWhenAccountRevoked(t *testing.T) {
	t.Parallel()
	secret, err := auth.NewTOTPSecret("admin")
	require.NoError(t, err)
	f := newFixture(t, secret)
	c := f.client(t)

	assertRedirect(t, c.login(testPassword), pathVerify)

	_, err = f.store.SetAccountActive(context.Background(), f.admin.ID, false)
	require.NoError(t, err)

	code, err := auth.GenerateCode(secret, time.Now())
	require.NoError(t, err)
	assertRedirect(t, c.post(pathVerify, url.Values{"code": {code}}), pathLogin)
	assert.Equal(t, msgSessionExpired, flashText(c.page(pathLogin)))
	assertRedirect(t, c.get(pathVerify), pathLogin)
}

func TestRevokedSessionIsReset(t *testing.T) {
	t.Parallel()
	f := newFixture(t, "")
	c := f.client(t)

	assertRedirect(t, c.login(testPassword), pathDashboard)
	c.page(pathDashboard)

	_, err := f.store.SetAccountAdmin(context.Background(), f.admin.ID, false)
	require.NoError(t, err)

	assertRedirect(t, c.get(pathDashboard), pathLogin)
	assert.Equal(t, msgNoLongerAuthorized, flashText(c.page(pathLogin)))

	// restoring the flag does not resurrect the old session
	_, err = f.store.SetAccountAdmin(context.Background(), f.admin.ID, true)
	require.NoError(t, err)
	assertRedirect(t, c.get(pathDashboard), pathLogin)
}

func TestLogout(t *testing.T) {
	t.Parallel()
	f := newFixture(t, "")
	c := f.client(t)

	assertRedirect(t, c.login(testPassword), pathDashboard)
	assertRedirect(t, c.get(pathLogout), pathLogin)
	assert.Equal(t, msgLoggedOut, flashText(c.page(pathLogin)))
	assertRedirect(t, c.get(pathDashboard), pathLogin)
}

func TestUsersPageAndActions(t *testing.T) {
	t.Parallel()
	f := newFixture(t, "")
	ctx := context.Background()
	pat, _, err := f.store.GetOrCreateAccount(ctx, database.ExternalProfile{ExternalID: 42, Username: "pat"})
	require.NoError(t, err)

	c := f.client(t)
	assertRedirect(t, c.login(testPassword), pathDashboard)

	doc := c.page(pathUsers)
	assert.Equal(t, 2, doc.Find("tr.account").Length())
	self := doc.Find(`tr.account[data-account-id="` + itoa(f.admin.ID) + `"]`)
	assert.Zero(t, self.Find(`button[value="demote"]`).Length(), "no self demote button")
	assert.Zero(t, self.Find(`button[value="deactivate"]`).Length(), "no self deactivate button")
	other := doc.Find(`tr.account[data-account-id="` + itoa(pat.ID) + `"]`)
	assert.Equal(t, 1, other.Find(`button[value="promote"]`).Length())

	tests := []struct {
		name   string
		form   url.Values
		flash  string
		notify int
	}{
		{"self deactivate", url.Values{"user_id": {itoa(f.admin.ID)}, "action": {"deactivate"}}, "You cannot deactivate your own account.", 0},
		{"self demote", url.Values{"user_id": {itoa(f.admin.ID)}, "action": {"demote"}}, "You cannot demote your own account.", 0},
		{"unknown action", url.Values{"user_id": {itoa(pat.ID)}, "action": {"explode"}}, msgUnknownAction, 0},
		{"missing user", url.Values{"user_id": {"9999"}, "action": {"promote"}}, msgUserNotFound, 0},
		{"promote", url.Values{"user_id": {itoa(pat.ID)}, "action": {"promote"}}, "User '@pat' promoted to admin.", 1},
		{"promote again", url.Values{"user_id": {itoa(pat.ID)}, "action": {"promote"}}, "No change: user '@pat' is already in that state.", 1},
		{"deactivate", url.Values{"user_id": {itoa(pat.ID)}, "action": {"deactivate"}}, "User '@pat' has been deactivated.", 2},
		{"activate", url.Values{"user_id": {itoa(pat.ID)}, "action": {"activate"}}, "User '@pat' has been reactivated.", 3},
		{"demote", url.Values{"user_id": {itoa(pat.ID)}, "action": {"demote"}}, "Admin privileges revoked for user '@pat'.", 4},
	}
	for _, tt := range tests {
		assertRedirect(t, c.post(pathUsers, tt.form), pathUsers)
		assert.Equal(t, tt.flash, flashText(c.page(pathUsers)), tt.name)
		assert.Equal(t, tt.notify, f.notifier.count(42), tt.name)
	}

	me, err := f.store.GetAccountByID(ctx, f.admin.ID)
	require.NoError(t, err)
	assert.True(t, me.IsAdmin)
	assert.True(t, me.IsActive)
}

func TestDashboardAndLocations(t *testing.T) {
	t.Parallel()
	f := newFixture(t, "")
	ctx := context.Background()
	owner, _, err := f.store.GetOrCreateAccount(ctx, database.ExternalProfile{ExternalID: 7, Username: "sam"})
	require.NoError(t, err)

	for i := 0; i < 7; i++ {
		q := &database.LocationQuery{
			AccountID: owner.ID,
			Latitude:  nullString("51.5"),
			Longitude: nullString("-0.12"),
			Address:   nullString("London"),
			Query:     nullString("query " + itoa(int64(i))),
		}
		require.NoError(t, f.store.AppendLocationQuery(ctx, q))
	}

	c := f.client(t)
	assertRedirect(t, c.login(testPassword), pathDashboard)

	doc := c.page(pathDashboard)
	assert.Equal(t, "7", doc.Find("#stat-queries").Text())
	assert.Equal(t, recentQueries, doc.Find("tr.query").Length())
	assert.Contains(t, doc.Find("tr.query").First().Text(), "@sam")

	doc = c.page(pathLocations + "?page=1&size=3")
	assert.Equal(t, 3, doc.Find("tr.query").Length())
	assert.Equal(t, 1, doc.Find("a.next").Length())
	assert.Zero(t, doc.Find("a.prev").Length())

	doc = c.page(pathLocations + "?page=3&size=3")
	assert.Equal(t, 1, doc.Find("tr.query").Length())
	assert.Zero(t, doc.Find("a.next").Length())
	assert.Contains(t, doc.Find("tr.query").Text(), "query 0")
}

func TestHealth(t *testing.T) {
	t.Parallel()
	f := newFixture(t, "")
	resp := f.client(t).get(pathHealth)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(body))
	assert.NotEmpty(t, resp.Header.Get(headerRequest))
}

func TestLoginThrottle(t *testing.T) {
	t.Parallel()
	f := newFixture(t, "")
	c := f.client(t)

	for i := 0; i < loginAttempts; i++ {
		assertRedirect(t, c.post(pathLogin, url.Values{"username": {"admin"}}), pathLogin)
	}
	resp := c.post(pathLogin, url.Values{"username": {"admin"}})
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	// GETs are not throttled
	c.page(pathLogin)
}

func TestCookieKeyIsStable(t *testing.T) {
	t.Parallel()
	assert.Equal(t, cookieKey("a"), cookieKey("a"))
	assert.NotEqual(t, cookieKey("a"), cookieKey("b"))
	assert.Len(t, cookieKey("anything"), 44)
}
