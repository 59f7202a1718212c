package handlers

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/require"

	"github.com/Purpleaki2024/location-genius-bot/internal/admin"
	"github.com/Purpleaki2024/location-genius-bot/internal/auth"
	"github.com/Purpleaki2024/location-genius-bot/internal/config"
	"github.com/Purpleaki2024/location-genius-bot/internal/conversation"
	"github.com/Purpleaki2024/location-genius-bot/internal/database"
	"github.com/Purpleaki2024/location-genius-bot/internal/geocode"
	"github.com/Purpleaki2024/location-genius-bot/internal/notify"
	"github.com/Purpleaki2024/location-genius-bot/internal/ratelimit"
)

type sentDocument struct {
	chatID   any
	filename string
	size     int
	caption  string
}

type fakeSender struct {
	mu        sync.Mutex
	messages  []*tgbot.SendMessageParams
	locations []*tgbot.SendLocationParams
	documents []sentDocument
	actions   []models.ChatAction
	docErr    error
}

func (f *fakeSender) SendMessage(_ context.Context, p *tgbot.SendMessageParams) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, p)
	return &models.Message{}, nil
}

func (f *fakeSender) SendLocation(_ context.Context, p *tgbot.SendLocationParams) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.locations = append(f.locations, p)
	return &models.Message{}, nil
}

func (f *fakeSender) SendDocument(_ context.Context, p *tgbot.SendDocumentParams) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.docErr != nil {
		return nil, f.docErr
	}
	doc := sentDocument{chatID: p.ChatID, caption: p.Caption}
	if up, ok := p.Document.(*models.InputFileUpload); ok {
		data, _ := io.ReadAll(up.Data)
		doc.filename = up.Filename
		doc.size = len(data)
	}
	f.documents = append(f.documents, doc)
	return &models.Message{}, nil
}

func (f *fakeSender) SendChatAction(_ context.Context, p *tgbot.SendChatActionParams) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actions = append(f.actions, p.Action)
	return true, nil
}

func (f *fakeSender) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.messages))
	for i, m := range f.messages {
		out[i] = m.Text
	}
	return out
}

func (f *fakeSender) last() string {
	t := f.texts()
	if len(t) == 0 {
		return ""
	}
	return t[len(t)-1]
}

func (f *fakeSender) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages) + len(f.locations) + len(f.documents)
}

// fakeGeocoder resolves the names in places and nothing else.
type fakeGeocoder struct {
	places  map[string]geocode.Result
	reverse map[string]string
}

func (g *fakeGeocoder) Geocode(_ context.Context, text string) (geocode.Result, bool) {
	r, ok := g.places[strings.ToLower(strings.TrimSpace(text))]
	return r, ok
}

func (g *fakeGeocoder) Reverse(_ context.Context, lat, lon float64) (string, bool) {
	a, ok := g.reverse[geocode.FormatCoord(lat)+","+geocode.FormatCoord(lon)]
	return a, ok
}

func (g *fakeGeocoder) Search(ctx context.Context, _ geocode.Kind, name string) (geocode.Result, bool) {
	return g.Geocode(ctx, name)
}

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

type env struct {
	t        *testing.T
	deps     HandlerDeps
	store    database.Store
	sender   *fakeSender
	geo      *fakeGeocoder
	notifier *recordingNotifier
	clock    time.Time
	clockMu  sync.Mutex
	msgID    int
}

// newEnv wires handlers over a temporary SQLite store. The limiter clock
// advances a minute per check so tests are not throttled unless they ask.
func newEnv(t *testing.T) *env {
	t.Helper()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "handlers.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.CloseDB(db) })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := database.NewStore(db, logger)

	cfg := &config.Config{
		Limits: config.LimitsConfig{
			DailyQueryCap: config.DefaultDailyQueryCap,
			NearestCount:  config.DefaultNearestCount,
			Intervals:     config.DefaultIntervals(),
		},
		Messages: config.DefaultMessages,
	}

	e := &env{
		t:      t,
		store:  store,
		sender: &fakeSender{},
		geo: &fakeGeocoder{
			places: map[string]geocode.Result{
				"origin":  {Latitude: 0, Longitude: 0, Address: "Null Island"},
				"corner":  {Latitude: 10, Longitude: 10, Address: "Far Corner"},
				"nearby":  {Latitude: 1, Longitude: 1, Address: "Nearby Place"},
				"central": {Latitude: 2, Longitude: 2, Address: "Central Square"},
			},
			reverse: map[string]string{"51.5,-0.12": "London, UK"},
		},
		notifier: &recordingNotifier{},
		clock:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	e.deps = HandlerDeps{
		Logger:     logger,
		Config:     cfg,
		Store:      store,
		Geocoder:   e.geo,
		Tracker:    conversation.NewTracker(nil, logger),
		Limiter:    ratelimit.New(ratelimit.WithClock(e.tick)),
		Admin:      admin.NewService(store, e.notifier, cfg.Messages, logger),
		Authorizer: auth.DirectIDAuth{Accounts: store},
	}
	return e
}

func (e *env) tick() time.Time {
	e.clockMu.Lock()
	defer e.clockMu.Unlock()
	e.clock = e.clock.Add(time.Minute)
	return e.clock
}

// freezeLimiter replaces the limiter with one whose clock never moves.
func (e *env) freezeLimiter() {
	fixed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	e.deps.Limiter = ratelimit.New(ratelimit.WithClock(func() time.Time { return fixed }))
}

func (e *env) update(userID int64, username, text string) *models.Update {
	e.msgID++
	return &models.Update{
		ID: int64(e.msgID),
		Message: &models.Message{
			ID:   e.msgID,
			Chat: models.Chat{ID: userID},
			From: &models.User{ID: userID, Username: username, FirstName: username},
			Text: text,
		},
	}
}

// send routes text the way the bot would: registered commands first, then
// the default handler.
func (e *env) send(userID int64, username, text string) {
	e.t.Helper()
	ctx := context.Background()
	u := e.update(userID, username, text)
	name := commandName(text)
	if strings.HasPrefix(text, "/") {
		for _, spec := range commandSpecs(e.deps) {
			if spec.name == name {
				spec.chain(e.deps)(ctx, e.sender, u)
				return
			}
		}
	}
	NewDefaultHandler(e.deps)(ctx, e.sender, u)
}

func (e *env) shareLocation(userID int64, username string, lat, lon float64) {
	u := e.update(userID, username, "")
	u.Message.Location = &models.Location{Latitude: lat, Longitude: lon}
	NewDefaultHandler(e.deps)(context.Background(), e.sender, u)
}

func (e *env) account(externalID int64) *database.Account {
	e.t.Helper()
	acc, err := e.store.GetAccountByExternalID(context.Background(), externalID)
	require.NoError(e.t, err)
	return acc
}

func (e *env) makeAdmin(externalID int64, username string) *database.Account {
	e.t.Helper()
	ctx := context.Background()
	acc, _, err := e.store.GetOrCreateAccount(ctx, database.ExternalProfile{ExternalID: externalID, Username: username})
	require.NoError(e.t, err)
	acc, err = e.store.SetAccountAdmin(ctx, acc.ID, true)
	require.NoError(e.t, err)
	return acc
}

// seedQuery stores a located query owned by a new account.
func (e *env) seedQuery(externalID int64, username string, lat, lon float64, address string) *database.Account {
	e.t.Helper()
	ctx := context.Background()
	acc, _, err := e.store.GetOrCreateAccount(ctx, database.ExternalProfile{ExternalID: externalID, Username: username})
	require.NoError(e.t, err)
	res := geocode.Result{Latitude: lat, Longitude: lon}
	require.NoError(e.t, e.store.AppendLocationQuery(ctx, newQuery(acc, &res, address, address)))
	return acc
}
