package handlers

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
	"unicode"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/Purpleaki2024/location-genius-bot/internal/database"
	"github.com/Purpleaki2024/location-genius-bot/internal/geocode"
)

const quotaWindow = 24 * time.Hour

// reply answers msg in its chat. Send failures are logged only.
func reply(ctx context.Context, s Sender, deps HandlerDeps, msg *models.Message, text string) {
	_, err := s.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID:          msg.Chat.ID,
		Text:            text,
		ReplyParameters: &models.ReplyParameters{MessageID: msg.ID, AllowSendingWithoutReply: true},
	})
	if err != nil {
		deps.Logger.ErrorContext(ctx, "Failed to send message", "error", err, "chat_id", msg.Chat.ID)
	}
}

// chatAction shows a status such as "finding location" while slow work runs.
// Failures are logged at debug level only.
func chatAction(ctx context.Context, s Sender, deps HandlerDeps, chatID int64, action models.ChatAction) {
	if _, err := s.SendChatAction(ctx, &tgbot.SendChatActionParams{ChatID: chatID, Action: action}); err != nil {
		deps.Logger.DebugContext(ctx, "Chat action failed", "error", err, "chat_id", chatID, "action", action)
	}
}

// commandArgs returns the text after the leading command token.
func commandArgs(text string) string {
	text = strings.TrimSpace(text)
	idx := strings.IndexFunc(text, unicode.IsSpace)
	if idx == -1 {
		return ""
	}
	return strings.TrimSpace(text[idx:])
}

// commandName returns the leading command without slash or @botname suffix.
func commandName(text string) string {
	token := strings.TrimSpace(text)
	if idx := strings.IndexFunc(token, unicode.IsSpace); idx != -1 {
		token = token[:idx]
	}
	token = strings.TrimPrefix(token, "/")
	if at := strings.IndexByte(token, '@'); at != -1 {
		token = token[:at]
	}
	return strings.ToLower(token)
}

// remainingQuota is the daily cap minus the account's queries in the trailing
// 24 hours, never below zero.
func remainingQuota(ctx context.Context, deps HandlerDeps, acc *database.Account) (int, error) {
	used, err := deps.Store.CountQueriesSince(ctx, acc.ID, deps.now().Add(-quotaWindow))
	if err != nil {
		return 0, err
	}
	remaining := deps.Config.Limits.DailyQueryCap - used
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

func greetingName(acc *database.Account) string {
	switch {
	case acc.FirstName != "":
		return acc.FirstName
	case acc.Username != "":
		return acc.Username
	default:
		return "there"
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// newQuery builds a LocationQuery row for acc. A nil result stores no coordinates.
func newQuery(acc *database.Account, res *geocode.Result, address, query string) *database.LocationQuery {
	q := &database.LocationQuery{
		AccountID: acc.ID,
		Address:   nullString(address),
		Query:     nullString(query),
	}
	if res != nil {
		q.Latitude = nullString(geocode.FormatCoord(res.Latitude))
		q.Longitude = nullString(geocode.FormatCoord(res.Longitude))
	}
	return q
}

func formatNearestList(header string, records []database.NearbyRecord) string {
	var b strings.Builder
	b.WriteString(header)
	for i, r := range records {
		near := r.Address.String
		if near == "" {
			near = r.Latitude.String + ", " + r.Longitude.String
		}
		fmt.Fprintf(&b, "\n%d. %s - %s (%.4f)", i+1, r.OwnerDisplayName(), near, r.Distance)
	}
	return b.String()
}

func formatAccountLine(a *database.Account) string {
	var flags []string
	if a.IsAdmin {
		flags = append(flags, "admin")
	}
	if !a.IsActive {
		flags = append(flags, "inactive")
	}
	line := fmt.Sprintf("#%d %s", a.ID, a.DisplayName())
	if a.ExternalID.Valid {
		line += fmt.Sprintf(" (id %d)", a.ExternalID.Int64)
	}
	if len(flags) > 0 {
		line += " [" + strings.Join(flags, ", ") + "]"
	}
	return line
}
