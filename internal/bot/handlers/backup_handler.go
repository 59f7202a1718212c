package handlers

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/Purpleaki2024/location-genius-bot/internal/config"
	"github.com/Purpleaki2024/location-genius-bot/internal/database"
)

const backupTimeout = 2 * time.Minute

// NewBackupHandler returns a handler for the admin /backup command.
// It snapshots the SQLite database and uploads it to the chat.
func NewBackupHandler(deps HandlerDeps) HandlerFunc {
	return backupHandler{deps}.Handle
}

type backupHandler struct {
	deps HandlerDeps
}

func (h backupHandler) Handle(ctx context.Context, s Sender, update *models.Update) {
	log := h.deps.Logger.With("handler", "backup")
	msg := update.Message
	if msg == nil {
		return
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, backupTimeout)
	defer cancel()

	dir, err := os.MkdirTemp("", "bot-backup-*")
	if err != nil {
		log.ErrorContext(ctx, "Failed to create backup directory", "error", err)
		reply(ctx, s, h.deps, msg, h.deps.Config.Messages.GeneralError)
		return
	}
	defer os.RemoveAll(dir)

	now := h.deps.now().UTC()
	name := fmt.Sprintf("bot_backup_%s.db", now.Format("20060102_150405"))
	path := filepath.Join(dir, name)

	err = h.deps.Store.Backup(timeoutCtx, path)
	if errors.Is(err, database.ErrBackupUnsupported) {
		reply(ctx, s, h.deps, msg, h.deps.Config.Messages.BackupUnsupported)
		return
	}
	if err != nil {
		log.ErrorContext(ctx, "Backup failed", "error", err)
		reply(ctx, s, h.deps, msg, h.deps.Config.Messages.GeneralError)
		return
	}

	chatAction(ctx, s, h.deps, msg.Chat.ID, models.ChatActionUploadDocument)
	f, err := os.Open(path)
	if err != nil {
		log.ErrorContext(ctx, "Failed to open backup file", "error", err, "path", path)
		reply(ctx, s, h.deps, msg, h.deps.Config.Messages.GeneralError)
		return
	}
	defer f.Close()

	_, err = s.SendDocument(timeoutCtx, &tgbot.SendDocumentParams{
		ChatID:   msg.Chat.ID,
		Document: &models.InputFileUpload{Filename: name, Data: f},
		Caption:  config.Format(h.deps.Config.Messages.BackupCaption, "time", now.Format(time.RFC3339)),
	})
	if err != nil {
		log.ErrorContext(ctx, "Failed to send backup", "error", err, "chat_id", msg.Chat.ID)
		reply(ctx, s, h.deps, msg, h.deps.Config.Messages.GeneralError)
		return
	}
	log.InfoContext(ctx, "Backup sent", "chat_id", msg.Chat.ID, "file", name)
}
