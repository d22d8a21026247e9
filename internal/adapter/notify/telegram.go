package notify

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/semmidev/dbkeeper/internal/config"
)

// Telegram documents are capped at 50 MB for bots.
const maxDocumentSize = 50 * 1024 * 1024

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Telegram struct {
	bot    sender
	chatID int64
}

func NewTelegram(cfg *config.TelegramConfig) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	return &Telegram{bot: bot, chatID: cfg.ChatID}, nil
}

func (t *Telegram) Notify(ctx context.Context, message string) error {
	msg := tgbotapi.NewMessage(t.chatID, message)
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("failed to send telegram notification: %w", err)
	}
	return nil
}

// SendFileToOperator delivers the file at path as a document to the operator chat.
func (t *Telegram) SendFileToOperator(ctx context.Context, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}
	if info.Size() > maxDocumentSize {
		return fmt.Errorf("file %s is %s, over the telegram limit", path, humanize.Bytes(uint64(info.Size())))
	}

	doc := tgbotapi.NewDocument(t.chatID, tgbotapi.FilePath(path))
	doc.Caption = fmt.Sprintf("📎 %s (%s)", filepath.Base(path), humanize.Bytes(uint64(info.Size())))

	if _, err := t.bot.Send(doc); err != nil {
		return fmt.Errorf("failed to send telegram file: %w", err)
	}
	return nil
}

// Nop is used when no notification channel is configured.
type Nop struct{}

func (Nop) Notify(ctx context.Context, message string) error { return nil }

func (Nop) SendFileToOperator(ctx context.Context, path string) error { return nil }
