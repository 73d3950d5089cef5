package notification

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
	"github.com/tripnest/booking-backend/internal/models"
)

type telegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramChannel posts every event to the operations chat
type TelegramChannel struct {
	bot    telegramSender
	chatID int64
	logger *logrus.Logger
}

// NewTelegramChannel connects the bot. An empty token disables the channel.
func NewTelegramChannel(token string, chatID int64, logger *logrus.Logger) (*TelegramChannel, error) {
	if token == "" || chatID == 0 {
		logger.Warn("Telegram bot token or chat id is empty, staff notifications disabled")
		return &TelegramChannel{logger: logger}, nil
	}

	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	return &TelegramChannel{bot: bot, chatID: chatID, logger: logger}, nil
}

// Name returns the channel name
func (t *TelegramChannel) Name() string {
	return "telegram"
}

// Deliver sends the staff rendering of the event
func (t *TelegramChannel) Deliver(ctx context.Context, event *models.OutboundEvent, _ *models.User) error {
	text := StaffText(event)

	if t.bot == nil {
		t.logger.WithField("text", text).Debug("Telegram notification skipped (bot disabled)")
		return nil
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown

	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}

	return nil
}
