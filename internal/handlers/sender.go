package handlers

import (
	"context"
	"fmt"

	"github.com/fin-ai-tgbot-go/internal/config"
	"github.com/fin-ai-tgbot-go/pkg/markdown"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Sender is the single outbound path to Telegram. Every message goes
// through one process-wide rate limiter (Telegram caps bots around
// 30 msg/s) and gets markdown converted to HTML, falling back to plain
// text when Telegram rejects the parse.
type Sender struct {
	bot     *tgbotapi.BotAPI
	limiter *rate.Limiter
	logger  *logrus.Logger
}

// NewSender creates the throttled outbound sender
func NewSender(cfg *config.BotConfig, bot *tgbotapi.BotAPI, logger *logrus.Logger) *Sender {
	return &Sender{
		bot:     bot,
		limiter: rate.NewLimiter(rate.Limit(cfg.SendRate), cfg.SendBurst),
		logger:  logger,
	}
}

// Send delivers text to a chat. Satisfies scheduler.Sink: for private
// chats the chat id is the user id.
func (s *Sender) Send(ctx context.Context, chatID int64, text string) error {
	return s.deliver(ctx, chatID, 0, text)
}

// Reply delivers text as a reply to a specific message
func (s *Sender) Reply(ctx context.Context, chatID int64, replyTo int, text string) error {
	return s.deliver(ctx, chatID, replyTo, text)
}

func (s *Sender) deliver(ctx context.Context, chatID int64, replyTo int, text string) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("send throttle interrupted: %w", err)
	}

	msg := tgbotapi.NewMessage(chatID, markdown.ToTelegramHTML(text))
	msg.ParseMode = "HTML"
	msg.ReplyToMessageID = replyTo

	if _, err := s.bot.Send(msg); err != nil {
		// If HTML parsing fails, try plain text
		s.logger.WithError(err).Warn("Failed to send HTML message, trying plain text")

		plain := tgbotapi.NewMessage(chatID, text)
		plain.ReplyToMessageID = replyTo
		if _, err := s.bot.Send(plain); err != nil {
			return fmt.Errorf("failed to send message: %w", err)
		}
	}

	return nil
}

// Typing shows the typing indicator while a turn is processed
func (s *Sender) Typing(chatID int64) {
	action := tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)
	if _, err := s.bot.Request(action); err != nil {
		s.logger.WithError(err).Debug("Failed to send typing action")
	}
}
