package handlers

import (
	"context"
	"strings"
	"time"

	"github.com/fin-ai-tgbot-go/internal/config"
	"github.com/fin-ai-tgbot-go/internal/i18n"
	"github.com/fin-ai-tgbot-go/internal/middleware"
	"github.com/fin-ai-tgbot-go/internal/orchestrator"
	"github.com/fin-ai-tgbot-go/pkg/logger"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

// A single turn never runs longer than this, retries and tool rounds
// included.
const turnTimeout = 2 * time.Minute

// MessageHandler handles regular messages
type MessageHandler struct {
	config       *config.Config
	bot          *tgbotapi.BotAPI
	orchestrator *orchestrator.Orchestrator
	sender       *Sender
	security     *middleware.SecurityMiddleware
	localizer    *i18n.Localizer
	logger       *logrus.Logger
}

// NewMessageHandler creates a new message handler
func NewMessageHandler(
	cfg *config.Config,
	bot *tgbotapi.BotAPI,
	orch *orchestrator.Orchestrator,
	sender *Sender,
	localizer *i18n.Localizer,
	logger *logrus.Logger,
) *MessageHandler {
	return &MessageHandler{
		config:       cfg,
		bot:          bot,
		orchestrator: orch,
		sender:       sender,
		security:     middleware.NewSecurityMiddleware(cfg.Bot.MaxMessageBytes, logger),
		localizer:    localizer,
		logger:       logger,
	}
}

// HandleMessage processes regular messages
func (h *MessageHandler) HandleMessage(ctx context.Context, update *tgbotapi.Update) error {
	if update.Message == nil || update.Message.IsCommand() {
		return nil
	}

	// Ignore bot's own messages
	if update.Message.From == nil || update.Message.From.ID == h.bot.Self.ID {
		return nil
	}

	if !h.shouldRespond(update.Message) {
		return nil
	}

	chatID := update.Message.Chat.ID
	userID := update.Message.From.ID
	lang := h.config.I18n.DefaultLanguage

	// Voice notes are not transcribed.
	if update.Message.Voice != nil {
		return h.sender.Reply(ctx, chatID, update.Message.MessageID,
			h.localizer.Get(lang, i18n.MsgTextOnly, nil))
	}

	text := h.cleanMessage(update.Message.Text)
	if text == "" {
		return nil
	}

	if err := h.security.ValidateInput(text); err != nil {
		h.logger.WithError(err).WithField("user_id", userID).Warn("Input validation failed")
		return h.sender.Reply(ctx, chatID, update.Message.MessageID,
			h.localizer.Get(lang, i18n.MsgMessageTooLong, nil))
	}

	h.sender.Typing(chatID)

	// Process the turn off the update loop; the orchestrator
	// serializes turns per user itself.
	go h.processTurn(ctx, chatID, userID, update.Message.MessageID, text)

	return nil
}

func (h *MessageHandler) processTurn(ctx context.Context, chatID, userID int64, messageID int, text string) {
	turnCtx, cancel := context.WithTimeout(ctx, turnTimeout)
	defer cancel()

	reply := h.orchestrator.HandleTurn(turnCtx, userID, text)

	if err := h.sender.Reply(ctx, chatID, messageID, reply); err != nil {
		logger.WithUser(h.logger, chatID, userID).WithError(err).Error("Failed to send reply")
	}
}

// shouldRespond limits group chatter: the bot answers private chats,
// direct mentions, and replies to its own messages.
func (h *MessageHandler) shouldRespond(message *tgbotapi.Message) bool {
	if message.Chat.IsPrivate() {
		return true
	}

	botUsername := "@" + strings.ToLower(h.bot.Self.UserName)
	if strings.Contains(strings.ToLower(message.Text), botUsername) {
		return true
	}

	if message.ReplyToMessage != nil && message.ReplyToMessage.From != nil &&
		message.ReplyToMessage.From.ID == h.bot.Self.ID {
		return true
	}

	return false
}

func (h *MessageHandler) cleanMessage(text string) string {
	// Remove bot mention
	botUsername := "@" + h.bot.Self.UserName
	cleaned := strings.ReplaceAll(text, botUsername, "")
	return strings.TrimSpace(cleaned)
}
