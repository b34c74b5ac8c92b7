// Package bot delivers digests over Telegram and answers a few commands.
package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"kanban/internal/model"
	"kanban/internal/repository"
)

type chatAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type userFinder interface {
	FindByTelegramChatID(ctx context.Context, chatID int64) (*model.User, error)
}

type digester interface {
	Summary(ctx context.Context, userID uint, now time.Time) (string, error)
}

// Notifier sends HTML messages to linked chats.
type Notifier struct {
	api     chatAPI
	bot     *tgbotapi.BotAPI
	users   userFinder
	digests digester
	logger  *slog.Logger
	now     func() time.Time
}

func New(token string, users userFinder, digests digester, logger *slog.Logger) (*Notifier, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("bot authorized", slog.String("account", api.Self.UserName))
	return &Notifier{api: api, bot: api, users: users, digests: digests, logger: logger, now: time.Now}, nil
}

// Send delivers text to the chat.
func (n *Notifier) Send(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	_, err := n.api.Send(msg)
	return err
}

// Start begins polling updates until ctx is cancelled.
func (n *Notifier) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := n.bot.GetUpdatesChan(updateConfig)

	n.logger.Info("start polling updates")

	go func() {
		<-ctx.Done()
		n.bot.StopReceivingUpdates()
	}()

	for update := range updates {
		if update.Message == nil || update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
			continue
		}
		if err := n.handleMessage(ctx, update.Message); err != nil {
			n.logger.Error("handle message", slog.Int64("chat_id", update.Message.Chat.ID), slog.String("error", err.Error()))
		}
	}
	return nil
}

func (n *Notifier) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if !msg.IsCommand() {
		return n.Send(msg.Chat.ID, "Send /digest for your overdue items or /help for commands.")
	}
	switch msg.Command() {
	case "start":
		return n.handleStart(msg)
	case "digest":
		return n.handleDigest(ctx, msg)
	case "help":
		return n.Send(msg.Chat.ID, helpText)
	default:
		return n.Send(msg.Chat.ID, "Unknown command. See /help.")
	}
}

const helpText = "ℹ️ <b>Commands</b>\n" +
	"• /start — show the chat id to link in your profile\n" +
	"• /digest — overdue and upcoming items now\n" +
	"• /help — this message"

func (n *Notifier) handleStart(msg *tgbotapi.Message) error {
	name := "there"
	if msg.From != nil && strings.TrimSpace(msg.From.FirstName) != "" {
		name = strings.TrimSpace(msg.From.FirstName)
	}
	text := fmt.Sprintf(
		"👋 Hi, %s!\nYour chat id is <code>%d</code>.\n"+
			"Set it as <code>telegram_chat_id</code> on your profile to receive daily digests.",
		html.EscapeString(name), msg.Chat.ID)
	return n.Send(msg.Chat.ID, text)
}

func (n *Notifier) handleDigest(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := n.users.FindByTelegramChatID(ctx, msg.Chat.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return n.Send(msg.Chat.ID, "This chat is not linked to an account yet. Send /start to see how.")
	}
	if err != nil {
		return err
	}
	text, err := n.digests.Summary(ctx, user.ID, n.now())
	if err != nil {
		return n.Send(msg.Chat.ID, fmt.Sprintf("Could not build the digest: %s", html.EscapeString(err.Error())))
	}
	return n.Send(msg.Chat.ID, text)
}
