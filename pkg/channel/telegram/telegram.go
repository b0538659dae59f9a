package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"chatcart/pkg/bus"
	"chatcart/pkg/channel"
	"chatcart/pkg/config"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
)

const channelName = "telegram"
const keyPrefix = "telegram:"
const messagePreviewLimit = 240

// Adapter bridges Telegram updates into chatcart inbound events and
// implements channel.Sender over the Telegram Bot API. Reply buttons
// and lists are rendered as inline keyboards; button presses come back
// as callback queries and are forwarded as button events.
type Adapter struct {
	cfg       config.TelegramConfig
	allowFrom map[string]struct{}
	log       *slog.Logger
	bot       *telego.Bot
}

// NewAdapter validates Telegram configuration and constructs an adapter instance.
func NewAdapter(cfg config.TelegramConfig, log *slog.Logger) (*Adapter, error) {
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("channels.telegram.token is required")
	}

	if log == nil {
		log = slog.Default()
	}

	bot, err := telego.NewBot(token)
	if err != nil {
		return nil, fmt.Errorf("initialize telegram bot: %w", err)
	}

	return &Adapter{
		cfg:       cfg,
		allowFrom: allowFromSet(cfg.AllowFrom),
		log:       log.With("component", "channel.telegram"),
		bot:       bot,
	}, nil
}

// Name returns the channel identifier used in event metadata and logs.
func (a *Adapter) Name() string {
	return channelName
}

// Run starts Telegram long polling and forwards updates through the handler.
//
// Every update is forwarded, duplicates included; deduplication is the
// engine's job, keyed on the event identifier derived here.
func (a *Adapter) Run(ctx context.Context, handler channel.Handler) error {
	if handler == nil {
		return errors.New("handler is required")
	}

	updates, err := a.bot.UpdatesViaLongPolling(ctx, nil)
	if err != nil {
		return fmt.Errorf("start long polling: %w", err)
	}

	a.log.Info("Telegram channel started")

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return errors.New("telegram updates channel closed")
			}

			event, ok := a.eventFromUpdate(ctx, update)
			if !ok {
				continue
			}

			a.log.Info("Received event", "event_id", event.EventID, "conversation_key", event.ConversationKey, "kind", event.Kind, "payload", previewText(event.Payload))
			if err := handler(ctx, event); err != nil {
				a.log.Error("Failed to process inbound event", "event_id", event.EventID, "error", err)
			}
		}
	}
}

// eventFromUpdate maps one Telegram update to an inbound event.
func (a *Adapter) eventFromUpdate(ctx context.Context, update telego.Update) (bus.InboundEvent, bool) {
	if query := update.CallbackQuery; query != nil {
		// Acknowledge immediately so the client stops its spinner even
		// when processing is slow or the press is a duplicate.
		if err := a.bot.AnswerCallbackQuery(ctx, &telego.AnswerCallbackQueryParams{CallbackQueryID: query.ID}); err != nil {
			a.log.Debug("Failed to answer callback query", "error", err)
		}

		message := query.Message
		if message == nil {
			return bus.InboundEvent{}, false
		}

		senderID := strconv.FormatInt(query.From.ID, 10)
		if !a.senderAllowed(senderID) {
			return bus.InboundEvent{}, false
		}

		chatID := strconv.FormatInt(message.GetChat().ID, 10)
		return bus.InboundEvent{
			EventID:         channelName + ":cb:" + query.ID,
			ConversationKey: conversationKey(chatID),
			Channel:         channelName,
			Kind:            bus.KindButton,
			Payload:         strings.TrimSpace(query.Data),
			SenderID:        senderID,
			ReceivedAt:      time.Now().UTC(),
		}, true
	}

	message := update.Message
	if message == nil || message.From == nil {
		return bus.InboundEvent{}, false
	}

	senderID := strconv.FormatInt(message.From.ID, 10)
	if !a.senderAllowed(senderID) {
		a.log.Debug("Ignoring message from unauthorized sender", "sender_id", senderID)
		return bus.InboundEvent{}, false
	}

	chatID := strconv.FormatInt(message.Chat.ID, 10)
	kind := bus.KindText
	payload := strings.TrimSpace(message.Text)
	if payload == "" {
		if len(message.Photo) == 0 && message.Document == nil && message.Voice == nil {
			return bus.InboundEvent{}, false
		}
		kind = bus.KindMedia
	}

	return bus.InboundEvent{
		EventID:         channelName + ":" + strconv.Itoa(update.UpdateID),
		ConversationKey: conversationKey(chatID),
		Channel:         channelName,
		Kind:            kind,
		Payload:         payload,
		SenderID:        senderID,
		ReceivedAt:      time.Now().UTC(),
	}, true
}

// SendText delivers a plain text message.
func (a *Adapter) SendText(ctx context.Context, key string, text string) (string, error) {
	chatID, err := chatIDFromKey(key)
	if err != nil {
		return "", err
	}

	message, err := a.bot.SendMessage(ctx, tu.Message(tu.ID(chatID), text))
	if err != nil {
		return "", fmt.Errorf("send telegram text: %w", err)
	}

	return strconv.Itoa(message.MessageID), nil
}

// SendButtons delivers a message with up to three inline reply buttons.
func (a *Adapter) SendButtons(ctx context.Context, key string, body string, buttons []channel.Button, footer string) (string, error) {
	chatID, err := chatIDFromKey(key)
	if err != nil {
		return "", err
	}

	if len(buttons) > channel.MaxButtons {
		buttons = buttons[:channel.MaxButtons]
	}

	rows := make([][]telego.InlineKeyboardButton, 0, len(buttons))
	for _, button := range buttons {
		rows = append(rows, tu.InlineKeyboardRow(tu.InlineKeyboardButton(button.Label).WithCallbackData(button.ID)))
	}

	text := body
	if footer = strings.TrimSpace(footer); footer != "" {
		text = body + "\n\n" + footer
	}

	params := tu.Message(tu.ID(chatID), text).WithReplyMarkup(tu.InlineKeyboard(rows...))
	message, err := a.bot.SendMessage(ctx, params)
	if err != nil {
		return "", fmt.Errorf("send telegram buttons: %w", err)
	}

	return strconv.Itoa(message.MessageID), nil
}

// SendList renders sectioned rows as an inline keyboard.
//
// Telegram has no native list message, so section titles are folded
// into the body text and each row becomes one keyboard row.
func (a *Adapter) SendList(ctx context.Context, key string, body string, buttonLabel string, sections []channel.ListSection) (string, error) {
	chatID, err := chatIDFromKey(key)
	if err != nil {
		return "", err
	}

	if len(sections) > channel.MaxListSections {
		sections = sections[:channel.MaxListSections]
	}

	var text strings.Builder
	text.WriteString(body)

	rows := make([][]telego.InlineKeyboardButton, 0)
	for _, section := range sections {
		if title := strings.TrimSpace(section.Title); title != "" {
			text.WriteString("\n\n" + title)
		}

		sectionRows := section.Rows
		if len(sectionRows) > channel.MaxListRows {
			sectionRows = sectionRows[:channel.MaxListRows]
		}
		for _, row := range sectionRows {
			label := row.Title
			if row.Description != "" {
				label = row.Title + " — " + row.Description
			}
			rows = append(rows, tu.InlineKeyboardRow(tu.InlineKeyboardButton(label).WithCallbackData(row.ID)))
		}
	}

	_ = buttonLabel // Telegram keyboards open inline; no trigger button needed.

	params := tu.Message(tu.ID(chatID), text.String()).WithReplyMarkup(tu.InlineKeyboard(rows...))
	message, err := a.bot.SendMessage(ctx, params)
	if err != nil {
		return "", fmt.Errorf("send telegram list: %w", err)
	}

	return strconv.Itoa(message.MessageID), nil
}

// SendTemplate renders a named template as plain text.
//
// Telegram has no pre-approved template mechanism, so templates are
// formatted locally with positional parameters.
func (a *Adapter) SendTemplate(ctx context.Context, key string, name string, params []string, lang string) (string, error) {
	_ = lang

	text := name
	if len(params) > 0 {
		text = fmt.Sprintf("%s: %s", name, strings.Join(params, ", "))
	}

	return a.SendText(ctx, key, text)
}

// senderAllowed checks whether a sender is permitted by allow_from config.
//
// When no allow list is configured, all senders are accepted.
func (a *Adapter) senderAllowed(senderID string) bool {
	if len(a.allowFrom) == 0 {
		return true
	}

	_, ok := a.allowFrom[strings.TrimSpace(senderID)]
	return ok
}

// conversationKey maps one Telegram chat to one engine conversation key.
func conversationKey(chatID string) string {
	return keyPrefix + strings.TrimSpace(chatID)
}

// chatIDFromKey recovers the numeric chat id from a conversation key.
func chatIDFromKey(key string) (int64, error) {
	raw := strings.TrimPrefix(key, keyPrefix)
	chatID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid telegram conversation key %q", key)
	}

	return chatID, nil
}

// allowFromSet normalizes allow_from values into a lookup set.
func allowFromSet(allowFrom []string) map[string]struct{} {
	if len(allowFrom) == 0 {
		return nil
	}

	allowed := make(map[string]struct{}, len(allowFrom))
	for _, value := range allowFrom {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		allowed[trimmed] = struct{}{}
	}

	if len(allowed) == 0 {
		return nil
	}

	return allowed
}

// previewText returns a bounded log-safe preview of message text.
// Truncation is by rune so a multi-byte character is never split.
func previewText(text string) string {
	trimmed := strings.TrimSpace(text)
	if utf8.RuneCountInString(trimmed) <= messagePreviewLimit {
		return trimmed
	}

	return string([]rune(trimmed)[:messagePreviewLimit]) + "..."
}
