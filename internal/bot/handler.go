package bot

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"cashbot/internal/amqp"
	"cashbot/internal/core"
	"cashbot/internal/log"
	"cashbot/internal/storage"
)

// Store is the persistence surface the bot needs.
type Store interface {
	GetProfileByChatID(ctx context.Context, chatID int64) (core.Profile, error)
	ClaimLinkCode(ctx context.Context, code string, chatID int64, now time.Time) (string, error)
	CreateTransaction(ctx context.Context, t *core.Transaction) error
}

// Replier sends answers back to the chat gateway.
type Replier interface {
	PublishReply(ctx context.Context, reply *amqp.ChatReply) error
}

// TextParser is the LLM fallback; nil disables it.
type TextParser interface {
	Parse(ctx context.Context, text string) (ParsedMessage, error)
}

var linkRe = regexp.MustCompile(`(?i)^/?link\s+([A-Z0-9]{6})$`)

// Handler turns inbound chat messages into recorded transactions.
type Handler struct {
	store   Store
	replier Replier
	llm     TextParser
	logger  *log.Logger
}

func NewHandler(store Store, replier Replier, llm TextParser, logger *log.Logger) *Handler {
	return &Handler{
		store:   store,
		replier: replier,
		llm:     llm,
		logger:  logger.WithComponent(log.ComponentBot),
	}
}

// Handle processes one chat message. A returned error means the message
// should be redelivered; user-level problems are answered in chat and
// acknowledged.
func (h *Handler) Handle(ctx context.Context, msg *amqp.ChatMessage) error {
	text := normalize(msg.Text)

	if m := linkRe.FindStringSubmatch(text); m != nil {
		return h.handleLink(ctx, msg.ChatID, strings.ToUpper(m[1]))
	}

	profile, err := h.store.GetProfileByChatID(ctx, msg.ChatID)
	if errors.Is(err, storage.ErrNotFound) {
		return h.reply(ctx, msg.ChatID,
			"This chat isn't linked to an account yet. Generate a code in the app and send: link <code>")
	}
	if err != nil {
		return fmt.Errorf("resolve chat: %w", err)
	}

	parsed, ok := Parse(text)
	if !ok && h.llm != nil {
		parsed, err = h.llm.Parse(ctx, text)
		if err != nil {
			h.logger.WarnContext(ctx, "LLM parse failed", log.FieldError, err, log.FieldChatID, msg.ChatID)
			ok = false
		} else {
			ok = true
		}
	}
	if !ok {
		return h.reply(ctx, msg.ChatID,
			"I couldn't find an amount in that. Try something like: Lunch 50")
	}

	tx := &core.Transaction{
		UserID:      profile.UserID,
		Amount:      parsed.Amount,
		Description: parsed.Description,
		Category:    parsed.Category,
		Type:        parsed.Type,
		CreatedAt:   msg.Timestamp,
	}
	if err := h.store.CreateTransaction(ctx, tx); err != nil {
		if errors.Is(err, core.ErrInvalidAmount) || errors.Is(err, core.ErrEmptyDescription) {
			return h.reply(ctx, msg.ChatID, "That doesn't look like a valid record, sorry.")
		}
		return fmt.Errorf("record transaction: %w", err)
	}

	h.logger.InfoContext(ctx, "Recorded transaction from chat",
		log.FieldChatID, msg.ChatID,
		"type", tx.Type,
		log.FieldCategory, tx.Category,
		log.FieldAmount, tx.Amount.String())

	verb := "Spent"
	if tx.Type == core.Income {
		verb = "Received"
	}
	return h.reply(ctx, msg.ChatID,
		fmt.Sprintf("%s %s on %s (%s)", verb, tx.Amount.StringFixed(2), tx.Description, tx.Category))
}

func (h *Handler) handleLink(ctx context.Context, chatID int64, code string) error {
	_, err := h.store.ClaimLinkCode(ctx, code, chatID, time.Now())
	if errors.Is(err, storage.ErrNotFound) {
		return h.reply(ctx, chatID, "That code is unknown or expired. Generate a new one in the app.")
	}
	if err != nil {
		return fmt.Errorf("claim link code: %w", err)
	}
	return h.reply(ctx, chatID, "Linked! Send me things like: Lunch 50")
}

func (h *Handler) reply(ctx context.Context, chatID int64, text string) error {
	if err := h.replier.PublishReply(ctx, amqp.NewChatReply(chatID, text)); err != nil {
		return fmt.Errorf("send reply: %w", err)
	}
	return nil
}
